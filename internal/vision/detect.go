package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/rollcall/internal/recognition"
)

// Detector runs RetinaFace (SCRFD) face detection using ONNX Runtime.
// The same det_10g graph serves both accuracy tiers: the fast preview
// tier runs it at 320x320 input, the accurate capture tier at 640x640.
// Sessions are not reentrant, so Detect serializes on a mutex.
type Detector struct {
	mu            sync.Mutex
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

// stride configuration for RetinaFace det_10g
var strides = []int{8, 16, 32}

// anchorsPerStride is the number of anchors per pixel at each stride
const anchorsPerStride = 2

// NewDetector loads the RetinaFace ONNX model at the given input size.
// Output shapes follow from the input size:
// anchors at stride s = (size/s)^2 * 2.
func NewDetector(modelPath string, inputSize int, threshold float32) (*Detector, error) {
	inputW, inputH := inputSize, inputSize

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g output node names by stride; no batch dimension.
	scoreNames := []string{"448", "471", "494"}
	bboxNames := []string{"451", "474", "497"}
	lmNames := []string{"454", "477", "500"}

	type outputSpec struct {
		name  string
		shape ort.Shape
	}

	var outputs []outputSpec
	for si, stride := range strides {
		n := int64((inputW / stride) * (inputH / stride) * anchorsPerStride)
		outputs = append(outputs, outputSpec{scoreNames[si], ort.NewShape(n, 1)})
	}
	for si, stride := range strides {
		n := int64((inputW / stride) * (inputH / stride) * anchorsPerStride)
		outputs = append(outputs, outputSpec{bboxNames[si], ort.NewShape(n, 4)})
	}
	for si, stride := range strides {
		n := int64((inputW / stride) * (inputH / stride) * anchorsPerStride)
		outputs = append(outputs, outputSpec{lmNames[si], ort.NewShape(n, 10)})
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))

	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %d (%s): %w", i, spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect runs face detection within roi and returns detections in
// full-frame pixel coordinates. An empty result is not an error.
func (d *Detector) Detect(ctx context.Context, img image.Image, roi image.Rectangle) ([]recognition.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	region := img
	offset := image.Point{}
	if !roi.Empty() && roi != img.Bounds() {
		if cropped := cropRegion(img, roi); cropped != nil {
			region = cropped
			offset = roi.Min
		}
	}

	bounds := region.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	input := preprocessForDetection(region, d.inputW, d.inputH)

	d.mu.Lock()
	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("run detection: %w", err)
	}
	detections := d.parseDetections(origW, origH)
	d.mu.Unlock()

	detections = nms(detections, 0.4)

	for i := range detections {
		detections[i].BBox[0] += float32(offset.X)
		detections[i].BBox[1] += float32(offset.Y)
		detections[i].BBox[2] += float32(offset.X)
		detections[i].BBox[3] += float32(offset.Y)
	}

	return detections, nil
}

// parseDetections decodes anchor-based RetinaFace outputs at strides 8, 16, 32.
// Caller must hold d.mu.
func (d *Detector) parseDetections(origW, origH int) []recognition.Detection {
	var detections []recognition.Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range strides {
		scores := d.outputTensors[si].GetData()   // [N, 1]
		bboxes := d.outputTensors[si+3].GetData() // [N, 4]

		fmW := d.inputW / stride
		fmH := d.inputH / stride

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					score := scores[idx]

					if score >= d.threshold {
						anchorX := float32(cx) * float32(stride)
						anchorY := float32(cy) * float32(stride)

						// Box offsets are normalized distances from the
						// anchor to each edge; multiply by stride for pixels.
						st := float32(stride)
						x1 := (anchorX - bboxes[idx*4+0]*st) * scaleW
						y1 := (anchorY - bboxes[idx*4+1]*st) * scaleH
						x2 := (anchorX + bboxes[idx*4+2]*st) * scaleW
						y2 := (anchorY + bboxes[idx*4+3]*st) * scaleH

						x1 = clampF(x1, 0, float32(origW))
						y1 = clampF(y1, 0, float32(origH))
						x2 = clampF(x2, 0, float32(origW))
						y2 = clampF(y2, 0, float32(origH))

						detections = append(detections, recognition.Detection{
							BBox:       recognition.BBox{x1, y1, x2, y2},
							Confidence: score,
						})
					}
					idx++
				}
			}
		}
	}

	return detections
}

// InputSize returns the model's expected input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []recognition.Detection, iouThreshold float32) []recognition.Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] {
				continue
			}
			if iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []recognition.Detection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b recognition.BBox) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
