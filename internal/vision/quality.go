package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/rollcall/internal/recognition"
)

// FaceQuality carries the per-face signals the alert rules can test.
type FaceQuality struct {
	Quality    float32 // 0..1, capture quality (sharpness/pose)
	Expression float32 // 0..1, neutral-to-expressive
	Liveness   bool    // false suggests a printed photo or screen replay
}

// livenessThreshold: below this the face is treated as a spoof candidate.
const livenessThreshold = 0.5

// QualityPredictor scores face crops with a small quality/liveness ONNX
// head. Its output feeds alert rule conditions only; it never gates the
// recognition decision itself.
type QualityPredictor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// NewQualityPredictor loads the quality/liveness ONNX model.
func NewQualityPredictor(modelPath string) (*QualityPredictor, error) {
	inputW, inputH := 96, 96

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Output: [1, 3] — quality, expression, liveness scores
	outputShape := ort.NewShape(1, 3)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"data"},
		[]string{"fc1"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create quality session: %w", err)
	}

	return &QualityPredictor{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Predict scores the face at box.
func (p *QualityPredictor) Predict(ctx context.Context, img image.Image, box recognition.BBox) (*FaceQuality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	crop := cropFace(img, box)
	if crop == nil {
		return nil, fmt.Errorf("empty face crop at %v", box)
	}

	input := preprocessForQuality(crop, p.inputW, p.inputH)

	p.mu.Lock()
	defer p.mu.Unlock()

	copy(p.inputTensor.GetData(), input)
	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("run quality: %w", err)
	}

	data := p.outputTensor.GetData()
	if len(data) < 3 {
		return nil, fmt.Errorf("unexpected output size: %d", len(data))
	}

	return &FaceQuality{
		Quality:    clampF(data[0], 0, 1),
		Expression: clampF(data[1], 0, 1),
		Liveness:   data[2] >= livenessThreshold,
	}, nil
}

func (p *QualityPredictor) Close() {
	if p.session != nil {
		p.session.Destroy()
	}
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
	}
}
