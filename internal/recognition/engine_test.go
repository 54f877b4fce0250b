package recognition

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
)

type fakeDetector struct {
	dets  []Detection
	calls int
}

func (f *fakeDetector) Detect(ctx context.Context, img image.Image, roi image.Rectangle) ([]Detection, error) {
	f.calls++
	return f.dets, nil
}

type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, img image.Image, box BBox) ([]float32, error) {
	return f.vec, nil
}

func testFrame(index uint64, capture bool) Frame {
	return Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 640, 480)),
		Index:     index,
		Timestamp: time.Now(),
		Capture:   capture,
	}
}

func newTestEngine(mode models.CaptureMode, fast, accurate Detector, emb Embedder, index *SimilarityIndex) *Engine {
	return NewEngine("sess", mode, fast, accurate, emb, index,
		config.TrackingConfig{
			CorrelateDescriptor: 0.4,
			CorrelatePosition:   100,
			DriftDescriptor:     0.3,
			DriftPosition:       50,
			Freshness:           5 * time.Second,
			Eviction:            10 * time.Second,
		},
		config.SchedulerConfig{
			FrameInterval: 3,
			CacheTTL:      time.Second,
			ROIPadding:    50,
		},
		50,
	)
}

func TestEngineRecognizesEnrolledStudent(t *testing.T) {
	student := uuid.New()
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	if err := index.Add(student, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	det := &fakeDetector{dets: []Detection{{BBox: BBox{100, 100, 200, 200}, Confidence: 0.95}}}
	emb := &fakeEmbedder{vec: []float32{1, 0, 0, 0}}
	e := newTestEngine(models.ModeSingle, det, det, emb, index)

	result, err := e.ProcessFrame(context.Background(), testFrame(0, false))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if !result.Processed {
		t.Fatal("frame index 0 should be processed")
	}
	if result.FaceCount != 1 {
		t.Fatalf("FaceCount = %d; want 1", result.FaceCount)
	}
	if len(result.Outcomes) != 1 {
		t.Fatalf("Outcomes = %d; want 1", len(result.Outcomes))
	}

	out := result.Outcomes[0]
	if !out.Recognized || out.StudentID == nil || *out.StudentID != student {
		t.Errorf("outcome = %+v; want recognized student %s", out, student)
	}
	if !out.IsNew {
		t.Error("first sighting should be a new track")
	}
	if !out.Fresh {
		t.Error("first sighting should come from a full matching pass")
	}
}

func TestEngineStationaryFaceKeepsIdentity(t *testing.T) {
	student := uuid.New()
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	if err := index.Add(student, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	det := &fakeDetector{dets: []Detection{{BBox: BBox{100, 100, 200, 200}, Confidence: 0.95}}}
	emb := &fakeEmbedder{vec: []float32{1, 0, 0, 0}}
	e := newTestEngine(models.ModeSingle, det, det, emb, index)

	ts := time.Now()
	frame := testFrame(0, false)
	frame.Timestamp = ts
	first, err := e.ProcessFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if len(first.Outcomes) != 1 || !first.Outcomes[0].Fresh {
		t.Fatalf("first frame outcomes = %+v; want one fresh outcome", first.Outcomes)
	}

	// Same face, same spot, two seconds later: the matching pass is
	// skipped but the outcome must still carry box and identity.
	frame2 := testFrame(3, false)
	frame2.Timestamp = ts.Add(2 * time.Second)
	second, err := e.ProcessFrame(context.Background(), frame2)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if len(second.Outcomes) != 1 {
		t.Fatalf("stationary face vanished: outcomes = %d; want 1", len(second.Outcomes))
	}

	out := second.Outcomes[0]
	if out.Fresh {
		t.Error("unchanged face should use the cached identity, not a new pass")
	}
	if out.IsNew {
		t.Error("second sighting reported as new")
	}
	if !out.Recognized || out.StudentID == nil || *out.StudentID != student {
		t.Errorf("cached outcome = %+v; want recognized student %s", out, student)
	}
	if out.StableID != first.Outcomes[0].StableID {
		t.Errorf("stable id changed: %s -> %s", first.Outcomes[0].StableID, out.StableID)
	}
}

func TestEngineUnrecognizedFace(t *testing.T) {
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0) // empty gallery
	det := &fakeDetector{dets: []Detection{{BBox: BBox{100, 100, 200, 200}, Confidence: 0.9}}}
	emb := &fakeEmbedder{vec: []float32{1, 0, 0, 0}}
	e := newTestEngine(models.ModeSingle, det, det, emb, index)

	result, err := e.ProcessFrame(context.Background(), testFrame(0, false))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if len(result.Outcomes) != 1 {
		t.Fatalf("Outcomes = %d; want 1", len(result.Outcomes))
	}
	out := result.Outcomes[0]
	if out.Recognized || out.StudentID != nil {
		t.Errorf("empty gallery produced a recognition: %+v", out)
	}
	if !out.IsNew {
		t.Error("unrecognized face should still get a new track")
	}
}

func TestEngineSkipsPreviewFrames(t *testing.T) {
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	det := &fakeDetector{}
	e := newTestEngine(models.ModeSingle, det, det, &fakeEmbedder{vec: make([]float32, 4)}, index)

	result, err := e.ProcessFrame(context.Background(), testFrame(1, false))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if result.Processed {
		t.Error("frame index 1 with interval 3 should be skipped")
	}
	if det.calls != 0 {
		t.Errorf("detector ran on a skipped frame (%d calls)", det.calls)
	}
}

func TestEngineCaptureUsesAccurateTier(t *testing.T) {
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	fast := &fakeDetector{}
	accurate := &fakeDetector{dets: []Detection{{BBox: BBox{10, 10, 50, 50}, Confidence: 0.9}}}
	e := newTestEngine(models.ModeSingle, fast, accurate, &fakeEmbedder{vec: make([]float32, 4)}, index)

	// Index 1 would normally be skipped; capture overrides.
	result, err := e.ProcessFrame(context.Background(), testFrame(1, true))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if !result.Processed {
		t.Fatal("explicit capture must be processed")
	}
	if fast.calls != 0 || accurate.calls != 1 {
		t.Errorf("detector calls fast=%d accurate=%d; want 0/1", fast.calls, accurate.calls)
	}
}

func TestEngineSingleModeKeepsBestFace(t *testing.T) {
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	det := &fakeDetector{dets: []Detection{
		{BBox: BBox{10, 10, 50, 50}, Confidence: 0.7},
		{BBox: BBox{300, 10, 350, 50}, Confidence: 0.95},
	}}
	e := newTestEngine(models.ModeSingle, det, det, &fakeEmbedder{vec: make([]float32, 4)}, index)

	result, err := e.ProcessFrame(context.Background(), testFrame(0, false))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	// FaceCount reports everything the detector saw; only the best face
	// continues through the pipeline.
	if result.FaceCount != 2 {
		t.Errorf("FaceCount = %d; want 2", result.FaceCount)
	}
	if len(result.Outcomes) != 1 {
		t.Fatalf("Outcomes = %d; want 1", len(result.Outcomes))
	}
	if result.Outcomes[0].Box != (BBox{300, 10, 350, 50}) {
		t.Errorf("kept box %v; want the higher-confidence one", result.Outcomes[0].Box)
	}
}

func TestEngineStopDiscardsResults(t *testing.T) {
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	det := &fakeDetector{}
	e := newTestEngine(models.ModeSingle, det, det, &fakeEmbedder{vec: make([]float32, 4)}, index)

	e.Stop()

	_, err := e.ProcessFrame(context.Background(), testFrame(0, false))
	if !errors.Is(err, ErrSessionStopped) {
		t.Fatalf("ProcessFrame after Stop: %v; want ErrSessionStopped", err)
	}
}

func TestEngineCachesBurstFrames(t *testing.T) {
	index := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	det := &fakeDetector{dets: []Detection{{BBox: BBox{10, 10, 50, 50}, Confidence: 0.9}}}
	e := newTestEngine(models.ModeSingle, det, det, &fakeEmbedder{vec: make([]float32, 4)}, index)

	ts := time.Now()
	frame := testFrame(0, false)
	frame.Timestamp = ts
	if _, err := e.ProcessFrame(context.Background(), frame); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}

	// Same sub-second bucket: detection is served from cache.
	frame2 := testFrame(3, false)
	frame2.Timestamp = ts
	if _, err := e.ProcessFrame(context.Background(), frame2); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}

	if det.calls != 1 {
		t.Errorf("detector called %d times for burst frames; want 1", det.calls)
	}
}
