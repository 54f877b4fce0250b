package recognition

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
)

// Detection is one face found in one frame. Transient: discarded once the
// frame's processing completes.
type Detection struct {
	BBox       BBox
	Confidence float32
}

// Detector is the detection capability boundary (local ONNX model or a
// remote inference call). Two accuracy/latency tiers are expected.
type Detector interface {
	Detect(ctx context.Context, img image.Image, roi image.Rectangle) ([]Detection, error)
}

// Embedder computes a descriptor for a face crop.
type Embedder interface {
	Embed(ctx context.Context, img image.Image, box BBox) ([]float32, error)
}

// Frame is one input to ProcessFrame.
type Frame struct {
	Image     image.Image
	Index     uint64
	Timestamp time.Time
	Capture   bool   // explicit capture: full rate, accurate tier
	SourceKey string // set for still images; keys the detection cache
}

// DetectionOutcome is the per-face result of one processed frame. Every
// selected detection yields one outcome; Fresh distinguishes a full
// matching pass from the track's cached identity.
type DetectionOutcome struct {
	StableID   string
	Box        BBox
	Recognized bool
	StudentID  *uuid.UUID
	Confidence float32
	IsNew      bool
	Fresh      bool
}

// FrameResult is the structured output of one ProcessFrame call.
type FrameResult struct {
	Processed bool // false when the scheduler skipped the frame
	FaceCount int  // all detections, before any mode cap
	Outcomes  []DetectionOutcome
}

// Engine orchestrates one session's recognition: scheduler -> detector ->
// tracker -> gallery match. One engine per capture session; all mutable
// state (tracker, scheduler, in-flight flag) lives here, constructed at
// session start and discarded at session stop.
type Engine struct {
	fast     Detector // low-latency tier for continuous preview
	accurate Detector // high-accuracy tier for explicit captures
	embedder Embedder
	index    *SimilarityIndex

	tracker   *FaceTracker
	scheduler *DetectionScheduler
	mode      models.CaptureMode
	maxFaces  int

	inFlight atomic.Bool
	stopped  atomic.Bool
}

// NewEngine builds a session-scoped engine. fast may equal accurate when
// only one detector tier is available.
func NewEngine(
	sessionID string,
	mode models.CaptureMode,
	fast, accurate Detector,
	embedder Embedder,
	index *SimilarityIndex,
	trackCfg config.TrackingConfig,
	schedCfg config.SchedulerConfig,
	maxFacesClassroom int,
) *Engine {
	maxFaces := maxFacesClassroom
	switch mode {
	case models.ModeSingle:
		maxFaces = 1
	case models.ModeMultiple:
		maxFaces = 10
	}

	return &Engine{
		fast:      fast,
		accurate:  accurate,
		embedder:  embedder,
		index:     index,
		tracker:   NewFaceTracker(sessionID, trackCfg),
		scheduler: NewDetectionScheduler(schedCfg),
		mode:      mode,
		maxFaces:  maxFaces,
	}
}

// Stop marks the engine's session as stopped. An in-flight pass is allowed
// to finish but its result is discarded, not applied.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// TrackCount exposes the tracker's active track count for metrics.
func (e *Engine) TrackCount() int {
	return e.tracker.Count()
}

// ProcessFrame runs one frame through the pipeline. Only one pass may be
// in flight per engine; a concurrent call fails with ErrBusy rather than
// racing the same video source. A skipped frame returns Processed=false
// with no error.
func (e *Engine) ProcessFrame(ctx context.Context, frame Frame) (FrameResult, error) {
	if e.stopped.Load() {
		return FrameResult{}, ErrSessionStopped
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return FrameResult{}, ErrBusy
	}
	defer e.inFlight.Store(false)

	if !e.scheduler.ShouldProcess(frame.Index, frame.Capture) {
		return FrameResult{}, nil
	}

	detector := e.fast
	if frame.Capture {
		detector = e.accurate
	}

	bounds := frame.Image.Bounds()
	roi := e.scheduler.RegionOfInterest(bounds)
	if frame.Capture {
		// Captures must be correct, not fast: search the whole frame.
		roi = bounds
	}

	key := frame.SourceKey
	if key == "" {
		key = CacheKey("video", frame.Timestamp)
	}

	detections, err := e.scheduler.GetOrCompute(key, frame.Timestamp, func() ([]Detection, error) {
		return detector.Detect(ctx, frame.Image, roi)
	})
	if err != nil {
		return FrameResult{}, fmt.Errorf("detect: %w", err)
	}
	e.scheduler.NoteDetections(detections)

	result := FrameResult{Processed: true, FaceCount: len(detections)}
	if len(detections) == 0 {
		e.tracker.Sweep(frame.Timestamp)
		return result, nil
	}

	selected := e.selectDetections(detections)

	for _, det := range selected {
		descriptor, err := e.embedder.Embed(ctx, frame.Image, det.BBox)
		if err != nil {
			return result, fmt.Errorf("embed: %w", err)
		}

		decision := e.tracker.Observe(descriptor, det.BBox, frame.Timestamp)
		outcome := DetectionOutcome{
			StableID: decision.StableID,
			Box:      det.BBox,
			IsNew:    decision.IsNew,
		}

		if decision.NeedsProcessing {
			outcome.Fresh = true
			match, ok, err := e.index.Match(descriptor)
			switch {
			case err != nil:
				// Dimension mismatch is corrupt data, not a pass failure:
				// this face stays unrecognized, the rest proceed.
				e.tracker.RememberMatch(decision.StableID, nil, 0)
			case ok:
				id := match.StudentID
				outcome.Recognized = true
				outcome.StudentID = &id
				outcome.Confidence = match.Score
				e.tracker.RememberMatch(decision.StableID, &id, match.Score)
			default:
				e.tracker.RememberMatch(decision.StableID, nil, 0)
			}
		} else {
			// Unchanged since its last pass: report the cached identity
			// so the face never vanishes from consumers' view.
			outcome.StudentID, outcome.Confidence, outcome.Recognized = e.tracker.LastMatch(decision.StableID)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if e.stopped.Load() {
		// Session was stopped mid-pass; the result must not reach decisions.
		return FrameResult{}, ErrSessionStopped
	}

	return result, nil
}

// selectDetections applies the per-mode cap. Single mode keeps only the
// best-confidence detection (the caller decides fallback behavior when
// FaceCount disagrees); other modes keep the top maxFaces by confidence
// but preserve detector source order within the kept set.
func (e *Engine) selectDetections(detections []Detection) []Detection {
	if len(detections) <= e.maxFaces {
		return detections
	}

	ranked := make([]int, len(detections))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return detections[ranked[a]].Confidence > detections[ranked[b]].Confidence
	})

	keep := make(map[int]bool, e.maxFaces)
	for _, i := range ranked[:e.maxFaces] {
		keep[i] = true
	}

	out := make([]Detection, 0, e.maxFaces)
	for i, d := range detections {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}
