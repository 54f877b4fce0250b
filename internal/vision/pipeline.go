package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/recognition"
	"github.com/your-org/rollcall/internal/storage"
)

const (
	fastInputSize     = 320 // preview tier: feel instantaneous
	accurateInputSize = 640 // capture tier: be correct
)

// Pipeline orchestrates the full frame flow for the worker:
// load frame -> engine (detect/track/match) -> quality -> decide ->
// record -> snapshot -> alert rules -> emit event.
//
// All per-session engines are owned here and torn down on session stop;
// nothing lives in package globals.
type Pipeline struct {
	loader   *recognition.ModelLoader
	fast     *Detector
	accurate *Detector
	embedder *Embedder
	quality  *QualityPredictor

	index      *recognition.SimilarityIndex
	decider    *attendance.Decider
	rules      *attendance.RuleEngine
	dispatcher *attendance.Dispatcher

	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer

	cfg      config.VisionConfig
	trackCfg config.TrackingConfig
	schedCfg config.SchedulerConfig

	mu      sync.Mutex
	engines map[uuid.UUID]*recognition.Engine
}

// NewPipeline wires the pipeline; models are loaded lazily on first use
// through the loader's retry state machine.
func NewPipeline(
	cfg config.VisionConfig,
	trackCfg config.TrackingConfig,
	schedCfg config.SchedulerConfig,
	index *recognition.SimilarityIndex,
	decider *attendance.Decider,
	rules *attendance.RuleEngine,
	dispatcher *attendance.Dispatcher,
	db *storage.PostgresStore,
	minio *storage.MinIOStore,
	producer *queue.Producer,
) *Pipeline {

	p := &Pipeline{
		index:      index,
		decider:    decider,
		rules:      rules,
		dispatcher: dispatcher,
		db:         db,
		minio:      minio,
		producer:   producer,
		cfg:        cfg,
		trackCfg:   trackCfg,
		schedCfg:   schedCfg,
		engines:    make(map[uuid.UUID]*recognition.Engine),
	}

	p.loader = recognition.NewModelLoader(p.loadModels,
		cfg.LoadTimeout, cfg.LoadMaxAttempts, cfg.LoadBackoffCap)

	return p
}

// loadModels initialises all ONNX sessions. Called by the model loader
// under its timeout; partially created sessions are released on failure.
func (p *Pipeline) loadModels(ctx context.Context) error {
	detPath := filepath.Join(p.cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(p.cfg.ModelsDir, "w600k_r50.onnx")
	qualPath := filepath.Join(p.cfg.ModelsDir, "quality.onnx")

	slog.Info("loading detection models", "path", detPath)
	fast, err := NewDetector(detPath, fastInputSize, float32(p.cfg.DetectionThreshold))
	if err != nil {
		return fmt.Errorf("load fast detector: %w", err)
	}
	accurate, err := NewDetector(detPath, accurateInputSize, float32(p.cfg.DetectionThreshold))
	if err != nil {
		fast.Close()
		return fmt.Errorf("load accurate detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		fast.Close()
		accurate.Close()
		return fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("loading quality model", "path", qualPath)
	qual, err := NewQualityPredictor(qualPath)
	if err != nil {
		fast.Close()
		accurate.Close()
		emb.Close()
		return fmt.Errorf("load quality: %w", err)
	}

	p.fast = fast
	p.accurate = accurate
	p.embedder = emb
	p.quality = qual
	return nil
}

// RefreshGallery reloads the in-memory gallery from the store. Run at
// startup and periodically; enrollment through the API lands on the next
// refresh.
func (p *Pipeline) RefreshGallery(ctx context.Context) error {
	descriptors, err := p.db.ListAllDescriptors(ctx)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}
	p.index.Reload(descriptors)
	slog.Info("gallery refreshed", "descriptors", p.index.Len())
	return nil
}

// ProcessFrame handles one frame task from the queue.
func (p *Pipeline) ProcessFrame(ctx context.Context, task models.FrameTask) error {
	if err := p.loader.Ensure(ctx); err != nil {
		return err
	}

	frameData, err := p.minio.GetObject(ctx, task.FrameRef)
	if err != nil {
		return fmt.Errorf("load frame: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(frameData))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(frameData))
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
	}

	engine := p.getEngine(task.SessionID, task.Mode)

	start := time.Now()
	result, err := engine.ProcessFrame(ctx, recognition.Frame{
		Image:     img,
		Index:     task.FrameIndex,
		Timestamp: task.Timestamp,
		Capture:   task.Capture,
	})
	observability.InferenceDuration.WithLabelValues("frame").Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, recognition.ErrBusy):
		// Another worker is mid-pass on this session; drop, don't queue.
		observability.FramesSkipped.WithLabelValues(task.SessionID.String()).Inc()
		return nil
	case errors.Is(err, recognition.ErrSessionStopped):
		// Result of a stopped session must not reach decisions.
		return nil
	case err != nil:
		return err
	}

	sessionLabel := task.SessionID.String()
	observability.FramesProcessed.WithLabelValues(sessionLabel).Inc()
	observability.TrackedFaces.WithLabelValues(sessionLabel).Set(float64(engine.TrackCount()))

	if !result.Processed || result.FaceCount == 0 {
		return nil
	}
	observability.FacesDetected.WithLabelValues(sessionLabel).Add(float64(result.FaceCount))

	cutoff := p.decider.CutoffFor(ctx)

	for _, outcome := range result.Outcomes {
		if err := p.handleOutcome(ctx, img, task, outcome, result.FaceCount, cutoff); err != nil {
			slog.Error("handle outcome", "error", err, "track", outcome.StableID)
		}
	}

	return nil
}

// handleOutcome turns one per-face outcome into an attendance decision,
// a persisted event and any alerts.
func (p *Pipeline) handleOutcome(
	ctx context.Context,
	img image.Image,
	task models.FrameTask,
	outcome recognition.DetectionOutcome,
	faceCount int,
	cutoff attendance.Cutoff,
) error {

	status := p.decider.Decide(outcome.Recognized, task.Timestamp, cutoff)

	// A track that skipped the matching pass already produced its event
	// and snapshot on an earlier frame. Keep the sighting flowing to
	// dashboards, but write nothing new.
	if !outcome.Fresh {
		p.publishOutcome(ctx, task, outcome, status, &FaceQuality{}, faceCount, "")
		return nil
	}

	// An unknown face is one attendance event on first sight of its
	// track, not one per re-processing; later passes only re-publish.
	if !outcome.Recognized && !outcome.IsNew {
		p.publishOutcome(ctx, task, outcome, status, &FaceQuality{}, faceCount, "")
		return nil
	}

	quality := &FaceQuality{Quality: 1, Liveness: true}
	if q, err := p.quality.Predict(ctx, img, outcome.Box); err != nil {
		slog.Warn("quality predict failed", "error", err, "track", outcome.StableID)
	} else {
		quality = q
	}

	snapshotKey := fmt.Sprintf("snapshots/%s/%s_%s.jpg",
		task.SessionID, outcome.StableID, task.Timestamp.Format("20060102_150405"))
	if crop := cropFace(img, [4]float32(outcome.Box)); crop != nil {
		if err := p.minio.PutObject(ctx, snapshotKey, encodeJPEG(crop, 85), "image/jpeg"); err != nil {
			slog.Warn("save snapshot", "error", err)
			snapshotKey = ""
		}
	}

	event, err := p.decider.Record(ctx, outcome.StudentID, task.SessionID,
		status, outcome.Confidence, snapshotKey, task.Timestamp)
	if errors.Is(err, attendance.ErrDuplicateArrival) {
		return nil
	}
	if err != nil {
		return err
	}

	if outcome.Recognized {
		observability.FacesRecognized.WithLabelValues(task.SessionID.String()).Inc()
	}

	evCtx := attendance.EventContext{
		Recognized: outcome.Recognized,
		Status:     status,
		Quality:    quality.Quality,
		Expression: quality.Expression,
		FaceCount:  faceCount,
		Liveness:   quality.Liveness,
		TimeOfDay:  task.Timestamp.Format("15:04"),
	}
	alerts := p.rules.Evaluate(event, evCtx)
	p.dispatcher.Dispatch(ctx, alerts)

	p.publishOutcome(ctx, task, outcome, status, quality, faceCount, snapshotKey)
	return nil
}

// publishOutcome emits one per-face sighting on the events stream for
// WebSocket fan-out.
func (p *Pipeline) publishOutcome(
	ctx context.Context,
	task models.FrameTask,
	outcome recognition.DetectionOutcome,
	status models.AttendanceStatus,
	quality *FaceQuality,
	faceCount int,
	snapshotKey string,
) {
	result := models.RecognitionOutcome{
		SessionID:   task.SessionID,
		TrackID:     outcome.StableID,
		Timestamp:   task.Timestamp,
		BBox:        [4]float32(outcome.Box),
		Recognized:  outcome.Recognized,
		StudentID:   outcome.StudentID,
		Confidence:  outcome.Confidence,
		Status:      status,
		Quality:     quality.Quality,
		Expression:  quality.Expression,
		Liveness:    quality.Liveness,
		FaceCount:   faceCount,
		SnapshotKey: snapshotKey,
	}
	if err := p.producer.PublishEvent(ctx, task.SessionID.String(), result); err != nil {
		slog.Error("publish event", "error", err, "track", outcome.StableID)
	}
}

// EmbedImage extracts a descriptor from a standalone image, for the
// enrollment endpoint. Uses the accurate detector tier.
func (p *Pipeline) EmbedImage(imageData []byte) ([]float32, float32, error) {
	ctx := context.Background()
	if err := p.loader.Ensure(ctx); err != nil {
		return nil, 0, err
	}

	img, err := jpeg.Decode(bytes.NewReader(imageData))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, 0, fmt.Errorf("decode image: %w", err)
		}
	}

	detections, err := p.accurate.Detect(ctx, img, img.Bounds())
	if err != nil {
		return nil, 0, fmt.Errorf("detect: %w", err)
	}
	if len(detections) == 0 {
		return nil, 0, fmt.Errorf("no face detected in image")
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	embedding, err := p.embedder.Embed(ctx, img, best.BBox)
	if err != nil {
		return nil, 0, fmt.Errorf("embed: %w", err)
	}

	return embedding, best.Confidence, nil
}

// getEngine returns the session's engine, creating it on first frame.
func (p *Pipeline) getEngine(sessionID uuid.UUID, mode models.CaptureMode) *recognition.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.engines[sessionID]; ok {
		return e
	}
	e := recognition.NewEngine(sessionID.String(), mode,
		p.fast, p.accurate, p.embedder, p.index,
		p.trackCfg, p.schedCfg, p.cfg.MaxFacesClassroom)
	p.engines[sessionID] = e
	return e
}

// StopSession tears down the session's engine. Its in-flight pass, if
// any, finishes but is discarded.
func (p *Pipeline) StopSession(sessionID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.engines[sessionID]; ok {
		e.Stop()
		delete(p.engines, sessionID)
		observability.TrackedFaces.DeleteLabelValues(sessionID.String())
	}
}

// Close releases all ONNX sessions.
func (p *Pipeline) Close() {
	if p.fast != nil {
		p.fast.Close()
	}
	if p.accurate != nil {
		p.accurate.Close()
	}
	if p.embedder != nil {
		p.embedder.Close()
	}
	if p.quality != nil {
		p.quality.Close()
	}
}
