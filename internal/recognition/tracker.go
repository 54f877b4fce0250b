package recognition

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/config"
)

// BBox is a bounding box as x1, y1, x2, y2 pixel coordinates.
type BBox [4]float32

// CenterDistance returns the euclidean distance between two box centres.
func (b BBox) CenterDistance(o BBox) float64 {
	dx := float64((b[0]+b[2])/2 - (o[0]+o[2])/2)
	dy := float64((b[1]+b[3])/2 - (o[1]+o[3])/2)
	return math.Sqrt(dx*dx + dy*dy)
}

// ManhattanShift returns |dx|+|dy| of the top-left corner, the movement
// measure used for the re-processing decision.
func (b BBox) ManhattanShift(o BBox) float64 {
	return math.Abs(float64(b[0]-o[0])) + math.Abs(float64(b[1]-o[1]))
}

// TrackedFace is the tracker's memory of a previously seen detection,
// including the gallery result of its last full matching pass so frames
// that skip re-processing still know who the face is.
type TrackedFace struct {
	ID            string
	Descriptor    []float32
	Box           BBox
	LastSeen      time.Time
	LastProcessed time.Time

	Recognized bool
	StudentID  *uuid.UUID
	Confidence float32
}

// TrackingDecision tells the caller whether a detection needs the full
// matching pass or has already been handled recently.
type TrackingDecision struct {
	StableID        string
	IsNew           bool
	NeedsProcessing bool
}

// FaceTracker assigns stable ids to detections across frames so a
// stationary face is not re-matched every frame. One tracker per capture
// session; it is mutated from a single scheduling context and needs no
// internal locking.
//
// Correlation is greedy: the first existing track within both the
// descriptor and position thresholds wins. No bipartite assignment is
// attempted; under dense scenes of similar close faces this can mis-assign
// ids, an accepted trade at classroom face counts.
type FaceTracker struct {
	cfg    config.TrackingConfig
	tracks map[string]*TrackedFace
	order  []string // insertion order, for deterministic greedy correlation
	nextID int
	prefix string
}

// NewFaceTracker creates a tracker scoped to one session.
func NewFaceTracker(sessionID string, cfg config.TrackingConfig) *FaceTracker {
	return &FaceTracker{
		cfg:    cfg,
		tracks: make(map[string]*TrackedFace),
		prefix: sessionID,
	}
}

// Observe correlates a detection with the tracked set and decides whether
// it needs the expensive matching pass. States: a track unseen for longer
// than the eviction timeout is dropped; a correlated track refreshes its
// box and timestamp; anything uncorrelated becomes a new track.
func (t *FaceTracker) Observe(descriptor []float32, box BBox, now time.Time) TrackingDecision {
	t.Sweep(now)

	for _, id := range t.order {
		tr, ok := t.tracks[id]
		if !ok {
			continue
		}
		if euclideanDistance(descriptor, tr.Descriptor) >= float32(t.cfg.CorrelateDescriptor) {
			continue
		}
		if box.CenterDistance(tr.Box) >= t.cfg.CorrelatePosition {
			continue
		}

		// Existing track. Decide whether it changed enough to re-process.
		needs := false
		if euclideanDistance(descriptor, tr.Descriptor) > float32(t.cfg.DriftDescriptor) {
			needs = true
		}
		if box.ManhattanShift(tr.Box) > t.cfg.DriftPosition {
			needs = true
		}
		if now.Sub(tr.LastProcessed) > t.cfg.Freshness {
			needs = true
		}

		tr.Box = box
		tr.LastSeen = now
		if needs {
			tr.Descriptor = descriptor
			tr.LastProcessed = now
		}

		return TrackingDecision{StableID: tr.ID, NeedsProcessing: needs}
	}

	// No correlatable track: first observation.
	t.nextID++
	id := fmt.Sprintf("%s_%d", t.prefix, t.nextID)
	t.tracks[id] = &TrackedFace{
		ID:            id,
		Descriptor:    descriptor,
		Box:           box,
		LastSeen:      now,
		LastProcessed: now,
	}
	t.order = append(t.order, id)

	return TrackingDecision{StableID: id, IsNew: true, NeedsProcessing: true}
}

// RememberMatch stores the gallery result of a matching pass on the
// track. A nil studentID records "looked, found nobody".
func (t *FaceTracker) RememberMatch(id string, studentID *uuid.UUID, confidence float32) {
	tr, ok := t.tracks[id]
	if !ok {
		return
	}
	tr.StudentID = studentID
	tr.Confidence = confidence
	tr.Recognized = studentID != nil
}

// LastMatch returns the track's cached gallery result.
func (t *FaceTracker) LastMatch(id string) (studentID *uuid.UUID, confidence float32, recognized bool) {
	tr, ok := t.tracks[id]
	if !ok {
		return nil, 0, false
	}
	return tr.StudentID, tr.Confidence, tr.Recognized
}

// Sweep evicts tracks not observed within the inactivity timeout.
func (t *FaceTracker) Sweep(now time.Time) {
	kept := t.order[:0]
	for _, id := range t.order {
		tr, ok := t.tracks[id]
		if !ok {
			continue
		}
		if now.Sub(tr.LastSeen) > t.cfg.Eviction {
			delete(t.tracks, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

// Count returns the number of active tracks.
func (t *FaceTracker) Count() int {
	return len(t.tracks)
}
