package recognition

import (
	"testing"
	"time"

	"github.com/your-org/rollcall/internal/config"
)

func testTrackingConfig() config.TrackingConfig {
	return config.TrackingConfig{
		CorrelateDescriptor: 0.4,
		CorrelatePosition:   100,
		DriftDescriptor:     0.3,
		DriftPosition:       50,
		Freshness:           5 * time.Second,
		Eviction:            10 * time.Second,
	}
}

func TestTrackerNewFace(t *testing.T) {
	tr := NewFaceTracker("sess", testTrackingConfig())
	now := time.Now()

	d := tr.Observe([]float32{1, 0}, BBox{10, 10, 60, 60}, now)
	if !d.IsNew {
		t.Error("first observation should be a new track")
	}
	if !d.NeedsProcessing {
		t.Error("new track must be processed")
	}
	if d.StableID == "" {
		t.Error("stable id must be assigned")
	}
	if tr.Count() != 1 {
		t.Errorf("Count = %d; want 1", tr.Count())
	}
}

func TestTrackerStationaryFaceNotReprocessed(t *testing.T) {
	tr := NewFaceTracker("sess", testTrackingConfig())
	now := time.Now()
	box := BBox{10, 10, 60, 60}
	desc := []float32{1, 0}

	first := tr.Observe(desc, box, now)
	second := tr.Observe(desc, box, now.Add(time.Second))

	if second.StableID != first.StableID {
		t.Fatalf("stable id changed: %s -> %s", first.StableID, second.StableID)
	}
	if second.IsNew {
		t.Error("second observation reported as new")
	}
	if second.NeedsProcessing {
		t.Error("unchanged face within freshness window should not re-process")
	}
	if tr.Count() != 1 {
		t.Errorf("Count = %d; want 1", tr.Count())
	}
}

func TestTrackerDrift(t *testing.T) {
	tests := []struct {
		name string
		desc []float32
		box  BBox
		want bool
	}{
		{"small move, same face", []float32{1, 0}, BBox{30, 10, 80, 60}, false},
		{"position drift", []float32{1, 0}, BBox{70, 10, 120, 60}, true},
		{"descriptor drift", []float32{1, 0.35}, BBox{10, 10, 60, 60}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewFaceTracker("sess", testTrackingConfig())
			now := time.Now()

			first := tr.Observe([]float32{1, 0}, BBox{10, 10, 60, 60}, now)
			second := tr.Observe(tc.desc, tc.box, now.Add(time.Second))

			if second.StableID != first.StableID {
				t.Fatalf("drifted face lost its track: %s -> %s", first.StableID, second.StableID)
			}
			if second.NeedsProcessing != tc.want {
				t.Errorf("NeedsProcessing = %v; want %v", second.NeedsProcessing, tc.want)
			}
		})
	}
}

func TestTrackerFreshness(t *testing.T) {
	tr := NewFaceTracker("sess", testTrackingConfig())
	now := time.Now()
	box := BBox{10, 10, 60, 60}
	desc := []float32{1, 0}

	tr.Observe(desc, box, now)

	// Within freshness: no re-processing even though nothing changed.
	if d := tr.Observe(desc, box, now.Add(4*time.Second)); d.NeedsProcessing {
		t.Error("re-processed before freshness expired")
	}
	// The 4s observation did not refresh LastProcessed, so at 6s the
	// original pass is stale.
	if d := tr.Observe(desc, box, now.Add(6*time.Second)); !d.NeedsProcessing {
		t.Error("stale track not re-processed after freshness window")
	}
}

func TestTrackerEviction(t *testing.T) {
	tr := NewFaceTracker("sess", testTrackingConfig())
	now := time.Now()

	first := tr.Observe([]float32{1, 0}, BBox{10, 10, 60, 60}, now)

	// Reappearing after the eviction timeout is a new track, not a
	// continuation.
	second := tr.Observe([]float32{1, 0}, BBox{10, 10, 60, 60}, now.Add(11*time.Second))
	if second.StableID == first.StableID {
		t.Error("evicted track was resurrected with the same id")
	}
	if !second.IsNew {
		t.Error("post-eviction observation should be new")
	}
	if tr.Count() != 1 {
		t.Errorf("Count = %d; want 1", tr.Count())
	}
}

func TestTrackerUncorrelatedFacesGetDistinctTracks(t *testing.T) {
	tr := NewFaceTracker("sess", testTrackingConfig())
	now := time.Now()

	a := tr.Observe([]float32{1, 0}, BBox{10, 10, 60, 60}, now)
	// Same descriptor but far away: a different person who looks alike.
	b := tr.Observe([]float32{1, 0}, BBox{400, 10, 450, 60}, now)

	if a.StableID == b.StableID {
		t.Error("distant face joined an existing track")
	}
	if tr.Count() != 2 {
		t.Errorf("Count = %d; want 2", tr.Count())
	}
}
