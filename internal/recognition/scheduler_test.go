package recognition

import (
	"image"
	"testing"
	"time"

	"github.com/your-org/rollcall/internal/config"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		FrameInterval: 3,
		CacheTTL:      time.Second,
		ROIPadding:    50,
	}
}

func TestSchedulerShouldProcess(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		index    uint64
		capture  bool
		want     bool
	}{
		{"every third frame: hit", 3, 0, false, true},
		{"every third frame: skip 1", 3, 1, false, false},
		{"every third frame: skip 2", 3, 2, false, false},
		{"every third frame: hit again", 3, 3, false, true},
		{"capture overrides skipping", 3, 1, true, true},
		{"interval one processes all", 1, 7, false, true},
		{"interval zero processes all", 0, 7, false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testSchedulerConfig()
			cfg.FrameInterval = tc.interval
			s := NewDetectionScheduler(cfg)

			if got := s.ShouldProcess(tc.index, tc.capture); got != tc.want {
				t.Errorf("ShouldProcess(%d, %v) = %v; want %v", tc.index, tc.capture, got, tc.want)
			}
		})
	}
}

func TestSchedulerCache(t *testing.T) {
	s := NewDetectionScheduler(testSchedulerConfig())
	now := time.Now()
	calls := 0
	compute := func() ([]Detection, error) {
		calls++
		return []Detection{{BBox: BBox{1, 2, 3, 4}, Confidence: 0.9}}, nil
	}

	// First call computes, second within the TTL is served from cache.
	if _, err := s.GetOrCompute("k", now, compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	dets, err := s.GetOrCompute("k", now.Add(500*time.Millisecond), compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times; want 1", calls)
	}
	if len(dets) != 1 || dets[0].Confidence != 0.9 {
		t.Errorf("cached result corrupted: %+v", dets)
	}

	// Past the TTL the entry is stale and recomputed.
	if _, err := s.GetOrCompute("k", now.Add(2*time.Second), compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if calls != 2 {
		t.Errorf("compute called %d times after TTL; want 2", calls)
	}
}

func TestCacheKeyBuckets(t *testing.T) {
	base := time.UnixMilli(1_000_000)

	if CacheKey("s", base) != CacheKey("s", base.Add(100*time.Millisecond)) {
		t.Error("frames 100ms apart should share a bucket")
	}
	if CacheKey("s", base) == CacheKey("s", base.Add(300*time.Millisecond)) {
		t.Error("frames 300ms apart should not share a bucket")
	}
	if CacheKey("a", base) == CacheKey("b", base) {
		t.Error("different sessions must not share cache keys")
	}
}

func TestSchedulerRegionOfInterest(t *testing.T) {
	s := NewDetectionScheduler(testSchedulerConfig())
	bounds := image.Rect(0, 0, 1000, 500)

	// No history: centered region covering 60% of the frame.
	roi := s.RegionOfInterest(bounds)
	want := image.Rect(200, 100, 800, 400)
	if roi != want {
		t.Errorf("initial ROI = %v; want %v", roi, want)
	}

	// After detections: union of boxes expanded by the padding.
	s.NoteDetections([]Detection{
		{BBox: BBox{100, 100, 200, 200}},
		{BBox: BBox{300, 150, 400, 250}},
	})
	roi = s.RegionOfInterest(bounds)
	want = image.Rect(50, 50, 450, 300)
	if roi != want {
		t.Errorf("padded ROI = %v; want %v", roi, want)
	}

	// ROI is clamped to the frame.
	s.NoteDetections([]Detection{{BBox: BBox{0, 0, 990, 490}}})
	roi = s.RegionOfInterest(bounds)
	if !roi.In(bounds) {
		t.Errorf("ROI %v exceeds bounds %v", roi, bounds)
	}

	// An empty pass resets to the centered first guess.
	s.NoteDetections(nil)
	roi = s.RegionOfInterest(bounds)
	if roi != image.Rect(200, 100, 800, 400) {
		t.Errorf("ROI after reset = %v; want centered region", roi)
	}
}

func TestSchedulerReset(t *testing.T) {
	s := NewDetectionScheduler(testSchedulerConfig())
	now := time.Now()
	calls := 0

	_, _ = s.GetOrCompute("k", now, func() ([]Detection, error) {
		calls++
		return nil, nil
	})
	s.NoteDetections([]Detection{{BBox: BBox{10, 10, 20, 20}}})

	s.Reset()

	_, _ = s.GetOrCompute("k", now, func() ([]Detection, error) {
		calls++
		return nil, nil
	})
	if calls != 2 {
		t.Errorf("cache survived Reset; compute called %d times, want 2", calls)
	}
	if roi := s.RegionOfInterest(image.Rect(0, 0, 1000, 500)); roi != image.Rect(200, 100, 800, 400) {
		t.Errorf("ROI state survived Reset: %v", roi)
	}
}
