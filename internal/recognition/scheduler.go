package recognition

import (
	"fmt"
	"image"
	"time"

	"github.com/your-org/rollcall/internal/config"
)

// DetectionScheduler bounds detection cost: frame skipping in preview
// mode, short-TTL result caching, and region-of-interest narrowing.
// Owned by one session's engine; not safe for concurrent use.
type DetectionScheduler struct {
	cfg     config.SchedulerConfig
	cache   map[string]cacheEntry
	lastROI *image.Rectangle
}

type cacheEntry struct {
	detections []Detection
	stored     time.Time
}

func NewDetectionScheduler(cfg config.SchedulerConfig) *DetectionScheduler {
	return &DetectionScheduler{
		cfg:   cfg,
		cache: make(map[string]cacheEntry),
	}
}

// ShouldProcess reports whether this frame is worth a detection pass.
// Preview mode processes every Nth frame; an explicit capture always
// processes. Excess frames are dropped, never queued.
func (s *DetectionScheduler) ShouldProcess(frameIndex uint64, capture bool) bool {
	if capture {
		return true
	}
	n := uint64(s.cfg.FrameInterval)
	if n <= 1 {
		return true
	}
	return frameIndex%n == 0
}

// CacheKey buckets video frames into sub-second windows so bursts of
// near-identical frames share one detection result. Still images should
// use their source key directly.
func CacheKey(sessionID string, ts time.Time) string {
	return fmt.Sprintf("%s/%d", sessionID, ts.UnixMilli()/250)
}

// GetOrCompute returns cached detections for key when fresh, otherwise
// runs compute and caches its result. Entries older than the TTL are
// recomputed.
func (s *DetectionScheduler) GetOrCompute(key string, now time.Time, compute func() ([]Detection, error)) ([]Detection, error) {
	if e, ok := s.cache[key]; ok && now.Sub(e.stored) <= s.cfg.CacheTTL {
		return e.detections, nil
	}

	dets, err := compute()
	if err != nil {
		return nil, err
	}

	s.evictStale(now)
	s.cache[key] = cacheEntry{detections: dets, stored: now}
	return dets, nil
}

func (s *DetectionScheduler) evictStale(now time.Time) {
	for k, e := range s.cache {
		if now.Sub(e.stored) > s.cfg.CacheTTL {
			delete(s.cache, k)
		}
	}
}

// RegionOfInterest returns the sub-rectangle worth detecting in. With a
// previous detection the last known boxes expanded by the configured
// padding are used; without one, a centered region covering 60% of the
// frame is the first guess. The returned rectangle is clamped to bounds.
func (s *DetectionScheduler) RegionOfInterest(bounds image.Rectangle) image.Rectangle {
	if s.lastROI != nil {
		pad := s.cfg.ROIPadding
		r := image.Rect(
			s.lastROI.Min.X-pad,
			s.lastROI.Min.Y-pad,
			s.lastROI.Max.X+pad,
			s.lastROI.Max.Y+pad,
		)
		return r.Intersect(bounds)
	}

	w := bounds.Dx()
	h := bounds.Dy()
	marginX := w / 5 // center 60%
	marginY := h / 5
	return image.Rect(
		bounds.Min.X+marginX,
		bounds.Min.Y+marginY,
		bounds.Max.X-marginX,
		bounds.Max.Y-marginY,
	)
}

// NoteDetections remembers where faces were found so the next pass can
// narrow its search area. No detections resets to the centered region.
func (s *DetectionScheduler) NoteDetections(dets []Detection) {
	if len(dets) == 0 {
		s.lastROI = nil
		return
	}

	r := image.Rect(
		int(dets[0].BBox[0]), int(dets[0].BBox[1]),
		int(dets[0].BBox[2]), int(dets[0].BBox[3]),
	)
	for _, d := range dets[1:] {
		r = r.Union(image.Rect(
			int(d.BBox[0]), int(d.BBox[1]),
			int(d.BBox[2]), int(d.BBox[3]),
		))
	}
	s.lastROI = &r
}

// Reset clears cache and ROI state, e.g. when a session restarts.
func (s *DetectionScheduler) Reset() {
	s.cache = make(map[string]cacheEntry)
	s.lastROI = nil
}
