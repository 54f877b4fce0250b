package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
)

// ErrDuplicateArrival means an arrival record already exists for the
// student on that day. Not a failure: the caller treats it as a no-op.
var ErrDuplicateArrival = errors.New("attendance: arrival already recorded for this day")

// Cutoff is the configured time-of-day boundary between present and late.
type Cutoff struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// DefaultCutoff applies when the config store is unset or unreadable.
var DefaultCutoff = Cutoff{Hour: 9, Minute: 0}

// At returns the cutoff instant on the given day, in that day's location.
func (c Cutoff) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// EventStore is the external persistence collaborator. InsertArrival must
// be conditionally idempotent on (student_id, day) — a unique constraint
// or check-then-insert — because the in-memory dedupe below cannot
// guarantee exclusivity across processes (two kiosks).
type EventStore interface {
	// InsertArrival persists the event. inserted=false means an arrival for
	// (student, day) already existed and nothing was written.
	InsertArrival(ctx context.Context, ev *models.AttendanceEvent) (inserted bool, err error)
}

// CutoffSource reads the configured cutoff, e.g. from the settings table.
type CutoffSource interface {
	GetCutoff(ctx context.Context) (Cutoff, error)
}

// Decider turns recognition results into attendance outcomes and
// guarantees at most one arrival event per student per calendar day.
type Decider struct {
	store   EventStore
	cutoffs CutoffSource

	mu   sync.Mutex
	seen map[string]struct{} // studentID+day already recorded this process
}

func NewDecider(store EventStore, cutoffs CutoffSource) *Decider {
	return &Decider{
		store:   store,
		cutoffs: cutoffs,
		seen:    make(map[string]struct{}),
	}
}

// Decide maps a recognition outcome to a status. Unrecognized faces are
// unauthorized. Otherwise the comparison against the cutoff is exclusive:
// exactly at the cutoff instant is still present, one second later is late.
func (d *Decider) Decide(recognized bool, now time.Time, cutoff Cutoff) models.AttendanceStatus {
	if !recognized {
		return models.StatusUnauthorized
	}
	if now.After(cutoff.At(now)) {
		return models.StatusLate
	}
	return models.StatusPresent
}

// CutoffFor resolves the active cutoff, falling back to the default when
// the config store is unreadable.
func (d *Decider) CutoffFor(ctx context.Context) Cutoff {
	if d.cutoffs == nil {
		return DefaultCutoff
	}
	c, err := d.cutoffs.GetCutoff(ctx)
	if err != nil {
		slog.Warn("read cutoff failed, using default", "error", err)
		return DefaultCutoff
	}
	return c
}

// Record persists one attendance event. For recognized students it is
// write-once per calendar day: a second call the same day returns
// ErrDuplicateArrival and writes nothing. Unrecognized (unauthorized)
// sightings are not subject to the once-per-day rule.
//
// The legacy habit of storing "unauthorized" for a recognized student
// (historically a stand-in for present) is normalized here, at the
// persistence boundary, so the ambiguity never reaches stored data.
func (d *Decider) Record(
	ctx context.Context,
	studentID *uuid.UUID,
	sessionID uuid.UUID,
	status models.AttendanceStatus,
	confidence float32,
	snapshotKey string,
	now time.Time,
) (*models.AttendanceEvent, error) {

	if studentID != nil && status == models.StatusUnauthorized {
		status = models.StatusPresent
	}
	if !status.Valid() {
		return nil, fmt.Errorf("attendance: invalid status %q", status)
	}

	day := dayOf(now)

	if studentID != nil {
		key := dedupeKey(*studentID, day)
		d.mu.Lock()
		if _, dup := d.seen[key]; dup {
			d.mu.Unlock()
			observability.DuplicateArrivals.Inc()
			return nil, ErrDuplicateArrival
		}
		d.mu.Unlock()
	}

	ev := &models.AttendanceEvent{
		ID:          uuid.New(),
		StudentID:   studentID,
		SessionID:   sessionID,
		Status:      status,
		Confidence:  confidence,
		Day:         day,
		Timestamp:   now,
		SnapshotKey: snapshotKey,
	}

	inserted, err := d.store.InsertArrival(ctx, ev)
	if err != nil {
		// The decision is not lost; the caller may retry the write.
		return nil, fmt.Errorf("persist attendance: %w", err)
	}

	if studentID != nil {
		d.mu.Lock()
		d.seen[dedupeKey(*studentID, day)] = struct{}{}
		d.mu.Unlock()
	}

	if !inserted {
		observability.DuplicateArrivals.Inc()
		return nil, ErrDuplicateArrival
	}

	observability.AttendanceRecorded.WithLabelValues(string(status)).Inc()
	return ev, nil
}

// ResetDay clears the in-process dedupe memory. Run at midnight; the
// database constraint remains the authority in between.
func (d *Decider) ResetDay() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]struct{})
}

func dedupeKey(studentID uuid.UUID, day time.Time) string {
	return studentID.String() + "/" + day.Format("2006-01-02")
}

// dayOf returns midnight of now's calendar day in now's location.
// Truncate(24h) buckets by UTC midnight and would split one local school
// day in two anywhere east or west of Greenwich.
func dayOf(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
