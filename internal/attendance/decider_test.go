package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
)

type fakeEventStore struct {
	events   []*models.AttendanceEvent
	existing map[string]bool // studentID/day pairs already in the "database"
	err      error
}

func (f *fakeEventStore) InsertArrival(ctx context.Context, ev *models.AttendanceEvent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if ev.StudentID != nil {
		key := ev.StudentID.String() + "/" + ev.Day.Format("2006-01-02")
		if f.existing[key] {
			return false, nil
		}
		if f.existing == nil {
			f.existing = make(map[string]bool)
		}
		f.existing[key] = true
	}
	f.events = append(f.events, ev)
	return true, nil
}

type fixedCutoff struct {
	c   Cutoff
	err error
}

func (f fixedCutoff) GetCutoff(ctx context.Context) (Cutoff, error) {
	return f.c, f.err
}

func TestDecide(t *testing.T) {
	cutoff := Cutoff{Hour: 9, Minute: 0}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		recognized bool
		at         time.Time
		want       models.AttendanceStatus
	}{
		{"unrecognized", false, day.Add(8 * time.Hour), models.StatusUnauthorized},
		{"well before cutoff", true, day.Add(8 * time.Hour), models.StatusPresent},
		{"exactly at cutoff", true, day.Add(9 * time.Hour), models.StatusPresent},
		{"one second past cutoff", true, day.Add(9*time.Hour + time.Second), models.StatusLate},
		{"late afternoon", true, day.Add(14 * time.Hour), models.StatusLate},
	}

	d := NewDecider(&fakeEventStore{}, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.Decide(tc.recognized, tc.at, cutoff); got != tc.want {
				t.Errorf("Decide(%v, %s) = %s; want %s", tc.recognized, tc.at, got, tc.want)
			}
		})
	}
}

func TestRecordOncePerDay(t *testing.T) {
	store := &fakeEventStore{}
	d := NewDecider(store, nil)
	student := uuid.New()
	session := uuid.New()
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	ev, err := d.Record(context.Background(), &student, session, models.StatusPresent, 0.9, "snap.jpg", now)
	if err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if ev.Status != models.StatusPresent {
		t.Errorf("status = %s; want present", ev.Status)
	}

	// Same student, same day: rejected without touching the store again.
	_, err = d.Record(context.Background(), &student, session, models.StatusLate, 0.8, "snap2.jpg", now.Add(time.Hour))
	if !errors.Is(err, ErrDuplicateArrival) {
		t.Fatalf("second Record: %v; want ErrDuplicateArrival", err)
	}
	if len(store.events) != 1 {
		t.Errorf("store has %d events; want 1", len(store.events))
	}

	// Next day is a fresh slate.
	if _, err := d.Record(context.Background(), &student, session, models.StatusPresent, 0.9, "snap3.jpg", now.AddDate(0, 0, 1)); err != nil {
		t.Errorf("next-day Record: %v", err)
	}
}

func TestRecordOncePerDayAcrossUTCMidnight(t *testing.T) {
	// A school east of Greenwich: early-morning local times fall on the
	// previous UTC date. Both arrivals below are the same local day and
	// must collapse into one event.
	loc := time.FixedZone("UTC+5", 5*60*60)
	store := &fakeEventStore{}
	d := NewDecider(store, nil)
	student := uuid.New()
	session := uuid.New()

	early := time.Date(2026, 3, 2, 2, 0, 0, 0, loc)    // 2026-03-01 21:00 UTC
	morning := time.Date(2026, 3, 2, 8, 30, 0, 0, loc) // 2026-03-02 03:30 UTC

	ev, err := d.Record(context.Background(), &student, session, models.StatusPresent, 0.9, "", early)
	if err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if ev.Day.Day() != 2 {
		t.Errorf("Day bucketed to %s; want local calendar day 2026-03-02", ev.Day)
	}

	_, err = d.Record(context.Background(), &student, session, models.StatusPresent, 0.9, "", morning)
	if !errors.Is(err, ErrDuplicateArrival) {
		t.Fatalf("second Record on same local day: %v; want ErrDuplicateArrival", err)
	}
	if len(store.events) != 1 {
		t.Errorf("store has %d events; want 1", len(store.events))
	}
}

func TestRecordDuplicateFromAnotherProcess(t *testing.T) {
	student := uuid.New()
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	day := now.Truncate(24 * time.Hour)

	// Another kiosk already recorded this student today; the database
	// constraint reports it, our in-process memory does not know yet.
	store := &fakeEventStore{existing: map[string]bool{
		student.String() + "/" + day.Format("2006-01-02"): true,
	}}
	d := NewDecider(store, nil)

	_, err := d.Record(context.Background(), &student, uuid.New(), models.StatusPresent, 0.9, "", now)
	if !errors.Is(err, ErrDuplicateArrival) {
		t.Fatalf("Record: %v; want ErrDuplicateArrival", err)
	}
	if len(store.events) != 0 {
		t.Errorf("store has %d events; want 0", len(store.events))
	}
}

func TestRecordNormalizesLegacyUnauthorized(t *testing.T) {
	store := &fakeEventStore{}
	d := NewDecider(store, nil)
	student := uuid.New()

	ev, err := d.Record(context.Background(), &student, uuid.New(), models.StatusUnauthorized, 0.9, "", time.Now())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ev.Status != models.StatusPresent {
		t.Errorf("recognized student stored as %s; want present", ev.Status)
	}
}

func TestRecordUnrecognizedNotDeduplicated(t *testing.T) {
	store := &fakeEventStore{}
	d := NewDecider(store, nil)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := d.Record(context.Background(), nil, uuid.New(), models.StatusUnauthorized, 0, "", now); err != nil {
			t.Fatalf("Record unrecognized #%d: %v", i, err)
		}
	}
	if len(store.events) != 3 {
		t.Errorf("store has %d events; want 3 (no once-per-day rule for unknowns)", len(store.events))
	}
}

func TestRecordInvalidStatus(t *testing.T) {
	d := NewDecider(&fakeEventStore{}, nil)
	student := uuid.New()

	if _, err := d.Record(context.Background(), &student, uuid.New(), "lurking", 0.9, "", time.Now()); err == nil {
		t.Fatal("invalid status accepted")
	}
}

func TestRecordStoreFailureIsRetryable(t *testing.T) {
	store := &fakeEventStore{err: errors.New("connection refused")}
	d := NewDecider(store, nil)
	student := uuid.New()
	now := time.Now()

	if _, err := d.Record(context.Background(), &student, uuid.New(), models.StatusPresent, 0.9, "", now); err == nil {
		t.Fatal("store failure swallowed")
	}

	// The failed write must not poison the dedupe memory.
	store.err = nil
	if _, err := d.Record(context.Background(), &student, uuid.New(), models.StatusPresent, 0.9, "", now); err != nil {
		t.Fatalf("retry after store recovery: %v", err)
	}
}

func TestResetDay(t *testing.T) {
	store := &fakeEventStore{}
	d := NewDecider(store, nil)
	student := uuid.New()
	now := time.Now()

	if _, err := d.Record(context.Background(), &student, uuid.New(), models.StatusPresent, 0.9, "", now); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Clear both the in-process memory and the fake database, as the
	// midnight rollover plus a new day would.
	d.ResetDay()
	store.existing = nil

	if _, err := d.Record(context.Background(), &student, uuid.New(), models.StatusPresent, 0.9, "", now); err != nil {
		t.Fatalf("Record after ResetDay: %v", err)
	}
}

func TestCutoffFor(t *testing.T) {
	tests := []struct {
		name   string
		source CutoffSource
		want   Cutoff
	}{
		{"nil source falls back", nil, DefaultCutoff},
		{"configured value", fixedCutoff{c: Cutoff{Hour: 10, Minute: 30}}, Cutoff{Hour: 10, Minute: 30}},
		{"unreadable source falls back", fixedCutoff{err: errors.New("down")}, DefaultCutoff},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecider(&fakeEventStore{}, tc.source)
			if got := d.CutoffFor(context.Background()); got != tc.want {
				t.Errorf("CutoffFor = %+v; want %+v", got, tc.want)
			}
		})
	}
}
