package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// AbsenteeStore marks enrolled students with no arrival record as absent
// for a day. Backed by an INSERT ... SELECT in postgres.
type AbsenteeStore interface {
	MarkAbsentees(ctx context.Context, day time.Time) (int, error)
}

// Jobs owns the daily scheduled work: the midnight dedupe reset and the
// after-cutoff absent sweep.
type Jobs struct {
	cron    *cron.Cron
	decider *Decider
	store   AbsenteeStore
}

func NewJobs(decider *Decider, store AbsenteeStore) *Jobs {
	return &Jobs{
		cron:    cron.New(),
		decider: decider,
		store:   store,
	}
}

// Start registers the schedules and starts the cron loop.
// absentSweepSpec is a standard cron expression, typically midday on
// school days, well after the cutoff.
func (j *Jobs) Start(absentSweepSpec string) error {
	if _, err := j.cron.AddFunc("0 0 * * *", func() {
		j.decider.ResetDay()
		slog.Info("attendance day rolled over")
	}); err != nil {
		return fmt.Errorf("schedule day rollover: %w", err)
	}

	if _, err := j.cron.AddFunc(absentSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := j.store.MarkAbsentees(ctx, time.Now())
		if err != nil {
			slog.Error("absent sweep failed", "error", err)
			return
		}
		slog.Info("absent sweep complete", "marked", n)
	}); err != nil {
		return fmt.Errorf("schedule absent sweep: %w", err)
	}

	j.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for a running job to finish.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
}
