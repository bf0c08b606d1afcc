package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Leganyst/coaching-platform/internal/calendar"
)

// DailyReport is what one run of the daily job did.
type DailyReport struct {
	Transition *TransitionResult `json:"transition"`
	AutoBook   *AutoBookResult   `json:"auto_book"`
	Promoted   int               `json:"promoted"`
}

// Jobs runs the periodic work: assignment transitions, auto-booking and
// promotion of pending bookings.
type Jobs struct {
	deps        Deps
	log         *zap.Logger
	assignments *AssignmentService
	packages    *PackageService
	scheduling  *SchedulingService

	cron *cron.Cron
}

func NewJobs(deps Deps, assignments *AssignmentService, packages *PackageService, scheduling *SchedulingService) *Jobs {
	deps = deps.withDefaults()
	return &Jobs{
		deps:        deps,
		log:         deps.Logger.Named("jobs"),
		assignments: assignments,
		packages:    packages,
		scheduling:  scheduling,
	}
}

// RunDaily runs every step once. A failing step is logged and the rest
// still run; the first error is returned.
func (j *Jobs) RunDaily(ctx context.Context) (*DailyReport, error) {
	report := &DailyReport{}
	var firstErr error
	keep := func(step string, err error) {
		if err == nil {
			return
		}
		j.log.Error("daily job step failed", zap.String("step", step), zap.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", step, err)
		}
	}

	today := calendar.DateOf(j.deps.now())

	var err error
	report.Transition, err = j.assignments.RunDailyAssignmentTransition(ctx, today)
	keep("assignment transition", err)

	report.AutoBook, err = j.packages.RunAutoBooking(ctx, nil)
	keep("auto-booking", err)

	customers, err := j.deps.Store.Bookings.ListCustomersWithPendingCredits(ctx)
	keep("list pending customers", err)
	for _, id := range customers {
		n, err := j.scheduling.PromoteCreditsForCustomer(ctx, id)
		keep("promote "+id.String(), err)
		report.Promoted += n
	}

	return report, firstErr
}

// Start schedules RunDaily on spec (standard 5-field cron, UTC). A run that
// is still going when the next one is due is skipped.
func (j *Jobs) Start(spec string) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		started := time.Now()
		report, err := j.RunDaily(ctx)
		if err != nil {
			j.log.Error("daily job finished with errors", zap.Error(err), zap.Duration("took", time.Since(started)))
			return
		}
		j.log.Info("daily job finished",
			zap.Int64("activated", report.Transition.Activated),
			zap.Int64("completed", report.Transition.Completed),
			zap.Int64("expired", report.Transition.Expired),
			zap.Int("auto_confirmed", report.AutoBook.Confirmed),
			zap.Int("auto_pending", report.AutoBook.PendingCredits),
			zap.Int("promoted", report.Promoted),
			zap.Duration("took", time.Since(started)),
		)
	})
	if err != nil {
		return fmt.Errorf("schedule daily job %q: %w", spec, err)
	}
	j.cron = c
	c.Start()
	j.log.Info("jobs scheduled", zap.String("spec", spec))
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (j *Jobs) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}
