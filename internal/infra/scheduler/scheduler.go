package scheduler

import (
	"context"
	"fmt"
	"time"

	"subscription_notifier/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NotificationScheduler runs the notification cycle on a cron schedule. Schedules are
// evaluated in UTC, the same frame the calendar arithmetic uses.
type NotificationScheduler struct {
	cronEngine   *cron.Cron
	notifService app.NotificationService
	reporter     app.RunReporter
	logger       *logrus.Entry
	cronSpec     string
	timeout      time.Duration
}

// NewNotificationScheduler validates cronSpec and returns a scheduler that is not yet started.
// reporter may be nil.
func NewNotificationScheduler(
	notifService app.NotificationService,
	reporter app.RunReporter,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 9 * * *" (09:00 UTC daily)
	timeout time.Duration,
) (*NotificationScheduler, error) {
	s := &NotificationScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		notifService: notifService,
		reporter:     reporter,
		logger:       logger.WithField("component", "scheduler"),
		cronSpec:     cronSpec,
		timeout:      timeout,
	}
	if _, err := s.cronEngine.AddFunc(cronSpec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", cronSpec, err)
	}
	return s, nil
}

func (s *NotificationScheduler) Start() {
	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpec).Info("Notification scheduler started")
}

// RunOnce executes one cycle with the configured timeout and reports the result.
func (s *NotificationScheduler) RunOnce() {
	s.logger.Info("Cron job triggered for notification cycle")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result := s.notifService.RunCycle(ctx)
	if s.reporter == nil {
		return
	}
	if err := s.reporter.ReportRun(ctx, result); err != nil {
		s.logger.WithError(err).Warn("Failed to report notification cycle")
	}
}

// Next returns when the job fires next; zero before Start.
func (s *NotificationScheduler) Next() time.Time {
	entries := s.cronEngine.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Notification scheduler gracefully stopped")
}
