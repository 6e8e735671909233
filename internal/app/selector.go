// internal/app/selector.go
package app

import (
	"context"
	"time"

	"subscription_notifier/internal/clock"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// CandidateSelector finds subscriptions whose trial end or next renewal falls on the
// day exactly N days from today, for every offset in the reminder schedule.
type CandidateSelector struct {
	subs    subscription.Repository
	clock   clock.Clock
	logger  *logrus.Entry
	workers int
}

func NewCandidateSelector(subs subscription.Repository, clk clock.Clock, logger *logrus.Entry, workers int) *CandidateSelector {
	if workers <= 0 {
		workers = 1
	}
	return &CandidateSelector{
		subs:    subs,
		clock:   clk,
		logger:  logger.WithField("component", "selector"),
		workers: workers,
	}
}

// window returns the half-open UTC day [target, target+1d) that is daysAhead from today.
func (s *CandidateSelector) window(daysAhead int) (start, end time.Time) {
	start = subscription.DayOf(s.clock.Now()).AddDate(0, 0, daysAhead)
	end = start.AddDate(0, 0, 1)
	return start, end
}

// FindUpcoming returns the candidates for one kind and offset. Storage failures are
// logged and yield an empty result so the rest of the run can continue.
func (s *CandidateSelector) FindUpcoming(ctx context.Context, kind notification.Kind, daysAhead int) []notification.Candidate {
	start, end := s.window(daysAhead)
	logCtx := s.logger.WithFields(logrus.Fields{
		"kind":       kind,
		"days_ahead": daysAhead,
		"window":     start.Format("2006-01-02"),
	})

	switch kind {
	case notification.KindTrial:
		subs, err := s.subs.ListTrialsEndingBetween(ctx, start, end)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list trials ending in window")
			return nil
		}
		candidates := make([]notification.Candidate, 0, len(subs))
		for _, sub := range subs {
			if sub.Status != subscription.StatusTrial || !sub.TrialEndDate.Valid {
				continue
			}
			ends := sub.TrialEndDate.Time
			if ends.Before(start) || !ends.Before(end) {
				continue
			}
			candidates = append(candidates, notification.Candidate{Subscription: sub, EventDate: subscription.DayOf(ends)})
		}
		logCtx.WithField("count", len(candidates)).Debug("Trial candidates selected")
		return candidates

	case notification.KindRenewal:
		subs, err := s.subs.ListRenewable(ctx, end)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list renewable subscriptions")
			return nil
		}
		candidates := make([]notification.Candidate, 0)
		for _, sub := range subs {
			if sub.Status != subscription.StatusActive || !sub.RenewalDate.Valid {
				continue
			}
			// Roll forward from the window start, not from today: a nearer occurrence
			// between today and the target day must not hide the one in the window.
			next, ok := subscription.OccurrenceOnOrAfter(sub.RenewalDate.Time, sub.BillingCycle, start)
			if !ok {
				continue
			}
			if next.Before(start) || !next.Before(end) {
				continue
			}
			candidates = append(candidates, notification.Candidate{Subscription: sub, EventDate: next})
		}
		logCtx.WithField("count", len(candidates)).Debug("Renewal candidates selected")
		return candidates
	}

	logCtx.Error("Unknown selection kind")
	return nil
}

// CollectJobs evaluates every (kind, offset) pair of the schedule. The queries are
// independent and run on a bounded pool; job order follows the schedule.
func (s *CandidateSelector) CollectJobs(ctx context.Context) []notification.Job {
	var (
		jobs  []notification.Job
		kinds []notification.Kind
	)
	for _, kind := range notification.Kinds() {
		for _, days := range kind.Offsets() {
			jobs = append(jobs, notification.Job{Type: kind.NotificationType(), DaysAhead: days})
			kinds = append(kinds, kind)
		}
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range jobs {
		g.Go(func() error {
			jobs[i].Candidates = s.FindUpcoming(ctx, kinds[i], jobs[i].DaysAhead)
			return nil
		})
	}
	_ = g.Wait()

	return jobs
}
