// internal/app/materializer.go
package app

import (
	"context"
	"fmt"
	"sync"

	"subscription_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MaterializeResult summarizes one materialization pass.
type MaterializeResult struct {
	Processed int
	Created   int
	Failed    int
	Errors    []string
}

// AsResult maps the pass onto the run summary shape; created events count as sent.
func (r MaterializeResult) AsResult() Result {
	return Result{
		Processed: r.Processed,
		Sent:      r.Created,
		Failed:    r.Failed,
		Errors:    nonNil(r.Errors),
	}
}

// Materializer turns selected candidates into unsent notification events. Every insert
// is guarded by the storage's unique key, so repeated or overlapping runs create each
// (user, type, subscription, milestone) event at most once.
type Materializer struct {
	notifs  notification.Repository
	logger  *logrus.Entry
	workers int
}

func NewMaterializer(notifs notification.Repository, logger *logrus.Entry, workers int) *Materializer {
	if workers <= 0 {
		workers = 1
	}
	return &Materializer{
		notifs:  notifs,
		logger:  logger.WithField("component", "materializer"),
		workers: workers,
	}
}

// Materialize inserts one event per candidate. A failure for one candidate is recorded
// and does not stop the others.
func (m *Materializer) Materialize(ctx context.Context, jobs []notification.Job) MaterializeResult {
	var (
		mu  sync.Mutex
		res MaterializeResult
		g   errgroup.Group
	)
	g.SetLimit(m.workers)

	for _, job := range jobs {
		for _, c := range job.Candidates {
			g.Go(func() error {
				created, err := m.materializeOne(ctx, job, c)

				mu.Lock()
				defer mu.Unlock()
				res.Processed++
				switch {
				case err != nil:
					res.Failed++
					res.Errors = append(res.Errors, err.Error())
				case created:
					res.Created++
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	m.logger.WithFields(logrus.Fields{
		"processed": res.Processed,
		"created":   res.Created,
		"failed":    res.Failed,
	}).Info("Materialization finished")
	return res
}

func (m *Materializer) materializeOne(ctx context.Context, job notification.Job, c notification.Candidate) (bool, error) {
	sub := c.Subscription
	logCtx := m.logger.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
		"type":            job.Type,
		"days_ahead":      job.DaysAhead,
	})

	content, err := ContentFor(job.Type, sub.ToolName, FormatDate(c.EventDate), job.DaysAhead)
	if err != nil {
		logCtx.WithError(err).Error("Cannot build notification content")
		return false, fmt.Errorf("subscription %d (%s, %dd): %w", sub.ID, job.Type, job.DaysAhead, err)
	}

	ev := &notification.Event{
		UserID:    sub.UserID,
		Type:      job.Type,
		RelatedID: sub.ID,
		Milestone: notification.MilestoneKey(c.EventDate, job.DaysAhead),
		Title:     content.Title,
		Message:   content.Message,
		IsSent:    false,
	}
	created, err := m.notifs.CreateIfAbsent(ctx, ev)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to create notification")
		return false, fmt.Errorf("subscription %d (%s, %dd): %w", sub.ID, job.Type, job.DaysAhead, err)
	}
	if created {
		logCtx.WithField("notification_id", ev.ID).Info("Notification created")
	} else {
		logCtx.WithField("milestone", ev.Milestone).Debug("Notification already exists, skipping")
	}
	return created, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
