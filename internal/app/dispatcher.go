// internal/app/dispatcher.go
package app

import (
	"context"
	"errors"
	"fmt"

	"subscription_notifier/internal/clock"
	"subscription_notifier/internal/domain/email"
	"subscription_notifier/internal/domain/mail"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"

	"github.com/sirupsen/logrus"
)

// Dispatcher delivers pending notification events by email. An event is marked sent only
// after the transport reports success; anything that fails stays pending and is picked
// up again by the next run.
type Dispatcher struct {
	notifs    notification.Repository
	subs      subscription.Repository
	emails    email.Repository
	transport mail.Transport
	clock     clock.Clock
	logger    *logrus.Entry
	baseURL   string
}

func NewDispatcher(
	notifs notification.Repository,
	subs subscription.Repository,
	emails email.Repository,
	transport mail.Transport,
	clk clock.Clock,
	logger *logrus.Entry,
	baseURL string,
) *Dispatcher {
	return &Dispatcher{
		notifs:    notifs,
		subs:      subs,
		emails:    emails,
		transport: transport,
		clock:     clk,
		logger:    logger.WithField("component", "dispatcher"),
		baseURL:   baseURL,
	}
}

// DispatchPending attempts every due, unsent event, oldest first.
func (d *Dispatcher) DispatchPending(ctx context.Context) Result {
	res := Result{Errors: []string{}}

	pending, err := d.notifs.ListPending(ctx, d.clock.Now())
	if err != nil {
		d.logger.WithError(err).Error("Failed to list pending notifications")
		res.Errors = append(res.Errors, fmt.Sprintf("list pending notifications: %v", err))
		return res
	}
	d.logger.WithField("count", len(pending)).Info("Dispatching pending notifications")

	for _, ev := range pending {
		res.Processed++
		if err := d.dispatchOne(ctx, ev); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Sent++
	}

	d.logger.WithFields(logrus.Fields{
		"processed": res.Processed,
		"sent":      res.Sent,
		"failed":    res.Failed,
	}).Info("Dispatch finished")
	return res
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ev *notification.Event) error {
	logCtx := d.logger.WithFields(logrus.Fields{
		"notification_id": ev.ID,
		"user_id":         ev.UserID,
		"type":            ev.Type,
	})

	addr, err := d.emails.FindDeliveryAddress(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, email.ErrAddressNotFound) {
			logCtx.Warn("No email address on file, skipping")
			return fmt.Errorf("notification %d: no email address for user %d", ev.ID, ev.UserID)
		}
		logCtx.WithError(err).Error("Failed to resolve email address")
		return fmt.Errorf("notification %d: resolve address: %w", ev.ID, err)
	}

	rendered, err := RenderContent(ev.Type, d.renderContext(ctx, ev))
	if err != nil {
		logCtx.WithError(err).Error("Failed to render notification")
		return fmt.Errorf("notification %d: %w", ev.ID, err)
	}

	messageID, err := d.transport.Send(ctx, mail.Message{
		To:      addr.Address,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	})
	if err != nil {
		logCtx.WithError(err).Warn("Delivery failed, will retry on next run")
		return fmt.Errorf("notification %d: send to %s: %w", ev.ID, addr.Address, err)
	}

	if err := d.notifs.MarkSent(ctx, ev.ID, d.clock.Now()); err != nil {
		logCtx.WithError(err).WithField("message_id", messageID).Error("Delivered but failed to mark notification as sent")
		return fmt.Errorf("notification %d: delivered as %s but not marked sent: %w", ev.ID, messageID, err)
	}
	logCtx.WithField("message_id", messageID).Info("Notification delivered")
	return nil
}

// renderContext adds subscription details to the stored text. The date shown is the one the
// event was created for; only events without a dated milestone fall back to the
// subscription's next date. When the subscription cannot be loaded the email carries the
// stored title and message only.
func (d *Dispatcher) renderContext(ctx context.Context, ev *notification.Event) RenderContext {
	rc := RenderContext{Title: ev.Title, Message: ev.Message, BaseURL: d.baseURL}
	if ev.RelatedID == 0 {
		return rc
	}
	sub, err := d.subs.GetByID(ctx, ev.RelatedID)
	if err != nil {
		d.logger.WithError(err).WithField("subscription_id", ev.RelatedID).Debug("Related subscription unavailable for rendering")
		return rc
	}

	rc.ToolName = sub.ToolName
	rc.Cost = sub.Cost
	rc.Currency = sub.Currency
	if date, ok := ev.EventDate(); ok {
		rc.DateLabel = fmt.Sprintf("%s (%s)", FormatDate(date), When(subscription.DaysBetween(d.clock.Now(), date)))
		return rc
	}
	switch {
	case sub.Status == subscription.StatusTrial && sub.TrialEndDate.Valid:
		rc.DateLabel = FormatDate(sub.TrialEndDate.Time)
	case sub.RenewalDate.Valid:
		if occ, ok := subscription.DescribeNextOccurrence(sub.RenewalDate.Time, sub.BillingCycle, d.clock.Now()); ok {
			rc.DateLabel = fmt.Sprintf("%s (%s)", FormatDate(occ.Date), When(occ.DaysFromToday))
		}
	}
	return rc
}
