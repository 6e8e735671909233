package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"subscription_notifier/internal/clock"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFixture struct {
	clock     *clock.FakeClock
	notifs    *fakeNotificationRepo
	subs      *fakeSubscriptionRepo
	emails    *fakeEmailRepo
	transport *fakeTransport
	d         *Dispatcher
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		clock:     clock.NewFakeClock(testNow),
		subs:      &fakeSubscriptionRepo{},
		emails:    &fakeEmailRepo{addrs: map[int64]string{}},
		transport: &fakeTransport{},
	}
	f.notifs = newFakeNotificationRepo(f.clock.Now)
	f.d = NewDispatcher(f.notifs, f.subs, f.emails, f.transport, f.clock, testLogger(), "https://app.example.com")
	return f
}

func (f *dispatchFixture) seed(t *testing.T, sub *subscription.Subscription, typ notification.Type) *notification.Event {
	t.Helper()
	return f.seedMilestone(t, sub, typ, "2026-10-22/d3")
}

func (f *dispatchFixture) seedMilestone(t *testing.T, sub *subscription.Subscription, typ notification.Type, milestone string) *notification.Event {
	t.Helper()
	f.subs.subs = append(f.subs.subs, sub)
	ev := &notification.Event{
		UserID:    sub.UserID,
		Type:      typ,
		RelatedID: sub.ID,
		Milestone: milestone,
		Title:     "Tool trial ends in 3 days",
		Message:   "Your free trial of Tool ends in 3 days.",
	}
	created, err := f.notifs.CreateIfAbsent(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, created)
	return ev
}

func TestDispatchTransportFailureKeepsPending(t *testing.T) {
	f := newDispatchFixture()
	sub := trialSub(1, day(2026, 10, 22))
	f.emails.addrs[sub.UserID] = "ada@example.com"
	ev := f.seed(t, sub, notification.TypeTrialExpiring)

	f.transport.err = errors.New("smtp: 421 service not available")
	res := f.d.DispatchPending(context.Background())
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "421")

	stored, err := f.notifs.GetByID(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsSent)
	assert.False(t, stored.SentAt.Valid)

	f.transport.err = nil
	f.clock.Advance(time.Hour)
	res = f.d.DispatchPending(context.Background())
	assert.Equal(t, Result{Processed: 1, Sent: 1, Errors: []string{}}, res)

	stored, err = f.notifs.GetByID(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsSent)
	require.True(t, stored.SentAt.Valid)
	assert.Equal(t, testNow.Add(time.Hour), stored.SentAt.Time)
}

func TestDispatchRendersSubscriptionContext(t *testing.T) {
	f := newDispatchFixture()
	sub := trialSub(1, day(2026, 10, 22))
	sub.ToolName, sub.Cost, sub.Currency = "Figma", 15, "EUR"
	f.emails.addrs[sub.UserID] = "ada@example.com"
	f.seed(t, sub, notification.TypeTrialExpiring)

	f.d.DispatchPending(context.Background())
	require.Equal(t, 1, f.transport.calls())
	msg := f.transport.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Trial ending: Tool trial ends in 3 days", msg.Subject)
	assert.Contains(t, msg.Text, "Tool: Figma")
	assert.Contains(t, msg.Text, "Cost: 15.00 EUR")
	assert.Contains(t, msg.Text, "Date: Oct 22, 2026")
	assert.Contains(t, msg.HTML, "https://app.example.com/dashboard/subscriptions")
}

func TestDispatchRenewalDateLabelWithoutMilestoneDate(t *testing.T) {
	f := newDispatchFixture()
	sub := renewalSub(1, day(2026, 9, 20), subscription.CycleMonthly)
	f.emails.addrs[sub.UserID] = "ada@example.com"
	f.seedMilestone(t, sub, notification.TypeRenewalReminder, "manual")

	f.d.DispatchPending(context.Background())
	require.Equal(t, 1, f.transport.calls())
	assert.Contains(t, f.transport.sent[0].Text, "Date: Oct 20, 2026 (tomorrow)")
}

func TestDispatchDateLabelFollowsEventDate(t *testing.T) {
	f := newDispatchFixture()
	// Renews today; this reminder is for the next renewal.
	sub := renewalSub(1, day(2026, 9, 19), subscription.CycleMonthly)
	f.emails.addrs[sub.UserID] = "ada@example.com"
	f.seedMilestone(t, sub, notification.TypeRenewalReminder, notification.MilestoneKey(day(2026, 11, 19), 31))

	f.d.DispatchPending(context.Background())
	require.Equal(t, 1, f.transport.calls())
	text := f.transport.sent[0].Text
	assert.Contains(t, text, "Date: Nov 19, 2026 (in 31 days)")
	assert.NotContains(t, text, "(today)")
}

func TestDispatchMissingAddress(t *testing.T) {
	f := newDispatchFixture()
	withAddr := trialSub(1, day(2026, 10, 22))
	without := trialSub(2, day(2026, 10, 22))
	f.emails.addrs[withAddr.UserID] = "ada@example.com"
	orphan := f.seed(t, without, notification.TypeTrialExpiring)
	f.seed(t, withAddr, notification.TypeTrialExpiring)

	res := f.d.DispatchPending(context.Background())
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"notification 1: no email address for user 102"}, res.Errors)
	assert.Equal(t, int64(1), orphan.ID)
	assert.Equal(t, 1, f.transport.calls())

	pending, err := f.notifs.CountPending(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestDispatchOldestFirst(t *testing.T) {
	f := newDispatchFixture()
	for i := int64(1); i <= 3; i++ {
		sub := trialSub(i, day(2026, 10, 22))
		f.emails.addrs[sub.UserID] = fmt.Sprintf("user%d@example.com", i)
		f.seed(t, sub, notification.TypeTrialExpiring)
	}

	f.d.DispatchPending(context.Background())
	require.Equal(t, 3, f.transport.calls())
	assert.Equal(t, "user1@example.com", f.transport.sent[0].To)
	assert.Equal(t, "user3@example.com", f.transport.sent[2].To)
}

func TestDispatchSkipsFutureScheduled(t *testing.T) {
	f := newDispatchFixture()
	sub := trialSub(1, day(2026, 10, 22))
	f.subs.subs = append(f.subs.subs, sub)
	f.emails.addrs[sub.UserID] = "ada@example.com"
	_, err := f.notifs.CreateIfAbsent(context.Background(), &notification.Event{
		UserID: sub.UserID, Type: notification.TypeCostAlert, RelatedID: sub.ID, Milestone: "m",
		Title: "Spending alert for Tool", ScheduledFor: validTime(testNow.Add(24 * time.Hour)),
	})
	require.NoError(t, err)

	res := f.d.DispatchPending(context.Background())
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 0, f.transport.calls())
}

func TestDispatchMarkSentFailure(t *testing.T) {
	f := newDispatchFixture()
	sub := trialSub(1, day(2026, 10, 22))
	f.emails.addrs[sub.UserID] = "ada@example.com"
	f.seed(t, sub, notification.TypeTrialExpiring)
	f.notifs.markErr = errors.New("read-only transaction")

	res := f.d.DispatchPending(context.Background())
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Sent)
	assert.Contains(t, res.Errors[0], "not marked sent")
}

func TestDispatchListFailure(t *testing.T) {
	f := newDispatchFixture()
	f.notifs.listErr = errors.New("connection refused")

	res := f.d.DispatchPending(context.Background())
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, []string{"list pending notifications: connection refused"}, res.Errors)
}
