package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"subscription_notifier/internal/domain/email"
	"subscription_notifier/internal/domain/mail"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeSubscriptionRepo struct {
	subs       []*subscription.Subscription
	trialErr   error
	renewErr   error
	trialCalls atomic.Int32
}

func (f *fakeSubscriptionRepo) GetByID(_ context.Context, id int64) (*subscription.Subscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, subscription.ErrNotFound
}

func (f *fakeSubscriptionRepo) ListTrialsEndingBetween(_ context.Context, from, to time.Time) ([]*subscription.Subscription, error) {
	f.trialCalls.Add(1)
	if f.trialErr != nil {
		return nil, f.trialErr
	}
	var out []*subscription.Subscription
	for _, s := range f.subs {
		if s.Status != subscription.StatusTrial || !s.TrialEndDate.Valid {
			continue
		}
		if !s.TrialEndDate.Time.Before(from) && s.TrialEndDate.Time.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionRepo) ListRenewable(_ context.Context, anchorBefore time.Time) ([]*subscription.Subscription, error) {
	if f.renewErr != nil {
		return nil, f.renewErr
	}
	var out []*subscription.Subscription
	for _, s := range f.subs {
		if s.Status != subscription.StatusActive || !s.RenewalDate.Valid || !s.BillingCycle.Recurring() {
			continue
		}
		if s.RenewalDate.Time.Before(anchorBefore) {
			out = append(out, s)
		}
	}
	return out, nil
}

type dedupKey struct {
	userID    int64
	typ       notification.Type
	relatedID int64
	milestone string
}

// fakeNotificationRepo enforces the same unique key as the SQL schema.
type fakeNotificationRepo struct {
	mu        sync.Mutex
	nextID    int64
	events    []*notification.Event
	keys      map[dedupKey]bool
	createErr map[int64]error // by RelatedID
	markErr   error
	listErr   error
	clock     func() time.Time
}

func newFakeNotificationRepo(now func() time.Time) *fakeNotificationRepo {
	return &fakeNotificationRepo{keys: map[dedupKey]bool{}, createErr: map[int64]error{}, clock: now}
}

func (f *fakeNotificationRepo) CreateIfAbsent(_ context.Context, ev *notification.Event) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[ev.RelatedID]; err != nil {
		return false, err
	}
	k := dedupKey{ev.UserID, ev.Type, ev.RelatedID, ev.Milestone}
	if f.keys[k] {
		return false, nil
	}
	f.keys[k] = true
	f.nextID++
	stored := *ev
	stored.ID = f.nextID
	stored.CreatedAt = f.clock().Add(time.Duration(f.nextID) * time.Millisecond)
	f.events = append(f.events, &stored)
	ev.ID = stored.ID
	ev.CreatedAt = stored.CreatedAt
	return true, nil
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, id int64) (*notification.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			cp := *ev
			return &cp, nil
		}
	}
	return nil, errors.New("notification not found")
}

func (f *fakeNotificationRepo) ListPending(_ context.Context, now time.Time) ([]*notification.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*notification.Event
	for _, ev := range f.events {
		if ev.IsSent {
			continue
		}
		if ev.ScheduledFor.Valid && ev.ScheduledFor.Time.After(now) {
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeNotificationRepo) CountPending(ctx context.Context, now time.Time) (int, error) {
	evs, err := f.ListPending(ctx, now)
	return len(evs), err
}

func (f *fakeNotificationRepo) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for _, ev := range f.events {
		if ev.ID == id && !ev.IsSent {
			ev.IsSent = true
			ev.SentAt.Time, ev.SentAt.Valid = sentAt, true
			return nil
		}
	}
	return errors.New("notification not found")
}

func (f *fakeNotificationRepo) byRelated(id int64) []*notification.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.Event
	for _, ev := range f.events {
		if ev.RelatedID == id {
			out = append(out, ev)
		}
	}
	return out
}

type fakeEmailRepo struct {
	addrs map[int64]string
	err   error
}

func (f *fakeEmailRepo) FindDeliveryAddress(_ context.Context, userID int64) (*email.Address, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.addrs[userID]
	if !ok {
		return nil, email.ErrAddressNotFound
	}
	return &email.Address{UserID: userID, Address: a, IsPrimary: true}, nil
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeTransport) Send(_ context.Context, msg mail.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
