package app

import (
	"context"
	"fmt"

	"subscription_notifier/internal/clock"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrNoUpcomingDate = fmt.Errorf("subscription has no upcoming billing date")

// SubscriptionOutlook is what an operator sees when asking about one subscription.
type SubscriptionOutlook struct {
	Subscription *subscription.Subscription
	Next         subscription.Occurrence
}

// AdminService backs the operator commands of the bot.
type AdminService struct {
	notifService    NotificationService
	notifRepo       notification.Repository
	subRepo         subscription.Repository
	clock           clock.Clock
	adminTelegramID int64
}

func NewAdminService(ns NotificationService, nr notification.Repository, sr subscription.Repository, clk clock.Clock, adminID int64) *AdminService {
	return &AdminService{
		notifService:    ns,
		notifRepo:       nr,
		subRepo:         sr,
		clock:           clk,
		adminTelegramID: adminID,
	}
}

// TriggerRun runs a full notification cycle on behalf of an operator.
func (s *AdminService) TriggerRun(ctx context.Context, performingAdminID int64) (CycleResult, error) {
	if performingAdminID != s.adminTelegramID {
		return CycleResult{}, ErrAdminNotAuthorized
	}
	return s.notifService.RunCycle(ctx), nil
}

// PendingCount returns how many notifications are waiting for delivery.
func (s *AdminService) PendingCount(ctx context.Context, performingAdminID int64) (int, error) {
	if performingAdminID != s.adminTelegramID {
		return 0, ErrAdminNotAuthorized
	}
	n, err := s.notifRepo.CountPending(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to count pending notifications: %w", err)
	}
	return n, nil
}

// DescribeSubscription reports when a subscription next renews or its trial ends.
func (s *AdminService) DescribeSubscription(ctx context.Context, performingAdminID int64, subscriptionID int64) (*SubscriptionOutlook, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}

	sub, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %d: %w", subscriptionID, err)
	}

	now := s.clock.Now()
	if sub.Status == subscription.StatusTrial && sub.TrialEndDate.Valid {
		today := subscription.DayOf(now)
		end := subscription.DayOf(sub.TrialEndDate.Time)
		return &SubscriptionOutlook{
			Subscription: sub,
			Next: subscription.Occurrence{
				Date:          end,
				DaysFromToday: subscription.DaysBetween(today, end),
				IsOverdue:     end.Before(today),
			},
		}, nil
	}

	if !sub.RenewalDate.Valid {
		return nil, ErrNoUpcomingDate
	}
	occ, ok := subscription.DescribeNextOccurrence(sub.RenewalDate.Time, sub.BillingCycle, now)
	if !ok {
		return nil, ErrNoUpcomingDate
	}
	return &SubscriptionOutlook{Subscription: sub, Next: occ}, nil
}
