package subscription

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetByID when no subscription has the given id.
var ErrNotFound = errors.New("subscription not found")

// Repository defines the read operations the notifier needs from subscription storage.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Subscription, error)
	// ListTrialsEndingBetween returns trial subscriptions whose trial end date is in [from, to).
	ListTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*Subscription, error)
	// ListRenewable returns active subscriptions with a renewal date before anchorBefore
	// and a recurring billing cycle.
	ListRenewable(ctx context.Context, anchorBefore time.Time) ([]*Subscription, error)
}
