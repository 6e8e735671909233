// internal/domain/subscription/subscription.go
package subscription

import (
	"database/sql"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// BillingCycle is how often a subscription is billed.
type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
	CycleOneTime   BillingCycle = "one-time"
)

// Months returns the number of calendar months between two occurrences.
// One-time (and unknown) cycles never recur and return 0.
func (c BillingCycle) Months() int {
	switch c {
	case CycleMonthly:
		return 1
	case CycleQuarterly:
		return 3
	case CycleYearly:
		return 12
	default:
		return 0
	}
}

// Recurring reports whether the cycle produces further occurrences.
func (c BillingCycle) Recurring() bool {
	return c.Months() > 0
}

// Subscription is a billable relationship between a user and a tool.
// It is owned by the dashboard's storage; the notifier only reads it.
type Subscription struct {
	ID           int64
	UserID       int64
	ToolID       int64
	ToolName     string
	Status       Status
	BillingCycle BillingCycle
	RenewalDate  sql.NullTime // anchor for active subscriptions
	TrialEndDate sql.NullTime // terminal date for trial subscriptions
	Cost         float64
	Currency     string
}
