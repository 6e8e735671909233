// internal/domain/notification/job.go
package notification

import (
	"time"

	"subscription_notifier/internal/domain/subscription"
)

// Candidate is a subscription that crosses a reminder threshold, with the event date
// that made it qualify.
type Candidate struct {
	Subscription *subscription.Subscription
	EventDate    time.Time
}

// Job groups the candidates found for one notification type and offset within a run.
type Job struct {
	Type       Type
	DaysAhead  int
	Candidates []Candidate
}
