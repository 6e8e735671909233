// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository defines the persistence operations for notification events.
type Repository interface {
	// CreateIfAbsent inserts ev unless an event with the same (UserID, Type, RelatedID, Milestone)
	// exists. It reports whether a row was created and fills ev.ID and ev.CreatedAt when it was.
	// A duplicate is not an error.
	CreateIfAbsent(ctx context.Context, ev *Event) (bool, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	// ListPending returns unsent events whose ScheduledFor is null or not after now,
	// oldest CreatedAt first.
	ListPending(ctx context.Context, now time.Time) ([]*Event, error)
	CountPending(ctx context.Context, now time.Time) (int, error)
	// MarkSent flips an unsent event to sent.
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
}
