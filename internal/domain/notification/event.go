// internal/domain/notification/event.go
package notification

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is one user-facing alert. The materializer creates it with IsSent=false and the
// dispatcher is the only writer that flips it to sent. Events are never deleted here.
type Event struct {
	ID        int64
	UserID    int64
	Type      Type
	RelatedID int64 // subscription id
	// Milestone distinguishes reminders for the same subscription, e.g. "2026-11-18/d30".
	// Together with UserID, Type and RelatedID it forms the deduplication key.
	Milestone    string
	Title        string
	Message      string
	IsSent       bool
	ScheduledFor sql.NullTime
	SentAt       sql.NullTime
	CreatedAt    time.Time
}

// MilestoneKey builds the milestone token for an event date and a reminder offset.
func MilestoneKey(eventDate time.Time, daysAhead int) string {
	return fmt.Sprintf("%s/d%d", eventDate.UTC().Format("2006-01-02"), daysAhead)
}

// ParseMilestone splits a token built by MilestoneKey back into its event date and offset.
// Tokens written by other producers report ok=false.
func ParseMilestone(token string) (eventDate time.Time, daysAhead int, ok bool) {
	date, offset, found := strings.Cut(token, "/d")
	if !found {
		return time.Time{}, 0, false
	}
	eventDate, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, 0, false
	}
	daysAhead, err = strconv.Atoi(offset)
	if err != nil {
		return time.Time{}, 0, false
	}
	return eventDate, daysAhead, true
}

// EventDate is the trial end or renewal day this reminder was created for.
func (e *Event) EventDate() (time.Time, bool) {
	date, _, ok := ParseMilestone(e.Milestone)
	return date, ok
}
