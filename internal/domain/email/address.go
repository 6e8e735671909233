package email

import (
	"time"
)

// Address is an email address registered to a dashboard user.
type Address struct {
	ID        int64
	UserID    int64
	Address   string
	IsPrimary bool
	CreatedAt time.Time
}
