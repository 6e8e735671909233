package email

import (
	"context"
	"errors"
)

// ErrAddressNotFound is returned when a user has no email address on file.
var ErrAddressNotFound = errors.New("no email address on file for user")

// Repository defines the lookups the dispatcher needs for destination addresses.
type Repository interface {
	// FindDeliveryAddress returns the user's primary address, or any other address
	// when no primary is set. It returns ErrAddressNotFound when the user has none.
	FindDeliveryAddress(ctx context.Context, userID int64) (*Address, error)
}
