// internal/domain/notification/types.go
package notification

import (
	"errors"
	"fmt"
)

// ErrUnknownType signals a notification type outside the closed set below.
// It is a programming error, not a runtime condition.
var ErrUnknownType = errors.New("unknown notification type")

// Type identifies what a notification is about.
type Type string

const (
	TypeRenewalReminder Type = "renewal_reminder"
	TypeTrialExpiring   Type = "trial_expiring"
	TypeUnusedTool      Type = "unused_tool"
	TypeCostAlert       Type = "cost_alert"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeRenewalReminder, TypeTrialExpiring, TypeUnusedTool, TypeCostAlert:
		return true
	}
	return false
}

// ParseType converts a stored value into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Kind selects which subscription date the candidate selector scans.
type Kind string

const (
	KindTrial   Kind = "trial"
	KindRenewal Kind = "renewal"
)

// NotificationType maps a scan kind to the notification it produces.
func (k Kind) NotificationType() Type {
	switch k {
	case KindTrial:
		return TypeTrialExpiring
	case KindRenewal:
		return TypeRenewalReminder
	}
	panic(fmt.Sprintf("notification: unhandled kind %q", string(k)))
}

// Offsets returns how many days ahead of the event each reminder goes out.
func (k Kind) Offsets() []int {
	switch k {
	case KindTrial:
		return []int{7, 3, 1, 0}
	case KindRenewal:
		return []int{30, 7, 1, 0}
	}
	return nil
}

// Kinds lists every scan kind in evaluation order.
func Kinds() []Kind {
	return []Kind{KindTrial, KindRenewal}
}
