package clock

import "time"

// Clock supplies the current instant. Everything that needs "today" takes one so
// tests can pin time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// New returns a Clock backed by time.Now in UTC.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}
