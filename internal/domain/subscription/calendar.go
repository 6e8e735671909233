package subscription

import "time"

// All calendar arithmetic works on UTC calendar days so that the same stored date
// resolves to the same day whatever the server's local zone is.

// DayOf truncates t to midnight of its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonths moves d forward by n calendar months, keeping the day of month when the
// target month has it and clamping to the target month's last day otherwise.
// Jan 31 + 1 month is Feb 28 (Feb 29 in leap years), never Mar 3.
func AddMonths(d time.Time, n int) time.Time {
	day := DayOf(d)
	first := time.Date(day.Year(), day.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	dom := day.Day()
	if last := daysIn(first.Year(), first.Month()); dom > last {
		dom = last
	}
	return time.Date(first.Year(), first.Month(), dom, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns the number of UTC calendar days from -> to (negative when to is earlier).
func DaysBetween(from, to time.Time) int {
	return int(DayOf(to).Sub(DayOf(from)) / (24 * time.Hour))
}

// NextOccurrence walks forward from anchor in steps of the billing cycle and returns the
// first occurrence strictly after the UTC day of now. The anchor itself counts when it
// is already in the future. Occurrence k is anchor + k*step months, each clamped on its
// own, so a Jan 31 anchor yields Feb 28, Mar 31, Apr 30 rather than drifting to the 28th.
// One-time cycles never recur and report false.
func NextOccurrence(anchor time.Time, cycle BillingCycle, now time.Time) (time.Time, bool) {
	if !cycle.Recurring() {
		return time.Time{}, false
	}
	return firstAfter(DayOf(anchor), cycle.Months(), DayOf(now)), true
}

// OccurrenceOnOrAfter is NextOccurrence with an inclusive bound: an occurrence that
// falls on day itself is returned.
func OccurrenceOnOrAfter(anchor time.Time, cycle BillingCycle, day time.Time) (time.Time, bool) {
	if !cycle.Recurring() {
		return time.Time{}, false
	}
	return firstAfter(DayOf(anchor), cycle.Months(), DayOf(day).AddDate(0, 0, -1)), true
}

func firstAfter(anchor time.Time, step int, bound time.Time) time.Time {
	for k := 0; ; k++ {
		occ := AddMonths(anchor, k*step)
		if occ.After(bound) {
			return occ
		}
	}
}

// Occurrence describes an upcoming billing date relative to today.
type Occurrence struct {
	Date          time.Time
	DaysFromToday int
	// IsOverdue is set when the stored anchor date has already passed.
	IsOverdue bool
}

// DescribeNextOccurrence is the display counterpart of the scheduler's window check. It
// uses the same inclusive UTC-day computation, so a renewal due today reads as 0 days away
// in both places.
func DescribeNextOccurrence(anchor time.Time, cycle BillingCycle, now time.Time) (Occurrence, bool) {
	today := DayOf(now)
	next, ok := OccurrenceOnOrAfter(anchor, cycle, today)
	if !ok {
		return Occurrence{}, false
	}
	return Occurrence{
		Date:          next,
		DaysFromToday: DaysBetween(today, next),
		IsOverdue:     DayOf(anchor).Before(today),
	}, true
}
