package calendar

import (
	"fmt"
	"time"
)

// ProjectNext computes the single next occurrence of a recurrence rule.
//
// The result is always strictly after now: if the naive rule date has
// already passed, the projection advances one recurrence unit at a time
// until it is in the future. ProjectNext is a pure function of (rule, now);
// for a fixed rule the projected occurrence never regresses as now
// increases. All arithmetic is in UTC.
func ProjectNext(r Rule, now time.Time) (time.Time, error) {
	if err := r.Validate(); err != nil {
		return time.Time{}, err
	}

	now = now.UTC()

	switch r.Kind {
	case KindDayOfMonth:
		return nextDayOfMonth(r, now), nil
	case KindNthWeekday:
		return nextNthWeekday(r, now)
	case KindIntervalWeeks:
		return nextInterval(r.Anchor, time.Duration(r.Weeks)*7*24*time.Hour, now), nil
	case KindIntervalDays:
		return nextInterval(r.Anchor, time.Duration(r.Days)*24*time.Hour, now), nil
	}

	// Unreachable: Validate rejects unknown kinds.
	return time.Time{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedRule, r.Kind)
}

// nextDayOfMonth finds the next monthly occurrence, clamping the day to
// short months (day 31 in April fires on April 30).
func nextDayOfMonth(r Rule, now time.Time) time.Time {
	year, month, _ := now.Date()

	for range 24 {
		day := min(r.Day, daysIn(year, month))
		candidate := time.Date(year, month, day, r.Hour, 0, 0, 0, time.UTC)
		if candidate.After(now) {
			return candidate
		}
		year, month = nextMonth(year, month)
	}

	// A monthly rule always fires within two years; never reached.
	return time.Time{}
}

// nextNthWeekday finds the next "Nth weekday of the month" occurrence,
// skipping months where the Nth occurrence does not exist (a fifth Friday)
// or that are excluded by the rule's month subset.
func nextNthWeekday(r Rule, now time.Time) (time.Time, error) {
	year, month, _ := now.Date()

	// 60 months bounds the search even for a single allowed month with a
	// frequently-missing fifth occurrence.
	for range 60 {
		if monthAllowed(r.Months, month) {
			if candidate, ok := nthWeekdayOf(year, month, r.Week, r.Weekday, r.Hour); ok && candidate.After(now) {
				return candidate, nil
			}
		}
		year, month = nextMonth(year, month)
	}

	return time.Time{}, fmt.Errorf("%w: nth_weekday never occurs", ErrMalformedRule)
}

// nextInterval finds the smallest anchor + k*period strictly after now.
func nextInterval(anchor time.Time, period time.Duration, now time.Time) time.Time {
	anchor = anchor.UTC()
	if anchor.After(now) {
		return anchor
	}

	elapsed := now.Sub(anchor)
	k := elapsed / period
	candidate := anchor.Add(k * period)
	for !candidate.After(now) {
		candidate = candidate.Add(period)
	}
	return candidate
}

// nthWeekdayOf returns the Nth weekday of the given month, or ok=false if
// that occurrence does not exist (e.g. a fifth Monday).
func nthWeekdayOf(year int, month time.Month, week int, weekday time.Weekday, hour int) (time.Time, bool) {
	first := time.Date(year, month, 1, hour, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (week-1)*7
	if day > daysIn(year, month) {
		return time.Time{}, false
	}
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC), true
}

func monthAllowed(months []time.Month, m time.Month) bool {
	if len(months) == 0 {
		return true
	}
	for _, allowed := range months {
		if allowed == m {
			return true
		}
	}
	return false
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// daysIn returns the number of days in a month; day 0 of the next month
// normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
