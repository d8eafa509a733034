package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRule is returned when a recurrence rule cannot be projected.
// It is fatal to that event type only; other types continue to project.
var ErrMalformedRule = errors.New("calendar: malformed recurrence rule")

// Kind identifies the recurrence rule family.
type Kind string

// Supported recurrence rule kinds.
const (
	// KindDayOfMonth fires on a fixed day of every month ("the 13th").
	// Days beyond a month's end clamp to the last day of that month.
	KindDayOfMonth Kind = "day_of_month"

	// KindNthWeekday fires on the Nth weekday of a month ("first Friday"),
	// optionally restricted to a subset of months.
	KindNthWeekday Kind = "nth_weekday"

	// KindIntervalWeeks fires every N weeks from a fixed anchor
	// ("every 6 weeks since 2024-01-31").
	KindIntervalWeeks Kind = "interval_weeks"

	// KindIntervalDays fires every N days from a fixed historical anchor.
	// Used for multi-year cycles such as the Bitcoin halving.
	KindIntervalDays Kind = "interval_days"
)

// Rule describes one recurrence rule. Which fields are meaningful depends
// on Kind; Validate enforces the per-kind requirements.
type Rule struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// Day is the day of month for KindDayOfMonth (1-31).
	Day int `json:"day,omitempty" yaml:"day,omitempty"`

	// Week selects the Nth occurrence for KindNthWeekday (1-5).
	Week int `json:"week,omitempty" yaml:"week,omitempty"`

	// Weekday is the weekday for KindNthWeekday (0=Sunday .. 6=Saturday).
	Weekday time.Weekday `json:"weekday,omitempty" yaml:"weekday,omitempty"`

	// Months optionally restricts KindNthWeekday to these months (1-12).
	// Empty means every month.
	Months []time.Month `json:"months,omitempty" yaml:"months,omitempty"`

	// Weeks is the interval length for KindIntervalWeeks.
	Weeks int `json:"weeks,omitempty" yaml:"weeks,omitempty"`

	// Days is the interval length for KindIntervalDays.
	Days int `json:"days,omitempty" yaml:"days,omitempty"`

	// Anchor is the fixed starting occurrence for the interval kinds.
	// Its time of day carries over to every projected occurrence.
	Anchor time.Time `json:"anchor,omitempty" yaml:"anchor,omitempty"`

	// Hour is the UTC hour of day for the calendar kinds (0-23).
	Hour int `json:"hour,omitempty" yaml:"hour,omitempty"`
}

// Validate checks the per-kind field requirements. All projection errors
// wrap ErrMalformedRule.
func (r Rule) Validate() error {
	if r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrMalformedRule, r.Hour)
	}

	switch r.Kind {
	case KindDayOfMonth:
		if r.Day < 1 || r.Day > 31 {
			return fmt.Errorf("%w: day_of_month day %d out of range", ErrMalformedRule, r.Day)
		}
	case KindNthWeekday:
		if r.Week < 1 || r.Week > 5 {
			return fmt.Errorf("%w: nth_weekday week %d out of range", ErrMalformedRule, r.Week)
		}
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			return fmt.Errorf("%w: nth_weekday weekday %d out of range", ErrMalformedRule, r.Weekday)
		}
		for _, m := range r.Months {
			if m < time.January || m > time.December {
				return fmt.Errorf("%w: nth_weekday month %d out of range", ErrMalformedRule, m)
			}
		}
	case KindIntervalWeeks:
		if r.Weeks < 1 {
			return fmt.Errorf("%w: interval_weeks weeks %d out of range", ErrMalformedRule, r.Weeks)
		}
		if r.Anchor.IsZero() {
			return fmt.Errorf("%w: interval_weeks requires an anchor", ErrMalformedRule)
		}
	case KindIntervalDays:
		if r.Days < 1 {
			return fmt.Errorf("%w: interval_days days %d out of range", ErrMalformedRule, r.Days)
		}
		if r.Anchor.IsZero() {
			return fmt.Errorf("%w: interval_days requires an anchor", ErrMalformedRule)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedRule, r.Kind)
	}

	return nil
}
