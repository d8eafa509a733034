package event

import (
	"fmt"
	"time"

	"github.com/xraph/almanac/internal/entity"
)

// ID is the deterministic identity of a market event.
//
// It is derived from the event type slug and the projected occurrence date
// ("fomc_2025-09-17"), never randomly generated. Re-projecting the same
// occurrence therefore produces the same ID, which makes UpsertEvent a
// natural no-op and keeps dispatch-ledger keys stable across cycles.
type ID string

// NewID derives the event ID for one occurrence of a recurring event type.
func NewID(slug string, occursAt time.Time) ID {
	return ID(fmt.Sprintf("%s_%s", slug, occursAt.UTC().Format("2006-01-02")))
}

// String returns the ID as a plain string.
func (id ID) String() string { return string(id) }

// Category classifies the market area an event belongs to.
type Category string

// Known event categories.
const (
	CategoryFed        Category = "fed"
	CategoryCrypto     Category = "crypto"
	CategoryRegulation Category = "regulation"
	CategoryEarnings   Category = "earnings"
	CategoryOther      Category = "other"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryFed, CategoryCrypto, CategoryRegulation, CategoryEarnings, CategoryOther:
		return true
	}
	return false
}

// Impact is the coarse market-impact severity of an event.
type Impact string

// Impact levels, ordered high to low.
const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Valid reports whether the impact is one of the known values.
func (i Impact) Valid() bool {
	switch i {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return true
	}
	return false
}

// Event is one projected occurrence of a recurring market event.
//
// Identity and OccursAt are immutable once persisted: a changed schedule is
// a new event (new ID), not a mutation. Past events are superseded by the
// next projection rather than deleted; operators may suppress an event from
// matching with MarkIgnored.
type Event struct {
	entity.Entity

	// ID is the deterministic identity (slug + occurrence date).
	ID ID `json:"id"`

	// Title is the human-readable event name.
	Title string `json:"title"`

	// Description explains what happens when the event occurs.
	Description string `json:"description"`

	// Category classifies the market area.
	Category Category `json:"category"`

	// Impact is the coarse severity used by subscriber impact filters.
	Impact Impact `json:"impact"`

	// OccursAt is the absolute occurrence time. Always in the future at
	// creation; immutable afterwards.
	OccursAt time.Time `json:"occurs_at"`

	// Source records the provenance of the recurrence rule.
	Source string `json:"source"`

	// Ignored suppresses the event from matching without deleting it.
	Ignored bool `json:"ignored"`

	// IgnoredAt is when the event was suppressed.
	IgnoredAt *time.Time `json:"ignored_at,omitempty"`
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset         int
	Limit          int
	Category       Category
	IncludeIgnored bool
	From           *time.Time
	To             *time.Time
}
