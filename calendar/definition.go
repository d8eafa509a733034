package calendar

import (
	"fmt"
	"time"

	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/internal/entity"
)

// Definition is the canonical description of a recurring market event type.
// It is the unit of Almanac's calendar: definitions are registered at boot,
// loaded from JSON/YAML rule sets, or added programmatically.
type Definition struct {
	// Slug is the stable, URL-safe type name ("fomc", "btc-halving").
	// Event IDs are derived from it, so renaming a slug creates new events.
	Slug string `json:"slug" yaml:"slug"`

	// Title is the human-readable event name shown in notifications.
	Title string `json:"title" yaml:"title"`

	// Description explains what happens when the event occurs.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Category classifies the market area.
	Category event.Category `json:"category" yaml:"category"`

	// Impact is the coarse severity used by subscriber impact filters.
	Impact event.Impact `json:"impact" yaml:"impact"`

	// Source records where the recurrence rule comes from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Rule is the recurrence rule projected each cycle.
	Rule Rule `json:"rule" yaml:"rule"`
}

// Validate checks the definition fields and its recurrence rule.
func (d Definition) Validate() error {
	if d.Slug == "" {
		return fmt.Errorf("calendar: definition slug is required")
	}
	if d.Title == "" {
		return fmt.Errorf("calendar: definition %q: title is required", d.Slug)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("calendar: definition %q: invalid category %q", d.Slug, d.Category)
	}
	if !d.Impact.Valid() {
		return fmt.Errorf("calendar: definition %q: invalid impact %q", d.Slug, d.Impact)
	}
	if err := d.Rule.Validate(); err != nil {
		return fmt.Errorf("calendar: definition %q: %w", d.Slug, err)
	}
	return nil
}

// Project builds the event for the definition's next occurrence after now.
// The event ID is derived from (slug, occurrence date), so projecting the
// same occurrence twice yields the same event.
func (d Definition) Project(now time.Time) (*event.Event, error) {
	occursAt, err := ProjectNext(d.Rule, now)
	if err != nil {
		return nil, fmt.Errorf("calendar: project %q: %w", d.Slug, err)
	}

	return &event.Event{
		Entity:      entity.New(),
		ID:          event.NewID(d.Slug, occursAt),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Impact:      d.Impact,
		OccursAt:    occursAt,
		Source:      d.Source,
	}, nil
}
