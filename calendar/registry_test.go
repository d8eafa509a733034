package calendar_test

import (
	"strings"
	"testing"
	"time"

	"github.com/xraph/almanac/calendar"
	"github.com/xraph/almanac/event"
)

func TestRegistryRegisterAndList(t *testing.T) {
	reg := calendar.NewRegistry(nil)

	for _, def := range calendar.DefaultDefinitions() {
		if err := reg.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Slug, err)
		}
	}

	defs := reg.List()
	if len(defs) != reg.Len() {
		t.Fatalf("List returned %d, Len says %d", len(defs), reg.Len())
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Slug >= defs[i].Slug {
			t.Fatalf("List not sorted: %s before %s", defs[i-1].Slug, defs[i].Slug)
		}
	}

	if _, err := reg.Get("fomc"); err != nil {
		t.Fatalf("Get fomc: %v", err)
	}
	if _, err := reg.Get("nope"); err == nil {
		t.Fatal("Get unknown slug: expected error")
	}
}

func TestRegistryRejectsInvalidDefinition(t *testing.T) {
	reg := calendar.NewRegistry(nil)

	err := reg.Register(calendar.Definition{
		Slug:     "broken",
		Title:    "Broken",
		Category: event.CategoryOther,
		Impact:   event.ImpactLow,
		Rule:     calendar.Rule{Kind: calendar.KindDayOfMonth, Day: 42},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadYAML(t *testing.T) {
	reg := calendar.NewRegistry(nil)

	data := `
- slug: opec-meeting
  title: OPEC Ministerial Meeting
  category: other
  impact: medium
  source: opec.org
  rule:
    kind: day_of_month
    day: 4
    hour: 12
`
	n, err := reg.LoadYAML([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("loaded %d definitions, want 1", n)
	}

	def, err := reg.Get("opec-meeting")
	if err != nil {
		t.Fatal(err)
	}
	if def.Rule.Day != 4 {
		t.Errorf("day = %d, want 4", def.Rule.Day)
	}
}

func TestLoadJSONValidatesShape(t *testing.T) {
	reg := calendar.NewRegistry(nil)

	// Impact outside the enum must fail schema validation.
	bad := `[{"slug":"x","title":"X","category":"fed","impact":"extreme","rule":{"kind":"day_of_month","day":1}}]`
	if _, err := reg.LoadJSON([]byte(bad)); err == nil {
		t.Fatal("expected schema validation error")
	}
	if reg.Len() != 0 {
		t.Fatal("failed batch must register nothing")
	}

	good := `[{"slug":"ecb-meeting","title":"ECB Rate Decision","category":"fed","impact":"high",
	           "rule":{"kind":"interval_weeks","weeks":6,"anchor":"2024-01-25T13:15:00Z"}}]`
	n, err := reg.LoadJSON([]byte(good))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("loaded %d definitions, want 1", n)
	}
}

func TestDefinitionProjectDerivesStableID(t *testing.T) {
	def := calendar.Definition{
		Slug:     "fomc",
		Title:    "FOMC Rate Decision",
		Category: event.CategoryFed,
		Impact:   event.ImpactHigh,
		Rule: calendar.Rule{
			Kind:   calendar.KindIntervalWeeks,
			Weeks:  6,
			Anchor: time.Date(2025, time.September, 17, 18, 0, 0, 0, time.UTC),
		},
	}

	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	first, err := def.Project(now)
	if err != nil {
		t.Fatal(err)
	}
	second, err := def.Project(now.Add(48 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Fatalf("re-projection changed identity: %s vs %s", first.ID, second.ID)
	}
	if !strings.HasPrefix(first.ID.String(), "fomc_") {
		t.Fatalf("unexpected ID format: %s", first.ID)
	}
	if !first.OccursAt.After(now) {
		t.Fatal("projected occurrence not in the future")
	}
}
