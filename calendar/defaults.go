package calendar

import "time"

// DefaultDefinitions returns the built-in market calendar. Applications can
// replace or extend it via Registry.Register and the JSON/YAML loaders.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Slug:        "fomc",
			Title:       "FOMC Rate Decision",
			Description: "Federal Open Market Committee interest rate announcement.",
			Category:    "fed",
			Impact:      "high",
			Source:      "federalreserve.gov",
			Rule: Rule{
				Kind:   KindIntervalWeeks,
				Weeks:  6,
				Anchor: time.Date(2024, time.January, 31, 19, 0, 0, 0, time.UTC),
			},
		},
		{
			Slug:        "cpi-release",
			Title:       "CPI Release",
			Description: "US Consumer Price Index monthly release.",
			Category:    "fed",
			Impact:      "high",
			Source:      "bls.gov",
			Rule: Rule{
				Kind: KindDayOfMonth,
				Day:  13,
				Hour: 13,
			},
		},
		{
			Slug:        "jobs-report",
			Title:       "US Jobs Report",
			Description: "Nonfarm payrolls and unemployment rate release.",
			Category:    "fed",
			Impact:      "high",
			Source:      "bls.gov",
			Rule: Rule{
				Kind:    KindNthWeekday,
				Week:    1,
				Weekday: time.Friday,
				Hour:    13,
			},
		},
		{
			Slug:        "btc-halving",
			Title:       "Bitcoin Halving",
			Description: "Bitcoin block subsidy halving, roughly every four years.",
			Category:    "crypto",
			Impact:      "high",
			Source:      "bitcoin.org",
			Rule: Rule{
				Kind:   KindIntervalDays,
				Days:   1460,
				Anchor: time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			Slug:        "quad-witching",
			Title:       "Quadruple Witching",
			Description: "Simultaneous expiry of index futures and options.",
			Category:    "other",
			Impact:      "medium",
			Source:      "nyse.com",
			Rule: Rule{
				Kind:    KindNthWeekday,
				Week:    3,
				Weekday: time.Friday,
				Months:  []time.Month{time.March, time.June, time.September, time.December},
				Hour:    20,
			},
		},
		{
			Slug:        "cot-report",
			Title:       "CFTC Commitments of Traders",
			Description: "Weekly futures positioning report.",
			Category:    "regulation",
			Impact:      "low",
			Source:      "cftc.gov",
			Rule: Rule{
				Kind:   KindIntervalWeeks,
				Weeks:  1,
				Anchor: time.Date(2024, time.January, 5, 20, 30, 0, 0, time.UTC),
			},
		},
	}
}
