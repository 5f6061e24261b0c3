// Package view turns ledger snapshots and estimator results into typed view
// models for the templates. It never produces markup.
package view

import "finview/internal/core"

// Meta carries the presentation labels of one category view.
type Meta struct {
	Category          core.Category
	Pill              string
	HeroLabel         string
	HeroSub           string
	ColorClass        string
	PillClass         string
	LedgerTitle       string
	SearchPlaceholder string
	ChartTitle        string
	SeriesName        string
	Stroke            string
}

var metas = map[core.Category]Meta{
	core.Spending: {
		Category:          core.Spending,
		Pill:              "DISCRETIONARY",
		HeroLabel:         "Discretionary Balance",
		HeroSub:           "Available to spend · Synced from ledger",
		ColorClass:        "spend-color",
		PillClass:         "pill-active-spend",
		LedgerTitle:       "Transaction Ledger",
		SearchPlaceholder: "Search transactions…",
		ChartTitle:        "Balance History",
		SeriesName:        "Discretionary",
		Stroke:            "#ff453a",
	},
	core.Savings: {
		Category:          core.Savings,
		Pill:              "RESERVES",
		HeroLabel:         "Reserve Balance",
		HeroSub:           "Long-term reserves · Growing steadily",
		ColorClass:        "save-color",
		PillClass:         "pill-active-save",
		LedgerTitle:       "Deposit Ledger",
		SearchPlaceholder: "Search deposits…",
		ChartTitle:        "Reserve Growth",
		SeriesName:        "Reserves",
		Stroke:            "#30d158",
	},
	core.Giving: {
		Category:          core.Giving,
		Pill:              "CHARITABLE",
		HeroLabel:         "Charitable Balance",
		HeroSub:           "Set aside for giving · Making a difference",
		ColorClass:        "give-color",
		PillClass:         "pill-active-give",
		LedgerTitle:       "Contribution Ledger",
		SearchPlaceholder: "Search contributions…",
		ChartTitle:        "Giving History",
		SeriesName:        "Charitable",
		Stroke:            "#0a84ff",
	},
}

// MetaFor returns the labels for c, falling back to spending for unknown
// categories.
func MetaFor(c core.Category) Meta {
	if m, ok := metas[c]; ok {
		return m
	}
	return metas[core.Spending]
}
