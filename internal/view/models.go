package view

import (
	"time"

	"finview/internal/core"
)

// Context is the explicit per-request state a dashboard is rendered from.
type Context struct {
	ActiveView     core.Category
	Ledger         *core.Ledger
	CacheTimestamp time.Time
	Cached         bool
}

type Pill struct {
	Meta
	Amount string
	Active bool
}

type Hero struct {
	Label      string
	Amount     string
	Sub        string
	ColorClass string
}

// LedgerItem is one rendered ledger row for a given category column.
type LedgerItem struct {
	Name       string
	Type       string
	Amount     string
	Icon       string
	IconClass  string
	ColorClass string
}

type LedgerList struct {
	Category    core.Category
	Title       string
	Placeholder string
	Query       string
	Items       []LedgerItem
}

// Empty reports whether the list has nothing to show.
func (l LedgerList) Empty() bool { return len(l.Items) == 0 }

// Estimate is the rendered estimator panel. When Active is false only the
// price input is shown.
type Estimate struct {
	Active  bool
	Price   string
	TaxRate string
	Rate    string

	Sticker    string
	Tax        string
	Total      string
	Affordable bool

	// Remaining is set when affordable, Shortfall otherwise.
	Remaining   string
	Shortfall   string
	WorkTime    string
	WorkNeeded  string
	FullCostRef string
}

type TrendPoint struct {
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Cumulative string `json:"cumulative"`
}

// Trend is a cumulative series with a precomputed SVG polyline.
type Trend struct {
	Category core.Category `json:"category"`
	Title    string        `json:"title"`
	Series   string        `json:"series"`
	Stroke   string        `json:"stroke"`
	Points   []TrendPoint  `json:"points"`

	Polyline string `json:"-"`
	Width    int    `json:"-"`
	Height   int    `json:"-"`
	Low      string `json:"-"`
	High     string `json:"-"`
}

// Show reports whether the chart should be rendered.
func (t Trend) Show() bool { return len(t.Points) > 0 }

type Dashboard struct {
	Active    core.Category
	Pills     []Pill
	Hero      Hero
	Estimator *Estimate
	Ledger    LedgerList
	Trend     Trend
	SyncedAt  string
	Cached    bool
}
