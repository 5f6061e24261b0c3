package view

import (
	"fmt"
	"strings"
	"time"

	"finview/internal/core"

	"github.com/shopspring/decimal"
)

const (
	chartWidth  = 600
	chartHeight = 160
	chartPad    = 8
)

// Builder assembles view models using the configured estimator and display
// currency.
type Builder struct {
	Estimator core.Estimator
	Money     core.MoneyFormatter
}

func NewBuilder(est core.Estimator, money core.MoneyFormatter) Builder {
	return Builder{Estimator: est, Money: money}
}

// Dashboard builds the full page for ctx. price feeds the estimator on the
// spending view; query filters the ledger list.
func (b Builder) Dashboard(ctx Context, price decimal.Decimal, query string) Dashboard {
	active := ctx.ActiveView
	if !active.Valid() {
		active = core.Spending
	}
	totals := ctx.Ledger.Totals()
	meta := MetaFor(active)

	d := Dashboard{
		Active: active,
		Hero: Hero{
			Label:      meta.HeroLabel,
			Amount:     b.Money.Abs(totals.Get(active)),
			Sub:        meta.HeroSub,
			ColorClass: meta.ColorClass,
		},
		Ledger: b.Ledger(ctx.Ledger, active, query),
		Trend:  BuildTrend(ctx.Ledger, active),
		Cached: ctx.Cached,
	}
	if !ctx.CacheTimestamp.IsZero() {
		d.SyncedAt = ctx.CacheTimestamp.Local().Format(time.Kitchen)
	}
	for _, c := range core.Categories {
		d.Pills = append(d.Pills, Pill{
			Meta:   MetaFor(c),
			Amount: b.Money.Abs(totals.Get(c)),
			Active: c == active,
		})
	}
	if active == core.Spending {
		est := b.Estimate(price, totals.Spending)
		d.Estimator = &est
	}
	return d
}

// Ledger builds the searchable ledger list of category c.
func (b Builder) Ledger(l *core.Ledger, c core.Category, query string) LedgerList {
	meta := MetaFor(c)
	query = strings.TrimSpace(query)
	rows := l.Search(c, query)

	items := make([]LedgerItem, 0, len(rows))
	for _, r := range rows {
		v := r.Amount(c)
		dir := core.DirectionOf(v)
		items = append(items, LedgerItem{
			Name:       r.Name,
			Type:       core.Label(v),
			Amount:     b.Money.Signed(v),
			Icon:       dir.Icon(),
			IconClass:  dir.IconClass(),
			ColorClass: dir.ColorClass(),
		})
	}
	return LedgerList{
		Category:    c,
		Title:       meta.LedgerTitle,
		Placeholder: meta.SearchPlaceholder,
		Query:       query,
		Items:       items,
	}
}

// Estimate renders the estimator for price against the available balance.
// Non-positive prices yield an inactive panel.
func (b Builder) Estimate(price, available decimal.Decimal) Estimate {
	e := Estimate{
		TaxRate: core.FormatPercent(b.Estimator.TaxRate()),
		Rate:    b.Money.Rate(b.Estimator.HourlyRate()),
	}
	if !b.Estimator.Active(price) {
		return e
	}
	res := b.Estimator.Estimate(price, available)

	e.Active = true
	e.Price = price.StringFixed(2)
	e.Sticker = b.Money.Abs(res.StickerPrice)
	e.Tax = b.Money.Abs(res.TaxAmount)
	e.Total = b.Money.Abs(res.TotalCost)
	e.Affordable = res.Affordable
	e.WorkTime = core.FormatHours(res.LaborHours)
	if res.Affordable {
		e.Remaining = b.Money.Abs(res.ResultingBalance)
	} else {
		e.Shortfall = b.Money.Abs(res.Shortfall)
		e.WorkNeeded = core.FormatHours(res.LaborHoursNeeded)
		e.FullCostRef = e.WorkTime
	}
	return e
}

// BuildTrend computes the cumulative series of c in chronological order and
// its chart geometry.
func BuildTrend(l *core.Ledger, c core.Category) Trend {
	meta := MetaFor(c)
	t := Trend{
		Category: c,
		Title:    meta.ChartTitle,
		Series:   meta.SeriesName,
		Stroke:   meta.Stroke,
		Width:    chartWidth,
		Height:   chartHeight,
		Points:   []TrendPoint{},
	}

	rows := l.Chronological(c)
	sums := core.CumulativeSum(rows, c)
	if len(sums) == 0 {
		return t
	}
	for i, r := range rows {
		t.Points = append(t.Points, TrendPoint{
			Name:       r.Name,
			Amount:     r.Amount(c).String(),
			Cumulative: sums[i].String(),
		})
	}

	low, high := sums[0], sums[0]
	for _, v := range sums[1:] {
		low = decimal.Min(low, v)
		high = decimal.Max(high, v)
	}
	t.Low = core.FormatSigned(low)
	t.High = core.FormatSigned(high)
	t.Polyline = polyline(sums, low, high)
	return t
}

func polyline(values []decimal.Decimal, low, high decimal.Decimal) string {
	innerW := float64(chartWidth - 2*chartPad)
	innerH := float64(chartHeight - 2*chartPad)
	span := high.Sub(low).InexactFloat64()

	var sb strings.Builder
	for i, v := range values {
		x := float64(chartWidth) / 2
		if len(values) > 1 {
			x = chartPad + innerW*float64(i)/float64(len(values)-1)
		}
		y := float64(chartHeight) / 2
		if span > 0 {
			y = chartPad + innerH*(1-v.Sub(low).InexactFloat64()/span)
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
	}
	return sb.String()
}
