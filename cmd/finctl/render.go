package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"finview/internal/core"
	"finview/internal/view"
)

var styles = struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	positive lipgloss.Style
	negative lipgloss.Style
	card     lipgloss.Style
	name     lipgloss.Style
}{
	title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")),
	muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	positive: lipgloss.NewStyle().Foreground(lipgloss.Color("#30D158")),
	negative: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF453A")),
	card: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#B9B4D0")).
		Padding(0, 2),
	name: lipgloss.NewStyle().Width(28),
}

func amountStyle(v string) lipgloss.Style {
	switch {
	case strings.HasPrefix(v, "+"):
		return styles.positive
	case strings.HasPrefix(v, "−"):
		return styles.negative
	default:
		return styles.muted
	}
}

func renderTotals(w io.Writer, money core.MoneyFormatter, t core.CategoryTotals) {
	cards := make([]string, 0, len(core.Categories))
	for _, c := range core.Categories {
		meta := view.MetaFor(c)
		cards = append(cards, styles.card.Render(
			styles.muted.Render(meta.Pill)+"\n"+styles.title.Render(money.Abs(t.Get(c)))))
	}
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
}

func renderLedger(w io.Writer, list view.LedgerList, limit int) {
	fmt.Fprintln(w, styles.title.Render(list.Title))
	if list.Empty() {
		fmt.Fprintln(w, styles.muted.Render("No transactions on record."))
		return
	}
	items := list.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s %s %s  %s\n",
			it.Icon,
			styles.name.Render(it.Name),
			styles.muted.Render(fmt.Sprintf("%-6s", it.Type)),
			amountStyle(it.Amount).Render(it.Amount))
	}
	if len(items) < len(list.Items) {
		fmt.Fprintln(w, styles.muted.Render(fmt.Sprintf("… %d more", len(list.Items)-len(items))))
	}
}

func renderEstimate(w io.Writer, e view.Estimate) {
	if !e.Active {
		fmt.Fprintln(w, styles.muted.Render("Enter a price above zero."))
		return
	}
	rows := []string{
		fmt.Sprintf("%-18s %s", "Sticker price", e.Sticker),
		fmt.Sprintf("%-18s + %s", "Sales tax "+e.TaxRate, e.Tax),
		styles.title.Render(fmt.Sprintf("%-18s %s", "Total cost", e.Total)),
	}
	if e.Affordable {
		rows = append(rows,
			styles.positive.Render("You can afford this purchase"),
			fmt.Sprintf("Remaining balance  %s", e.Remaining),
			styles.muted.Render(fmt.Sprintf("costs %s of work @ %s", e.WorkTime, e.Rate)))
	} else {
		rows = append(rows,
			styles.negative.Render(fmt.Sprintf("You need %s more to afford this", e.Shortfall)),
			styles.muted.Render(fmt.Sprintf("need %s more work @ %s", e.WorkNeeded, e.Rate)),
			styles.muted.Render(fmt.Sprintf("Full cost = %s of work", e.FullCostRef)))
	}
	fmt.Fprintln(w, styles.card.Render(strings.Join(rows, "\n")))
}

func renderTrend(w io.Writer, t view.Trend) {
	fmt.Fprintln(w, styles.title.Render(t.Title))
	if !t.Show() {
		fmt.Fprintln(w, styles.muted.Render("No history yet."))
		return
	}
	for _, p := range t.Points {
		running := core.FormatSigned(core.ParseAmount(p.Cumulative))
		fmt.Fprintf(w, "%s %s\n", styles.name.Render(p.Name), amountStyle(running).Render(running))
	}
	fmt.Fprintln(w, styles.muted.Render(fmt.Sprintf("range %s – %s", t.Low, t.High)))
}
