// Package report renders engine reports and result history for the
// terminal (lipgloss-styled text) or for machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"stratopt/internal/domain"
	"stratopt/internal/engine"
	"stratopt/internal/optimize"
)

// Presenter writes reports and result history.
type Presenter interface {
	Present(w io.Writer, rep *engine.Report) error
	History(w io.Writer, recs []domain.StrategyRecord) error
}

// Compile-time interface checks.
var _ Presenter = (*TextPresenter)(nil)
var _ Presenter = (*JSONPresenter)(nil)

// New returns the presenter for format: "text" or "json".
func New(format string) (Presenter, error) {
	switch format {
	case "", "text":
		return &TextPresenter{MaxTrades: DefaultMaxTrades, MaxRejected: DefaultMaxRejected}, nil
	case "json":
		return &JSONPresenter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json): %w", format, domain.ErrInvalidParameter)
	}
}

// ---------------------------------------------------------------------------
// Text
// ---------------------------------------------------------------------------

// Row limits for the text presenter.
const (
	DefaultMaxTrades   = 20
	DefaultMaxRejected = 10
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	colStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	symbolStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	bestStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// TextPresenter renders reports as styled plain-text sections.
type TextPresenter struct {
	MaxTrades   int // trades listed, 0 lists all
	MaxRejected int // rejected pairs listed, 0 lists all
}

func (p *TextPresenter) Present(w io.Writer, rep *engine.Report) error {
	var b strings.Builder
	writeTitle(&b, rep)

	if rep.Search != nil {
		writeSearch(&b, rep.Search)
	}
	if rep.Search != nil && rep.Search.Best == nil {
		b.WriteString(lossStyle.Render("no valid parameter set") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	writeMetrics(&b, rep)
	writeMonthly(&b, rep.Metrics.Monthly)
	p.writeTrades(&b, rep.Trades)
	if rep.Search != nil {
		writeRanked(&b, rep.Search.Ranked)
		p.writeRejected(&b, rep.Search.Rejected)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeTitle(b *strings.Builder, rep *engine.Report) {
	title := rep.Strategy + "  " + strings.Join(rep.Symbols, "/")
	if !rep.Range.Start.IsZero() {
		title += "  " + rep.Range.String()
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	if len(rep.Params) > 0 {
		b.WriteString(labelStyle.Render("params ") + rep.Params.String() + "\n")
	}
	if rep.ID != "" {
		b.WriteString(labelStyle.Render("saved  ") + dimStyle.Render(rep.ID) + "\n")
	}
}

func writeSearch(b *strings.Builder, out *optimize.Outcome) {
	fmt.Fprintf(b, "%s %s candidates, %s evaluated, %s skipped",
		labelStyle.Render("search"),
		FormatInt(out.Total), FormatInt(out.Evaluated), FormatInt(out.Skipped))
	if len(out.Rejected) > 0 {
		fmt.Fprintf(b, ", %s pairs rejected", FormatInt(len(out.Rejected)))
	}
	b.WriteString("\n")
}

func writeMetrics(b *strings.Builder, rep *engine.Report) {
	m := rep.Metrics
	b.WriteString("\n" + headerStyle.Render(" Performance ") + "\n")
	rows := [][2]string{
		{"Final equity", FormatMoney(rep.Curve.Final())},
		{"Total return", signed(m.TotalReturn, FormatPct(m.TotalReturn))},
		{"Annualized return", signed(m.AnnualizedReturn, FormatPct(m.AnnualizedReturn))},
		{"Volatility", FormatPct(m.Volatility)},
		{"Sharpe ratio", FormatRatio(m.SharpeRatio)},
		{"Max drawdown", signed(m.MaxDrawdown, FormatPct(m.MaxDrawdown))},
		{"Calmar ratio", FormatRatio(m.CalmarRatio)},
		{"Trades", FormatInt(m.TotalTrades)},
		{"Win rate", fmt.Sprintf("%.1f%%", m.WinRate*100)},
		{"Profit factor", FormatRatio(m.ProfitFactor)},
		{"Bars", fmt.Sprintf("%s (%.0f/yr)", FormatInt(m.Bars), m.BarsPerYear)},
	}
	if rep.Search != nil {
		rows = append(rows, [2]string{"Score", FormatRatio(rep.Score)})
	}
	for _, r := range rows {
		fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", r[0])), r[1])
	}
}

// writeMonthly renders a year by month grid with the compounded yearly
// return in the last column.
func writeMonthly(b *strings.Builder, monthly []domain.MonthlyReturn) {
	if len(monthly) == 0 {
		return
	}
	b.WriteString("\n" + headerStyle.Render(" Monthly returns ") + "\n")
	b.WriteString(colStyle.Render(fmt.Sprintf("%-6s", "Year")))
	for m := time.January; m <= time.December; m++ {
		b.WriteString(colStyle.Render(fmt.Sprintf("%8s", m.String()[:3])))
	}
	b.WriteString(colStyle.Render(fmt.Sprintf("%9s", "Year")) + "\n")

	for i := 0; i < len(monthly); {
		year := monthly[i].Year
		cells := make(map[time.Month]float64)
		total := 1.0
		for ; i < len(monthly) && monthly[i].Year == year; i++ {
			cells[monthly[i].Month] = monthly[i].Return
			total *= 1 + monthly[i].Return
		}
		b.WriteString(fmt.Sprintf("%-6d", year))
		for m := time.January; m <= time.December; m++ {
			r, ok := cells[m]
			if !ok {
				b.WriteString(dimStyle.Render(fmt.Sprintf("%8s", ".")))
				continue
			}
			b.WriteString(signed(r, fmt.Sprintf("%8s", FormatPct(r))))
		}
		b.WriteString(signed(total-1, fmt.Sprintf("%9s", FormatPct(total-1))) + "\n")
	}
}

func (p *TextPresenter) writeTrades(b *strings.Builder, trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}
	b.WriteString("\n" + headerStyle.Render(" Trades ") + "\n")
	b.WriteString(colStyle.Render(fmt.Sprintf("%4s  %-8s %-5s  %-10s  %-10s %10s %10s %12s %12s",
		"#", "Symbol", "Side", "Entry", "Exit", "Entry px", "Exit px", "Size", "PnL")) + "\n")

	shown := trades
	if p.MaxTrades > 0 && len(shown) > p.MaxTrades {
		shown = shown[:p.MaxTrades]
	}
	for _, t := range shown {
		exit := t.ExitTime.Format(time.DateOnly)
		if t.Open {
			exit = "open"
		}
		fmt.Fprintf(b, "%4d  %s %-5s  %-10s  %-10s %10s %10s %12s %s\n",
			t.RoundTrip,
			symbolStyle.Render(fmt.Sprintf("%-8s", t.Symbol)),
			t.Direction,
			t.EntryTime.Format(time.DateOnly),
			exit,
			FormatPrice(t.EntryPrice),
			FormatPrice(t.ExitPrice),
			fmt.Sprintf("%.2f", t.Size),
			signed(t.PnL, fmt.Sprintf("%12s", FormatMoney(t.PnL))),
		)
	}
	if len(shown) < len(trades) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %s more", FormatInt(len(trades)-len(shown)))) + "\n")
	}
}

func writeRanked(b *strings.Builder, ranked []optimize.Result) {
	if len(ranked) == 0 {
		return
	}
	b.WriteString("\n" + headerStyle.Render(" Top candidates ") + "\n")
	b.WriteString(colStyle.Render(fmt.Sprintf("%4s  %-12s %9s %9s %8s %9s  %s",
		"Rank", "Pair", "Score", "Return", "Sharpe", "MaxDD", "Params")) + "\n")
	for i, r := range ranked {
		pair := "-"
		if r.Pair != nil {
			pair = r.Pair.String()
		}
		line := fmt.Sprintf("%4d  %-12s %9s %9s %8s %9s  %s",
			i+1, pair,
			FormatRatio(r.Score),
			FormatPct(r.Metrics.TotalReturn),
			FormatRatio(r.Metrics.SharpeRatio),
			FormatPct(r.Metrics.MaxDrawdown),
			r.Params.String(),
		)
		if i == 0 {
			line = bestStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
}

func (p *TextPresenter) writeRejected(b *strings.Builder, rejected []optimize.Rejection) {
	if len(rejected) == 0 {
		return
	}
	b.WriteString("\n" + headerStyle.Render(" Rejected pairs ") + "\n")
	shown := rejected
	if p.MaxRejected > 0 && len(shown) > p.MaxRejected {
		shown = shown[:p.MaxRejected]
	}
	for _, r := range shown {
		fmt.Fprintf(b, "  %-12s %8.3f  %s\n", r.Pair.String(), r.Statistic, dimStyle.Render(r.Reason))
	}
	if len(shown) < len(rejected) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %s more", FormatInt(len(rejected)-len(shown)))) + "\n")
	}
}

func (p *TextPresenter) History(w io.Writer, recs []domain.StrategyRecord) error {
	var b strings.Builder
	if len(recs) == 0 {
		b.WriteString(dimStyle.Render("no saved results") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	b.WriteString(colStyle.Render(fmt.Sprintf("%-8s  %-16s  %-16s %-9s %-12s %9s %8s %9s  %s",
		"ID", "Created", "Strategy", "Mode", "Symbols", "Return", "Sharpe", "MaxDD", "Params")) + "\n")
	for _, r := range recs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&b, "%-8s  %-16s  %-16s %-9s %-12s %s %8s %9s  %s\n",
			id,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Name,
			r.Mode,
			strings.Join(r.Symbols, "/"),
			signed(r.TotalReturn, fmt.Sprintf("%9s", FormatPct(r.TotalReturn))),
			FormatRatio(r.SharpeRatio),
			FormatPct(r.MaxDrawdown),
			r.Parameters,
		)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// signed colours s green for positive v and red for negative v.
func signed(v float64, s string) string {
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	default:
		return s
	}
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

// JSONPresenter writes one JSON document per call.
type JSONPresenter struct {
	Indent bool
}

type jsonReport struct {
	*engine.Report
	Start       string  `json:"start,omitempty"`
	End         string  `json:"end,omitempty"`
	FinalEquity float64 `json:"final_equity"`
}

func (p *JSONPresenter) Present(w io.Writer, rep *engine.Report) error {
	out := jsonReport{Report: rep, FinalEquity: rep.Curve.Final()}
	if !rep.Range.Start.IsZero() {
		out.Start = rep.Range.Start.Format(time.DateOnly)
		out.End = rep.Range.End.Format(time.DateOnly)
	}
	return p.encode(w, out)
}

func (p *JSONPresenter) History(w io.Writer, recs []domain.StrategyRecord) error {
	if recs == nil {
		recs = []domain.StrategyRecord{}
	}
	return p.encode(w, recs)
}

func (p *JSONPresenter) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if p.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
