package forecast

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Summary renders the report as plain text for chat replies.
func (r *Report) Summary() string {
	q := r.Query
	h := r.Projection.History
	o := r.Projection.Outlook
	agg := r.Projection.Aggregate

	var b strings.Builder
	fmt.Fprintf(&b, "%s • %s invested in %d\n", q.Symbol, q.Amount.StringFixed(2), q.StartYear)
	fmt.Fprintf(&b, "Final value: %s\n", h.FinalValue.StringFixed(2))
	fmt.Fprintf(&b, "Gain/Loss: %s (%s%%)\n", signed(h.GainOrLoss), signedPct(h.TotalReturnPct))
	fmt.Fprintf(&b, "Max drawdown: %.2f%%\n", h.MaxDrawdownPct)
	if r.Stats != nil {
		fmt.Fprintf(&b, "CAGR: %.2f%% • Vol: %.2f%% • Sharpe: %.2f\n", r.Stats.AnnualReturn, r.Stats.Volatility, r.Stats.SharpeRatio)
	}
	fmt.Fprintf(&b, "\nNext %d trading days • %d scenarios\n", q.HorizonDays, q.Scenarios)
	fmt.Fprintf(&b, "Mean: %s\n", o.Mean.StringFixed(2))
	fmt.Fprintf(&b, "Median: %s\n", o.Median.StringFixed(2))
	fmt.Fprintf(&b, "P%g: %s\n", agg.PercentileLevel*100, o.Lower.StringFixed(2))
	fmt.Fprintf(&b, "P%g: %s\n", (1-agg.PercentileLevel)*100, o.Upper.StringFixed(2))
	fmt.Fprintf(&b, "P(loss): %.1f%%", agg.ProbabilityOfLoss*100)
	if q.Seed != nil {
		fmt.Fprintf(&b, "\nSeed: %d", *q.Seed)
	}
	return b.String()
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

func signedPct(p float64) string {
	if p < 0 {
		return fmt.Sprintf("%.2f", p)
	}
	return fmt.Sprintf("+%.2f", p)
}
