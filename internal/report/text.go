package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

var (
	line     = strings.Repeat("═", 72)
	thinLine = strings.Repeat("─", 72)
)

// MetricsText renders one fund's metrics as a block of aligned rows.
func MetricsText(m models.CalculatedMetrics) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s (%s)\n", m.FundName, m.FundID))
	sb.WriteString(thinLine + "\n")
	for _, r := range metricRows(m) {
		sb.WriteString(fmt.Sprintf("    %-22s %s\n", r[0], r[1]))
	}
	return sb.String()
}

func metricRows(m models.CalculatedMetrics) [][2]string {
	latest := m.LatestDate
	if latest == "" {
		latest = "n/a"
	}
	return [][2]string{
		{"NAV", utils.FormatNAV(m.CurrentNAV)},
		{"As of", latest},
		{"Return 1Y", utils.FormatPct(m.TotalReturn1Y)},
		{"Return 3Y", utils.FormatOptionalPct(m.TotalReturn3Y)},
		{"Return 5Y", utils.FormatOptionalPct(m.TotalReturn5Y)},
		{"CAGR 1Y", utils.FormatPct(m.AnnualizedReturn1Y)},
		{"CAGR 3Y", utils.FormatOptionalPct(m.AnnualizedReturn3Y)},
		{"CAGR 5Y", utils.FormatOptionalPct(m.AnnualizedReturn5Y)},
		{"Volatility 1Y", fmt.Sprintf("%.2f%%", m.Volatility1Y)},
		{"Max drawdown 1Y", fmt.Sprintf("%.2f%%", m.MaxDrawdown1Y)},
		{"Sharpe 1Y", utils.FormatOptionalRatio(m.SharpeRatio1Y)},
	}
}

// ComparisonText renders a side-by-side comparison with the rebased end
// values of the chart.
func ComparisonText(cmp *models.Comparison) string {
	var sb strings.Builder

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  Fund comparison (%s): %s to %s\n", cmp.Timeframe, cmp.From, cmp.To))
	sb.WriteString(fmt.Sprintf("  Generated: %s\n", ReportTimestamp()))
	sb.WriteString(line + "\n\n")

	rowsA := metricRows(cmp.FundA.Metrics)
	rowsB := metricRows(cmp.FundB.Metrics)

	sb.WriteString(fmt.Sprintf("  %-18s %-24s %-24s\n", "", truncate(label(cmp.FundA), 24), truncate(label(cmp.FundB), 24)))
	sb.WriteString(thinLine + "\n")
	for i := range rowsA {
		sb.WriteString(fmt.Sprintf("  %-18s %-24s %-24s\n", rowsA[i][0], rowsA[i][1], rowsB[i][1]))
	}
	sb.WriteString(fmt.Sprintf("  %-18s %-24d %-24d\n", "History points", cmp.FundA.Points, cmp.FundB.Points))
	sb.WriteString(fmt.Sprintf("  %-18s %-24s %-24s\n", "Recent data", yesNo(cmp.FundA.Fresh), yesNo(cmp.FundB.Fresh)))
	sb.WriteString(thinLine + "\n")

	if n := len(cmp.Chart); n > 0 {
		last := cmp.Chart[n-1]
		sb.WriteString(fmt.Sprintf("\n  ■ Growth of 100 over %d common dates\n", n))
		sb.WriteString(fmt.Sprintf("    %-22s %.2f\n", truncate(label(cmp.FundA), 22), last.NormalizedA))
		sb.WriteString(fmt.Sprintf("    %-22s %.2f\n", truncate(label(cmp.FundB), 22), last.NormalizedB))
	} else {
		sb.WriteString("\n  No common dates in the selected timeframe.\n")
	}

	if !cmp.FundA.Fresh || !cmp.FundB.Fresh {
		sb.WriteString("\n  Note: long-window figures for funds without recent data may be unreliable.\n")
	}

	sb.WriteString("\n" + line + "\n")
	sb.WriteString("  Past performance does not guarantee future returns.\n")
	sb.WriteString(line + "\n")
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ReportTimestamp returns current IST time formatted for report headers.
func ReportTimestamp() string {
	return utils.NowIST().Format("02 Jan 2006, 03:04 PM IST")
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
