// Package report renders fund comparisons as PNG charts and plain text.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Comparison chart (PNG)
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters.
type ChartConfig struct {
	Width  int
	Height int
	Title  string
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{Width: 900, Height: 420}
}

// RenderComparisonChart draws both funds rebased to 100 on a shared time
// axis, plus a dashed baseline at 100. Returns raw PNG bytes.
func RenderComparisonChart(cmp *models.Comparison, cfg ChartConfig) ([]byte, error) {
	if cmp == nil || len(cmp.Chart) < 2 {
		n := 0
		if cmp != nil {
			n = len(cmp.Chart)
		}
		return nil, fmt.Errorf("need at least 2 common data points, got %d", n)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultChartConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Title == "" {
		cfg.Title = fmt.Sprintf("Growth of 100 (%s, %s to %s)", cmp.Timeframe, cmp.From, cmp.To)
	}

	xValues := make([]time.Time, 0, len(cmp.Chart))
	aY := make([]float64, 0, len(cmp.Chart))
	bY := make([]float64, 0, len(cmp.Chart))
	for _, p := range cmp.Chart {
		t, err := utils.ParseNAVDate(p.Date)
		if err != nil {
			continue
		}
		xValues = append(xValues, t)
		aY = append(aY, p.NormalizedA)
		bY = append(bY, p.NormalizedB)
	}
	if len(xValues) < 2 {
		return nil, fmt.Errorf("need at least 2 dated points, got %d", len(xValues))
	}

	baseline := make([]float64, len(xValues))
	for i := range baseline {
		baseline[i] = 100
	}

	graph := chart.Chart{
		Title:  cfg.Title,
		Width:  cfg.Width,
		Height: cfg.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    label(cmp.FundA),
				Style:   chart.Style{StrokeColor: drawing.ColorFromHex("2563eb"), StrokeWidth: 2}, // blue-600
				XValues: xValues,
				YValues: aY,
			},
			chart.TimeSeries{
				Name:    label(cmp.FundB),
				Style:   chart.Style{StrokeColor: drawing.ColorFromHex("ea580c"), StrokeWidth: 2}, // orange-600
				XValues: xValues,
				YValues: bY,
			},
			chart.TimeSeries{
				Name: "Base 100",
				Style: chart.Style{
					StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
					StrokeWidth:     1,
					StrokeDashArray: []float64{5.0, 3.0},
				},
				XValues: xValues,
				YValues: baseline,
			},
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func label(f models.ComparedFund) string {
	name := f.Name
	if name == "" {
		name = f.ISIN
	}
	if len(name) > 40 {
		name = name[:37] + "..."
	}
	return name
}
