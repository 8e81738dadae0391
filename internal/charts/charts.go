// Package charts renders the dashboard's category summary as a PNG.
package charts

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"expenses/internal/core"
)

const (
	height      = 400
	minWidth    = 600
	barWidth    = 48
	barSpacing  = 24
	maxLabelLen = 14
)

// CategoryGenerator draws bar charts of spending per category.
type CategoryGenerator struct{}

func NewCategoryGenerator() *CategoryGenerator {
	return &CategoryGenerator{}
}

// CategoryBars renders one bar per category in the given order. It returns
// nil and no error when there is nothing to draw.
func (g *CategoryGenerator) CategoryBars(totals []core.CategoryAmount) ([]byte, error) {
	if len(totals) == 0 {
		return nil, nil
	}

	bars := make([]chart.Value, 0, len(totals))
	maxValue := 0.0
	for _, t := range totals {
		v := t.Amount.Float()
		if v > maxValue {
			maxValue = v
		}
		bars = append(bars, chart.Value{Label: shorten(t.Name), Value: v})
	}
	if maxValue <= 0 {
		return nil, nil
	}

	width := len(bars)*(barWidth+barSpacing) + 120
	if width < minWidth {
		width = minWidth
	}

	graph := chart.BarChart{
		Title:  "Spending by category",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: chart.ColorWhite,
		},
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: maxValue * 1.1,
			},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render category chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// Digest identifies a set of totals. Equal totals in equal order share a
// digest, so it can key a cache of rendered charts.
func Digest(totals []core.CategoryAmount) string {
	h := sha256.New()
	for _, t := range totals {
		fmt.Fprintf(h, "%s\x00%s\n", t.Name, t.Amount.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func shorten(label string) string {
	r := []rune(label)
	if len(r) <= maxLabelLen {
		return label
	}
	return string(r[:maxLabelLen-1]) + "…"
}
