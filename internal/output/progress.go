package output

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// ScoreBar renders a visual bar for a 0-100 composite score, colored by band.
// Example: "███████████████░░░░░ 75/100"
func ScoreBar(score int, band kpi.Band, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := score * width / 100
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	label := fmt.Sprintf("%d/100", score)
	if band == kpi.BandInsufficientData {
		label = "no data"
	}

	return fmt.Sprintf("%s %s", bandStyle(band).Render(bar), StyleMuted.Render(label))
}

// ProgressBar renders a metric's progress toward target, capped at full width.
func ProgressBar(c kpi.ClassifiedMetric, width int) string {
	if width <= 0 {
		width = 10
	}
	if c.ProgressPercent == nil {
		return StyleGray.Render(strings.Repeat("·", width))
	}
	filled := int(*c.ProgressPercent / 100 * float64(width))
	filled = max(0, min(filled, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return statusStyle(c.Status).Render(bar)
}

// TrendArrow returns a styled trend indicator for a delta value.
// Positive delta shows an up arrow, negative shows down, zero shows a dash.
// The higherIsBetter parameter decides whether up is colored as good.
func TrendArrow(delta float64, higherIsBetter bool) string {
	if delta == 0 {
		return StyleMuted.Render("─")
	}

	isPositive := delta > 0
	isImproved := (isPositive && higherIsBetter) || (!isPositive && !higherIsBetter)

	var arrow string
	if isPositive {
		arrow = fmt.Sprintf("▲ +%.1f", delta)
	} else {
		arrow = fmt.Sprintf("▼ %.1f", delta)
	}

	if isImproved {
		return StyleSuccess.Render(arrow)
	}
	return StyleError.Render(arrow)
}

// TrendIndicator renders a classified trend. The verdict decides the color;
// the sign of the delta decides the arrow.
func TrendIndicator(t kpi.Trend) string {
	switch t.Direction {
	case kpi.TrendImproving:
		return StyleSuccess.Render(arrowFor(t.Delta) + " improving")
	case kpi.TrendDeclining:
		return StyleError.Render(arrowFor(t.Delta) + " declining")
	}
	if t.Points < 2 {
		return StyleMuted.Render("─")
	}
	return StyleMuted.Render("─ stable")
}

func arrowFor(delta float64) string {
	if delta < 0 {
		return "▼"
	}
	return "▲"
}

// Section prints a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}
