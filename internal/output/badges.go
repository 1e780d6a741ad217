package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

func statusStyle(s kpi.Status) lipgloss.Style {
	switch s {
	case kpi.StatusGreen:
		return StyleSuccess
	case kpi.StatusYellow:
		return StyleWarning
	case kpi.StatusRed:
		return StyleError
	}
	return StyleGray
}

func bandStyle(b kpi.Band) lipgloss.Style {
	switch b {
	case kpi.BandExcellent:
		return StyleSuccess
	case kpi.BandAttention:
		return StyleWarning
	case kpi.BandCritical:
		return StyleError
	}
	return StyleGray
}

// StatusBadge renders a status as a colored dot and label, e.g. "● green".
func StatusBadge(s kpi.Status) string {
	return statusStyle(s).Render("● " + string(s))
}

// SeverityBadge renders an alert severity.
func SeverityBadge(s kpi.Severity) string {
	label := strings.ToUpper(string(s))
	if s == kpi.SeverityCritical {
		return StyleError.Bold(!noColor).Render(label)
	}
	return StyleWarning.Render(label)
}

// BandBadge renders a health band.
func BandBadge(b kpi.Band) string {
	return bandStyle(b).Render(string(b))
}

// Percent renders an optional percentage, "n/a" when nil.
func Percent(p *float64) string {
	if p == nil {
		return StyleMuted.Render("n/a")
	}
	return fmt.Sprintf("%.1f%%", *p)
}
