// Package output provides styled terminal rendering helpers for kpiwatch.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorSuccess is used for positive indicators and improvements.
	ColorSuccess = lipgloss.Color("#66bb6a")

	// ColorError is used for negative indicators and regressions.
	ColorError = lipgloss.Color("#ef5350")

	// ColorWarning is used for caution indicators.
	ColorWarning = lipgloss.Color("#fff59d")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")

	// ColorWhite is used for primary text.
	ColorWhite = lipgloss.Color("#ffffff")

	// ColorGray marks metrics without enough data.
	ColorGray = lipgloss.Color("#9e9e9e")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers.
	StyleHeader lipgloss.Style

	// StyleSuccess is used for positive values and green metrics.
	StyleSuccess lipgloss.Style

	// StyleError is used for negative values and red metrics.
	StyleError lipgloss.Style

	// StyleWarning is used for yellow metrics and warnings.
	StyleWarning lipgloss.Style

	// StyleMuted is used for de-emphasized text.
	StyleMuted lipgloss.Style

	// StyleGray is used for metrics without data.
	StyleGray lipgloss.Style

	// StyleBold is used for emphasized text.
	StyleBold lipgloss.Style

	// StyleLabel is used for metric labels.
	StyleLabel lipgloss.Style

	// StyleValue is used for metric values.
	StyleValue lipgloss.Style
)

func init() {
	applyStyles(false)
}

func applyStyles(disabled bool) {
	plain := lipgloss.NewStyle()
	if disabled {
		StyleHeader = plain
		StyleSuccess = plain
		StyleError = plain
		StyleWarning = plain
		StyleMuted = plain
		StyleGray = plain
		StyleBold = plain
		StyleLabel = plain.Width(24)
		StyleValue = plain.Width(12)
		return
	}
	StyleHeader = plain.Foreground(ColorPrimary).Bold(true)
	StyleSuccess = plain.Foreground(ColorSuccess)
	StyleError = plain.Foreground(ColorError)
	StyleWarning = plain.Foreground(ColorWarning)
	StyleMuted = plain.Foreground(ColorMuted)
	StyleGray = plain.Foreground(ColorGray)
	StyleBold = plain.Bold(true)
	StyleLabel = plain.Width(24)
	StyleValue = plain.Bold(true).Width(12)
}

// noColor tracks whether color output is disabled.
var noColor bool

// SetNoColor disables or enables color output globally.
func SetNoColor(disabled bool) {
	noColor = disabled
	applyStyles(disabled)
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}

// AutoColor applies the configured color preference, turning color off when
// stdout is not a terminal or NO_COLOR is set.
func AutoColor(enabled bool) {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	SetNoColor(!enabled || !tty || os.Getenv("NO_COLOR") != "")
}
