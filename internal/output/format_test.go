package output

import (
	"strings"
	"testing"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		v    *float64
		f    kpi.Format
		want string
	}{
		{"nil", nil, kpi.FormatCurrency, "─"},
		{"currency", kpi.Float(85000), kpi.FormatCurrency, "$85,000.00"},
		{"negative currency", kpi.Float(-1234.5), kpi.FormatCurrency, "-$1,234.50"},
		{"percent", kpi.Float(6.5), kpi.FormatPercent, "6.5%"},
		{"one day", kpi.Float(1), kpi.FormatDays, "1 day"},
		{"days", kpi.Float(12), kpi.FormatDays, "12 days"},
		{"number", kpi.Float(1234567), kpi.FormatNumber, "1,234,567"},
		{"fractional number", kpi.Float(7.25), kpi.FormatNumber, "7.25"},
		{"empty format is a number", kpi.Float(42), "", "42"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatValue(tc.v, tc.f, "$"); got != tc.want {
				t.Errorf("FormatValue() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBadges_NoColor(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	if got := StatusBadge(kpi.StatusYellow); got != "● yellow" {
		t.Errorf("StatusBadge = %q", got)
	}
	if got := SeverityBadge(kpi.SeverityCritical); got != "CRITICAL" {
		t.Errorf("SeverityBadge = %q", got)
	}
	if got := BandBadge(kpi.BandInsufficientData); got != "Insufficient data" {
		t.Errorf("BandBadge = %q", got)
	}
	if got := Percent(nil); got != "n/a" {
		t.Errorf("Percent(nil) = %q", got)
	}
	if got := Percent(kpi.Float(95)); got != "95.0%" {
		t.Errorf("Percent(95) = %q", got)
	}
}

func TestScoreBar(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	got := ScoreBar(75, kpi.BandAttention, 20)
	if want := strings.Repeat("█", 15) + strings.Repeat("░", 5) + " 75/100"; got != want {
		t.Errorf("ScoreBar(75) = %q, want %q", got, want)
	}

	got = ScoreBar(0, kpi.BandInsufficientData, 4)
	if want := "░░░░ no data"; got != want {
		t.Errorf("ScoreBar(no data) = %q, want %q", got, want)
	}
}

func TestProgressBar(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	over := kpi.ClassifiedMetric{Status: kpi.StatusGreen, ProgressPercent: kpi.Float(150)}
	if got := ProgressBar(over, 5); got != "█████" {
		t.Errorf("ProgressBar(150%%) = %q", got)
	}
	gray := kpi.ClassifiedMetric{Status: kpi.StatusGray}
	if got := ProgressBar(gray, 3); got != "···" {
		t.Errorf("ProgressBar(gray) = %q", got)
	}
}

func TestTrendIndicator(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tests := []struct {
		trend kpi.Trend
		want  string
	}{
		{kpi.Trend{Direction: kpi.TrendImproving, Delta: 2, Points: 6}, "▲ improving"},
		{kpi.Trend{Direction: kpi.TrendImproving, Delta: -2, Points: 6}, "▼ improving"},
		{kpi.Trend{Direction: kpi.TrendDeclining, Delta: -1, Points: 6}, "▼ declining"},
		{kpi.Trend{Direction: kpi.TrendStable, Points: 6}, "─ stable"},
		{kpi.Trend{Direction: kpi.TrendStable, Points: 1}, "─"},
	}
	for _, tc := range tests {
		if got := TrendIndicator(tc.trend); got != tc.want {
			t.Errorf("TrendIndicator(%+v) = %q, want %q", tc.trend, got, tc.want)
		}
	}
}
