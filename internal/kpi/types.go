// Package kpi classifies KPI snapshots into statuses, trends, composite
// health scores and ranked alerts. Every function in the package is pure: it
// reads only its arguments and the Thresholds passed in, so it is safe to call
// from any number of goroutines.
package kpi

import (
	"errors"
	"fmt"
	"math"
)

// Direction tells the classifier which way a metric should move.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// ErrUnknownDirection is returned by ParseDirection for unrecognized values.
var ErrUnknownDirection = errors.New("unknown direction")

// ParseDirection validates a direction string at an input boundary.
// The empty string defaults to HigherIsBetter.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case HigherIsBetter, "":
		return HigherIsBetter, nil
	case LowerIsBetter:
		return LowerIsBetter, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == HigherIsBetter || d == LowerIsBetter
}

// Status is the traffic-light classification of a single metric.
type Status string

const (
	StatusGreen  Status = "green"
	StatusYellow Status = "yellow"
	StatusRed    Status = "red"

	// StatusGray means there is not enough data to classify.
	StatusGray Status = "gray"
)

// Format is a display hint carried alongside a metric. The engine never
// interprets it.
type Format string

const (
	FormatNumber   Format = "number"
	FormatCurrency Format = "currency"
	FormatPercent  Format = "percent"
	FormatDays     Format = "days"
)

// ErrUnknownFormat is returned by ParseFormat for unrecognized values.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat validates a format string. The empty string defaults to FormatNumber.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatNumber, "":
		return FormatNumber, nil
	case FormatCurrency, FormatPercent, FormatDays:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// MetricSnapshot is one measured quantity at one point in time. A nil
// CurrentValue or Target means the value is not available.
type MetricSnapshot struct {
	Key          string    `json:"key"`
	CurrentValue *float64  `json:"current_value"`
	Target       *float64  `json:"target"`
	Direction    Direction `json:"direction"`
}

// ClassifiedMetric is a snapshot together with its derived status.
type ClassifiedMetric struct {
	Snapshot MetricSnapshot `json:"snapshot"`
	Status   Status         `json:"status"`

	// ProgressPercent is nil when either value is missing or the ratio is
	// undefined (target of zero for a higher-is-better metric).
	ProgressPercent *float64 `json:"progress_percent"`
}

// TrendPoint is one entry of a chronological series, oldest first.
type TrendPoint struct {
	PeriodLabel string  `json:"period" yaml:"period"`
	Value       float64 `json:"value" yaml:"value"`
}

// TrendDirection is the outcome of comparing recent and previous windows.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// Trend is the result of ClassifyTrend. The means are zero when the series
// was too short to compare.
type Trend struct {
	Direction    TrendDirection `json:"direction"`
	RecentMean   float64        `json:"recent_mean"`
	PreviousMean float64        `json:"previous_mean"`
	Delta        float64        `json:"delta"`
	Points       int            `json:"points"`
}

// Severity ranks an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// AlertInput is one metric offered to ComputeAlerts.
type AlertInput struct {
	Name         string    `json:"name"`
	CurrentValue *float64  `json:"current_value"`
	Target       *float64  `json:"target"`
	Direction    Direction `json:"direction"`
	Format       Format    `json:"format,omitempty"`
}

// AlertItem is a metric that is materially off target.
type AlertItem struct {
	Name            string    `json:"name"`
	CurrentValue    *float64  `json:"current_value"`
	Target          float64   `json:"target"`
	PercentOfTarget float64   `json:"percent_of_target"`
	Severity        Severity  `json:"severity"`
	Direction       Direction `json:"direction"`
	Format          Format    `json:"format,omitempty"`
}

// Float returns a pointer to v. It keeps literals for optional values short.
func Float(v float64) *float64 {
	return &v
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate rejects snapshots that cannot come from a well-formed data layer:
// an empty key, an unknown direction, or non-finite numbers.
func (s MetricSnapshot) Validate() error {
	if s.Key == "" {
		return errors.New("metric key is empty")
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("metric %s: %w: %q", s.Key, ErrUnknownDirection, s.Direction)
	}
	if s.CurrentValue != nil && !finite(*s.CurrentValue) {
		return fmt.Errorf("metric %s: current value is not finite", s.Key)
	}
	if s.Target != nil && !finite(*s.Target) {
		return fmt.Errorf("metric %s: target is not finite", s.Key)
	}
	return nil
}
