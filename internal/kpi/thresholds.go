package kpi

import (
	"errors"
	"fmt"
)

// Thresholds holds every tunable boundary used by the classifier, the trend
// detector, the health scorer and the alert aggregator.
type Thresholds struct {
	// ProgressGreen and ProgressYellow are progress percentages for
	// higher-is-better metrics: >= green is Green, >= yellow is Yellow.
	ProgressGreen  float64 `json:"progress_green"`
	ProgressYellow float64 `json:"progress_yellow"`

	// OvershootYellow is the largest overshoot percentage, for lower-is-better
	// metrics, that is still Yellow (or a warning alert).
	OvershootYellow float64 `json:"overshoot_yellow"`

	// TrendNoiseFloor is the absolute difference of window means that must be
	// exceeded before a trend counts as improving or declining.
	TrendNoiseFloor float64 `json:"trend_noise_floor"`

	// TrendWindow is the number of points in each comparison window.
	TrendWindow int `json:"trend_window"`

	// BandExcellent and BandAttention are composite score boundaries.
	BandExcellent int `json:"band_excellent"`
	BandAttention int `json:"band_attention"`

	// Indicators is the composite health weight table.
	Indicators []IndicatorSpec `json:"indicators"`
}

// Indicator keys used by the default weight table.
const (
	IndicatorSurvey         = "survey"
	IndicatorMeetingRecency = "meeting_recency"
	IndicatorPlanCompletion = "plan_completion"
	IndicatorPendingActions = "pending_actions"
)

// TierMode selects how an indicator turns its raw value into points.
type TierMode string

const (
	// TierAtLeast awards the points of the first tier whose bound the raw
	// value reaches (raw >= bound). Tiers are ordered from best to worst.
	TierAtLeast TierMode = "at_least"

	// TierAtMost awards the points of the first tier whose bound the raw
	// value does not exceed (raw <= bound). Tiers are ordered from best to worst.
	TierAtMost TierMode = "at_most"

	// TierLinear awards raw/Scale*Weight points, clamped to [0, Weight].
	TierLinear TierMode = "linear"
)

// Tier is one step of a tiered indicator.
type Tier struct {
	Bound  float64 `json:"bound" mapstructure:"bound"`
	Points float64 `json:"points" mapstructure:"points"`
}

// IndicatorSpec describes how one composite sub-indicator earns points.
type IndicatorSpec struct {
	Key    string   `json:"key" mapstructure:"key"`
	Weight float64  `json:"weight" mapstructure:"weight"`
	Mode   TierMode `json:"mode" mapstructure:"mode"`
	Tiers  []Tier   `json:"tiers,omitempty" mapstructure:"tiers"`

	// Scale is the raw value that earns full credit in linear mode.
	Scale float64 `json:"scale,omitempty" mapstructure:"scale"`
}

// DefaultIndicators is the reference weight table: survey 30, meeting
// recency 25, plan completion 25, pending actions 20.
func DefaultIndicators() []IndicatorSpec {
	return []IndicatorSpec{
		{
			Key:    IndicatorSurvey,
			Weight: 30,
			Mode:   TierAtLeast,
			Tiers:  []Tier{{Bound: 9, Points: 30}, {Bound: 7, Points: 20}, {Bound: 5, Points: 10}},
		},
		{
			Key:    IndicatorMeetingRecency,
			Weight: 25,
			Mode:   TierAtMost,
			Tiers:  []Tier{{Bound: 14, Points: 25}, {Bound: 30, Points: 15}, {Bound: 45, Points: 8}},
		},
		{
			Key:    IndicatorPlanCompletion,
			Weight: 25,
			Mode:   TierLinear,
			Scale:  100,
		},
		{
			Key:    IndicatorPendingActions,
			Weight: 20,
			Mode:   TierAtMost,
			Tiers: []Tier{
				{Bound: 0, Points: 20},
				{Bound: 2, Points: 15},
				{Bound: 5, Points: 10},
				{Bound: 8, Points: 5},
			},
		},
	}
}

// DefaultThresholds returns the reference thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ProgressGreen:   100,
		ProgressYellow:  90,
		OvershootYellow: 10,
		TrendNoiseFloor: 0.5,
		TrendWindow:     3,
		BandExcellent:   80,
		BandAttention:   50,
		Indicators:      DefaultIndicators(),
	}
}

// Indicator returns the indicator definition with the given key.
func (t Thresholds) Indicator(key string) (IndicatorSpec, bool) {
	for _, spec := range t.Indicators {
		if spec.Key == key {
			return spec, true
		}
	}
	return IndicatorSpec{}, false
}

// Validate reports inconsistent threshold tables.
func (t Thresholds) Validate() error {
	var errs []error

	if t.ProgressYellow > t.ProgressGreen {
		errs = append(errs, fmt.Errorf("progress_yellow (%g) is above progress_green (%g)", t.ProgressYellow, t.ProgressGreen))
	}
	if t.OvershootYellow < 0 {
		errs = append(errs, fmt.Errorf("overshoot_yellow (%g) is negative", t.OvershootYellow))
	}
	if t.TrendNoiseFloor < 0 {
		errs = append(errs, fmt.Errorf("trend_noise_floor (%g) is negative", t.TrendNoiseFloor))
	}
	if t.TrendWindow < 1 {
		errs = append(errs, fmt.Errorf("trend_window (%d) must be at least 1", t.TrendWindow))
	}
	if t.BandAttention > t.BandExcellent {
		errs = append(errs, fmt.Errorf("band_attention (%d) is above band_excellent (%d)", t.BandAttention, t.BandExcellent))
	}
	if t.BandExcellent > 100 || t.BandAttention < 0 {
		errs = append(errs, errors.New("band boundaries must lie within 0-100"))
	}

	seen := make(map[string]bool, len(t.Indicators))
	for _, spec := range t.Indicators {
		if err := spec.validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[spec.Key] {
			errs = append(errs, fmt.Errorf("indicator %q is defined twice", spec.Key))
		}
		seen[spec.Key] = true
	}

	return errors.Join(errs...)
}

func (s IndicatorSpec) validate() error {
	if s.Key == "" {
		return errors.New("indicator key is empty")
	}
	if s.Weight < 0 {
		return fmt.Errorf("indicator %s: negative weight %g", s.Key, s.Weight)
	}
	switch s.Mode {
	case TierAtLeast, TierAtMost:
		if len(s.Tiers) == 0 {
			return fmt.Errorf("indicator %s: %s mode needs at least one tier", s.Key, s.Mode)
		}
		for _, tier := range s.Tiers {
			if tier.Points < 0 || tier.Points > s.Weight {
				return fmt.Errorf("indicator %s: tier points %g outside 0-%g", s.Key, tier.Points, s.Weight)
			}
		}
	case TierLinear:
		if s.Scale <= 0 {
			return fmt.Errorf("indicator %s: linear mode needs a positive scale", s.Key)
		}
	default:
		return fmt.Errorf("indicator %s: unknown mode %q", s.Key, s.Mode)
	}
	return nil
}
