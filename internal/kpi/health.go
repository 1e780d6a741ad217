package kpi

import (
	"math"
	"sort"
)

// Band is the qualitative tier of a composite health score. Bands are a
// display scale of their own and do not follow the Green/Yellow/Red
// progress thresholds.
type Band string

const (
	BandExcellent Band = "Excellent"
	BandAttention Band = "Attention"
	BandCritical  Band = "Critical"

	// BandInsufficientData is reported when no indicator had data, so that a
	// score of 0 is never mistaken for a measured, critical subject.
	BandInsufficientData Band = "Insufficient data"
)

// Indicator is one weighted input to a composite health score. A nil Raw
// value means the data is unavailable: the indicator is then left out of
// both the earned points and the total weight.
type Indicator struct {
	Key    string
	Weight float64
	Raw    *float64

	// Earn maps the raw value to points. The result is clamped to [0, Weight].
	Earn func(raw float64) float64
}

// IndicatorScore is the per-indicator breakdown of a HealthScore.
type IndicatorScore struct {
	Key     string   `json:"key"`
	Weight  float64  `json:"weight"`
	Raw     *float64 `json:"raw"`
	Earned  float64  `json:"earned"`
	HasData bool     `json:"has_data"`
}

// HealthScore is the result of Score.
type HealthScore struct {
	// Score is round(EarnedPoints/TotalWeight*100), always within 0-100.
	Score        int              `json:"score"`
	Band         Band             `json:"band"`
	EarnedPoints float64          `json:"earned_points"`
	TotalWeight  float64          `json:"total_weight"`
	HasData      bool             `json:"has_data"`
	Indicators   []IndicatorScore `json:"indicators"`
}

// Score blends the indicators into a 0-100 score. Only indicators with data
// contribute to the denominator. When none has data the score is 0, HasData
// is false and the band is BandInsufficientData.
func Score(indicators []Indicator, t Thresholds) HealthScore {
	hs := HealthScore{Indicators: make([]IndicatorScore, 0, len(indicators))}

	for _, ind := range indicators {
		is := IndicatorScore{Key: ind.Key, Weight: ind.Weight, Raw: ind.Raw}
		if ind.Raw != nil {
			is.HasData = true
			if ind.Earn != nil {
				is.Earned = clamp(ind.Earn(*ind.Raw), 0, ind.Weight)
			}
			hs.TotalWeight += ind.Weight
			hs.EarnedPoints += is.Earned
		}
		hs.Indicators = append(hs.Indicators, is)
	}

	if hs.TotalWeight <= 0 {
		hs.Band = BandInsufficientData
		return hs
	}

	hs.HasData = true
	hs.Score = int(clamp(math.Round(hs.EarnedPoints/hs.TotalWeight*100), 0, 100))
	hs.Band = BandFor(hs.Score, t)
	return hs
}

// BandFor maps a score to its band.
func BandFor(score int, t Thresholds) Band {
	switch {
	case score >= t.BandExcellent:
		return BandExcellent
	case score >= t.BandAttention:
		return BandAttention
	default:
		return BandCritical
	}
}

// Earn converts a raw value into points according to the indicator's mode.
func (s IndicatorSpec) Earn(raw float64) float64 {
	switch s.Mode {
	case TierAtLeast:
		for _, tier := range s.Tiers {
			if raw >= tier.Bound {
				return tier.Points
			}
		}
	case TierAtMost:
		for _, tier := range s.Tiers {
			if raw <= tier.Bound {
				return tier.Points
			}
		}
	case TierLinear:
		if s.Scale > 0 {
			return clamp(raw/s.Scale*s.Weight, 0, s.Weight)
		}
	}
	return 0
}

// Indicator binds a raw value to the indicator definition.
func (s IndicatorSpec) Indicator(raw *float64) Indicator {
	return Indicator{Key: s.Key, Weight: s.Weight, Raw: raw, Earn: s.Earn}
}

// Subject is someone (usually a collaborator) whose raw indicator values
// are keyed by IndicatorSpec.Key. Keys absent from Values count as missing.
type Subject struct {
	Name   string              `json:"name"`
	Values map[string]*float64 `json:"values"`
}

// SubjectScore pairs a subject's name with its health score.
type SubjectScore struct {
	Name string `json:"name"`
	HealthScore
}

// ScoreSubject scores one subject against the thresholds' indicator table.
func ScoreSubject(s Subject, t Thresholds) HealthScore {
	indicators := make([]Indicator, 0, len(t.Indicators))
	for _, spec := range t.Indicators {
		indicators = append(indicators, spec.Indicator(s.Values[spec.Key]))
	}
	return Score(indicators, t)
}

// ScoreAll scores every subject and orders the result worst first. Subjects
// without any data go last; ties keep input order.
func ScoreAll(subjects []Subject, t Thresholds) []SubjectScore {
	out := make([]SubjectScore, len(subjects))
	for i, s := range subjects {
		out[i] = SubjectScore{Name: s.Name, HealthScore: ScoreSubject(s, t)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HasData != out[j].HasData {
			return out[i].HasData
		}
		return out[i].Score < out[j].Score
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
