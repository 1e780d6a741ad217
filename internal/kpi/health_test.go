package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collaborator(name string, survey, days, plan, pending *float64) Subject {
	return Subject{
		Name: name,
		Values: map[string]*float64{
			IndicatorSurvey:         survey,
			IndicatorMeetingRecency: days,
			IndicatorPlanCompletion: plan,
			IndicatorPendingActions: pending,
		},
	}
}

func TestScoreSubject_ReferenceScenario(t *testing.T) {
	hs := ScoreSubject(collaborator("ana", Float(9), Float(10), Float(40), Float(3)), DefaultThresholds())

	assert.Equal(t, 75, hs.Score)
	assert.Equal(t, BandAttention, hs.Band)
	assert.InDelta(t, 75, hs.EarnedPoints, 1e-9)
	assert.InDelta(t, 100, hs.TotalWeight, 1e-9)
	assert.True(t, hs.HasData)
	require.Len(t, hs.Indicators, 4)

	earned := map[string]float64{}
	for _, is := range hs.Indicators {
		earned[is.Key] = is.Earned
	}
	assert.InDelta(t, 30, earned[IndicatorSurvey], 1e-9)
	assert.InDelta(t, 25, earned[IndicatorMeetingRecency], 1e-9)
	assert.InDelta(t, 10, earned[IndicatorPlanCompletion], 1e-9)
	assert.InDelta(t, 10, earned[IndicatorPendingActions], 1e-9)
}

func TestScoreSubject_MissingIndicatorsLeaveTheDenominator(t *testing.T) {
	// Only survey (30/30) and pending actions (20/20) are known.
	hs := ScoreSubject(collaborator("bruno", Float(10), nil, nil, Float(0)), DefaultThresholds())

	assert.Equal(t, 100, hs.Score)
	assert.Equal(t, BandExcellent, hs.Band)
	assert.InDelta(t, 50, hs.TotalWeight, 1e-9)
}

func TestScoreSubject_NoData(t *testing.T) {
	hs := ScoreSubject(Subject{Name: "new hire"}, DefaultThresholds())

	assert.Equal(t, 0, hs.Score)
	assert.False(t, hs.HasData)
	assert.Equal(t, BandInsufficientData, hs.Band)
	assert.Zero(t, hs.TotalWeight)
}

func TestScoreSubject_Critical(t *testing.T) {
	hs := ScoreSubject(collaborator("carla", Float(4), Float(60), Float(0), Float(12)), DefaultThresholds())

	assert.Equal(t, 0, hs.Score)
	assert.True(t, hs.HasData)
	assert.Equal(t, BandCritical, hs.Band)
}

func TestIndicatorSpecEarn(t *testing.T) {
	specs := map[string]IndicatorSpec{}
	for _, s := range DefaultIndicators() {
		specs[s.Key] = s
	}

	tests := []struct {
		key  string
		raw  float64
		want float64
	}{
		{IndicatorSurvey, 9, 30},
		{IndicatorSurvey, 8.9, 20},
		{IndicatorSurvey, 7, 20},
		{IndicatorSurvey, 5, 10},
		{IndicatorSurvey, 4.99, 0},
		{IndicatorMeetingRecency, 0, 25},
		{IndicatorMeetingRecency, 14, 25},
		{IndicatorMeetingRecency, 15, 15},
		{IndicatorMeetingRecency, 45, 8},
		{IndicatorMeetingRecency, 46, 0},
		{IndicatorPlanCompletion, 0, 0},
		{IndicatorPlanCompletion, 40, 10},
		{IndicatorPlanCompletion, 100, 25},
		{IndicatorPlanCompletion, 140, 25},
		{IndicatorPlanCompletion, -10, 0},
		{IndicatorPendingActions, 0, 20},
		{IndicatorPendingActions, 1, 15},
		{IndicatorPendingActions, 2, 15},
		{IndicatorPendingActions, 5, 10},
		{IndicatorPendingActions, 8, 5},
		{IndicatorPendingActions, 9, 0},
	}

	for _, tc := range tests {
		got := specs[tc.key].Earn(tc.raw)
		assert.InDeltaf(t, tc.want, got, 1e-9, "%s.Earn(%v)", tc.key, tc.raw)
	}
}

func TestScore_ClampsEarnedPoints(t *testing.T) {
	hs := Score([]Indicator{
		{Key: "greedy", Weight: 10, Raw: Float(1), Earn: func(float64) float64 { return 50 }},
		{Key: "negative", Weight: 10, Raw: Float(1), Earn: func(float64) float64 { return -5 }},
	}, DefaultThresholds())

	assert.InDelta(t, 10, hs.EarnedPoints, 1e-9)
	assert.Equal(t, 50, hs.Score)
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	th := DefaultThresholds()
	values := []*float64{nil, Float(-100), Float(0), Float(3), Float(9), Float(1000)}

	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				hs := ScoreSubject(collaborator("x", a, b, c, a), th)
				assert.GreaterOrEqual(t, hs.Score, 0)
				assert.LessOrEqual(t, hs.Score, 100)
			}
		}
	}
}

func TestScore_Idempotent(t *testing.T) {
	th := DefaultThresholds()
	s := collaborator("ana", Float(7), Float(20), Float(55), Float(4))
	assert.Equal(t, ScoreSubject(s, th), ScoreSubject(s, th))
}

func TestBandFor(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, BandExcellent, BandFor(100, th))
	assert.Equal(t, BandExcellent, BandFor(80, th))
	assert.Equal(t, BandAttention, BandFor(79, th))
	assert.Equal(t, BandAttention, BandFor(50, th))
	assert.Equal(t, BandCritical, BandFor(49, th))
	assert.Equal(t, BandCritical, BandFor(0, th))
}

func TestScoreAll_WorstFirst(t *testing.T) {
	subjects := []Subject{
		collaborator("good", Float(9), Float(3), Float(100), Float(0)),
		{Name: "unknown"},
		collaborator("bad", Float(2), Float(90), Float(0), Float(20)),
		collaborator("middle", Float(9), Float(10), Float(40), Float(3)),
		collaborator("middle-twin", Float(9), Float(10), Float(40), Float(3)),
	}

	got := ScoreAll(subjects, DefaultThresholds())
	require.Len(t, got, 5)

	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"bad", "middle", "middle-twin", "good", "unknown"}, names)
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	th := DefaultThresholds()
	th.ProgressYellow = 120
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.BandAttention = 90
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.Indicators[0].Tiers[0].Points = 99
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.Indicators = append(th.Indicators, IndicatorSpec{Key: IndicatorSurvey, Weight: 1, Mode: TierLinear, Scale: 1})
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.Indicators[2].Mode = "exponential"
	assert.Error(t, th.Validate())
}
