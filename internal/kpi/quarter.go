package kpi

import "time"

// QuarterTargets holds a metric's plan for one year: a target per calendar
// quarter and an optional annual figure used when a quarter has none.
type QuarterTargets struct {
	Q1     *float64 `json:"q1,omitempty" yaml:"q1"`
	Q2     *float64 `json:"q2,omitempty" yaml:"q2"`
	Q3     *float64 `json:"q3,omitempty" yaml:"q3"`
	Q4     *float64 `json:"q4,omitempty" yaml:"q4"`
	Annual *float64 `json:"annual,omitempty" yaml:"annual"`
}

// QuarterOf returns the calendar quarter (1-4) containing t.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// TargetFor returns the target in force at t. It is nil when neither the
// quarter nor the annual target is set.
func (q QuarterTargets) TargetFor(t time.Time) *float64 {
	var target *float64
	switch QuarterOf(t) {
	case 1:
		target = q.Q1
	case 2:
		target = q.Q2
	case 3:
		target = q.Q3
	case 4:
		target = q.Q4
	}
	if target == nil {
		return q.Annual
	}
	return target
}

// IsZero reports whether no target is set at all.
func (q QuarterTargets) IsZero() bool {
	return q.Q1 == nil && q.Q2 == nil && q.Q3 == nil && q.Q4 == nil && q.Annual == nil
}
