package kpi

import "math"

// Classify maps one snapshot to a status and progress percentage.
//
// Higher-is-better metrics report progress as current/target*100 (floored at
// zero, no ceiling). Lower-is-better metrics report how close they are to
// compliance: 100 at or under target, otherwise Compliance of the overshoot.
// The same figure is an alert's percent of target.
//
// A nil current value, a nil target or an unknown direction yields StatusGray
// with no progress.
func Classify(s MetricSnapshot, t Thresholds) ClassifiedMetric {
	out := ClassifiedMetric{Snapshot: s, Status: StatusGray}
	if s.CurrentValue == nil || s.Target == nil {
		return out
	}
	current, target := *s.CurrentValue, *s.Target

	switch s.Direction {
	case HigherIsBetter:
		if target == 0 {
			// Ratio is undefined; only the sign of current matters.
			if current >= target {
				out.Status = StatusGreen
			} else {
				out.Status = StatusRed
			}
			return out
		}
		progress := math.Max(0, current/target*100)
		out.ProgressPercent = &progress
		out.Status = progressStatus(progress, t)

	case LowerIsBetter:
		if current <= target {
			full := 100.0
			out.ProgressPercent = &full
			out.Status = StatusGreen
			return out
		}
		if target == 0 {
			out.Status = StatusRed
			return out
		}
		overshoot := OvershootPercent(current, target)
		progress := Compliance(overshoot)
		out.ProgressPercent = &progress
		if overshoot <= t.OvershootYellow {
			out.Status = StatusYellow
		} else {
			out.Status = StatusRed
		}
	}

	return out
}

// ClassifyAll classifies a batch, preserving input order.
func ClassifyAll(snapshots []MetricSnapshot, t Thresholds) []ClassifiedMetric {
	out := make([]ClassifiedMetric, len(snapshots))
	for i, s := range snapshots {
		out[i] = Classify(s, t)
	}
	return out
}

// OvershootPercent returns how far current exceeds target, as a percentage
// of the target's magnitude. Callers must rule out a zero target.
func OvershootPercent(current, target float64) float64 {
	return (current - target) / math.Abs(target) * 100
}

// Compliance converts a lower-is-better overshoot percentage into a 0-100
// compliance figure: 100 minus the overshoot, floored at zero.
func Compliance(overshoot float64) float64 {
	return math.Max(0, 100-overshoot)
}

func progressStatus(progress float64, t Thresholds) Status {
	switch {
	case progress >= t.ProgressGreen:
		return StatusGreen
	case progress >= t.ProgressYellow:
		return StatusYellow
	default:
		return StatusRed
	}
}
