package kpi

import "sort"

// ComputeAlerts returns the metrics that are materially off target, critical
// first and, within a severity, lowest percent-of-target first. Ties keep
// their input order. Items with missing values, an unknown direction, or a
// zero target on a higher-is-better metric never alert.
func ComputeAlerts(items []AlertInput, t Thresholds) []AlertItem {
	alerts := make([]AlertItem, 0)

	for _, item := range items {
		alert, ok := evaluateAlert(item, t)
		if ok {
			alerts = append(alerts, alert)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := severityRank(alerts[i].Severity), severityRank(alerts[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return alerts[i].PercentOfTarget < alerts[j].PercentOfTarget
	})

	return alerts
}

func evaluateAlert(item AlertInput, t Thresholds) (AlertItem, bool) {
	if item.CurrentValue == nil || item.Target == nil {
		return AlertItem{}, false
	}
	current, target := *item.CurrentValue, *item.Target

	alert := AlertItem{
		Name:         item.Name,
		CurrentValue: item.CurrentValue,
		Target:       target,
		Direction:    item.Direction,
		Format:       item.Format,
	}

	switch item.Direction {
	case HigherIsBetter:
		if target == 0 {
			return AlertItem{}, false
		}
		alert.PercentOfTarget = current / target * 100
		switch {
		case alert.PercentOfTarget >= t.ProgressGreen:
			return AlertItem{}, false
		case alert.PercentOfTarget >= t.ProgressYellow:
			alert.Severity = SeverityWarning
		default:
			alert.Severity = SeverityCritical
		}
		return alert, true

	case LowerIsBetter:
		if current <= target {
			return AlertItem{}, false
		}
		if target == 0 {
			// Any positive value overshoots an absolute-zero target.
			alert.Severity = SeverityCritical
			return alert, true
		}
		overshoot := OvershootPercent(current, target)
		alert.PercentOfTarget = Compliance(overshoot)
		if overshoot > t.OvershootYellow {
			alert.Severity = SeverityCritical
		} else {
			alert.Severity = SeverityWarning
		}
		return alert, true
	}

	return AlertItem{}, false
}

func severityRank(s Severity) int {
	if s == SeverityCritical {
		return 0
	}
	return 1
}
