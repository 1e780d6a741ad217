package watcher

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// Compare turns the current state into alerts. Off-target metrics alert on
// every cycle; status and band changes alert only when prev is known.
func Compare(prev, curr *WatchState) []Alert {
	var alerts []Alert

	alerts = append(alerts, offTarget(curr)...)
	if prev != nil {
		alerts = append(alerts, compareWarning(prev, curr)...)
		alerts = append(alerts, compareInfo(prev, curr)...)
	}

	return alerts
}

func newAlert(level, metric, title, message string, now time.Time) Alert {
	return Alert{
		ID:      uuid.NewString(),
		Level:   level,
		Metric:  metric,
		Title:   title,
		Message: message,
		Time:    now,
	}
}

// offTarget maps the aggregator's ranked alerts one to one.
func offTarget(curr *WatchState) []Alert {
	alerts := make([]Alert, 0, len(curr.Alerts))
	for _, item := range curr.Alerts {
		level := LevelWarning
		if item.Severity == kpi.SeverityCritical {
			level = LevelCritical
		}
		alerts = append(alerts, newAlert(level, item.Name,
			fmt.Sprintf("%s off target", item.Name),
			fmt.Sprintf("At %.1f%% of target (current %g, target %g)", item.PercentOfTarget, deref(item.CurrentValue), item.Target),
			curr.Timestamp))
	}
	return alerts
}

// compareWarning detects metrics and subjects that got worse.
func compareWarning(prev, curr *WatchState) []Alert {
	var alerts []Alert
	before := statusByKey(prev)

	for _, c := range curr.Classified {
		old, ok := before[c.Snapshot.Key]
		if !ok || old == c.Status {
			continue
		}
		name := curr.name(c.Snapshot.Key)
		switch {
		case c.Status == kpi.StatusRed:
			alerts = append(alerts, newAlert(LevelWarning, name,
				fmt.Sprintf("%s turned red", name),
				fmt.Sprintf("Status changed from %s to red", old),
				curr.Timestamp))
		case c.Status == kpi.StatusGray:
			alerts = append(alerts, newAlert(LevelWarning, name,
				fmt.Sprintf("%s lost its data", name),
				fmt.Sprintf("Status changed from %s to gray", old),
				curr.Timestamp))
		}
	}

	prevBands := bandBySubject(prev)
	for _, s := range curr.Health {
		old, ok := prevBands[s.Name]
		if ok && old != kpi.BandCritical && s.Band == kpi.BandCritical {
			alerts = append(alerts, newAlert(LevelWarning, "",
				fmt.Sprintf("%s health critical", s.Name),
				fmt.Sprintf("Composite score %d (was %s)", s.Score, old),
				curr.Timestamp))
		}
	}

	return alerts
}

// compareInfo detects recoveries.
func compareInfo(prev, curr *WatchState) []Alert {
	var alerts []Alert
	before := statusByKey(prev)

	for _, c := range curr.Classified {
		old, ok := before[c.Snapshot.Key]
		if ok && old != kpi.StatusGreen && old != kpi.StatusGray && c.Status == kpi.StatusGreen {
			name := curr.name(c.Snapshot.Key)
			alerts = append(alerts, newAlert(LevelInfo, name,
				fmt.Sprintf("%s back on target", name),
				fmt.Sprintf("Status changed from %s to green", old),
				curr.Timestamp))
		}
	}

	prevBands := bandBySubject(prev)
	for _, s := range curr.Health {
		old, ok := prevBands[s.Name]
		if ok && old == kpi.BandCritical && (s.Band == kpi.BandAttention || s.Band == kpi.BandExcellent) {
			alerts = append(alerts, newAlert(LevelInfo, "",
				fmt.Sprintf("%s health recovered", s.Name),
				fmt.Sprintf("Composite score %d (%s)", s.Score, s.Band),
				curr.Timestamp))
		}
	}

	return alerts
}

func statusByKey(s *WatchState) map[string]kpi.Status {
	m := make(map[string]kpi.Status, len(s.Classified))
	for _, c := range s.Classified {
		m[c.Snapshot.Key] = c.Status
	}
	return m
}

func bandBySubject(s *WatchState) map[string]kpi.Band {
	m := make(map[string]kpi.Band, len(s.Health))
	for _, h := range s.Health {
		m[h.Name] = h.Band
	}
	return m
}

func (s *WatchState) name(key string) string {
	if n := s.names[key]; n != "" {
		return n
	}
	return key
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
