package watcher

import (
	"testing"
	"time"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

func makeState(statuses map[string]kpi.Status, bands map[string]kpi.Band) *WatchState {
	s := &WatchState{Timestamp: time.Now(), names: map[string]string{}}
	for key, status := range statuses {
		s.Classified = append(s.Classified, kpi.ClassifiedMetric{
			Snapshot: kpi.MetricSnapshot{Key: key},
			Status:   status,
		})
	}
	for name, band := range bands {
		s.Health = append(s.Health, kpi.SubjectScore{Name: name, HealthScore: kpi.HealthScore{Band: band, Score: 40}})
	}
	return s
}

func TestCompare_NoPrevious(t *testing.T) {
	curr := makeState(map[string]kpi.Status{"mrr": kpi.StatusRed}, nil)
	curr.Alerts = []kpi.AlertItem{{Name: "MRR", CurrentValue: kpi.Float(85), Target: 100, PercentOfTarget: 85, Severity: kpi.SeverityCritical}}

	alerts := Compare(nil, curr)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Title != "MRR off target" || alerts[0].Level != LevelCritical {
		t.Errorf("alert = %+v", alerts[0])
	}
	if alerts[0].Message != "At 85.0% of target (current 85, target 100)" {
		t.Errorf("message = %q", alerts[0].Message)
	}
}

func TestCompare_IdenticalStates(t *testing.T) {
	s := makeState(map[string]kpi.Status{"mrr": kpi.StatusGreen, "nps": kpi.StatusYellow}, map[string]kpi.Band{"Ana": kpi.BandAttention})
	if alerts := Compare(s, s); len(alerts) != 0 {
		t.Errorf("expected 0 alerts, got %d", len(alerts))
	}
}

func TestCompare_TurnedRed(t *testing.T) {
	prev := makeState(map[string]kpi.Status{"mrr": kpi.StatusYellow}, nil)
	curr := makeState(map[string]kpi.Status{"mrr": kpi.StatusRed}, nil)
	curr.names["mrr"] = "MRR"

	alerts := Compare(prev, curr)
	if len(alerts) != 1 || alerts[0].Title != "MRR turned red" || alerts[0].Level != LevelWarning {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestCompare_LostData(t *testing.T) {
	prev := makeState(map[string]kpi.Status{"mrr": kpi.StatusGreen}, nil)
	curr := makeState(map[string]kpi.Status{"mrr": kpi.StatusGray}, nil)

	alerts := Compare(prev, curr)
	if len(alerts) != 1 || alerts[0].Title != "mrr lost its data" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestCompare_GrayToGreenIsNotARecovery(t *testing.T) {
	prev := makeState(map[string]kpi.Status{"mrr": kpi.StatusGray}, nil)
	curr := makeState(map[string]kpi.Status{"mrr": kpi.StatusGreen}, nil)

	if alerts := Compare(prev, curr); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

func TestCompare_NewMetricIsNotATransition(t *testing.T) {
	prev := makeState(nil, nil)
	curr := makeState(map[string]kpi.Status{"mrr": kpi.StatusRed}, nil)

	if alerts := Compare(prev, curr); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

func TestCompare_HealthBands(t *testing.T) {
	prev := makeState(nil, map[string]kpi.Band{"Ana": kpi.BandAttention, "Bruno": kpi.BandCritical})
	curr := makeState(nil, map[string]kpi.Band{"Ana": kpi.BandCritical, "Bruno": kpi.BandExcellent})

	alerts := Compare(prev, curr)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %+v", alerts)
	}
	// Warnings are compared before recoveries.
	if alerts[0].Title != "Ana health critical" || alerts[0].Level != LevelWarning {
		t.Errorf("first alert = %+v", alerts[0])
	}
	if alerts[1].Title != "Bruno health recovered" || alerts[1].Level != LevelInfo {
		t.Errorf("second alert = %+v", alerts[1])
	}
}
