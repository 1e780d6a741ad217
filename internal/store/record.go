package store

import (
	"errors"
	"fmt"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// Result is everything one engine run produced for a batch.
type Result struct {
	Period     string
	Source     string
	Version    string
	Names      map[string]string // metric key -> display name
	Classified []kpi.ClassifiedMetric
	Health     []kpi.SubjectScore
	Alerts     []kpi.AlertItem
}

// Record stores a full result in one transaction and returns the evaluation.
func (db *DB) Record(r Result) (*Evaluation, error) {
	e := &Evaluation{
		Period:  r.Period,
		Source:  r.Source,
		Version: r.Version,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := insertEvaluation(tx, e); err != nil {
		return nil, err
	}

	for _, c := range r.Classified {
		name := r.Names[c.Snapshot.Key]
		if name == "" {
			name = c.Snapshot.Key
		}
		if err := insertMetricValue(tx, &MetricValue{
			EvaluationID: e.ID,
			MetricKey:    c.Snapshot.Key,
			Name:         name,
			CurrentValue: c.Snapshot.CurrentValue,
			Target:       c.Snapshot.Target,
			Direction:    string(c.Snapshot.Direction),
			Status:       string(c.Status),
			Progress:     c.ProgressPercent,
		}); err != nil {
			return nil, fmt.Errorf("inserting metric %s: %w", c.Snapshot.Key, err)
		}
	}

	for _, s := range r.Health {
		if err := insertHealthScore(tx, &HealthScoreRow{
			EvaluationID: e.ID,
			Subject:      s.Name,
			Score:        s.Score,
			Band:         string(s.Band),
			HasData:      s.HasData,
		}); err != nil {
			return nil, fmt.Errorf("inserting health score %s: %w", s.Name, err)
		}
	}

	for _, a := range r.Alerts {
		if err := insertAlert(tx, &AlertRow{
			EvaluationID:    e.ID,
			MetricName:      a.Name,
			Severity:        string(a.Severity),
			PercentOfTarget: a.PercentOfTarget,
		}); err != nil {
			return nil, fmt.Errorf("inserting alert %s: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return e, nil
}

// Diff compares the metric statuses of the current evaluation against the
// one before it in period order. It returns nil when there is no earlier
// evaluation.
func (db *DB) Diff(current *Evaluation) (*EvaluationDiff, error) {
	row := db.conn.QueryRow(
		"SELECT "+evaluationColumns+" FROM evaluations"+
			" WHERE period < ? OR (period = ? AND id < ?)"+
			" ORDER BY "+timeOrder+" LIMIT 1",
		current.Period, current.Period, current.ID,
	)
	prev, err := scanEvaluation(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	before, err := db.GetMetricValues(prev.ID)
	if err != nil {
		return nil, err
	}
	after, err := db.GetMetricValues(current.ID)
	if err != nil {
		return nil, err
	}

	return &EvaluationDiff{
		Previous: prev,
		Current:  current,
		Changes:  statusChanges(before, after),
	}, nil
}

// statusChanges lists metrics present in both evaluations whose status
// moved, in the current evaluation's order. Gray ranks below red.
func statusChanges(before, after []MetricValue) []StatusChange {
	prev := make(map[string]string, len(before))
	for _, mv := range before {
		prev[mv.MetricKey] = mv.Status
	}

	var changes []StatusChange
	for _, mv := range after {
		old, ok := prev[mv.MetricKey]
		if !ok || old == mv.Status {
			continue
		}
		direction := "improved"
		if statusRank(mv.Status) < statusRank(old) {
			direction = "regressed"
		}
		changes = append(changes, StatusChange{
			MetricKey: mv.MetricKey,
			Previous:  old,
			Current:   mv.Status,
			Direction: direction,
		})
	}
	return changes
}

func statusRank(status string) int {
	switch kpi.Status(status) {
	case kpi.StatusGreen:
		return 3
	case kpi.StatusYellow:
		return 2
	case kpi.StatusRed:
		return 1
	}
	return 0
}
