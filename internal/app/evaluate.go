package app

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/source"
)

// periodLayout labels the current value when it is appended to a history.
const periodLayout = "2006-01"

// evaluation is one batch run through every engine component.
type evaluation struct {
	Source     string                 `json:"source"`
	AsOf       string                 `json:"as_of"`
	Period     string                 `json:"period"`
	Classified []kpi.ClassifiedMetric `json:"classified"`
	Summary    kpi.Summary            `json:"summary"`
	Trends     map[string]kpi.Trend   `json:"trends"`
	Alerts     []kpi.AlertItem        `json:"alerts"`
	Health     []kpi.SubjectScore     `json:"health"`

	batch *source.Batch
	date  time.Time
}

// evaluateFile loads path and evaluates it. asOf overrides the batch date
// when non-zero.
func evaluateFile(path string, t kpi.Thresholds, asOf time.Time) (*evaluation, error) {
	batch, err := source.Load(path)
	if err != nil {
		return nil, err
	}
	return evaluateBatch(batch, t, asOf), nil
}

func evaluateBatch(batch *source.Batch, t kpi.Thresholds, asOf time.Time) *evaluation {
	date := asOf
	if date.IsZero() {
		date = batch.Date(time.Now())
	}
	period := date.Format(periodLayout)

	e := &evaluation{
		Source:     batch.Path,
		AsOf:       date.Format(source.DateLayout),
		Period:     period,
		Classified: kpi.ClassifyAll(batch.Snapshots(date), t),
		Trends:     make(map[string]kpi.Trend, len(batch.Metrics)),
		Alerts:     kpi.ComputeAlerts(batch.AlertInputs(date), t),
		Health:     kpi.ScoreAll(batch.Subjects(), t),
		batch:      batch,
		date:       date,
	}
	e.Summary = kpi.Summarize(e.Classified)
	for _, m := range batch.Metrics {
		d, _ := kpi.ParseDirection(m.Direction)
		e.Trends[m.Key] = kpi.ClassifyTrendFor(m.Series(period), d, t)
	}
	return e
}

// metric returns the source metric for key.
func (e *evaluation) metric(key string) source.Metric {
	for _, m := range e.batch.Metrics {
		if m.Key == key {
			return m
		}
	}
	return source.Metric{Key: key}
}

// names maps metric keys to display names.
func (e *evaluation) names() map[string]string {
	out := make(map[string]string, len(e.batch.Metrics))
	for _, m := range e.batch.Metrics {
		out[m.Key] = m.Label()
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func summaryLine(s kpi.Summary) string {
	return fmt.Sprintf("%d metrics: %d green, %d yellow, %d red, %d gray (%.0f%% on track)",
		s.Total, s.Green, s.Yellow, s.Red, s.Gray, s.OnTrackPercent)
}
