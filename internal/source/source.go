// Package source loads KPI batches from YAML or JSON files and turns them
// into engine inputs.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// ErrEmptyBatch is returned when a file holds neither metrics nor collaborators.
var ErrEmptyBatch = errors.New("batch has no metrics or collaborators")

// DateLayout is the layout of as_of values.
const DateLayout = "2006-01-02"

// Batch is one decoded source file.
type Batch struct {
	AsOf          string         `json:"as_of,omitempty" yaml:"as_of"`
	Metrics       []Metric       `json:"metrics" yaml:"metrics"`
	Collaborators []Collaborator `json:"collaborators,omitempty" yaml:"collaborators"`

	// Path is the file the batch was loaded from, empty for parsed bytes.
	Path string `json:"-" yaml:"-"`
}

// Metric is one KPI as written in a source file. Target and QuarterTargets
// are alternatives; an explicit Target wins.
type Metric struct {
	Key            string              `json:"key" yaml:"key"`
	Name           string              `json:"name,omitempty" yaml:"name"`
	Current        *float64            `json:"current" yaml:"current"`
	Target         *float64            `json:"target,omitempty" yaml:"target"`
	QuarterTargets *kpi.QuarterTargets `json:"quarter_targets,omitempty" yaml:"quarter_targets"`
	Direction      string              `json:"direction,omitempty" yaml:"direction"`
	Format         string              `json:"format,omitempty" yaml:"format"`
	History        []kpi.TrendPoint    `json:"history,omitempty" yaml:"history"`
}

// Collaborator holds the raw composite health inputs for one person.
type Collaborator struct {
	Name             string   `json:"name" yaml:"name"`
	SurveyScore      *float64 `json:"survey_score" yaml:"survey_score"`
	DaysSinceMeeting *float64 `json:"days_since_meeting" yaml:"days_since_meeting"`
	PlanCompletion   *float64 `json:"plan_completion" yaml:"plan_completion"`
	PendingActions   *float64 `json:"pending_actions" yaml:"pending_actions"`

	// Extra holds values for custom indicators configured under
	// health.indicators.
	Extra map[string]*float64 `json:"extra,omitempty" yaml:"extra"`
}

// Load reads and validates the batch at path. The format is chosen by
// extension: .json is JSON, anything else is YAML.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	b, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.Path = path
	return b, nil
}

// Parse decodes and validates a batch. format is "json" or "yaml".
func Parse(data []byte, format string) (*Batch, error) {
	var b Batch
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "yaml"
}

// Validate checks directions, formats, numbers and the as_of date.
func (b *Batch) Validate() error {
	if len(b.Metrics) == 0 && len(b.Collaborators) == 0 {
		return ErrEmptyBatch
	}
	if b.AsOf != "" {
		if _, err := time.Parse(DateLayout, b.AsOf); err != nil {
			return fmt.Errorf("as_of %q: want YYYY-MM-DD", b.AsOf)
		}
	}

	var errs []error
	seen := make(map[string]bool, len(b.Metrics))
	for i, m := range b.Metrics {
		if m.Key == "" {
			errs = append(errs, fmt.Errorf("metrics[%d]: key is required", i))
			continue
		}
		if seen[m.Key] {
			errs = append(errs, fmt.Errorf("metric %s: duplicate key", m.Key))
		}
		seen[m.Key] = true
		if _, err := kpi.ParseDirection(m.Direction); err != nil {
			errs = append(errs, fmt.Errorf("metric %s: %w", m.Key, err))
		}
		if _, err := kpi.ParseFormat(m.Format); err != nil {
			errs = append(errs, fmt.Errorf("metric %s: %w", m.Key, err))
		}
		if err := checkFinite(m.Key, "current", m.Current); err != nil {
			errs = append(errs, err)
		}
		if err := checkFinite(m.Key, "target", m.Target); err != nil {
			errs = append(errs, err)
		}
		if q := m.QuarterTargets; q != nil {
			for i, v := range []*float64{q.Q1, q.Q2, q.Q3, q.Q4} {
				if err := checkFinite(m.Key, fmt.Sprintf("quarter_targets.q%d", i+1), v); err != nil {
					errs = append(errs, err)
				}
			}
			if err := checkFinite(m.Key, "quarter_targets.annual", q.Annual); err != nil {
				errs = append(errs, err)
			}
		}
		for _, p := range m.History {
			if !isFinite(p.Value) {
				errs = append(errs, fmt.Errorf("metric %s: history %s is not finite", m.Key, p.PeriodLabel))
			}
		}
	}
	for i, c := range b.Collaborators {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("collaborators[%d]: name is required", i))
		}
		for key, v := range c.values() {
			if err := checkFinite(c.Name, key, v); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func checkFinite(owner, field string, v *float64) error {
	if v != nil && !isFinite(*v) {
		return fmt.Errorf("%s: %s is not finite", owner, field)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Date returns the batch's as_of date, or fallback when none is set.
func (b *Batch) Date(fallback time.Time) time.Time {
	if b.AsOf == "" {
		return fallback
	}
	t, err := time.Parse(DateLayout, b.AsOf)
	if err != nil {
		return fallback
	}
	return t
}

// TargetAt resolves the metric's target on date: the explicit target when
// set, otherwise the quarter (or annual) target in force.
func (m Metric) TargetAt(date time.Time) *float64 {
	if m.Target != nil {
		return m.Target
	}
	if m.QuarterTargets != nil {
		return m.QuarterTargets.TargetFor(date)
	}
	return nil
}

// Label is the display name, falling back to the key.
func (m Metric) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Key
}

// Snapshot converts the metric into engine input as of date.
func (m Metric) Snapshot(date time.Time) kpi.MetricSnapshot {
	d, _ := kpi.ParseDirection(m.Direction)
	return kpi.MetricSnapshot{
		Key:          m.Key,
		CurrentValue: m.Current,
		Target:       m.TargetAt(date),
		Direction:    d,
	}
}

// Snapshots converts every metric as of date.
func (b *Batch) Snapshots(date time.Time) []kpi.MetricSnapshot {
	out := make([]kpi.MetricSnapshot, len(b.Metrics))
	for i, m := range b.Metrics {
		out[i] = m.Snapshot(date)
	}
	return out
}

// AlertInputs converts every metric into alert input as of date.
func (b *Batch) AlertInputs(date time.Time) []kpi.AlertInput {
	out := make([]kpi.AlertInput, len(b.Metrics))
	for i, m := range b.Metrics {
		d, _ := kpi.ParseDirection(m.Direction)
		f, _ := kpi.ParseFormat(m.Format)
		out[i] = kpi.AlertInput{
			Name:         m.Label(),
			CurrentValue: m.Current,
			Target:       m.TargetAt(date),
			Direction:    d,
			Format:       f,
		}
	}
	return out
}

// Series returns the metric's history followed by its current value, when
// the last history entry is not already the current period.
func (m Metric) Series(period string) []kpi.TrendPoint {
	out := make([]kpi.TrendPoint, 0, len(m.History)+1)
	out = append(out, m.History...)
	if m.Current == nil {
		return out
	}
	if n := len(out); n > 0 && out[n-1].PeriodLabel == period {
		return out
	}
	return append(out, kpi.TrendPoint{PeriodLabel: period, Value: *m.Current})
}

// Subjects converts the collaborators into health-scoring subjects.
func (b *Batch) Subjects() []kpi.Subject {
	out := make([]kpi.Subject, len(b.Collaborators))
	for i, c := range b.Collaborators {
		out[i] = kpi.Subject{Name: c.Name, Values: c.values()}
	}
	return out
}

func (c Collaborator) values() map[string]*float64 {
	values := make(map[string]*float64, 4+len(c.Extra))
	for k, v := range c.Extra {
		values[k] = v
	}
	values[kpi.IndicatorSurvey] = c.SurveyScore
	values[kpi.IndicatorMeetingRecency] = c.DaysSinceMeeting
	values[kpi.IndicatorPlanCompletion] = c.PlanCompletion
	values[kpi.IndicatorPendingActions] = c.PendingActions
	return values
}
