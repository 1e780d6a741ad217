// Package watcher re-evaluates a KPI batch at a regular interval, emitting
// alerts for off-target metrics and for status changes between cycles.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/source"
)

// Alert levels.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
)

// WatchState captures one evaluation of the watched batch.
type WatchState struct {
	Timestamp  time.Time
	Classified []kpi.ClassifiedMetric
	Alerts     []kpi.AlertItem
	Health     []kpi.SubjectScore
	Summary    kpi.Summary

	// names maps metric keys to display names.
	names map[string]string
}

// Alert represents a notable event detected by the watcher.
type Alert struct {
	ID      string    `json:"id"`
	Level   string    `json:"level"` // "info", "warning", "critical"
	Metric  string    `json:"metric,omitempty"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Loader returns the current batch. It is called once per cycle.
type Loader func() (*source.Batch, error)

// Publisher receives every alert the watcher emits, e.g. a message broker.
type Publisher interface {
	Publish(ctx context.Context, a Alert) error
}

// Publishers fans an alert out to several publishers. Every publisher is
// tried; the errors are joined.
type Publishers []Publisher

// Publish implements Publisher.
func (ps Publishers) Publish(ctx context.Context, a Alert) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Watcher evaluates a batch at a regular interval and emits alerts when
// metrics are off target or change status.
type Watcher struct {
	load          Loader
	thresholds    kpi.Thresholds
	interval      time.Duration
	previous      *WatchState
	alertFn       func(Alert)     // callback for emitting alerts
	lastAlertKeys map[string]bool // dedup: suppress repeated identical alerts

	// Publisher, when set, receives every emitted alert.
	Publisher Publisher

	// Logger records cycles and publisher failures. Defaults to a no-op logger.
	Logger *zap.Logger

	// AsOf overrides the batch's as_of date when set.
	AsOf time.Time

	now func() time.Time
}

// New creates a Watcher for the batch returned by load.
func New(load Loader, t kpi.Thresholds, interval time.Duration, alertFn func(Alert)) *Watcher {
	return &Watcher{
		load:          load,
		thresholds:    t,
		interval:      interval,
		alertFn:       alertFn,
		lastAlertKeys: make(map[string]bool),
		Logger:        zap.NewNop(),
		now:           time.Now,
	}
}

// FileLoader returns a Loader that re-reads path on every call.
func FileLoader(path string) Loader {
	return func() (*source.Batch, error) {
		return source.Load(path)
	}
}

// Run checks immediately and then at every interval, emitting alerts until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", w.interval)
	}

	w.emit(ctx, w.Check())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.emit(ctx, w.Check())
		}
	}
}

func (w *Watcher) emit(ctx context.Context, alerts []Alert) {
	for _, a := range alerts {
		if w.alertFn != nil {
			w.alertFn(a)
		}
		if w.Publisher != nil {
			if err := w.Publisher.Publish(ctx, a); err != nil {
				w.Logger.Warn("publishing alert failed",
					zap.String("alert_id", a.ID), zap.String("title", a.Title), zap.Error(err))
			}
		}
	}
}

// Check performs a single cycle: evaluates the batch, compares against the
// previous state, updates the previous state, and returns any alerts. An
// alert with the same level and title as one in the previous cycle is
// suppressed. A failed load yields a warning, once per run of failures, and
// keeps the previous state and its alert keys.
func (w *Watcher) Check() []Alert {
	curr, err := w.Evaluate()
	if err != nil {
		w.Logger.Warn("evaluation failed", zap.Error(err))
		failed := Alert{
			ID:      uuid.NewString(),
			Level:   LevelWarning,
			Title:   "Evaluation failed",
			Message: fmt.Sprintf("Could not load KPI batch: %v", err),
			Time:    w.now(),
		}
		keys := make(map[string]bool, len(w.lastAlertKeys)+1)
		for k := range w.lastAlertKeys {
			keys[k] = true
		}
		return w.dedup([]Alert{failed}, keys)
	}

	raw := Compare(w.previous, curr)
	alerts := w.dedup(raw, make(map[string]bool, len(raw)))
	w.previous = curr

	w.Logger.Debug("watch cycle",
		zap.Int("metrics", curr.Summary.Total),
		zap.Int("red", curr.Summary.Red),
		zap.Int("alerts", len(raw)),
		zap.Int("emitted", len(alerts)))

	return alerts
}

// dedup drops alerts whose level and title were seen last cycle, then makes
// keys plus this cycle's alerts the set seen.
func (w *Watcher) dedup(raw []Alert, keys map[string]bool) []Alert {
	var alerts []Alert
	for _, a := range raw {
		key := a.Level + ":" + a.Title
		keys[key] = true
		if !w.lastAlertKeys[key] {
			alerts = append(alerts, a)
		}
	}
	w.lastAlertKeys = keys
	return alerts
}

// Evaluate loads the batch and runs the classifier, the alert aggregator
// and the health scorer over it.
func (w *Watcher) Evaluate() (*WatchState, error) {
	batch, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("loading batch: %w", err)
	}

	now := w.now()
	date := batch.Date(now)
	if !w.AsOf.IsZero() {
		date = w.AsOf
	}
	state := &WatchState{
		Timestamp:  now,
		Classified: kpi.ClassifyAll(batch.Snapshots(date), w.thresholds),
		Alerts:     kpi.ComputeAlerts(batch.AlertInputs(date), w.thresholds),
		Health:     kpi.ScoreAll(batch.Subjects(), w.thresholds),
		names:      make(map[string]string, len(batch.Metrics)),
	}
	state.Summary = kpi.Summarize(state.Classified)
	for _, m := range batch.Metrics {
		state.names[m.Key] = m.Label()
	}
	return state, nil
}

// Previous returns the state of the last successful cycle, or nil.
func (w *Watcher) Previous() *WatchState {
	return w.previous
}
