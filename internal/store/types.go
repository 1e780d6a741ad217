// Package store provides SQLite persistence for kpiwatch evaluations, so that
// trends can be computed from recorded history.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested evaluation does not exist.
var ErrNotFound = errors.New("not found")

// Evaluation is one recorded run of the engine over a batch.
type Evaluation struct {
	ID      int64     `json:"id"`
	UID     string    `json:"uid"`
	TakenAt time.Time `json:"taken_at"`
	Period  string    `json:"period"`
	Source  string    `json:"source"`
	Version string    `json:"version"`
}

// MetricValue is a classified metric within an evaluation. Nil pointers are
// stored as NULL.
type MetricValue struct {
	ID           int64    `json:"id"`
	EvaluationID int64    `json:"evaluation_id"`
	MetricKey    string   `json:"metric_key"`
	Name         string   `json:"name"`
	CurrentValue *float64 `json:"current_value"`
	Target       *float64 `json:"target"`
	Direction    string   `json:"direction"`
	Status       string   `json:"status"`
	Progress     *float64 `json:"progress"`
}

// HealthScoreRow is a subject's composite health score within an evaluation.
type HealthScoreRow struct {
	ID           int64  `json:"id"`
	EvaluationID int64  `json:"evaluation_id"`
	Subject      string `json:"subject"`
	Score        int    `json:"score"`
	Band         string `json:"band"`
	HasData      bool   `json:"has_data"`
}

// AlertRow is an alert raised by an evaluation.
type AlertRow struct {
	ID              int64   `json:"id"`
	EvaluationID    int64   `json:"evaluation_id"`
	MetricName      string  `json:"metric_name"`
	Severity        string  `json:"severity"`
	PercentOfTarget float64 `json:"percent_of_target"`
}

// EvaluationDetail is an evaluation with everything it recorded.
type EvaluationDetail struct {
	Evaluation
	Metrics []MetricValue    `json:"metrics"`
	Health  []HealthScoreRow `json:"health"`
	Alerts  []AlertRow       `json:"alerts"`
}

// EvaluationDiff compares the metric statuses of two evaluations.
type EvaluationDiff struct {
	Previous *Evaluation    `json:"previous"`
	Current  *Evaluation    `json:"current"`
	Changes  []StatusChange `json:"changes"`
}

// StatusChange is a metric whose status moved between evaluations.
type StatusChange struct {
	MetricKey string `json:"metric_key"`
	Previous  string `json:"previous"`
	Current   string `json:"current"`
	Direction string `json:"direction"` // "improved", "regressed"
}
