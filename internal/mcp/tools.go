package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// MetricArg is one metric in classify_metrics arguments.
type MetricArg struct {
	Key          string   `json:"key"`
	CurrentValue *float64 `json:"current_value"`
	Target       *float64 `json:"target"`
	Direction    string   `json:"direction"`
}

// AlertArg is one item in compute_alerts arguments.
type AlertArg struct {
	Name         string   `json:"name"`
	CurrentValue *float64 `json:"current_value"`
	Target       *float64 `json:"target"`
	Direction    string   `json:"direction"`
	Format       string   `json:"format"`
}

// ClassifyResult is the classify_metrics result.
type ClassifyResult struct {
	Classified []kpi.ClassifiedMetric `json:"classified"`
	Summary    kpi.Summary            `json:"summary"`
}

// AlertsResult is the compute_alerts result.
type AlertsResult struct {
	Alerts []kpi.AlertItem `json:"alerts"`
}

// HealthResult is the score_health result.
type HealthResult struct {
	Scores []kpi.SubjectScore `json:"scores"`
}

var (
	classifySchema = json.RawMessage(`{"type":"object","properties":{"metrics":{"type":"array","items":{"type":"object","properties":{"key":{"type":"string"},"current_value":{"type":["number","null"]},"target":{"type":["number","null"]},"direction":{"type":"string","enum":["higher_is_better","lower_is_better"]}},"required":["key"]}}},"required":["metrics"],"additionalProperties":false}`)
	alertsSchema   = json.RawMessage(`{"type":"object","properties":{"items":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"current_value":{"type":["number","null"]},"target":{"type":["number","null"]},"direction":{"type":"string","enum":["higher_is_better","lower_is_better"]},"format":{"type":"string","enum":["currency","percent","number","days"]}},"required":["name"]}}},"required":["items"],"additionalProperties":false}`)
	healthSchema   = json.RawMessage(`{"type":"object","properties":{"subjects":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"values":{"type":"object","additionalProperties":{"type":["number","null"]},"description":"Raw indicator values keyed by survey, meeting_recency, plan_completion, pending_actions"}},"required":["name"]}}},"required":["subjects"],"additionalProperties":false}`)
	trendSchema    = json.RawMessage(`{"type":"object","properties":{"series":{"type":"array","description":"Chronological points, oldest first","items":{"type":"object","properties":{"period":{"type":"string"},"value":{"type":"number"}},"required":["value"]}},"direction":{"type":"string","enum":["higher_is_better","lower_is_better"],"description":"Flip improving/declining for lower_is_better metrics"}},"required":["series"],"additionalProperties":false}`)
)

func addTools(s *Server) {
	s.registerTool(toolDef{
		Name:        "classify_metrics",
		Description: "Classify KPI snapshots as green, yellow, red or gray with progress towards target.",
		InputSchema: classifySchema,
		Handler:     s.handleClassifyMetrics,
	})
	s.registerTool(toolDef{
		Name:        "compute_alerts",
		Description: "List metrics that are materially off target, most severe first.",
		InputSchema: alertsSchema,
		Handler:     s.handleComputeAlerts,
	})
	s.registerTool(toolDef{
		Name:        "score_health",
		Description: "Composite 0-100 health score per collaborator from weighted indicators, worst first.",
		InputSchema: healthSchema,
		Handler:     s.handleScoreHealth,
	})
	s.registerTool(toolDef{
		Name:        "classify_trend",
		Description: "Compare the recent and previous windows of a series: improving, declining or stable.",
		InputSchema: trendSchema,
		Handler:     s.handleClassifyTrend,
	})
}

// decodeArgs rejects unknown fields so typos surface as tool errors.
func decodeArgs(args json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) handleClassifyMetrics(args json.RawMessage) (any, error) {
	var params struct {
		Metrics []MetricArg `json:"metrics"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	snapshots := make([]kpi.MetricSnapshot, 0, len(params.Metrics))
	for i, m := range params.Metrics {
		d, err := kpi.ParseDirection(m.Direction)
		if err != nil {
			return nil, fmt.Errorf("metrics[%d]: %w", i, err)
		}
		snap := kpi.MetricSnapshot{Key: m.Key, CurrentValue: m.CurrentValue, Target: m.Target, Direction: d}
		if err := snap.Validate(); err != nil {
			return nil, fmt.Errorf("metrics[%d]: %w", i, err)
		}
		snapshots = append(snapshots, snap)
	}

	classified := kpi.ClassifyAll(snapshots, s.thresholds)
	return ClassifyResult{Classified: classified, Summary: kpi.Summarize(classified)}, nil
}

func (s *Server) handleComputeAlerts(args json.RawMessage) (any, error) {
	var params struct {
		Items []AlertArg `json:"items"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	items := make([]kpi.AlertInput, 0, len(params.Items))
	for i, it := range params.Items {
		d, err := kpi.ParseDirection(it.Direction)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		f, err := kpi.ParseFormat(it.Format)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		items = append(items, kpi.AlertInput{
			Name:         it.Name,
			CurrentValue: it.CurrentValue,
			Target:       it.Target,
			Direction:    d,
			Format:       f,
		})
	}

	return AlertsResult{Alerts: kpi.ComputeAlerts(items, s.thresholds)}, nil
}

func (s *Server) handleScoreHealth(args json.RawMessage) (any, error) {
	var params struct {
		Subjects []kpi.Subject `json:"subjects"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	return HealthResult{Scores: kpi.ScoreAll(params.Subjects, s.thresholds)}, nil
}

func (s *Server) handleClassifyTrend(args json.RawMessage) (any, error) {
	var params struct {
		Series    []kpi.TrendPoint `json:"series"`
		Direction string           `json:"direction"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	d, err := kpi.ParseDirection(params.Direction)
	if err != nil {
		return nil, err
	}
	return kpi.ClassifyTrendFor(params.Series, d, s.thresholds), nil
}
