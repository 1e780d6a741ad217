package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body capped at the configured size.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "malformed JSON: "+err.Error())
		return false
	}
	return true
}

type metricRequest struct {
	Key          string   `json:"key"`
	CurrentValue *float64 `json:"current_value"`
	Target       *float64 `json:"target"`
	Direction    string   `json:"direction"`
}

type classifyRequest struct {
	Metrics []metricRequest `json:"metrics"`
}

type classifyResponse struct {
	Classified []kpi.ClassifiedMetric `json:"classified"`
	Summary    kpi.Summary            `json:"summary"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	snapshots := make([]kpi.MetricSnapshot, 0, len(req.Metrics))
	for i, m := range req.Metrics {
		d, err := kpi.ParseDirection(m.Direction)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("metrics[%d]: %v", i, err))
			return
		}
		snap := kpi.MetricSnapshot{Key: m.Key, CurrentValue: m.CurrentValue, Target: m.Target, Direction: d}
		if err := snap.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("metrics[%d]: %v", i, err))
			return
		}
		snapshots = append(snapshots, snap)
	}

	classified := kpi.ClassifyAll(snapshots, s.thresholds)
	s.metrics.observeClassified(classified)
	writeJSON(w, http.StatusOK, classifyResponse{Classified: classified, Summary: kpi.Summarize(classified)})
}

type alertRequest struct {
	Name         string   `json:"name"`
	CurrentValue *float64 `json:"current_value"`
	Target       *float64 `json:"target"`
	Direction    string   `json:"direction"`
	Format       string   `json:"format"`
}

type alertsRequest struct {
	Items []alertRequest `json:"items"`
}

type alertsResponse struct {
	Alerts []kpi.AlertItem `json:"alerts"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var req alertsRequest
	if !s.decode(w, r, &req) {
		return
	}

	items := make([]kpi.AlertInput, 0, len(req.Items))
	for i, it := range req.Items {
		d, err := kpi.ParseDirection(it.Direction)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("items[%d]: %v", i, err))
			return
		}
		f, err := kpi.ParseFormat(it.Format)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("items[%d]: %v", i, err))
			return
		}
		items = append(items, kpi.AlertInput{
			Name:         it.Name,
			CurrentValue: it.CurrentValue,
			Target:       it.Target,
			Direction:    d,
			Format:       f,
		})
	}

	alerts := kpi.ComputeAlerts(items, s.thresholds)
	s.metrics.observeAlerts(alerts)
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: alerts})
}

type healthRequest struct {
	Subjects []kpi.Subject `json:"subjects"`
}

type healthResponse struct {
	Scores []kpi.SubjectScore `json:"scores"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var req healthRequest
	if !s.decode(w, r, &req) {
		return
	}

	scores := kpi.ScoreAll(req.Subjects, s.thresholds)
	s.metrics.observeScores(scores)
	writeJSON(w, http.StatusOK, healthResponse{Scores: scores})
}

type trendRequest struct {
	Series    []kpi.TrendPoint `json:"series"`
	Direction string           `json:"direction"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	var req trendRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := kpi.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, kpi.ClassifyTrendFor(req.Series, d, s.thresholds))
}

type storedTrendResponse struct {
	Key    string           `json:"key"`
	Series []kpi.TrendPoint `json:"series"`
	Trend  kpi.Trend        `json:"trend"`
}

func (s *Server) handleStoredTrend(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "history store is not configured")
		return
	}
	key := r.PathValue("key")

	window, ok := positiveParam(w, r, "window", 2*s.thresholds.TrendWindow)
	if !ok {
		return
	}

	series, err := s.db.GetSeries(key, window)
	if err != nil {
		s.logger.Error("reading series", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reading history failed")
		return
	}
	if len(series) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no history for metric %q", key))
		return
	}

	d, err := s.db.GetMetricDirection(key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("reading direction", zap.String("key", key), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, storedTrendResponse{
		Key:    key,
		Series: series,
		Trend:  kpi.ClassifyTrendFor(series, d, s.thresholds),
	})
}

type evaluationsResponse struct {
	Evaluations []store.Evaluation `json:"evaluations"`
}

const maxEvaluationsLimit = 500

func (s *Server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "history store is not configured")
		return
	}
	limit, ok := positiveParam(w, r, "limit", 20)
	if !ok {
		return
	}
	limit = min(limit, maxEvaluationsLimit)

	evals, err := s.db.GetRecentEvaluations(limit)
	if err != nil {
		s.logger.Error("listing evaluations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reading history failed")
		return
	}
	if evals == nil {
		evals = []store.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evaluationsResponse{Evaluations: evals})
}

// handleEvaluation serves one evaluation by recency: "latest" or 1 is the
// newest period, 2 the one before it.
func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "history store is not configured")
		return
	}

	var (
		e   *store.Evaluation
		err error
	)
	switch ref := r.PathValue("n"); ref {
	case "latest":
		e, err = s.db.GetLatestEvaluation()
	default:
		n, convErr := strconv.Atoi(ref)
		if convErr != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "evaluation must be \"latest\" or a positive integer")
			return
		}
		e, err = s.db.GetEvaluationN(n)
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such evaluation")
		return
	}
	if err != nil {
		s.logger.Error("reading evaluation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reading history failed")
		return
	}

	detail, err := s.db.Detail(e)
	if err != nil {
		s.logger.Error("reading evaluation detail", zap.Int64("evaluation_id", e.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reading history failed")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// positiveParam reads an optional positive integer query parameter, writing
// a 400 and reporting false when it is malformed.
func positiveParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}
