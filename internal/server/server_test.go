package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/blackwell-systems/kpiwatch/internal/config"
	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/store"
	"github.com/blackwell-systems/kpiwatch/internal/watcher"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T, db *store.DB) *Server {
	t.Helper()
	cfg := config.DefaultServer
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return New(cfg, kpi.DefaultThresholds(), db, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClassifyEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/classify", `{"metrics":[
		{"key":"revenue","current_value":95000,"target":100000,"direction":"higher_is_better"},
		{"key":"churn","current_value":7.5,"target":6,"direction":"lower_is_better"},
		{"key":"pipeline","current_value":null,"target":50}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp classifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Classified, 3)
	assert.Equal(t, kpi.StatusYellow, resp.Classified[0].Status)
	assert.Equal(t, kpi.StatusRed, resp.Classified[1].Status)
	assert.Equal(t, kpi.StatusGray, resp.Classified[2].Status)
	assert.Equal(t, kpi.HigherIsBetter, resp.Classified[2].Snapshot.Direction)
	assert.Equal(t, 3, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Red)
}

func TestClassifyEndpoint_RejectsBadInput(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"metrics":[`},
		{"unknown field", `{"metrics":[],"extra":1}`},
		{"unknown direction", `{"metrics":[{"key":"x","current_value":1,"target":1,"direction":"up"}]}`},
		{"missing key", `{"metrics":[{"current_value":1,"target":1}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/classify", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAlertsEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/alerts", `{"items":[
		{"name":"Revenue","current_value":95000,"target":100000,"direction":"higher_is_better","format":"currency"},
		{"name":"NPS","current_value":30,"target":50,"direction":"higher_is_better"},
		{"name":"Churn","current_value":6.5,"target":6,"direction":"lower_is_better","format":"percent"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Alerts, 3)
	assert.Equal(t, "NPS", resp.Alerts[0].Name)
	assert.Equal(t, kpi.SeverityCritical, resp.Alerts[0].Severity)
	assert.Equal(t, "Churn", resp.Alerts[1].Name)
	assert.Equal(t, kpi.SeverityWarning, resp.Alerts[1].Severity)
	assert.Equal(t, "Revenue", resp.Alerts[2].Name)
	assert.InDelta(t, 95, resp.Alerts[2].PercentOfTarget, 1e-9)
}

func TestAlertsEndpoint_EmptyIsArray(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/alerts", `{"items":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alerts":[]}`, rec.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/health", `{"subjects":[
		{"name":"ana","values":{"survey":9,"meeting_recency":10,"plan_completion":40,"pending_actions":3}},
		{"name":"new"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Scores, 2)
	assert.Equal(t, "ana", resp.Scores[0].Name)
	assert.Equal(t, 75, resp.Scores[0].Score)
	assert.Equal(t, kpi.BandAttention, resp.Scores[0].Band)
	assert.False(t, resp.Scores[1].HasData)
}

func TestTrendEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/trend", `{"direction":"lower_is_better","series":[
		{"period":"jan","value":8},{"period":"feb","value":8},{"period":"mar","value":8},
		{"period":"apr","value":6},{"period":"may","value":6},{"period":"jun","value":6}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got kpi.Trend
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, kpi.TrendImproving, got.Direction)
	assert.Equal(t, 6, got.Points)
}

func TestStoredTrendEndpoint(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		rec := do(t, newTestServer(t, nil).Handler(), http.MethodGet, "/api/v1/trends/mrr", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	// Recorded out of order; the later months come first.
	periods := []string{"2026-04", "2026-05", "2026-06", "2026-01", "2026-02", "2026-03"}
	values := []float64{20, 20, 20, 10, 10, 10}
	for i, period := range periods {
		recordMRR(t, db, period, values[i])
	}
	h := newTestServer(t, db).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/trends/mrr", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp storedTrendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mrr", resp.Key)
	assert.Len(t, resp.Series, 6)
	assert.Equal(t, kpi.TrendImproving, resp.Trend.Direction)

	rec = do(t, h, http.MethodGet, "/api/v1/trends/mrr?window=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Series, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/trends/mrr?window=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/trends/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func recordMRR(t *testing.T, db *store.DB, period string, v float64) *store.Evaluation {
	t.Helper()
	th := kpi.DefaultThresholds()
	snaps := []kpi.MetricSnapshot{
		{Key: "mrr", CurrentValue: kpi.Float(v), Target: kpi.Float(20), Direction: kpi.HigherIsBetter},
	}
	e, err := db.Record(store.Result{
		Period:     period,
		Source:     "test.yaml",
		Version:    "dev",
		Names:      map[string]string{"mrr": "MRR"},
		Classified: kpi.ClassifyAll(snaps, th),
		Alerts: kpi.ComputeAlerts([]kpi.AlertInput{
			{Name: "MRR", CurrentValue: snaps[0].CurrentValue, Target: snaps[0].Target, Direction: kpi.HigherIsBetter},
		}, th),
	})
	require.NoError(t, err)
	return e
}

func TestEvaluationEndpoints(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		h := newTestServer(t, nil).Handler()
		assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/v1/evaluations", "").Code)
		assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/v1/evaluations/latest", "").Code)
	})

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	h := newTestServer(t, db).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/evaluations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"evaluations":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	recordMRR(t, db, "2026-05", 15)
	recordMRR(t, db, "2026-04", 21)

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list evaluationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Evaluations, 1)
	assert.Equal(t, "2026-05", list.Evaluations[0].Period)

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations/latest", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var latest store.EvaluationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, "2026-05", latest.Period)
	require.Len(t, latest.Metrics, 1)
	assert.Equal(t, "red", latest.Metrics[0].Status)
	require.Len(t, latest.Alerts, 1)
	assert.Equal(t, "critical", latest.Alerts[0].Severity)

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var previous store.EvaluationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &previous))
	assert.Equal(t, "2026-04", previous.Period)
	assert.Empty(t, previous.Alerts)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/evaluations/3", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/evaluations/zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/evaluations?limit=-1", "").Code)
}

func TestLivenessAndReadiness(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", "").Code)
	s.SetReady(true)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	do(t, h, http.MethodPost, "/api/v1/classify", `{"metrics":[{"key":"x","current_value":1,"target":1}]}`)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `kpiwatch_classifications_total{status="green"} 1`)
	assert.Contains(t, body, `kpiwatch_requests_total{method="POST",route="/api/v1/classify",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := config.DefaultServer
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	s := New(cfg, kpi.DefaultThresholds(), nil, nil)
	h := s.Handler()

	body := `{"items":[]}`
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/alerts", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/v1/alerts", body).Code)

	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func TestBodyLimit(t *testing.T) {
	cfg := config.DefaultServer
	cfg.MaxBodyBytes = 16
	s := New(cfg, kpi.DefaultThresholds(), nil, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/alerts", `{"items":[{"name":"a very long name indeed"}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIPRateLimiterSweep(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	start := time.Now()
	l.now = func() time.Time { return start }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Zero(t, l.Sweep())

	l.now = func() time.Time { return start.Add(time.Hour) }
	assert.Equal(t, 2, l.Sweep())
}

func TestAlertStream(t *testing.T) {
	s := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		s.Hub().Run(ctx)
		close(hubDone)
	}()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	alert := watcher.Alert{ID: "a1", Level: watcher.LevelCritical, Metric: "mrr", Title: "MRR off target"}
	require.NoError(t, s.Publish(context.Background(), alert))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string        `json:"type"`
		Data watcher.Alert `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, "a1", msg.Data.ID)
	assert.Equal(t, "MRR off target", msg.Data.Title)

	// Stopping the hub closes the stream.
	cancel()
	<-hubDone
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestCheckOrigin(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "http://kpi.local/ws/alerts", nil)
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://kpi.local")
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, s.checkOrigin(req))

	s.AllowedOrigins = []string{"http://evil.example"}
	assert.True(t, s.checkOrigin(req))
}
