package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

const evaluationColumns = "id, uid, taken_at, period, source, version"

// timeOrder sorts evaluations newest first. Periods are YYYY-MM labels, so
// text order is time order; evaluations of the same period keep insertion order.
const timeOrder = "period DESC, id DESC"

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// GetLatestEvaluation returns the evaluation with the most recent period.
func (db *DB) GetLatestEvaluation() (*Evaluation, error) {
	return db.GetEvaluationN(1)
}

// GetEvaluationN returns the Nth most recent evaluation by period (1 = latest, 2 = previous, etc.).
func (db *DB) GetEvaluationN(n int) (*Evaluation, error) {
	if n < 1 {
		return nil, ErrNotFound
	}
	row := db.conn.QueryRow(
		"SELECT "+evaluationColumns+" FROM evaluations ORDER BY "+timeOrder+" LIMIT 1 OFFSET ?",
		n-1,
	)
	return scanEvaluation(row)
}

// GetRecentEvaluations returns up to n evaluations, newest period first.
func (db *DB) GetRecentEvaluations(n int) ([]Evaluation, error) {
	rows, err := db.conn.Query(
		"SELECT "+evaluationColumns+" FROM evaluations ORDER BY "+timeOrder+" LIMIT ?", n,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var evals []Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, *e)
	}
	return evals, rows.Err()
}

// Detail loads the metrics, health scores and alerts recorded by e.
func (db *DB) Detail(e *Evaluation) (*EvaluationDetail, error) {
	metrics, err := db.GetMetricValues(e.ID)
	if err != nil {
		return nil, fmt.Errorf("loading metrics: %w", err)
	}
	health, err := db.GetHealthScores(e.ID)
	if err != nil {
		return nil, fmt.Errorf("loading health scores: %w", err)
	}
	alerts, err := db.GetAlerts(e.ID)
	if err != nil {
		return nil, fmt.Errorf("loading alerts: %w", err)
	}
	return &EvaluationDetail{
		Evaluation: *e,
		Metrics:    metrics,
		Health:     health,
		Alerts:     alerts,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*Evaluation, error) {
	var e Evaluation
	var takenAt string
	err := row.Scan(&e.ID, &e.UID, &takenAt, &e.Period, &e.Source, &e.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.TakenAt, _ = time.Parse(time.RFC3339, takenAt)
	return &e, nil
}

// insertEvaluation assigns e a uid and timestamp, inserts it and sets its ID.
func insertEvaluation(ex execer, e *Evaluation) error {
	e.UID = uuid.NewString()
	e.TakenAt = time.Now().UTC().Truncate(time.Second)
	result, err := ex.Exec(
		"INSERT INTO evaluations (uid, taken_at, period, source, version) VALUES (?, ?, ?, ?, ?)",
		e.UID, e.TakenAt.Format(time.RFC3339), e.Period, e.Source, e.Version,
	)
	if err != nil {
		return fmt.Errorf("inserting evaluation: %w", err)
	}
	e.ID, err = result.LastInsertId()
	return err
}

func insertMetricValue(ex execer, mv *MetricValue) error {
	_, err := ex.Exec(
		`INSERT INTO metric_values
		(evaluation_id, metric_key, name, current_value, target, direction, status, progress)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.EvaluationID, mv.MetricKey, mv.Name, mv.CurrentValue, mv.Target,
		mv.Direction, mv.Status, mv.Progress,
	)
	return err
}

func insertHealthScore(ex execer, hs *HealthScoreRow) error {
	_, err := ex.Exec(
		`INSERT INTO health_scores (evaluation_id, subject, score, band, has_data)
		VALUES (?, ?, ?, ?, ?)`,
		hs.EvaluationID, hs.Subject, hs.Score, hs.Band, hs.HasData,
	)
	return err
}

func insertAlert(ex execer, a *AlertRow) error {
	_, err := ex.Exec(
		`INSERT INTO alerts (evaluation_id, metric_name, severity, percent_of_target)
		VALUES (?, ?, ?, ?)`,
		a.EvaluationID, a.MetricName, a.Severity, a.PercentOfTarget,
	)
	return err
}

// GetMetricValues returns the metrics recorded by an evaluation, in insertion order.
func (db *DB) GetMetricValues(evaluationID int64) ([]MetricValue, error) {
	rows, err := db.conn.Query(
		`SELECT id, evaluation_id, metric_key, name, current_value, target, direction, status, progress
		 FROM metric_values WHERE evaluation_id = ? ORDER BY id`,
		evaluationID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []MetricValue
	for rows.Next() {
		var mv MetricValue
		var current, target, progress sql.NullFloat64
		if err := rows.Scan(&mv.ID, &mv.EvaluationID, &mv.MetricKey, &mv.Name,
			&current, &target, &mv.Direction, &mv.Status, &progress); err != nil {
			return nil, err
		}
		mv.CurrentValue = nullFloat(current)
		mv.Target = nullFloat(target)
		mv.Progress = nullFloat(progress)
		values = append(values, mv)
	}
	return values, rows.Err()
}

// GetHealthScores returns the health scores recorded by an evaluation.
func (db *DB) GetHealthScores(evaluationID int64) ([]HealthScoreRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, evaluation_id, subject, score, band, has_data
		 FROM health_scores WHERE evaluation_id = ? ORDER BY id`,
		evaluationID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var scores []HealthScoreRow
	for rows.Next() {
		var hs HealthScoreRow
		if err := rows.Scan(&hs.ID, &hs.EvaluationID, &hs.Subject, &hs.Score, &hs.Band, &hs.HasData); err != nil {
			return nil, err
		}
		scores = append(scores, hs)
	}
	return scores, rows.Err()
}

// GetAlerts returns the alerts raised by an evaluation, in insertion order.
func (db *DB) GetAlerts(evaluationID int64) ([]AlertRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, evaluation_id, metric_name, severity, percent_of_target
		 FROM alerts WHERE evaluation_id = ? ORDER BY id`,
		evaluationID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var alerts []AlertRow
	for rows.Next() {
		var a AlertRow
		if err := rows.Scan(&a.ID, &a.EvaluationID, &a.MetricName, &a.Severity, &a.PercentOfTarget); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetSeries returns the last n recorded values of a metric in period order,
// oldest first, labelled with each evaluation's period. Recording order does
// not matter, so backfilled months land in place. Evaluations where the metric
// had no current value are skipped. n <= 0 returns the whole history.
func (db *DB) GetSeries(metricKey string, n int) ([]kpi.TrendPoint, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := db.conn.Query(
		`SELECT e.period, mv.current_value
		 FROM metric_values mv JOIN evaluations e ON e.id = mv.evaluation_id
		 WHERE mv.metric_key = ? AND mv.current_value IS NOT NULL
		 ORDER BY e.period DESC, e.id DESC LIMIT ?`,
		metricKey, n,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var series []kpi.TrendPoint
	for rows.Next() {
		var p kpi.TrendPoint
		if err := rows.Scan(&p.PeriodLabel, &p.Value); err != nil {
			return nil, err
		}
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series, nil
}

// GetMetricKeys returns every metric key ever recorded, sorted.
func (db *DB) GetMetricKeys() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT metric_key FROM metric_values ORDER BY metric_key")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetMetricDirection returns the direction recorded with a metric's latest value.
func (db *DB) GetMetricDirection(metricKey string) (kpi.Direction, error) {
	var d string
	err := db.conn.QueryRow(
		"SELECT direction FROM metric_values WHERE metric_key = ? ORDER BY id DESC LIMIT 1",
		metricKey,
	).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return kpi.Direction(d), nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}
