package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/output"
	"github.com/blackwell-systems/kpiwatch/internal/store"
)

var trendWindow int

var trendCmd = &cobra.Command{
	Use:   "trend [KEY]",
	Short: "Show trends from recorded history",
	Long: `Classify the trend of recorded metrics as improving, declining or stable
by comparing the mean of the most recent evaluations with the mean of the
evaluations before them. Lower-is-better metrics improve when they fall.

With KEY, only that metric is shown. Evaluations are stored by 'kpiwatch record'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrend,
}

func init() {
	trendCmd.Flags().IntVar(&trendWindow, "window", 0, "Number of recent evaluations to consider (default: twice the trend window)")
	rootCmd.AddCommand(trendCmd)
}

// trendRow is the JSON-serializable trend of one metric.
type trendRow struct {
	Key       string           `json:"key"`
	Direction kpi.Direction    `json:"direction"`
	Series    []kpi.TrendPoint `json:"series"`
	Trend     kpi.Trend        `json:"trend"`
}

func runTrend(cmd *cobra.Command, args []string) error {
	window := trendWindow
	if window <= 0 {
		window = 2 * thresholds.TrendWindow
	}

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	keys := args
	if len(keys) == 0 {
		if keys, err = db.GetMetricKeys(); err != nil {
			return fmt.Errorf("listing metrics: %w", err)
		}
	}

	rows := make([]trendRow, 0, len(keys))
	for _, key := range keys {
		series, err := db.GetSeries(key, window)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		if len(series) == 0 {
			if len(args) > 0 {
				return fmt.Errorf("no recorded values for metric %q", key)
			}
			continue
		}
		d, err := db.GetMetricDirection(key)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		rows = append(rows, trendRow{
			Key:       key,
			Direction: d,
			Series:    series,
			Trend:     kpi.ClassifyTrendFor(series, d, thresholds),
		})
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(w, rows)
	}

	fmt.Fprintln(w, output.Section("KPI Trends"))
	fmt.Fprintln(w)
	if len(rows) == 0 {
		fmt.Fprintln(w, " No history yet. Run 'kpiwatch record FILE' to store evaluations.")
		return nil
	}

	tbl := output.NewTable("Metric", "Points", "Previous", "Recent", "Delta", "Trend").AlignRight(1, 2, 3, 4)
	for _, r := range rows {
		previous, recent, delta := "─", "─", "─"
		if r.Trend.Points > thresholds.TrendWindow {
			previous = fmt.Sprintf("%.2f", r.Trend.PreviousMean)
			recent = fmt.Sprintf("%.2f", r.Trend.RecentMean)
			delta = fmt.Sprintf("%+.2f", r.Trend.Delta)
		}
		tbl.AddRow(r.Key, fmt.Sprintf("%d", len(r.Series)), previous, recent, delta, output.TrendIndicator(r.Trend))
	}
	return tbl.Fprint(w)
}
