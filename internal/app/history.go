package app

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/output"
	"github.com/blackwell-systems/kpiwatch/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [N]",
	Short: "List recorded evaluations or show one of them",
	Long: `Without arguments, list the most recent evaluations in the history
database, newest period first.

With N, show the Nth most recent evaluation (1 = latest) with the metric
statuses, alerts and health scores it recorded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of evaluations to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	w := cmd.OutOrStdout()
	if len(args) == 0 {
		return listEvaluations(w, db)
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("evaluation must be a positive integer, got %q", args[0])
	}
	e, err := db.GetEvaluationN(n)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no evaluation #%d in history", n)
	}
	if err != nil {
		return fmt.Errorf("reading evaluation: %w", err)
	}
	detail, err := db.Detail(e)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(w, detail)
	}
	renderDetail(w, detail)
	return nil
}

func listEvaluations(w io.Writer, db *store.DB) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", historyLimit)
	}
	evals, err := db.GetRecentEvaluations(historyLimit)
	if err != nil {
		return fmt.Errorf("listing evaluations: %w", err)
	}
	if flagJSON {
		if evals == nil {
			evals = []store.Evaluation{}
		}
		return writeJSON(w, evals)
	}

	fmt.Fprintln(w, output.Section("Evaluation History"))
	fmt.Fprintln(w)
	if len(evals) == 0 {
		fmt.Fprintln(w, " No history yet. Run 'kpiwatch record FILE' to store evaluations.")
		return nil
	}

	tbl := output.NewTable("#", "Period", "Source", "Recorded").AlignRight(0)
	for i, e := range evals {
		tbl.AddRow(strconv.Itoa(i+1), e.Period, e.Source, e.TakenAt.Local().Format("2006-01-02 15:04"))
	}
	return tbl.Fprint(w)
}

func renderDetail(w io.Writer, d *store.EvaluationDetail) {
	fmt.Fprintln(w, output.Section(fmt.Sprintf("Evaluation %s (%s)", d.Period, d.Source)))
	fmt.Fprintln(w)

	metrics := output.NewTable("Metric", "Status", "Current", "Target", "Progress").AlignRight(2, 3, 4)
	for _, mv := range d.Metrics {
		metrics.AddRow(
			mv.Name,
			output.StatusBadge(kpi.Status(mv.Status)),
			output.FormatValue(mv.CurrentValue, kpi.FormatNumber, ""),
			output.FormatValue(mv.Target, kpi.FormatNumber, ""),
			output.Percent(mv.Progress),
		)
	}
	_ = metrics.Fprint(w)

	fmt.Fprintln(w)
	if len(d.Alerts) == 0 {
		fmt.Fprintln(w, " "+output.StyleMuted.Render("No alerts."))
	} else {
		alerts := output.NewTable("Severity", "Metric", "% of target").AlignRight(2)
		for _, a := range d.Alerts {
			alerts.AddRow(output.SeverityBadge(kpi.Severity(a.Severity)), a.MetricName, fmt.Sprintf("%.1f%%", a.PercentOfTarget))
		}
		_ = alerts.Fprint(w)
	}

	if len(d.Health) == 0 {
		return
	}
	fmt.Fprintln(w)
	health := output.NewTable("Subject", "Score", "Band").AlignRight(1)
	for _, h := range d.Health {
		score := strconv.Itoa(h.Score)
		if !h.HasData {
			score = "─"
		}
		health.AddRow(h.Subject, score, output.BandBadge(kpi.Band(h.Band)))
	}
	_ = health.Fprint(w)
}
