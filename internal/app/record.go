package app

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/kpiwatch/internal/config"
	"github.com/blackwell-systems/kpiwatch/internal/output"
	"github.com/blackwell-systems/kpiwatch/internal/store"
)

var recordCmd = &cobra.Command{
	Use:   "record FILE...",
	Short: "Evaluate batch files and store the results",
	Long: `Evaluate one or more batch files and store each result as an evaluation
in the local history database. Files are loaded in parallel and recorded in
as_of order, so a year of monthly files can be backfilled in one call.

After each evaluation, status changes against the previous one are shown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
}

// recordOutput is the JSON-serializable output of one recorded file.
type recordOutput struct {
	Evaluation *store.Evaluation     `json:"evaluation"`
	Diff       *store.EvaluationDiff `json:"diff,omitempty"`
}

func runRecord(cmd *cobra.Command, args []string) error {
	asOf, err := asOfOverride()
	if err != nil {
		return err
	}

	evals := make([]*evaluation, len(args))
	g := new(errgroup.Group)
	g.SetLimit(4)
	for i, path := range args {
		g.Go(func() error {
			e, err := evaluateFile(path, thresholds, asOf)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			evals[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sort.SliceStable(evals, func(i, j int) bool {
		return evals[i].date.Before(evals[j].date)
	})

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	results := make([]recordOutput, 0, len(evals))
	for _, e := range evals {
		ev, err := db.Record(store.Result{
			Period:     e.Period,
			Source:     filepath.Base(e.Source),
			Version:    appVersion,
			Names:      e.names(),
			Classified: e.Classified,
			Health:     e.Health,
			Alerts:     e.Alerts,
		})
		if err != nil {
			return fmt.Errorf("recording %s: %w", e.Source, err)
		}
		logger.Info("evaluation recorded",
			zap.Int64("id", ev.ID),
			zap.String("uid", ev.UID),
			zap.String("source", ev.Source),
			zap.String("period", ev.Period))

		diff, err := db.Diff(ev)
		if err != nil {
			return fmt.Errorf("comparing evaluations: %w", err)
		}
		results = append(results, recordOutput{Evaluation: ev, Diff: diff})
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(w, results)
	}
	for _, r := range results {
		renderRecordOutput(w, r)
	}
	return nil
}

func renderRecordOutput(w io.Writer, r recordOutput) {
	fmt.Fprintln(w, output.Section("Recorded: "+r.Evaluation.Source))
	fmt.Fprintln(w)
	fmt.Fprintf(w, " Evaluation #%d for %s taken at %s\n\n",
		r.Evaluation.ID, r.Evaluation.Period, r.Evaluation.TakenAt.Format("2006-01-02 15:04:05"))

	if r.Diff == nil {
		fmt.Fprintln(w, " First evaluation recorded. Run 'kpiwatch record' again later to see changes.")
		return
	}

	fmt.Fprintf(w, " Compared with evaluation #%d (%s)\n\n", r.Diff.Previous.ID, r.Diff.Previous.Period)
	if len(r.Diff.Changes) == 0 {
		fmt.Fprintln(w, " "+output.StyleMuted.Render("No status changes."))
		return
	}

	tbl := output.NewTable("Metric", "Previous", "Current", "Change")
	for _, c := range r.Diff.Changes {
		change := output.StyleSuccess.Render("▲ improved")
		if c.Direction == "regressed" {
			change = output.StyleError.Render("▼ regressed")
		}
		tbl.AddRow(c.MetricKey, c.Previous, c.Current, change)
	}
	_ = tbl.Fprint(w)
}

// openHistory opens the configured database, creating it when missing.
func openHistory() (*store.DB, error) {
	path := cfg.DBPath
	if path == "" {
		path = config.DBPath()
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
