package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/output"
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE",
	Short: "Classify metrics in a batch file as green/yellow/red/gray",
	Long: `Load a YAML or JSON batch file and classify every metric against its
target. Higher-is-better metrics are scored by progress; lower-is-better
metrics by how far they overshoot. Metrics without a value are gray.

Quarter targets are resolved by the batch's as_of date, or --as-of.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	asOf, err := asOfOverride()
	if err != nil {
		return err
	}
	e, err := evaluateFile(args[0], thresholds, asOf)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(w, struct {
			AsOf       string                 `json:"as_of"`
			Classified []kpi.ClassifiedMetric `json:"classified"`
			Summary    kpi.Summary            `json:"summary"`
			Trends     map[string]kpi.Trend   `json:"trends"`
		}{e.AsOf, e.Classified, e.Summary, e.Trends})
	}

	fmt.Fprintln(w, output.Section("KPI Status"))
	fmt.Fprintf(w, " As of %s\n\n", e.AsOf)

	tbl := output.NewTable("Metric", "Status", "Current", "Target", "Progress", "", "Trend").AlignRight(2, 3, 5)
	for _, c := range e.Classified {
		m := e.metric(c.Snapshot.Key)
		f, _ := kpi.ParseFormat(m.Format)
		tbl.AddRow(
			m.Label(),
			output.StatusBadge(c.Status),
			output.FormatValue(c.Snapshot.CurrentValue, f, cfg.Output.CurrencySymbol),
			output.FormatValue(c.Snapshot.Target, f, cfg.Output.CurrencySymbol),
			output.ProgressBar(c, 10),
			output.Percent(c.ProgressPercent),
			output.TrendIndicator(e.Trends[c.Snapshot.Key]),
		)
	}
	if err := tbl.Fprint(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n %s\n", summaryLine(e.Summary))
	return nil
}
