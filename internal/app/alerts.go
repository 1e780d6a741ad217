package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/output"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts FILE",
	Short: "Rank metrics that are materially off target",
	Long: `List the metrics in a batch file that are off target, most severe first.
A higher-is-better metric between 90% and 100% of target is a warning and
below 90% is critical. A lower-is-better metric overshooting its target by
up to 10% is a warning and by more is critical. The command exits normally
even when alerts are found.`,
	Args: cobra.ExactArgs(1),
	RunE: runAlerts,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) error {
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
			AsOf   string          `json:"as_of"`
			Alerts []kpi.AlertItem `json:"alerts"`
		}{e.AsOf, e.Alerts})
	}

	fmt.Fprintln(w, output.Section("KPI Alerts"))
	fmt.Fprintf(w, " As of %s\n\n", e.AsOf)

	if len(e.Alerts) == 0 {
		fmt.Fprintln(w, " "+output.StyleSuccess.Render("All metrics within tolerance."))
		return nil
	}

	tbl := output.NewTable("Severity", "Metric", "Current", "Target", "% of target").AlignRight(2, 3, 4)
	for _, a := range e.Alerts {
		tbl.AddRow(
			output.SeverityBadge(a.Severity),
			a.Name,
			output.FormatValue(a.CurrentValue, a.Format, cfg.Output.CurrencySymbol),
			output.FormatValue(&a.Target, a.Format, cfg.Output.CurrencySymbol),
			fmt.Sprintf("%.1f%%", a.PercentOfTarget),
		)
	}
	return tbl.Fprint(w)
}
