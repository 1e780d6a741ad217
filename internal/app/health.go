package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/output"
)

var healthDetail bool

var healthCmd = &cobra.Command{
	Use:   "health FILE",
	Short: "Score collaborator health, worst first",
	Long: `Compute a 0-100 composite health score for every collaborator in a batch
file. Each indicator (survey score, days since the last meeting, development
plan completion, pending actions) earns points up to its weight; missing
indicators are left out of the denominator.

Scores of 80 and above are Excellent, 50 to 79 need Attention, and lower
scores are Critical.`,
	Args: cobra.ExactArgs(1),
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthDetail, "detail", false, "Show per-indicator points")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	e, err := evaluateFile(args[0], thresholds, time.Time{})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(w, struct {
			Scores []kpi.SubjectScore `json:"scores"`
		}{e.Health})
	}

	fmt.Fprintln(w, output.Section("Collaborator Health"))
	fmt.Fprintln(w)

	if len(e.Health) == 0 {
		fmt.Fprintln(w, " No collaborators in batch.")
		return nil
	}

	for _, s := range e.Health {
		fmt.Fprintf(w, " %-20s %s  %s\n", s.Name, output.ScoreBar(s.Score, s.Band, 20), output.BandBadge(s.Band))
		if !healthDetail {
			continue
		}
		for _, is := range s.Indicators {
			if is.Raw == nil {
				fmt.Fprintf(w, "   %-18s %s\n", is.Key, output.StyleMuted.Render("missing"))
				continue
			}
			fmt.Fprintf(w, "   %-18s %5.1f / %.0f  (raw %g)\n", is.Key, is.Earned, is.Weight, *is.Raw)
		}
	}
	return nil
}
