// Package app contains the Cobra command tree for kpiwatch.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/kpiwatch/internal/config"
	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/logging"
	"github.com/blackwell-systems/kpiwatch/internal/output"
	"github.com/blackwell-systems/kpiwatch/internal/source"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
	flagAsOf    string
)

// Populated by the root command before any subcommand runs.
var (
	cfg        *config.Config
	thresholds kpi.Thresholds
	logger     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "kpiwatch",
	Short: "Classify KPIs, score team health and alert on off-target metrics",
	Long: `kpiwatch evaluates business KPIs against their targets. It classifies
each metric as green, yellow, red or gray, scores collaborator health from
weighted indicators, ranks off-target metrics as alerts, and tracks status
and trends over time.

Run 'kpiwatch' with no arguments to see the available commands.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "kpiwatch", appVersion)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Use a subcommand:")
		fmt.Fprintln(w, "  classify  Classify metrics in a batch file as green/yellow/red/gray")
		fmt.Fprintln(w, "  alerts    Rank metrics that are materially off target")
		fmt.Fprintln(w, "  health    Score collaborator health, worst first")
		fmt.Fprintln(w, "  record    Evaluate batch files and store the results")
		fmt.Fprintln(w, "  trend     Show trends from recorded history")
		fmt.Fprintln(w, "  watch     Re-evaluate a batch periodically and alert on changes")
		fmt.Fprintln(w, "  serve     Serve the HTTP API and live alert stream")
		fmt.Fprintln(w, "  mcp       Run an MCP stdio tool server")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/kpiwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagAsOf, "as-of", "", "Evaluate quarter targets as of this date (YYYY-MM-DD)")
}

// setup builds the logger, loads configuration and applies color settings.
func setup(cmd *cobra.Command, args []string) error {
	l, err := logging.New(flagVerbose, flagJSON)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	logger = l

	c, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	t, err := c.KPI()
	if err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	cfg, thresholds = c, t

	output.AutoColor(cfg.Output.Color && !flagNoColor)
	logger.Debug("configuration loaded",
		zap.String("config", flagConfig),
		zap.String("db_path", cfg.DBPath),
		zap.Int("indicators", len(thresholds.Indicators)))
	return nil
}

// asOfOverride parses --as-of. The zero time means no override.
func asOfOverride() (time.Time, error) {
	if flagAsOf == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(source.DateLayout, flagAsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD", flagAsOf)
	}
	return t, nil
}
