package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/kpiwatch/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP stdio tool server",
	Long: `Start a Model Context Protocol stdio server exposing the KPI engine as
tools:

  classify_metrics   Classify snapshots as green/yellow/red/gray
  compute_alerts     Rank metrics that are materially off target
  score_health       Composite 0-100 health score per collaborator
  classify_trend     Improving, declining or stable for a series

Thresholds come from the kpiwatch configuration. Example client entry:
  {"mcpServers":{"kpiwatch":{"command":"kpiwatch","args":["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv := mcp.NewServer(thresholds, appVersion, logger)
	return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
}
