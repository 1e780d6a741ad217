package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/kpiwatch/internal/server"
	"github.com/blackwell-systems/kpiwatch/internal/store"
	"github.com/blackwell-systems/kpiwatch/internal/watcher"
)

var (
	serveAddr    string
	serveWatch   string
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and live alert stream",
	Long: `Serve the engine over HTTP:

  POST /api/v1/classify       classify metric snapshots
  POST /api/v1/alerts         rank off-target metrics
  POST /api/v1/health         score collaborators
  POST /api/v1/trend          classify a series
  GET  /api/v1/trends/{key}   trend of a recorded metric
  GET  /api/v1/evaluations    recorded evaluations, newest first
  GET  /api/v1/evaluations/{n}  one evaluation (latest, 1, 2, ...) with its results
  GET  /ws/alerts             websocket stream of watcher alerts
  GET  /metrics               prometheus metrics
  GET  /healthz, /readyz      liveness and readiness

With --watch FILE, the batch is re-evaluated at the watch interval and its
alerts are streamed to websocket clients (and NATS, when configured).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "Batch file to watch and stream alerts for")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Do not open the history database")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	serverCfg := cfg.Server
	if serveAddr != "" {
		serverCfg.Addr = serveAddr
	}

	var db *store.DB
	if !serveNoStore {
		var err error
		if db, err = openHistory(); err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
	}

	srv := server.New(serverCfg, thresholds, db, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if serveWatch != "" {
		w, cleanup, err := newWatcher(serveWatch, cfg.Watch.Interval, nil, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer cleanup()

		if w.Publisher != nil {
			w.Publisher = watcher.Publishers{srv, w.Publisher}
		} else {
			w.Publisher = srv
		}
		logger.Info("watching batch", zap.String("file", serveWatch), zap.Duration("interval", cfg.Watch.Interval))

		g.Go(func() error {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
