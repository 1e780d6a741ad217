package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blackwell-systems/kpiwatch/internal/broker"
	"github.com/blackwell-systems/kpiwatch/internal/config"
	"github.com/blackwell-systems/kpiwatch/internal/watcher"
)

var (
	watchDaemon   bool
	watchInterval time.Duration
	watchStop     bool
	watchQuiet    bool
	watchNotify   bool
	watchNATS     string
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Re-evaluate a batch periodically and alert on changes",
	Long: `Re-read a batch file at a regular interval and alert when metrics are off
target, turn red, lose their data or recover, and when a collaborator's health
turns critical or recovers. Repeated alerts are suppressed until the condition
clears.

Alerts are printed to the terminal, optionally sent as desktop notifications,
and optionally published to NATS on <prefix>.<level>.

Examples:
  kpiwatch watch kpis.yaml                     # run in foreground (ctrl-c to stop)
  kpiwatch watch kpis.yaml --interval 1m       # check every minute
  kpiwatch watch kpis.yaml --notify            # desktop notifications
  kpiwatch watch kpis.yaml --nats nats://localhost:4222
  kpiwatch watch kpis.yaml --daemon            # write PID file, log to file
  kpiwatch watch --stop                        # stop the background daemon`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Check interval (default from config, 5m)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop a running background daemon")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress terminal output")
	watchCmd.Flags().BoolVar(&watchNotify, "notify", false, "Send desktop notifications")
	watchCmd.Flags().StringVar(&watchNATS, "nats", "", "Publish alerts to this NATS server URL")
	rootCmd.AddCommand(watchCmd)
}

// pidFilePath returns the path to the daemon PID file.
func pidFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.pid")
}

// logFilePath returns the path to the daemon log file.
func logFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.log")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchStop {
		return stopDaemon()
	}
	if len(args) != 1 {
		return errors.New("watch needs a batch FILE")
	}

	interval := watchInterval
	if interval == 0 {
		interval = cfg.Watch.Interval
	}
	if interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", interval)
	}

	if watchDaemon {
		return runDaemon(args[0], interval)
	}
	return runForeground(cmd.Context(), cmd.OutOrStdout(), args[0], interval)
}

// newWatcher builds a watcher for path with the configured publishers.
// The returned cleanup closes the broker connection.
func newWatcher(path string, interval time.Duration, alertFn func(watcher.Alert), log *zap.Logger) (*watcher.Watcher, func(), error) {
	asOf, err := asOfOverride()
	if err != nil {
		return nil, nil, err
	}

	w := watcher.New(watcher.FileLoader(path), thresholds, interval, alertFn)
	w.Logger = log
	w.AsOf = asOf

	cleanup := func() {}
	natsURL := watchNATS
	if natsURL == "" {
		natsURL = cfg.NATS.URL
	}
	if natsURL != "" {
		pub, err := broker.NewNATSPublisher(natsURL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			return nil, nil, err
		}
		w.Publisher = pub
		cleanup = func() {
			if err := pub.Close(); err != nil {
				log.Warn("closing NATS connection", zap.Error(err))
			}
		}
	}
	return w, cleanup, nil
}

func notifyEnabled() bool {
	return watchNotify || cfg.Watch.Notify
}

// runForeground runs the watcher in the foreground with live terminal output.
func runForeground(parent context.Context, out io.Writer, path string, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(parent, shutdownSignals...)
	defer stop()

	alertFn := func(a watcher.Alert) {
		if notifyEnabled() {
			if err := watcher.Notify(a); err != nil {
				logger.Debug("desktop notification failed", zap.Error(err))
			}
		}
		if !watchQuiet {
			printAlert(out, a)
		}
	}

	w, cleanup, err := newWatcher(path, interval, alertFn, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if !watchQuiet {
		fmt.Fprintf(out, "kpiwatch watching %s... (checking every %s)\n", path, interval)
	}

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		if !watchQuiet {
			fmt.Fprintln(out, "\nStopped.")
		}
		return nil
	}
	return err
}

// runDaemon sets up PID and log files, then runs the watcher. The actual
// backgrounding should be done by the caller (nohup, &, etc.) since Go
// cannot reliably fork.
func runDaemon(path string, interval time.Duration) error {
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if pid, err := readPID(); err == nil {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d). Use --stop to stop it", pid)
		}
		// Stale PID file.
		_ = os.Remove(pidFilePath())
	}

	pid := os.Getpid()
	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() { _ = os.Remove(pidFilePath()) }()

	fileLog, err := daemonLogger(logFilePath())
	if err != nil {
		return err
	}
	defer func() { _ = fileLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	fileLog.Info("daemon started", zap.Int("pid", pid), zap.String("file", path), zap.Duration("interval", interval))

	alertFn := func(a watcher.Alert) {
		if notifyEnabled() {
			_ = watcher.Notify(a)
		}
		fileLog.Info(a.Title,
			zap.String("level", a.Level),
			zap.String("alert_id", a.ID),
			zap.String("metric", a.Metric),
			zap.String("message", a.Message))
	}

	w, cleanup, err := newWatcher(path, interval, alertFn, fileLog)
	if err != nil {
		return err
	}
	defer cleanup()

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fileLog.Info("daemon stopped")
		return nil
	}
	return err
}

// daemonLogger logs JSON lines to path, appending.
func daemonLogger(path string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if flagVerbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return l, nil
}

// readPID reads the daemon PID from the PID file.
func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// printAlert formats and prints an alert to the terminal.
func printAlert(out io.Writer, a watcher.Alert) {
	timestamp := a.Time.Format("15:04:05")
	fmt.Fprintf(out, "[%s] %s %s\n", timestamp, alertIcon(a.Level), a.Title)
	if a.Message != "" {
		fmt.Fprintf(out, "         %s\n", a.Message)
	}
}

// alertIcon returns the terminal indicator for an alert level.
func alertIcon(level string) string {
	switch level {
	case watcher.LevelCritical:
		return "\xf0\x9f\x94\xb4" // red circle
	case watcher.LevelWarning:
		return "\xe2\x9a\xa0\xef\xb8\x8f" // warning sign
	case watcher.LevelInfo:
		return "\xe2\x9c\x93" // check mark
	default:
		return " "
	}
}
