package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// Config is the top-level kpiwatch configuration.
type Config struct {
	DBPath     string     `mapstructure:"db_path"`
	Thresholds Thresholds `mapstructure:"thresholds"`
	Health     Health     `mapstructure:"health"`
	Output     Output     `mapstructure:"output"`
	Server     Server     `mapstructure:"server"`
	Watch      Watch      `mapstructure:"watch"`
	NATS       NATS       `mapstructure:"nats"`
}

// Thresholds defines the classification, trend and band boundaries.
type Thresholds struct {
	ProgressGreen   float64 `mapstructure:"progress_green"`
	ProgressYellow  float64 `mapstructure:"progress_yellow"`
	OvershootYellow float64 `mapstructure:"overshoot_yellow"`
	TrendNoiseFloor float64 `mapstructure:"trend_noise_floor"`
	TrendWindow     int     `mapstructure:"trend_window"`
	BandExcellent   int     `mapstructure:"band_excellent"`
	BandAttention   int     `mapstructure:"band_attention"`
}

// Health defines the composite health weight table. An empty table means
// the built-in survey/meeting/plan/pending weights.
type Health struct {
	Indicators []kpi.IndicatorSpec `mapstructure:"indicators"`
}

// Output defines output preferences.
type Output struct {
	Color          bool   `mapstructure:"color"`
	Width          int    `mapstructure:"width"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
}

// Server defines HTTP API settings. RateLimit is requests per second per
// client address.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Watch defines watcher settings.
type Watch struct {
	Interval time.Duration `mapstructure:"interval"`
	Notify   bool          `mapstructure:"notify"`
}

// NATS defines the alert broker connection.
type NATS struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied. Environment variables
// prefixed with KPIWATCH_ override file values.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", DBPath())
	v.SetDefault("thresholds.progress_green", DefaultThresholds.ProgressGreen)
	v.SetDefault("thresholds.progress_yellow", DefaultThresholds.ProgressYellow)
	v.SetDefault("thresholds.overshoot_yellow", DefaultThresholds.OvershootYellow)
	v.SetDefault("thresholds.trend_noise_floor", DefaultThresholds.TrendNoiseFloor)
	v.SetDefault("thresholds.trend_window", DefaultThresholds.TrendWindow)
	v.SetDefault("thresholds.band_excellent", DefaultThresholds.BandExcellent)
	v.SetDefault("thresholds.band_attention", DefaultThresholds.BandAttention)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)
	v.SetDefault("output.currency_symbol", DefaultOutput.CurrencySymbol)
	v.SetDefault("server.addr", DefaultServer.Addr)
	v.SetDefault("server.read_timeout", DefaultServer.ReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServer.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServer.ShutdownTimeout)
	v.SetDefault("server.rate_limit", DefaultServer.RateLimit)
	v.SetDefault("server.rate_burst", DefaultServer.RateBurst)
	v.SetDefault("server.max_body_bytes", DefaultServer.MaxBodyBytes)
	v.SetDefault("watch.interval", DefaultWatch.Interval)
	v.SetDefault("watch.notify", DefaultWatch.Notify)
	v.SetDefault("nats.url", DefaultNATS.URL)
	v.SetDefault("nats.subject_prefix", DefaultNATS.SubjectPrefix)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if len(cfg.Health.Indicators) == 0 {
		cfg.Health.Indicators = kpi.DefaultIndicators()
	}
	cfg.DBPath = expandPath(cfg.DBPath)

	return &cfg, nil
}

// KPI converts the configuration into engine thresholds and validates them.
func (c *Config) KPI() (kpi.Thresholds, error) {
	t := kpi.Thresholds{
		ProgressGreen:   c.Thresholds.ProgressGreen,
		ProgressYellow:  c.Thresholds.ProgressYellow,
		OvershootYellow: c.Thresholds.OvershootYellow,
		TrendNoiseFloor: c.Thresholds.TrendNoiseFloor,
		TrendWindow:     c.Thresholds.TrendWindow,
		BandExcellent:   c.Thresholds.BandExcellent,
		BandAttention:   c.Thresholds.BandAttention,
		Indicators:      c.Health.Indicators,
	}
	if len(t.Indicators) == 0 {
		t.Indicators = kpi.DefaultIndicators()
	}
	if err := t.Validate(); err != nil {
		return kpi.Thresholds{}, fmt.Errorf("invalid thresholds: %w", err)
	}
	return t, nil
}

// DBPath returns the default full path to the SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
