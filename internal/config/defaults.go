// Package config provides configuration loading and defaults for kpiwatch.
package config

import "time"

// DefaultConfigDir is the default location for kpiwatch configuration.
const DefaultConfigDir = "~/.config/kpiwatch"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "kpiwatch.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. KPIWATCH_SERVER_ADDR.
const EnvPrefix = "KPIWATCH"

// DefaultThresholds holds the reference classification boundaries.
var DefaultThresholds = Thresholds{
	ProgressGreen:   100,
	ProgressYellow:  90,
	OvershootYellow: 10,
	TrendNoiseFloor: 0.5,
	TrendWindow:     3,
	BandExcellent:   80,
	BandAttention:   50,
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color:          true,
	Width:          80,
	CurrencySymbol: "$",
}

// DefaultServer holds the default HTTP API settings.
var DefaultServer = Server{
	Addr:            ":8080",
	ReadTimeout:     10 * time.Second,
	WriteTimeout:    15 * time.Second,
	ShutdownTimeout: 5 * time.Second,
	RateLimit:       20,
	RateBurst:       40,
	MaxBodyBytes:    1 << 20,
}

// DefaultWatch holds the default watcher settings.
var DefaultWatch = Watch{
	Interval: 5 * time.Minute,
	Notify:   false,
}

// DefaultNATS leaves the broker disabled; set nats.url to enable it.
var DefaultNATS = NATS{
	URL:           "",
	SubjectPrefix: "kpiwatch.alerts",
}
