package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultServer, cfg.Server)
	assert.Equal(t, DefaultWatch, cfg.Watch)
	assert.Equal(t, DefaultNATS, cfg.NATS)
	assert.Len(t, cfg.Health.Indicators, 4)

	th, err := cfg.KPI()
	require.NoError(t, err)
	assert.Equal(t, kpi.DefaultThresholds(), th)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/kpi.db
thresholds:
  progress_yellow: 80
  overshoot_yellow: 25
server:
  addr: 127.0.0.1:9000
  read_timeout: 3s
watch:
  interval: 30s
health:
  indicators:
    - key: nps
      weight: 40
      mode: at_least
      tiers:
        - {bound: 50, points: 40}
        - {bound: 0, points: 10}
    - key: plan_completion
      weight: 60
      mode: linear
      scale: 100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/kpi.db", cfg.DBPath)
	assert.InDelta(t, 80, cfg.Thresholds.ProgressYellow, 1e-9)
	assert.InDelta(t, 100, cfg.Thresholds.ProgressGreen, 1e-9)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Watch.Interval)

	th, err := cfg.KPI()
	require.NoError(t, err)
	require.Len(t, th.Indicators, 2)
	assert.Equal(t, "nps", th.Indicators[0].Key)
	assert.Equal(t, kpi.TierAtLeast, th.Indicators[0].Mode)
	assert.Equal(t, []kpi.Tier{{Bound: 50, Points: 40}, {Bound: 0, Points: 10}}, th.Indicators[0].Tiers)
	assert.InDelta(t, 25, th.OvershootYellow, 1e-9)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KPIWATCH_SERVER_ADDR", ":9999")
	t.Setenv("KPIWATCH_NATS_URL", "nats://example:4222")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "nats://example:4222", cfg.NATS.URL)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "thresholds: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestKPI_RejectsInconsistentThresholds(t *testing.T) {
	path := writeConfig(t, `
thresholds:
  progress_green: 80
  progress_yellow: 95
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.KPI()
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x", "y"), expandPath("~/x/y"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
	assert.Equal(t, "rel", expandPath("rel"))
}
