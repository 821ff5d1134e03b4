package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 4, cfg.Engine.Cylinders)
	assert.Equal(t, []int{0, 2, 3, 1}, cfg.Engine.FireOrder)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 60, cfg.Server.PollHz)
	assert.False(t, cfg.Dash.Enabled)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, DefaultConfig().Engine, cfg.Engine)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
engine:
  idle_rpm: 1500
  fuel_per_cycle: 0.002
server:
  listen_addr: ":9090"
dash:
  enabled: true
  port_path: /dev/ttyUSB3
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg := LoadConfig(path)
	assert.Equal(t, 1500.0, cfg.Engine.IdleRPM)
	assert.Equal(t, 0.002, cfg.Engine.FuelPerCycle)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.True(t, cfg.Dash.Enabled)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Dash.PortPath)

	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.Engine.Cylinders)
	assert.Equal(t, 0.95, cfg.Engine.Friction)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("ENGINE_IDLE_RPM", "800")
	t.Setenv("DASH_ENABLED", "true")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, 800.0, cfg.Engine.IdleRPM)
	assert.True(t, cfg.Dash.Enabled)
}

func TestUpdateFromJSONDeepMerges(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.UpdateFromJSON([]byte(`{"display":{"thresholds":{"rpmWarn":5500}}}`))
	require.NoError(t, err)

	assert.Equal(t, 5500.0, cfg.Display.Thresholds.RPMWarn)
	// Sibling and unrelated fields survive the merge.
	assert.Equal(t, 7000.0, cfg.Display.Thresholds.RPMDanger)
	assert.Equal(t, "/dev/ttyDash", cfg.Dash.PortPath)
	assert.Equal(t, 4, cfg.Engine.Cylinders)
}

func TestUpdateFromJSONRejectsGarbage(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.UpdateFromJSON([]byte(`{not json`)))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := LoadConfig(path)
	cfg.Engine.IdleRPM = 1234
	require.NoError(t, cfg.Save())

	reloaded := LoadConfig(path)
	assert.Equal(t, 1234.0, reloaded.Engine.IdleRPM)
}
