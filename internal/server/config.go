package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/ecu"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/engine"
)

// Config holds all simulator configuration.
type Config struct {
	mu sync.RWMutex

	// Engine tune and geometry
	Engine engine.Config `yaml:"engine" json:"engine"`

	// Serial dash output
	Dash ecu.SinkConfig `yaml:"dash" json:"dash"`

	// Display preferences
	Display DisplayConfig `yaml:"display" json:"display"`

	// Logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path for save/load
}

type DisplayConfig struct {
	Units      UnitsConfig     `yaml:"units" json:"units"`
	Thresholds ThresholdConfig `yaml:"thresholds" json:"thresholds"`
}

type UnitsConfig struct {
	Temperature string `yaml:"temperature" json:"temperature"` // "K", "C" or "F"
	Pressure    string `yaml:"pressure" json:"pressure"`       // "kpa", "psi", "bar"
}

type ThresholdConfig struct {
	RPMWarn    float64 `yaml:"rpm_warn" json:"rpmWarn"`
	RPMDanger  float64 `yaml:"rpm_danger" json:"rpmDanger"`
	TempWarn   float64 `yaml:"temp_warn" json:"tempWarn"`     // K
	TempDanger float64 `yaml:"temp_danger" json:"tempDanger"` // K
}

type LoggingConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Path     string `yaml:"path" json:"path"`
	Interval int    `yaml:"interval_ms" json:"intervalMs"` // ms between log entries
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
	PollHz     int    `yaml:"poll_hz" json:"pollHz"` // simulation step + broadcast rate
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: engine.DefaultConfig(),
		Dash: ecu.SinkConfig{
			Enabled:  false,
			PortPath: "/dev/ttyDash",
			BaudRate: 115200,
		},
		Display: DisplayConfig{
			Units: UnitsConfig{
				Temperature: "C",
				Pressure:    "kpa",
			},
			Thresholds: ThresholdConfig{
				RPMWarn:    6000,
				RPMDanger:  7000,
				TempWarn:   1200,
				TempDanger: 2500,
			},
		},
		Logging: LoggingConfig{
			Enabled:  false,
			Path:     "/var/log/enginesim",
			Interval: 100,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			PollHz:     60,
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		// Real env takes precedence over .env files
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: LISTEN_ADDR, POLL_HZ, DASH_ENABLED, DASH_PORT, DASH_BAUD,
// LOG_ENABLED, LOG_PATH, LOG_INTERVAL_MS, ENGINE_CYLINDERS, ENGINE_IDLE_RPM
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("POLL_HZ"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.PollHz = n
		}
	}
	if v := os.Getenv("DASH_ENABLED"); v != "" {
		c.Dash.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("DASH_PORT"); v != "" {
		c.Dash.PortPath = v
	}
	if v := os.Getenv("DASH_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dash.BaudRate = n
		}
	}
	if v := os.Getenv("LOG_ENABLED"); v != "" {
		c.Logging.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("LOG_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Logging.Interval = n
		}
	}
	if v := os.Getenv("ENGINE_CYLINDERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.Cylinders = n
		}
	}
	if v := os.Getenv("ENGINE_IDLE_RPM"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.IdleRPM = n
		}
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/enginesim/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved (e.g. port paths, logging).
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
