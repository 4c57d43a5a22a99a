package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every externally tunable constant of the copy pipeline.
// None of it is business logic: defaults work for a single-host setup.
type Config struct {
	Store    StoreConfig    `json:"store" yaml:"store"`
	Bus      BusConfig      `json:"bus" yaml:"bus"`
	Master   MasterConfig   `json:"master" yaml:"master"`
	Slave    SlaveConfig    `json:"slave" yaml:"slave"`
	Launcher LauncherConfig `json:"launcher" yaml:"launcher"`
}

type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

type BusConfig struct {
	Addr             string `json:"addr" yaml:"addr"`
	Topic            string `json:"topic" yaml:"topic"`
	ReceiveTimeoutMS int    `json:"receive_timeout_ms" yaml:"receive_timeout_ms"`
}

func (b BusConfig) ReceiveTimeout() time.Duration {
	return time.Duration(b.ReceiveTimeoutMS) * time.Millisecond
}

type MasterConfig struct {
	PollIntervalMS int `json:"poll_interval_ms" yaml:"poll_interval_ms"`
}

func (m MasterConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalMS) * time.Millisecond
}

type SlaveConfig struct {
	ReconnectBackoffS int `json:"reconnect_backoff_s" yaml:"reconnect_backoff_s"`
	SlippageTolerance int `json:"slippage_tolerance" yaml:"slippage_tolerance"`
	Magic             int `json:"magic" yaml:"magic"`
}

func (s SlaveConfig) ReconnectBackoff() time.Duration {
	return time.Duration(s.ReconnectBackoffS) * time.Second
}

type LauncherConfig struct {
	GraceDelayMS        int    `json:"grace_delay_ms" yaml:"grace_delay_ms"`
	ShutdownTimeoutS    int    `json:"shutdown_timeout_s" yaml:"shutdown_timeout_s"`
	SuperviseIntervalMS int    `json:"supervise_interval_ms" yaml:"supervise_interval_ms"`
	Executable          string `json:"executable,omitempty" yaml:"executable,omitempty"`
}

func (l LauncherConfig) GraceDelay() time.Duration {
	return time.Duration(l.GraceDelayMS) * time.Millisecond
}

func (l LauncherConfig) ShutdownTimeout() time.Duration {
	return time.Duration(l.ShutdownTimeoutS) * time.Second
}

func (l LauncherConfig) SuperviseInterval() time.Duration {
	return time.Duration(l.SuperviseIntervalMS) * time.Millisecond
}

// Default mirrors the constants the system shipped with: 100ms master poll,
// 5s slave reconnect backoff, 50-point slippage tolerance.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "./copytrader.db"},
		Bus: BusConfig{
			Addr:             "redis://localhost:6379/0",
			Topic:            "TRADE",
			ReceiveTimeoutMS: 100,
		},
		Master: MasterConfig{PollIntervalMS: 100},
		Slave: SlaveConfig{
			ReconnectBackoffS: 5,
			SlippageTolerance: 50,
			Magic:             234000,
		},
		Launcher: LauncherConfig{
			GraceDelayMS:        1000,
			ShutdownTimeoutS:    5,
			SuperviseIntervalMS: 1000,
		},
	}
}

// Load returns defaults overlaid with an optional config file and then any
// COPYTRADER_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("COPYTRADER_STORE_PATH"); ok {
		c.Store.Path = v
	}
	if v, ok := os.LookupEnv("COPYTRADER_BUS_ADDR"); ok {
		c.Bus.Addr = v
	}
	if v, ok := os.LookupEnv("COPYTRADER_BUS_TOPIC"); ok {
		c.Bus.Topic = v
	}
	if v, ok := envInt("COPYTRADER_POLL_INTERVAL_MS"); ok {
		c.Master.PollIntervalMS = v
	}
	if v, ok := envInt("COPYTRADER_RECONNECT_BACKOFF_S"); ok {
		c.Slave.ReconnectBackoffS = v
	}
	if v, ok := envInt("COPYTRADER_SLIPPAGE_TOLERANCE"); ok {
		c.Slave.SlippageTolerance = v
	}
	if v, ok := envInt("COPYTRADER_MAGIC"); ok {
		c.Slave.Magic = v
	}
}

func envInt(key string) (int, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Bus.Addr == "" {
		return fmt.Errorf("bus.addr is required")
	}
	if c.Bus.Topic == "" {
		return fmt.Errorf("bus.topic is required")
	}
	if c.Bus.ReceiveTimeoutMS <= 0 {
		return fmt.Errorf("bus.receive_timeout_ms must be positive")
	}
	if c.Master.PollIntervalMS <= 0 {
		return fmt.Errorf("master.poll_interval_ms must be positive")
	}
	if c.Slave.ReconnectBackoffS <= 0 {
		return fmt.Errorf("slave.reconnect_backoff_s must be positive")
	}
	if c.Slave.SlippageTolerance < 0 {
		return fmt.Errorf("slave.slippage_tolerance must not be negative")
	}
	if c.Launcher.GraceDelayMS < 0 {
		return fmt.Errorf("launcher.grace_delay_ms must not be negative")
	}
	if c.Launcher.ShutdownTimeoutS <= 0 {
		return fmt.Errorf("launcher.shutdown_timeout_s must be positive")
	}
	if c.Launcher.SuperviseIntervalMS <= 0 {
		return fmt.Errorf("launcher.supervise_interval_ms must be positive")
	}
	return nil
}
