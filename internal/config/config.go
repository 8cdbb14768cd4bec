package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" as well as plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// D returns the wrapped time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	Scanner  ScannerConfig  `yaml:"scanner"`
	Intent   IntentConfig   `yaml:"intent"`
	Baseline BaselineConfig `yaml:"baseline"`
	Store    StoreConfig    `yaml:"store"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ScannerConfig controls the connection scanner.
type ScannerConfig struct {
	// Source selects the scanner implementation: "poll" or "tracer".
	Source         string   `yaml:"source"`
	PollInterval   Duration `yaml:"poll_interval"`
	QueueSize      int      `yaml:"queue_size"`
	EnqueueTimeout Duration `yaml:"enqueue_timeout"`
	// BPFObject is the compiled BPF object path for the tracer source.
	BPFObject string `yaml:"bpf_object"`
	// MaxKnown bounds the dedup set; 0 means unbounded.
	MaxKnown int `yaml:"max_known"`
}

// IntentConfig controls the user intent monitor.
type IntentConfig struct {
	Listeners bool `yaml:"listeners"`
}

// BaselineConfig controls the behavior baseline store.
type BaselineConfig struct {
	// MaxProfiles bounds the per-process profile map; 0 means unbounded.
	MaxProfiles int `yaml:"max_profiles"`
}

// StoreConfig controls the durable activity store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AlertsConfig controls alert emission.
type AlertsConfig struct {
	Enabled bool             `yaml:"enabled"`
	Modes   []string         `yaml:"modes"` // console|file|redis
	File    FileOutputConfig `yaml:"file"`
	Redis   RedisConfig      `yaml:"redis"`
}

// FileOutputConfig config for local JSONL output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig controls the redis alert sink.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Load reads and parses a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with all defaults applied and no file read.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Scanner.Source == "" {
		cfg.Scanner.Source = "poll"
	}
	if cfg.Scanner.PollInterval <= 0 {
		cfg.Scanner.PollInterval = Duration(500 * time.Millisecond)
	}
	if cfg.Scanner.QueueSize <= 0 {
		cfg.Scanner.QueueSize = 1000
	}
	if cfg.Scanner.EnqueueTimeout <= 0 {
		cfg.Scanner.EnqueueTimeout = Duration(time.Second)
	}
	if cfg.Scanner.BPFObject == "" {
		cfg.Scanner.BPFObject = "./internal/scanner/bpf/net_monitor.bpf.o"
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "ubnad.db"
	}

	if len(cfg.Alerts.Modes) == 0 {
		cfg.Alerts.Modes = []string{"console"}
	}
	if cfg.Alerts.File.Path == "" {
		cfg.Alerts.File.Path = "alerts.jsonl"
	}
	if cfg.Alerts.Redis.Addr == "" {
		cfg.Alerts.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Alerts.Redis.Key == "" {
		cfg.Alerts.Redis.Key = "ubnad_alerts"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9109"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
