package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Duration is a time.Duration read from "90s"-style strings in both the
// JSON file and the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the flotilla runtime configuration.
type Config struct {
	DBPath                  string   `json:"db_path,omitempty" env:"FLOTILLA_DB_PATH"`
	BackupDir               string   `json:"backup_dir,omitempty" env:"FLOTILLA_BACKUP_DIR"`
	InactivityThresholdMs   int64    `json:"inactivity_threshold_ms,omitempty" env:"FLOTILLA_INACTIVITY_THRESHOLD_MS"`
	ProgressThresholds      []int    `json:"progress_thresholds,omitempty" env:"FLOTILLA_PROGRESS_THRESHOLDS" envSeparator:","`
	RetentionMaxAge         Duration `json:"retention_max_age,omitempty" env:"FLOTILLA_RETENTION_MAX_AGE"`
	RetentionMaxPerMission  int      `json:"retention_max_per_mission,omitempty" env:"FLOTILLA_RETENTION_MAX_PER_MISSION"`
	AllowReconsume          bool     `json:"allow_reconsume,omitempty" env:"FLOTILLA_ALLOW_RECONSUME"`
	LockTimeout             Duration `json:"lock_timeout,omitempty" env:"FLOTILLA_LOCK_TIMEOUT"`
	ScanInterval            Duration `json:"scan_interval,omitempty" env:"FLOTILLA_SCAN_INTERVAL"`
	LogLevel                string   `json:"log_level,omitempty" env:"FLOTILLA_LOG_LEVEL"`
	LogFormat               string   `json:"log_format,omitempty" env:"FLOTILLA_LOG_FORMAT"` // "console" or "json"
	Actor                   string   `json:"actor,omitempty" env:"FLOTILLA_ACTOR"`
}

// Default returns the built-in configuration rooted at ~/.flotilla.
func Default() *Config {
	root := ".flotilla"
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, ".flotilla")
	}
	return &Config{
		DBPath:                 filepath.Join(root, "flotilla.db"),
		BackupDir:              filepath.Join(root, "checkpoints"),
		InactivityThresholdMs:  300000,
		ProgressThresholds:     []int{25, 50, 75},
		RetentionMaxAge:        Duration(168 * time.Hour),
		RetentionMaxPerMission: 20,
		LockTimeout:            Duration(30 * time.Minute),
		ScanInterval:           Duration(time.Minute),
		LogLevel:               "info",
		LogFormat:              "console",
	}
}

// FilePath returns the location of the optional config file under dir.
func FilePath(dir string) string {
	return filepath.Join(dir, ".flotilla", "config.json")
}

// Load resolves configuration from defaults, then .flotilla/config.json in
// dir (if present), then FLOTILLA_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(FilePath(dir))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.InactivityThresholdMs <= 0 {
		return fmt.Errorf("inactivity_threshold_ms must be positive, got %d", c.InactivityThresholdMs)
	}
	for _, th := range c.ProgressThresholds {
		if th <= 0 || th > 100 {
			return fmt.Errorf("progress threshold %d out of range 1-100", th)
		}
	}
	if c.RetentionMaxPerMission < 0 {
		return fmt.Errorf("retention_max_per_mission must not be negative")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// InactivityThreshold returns the stale threshold as a duration.
func (c *Config) InactivityThreshold() time.Duration {
	return time.Duration(c.InactivityThresholdMs) * time.Millisecond
}

// LockTimeoutDuration returns the default lock timeout.
func (c *Config) LockTimeoutDuration() time.Duration {
	return time.Duration(c.LockTimeout)
}

// ScanIntervalDuration returns the watcher interval.
func (c *Config) ScanIntervalDuration() time.Duration {
	if c.ScanInterval <= 0 {
		return time.Minute
	}
	return time.Duration(c.ScanInterval)
}

// RetentionMaxAgeDuration returns the retention age limit.
func (c *Config) RetentionMaxAgeDuration() time.Duration {
	return time.Duration(c.RetentionMaxAge)
}
