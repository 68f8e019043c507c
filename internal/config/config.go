// Package config loads mybrain's configuration from defaults, an optional
// YAML file and MYBRAIN_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MYBRAIN_DATA_DIR.
const EnvPrefix = "MYBRAIN"

// Config is the full configuration surface.
type Config struct {
	DataDir           string  `mapstructure:"data_dir"`
	Collection        string  `mapstructure:"collection"`
	EmbeddingProvider string  `mapstructure:"embedding_provider"`
	RetryBudgetSecs   float64 `mapstructure:"retry_budget_seconds"`
	RetryIntervalSecs float64 `mapstructure:"retry_interval_seconds"`
	ConflictThreshold float64 `mapstructure:"conflict_threshold"`

	MaxTreeLines        int   `mapstructure:"max_tree_lines"`
	MaxFileSizeBytes    int64 `mapstructure:"max_file_size_bytes"`
	MaxStyleSampleFiles int   `mapstructure:"max_style_sample_files"`

	Observer ObserverConfig `mapstructure:"observer"`
	Log      LogConfig      `mapstructure:"log"`
}

// ObserverConfig configures the background drift observer.
type ObserverConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	Schedule             string  `mapstructure:"schedule"`
	ErrorCooldownSeconds float64 `mapstructure:"error_cooldown_seconds"`
	FilesPerSecond       float64 `mapstructure:"files_per_second"`
	WatchChanges         bool    `mapstructure:"watch_changes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Pretty bool   `mapstructure:"pretty"`
}

var defaults = map[string]any{
	"data_dir":                        "~/mybrain_data",
	"collection":                      "mybrain_memory",
	"embedding_provider":              "local",
	"retry_budget_seconds":            2.0,
	"retry_interval_seconds":          0.1,
	"conflict_threshold":              0.5,
	"max_tree_lines":                  200,
	"max_file_size_bytes":             1_000_000,
	"max_style_sample_files":          3,
	"observer.enabled":                true,
	"observer.schedule":               "@every 5m",
	"observer.error_cooldown_seconds": 60.0,
	"observer.files_per_second":       0.0,
	"observer.watch_changes":          false,
	"log.level":                       "info",
	"log.file":                        "",
	"log.pretty":                      false,
}

// Load reads the configuration. An empty path falls back to
// ~/.mybrain/config.yaml, which is optional; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".mybrain", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// Default returns the configuration with no file and no environment applied.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dir, err := expandHome(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would make the store or observer misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.Collection == "" {
		errs = append(errs, errors.New("collection must not be empty"))
	}
	if c.RetryBudgetSecs <= 0 {
		errs = append(errs, fmt.Errorf("retry_budget_seconds must be positive, got %v", c.RetryBudgetSecs))
	}
	if c.RetryIntervalSecs <= 0 {
		errs = append(errs, fmt.Errorf("retry_interval_seconds must be positive, got %v", c.RetryIntervalSecs))
	}
	if c.ConflictThreshold <= 0 || c.ConflictThreshold > 2 {
		errs = append(errs, fmt.Errorf("conflict_threshold must be in (0, 2], got %v", c.ConflictThreshold))
	}
	if c.MaxTreeLines <= 0 {
		errs = append(errs, fmt.Errorf("max_tree_lines must be positive, got %d", c.MaxTreeLines))
	}
	if c.MaxFileSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_file_size_bytes must be positive, got %d", c.MaxFileSizeBytes))
	}
	if c.MaxStyleSampleFiles <= 0 {
		errs = append(errs, fmt.Errorf("max_style_sample_files must be positive, got %d", c.MaxStyleSampleFiles))
	}
	if _, err := cron.ParseStandard(c.Observer.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("observer.schedule %q: %w", c.Observer.Schedule, err))
	}
	if c.Observer.ErrorCooldownSeconds <= 0 {
		errs = append(errs, fmt.Errorf("observer.error_cooldown_seconds must be positive, got %v", c.Observer.ErrorCooldownSeconds))
	}
	if c.Observer.FilesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("observer.files_per_second must not be negative, got %v", c.Observer.FilesPerSecond))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RetryBudget is the wall-clock budget for retrying a contended storage operation.
func (c *Config) RetryBudget() time.Duration { return seconds(c.RetryBudgetSecs) }

// RetryInterval is the fixed wait between storage retries.
func (c *Config) RetryInterval() time.Duration { return seconds(c.RetryIntervalSecs) }

// ErrorCooldown is how long the observer waits after a failed cycle.
func (c *ObserverConfig) ErrorCooldown() time.Duration { return seconds(c.ErrorCooldownSeconds) }

// StatusFile is where the observer persists its state.
func (c *Config) StatusFile() string {
	return filepath.Join(c.DataDir, "observer_state.json")
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
