// Package config loads linkmedic settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid marks configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config stores all configuration for the application.
type Config struct {
	Corpus              string        `mapstructure:"corpus"`
	Workdir             string        `mapstructure:"workdir"`
	Include             []string      `mapstructure:"include"`
	Exclude             []string      `mapstructure:"exclude"`
	ContextWindow       int           `mapstructure:"context_window"`
	TimeoutSeconds      int           `mapstructure:"timeout_seconds"`
	MaxRetries          int           `mapstructure:"max_retries"`
	BackoffBase         time.Duration `mapstructure:"backoff_base"`
	RetryHTTPErrors     bool          `mapstructure:"retry_http_errors"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	RateLimitDelay      time.Duration `mapstructure:"rate_limit_delay"`
	Concurrency         int           `mapstructure:"concurrency"`
	AlertSinkEndpoint   string        `mapstructure:"alert_sink_endpoint"`
	GitHubToken         string        `mapstructure:"github_token"`
	GitHubAPI           string        `mapstructure:"github_api"`

	Browser   BrowserConfig   `mapstructure:"browser"`
	Relevance RelevanceConfig `mapstructure:"relevance"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Log       LogConfig       `mapstructure:"log"`
}

// BrowserConfig controls the rendering tier of the validation engine.
type BrowserConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	Always         bool `mapstructure:"always"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
}

// RelevanceConfig holds scoring bands and the reliability override file.
type RelevanceConfig struct {
	KeepThreshold    float64 `mapstructure:"keep_threshold"`
	ReplaceThreshold float64 `mapstructure:"replace_threshold"`
	ReliabilityFile  string  `mapstructure:"reliability_file"`
}

// MonitorConfig configures continuous monitoring.
type MonitorConfig struct {
	IntervalMinutes  int           `mapstructure:"interval_minutes"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SlowThreshold    time.Duration `mapstructure:"slow_threshold"`
	Store            string        `mapstructure:"store"`
	StorePath        string        `mapstructure:"store_path"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisKey         string        `mapstructure:"redis_key"`
}

// ArchiveConfig points at the Wayback Machine endpoints.
type ArchiveConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SaveURL    string `mapstructure:"save_url"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LogConfig selects the log level and optional rotating log file.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// SetDefaults registers every known key so environment overrides apply.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("corpus", ".")
	v.SetDefault("workdir", "")
	v.SetDefault("include", []string{"**/*.md", "**/*.markdown", "**/*.mdx", "**/*.txt", "**/*.rst"})
	v.SetDefault("exclude", []string{"**/.git/**", "**/node_modules/**", "**/*.bak", "**/.linkmedic/**"})
	v.SetDefault("context_window", 160)
	v.SetDefault("timeout_seconds", 15)
	v.SetDefault("max_retries", 3)
	v.SetDefault("backoff_base", "500ms")
	v.SetDefault("retry_http_errors", true)
	v.SetDefault("confidence_threshold", 90.0)
	v.SetDefault("rate_limit_delay", "1s")
	v.SetDefault("concurrency", 8)
	v.SetDefault("alert_sink_endpoint", "")
	v.SetDefault("github_token", "")
	v.SetDefault("github_api", "https://api.github.com")

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.always", false)
	v.SetDefault("browser.timeout_seconds", 30)

	v.SetDefault("relevance.keep_threshold", 70.0)
	v.SetDefault("relevance.replace_threshold", 40.0)
	v.SetDefault("relevance.reliability_file", "")

	v.SetDefault("monitor.interval_minutes", 60)
	v.SetDefault("monitor.failure_threshold", 3)
	v.SetDefault("monitor.slow_threshold", "5s")
	v.SetDefault("monitor.store", "file")
	v.SetDefault("monitor.store_path", "")
	v.SetDefault("monitor.redis_addr", "localhost:6379")
	v.SetDefault("monitor.redis_key", "linkmedic:health")

	v.SetDefault("archive.base_url", "https://archive.org")
	v.SetDefault("archive.save_url", "https://web.archive.org/save/")
	v.SetDefault("archive.max_age_days", 365)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Prepare wires defaults, the env prefix and the optional config file into v.
// A missing default config file is not an error; an explicit one is.
func Prepare(v *viper.Viper, cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix("LINKMEDIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrInvalid, cfgFile, err)
		}

		return nil
	}

	v.SetConfigName(".linkmedic")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if cfg.Workdir == "" {
		cfg.Workdir = filepath.Join(cfg.Corpus, ".linkmedic")
	}
	if cfg.Monitor.StorePath == "" {
		cfg.Monitor.StorePath = filepath.Join(cfg.Workdir, "health.json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var problems []string

	if c.TimeoutSeconds <= 0 {
		problems = append(problems, "timeout_seconds must be positive")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "max_retries must not be negative")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		problems = append(problems, "confidence_threshold must be within 0-100")
	}
	if c.RateLimitDelay < 0 {
		problems = append(problems, "rate_limit_delay must not be negative")
	}
	if c.Concurrency <= 0 {
		problems = append(problems, "concurrency must be positive")
	}
	if c.Relevance.ReplaceThreshold > c.Relevance.KeepThreshold {
		problems = append(problems, "relevance.replace_threshold must not exceed relevance.keep_threshold")
	}
	if c.Monitor.FailureThreshold <= 0 {
		problems = append(problems, "monitor.failure_threshold must be positive")
	}
	if c.Monitor.IntervalMinutes <= 0 {
		problems = append(problems, "monitor.interval_minutes must be positive")
	}
	switch c.Monitor.Store {
	case "file", "redis":
	default:
		problems = append(problems, fmt.Sprintf("monitor.store %q is not one of file, redis", c.Monitor.Store))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	return nil
}

// Timeout is the per-attempt request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BrowserTimeout bounds a single rendering.
func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

// MonitorInterval is the pause between monitoring passes.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMinutes) * time.Minute
}
