// Package config loads and validates configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob, loaded from flags, environment, and the
// optional config file (flags win).
type Config struct {
	Output     OutputConfig  `mapstructure:"output"`
	Crawler    CrawlerConfig `mapstructure:"crawler"`
	HTTP       HTTPConfig    `mapstructure:"http"`
	Render     RenderConfig  `mapstructure:"render"`
	StatusAddr string        `mapstructure:"status_addr"`
	Verbose    bool          `mapstructure:"verbose"`
}

// OutputConfig controls the on-disk mirror.
type OutputConfig struct {
	Dir           string `mapstructure:"dir"`
	OverwriteLLMS bool   `mapstructure:"overwrite_llms"`
	Clutter       bool   `mapstructure:"clutter"`
}

// CrawlerConfig governs the scheduler and frontier.
type CrawlerConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	UserAgent     string `mapstructure:"user_agent"`
	MaxDepth      int    `mapstructure:"max_depth"`
	MaxPages      int    `mapstructure:"max_pages"`
	DelayMs       int    `mapstructure:"delay_ms"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	Retries        int `mapstructure:"retries"`
}

// RenderConfig configures the headless escalation path.
type RenderConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS         float64 `mapstructure:"domain_qps"`
}

// SetDefaults registers every default on the Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", ".docs")
	v.SetDefault("output.overwrite_llms", false)
	v.SetDefault("output.clutter", false)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.user_agent", "docs-mirror/1.0 (+https://github.com/JakeFAU/docs-mirror)")
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.delay_ms", 0)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.retries", 2)
	v.SetDefault("render.enabled", true)
	v.SetDefault("render.max_parallel", 1)
	v.SetDefault("render.nav_timeout_seconds", 25)
	v.SetDefault("render.domain_qps", 0)
	v.SetDefault("status_addr", "")
	v.SetDefault("verbose", false)
}

// Load builds a Config from the Viper instance, reading the optional
// docs-mirror.yaml from the working directory and DOCSMIRROR_* env vars.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("DOCSMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("docs-mirror")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must be >= 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	return nil
}

// Timeout is the per-fetch hard deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Delay is the user-requested per-origin spacing.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// RenderTimeout bounds one headless navigation.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSeconds) * time.Second
}
