package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ".docs", cfg.Output.Dir)
	assert.False(t, cfg.Output.Clutter)
	assert.False(t, cfg.Output.OverwriteLLMS)
	assert.Equal(t, 8, cfg.Crawler.Concurrency)
	assert.Equal(t, 3, cfg.Crawler.MaxDepth)
	assert.Equal(t, 100, cfg.Crawler.MaxPages)
	assert.True(t, cfg.Crawler.RespectRobots)
	assert.True(t, cfg.Render.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, time.Duration(0), cfg.Delay())
	assert.Equal(t, 25*time.Second, cfg.RenderTimeout())
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		v := viper.New()
		cfg, err := Load(v)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty out dir", func(c *Config) { c.Output.Dir = "" }},
		{"zero concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }},
		{"empty user agent", func(c *Config) { c.Crawler.UserAgent = "" }},
		{"negative depth", func(c *Config) { c.Crawler.MaxDepth = -1 }},
		{"zero max pages", func(c *Config) { c.Crawler.MaxPages = 0 }},
		{"negative delay", func(c *Config) { c.Crawler.DelayMs = -1 }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"negative retries", func(c *Config) { c.HTTP.Retries = -1 }},
		{"render without parallelism", func(c *Config) {
			c.Render.Enabled = true
			c.Render.MaxParallel = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DOCSMIRROR_CRAWLER_MAX_DEPTH", "7")
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawler.MaxDepth)
}
