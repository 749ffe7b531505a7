package deskpad

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the export and server settings.
type Config struct {
	Proxy  ProxyConfig  `yaml:"proxy"`
	Export ExportConfig `yaml:"export"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ProxyConfig controls proxy rendering at upload.
type ProxyConfig struct {
	Scale   float64 `yaml:"scale"`
	Quality int     `yaml:"quality"`
}

// ExportConfig controls export sizing and encoding.
type ExportConfig struct {
	PixelBudget        int     `yaml:"pixel_budget"`
	SafetyMargin       float64 `yaml:"safety_margin"`
	FallbackMultiplier float64 `yaml:"fallback_multiplier"`
	Quality            int     `yaml:"quality"`
	Concurrency        int     `yaml:"concurrency"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	CanvasWidth   float64       `yaml:"canvas_width"`
	CanvasHeight  float64       `yaml:"canvas_height"`
	BusyTimeout   time.Duration `yaml:"busy_timeout"`
	MaxUploadSize int64         `yaml:"max_upload_size"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.Proxy.Scale <= 0 || c.Proxy.Scale > 1 {
		c.Proxy.Scale = DefaultProxyScale
	}
	if c.Proxy.Quality <= 0 || c.Proxy.Quality > 100 {
		c.Proxy.Quality = DefaultProxyQuality
	}
	if c.Export.PixelBudget <= 0 {
		c.Export.PixelBudget = DefaultPixelBudget
	}
	if c.Export.SafetyMargin < 1 {
		c.Export.SafetyMargin = DefaultSafetyMargin
	}
	if c.Export.FallbackMultiplier <= 0 {
		c.Export.FallbackMultiplier = DefaultFallbackMultiplier
	}
	if c.Export.Quality <= 0 || c.Export.Quality > 100 {
		c.Export.Quality = DefaultExportQuality
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.CanvasWidth <= 0 {
		c.Server.CanvasWidth = 1000
	}
	if c.Server.CanvasHeight <= 0 {
		c.Server.CanvasHeight = 700
	}
	if c.Server.BusyTimeout <= 0 {
		c.Server.BusyTimeout = 30 * time.Second
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 64 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// LoadConfigFile reads a YAML config file. Missing fields take their
// defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("deskpad: parse %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// RegistryOptions returns the registry options the config describes.
func (c *Config) RegistryOptions() []RegistryOption {
	return []RegistryOption{WithProxyRenderer(ProxyRenderer{
		Scale:   c.Proxy.Scale,
		Quality: c.Proxy.Quality,
	})}
}

// PlannerOptions returns the planner options the config describes.
func (c *Config) PlannerOptions() []PlannerOption {
	return []PlannerOption{
		WithPixelBudget(c.Export.PixelBudget),
		WithSafetyMargin(c.Export.SafetyMargin),
		WithFallbackMultiplier(c.Export.FallbackMultiplier),
		WithJPEGQuality(c.Export.Quality),
		WithConcurrency(c.Export.Concurrency),
	}
}
