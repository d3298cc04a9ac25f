// Package config loads application configuration from built-in defaults,
// an optional YAML file, and PASSAGE_-prefixed environment variables, in
// that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/saltline/passage/internal/lib/mapsurface"
)

// Config is the complete application configuration.
type Config struct {
	Map     mapsurface.Config `koanf:"map"`
	Viz     VizConfig         `koanf:"viz"`
	Planner PlannerConfig     `koanf:"planner"`
	Trips   TripsConfig       `koanf:"trips"`
	Cache   CacheConfig       `koanf:"cache"`
}

// VizConfig tunes route rendering and camera behavior.
type VizConfig struct {
	MaxZoom        float64            `koanf:"max_zoom"`
	Padding        mapsurface.Padding `koanf:"padding"`
	RenderAttempts int                `koanf:"render_attempts"`
	RetryBackoff   time.Duration      `koanf:"retry_backoff"`
}

// PlannerConfig holds itinerary generation settings.
type PlannerConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// TripsConfig holds trip persistence settings.
type TripsConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// CacheConfig holds cache housekeeping settings.
type CacheConfig struct {
	CleanupInterval  time.Duration `koanf:"cleanup_interval"`
	ExtendedPortsTTL time.Duration `koanf:"extended_ports_ttl"`
}

const envPrefix = "PASSAGE_"

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"map.style_url":            "mapbox://styles/mapbox/outdoors-v12",
		"viz.max_zoom":             12.0,
		"viz.padding.top":          114.0,
		"viz.padding.bottom":       50.0,
		"viz.padding.left":         450.0,
		"viz.padding.right":        50.0,
		"viz.render_attempts":      3,
		"viz.retry_backoff":        "200ms",
		"planner.model":            "gpt-4o",
		"trips.timeout":            "30s",
		"cache.cleanup_interval":   "10m",
		"cache.extended_ports_ttl": "24h",
	}
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return cfg
}

// Load builds configuration from defaults, the YAML file at path when one
// is given, then environment variables. Environment keys nest with double
// underscores: PASSAGE_PLANNER__API_KEY sets planner.api_key.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load default config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
