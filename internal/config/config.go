// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"carbontwin/mapsurface/internal/tiles"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	DatabaseURL string

	RedisAddr    string
	RedisChannel string

	TileURLTemplate string
	TileTimeout     time.Duration
	TileRetries     int

	FeedInterval time.Duration

	SeedSampleZones    bool
	FallbackBackground string
	StaticTileURL      string

	CatalogPath string
}

// Load reads the environment. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, which lets tests supply their own environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	var err error
	cfg := &Config{
		HTTPAddr:        getenvDefault(getenv, "HTTP_ADDR", ":8081"),
		LogLevel:        getenvDefault(getenv, "LOG_LEVEL", "info"),
		LogFormat:       getenvDefault(getenv, "LOG_FORMAT", "json"),
		DatabaseURL:     strings.TrimSpace(getenv("DATABASE_URL")),
		RedisAddr:       strings.TrimSpace(getenv("REDIS_ADDR")),
		RedisChannel:    getenvDefault(getenv, "REDIS_CHANNEL", "mapsurface.events"),
		TileURLTemplate: getenvDefault(getenv, "TILE_URL_TEMPLATE", tiles.DefaultURLTemplate),
		StaticTileURL:   strings.TrimSpace(getenv("STATIC_TILE_URL")),
		CatalogPath:     strings.TrimSpace(getenv("CATALOG_PATH")),
	}

	if cfg.TileTimeout, err = getenvDuration(getenv, "TILE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FeedInterval, err = getenvDuration(getenv, "FEED_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.TileRetries, err = getenvInt(getenv, "TILE_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.SeedSampleZones, err = getenvBool(getenv, "SEED_SAMPLE_ZONES", true); err != nil {
		return nil, err
	}

	cfg.FallbackBackground = strings.ToLower(getenvDefault(getenv, "FALLBACK_BACKGROUND", "grid"))
	switch cfg.FallbackBackground {
	case "grid", "static":
	default:
		return nil, fmt.Errorf("invalid FALLBACK_BACKGROUND %q: want grid or static", cfg.FallbackBackground)
	}

	return cfg, nil
}

func getenvDefault(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(getenv func(string) string, key string, def int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getenvBool(getenv func(string) string, key string, def bool) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
