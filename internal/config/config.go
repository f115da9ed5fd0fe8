package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/varoOP/crimedb/internal/domain"
)

// SetDefaults registers the default value of every config key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "./crimedb.db")
	v.SetDefault("police_api_url", "https://data.police.uk/api")
	v.SetDefault("postcodes_api_url", "https://api.postcodes.io")
	v.SetDefault("rate_limit_interval", 100*time.Millisecond)
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("search_radius", domain.DefaultSearchRadius)
	v.SetDefault("geocode_cache_size", 1000)
	v.SetDefault("strict_months", false)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("discord_webhook_url", "")
	v.SetDefault("log_level", "info")
}

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (CRIMEDB_*)
// 3. Defaults
func Load() (*domain.Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates configuration from v.
func LoadFrom(v *viper.Viper) (*domain.Config, error) {
	SetDefaults(v)

	cfg := &domain.Config{
		DBPath:            v.GetString("db_path"),
		PoliceAPIURL:      v.GetString("police_api_url"),
		PostcodesAPIURL:   v.GetString("postcodes_api_url"),
		RateLimitInterval: v.GetDuration("rate_limit_interval"),
		HTTPTimeout:       v.GetDuration("http_timeout"),
		SearchRadius:      v.GetFloat64("search_radius"),
		GeocodeCacheSize:  v.GetInt("geocode_cache_size"),
		StrictMonths:      v.GetBool("strict_months"),
		HTTPAddr:          v.GetString("http_addr"),
		DiscordWebhookURL: v.GetString("discord_webhook_url"),
		LogLevel:          v.GetString("log_level"),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required (set via config.yaml or CRIMEDB_DB_PATH environment variable)")
	}
	if cfg.RateLimitInterval <= 0 {
		return nil, fmt.Errorf("rate_limit_interval must be positive, got %s", cfg.RateLimitInterval)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("http_timeout must be positive, got %s", cfg.HTTPTimeout)
	}
	if cfg.SearchRadius <= 0 {
		return nil, fmt.Errorf("search_radius must be positive, got %v", cfg.SearchRadius)
	}
	if cfg.GeocodeCacheSize <= 0 {
		return nil, fmt.Errorf("geocode_cache_size must be positive, got %d", cfg.GeocodeCacheSize)
	}
	for key, raw := range map[string]string{"police_api_url": cfg.PoliceAPIURL, "postcodes_api_url": cfg.PostcodesAPIURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}

	return cfg, nil
}
