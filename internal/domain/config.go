package domain

import "time"

type Config struct {
	DBPath            string        `toml:"db_path" mapstructure:"db_path"`
	PoliceAPIURL      string        `toml:"police_api_url" mapstructure:"police_api_url"`
	PostcodesAPIURL   string        `toml:"postcodes_api_url" mapstructure:"postcodes_api_url"`
	RateLimitInterval time.Duration `toml:"rate_limit_interval" mapstructure:"rate_limit_interval"`
	HTTPTimeout       time.Duration `toml:"http_timeout" mapstructure:"http_timeout"`
	SearchRadius      float64       `toml:"search_radius" mapstructure:"search_radius"`
	GeocodeCacheSize  int           `toml:"geocode_cache_size" mapstructure:"geocode_cache_size"`
	StrictMonths      bool          `toml:"strict_months" mapstructure:"strict_months"`
	HTTPAddr          string        `toml:"http_addr" mapstructure:"http_addr"`
	DiscordWebhookURL string        `toml:"discord_webhook_url" mapstructure:"discord_webhook_url"`
	LogLevel          string        `toml:"log_level" mapstructure:"log_level"`
}
