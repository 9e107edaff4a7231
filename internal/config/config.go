package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the recognized runtime options. STORE_PATH is the only
// required key; everything else carries a default.
type Config struct {
	StorePath       string        `mapstructure:"STORE_PATH"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	BackupRetention int           `mapstructure:"BACKUP_RETENTION"`
	SeedOnEmpty     bool          `mapstructure:"SEED_ON_EMPTY"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	RateLimitRPS    int           `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
}

// Load reads configuration from the environment, with an optional .env file
// for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SESSION_TTL", "720h") // 30 days
	v.SetDefault("BACKUP_RETENTION", 5)
	v.SetDefault("SEED_ON_EMPTY", true)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOG_LEVEL", "info")

	for _, key := range []string{
		"STORE_PATH", "SESSION_TTL", "BACKUP_RETENTION", "SEED_ON_EMPTY",
		"HTTP_ADDR", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL",
	} {
		_ = v.BindEnv(key)
	}

	// Missing .env is fine; env vars alone are a valid configuration.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and value sanity.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.BackupRetention < 0 {
		return fmt.Errorf("BACKUP_RETENTION must not be negative")
	}
	return nil
}
