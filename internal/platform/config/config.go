// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded once at startup. It is passed
// by value into constructors and never mutated afterwards.
type Config struct {
	// Addr is the address the HTTP server listens on (e.g. :8080).
	Addr string `mapstructure:"ICEGRID_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTSigningKey signs access and refresh tokens (HS256).
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`
	// AccessTokenTTL is the access token lifetime (e.g. "30m").
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime and therefore the session
	// lifetime (e.g. "720h").
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// LoginRatePerMinute bounds login attempts per client IP.
	LoginRatePerMinute int `mapstructure:"LOGIN_RATE_PER_MINUTE"`

	// WeatherBaseURL is the forecast provider endpoint polled by the worker.
	WeatherBaseURL string `mapstructure:"WEATHER_BASE_URL"`
	// WeatherFetchInterval is the fixed polling interval (e.g. "1h").
	WeatherFetchInterval time.Duration `mapstructure:"WEATHER_FETCH_INTERVAL"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env.
func Load() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("ICEGRID_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("JWT_SIGNING_KEY", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("WEATHER_BASE_URL", "https://api.open-meteo.com")
	v.SetDefault("WEATHER_FETCH_INTERVAL", "1h")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.JWTSigningKey == "" {
		if cfg.Env == "production" {
			return Config{}, errors.New("config: JWT_SIGNING_KEY must be set in production")
		}
		cfg.JWTSigningKey = devSigningKey
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return Config{}, errors.New("config: token TTLs must be positive")
	}
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return Config{}, fmt.Errorf("config: ACCESS_TOKEN_TTL %s must be shorter than REFRESH_TOKEN_TTL %s",
			cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("config: BCRYPT_COST %d out of range", cfg.BcryptCost)
	}
	if cfg.WeatherFetchInterval < time.Minute {
		return Config{}, errors.New("config: WEATHER_FETCH_INTERVAL must be at least 1m")
	}

	return cfg, nil
}
