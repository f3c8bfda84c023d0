package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type serverConfig struct {
	Address string `mapstructure:"address"`
}

type redisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type databaseConfig struct {
	URL string `mapstructure:"url"`
}

type tokenConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	TTLHours    int    `mapstructure:"ttl_hours"`
	LeewaySecs  int    `mapstructure:"leeway_seconds"`
	CookieName  string `mapstructure:"cookie_name"`
	CookieHTTPS bool   `mapstructure:"cookie_https"`
}

type throttleConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxAttempts     int  `mapstructure:"max_attempts"`
	CooldownMinutes int  `mapstructure:"cooldown_minutes"`
}

type appConfig struct {
	Server   serverConfig   `mapstructure:"server"`
	Redis    redisConfig    `mapstructure:"redis"`
	Database databaseConfig `mapstructure:"database"`
	Token    tokenConfig    `mapstructure:"token"`
	Throttle throttleConfig `mapstructure:"throttle"`
}

func loadConfig(path string) (*appConfig, error) {
	v := viper.New()

	if path == "" {
		v.SetConfigName("adminauthd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/adminauthd")
	} else {
		v.SetConfigFile(path)
	}

	v.SetDefault("server.address", ":8080")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("token.ttl_hours", 24)
	v.SetDefault("token.cookie_name", "mtp-admin-token")
	v.SetDefault("token.cookie_https", true)
	v.SetDefault("throttle.max_attempts", 5)
	v.SetDefault("throttle.cooldown_minutes", 15)

	// Environment overrides, e.g. ADMINAUTH_TOKEN_SECRET.
	v.SetEnvPrefix("ADMINAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when env vars carry the config.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c appConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.Token.Secret == "" {
		return nil, fmt.Errorf("token.secret (or ADMINAUTH_TOKEN_SECRET) is required")
	}
	if c.Database.URL == "" {
		return nil, fmt.Errorf("database.url (or ADMINAUTH_DATABASE_URL) is required")
	}

	return &c, nil
}

func (c *appConfig) tokenTTL() time.Duration {
	return time.Duration(c.Token.TTLHours) * time.Hour
}

func (c *appConfig) tokenLeeway() time.Duration {
	return time.Duration(c.Token.LeewaySecs) * time.Second
}

func (c *appConfig) cooldown() time.Duration {
	return time.Duration(c.Throttle.CooldownMinutes) * time.Minute
}
