package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the server configuration, read from the environment and an
// optional .env file.
type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=8080"`
	DatabaseURL     string        `env:"DATABASE_URL,required=true"`
	RedisAddr       string        `env:"REDIS_ADDR,default=localhost:6379"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	Timezone        string        `env:"TIMEZONE,default=UTC"`
	CreateSchema    bool          `env:"CREATE_SCHEMA,default=false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Addr is the address the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Level parses LOG_LEVEL.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Location loads TIMEZONE, which message dates are grouped in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}
