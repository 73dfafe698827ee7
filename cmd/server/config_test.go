package main

import (
	"log/slog"
	"testing"

	"github.com/Netflix/go-env"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("PORT", "9090")

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		t.Fatalf("UnmarshalFromEnviron() error = %v", err)
	}
	if got := cfg.Addr(); got != "0.0.0.0:9090" {
		t.Errorf("Addr() = %q, want 0.0.0.0:9090", got)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want localhost:6379", cfg.RedisAddr)
	}
	if level, err := cfg.Level(); err != nil || level != slog.LevelInfo {
		t.Errorf("Level() = %v, %v; want INFO", level, err)
	}
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Errorf("Location() = %v, %v; want UTC", loc, err)
	}
}

func TestConfig_Invalid(t *testing.T) {
	cfg := Config{LogLevel: "loud", Timezone: "Mars/Olympus"}
	if _, err := cfg.Level(); err == nil {
		t.Error("Level() expected an error for an unknown level")
	}
	if _, err := cfg.Location(); err == nil {
		t.Error("Location() expected an error for an unknown zone")
	}
}
