package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/edgeee/dailychallenge/api"
	"github.com/edgeee/dailychallenge/api/validator"
	"github.com/edgeee/dailychallenge/postgres"
	"github.com/edgeee/dailychallenge/redis"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine, the environment may already be set.
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	level, err := config.Level()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	loc, err := config.Location()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() {
		logger.Info("Closing database")
		_ = db.Close()
	}()

	if config.CreateSchema {
		if err := db.CreateSchema(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		logger.Info("Schema ready")
	}

	cache, err := redis.Connect(ctx, config.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		logger.Info("Closing cache")
		_ = cache.Close()
	}()

	srv := &http.Server{
		Addr: config.Addr(),
		Handler: &api.API{
			Logger:   logger,
			DB:       db,
			Cache:    cache,
			Val:      validator.New(),
			Location: loc,
		},
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", srv.Addr, "timezone", loc.String())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
