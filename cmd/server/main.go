package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kojihq/relay/internal/config"
	"github.com/kojihq/relay/internal/relay"
	"github.com/kojihq/relay/internal/store"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required")
	}

	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgStore.Close()
	logger.Info().Msg("connected to PostgreSQL")

	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	rly := relay.New(cfg, pgStore, redisStore, logger)
	rly.Start()

	srv := relay.CreateServer(cfg.Port, rly.Routes())

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting socket relay")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down...")

	if err := relay.ShutdownServer(srv, 15*time.Second, logger); err != nil {
		logger.Error().Err(err).Msg("forced http shutdown")
	}
	if err := rly.Shutdown(15 * time.Second); err != nil {
		logger.Error().Err(err).Msg("forced relay shutdown")
	}

	logger.Info().Msg("server stopped")
}
