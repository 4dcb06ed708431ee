package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobarin/montage/internal/server"
	"github.com/bobarin/montage/internal/config"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(os.Getenv("MONTAGE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	log.Info().Msg("starting montage API")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server exited")
}

