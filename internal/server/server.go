// Package server wires the API, the worker pool and the optional Kafka and
// S3 integrations into one process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bobarin/montage/internal/api"
	"github.com/bobarin/montage/internal/config"
	"github.com/bobarin/montage/internal/db"
	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/intake"
	"github.com/bobarin/montage/internal/progress"
	"github.com/bobarin/montage/internal/queue"
	"github.com/bobarin/montage/internal/storage"
	"github.com/bobarin/montage/internal/worker"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

// Run serves until ctx is cancelled, then stops taking work and gives
// running jobs up to the shutdown timeout to finish.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return err
	}
	log.Info().Msg("connected to database")

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer q.Close()
	log.Info().Msg("connected to redis queue")

	var publisher worker.Publisher
	if cfg.S3.Enabled() {
		stor, err := storage.New(ctx, storage.Config(cfg.S3))
		if err != nil {
			return err
		}
		publisher = stor
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("publishing to S3 enabled")
	}

	hub := progress.NewHub()
	bus := progress.NewBus(256, progress.LogSink(), progress.StoreSink(database), hub)
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	go bus.Run(busCtx)
	defer bus.Close()

	eng := engine.NewFFmpeg(engine.Options{Binary: cfg.FFmpegPath, ProbeTimeout: cfg.ProbeTimeout})
	pipeline := worker.NewPipeline(eng, publisher, PipelineOptions(cfg))
	w := worker.New(q, database, pipeline, bus)

	submitter := intake.NewSubmitter(database, q)

	if cfg.Kafka.Enabled() {
		consumer, err := intake.NewConsumer(intake.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.Group,
		}, submitter)
		if err != nil {
			return fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		defer consumer.Close()
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
	}

	handler := api.NewHandler(database, submitter, hub)
	router := api.NewRouter(handler, api.RouterConfig{
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if cfg.APIKey == "" {
		log.Warn().Msg("no API_KEY set, API is unprotected (dev mode)")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Start(ctx, cfg.MaxConcurrentJobs) }()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("jobs still running after shutdown timeout, aborting them")
		w.Abort()
		<-workerDone
	}
	return nil
}

// PipelineOptions maps config onto render settings.
func PipelineOptions(cfg *config.Config) worker.PipelineOptions {
	return worker.PipelineOptions{
		TempDir:        cfg.TempDir,
		FontsDir:       cfg.FontsDir,
		Pacing:         cfg.Pacing(),
		HoldShortClips: cfg.FreezeShortClips,
		FPS:            30,
	}
}
