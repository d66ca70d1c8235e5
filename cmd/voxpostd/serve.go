package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voxpost/internal/config"
	"voxpost/internal/engine"
	"voxpost/internal/httpapi"
	"voxpost/internal/metrics"
	"voxpost/internal/probe"
	"voxpost/internal/profile"
	"voxpost/internal/queue"
	"voxpost/internal/storage"
	"voxpost/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcription post-processing daemon",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("endpoint", cfg.LLM.Endpoint).
		Str("model", cfg.LLM.Model).
		Str("active_profile", cfg.LLM.ActiveProfileID).
		Bool("enabled", cfg.LLM.Enabled).
		Msg("starting voxpostd")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()

	profiles := profile.NewStore()
	var custom []profile.Profile
	if cfg.ProfilesFile != "" {
		custom, err = config.LoadProfilesFile(cfg.ProfilesFile)
		if err != nil {
			return fmt.Errorf("load profiles file: %w", err)
		}
	}
	persisted, err := store.ListCustomProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load persisted profiles: %w", err)
	}
	custom = append(custom, persisted...)
	profiles.ReplaceCustom(custom)
	log.Info().Int("custom_profiles", len(custom)).Msg("profile catalog loaded")

	m := metrics.Global()
	runtime := config.NewRuntime(cfg.Snapshot(custom))

	eng := engine.New(engine.Config{
		Store:   profiles,
		APIKey:  cfg.LLM.APIKey,
		Logger:  log.Logger,
		Metrics: m,
	})

	llmProbe := probe.New(cfg.LLM.Endpoint, &http.Client{})
	llmProbe.Timeout = cfg.LLM.ProbeTimeout

	errCh := make(chan error, 2)

	var jobQueue *queue.StreamQueue
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		jobQueue = queue.NewStreamQueue(rdb, cfg.Redis.QueueStream, cfg.Redis.QueueGroup, cfg.Worker.ConsumerName, cfg.Redis.QueueBlock)

		w := worker.New(worker.Config{
			Store:         store,
			Queue:         jobQueue,
			Engine:        eng,
			Runtime:       runtime,
			MaxJobRetries: cfg.Worker.MaxRetries,
			Logger:        log.Logger,
			Metrics:       m,
		})
		go func() {
			if err := w.Start(ctx, cfg.Worker.Concurrency); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("worker failed: %w", err)
			}
		}()
		log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker started")
	} else {
		log.Info().Msg("no redis configured, ingest runs inline")
	}

	api := httpapi.New(httpapi.Config{
		Engine:  eng,
		Store:   profiles,
		DB:      store,
		Queue:   jobQueue,
		Probe:   llmProbe,
		Runtime: runtime,
		Logger:  log.Logger,
		Metrics: m,
	})

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc(cfg.Server.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(cfg.Server.MetricsPath, promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
	return nil
}
