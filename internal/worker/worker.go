// Package worker consumes transcription jobs from the queue, runs them
// through the engine and persists the history record. The engine never
// fails, so a job only retries when the history write itself fails.
package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voxpost/internal/config"
	"voxpost/internal/engine"
	"voxpost/internal/metrics"
	"voxpost/internal/queue"
	"voxpost/internal/storage"
)

type Worker struct {
	store         *storage.Store
	queue         *queue.StreamQueue
	engine        *engine.Engine
	runtime       *config.Runtime
	maxJobRetries int
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

type Config struct {
	Store         *storage.Store
	Queue         *queue.StreamQueue
	Engine        *engine.Engine
	Runtime       *config.Runtime
	MaxJobRetries int
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

func New(cfg Config) *Worker {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.MaxJobRetries < 0 {
		cfg.MaxJobRetries = 0
	}
	return &Worker{
		store:         cfg.Store,
		queue:         cfg.Queue,
		engine:        cfg.Engine,
		runtime:       cfg.Runtime,
		maxJobRetries: cfg.MaxJobRetries,
		logger:        cfg.Logger,
		metrics:       m,
	}
}

func (w *Worker) Start(ctx context.Context, concurrency int) error {
	if err := w.queue.EnsureGroup(ctx); err != nil {
		return err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	wg := sync.WaitGroup{}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.consumeLoop(ctx, slot)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (w *Worker) consumeLoop(ctx context.Context, slot int) {
	log := w.logger.With().Int("slot", slot).Logger()
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		messages, err := w.queue.Read(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("failed to read queue")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, msg := range messages {
			err := w.processJob(ctx, msg.Job)
			if err == nil {
				w.metrics.ProcessedJobs.Inc()
				if ackErr := w.queue.Ack(ctx, msg.ID); ackErr != nil {
					log.Error().Err(ackErr).Str("msg_id", msg.ID).Msg("failed to ack message")
				}
				continue
			}

			w.metrics.FailedJobs.Inc()
			log.Error().Err(err).Str("job_id", msg.Job.JobID).Int("attempt", msg.Job.Attempts).Msg("job failed")

			if msg.Job.Attempts < w.maxJobRetries {
				msg.Job.Attempts++
				if _, enqueueErr := w.queue.Enqueue(ctx, msg.Job); enqueueErr != nil {
					log.Error().Err(enqueueErr).Str("job_id", msg.Job.JobID).Msg("failed to re-enqueue failed job")
					continue
				}
			}
			if ackErr := w.queue.Ack(ctx, msg.ID); ackErr != nil {
				log.Error().Err(ackErr).Str("msg_id", msg.ID).Msg("failed to ack failed message")
			}
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job queue.TranscriptJob) error {
	snap := w.runtime.Snapshot()

	profileID := strings.TrimSpace(job.ProfileID)
	if profileID == "" {
		profileID = snap.ActiveProfileID
	}

	outcome := w.engine.Process(ctx, job.Text, profileID, snap)

	if w.store == nil {
		return nil
	}
	return w.store.InsertTranscription(ctx, storage.Transcription{
		RawText:       job.Text,
		ProcessedText: outcome.ProcessedText,
		ProfileID:     profileID,
		Model:         snap.Model,
	})
}
