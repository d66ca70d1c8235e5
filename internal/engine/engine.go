// Package engine orchestrates transcription post-processing: profile
// resolution, prompt formatting, backend dispatch and the fallback
// contract. Process never fails outward; every backend failure collapses
// into returning the caller's raw text unchanged.
package engine

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voxpost/internal/backends"
	"voxpost/internal/backends/registry"
	"voxpost/internal/config"
	"voxpost/internal/metrics"
	"voxpost/internal/profile"
)

const (
	defaultTemperature = 0.3
	defaultTopP        = 0.9
	defaultMaxTokens   = 1000
	defaultTimeout     = 10 * time.Second
)

type Engine struct {
	store      *profile.Store
	httpClient *http.Client
	apiKey     string
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

type Config struct {
	Store      *profile.Store
	HTTPClient *http.Client
	APIKey     string
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

func New(cfg Config) *Engine {
	if cfg.Store == nil {
		cfg.Store = profile.NewStore()
	}
	if cfg.HTTPClient == nil {
		// No client-level timeout: each call is bounded by its effective
		// per-call timeout via context.
		cfg.HTTPClient = &http.Client{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Engine{
		store:      cfg.Store,
		httpClient: cfg.HTTPClient,
		apiKey:     cfg.APIKey,
		logger:     cfg.Logger,
		metrics:    m,
	}
}

func (e *Engine) Store() *profile.Store {
	return e.store
}

// Outcome is the result of one Process call. Text always carries the
// final downstream text. ProcessedText is set only when the model actually
// rewrote the input: the feature was enabled, the profile was not
// passthrough, and the call succeeded. That is exactly the value history
// persistence stores next to the raw text.
type Outcome struct {
	Text          string
	ProcessedText *string
}

// Process rewrites rawText under the given profile and configuration
// snapshot. It resolves, it never fails: on any error the raw text comes
// back unchanged.
func (e *Engine) Process(ctx context.Context, rawText, profileID string, snap config.Snapshot) Outcome {
	return e.process(ctx, rawText, profileID, snap, nil)
}

// ProcessStreaming behaves like Process and additionally forwards each
// received fragment to progress as it arrives. Delivery is best-effort:
// when the channel is not ready the fragment is dropped rather than
// stalling the read loop.
func (e *Engine) ProcessStreaming(ctx context.Context, rawText, profileID string, snap config.Snapshot, progress chan<- string) Outcome {
	return e.process(ctx, rawText, profileID, snap, progress)
}

func (e *Engine) process(ctx context.Context, rawText, profileID string, snap config.Snapshot, progress chan<- string) Outcome {
	// Empty input short-circuits before profile lookup, for every profile.
	if rawText == "" {
		return Outcome{Text: rawText}
	}

	p := e.resolveProfile(profileID, snap)
	if !snap.Enabled || p.IsPassthrough() {
		return Outcome{Text: rawText}
	}

	timeout := defaultTimeout
	if snap.GlobalTimeoutSeconds > 0 {
		timeout = time.Duration(snap.GlobalTimeoutSeconds) * time.Second
	}
	if p.TimeoutSeconds != nil && *p.TimeoutSeconds > 0 {
		timeout = time.Duration(*p.TimeoutSeconds) * time.Second
	}
	streaming := p.Streaming != nil && *p.Streaming
	temperature := defaultTemperature
	if p.Temperature != nil {
		temperature = *p.Temperature
	}
	topP := defaultTopP
	if p.TopP != nil {
		topP = *p.TopP
	}

	backend, err := registry.Build(registry.BuildOptions{
		APIType:    snap.ResolveAPIType(),
		Endpoint:   snap.Endpoint,
		APIKey:     e.apiKey,
		HTTPClient: e.httpClient,
		Logger:     e.logger,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("profile_id", p.ID).Str("endpoint", snap.Endpoint).Msg("no backend for configured api type, returning raw text")
		e.metrics.Fallbacks.Inc()
		return Outcome{Text: rawText}
	}

	var onFragment func(string)
	if progress != nil {
		onFragment = func(fragment string) {
			select {
			case progress <- fragment:
			default:
			}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := backend.Call(callCtx, backends.Request{
		Model:        snap.Model,
		SystemPrompt: p.SystemPrompt,
		UserPrompt:   p.FormatPrompt(rawText),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    defaultMaxTokens,
		Stream:       streaming,
		OnFragment:   onFragment,
	})
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Warn().
			Str("profile_id", p.ID).
			Str("endpoint", snap.Endpoint).
			Dur("elapsed", elapsed).
			Str("failure", string(backends.KindOf(err))).
			Err(err).
			Msg("summarization failed, returning raw text")
		e.metrics.Fallbacks.Inc()
		return Outcome{Text: rawText}
	}

	processed := strings.TrimSpace(text)
	if processed == "" {
		e.logger.Warn().
			Str("profile_id", p.ID).
			Str("endpoint", snap.Endpoint).
			Dur("elapsed", elapsed).
			Str("failure", string(backends.FailProtocol)).
			Msg("backend returned empty text, returning raw text")
		e.metrics.Fallbacks.Inc()
		return Outcome{Text: rawText}
	}

	e.logger.Debug().
		Str("profile_id", p.ID).
		Dur("elapsed", elapsed).
		Int("raw_chars", len(rawText)).
		Int("processed_chars", len(processed)).
		Msg("summarization complete")
	e.metrics.Processed.Inc()
	e.metrics.ProcessDuration.Observe(elapsed.Seconds())
	return Outcome{Text: processed, ProcessedText: &processed}
}

// resolveProfile looks the id up in the store, then in the snapshot's
// custom profiles, and falls back to passthrough when it is missing
// everywhere.
func (e *Engine) resolveProfile(profileID string, snap config.Snapshot) profile.Profile {
	if p, err := e.store.Get(profileID); err == nil {
		return p
	}
	for _, p := range snap.CustomProfiles {
		if p.ID == profileID {
			return p
		}
	}
	e.logger.Debug().Str("profile_id", profileID).Msg("profile not found, using passthrough")
	return e.store.Passthrough()
}
