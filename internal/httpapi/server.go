// Package httpapi exposes the daemon surface: transcription ingest,
// profile management, model listing and the connectivity check.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"voxpost/internal/config"
	"voxpost/internal/engine"
	"voxpost/internal/metrics"
	"voxpost/internal/probe"
	"voxpost/internal/profile"
	"voxpost/internal/queue"
	"voxpost/internal/storage"
)

type Server struct {
	engine  *engine.Engine
	store   *profile.Store
	db      *storage.Store
	queue   *queue.StreamQueue
	probe   *probe.Probe
	runtime *config.Runtime
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type Config struct {
	Engine  *engine.Engine
	Store   *profile.Store
	DB      *storage.Store
	Queue   *queue.StreamQueue
	Probe   *probe.Probe
	Runtime *config.Runtime
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Server{
		engine:  cfg.Engine,
		store:   cfg.Store,
		db:      cfg.DB,
		queue:   cfg.Queue,
		probe:   cfg.Probe,
		runtime: cfg.Runtime,
		logger:  cfg.Logger,
		metrics: m,
	}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/transcriptions", s.handleIngest)
	mux.HandleFunc("GET /v1/transcriptions", s.handleHistory)
	mux.HandleFunc("GET /v1/profiles", s.handleListProfiles)
	mux.HandleFunc("PUT /v1/profiles/{id}", s.handleUpsertProfile)
	mux.HandleFunc("DELETE /v1/profiles/{id}", s.handleDeleteProfile)
	mux.HandleFunc("PUT /v1/settings/active-profile", s.handleSetActiveProfile)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
}

type ingestRequest struct {
	Text      string `json:"text"`
	ProfileID string `json:"profile_id,omitempty"`
	Sync      bool   `json:"sync,omitempty"`
}

type ingestResponse struct {
	Text      string `json:"text,omitempty"`
	Processed bool   `json:"processed"`
	JobID     string `json:"job_id,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	snap := s.runtime.Snapshot()
	profileID := req.ProfileID
	if profileID == "" {
		profileID = snap.ActiveProfileID
	}

	if req.Sync || s.queue == nil {
		outcome := s.engine.Process(r.Context(), req.Text, profileID, snap)
		writeJSON(w, http.StatusOK, ingestResponse{
			Text:      outcome.Text,
			Processed: outcome.ProcessedText != nil,
		})
		return
	}

	jobID, err := s.queue.Enqueue(r.Context(), queue.TranscriptJob{
		Text:      req.Text,
		ProfileID: req.ProfileID,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to enqueue transcription")
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	s.metrics.EnqueuedJobs.Inc()
	writeJSON(w, http.StatusAccepted, ingestResponse{JobID: jobID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, []storage.Transcription{})
		return
	}
	records, err := s.db.RecentTranscriptions(r.Context(), 50)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	type historyEntry struct {
		ID            int64   `json:"id"`
		RawText       string  `json:"raw_text"`
		ProcessedText *string `json:"processed_text,omitempty"`
		ProfileID     string  `json:"profile_id"`
		Model         string  `json:"model"`
	}
	out := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, historyEntry{
			ID:            rec.ID,
			RawText:       rec.RawText,
			ProcessedText: rec.ProcessedText,
			ProfileID:     rec.ProfileID,
			Model:         rec.Model,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	p.ID = r.PathValue("id")

	if err := s.store.Upsert(p); err != nil {
		var verr *profile.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": verr.Error(),
				"field": verr.Field,
			})
		case errors.Is(err, profile.ErrProtected):
			writeError(w, http.StatusForbidden, "built-in profiles cannot be modified")
		default:
			writeError(w, http.StatusInternalServerError, "failed to save profile")
		}
		return
	}

	saved, _ := s.store.Get(p.ID)
	if s.db != nil {
		if err := s.db.UpsertCustomProfile(r.Context(), saved); err != nil {
			s.logger.Error().Err(err).Str("profile_id", p.ID).Msg("failed to persist profile")
		}
	}
	s.syncRuntimeProfiles(r)
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.Delete(id); err != nil {
		switch {
		case errors.Is(err, profile.ErrProtected):
			writeError(w, http.StatusForbidden, "built-in profiles cannot be deleted")
		case errors.Is(err, profile.ErrNotFound):
			writeError(w, http.StatusNotFound, "profile not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete profile")
		}
		return
	}

	// Deleting the active profile resets the selection to passthrough.
	if s.runtime.Snapshot().ActiveProfileID == id {
		s.runtime.SetActiveProfile(profile.PassthroughID)
	}
	if s.db != nil {
		if err := s.db.DeleteCustomProfile(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().Err(err).Str("profile_id", id).Msg("failed to delete persisted profile")
		}
	}
	s.syncRuntimeProfiles(r)
	w.WriteHeader(http.StatusNoContent)
}

type activeProfileRequest struct {
	ProfileID string `json:"profile_id"`
}

func (s *Server) handleSetActiveProfile(w http.ResponseWriter, r *http.Request) {
	var req activeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if _, err := s.store.Get(req.ProfileID); err != nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	s.runtime.SetActiveProfile(req.ProfileID)
	writeJSON(w, http.StatusOK, map[string]string{"active_profile_id": req.ProfileID})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := s.probe.ListModels(r.Context())
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	available := s.probe.CheckAvailability(r.Context())
	status := http.StatusOK
	if !available {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"available": available})
}

// syncRuntimeProfiles mirrors the store's custom profiles into the live
// snapshot so concurrent Process calls see the mutation.
func (s *Server) syncRuntimeProfiles(_ *http.Request) {
	var custom []profile.Profile
	for _, p := range s.store.List() {
		if !p.IsBuiltIn {
			custom = append(custom, p)
		}
	}
	s.runtime.SetCustomProfiles(custom)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
