package config

import (
	"sync"

	"voxpost/internal/profile"
)

// Snapshot is the per-call configuration surface consumed by the
// summarization engine. It is owned by the caller: the engine never
// persists or mutates it.
type Snapshot struct {
	Enabled              bool              `json:"enabled"`
	ActiveProfileID      string            `json:"active_profile_id"`
	Endpoint             string            `json:"endpoint"`
	Model                string            `json:"model"`
	APIType              APIType           `json:"api_type"`
	GlobalTimeoutSeconds int               `json:"global_timeout_seconds"`
	CustomProfiles       []profile.Profile `json:"custom_profiles,omitempty"`
}

// ResolveAPIType returns the configured protocol, detecting it from the
// endpoint when none was set explicitly.
func (s Snapshot) ResolveAPIType() APIType {
	if s.APIType != "" {
		return s.APIType
	}
	return DetectAPIType(s.Endpoint)
}

// Snapshot builds the engine-facing view of the loaded configuration.
func (c *Config) Snapshot(custom []profile.Profile) Snapshot {
	return Snapshot{
		Enabled:              c.LLM.Enabled,
		ActiveProfileID:      c.LLM.ActiveProfileID,
		Endpoint:             c.LLM.Endpoint,
		Model:                c.LLM.Model,
		APIType:              c.LLM.APIType,
		GlobalTimeoutSeconds: c.LLM.TimeoutSeconds,
		CustomProfiles:       custom,
	}
}

// Runtime holds the live snapshot for long-running processes, letting the
// HTTP API mutate the active profile selection while workers keep reading
// a consistent view.
type Runtime struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewRuntime(snap Snapshot) *Runtime {
	return &Runtime{snap: snap}
}

func (r *Runtime) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *Runtime) SetActiveProfile(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.ActiveProfileID = id
}

func (r *Runtime) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Enabled = enabled
}

func (r *Runtime) SetCustomProfiles(profiles []profile.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.CustomProfiles = profiles
}
