package profile

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound  = errors.New("profile not found")
	ErrProtected = errors.New("built-in profiles cannot be modified")
)

// Store is the single owner of the mutable profile catalog. Reads take a
// snapshot under a shared lock; writes are serialized so a reader never
// observes a partially written profile.
type Store struct {
	mu       sync.RWMutex
	builtins []Profile
	custom   map[string]Profile
}

func NewStore() *Store {
	return &Store{
		builtins: BuiltIns(),
		custom:   map[string]Profile{},
	}
}

// List returns all profiles, built-ins first in declaration order, then
// custom profiles ordered by id.
func (s *Store) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.builtins)+len(s.custom))
	out = append(out, s.builtins...)

	ids := make([]string, 0, len(s.custom))
	for id := range s.custom {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, s.custom[id])
	}
	return out
}

func (s *Store) Get(id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.builtins {
		if p.ID == id {
			return p, nil
		}
	}
	if p, ok := s.custom[id]; ok {
		return p, nil
	}
	return Profile{}, ErrNotFound
}

// Passthrough returns the built-in passthrough profile.
func (s *Store) Passthrough() Profile {
	p, _ := s.Get(PassthroughID)
	return p
}

// Upsert validates p and inserts or replaces the custom profile with the
// same id. Ids belonging to built-in profiles are rejected with
// ErrProtected. Timestamps are managed here: CreatedAt is preserved across
// updates, UpdatedAt is always refreshed.
func (s *Store) Upsert(p Profile) error {
	if err := Validate(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isBuiltIn(p.ID) {
		return ErrProtected
	}

	now := time.Now().UTC()
	p.IsBuiltIn = false
	if existing, ok := s.custom[p.ID]; ok && existing.CreatedAt != nil {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt == nil {
		p.CreatedAt = &now
	}
	p.UpdatedAt = &now
	s.custom[p.ID] = p
	return nil
}

// Delete removes the custom profile with the given id. Built-in ids fail
// with ErrProtected, absent ids with ErrNotFound. Callers that track an
// active profile id must reset it to the passthrough profile when it
// matches the deleted id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isBuiltIn(id) {
		return ErrProtected
	}
	if _, ok := s.custom[id]; !ok {
		return ErrNotFound
	}
	delete(s.custom, id)
	return nil
}

// ReplaceCustom swaps the whole custom profile set, dropping entries that
// fail validation or shadow a built-in id. Used when reloading persisted
// profiles at startup.
func (s *Store) ReplaceCustom(profiles []Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.custom = make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if s.isBuiltIn(p.ID) || Validate(p) != nil {
			continue
		}
		p.IsBuiltIn = false
		s.custom[p.ID] = p
	}
}

func (s *Store) isBuiltIn(id string) bool {
	for _, p := range s.builtins {
		if p.ID == id {
			return true
		}
	}
	return false
}
