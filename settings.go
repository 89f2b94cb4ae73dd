package lumen

import (
	"encoding/json"
	"sync"

	"github.com/zeebo/blake3"
)

// Settings is the key→value snapshot the host delivers with every query,
// plus the plugin's own pending changes. Reads see the latest host snapshot
// merged with unsent local writes; writes are queued and shipped back to the
// host in the next query response.
type Settings struct {
	mu       sync.RWMutex
	values   map[string]any
	changes  map[string]any
	lastHash [32]byte
	noUpdate bool
}

func newSettings(noUpdate bool) *Settings {
	return &Settings{
		values:   make(map[string]any),
		changes:  make(map[string]any),
		noUpdate: noUpdate,
	}
}

// Get returns the value for key and whether it is set.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.changes[key]; ok {
		return v, true
	}
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value for key coerced to a string, or fallback.
func (s *Settings) GetString(key, fallback string) string {
	v, ok := s.Get(key)
	if !ok {
		return fallback
	}
	str, ok := v.(string)
	if !ok {
		return fallback
	}
	return str
}

// Set records a change to be shipped to the host with the next query
// response.
func (s *Settings) Set(key string, value any) {
	s.mu.Lock()
	s.changes[key] = value
	s.values[key] = value
	s.mu.Unlock()
}

// update replaces the snapshot with a host-delivered payload. The raw bytes
// are hashed so an identical snapshot is a no-op; a plugin configured with
// no-update keeps its local view regardless.
func (s *Settings) update(raw json.RawMessage) error {
	if s.noUpdate || len(raw) == 0 {
		return nil
	}

	hash := blake3.Sum256(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash {
		return nil
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return err
	}
	if values == nil {
		values = make(map[string]any)
	}
	s.values = values
	s.lastHash = hash
	return nil
}

// popChanges drains the pending change set for inclusion in a response.
func (s *Settings) popChanges() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.changes) == 0 {
		return map[string]any{}
	}
	out := s.changes
	s.changes = make(map[string]any)
	return out
}
