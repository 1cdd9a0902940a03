package checkpoint

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/oseg/krawler/internal/hosting"
)

// MemoryStore keeps checkpoints in memory. It backs tests and ad-hoc runs
// that must not leave state behind.
type MemoryStore struct {
	mu     sync.Mutex
	states map[hosting.Platform][]byte
}

// NewMemoryStore builds an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[hosting.Platform][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, platform hosting.Platform) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.states[platform]
	if !ok {
		return nil, nil
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Save implements Store. The state is serialized on write so callers keep no
// aliases into stored data, matching the durable backends.
func (s *MemoryStore) Save(_ context.Context, platform hosting.Platform, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[platform] = data
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, platform hosting.Platform) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[platform]
	delete(s.states, platform)
	return ok, nil
}
