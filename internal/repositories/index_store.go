package repositories

import "sync"

// IndexStore maps session IDs to their current vector index. Indexes are
// process-local and never serialized; a reprocessed document replaces the
// whole index in one swap.
type IndexStore struct {
	mu      sync.RWMutex
	indexes map[string]*VectorIndex
}

// NewIndexStore creates an empty index store
func NewIndexStore() *IndexStore {
	return &IndexStore{
		indexes: make(map[string]*VectorIndex),
	}
}

// Set installs the index for a session, replacing any previous one
func (s *IndexStore) Set(sessionID string, index *VectorIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[sessionID] = index
}

// Get returns the session's index, or nil when none has been built
func (s *IndexStore) Get(sessionID string) *VectorIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[sessionID]
}

// Delete drops the session's index if present
func (s *IndexStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, sessionID)
}
