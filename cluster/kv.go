package cluster

import (
	"sync"
)

// kvEntry is a single replicated registry entry. Removed keys are kept as
// tombstones so that a removal wins over an older put during anti-entropy
// merges.
type kvEntry struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Version uint64 `json:"version"`
	Deleted bool   `json:"deleted,omitempty"`
}

// kvState is the full registry snapshot exchanged during push/pull.
type kvState struct {
	Entries []kvEntry `json:"entries"`
}

// kvStore is the local replica of the registry. Local mutations bump the
// per-key version and are handed to the broadcast function; remote entries
// are merged in through applyRemote.
type kvStore struct {
	mut       sync.RWMutex
	entries   map[string]kvEntry
	broadcast func(e kvEntry)
}

func newKVStore() *kvStore {
	return &kvStore{
		entries:   make(map[string]kvEntry),
		broadcast: func(kvEntry) {},
	}
}

func (s *kvStore) Get(key string) ([]byte, bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	e, ok := s.entries[key]
	if !ok || e.Deleted {
		return nil, false
	}

	return e.Value, true
}

func (s *kvStore) Contains(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *kvStore) Put(key string, value []byte) {
	s.mut.Lock()
	e := kvEntry{
		Key:     key,
		Value:   value,
		Version: s.entries[key].Version + 1,
	}
	s.entries[key] = e
	s.mut.Unlock()

	s.broadcast(e)
}

// Remove tombstones the entry. Removing an absent key is a no-op.
func (s *kvStore) Remove(key string) {
	s.mut.Lock()

	cur, ok := s.entries[key]
	if !ok || cur.Deleted {
		s.mut.Unlock()
		return
	}

	e := kvEntry{
		Key:     key,
		Version: cur.Version + 1,
		Deleted: true,
	}
	s.entries[key] = e
	s.mut.Unlock()

	s.broadcast(e)
}

func (s *kvStore) Entries() map[string][]byte {
	s.mut.RLock()
	defer s.mut.RUnlock()

	out := make(map[string][]byte, len(s.entries))

	for k, e := range s.entries {
		if e.Deleted {
			continue
		}

		out[k] = e.Value
	}

	return out
}

// applyRemote merges an entry received from another node and reports
// whether it changed the local replica. Higher versions win; on a version
// tie a tombstone wins over a value, so removals are not resurrected by
// concurrent merges.
func (s *kvStore) applyRemote(e kvEntry) bool {
	s.mut.Lock()
	defer s.mut.Unlock()

	cur, ok := s.entries[e.Key]
	if ok {
		if cur.Version > e.Version {
			return false
		}

		if cur.Version == e.Version && (cur.Deleted || !e.Deleted) {
			return false
		}
	}

	s.entries[e.Key] = e

	return true
}

// snapshot captures the full replica, tombstones included.
func (s *kvStore) snapshot() kvState {
	s.mut.RLock()
	defer s.mut.RUnlock()

	state := kvState{Entries: make([]kvEntry, 0, len(s.entries))}
	for _, e := range s.entries {
		state.Entries = append(state.Entries, e)
	}

	return state
}

func (s *kvStore) merge(state kvState) {
	for _, e := range state.Entries {
		s.applyRemote(e)
	}
}
