package store

import (
	"sync"

	"shogi-server/internal/room"
)

// MemStore is an in-memory room.Persister: encoded room bytes behind a
// sync.RWMutex. Tests use it to exercise Manager without touching the
// filesystem.
type MemStore struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rooms: map[string][]byte{}}
}

// Save implements room.Persister by round-tripping through JSON, the same
// encoding BoltStore uses, so tests exercise the real marshaling path.
func (m *MemStore) Save(r *room.Room) error {
	blob, err := jsonMarshal(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = blob
	return nil
}

// Load returns the last snapshot saved for id.
func (m *MemStore) Load(id string) (*room.Room, bool, error) {
	m.mu.RLock()
	blob, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	r, err := jsonUnmarshalRoom(blob)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Delete implements room.Persister.
func (m *MemStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}
