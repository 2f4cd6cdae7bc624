// Package store implements the persistence adapter: a
// snapshot-on-every-mutation key-value store, reload at startup, and the
// Delete that room.Manager's hourly GC sweep uses to drop idle rooms.
//
// Two adapters satisfy room.Persister: BoltStore, an embedded
// go.etcd.io/bbolt database (one bucket "rooms", one JSON value per room,
// db.Update giving a single-writer-thread crash-safety mode, since bbolt
// already serializes its own writers without any extra locking on our
// side); and MemStore, an in-memory map guarded by a sync.RWMutex, kept
// as the fallback tests use to avoid file I/O.
package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"shogi-server/internal/room"
)

func jsonMarshal(r *room.Room) ([]byte, error) { return json.Marshal(r) }

func jsonUnmarshalRoom(blob []byte) (*room.Room, error) {
	r := &room.Room{}
	if err := json.Unmarshal(blob, r); err != nil {
		return nil, err
	}
	return r, nil
}

const roomsBucket = "rooms"

// BoltStore persists rooms into a single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if absent) the bbolt file at path and ensures
// the rooms bucket exists.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(roomsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying file handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Save implements room.Persister. r.UpdatedAt is stamped by
// Manager.dispatch just before this call, so the blob's own timestamp is
// always the snapshot's true age, with no separate envelope needed.
func (s *BoltStore) Save(r *room.Room) error {
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal room %s: %w", r.ID, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(roomsBucket)).Put([]byte(r.ID), blob)
	})
}

// Load reads one room back, for reconnect after a crash/restart. The
// returned Room has no clock attached; until AttachClock is called (and
// Manager.Adopt does call it) no time is kept for its games.
func (s *BoltStore) Load(id string) (*room.Room, bool, error) {
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(roomsBucket)).Get([]byte(id))
		if v != nil {
			blob = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if blob == nil {
		return nil, false, nil
	}
	r, err := jsonUnmarshalRoom(blob)
	if err != nil {
		return nil, false, fmt.Errorf("store: unmarshal room %s: %w", id, err)
	}
	return r, true, nil
}

// LoadAll reads every persisted room, for startup reload.
func (s *BoltStore) LoadAll() ([]*room.Room, error) {
	var out []*room.Room
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(roomsBucket)).ForEach(func(_, v []byte) error {
			r, err := jsonUnmarshalRoom(v)
			if err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

// Delete removes a room's snapshot, used once the GC sweep decides a
// room has aged out.
func (s *BoltStore) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(roomsBucket)).Delete([]byte(id))
	})
}
