package room

import (
	"sync"
	"time"

	"shogi-server/internal/clock"
	"shogi-server/internal/shogi"
)

// Persister stores a Room's latest state. Save is called once per
// mutation, with the Room's own lock held, so the bytes it encodes are
// always a consistent snapshot. Delete removes a room's snapshot
// entirely, used once GCInactiveRooms decides it has aged out; a room
// deleted here must not reappear on the next startup reload.
type Persister interface {
	Save(r *Room) error
	Delete(id string) error
}

// Broadcaster fans Room events out to transport-level subscribers.
// Broadcast reaches every session in the room; Send reaches exactly one.
type Broadcaster interface {
	Broadcast(roomID string, event Event)
	Send(sessionID string, event Event)
}

// Manager owns the registry of live rooms and wires each one's Clock
// callbacks, persistence, and broadcast together: every mutation runs
// under the room's own lock, then saves to the store, then broadcasts.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	store Persister
	hub   Broadcaster

	initialSeconds int
	byoyomiSeconds int
}

// NewManager builds an empty registry. initialSeconds/byoyomiSeconds are
// the defaults a freshly created room starts with before any
// update_settings call. hub may be nil and wired in later with
// SetBroadcaster, since the transport hub's constructor needs a
// RoomDirectory before it exists itself, so boot wiring builds the Manager
// first and closes the cycle afterward.
func NewManager(store Persister, hub Broadcaster, initialSeconds, byoyomiSeconds int) *Manager {
	return &Manager{
		rooms:          map[string]*Room{},
		store:          store,
		hub:            hub,
		initialSeconds: initialSeconds,
		byoyomiSeconds: byoyomiSeconds,
	}
}

// SetBroadcaster wires (or replaces) the Manager's Broadcaster after
// construction.
func (m *Manager) SetBroadcaster(hub Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hub = hub
}

// Get returns the live room for id, if any. The map lock is held only
// for the lookup itself, never across a Room mutation.
func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Create inserts a freshly built room with default settings and attaches
// its clock sink. Returns the existing room unchanged if id is already
// taken: joining an existing room code never recreates it.
func (m *Manager) Create(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		return r
	}
	r := New(id, Settings{InitialSeconds: m.initialSeconds, ByoyomiSeconds: m.byoyomiSeconds})
	r.AttachClock(clock.New(&clockSink{m: m, roomID: id}, m.initialSeconds, m.byoyomiSeconds))
	m.rooms[id] = r
	return r
}

// Adopt registers a Room loaded from storage (timers unset) and attaches
// a fresh clock sink for it, resuming the committed times/byoyomi rather
// than restarting the countdown: reload never gifts or docks time.
func (m *Manager) Adopt(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := clock.New(&clockSink{m: m, roomID: r.ID}, r.Settings.InitialSeconds, r.Settings.ByoyomiSeconds)
	r.AttachClock(c)
	m.rooms[r.ID] = r
}

// Delete removes id from the registry. Used by the garbage collector
// once a session-less room that is not playing has aged out.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
}

// Snapshot returns every currently registered room, for the GC sweep and
// for admin/debug listing.
func (m *Manager) Snapshot() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// dispatch persists r and broadcasts events in order, all while r's own
// lock is held by the caller: persistence and broadcast stay ordered
// against every other mutation of the same room.
func (m *Manager) dispatch(r *Room, events []Event) {
	r.UpdatedAt = time.Now()
	// Persistence failure never blocks play: the events are still
	// broadcast, and the next successful mutation's Save will catch the
	// room back up.
	_ = m.store.Save(r)
	m.mu.RLock()
	hub := m.hub
	m.mu.RUnlock()
	if hub == nil {
		return
	}
	for _, ev := range events {
		hub.Broadcast(r.ID, ev)
	}
}

// Join seats or spectates a session and fans out the result.
func (m *Manager) Join(roomID, sessionID, userID, userName string) (seat shogi.Side, seated, ok bool) {
	r, ok := m.Get(roomID)
	if !ok {
		return 0, false, false
	}
	r.Lock()
	seat, seated, events := r.joinLocked(sessionID, userID, userName)
	m.dispatch(r, events)
	r.Unlock()
	return seat, seated, true
}

// UpdateSettings applies new settings to roomID.
func (m *Manager) UpdateSettings(roomID string, settings Settings) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.updateSettingsLocked(settings)
	})
}

// ToggleReady flips seat's ready flag in roomID.
func (m *Manager) ToggleReady(roomID string, seat shogi.Side) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.toggleReadyLocked(seat)
	})
}

// Move applies a move as sessionID in roomID.
func (m *Manager) Move(roomID, sessionID string, move shogi.Move, branchIndex *int) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.moveLocked(sessionID, move, branchIndex)
	})
}

// Resign resigns loser's seat in roomID.
func (m *Manager) Resign(roomID string, loser shogi.Side) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.resignLocked(loser)
	})
}

// Undo pops the last move in roomID.
func (m *Manager) Undo(roomID string) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.undoLocked()
	})
}

// Reset returns roomID to the waiting state.
func (m *Manager) Reset(roomID string) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.resetLocked()
	})
}

// Rematch records seat's rematch request in roomID.
func (m *Manager) Rematch(roomID string, seat shogi.Side) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.rematchLocked(seat)
	})
}

// SetSeatOnline updates presence for sessionID in roomID.
func (m *Manager) SetSeatOnline(roomID, sessionID string, online bool) bool {
	return m.mutate(roomID, func(r *Room) ([]Event, bool) {
		return r.setSeatOnlineLocked(sessionID, online), true
	})
}

// mutate looks roomID up, runs fn under the room's own lock, and
// dispatches (persist then broadcast) whatever events fn produced, all
// before releasing the lock, so that a mutation's persistence and
// broadcast never race a later mutation's.
func (m *Manager) mutate(roomID string, fn func(r *Room) ([]Event, bool)) bool {
	r, ok := m.Get(roomID)
	if !ok {
		return false
	}
	r.Lock()
	defer r.Unlock()
	events, ok := fn(r)
	if !ok {
		return false
	}
	m.dispatch(r, events)
	return true
}

// Sync sends sessionID its personalized full-state payload directly,
// bypassing dispatch since a sync is a unicast reply, not a mutation.
func (m *Manager) Sync(roomID, sessionID string) bool {
	r, ok := m.Get(roomID)
	if !ok {
		return false
	}
	m.mu.RLock()
	hub := m.hub
	m.mu.RUnlock()
	if hub == nil {
		return false
	}
	hub.Send(sessionID, Event{Name: "sync", Payload: r.SyncFor(sessionID)})
	return true
}

// GCInactiveRooms deletes rooms that are not playing, are session-less,
// and have been untouched for longer than maxAge, measured from each room's last
// persisted snapshot. Both the in-memory room and its store snapshot are
// removed, so a swept room cannot be resurrected by the next startup
// reload. Run on an hourly sweep.
func (m *Manager) GCInactiveRooms(maxAge time.Duration) int {
	removed := 0
	for _, r := range m.Snapshot() {
		r.Lock()
		idle := r.Status != StatusPlaying && !r.hasLiveSessionLocked() && time.Since(r.UpdatedAt) > maxAge
		id := r.ID
		r.Unlock()
		if idle {
			if err := m.store.Delete(id); err != nil {
				continue
			}
			m.Delete(id)
			removed++
		}
	}
	return removed
}

// clockSink adapts a Manager+roomID pair into a clock.TickSink: it looks
// the room up, invokes the matching Room.On* callback under the room's
// lock to get the events to fan out, then dispatches them exactly as any
// other mutation, reporting through the same Broadcaster every other
// handler uses.
type clockSink struct {
	m      *Manager
	roomID string
}

func (s *clockSink) OnTick(side shogi.Side, remainingMain, remainingByoyomi int) {
	r, ok := s.m.Get(s.roomID)
	if !ok {
		return
	}
	r.Lock()
	events := r.onTickLocked(side, remainingMain, remainingByoyomi)
	s.m.dispatch(r, events)
	r.Unlock()
}

func (s *clockSink) OnTimeout(side shogi.Side) {
	r, ok := s.m.Get(s.roomID)
	if !ok {
		return
	}
	r.Lock()
	events := r.onTimeoutLocked(side)
	s.m.dispatch(r, events)
	r.Unlock()
}
