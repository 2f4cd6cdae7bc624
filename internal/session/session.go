// Package session implements the Session Router: the event table mapping
// each inbound transport message to a Room mutation, presence tracking
// across connect/disconnect, and the narrow RoomDirectory/Broadcaster
// interfaces that keep this package decoupled from the concrete
// transport.
package session

import (
	"encoding/json"
	"sync"

	"shogi-server/internal/room"
	"shogi-server/internal/shogi"
)

// RoomDirectory is the narrow slice of room.Manager this package depends
// on, so it never imports the transport package and stays swappable in
// tests.
type RoomDirectory interface {
	Get(id string) (*room.Room, bool)
	Create(id string) *room.Room
	Join(roomID, sessionID, userID, userName string) (seat shogi.Side, seated, ok bool)
	UpdateSettings(roomID string, settings room.Settings) bool
	ToggleReady(roomID string, seat shogi.Side) bool
	Move(roomID, sessionID string, move shogi.Move, branchIndex *int) bool
	Resign(roomID string, loser shogi.Side) bool
	Undo(roomID string) bool
	Reset(roomID string) bool
	Rematch(roomID string, seat shogi.Side) bool
	SetSeatOnline(roomID, sessionID string, online bool) bool
	Sync(roomID, sessionID string) bool
}

// Envelope is the inbound message shape every transport connection
// decodes into before routing: an event name plus an opaque,
// event-specific body.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// clientSession tracks what one connected client has told us: which room it
// joined under which identity. Not persisted: it is transport-router-only
// state, rebuilt from scratch on reconnect.
type clientSession struct {
	roomID   string
	userID   string
	userName string
	seat     shogi.Side
	seated   bool
}

// Router dispatches inbound envelopes to Room mutations, keyed by the
// transport-assigned sessionID of the connection they arrived on. Each
// connection runs its own read loop on its own goroutine, so sessions is
// guarded by mu against concurrent join/move/disconnect traffic from
// different connections.
type Router struct {
	mu       sync.RWMutex
	rooms    RoomDirectory
	sessions map[string]*clientSession
}

// NewRouter builds a Router backed by rooms.
func NewRouter(rooms RoomDirectory) *Router {
	return &Router{rooms: rooms, sessions: map[string]*clientSession{}}
}

func (rt *Router) getSession(sessionID string) (*clientSession, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	sess, ok := rt.sessions[sessionID]
	return sess, ok
}

func (rt *Router) setSession(sessionID string, sess *clientSession) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.sessions[sessionID] = sess
}

func (rt *Router) deleteSession(sessionID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.sessions, sessionID)
}

type joinPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type movePayload struct {
	Move        json.RawMessage `json:"move"`
	BranchIndex *int            `json:"branchIndex"`
}

// Dispatch routes one inbound envelope from sessionID. Protocol errors
// and rule violations are silently dropped: the caller never sees an
// error, since none of these events has a failure reply in the outbound
// table.
func (rt *Router) Dispatch(sessionID string, env Envelope) {
	switch env.Event {
	case "join":
		rt.handleJoin(sessionID, env.Data)
	case "send_message":
		rt.handleSendMessage(sessionID, env.Data)
	case "update_settings":
		rt.handleUpdateSettings(sessionID, env.Data)
	case "toggle_ready":
		rt.handleToggleReady(sessionID)
	case "move":
		rt.handleMove(sessionID, env.Data)
	case "game_resign":
		rt.handleResign(sessionID)
	case "undo":
		rt.handleUndo(sessionID)
	case "reset":
		rt.handleReset(sessionID)
	case "rematch":
		rt.handleRematch(sessionID)
	case "ping_latency":
		// Accepted and dropped without a reply.
	default:
	}
}

func (rt *Router) handleJoin(sessionID string, data json.RawMessage) {
	var p joinPayload
	if json.Unmarshal(data, &p) != nil || p.RoomID == "" {
		return
	}
	if _, ok := rt.rooms.Get(p.RoomID); !ok {
		rt.rooms.Create(p.RoomID)
	}
	seat, seated, ok := rt.rooms.Join(p.RoomID, sessionID, p.UserID, p.UserName)
	if !ok {
		return
	}
	rt.setSession(sessionID, &clientSession{roomID: p.RoomID, userID: p.UserID, userName: p.UserName, seat: seat, seated: seated})
	rt.rooms.Sync(p.RoomID, sessionID)
}

func (rt *Router) handleSendMessage(sessionID string, data json.RawMessage) {
	// Chat relay is out of the room's authoritative state machine. The
	// message is accepted from an active session and dropped: neither the
	// router nor the transport hub forwards it to the room, so no
	// receive_message event is emitted.
	if _, ok := rt.getSession(sessionID); !ok {
		return
	}
}

func (rt *Router) handleUpdateSettings(sessionID string, data json.RawMessage) {
	sess, ok := rt.getSession(sessionID)
	if !ok {
		return
	}
	var settings room.Settings
	if json.Unmarshal(data, &settings) != nil {
		return
	}
	rt.rooms.UpdateSettings(sess.roomID, settings)
}

func (rt *Router) handleToggleReady(sessionID string) {
	sess, ok := rt.getSession(sessionID)
	if !ok || !sess.seated {
		return
	}
	rt.rooms.ToggleReady(sess.roomID, sess.seat)
}

func (rt *Router) handleMove(sessionID string, data json.RawMessage) {
	sess, ok := rt.getSession(sessionID)
	if !ok {
		return
	}
	var p movePayload
	if json.Unmarshal(data, &p) != nil {
		return
	}
	move, err := shogi.DecodeMove(p.Move)
	if err != nil {
		return
	}
	rt.rooms.Move(sess.roomID, sessionID, move, p.BranchIndex)
}

func (rt *Router) handleResign(sessionID string) {
	sess, ok := rt.getSession(sessionID)
	if !ok || !sess.seated {
		return
	}
	rt.rooms.Resign(sess.roomID, sess.seat)
}

func (rt *Router) handleUndo(sessionID string) {
	sess, ok := rt.getSession(sessionID)
	if !ok {
		return
	}
	rt.rooms.Undo(sess.roomID)
}

func (rt *Router) handleReset(sessionID string) {
	sess, ok := rt.getSession(sessionID)
	if !ok {
		return
	}
	rt.rooms.Reset(sess.roomID)
}

func (rt *Router) handleRematch(sessionID string) {
	sess, ok := rt.getSession(sessionID)
	if !ok || !sess.seated {
		return
	}
	rt.rooms.Rematch(sess.roomID, sess.seat)
}

// Disconnect marks sessionID's seat offline (pausing the clock while a
// game is in progress) and forgets the session.
func (rt *Router) Disconnect(sessionID string) {
	sess, ok := rt.getSession(sessionID)
	if !ok {
		return
	}
	rt.rooms.SetSeatOnline(sess.roomID, sessionID, false)
	rt.deleteSession(sessionID)
}
