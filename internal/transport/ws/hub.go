// Package ws is the transport implementation for the Session Router's
// event channel: a gorilla/websocket hub keyed by room id
// (map[string]map[*websocket.Conn]struct{} behind a sync.RWMutex,
// CheckOrigin open by configuration), decoding the full inbound event
// table and writing through a per-connection mutex since broadcast
// goroutines and the read loop can reach the same connection
// concurrently.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shogi-server/internal/room"
	"shogi-server/internal/session"
)

type joinedRoom struct {
	RoomID string `json:"roomId"`
}

// conn wraps one client socket with the write mutex gorilla requires for
// concurrent writers (the hub's Broadcast/Send goroutines and this
// connection's own dispatch goroutine both write to it).
type conn struct {
	mu  sync.Mutex
	raw *websocket.Conn
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw.WriteJSON(v)
}

// Hub tracks every live connection, grouped by the room it last joined,
// and implements room.Broadcaster by fanning an event out to (or sending
// it to one of) those connections.
type Hub struct {
	mu      sync.RWMutex
	byRoom  map[string]map[string]*conn // roomID -> sessionID -> conn
	byID    map[string]*conn
	router  *session.Router
	log     *zap.SugaredLogger
	corsAll bool
}

func NewHub(rooms session.RoomDirectory, log *zap.SugaredLogger, corsOpen bool) *Hub {
	h := &Hub{
		byRoom:  map[string]map[string]*conn{},
		byID:    map[string]*conn{},
		log:     log,
		corsAll: corsOpen,
	}
	h.router = session.NewRouter(rooms)
	return h
}

func (h *Hub) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return h.corsAll },
	}
}

// HandleWS upgrades the request and runs the connection's read loop
// until it closes, registering/unregistering the connection and routing
// every decoded envelope through the Session Router.
func (h *Hub) HandleWS(c *gin.Context) {
	raw, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("ws_upgrade_failed", "err", err)
		return
	}
	sessionID := uuid.NewString()
	cn := &conn{raw: raw}

	h.mu.Lock()
	h.byID[sessionID] = cn
	h.mu.Unlock()

	defer h.disconnect(sessionID)

	for {
		var env session.Envelope
		if err := raw.ReadJSON(&env); err != nil {
			return
		}
		if env.Event == "join" {
			var j joinedRoom
			if json.Unmarshal(env.Data, &j) == nil && j.RoomID != "" {
				h.trackMembership(j.RoomID, sessionID)
			}
		}
		h.router.Dispatch(sessionID, env)
	}
}

func (h *Hub) disconnect(sessionID string) {
	h.router.Disconnect(sessionID)

	h.mu.Lock()
	if cn, ok := h.byID[sessionID]; ok {
		_ = cn.raw.Close()
	}
	delete(h.byID, sessionID)
	for _, sessions := range h.byRoom {
		delete(sessions, sessionID)
	}
	h.mu.Unlock()
}

// trackMembership registers sessionID under roomID's broadcast group.
// The Session Router itself never learns about connections, so the hub
// sniffs "join" envelopes on their way through to build its own
// membership index of which live connections a Broadcast should reach.
func (h *Hub) trackMembership(roomID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byRoom[roomID] == nil {
		h.byRoom[roomID] = map[string]*conn{}
	}
	if cn, ok := h.byID[sessionID]; ok {
		h.byRoom[roomID][sessionID] = cn
	}
}

// Broadcast implements room.Broadcaster: fans event out to every
// connection currently registered under roomID.
func (h *Hub) Broadcast(roomID string, event room.Event) {
	h.mu.RLock()
	sessions := h.byRoom[roomID]
	targets := make([]*conn, 0, len(sessions))
	for _, cn := range sessions {
		targets = append(targets, cn)
	}
	h.mu.RUnlock()

	msg := wireEvent(event)
	for _, cn := range targets {
		if err := cn.writeJSON(msg); err != nil {
			h.log.Debugw("ws_broadcast_write_failed", "room_id", roomID, "err", err)
		}
	}
}

// Send implements room.Broadcaster's unicast half: reaches exactly the
// connection for sessionID, if still live.
func (h *Hub) Send(sessionID string, event room.Event) {
	h.mu.RLock()
	cn, ok := h.byID[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := cn.writeJSON(wireEvent(event)); err != nil {
		h.log.Debugw("ws_send_write_failed", "session_id", sessionID, "err", err)
	}
}

func wireEvent(event room.Event) any {
	return map[string]any{"event": event.Name, "data": event.Payload}
}
