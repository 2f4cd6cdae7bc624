package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"shogi-server/internal/room"
	"shogi-server/internal/shogi"
)

// fakeRooms is a hand-rolled RoomDirectory recording every call it
// receives, so tests assert on routing without a real Room/Manager.
type fakeRooms struct {
	existing map[string]bool
	created  []string

	joinSeat   shogi.Side
	joinSeated bool
	joinOk     bool
	joinCalls  []string

	settingsCalls []room.Settings
	readyCalls    []shogi.Side
	moveCalls     []shogi.Move
	resignCalls   []shogi.Side
	undoCalls     int
	resetCalls    int
	rematchCalls  []shogi.Side
	onlineCalls   []bool
	syncCalls     []string
}

func (f *fakeRooms) Get(id string) (*room.Room, bool) { return nil, f.existing[id] }

func (f *fakeRooms) Create(id string) *room.Room {
	f.created = append(f.created, id)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[id] = true
	return nil
}

func (f *fakeRooms) Join(roomID, sessionID, userID, userName string) (shogi.Side, bool, bool) {
	f.joinCalls = append(f.joinCalls, sessionID)
	return f.joinSeat, f.joinSeated, f.joinOk
}

func (f *fakeRooms) UpdateSettings(roomID string, settings room.Settings) bool {
	f.settingsCalls = append(f.settingsCalls, settings)
	return true
}

func (f *fakeRooms) ToggleReady(roomID string, seat shogi.Side) bool {
	f.readyCalls = append(f.readyCalls, seat)
	return true
}

func (f *fakeRooms) Move(roomID, sessionID string, move shogi.Move, branchIndex *int) bool {
	f.moveCalls = append(f.moveCalls, move)
	return true
}

func (f *fakeRooms) Resign(roomID string, loser shogi.Side) bool {
	f.resignCalls = append(f.resignCalls, loser)
	return true
}

func (f *fakeRooms) Undo(roomID string) bool {
	f.undoCalls++
	return true
}

func (f *fakeRooms) Reset(roomID string) bool {
	f.resetCalls++
	return true
}

func (f *fakeRooms) Rematch(roomID string, seat shogi.Side) bool {
	f.rematchCalls = append(f.rematchCalls, seat)
	return true
}

func (f *fakeRooms) SetSeatOnline(roomID, sessionID string, online bool) bool {
	f.onlineCalls = append(f.onlineCalls, online)
	return true
}

func (f *fakeRooms) Sync(roomID, sessionID string) bool {
	f.syncCalls = append(f.syncCalls, sessionID)
	return true
}

func joinEnvelope(roomID, userID, userName string) Envelope {
	data, _ := json.Marshal(joinPayload{RoomID: roomID, UserID: userID, UserName: userName})
	return Envelope{Event: "join", Data: data}
}

func TestDispatchJoinCreatesRoomAndSeats(t *testing.T) {
	f := &fakeRooms{joinSeat: shogi.Sente, joinSeated: true, joinOk: true}
	rt := NewRouter(f)

	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	require.Equal(t, []string{"room1"}, f.created, "an unknown room is created before joining")
	require.Equal(t, []string{"s1"}, f.joinCalls)
	require.Equal(t, []string{"s1"}, f.syncCalls, "a seated join triggers the joiner's own sync")

	sess, ok := rt.sessions["s1"]
	require.True(t, ok)
	require.Equal(t, shogi.Sente, sess.seat)
	require.True(t, sess.seated)
}

func TestDispatchJoinExistingRoomIsNotRecreated(t *testing.T) {
	f := &fakeRooms{existing: map[string]bool{"room1": true}, joinSeat: shogi.Gote, joinSeated: true, joinOk: true}
	rt := NewRouter(f)

	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	require.Empty(t, f.created)
}

func TestDispatchJoinFailureLeavesNoSession(t *testing.T) {
	f := &fakeRooms{joinOk: false}
	rt := NewRouter(f)

	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	_, ok := rt.sessions["s1"]
	require.False(t, ok)
	require.Empty(t, f.syncCalls)
}

func TestDispatchMoveRoutesDecodedMoveForSeatedSession(t *testing.T) {
	f := &fakeRooms{joinSeat: shogi.Sente, joinSeated: true, joinOk: true}
	rt := NewRouter(f)
	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	move := shogi.BoardMove{From: shogi.Pos{X: 2, Y: 6}, To: shogi.Pos{X: 2, Y: 5}}
	data, _ := json.Marshal(movePayload{Move: shogi.EncodeMove(move)})
	rt.Dispatch("s1", Envelope{Event: "move", Data: data})

	require.Len(t, f.moveCalls, 1)
	require.Equal(t, move, f.moveCalls[0])
}

func TestDispatchMoveWithMalformedPayloadIsDropped(t *testing.T) {
	f := &fakeRooms{joinSeat: shogi.Sente, joinSeated: true, joinOk: true}
	rt := NewRouter(f)
	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	rt.Dispatch("s1", Envelope{Event: "move", Data: json.RawMessage(`{"move": {"type": "nonsense"}}`)})

	require.Empty(t, f.moveCalls)
}

func TestDispatchToggleReadyRequiresSeatedSession(t *testing.T) {
	f := &fakeRooms{joinSeat: 0, joinSeated: false, joinOk: true}
	rt := NewRouter(f)
	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	rt.Dispatch("s1", Envelope{Event: "toggle_ready"})

	require.Empty(t, f.readyCalls, "a spectator's toggle_ready never reaches the room")
}

func TestDispatchToggleReadySeated(t *testing.T) {
	f := &fakeRooms{joinSeat: shogi.Gote, joinSeated: true, joinOk: true}
	rt := NewRouter(f)
	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	rt.Dispatch("s1", Envelope{Event: "toggle_ready"})

	require.Equal(t, []shogi.Side{shogi.Gote}, f.readyCalls)
}

func TestDispatchUnknownEventIsSilentlyDropped(t *testing.T) {
	f := &fakeRooms{}
	rt := NewRouter(f)

	require.NotPanics(t, func() {
		rt.Dispatch("s1", Envelope{Event: "whatever"})
	})
}

func TestDispatchWithoutPriorJoinIsNoOp(t *testing.T) {
	f := &fakeRooms{}
	rt := NewRouter(f)

	rt.Dispatch("ghost", Envelope{Event: "toggle_ready"})
	rt.Dispatch("ghost", Envelope{Event: "game_resign"})
	rt.Dispatch("ghost", Envelope{Event: "undo"})

	require.Empty(t, f.readyCalls)
	require.Empty(t, f.resignCalls)
	require.Zero(t, f.undoCalls)
}

func TestDisconnectSetsOfflineAndForgetsSession(t *testing.T) {
	f := &fakeRooms{joinSeat: shogi.Sente, joinSeated: true, joinOk: true}
	rt := NewRouter(f)
	rt.Dispatch("s1", joinEnvelope("room1", "u1", "Alice"))

	rt.Disconnect("s1")

	require.Equal(t, []bool{false}, f.onlineCalls)
	_, ok := rt.sessions["s1"]
	require.False(t, ok)

	// A second disconnect for the same (now-forgotten) session is a no-op.
	rt.Disconnect("s1")
	require.Len(t, f.onlineCalls, 1)
}
