package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"shogi-server/internal/room"
	"shogi-server/internal/shogi"
)

// roomWithState builds a Room carrying enough non-default state (a played
// move, seated players, a game in progress) to catch a marshaling
// regression that an empty, freshly-New Room would hide.
func roomWithState(t *testing.T) *room.Room {
	t.Helper()
	r := room.New("room1", room.Settings{InitialSeconds: 600, ByoyomiSeconds: 30})
	_, seated, _ := r.Join("s1", "u1", "Alice")
	require.True(t, seated)
	_, seated, _ = r.Join("s2", "u2", "Bob")
	require.True(t, seated)
	_, ok := r.ToggleReady(shogi.Sente)
	require.True(t, ok)
	_, ok = r.ToggleReady(shogi.Gote)
	require.True(t, ok)

	_, ok = r.Move("s1", shogi.BoardMove{From: shogi.Pos{X: 2, Y: 6}, To: shogi.Pos{X: 2, Y: 5}}, nil)
	require.True(t, ok, "the pawn push opening the bishop's diagonal is legal from the opening position")
	return r
}

func TestBoltStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()

	r := roomWithState(t)
	require.NoError(t, s.Save(r))

	loaded, ok, err := s.Load("room1")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, r.ID, loaded.ID)
	require.Equal(t, r.Status, loaded.Status)
	require.Equal(t, r.Players, loaded.Players)
	require.Equal(t, r.UserIDs, loaded.UserIDs)
	require.Len(t, loaded.History, 1)
	require.Equal(t, r.Fingerprints, loaded.Fingerprints)

	// The board's piece grid lives behind Board's custom MarshalJSON; a
	// regression there would silently come back as an empty board.
	p, ok := loaded.Board.At(shogi.Pos{X: 2, Y: 5})
	require.True(t, ok)
	require.Equal(t, shogi.Pawn, p.Kind)
	require.Equal(t, shogi.Sente, p.Owner)
	_, ok = loaded.Board.At(shogi.Pos{X: 2, Y: 6})
	require.False(t, ok)

	// The played move rode over HistoryEntry's custom marshaling, which
	// reconstructs the concrete shogi.Move behind the interface field.
	mv, ok := loaded.History[0].Move.(shogi.BoardMove)
	require.True(t, ok, "history entry decodes back to a BoardMove, not a json.RawMessage or nil")
	require.Equal(t, shogi.Pos{X: 2, Y: 6}, mv.From)
	require.Equal(t, shogi.Pos{X: 2, Y: 5}, mv.To)
}

func TestBoltStoreLoadMissingReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Load("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBoltStoreLoadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(room.New("a", room.Settings{InitialSeconds: 600, ByoyomiSeconds: 30})))
	require.NoError(t, s.Save(room.New("b", room.Settings{InitialSeconds: 600, ByoyomiSeconds: 30})))

	all, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestBoltStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(room.New("a", room.Settings{InitialSeconds: 600, ByoyomiSeconds: 30})))
	require.NoError(t, s.Delete("a"))

	_, ok, err := s.Load("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStoreSaveLoadRoundTrip(t *testing.T) {
	m := NewMemStore()
	r := roomWithState(t)
	require.NoError(t, m.Save(r))

	loaded, ok, err := m.Load("room1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded.History, 1)
	require.Equal(t, r.Players, loaded.Players)
}

func TestMemStoreLoadMissingReturnsFalse(t *testing.T) {
	m := NewMemStore()
	_, ok, err := m.Load("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStoreDelete(t *testing.T) {
	m := NewMemStore()
	require.NoError(t, m.Save(room.New("a", room.Settings{InitialSeconds: 600, ByoyomiSeconds: 30})))
	require.NoError(t, m.Delete("a"))

	_, ok, err := m.Load("a")
	require.NoError(t, err)
	require.False(t, ok)
}
