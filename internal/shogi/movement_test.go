package shogi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanReachKing(t *testing.T) {
	b := &Board{}
	require.True(t, CanReach(b, Pos{4, 4}, Pos{5, 5}, King, Sente))
	require.True(t, CanReach(b, Pos{4, 4}, Pos{4, 5}, King, Sente))
	require.False(t, CanReach(b, Pos{4, 4}, Pos{4, 6}, King, Sente))
}

func TestCanReachKnightJumpsOverBlocker(t *testing.T) {
	b := &Board{}
	blocker := NewPiece(Pawn, Sente)
	b.Set(Pos{4, 7}, &blocker)
	require.True(t, CanReach(b, Pos{4, 8}, Pos{3, 6}, Knight, Sente), "knight jumps, ignoring blockers")
}

func TestCanReachLanceBlocked(t *testing.T) {
	b := &Board{}
	blocker := NewPiece(Pawn, Sente)
	b.Set(Pos{4, 5}, &blocker)
	require.False(t, CanReach(b, Pos{4, 8}, Pos{4, 3}, Lance, Sente), "lance cannot jump over a blocker")
	require.True(t, CanReach(b, Pos{4, 8}, Pos{4, 6}, Lance, Sente), "lance may stop short of the blocker")
}

func TestCanReachBishopDiagonalOnly(t *testing.T) {
	b := &Board{}
	require.True(t, CanReach(b, Pos{1, 7}, Pos{7, 1}, Bishop, Sente))
	require.False(t, CanReach(b, Pos{1, 7}, Pos{1, 1}, Bishop, Sente))
}

func TestCanReachHorseAddsOrthogonalStep(t *testing.T) {
	b := &Board{}
	require.True(t, CanReach(b, Pos{4, 4}, Pos{4, 3}, Horse, Sente), "horse adds one orthogonal step")
	require.True(t, CanReach(b, Pos{4, 4}, Pos{2, 2}, Horse, Sente), "horse keeps the bishop's diagonal")
	require.False(t, CanReach(b, Pos{4, 4}, Pos{4, 2}, Horse, Sente), "horse's orthogonal step is limited to one square")
}

func TestCanReachDragonAddsDiagonalStep(t *testing.T) {
	b := &Board{}
	require.True(t, CanReach(b, Pos{4, 4}, Pos{4, 0}, Dragon, Sente), "dragon keeps the rook's line")
	require.True(t, CanReach(b, Pos{4, 4}, Pos{5, 5}, Dragon, Sente), "dragon adds one diagonal step")
	require.False(t, CanReach(b, Pos{4, 4}, Pos{6, 6}, Dragon, Sente))
}

func TestCanReachPawnSingleStepForward(t *testing.T) {
	b := &Board{}
	require.True(t, CanReach(b, Pos{4, 6}, Pos{4, 5}, Pawn, Sente))
	require.False(t, CanReach(b, Pos{4, 6}, Pos{4, 4}, Pawn, Sente))
	require.True(t, CanReach(b, Pos{4, 2}, Pos{4, 3}, Pawn, Gote))
}

func TestCanReachGoldLikeForwardDiagonalOnly(t *testing.T) {
	b := &Board{}
	require.True(t, CanReach(b, Pos{4, 4}, Pos{3, 3}, Gold, Sente), "forward-diagonal is allowed")
	require.False(t, CanReach(b, Pos{4, 4}, Pos{3, 5}, Gold, Sente), "backward-diagonal is not")
	require.True(t, CanReach(b, Pos{4, 4}, Pos{3, 4}, Gold, Sente), "orthogonal sideways is allowed")
}
