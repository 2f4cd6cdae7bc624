package terminal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"shogi-server/internal/shogi"
)

func TestAfterMoveDetectsCheckmate(t *testing.T) {
	b := &shogi.Board{}
	gk := shogi.NewPiece(shogi.King, shogi.Gote)
	b.Set(shogi.Pos{X: 0, Y: 0}, &gk)
	// Lance pins the whole 0-file: it attacks both the king square and
	// the escape square (0,1) directly below it.
	sl := shogi.NewPiece(shogi.Lance, shogi.Sente)
	b.Set(shogi.Pos{X: 0, Y: 3}, &sl)
	// Gold covers the remaining two neighbors, (1,0) and (1,1).
	sg := shogi.NewPiece(shogi.Gold, shogi.Sente)
	b.Set(shogi.Pos{X: 2, Y: 1}, &sg)
	hands := shogi.NewHands()

	outcome := AfterMove(b, hands, shogi.Sente, nil, nil)
	require.True(t, outcome.Terminal)
	require.Equal(t, ReasonCheckmate, outcome.Reason)
	require.NotNil(t, outcome.Winner)
	require.Equal(t, shogi.Sente, *outcome.Winner)
}

func TestAfterMoveNonTerminalWhenNoCheckmateOrRepetition(t *testing.T) {
	b := shogi.NewInitialBoard()
	hands := shogi.NewHands()
	fingerprints := []string{shogi.Fingerprint(b, shogi.Sente, hands)}

	outcome := AfterMove(b, hands, shogi.Gote, fingerprints, nil)
	require.False(t, outcome.Terminal)
}

// buildFourfoldBlock fabricates a 12-ply fingerprint/history pair whose
// position repeats at plies 0, 4, 8, and 12 (fingerprint-array indices),
// mirroring a 4-move round trip played three times. checkPlies marks
// which of the final block's four history entries (indices 8..11) gave
// check.
func buildFourfoldBlock(checkPlies map[int]bool) ([]string, []shogi.HistoryEntry) {
	fingerprints := make([]string, 13)
	history := make([]shogi.HistoryEntry, 12)
	for i := range fingerprints {
		if i%4 == 0 {
			fingerprints[i] = "REPEAT"
		} else {
			fingerprints[i] = "OTHER"
		}
	}
	for i := range history {
		history[i] = shogi.HistoryEntry{IsCheck: checkPlies[i]}
	}
	return fingerprints, history
}

func TestAfterMoveDetectsSennichiteDraw(t *testing.T) {
	fingerprints, history := buildFourfoldBlock(nil)
	b := shogi.NewInitialBoard()
	hands := shogi.NewHands()

	outcome := AfterMove(b, hands, shogi.Gote, fingerprints, history)
	require.True(t, outcome.Terminal)
	require.Equal(t, ReasonSennichite, outcome.Reason)
	require.Nil(t, outcome.Winner)
}

func TestAfterMoveDetectsIllegalPerpetualCheckBySente(t *testing.T) {
	// Plies 8 and 10 (the block's two Sente moves) were both checks;
	// plies 9 and 11 (Gote's) were not.
	fingerprints, history := buildFourfoldBlock(map[int]bool{8: true, 10: true})
	b := shogi.NewInitialBoard()
	hands := shogi.NewHands()

	outcome := AfterMove(b, hands, shogi.Gote, fingerprints, history)
	require.True(t, outcome.Terminal)
	require.Equal(t, ReasonIllegalSennichite, outcome.Reason)
	require.NotNil(t, outcome.Winner)
	require.Equal(t, shogi.Gote, *outcome.Winner, "Sente's perpetual check is a loss for Sente")
}

func TestAfterMoveDetectsIllegalPerpetualCheckByGote(t *testing.T) {
	fingerprints, history := buildFourfoldBlock(map[int]bool{9: true, 11: true})
	b := shogi.NewInitialBoard()
	hands := shogi.NewHands()

	outcome := AfterMove(b, hands, shogi.Gote, fingerprints, history)
	require.True(t, outcome.Terminal)
	require.Equal(t, ReasonIllegalSennichite, outcome.Reason)
	require.Equal(t, shogi.Sente, *outcome.Winner)
}
