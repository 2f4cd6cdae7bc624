// Package terminal decides, after every validated move, whether the
// game has ended by
// checkmate, or, failing that, whether the position has repeated four
// times, and if so whether that repetition is an illegal perpetual check
// (a loss for the perpetually-checking side) or a sennichite draw.
package terminal

import "shogi-server/internal/shogi"

// Reason names why a game ended. The clock and room-event machinery add
// Resign and Timeout outcomes directly; only Checkmate, Sennichite, and
// IllegalSennichite originate here.
type Reason string

const (
	ReasonCheckmate         Reason = "checkmate"
	ReasonTimeout           Reason = "timeout"
	ReasonResign            Reason = "resign"
	ReasonSennichite        Reason = "sennichite"
	ReasonIllegalSennichite Reason = "illegal_sennichite"
)

// Outcome reports a terminal game result. A zero Outcome (Terminal false)
// means play continues. Winner is nil for a drawn Sennichite outcome.
type Outcome struct {
	Terminal bool
	Reason   Reason
	Winner   *shogi.Side
}

func win(reason Reason, side shogi.Side) Outcome {
	s := side
	return Outcome{Terminal: true, Reason: reason, Winner: &s}
}

func draw(reason Reason) Outcome {
	return Outcome{Terminal: true, Reason: reason}
}

// AfterMove runs the checkmate test for the side left to move after
// mover's move, and, only when that side is not checkmated, the
// fourfold-repetition test.
//
// fingerprints holds one entry per position reached so far: index 0 is
// the initial position, index k (k>=1) is the position after history[k-1]
// was played. history therefore has exactly len(fingerprints)-1 entries,
// and its IsCheck flags must already be populated by the caller before
// this is called (Board & Rules' IsKingInCheck on the position each move
// produced).
func AfterMove(board *shogi.Board, hands *shogi.Hands, mover shogi.Side, fingerprints []string, history []shogi.HistoryEntry) Outcome {
	opponent := mover.Opponent()
	if shogi.IsKingInCheck(board, opponent) && !shogi.HasAnyLegalMove(board, hands, opponent) {
		return win(ReasonCheckmate, mover)
	}
	return detectRepetition(fingerprints, history)
}

func detectRepetition(fingerprints []string, history []shogi.HistoryEntry) Outcome {
	last := len(fingerprints) - 1
	current := fingerprints[last]

	count := 0
	prevFPIdx := -1
	for i, fp := range fingerprints {
		if fp != current {
			continue
		}
		count++
		if i != last {
			prevFPIdx = i
		}
	}
	if count < 4 {
		return Outcome{}
	}

	// prevFPIdx is the fingerprint-array index of the occurrence
	// immediately preceding this one; in history-index terms that is
	// prevIdx+1 (the initial position sits at index -1), i.e. exactly
	// where the repeating block of moves begins.
	return classifyBlock(history, prevFPIdx)
}

// classifyBlock inspects history[blockStart:] (the moves played since
// the fingerprint's previous occurrence) and decides whether every move
// by one side in that block gave check, which makes that side's
// repetition an illegal perpetual check rather than a sennichite draw.
func classifyBlock(history []shogi.HistoryEntry, blockStart int) Outcome {
	var hasSenteMove, allSenteChecks = false, true
	var hasGoteMove, allGoteChecks = false, true

	for i := blockStart; i < len(history); i++ {
		entry := history[i]
		switch shogi.SideToMove(i) {
		case shogi.Sente:
			hasSenteMove = true
			allSenteChecks = allSenteChecks && entry.IsCheck
		case shogi.Gote:
			hasGoteMove = true
			allGoteChecks = allGoteChecks && entry.IsCheck
		}
	}

	switch {
	case hasSenteMove && allSenteChecks:
		return win(ReasonIllegalSennichite, shogi.Gote)
	case hasGoteMove && allGoteChecks:
		return win(ReasonIllegalSennichite, shogi.Sente)
	default:
		return draw(ReasonSennichite)
	}
}
