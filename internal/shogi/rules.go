package shogi

import "errors"

// Apply produces the board/hands that result from playing move as side,
// without checking legality. Captures revert to their unpromoted kind and
// join the mover's hand. Callers must run IsLegal first: Apply trusts
// its input.
func Apply(board *Board, hands *Hands, side Side, move Move) (*Board, *Hands, error) {
	newBoard := board.Clone()
	newHands := hands.Clone()

	switch m := move.(type) {
	case BoardMove:
		piece, ok := newBoard.At(m.From)
		if !ok || piece.Owner != side {
			return nil, nil, errors.New("shogi: no mover piece at from")
		}
		if captured, ok := newBoard.At(m.To); ok {
			newHands.Add(side, captured.Kind.Demote())
		}
		newBoard.Clear(m.From)

		kind := piece.Kind
		if m.Promote {
			promoted, ok := piece.Kind.Promote()
			if !ok {
				return nil, nil, errors.New("shogi: piece cannot promote")
			}
			kind = promoted
		}
		np := NewPiece(kind, side)
		newBoard.Set(m.To, &np)

	case Drop:
		if !newHands.Remove(side, m.Piece) {
			return nil, nil, errors.New("shogi: no such piece in hand")
		}
		np := NewPiece(m.Piece, side)
		newBoard.Set(m.To, &np)

	default:
		return nil, nil, errors.New("shogi: unknown move variant")
	}

	return newBoard, newHands, nil
}

// IsKingInCheck reports whether side's king is attacked by any opposing
// piece on board. A missing king (should not occur in a reachable
// position) reports false.
func IsKingInCheck(board *Board, side Side) bool {
	kingPos, ok := board.FindKing(side)
	if !ok {
		return false
	}
	inCheck := false
	board.Each(func(p Pos, piece Piece) {
		if inCheck || piece.Owner == side {
			return
		}
		if CanReach(board, p, kingPos, piece.Kind, piece.Owner) {
			inCheck = true
		}
	})
	return inCheck
}

// hasUnpromotedPawnOnFile reports whether side already has an unpromoted
// Pawn on file x (the two-pawns / nifu restriction).
func hasUnpromotedPawnOnFile(board *Board, side Side, x int) bool {
	found := false
	board.Each(func(p Pos, piece Piece) {
		if found {
			return
		}
		if p.X == x && piece.Owner == side && piece.Kind == Pawn {
			found = true
		}
	})
	return found
}

// IsLegal validates move as played by side against board/hands.
// checkUchiFuMate gates the uchi-fu-zume (drop-pawn-mate) prohibition;
// callers recursing into IsLegal to test an opponent's replies must pass
// false to avoid infinite regress.
func IsLegal(board *Board, hands *Hands, side Side, move Move, checkUchiFuMate bool) bool {
	switch m := move.(type) {
	case BoardMove:
		return isLegalBoardMove(board, hands, side, m)
	case Drop:
		return isLegalDrop(board, hands, side, m, checkUchiFuMate)
	default:
		return false
	}
}

func isLegalBoardMove(board *Board, hands *Hands, side Side, m BoardMove) bool {
	if !m.From.InBounds() || !m.To.InBounds() {
		return false
	}
	mover, ok := board.At(m.From)
	if !ok || mover.Owner != side {
		return false
	}
	if target, ok := board.At(m.To); ok && target.Owner == side {
		return false
	}
	if !CanReach(board, m.From, m.To, mover.Kind, side) {
		return false
	}
	if m.Promote {
		if !mover.Kind.Promotable() {
			return false
		}
	} else if IsDeadSquare(side, mover.Kind, m.To.Y) {
		return false
	}

	newBoard, _, err := Apply(board, hands, side, m)
	if err != nil {
		return false
	}
	if IsKingInCheck(newBoard, side) {
		return false
	}
	return true
}

func isLegalDrop(board *Board, hands *Hands, side Side, m Drop, checkUchiFuMate bool) bool {
	if !m.To.InBounds() {
		return false
	}
	if _, occupied := board.At(m.To); occupied {
		return false
	}
	if hands.Count(side, m.Piece) <= 0 {
		return false
	}
	if IsDeadSquare(side, m.Piece, m.To.Y) {
		return false
	}
	if m.Piece == Pawn && hasUnpromotedPawnOnFile(board, side, m.To.X) {
		return false
	}

	newBoard, newHands, err := Apply(board, hands, side, m)
	if err != nil {
		return false
	}
	if IsKingInCheck(newBoard, side) {
		return false
	}

	if checkUchiFuMate && m.Piece == Pawn {
		opp := side.Opponent()
		if IsKingInCheck(newBoard, opp) && !hasAnyLegalMove(newBoard, newHands, opp) {
			return false
		}
	}

	return true
}

// hasAnyLegalMove reports whether side has at least one legal move
// (board move or drop) in the given position. Used by uchi-fu-zume
// detection and by the Terminal Detector's checkmate test; both pass
// checkUchiFuMate=false to the underlying legality check to avoid
// recursing through the uchi-fu-zume rule itself.
func hasAnyLegalMove(board *Board, hands *Hands, side Side) bool {
	found := false
	board.Each(func(from Pos, piece Piece) {
		if found || piece.Owner != side {
			return
		}
		for y := 0; y < BoardSize && !found; y++ {
			for x := 0; x < BoardSize && !found; x++ {
				to := Pos{X: x, Y: y}
				if IsLegal(board, hands, side, BoardMove{From: from, To: to, Promote: false}, false) {
					found = true
					return
				}
				if piece.Kind.Promotable() && IsLegal(board, hands, side, BoardMove{From: from, To: to, Promote: true}, false) {
					found = true
					return
				}
			}
		}
	})
	if found {
		return true
	}
	for _, k := range HandKinds {
		if hands.Count(side, k) <= 0 {
			continue
		}
		for y := 0; y < BoardSize && !found; y++ {
			for x := 0; x < BoardSize && !found; x++ {
				if IsLegal(board, hands, side, Drop{To: Pos{X: x, Y: y}, Piece: k}, false) {
					found = true
				}
			}
		}
		if found {
			break
		}
	}
	return found
}
