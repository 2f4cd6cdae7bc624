package shogi

// GenerateLegalMoves enumerates every legal move (board moves and drops)
// available to side in the given position. checkUchiFuMate controls
// whether pawn drops are additionally filtered by the drop-pawn-mate
// prohibition: the checkmate test passes false here so that testing
// "does the opponent have any reply" never recurses through
// uchi-fu-zume.
func GenerateLegalMoves(board *Board, hands *Hands, side Side, checkUchiFuMate bool) []Move {
	var moves []Move

	board.Each(func(from Pos, piece Piece) {
		if piece.Owner != side {
			return
		}
		for y := 0; y < BoardSize; y++ {
			for x := 0; x < BoardSize; x++ {
				to := Pos{X: x, Y: y}
				if IsLegal(board, hands, side, BoardMove{From: from, To: to}, checkUchiFuMate) {
					moves = append(moves, BoardMove{From: from, To: to})
				}
				if piece.Kind.Promotable() && IsLegal(board, hands, side, BoardMove{From: from, To: to, Promote: true}, checkUchiFuMate) {
					moves = append(moves, BoardMove{From: from, To: to, Promote: true})
				}
			}
		}
	})

	for _, k := range HandKinds {
		if hands.Count(side, k) <= 0 {
			continue
		}
		for y := 0; y < BoardSize; y++ {
			for x := 0; x < BoardSize; x++ {
				to := Pos{X: x, Y: y}
				if IsLegal(board, hands, side, Drop{To: to, Piece: k}, checkUchiFuMate) {
					moves = append(moves, Drop{To: to, Piece: k})
				}
			}
		}
	}

	return moves
}

// HasAnyLegalMove reports whether side has at least one legal reply in
// the position, without allocating the full move list. Exported for the
// Terminal Detector's checkmate test.
func HasAnyLegalMove(board *Board, hands *Hands, side Side) bool {
	return hasAnyLegalMove(board, hands, side)
}
