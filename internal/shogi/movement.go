package shogi

// sign returns -1, 0, or 1.
func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// clearBetween reports whether every square strictly between from and to
// (exclusive of both endpoints) is empty. Callers guarantee from/to are
// collinear (orthogonal or diagonal).
func clearBetween(b *Board, from, to Pos) bool {
	dx, dy := sign(to.X-from.X), sign(to.Y-from.Y)
	x, y := from.X+dx, from.Y+dy
	for x != to.X || y != to.Y {
		if _, ok := b.At(Pos{X: x, Y: y}); ok {
			return false
		}
		x += dx
		y += dy
	}
	return true
}

// CanReach reports whether a piece of kind, owned by side, sitting on
// from, can move to to in one step, ignoring occupancy of the
// destination itself (callers check that separately) but honoring
// blockers along the path for sliding pieces.
func CanReach(board *Board, from, to Pos, kind Kind, side Side) bool {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if dx == 0 && dy == 0 {
		return false
	}
	forward := side.Forward()

	switch kind {
	case King:
		return max(abs(dx), abs(dy)) == 1

	case Gold, PromotedPawn, PromotedLance, PromotedKnight, PromotedSilver:
		return (abs(dx) == 1 && dy == 0) || (dx == 0 && abs(dy) == 1) || (abs(dx) == 1 && dy == forward)

	case Silver:
		if abs(dx) == 1 && abs(dy) == 1 {
			return true
		}
		return dx == 0 && dy == forward

	case Knight:
		return abs(dx) == 1 && dy == 2*forward

	case Pawn:
		return dx == 0 && dy == forward

	case Lance:
		if dx != 0 || sign(dy) != forward {
			return false
		}
		return clearBetween(board, from, to)

	case Bishop:
		if abs(dx) != abs(dy) {
			return false
		}
		return clearBetween(board, from, to)

	case Horse:
		if abs(dx) == abs(dy) && abs(dx) > 0 {
			return clearBetween(board, from, to)
		}
		return max(abs(dx), abs(dy)) == 1 && dx*dy == 0

	case Rook:
		if dx != 0 && dy != 0 {
			return false
		}
		return clearBetween(board, from, to)

	case Dragon:
		if dx == 0 || dy == 0 {
			return clearBetween(board, from, to)
		}
		return abs(dx) == 1 && abs(dy) == 1

	default:
		return false
	}
}
