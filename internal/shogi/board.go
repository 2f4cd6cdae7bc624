package shogi

import "encoding/json"

// Pos is a zero-based board coordinate. x is the file, y is the rank;
// y=0 is Gote's back rank and y=8 is Sente's back rank.
type Pos struct {
	X, Y int
}

// InBounds reports whether p lies on the 9x9 board.
func (p Pos) InBounds() bool {
	return p.X >= 0 && p.X < BoardSize && p.Y >= 0 && p.Y < BoardSize
}

const BoardSize = 9

// Piece sits on a board square or inside a hand slot. Promoted is
// redundant with Kind for pieces whose kind is itself a promoted kind;
// callers must keep the two in agreement (see Kind.IsPromoted).
type Piece struct {
	Kind     Kind
	Owner    Side
	Promoted bool
}

// NewPiece builds a Piece, deriving Promoted from kind.
func NewPiece(kind Kind, owner Side) Piece {
	return Piece{Kind: kind, Owner: owner, Promoted: kind.IsPromoted()}
}

// Board is a 9x9 grid of optional pieces, indexed [y][x].
type Board struct {
	squares [BoardSize][BoardSize]*Piece
}

// At returns the piece on square p, or (Piece{}, false) if empty or out of
// bounds.
func (b *Board) At(p Pos) (Piece, bool) {
	if !p.InBounds() {
		return Piece{}, false
	}
	sq := b.squares[p.Y][p.X]
	if sq == nil {
		return Piece{}, false
	}
	return *sq, true
}

// Set places piece on square p. Passing nil clears it.
func (b *Board) Set(p Pos, piece *Piece) {
	cp := piece
	if piece != nil {
		v := *piece
		cp = &v
	}
	b.squares[p.Y][p.X] = cp
}

// Clear empties square p.
func (b *Board) Clear(p Pos) {
	b.squares[p.Y][p.X] = nil
}

// Clone deep-copies the board so simulation (self-check, uchi-fu-zume
// probing) never mutates the authoritative position.
func (b *Board) Clone() *Board {
	out := &Board{}
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if sq := b.squares[y][x]; sq != nil {
				v := *sq
				out.squares[y][x] = &v
			}
		}
	}
	return out
}

// FindKing locates side's king, returning false if absent (should not
// happen in a reachable position, but isKingInCheck treats a missing
// king as "not in check" rather than panicking).
func (b *Board) FindKing(side Side) (Pos, bool) {
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			sq := b.squares[y][x]
			if sq != nil && sq.Kind == King && sq.Owner == side {
				return Pos{X: x, Y: y}, true
			}
		}
	}
	return Pos{}, false
}

// Each calls fn for every occupied square.
func (b *Board) Each(fn func(p Pos, piece Piece)) {
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if sq := b.squares[y][x]; sq != nil {
				fn(Pos{X: x, Y: y}, *sq)
			}
		}
	}
}

// NewInitialBoard returns the standard Shogi starting array.
func NewInitialBoard() *Board {
	b := &Board{}

	backRank := [9]Kind{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}
	for x, k := range backRank {
		b.Set(Pos{X: x, Y: 0}, pp(NewPiece(k, Gote)))
		b.Set(Pos{X: x, Y: 8}, pp(NewPiece(k, Sente)))
	}

	// Gote's rook at (1,1) (y=1 is Gote's second rank), bishop at (7,1).
	b.Set(Pos{X: 1, Y: 1}, pp(NewPiece(Rook, Gote)))
	b.Set(Pos{X: 7, Y: 1}, pp(NewPiece(Bishop, Gote)))

	// Sente's rook at (7,7), bishop at (1,7).
	b.Set(Pos{X: 7, Y: 7}, pp(NewPiece(Rook, Sente)))
	b.Set(Pos{X: 1, Y: 7}, pp(NewPiece(Bishop, Sente)))

	for x := 0; x < BoardSize; x++ {
		b.Set(Pos{X: x, Y: 2}, pp(NewPiece(Pawn, Gote)))
		b.Set(Pos{X: x, Y: 6}, pp(NewPiece(Pawn, Sente)))
	}

	return b
}

func pp(p Piece) *Piece { return &p }

// MarshalJSON flattens squares into one array so a persisted Room's board
// round-trips exactly; the grid is otherwise unexported.
func (b *Board) MarshalJSON() ([]byte, error) {
	flat := make([][BoardSize]*Piece, BoardSize)
	for y := range b.squares {
		flat[y] = b.squares[y]
	}
	return json.Marshal(flat)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (b *Board) UnmarshalJSON(data []byte) error {
	var flat [BoardSize][BoardSize]*Piece
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	b.squares = flat
	return nil
}

// deadRanks returns the ranks on which a board move delivering kind for
// side to that rank would leave it with no legal move (dead square rule).
// Pawn/Lance: the side's last rank. Knight: the side's last two ranks.
func deadRanks(side Side, kind Kind) map[int]bool {
	last := 8
	if side == Sente {
		last = 0
	}
	switch kind {
	case Pawn, Lance:
		return map[int]bool{last: true}
	case Knight:
		second := last - side.Forward()
		return map[int]bool{last: true, second: true}
	default:
		return nil
	}
}

// IsDeadSquare reports whether placing a non-promoting piece of kind,
// owned by side, on rank y would leave it permanently unable to move.
func IsDeadSquare(side Side, kind Kind, y int) bool {
	return deadRanks(side, kind)[y]
}
