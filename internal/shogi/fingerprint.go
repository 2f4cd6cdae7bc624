package shogi

import "strconv"

// Fingerprint returns the canonical SFEN-like string for (board, side,
// hands). Two positions are game-equivalent iff their fingerprints match
// exactly; the only consumer of this guarantee is repetition detection,
// so the exact alphabet is internal as long as it stays a pure function
// of its three inputs.
func Fingerprint(board *Board, side Side, hands *Hands) string {
	buf := make([]byte, 0, 128)

	for y := 0; y < BoardSize; y++ {
		empty := 0
		for x := 0; x < BoardSize; x++ {
			piece, ok := board.At(Pos{X: x, Y: y})
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				buf = strconv.AppendInt(buf, int64(empty), 10)
				empty = 0
			}
			buf = appendPieceLetter(buf, piece)
		}
		if empty > 0 {
			buf = strconv.AppendInt(buf, int64(empty), 10)
		}
		if y != BoardSize-1 {
			buf = append(buf, '/')
		}
	}

	buf = append(buf, ' ')
	if side == Sente {
		buf = append(buf, 'b')
	} else {
		buf = append(buf, 'w')
	}
	buf = append(buf, ' ')

	for _, s := range []Side{Sente, Gote} {
		hands.Each(s, func(kind Kind, count int) {
			letter := kind.baseLetter()
			if s == Gote {
				letter = letter - 'A' + 'a'
			}
			buf = append(buf, letter)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(count), 10)
		})
	}

	return string(buf)
}

func appendPieceLetter(buf []byte, piece Piece) []byte {
	if piece.Kind.IsPromoted() {
		buf = append(buf, '+')
	}
	letter := piece.Kind.baseLetter()
	if piece.Owner == Gote {
		letter = letter - 'A' + 'a'
	}
	return append(buf, letter)
}
