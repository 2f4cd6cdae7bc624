package shogi

import (
	"encoding/json"
	"errors"
)

// MoveVariant tags which of the two Move shapes a value carries.
type MoveVariant int

const (
	BoardMoveVariant MoveVariant = iota
	DropVariant
)

// Move is a tagged union: a BoardMove (From -> To, optionally promoting)
// or a Drop (a hand piece placed on an empty square). Moves arriving from
// clients are untrusted and must be run through IsLegal before they touch
// the authoritative board.
type Move interface {
	Variant() MoveVariant
}

// BoardMove relocates the piece on From to To, promoting it iff Promote.
type BoardMove struct {
	From, To Pos
	Promote  bool
}

func (BoardMove) Variant() MoveVariant { return BoardMoveVariant }

// Drop places Piece from the mover's hand onto the empty square To.
type Drop struct {
	To    Pos
	Piece Kind
}

func (Drop) Variant() MoveVariant { return DropVariant }

// wireMove is the JSON shape moves take over the transport: a single flat
// object with a discriminator, embedded directly in the move/isCheck/time
// event payload.
type wireMove struct {
	Type    string   `json:"type"`
	From    *wirePos `json:"from,omitempty"`
	To      wirePos  `json:"to"`
	Promote bool     `json:"promote,omitempty"`
	Piece   string   `json:"piece,omitempty"`
}

type wirePos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DecodeMove parses an untrusted client payload into a Move. It performs
// only syntactic validation (shape, known piece name); legality is the
// job of IsLegal.
func DecodeMove(raw []byte) (Move, error) {
	var wm wireMove
	if err := json.Unmarshal(raw, &wm); err != nil {
		return nil, err
	}
	return moveFromWire(wm)
}

func moveFromWire(wm wireMove) (Move, error) {
	switch wm.Type {
	case "board", "":
		if wm.From == nil {
			return nil, errors.New("board move missing from")
		}
		return BoardMove{
			From:    Pos{X: wm.From.X, Y: wm.From.Y},
			To:      Pos{X: wm.To.X, Y: wm.To.Y},
			Promote: wm.Promote,
		}, nil
	case "drop":
		kind, ok := kindByName(wm.Piece)
		if !ok {
			return nil, errors.New("unknown drop piece")
		}
		return Drop{To: Pos{X: wm.To.X, Y: wm.To.Y}, Piece: kind}, nil
	default:
		return nil, errors.New("unknown move type")
	}
}

// EncodeMove renders m back to the wire shape used in outbound "move"
// events.
func EncodeMove(m Move) json.RawMessage {
	var wm wireMove
	switch v := m.(type) {
	case BoardMove:
		wm = wireMove{Type: "board", From: &wirePos{X: v.From.X, Y: v.From.Y}, To: wirePos{X: v.To.X, Y: v.To.Y}, Promote: v.Promote}
	case Drop:
		wm = wireMove{Type: "drop", To: wirePos{X: v.To.X, Y: v.To.Y}, Piece: kindName(v.Piece)}
	}
	b, _ := json.Marshal(wm)
	return b
}

var kindNames = map[Kind]string{
	Pawn: "pawn", Lance: "lance", Knight: "knight", Silver: "silver",
	Gold: "gold", Bishop: "bishop", Rook: "rook", King: "king",
}

func kindName(k Kind) string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return ""
}

func kindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// TimeAnnotation records how long the mover spent on a history entry.
type TimeAnnotation struct {
	Now   int `json:"now"`   // seconds spent on this move
	Total int `json:"total"` // cumulative seconds spent by the mover
}

// HistoryEntry is a move plus the annotations recorded when it was played.
type HistoryEntry struct {
	Move    Move
	IsCheck bool
	Time    TimeAnnotation
}

// wireHistoryEntry gives HistoryEntry a concrete JSON shape; Move is an
// interface and the encoding/json package cannot unmarshal into one
// without help, so Move rides over the same wireMove encoding the
// transport uses.
type wireHistoryEntry struct {
	Move    json.RawMessage `json:"move"`
	IsCheck bool            `json:"isCheck"`
	Time    TimeAnnotation  `json:"time"`
}

// MarshalJSON implements json.Marshaler for persistence and outbound
// history payloads.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireHistoryEntry{
		Move:    EncodeMove(h.Move),
		IsCheck: h.IsCheck,
		Time:    h.Time,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	var w wireHistoryEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	move, err := DecodeMove(w.Move)
	if err != nil {
		return err
	}
	h.Move, h.IsCheck, h.Time = move, w.IsCheck, w.Time
	return nil
}
