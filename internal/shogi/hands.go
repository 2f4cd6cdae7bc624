package shogi

import "encoding/json"

// Hands holds, for each side, a multiset over the seven non-promoted
// kinds. King never appears in a hand.
type Hands struct {
	counts [2]map[Kind]int
}

// NewHands returns empty hands for both sides.
func NewHands() *Hands {
	return &Hands{counts: [2]map[Kind]int{
		Sente: {},
		Gote:  {},
	}}
}

// Count returns how many of kind side holds.
func (h *Hands) Count(side Side, kind Kind) int {
	if h.counts[side] == nil {
		return 0
	}
	return h.counts[side][kind]
}

// Add places one kind into side's hand. kind must already be unpromoted;
// callers demote captured pieces before calling Add.
func (h *Hands) Add(side Side, kind Kind) {
	if h.counts[side] == nil {
		h.counts[side] = map[Kind]int{}
	}
	h.counts[side][kind]++
}

// Remove takes one kind out of side's hand. It is a no-op (and returns
// false) if side holds none; callers must check Count/legality first.
func (h *Hands) Remove(side Side, kind Kind) bool {
	if h.Count(side, kind) <= 0 {
		return false
	}
	h.counts[side][kind]--
	return true
}

// Clone deep-copies the hands.
func (h *Hands) Clone() *Hands {
	out := NewHands()
	for side := range h.counts {
		for k, n := range h.counts[side] {
			if n > 0 {
				out.counts[side][k] = n
			}
		}
	}
	return out
}

// Each calls fn for every kind side holds with count > 0, in the stable
// HandKinds order.
func (h *Hands) Each(side Side, fn func(kind Kind, count int)) {
	for _, k := range HandKinds {
		if n := h.Count(side, k); n > 0 {
			fn(k, n)
		}
	}
}

// MarshalJSON exposes counts as [sente, gote] maps so a persisted Room's
// hands round-trip exactly; the field itself is unexported.
func (h *Hands) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.counts)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (h *Hands) UnmarshalJSON(data []byte) error {
	var counts [2]map[Kind]int
	if err := json.Unmarshal(data, &counts); err != nil {
		return err
	}
	h.counts = counts
	return nil
}
