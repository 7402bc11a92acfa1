package chess

import "fmt"

// Key is the 64-bit position identity used to index experience.
type Key uint64

// Value is a search score in internal units, from the side to move's point of view.
type Value int32

// Depth is a search depth in plies.
type Depth int32

// Color is the side to move. ColorNB doubles as the "draw" slot in
// per-result tables.
type Color int

const (
	White Color = iota
	Black
	ColorNB
)

// Flip returns the opposite colour. ColorNB is returned unchanged.
func (c Color) Flip() Color {
	if c == ColorNB {
		return c
	}
	return c ^ 1
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// Score and depth limits shared with the search engine that produces experience.
const (
	MaxPly = 246

	ValueZero     Value = 0
	ValueDraw     Value = 0
	ValueMate     Value = 32000
	ValueInfinite Value = 32001
	ValueNone     Value = 32002

	ValueMateInMaxPly  = ValueMate - MaxPly
	ValueTB            = ValueMateInMaxPly - 1
	ValueTBWinInMaxPly = ValueTB - MaxPly

	PawnValue Value = 208

	DepthNone Depth = -7
)

// Centipawns converts an internal score to centipawns.
func Centipawns(v Value) int {
	return int(v) * 100 / int(PawnValue)
}

// FromCentipawns converts a centipawn score to the internal scale, keeping
// it clear of the mate range.
func FromCentipawns(cp int) Value {
	v := Value(cp * int(PawnValue) / 100)
	return min(max(v, -ValueTBWinInMaxPly+1), ValueTBWinInMaxPly-1)
}

// MateIn returns the signed number of moves to mate encoded in v, and false
// when v is not a mate score.
func MateIn(v Value) (int, bool) {
	switch {
	case v >= ValueMate-MaxPly:
		return int(ValueMate-v+1) / 2, true
	case v <= -ValueMate+MaxPly:
		return -int(ValueMate+v+1) / 2, true
	}
	return 0, false
}

// FormatScore renders v as "cp X", followed by "(mate N)" for mate scores.
func FormatScore(v Value) string {
	s := fmt.Sprintf("cp %d", Centipawns(v))
	if m, ok := MateIn(v); ok {
		s += fmt.Sprintf(" (mate %d)", m)
	}
	return s
}

// MateValue converts a "mate in n moves" report into an internal score.
// Negative n means the side to move gets mated.
func MateValue(n int) Value {
	if n > 0 {
		return ValueMate - Value(2*n-1)
	}
	return -ValueMate + Value(-2*n)
}
