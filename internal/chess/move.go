package chess

import "fmt"

// Move encoding (uint32), as stored in experience records:
//   bits 0-5:   from square (0-63, a1=0, h8=63)
//   bits 6-11:  to square (0-63)
//   bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
//   bits 15-31: zero
//
// The zero value is MoveNone.
type Move uint32

const (
	moveFromMask   = 0x3F
	moveToMask     = 0xFC0
	movePromoMask  = 0x7000
	movePromoShift = 12
	moveToShift    = 6
)

// MoveNone is the null move. It never appears in a valid record.
const MoveNone Move = 0

// Promotion piece types
const (
	PromoNone   = 0
	PromoQueen  = 1
	PromoRook   = 2
	PromoBishop = 3
	PromoKnight = 4
)

var promoChars = [...]byte{'q', 'r', 'b', 'n'}

// EncodeMove creates a Move from square indices and optional promotion.
// Out of range squares yield MoveNone.
func EncodeMove(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 || promo > PromoKnight {
		return MoveNone
	}
	return Move(uint32(from) | uint32(to)<<moveToShift | uint32(promo)<<movePromoShift)
}

// DecodeMove extracts from square, to square, and promotion from a Move.
func DecodeMove(m Move) (from, to int, promo byte) {
	return m.From(), m.To(), m.Promotion()
}

// From returns the source square index.
func (m Move) From() int { return int(m & moveFromMask) }

// To returns the destination square index.
func (m Move) To() int { return int((m & moveToMask) >> moveToShift) }

// Promotion returns the promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N).
func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

// IsNone reports whether m is the null move.
func (m Move) IsNone() bool { return m.From() == m.To() }

// String returns UCI notation, or "(none)" for the null move.
func (m Move) String() string {
	if m.IsNone() {
		return "(none)"
	}
	return m.ToUCI()
}

// ToUCI converts a Move to UCI notation (e.g., "e2e4", "e7e8q").
func (m Move) ToUCI() string {
	from, to := m.From(), m.To()
	b := []byte{
		byte('a' + from%8), byte('1' + from/8),
		byte('a' + to%8), byte('1' + to/8),
	}
	if p := m.Promotion(); p > 0 && p <= PromoKnight {
		b = append(b, promoChars[p-1])
	}
	return string(b)
}

// MoveFromUCI parses a UCI move string into a Move. It checks syntax only;
// legality is the board's business.
func MoveFromUCI(uci string) (Move, error) {
	if len(uci) < 4 || len(uci) > 5 {
		return MoveNone, fmt.Errorf("bad UCI move length: %q", uci)
	}

	from, err := parseSquare(uci[0:2])
	if err != nil {
		return MoveNone, fmt.Errorf("invalid from square in %q: %w", uci, err)
	}
	to, err := parseSquare(uci[2:4])
	if err != nil {
		return MoveNone, fmt.Errorf("invalid to square in %q: %w", uci, err)
	}

	var promo byte = PromoNone
	if len(uci) == 5 {
		switch uci[4] {
		case 'q', 'Q':
			promo = PromoQueen
		case 'r', 'R':
			promo = PromoRook
		case 'b', 'B':
			promo = PromoBishop
		case 'n', 'N':
			promo = PromoKnight
		default:
			return MoveNone, fmt.Errorf("invalid promotion piece: %c", uci[4])
		}
	}

	return EncodeMove(from, to, promo), nil
}

func parseSquare(s string) (int, error) {
	file := int(s[0]) - 'a'
	rank := int(s[1]) - '1'
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, fmt.Errorf("square %q out of range", s)
	}
	return rank*8 + file, nil
}
