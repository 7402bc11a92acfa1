package chess

import "strings"

// PieceKind indexes Material counts.
type PieceKind int

const (
	Pawn PieceKind = iota
	Knight
	Bishop
	Rook
	Queen
	King
	pieceKindNB
)

// DarkSquares has a bit set for every dark square (a1 is dark).
const DarkSquares uint64 = 0xAA55AA55AA55AA55

// Material is a piece census of a position.
type Material struct {
	counts  [2][pieceKindNB]int
	bishops [2]uint64
}

// Count returns how many pieces of kind k colour c has.
func (m Material) Count(c Color, k PieceKind) int { return m.counts[c][k] }

// CountBoth returns the number of pieces of kind k on the board.
func (m Material) CountBoth(k PieceKind) int { return m.counts[White][k] + m.counts[Black][k] }

// Total returns the number of pieces on the board, kings included.
func (m Material) Total() int {
	n := 0
	for c := range m.counts {
		for _, v := range m.counts[c] {
			n += v
		}
	}
	return n
}

// Bishops returns the bishop bitboard of colour c.
func (m Material) Bishops(c Color) uint64 { return m.bishops[c] }

// MaterialFromFEN counts the pieces in the placement field of a FEN string.
func MaterialFromFEN(fen string) Material {
	var m Material
	placement, _, _ := strings.Cut(strings.TrimSpace(fen), " ")
	rank, file := 7, 0
	for i := 0; i < len(placement); i++ {
		ch := placement[i]
		switch {
		case ch == '/':
			rank--
			file = 0
		case ch >= '1' && ch <= '8':
			file += int(ch - '0')
		default:
			c := White
			lower := ch
			if ch >= 'a' && ch <= 'z' {
				c = Black
			} else {
				lower = ch + ('a' - 'A')
			}
			var k PieceKind
			switch lower {
			case 'p':
				k = Pawn
			case 'n':
				k = Knight
			case 'b':
				k = Bishop
			case 'r':
				k = Rook
			case 'q':
				k = Queen
			case 'k':
				k = King
			default:
				file++
				continue
			}
			m.counts[c][k]++
			if k == Bishop && rank >= 0 && file < 8 {
				m.bishops[c] |= 1 << uint(rank*8+file)
			}
			file++
		}
	}
	return m
}

// Material returns the piece census of the current position.
func (p *Position) Material() Material { return MaterialFromFEN(p.fen) }

// SameColouredBishops reports whether both sides' bishops all stand on
// squares of a single colour.
func (m Material) SameColouredBishops() bool {
	w, b := m.bishops[White], m.bishops[Black]
	if w == 0 || b == 0 {
		return false
	}
	return (w&DarkSquares != 0 && b&DarkSquares != 0) || (w&^DarkSquares != 0 && b&^DarkSquares != 0)
}
