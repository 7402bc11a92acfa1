package chess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/freeeve/pgn/v3"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrIllegalMove is returned when a move is not legal in the current position.
var ErrIllegalMove = errors.New("illegal move")

// Board is what the experience store needs from a chess position.
type Board interface {
	Key() Key
	SideToMove() Color
	DoMove(m Move) error
	UndoMove()
	IsDraw() bool
}

const castleFlag = 4

type undo struct {
	fen    string
	packed pgn.PackedPosition
	key    Key
	rule50 int
}

// Position is a Board backed by the pgn move generator. Undo information is
// kept as FEN snapshots; the halfmove clock is tracked here.
type Position struct {
	gs      *pgn.GameState
	fen     string
	key     Key
	stm     Color
	rule50  int
	history []undo
}

// NewPosition sets up a position from FEN. An empty string or "startpos"
// gives the initial position.
func NewPosition(fen string) (*Position, error) {
	var gs *pgn.GameState
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		gs = pgn.NewStartingPosition()
	} else {
		var err error
		gs, err = pgn.NewGame(fen)
		if err != nil {
			return nil, fmt.Errorf("parse FEN %q: %w", fen, err)
		}
	}
	p := &Position{gs: gs}
	if fields := strings.Fields(fen); len(fields) > 4 {
		if n, err := strconv.Atoi(fields[4]); err == nil && n >= 0 {
			p.rule50 = n
		}
	}
	p.refresh()
	return p, nil
}

func (p *Position) refresh() {
	p.fen = p.gs.ToFEN()
	fields := strings.Fields(p.fen)
	p.stm = White
	if len(fields) > 1 && fields[1] == "b" {
		p.stm = Black
	}
	p.key = keyOf(p.gs.Pack(), p.stm)
}

// keyOf hashes the packed position. The side to move is mixed in explicitly.
func keyOf(pp pgn.PackedPosition, stm Color) Key {
	d := xxhash.New()
	_, _ = d.Write(pp[:])
	_, _ = d.Write([]byte{byte(stm)})
	return Key(d.Sum64())
}

// KeyFromFEN returns the position identity for a FEN string.
func KeyFromFEN(fen string) (Key, error) {
	p, err := NewPosition(fen)
	if err != nil {
		return 0, err
	}
	return p.Key(), nil
}

func (p *Position) Key() Key          { return p.key }
func (p *Position) SideToMove() Color { return p.stm }
func (p *Position) FEN() string       { return p.fen }

// Ply returns the number of moves made since the position was set up.
func (p *Position) Ply() int { return len(p.history) }

// State exposes the underlying game state.
func (p *Position) State() *pgn.GameState { return p.gs }

// LegalMoves returns all legal moves in the current position.
func (p *Position) LegalMoves() []Move {
	mvs := pgn.GenerateLegalMoves(p.gs)
	out := make([]Move, 0, len(mvs))
	for _, mv := range mvs {
		out = append(out, MoveOf(mv))
	}
	return out
}

func promoOf(mv pgn.Mv) byte {
	switch mv.Promo {
	case pgn.PromoQueen:
		return PromoQueen
	case pgn.PromoRook:
		return PromoRook
	case pgn.PromoBishop:
		return PromoBishop
	case pgn.PromoKnight:
		return PromoKnight
	}
	return PromoNone
}

// MoveOf converts a pgn move. Castling is always expressed as the king
// moving two squares.
func MoveOf(mv pgn.Mv) Move {
	from, to := int(mv.From), int(mv.To)
	if mv.Flags == castleFlag {
		if to > from {
			to = from + 2
		} else {
			to = from - 2
		}
	}
	return EncodeMove(from, to, promoOf(mv))
}

func (p *Position) lookup(m Move) (pgn.Mv, bool) {
	for _, mv := range pgn.GenerateLegalMoves(p.gs) {
		if MoveOf(mv) == m {
			return mv, true
		}
	}
	return pgn.Mv{}, false
}

// ParseMove parses a UCI move and checks it is legal here.
func (p *Position) ParseMove(s string) (Move, error) {
	m, err := MoveFromUCI(strings.TrimSpace(s))
	if err != nil {
		return MoveNone, err
	}
	if _, ok := p.lookup(m); !ok {
		return MoveNone, fmt.Errorf("%w: %s in %s", ErrIllegalMove, s, p.fen)
	}
	return m, nil
}

// DoMove plays m.
func (p *Position) DoMove(m Move) error {
	mv, ok := p.lookup(m)
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrIllegalMove, m, p.fen)
	}
	u := undo{fen: p.fen, packed: p.gs.Pack(), key: p.key, rule50: p.rule50}
	piece := p.gs.PieceAt(mv.From)
	irreversible := piece == 'P' || piece == 'p' || p.gs.PieceAt(mv.To) != 0
	if err := pgn.ApplyMove(p.gs, mv); err != nil {
		return fmt.Errorf("apply %s: %w", m, err)
	}
	p.history = append(p.history, u)
	if irreversible {
		p.rule50 = 0
	} else {
		p.rule50++
	}
	p.refresh()
	return nil
}

// UndoMove takes back the last move. It is a no-op at the root.
func (p *Position) UndoMove() {
	n := len(p.history)
	if n == 0 {
		return
	}
	u := p.history[n-1]
	p.history = p.history[:n-1]
	gs, err := pgn.NewGame(u.fen)
	if err != nil {
		gs = u.packed.Unpack()
	}
	p.gs = gs
	p.rule50 = u.rule50
	p.refresh()
}

// PlayUCI plays a sequence of UCI moves, stopping at the first bad one.
func (p *Position) PlayUCI(moves []string) error {
	for _, s := range moves {
		m, err := p.ParseMove(s)
		if err != nil {
			return err
		}
		if err := p.DoMove(m); err != nil {
			return err
		}
	}
	return nil
}

// IsDraw reports a draw by the fifty-move rule or by repetition of a
// position reached since the last irreversible move.
func (p *Position) IsDraw() bool {
	if p.rule50 >= 100 && (!p.gs.IsInCheck() || len(pgn.GenerateLegalMoves(p.gs)) > 0) {
		return true
	}

	n := len(p.history)
	limit := min(p.rule50, n)
	for i := 2; i <= limit; i += 2 {
		if p.history[n-i].key == p.key {
			return true
		}
	}
	return false
}

// SAN renders a legal move in standard algebraic notation.
func (p *Position) SAN(m Move) string {
	mv, ok := p.lookup(m)
	if !ok {
		return m.String()
	}

	if mv.Flags == castleFlag {
		if mv.To > mv.From {
			return "O-O" + p.checkSuffix(mv)
		}
		return "O-O-O" + p.checkSuffix(mv)
	}

	const files, ranks = "abcdefgh", "12345678"
	fromSq, toSq := int(mv.From), int(mv.To)

	piece := p.gs.PieceAt(mv.From)
	isPawn := piece == 'P' || piece == 'p'
	isCapture := p.gs.PieceAt(mv.To) != 0 || (isPawn && mv.Flags == 2)

	var sb strings.Builder
	if isPawn {
		if isCapture {
			sb.WriteByte(files[fromSq%8])
			sb.WriteByte('x')
		}
		sb.WriteByte(files[toSq%8])
		sb.WriteByte(ranks[toSq/8])
		if pr := promoOf(mv); pr != PromoNone {
			sb.WriteByte('=')
			sb.WriteByte("QRBN"[pr-1])
		}
		return sb.String() + p.checkSuffix(mv)
	}

	upper := piece
	if upper >= 'a' && upper <= 'z' {
		upper -= 'a' - 'A'
	}
	sb.WriteByte(byte(upper))

	for _, other := range pgn.GenerateLegalMoves(p.gs) {
		if other.To != mv.To || other.From == mv.From {
			continue
		}
		op := p.gs.PieceAt(other.From)
		if op >= 'a' && op <= 'z' {
			op -= 'a' - 'A'
		}
		if op != upper {
			continue
		}
		switch o := int(other.From); {
		case o%8 != fromSq%8:
			sb.WriteByte(files[fromSq%8])
		case o/8 != fromSq/8:
			sb.WriteByte(ranks[fromSq/8])
		default:
			sb.WriteByte(files[fromSq%8])
			sb.WriteByte(ranks[fromSq/8])
		}
		break
	}

	if isCapture {
		sb.WriteByte('x')
	}
	sb.WriteByte(files[toSq%8])
	sb.WriteByte(ranks[toSq/8])
	return sb.String() + p.checkSuffix(mv)
}

func (p *Position) checkSuffix(mv pgn.Mv) string {
	next := p.gs.Pack().Unpack()
	if next == nil || pgn.ApplyMove(next, mv) != nil || !next.IsInCheck() {
		return ""
	}
	if len(pgn.GenerateLegalMoves(next)) == 0 {
		return "#"
	}
	return "+"
}

func (p *Position) String() string { return p.fen }
