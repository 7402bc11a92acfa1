package chess

import (
	"errors"
	"testing"
)

func mustPosition(t *testing.T, fen string) *Position {
	t.Helper()
	p, err := NewPosition(fen)
	if err != nil {
		t.Fatalf("NewPosition(%q): %v", fen, err)
	}
	return p
}

func mustMove(t *testing.T, uci string) Move {
	t.Helper()
	m, err := MoveFromUCI(uci)
	if err != nil {
		t.Fatalf("MoveFromUCI(%q): %v", uci, err)
	}
	return m
}

func TestPosition_KeyIsStable(t *testing.T) {
	a := mustPosition(t, "startpos")
	b := mustPosition(t, StartFEN)
	if a.Key() != b.Key() {
		t.Errorf("startpos key %x != StartFEN key %x", a.Key(), b.Key())
	}
	if a.SideToMove() != White {
		t.Errorf("SideToMove() = %v, want white", a.SideToMove())
	}

	k, err := KeyFromFEN(StartFEN)
	if err != nil {
		t.Fatalf("KeyFromFEN: %v", err)
	}
	if k != a.Key() {
		t.Errorf("KeyFromFEN = %x, want %x", k, a.Key())
	}
}

func TestPosition_DoUndo(t *testing.T) {
	p := mustPosition(t, "")
	root := p.Key()

	if err := p.DoMove(mustMove(t, "e2e4")); err != nil {
		t.Fatalf("DoMove(e2e4): %v", err)
	}
	if p.Key() == root {
		t.Error("key unchanged after e2e4")
	}
	if p.SideToMove() != Black {
		t.Errorf("SideToMove() = %v, want black", p.SideToMove())
	}
	if p.Ply() != 1 {
		t.Errorf("Ply() = %d, want 1", p.Ply())
	}

	p.UndoMove()
	if p.Key() != root {
		t.Errorf("key after undo = %x, want %x", p.Key(), root)
	}
	if p.Ply() != 0 {
		t.Errorf("Ply() = %d, want 0", p.Ply())
	}

	// Undo at the root is a no-op.
	p.UndoMove()
	if p.Key() != root {
		t.Error("undo at root changed the position")
	}
}

func TestPosition_IllegalMove(t *testing.T) {
	p := mustPosition(t, "")
	err := p.DoMove(mustMove(t, "e2e5"))
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("DoMove(e2e5) error = %v, want ErrIllegalMove", err)
	}
	if _, err := p.ParseMove("e1e2"); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("ParseMove(e1e2) error = %v, want ErrIllegalMove", err)
	}
}

func TestPosition_TranspositionSharesKey(t *testing.T) {
	a := mustPosition(t, "")
	if err := a.PlayUCI([]string{"g1f3", "g8f6", "b1c3"}); err != nil {
		t.Fatalf("PlayUCI: %v", err)
	}
	b := mustPosition(t, "")
	if err := b.PlayUCI([]string{"b1c3", "g8f6", "g1f3"}); err != nil {
		t.Fatalf("PlayUCI: %v", err)
	}
	if a.Key() != b.Key() {
		t.Errorf("transposed positions have different keys: %x vs %x", a.Key(), b.Key())
	}
}

func TestPosition_RepetitionDraw(t *testing.T) {
	p := mustPosition(t, "")
	if p.IsDraw() {
		t.Fatal("start position reported as draw")
	}
	if err := p.PlayUCI([]string{"g1f3", "g8f6", "f3g1", "f6g8"}); err != nil {
		t.Fatalf("PlayUCI: %v", err)
	}
	if !p.IsDraw() {
		t.Error("repeated start position not reported as draw")
	}
}

func TestPosition_FiftyMoveDraw(t *testing.T) {
	p := mustPosition(t, "8/8/4k3/8/8/3K4/8/7R w - - 100 80")
	if !p.IsDraw() {
		t.Error("halfmove clock 100 not reported as draw")
	}
}

func TestPosition_SAN(t *testing.T) {
	p := mustPosition(t, "")
	tests := []struct {
		uci  string
		want string
	}{
		{"e2e4", "e4"},
		{"g1f3", "Nf3"},
	}
	for _, tt := range tests {
		if got := p.SAN(mustMove(t, tt.uci)); got != tt.want {
			t.Errorf("SAN(%s) = %q, want %q", tt.uci, got, tt.want)
		}
	}
}

func TestMaterialFromFEN(t *testing.T) {
	m := MaterialFromFEN(StartFEN)
	if got := m.Total(); got != 32 {
		t.Errorf("Total() = %d, want 32", got)
	}
	if got := m.Count(White, Pawn); got != 8 {
		t.Errorf("white pawns = %d, want 8", got)
	}
	if got := m.CountBoth(Bishop); got != 4 {
		t.Errorf("bishops = %d, want 4", got)
	}

	// c1 is dark, f8 is dark.
	kbkb := MaterialFromFEN("5b2/8/4k3/8/8/3K4/8/2B5 w - - 0 1")
	if !kbkb.SameColouredBishops() {
		t.Error("c1/f8 bishops should be on the same colour")
	}
	// c1 is dark, c8 is light.
	opposite := MaterialFromFEN("2b5/8/4k3/8/8/3K4/8/2B5 w - - 0 1")
	if opposite.SameColouredBishops() {
		t.Error("c1/c8 bishops should be on opposite colours")
	}
}

func TestMateIn(t *testing.T) {
	tests := []struct {
		v      Value
		want   int
		isMate bool
	}{
		{MateValue(3), 3, true},
		{MateValue(-2), -2, true},
		{ValueMate - 1, 1, true},
		{PawnValue, 0, false},
	}
	for _, tt := range tests {
		got, ok := MateIn(tt.v)
		if got != tt.want || ok != tt.isMate {
			t.Errorf("MateIn(%d) = (%d, %v), want (%d, %v)", tt.v, got, ok, tt.want, tt.isMate)
		}
	}
	if got := FormatScore(PawnValue); got != "cp 100" {
		t.Errorf("FormatScore(PawnValue) = %q", got)
	}
}
