package chess

import (
	"testing"
)

func TestEncodeDecodeMove(t *testing.T) {
	tests := []struct {
		name  string
		from  int
		to    int
		promo byte
	}{
		{"e2e4", 12, 28, PromoNone},
		{"e7e8q", 52, 60, PromoQueen},
		{"a1h8", 0, 63, PromoNone},
		{"a7a8r", 48, 56, PromoRook},
		{"h2h1b", 15, 7, PromoBishop},
		{"b7b8n", 49, 57, PromoKnight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := EncodeMove(tt.from, tt.to, tt.promo)
			from, to, promo := DecodeMove(m)
			if from != tt.from || to != tt.to || promo != tt.promo {
				t.Errorf("EncodeMove(%d, %d, %d) = %x, decodes to (%d, %d, %d)",
					tt.from, tt.to, tt.promo, m, from, to, promo)
			}
		})
	}
}

func TestEncodeMove_OutOfRange(t *testing.T) {
	for _, m := range []Move{
		EncodeMove(-1, 5, PromoNone),
		EncodeMove(3, 64, PromoNone),
		EncodeMove(8, 16, 7),
	} {
		if m != MoveNone {
			t.Errorf("got %x, want MoveNone", m)
		}
	}
	if !MoveNone.IsNone() {
		t.Error("MoveNone.IsNone() = false")
	}
	if got := MoveNone.String(); got != "(none)" {
		t.Errorf("MoveNone.String() = %q", got)
	}
}

func TestMoveFromUCI(t *testing.T) {
	tests := []struct {
		name    string
		uci     string
		want    Move
		wantErr bool
	}{
		{"e2e4", "e2e4", EncodeMove(12, 28, PromoNone), false},
		{"e7e8q", "e7e8q", EncodeMove(52, 60, PromoQueen), false},
		{"upper promo", "a7a8R", EncodeMove(48, 56, PromoRook), false},
		{"b7b8n", "b7b8n", EncodeMove(49, 57, PromoKnight), false},
		{"invalid", "xyz", MoveNone, true},
		{"too short", "e2e", MoveNone, true},
		{"too long", "e2e4qq", MoveNone, true},
		{"bad rank", "e9e4", MoveNone, true},
		{"bad promo", "e7e8k", MoveNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MoveFromUCI(tt.uci)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MoveFromUCI(%s) error = %v, wantErr %v", tt.uci, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MoveFromUCI(%s) = %x, want %x", tt.uci, got, tt.want)
			}
		})
	}
}

func TestMove_UCI_RoundTrip(t *testing.T) {
	for _, uci := range []string{"e2e4", "e7e8q", "a1h8", "b7b8n", "c7c8b", "d7d8r", "h7h8q"} {
		t.Run(uci, func(t *testing.T) {
			m, err := MoveFromUCI(uci)
			if err != nil {
				t.Fatalf("MoveFromUCI: %v", err)
			}
			if got := m.ToUCI(); got != uci {
				t.Errorf("round trip failed: %s -> %x -> %s", uci, m, got)
			}
		})
	}
}
