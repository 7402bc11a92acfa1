package protocol

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/experience"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"exp", []string{"exp"}},
		{"merge  a.exp\tb.exp ", []string{"merge", "a.exp", "b.exp"}},
		{`defrag "my games.exp"`, []string{"defrag", "my games.exp"}},
		{`merge "" x`, []string{"merge", "", "x"}},
		{`defrag "open ended`, []string{"defrag", "open ended"}},
		{`setoption name Experience File value "C:\exp files\a.exp"`,
			[]string{"setoption", "name", "Experience", "File", "value", `C:\exp files\a.exp`}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.line), tt.line)
	}
}

func TestSplitOption(t *testing.T) {
	name, value, ok := splitOption([]string{"name", "Experience", "Book", "Eval", "Importance", "value", "7"})
	require.True(t, ok)
	assert.Equal(t, "Experience Book Eval Importance", name)
	assert.Equal(t, "7", value)

	name, value, ok = splitOption([]string{"name", "Clear", "Hash"})
	require.True(t, ok)
	assert.Equal(t, "Clear Hash", name)
	assert.Empty(t, value)

	_, _, ok = splitOption([]string{"value", "1"})
	assert.False(t, ok)
}

func newHost(t *testing.T) (*Host, *bytes.Buffer, string) {
	t.Helper()
	out := &bytes.Buffer{}
	file := filepath.Join(t.TempDir(), "host.exp")
	exp := experience.New(experience.Config{
		Options: experience.Options{Enabled: true, File: file, EvalImportance: 5},
		Out:     out,
	})
	require.NoError(t, exp.Init())
	t.Cleanup(func() { _ = exp.Close() })
	return NewHost(exp, zerolog.New(zerolog.NewTestWriter(t))), out, file
}

func run(t *testing.T, h *Host, script string) {
	t.Helper()
	require.NoError(t, h.Run(context.Background(), strings.NewReader(script)))
}

func TestHost_Position(t *testing.T) {
	h, _, _ := newHost(t)

	run(t, h, "position startpos moves e2e4 e7e5\n")
	assert.Equal(t, 2, h.Position().Ply())
	assert.True(t, strings.HasPrefix(h.Position().FEN(), "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq"))

	run(t, h, "position fen 8/8/8/8/8/8/4K3/k7 w - - 0 1 moves e2e3\n")
	assert.Equal(t, chess.Black, h.Position().SideToMove())

	before := h.Position().FEN()
	run(t, h, "position startpos moves e2e5\n")
	assert.Equal(t, before, h.Position().FEN(), "illegal move keeps the position")
}

func TestHost_Session(t *testing.T) {
	h, out, file := newHost(t)

	run(t, h, strings.Join([]string{
		"uci",
		"isready",
		"setoption name Experience Book Eval Importance value 3",
		"position startpos",
		"exp",
		"frobnicate",
		"merge",
		"learn",
		"save",
		"quit",
		"isready",
	}, "\n"))

	got := out.String()
	assert.Contains(t, got, "id name chessexp\n")
	assert.Contains(t, got, "option name Experience File type string default "+file+"\n")
	assert.Contains(t, got, "uciok\n")
	assert.Equal(t, 1, strings.Count(got, "readyok"), "nothing runs after quit")
	assert.Contains(t, got, "No experience data found for this position")
	assert.Contains(t, got, "info string Error: unknown command: frobnicate\n")
	assert.Contains(t, got, "info string Usage: merge <target.exp>")
	assert.Contains(t, got, "info string Error: analysis engine not configured\n")
	assert.Equal(t, 3, h.exp.Options().EvalImportance)
}

func TestHost_PauseAndNewGame(t *testing.T) {
	h, _, _ := newHost(t)
	run(t, h, "pause\n")
	assert.True(t, h.exp.Paused())
	run(t, h, "resume\npause\nucinewgame\n")
	assert.False(t, h.exp.Paused())
}

func TestHost_DisabledExperience(t *testing.T) {
	h, out, _ := newHost(t)
	run(t, h, "setoption name Experience Enabled value false\nexpex\nexpstats\n")
	assert.Contains(t, out.String(), "info string Experience is disabled\n")
	assert.Contains(t, out.String(), "positions 0 moves 0")
}
