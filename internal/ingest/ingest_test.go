package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessexp/internal/analyze"
	"github.com/freeeve/chessexp/internal/chess"
)

const testPGN = `[Event "rated"]
[White "a"]
[Black "b"]
[Result "1-0"]
[WhiteElo "2500"]
[BlackElo "2400"]

1. e4 e5 2. Nf3 Nc6 3. Bb5 a6 1-0

[Event "unfinished"]
[White "c"]
[Black "d"]
[Result "*"]
[WhiteElo "2500"]
[BlackElo "2400"]

1. d4 d5 *

[Event "weak"]
[White "e"]
[Black "f"]
[Result "0-1"]
[WhiteElo "1500"]
[BlackElo "1400"]

1. c4 e5 0-1
`

type constAnalyzer struct{}

func (constAnalyzer) Analyze(string) ([]analyze.Line, error) {
	return []analyze.Line{{Rank: 1, Depth: 12, Value: 30, Moves: []string{"a2a3"}}}, nil
}

func (constAnalyzer) Close() error { return nil }

type pauseCounter struct {
	mu             sync.Mutex
	paused, resume int
}

func (p *pauseCounter) Pause()  { p.mu.Lock(); p.paused++; p.mu.Unlock() }
func (p *pauseCounter) Resume() { p.mu.Lock(); p.resume++; p.mu.Unlock() }

// heldPause is a collaborator that was paused before the conversion.
type heldPause struct{ pauseCounter }

func (*heldPause) Paused() bool { return true }

func writePGN(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.pgn")
	require.NoError(t, os.WriteFile(path, []byte(testPGN), 0o644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Fields(strings.ReplaceAll(string(data), " ", "_"))
}

func startFEN(t *testing.T) string {
	t.Helper()
	pos, err := chess.NewPosition("")
	require.NoError(t, err)
	return strings.ReplaceAll(pos.FEN(), " ", "_")
}

func TestRun_Plain(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "games.cpgn")
	p := &pauseCounter{}
	c := New(Config{RatingMin: 2000, Logger: zerolog.New(zerolog.NewTestWriter(t)), PauseDuring: []Pausable{p}})

	st, err := c.Run(context.Background(), writePGN(t), dst)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Games)
	assert.Equal(t, int64(2), st.Skipped)
	assert.Equal(t, int64(6), st.Positions)
	assert.Zero(t, st.Annotated)
	assert.Equal(t, 1, p.paused)
	assert.Equal(t, 1, p.resume)

	lines := readLines(t, dst)
	require.Len(t, lines, 1)
	assert.Equal(t, "{"+startFEN(t)+",w,e2e4,e7e5,g1f3,b8c6,f1b5,a7a6}", lines[0])
}

func TestRun_KeepsPausedCollaboratorPaused(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "games.cpgn")
	held, free := &heldPause{}, &pauseCounter{}
	c := New(Config{Logger: zerolog.New(zerolog.NewTestWriter(t)), PauseDuring: []Pausable{held, free}})

	_, err := c.Run(context.Background(), writePGN(t), dst)
	require.NoError(t, err)
	assert.Zero(t, held.paused)
	assert.Zero(t, held.resume)
	assert.Equal(t, 1, free.paused)
	assert.Equal(t, 1, free.resume)
}

func TestRun_Annotated(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "games.cpgn")
	c := New(Config{
		AnnotatePlies: 2,
		Workers:       2,
		NewAnalyzer:   func() (analyze.Analyzer, error) { return constAnalyzer{}, nil },
		Logger:        zerolog.New(zerolog.NewTestWriter(t)),
	})

	st, err := c.Run(context.Background(), writePGN(t), dst)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Games, "no rating floor")
	assert.Equal(t, int64(4), st.Annotated)

	lines := readLines(t, dst)
	require.Len(t, lines, 2)
	var found bool
	for _, l := range lines {
		if strings.Contains(l, ",w,") {
			found = true
			assert.Equal(t, "{"+startFEN(t)+",w,e2e4:30:12,e7e5:30:12,g1f3,b8c6,f1b5,a7a6}", l)
		}
	}
	assert.True(t, found)
}

func TestRun_RejectsNonPGN(t *testing.T) {
	_, err := New(Config{}).Run(context.Background(), "games.txt", filepath.Join(t.TempDir(), "out.cpgn"))
	assert.Error(t, err)
}

func TestIsPGNFile(t *testing.T) {
	assert.True(t, IsPGNFile("a.pgn"))
	assert.True(t, IsPGNFile("dir/a.pgn.zst"))
	assert.False(t, IsPGNFile("a.zst"))
	assert.False(t, IsPGNFile("a.cpgn"))
}

func TestParseRating(t *testing.T) {
	assert.Equal(t, 0, parseRating("?"))
	assert.Equal(t, 0, parseRating(""))
	assert.Equal(t, 2710, parseRating("2710"))
}
