package experience

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessexp/internal/analyze"
	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/eco"
	"github.com/freeeve/chessexp/internal/store"
)

type harness struct {
	*Experience
	out  *bytes.Buffer
	file string
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	out := &bytes.Buffer{}
	file := filepath.Join(t.TempDir(), "test.exp")
	cfg := Config{
		Options: Options{Enabled: true, File: file, EvalImportance: 5},
		Out:     out,
		Logger:  zerolog.New(zerolog.NewTestWriter(t)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(cfg)
	require.NoError(t, e.Init())
	e.WaitForLoad()
	t.Cleanup(func() { _ = e.Close() })
	return &harness{Experience: e, out: out, file: cfg.Options.File}
}

func startpos(t *testing.T) *chess.Position {
	t.Helper()
	pos, err := chess.NewPosition("startpos")
	require.NoError(t, err)
	return pos
}

func mustMove(t *testing.T, uci string) chess.Move {
	t.Helper()
	m, err := chess.MoveFromUCI(uci)
	require.NoError(t, err)
	return m
}

func TestExperience_LearnSaveReload(t *testing.T) {
	h := newHarness(t, nil)
	pos := startpos(t)

	h.AddPV(pos.Key(), mustMove(t, "e2e4"), 35, 20)
	h.AddMultiPV(pos.Key(), mustMove(t, "d2d4"), 30, 20)
	require.NoError(t, h.Save())

	require.NoError(t, h.Unload())
	require.NoError(t, h.Init())
	h.WaitForLoad()

	best := h.FindBest(pos.Key())
	require.NotNil(t, best)
	assert.Equal(t, mustMove(t, "e2e4"), best.Move)
	assert.Equal(t, 2, h.Stats().Moves)
}

func TestExperience_WriteGates(t *testing.T) {
	pos := startpos(t)
	e4 := mustMove(t, "e2e4")

	t.Run("readonly", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.Options.Readonly = true })
		h.AddPV(pos.Key(), e4, 35, 20)
		assert.Nil(t, h.Probe(pos.Key()))
	})

	t.Run("paused", func(t *testing.T) {
		h := newHarness(t, nil)
		h.Pause()
		h.AddPV(pos.Key(), e4, 35, 20)
		assert.Nil(t, h.Probe(pos.Key()))
		require.NoError(t, h.NewGame())
		assert.False(t, h.Paused())
		h.AddPV(pos.Key(), e4, 35, 20)
		assert.NotNil(t, h.Probe(pos.Key()))
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.SetOption(OptEnabled, "false"))
		h.AddPV(pos.Key(), e4, 35, 20)
		assert.Nil(t, h.Probe(pos.Key()))
		_, err := h.Candidates(pos)
		assert.ErrorIs(t, err, ErrDisabled)
	})

	t.Run("bench single shot", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.BeginBench())
		assert.FileExists(t, h.file)

		h.AddMultiPV(pos.Key(), mustMove(t, "d2d4"), 30, 20)
		h.AddPV(pos.Key(), e4, 35, 20)
		h.AddPV(pos.Key(), mustMove(t, "c2c4"), 35, 20)
		h.EndBench()

		assert.Equal(t, 1, h.Stats().Moves)
		assert.NotNil(t, h.Probe(pos.Key()).FindMove(e4))
	})
}

func TestExperience_SetOption(t *testing.T) {
	h := newHarness(t, nil)
	pos := startpos(t)
	h.AddPV(pos.Key(), mustMove(t, "e2e4"), 35, 20)

	other := filepath.Join(t.TempDir(), "other.exp")
	require.NoError(t, h.SetOption("experience file", `"`+other+`"`))
	h.WaitForLoad()
	assert.Equal(t, other, h.Options().File)
	assert.Nil(t, h.Probe(pos.Key()), "switched to an empty file")

	// The previous file got the pending observation on unload.
	assert.FileExists(t, h.file)

	assert.ErrorIs(t, h.SetOption(OptEvalImportance, "11"), ErrUsage)
	assert.ErrorIs(t, h.SetOption(OptReadonly, "maybe"), ErrUsage)
	assert.ErrorIs(t, h.SetOption("Hash", "16"), ErrUnknownOption)

	require.NoError(t, h.SetOption(OptEvalImportance, "0"))
	require.NoError(t, h.SetOption(OptReadonly, "true"))
	assert.Equal(t, 0, h.Options().EvalImportance)
	assert.True(t, h.Options().Readonly)
}

func TestExperience_Show(t *testing.T) {
	db := eco.NewDatabase()
	require.NoError(t, db.Load(strings.NewReader("B00\tKing's Pawn Game\t1. e4\n")))
	h := newHarness(t, func(c *Config) { c.ECO = db })
	pos := startpos(t)

	require.NoError(t, h.Show(pos, false))
	assert.Contains(t, h.out.String(), "No experience data found for this position")

	for range 3 {
		h.AddPV(pos.Key(), mustMove(t, "e2e4"), 35, 20)
	}
	h.AddMultiPV(pos.Key(), mustMove(t, "d2d4"), chess.MateValue(3), 30)

	h.out.Reset()
	require.NoError(t, h.Show(pos, true))
	got := h.out.String()
	assert.Contains(t, got, "Fen: "+pos.FEN())
	assert.Contains(t, got, "1 : e2e4 , depth: 20, eval: cp 16 , count: 3     , quality: ")
	assert.Contains(t, got, "d2d4 , depth: 30, eval: cp 15382 (mate 3)")

	require.NoError(t, pos.PlayUCI([]string{"e2e4"}))
	h.out.Reset()
	require.NoError(t, h.Show(pos, false))
	assert.Contains(t, h.out.String(), "Opening: B00 King's Pawn Game")
}

func TestExperience_Candidates(t *testing.T) {
	h := newHarness(t, nil)
	pos := startpos(t)
	h.AddPV(pos.Key(), mustMove(t, "g1f3"), 10, 20)
	for range 5 {
		h.AddPV(pos.Key(), mustMove(t, "e2e4"), 35, 20)
	}

	cands, err := h.Candidates(pos)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "e2e4", cands[0].Move)
	assert.Equal(t, "e4", cands[0].SAN)
	assert.Equal(t, "Nf3", cands[1].SAN)
	assert.GreaterOrEqual(t, cands[0].Quality, cands[1].Quality)
	assert.Equal(t, chess.StartFEN, pos.FEN(), "position restored")
}

func TestExperience_CommandUsage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, h.Defrag([]string{"a", "b"}), ErrUsage)
	assert.ErrorIs(t, h.Merge(nil), ErrUsage)
	assert.ErrorIs(t, h.ImportCPGN(ctx, nil), ErrUsage)
	assert.ErrorIs(t, h.CPGNToExp(ctx, []string{"a"}), ErrUsage)
	assert.ErrorIs(t, h.CPGNToExp(ctx, []string{"a", "b", "ten"}), ErrUsage)
	assert.ErrorIs(t, h.ImportPGN(ctx, nil), ErrUsage)
	assert.ErrorIs(t, h.PGNToExp(ctx, []string{"a"}), ErrUsage)
	assert.ErrorIs(t, h.Learn(startpos(t), 0), analyze.ErrNoEngine)
}

func TestExperience_DefragAndMerge(t *testing.T) {
	h := newHarness(t, nil)
	pos := startpos(t)
	h.AddPV(pos.Key(), mustMove(t, "e2e4"), 40, 20)
	h.AddPV(pos.Key(), mustMove(t, "e2e4"), 20, 20)
	require.NoError(t, h.Save())

	// Default target is the configured file.
	require.NoError(t, h.Defrag(nil))
	s := store.New(store.Config{})
	t.Cleanup(s.Clear)
	require.NoError(t, s.Load(h.file, true))
	assert.Equal(t, 1, s.Index().Moves())
	assert.Zero(t, s.Stats().Duplicates)

	src := filepath.Join(t.TempDir(), "src.exp")
	o := New(Config{Options: Options{Enabled: true, File: src}, Out: &bytes.Buffer{}})
	require.NoError(t, o.Init())
	o.AddPV(pos.Key(), mustMove(t, "d2d4"), 30, 20)
	require.NoError(t, o.Close())

	require.NoError(t, h.Merge([]string{src}))
	s2 := store.New(store.Config{})
	t.Cleanup(s2.Clear)
	require.NoError(t, s2.Load(h.file, true))
	assert.Equal(t, 2, s2.Index().Moves())
}

const italianGame = `[Event "t"]
[White "a"]
[Black "b"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5 4. c3 Nf6 5. d3 d6 6. Nbd2 a6 7. a4 h6 8. h3 Be6 1-0
`

type sideAnalyzer struct{}

// Analyze says white is winning, from the side to move's point of view.
func (sideAnalyzer) Analyze(fen string) ([]analyze.Line, error) {
	v := chess.Value(700)
	if strings.Fields(fen)[1] == "b" {
		v = -700
	}
	return []analyze.Line{{Rank: 1, Depth: 22, Value: v, Moves: []string{"a2a3"}}}, nil
}

func (sideAnalyzer) Close() error { return nil }

func TestExperience_PGNToExp(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.NewAnalyzer = func() (analyze.Analyzer, error) { return sideAnalyzer{}, nil }
	})
	pgnPath := filepath.Join(t.TempDir(), "games.pgn")
	require.NoError(t, os.WriteFile(pgnPath, []byte(italianGame), 0o644))

	dst := filepath.Join(t.TempDir(), "out.exp")
	require.NoError(t, h.PGNToExp(context.Background(), []string{pgnPath, dst}))
	assert.NoFileExists(t, dst+".import.cpgn")

	s := store.New(store.Config{})
	t.Cleanup(s.Clear)
	require.NoError(t, s.Load(dst, true))
	assert.Equal(t, 16, s.Index().Moves())
	assert.False(t, h.Paused(), "learning resumed after the import")
}

func TestExperience_PGNToExpKeepsPause(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.NewAnalyzer = func() (analyze.Analyzer, error) { return sideAnalyzer{}, nil }
	})
	pgnPath := filepath.Join(t.TempDir(), "games.pgn")
	require.NoError(t, os.WriteFile(pgnPath, []byte(italianGame), 0o644))

	h.Pause()
	dst := filepath.Join(t.TempDir(), "out.exp")
	require.NoError(t, h.PGNToExp(context.Background(), []string{pgnPath, dst}))
	assert.True(t, h.Paused(), "a pause from before the import is kept")
}

type fixedAnalyzer struct {
	depth  int
	called []int
}

func (f *fixedAnalyzer) Analyze(fen string) ([]analyze.Line, error) {
	return f.AnalyzeDepth(fen, 0)
}

func (f *fixedAnalyzer) AnalyzeDepth(_ string, depth int) ([]analyze.Line, error) {
	if depth <= 0 {
		depth = f.depth
	}
	f.called = append(f.called, depth)
	return []analyze.Line{
		{Rank: 1, Depth: chess.Depth(depth), Value: 30, Moves: []string{"e2e4"}},
		{Rank: 2, Depth: chess.Depth(depth), Value: 20, Moves: []string{"d2d4"}},
	}, nil
}

func (f *fixedAnalyzer) Close() error { return nil }

func TestExperience_Learn(t *testing.T) {
	a := &fixedAnalyzer{depth: 10}
	h := newHarness(t, func(c *Config) { c.Analyzer = a })
	pos := startpos(t)

	require.NoError(t, h.Learn(pos, 24))
	assert.Equal(t, 10, a.depth, "configured depth unchanged")

	n := h.Probe(pos.Key())
	require.NotNil(t, n)
	assert.Equal(t, chess.Depth(24), n.FindMove(mustMove(t, "e2e4")).Depth)
	assert.NotNil(t, n.FindMove(mustMove(t, "d2d4")))
	assert.Contains(t, h.out.String(), "info string learned multipv 1 depth 24 move e2e4")
}

func TestExperience_LearnAfterBenchUsesConfiguredDepth(t *testing.T) {
	a := &fixedAnalyzer{depth: 20}
	h := newHarness(t, func(c *Config) { c.Analyzer = a })
	pos := startpos(t)

	require.NoError(t, h.BeginBench())
	require.NoError(t, h.Learn(pos, 13))
	h.EndBench()
	require.NoError(t, h.Learn(pos, 0))

	assert.Equal(t, []int{13, 20}, a.called)
}
