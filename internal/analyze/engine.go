// Package analyze drives an external UCI engine and turns its output into
// experience observations.
package analyze

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/chess"
)

// ErrNoEngine is returned when no engine binary is configured.
var ErrNoEngine = errors.New("analysis engine not configured")

// Config configures an Engine.
type Config struct {
	Path    string // engine binary, e.g. from STOCKFISH_PATH
	Depth   int    // search depth, default 20
	MultiPV int    // lines per search, default 1
	HashMB  int    // default 256
	Threads int    // default 1
	Logger  zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.Depth <= 0 {
		c.Depth = 20
	}
	if c.MultiPV <= 0 {
		c.MultiPV = 1
	}
	if c.HashMB <= 0 {
		c.HashMB = 256
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
}

// Line is one principal variation of a search. Value is from the side to
// move's point of view.
type Line struct {
	Rank  int // 1 for the main line
	Depth chess.Depth
	Value chess.Value
	Moves []string
}

// Analyzer searches positions given as FEN.
type Analyzer interface {
	Analyze(fen string) ([]Line, error)
	Close() error
}

// DepthAnalyzer is an Analyzer that can search a single position to a
// depth other than its configured one.
type DepthAnalyzer interface {
	Analyzer
	AnalyzeDepth(fen string, depth int) ([]Line, error)
}

// Engine is an Analyzer backed by a UCI engine process. It is safe for
// concurrent use; searches are serialized.
type Engine struct {
	mu     sync.Mutex
	engine *uci.Engine
	cfg    Config
	log    zerolog.Logger
}

// NewEngine starts the engine binary and configures it.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Path == "" {
		return nil, ErrNoEngine
	}
	cfg.applyDefaults()

	engine, err := uci.NewEngine(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: cfg.MultiPV,
		Ponder:  false,
		OwnBook: false,
	}
	if err := engine.SetOptions(opts); err != nil {
		engine.Close()
		return nil, fmt.Errorf("set options: %w", err)
	}

	cfg.Logger.Debug().
		Str("engine", cfg.Path).
		Int("depth", cfg.Depth).
		Int("multipv", cfg.MultiPV).
		Msg("analysis engine started")
	return &Engine{engine: engine, cfg: cfg, log: cfg.Logger}, nil
}

// Depth returns the configured search depth.
func (e *Engine) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Depth
}

// Analyze searches fen to the configured depth and returns the deepest
// result of every line, best first.
func (e *Engine) Analyze(fen string) ([]Line, error) {
	return e.AnalyzeDepth(fen, 0)
}

// AnalyzeDepth is Analyze searching to depth, or to the configured depth
// when depth is not positive. The configured depth is left unchanged.
func (e *Engine) AnalyzeDepth(fen string, depth int) ([]Line, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if depth <= 0 {
		depth = e.cfg.Depth
	}
	if err := e.engine.SetFEN(fen); err != nil {
		return nil, fmt.Errorf("set FEN: %w", err)
	}
	results, err := e.engine.GoDepth(depth, uci.HighestDepthOnly)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results.Results) == 0 {
		return nil, fmt.Errorf("no results from engine")
	}

	best := make(map[int]Line, e.cfg.MultiPV)
	for _, r := range results.Results {
		rank := max(r.MultiPV, 1)
		if prev, ok := best[rank]; ok && int(prev.Depth) > r.Depth {
			continue
		}
		best[rank] = Line{
			Rank:  rank,
			Depth: chess.Depth(r.Depth),
			Value: scoreValue(r.Score, r.Mate),
			Moves: r.BestMoves,
		}
	}

	lines := make([]Line, 0, len(best))
	for _, l := range best {
		if len(l.Moves) > 0 {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Rank < lines[j].Rank })
	return lines, nil
}

// Close stops the engine process.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.engine != nil {
		e.engine.Close()
		e.engine = nil
	}
	return nil
}

// scoreValue converts a UCI score, centipawns or moves to mate, to the
// internal scale.
func scoreValue(score int, mate bool) chess.Value {
	if mate {
		if score == 0 {
			return -chess.ValueMate
		}
		return chess.MateValue(score)
	}
	return chess.FromCentipawns(score)
}
