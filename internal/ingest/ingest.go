// Package ingest converts PGN game collections into compact game notation,
// optionally annotating every position with an engine score.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/freeeve/chessexp/internal/analyze"
	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/fs"
)

// Pausable is an interface for components that can be paused during ingest.
// Components that also report Paused() bool are left alone when they are
// already paused.
type Pausable interface {
	Pause()
	Resume()
}

// Config configures a Converter.
type Config struct {
	RatingMin     int                                  // both players must be rated at least this, 0 disables
	MaxGames      int                                  // 0 = unlimited
	AnnotatePlies int                                  // plies per game sent to the engine, 0 = all
	Workers       int                                  // games converted in parallel, default 1
	NewAnalyzer   func() (analyze.Analyzer, error)     // nil writes moves without scores
	PauseDuring   []Pausable                           // components to pause while converting
	ProgressEvery time.Duration                        // default 10s
	FS            fs.FileSystem                        // default fs.Default
	Logger        zerolog.Logger
}

// Stats counts what a conversion did.
type Stats struct {
	Games     int64 // games written
	Skipped   int64 // filtered out or without a result
	Positions int64 // moves written
	Annotated int64 // moves written with a score
}

// Converter writes one compact notation line per PGN game.
type Converter struct {
	cfg Config
	log zerolog.Logger

	games, skipped, positions, annotated atomic.Int64
}

// New creates a Converter.
func New(cfg Config) *Converter {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10 * time.Second
	}
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	return &Converter{cfg: cfg, log: cfg.Logger}
}

func (c *Converter) stats() Stats {
	return Stats{
		Games:     c.games.Load(),
		Skipped:   c.skipped.Load(),
		Positions: c.positions.Load(),
		Annotated: c.annotated.Load(),
	}
}

// Run converts the PGN file src (.pgn or .pgn.zst) to dst. A dst ending in
// .zst is compressed. dst is truncated first.
func (c *Converter) Run(ctx context.Context, src, dst string) (Stats, error) {
	if !IsPGNFile(src) {
		return Stats{}, fmt.Errorf("%s: not a .pgn or .pgn.zst file", src)
	}
	c.log.Info().
		Str("pgn", src).
		Str("output", dst).
		Int("rating_min", c.cfg.RatingMin).
		Int("workers", c.cfg.Workers).
		Bool("annotate", c.cfg.NewAnalyzer != nil).
		Msg("starting PGN conversion")

	var paused []Pausable
	for _, p := range c.cfg.PauseDuring {
		// A collaborator that was paused already stays paused afterwards.
		if ps, ok := p.(interface{ Paused() bool }); ok && ps.Paused() {
			continue
		}
		p.Pause()
		paused = append(paused, p)
	}
	defer func() {
		for _, p := range paused {
			p.Resume()
		}
	}()

	f, err := c.cfg.FS.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return Stats{}, fmt.Errorf("create %s: %w", dst, err)
	}
	var (
		w   io.Writer = f
		enc *zstd.Encoder
	)
	if strings.HasSuffix(strings.ToLower(dst), ".zst") {
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return Stats{}, fmt.Errorf("zstd writer: %w", err)
		}
		w = enc
	}
	bw := bufio.NewWriterSize(w, 1<<20)

	startTime := time.Now()
	err = c.pipeline(ctx, src, bw)
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	if enc != nil {
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	st := c.stats()
	elapsed := time.Since(startTime)
	c.log.Info().
		Str("file", filepath.Base(src)).
		Int64("games", st.Games).
		Int64("skipped", st.Skipped).
		Int64("positions", st.Positions).
		Int64("annotated", st.Annotated).
		Dur("elapsed", elapsed).
		Float64("games_per_sec", float64(st.Games)/max(elapsed.Seconds(), 1e-9)).
		Msg("PGN conversion complete")
	return st, err
}

func (c *Converter) pipeline(ctx context.Context, src string, out *bufio.Writer) error {
	g, gctx := errgroup.WithContext(ctx)
	games := make(chan *pgn.Game, c.cfg.Workers*2)
	lines := make(chan string, c.cfg.Workers*2)

	g.Go(func() error {
		defer close(games)
		return c.readGames(gctx, src, games)
	})

	var wg sync.WaitGroup
	for i := range c.cfg.Workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return c.convertWorker(gctx, i, games, lines)
		})
	}
	go func() {
		wg.Wait()
		close(lines)
	}()

	g.Go(func() error {
		progress := rate.Sometimes{Interval: c.cfg.ProgressEvery}
		for line := range lines {
			if _, err := out.WriteString(line); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			if err := out.WriteByte('\n'); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			progress.Do(func() {
				st := c.stats()
				c.log.Info().
					Str("file", filepath.Base(src)).
					Int64("games", st.Games).
					Int64("skipped", st.Skipped).
					Int64("positions", st.Positions).
					Msg("conversion progress")
			})
		}
		return nil
	})

	return g.Wait()
}

// readGames streams games that pass the filters into out.
func (c *Converter) readGames(ctx context.Context, src string, out chan<- *pgn.Game) error {
	parser := pgn.Games(src)
	sent := 0
	for game := range parser.Games {
		if c.cfg.MaxGames > 0 && sent >= c.cfg.MaxGames {
			c.log.Info().Int("games", sent).Msg("reached max games limit")
			parser.Stop()
			break
		}
		if c.cfg.RatingMin > 0 {
			whiteRating := parseRating(game.Tags["WhiteElo"])
			blackRating := parseRating(game.Tags["BlackElo"])
			if whiteRating < c.cfg.RatingMin || blackRating < c.cfg.RatingMin {
				c.skipped.Add(1)
				continue
			}
		}
		select {
		case out <- game:
			sent++
		case <-ctx.Done():
			parser.Stop()
			return ctx.Err()
		}
	}
	return parser.Err()
}

func (c *Converter) convertWorker(ctx context.Context, id int, in <-chan *pgn.Game, out chan<- string) error {
	var a analyze.Analyzer
	if c.cfg.NewAnalyzer != nil {
		var err error
		if a, err = c.cfg.NewAnalyzer(); err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}
		defer a.Close()
	}

	for game := range in {
		line, ok, err := c.gameLine(game, a)
		if err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}
		if !ok {
			c.skipped.Add(1)
			continue
		}
		select {
		case out <- line:
			c.games.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func resultCode(result string) string {
	switch result {
	case "1-0":
		return "w"
	case "0-1":
		return "b"
	case "1/2-1/2":
		return "d"
	}
	return ""
}

// gameLine replays game and renders it as {fen,result,move[:score:depth],...}.
// The replay stops at the first move that does not apply.
func (c *Converter) gameLine(game *pgn.Game, a analyze.Analyzer) (string, bool, error) {
	result := resultCode(game.Tags["Result"])
	if result == "" {
		return "", false, nil
	}
	pos, err := chess.NewPosition(game.Tags["FEN"])
	if err != nil {
		return "", false, nil
	}

	var sb strings.Builder
	sb.WriteString("{")
	sb.WriteString(pos.FEN())
	sb.WriteString(",")
	sb.WriteString(result)

	written := 0
	for ply, mv := range game.Moves {
		m := chess.MoveOf(mv)

		var ann analyze.Annotation
		scored := false
		if a != nil && (c.cfg.AnnotatePlies == 0 || ply < c.cfg.AnnotatePlies) {
			if ann, scored, err = analyze.Annotate(a, pos.FEN()); err != nil {
				return "", false, fmt.Errorf("annotate %s: %w", pos.FEN(), err)
			}
		}
		if err := pos.DoMove(m); err != nil {
			break
		}

		sb.WriteString(",")
		sb.WriteString(m.ToUCI())
		if scored {
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(int(ann.Value)))
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(int(ann.Depth)))
			c.annotated.Add(1)
		}
		written++
	}
	sb.WriteString("}")

	if written == 0 {
		return "", false, nil
	}
	c.positions.Add(int64(written))
	return sb.String(), true, nil
}

// IsPGNFile reports whether name is a .pgn or .pgn.zst file.
func IsPGNFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == ".pgn" {
		return true
	}
	if ext == ".zst" {
		// Check for .pgn.zst
		base := name[:len(name)-4]
		return filepath.Ext(base) == ".pgn"
	}
	return false
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}
