// Package cpgn builds experience files from compact game notation: one game
// per line, written as
//
//	{<fen>,<w|b|d>,<move>[:<score>[:<depth>]],...}
//
// Scored moves of games that pass a set of sanity checks are appended to
// the output file, which is then defragmented.
package cpgn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/fs"
	"github.com/freeeve/chessexp/internal/store"
)

// Config configures a Converter.
type Config struct {
	MaxPly          int         // plies per game that are staged, default 1000
	MaxValue        chess.Value // largest absolute score kept, default ValueMate
	MinDepth        chess.Depth // raised to store.MinDepth if lower
	MaxDepth        chess.Depth // default chess.MaxPly, never below store.MinDepth
	WriteBufferSize int         // default store.DefaultWriteBufferSize
	MaxLineLength   int         // default 16MB
	FS              fs.FileSystem
	Logger          zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxPly <= 0 {
		c.MaxPly = 1000
	}
	if c.MaxValue <= 0 {
		c.MaxValue = chess.ValueMate
	}
	c.MinDepth = max(c.MinDepth, store.MinDepth)
	if c.MaxDepth == 0 {
		c.MaxDepth = chess.MaxPly
	}
	c.MaxDepth = max(c.MaxDepth, store.MinDepth)
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = store.DefaultWriteBufferSize
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = 16 * 1024 * 1024
	}
	if c.FS == nil {
		c.FS = fs.Default
	}
}

// Stats counts what a conversion saw.
type Stats struct {
	Games           int64
	GamesWithErrors int64
	GamesIgnored    int64
	WBD             [chess.ColorNB + 1]int64 // accepted games by result

	MovesWithScores    int64
	MovesWithoutScores int64
	MovesIgnored       int64 // scored, but outside the depth or value bounds

	BytesWritten int64
}

// Moves returns the number of moves read.
func (s Stats) Moves() int64 {
	return s.MovesWithScores + s.MovesWithoutScores + s.MovesIgnored
}

func (s Stats) String() string {
	return fmt.Sprintf("Games: %d (errors: %d), WBD: %d/%d/%d, Moves: %d (%d with scores, %d without scores, %d ignored). Exp size: %s",
		s.Games, s.GamesWithErrors,
		s.WBD[chess.White], s.WBD[chess.Black], s.WBD[chess.ColorNB],
		s.Moves(), s.MovesWithScores, s.MovesWithoutScores, s.MovesIgnored,
		humanize.IBytes(uint64(s.BytesWritten)))
}

// Converter turns compact game notation into experience records.
type Converter struct {
	cfg Config
	log zerolog.Logger
}

// NewConverter returns a Converter with defaults filled in.
func NewConverter(cfg Config) *Converter {
	cfg.applyDefaults()
	return &Converter{cfg: cfg, log: cfg.Logger}
}

// Config returns the effective configuration.
func (c *Converter) Config() Config { return c.cfg }

// Convert reads src and appends accepted records to dst, creating it if
// needed. When any scored move was kept, dst is defragmented afterwards.
func (c *Converter) Convert(ctx context.Context, src, dst string) (Stats, error) {
	var st Stats

	c.log.Info().
		Str("input", src).
		Str("output", dst).
		Int("max_ply", c.cfg.MaxPly).
		Int32("max_value", int32(c.cfg.MaxValue)).
		Str("depth_range", fmt.Sprintf("%d - %d", c.cfg.MinDepth, c.cfg.MaxDepth)).
		Msg("building experience from compact PGN")

	in, err := openInput(c.cfg.FS, src)
	if err != nil {
		c.log.Error().Err(err).Msgf("Could not open <%s> for reading", src)
		return st, err
	}
	defer in.Close()

	out, err := c.cfg.FS.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		c.log.Error().Err(err).Msgf("Could not open <%s> for writing", dst)
		return st, fmt.Errorf("open %s for writing: %w", dst, err)
	}
	info, err := out.Stat()
	if err != nil {
		out.Close()
		return st, fmt.Errorf("stat %s: %w", dst, err)
	}
	if info.Size() == 0 {
		if err := store.WriteHeader(out); err != nil {
			out.Close()
			return st, fmt.Errorf("write signature to %s: %w", dst, err)
		}
	}

	bw := store.NewBatchWriter(out, c.cfg.WriteBufferSize, func(written int64) {
		st.BytesWritten = written
		c.log.Info().Msgf("%6.2f%% -> %s", in.Percent(), st)
	})

	err = c.scan(ctx, in, bw, &st)
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return st, err
	}

	if st.MovesWithScores == 0 {
		return st, nil
	}

	c.log.Info().Str("file", dst).Msg("Conversion complete. Defragmenting")
	s := store.New(store.Config{FS: c.cfg.FS, WriteBufferSize: c.cfg.WriteBufferSize})
	s.SetLogger(func(format string, args ...any) { c.log.Info().Msgf(format, args...) })
	defer s.Close()
	if err := s.Defragment(dst); err != nil {
		return st, fmt.Errorf("defragment %s: %w", dst, err)
	}
	return st, nil
}

func (c *Converter) scan(ctx context.Context, in *input, bw *store.BatchWriter, st *Stats) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), c.cfg.MaxLineLength)

	var staged []byte
	for lines := 0; sc.Scan(); lines++ {
		if lines%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := strings.TrimRight(sc.Text(), "\r")
		if len(line) < 2 || line[0] != '{' || line[len(line)-1] != '}' {
			continue
		}

		st.Games++
		var (
			res outcome
			err error
		)
		staged, res, err = c.convertGame(line[1:len(line)-1], staged[:0], st)
		switch {
		case err != nil:
			st.GamesWithErrors++
			c.log.Debug().Err(err).Int64("game", st.Games).Msg("skipping game")
			continue
		case res == outcomeIgnored:
			st.GamesIgnored++
			continue
		case res == outcomeUnknown:
			continue
		}

		if err := bw.AddRaw(staged); err != nil {
			return fmt.Errorf("write records: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("game %d: %w", st.Games+1, err)
		}
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
