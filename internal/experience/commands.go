package experience

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/freeeve/chessexp/internal/analyze"
	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/cpgn"
	"github.com/freeeve/chessexp/internal/fs"
	"github.com/freeeve/chessexp/internal/ingest"
)

func usage(syntax string) error { return fmt.Errorf("%w: %s", ErrUsage, syntax) }

// Defrag rewrites one experience file, merging duplicates. With no argument
// the configured file is used.
func (e *Experience) Defrag(args []string) error {
	e.WaitForLoad()
	if len(args) == 0 {
		args = []string{e.Options().File}
	}
	if len(args) != 1 {
		return usage("defrag [filename]")
	}

	e.infof("Defragmenting experience file: %s", args[0])
	s := e.newStore()
	defer s.Close()
	return s.Defragment(args[0])
}

// Merge merges experience files into the first one. A single argument is
// merged into the configured file.
func (e *Experience) Merge(args []string) error {
	e.WaitForLoad()
	switch len(args) {
	case 0:
		return usage("merge <target.exp> <file1.exp> [file2.exp] ...")
	case 1:
		args = append([]string{e.Options().File}, args...)
	}

	e.infof("Merging experience files: %s", strings.Join(args, ", "))
	e.infof("Target file: %s", args[0])
	s := e.newStore()
	defer s.Close()
	n, err := s.MergeFiles(args[0], args[1:]...)
	if err != nil {
		return err
	}
	e.infof("Merged %d file(s) into %s", n, args[0])
	return nil
}

// ImportCPGN converts compact game notation into the configured file.
func (e *Experience) ImportCPGN(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("import_cpgn <source.cpgn>")
	}
	return e.CPGNToExp(ctx, []string{args[0], e.Options().File})
}

// CPGNToExp converts compact game notation:
// cpgn_to_exp <source.cpgn> <dest.exp> [maxPly] [maxValue] [minDepth] [maxDepth]
func (e *Experience) CPGNToExp(ctx context.Context, args []string) error {
	e.WaitForLoad()
	const syntax = "cpgn_to_exp <source.cpgn> <dest.exp> [maxPly] [maxValue] [minDepth] [maxDepth]"
	if len(args) < 2 || len(args) > 6 {
		return usage(syntax)
	}

	var nums [4]int
	for i, a := range args[2:] {
		n, err := strconv.Atoi(a)
		if err != nil {
			return usage(syntax)
		}
		nums[i] = n
	}

	c := cpgn.NewConverter(cpgn.Config{
		MaxPly:          nums[0],
		MaxValue:        chess.Value(nums[1]),
		MinDepth:        chess.Depth(nums[2]),
		MaxDepth:        chess.Depth(nums[3]),
		WriteBufferSize: e.cfg.Store.WriteBufferSize,
		FS:              e.cfg.Store.FS,
		Logger:          e.info,
	})
	_, err := c.Convert(ctx, args[0], args[1])
	return err
}

// ImportPGN converts a PGN file into the configured file.
func (e *Experience) ImportPGN(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("import_pgn <source.pgn>")
	}
	return e.PGNToExp(ctx, []string{args[0], e.Options().File})
}

// PGNToExp converts a PGN file to compact game notation, annotated by the
// analysis engine when one is configured, and imports that into dest.
func (e *Experience) PGNToExp(ctx context.Context, args []string) error {
	e.WaitForLoad()
	if len(args) != 2 {
		return usage("pgn_to_exp <source.pgn> <dest.exp>")
	}
	src, dst := args[0], args[1]
	tmp := dst + ".import.cpgn"

	ic := ingest.New(ingest.Config{
		Workers:     e.cfg.ImportWorkers,
		NewAnalyzer: e.cfg.NewAnalyzer,
		PauseDuring: []ingest.Pausable{e},
		FS:          e.cfg.Store.FS,
		Logger:      e.info,
	})
	fsys := e.cfg.Store.FS
	if fsys == nil {
		fsys = fs.Default
	}
	defer fsys.Remove(tmp)

	if _, err := ic.Run(ctx, src, tmp); err != nil {
		return err
	}
	return e.CPGNToExp(ctx, []string{tmp, dst})
}

// Learn analyses pos with the analysis engine and records the result. A
// positive depth overrides the engine's configured depth for this search
// only.
func (e *Experience) Learn(pos *chess.Position, depth int) error {
	a := e.cfg.Analyzer
	if a == nil {
		return analyze.ErrNoEngine
	}
	e.WaitForLoad()

	lines, err := analyze.Learn(a, pos, e, depth)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return errors.New("engine returned no lines")
	}
	for _, l := range lines {
		e.infof("learned multipv %d depth %d move %s eval %s", l.Rank, l.Depth, l.Moves[0], chess.FormatScore(l.Value))
	}
	return nil
}
