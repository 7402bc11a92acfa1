// Package protocol runs the engine-style line protocol on top of an
// Experience: one command per line, answers and diagnostics written as
// "info string" lines.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/experience"
	"github.com/freeeve/chessexp/internal/store"
)

// Name is reported by the "uci" command.
const Name = "chessexp"

// BenchDepth is the analysis depth of "bench" when none is given.
const BenchDepth = 13

// Host executes protocol commands against one Experience and keeps the
// current position. It is not safe for concurrent use.
type Host struct {
	exp *experience.Experience
	out io.Writer
	log zerolog.Logger
	pos *chess.Position
}

// NewHost returns a Host positioned at the initial position.
func NewHost(exp *experience.Experience, log zerolog.Logger) *Host {
	pos, _ := chess.NewPosition("startpos")
	return &Host{exp: exp, out: exp.Output(), log: log, pos: pos}
}

// Position returns the current position.
func (h *Host) Position() *chess.Position { return h.pos }

// Run reads commands from r until "quit", end of input or ctx is done.
func (h *Host) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.Execute(ctx, sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}

// Execute runs one command line and reports whether it was "quit". Errors
// are written to the output and never stop the host.
func (h *Host) Execute(ctx context.Context, line string) (quit bool) {
	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return false
	}
	cmd, args := tokens[0], tokens[1:]
	h.log.Debug().Str("cmd", cmd).Strs("args", args).Msg("command")

	var err error
	switch cmd {
	case "quit", "stop":
		return cmd == "quit"
	case "uci":
		h.uci()
	case "isready":
		h.exp.WaitForLoad()
		h.println("readyok")
	case "setoption":
		err = h.setOption(args)
	case "position":
		err = h.position(args)
	case "ucinewgame":
		err = h.exp.NewGame()
	case "exp":
		err = h.exp.Show(h.pos, false)
	case "expex":
		err = h.exp.Show(h.pos, true)
	case "expstats":
		h.stats()
	case "defrag":
		err = h.exp.Defrag(args)
	case "merge":
		err = h.exp.Merge(args)
	case "import_cpgn":
		err = h.exp.ImportCPGN(ctx, args)
	case "cpgn_to_exp":
		err = h.exp.CPGNToExp(ctx, args)
	case "import_pgn":
		err = h.exp.ImportPGN(ctx, args)
	case "pgn_to_exp":
		err = h.exp.PGNToExp(ctx, args)
	case "learn":
		err = h.learn(args)
	case "bench":
		err = h.bench(args)
	case "save":
		err = h.exp.Save()
	case "pause":
		h.exp.Pause()
	case "resume":
		h.exp.Resume()
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		h.log.Debug().Err(err).Str("cmd", cmd).Msg("command failed")
		h.println("info string " + errorLine(err))
	}
	return false
}

func (h *Host) println(s string) {
	_, _ = io.WriteString(h.out, s+"\n")
}

func errorLine(err error) string {
	switch {
	case errors.Is(err, experience.ErrUsage):
		return "Usage: " + strings.TrimPrefix(err.Error(), experience.ErrUsage.Error()+": ")
	case errors.Is(err, experience.ErrDisabled):
		return "Experience is disabled"
	}
	return "Error: " + err.Error()
}

func (h *Host) uci() {
	o := h.exp.Options()
	h.println("id name " + Name)
	h.println(fmt.Sprintf("option name %s type check default %t", experience.OptEnabled, o.Enabled))
	h.println(fmt.Sprintf("option name %s type string default %s", experience.OptFile, o.File))
	h.println(fmt.Sprintf("option name %s type check default %t", experience.OptReadonly, o.Readonly))
	h.println(fmt.Sprintf("option name %s type spin default %d min 0 max %d",
		experience.OptEvalImportance, o.EvalImportance, store.MaxEvalImportance))
	h.println("uciok")
}

func (h *Host) setOption(args []string) error {
	name, value, ok := splitOption(args)
	if !ok {
		return fmt.Errorf("%w: setoption name <name> value <value>", experience.ErrUsage)
	}
	return h.exp.SetOption(name, value)
}

// position handles "position startpos|fen <fen> [moves ...]". The current
// position is kept when the command is malformed.
func (h *Host) position(args []string) error {
	const syntax = "position startpos|fen <fen> [moves <move>...]"
	if len(args) == 0 {
		return fmt.Errorf("%w: %s", experience.ErrUsage, syntax)
	}

	var fen string
	rest := args[1:]
	switch args[0] {
	case "startpos":
		fen = "startpos"
	case "fen":
		i := 0
		for i < len(rest) && rest[i] != "moves" {
			i++
		}
		fen, rest = strings.Join(rest[:i], " "), rest[i:]
	default:
		return fmt.Errorf("%w: %s", experience.ErrUsage, syntax)
	}

	pos, err := chess.NewPosition(fen)
	if err != nil {
		return err
	}
	if len(rest) > 0 && rest[0] == "moves" {
		if err := pos.PlayUCI(rest[1:]); err != nil {
			return err
		}
	}
	h.pos = pos
	return nil
}

func (h *Host) learn(args []string) error {
	depth := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: learn [depth]", experience.ErrUsage)
		}
		depth = n
	}
	return h.exp.Learn(h.pos, depth)
}

// bench analyses the initial position once in bench mode, which records at
// most a single observation.
func (h *Host) bench(args []string) error {
	depth := BenchDepth
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: bench [depth]", experience.ErrUsage)
		}
		depth = n
	}
	if err := h.exp.BeginBench(); err != nil {
		return err
	}
	defer h.exp.EndBench()

	pos, _ := chess.NewPosition("startpos")
	return h.exp.Learn(pos, depth)
}

func (h *Host) stats() {
	st := h.exp.Stats()
	h.println(fmt.Sprintf("info string file %s positions %d moves %d duplicates %d pending %d/%d",
		st.File, st.Positions, st.Moves, st.Duplicates, st.PendingPV, st.PendingMultiPV))
}
