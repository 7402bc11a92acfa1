package analyze

import (
	"fmt"

	"github.com/freeeve/chessexp/internal/chess"
)

// Recorder receives observations. experience.Experience and store.Store
// both satisfy it.
type Recorder interface {
	AddPV(k chess.Key, m chess.Move, v chess.Value, d chess.Depth)
	AddMultiPV(k chess.Key, m chess.Move, v chess.Value, d chess.Depth)
}

// Learn analyses pos and records the first move of every line: the main
// line as a PV observation, the others as MultiPV observations. A positive
// depth searches that deep when a implements DepthAnalyzer. It returns the
// lines it recorded.
func Learn(a Analyzer, pos *chess.Position, rec Recorder, depth int) ([]Line, error) {
	var (
		lines []Line
		err   error
	)
	if da, ok := a.(DepthAnalyzer); ok && depth > 0 {
		lines, err = da.AnalyzeDepth(pos.FEN(), depth)
	} else {
		lines, err = a.Analyze(pos.FEN())
	}
	if err != nil {
		return nil, err
	}

	recorded := lines[:0:0]
	for _, l := range lines {
		if len(l.Moves) == 0 {
			continue
		}
		m, err := pos.ParseMove(l.Moves[0])
		if err != nil {
			return recorded, fmt.Errorf("engine move %q: %w", l.Moves[0], err)
		}
		if l.Rank <= 1 {
			rec.AddPV(pos.Key(), m, l.Value, l.Depth)
		} else {
			rec.AddMultiPV(pos.Key(), m, l.Value, l.Depth)
		}
		recorded = append(recorded, l)
	}
	return recorded, nil
}

// Annotation is an engine verdict on a position, in the form the compact
// game notation carries it.
type Annotation struct {
	Value chess.Value
	Depth chess.Depth
}

// Annotate returns the main line's score and depth for fen.
func Annotate(a Analyzer, fen string) (Annotation, bool, error) {
	lines, err := a.Analyze(fen)
	if err != nil {
		return Annotation{}, false, err
	}
	for _, l := range lines {
		if l.Rank <= 1 {
			return Annotation{Value: l.Value, Depth: l.Depth}, true, nil
		}
	}
	return Annotation{}, false, nil
}
