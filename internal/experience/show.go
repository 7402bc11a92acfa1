package experience

import (
	"fmt"
	"slices"
	"strings"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/eco"
)

// Candidate is one stored move at a position, with its quality.
type Candidate struct {
	Move      string      `json:"move"`
	SAN       string      `json:"san"`
	Depth     chess.Depth `json:"depth"`
	Value     chess.Value `json:"value"`
	Eval      string      `json:"eval"`
	Count     uint16      `json:"count"`
	Quality   int         `json:"quality"`
	MaybeDraw bool        `json:"maybe_draw"`
}

// Candidates lists the moves stored for pos, highest quality first. Equal
// qualities keep chain order. pos is left unchanged.
func (e *Experience) Candidates(pos *chess.Position) ([]Candidate, error) {
	e.WaitForLoad()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opts.Enabled || e.store == nil {
		return nil, ErrDisabled
	}

	var out []Candidate
	for n := e.store.Probe(pos.Key()); n != nil; n = n.Next() {
		q, draw := e.store.Quality(pos, n, e.opts.EvalImportance)
		out = append(out, Candidate{
			Move:      n.Move.ToUCI(),
			SAN:       pos.SAN(n.Move),
			Depth:     n.Depth,
			Value:     n.Value,
			Eval:      chess.FormatScore(n.Value),
			Count:     n.Count,
			Quality:   q,
			MaybeDraw: draw,
		})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int { return b.Quality - a.Quality })
	return out, nil
}

// Opening names the opening pos is in, if an ECO database is configured.
func (e *Experience) Opening(pos *chess.Position) *eco.Opening {
	if e.cfg.ECO == nil {
		return nil
	}
	return e.cfg.ECO.Lookup(pos.Key())
}

// Show prints pos and its candidates. The extended form adds the count and
// quality columns.
func (e *Experience) Show(pos *chess.Position, extended bool) error {
	cands, err := e.Candidates(pos)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nFen: %s\nKey: %016X\n", pos.FEN(), uint64(pos.Key()))
	if o := e.Opening(pos); o != nil {
		fmt.Fprintf(&sb, "Opening: %s\n", o)
	}
	sb.WriteString("\nExperience: ")
	if len(cands) == 0 {
		sb.WriteString("No experience data found for this position\n")
		_, err := e.out.Write([]byte(sb.String()))
		return err
	}

	sb.WriteString("\n")
	for i, c := range cands {
		fmt.Fprintf(&sb, "%-2d: %-5s, depth: %-2d, eval: %-6s", i+1, c.Move, c.Depth, c.Eval)
		if extended {
			fmt.Fprintf(&sb, ", count: %-6d", c.Count)
			if c.Quality == int(chess.ValueNone) {
				fmt.Fprintf(&sb, ", quality: %-6s", "N/A")
			} else {
				fmt.Fprintf(&sb, ", quality: %-6d", c.Quality)
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	_, err = e.out.Write([]byte(sb.String()))
	return err
}
