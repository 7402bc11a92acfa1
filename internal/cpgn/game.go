package cpgn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/store"
)

// ErrMalformedGame is returned for a game line that cannot be parsed or
// replayed.
var ErrMalformedGame = errors.New("malformed game")

// Scores from engine-annotated games are not trusted blindly. These bound
// how decisive a game must look before its moves are kept.
const (
	goodScore        = 3 * chess.PawnValue
	okScore          = goodScore / 2
	maxDrawScore     = chess.Value(50)
	minWeightForDraw = 8
	minWeightForWin  = 16
	minPlyPerGame    = 16
)

// outcome is what a game line says about how the game ended.
type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeIgnored          // failed a sanity check
	outcomeUnknown          // result is not w, b or d
)

// gameCheck accumulates the evidence about a game's real result while it
// is replayed.
type gameCheck struct {
	winner       chess.Color // chess.ColorNB until a side is known to win
	drawDetected bool
	weight       [chess.ColorNB + 1]int // indexed by colour, draws at ColorNB
}

func newGameCheck() gameCheck { return gameCheck{winner: chess.ColorNB} }

func abs(v chess.Value) chess.Value {
	if v < 0 {
		return -v
	}
	return v
}

// scoreWinner is the side a score favours. Scores are from the side to move.
func scoreWinner(score chess.Value, stm chess.Color) chess.Color {
	if score > 0 {
		return stm
	}
	return stm.Flip()
}

// observe takes one scored move. It returns false when the score contradicts
// the declared result or an earlier tablebase score.
func (g *gameCheck) observe(score chess.Value, stm chess.Color, declared chess.Color, isDraw func() bool) bool {
	if abs(score) >= chess.ValueTBWinInMaxPly {
		w := scoreWinner(score, stm)
		if g.winner == chess.ColorNB {
			g.winner = w
			if w != declared {
				return false
			}
		} else if g.winner != w {
			return false
		}
	} else if isDraw() {
		g.drawDetected = true
	}

	w := scoreWinner(score, stm)
	switch a := abs(score); {
	case a >= goodScore:
		g.weight[chess.ColorNB] = 0
		g.weight[w] += ternary(score < 0, 4, 2)
		g.weight[w.Flip()] = 0
	case a >= okScore:
		g.weight[chess.ColorNB] /= 2
		g.weight[w] += ternary(score < 0, 2, 1)
		g.weight[w.Flip()] /= 2
	case a <= maxDrawScore:
		g.weight[chess.ColorNB] += 2
		g.weight[chess.White] = 0
		g.weight[chess.Black] = 0
	default:
		g.weight[chess.ColorNB]++
		g.weight[chess.White] /= 2
		g.weight[chess.Black] /= 2
	}
	return true
}

func ternary(c bool, a, b int) int {
	if c {
		return a
	}
	return b
}

// insufficientMaterial recognises the dead endings the importer treats as
// draws: bare kings, a single minor piece, and bishops on the same colour.
func insufficientMaterial(m chess.Material) bool {
	switch m.Total() {
	case 2:
		return true
	case 3:
		return m.CountBoth(chess.Bishop)+m.CountBoth(chess.Knight) == 1
	case 4:
		return m.Count(chess.White, chess.Bishop) == 1 &&
			m.Count(chess.Black, chess.Bishop) == 1 &&
			m.SameColouredBishops()
	}
	return false
}

// verdict decides, after the last move, whether the game is kept.
func (g *gameCheck) verdict(declared chess.Color, plies int) bool {
	if plies < minPlyPerGame {
		return false
	}
	if g.winner == chess.ColorNB {
		switch {
		case g.weight[chess.White] >= minWeightForWin:
			g.winner = chess.White
		case g.weight[chess.Black] >= minWeightForWin:
			g.winner = chess.Black
		}
	}
	switch {
	case g.winner != declared:
		return false
	case declared != chess.ColorNB && g.weight[declared] < minWeightForWin:
		return false
	case declared == chess.ColorNB && !g.drawDetected && g.weight[chess.ColorNB] < minWeightForDraw:
		return false
	}
	return true
}

func parseResult(s string) (chess.Color, bool) {
	switch s {
	case "w":
		return chess.White, true
	case "b":
		return chess.Black, true
	case "d":
		return chess.ColorNB, true
	}
	return chess.ColorNB, false
}

// splitFields splits like a line reader would: a trailing empty field is
// not a field.
func splitFields(s string, sep string) []string {
	if s == "" {
		return nil
	}
	f := strings.Split(s, sep)
	if f[len(f)-1] == "" {
		f = f[:len(f)-1]
	}
	return f
}

// convertGame replays one game, the text between the braces of a line, and
// appends the records it stages to buf. Records are only appended when the
// game passes every check. Move counters in st are updated either way.
func (c *Converter) convertGame(line string, buf []byte, st *Stats) ([]byte, outcome, error) {
	tokens := splitFields(line, ",")
	if len(tokens) < 3 {
		return buf, outcomeIgnored, fmt.Errorf("%w: %d fields", ErrMalformedGame, len(tokens))
	}

	pos, err := chess.NewPosition(tokens[0])
	if err != nil {
		return buf, outcomeIgnored, fmt.Errorf("%w: %v", ErrMalformedGame, err)
	}
	declared, ok := parseResult(tokens[1])
	if !ok {
		return buf, outcomeUnknown, nil
	}

	check := newGameCheck()
	start := len(buf)
	plies := 0
	for _, tok := range tokens[2:] {
		plies++

		parts := splitFields(tok, ":")
		if len(parts) >= 4 {
			return buf[:start], outcomeIgnored, fmt.Errorf("%w: token %q", ErrMalformedGame, tok)
		}
		var moveStr, scoreStr, depthStr string
		if len(parts) > 0 {
			moveStr = strings.TrimRight(parts[0], "+#\r\n")
		}
		if len(parts) > 1 {
			scoreStr = parts[1]
		}
		if len(parts) > 2 {
			depthStr = parts[2]
		}
		if moveStr == "" {
			return buf[:start], outcomeIgnored, fmt.Errorf("%w: empty move at ply %d", ErrMalformedGame, plies)
		}
		m, err := pos.ParseMove(moveStr)
		if err != nil {
			return buf[:start], outcomeIgnored, fmt.Errorf("%w: ply %d: %v", ErrMalformedGame, plies, err)
		}

		score, depth, err := parseAnnotation(scoreStr, depthStr)
		if err != nil {
			return buf[:start], outcomeIgnored, fmt.Errorf("%w: ply %d: %v", ErrMalformedGame, plies, err)
		}

		if depth != chess.DepthNone && score != chess.ValueNone {
			if depth >= c.cfg.MinDepth && depth <= c.cfg.MaxDepth && abs(score) <= c.cfg.MaxValue {
				st.MovesWithScores++
				if plies <= c.cfg.MaxPly {
					e := store.NewEntry(pos.Key(), m, score, depth)
					buf = e.AppendBinary(buf)
				}
			} else {
				st.MovesIgnored++
			}
			if !check.observe(score, pos.SideToMove(), declared, pos.IsDraw) {
				return buf[:start], outcomeIgnored, nil
			}
		} else {
			st.MovesWithoutScores++
		}

		if err := pos.DoMove(m); err != nil {
			return buf[:start], outcomeIgnored, fmt.Errorf("%w: ply %d: %v", ErrMalformedGame, plies, err)
		}

		if !check.drawDetected && insufficientMaterial(pos.Material()) {
			check.drawDetected = true
		}
		if check.drawDetected && check.winner != chess.ColorNB {
			return buf[:start], outcomeIgnored, nil
		}
	}

	if !check.verdict(declared, plies) {
		return buf[:start], outcomeIgnored, nil
	}
	st.WBD[declared]++
	return buf, outcomeAccepted, nil
}

func parseAnnotation(scoreStr, depthStr string) (chess.Value, chess.Depth, error) {
	score, depth := chess.ValueNone, chess.DepthNone
	if s := strings.TrimSpace(scoreStr); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return score, depth, fmt.Errorf("score %q: %w", scoreStr, err)
		}
		score = chess.Value(v)
	}
	if s := strings.TrimSpace(depthStr); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil {
			return score, depth, fmt.Errorf("depth %q: %w", depthStr, err)
		}
		depth = chess.Depth(d)
	}
	return score, depth, nil
}
