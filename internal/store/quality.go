package store

import "github.com/freeeve/chessexp/internal/chess"

const (
	// MaxEvalImportance is the upper bound of the evaluation importance knob.
	MaxEvalImportance = 10
	qualityHorizon    = 10
)

// Quality scores how far the experience for n, a candidate at the position
// b is in, can be trusted. With importance 0 the score is the occurrence
// count alone. Otherwise the best stored continuation is followed for up to
// ten plies and the evaluation trend along that line is weighed in. The
// second result reports whether a draw was met on the way. b is returned to
// its original position.
func (s *Store) Quality(b chess.Board, n *Node, importance int) (int, bool) {
	importance = min(max(importance, 0), MaxEvalImportance)

	q := int(n.Count) * (MaxEvalImportance - importance)
	maybeDraw := false

	if importance == 0 {
		if err := b.DoMove(n.Move); err == nil {
			maybeDraw = b.IsDraw()
			b.UndoMove()
		}
		return q / MaxEvalImportance, maybeDraw
	}

	us := b.SideToMove()
	them := us.Flip()

	var sum, weight [2]int64
	sum[us] = int64(n.Count)
	weight[us] = 1

	var last [2]*Node
	me := us
	cur := n
	played := 0

	for {
		last[me] = cur
		if err := b.DoMove(cur.Move); err != nil {
			break
		}
		played++
		me = me.Flip()

		if !maybeDraw {
			maybeDraw = b.IsDraw()
		}
		if played >= qualityHorizon {
			break
		}

		next := s.Probe(b.Key()).Best()
		if next == nil {
			break
		}
		cur = next

		if last[me] != nil {
			sum[me] += int64(cur.Value - last[me].Value)
			weight[me]++
		}
	}

	for ; played > 0; played-- {
		b.UndoMove()
	}

	total, w := sum[us], weight[us]
	if weight[them] > 0 {
		total -= sum[them]
		w += weight[them]
	}
	q += int(total * int64(importance) / w)

	return q / MaxEvalImportance, maybeDraw
}
