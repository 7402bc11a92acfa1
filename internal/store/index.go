package store

import (
	"slices"

	"github.com/freeeve/chessexp/internal/chess"
)

// Node is an Entry linked into the chain of its position. Chains are
// singly linked, never cyclic, and ordered by descending Compare.
type Node struct {
	Entry
	next   *Node
	linked bool
}

// Next returns the following candidate, or nil at the tail.
func (n *Node) Next() *Node { return n.next }

// FindMove returns the node for move m in the chain starting at n.
func (n *Node) FindMove(m chess.Move) *Node {
	for ; n != nil; n = n.next {
		if n.Move == m {
			return n
		}
	}
	return nil
}

// FindMoveMinDepth is FindMove restricted to nodes searched at least minDepth deep.
func (n *Node) FindMoveMinDepth(m chess.Move, minDepth chess.Depth) *Node {
	if n = n.FindMove(m); n != nil && n.Depth >= minDepth {
		return n
	}
	return nil
}

// Best returns the highest ranked node of the chain starting at n, which
// is n itself since chains are kept ordered.
func (n *Node) Best() *Node { return n }

// Chain returns the nodes from n to the tail.
func (n *Node) Chain() []*Node {
	var out []*Node
	for ; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// Index maps position keys to chain heads. It is not safe for concurrent
// mutation; the Store serialises writers.
type Index struct {
	heads map[chess.Key]*Node
	moves int
}

func newIndex() *Index {
	return &Index{heads: make(map[chess.Key]*Node)}
}

// Len returns the number of positions.
func (ix *Index) Len() int { return len(ix.heads) }

// Moves returns the number of distinct (position, move) nodes.
func (ix *Index) Moves() int { return ix.moves }

// Probe returns the chain head for k, or nil.
func (ix *Index) Probe(k chess.Key) *Node { return ix.heads[k] }

// FindBest returns the highest ranked candidate for k, or nil.
func (ix *Index) FindBest(k chess.Key) *Node {
	return ix.heads[k].Best()
}

// Link inserts n. It returns false when n was merged into an existing node
// for the same move; n itself is then not part of the index.
func (ix *Index) Link(n *Node) bool {
	n.linked = true
	head := ix.heads[n.Key]
	if head == nil {
		n.next = nil
		ix.heads[n.Key] = n
		ix.moves++
		return true
	}

	if existing := head.FindMove(n.Move); existing != nil {
		existing.Merge(&n.Entry)
		ix.reposition(existing)
		return false
	}

	ix.insert(n)
	ix.moves++
	return true
}

// insert places n before the first node it outranks. Ties keep insertion order.
func (ix *Index) insert(n *Node) {
	var prev *Node
	cur := ix.heads[n.Key]
	for cur != nil && n.Compare(&cur.Entry) <= 0 {
		prev, cur = cur, cur.next
	}
	n.next = cur
	if prev == nil {
		ix.heads[n.Key] = n
	} else {
		prev.next = n
	}
}

// reposition restores chain order after n changed in place.
func (ix *Index) reposition(n *Node) {
	var prev *Node
	for cur := ix.heads[n.Key]; cur != n; cur = cur.next {
		prev = cur
	}
	if (prev == nil || n.Compare(&prev.Entry) <= 0) && (n.next == nil || n.Compare(&n.next.Entry) >= 0) {
		return
	}
	if prev == nil {
		ix.heads[n.Key] = n.next
	} else {
		prev.next = n.next
	}
	n.next = nil
	ix.insert(n)
}

// resort reorders the chain for k, used after counts were rescaled.
func (ix *Index) resort(k chess.Key) {
	nodes := ix.heads[k].Chain()
	if len(nodes) < 2 {
		return
	}
	slices.SortStableFunc(nodes, func(a, b *Node) int { return -a.Compare(&b.Entry) })
	for i := range nodes {
		if i+1 < len(nodes) {
			nodes[i].next = nodes[i+1]
		} else {
			nodes[i].next = nil
		}
	}
	ix.heads[k] = nodes[0]
}

// Range calls fn for every chain head until fn returns false.
func (ix *Index) Range(fn func(head *Node) bool) {
	for _, head := range ix.heads {
		if !fn(head) {
			return
		}
	}
}
