package store

import (
	"encoding/binary"
	"math"

	"github.com/freeeve/chessexp/internal/chess"
)

// EntrySize is the on-disk size of a record in every supported version.
const EntrySize = 24

// MinDepth is the shallowest search depth persisted by a full rewrite.
const MinDepth chess.Depth = 4

// v1Padding fills the last four bytes of a version 1 record.
var v1Padding = [4]byte{0x00, 0xFF, 0x00, 0xFF}

// Entry is one experience record in its current (version 2) shape:
//
//	key u64 | move u32 | value i32 | depth i32 | count u16 | pad u16
type Entry struct {
	Key   chess.Key
	Move  chess.Move
	Value chess.Value
	Depth chess.Depth
	Count uint16
}

// NewEntry returns a single observation (count 1).
func NewEntry(k chess.Key, m chess.Move, v chess.Value, d chess.Depth) Entry {
	return Entry{Key: k, Move: m, Value: v, Depth: d, Count: 1}
}

// SaturatingAdd16 adds two uint16 values, clamping at 65535.
func SaturatingAdd16(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b)
	if sum > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(sum)
}

// Merge folds o into e. Both must describe the same key and move.
// Equal depths average the values; a deeper o replaces value and depth;
// a shallower o only contributes its count.
func (e *Entry) Merge(o *Entry) {
	e.Count = SaturatingAdd16(e.Count, o.Count)
	switch {
	case e.Depth == o.Depth:
		e.Value = (e.Value + o.Value) / 2
	case e.Depth < o.Depth:
		e.Value = o.Value
		e.Depth = o.Depth
	}
}

const (
	depthScale = 10
	countScale = 3
)

func scaledV2(v chess.Value, d chess.Depth, c uint16) int64 {
	return int64(v) * int64(max(d/depthScale, 1)) * int64(max(int(c)/countScale, 1))
}

// Compare ranks e against o. A positive result means e is the more
// trustworthy move. Ties on the scaled value go to the higher count, then
// the greater depth.
func (e *Entry) Compare(o *Entry) int {
	if v := scaledV2(e.Value, e.Depth, e.Count) - scaledV2(o.Value, o.Depth, o.Count); v != 0 {
		return sign(v)
	}
	if v := int(e.Count) - int(o.Count); v != 0 {
		return v
	}
	return int(e.Depth - o.Depth)
}

func sign(v int64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// AppendBinary appends the version 2 encoding of e to dst.
func (e *Entry) AppendBinary(dst []byte) []byte {
	var buf [EntrySize]byte
	e.encode(buf[:])
	return append(dst, buf[:]...)
}

func (e *Entry) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Key))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.Move))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Value))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(e.Depth))
	binary.LittleEndian.PutUint16(buf[20:22], e.Count)
	buf[22], buf[23] = 0, 0
}

func (e *Entry) decode(buf []byte) {
	e.Key = chess.Key(binary.LittleEndian.Uint64(buf[0:8]))
	e.Move = chess.Move(binary.LittleEndian.Uint32(buf[8:12]))
	e.Value = chess.Value(int32(binary.LittleEndian.Uint32(buf[12:16])))
	e.Depth = chess.Depth(int32(binary.LittleEndian.Uint32(buf[16:20])))
	e.Count = binary.LittleEndian.Uint16(buf[20:22])
}

// LegacyEntry is a version 1 record. It carries no occurrence count.
type LegacyEntry struct {
	Key   chess.Key
	Move  chess.Move
	Value chess.Value
	Depth chess.Depth
}

// Merge folds o into e using the version 1 rules.
func (e *LegacyEntry) Merge(o *LegacyEntry) {
	switch {
	case e.Depth == o.Depth:
		e.Value = (e.Value + o.Value) / 2
	case e.Depth < o.Depth:
		e.Value = o.Value
		e.Depth = o.Depth
	}
}

// Compare ranks e against o using the version 1 weighting (value scaled by
// depth/5), with ties going to the greater depth.
func (e *LegacyEntry) Compare(o *LegacyEntry) int {
	const legacyDepthScale = 5
	a := int64(e.Value) * int64(max(e.Depth/legacyDepthScale, 1))
	b := int64(o.Value) * int64(max(o.Depth/legacyDepthScale, 1))
	if a != b {
		return sign(a - b)
	}
	return int(e.Depth - o.Depth)
}

// Upgrade converts to the current shape with a synthesized count of 1.
func (e *LegacyEntry) Upgrade() Entry {
	return Entry{Key: e.Key, Move: e.Move, Value: e.Value, Depth: e.Depth, Count: 1}
}

// AppendBinary appends the version 1 encoding of e to dst.
func (e *LegacyEntry) AppendBinary(dst []byte) []byte {
	var buf [EntrySize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Key))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.Move))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Value))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(e.Depth))
	copy(buf[20:24], v1Padding[:])
	return append(dst, buf[:]...)
}

func (e *LegacyEntry) decode(buf []byte) {
	e.Key = chess.Key(binary.LittleEndian.Uint64(buf[0:8]))
	e.Move = chess.Move(binary.LittleEndian.Uint32(buf[8:12]))
	e.Value = chess.Value(int32(binary.LittleEndian.Uint32(buf[12:16])))
	e.Depth = chess.Depth(int32(binary.LittleEndian.Uint32(buf[16:20])))
}
