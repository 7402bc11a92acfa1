package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/freeeve/chessexp/internal/fs"
)

// BatchWriter accumulates encoded records and writes them once the buffer
// reaches its limit, or on Flush.
type BatchWriter struct {
	w       io.Writer
	buf     []byte
	limit   int
	written int64
	onFlush func(written int64)
}

// NewBatchWriter returns a BatchWriter over w. onFlush, if set, runs after
// every write with the total number of bytes written so far.
func NewBatchWriter(w io.Writer, limit int, onFlush func(written int64)) *BatchWriter {
	if limit <= 0 {
		limit = DefaultWriteBufferSize
	}
	return &BatchWriter{w: w, buf: make([]byte, 0, min(limit, 1<<20)), limit: limit, onFlush: onFlush}
}

// Add buffers one record.
func (b *BatchWriter) Add(e *Entry) error {
	b.buf = e.AppendBinary(b.buf)
	if len(b.buf) >= b.limit {
		return b.Flush()
	}
	return nil
}

// AddRaw buffers already encoded records.
func (b *BatchWriter) AddRaw(p []byte) error {
	b.buf = append(b.buf, p...)
	if len(b.buf) >= b.limit {
		return b.Flush()
	}
	return nil
}

// Flush writes whatever is buffered.
func (b *BatchWriter) Flush() error {
	if len(b.buf) > 0 {
		n, err := b.w.Write(b.buf)
		b.written += int64(n)
		b.buf = b.buf[:0]
		if err != nil {
			return err
		}
	}
	if b.onFlush != nil {
		b.onFlush(b.written)
	}
	return nil
}

// Written returns the number of bytes handed to the underlying writer.
func (b *BatchWriter) Written() int64 { return b.written }

// Save persists the store to filename. A full rewrite replaces the file with
// the whole index, keeping the previous file as filename+".bak" and putting
// it back if the write fails. Otherwise only pending observations are
// appended. Unless skipWait is set, any running load is waited out first.
func (s *Store) Save(filename string, full, skipWait bool) error {
	if !skipWait {
		_ = s.WaitForLoad()
	}
	return s.save(filename, full)
}

func (s *Store) save(filename string, full bool) error {
	if !s.HasNew() && (!full || s.index.Len() == 0) {
		return nil
	}
	s.stats.incSaves()

	backup := filename + ".bak"
	backedUp := false
	if full && fs.Exists(s.fs, filename) {
		if fs.Exists(s.fs, backup) {
			if err := s.fs.Remove(backup); err != nil {
				s.log("Could not delete existing backup file: %s", backup)
				s.stats.incSaveFailures()
				return fmt.Errorf("%w: remove stale %s: %v", ErrNoBackup, backup, err)
			}
		}
		if err := s.fs.Rename(filename, backup); err != nil {
			s.log("Could not create backup of current experience file")
			s.stats.incSaveFailures()
			return fmt.Errorf("%w: %v", ErrNoBackup, err)
		}
		backedUp = true
	}

	var err error
	if full {
		err = s.writeFull(filename)
	} else {
		err = s.writeIncremental(filename)
	}
	if err != nil {
		s.stats.incSaveFailures()
		switch {
		case backedUp:
			if rerr := s.fs.Rename(backup, filename); rerr != nil {
				s.log("Could not restore backup experience file: %s", backup)
				return errors.Join(err, fmt.Errorf("restore %s: %w", backup, rerr))
			}
		case full:
			// There was nothing to restore; do not leave a torn file behind.
			_ = s.fs.Remove(filename)
		}
		return err
	}

	if len(s.pv) > 0 {
		s.retired = append(s.retired, s.pv)
	}
	if len(s.multiPV) > 0 {
		s.retired = append(s.retired, s.multiPV)
	}
	s.pv, s.multiPV = nil, nil
	return nil
}

// openForAppend opens filename for appending and writes the signature if
// the file is new. It returns the size the file had before this save.
func (s *Store) openForAppend(filename string) (fs.File, int64, error) {
	f, err := s.fs.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		s.log("Failed to open experience file [%s] for writing", filename)
		return nil, 0, fmt.Errorf("open %s for writing: %w", filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", filename, err)
	}
	if info.Size() == 0 {
		if err := WriteHeader(f); err != nil {
			s.log("Failed to write signature to experience file [%s]", filename)
			f.Close()
			return nil, 0, fmt.Errorf("write signature to %s: %w", filename, err)
		}
	}
	return f, info.Size(), nil
}

func (s *Store) writeFull(filename string) error {
	f, _, err := s.openForAppend(filename)
	if err != nil {
		return err
	}

	// Pending observations are linked when added; this only catches strays.
	for _, buf := range [][]*Node{s.pv, s.multiPV} {
		for _, n := range buf {
			if !n.linked {
				s.index.Link(n)
			}
		}
	}

	// Counts are rescaled on a copy; the index only takes them once the
	// file is written.
	bw := NewBatchWriter(f, s.cfg.WriteBufferSize, nil)
	positions, moves := 0, 0
	var (
		werr    error
		scratch []Entry
	)
	s.index.Range(func(head *Node) bool {
		positions++
		scratch = rescaledChain(scratch[:0], head)
		for i := range scratch {
			if scratch[i].Depth < s.cfg.MinDepth {
				continue
			}
			moves++
			if werr = bw.Add(&scratch[i]); werr != nil {
				return false
			}
		}
		return true
	})
	if werr == nil {
		werr = bw.Flush()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		s.log("Failed to save experience entry to experience file [%s]", filename)
		return fmt.Errorf("write %s: %w", filename, werr)
	}

	s.index.Range(func(head *Node) bool {
		rescaleCounts(head)
		s.index.resort(head.Key)
		return true
	})
	s.stats.addRecordsWritten(moves)
	s.log("Saved %d position(s) and %d moves to experience file: %s", positions, moves, filename)
	return nil
}

// rescaledChain appends the entries of the chain at head to dst with their
// counts rescaled, in the order the rescaled chain would have.
func rescaledChain(dst []Entry, head *Node) []Entry {
	start := len(dst)
	var maxCount uint16
	for n := head; n != nil; n = n.next {
		dst = append(dst, n.Entry)
		maxCount = max(maxCount, n.Count)
	}
	scale := 1 + maxCount/128
	chain := dst[start:]
	for i := range chain {
		chain[i].Count = max(chain[i].Count/scale, 1)
	}
	slices.SortStableFunc(chain, func(a, b Entry) int { return -a.Compare(&b) })
	return dst
}

// rescaleCounts divides every count in the chain by 1 + max/128 (floor 1)
// so that counts cannot run away over many rewrites.
func rescaleCounts(head *Node) {
	var maxCount uint16
	for n := head; n != nil; n = n.next {
		maxCount = max(maxCount, n.Count)
	}
	scale := 1 + maxCount/128
	for n := head; n != nil; n = n.next {
		n.Count = max(n.Count/scale, 1)
	}
}

// moveSignature is a cheap (key, move) fingerprint used to drop repeated
// observations within one incremental save. Collisions only cost a record.
func moveSignature(e *Entry) uint64 {
	return uint64(e.Key) ^ uint64(e.Move)*0x9E3779B185EBCA87
}

func (s *Store) writeIncremental(filename string) error {
	f, base, err := s.openForAppend(filename)
	if err != nil {
		return err
	}

	bw := NewBatchWriter(f, s.cfg.WriteBufferSize, nil)
	seen := make(map[uint64]struct{}, len(s.pv)+len(s.multiPV))
	var written [2]int
	var werr error

write:
	for i, buf := range [2][]*Node{s.pv, s.multiPV} {
		for _, n := range buf {
			if n.Depth < s.cfg.MinDepth {
				continue
			}
			sig := moveSignature(&n.Entry)
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			if werr = bw.Add(&n.Entry); werr != nil {
				break write
			}
			written[i]++
		}
	}
	if werr == nil {
		werr = bw.Flush()
	}
	if werr != nil {
		// Drop the partial tail so the file stays record aligned.
		if base == 0 {
			base = int64(len(CurrentSignature))
		}
		_ = f.Truncate(base)
		f.Close()
		s.log("Failed to save experience entry to experience file [%s]", filename)
		return fmt.Errorf("append to %s: %w", filename, werr)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filename, err)
	}

	s.stats.addRecordsWritten(written[0] + written[1])
	s.log("Saved %d PV and %d MultiPV entries to experience file: %s", written[0], written[1], filename)
	return nil
}
