package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// ErrNotLoaded is returned by WaitForLoad when no load was ever started.
var ErrNotLoaded = errors.New("no experience loaded")

// loadTask is the future of one background load.
type loadTask struct {
	done chan struct{}
	err  error // valid after done is closed
}

// Load reads filename into the index. With synchronous set it blocks and
// returns the load's result; otherwise the load runs on its own goroutine
// and Load returns nil once it has started. Any load already in flight is
// waited out first.
func (s *Store) Load(filename string, synchronous bool) error {
	_ = s.WaitForLoad()
	s.abort.Store(false)

	t := &loadTask{done: make(chan struct{})}
	s.mu.Lock()
	s.task = t
	s.filename = filename
	s.mu.Unlock()

	go func() {
		defer close(t.done)
		t.err = s.load(filename)
		if t.err != nil {
			s.stats.incLoadFailures()
		}
	}()

	if !synchronous {
		return nil
	}
	return s.WaitForLoad()
}

// WaitForLoad blocks until the current load, if any, has finished and
// returns its result.
func (s *Store) WaitForLoad() error {
	s.mu.Lock()
	t := s.task
	s.mu.Unlock()
	if t == nil {
		return ErrNotLoaded
	}
	<-t.done
	return t.err
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	t := s.task
	s.mu.Unlock()
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Abort asks a running load to stop. The load notices at the next record
// and finishes with ErrAborted.
func (s *Store) Abort() { s.abort.Store(true) }

// load runs on the loader goroutine and is the only writer of the index
// while it runs.
func (s *Store) load(filename string) error {
	s.stats.incLoads()

	f, err := s.fs.OpenFile(filename, os.O_RDONLY, 0)
	if err != nil {
		s.log("Could not open experience file: %s", filename)
		return fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.log("Could not open experience file: %s", filename)
		return fmt.Errorf("stat %s: %w", filename, err)
	}
	size := info.Size()
	if size == 0 {
		s.log("The experience file [%s] is empty", filename)
		return fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}

	rd, err := DetectReader(f, size)
	if err != nil {
		s.log("The file [%s] is not a valid experience file", filename)
		return fmt.Errorf("%s: %w", filename, err)
	}

	count := rd.EntryCount(size)
	if count > s.cfg.MaxEntries {
		s.log("Could not allocate memory for %d experience entries from [%s]", count, filename)
		return fmt.Errorf("%s has %d records: %w", filename, count, ErrTooLarge)
	}
	if !rd.IsCurrent() {
		s.log("Importing experience version (%d) from file [%s]", rd.Version(), filename)
	}

	prevPositions, prevMoves := s.index.Len(), s.index.Moves()

	// Decode the whole file before linking so a failed or aborted load
	// leaves the index as it was.
	arena := make([]Node, count)
	br := bufio.NewReaderSize(f, 64*1024)
	for i := range arena {
		if s.abort.Load() {
			return ErrAborted
		}
		if err := rd.Read(br, &arena[i].Entry); err != nil {
			s.log("Failed to read experience entry #%d of %d", i+1, count)
			return fmt.Errorf("read %s record %d: %w", filename, i+1, err)
		}
	}

	s.arenas = append(s.arenas, arena)
	var duplicates int64
	for i := range arena {
		if !s.index.Link(&arena[i]) {
			duplicates++
		}
	}
	s.stats.addRecordsRead(count)
	s.stats.addDuplicates(duplicates)

	// Only a file loaded on its own can be upgraded in place; rewriting it
	// after a merge would copy in records from the other files.
	if !rd.IsCurrent() && prevMoves == 0 {
		s.log("Upgrading experience file (%s) from version (%d) to version (%d)",
			filename, rd.Version(), CurrentVersion)
		if err := s.save(filename, true); err != nil {
			s.log("Upgrade of [%s] failed: %v", filename, err)
		}
	}

	if prevMoves > 0 {
		s.log("%s -> Total new moves: %d. Total new positions: %d. Duplicate moves: %d",
			filename, s.index.Moves()-prevMoves, s.index.Len()-prevPositions, duplicates)
	} else {
		frag := 0.0
		if count > 0 {
			frag = 100 * float64(duplicates) / float64(count)
		}
		s.log("%s -> Total moves: %d. Total positions: %d. Duplicate moves: %d. Fragmentation: %.2f%%",
			filename, s.index.Moves(), s.index.Len(), duplicates, frag)
	}
	return nil
}
