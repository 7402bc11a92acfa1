package store

import (
	"sync"
	"sync/atomic"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/fs"
)

// Config configures a Store.
type Config struct {
	FS              fs.FileSystem // default fs.Default
	WriteBufferSize int           // bytes buffered before a write, default 16MB
	MinDepth        chess.Depth   // shallowest depth persisted, default MinDepth
	MaxEntries      int64         // largest file (in records) a load will allocate, default 1<<28
}

// DefaultWriteBufferSize is the batch size used by saves and imports.
const DefaultWriteBufferSize = 16 * 1024 * 1024

func (c *Config) applyDefaults() {
	if c.FS == nil {
		c.FS = fs.Default
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.MinDepth == 0 {
		c.MinDepth = MinDepth
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 1 << 28
	}
}

// Store owns the in-memory index of one experience file and everything
// needed to load and persist it.
//
// At most one load runs at a time, on its own goroutine. Probe returns
// nothing while a load is in flight; Add*, Save and the maintenance
// operations first wait for it. Callers must not invoke Add* or Save
// concurrently with each other.
type Store struct {
	cfg Config
	fs  fs.FileSystem

	index *Index

	// Every Node lives either in a load arena or in a pending or retired
	// buffer. None of them is freed before Clear, so chain pointers stay valid.
	arenas  [][]Node
	pv      []*Node
	multiPV []*Node
	retired [][]*Node

	mu       sync.Mutex // guards task and filename
	task     *loadTask
	filename string
	abort    atomic.Bool

	stats StatsCollector

	logFunc func(format string, args ...any)
}

// New creates an empty Store.
func New(cfg Config) *Store {
	cfg.applyDefaults()
	return &Store{
		cfg:   cfg,
		fs:    cfg.FS,
		index: newIndex(),
	}
}

// SetLogger sets a function that receives progress and error messages.
func (s *Store) SetLogger(f func(format string, args ...any)) {
	s.logFunc = f
}

func (s *Store) log(format string, args ...any) {
	if s.logFunc != nil {
		s.logFunc(format, args...)
	}
}

// Filename returns the file named by the most recent Load.
func (s *Store) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filename
}

// Probe returns the chain of candidates for k, or nil if there is none or a
// load is still running.
func (s *Store) Probe(k chess.Key) *Node {
	if s.Loading() {
		return nil
	}
	return s.index.Probe(k)
}

// FindBest returns the highest ranked candidate for k.
func (s *Store) FindBest(k chess.Key) *Node {
	if s.Loading() {
		return nil
	}
	return s.index.FindBest(k)
}

// AddPV records a principal-variation observation.
func (s *Store) AddPV(k chess.Key, m chess.Move, v chess.Value, d chess.Depth) {
	s.pv = s.add(s.pv, k, m, v, d)
}

// AddMultiPV records an alternate-line observation.
func (s *Store) AddMultiPV(k chess.Key, m chess.Move, v chess.Value, d chess.Depth) {
	s.multiPV = s.add(s.multiPV, k, m, v, d)
}

func (s *Store) add(buf []*Node, k chess.Key, m chess.Move, v chess.Value, d chess.Depth) []*Node {
	_ = s.WaitForLoad()
	n := &Node{Entry: NewEntry(k, m, v, d)}
	s.index.Link(n)
	return append(buf, n)
}

// HasNew reports whether observations are waiting to be saved.
func (s *Store) HasNew() bool { return len(s.pv) > 0 || len(s.multiPV) > 0 }

// Index returns the underlying index. It must not be used while a load runs.
func (s *Store) Index() *Index { return s.index }

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() Stats {
	st := Stats{
		File:    s.Filename(),
		Loading: s.Loading(),
	}
	if !st.Loading {
		st.Positions = s.index.Len()
		st.Moves = s.index.Moves()
		st.PendingPV = len(s.pv)
		st.PendingMultiPV = len(s.multiPV)
	}
	s.stats.fill(&st)
	return st
}

// Clear aborts any load, waits for it to exit and drops all data. The
// Store can be reused afterwards.
func (s *Store) Clear() {
	s.abort.Store(true)
	_ = s.WaitForLoad()

	s.index = newIndex()
	s.arenas = nil
	s.pv, s.multiPV, s.retired = nil, nil, nil

	s.mu.Lock()
	s.task = nil
	s.mu.Unlock()
	s.abort.Store(false)
}

// Close is Clear for callers that are done with the Store.
func (s *Store) Close() error {
	s.Clear()
	return nil
}
