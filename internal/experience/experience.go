// Package experience is the engine-facing side of the experience store: it
// owns the loaded file, applies the runtime options, gates writes, and runs
// the operator commands (show, defrag, merge, imports).
package experience

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/analyze"
	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/eco"
	"github.com/freeeve/chessexp/internal/store"
)

var (
	// ErrDisabled is returned when the experience is disabled or not loaded.
	ErrDisabled = errors.New("experience disabled")
	// ErrUsage is returned for malformed commands and option values.
	ErrUsage = errors.New("usage")
	// ErrUnknownOption is returned by SetOption for names it does not own.
	ErrUnknownOption = errors.New("unknown option")
)

// Config wires an Experience to its collaborators.
type Config struct {
	Options Options
	Store   store.Config // FS, buffer sizes and limits for every store opened

	Out    io.Writer      // operator output, default os.Stdout
	Logger zerolog.Logger // diagnostics

	ECO *eco.Database // optional, names openings in Show

	Analyzer      analyze.Analyzer                 // optional, used by Learn
	NewAnalyzer   func() (analyze.Analyzer, error) // optional, annotates PGN imports
	ImportWorkers int
}

// Experience is safe for concurrent use.
type Experience struct {
	cfg  Config
	out  *syncWriter
	info zerolog.Logger // "info string" lines on out
	log  zerolog.Logger

	mu    sync.Mutex
	opts  Options
	store *store.Store

	paused    atomic.Bool
	bench     atomic.Bool
	benchShot atomic.Bool
}

// New creates an Experience. Nothing is loaded until Init.
func New(cfg Config) *Experience {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	opts := cfg.Options
	opts.normalize()

	out := &syncWriter{w: cfg.Out}
	return &Experience{
		cfg:  cfg,
		out:  out,
		info: newInfoLogger(out),
		log:  cfg.Logger,
		opts: opts,
	}
}

// Output returns the operator output. Writes through it do not interleave
// with the experience's own lines.
func (e *Experience) Output() io.Writer { return e.out }

func (e *Experience) infof(format string, args ...any) {
	e.info.Info().Msgf(format, args...)
}

func (e *Experience) newStore() *store.Store {
	s := store.New(e.cfg.Store)
	s.SetLogger(e.infof)
	return s
}

// Init applies the current options: a disabled experience is unloaded,
// otherwise the configured file is loaded in the background unless it is
// already loaded.
func (e *Experience) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opts.Enabled {
		e.unloadLocked()
		return nil
	}
	if e.store != nil {
		if e.store.Filename() == e.opts.File && e.store.WaitForLoad() == nil {
			return nil
		}
		e.unloadLocked()
	}

	e.store = e.newStore()
	e.log.Debug().Str("file", e.opts.File).Msg("loading experience")
	return e.store.Load(e.opts.File, false)
}

// Enabled reports whether the experience is switched on.
func (e *Experience) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Enabled
}

// Unload saves pending observations and drops the loaded data.
func (e *Experience) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unloadLocked()
}

func (e *Experience) unloadLocked() error {
	if e.store == nil {
		return nil
	}
	err := e.saveLocked()
	e.store.Clear()
	e.store = nil
	return err
}

// Close is Unload.
func (e *Experience) Close() error { return e.Unload() }

// Save appends pending observations to the file. It does nothing when
// there are none or the experience is read-only.
func (e *Experience) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked()
}

func (e *Experience) saveLocked() error {
	if e.store == nil || !e.store.HasNew() || e.opts.Readonly {
		return nil
	}
	// The loaded file, which differs from the option while a file change
	// is being applied.
	file := e.store.Filename()
	if file == "" {
		file = e.opts.File
	}
	return e.store.Save(file, false, false)
}

// WaitForLoad blocks until a background load has finished. A failed load
// leaves an empty experience and is reported on the operator output only.
func (e *Experience) WaitForLoad() {
	e.mu.Lock()
	s := e.store
	e.mu.Unlock()
	if s != nil {
		_ = s.WaitForLoad()
	}
}

// Probe returns the candidates for k, or nil.
func (e *Experience) Probe(k chess.Key) *store.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opts.Enabled || e.store == nil {
		return nil
	}
	return e.store.Probe(k)
}

// FindBest returns the best ranked candidate for k, or nil.
func (e *Experience) FindBest(k chess.Key) *store.Node {
	return e.Probe(k).Best()
}

// writableLocked reports whether observations may be recorded.
func (e *Experience) writableLocked() bool {
	return e.store != nil && e.opts.Enabled && !e.opts.Readonly && !e.paused.Load()
}

// AddPV records a principal-variation observation. In bench mode only the
// first one is kept.
func (e *Experience) AddPV(k chess.Key, m chess.Move, v chess.Value, d chess.Depth) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.writableLocked() {
		return
	}
	if e.bench.Load() && !e.benchShot.Swap(false) {
		return
	}
	e.store.AddPV(k, m, v, d)
}

// AddMultiPV records an alternate-line observation. Nothing is recorded in
// bench mode.
func (e *Experience) AddMultiPV(k chess.Key, m chess.Move, v chess.Value, d chess.Depth) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.writableLocked() || e.bench.Load() {
		return
	}
	e.store.AddMultiPV(k, m, v, d)
}

// Touch creates the configured file with only a signature if it does not
// exist yet.
func (e *Experience) Touch() error {
	e.mu.Lock()
	enabled, file := e.opts.Enabled, e.opts.File
	e.mu.Unlock()
	if !enabled || file == "" {
		return nil
	}
	return store.Touch(e.cfg.Store.FS, file)
}

// Pause stops recording observations until Resume.
func (e *Experience) Pause() { e.paused.Store(true) }

// Resume undoes Pause.
func (e *Experience) Resume() { e.paused.Store(false) }

// Paused reports whether recording is paused.
func (e *Experience) Paused() bool { return e.paused.Load() }

// BeginBench enters bench mode: the file is created if needed and a single
// PV observation may be recorded.
func (e *Experience) BeginBench() error {
	e.bench.Store(true)
	e.benchShot.Store(true)
	return e.Touch()
}

// EndBench leaves bench mode.
func (e *Experience) EndBench() { e.bench.Store(false) }

// NewGame saves what was learnt and resumes learning.
func (e *Experience) NewGame() error {
	err := e.Save()
	e.Resume()
	return err
}

// Stats describes the loaded store.
func (e *Experience) Stats() store.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return store.Stats{File: e.opts.File}
	}
	return e.store.Stats()
}
