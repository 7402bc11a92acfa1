package experience

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/freeeve/chessexp/internal/store"
)

// Option names as they appear in "setoption name <Name> value <Value>".
const (
	OptEnabled        = "Experience Enabled"
	OptFile           = "Experience File"
	OptReadonly       = "Experience Readonly"
	OptEvalImportance = "Experience Book Eval Importance"
)

// DefaultFile is used when no experience file is configured.
const DefaultFile = "experience.exp"

// Options are the runtime settings of an Experience.
type Options struct {
	Enabled        bool
	File           string
	Readonly       bool
	EvalImportance int // 0..store.MaxEvalImportance
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{Enabled: true, File: DefaultFile, EvalImportance: 5}
}

func (o *Options) normalize() {
	if o.File == "" {
		o.File = DefaultFile
	}
	if abs, err := filepath.Abs(o.File); err == nil {
		o.File = abs
	}
	o.EvalImportance = min(max(o.EvalImportance, 0), store.MaxEvalImportance)
}

// Options returns the current settings.
func (e *Experience) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// SetOption changes one setting by name. Changing the file or enabling the
// experience (re)loads it; disabling it saves and unloads. Names are matched
// case-insensitively.
func (e *Experience) SetOption(name, value string) error {
	value = strings.TrimSpace(value)

	e.mu.Lock()
	reinit := false
	switch {
	case strings.EqualFold(name, OptEnabled):
		b, err := strconv.ParseBool(value)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s expects true or false, got %q", ErrUsage, OptEnabled, value)
		}
		reinit = b != e.opts.Enabled
		e.opts.Enabled = b
	case strings.EqualFold(name, OptFile):
		prev := e.opts.File
		e.opts.File = unquote(value)
		e.opts.normalize()
		reinit = e.opts.File != prev
	case strings.EqualFold(name, OptReadonly):
		b, err := strconv.ParseBool(value)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s expects true or false, got %q", ErrUsage, OptReadonly, value)
		}
		e.opts.Readonly = b
	case strings.EqualFold(name, OptEvalImportance):
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > store.MaxEvalImportance {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s expects 0..%d, got %q", ErrUsage, OptEvalImportance, store.MaxEvalImportance, value)
		}
		e.opts.EvalImportance = n
	default:
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}
	e.mu.Unlock()

	if reinit {
		return e.Init()
	}
	return nil
}

// unquote strips one pair of surrounding double quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
