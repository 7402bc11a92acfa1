package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options configure NewLogger. The zero value logs at info level to stdout.
type Options struct {
	Out     io.Writer
	Level   string // zerolog level name; empty means info
	NoColor bool
}

// NewLogger returns a zerolog logger configured for console output with a
// short caller column.
func NewLogger(opts Options) (zerolog.Logger, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	output := zerolog.ConsoleWriter{
		Out:        opts.Out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	zerolog.CallerMarshalFunc = shortCaller
	return zerolog.New(output).Level(level).With().Timestamp().Caller().Logger(), nil
}

// shortCaller keeps the file name only, padded for alignment.
func shortCaller(_ uintptr, file string, line int) string {
	return fmt.Sprintf("%-28s", fmt.Sprintf("%s:%d", filepath.Base(file), line))
}
