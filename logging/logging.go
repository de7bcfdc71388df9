// Package logging builds the zerolog loggers shared by the server, the
// websocket hub and the command line tools.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	Debug   bool
	Console bool
	NoColor bool
	Out     io.Writer
}

var pid = os.Getpid()

// New returns a root logger. JSON lines go to stderr unless Console is set,
// in which case a human readable writer is used.
func New(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	if opts.Console {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000", NoColor: opts.NoColor}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Int("pid", pid).Logger()
}

// Component returns a child logger tagged with a component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Nop returns a disabled logger, handy in tests.
func Nop() zerolog.Logger { return zerolog.Nop() }
