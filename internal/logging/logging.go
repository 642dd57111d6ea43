// Package logging builds the process logger.
//
// The logger is a zerolog.Logger. Console output is used when the destination
// is a terminal, JSON lines otherwise, so the same binary behaves well both
// interactively and under a scheduler. The standard library logger is
// redirected into it so third-party packages that call log.Printf still end up
// in the structured stream.
package logging

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options controls New.
type Options struct {
	// Level is a zerolog level name; unknown or empty means info.
	Level string
	// Format is "console", "json" or "auto".
	Format string
	// Out defaults to os.Stderr.
	Out io.Writer
}

// New returns a configured logger and installs it as the stdlib log output.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if useConsole(opts.Format, out) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()

	stdlog.SetFlags(0)
	stdlog.SetOutput(logger)

	return logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a child logger tagged with component=name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func useConsole(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
