// Package logger holds the process-wide zerolog logger.
//
// cmd/grafeo calls Init once while loading configuration; everything else asks
// for Get, or for Component when the entries should carry a component field.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options is read by the first Init call only.
type Options struct {
	// Level accepts zerolog level names plus "warning". Anything unknown
	// falls back to info.
	Level string
	// Pretty switches to the coloured console writer for local runs.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service and Env are attached to every entry when set.
	Service string
	Env     string
}

var (
	mu     sync.Mutex
	root   zerolog.Logger
	active bool
)

// Init builds the process logger and returns it. Later calls return the
// logger built by the first one and ignore their options.
func Init(opts Options) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if active {
		return root
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)

	fields := zerolog.New(out).Level(level).With().Timestamp().Caller()
	if opts.Service != "" {
		fields = fields.Str("service", opts.Service)
	}
	if opts.Env != "" {
		fields = fields.Str("env", opts.Env)
	}
	root = fields.Logger()
	active = true
	return root
}

// Get returns the process logger and panics when Init has not run, which
// only happens on a wiring mistake.
func Get() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !active {
		panic("logger: Get() called before Init()")
	}
	return root
}

// Component tags the process logger with component=name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset forgets the process logger so tests can call Init again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.Logger{}
	active = false
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return zerolog.WarnLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel || level == zerolog.Disabled {
		return zerolog.InfoLevel
	}
	return level
}
