package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Component prefixes.
const (
	PrefixContent = "content"
	PrefixPlayer  = "player"
	PrefixKV      = "kv"
	PrefixAudio   = "audio"
)

// Options controls Setup.
type Options struct {
	// Level is a charmbracelet/log level name. Debug and Trace override it.
	Level string
	Debug bool
	Trace bool

	// File, when set, receives all output instead of Output, with
	// timestamps, at debug level.
	File string

	// Output is the destination when File is empty. Defaults to stderr.
	Output io.Writer
}

var (
	mu    sync.Mutex
	named = make(map[string]*log.Logger)
)

// Setup configures the default logger and every logger handed out by Named.
// The returned closer releases the log file, if any.
func Setup(opts Options) (func() error, error) {
	level, err := resolveLevel(opts)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	closer := func() error { return nil }

	var logger *log.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		closer = f.Close
		logger = log.NewWithOptions(f, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Level:           log.DebugLevel,
		})
	} else {
		logger = log.NewWithOptions(out, log.Options{Level: level})
	}

	mu.Lock()
	defer mu.Unlock()
	log.SetDefault(logger)
	for prefix := range named {
		named[prefix] = logger.WithPrefix(prefix)
	}
	return closer, nil
}

// Named returns the shared logger for a component prefix.
func Named(prefix string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := named[prefix]; ok {
		return l
	}
	l := log.Default().WithPrefix(prefix)
	named[prefix] = l
	return l
}

// SetLevel changes the level of the default logger and all named loggers.
func SetLevel(name string) error {
	level, err := log.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(level)
	for _, l := range named {
		l.SetLevel(level)
	}
	return nil
}

// ValidLevel reports whether name is a known level.
func ValidLevel(name string) bool {
	_, err := log.ParseLevel(name)
	return err == nil
}

func resolveLevel(opts Options) (log.Level, error) {
	switch {
	case opts.Trace, opts.Debug:
		// Trace maps to Debug in charmbracelet/log
		return log.DebugLevel, nil
	case opts.Level == "":
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	return level, nil
}
