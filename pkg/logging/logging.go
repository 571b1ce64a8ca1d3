// Package logging sets up the process logger: a text handler on the terminal fanned out to optional
// extra sinks (a JSON log file, the dashboard log pane).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel parses a level name
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// Options selects the log sinks
type Options struct {
	Level string
	// Terminal sink. Nil disables it
	Console io.Writer
	// Path of a JSON lines log file, always written at debug level. Empty disables it
	File string
	// Additional sinks, written as text at Level
	Extra []io.Writer
}

// Logger is a configured logger together with the resources its sinks hold
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// Close releases the sinks opened by New
func (l *Logger) Close() error {
	var first error

	for _, closer := range l.closers {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// New builds a logger fanning out every record to the configured sinks
func New(options Options) (*Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	var handlers []slog.Handler
	var closers []io.Closer

	if options.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(options.Console, &slog.HandlerOptions{Level: level}))
	}

	for _, writer := range options.Extra {
		handlers = append(handlers, slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
	}

	if options.File != "" {
		file, err := os.OpenFile(options.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", options.File, err)
		}

		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closers = append(closers, file)
	}

	return &Logger{
		Logger:  slog.New(slogmulti.Fanout(handlers...)),
		closers: closers,
	}, nil
}

// Setup builds a logger and installs it as the slog default
func Setup(options Options) (*Logger, error) {
	logger, err := New(options)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger.Logger)
	return logger, nil
}
