package logging

import (
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Logger is a leveled key/value logger shared by every layer of the service.
type Logger struct {
	*charmlog.Logger
}

// Options control how a Logger formats and filters its output.
type Options struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// NewLogger creates a new Logger writing to stdout at info level.
func NewLogger() *Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Logger from explicit options.
func NewWithOptions(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           parseLevel(opts.Level),
		Prefix:          "fleet-assist",
	})
	if opts.JSON {
		l.SetFormatter(charmlog.JSONFormatter)
	}
	return &Logger{Logger: l}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return NewWithOptions(Options{Output: io.Discard, Level: "error"})
}

// With returns a child logger that always carries the given key/value pairs.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...)}
}

func parseLevel(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}
