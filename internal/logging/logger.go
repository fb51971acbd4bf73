// Package logging implements the small leveled logger the gateway
// carries as an ambient concern, grounded on the example corpus's own
// leveled wrapper over the standard log package.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"strings"
	"time"
)

// Level orders log severities; a Logger drops anything below its
// configured Level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a Level, defaulting
// to LevelInfo for anything unrecognized.
func ParseLevel(name string) Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is an instance-owned leveled logger, carried explicitly by
// the gateway's connection driver and handlers rather than reached for
// as a package-level global, so per-server configuration (level,
// sink) doesn't leak across independently configured listeners.
type Logger struct {
	level Level
	std   *stdlog.Logger
}

// New returns a Logger writing to w at level, with no built-in
// timestamp/flags (each line is stamped explicitly so the format stays
// stable regardless of stdlib log flag defaults).
func New(w io.Writer, level Level) *Logger {
	return &Logger{level: level, std: stdlog.New(w, "", 0)}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	l.std.Printf("[%s] [%s] %s", ts, level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
