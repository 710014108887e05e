// Package logger holds the process-wide log sink shared by every client.
//
// The sink is initialised on first use with a text slog handler on stderr.
// SetSink redirects output to any consumer with leveled write methods, such
// as *slog.Logger, and SetLevel gates which records reach it. Both setters
// are last-writer-wins and safe to call while other goroutines log.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level orders log records from most to least severe.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	}
	return fmt.Sprintf("level(%d)", int32(l))
}

// ParseLevel accepts the level names produced by Level.String.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	}
	return LevelInfo, fmt.Errorf("logger: unknown level %q", s)
}

// Sink receives log records. *slog.Logger satisfies it. Trace records are
// delivered through Debug.
type Sink interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type sinkHolder struct {
	sink Sink
}

var (
	current atomic.Pointer[sinkHolder]
	level   atomic.Int32
	hooks   atomic.Pointer[[]func(Level)]
)

func init() {
	level.Store(int32(LevelInfo))
}

func defaultSink() Sink {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func sink() Sink {
	if h := current.Load(); h != nil {
		return h.sink
	}
	h := &sinkHolder{sink: defaultSink()}
	if current.CompareAndSwap(nil, h) {
		return h.sink
	}
	return current.Load().sink
}

// SetSink redirects output. A nil sink restores the default stderr handler.
func SetSink(s Sink) {
	if s == nil {
		s = defaultSink()
	}
	current.Store(&sinkHolder{sink: s})
}

// SetLevel sets the most verbose level that is written.
func SetLevel(l Level) {
	if l < LevelError {
		l = LevelError
	}
	if l > LevelTrace {
		l = LevelTrace
	}
	level.Store(int32(l))
	if fns := hooks.Load(); fns != nil {
		for _, fn := range *fns {
			fn(l)
		}
	}
}

// OnLevelChange registers fn to run after every SetLevel with the new level.
// Libraries with their own level gate use it to stay in step.
func OnLevelChange(fn func(Level)) {
	for {
		old := hooks.Load()
		var next []func(Level)
		if old != nil {
			next = append(next, *old...)
		}
		next = append(next, fn)
		if hooks.CompareAndSwap(old, &next) {
			return
		}
	}
}

// GetLevel returns the active level.
func GetLevel() Level {
	return Level(level.Load())
}

// Enabled reports whether records at l are written.
func Enabled(l Level) bool {
	return l <= GetLevel()
}

// Error writes an error record.
func Error(msg string, args ...any) {
	if Enabled(LevelError) {
		sink().Error(msg, args...)
	}
}

// Warn writes a warning record.
func Warn(msg string, args ...any) {
	if Enabled(LevelWarn) {
		sink().Warn(msg, args...)
	}
}

// Info writes an informational record.
func Info(msg string, args ...any) {
	if Enabled(LevelInfo) {
		sink().Info(msg, args...)
	}
}

// Debug writes a debug record.
func Debug(msg string, args ...any) {
	if Enabled(LevelDebug) {
		sink().Debug(msg, args...)
	}
}

// Trace writes a trace record through the sink's Debug method.
func Trace(msg string, args ...any) {
	if Enabled(LevelTrace) {
		sink().Debug(msg, append(args, "trace", true)...)
	}
}

// Log writes msg at an arbitrary level.
func Log(l Level, msg string, args ...any) {
	switch l {
	case LevelError:
		Error(msg, args...)
	case LevelWarn:
		Warn(msg, args...)
	case LevelInfo:
		Info(msg, args...)
	case LevelDebug:
		Debug(msg, args...)
	default:
		Trace(msg, args...)
	}
}
