// Package logging provides structured logging for LocalWork Hero.
// It keeps a small leveled API on top of zap so packages never import zap directly.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity
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

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps debug, info, warn and error to a Level
func ParseLevel(level string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// sink holds the settings shared by a logger and every logger derived from
// it with With or Named
type sink struct {
	level  zap.AtomicLevel
	output io.Writer
	json   atomic.Bool
	gen    atomic.Uint64 // bumped on every format change
}

// Logger provides structured logging
type Logger struct {
	sink *sink

	mu     sync.Mutex
	z      *zap.Logger
	gen    uint64
	fields map[string]any
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the default logger
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(os.Stderr)
	})
	return defaultLogger
}

// New creates a new logger writing to output at info level
func New(output io.Writer) *Logger {
	l := &Logger{
		sink: &sink{
			level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
			output: output,
		},
		fields: make(map[string]any),
	}
	l.rebuild()
	return l
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return New(io.Discard)
}

// rebuild recreates the zap logger from the sink. Callers hold l.mu or own l.
func (l *Logger) rebuild() {
	l.gen = l.sink.gen.Load()

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"

	var enc zapcore.Encoder
	if l.sink.json.Load() {
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.ConsoleSeparator = " "
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(l.sink.output), l.sink.level)
	l.z = zap.New(core).With(toZapFields(l.fields)...)
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) *Logger {
	l.sink.level.SetLevel(level.zapLevel())
	return l
}

// SetLevelFromString sets level from string (debug, info, warn, error)
func (l *Logger) SetLevelFromString(level string) *Logger {
	if lvl, ok := ParseLevel(level); ok {
		l.SetLevel(lvl)
	}
	return l
}

// SetJSON enables JSON output mode. Like the level, the mode is shared
// with the parent and every derived logger.
func (l *Logger) SetJSON(enabled bool) *Logger {
	if l.sink.json.Swap(enabled) != enabled {
		l.sink.gen.Add(1)
	}
	return l
}

// With returns a new logger with additional fields. Level and output mode
// are shared with the parent.
func (l *Logger) With(fields map[string]any) *Logger {
	l.mu.Lock()
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	l.mu.Unlock()
	for k, v := range fields {
		merged[k] = v
	}

	child := &Logger{sink: l.sink, fields: merged}
	child.rebuild()
	return child
}

// Named returns a logger tagged with a component name
func (l *Logger) Named(component string) *Logger {
	return l.With(map[string]any{"component": component})
}

// Zap exposes the underlying zap logger
func (l *Logger) Zap() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != l.sink.gen.Load() {
		l.rebuild()
	}
	return l.z
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.Zap().Sync()
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(LevelError, msg, fields...)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level Level, msg string, fields ...map[string]any) {
	z := l.Zap()
	if ce := z.Check(level.zapLevel(), msg); ce != nil {
		var zf []zap.Field
		for _, f := range fields {
			zf = append(zf, toZapFields(f)...)
		}
		ce.Write(zf...)
	}
}

// toZapFields converts a field map in stable key order
func toZapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Package-level convenience functions using the default logger

// Debug logs a debug message
func Debug(msg string, fields ...map[string]any) {
	Default().Debug(msg, fields...)
}

// Info logs an info message
func Info(msg string, fields ...map[string]any) {
	Default().Info(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...map[string]any) {
	Default().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...map[string]any) {
	Default().Error(msg, fields...)
}

// Infof logs a formatted info message
func Infof(format string, args ...any) {
	Default().Infof(format, args...)
}

// SetLevel sets the default logger level
func SetLevel(level Level) {
	Default().SetLevel(level)
}

// SetJSON enables JSON mode on the default logger
func SetJSON(enabled bool) {
	Default().SetJSON(enabled)
}
