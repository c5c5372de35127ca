// Package logger writes leveled, structured JSON log lines.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
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
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field      { return Field{Key: key, Value: value} }
func Int(key string, value int) Field     { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field   { return Field{Key: key, Value: value} }
func Any(key string, value any) Field     { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

type entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	fields []Field
	now    func() time.Time
}

func New(out io.Writer, level Level) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{out: out, level: level, now: time.Now}
}

// Nop discards everything. Useful as a default in tests.
func Nop() *Logger {
	return New(io.Discard, LevelFatal+1)
}

// With returns a child logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	child := &Logger{out: l.out, level: l.level, now: l.now}
	child.fields = append(append(child.fields, l.fields...), fields...)
	return child
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log(LevelFatal, msg, fields)
	os.Exit(1)
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if l == nil || level < l.level {
		return
	}

	e := entry{
		Timestamp: l.now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
	}
	if len(l.fields)+len(fields) > 0 {
		e.Fields = make(map[string]any, len(l.fields)+len(fields))
		for _, f := range l.fields {
			e.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			e.Fields[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":"ERROR","message":"log marshal failed: %v"}`, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(data, '\n'))
}
