// Package logger provides a thread-safe, leveled logger backed by the
// standard library's log package, extended with a Sink interface so
// other components (the remote log shipper, the dashboard's live log
// stream) can subscribe to every record without owning the logger
// itself.
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Level represents a logging verbosity level.
type Level int

const (
	// LevelDebug emits all messages.
	LevelDebug Level = iota
	// LevelInfo emits INFO, WARN and ERROR messages.
	LevelInfo
	// LevelWarn emits WARN and ERROR messages.
	LevelWarn
	// LevelError emits only ERROR messages.
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

// Record is one emitted log line, handed to every registered Sink.
type Record struct {
	Time  time.Time
	Level Level
	Msg   string
}

// Sink receives every record at or above the logger's configured level.
// Implementations must not block for long; shipper.Shipper batches
// records internally rather than doing network I/O inline.
type Sink interface {
	Write(Record)
}

// Logger is a structured, leveled logger.
//
// Thread-safety: log.Logger (from the standard library) serialises
// writes to the underlying io.Writer with its own mutex. The Logger
// wrapper adds a second mutex for the level field and the sink list so
// SetLevel/AddSink may be called concurrently with logging methods.
type Logger struct {
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
	debugLog *log.Logger

	mu    sync.RWMutex
	level Level
	sinks []Sink
}

// New creates a Logger that writes to stderr at the given minimum
// level. log.Ldate|log.Ltime|log.Lmicroseconds gives microsecond
// resolution timestamps, sufficient for diagnosing timing issues
// between peers.
func New(level Level) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		infoLog:  log.New(os.Stderr, "INFO  ", flags),
		warnLog:  log.New(os.Stderr, "WARN  ", flags),
		errorLog: log.New(os.Stderr, "ERROR ", flags),
		debugLog: log.New(os.Stderr, "DEBUG ", flags),
		level:    level,
	}
}

// SetLevel changes the minimum log level at runtime. Safe for
// concurrent use.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// AddSink registers a Sink to receive every future record at or above
// the logger's level. Typically used to wire up shipper.Shipper or the
// dashboard's log tail view.
func (l *Logger) AddSink(s Sink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

func (l *Logger) dispatch(lvl Level, msg string) {
	l.mu.RLock()
	sinks := l.sinks
	l.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}
	rec := Record{Time: time.Now(), Level: lvl, Msg: msg}
	for _, s := range sinks {
		s.Write(rec)
	}
}

// Info logs a message at INFO level.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	lvl := l.level
	l.mu.RUnlock()
	if lvl <= LevelInfo {
		l.infoLog.Output(2, msg) //nolint:errcheck
		l.dispatch(LevelInfo, msg)
	}
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warn logs a message at WARN level.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	lvl := l.level
	l.mu.RUnlock()
	if lvl <= LevelWarn {
		l.warnLog.Output(2, msg) //nolint:errcheck
		l.dispatch(LevelWarn, msg)
	}
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Error logs a message at ERROR level.
func (l *Logger) Error(msg string) {
	l.mu.RLock()
	lvl := l.level
	l.mu.RUnlock()
	if lvl <= LevelError {
		l.errorLog.Output(2, msg) //nolint:errcheck
		l.dispatch(LevelError, msg)
	}
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string) {
	l.mu.RLock()
	lvl := l.level
	l.mu.RUnlock()
	if lvl <= LevelDebug {
		l.debugLog.Output(2, msg) //nolint:errcheck
		l.dispatch(LevelDebug, msg)
	}
}

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}
