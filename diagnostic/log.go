// Package diagnostic is the structured, leveled logging facility shared by
// every component of the client (connection, pool, producer, consumer,
// group state machine). It is deliberately small: a Logger writes Fields at
// a Level, and With() derives a child Logger carrying extra context without
// mutating the parent.
package diagnostic

import (
	"bufio"
	"io"
	"strconv"
	"sync"
	"time"
)

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	OffLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "off"
	}
}

type Logger interface {
	Error(msg string, ctx ...Field)
	Warn(msg string, ctx ...Field)
	Debug(msg string, ctx ...Field)
	Info(msg string, ctx ...Field)
	With(ctx ...Field) Logger
}

type Writer interface {
	Write([]byte) (int, error)
	WriteByte(byte) error
	WriteString(string) (int, error)
}

// Format selects the on-wire line encoding for ServerLogger.
type Format int

const (
	Logfmt Format = iota
	JSON
)

type MultiLogger struct {
	loggers []Logger
}

func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (l *MultiLogger) Error(msg string, ctx ...Field) {
	for _, logger := range l.loggers {
		logger.Error(msg, ctx...)
	}
}

func (l *MultiLogger) Warn(msg string, ctx ...Field) {
	for _, logger := range l.loggers {
		logger.Warn(msg, ctx...)
	}
}

func (l *MultiLogger) Debug(msg string, ctx ...Field) {
	for _, logger := range l.loggers {
		logger.Debug(msg, ctx...)
	}
}

func (l *MultiLogger) Info(msg string, ctx ...Field) {
	for _, logger := range l.loggers {
		logger.Info(msg, ctx...)
	}
}

func (l *MultiLogger) With(ctx ...Field) Logger {
	loggers := make([]Logger, 0, len(l.loggers))
	for _, logger := range l.loggers {
		loggers = append(loggers, logger.With(ctx...))
	}
	return NewMultiLogger(loggers...)
}

// ServerLogger writes leveled, logfmt- or JSON-encoded lines to an
// io.Writer, filtering anything below its configured threshold. The
// threshold is read under a RWMutex so SetThreshold can change it at runtime
// (e.g. from a SIGHUP handler). A logger returned by With() copies the
// threshold at that moment; later SetThreshold calls on its parent do not
// reach it.
type ServerLogger struct {
	mu      *sync.Mutex
	context []Field
	w       *bufio.Writer
	format  Format

	levelMu   sync.RWMutex
	threshold Level
}

func NewServerLogger(w io.Writer, threshold Level, format Format) *ServerLogger {
	var mu sync.Mutex
	return &ServerLogger{
		mu:        &mu,
		w:         bufio.NewWriter(w),
		format:    format,
		threshold: threshold,
	}
}

func (l *ServerLogger) SetThreshold(lvl Level) {
	l.levelMu.Lock()
	defer l.levelMu.Unlock()
	l.threshold = lvl
}

func (l *ServerLogger) enabled(lvl Level) bool {
	l.levelMu.RLock()
	defer l.levelMu.RUnlock()
	return lvl >= l.threshold
}

func (l *ServerLogger) With(ctx ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	newCtx := make([]Field, len(l.context), len(l.context)+len(ctx))
	copy(newCtx, l.context)
	return &ServerLogger{
		mu:        l.mu,
		context:   append(newCtx, ctx...),
		w:         l.w,
		format:    l.format,
		threshold: l.threshold,
	}
}

func (l *ServerLogger) Error(msg string, ctx ...Field) {
	if l.enabled(ErrorLevel) {
		l.log(time.Now(), ErrorLevel, msg, ctx)
	}
}

func (l *ServerLogger) Debug(msg string, ctx ...Field) {
	if l.enabled(DebugLevel) {
		l.log(time.Now(), DebugLevel, msg, ctx)
	}
}

func (l *ServerLogger) Warn(msg string, ctx ...Field) {
	if l.enabled(WarnLevel) {
		l.log(time.Now(), WarnLevel, msg, ctx)
	}
}

func (l *ServerLogger) Info(msg string, ctx ...Field) {
	if l.enabled(InfoLevel) {
		l.log(time.Now(), InfoLevel, msg, ctx)
	}
}

func (l *ServerLogger) log(now time.Time, lvl Level, msg string, ctx []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == JSON {
		writeJSON(l.w, now, lvl.String(), msg, l.context, ctx)
	} else {
		writeLogfmt(l.w, now, lvl.String(), msg, l.context, ctx)
	}
	l.w.Flush()
}

func writeLogfmt(w Writer, now time.Time, level string, msg string, context, fields []Field) {
	writeLogfmtTimestamp(w, now)
	w.WriteByte(' ')
	writeLogfmtLevel(w, level)
	w.WriteByte(' ')
	writeLogfmtMessage(w, msg)

	for _, f := range context {
		w.WriteByte(' ')
		f.WriteLogfmtTo(w)
	}
	for _, f := range fields {
		w.WriteByte(' ')
		f.WriteLogfmtTo(w)
	}
	w.WriteByte('\n')
}

func writeLogfmtTimestamp(w Writer, now time.Time) {
	w.Write([]byte("ts="))
	w.WriteString(now.UTC().Format(RFC3339Milli))
}

func writeLogfmtLevel(w Writer, lvl string) {
	w.Write([]byte("lvl="))
	w.WriteString(lvl)
}

func writeLogfmtMessage(w Writer, msg string) {
	w.Write([]byte("msg="))
	writeString(w, msg)
}

func writeJSON(w Writer, now time.Time, level string, msg string, context, fields []Field) {
	w.WriteByte('{')
	writeJSONTimestamp(w, now)
	w.WriteByte(',')
	writeJSONLevel(w, level)
	w.WriteByte(',')
	writeJSONMessage(w, msg)

	for _, f := range context {
		w.WriteByte(',')
		f.WriteJSONTo(w)
	}
	for _, f := range fields {
		w.WriteByte(',')
		f.WriteJSONTo(w)
	}
	w.WriteByte('}')
	w.WriteByte('\n')
}

func writeJSONTimestamp(w Writer, now time.Time) {
	w.Write([]byte("\"ts\":"))
	w.WriteString(strconv.Quote(now.UTC().Format(RFC3339Milli)))
}

func writeJSONLevel(w Writer, lvl string) {
	w.Write([]byte("\"lvl\":"))
	w.WriteString(strconv.Quote(lvl))
}

func writeJSONMessage(w Writer, msg string) {
	w.Write([]byte("\"msg\":"))
	w.WriteString(strconv.Quote(msg))
}
