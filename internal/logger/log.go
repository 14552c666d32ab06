package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// ParseLevel maps a level name to a Level. Unknown names fall back to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	level  Level
	prefix string
	mu     *sync.Mutex
	logs   [4]*log.Logger
}

func New(level string) *Logger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter builds a logger that writes every level to w.
func NewWithWriter(level string, w io.Writer) *Logger {
	flags := log.LstdFlags | log.Lshortfile | log.Lmicroseconds

	return &Logger{
		level: ParseLevel(level),
		mu:    &sync.Mutex{},
		logs: [4]*log.Logger{
			log.New(w, "[DEBUG] ", flags),
			log.New(w, "[INFO] ", flags),
			log.New(w, "[WARN] ", flags),
			log.New(w, "[ERROR] ", flags),
		},
	}
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *Logger {
	return NewWithWriter("ERROR", io.Discard)
}

// With returns a logger sharing the same sinks whose lines start with prefix.
func (l *Logger) With(prefix string) *Logger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + prefix + " "
	} else {
		child.prefix = prefix + " "
	}
	return &child
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) output(lvl Level, format string, args ...interface{}) {
	if l.level > lvl {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// depth 3: output -> Info/Debug/... -> caller
	_ = l.logs[lvl].Output(3, l.prefix+sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(DEBUG, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.output(INFO, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(WARN, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.output(ERROR, format, args...)
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

type debugWriter struct {
	l *Logger
}

func (w debugWriter) Write(p []byte) (int, error) {
	w.l.output(DEBUG, "%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// DebugWriter adapts l for libraries that want an io.Writer; every write
// becomes one DEBUG line.
func (l *Logger) DebugWriter() io.Writer {
	return debugWriter{l: l}
}
