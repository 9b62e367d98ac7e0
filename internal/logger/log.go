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
	TRACE Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	FATAL
	NONE
)

func (l Level) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	case NONE:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level. Unknown names disable logging.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return NONE
	}
}

// SystemLogLevel reads TINYC_LOG_LEVEL, defaulting to ERROR.
func SystemLogLevel() Level {
	if envLevel := os.Getenv("TINYC_LOG_LEVEL"); envLevel != "" {
		return ParseLevel(envLevel)
	}
	return ERROR
}

type Logger struct {
	level      Level
	fileHandle *os.File
	logger     *log.Logger
	mu         sync.Mutex
	prefix     string
}

// NewLogger creates a new logger instance writing to stderr
func NewLogger(prefix string, level Level) *Logger {
	return &Logger{
		level:  level,
		prefix: prefix,
		logger: log.New(os.Stderr, fmt.Sprintf("[%s] ", prefix), log.LstdFlags|log.Lmicroseconds),
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the minimum log level
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput sets the output destination
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

// OpenFile redirects output to path, appending. On failure output is unchanged.
func (l *Logger) OpenFile(path string) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileHandle != nil {
		_ = l.fileHandle.Close()
	}
	l.fileHandle = fh
	l.logger.SetOutput(fh)
	return nil
}

// Close releases a file opened with OpenFile.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileHandle == nil {
		return nil
	}
	err := l.fileHandle.Close()
	l.fileHandle = nil
	l.logger.SetOutput(os.Stderr)
	return err
}

func (l *Logger) log(level Level, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprint(v...))
	l.logger.Output(3, msg)
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprintf(format, v...))
	l.logger.Output(3, msg)
}

func (l *Logger) Trace(v ...interface{}) { l.log(TRACE, v...) }
func (l *Logger) Debug(v ...interface{}) { l.log(DEBUG, v...) }
func (l *Logger) Info(v ...interface{})  { l.log(INFO, v...) }
func (l *Logger) Warn(v ...interface{})  { l.log(WARN, v...) }
func (l *Logger) Error(v ...interface{}) { l.log(ERROR, v...) }
func (l *Logger) Fatal(v ...interface{}) {
	l.log(FATAL, v...)
	os.Exit(1)
}

func (l *Logger) Tracef(format string, v ...interface{}) { l.logf(TRACE, format, v...) }
func (l *Logger) Debugf(format string, v ...interface{}) { l.logf(DEBUG, format, v...) }
func (l *Logger) Infof(format string, v ...interface{})  { l.logf(INFO, format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.logf(WARN, format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.logf(ERROR, format, v...) }
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logf(FATAL, format, v...)
	os.Exit(1)
}
