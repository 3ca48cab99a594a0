package lib

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of log messages
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	switch l {
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
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a level name to a LogLevel.
// Returns INFO and false if the name is not recognised.
func ParseLogLevel(name string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, true
	case "INFO":
		return INFO, true
	case "WARN", "WARNING":
		return WARN, true
	case "ERROR":
		return ERROR, true
	case "FATAL":
		return FATAL, true
	default:
		return INFO, false
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.NoLevel
	}
}

// Logger writes structured JSON log lines tagged with a component name.
// A logger without an explicit output follows the global output, so
// SetGlobalOutput also silences loggers created earlier.
type Logger struct {
	component string
	level     LogLevel
	writer    io.Writer
	mu        sync.RWMutex
}

// NewLogger creates a new logger for the specified component
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		level:     getDefaultLevel(),
	}
}

var (
	defaultWriter    io.Writer = os.Stderr
	defaultLevel               = INFO
	defaultWriterMux sync.RWMutex
)

func getDefaultWriter() io.Writer {
	defaultWriterMux.RLock()
	defer defaultWriterMux.RUnlock()
	return defaultWriter
}

func getDefaultLevel() LogLevel {
	defaultWriterMux.RLock()
	defer defaultWriterMux.RUnlock()
	return defaultLevel
}

func setDefaultWriter(writer io.Writer) {
	if writer == nil {
		writer = io.Discard
	}
	defaultWriterMux.Lock()
	defer defaultWriterMux.Unlock()
	defaultWriter = writer
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput pins this logger to a writer, detaching it from the global output.
func (l *Logger) SetOutput(writer io.Writer) {
	if writer == nil {
		writer = io.Discard
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = writer
}

// Debug logs a debug message with optional context
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.log(DEBUG, message, context...)
}

// Info logs an info message with optional context
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.log(INFO, message, context...)
}

// Warn logs a warning message with optional context
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.log(WARN, message, context...)
}

// Error logs an error message with optional context
func (l *Logger) Error(message string, context ...map[string]interface{}) {
	l.log(ERROR, message, context...)
}

// Fatal logs a fatal message and exits the program
func (l *Logger) Fatal(message string, context ...map[string]interface{}) {
	l.log(FATAL, message, context...)
	os.Exit(1)
}

func (l *Logger) log(level LogLevel, message string, context ...map[string]interface{}) {
	l.mu.RLock()
	minLevel := l.level
	writer := l.writer
	l.mu.RUnlock()

	if level < minLevel {
		return
	}
	if writer == nil {
		writer = getDefaultWriter()
	}

	zl := zerolog.New(writer).With().Timestamp().Str("component", l.component).Logger()
	// WithLevel never exits, even for FatalLevel; Fatal handles the exit itself.
	event := zl.WithLevel(level.zerolog())
	for _, ctx := range context {
		event = event.Fields(ctx)
	}
	event.Msg(message)
}

// WithContext creates a convenience function for logging with common context
func (l *Logger) WithContext(context map[string]interface{}) func(LogLevel, string) {
	return func(level LogLevel, message string) {
		l.log(level, message, context)
	}
}

var globalLogger = NewLogger("claude-monitor")

// SetGlobalLevel sets the level of the global logger and of loggers created afterwards.
func SetGlobalLevel(level LogLevel) {
	defaultWriterMux.Lock()
	defaultLevel = level
	defaultWriterMux.Unlock()
	globalLogger.SetLevel(level)
}

// SetGlobalOutput sets the output writer for global logging and every
// logger that has not been pinned with SetOutput.
func SetGlobalOutput(writer io.Writer) {
	setDefaultWriter(writer)
}

// GetGlobalOutput returns the current global output writer.
func GetGlobalOutput() io.Writer {
	return getDefaultWriter()
}

// Debug logs using the global logger
func Debug(message string, context ...map[string]interface{}) {
	globalLogger.Debug(message, context...)
}

// Info logs using the global logger
func Info(message string, context ...map[string]interface{}) {
	globalLogger.Info(message, context...)
}

// Warn logs using the global logger
func Warn(message string, context ...map[string]interface{}) {
	globalLogger.Warn(message, context...)
}

// Error logs using the global logger
func Error(message string, context ...map[string]interface{}) {
	globalLogger.Error(message, context...)
}

// Fatal logs using the global logger and exits
func Fatal(message string, context ...map[string]interface{}) {
	globalLogger.Fatal(message, context...)
}
