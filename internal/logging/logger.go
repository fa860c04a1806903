// Package logging provides leveled, contextual logging for shmmpi.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the available log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
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

// field is a single key/value pair attached to a Logger via With*.
type field struct {
	key string
	val any
}

// Logger wraps stdlib log with level support, output format selection,
// and chainable contextual fields (WithRank, WithPeer, WithRequest,
// WithError).
type Logger struct {
	logger  *log.Logger
	level   LogLevel
	format  string // "text" (default) or "json"
	noColor bool
	mu      *sync.Mutex
	fields  []field
}

// Config holds logging configuration.
type Config struct {
	Level LogLevel
	// Format selects the rendering: "text" (default) or "json".
	Format string
	Output io.Writer
	// Sync forces every call to flush immediately. The stdlib log.Logger
	// underlying this type is already unbuffered, so Sync exists only
	// for callers that want to assert they got synchronous semantics.
	Sync    bool
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger from config (nil uses DefaultConfig).
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	format := config.Format
	if format == "" {
		format = "text"
	}
	return &Logger{
		logger:  log.New(output, "", log.LstdFlags),
		level:   config.Level,
		format:  format,
		noColor: config.NoColor,
		mu:      &sync.Mutex{},
	}
}

// WithLogrus returns a Logger that forwards formatted lines to an
// existing *logrus.Logger instead of the stdlib logger, for embedding
// shmmpi's log output into a logrus-based host application.
func WithLogrus(l *logrus.Logger, level LogLevel) *Logger {
	w := l.Writer()
	return &Logger{
		logger: log.New(w, "", 0),
		level:  level,
		format: "text",
		mu:     &sync.Mutex{},
	}
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// clone returns a shallow copy of l with an independent field slice,
// sharing the same underlying writer and mutex so derived loggers stay
// serialized with their parent.
func (l *Logger) clone() *Logger {
	fields := make([]field, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	return &Logger{
		logger:  l.logger,
		level:   l.level,
		format:  l.format,
		noColor: l.noColor,
		mu:      l.mu,
		fields:  fields,
	}
}

// WithField returns a derived logger carrying an additional key/value pair.
func (l *Logger) WithField(key string, val any) *Logger {
	c := l.clone()
	c.fields = append(c.fields, field{key, val})
	return c
}

// WithRank tags subsequent log lines with the local rank.
func (l *Logger) WithRank(rank int32) *Logger {
	return l.WithField("rank", rank)
}

// WithPeer tags subsequent log lines with a remote peer rank.
func (l *Logger) WithPeer(rank int32) *Logger {
	return l.WithField("peer", rank)
}

// WithRequest tags subsequent log lines with a namespaced tag and an
// operation name (e.g. "isend", "irecv", "bcast").
func (l *Logger) WithRequest(tag int32, op string) *Logger {
	return l.WithField("tag", tag).WithField("op", op)
}

// WithError tags subsequent log lines with an error value.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err)
}

// formatArgs converts key-value pairs to a string.
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) render(level LogLevel, msg string, args []any) string {
	if l.format == "json" {
		m := map[string]any{
			"time":  time.Now().Format(time.RFC3339Nano),
			"level": level.String(),
			"msg":   msg,
		}
		for _, f := range l.fields {
			m[f.key] = f.val
		}
		for i := 0; i+1 < len(args); i += 2 {
			m[fmt.Sprintf("%v", args[i])] = args[i+1]
		}
		b, err := json.Marshal(m)
		if err != nil {
			return msg
		}
		return string(b)
	}

	var extra string
	for _, f := range l.fields {
		extra += fmt.Sprintf(" %s=%v", f.key, f.val)
	}
	prefix := "[" + level.String() + "]"
	return fmt.Sprintf("%s %s%s%s", prefix, msg, extra, formatArgs(args))
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.level {
		return
	}
	line := l.render(level, msg, args)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Print(line)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// Printf-style logging.
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Printf logs at info level, for callers that expect a Printf-style logger.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
