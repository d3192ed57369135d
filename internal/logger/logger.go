package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with dashboard-specific helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout at the level named by levelStr.
func New(levelStr string) *Logger {
	return NewWithWriter(os.Stdout, levelStr)
}

// NewWithWriter creates a logger writing to w. Gin debug mode gets the text
// handler, everything else gets JSON.
func NewWithWriter(w io.Writer, levelStr string) *Logger {
	level := ParseLevel(levelStr)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithComponent tags every record with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(slog.String("component", name))
}

// LogHTTPRequest logs a served request.
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogModeSwitch logs a live source switch.
func (l *Logger) LogModeSwitch(ctx context.Context, from, to string) {
	l.Logger.InfoContext(ctx,
		"Live Mode Switched",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogLiveFailure logs a recovered live channel failure.
func (l *Logger) LogLiveFailure(ctx context.Context, mode string, err error) {
	l.Logger.WarnContext(ctx,
		"Live Channel Failure",
		slog.String("mode", mode),
		slog.String("error", err.Error()),
	)
}

// LogHistoryFetch logs a committed history load.
func (l *Logger) LogHistoryFetch(ctx context.Context, windowMinutes, rows int, duration time.Duration, err error) {
	if err != nil {
		l.Logger.WarnContext(ctx,
			"History Fetch Failed",
			slog.Int("window_minutes", windowMinutes),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Logger.InfoContext(ctx,
		"History Fetched",
		slog.Int("window_minutes", windowMinutes),
		slog.Int("rows", rows),
		slog.Duration("duration", duration),
	)
}

// LogStaleResult logs a history result that arrived after being superseded.
func (l *Logger) LogStaleResult(ctx context.Context, windowMinutes int, token uint64) {
	l.Logger.DebugContext(ctx,
		"Stale History Result Discarded",
		slog.Int("window_minutes", windowMinutes),
		slog.Uint64("token", token),
	)
}

var defaultLogger = New(os.Getenv("LOG_LEVEL"))

// GetDefault returns the process-wide logger.
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
