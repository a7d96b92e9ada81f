package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the process-wide logger. Package helpers initialise it lazily.
var Logger *slog.Logger

// InitLogger installs a JSON logger for production and a text logger otherwise.
func InitLogger(production bool) {
	InitLoggerWithLevel(production, slog.LevelInfo)
}

// InitLoggerWithLevel is InitLogger with an explicit minimum level.
func InitLoggerWithLevel(production bool, level slog.Level) {
	InitLoggerTo(os.Stdout, production, level)
}

// InitLoggerTo writes log records to w.
func InitLoggerTo(w io.Writer, production bool, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if production {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func logger() *slog.Logger {
	if Logger == nil {
		InitLogger(false)
	}
	return Logger
}

// WithContext returns the logger for ctx.
func WithContext(ctx context.Context) *slog.Logger {
	return logger()
}

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}

// Fatal logs at error level and exits the process.
func Fatal(msg string, args ...any) {
	logger().Error(msg, args...)
	os.Exit(1)
}

// WithSymbol returns a logger tagged with a ticker symbol.
func WithSymbol(symbol string) *slog.Logger {
	return logger().With("symbol", symbol)
}

// WithComponent returns a logger tagged with the emitting component
// (cache, scheduler, batch, ...).
func WithComponent(component string) *slog.Logger {
	return logger().With("component", component)
}

// WithError returns a logger carrying err.
func WithError(err error) *slog.Logger {
	return logger().With("error", err)
}
