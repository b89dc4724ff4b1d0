package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	slog *slog.Logger
	file *lumberjack.Logger
}

type RotationOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger пишет в stderr и, если задан logPath, в файл с ротацией
func NewLogger(logPath, logLevel string, rotation RotationOptions) *Logger {
	l := &Logger{}

	var out io.Writer = os.Stderr
	if logPath != "" {
		l.file = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stderr, l.file)
	}

	l.slog = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(logLevel)}))
	return l
}

// NewWriterLogger - логгер поверх произвольного writer (тесты, dry-run)
func NewWriterLogger(w io.Writer, logLevel string) *Logger {
	return &Logger{
		slog: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(logLevel)})),
	}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.slog.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.slog.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.slog.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.slog.Error(msg, fields...)
}

// Close закрывает файл лога, если он открыт
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
