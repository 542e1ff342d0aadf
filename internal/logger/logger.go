package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultBufferLines is how many recent lines Buffer keeps
const DefaultBufferLines = 1000

// Config selects level, format and optional rotating file output
type Config struct {
	Level  string
	Format string
	// File enables a size-rotated log file when non-empty
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Output defaults to os.Stdout
	Output io.Writer
}

// Logger is a slog.Logger that also keeps its recent output in memory
type Logger struct {
	*slog.Logger
	buffer  *Buffer
	rotator *lumberjack.Logger
}

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New builds the logger; records go to the output, the rotating file if any, and the tail buffer
func New(cfg Config) (*Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l := &Logger{buffer: NewBuffer(DefaultBufferLines)}
	writers := []io.Writer{out, l.buffer}
	if cfg.File != "" {
		l.rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, l.rotator)
	}

	w := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, errors.New("invalid log format: " + cfg.Format)
	}

	l.Logger = slog.New(handler)
	return l, nil
}

// Buffer returns the in-memory tail of the log
func (l *Logger) Buffer() *Buffer {
	return l.buffer
}

// Close flushes and closes the rotating file
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

// Buffer captures the most recent log lines in memory
type Buffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewBuffer keeps at most max lines
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferLines
	}
	return &Buffer{
		lines: make([]string, 0, max),
		max:   max,
	}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			b.lines = append(b.lines, line)
		}
	}
	if len(b.lines) > b.max {
		b.lines = append(b.lines[:0], b.lines[len(b.lines)-b.max:]...)
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	logs := make([]string, len(b.lines))
	copy(logs, b.lines)
	return logs
}
