package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPrefix        = "chartsignal"
	defaultRetentionDays = 7
	dateLayout           = "20060102"
)

// Options configures NewLogger.
type Options struct {
	// Dir enables the daily file sink when non-empty.
	Dir           string
	Prefix        string
	RetentionDays int
	// Level is debug, info, warn, error or a numeric slog level.
	Level string
	// Format is "text" or "json".
	Format string
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
}

// DailyWriter writes logs into a date-based file and prunes old files.
type DailyWriter struct {
	dir           string
	prefix        string
	retentionDays int
	now           func() time.Time
	mu            sync.Mutex
	currentDate   string
	file          *os.File
}

// NewDailyWriter creates a daily rotating writer in dir. Files are named
// "<prefix>-YYYYMMDD.log" and removed after retentionDays.
func NewDailyWriter(dir, prefix string, retentionDays int) (*DailyWriter, error) {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &DailyWriter{
		dir:           dir,
		prefix:        prefix,
		retentionDays: retentionDays,
		now:           time.Now,
	}
	if err := w.rotateIfNeeded(w.now()); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer.
func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfNeeded(w.now()); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

// Close closes the underlying file.
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Path returns the file currently written to.
func (w *DailyWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pathFor(w.currentDate)
}

func (w *DailyWriter) pathFor(date string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.prefix, date))
}

func (w *DailyWriter) rotateIfNeeded(now time.Time) error {
	date := now.Format(dateLayout)
	if date == w.currentDate && w.file != nil {
		return nil
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	file, err := os.OpenFile(w.pathFor(date), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.currentDate = date
	w.file = file
	w.cleanup(now)
	return nil
}

func (w *DailyWriter) cleanup(now time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -w.retentionDays)
	prefix := w.prefix + "-"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		date, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log"))
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the process logger, installs it as the slog default and
// returns a closer for the file sink.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var (
		out    io.Writer = stdout
		closer io.Closer = nopCloser{}
	)
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		writer, err := NewDailyWriter(dir, opts.Prefix, opts.RetentionDays)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(stdout, writer)
		closer = writer
	}

	handler := newHandler(out, ParseLevel(opts.Level, slog.LevelInfo), opts.Format)
	logger := slog.New(handler).With("service", defaultPrefix)
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel maps a level name or number to a slog.Level.
func ParseLevel(value string, fallback slog.Level) slog.Level {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		if i, err := strconv.Atoi(value); err == nil {
			return slog.Level(i)
		}
		return fallback
	}
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, options)
	}
	return slog.NewTextHandler(w, options)
}
