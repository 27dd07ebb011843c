// Package logging owns the process-wide structured logger.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"gopkg.in/natefinch/lumberjack.v2"
)

// errorRingSize is how many ERROR records RecentErrors keeps.
const errorRingSize = 4

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// Options controls Init.
type Options struct {
	// Dir enables level-split log files when non-empty.
	Dir string
	// Level is the console threshold: "debug", "info", "warn" or "error".
	Level string
	// NoConsole drops stdout/stderr output while the TUI owns the terminal.
	NoConsole bool
}

// Init configures the process logger.
// Console output is on unless opts.NoConsole: DEBUG and INFO go to stdout,
// WARN and ERROR to stderr. If opts.Dir is set, records are also written to
// one rotating file per level bucket:
//   - photocull_warn.log  (WARN and ERROR, 100MB, 3 backups)
//   - photocull_info.log  (1MB, 1 backup)
//   - photocull_debug.log (1MB, 1 backup)
func Init(opts Options) {
	level := ParseLevel(opts.Level)
	fan := fanout{&errorCaptureHandler{}}

	if !opts.NoConsole {
		stdout := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		stderr := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		fan = append(fan, &bucketHandler{to: buckets{stdout, stdout, stderr}})
	}

	if opts.Dir != "" {
		os.MkdirAll(opts.Dir, 0750) //nolint:errcheck
		file := func(name string, sizeMB, backups int) slog.Handler {
			return slog.NewTextHandler(&lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, name),
				MaxSize:    sizeMB,
				MaxBackups: backups,
			}, &slog.HandlerOptions{Level: slog.LevelDebug})
		}
		fan = append(fan, &bucketHandler{to: buckets{
			file("photocull_debug.log", 1, 1),
			file("photocull_info.log", 1, 1),
			file("photocull_warn.log", 100, 3),
		}})
	}

	Set(slog.New(fan))
}

// Set replaces the process logger. Tests use it to capture output.
func Set(l *slog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// ParseLevel maps a config string to a slog level, defaulting to INFO.
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

// Sub returns a child logger tagged with the given component name.
func Sub(component string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With("comp", component)
}

// Enabled reports whether the given level is enabled.
// Guard expensive DEBUG logging in hot paths with it.
func Enabled(level slog.Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Enabled(context.Background(), level)
}

// --- bucketHandler: one target per level bucket (debug, info, warn+) ---

type buckets [3]slog.Handler

func bucketOf(level slog.Level) int {
	switch {
	case level >= slog.LevelWarn:
		return 2
	case level >= slog.LevelInfo:
		return 1
	default:
		return 0
	}
}

type bucketHandler struct {
	to buckets
}

func (h *bucketHandler) Enabled(ctx context.Context, level slog.Level) bool {
	target := h.to[bucketOf(level)]
	return target != nil && target.Enabled(ctx, level)
}

func (h *bucketHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.to[bucketOf(r.Level)].Handle(ctx, r)
}

func (h *bucketHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	var out buckets
	for i, target := range h.to {
		if target != nil {
			out[i] = fn(target)
		}
	}
	return &bucketHandler{to: out}
}

func (h *bucketHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(t slog.Handler) slog.Handler { return t.WithAttrs(attrs) })
}

func (h *bucketHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(t slog.Handler) slog.Handler { return t.WithGroup(name) })
}

// --- errorCapture: keeps the most recent ERROR records for status surfaces ---

// Entry is a captured error record.
type Entry struct {
	Time    time.Time `json:"time"`
	Comp    string    `json:"comp"`
	Message string    `json:"message"`
	Item    string    `json:"item,omitempty"`
	Error   string    `json:"error,omitempty"`
}

var errorRing struct {
	mu      sync.Mutex
	entries [errorRingSize]Entry
	count   int
}

// RecentErrors returns the captured ERROR records, newest first.
func RecentErrors() []Entry {
	errorRing.mu.Lock()
	defer errorRing.mu.Unlock()
	n := min(errorRing.count, errorRingSize)
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = errorRing.entries[(errorRing.count-1-i)%errorRingSize]
	}
	return out
}

type errorCaptureHandler struct {
	attrs []slog.Attr
}

func (h *errorCaptureHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *errorCaptureHandler) Handle(_ context.Context, r slog.Record) error {
	entry := Entry{Time: r.Time, Message: r.Message}
	capture := func(a slog.Attr) bool {
		switch a.Key {
		case "comp":
			entry.Comp = a.Value.String()
		case "item":
			entry.Item = a.Value.String()
		case "err":
			entry.Error = a.Value.String()
		}
		return true
	}
	for _, a := range h.attrs {
		capture(a)
	}
	r.Attrs(capture)

	errorRing.mu.Lock()
	errorRing.entries[errorRing.count%errorRingSize] = entry
	errorRing.count++
	errorRing.mu.Unlock()
	return nil
}

// WithAttrs keeps the attrs so a Sub logger's "comp" reaches the ring.
func (h *errorCaptureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &errorCaptureHandler{attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *errorCaptureHandler) WithGroup(_ string) slog.Handler { return h }

// --- fanout: every record goes to each handler that wants it ---

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return lo.SomeBy(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithAttrs(attrs) }))
}

func (f fanout) WithGroup(name string) slog.Handler {
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithGroup(name) }))
}
