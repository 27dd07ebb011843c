package library

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 300 * time.Millisecond

// Change is one debounced batch of paths touched in the watched folder.
type Change struct {
	Paths []string
}

// Watcher reports changes to the files directly inside one folder.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(Change)
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for dir. onChange runs on the watcher's
// goroutine once events have been quiet for the debounce interval.
func NewWatcher(dir string, onChange func(Change)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		debounce: debounceInterval,
		onChange: onChange,
		watcher:  w,
	}, nil
}

// Start watches until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	l := sub("watcher")
	if err := w.watcher.Add(w.dir); err != nil {
		w.watcher.Close()
		return err
	}
	l.Info("watching", "dir", w.dir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(event.Name)
			if strings.HasPrefix(base, ".") || strings.HasSuffix(base, tmpSuffix) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			l.Warn("watch error", "err", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})
			l.Debug("flush", "paths", len(paths))
			w.onChange(Change{Paths: paths})
		}
	}
}

// Close closes the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
