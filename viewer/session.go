// Package viewer ties the prefetch cache to a folder on disk: it carries out
// edit and bin actions, records them in the journal and exposes the session
// over HTTP.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/ghyeongl/photocull/journal"
	"github.com/ghyeongl/photocull/library"
	"github.com/ghyeongl/photocull/logging"
	"github.com/ghyeongl/photocull/prefetch"
)

// ErrNoMoreItems is returned once every image in the folder has been binned.
var ErrNoMoreItems = fmt.Errorf("no more items")

// ErrLastItemDeleted is returned by the Delete that empties the folder. It
// wraps ErrNoMoreItems.
var ErrLastItemDeleted = fmt.Errorf("last item deleted: %w", ErrNoMoreItems)

func sub(component string) *slog.Logger { return logging.Sub(component) }

// Options configure a Session.
type Options struct {
	Folder     string
	Capacity   int
	Workers    int
	Extensions []string
	Sidecars   []string
	// Journal is optional; actions are not recorded when nil.
	Journal *journal.Store
}

// Session is one culling pass over a folder. All methods are safe for
// concurrent use; navigation is serialised so the cache sees a single
// control flow.
type Session struct {
	mu        sync.Mutex
	folder    string
	fs        afero.Fs
	cache     *prefetch.Cache
	mover     *library.Mover
	journal   *journal.Store
	bus       *prefetch.EventBus
	exhausted bool
}

// Open scans the folder and builds the cache. The first image is decoded
// before Open returns; the rest of the window loads in the background.
func Open(fsys afero.Fs, dec prefetch.Decoder, opts Options) (*Session, error) {
	l := sub("session")
	folder, err := filepath.Abs(opts.Folder)
	if err != nil {
		return nil, fmt.Errorf("resolve folder: %w", err)
	}
	items, err := library.Scan(fsys, folder, opts.Extensions)
	if err != nil {
		return nil, err
	}

	bus := prefetch.NewEventBus()
	cache, err := prefetch.New(items, opts.Capacity, dec,
		prefetch.WithWorkers(opts.Workers), prefetch.WithEventBus(bus))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	cache.Initialize()

	l.Info("session opened", "folder", folder, "items", len(items), "capacity", opts.Capacity)
	return &Session{
		folder:  folder,
		fs:      fsys,
		cache:   cache,
		mover:   library.NewMover(fsys, folder, opts.Sidecars),
		journal: opts.Journal,
		bus:     bus,
	}, nil
}

// Folder returns the absolute folder path.
func (s *Session) Folder() string { return s.folder }

// Events returns the bus load results are published on.
func (s *Session) Events() *prefetch.EventBus { return s.bus }

// Current returns the current image without waiting for a pending load.
func (s *Session) Current() (prefetch.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return prefetch.View{}, ErrNoMoreItems
	}
	return s.cache.Current(), nil
}

// Wait blocks until the current image has finished loading. The lock is not
// held while waiting, so navigation from other callers is not blocked.
func (s *Session) Wait(ctx context.Context) (prefetch.View, error) {
	for {
		s.mu.Lock()
		if s.exhausted {
			s.mu.Unlock()
			return prefetch.View{}, ErrNoMoreItems
		}
		ready := s.cache.Ready()
		item := s.cache.CurrentItem()
		s.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return prefetch.View{}, ctx.Err()
		}

		s.mu.Lock()
		if s.exhausted {
			s.mu.Unlock()
			return prefetch.View{}, ErrNoMoreItems
		}
		v := s.cache.Current()
		s.mu.Unlock()
		// someone navigated while we waited: wait for the new current item
		if v.Item == item && v.Status != prefetch.SlotLoading {
			return v, nil
		}
	}
}

// Next advances to the following image. It reports false at the last one.
func (s *Session) Next() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return false, ErrNoMoreItems
	}
	return s.cache.Advance(), nil
}

// Prev steps back to the previous image. It reports false at the first one.
func (s *Session) Prev() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return false, ErrNoMoreItems
	}
	return s.cache.Retreat(), nil
}

// Edit copies the current image and its sidecars into edit/.
func (s *Session) Edit(ctx context.Context) (library.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return library.Result{}, ErrNoMoreItems
	}
	item := s.cache.CurrentItem()
	res, err := s.mover.Edit(ctx, item)
	if err != nil {
		return res, err
	}
	s.record(journal.ActionEdit, item, res.Image)
	return res, nil
}

// Delete moves the current image and its sidecars into bin/ and drops it
// from the list. An image already gone from disk is dropped all the same.
// When it was the last one the move still happened (unless the file had
// vanished) and ErrLastItemDeleted is returned.
func (s *Session) Delete(ctx context.Context) (library.Result, error) {
	l := sub("session")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return library.Result{}, ErrNoMoreItems
	}
	item := s.cache.CurrentItem()
	res, err := s.mover.Bin(ctx, item)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.Warn("image vanished, dropping it", "item", item, "err", err)
	case err != nil:
		return res, err
	default:
		s.record(journal.ActionBin, item, res.Image)
	}

	if !s.cache.DeleteCurrent() {
		s.exhausted = true
		l.Info("folder exhausted", "folder", s.folder)
		return res, ErrLastItemDeleted
	}
	return res, nil
}

func (s *Session) record(kind, item, dst string) {
	if s.journal == nil {
		return
	}
	_, err := s.journal.Record(journal.Action{
		Folder: s.folder,
		Name:   filepath.Base(item),
		Kind:   kind,
		Dst:    dst,
	})
	if err != nil {
		sub("session").Warn("journal write failed", "item", item, "err", err)
	}
}

// Stats is a diagnostic summary of the session.
type Stats struct {
	Folder    string          `json:"folder"`
	Position  int             `json:"position"`
	Total     int             `json:"total"`
	Exhausted bool            `json:"exhausted"`
	Window    prefetch.Window `json:"window"`
	Slots     map[string]int  `json:"slots"`
	Counts    map[string]int  `json:"counts,omitempty"`
}

// Stats returns the navigator state, slot states and journal counts.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Folder: s.folder, Exhausted: s.exhausted}
	if !s.exhausted {
		st.Position = s.cache.Position()
		st.Total = s.cache.Len()
		st.Window = s.cache.Snapshot()
		st.Slots = lo.CountValuesBy(s.cache.SlotStates(), func(st prefetch.SlotState) string {
			return st.String()
		})
	}
	if s.journal != nil {
		counts, err := s.journal.Counts(s.folder)
		if err != nil {
			sub("session").Warn("journal counts failed", "err", err)
		}
		st.Counts = counts
	}
	return st
}

// Run watches the folder until ctx is cancelled and reloads the current
// image when it changes on disk.
func (s *Session) Run(ctx context.Context) error {
	w, err := library.NewWatcher(s.folder, s.onChange)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.folder, err)
	}
	err = w.Start(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Reload decodes the current image again.
func (s *Session) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return ErrNoMoreItems
	}
	s.cache.Reload()
	return nil
}

func (s *Session) onChange(c library.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return
	}
	item := s.cache.CurrentItem()
	if lo.Contains(c.Paths, item) {
		sub("session").Info("current image changed on disk, reloading", "item", item)
		s.cache.Reload()
		return
	}
	sub("session").Debug("folder changed", "paths", len(c.Paths))
}

// Close stops background decodes.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Close()
	sub("session").Info("session closed", "folder", s.folder)
}
