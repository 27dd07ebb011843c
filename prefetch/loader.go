package prefetch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/marusama/semaphore/v2"
)

// DefaultWorkers bounds concurrent decodes when no WithWorkers option is given.
const DefaultWorkers = 2

// job is one unit of background work: decode item into slot under ticket.
type job struct {
	slot   *Slot
	item   string
	ticket uint64
}

// Loader runs decodes off the control goroutine. Jobs for different slots are
// unordered; a job is never cancelled once dispatched, except by Close.
type Loader struct {
	decoder Decoder
	sem     semaphore.Semaphore
	bus     *EventBus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoader creates a loader that runs at most workers decodes at once.
func NewLoader(decoder Decoder, workers int, bus *EventBus) *Loader {
	if workers < 1 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		decoder: decoder,
		sem:     semaphore.New(workers),
		bus:     bus,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dispatch schedules j and returns immediately.
func (l *Loader) Dispatch(j job) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(j)
	}()
}

// run decodes without holding the slot lock, then fills the slot.
func (l *Loader) run(j job) {
	log := sub("loader")
	if err := l.sem.Acquire(l.ctx, 1); err != nil {
		log.Debug("load abandoned, loader closed", "slot", j.slot.id, "item", j.item)
		j.slot.fill(j.ticket, nil, ErrClosed)
		return
	}
	start := time.Now()
	img, err := l.decoder.Decode(l.ctx, j.item)
	l.sem.Release(1)

	if err != nil {
		if l.ctx.Err() != nil {
			log.Debug("load cancelled", "slot", j.slot.id, "item", j.item)
			j.slot.fill(j.ticket, nil, ErrClosed)
			return
		}
		err = &DecodeError{Item: j.item, Err: err}
	}
	l.complete(j, img, err, time.Since(start))
}

// complete stores a result in the slot and reports it.
func (l *Loader) complete(j job, img *Image, err error, took time.Duration) {
	log := sub("loader")
	stored := j.slot.fill(j.ticket, img, err)

	ev := LoadEvent{
		Slot:   j.slot.id,
		Item:   j.item,
		Name:   filepath.Base(j.item),
		Ticket: j.ticket,
		Status: SlotReady,
		Err:    err,
		Stale:  !stored,
	}
	if err != nil {
		ev.Status = SlotFailed
	}

	switch {
	case !stored:
		log.Debug("stale load discarded", "slot", j.slot.id, "item", j.item, "ticket", j.ticket)
	case err != nil:
		log.Warn("load failed", "slot", j.slot.id, "item", j.item, "err", err)
	default:
		if logEnabled(slog.LevelDebug) {
			log.Debug("load done", "slot", j.slot.id, "item", j.item,
				"w", img.Width, "h", img.Height, "took", took)
		}
	}

	if l.bus != nil {
		l.bus.Publish(ev)
	}
}

// Wait blocks until every dispatched job has finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Close cancels in-flight decodes and waits for their goroutines. Loads it
// cuts short leave their slot SlotFailed with ErrClosed.
func (l *Loader) Close() {
	l.cancel()
	l.wg.Wait()
}
