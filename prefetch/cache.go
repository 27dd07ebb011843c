package prefetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// View is what the UI renders for the current item.
type View struct {
	Image    *Image // nil unless Status is SlotReady
	Name     string
	Item     string
	Position int // 1-based
	Total    int
	Status   SlotState
	Err      error
	// Ticket changes every time the slot is loaded again, even for the
	// same item.
	Ticket uint64
}

// Window is a diagnostic copy of the navigator state.
type Window struct {
	Counter  int   `json:"counter"`
	Current  int   `json:"current"`
	Front    int   `json:"front"`
	Back     int   `json:"back"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
	Margin   int   `json:"margin"`
	Total    int   `json:"total"`
	Indices  []int `json:"indices"`
}

// Option configures New.
type Option func(*options)

type options struct {
	workers int
	bus     *EventBus
}

// WithWorkers bounds the number of concurrent background decodes.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithEventBus publishes load results on bus instead of a private one.
func WithEventBus(bus *EventBus) Option {
	return func(o *options) { o.bus = bus }
}

// Cache is the windowed prefetch cache.
type Cache struct {
	win         *window
	slots       []*Slot
	loader      *Loader
	bus         *EventBus
	decoder     Decoder
	initialized bool
}

// New builds a cache over items with room for capacity decoded images and
// decodes items[0] synchronously so the first frame is ready on return.
// A failure decoding items[0] is not fatal: the first View reports it.
func New(items []string, capacity int, decoder Decoder, opts ...Option) (*Cache, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if len(items) == 0 {
		return nil, ErrEmptyCollection
	}
	o := options{workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = NewEventBus()
	}

	list := make([]string, len(items))
	copy(list, items)

	win := newWindow(list, capacity)
	slots := make([]*Slot, win.size())
	for i := range slots {
		slots[i] = newSlot(i)
	}

	c := &Cache{
		win:     win,
		slots:   slots,
		loader:  NewLoader(decoder, o.workers, o.bus),
		bus:     o.bus,
		decoder: decoder,
	}

	l := sub("cache")
	start := time.Now()
	c.loadSync(0, 0)
	l.Info("cache created", "items", len(list), "capacity", capacity, "slots", len(slots),
		"margin", win.margin, "firstDecode", time.Since(start))
	return c, nil
}

// Initialize dispatches background loads for the rest of the initial window.
// Calling it again is a no-op.
func (c *Cache) Initialize() {
	if c.initialized {
		return
	}
	c.initialized = true
	for i := 1; i < c.win.size(); i++ {
		c.dispatch(&loadRequest{logical: i, index: i})
	}
	sub("cache").Debug("initial window dispatched", "loads", c.win.size()-1)
}

// Advance moves to the next item. It returns false at the last item.
func (c *Cache) Advance() bool {
	ok, req := c.win.advance()
	if !ok {
		return false
	}
	c.dispatch(req)
	c.win.mustCheck("advance")
	c.logWindow("advance")
	return true
}

// Retreat moves to the previous item. It returns false at the first item.
func (c *Cache) Retreat() bool {
	ok, req := c.win.retreat()
	if !ok {
		return false
	}
	c.dispatch(req)
	c.win.mustCheck("retreat")
	c.logWindow("retreat")
	return true
}

// DeleteCurrent drops the current item from the list. It returns false when
// no items remain; the cache must not be navigated after that.
func (c *Cache) DeleteCurrent() bool {
	deleted := c.win.items[c.win.counter]
	ok, req := c.win.deleteCurrent()
	if !ok {
		sub("cache").Info("last item deleted, collection empty", "item", deleted)
		return false
	}
	c.dispatch(req)
	c.win.mustCheck("delete")
	sub("cache").Debug("item deleted", "item", deleted, "remaining", len(c.win.items),
		"size", c.win.size())
	c.logWindow("delete")
	return true
}

// Reload decodes the current item again, e.g. after it changed on disk.
func (c *Cache) Reload() {
	item := c.CurrentItem()
	if f, ok := c.decoder.(interface{ Forget(string) }); ok {
		f.Forget(item)
	}
	c.dispatch(&loadRequest{logical: c.win.current, index: c.win.counter})
}

// Current copies out the current slot. It never waits for a decode; while
// the slot is loading the View has Status SlotLoading and no Image.
func (c *Cache) Current() View {
	v := c.slots[c.win.slotAt(0)].snapshot()
	view := View{
		Image:    v.image,
		Name:     v.name,
		Item:     v.item,
		Position: c.win.counter + 1,
		Total:    len(c.win.items),
		Status:   v.state,
		Err:      v.err,
		Ticket:   v.ticket,
	}
	return view
}

// Ready returns a channel closed once the current slot's pending load, if
// any, has resolved. It is safe to wait on without holding the caller's lock.
func (c *Cache) Ready() <-chan struct{} {
	s := c.slots[c.win.slotAt(0)]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// WaitCurrent blocks until the current slot has resolved, then returns it.
func (c *Cache) WaitCurrent(ctx context.Context) (View, error) {
	select {
	case <-c.Ready():
		return c.Current(), nil
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	}
}

// First is the synchronous variant of Current. Right after New it returns
// the first item without blocking, since that item was decoded during
// construction.
func (c *Cache) First() View {
	v, _ := c.WaitCurrent(context.Background())
	return v
}

// CurrentItem returns the identifier of the current item.
func (c *Cache) CurrentItem() string {
	return c.win.items[c.win.counter]
}

// Items returns a copy of the remaining item list.
func (c *Cache) Items() []string {
	out := make([]string, len(c.win.items))
	copy(out, c.win.items)
	return out
}

// Len returns the number of remaining items.
func (c *Cache) Len() int { return len(c.win.items) }

// Position returns the 1-based position of the current item.
func (c *Cache) Position() int { return c.win.counter + 1 }

// Snapshot returns the navigator state.
func (c *Cache) Snapshot() Window {
	w := c.win
	return Window{
		Counter:  w.counter,
		Current:  w.current,
		Front:    w.front,
		Back:     w.back,
		Size:     w.size(),
		Capacity: w.capacity,
		Margin:   w.margin,
		Total:    len(w.items),
		Indices:  w.ring.clone(),
	}
}

// SlotStates returns the state of every slot in logical order, from the
// farthest back neighbour to the farthest front one.
func (c *Cache) SlotStates() []SlotState {
	w := c.win
	out := make([]SlotState, 0, w.size())
	for k := -w.back; k <= w.front; k++ {
		out = append(out, c.slots[w.slotAt(k)].snapshot().state)
	}
	return out
}

// Events returns the bus load results are published on.
func (c *Cache) Events() *EventBus { return c.bus }

// Wait blocks until all dispatched loads have finished.
func (c *Cache) Wait() { c.loader.Wait() }

// Close stops background work. The cache must not be used afterwards.
func (c *Cache) Close() {
	c.loader.Close()
	sub("cache").Debug("cache closed")
}

// dispatch reserves the target slot and hands the decode to the loader.
func (c *Cache) dispatch(req *loadRequest) {
	if req == nil {
		return
	}
	j := c.job(req)
	c.loader.Dispatch(j)
}

// loadSync decodes on the calling goroutine.
func (c *Cache) loadSync(logical, index int) {
	c.loader.run(c.job(&loadRequest{logical: logical, index: index}))
}

func (c *Cache) job(req *loadRequest) job {
	slot := c.slots[c.win.ring.at(req.logical)]
	item := c.win.items[req.index]
	ticket := slot.reserve(item)
	if logEnabled(slog.LevelDebug) {
		sub("cache").Debug("load scheduled", "slot", slot.id, "logical", wrap(req.logical, c.win.size()),
			"item", item, "ticket", ticket)
	}
	return job{slot: slot, item: item, ticket: ticket}
}

// logWindow dumps the names around current at DEBUG level.
func (c *Cache) logWindow(op string) {
	if !logEnabled(slog.LevelDebug) {
		return
	}
	w := c.win
	label := func(k int, _ int) string { return c.slots[w.slotAt(k)].label() }
	sub("cache").Debug(op,
		"before", lo.Map(lo.RangeFrom(-w.back, w.back), label),
		"current", label(0, 0),
		"after", lo.Map(lo.RangeFrom(1, w.front), label),
		"counter", w.counter, "slot", w.slotAt(0))
}
