package prefetch

import (
	"path/filepath"
	"sync"
)

// SlotState is the lifecycle state of one cache slot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotLoading
	SlotReady
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotLoading:
		return "loading"
	case SlotReady:
		return "ready"
	case SlotFailed:
		return "failed"
	}
	return "unknown"
}

// Slot is one physical cache cell. It is allocated once and overwritten in
// place by every load. The mutex is only held to reserve, fill or copy; never
// across a decode.
type Slot struct {
	id int

	mu     sync.Mutex
	pix    []byte
	width  int
	height int
	item   string
	name   string
	state  SlotState
	err    error
	ticket uint64
	done   chan struct{}
}

func newSlot(id int) *Slot {
	done := make(chan struct{})
	close(done)
	return &Slot{id: id, done: done}
}

// reserve claims the slot for item and returns the ticket the matching load
// must present to fill. Any load already in flight for this slot becomes stale.
func (s *Slot) reserve(item string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket++
	s.item = item
	s.name = filepath.Base(item)
	s.state = SlotLoading
	s.err = nil
	select {
	case <-s.done:
		s.done = make(chan struct{})
	default:
		// previous load still pending; its waiters now wait for this one
	}
	return s.ticket
}

// fill stores a load result. It returns false, and changes nothing, when
// ticket has been superseded by a later reserve.
func (s *Slot) fill(ticket uint64, img *Image, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.ticket {
		return false
	}
	if err != nil {
		// previous pixels stay in the buffer but are no longer exposed
		s.state = SlotFailed
		s.err = err
	} else {
		s.store(img)
		s.state = SlotReady
	}
	close(s.done)
	return true
}

// store copies img into the slot buffer, reallocating only when the
// dimensions change. Caller holds s.mu.
func (s *Slot) store(img *Image) {
	if s.width != img.Width || s.height != img.Height || len(s.pix) != len(img.Pix) {
		s.pix = make([]byte, len(img.Pix))
		s.width = img.Width
		s.height = img.Height
	}
	copy(s.pix, img.Pix)
}

// snapshot copies the slot out under its lock.
func (s *Slot) snapshot() slotView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := slotView{
		item:   s.item,
		name:   s.name,
		state:  s.state,
		err:    s.err,
		ticket: s.ticket,
	}
	if s.state == SlotReady {
		pix := make([]byte, len(s.pix))
		copy(pix, s.pix)
		v.image = &Image{Width: s.width, Height: s.height, Pix: pix}
	}
	return v
}

type slotView struct {
	image  *Image
	item   string
	name   string
	state  SlotState
	err    error
	ticket uint64
}

func (s *Slot) label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}
