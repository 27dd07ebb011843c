package prefetch

import (
	"fmt"
)

// loadRequest asks the facade to decode items[index] into the slot shown at
// logical window position logical.
type loadRequest struct {
	logical int
	index   int
}

// window is the navigator: it owns the item list, the index map and the
// position counters, and decides which single slot (if any) must be reloaded
// after each step. It never touches slots or pixels itself.
//
// For every k in [-back, front], the slot at logical current+k holds (or is
// loading) items[counter+k].
type window struct {
	items    []string
	capacity int
	margin   int // steady-state neighbours kept on each side
	ring     *ring

	counter int // index of the current item in items
	current int // logical position of the current item in ring
	front   int // decoded neighbours after current
	back    int // decoded neighbours before current
}

func newWindow(items []string, capacity int) *window {
	size := min(capacity, len(items))
	return &window{
		items:    items,
		capacity: capacity,
		margin:   (capacity - 2) / 2,
		ring:     newRing(size),
		front:    size - 1,
	}
}

func (w *window) size() int { return w.ring.size() }

// slotAt returns the physical slot id at a logical offset from current.
func (w *window) slotAt(offset int) int {
	return w.ring.at(w.current + offset)
}

// advance steps to the next item. It reports false, changing nothing, at the
// last item.
func (w *window) advance() (bool, *loadRequest) {
	if w.counter >= len(w.items)-1 {
		return false, nil
	}
	w.current = wrap(w.current+1, w.size())
	w.counter++

	if w.front > w.margin || w.counter+w.margin >= len(w.items) {
		// the neighbour that is now current was already decoded
		w.front--
		w.back++
		return true, nil
	}
	// recycle the oldest back slot as the new far-front neighbour
	return true, &loadRequest{logical: w.current + w.front, index: w.counter + w.front}
}

// retreat steps to the previous item. It reports false, changing nothing, at
// the first item.
func (w *window) retreat() (bool, *loadRequest) {
	if w.counter == 0 {
		return false, nil
	}
	w.current = wrap(w.current-1, w.size())
	w.counter--

	if w.back > w.margin || w.counter < w.margin {
		w.back--
		w.front++
		return true, nil
	}
	return true, &loadRequest{logical: w.current - w.back, index: w.counter - w.back}
}

// deleteCurrent removes items[counter]. It reports false once the list is
// empty; the window is unusable afterwards.
func (w *window) deleteCurrent() (bool, *loadRequest) {
	w.items = append(w.items[:w.counter], w.items[w.counter+1:]...)
	n := len(w.items)
	if n == 0 {
		return false, nil
	}

	if n < w.capacity {
		// every remaining item is already decoded: drop the slot for good
		w.ring.remove(w.current)
		if w.front == 0 {
			w.counter--
			w.back--
			w.current--
		} else {
			w.front--
		}
		w.current = wrap(w.current, w.size())
		return true, nil
	}

	if w.front == 0 && w.counter == n {
		// deleted the last item: step back and refill the vacated slot,
		// which is now the far-back position
		w.current = wrap(w.current-1, w.size())
		w.counter--
		return true, &loadRequest{logical: w.current - w.back, index: w.counter - w.back}
	}

	// shift the front neighbours down one logical position and recycle the
	// deleted item's slot at the new front boundary. Near the tail, or when
	// the front edge already sits on the last item, refill behind instead.
	w.ring.rotateOut(w.current, w.front)
	if w.front > 0 && (w.counter+w.margin >= n || w.counter+w.front >= n) {
		w.front--
		w.back++
		return true, &loadRequest{logical: w.current - w.back, index: w.counter - w.back}
	}
	return true, &loadRequest{logical: w.current + w.front, index: w.counter + w.front}
}

// check verifies the window invariants. A non-nil result is a programming
// error, never a runtime condition.
func (w *window) check() error {
	n, size := len(w.items), w.size()
	switch {
	case size != min(w.capacity, n):
		return fmt.Errorf("size %d, want min(%d, %d)", size, w.capacity, n)
	case w.current < 0 || w.current >= size:
		return fmt.Errorf("current %d out of [0, %d)", w.current, size)
	case w.counter < 0 || w.counter >= n:
		return fmt.Errorf("counter %d out of [0, %d)", w.counter, n)
	case w.front < 0 || w.back < 0:
		return fmt.Errorf("negative margin front=%d back=%d", w.front, w.back)
	case w.front+w.back+1 != size:
		return fmt.Errorf("front %d + back %d + 1 != size %d", w.front, w.back, size)
	case w.counter-w.back < 0 || w.counter+w.front >= n:
		return fmt.Errorf("window [%d, %d] outside items [0, %d)", w.counter-w.back, w.counter+w.front, n)
	case !w.ring.isBijection(w.capacity):
		return fmt.Errorf("index map %v is not a bijection into [0, %d)", w.ring.ids, w.capacity)
	}
	return nil
}

// mustCheck panics on an invariant violation.
func (w *window) mustCheck(op string) {
	if err := w.check(); err != nil {
		panic(fmt.Sprintf("prefetch: %s broke window invariant: %v", op, err))
	}
}
