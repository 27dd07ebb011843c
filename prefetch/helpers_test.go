package prefetch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDecoder returns a small deterministic image per item. Items can be
// made to fail or to block until their gate is closed.
type fakeDecoder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	gates map[string]chan struct{}
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		fail:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (d *fakeDecoder) Decode(ctx context.Context, item string) (*Image, error) {
	d.mu.Lock()
	d.calls = append(d.calls, item)
	gate := d.gates[item]
	err := d.fail[item]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return imageFor(item), nil
}

func (d *fakeDecoder) block(item string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.gates[item] = ch
	return ch
}

func (d *fakeDecoder) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDecoder) callsSnapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// imageFor encodes the item in the pixels so tests can tell slots apart.
func imageFor(item string) *Image {
	w := len(item)
	pix := make([]byte, 3*w)
	for i := range pix {
		pix[i] = item[0]
	}
	return &Image{Width: w, Height: 1, Pix: pix}
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/photos/IMG_%04d.JPG", i)
	}
	return out
}

func newTestCache(t *testing.T, items []string, capacity int) (*Cache, *fakeDecoder) {
	t.Helper()
	dec := newFakeDecoder()
	c, err := New(items, capacity, dec, WithWorkers(4))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, dec
}

// assertWindow checks the navigator invariants and that every logical
// position in the window holds (or is loading) the matching item.
func assertWindow(t *testing.T, c *Cache) {
	t.Helper()
	w := c.win
	require.NoError(t, w.check())
	for k := -w.back; k <= w.front; k++ {
		got := c.slots[w.slotAt(k)].snapshot().item
		require.Equal(t, w.items[w.counter+k], got,
			"offset %d (counter=%d front=%d back=%d ids=%v)", k, w.counter, w.front, w.back, w.ring.ids)
	}
}

func itemsOf(names ...string) []string {
	return append([]string(nil), names...)
}
