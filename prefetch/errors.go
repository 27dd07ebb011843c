package prefetch

import (
	"fmt"
)

// ErrEmptyCollection is returned by New when there is nothing to browse.
var ErrEmptyCollection = fmt.Errorf("empty collection")

// ErrInvalidCapacity is returned by New when capacity is below one slot.
var ErrInvalidCapacity = fmt.Errorf("capacity must be at least 1")

// ErrClosed marks a load that was abandoned because the cache was closed.
var ErrClosed = fmt.Errorf("cache closed")

// DecodeError reports that one item could not be decoded. It never aborts
// navigation; the affected slot is marked SlotFailed.
type DecodeError struct {
	Item string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Item, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
