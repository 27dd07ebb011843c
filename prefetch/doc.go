// Package prefetch implements a windowed prefetch cache for stepping through a
// long ordered list of large images.
//
// A fixed number of slots hold decoded images around the current position. Each
// step forward or backward issues at most one background decode for the
// neighbour that just came into reach, and deleting the current item recycles
// its slot by rewriting the index map rather than moving pixel data.
//
// A Cache is driven from a single goroutine (or under the caller's own lock).
// Background decodes run on their own goroutines and only ever touch the slot
// they were dispatched for, so reading the current image never waits on a
// neighbour's decode.
package prefetch

import (
	"log/slog"

	"github.com/ghyeongl/photocull/logging"
)

func sub(component string) *slog.Logger {
	return logging.Sub(component)
}

func logEnabled(level slog.Level) bool {
	return logging.Enabled(level)
}
