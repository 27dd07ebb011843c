package prefetch

// wrap maps any logical offset, including negative ones, into [0, n).
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// ring is the index map: ring.ids[logical] is the physical slot id shown at
// that logical window position. Deletion rewrites ids; pixels never move.
type ring struct {
	ids []int
}

func newRing(size int) *ring {
	ids := make([]int, size)
	for i := range ids {
		ids[i] = i
	}
	return &ring{ids: ids}
}

func (r *ring) size() int { return len(r.ids) }

// at returns the slot id at logical position i (any integer).
func (r *ring) at(i int) int {
	return r.ids[wrap(i, len(r.ids))]
}

// rotateOut removes the id at logical from and shifts the next count ids
// down one position, placing the removed id at logical from+count.
// It returns the recycled id. O(count) id moves.
func (r *ring) rotateOut(from, count int) int {
	n := len(r.ids)
	freed := r.ids[wrap(from, n)]
	for i := 0; i < count; i++ {
		r.ids[wrap(from+i, n)] = r.ids[wrap(from+i+1, n)]
	}
	r.ids[wrap(from+count, n)] = freed
	return freed
}

// remove drops the entry at logical position i, shrinking the map by one.
// Entries after i move down one position.
func (r *ring) remove(i int) int {
	i = wrap(i, len(r.ids))
	id := r.ids[i]
	r.ids = append(r.ids[:i], r.ids[i+1:]...)
	return id
}

// isBijection reports whether ids are distinct and all within [0, capacity).
func (r *ring) isBijection(capacity int) bool {
	seen := make(map[int]bool, len(r.ids))
	for _, id := range r.ids {
		if id < 0 || id >= capacity || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

func (r *ring) clone() []int {
	out := make([]int, len(r.ids))
	copy(out, r.ids)
	return out
}
