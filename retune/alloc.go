package retune

import "go-retune/debug"

// allocator hands out MPE member channels, one per sounding note. It is
// scoped to a single retuning run and shared across all tracks of the
// file, so simultaneous identical note numbers on different tracks collide:
// the later note-on silently overwrites the earlier mapping and the
// earlier channel stays occupied until the run ends.
type allocator struct {
	free   []uint8         // unassigned pool channels, FIFO
	active map[uint8]uint8 // original note -> member channel
	order  []uint8         // original notes in allocation order, oldest first
}

func newAllocator() *allocator {
	return &allocator{
		free:   poolChannels(),
		active: make(map[uint8]uint8, poolSize),
	}
}

// poolChannels returns the 14 usable member channels: 1-15 minus the GM
// percussion channel.
func poolChannels() []uint8 {
	pool := make([]uint8, 0, poolSize)
	for ch := uint8(1); ch <= 15; ch++ {
		if ch != drumChannel {
			pool = append(pool, ch)
		}
	}
	return pool
}

// acquire assigns a member channel to an original note number. When the
// pool is exhausted it steals the channel of the least-recently-allocated
// note; the stolen note loses its mapping, so its eventual note-off falls
// back to the incoming message's channel like any unmatched note-off.
func (a *allocator) acquire(note uint8) uint8 {
	if _, held := a.active[note]; held {
		// retrigger before release: the overwrite leaks the old channel,
		// but the note keeps a single slot in the allocation order
		a.dropOrder(note)
	}
	var ch uint8
	if len(a.free) > 0 {
		ch = a.free[0]
		a.free = a.free[1:]
	} else {
		victim := a.order[0]
		ch = a.active[victim]
		delete(a.active, victim)
		a.order = a.order[1:]
		debug.Log("alloc", "pool exhausted: stole ch %d from note %d for note %d", ch, victim, note)
	}
	a.active[note] = ch
	a.order = append(a.order, note)
	return ch
}

// release removes the note's channel mapping and returns the channel to
// the pool. ok is false if the note had no mapping.
func (a *allocator) release(note uint8) (ch uint8, ok bool) {
	ch, ok = a.active[note]
	if !ok {
		return 0, false
	}
	delete(a.active, note)
	a.dropOrder(note)
	a.requeue(ch)
	return ch, true
}

func (a *allocator) dropOrder(note uint8) {
	for i, n := range a.order {
		if n == note {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// requeue returns a channel to the free list if it is a pool channel that
// is neither free nor still assigned to another note.
func (a *allocator) requeue(ch uint8) {
	if ch < 1 || ch > 15 || ch == drumChannel {
		return
	}
	for _, f := range a.free {
		if f == ch {
			return
		}
	}
	for _, assigned := range a.active {
		if assigned == ch {
			return
		}
	}
	a.free = append(a.free, ch)
}
