package audio

// Accumulator owns the growable PCM buffer for one connection. It has no
// internal locking: the session command loop is the only writer, and a flush
// snapshot is handed off before any concurrent processing starts.
type Accumulator struct {
	buf     []byte
	floor   int
	max     int
	dropped int
}

// NewAccumulator returns an accumulator that rejects flushes below floor
// bytes and stops accepting appends once max bytes are buffered.
func NewAccumulator(floor, max int) *Accumulator {
	if floor <= 0 {
		floor = 1600
	}
	if max <= floor {
		max = 10 << 20
	}
	return &Accumulator{floor: floor, max: max}
}

// Append grows the buffer with one inbound frame. It reports false when the
// frame was dropped because the buffer is at capacity.
func (a *Accumulator) Append(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	if len(a.buf)+len(p) > a.max {
		a.dropped++
		return false
	}
	a.buf = append(a.buf, p...)
	return true
}

// Flush hands off the accumulated bytes and resets the live buffer. A buffer
// below the floor is left untouched and nothing is returned: it is too short
// to contain meaningful speech, and further frames may still arrive.
func (a *Accumulator) Flush() ([]byte, bool) {
	if len(a.buf) < a.floor {
		return nil, false
	}
	snapshot := a.buf
	a.buf = nil
	return snapshot, true
}

// Len reports the current buffered byte count.
func (a *Accumulator) Len() int { return len(a.buf) }

// Dropped reports how many frames were rejected at capacity.
func (a *Accumulator) Dropped() int { return a.dropped }

// Reset discards any buffered audio, for session teardown.
func (a *Accumulator) Reset() { a.buf = nil }
