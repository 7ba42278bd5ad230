package audio

import (
	"bytes"
	"testing"
)

func TestAccumulatorFlushBelowFloorIsNoOp(t *testing.T) {
	a := NewAccumulator(1600, 1<<20)
	a.Append(make([]byte, 100))

	if _, ok := a.Flush(); ok {
		t.Fatalf("Flush() below floor should return nothing")
	}
	if a.Len() != 100 {
		t.Fatalf("Len() after rejected flush = %d, want 100", a.Len())
	}

	// The live buffer must keep accepting appends after a rejected flush.
	if !a.Append(make([]byte, 1500)) {
		t.Fatalf("Append() after rejected flush should succeed")
	}
	snapshot, ok := a.Flush()
	if !ok {
		t.Fatalf("Flush() at %d bytes should succeed", a.Len())
	}
	if len(snapshot) != 1600 {
		t.Fatalf("snapshot length = %d, want 1600", len(snapshot))
	}
}

func TestAccumulatorFlushResetsBuffer(t *testing.T) {
	a := NewAccumulator(1600, 1<<20)
	payload := bytes.Repeat([]byte{0x7f, 0x00}, 1000)
	a.Append(payload)

	snapshot, ok := a.Flush()
	if !ok {
		t.Fatalf("Flush() error, want snapshot")
	}
	if !bytes.Equal(snapshot, payload) {
		t.Fatalf("snapshot does not match appended bytes")
	}
	if a.Len() != 0 {
		t.Fatalf("Len() after flush = %d, want 0", a.Len())
	}

	// A second flush without new audio must be a no-op.
	if _, ok := a.Flush(); ok {
		t.Fatalf("second Flush() should return nothing")
	}
}

func TestAccumulatorResetDiscardsBufferedAudio(t *testing.T) {
	a := NewAccumulator(1600, 1<<20)
	a.Append(make([]byte, 4000))

	a.Reset()
	if a.Len() != 0 {
		t.Fatalf("Len() after reset = %d, want 0", a.Len())
	}
	if _, ok := a.Flush(); ok {
		t.Fatalf("Flush() after reset should return nothing")
	}

	// Reset releases the buffer but the accumulator stays usable.
	if !a.Append(make([]byte, 2000)) {
		t.Fatalf("Append() after reset should succeed")
	}
	if _, ok := a.Flush(); !ok {
		t.Fatalf("Flush() after reset and re-append should succeed")
	}
}

func TestAccumulatorDropsAtCapacity(t *testing.T) {
	a := NewAccumulator(10, 100)
	if !a.Append(make([]byte, 90)) {
		t.Fatalf("Append() under capacity should succeed")
	}
	if a.Append(make([]byte, 20)) {
		t.Fatalf("Append() over capacity should be dropped")
	}
	if a.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", a.Dropped())
	}
	if a.Len() != 90 {
		t.Fatalf("Len() = %d, want 90 (dropped frame must not partially land)", a.Len())
	}
}
