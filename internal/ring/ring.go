// Package ring implements the frame-aligned circular sample store that
// backs an inbound audio stream: a fixed-capacity ring of int16 PCM
// samples addressed in whole frames, with overwrite-on-overflow and a
// back-writable history window for late/reordered packets.
package ring

import "errors"

// ErrInvalidGeometry is returned by New when frameSampleCount or
// frameCapacity is non-positive.
var ErrInvalidGeometry = errors.New("ring: frameSampleCount and frameCapacity must be >= 1")

// Buffer is a circular store of frameCapacity*frameSampleCount samples.
// Not safe for concurrent use; the producer performs all writes and
// drops, the consumer performs all pops, per the single-producer/
// single-consumer discipline described for the stream as a whole.
type Buffer struct {
	samples          []int16
	frameSampleCount int
	frameCapacity    int

	written int64 // monotonic count of samples ever written
	read    int64 // monotonic count of samples ever read (popped or dropped)

	overflowCount uint64

	lastPopOutput    []int16
	lastPopSucceeded bool
}

// New returns an empty ring sized for frameCapacity frames of
// frameSampleCount samples each.
func New(frameSampleCount, frameCapacity int) (*Buffer, error) {
	if frameSampleCount < 1 || frameCapacity < 1 {
		return nil, ErrInvalidGeometry
	}
	return &Buffer{
		samples:          make([]int16, frameSampleCount*frameCapacity),
		frameSampleCount: frameSampleCount,
		frameCapacity:    frameCapacity,
	}, nil
}

func (b *Buffer) capacitySamples() int { return len(b.samples) }

// FramesAvailable returns the number of complete frames currently buffered.
func (b *Buffer) FramesAvailable() int {
	return int(b.written-b.read) / b.frameSampleCount
}

// FramesRemaining returns the headroom before the ring is full.
func (b *Buffer) FramesRemaining() int {
	return b.frameCapacity - b.FramesAvailable()
}

// GetOverflowCount returns the number of write calls that had to advance
// the read cursor to make room (data loss on the oldest end).
func (b *Buffer) GetOverflowCount() uint64 { return b.overflowCount }

// WriteSamples appends src to the ring, overwriting the oldest samples if
// it would exceed capacity.
func (b *Buffer) WriteSamples(src []int16) {
	b.writeRaw(src)
}

// WriteSilent appends n zero-valued samples (loss fill).
func (b *Buffer) WriteSilent(n int) {
	if n <= 0 {
		return
	}
	zeros := make([]int16, n)
	b.writeRaw(zeros)
}

func (b *Buffer) writeRaw(src []int16) {
	n := len(src)
	if n == 0 {
		return
	}
	capSamples := b.capacitySamples()
	if n > capSamples {
		// Never addressable in full; only the tail fits. The skipped head
		// counts as written-then-overwritten, so the check below advances
		// the read cursor past it and counts this call's overflow once.
		overflowed := n - capSamples
		b.written += int64(overflowed)
		src = src[overflowed:]
		n = len(src)
	}

	available := int(b.written - b.read)
	if available+n > capSamples {
		overflow := available + n - capSamples
		b.read += int64(overflow)
		b.overflowCount++
	}

	pos := int(b.written % int64(capSamples))
	for i := 0; i < n; i++ {
		b.samples[(pos+i)%capSamples] = src[i]
	}
	b.written += int64(n)
}

// WriteAt attempts a back-write of src into the ring at offsetFrames
// frames behind the current write cursor — used for a LATE packet that
// arrived after its slot was loss-filled but before that slot was
// popped. Returns false (no-op) if the target range has already been
// popped or is otherwise no longer addressable.
func (b *Buffer) WriteAt(offsetFrames int, src []int16) bool {
	if offsetFrames <= 0 {
		return false
	}
	capSamples := b.capacitySamples()
	offsetSamples := int64(offsetFrames * b.frameSampleCount)
	start := b.written - offsetSamples
	end := start + int64(len(src))
	if start < b.read || end > b.written {
		return false
	}
	pos := int(start % int64(capSamples))
	for i, v := range src {
		b.samples[(pos+i)%capSamples] = v
	}
	return true
}

// PopFrames pops n frames if available, producing the iterator over the
// popped window. Returns ok=false (no-op) if fewer than n frames are
// available.
func (b *Buffer) PopFrames(n int) (it Iterator, ok bool) {
	if n <= 0 || b.FramesAvailable() < n {
		b.lastPopSucceeded = false
		return Iterator{}, false
	}
	count := n * b.frameSampleCount
	capSamples := b.capacitySamples()
	start := int(b.read % int64(capSamples))
	it = Iterator{buf: b.samples, start: start, n: count}
	b.read += int64(count)

	out := make([]int16, count)
	for i := 0; i < count; i++ {
		out[i] = b.samples[(start+i)%capSamples]
	}
	b.lastPopOutput = out
	b.lastPopSucceeded = true
	return it, true
}

// DropFrames discards up to n of the oldest buffered frames (used to trim
// the ring back to desiredFrames) and returns how many were actually
// dropped.
func (b *Buffer) DropFrames(n int) int {
	if n <= 0 {
		return 0
	}
	avail := b.FramesAvailable()
	if n > avail {
		n = avail
	}
	b.read += int64(n * b.frameSampleCount)
	return n
}

// Clear drops all buffered frames without touching the overflow counter.
func (b *Buffer) Clear() {
	b.read = b.written
	b.lastPopOutput = nil
	b.lastPopSucceeded = false
}

// FullReset drops all buffered frames and zeroes the overflow counter —
// the heavier administrative reset used by the stream's public Reset.
func (b *Buffer) FullReset() {
	b.Clear()
	b.overflowCount = 0
}

// LastPopOutput returns the samples from the most recent successful pop.
// The slice remains valid until the next pop or reset.
func (b *Buffer) LastPopOutput() []int16 { return b.lastPopOutput }

// LastPopSucceeded reports whether the most recent pop attempt returned
// any frames.
func (b *Buffer) LastPopSucceeded() bool { return b.lastPopSucceeded }

// FrameSampleCount returns the configured samples-per-frame.
func (b *Buffer) FrameSampleCount() int { return b.frameSampleCount }

// FrameCapacity returns the configured total frame capacity.
func (b *Buffer) FrameCapacity() int { return b.frameCapacity }

// Iterator walks the samples produced by a single PopFrames call without
// an extra allocation beyond the iterator itself.
type Iterator struct {
	buf   []int16
	start int
	n     int
	pos   int
}

// Next returns the next sample and true, or (0, false) once exhausted.
func (it *Iterator) Next() (int16, bool) {
	if it.pos >= it.n {
		return 0, false
	}
	v := it.buf[(it.start+it.pos)%len(it.buf)]
	it.pos++
	return v, true
}

// Len returns the total number of samples the iterator will yield.
func (it *Iterator) Len() int { return it.n }

// Collect materializes the remaining samples into a new slice.
func (it *Iterator) Collect() []int16 {
	out := make([]int16, 0, it.n-it.pos)
	for {
		v, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}
