// Package arena implements a bump allocator over a fixed-capacity buffer.
//
// Allocations are O(1) and return sub-slices of a single backing array. There
// are no individual frees: the whole arena is reclaimed at once with Reset, or
// from the front with Drain once its contents have been written to a socket.
// Slices returned by Alloc are only valid until the next Reset, Drain or
// Truncate below their offset.
package arena

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned when an allocation would exceed the arena's capacity.
var ErrExhausted = errors.New("arena exhausted")

// Arena is a bump allocator. The zero value is not usable, see New.
type Arena struct {
	buf []byte
	pos int
}

// New allocates the backing buffer for an arena of the given capacity.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid arena capacity %d", capacity)
	}
	return &Arena{buf: make([]byte, capacity)}, nil
}

// Alloc returns a span of exactly n bytes starting at the current offset and
// advances the offset past it. The memory is not zeroed.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid allocation size %d", n)
	}
	if n > len(a.buf)-a.pos {
		return nil, fmt.Errorf("%w: requested %d bytes, %d of %d available",
			ErrExhausted, n, len(a.buf)-a.pos, len(a.buf))
	}

	mem := a.buf[a.pos : a.pos+n : a.pos+n]
	a.pos += n
	return mem, nil
}

// Reset reclaims every allocation.
func (a *Arena) Reset() {
	a.pos = 0
}

// Truncate moves the offset back to pos, giving back everything allocated
// above it. Panics if pos is outside of [0, Pos()].
func (a *Arena) Truncate(pos int) {
	if pos < 0 || pos > a.pos {
		panic(fmt.Sprintf("arena: truncate to %d outside of [0, %d]", pos, a.pos))
	}
	a.pos = pos
}

// Drain discards the first n allocated bytes. Whatever was allocated after
// them is moved to the front of the arena so that it can be drained later.
func (a *Arena) Drain(n int) {
	if n < 0 || n > a.pos {
		panic(fmt.Sprintf("arena: drain of %d bytes outside of [0, %d]", n, a.pos))
	}
	copy(a.buf, a.buf[n:a.pos])
	a.pos -= n
}

// Bytes returns the allocated region of the arena.
func (a *Arena) Bytes() []byte { return a.buf[:a.pos] }

// Slice returns the allocated bytes in [from, to).
func (a *Arena) Slice(from, to int) []byte {
	if to > a.pos {
		panic(fmt.Sprintf("arena: slice [%d:%d] beyond offset %d", from, to, a.pos))
	}
	return a.buf[from:to:to]
}

func (a *Arena) Pos() int       { return a.pos }
func (a *Arena) Cap() int       { return len(a.buf) }
func (a *Arena) Available() int { return len(a.buf) - a.pos }
