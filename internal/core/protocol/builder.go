package protocol

import (
	"errors"
	"fmt"

	"github.com/dcrodman/anvil/internal/core/arena"
)

var errInterleaved = errors.New("outbound arena was modified while a packet was being built")

// Builder assembles one outbound frame directly in an arena.
//
// The length of a frame comes before its payload but isn't known until the
// payload has been written, so Begin reserves MaxVarIntLen bytes in front of
// the payload. Finish writes the length into the end of that pad and slides
// the frame to the start of it, leaving no gap. Only one Builder may be
// writing to an arena at a time.
//
// Write errors are sticky; the first one is returned by Finish.
type Builder struct {
	out   *arena.Arena
	start int // offset of the reserved length prefix
	n     int // payload bytes written so far
	size  int // frame size once finished
	err   error
}

// Begin starts a frame for packet id in out.
func Begin(out *arena.Arena, id int32) *Builder {
	b := &Builder{out: out, start: out.Pos()}
	if _, err := out.Alloc(MaxVarIntLen); err != nil {
		b.err = err
		return b
	}
	b.WriteVarInt(id)
	return b
}

func (b *Builder) grow(n int) []byte {
	if b.err != nil {
		return nil
	}
	if b.size > 0 {
		b.err = errors.New("write to a finished packet")
		return nil
	}
	if b.out.Pos() != b.start+MaxVarIntLen+b.n {
		b.err = errInterleaved
		return nil
	}

	mem, err := b.out.Alloc(n)
	if err != nil {
		b.err = err
		return nil
	}
	b.n += n
	return mem
}

func (b *Builder) WriteVarInt(v int32) {
	var tmp [MaxVarIntLen]byte
	n := PutVarInt(tmp[:], v)
	copy(b.grow(n), tmp[:n])
}

// WriteString writes s with a varint length prefix.
func (b *Builder) WriteString(s string) {
	if len(s) > MaxStringBytes {
		b.setErr(fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s)))
		return
	}
	b.WriteVarInt(int32(len(s)))
	copy(b.grow(len(s)), s)
}

// WritePrefixedBytes writes p with a varint length prefix.
func (b *Builder) WritePrefixedBytes(p []byte) {
	b.WriteVarInt(int32(len(p)))
	b.WriteBytes(p)
}

// WriteBytes writes p as-is.
func (b *Builder) WriteBytes(p []byte) {
	copy(b.grow(len(p)), p)
}

func (b *Builder) WriteUint8(v byte) {
	if mem := b.grow(1); mem != nil {
		mem[0] = v
	}
}

func (b *Builder) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
	} else {
		b.WriteUint8(0)
	}
}

// WriteUint16 writes v in big-endian order.
func (b *Builder) WriteUint16(v uint16) {
	if mem := b.grow(2); mem != nil {
		mem[0] = byte(v >> 8)
		mem[1] = byte(v)
	}
}

// WriteInt64 writes v in big-endian order.
func (b *Builder) WriteInt64(v int64) {
	mem := b.grow(8)
	if mem == nil {
		return
	}
	for i := 7; i >= 0; i-- {
		mem[i] = byte(v)
		v >>= 8
	}
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the first error encountered while building the packet.
func (b *Builder) Err() error { return b.err }

// Finish patches in the length prefix and returns the size of the frame. On
// error whatever the builder allocated is given back to the arena, provided
// nothing was allocated after it.
func (b *Builder) Finish() (int, error) {
	if b.err == nil && b.n > MaxPacketLength {
		b.err = fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, b.n)
	}
	if b.err != nil {
		if b.size == 0 && b.out.Pos() == b.start+MaxVarIntLen+b.n {
			b.out.Truncate(b.start)
		}
		return 0, b.err
	}
	if b.size > 0 {
		return b.size, nil
	}

	var prefix [MaxVarIntLen]byte
	n := PutVarInt(prefix[:], int32(b.n))
	end := b.start + MaxVarIntLen + b.n
	frame := b.out.Slice(b.start, end)

	// Right-align the length in the pad, then close the gap in front of it.
	gap := MaxVarIntLen - n
	copy(frame[gap:MaxVarIntLen], prefix[:n])
	copy(frame, frame[gap:])
	b.out.Truncate(end - gap)

	b.size = n + b.n
	return b.size, nil
}

// Frame returns the encoded frame. Only valid after a successful Finish and
// until the arena is drained or reset.
func (b *Builder) Frame() []byte {
	if b.size == 0 {
		return nil
	}
	return b.out.Slice(b.start, b.start+b.size)
}
