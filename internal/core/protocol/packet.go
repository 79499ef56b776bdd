package protocol

import (
	"fmt"

	"github.com/dcrodman/anvil/internal/core/arena"
)

// MaxPacketLength is the largest payload the length prefix of a frame may
// declare (the largest 3 byte varint).
const MaxPacketLength = 1<<21 - 1

// Packet is one received frame. The payload is owned by whichever arena it was
// read into and is only valid until that arena is reset.
//
// Packet implements Source; the field decoders consume the payload from the
// front and may never read past its end.
type Packet struct {
	ID int32

	data []byte
	off  int
}

// ReadPacket reads one frame from src: a varint length L followed by L bytes
// of payload, the first field of which is the packet id. The payload is
// allocated from scratch. io.EOF is returned only if the stream ended cleanly
// between two frames.
func ReadPacket(src Source, scratch *arena.Arena, maxLen int) (*Packet, error) {
	length, err := ReadVarInt(src)
	if err != nil {
		return nil, err
	}
	if err := checkLength(length, maxLen); err != nil {
		return nil, err
	}

	data, err := scratch.Alloc(int(length))
	if err != nil {
		return nil, err
	}
	if err := src.ReadFull(data); err != nil {
		return nil, midPacket(err)
	}

	return NewPacket(data)
}

// NewPacket wraps a payload that has already been extracted from its frame and
// decodes the packet id.
func NewPacket(payload []byte) (*Packet, error) {
	p := &Packet{data: payload}
	id, err := ReadVarInt(p)
	if err != nil {
		return nil, fmt.Errorf("error reading packet id: %w", err)
	}
	p.ID = id
	return p, nil
}

// NewBody wraps bytes holding fields only, with no packet id in front, such
// as the data of a plugin message.
func NewBody(data []byte) *Packet {
	return &Packet{ID: -1, data: data}
}

// SplitFrame extracts the payload of the first complete frame in buf and
// returns it along with the total number of bytes the frame occupied.
// ErrShortBuffer means more data is needed.
func SplitFrame(buf []byte, maxLen int) ([]byte, int, error) {
	length, n, err := DecodeVarInt(buf)
	if err != nil {
		return nil, 0, err
	}
	if err := checkLength(length, maxLen); err != nil {
		return nil, 0, err
	}
	end := n + int(length)
	if len(buf) < end {
		return nil, 0, ErrShortBuffer
	}
	return buf[n:end:end], end, nil
}

func checkLength(length int32, maxLen int) error {
	switch {
	case length < 0:
		return fmt.Errorf("%w: frame length %d", ErrNegativeLength, length)
	case length == 0:
		return ErrEmptyPacket
	case int(length) > maxLen:
		return fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, length, maxLen)
	}
	return nil
}

// Len returns the length of the payload, including the packet id.
func (p *Packet) Len() int { return len(p.data) }

// Remaining returns the number of payload bytes that haven't been decoded yet.
func (p *Packet) Remaining() int { return len(p.data) - p.off }

// Payload returns the entire payload, including the packet id.
func (p *Packet) Payload() []byte { return p.data }

func (p *Packet) ReadByte() (byte, error) {
	if p.off >= len(p.data) {
		return 0, ErrPacketOverrun
	}
	b := p.data[p.off]
	p.off++
	return b, nil
}

func (p *Packet) ReadFull(b []byte) error {
	if len(b) > p.Remaining() {
		return fmt.Errorf("%w: %d bytes requested, %d remaining", ErrPacketOverrun, len(b), p.Remaining())
	}
	p.off += copy(b, p.data[p.off:])
	return nil
}

// Rest consumes and returns whatever is left of the payload without copying it.
func (p *Packet) Rest() []byte {
	rest := p.data[p.off:]
	p.off = len(p.data)
	return rest
}
