package protocol

import (
	"fmt"
	"unicode/utf8"

	"github.com/dcrodman/anvil/internal/core/arena"
)

// MaxStringBytes is the longest string the protocol allows: 32767 UTF-16 code
// units, which is at most three bytes each in UTF-8.
const MaxStringBytes = 32767 * 3

// ReadString decodes a length-prefixed UTF-8 string into memory owned by a.
// An empty string decodes to a non-nil, zero-length slice.
func ReadString(src Source, a *arena.Arena) ([]byte, error) {
	n, err := ReadVarInt(src)
	if err != nil {
		return nil, err
	}
	if n > MaxStringBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}

	str, err := ReadBytes(src, a, int(n))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(str) {
		return nil, ErrInvalidUTF8
	}
	return str, nil
}

// ReadBytes copies exactly n raw bytes from src into memory owned by a.
func ReadBytes(src Source, a *arena.Arena, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}
	// Don't let a bogus length prefix eat the arena.
	if r, ok := src.(remainder); ok && n > r.Remaining() {
		return nil, fmt.Errorf("%w: %d bytes requested, %d remaining", ErrPacketOverrun, n, r.Remaining())
	}

	mem, err := a.Alloc(n)
	if err != nil {
		return nil, err
	}
	if err := src.ReadFull(mem); err != nil {
		return nil, err
	}
	return mem, nil
}

// ReadUint16 decodes a big-endian unsigned 16-bit integer.
func ReadUint16(src Source) (uint16, error) {
	hi, err := src.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := src.ReadByte()
	if err != nil {
		return 0, midPacket(err)
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadInt64 decodes a big-endian signed 64-bit integer.
func ReadInt64(src Source) (int64, error) {
	var v uint64
	for i := 0; i < 8; i++ {
		b, err := src.ReadByte()
		if err != nil {
			if i > 0 {
				err = midPacket(err)
			}
			return 0, err
		}
		v = v<<8 | uint64(b)
	}
	return int64(v), nil
}

// ReadBool decodes a one byte boolean. Anything other than 0 or 1 is rejected.
func ReadBool(src Source) (bool, error) {
	b, err := src.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02X", ErrInvalidBool, b)
	}
}

// ReadByte decodes a single unsigned byte.
func ReadByte(src Source) (byte, error) {
	return src.ReadByte()
}
