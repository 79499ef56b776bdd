package protocol

// MaxVarIntLen is the longest encoding of a 32-bit varint.
const MaxVarIntLen = 5

const (
	segmentBits  = 0x7F
	continueBit  = 0x80
	lastByteBits = 0x0F // the fifth byte only carries bits 28-31
)

// VarIntSize returns the number of bytes needed to encode v.
func VarIntSize(v int32) int {
	uv := uint32(v)
	n := 1
	for uv&^segmentBits != 0 {
		uv >>= 7
		n++
	}
	return n
}

// PutVarInt encodes v into buf, which must hold at least VarIntSize(v) bytes,
// and returns the number of bytes written. Negative values are encoded as their
// unsigned bit pattern and always take 5 bytes.
func PutVarInt(buf []byte, v int32) int {
	uv := uint32(v)
	i := 0
	for uv&^segmentBits != 0 {
		buf[i] = byte(uv&segmentBits) | continueBit
		uv >>= 7
		i++
	}
	buf[i] = byte(uv)
	return i + 1
}

// AppendVarInt appends the encoding of v to buf.
func AppendVarInt(buf []byte, v int32) []byte {
	var tmp [MaxVarIntLen]byte
	n := PutVarInt(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// DecodeVarInt decodes a varint from the start of buf and returns it along with
// the number of bytes it occupied. ErrShortBuffer is returned if buf ends before
// the varint does.
func DecodeVarInt(buf []byte) (int32, int, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(buf) {
			return 0, 0, ErrShortBuffer
		}
		b := buf[i]
		if err := checkVarIntByte(i, b); err != nil {
			return 0, 0, err
		}
		v |= uint32(b&segmentBits) << (7 * i)
		if b&continueBit == 0 {
			return int32(v), i + 1, nil
		}
	}
	// Unreachable: checkVarIntByte rejects a fifth byte with the continue bit set.
	return 0, 0, ErrVarIntTooLong
}

// ReadVarInt decodes a varint from src one byte at a time.
func ReadVarInt(src Source) (int32, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := src.ReadByte()
		if err != nil {
			if i > 0 {
				err = midPacket(err)
			}
			return 0, err
		}
		if err := checkVarIntByte(i, b); err != nil {
			return 0, err
		}
		v |= uint32(b&segmentBits) << (7 * i)
		if b&continueBit == 0 {
			break
		}
	}
	return int32(v), nil
}

// The fifth byte must terminate the varint and may not carry bits that don't
// fit in 32 bits.
func checkVarIntByte(i int, b byte) error {
	if i == MaxVarIntLen-1 && b&^lastByteBits != 0 {
		return ErrVarIntTooLong
	}
	return nil
}
