package protocol

import (
	"errors"
	"io"
)

// Source is anything the field decoders can read from. Every decoder behaves
// the same whether it reads from a live connection (StreamSource) or from a
// packet payload that has already been received (*Packet).
type Source interface {
	// ReadFull fills p completely or returns an error.
	ReadFull(p []byte) error
	ReadByte() (byte, error)
}

// StreamSource reads from a connection, blocking until the requested number
// of bytes has arrived.
type StreamSource struct {
	r   io.Reader
	one [1]byte
}

func NewStreamSource(r io.Reader) *StreamSource {
	return &StreamSource{r: r}
}

// ReadFull returns io.EOF if the stream ended before any byte of p was read
// and ErrPeerClosed if it ended part of the way through.
func (s *StreamSource) ReadFull(p []byte) error {
	_, err := io.ReadFull(s.r, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrPeerClosed
	}
	return err
}

func (s *StreamSource) ReadByte() (byte, error) {
	if br, ok := s.r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	if err := s.ReadFull(s.one[:]); err != nil {
		return 0, err
	}
	return s.one[0], nil
}

// remainder is implemented by sources that know how many bytes are left, which
// lets the decoders reject a length prefix before allocating for it.
type remainder interface {
	Remaining() int
}

// midPacket converts an io.EOF from a source into ErrPeerClosed. It's used once
// at least part of a packet has been read, at which point a closed stream can
// no longer be a clean disconnect.
func midPacket(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrPeerClosed
	}
	return err
}
