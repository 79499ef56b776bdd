package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dcrodman/anvil/internal/core/arena"
)

// Transport errors.
var (
	// ErrPeerClosed means the connection was closed while a packet was only
	// partially received.
	ErrPeerClosed = errors.New("peer closed the connection mid-packet")
)

// Framing errors.
var (
	ErrVarIntTooLong  = errors.New("varint is longer than 5 bytes")
	ErrShortBuffer    = errors.New("buffer ends before the end of the frame")
	ErrPacketOverrun  = errors.New("read past the end of the packet")
	ErrPacketTooLarge = errors.New("packet exceeds the maximum length")
	ErrEmptyPacket    = errors.New("packet has no id")
	ErrNegativeLength = errors.New("negative length prefix")
	ErrStringTooLong  = errors.New("string exceeds the maximum length")
	ErrInvalidUTF8    = errors.New("string is not valid UTF-8")
	ErrInvalidBool    = errors.New("invalid boolean value")
)

// Protocol errors.
var (
	ErrUnknownPacket  = errors.New("packet id is not valid in this state")
	ErrInvalidState   = errors.New("requested transition to an undefined state")
	ErrInvalidField   = errors.New("invalid field value")
	ErrDuplicateLogin = errors.New("player is already logged in")
)

// ProtocolError reports a packet that could not be handled in the state the
// connection was in when it arrived.
type ProtocolError struct {
	State State
	ID    int32
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s packet 0x%02X: %v", e.State, e.ID, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrorKind groups errors by how far they got before the connection failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTransport
	KindFraming
	KindProtocol
	KindResource
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindProtocol:
		return "protocol"
	case KindResource:
		return "resource"
	default:
		return "internal"
	}
}

// KindOf classifies err. Errors that don't originate from the network or the
// codec are reported as KindInternal.
func KindOf(err error) ErrorKind {
	var netErr net.Error
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, arena.ErrExhausted):
		return KindResource
	case errors.Is(err, ErrUnknownPacket),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrInvalidField),
		errors.Is(err, ErrDuplicateLogin):
		return KindProtocol
	case errors.Is(err, ErrVarIntTooLong),
		errors.Is(err, ErrShortBuffer),
		errors.Is(err, ErrPacketOverrun),
		errors.Is(err, ErrPacketTooLarge),
		errors.Is(err, ErrEmptyPacket),
		errors.Is(err, ErrNegativeLength),
		errors.Is(err, ErrStringTooLong),
		errors.Is(err, ErrInvalidUTF8),
		errors.Is(err, ErrInvalidBool):
		return KindFraming
	case errors.Is(err, ErrPeerClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.As(err, &netErr):
		return KindTransport
	default:
		return KindInternal
	}
}
