package packets

import (
	"fmt"

	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// Serverbound packets in the HANDSHAKE state.
const (
	HandshakeType = 0x00
)

// Handshake is the first packet sent on every connection. NextState selects
// between STATUS, LOGIN and TRANSFER.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   []byte
	ServerPort      uint16
	NextState       int32
}

func (h *Handshake) Decode(p *protocol.Packet, a *arena.Arena) error {
	var err error
	if h.ProtocolVersion, err = protocol.ReadVarInt(p); err != nil {
		return fmt.Errorf("error decoding protocol version: %w", err)
	}
	if h.ServerAddress, err = protocol.ReadString(p, a); err != nil {
		return fmt.Errorf("error decoding server address: %w", err)
	}
	if h.ServerPort, err = protocol.ReadUint16(p); err != nil {
		return fmt.Errorf("error decoding server port: %w", err)
	}
	if h.NextState, err = protocol.ReadVarInt(p); err != nil {
		return fmt.Errorf("error decoding next state: %w", err)
	}
	return nil
}

// Encode is only used by tools and tests acting as a client.
func (h *Handshake) Encode(out *arena.Arena) (int, error) {
	b := protocol.Begin(out, HandshakeType)
	b.WriteVarInt(h.ProtocolVersion)
	b.WritePrefixedBytes(h.ServerAddress)
	b.WriteUint16(h.ServerPort)
	b.WriteVarInt(h.NextState)
	return b.Finish()
}
