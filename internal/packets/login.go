package packets

import (
	"encoding/json"
	"fmt"

	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// Packet types for packets sent to and from a client in the LOGIN state.
// Transfers use the same set.
const (
	LoginStartType        = 0x00
	LoginAcknowledgedType = 0x03

	LoginDisconnectType = 0x00
	LoginSuccessType    = 0x02
)

// MaxUsernameLength is the longest username a client may log in with.
const MaxUsernameLength = 16

// LoginStart is sent by the client to begin logging in.
type LoginStart struct {
	Username []byte
	UUID     []byte
}

func (l *LoginStart) Decode(p *protocol.Packet, a *arena.Arena) error {
	var err error
	if l.Username, err = protocol.ReadString(p, a); err != nil {
		return fmt.Errorf("error decoding username: %w", err)
	}
	if l.UUID, err = protocol.ReadBytes(p, a, UUIDSize); err != nil {
		return fmt.Errorf("error decoding uuid: %w", err)
	}
	return nil
}

func (l *LoginStart) Encode(out *arena.Arena) (int, error) {
	b := protocol.Begin(out, LoginStartType)
	b.WritePrefixedBytes(l.Username)
	b.WriteBytes(l.UUID)
	return b.Finish()
}

// LoginSuccess completes the login. The client replies with LoginAcknowledged.
type LoginSuccess struct {
	UUID     []byte
	Username []byte
}

func (l *LoginSuccess) Encode(out *arena.Arena) (int, error) {
	if len(l.UUID) != UUIDSize {
		return 0, fmt.Errorf("%w: uuid is %d bytes", protocol.ErrInvalidField, len(l.UUID))
	}
	b := protocol.Begin(out, LoginSuccessType)
	b.WriteBytes(l.UUID)
	b.WritePrefixedBytes(l.Username)
	// No profile properties.
	b.WriteVarInt(0)
	// Strict error handling.
	b.WriteBool(true)
	return b.Finish()
}

// LoginDisconnect tells the client why it's being dropped before the
// connection is closed. Only valid in the LOGIN state.
type LoginDisconnect struct {
	Reason string
}

func (l *LoginDisconnect) Encode(out *arena.Arena) (int, error) {
	reason, err := json.Marshal(&TextComponent{Text: l.Reason})
	if err != nil {
		return 0, fmt.Errorf("error encoding disconnect reason: %w", err)
	}
	b := protocol.Begin(out, LoginDisconnectType)
	b.WritePrefixedBytes(reason)
	return b.Finish()
}
