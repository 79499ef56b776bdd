package packets

import (
	"fmt"

	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// Packet types for packets sent to and from a client in the CONFIG state.
const (
	ClientInformationType              = 0x00
	ConfigPluginMessageType            = 0x02
	AcknowledgeFinishConfigurationType = 0x03

	FinishConfigurationType = 0x03
)

// BrandChannel is the plugin channel clients announce their brand on.
const BrandChannel = "minecraft:brand"

// ChatMode controls which chat messages the client wants to see.
type ChatMode int32

const (
	ChatEnabled ChatMode = iota
	ChatCommandsOnly
	ChatHidden
)

// MainHand is the hand a player uses by default.
type MainHand int32

const (
	LeftHand MainHand = iota
	RightHand
)

// ClientInformation carries the client's settings. Older clients end the
// packet after MainHand, so the last two flags are only read when present.
type ClientInformation struct {
	Locale              []byte
	ViewDistance        byte
	ChatMode            ChatMode
	ChatColors          bool
	DisplayedSkinParts  byte
	MainHand            MainHand
	EnableTextFiltering bool
	AllowServerListings bool
}

func (c *ClientInformation) Decode(p *protocol.Packet, a *arena.Arena) error {
	var err error
	if c.Locale, err = protocol.ReadString(p, a); err != nil {
		return fmt.Errorf("error decoding locale: %w", err)
	}
	if c.ViewDistance, err = protocol.ReadByte(p); err != nil {
		return fmt.Errorf("error decoding view distance: %w", err)
	}
	mode, err := protocol.ReadVarInt(p)
	if err != nil {
		return fmt.Errorf("error decoding chat mode: %w", err)
	}
	c.ChatMode = ChatMode(mode)
	if c.ChatColors, err = protocol.ReadBool(p); err != nil {
		return fmt.Errorf("error decoding chat colors: %w", err)
	}
	if c.DisplayedSkinParts, err = protocol.ReadByte(p); err != nil {
		return fmt.Errorf("error decoding skin parts: %w", err)
	}
	hand, err := protocol.ReadVarInt(p)
	if err != nil {
		return fmt.Errorf("error decoding main hand: %w", err)
	}
	c.MainHand = MainHand(hand)

	if p.Remaining() == 0 {
		return nil
	}
	if c.EnableTextFiltering, err = protocol.ReadBool(p); err != nil {
		return fmt.Errorf("error decoding text filtering: %w", err)
	}
	if c.AllowServerListings, err = protocol.ReadBool(p); err != nil {
		return fmt.Errorf("error decoding server listings: %w", err)
	}
	return nil
}

func (c *ClientInformation) Encode(out *arena.Arena) (int, error) {
	b := protocol.Begin(out, ClientInformationType)
	b.WritePrefixedBytes(c.Locale)
	b.WriteUint8(c.ViewDistance)
	b.WriteVarInt(int32(c.ChatMode))
	b.WriteBool(c.ChatColors)
	b.WriteUint8(c.DisplayedSkinParts)
	b.WriteVarInt(int32(c.MainHand))
	b.WriteBool(c.EnableTextFiltering)
	b.WriteBool(c.AllowServerListings)
	return b.Finish()
}

// PluginMessage is a message on a namespaced channel. Data is whatever
// follows the channel name and is left uninterpreted.
type PluginMessage struct {
	Channel []byte
	Data    []byte
}

func (m *PluginMessage) Decode(p *protocol.Packet, a *arena.Arena) error {
	var err error
	if m.Channel, err = protocol.ReadString(p, a); err != nil {
		return fmt.Errorf("error decoding channel: %w", err)
	}
	m.Data = p.Rest()
	return nil
}

func (m *PluginMessage) Encode(out *arena.Arena) (int, error) {
	b := protocol.Begin(out, ConfigPluginMessageType)
	b.WritePrefixedBytes(m.Channel)
	b.WriteBytes(m.Data)
	return b.Finish()
}

// Brand decodes the client brand from a message on BrandChannel.
func (m *PluginMessage) Brand(a *arena.Arena) ([]byte, error) {
	if string(m.Channel) != BrandChannel {
		return nil, fmt.Errorf("%w: %s is not the brand channel", protocol.ErrInvalidField, m.Channel)
	}
	brand, err := protocol.ReadString(protocol.NewBody(m.Data), a)
	if err != nil {
		return nil, fmt.Errorf("error decoding brand: %w", err)
	}
	return brand, nil
}

// EncodeEmpty builds a packet that has no fields beyond its id, such as
// FinishConfiguration or LoginAcknowledged.
func EncodeEmpty(out *arena.Arena, id int32) (int, error) {
	return protocol.Begin(out, id).Finish()
}
