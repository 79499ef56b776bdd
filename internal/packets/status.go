package packets

import (
	"encoding/json"
	"fmt"

	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// Packet types for packets sent to and from a client in the STATUS state.
const (
	StatusRequestType  = 0x00
	PingRequestType    = 0x01
	StatusResponseType = 0x00
	PongResponseType   = 0x01
)

// ServerStatus is the JSON document returned in response to a status request,
// shown by clients in their server list.
type ServerStatus struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description TextComponent `json:"description"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

// TextComponent is the minimal form of a chat component, a single run of
// plain text.
type TextComponent struct {
	Text string `json:"text"`
}

// StatusResponse carries the server status serialized as a JSON string.
type StatusResponse struct {
	Status ServerStatus
}

func (s *StatusResponse) Encode(out *arena.Arena) (int, error) {
	doc, err := json.Marshal(&s.Status)
	if err != nil {
		return 0, fmt.Errorf("error encoding server status: %w", err)
	}
	b := protocol.Begin(out, StatusResponseType)
	b.WritePrefixedBytes(doc)
	return b.Finish()
}

// Ping is sent by the client after the status response to measure latency.
// The server echoes Payload back unchanged in a Pong.
type Ping struct {
	Payload int64
}

func (p *Ping) Decode(pkt *protocol.Packet) error {
	var err error
	if p.Payload, err = protocol.ReadInt64(pkt); err != nil {
		return fmt.Errorf("error decoding ping payload: %w", err)
	}
	return nil
}

type Pong struct {
	Payload int64
}

func (p *Pong) Encode(out *arena.Arena) (int, error) {
	b := protocol.Begin(out, PongResponseType)
	b.WriteInt64(p.Payload)
	return b.Finish()
}
