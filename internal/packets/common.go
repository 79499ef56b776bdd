// Package packets contains the field layouts of the packets exchanged before a
// client reaches the PLAY state, along with their ids.
//
// Decoders read from a received *protocol.Packet and copy strings and raw
// fields into the connection's scratch arena, so decoded packets are only
// valid until that arena is reset. Encoders build complete frames into the
// connection's outbound arena.
package packets

import (
	"fmt"

	"github.com/dcrodman/anvil/internal/core/protocol"
)

// UUIDSize is the length of the raw player identifier sent during login.
const UUIDSize = 16

// UnknownLabel stands in for the name of any packet id that isn't known.
const UnknownLabel = "Unknown"

var names = map[protocol.State]map[bool]map[int32]string{
	protocol.Handshake: {
		true: {HandshakeType: "Handshake"},
	},
	protocol.Status: {
		true: {
			StatusRequestType: "StatusRequest",
			PingRequestType:   "PingRequest",
		},
		false: {
			StatusResponseType: "StatusResponse",
			PongResponseType:   "PongResponse",
		},
	},
	protocol.Login: {
		true: {
			LoginStartType:        "LoginStart",
			LoginAcknowledgedType: "LoginAcknowledged",
		},
		false: {
			LoginDisconnectType: "LoginDisconnect",
			LoginSuccessType:    "LoginSuccess",
		},
	},
	protocol.Config: {
		true: {
			ClientInformationType:              "ClientInformation",
			ConfigPluginMessageType:            "PluginMessage",
			AcknowledgeFinishConfigurationType: "AcknowledgeFinishConfiguration",
		},
		false: {
			FinishConfigurationType: "FinishConfiguration",
		},
	},
}

// Name returns a human readable name for a packet. serverbound distinguishes
// the packets sent by clients from the ones sent by the server, since both
// directions reuse the same ids.
func Name(state protocol.State, serverbound bool, id int32) string {
	// Transfers go through the same packets as a login.
	if state == protocol.Transfer {
		state = protocol.Login
	}
	if name, ok := names[state][serverbound][id]; ok {
		return name
	}
	return fmt.Sprintf("%s(0x%02X)", UnknownLabel, id)
}

// Known reports whether id is a packet with a name in state.
func Known(state protocol.State, serverbound bool, id int32) bool {
	if state == protocol.Transfer {
		state = protocol.Login
	}
	_, ok := names[state][serverbound][id]
	return ok
}
