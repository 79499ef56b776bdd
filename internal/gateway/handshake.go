package gateway

import (
	"context"

	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/packets"
)

func (s *Server) handleHandshake(_ context.Context, c *client.Client, p *protocol.Packet) error {
	var pkt packets.Handshake
	if err := pkt.Decode(p, c.Scratch); err != nil {
		return err
	}
	if err := expectEnd(p); err != nil {
		return err
	}

	next, err := protocol.IntentState(pkt.NextState)
	if err != nil {
		return err
	}

	c.ProtocolVersion = pkt.ProtocolVersion
	c.ServerAddress = string(pkt.ServerAddress)
	if pkt.ProtocolVersion != s.Config.Status.ProtocolVersion {
		s.log(c).Debugf("client is using protocol %d, server reports %d", pkt.ProtocolVersion, s.Config.Status.ProtocolVersion)
	}

	s.transition(c, next)
	return nil
}
