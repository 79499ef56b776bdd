package gateway

import (
	"context"

	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/packets"
)

func (s *Server) handleStatusRequest(_ context.Context, c *client.Client, p *protocol.Packet) error {
	if err := expectEnd(p); err != nil {
		return err
	}
	return s.queue(c, packets.StatusResponseType, &packets.StatusResponse{
		Status: packets.ServerStatus{
			Version: packets.StatusVersion{
				Name:     s.Config.Status.VersionName,
				Protocol: s.Config.Status.ProtocolVersion,
			},
			Players: packets.StatusPlayers{
				Max:    s.Config.Status.MaxPlayers,
				Online: s.Players(),
			},
			Description: packets.TextComponent{Text: s.Config.Status.MOTD},
		},
	})
}

func (s *Server) handlePing(_ context.Context, c *client.Client, p *protocol.Packet) error {
	var ping packets.Ping
	if err := ping.Decode(p); err != nil {
		return err
	}
	if err := expectEnd(p); err != nil {
		return err
	}
	return s.queue(c, packets.PongResponseType, &packets.Pong{Payload: ping.Payload})
}
