package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/data"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/packets"
)

func (s *Server) handleLoginStart(_ context.Context, c *client.Client, p *protocol.Packet) error {
	var pkt packets.LoginStart
	if err := pkt.Decode(p, c.Scratch); err != nil {
		return err
	}
	if err := expectEnd(p); err != nil {
		return err
	}

	if c.Username != "" {
		return fmt.Errorf("%w: %s already started logging in", protocol.ErrInvalidState, c.Username)
	}
	if len(pkt.Username) == 0 || len(pkt.Username) > packets.MaxUsernameLength {
		return fmt.Errorf("%w: username must be 1 to %d bytes, got %d",
			protocol.ErrInvalidField, packets.MaxUsernameLength, len(pkt.Username))
	}
	id, err := uuid.FromBytes(pkt.UUID)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrInvalidField, err)
	}

	session := &Session{
		UUID:            id,
		Username:        string(pkt.Username),
		Address:         c.IPAddr(),
		ProtocolVersion: c.ProtocolVersion,
		State:           c.State,
		LoginTime:       time.Now(),
	}
	if err := s.startSession(c, session); err != nil {
		return err
	}
	c.Username = session.Username
	c.UUID = id

	if s.DB != nil {
		player, err := data.RecordLogin(s.DB, &data.Player{
			UUID:            id.String(),
			Username:        session.Username,
			LastAddress:     session.Address,
			ProtocolVersion: session.ProtocolVersion,
		}, session.LoginTime)
		if err != nil {
			// Persistence is best effort; the player can still play.
			s.log(c).Warnf("error recording login: %v", err)
		} else {
			s.updateSession(c, func(session *Session) { session.PlayerID = player.ID })
		}
	}

	s.Metrics.Logins.Inc()
	s.log(c).Infof("%s (%s) logged in", session.Username, id)

	return s.queue(c, packets.LoginSuccessType, &packets.LoginSuccess{
		UUID:     pkt.UUID,
		Username: pkt.Username,
	})
}

func (s *Server) handleLoginAcknowledged(_ context.Context, c *client.Client, p *protocol.Packet) error {
	if err := expectEnd(p); err != nil {
		return err
	}
	s.transition(c, protocol.Config)
	return s.queue(c, packets.FinishConfigurationType, emptyPacket(packets.FinishConfigurationType))
}
