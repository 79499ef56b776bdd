package gateway

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/packets"
)

// Disconnect queues a packet telling the client why its connection is about
// to be closed because of err. Only clients that are logging in have a way to
// be told, for everyone else this is a no-op.
func (s *Server) Disconnect(c *client.Client, err error) {
	kind := protocol.KindOf(err)
	if kind == protocol.KindNone {
		return
	}
	s.Metrics.Errors.WithLabelValues(kind.String()).Inc()

	// There's no one left to tell.
	if kind == protocol.KindTransport {
		return
	}
	if c.State != protocol.Login && c.State != protocol.Transfer {
		return
	}

	reason := cases.Title(language.English).String(kind.String() + " error")
	if err := s.queue(c, packets.LoginDisconnectType, &packets.LoginDisconnect{Reason: reason}); err != nil {
		s.log(c).Warnf("error sending disconnect: %v", err)
	}
}

// Release forgets about a client after its connection has closed.
func (s *Server) Release(c *client.Client) {
	if c.State == protocol.Play {
		s.players.Add(-1)
	}
	s.endSession(c)
}
