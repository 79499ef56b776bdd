// Package gateway implements the connection state machine that takes a
// client from its handshake through login and configuration to the PLAY
// state.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/anvil/internal/core"
	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/cache"
	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/debug"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/packets"
)

// PlayHandler receives every packet sent by clients that have reached the
// PLAY state.
type PlayHandler interface {
	HandlePlay(ctx context.Context, c *client.Client, p *protocol.Packet) error
}

// Server is the gateway backend. It owns no per-connection state of its own;
// everything it knows about a connection lives on its *client.Client, except
// for the login sessions shared with the PLAY handler.
type Server struct {
	Name    string
	Config  *core.Config
	Logger  *logrus.Logger
	Metrics *debug.Metrics
	// Database used to persist players. Nil disables persistence.
	DB *gorm.DB
	// Play is handed the packets of clients in the PLAY state. Nil discards them.
	Play PlayHandler

	// Guards sessions so that checking for and creating a session is atomic.
	mu       sync.Mutex
	sessions *cache.Cache
	players  atomic.Int32
}

func (s *Server) Identifier() string {
	return s.Name
}

func (s *Server) Init(_ context.Context) error {
	if s.Config == nil || s.Logger == nil {
		return fmt.Errorf("%s server requires a config and a logger", s.Name)
	}
	if s.Metrics == nil {
		s.Metrics = debug.NewMetrics(prometheus.NewRegistry())
	}
	s.sessions = cache.New(s.Config.Session.TTL)
	return nil
}

func (s *Server) SetUpClient(c *client.Client) {
	c.DebugTags["server_type"] = s.Name
}

// Players returns the number of clients currently in the PLAY state.
func (s *Server) Players() int {
	return int(s.players.Load())
}

type handlerFunc func(s *Server, ctx context.Context, c *client.Client, p *protocol.Packet) error

type route struct {
	state protocol.State
	id    int32
}

// Every (state, packet id) pair a client may send outside of PLAY. Transfers
// are routed as logins.
var routes = map[route]handlerFunc{
	{protocol.Handshake, packets.HandshakeType}: (*Server).handleHandshake,

	{protocol.Status, packets.StatusRequestType}: (*Server).handleStatusRequest,
	{protocol.Status, packets.PingRequestType}:   (*Server).handlePing,

	{protocol.Login, packets.LoginStartType}:        (*Server).handleLoginStart,
	{protocol.Login, packets.LoginAcknowledgedType}: (*Server).handleLoginAcknowledged,

	{protocol.Config, packets.ClientInformationType}:              (*Server).handleClientInformation,
	{protocol.Config, packets.ConfigPluginMessageType}:            (*Server).handlePluginMessage,
	{protocol.Config, packets.AcknowledgeFinishConfigurationType}: (*Server).handleAcknowledgeFinishConfiguration,
}

// Handle dispatches a single packet to the handler for the client's current
// state. A packet that isn't valid in that state results in a
// *protocol.ProtocolError. A rejected packet leaves the client's state and
// pending output as they were before it arrived.
func (s *Server) Handle(ctx context.Context, c *client.Client, p *protocol.Packet) error {
	state := c.State
	name := packets.Name(state, true, p.ID)

	// Ids are chosen by the client, so only known packets get their own series.
	label := name
	if !packets.Known(state, true, p.ID) {
		label = packets.UnknownLabel
	}
	s.Metrics.PacketsReceived.WithLabelValues(state.String(), label).Inc()
	defer s.Metrics.ObserveHandle(state.String(), time.Now())
	if s.Config.Debugging.PacketLoggingEnabled {
		debug.DumpPacket(s.log(c), debug.ClientToServer, state.String(), name, p.Payload())
	}

	if state == protocol.Play {
		return s.handlePlay(ctx, c, p)
	}

	key := route{state: state, id: p.ID}
	if state == protocol.Transfer {
		key.state = protocol.Login
	}
	handler, ok := routes[key]
	if !ok {
		return &protocol.ProtocolError{State: state, ID: p.ID, Err: protocol.ErrUnknownPacket}
	}

	start := c.Outbound.Pos()
	if err := handler(s, ctx, c, p); err != nil {
		c.Outbound.Truncate(start)
		return fmt.Errorf("error handling %s: %w", name, err)
	}
	return nil
}

// expectEnd rejects a packet with bytes left over after its fields. Handlers
// call it once decoding is done and before they change anything.
func expectEnd(p *protocol.Packet) error {
	if n := p.Remaining(); n > 0 {
		return fmt.Errorf("%w: %d unread bytes at the end of the packet", protocol.ErrInvalidField, n)
	}
	return nil
}

func (s *Server) handlePlay(ctx context.Context, c *client.Client, p *protocol.Packet) error {
	if s.Play != nil {
		return s.Play.HandlePlay(ctx, c, p)
	}
	s.log(c).Debugf("discarding PLAY packet 0x%02X (%d bytes)", p.ID, len(p.Rest()))
	return nil
}

// transition moves the client into a new state.
func (s *Server) transition(c *client.Client, to protocol.State) {
	from := c.State
	c.State = to
	s.Metrics.Transitions.WithLabelValues(from.String(), to.String()).Inc()
	s.log(c).Debugf("state changed from %s to %s", from, to)

	if to == protocol.Play {
		s.players.Add(1)
	}
	s.updateSession(c, func(session *Session) { session.State = to })
}

type encoder interface {
	Encode(out *arena.Arena) (int, error)
}

// emptyPacket is a packet with no fields beyond its id.
type emptyPacket int32

func (e emptyPacket) Encode(out *arena.Arena) (int, error) {
	return packets.EncodeEmpty(out, int32(e))
}

// queue encodes a packet into the client's outbound arena. It's sent the
// next time the client is flushed.
func (s *Server) queue(c *client.Client, id int32, pkt encoder) error {
	name := packets.Name(c.State, false, id)
	start := c.Outbound.Pos()

	n, err := pkt.Encode(c.Outbound)
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", name, err)
	}

	s.Metrics.PacketsSent.WithLabelValues(c.State.String(), name).Inc()
	if s.Config.Debugging.PacketLoggingEnabled {
		debug.DumpPacket(s.log(c), debug.ServerToClient, c.State.String(), name, c.Outbound.Slice(start, start+n))
	}
	return nil
}

func (s *Server) log(c *client.Client) *logrus.Entry {
	fields := logrus.Fields{
		"server": s.Name,
		"client": c.IPAddr(),
		"state":  c.State.String(),
	}
	if c.Username != "" {
		fields["player"] = c.Username
	}
	return s.Logger.WithFields(fields)
}
