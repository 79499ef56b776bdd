package client

import (
	"bufio"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// Client represents a single connection and everything the server tracks
// about it while it makes its way towards the PLAY state.
//
// A Client is owned by the goroutine processing its connection and is not
// safe for concurrent use.
type Client struct {
	connection net.Conn
	ipAddr     string
	port       string
	source     *protocol.StreamSource

	// State gates which packets the client is allowed to send.
	State protocol.State

	// Scratch holds the payload and decoded fields of the packet currently
	// being handled. It's reset after each packet.
	Scratch *arena.Arena
	// Outbound accumulates framed packets until they're flushed.
	Outbound *arena.Arena

	// Values learned during the handshake and login.
	ProtocolVersion int32
	ServerAddress   string
	Username        string
	UUID            uuid.UUID
	Brand           string

	// Debugging information used for logging purposes.
	DebugTags map[string]interface{}
}

// NewClient wraps connection in a Client in the HANDSHAKE state with its own
// pair of arenas.
func NewClient(connection net.Conn, scratchSize, outboundSize int) (*Client, error) {
	scratch, err := arena.New(scratchSize)
	if err != nil {
		return nil, fmt.Errorf("error allocating scratch arena: %w", err)
	}
	outbound, err := arena.New(outboundSize)
	if err != nil {
		return nil, fmt.Errorf("error allocating outbound arena: %w", err)
	}

	c := &Client{
		connection: connection,
		source:     protocol.NewStreamSource(bufio.NewReader(connection)),
		State:      protocol.Handshake,
		Scratch:    scratch,
		Outbound:   outbound,
		DebugTags:  make(map[string]interface{}),
	}
	c.ipAddr, c.port = splitAddr(connection.RemoteAddr())
	return c, nil
}

func splitAddr(addr net.Addr) (string, string) {
	if addr == nil {
		return "", ""
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		// Not a host:port pair (e.g. an in-memory pipe).
		return addr.String(), ""
	}
	return host, port
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// ReadPacket blocks until the next complete packet has arrived and returns
// it. The payload lives in Scratch.
func (c *Client) ReadPacket(maxLen int) (*protocol.Packet, error) {
	return protocol.ReadPacket(c.source, c.Scratch, maxLen)
}

// BeginPacket starts building a packet in the outbound arena. Nothing is
// sent until Flush is called.
func (c *Client) BeginPacket(id int32) *protocol.Builder {
	return protocol.Begin(c.Outbound, id)
}

// Pending returns the number of bytes waiting to be flushed.
func (c *Client) Pending() int { return c.Outbound.Pos() }

// Flush writes every pending packet to the connection. Bytes that were sent
// are released from the outbound arena even if the write fails partway.
func (c *Client) Flush() error {
	if c.Outbound.Pos() == 0 {
		return nil
	}
	sent, err := c.transmit(c.Outbound.Bytes())
	c.Outbound.Drain(sent)
	return err
}

// transmit writes data to the connection until all of it has been sent or
// an error occurs, returning the number of bytes written.
func (c *Client) transmit(data []byte) (int, error) {
	bytesSent := 0

	for bytesSent < len(data) {
		b, err := c.connection.Write(data[bytesSent:])
		bytesSent += b
		if err != nil {
			return bytesSent, fmt.Errorf("failed to send to client %v: %w", c.IPAddr(), err)
		}
	}

	return bytesSent, nil
}

// Done releases everything decoded from the packet that was just handled.
func (c *Client) Done() {
	c.Scratch.Reset()
}

// Close the connection.
func (c *Client) Close() error {
	return c.connection.Close()
}
