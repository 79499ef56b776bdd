package internal

import (
	"context"

	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// Backend is an interface for a server that handles the packets of the
// clients accepted by a frontend.
type Backend interface {
	// Name returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient performs any initialization on the Client needed to be
	// able to begin the session.
	SetUpClient(c *client.Client)

	// Handle is the main entry point for processing client packets. Any
	// responses are queued on the client and flushed by the frontend once
	// Handle returns. An error terminates the connection.
	Handle(ctx context.Context, c *client.Client, p *protocol.Packet) error

	// Disconnect is called with the error that is about to terminate a
	// connection, giving the Backend a chance to queue a final packet.
	Disconnect(c *client.Client, err error)

	// Release is called once the connection has been closed.
	Release(c *client.Client)
}
