package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/anvil/internal/core"
	"github.com/dcrodman/anvil/internal/core/client"
	anvildebug "github.com/dcrodman/anvil/internal/core/debug"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// frontend implements the concurrent client connection logic.
//
// Packets are read from any connected clients and passed to a backend instance,
// abstracting the lower level connection details away from the Backends. Each
// client is served by its own goroutine, which strictly alternates between
// reading a packet, handling it and flushing the responses.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger
	Metrics *anvildebug.Metrics

	mu               sync.Mutex
	connectedClients map[*client.Client]struct{}
	listener         *net.TCPListener
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %w", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %w", f.Address, err)
	}
	f.listener = socket
	f.connectedClients = make(map[*client.Client]struct{})

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// Addr returns the address the frontend is listening on.
func (f *frontend) Addr() net.Addr {
	return f.listener.Addr()
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %w", err)
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %w", err)
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Infof("[%s] waiting for connections on %v", f.Backend.Identifier(), socket.Addr())

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			connection, err := socket.AcceptTCP()
			if errors.Is(err, net.ErrClosed) {
				return
			} else if err != nil {
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			select {
			case connections <- connection:
			case <-ctx.Done():
				_ = connection.Close()
				return
			}
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection := <-connections:
			clientWg.Add(1)
			// Note: If there is eventually a need to implement worker pooling rather than spawning
			// new goroutines for each client, this is where it should be implemented.
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	_ = socket.Close()
	f.closeAll()
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient takes a connection, sets up its Client, and moves the goroutine
// into the packet processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c, err := client.NewClient(connection, f.Config.Protocol.ScratchArenaSize, f.Config.Protocol.OutboundArenaSize)
	if err != nil {
		f.Logger.Errorf("[%s] error setting up client %s: %s", f.Backend.Identifier(), connection.RemoteAddr(), err)
		_ = connection.Close()
		return
	}
	f.Backend.SetUpClient(c)

	if !f.register(c) {
		f.Logger.Infof("[%s] rejected connection from %s: server is full", f.Backend.Identifier(), c.IPAddr())
		f.Metrics.ConnectionsDenied.Inc()
		_ = connection.Close()
		return
	}

	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())
	f.processPackets(ctx, c)
}

func (f *frontend) register(c *client.Client) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Config.MaxConnections > 0 && len(f.connectedClients) >= f.Config.MaxConnections {
		return false
	}
	f.connectedClients[c] = struct{}{}
	f.Metrics.ConnectionsTotal.Inc()
	f.Metrics.ConnectionsActive.Inc()
	return true
}

func (f *frontend) unregister(c *client.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.connectedClients[c]; ok {
		delete(f.connectedClients, c)
		f.Metrics.ConnectionsActive.Dec()
	}
}

// closeAll closes every client connection, unblocking their reads.
func (f *frontend) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for c := range f.connectedClients {
		_ = c.Close()
	}
}

// processPackets starts a blocking loop dedicated to reading data sent from
// a game client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	for {
		select {
		case <-ctx.Done():
			// For now just allow the deferred function to close the connection.
			return
		default:
		}

		p, err := c.ReadPacket(f.Config.Protocol.MaxPacketSize)
		if errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			f.terminate(c, err)
			return
		}

		if err = f.Backend.Handle(ctx, c, p); err != nil {
			f.terminate(c, err)
			return
		}

		if err = f.flush(c); err != nil {
			f.Logger.Warnf("[%s] error sending to %s: %s", f.Backend.Identifier(), c.IPAddr(), err)
			return
		}
		c.Done()
	}
}

// terminate reports the error that ended a connection and gives the client
// whatever the Backend had to say about it.
func (f *frontend) terminate(c *client.Client, err error) {
	kind := protocol.KindOf(err)
	entry := f.Logger.WithFields(logrus.Fields{
		"client": c.IPAddr(),
		"state":  c.State.String(),
		"kind":   kind.String(),
	})
	if kind == protocol.KindTransport {
		entry.Infof("[%s] connection lost: %s", f.Backend.Identifier(), err)
	} else {
		entry.Warnf("[%s] error in client communication: %s", f.Backend.Identifier(), err)
	}

	f.Backend.Disconnect(c, err)
	if err := f.flush(c); err != nil {
		entry.Debugf("unable to send disconnect: %s", err)
	}
}

func (f *frontend) flush(c *client.Client) error {
	pending := c.Pending()
	err := c.Flush()
	f.Metrics.BytesSent.Add(float64(pending - c.Pending()))
	return err
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes them from the list regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Metrics.Errors.WithLabelValues(protocol.KindInternal.String()).Inc()
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.unregister(c)
	f.Backend.Release(c)

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}
