package internal

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/anvil/internal/core"
	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/debug"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/gateway"
	"github.com/dcrodman/anvil/internal/packets"
)

var testUUID = []byte{
	0x06, 0x9a, 0x79, 0xf4, 0x44, 0xe9, 0x4c, 0x72,
	0x6a, 0x85, 0x33, 0xf7, 0xaa, 0x10, 0x4f, 0xe9,
}

type testServer struct {
	frontend *frontend
	gateway  *gateway.Server
	metrics  *debug.Metrics
}

// startTestServer runs a gateway on a random loopback port until the test ends.
func startTestServer(t *testing.T, maxConnections int) *testServer {
	t.Helper()
	cfg := &core.Config{MaxConnections: maxConnections}
	cfg.Protocol.MaxPacketSize = 1024
	cfg.Protocol.ScratchArenaSize = 4096
	cfg.Protocol.OutboundArenaSize = 4096
	cfg.Session.TTL = time.Minute

	logger := logrus.New()
	logger.Out = io.Discard
	metrics := debug.NewMetrics(prometheus.NewRegistry())

	gw := &gateway.Server{Name: "GATEWAY", Config: cfg, Logger: logger, Metrics: metrics}
	f := &frontend{
		Address: "127.0.0.1:0",
		Backend: gw,
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	if err := f.Start(ctx, wg); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return &testServer{frontend: f, gateway: gw, metrics: metrics}
}

// testConn plays the part of a game client.
type testConn struct {
	t      *testing.T
	conn   net.Conn
	source *protocol.StreamSource
	out    *arena.Arena
	in     *arena.Arena
}

func dial(t *testing.T, s *testServer) *testConn {
	t.Helper()
	conn, err := net.Dial("tcp", s.frontend.Addr().String())
	if err != nil {
		t.Fatalf("error connecting to test server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	out, _ := arena.New(4096)
	in, _ := arena.New(4096)
	return &testConn{t: t, conn: conn, source: protocol.NewStreamSource(conn), out: out, in: in}
}

func (tc *testConn) send(pkt interface {
	Encode(*arena.Arena) (int, error)
}) {
	tc.t.Helper()
	if _, err := pkt.Encode(tc.out); err != nil {
		tc.t.Fatalf("Encode() returned an unexpected error: %v", err)
	}
	if _, err := tc.conn.Write(tc.out.Bytes()); err != nil {
		tc.t.Fatalf("error writing to test server: %v", err)
	}
	tc.out.Reset()
}

func (tc *testConn) sendEmpty(id int32) {
	tc.t.Helper()
	if _, err := packets.EncodeEmpty(tc.out, id); err != nil {
		tc.t.Fatalf("EncodeEmpty() returned an unexpected error: %v", err)
	}
	if _, err := tc.conn.Write(tc.out.Bytes()); err != nil {
		tc.t.Fatalf("error writing to test server: %v", err)
	}
	tc.out.Reset()
}

func (tc *testConn) receive() *protocol.Packet {
	tc.t.Helper()
	tc.in.Reset()
	p, err := protocol.ReadPacket(tc.source, tc.in, protocol.MaxPacketLength)
	if err != nil {
		tc.t.Fatalf("error reading from test server: %v", err)
	}
	return p
}

func (tc *testConn) expectClosed() {
	tc.t.Helper()
	tc.in.Reset()
	// Depending on timing a close can surface as a reset rather than an EOF.
	_, err := protocol.ReadPacket(tc.source, tc.in, protocol.MaxPacketLength)
	if protocol.KindOf(err) != protocol.KindTransport {
		tc.t.Errorf("expected the server to close the connection, got %v", err)
	}
}

func handshake(nextState int32) *packets.Handshake {
	return &packets.Handshake{
		ProtocolVersion: 767,
		ServerAddress:   []byte("localhost"),
		ServerPort:      25565,
		NextState:       nextState,
	}
}

func TestFrontend_Login(t *testing.T) {
	s := startTestServer(t, 0)
	tc := dial(t, s)

	tc.send(handshake(2))
	tc.send(&packets.LoginStart{Username: []byte("Steve"), UUID: testUUID})

	success := tc.receive()
	want := []byte{packets.LoginSuccessType}
	want = append(want, testUUID...)
	want = append(want, 0x05, 'S', 't', 'e', 'v', 'e', 0x00, 0x01)
	if diff := cmp.Diff(want, success.Payload()); diff != "" {
		t.Errorf("login success did not match expected; diff:\n%s", diff)
	}

	tc.sendEmpty(packets.LoginAcknowledgedType)
	finish := tc.receive()
	if diff := cmp.Diff([]byte{packets.FinishConfigurationType}, finish.Payload()); diff != "" {
		t.Errorf("finish configuration did not match expected; diff:\n%s", diff)
	}

	tc.send(&packets.ClientInformation{Locale: []byte("en_us"), ViewDistance: 10, MainHand: packets.RightHand})
	tc.sendEmpty(packets.AcknowledgeFinishConfigurationType)

	// Nothing is sent in response, so wait for the server to catch up.
	deadline := time.Now().Add(5 * time.Second)
	for s.gateway.Players() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("client never reached the PLAY state")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := testutil.ToFloat64(s.metrics.ConnectionsActive); got != 1 {
		t.Errorf("expected 1 active connection, got %v", got)
	}
}

func TestFrontend_StatusAndPing(t *testing.T) {
	s := startTestServer(t, 0)
	tc := dial(t, s)

	tc.send(handshake(1))
	tc.sendEmpty(packets.StatusRequestType)
	if p := tc.receive(); p.ID != packets.StatusResponseType {
		t.Errorf("expected a status response, got packet 0x%02X", p.ID)
	}

	tc.send(&packets.Pong{Payload: 99})
	pong := tc.receive()
	if v, _ := protocol.ReadInt64(pong); pong.ID != packets.PongResponseType || v != 99 {
		t.Errorf("unexpected pong 0x%02X with payload %d", pong.ID, v)
	}
}

func TestFrontend_UnknownPacketClosesConnection(t *testing.T) {
	s := startTestServer(t, 0)
	tc := dial(t, s)
	other := dial(t, s)

	tc.send(handshake(2))
	tc.sendEmpty(0x07)

	// A login gets told why before being dropped.
	if p := tc.receive(); p.ID != packets.LoginDisconnectType {
		t.Errorf("expected a login disconnect, got packet 0x%02X", p.ID)
	}
	tc.expectClosed()

	// Other connections are unaffected.
	other.send(handshake(1))
	other.sendEmpty(packets.StatusRequestType)
	if p := other.receive(); p.ID != packets.StatusResponseType {
		t.Errorf("expected a status response, got packet 0x%02X", p.ID)
	}
}

func TestFrontend_MalformedFrame(t *testing.T) {
	s := startTestServer(t, 0)
	tc := dial(t, s)

	// A six byte length prefix.
	if _, err := tc.conn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}); err != nil {
		t.Fatalf("error writing to test server: %v", err)
	}
	tc.expectClosed()
}

func TestFrontend_PacketTooLarge(t *testing.T) {
	s := startTestServer(t, 0)
	tc := dial(t, s)

	var prefix [protocol.MaxVarIntLen]byte
	n := protocol.PutVarInt(prefix[:], 2048)
	if _, err := tc.conn.Write(prefix[:n]); err != nil {
		t.Fatalf("error writing to test server: %v", err)
	}
	tc.expectClosed()
}

func TestFrontend_MaxConnections(t *testing.T) {
	s := startTestServer(t, 1)
	first := dial(t, s)

	// Make sure the first connection has been registered.
	first.send(handshake(1))
	first.sendEmpty(packets.StatusRequestType)
	first.receive()

	second := dial(t, s)
	second.expectClosed()
	if got := testutil.ToFloat64(s.metrics.ConnectionsDenied); got != 1 {
		t.Errorf("expected 1 denied connection, got %v", got)
	}
}
