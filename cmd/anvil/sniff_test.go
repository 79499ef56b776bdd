package main

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/packets"
)

var (
	clientIP = net.IPv4(10, 0, 0, 2)
	serverIP = net.IPv4(10, 0, 0, 1)
)

const clientPort = 50000

// capture writes a pcap of TCP segments between a client and a server on
// port 25565. Each segment is sent by the client unless toClient is set.
type capture struct {
	t      *testing.T
	buf    bytes.Buffer
	writer *pcapgo.Writer
}

func newCapture(t *testing.T) *capture {
	c := &capture{t: t}
	c.writer = pcapgo.NewWriter(&c.buf)
	if err := c.writer.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("WriteFileHeader() returned an unexpected error: %v", err)
	}
	return c
}

func (c *capture) segment(toClient bool, payload []byte) {
	c.t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: clientIP, DstIP: serverIP}
	tcp := &layers.TCP{SrcPort: clientPort, DstPort: 25565, PSH: true, ACK: true, Window: 1024}
	if toClient {
		ip.SrcIP, ip.DstIP = serverIP, clientIP
		tcp.SrcPort, tcp.DstPort = 25565, clientPort
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		c.t.Fatalf("SerializeLayers() returned an unexpected error: %v", err)
	}

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: len(data), Length: len(data)}
	if err := c.writer.WritePacket(ci, data); err != nil {
		c.t.Fatalf("WritePacket() returned an unexpected error: %v", err)
	}
}

func frame(t *testing.T, pkt interface {
	Encode(*arena.Arena) (int, error)
}) []byte {
	t.Helper()
	a, _ := arena.New(1024)
	if _, err := pkt.Encode(a); err != nil {
		t.Fatalf("Encode() returned an unexpected error: %v", err)
	}
	return append([]byte(nil), a.Bytes()...)
}

func emptyFrame(t *testing.T, id int32) []byte {
	t.Helper()
	a, _ := arena.New(16)
	if _, err := packets.EncodeEmpty(a, id); err != nil {
		t.Fatalf("EncodeEmpty() returned an unexpected error: %v", err)
	}
	return append([]byte(nil), a.Bytes()...)
}

func TestSniffer(t *testing.T) {
	uuid := make([]byte, 16)
	handshake := frame(t, &packets.Handshake{ProtocolVersion: 767, ServerAddress: []byte("localhost"), ServerPort: 25565, NextState: 2})
	loginStart := frame(t, &packets.LoginStart{Username: []byte("Steve"), UUID: uuid})

	c := newCapture(t)
	// The login start is split across two segments and shares one with the handshake.
	c.segment(false, append(handshake, loginStart[:4]...))
	c.segment(false, loginStart[4:])
	c.segment(true, frame(t, &packets.LoginSuccess{UUID: uuid, Username: []byte("Steve")}))
	c.segment(false, emptyFrame(t, packets.LoginAcknowledgedType))
	c.segment(true, emptyFrame(t, packets.FinishConfigurationType))
	c.segment(false, emptyFrame(t, packets.AcknowledgeFinishConfigurationType))

	var out bytes.Buffer
	s, err := newSniffer(&out, 25565, false)
	if err != nil {
		t.Fatalf("newSniffer() returned an unexpected error: %v", err)
	}
	if err := s.readPcap(&c.buf); err != nil {
		t.Fatalf("readPcap() returned an unexpected error: %v", err)
	}

	want := []string{
		"10.0.0.2:50000 client->server [HANDSHAKE] Handshake (0x00)",
		"10.0.0.2:50000 client->server [LOGIN] LoginStart (0x00)",
		"10.0.0.2:50000 server->client [LOGIN] LoginSuccess (0x02)",
		"10.0.0.2:50000 client->server [LOGIN] LoginAcknowledged (0x03)",
		"10.0.0.2:50000 server->client [CONFIG] FinishConfiguration (0x03)",
		"10.0.0.2:50000 client->server [CONFIG] AcknowledgeFinishConfiguration (0x03)",
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(want) {
		t.Fatalf("expected %d packets, got %d:\n%s", len(want), len(lines), out.String())
	}
	for i := range want {
		if !strings.HasPrefix(lines[i], want[i]) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], want[i])
		}
	}
	if st := s.streams["10.0.0.2:50000"]; st == nil || st.state.String() != "PLAY" {
		t.Errorf("expected the connection to end up in PLAY")
	}
}

func TestSniffer_Verbose(t *testing.T) {
	c := newCapture(t)
	c.segment(false, frame(t, &packets.Handshake{ProtocolVersion: 767, ServerAddress: []byte("example.org"), ServerPort: 25565, NextState: 1}))

	var out bytes.Buffer
	s, _ := newSniffer(&out, 25565, true)
	if err := s.readPcap(&c.buf); err != nil {
		t.Fatalf("readPcap() returned an unexpected error: %v", err)
	}
	for _, want := range []string{"ProtocolVersion", "767", "example.org"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("verbose output did not contain %q:\n%s", want, out.String())
		}
	}
}

func TestSniffer_Garbage(t *testing.T) {
	c := newCapture(t)
	c.segment(false, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	c.segment(false, emptyFrame(t, packets.HandshakeType))

	var out bytes.Buffer
	s, _ := newSniffer(&out, 25565, false)
	if err := s.readPcap(&c.buf); err != nil {
		t.Fatalf("readPcap() returned an unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "unable to decode stream") {
		t.Errorf("expected the malformed stream to be reported:\n%s", out.String())
	}
	// The stream recovers at the next segment boundary.
	if !strings.Contains(out.String(), "Handshake (0x00)") {
		t.Errorf("expected the following frame to be decoded:\n%s", out.String())
	}
}
