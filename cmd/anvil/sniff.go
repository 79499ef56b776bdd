package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"github.com/dcrodman/anvil/internal/core/arena"
	"github.com/dcrodman/anvil/internal/core/debug"
	"github.com/dcrodman/anvil/internal/core/protocol"
	"github.com/dcrodman/anvil/internal/packets"
)

var (
	PcapFileFlag string
	PortFlag     uint16
	VerboseFlag  bool
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Decodes the traffic of a server from a packet capture",
	RunE:  SniffCommand,
}

func SniffCommand(_ *cobra.Command, _ []string) error {
	f, err := os.Open(PcapFileFlag)
	if err != nil {
		return fmt.Errorf("error opening capture: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	s, err := newSniffer(w, PortFlag, VerboseFlag)
	if err != nil {
		return err
	}
	return s.readPcap(f)
}

// stream is one client connection seen in the capture.
type stream struct {
	state protocol.State
	// Bytes received that don't yet make up a whole frame, indexed by
	// whether they were sent by the client.
	pending map[bool][]byte
}

// sniffer reassembles the frames sent in either direction of every connection
// to a server port and prints them, following each connection's state so
// that packet ids can be named. Segments are assumed to arrive in order and
// without retransmissions.
type sniffer struct {
	Writer  io.Writer
	Port    uint16
	Verbose bool

	streams map[string]*stream
	scratch *arena.Arena
}

func newSniffer(w io.Writer, port uint16, verbose bool) (*sniffer, error) {
	scratch, err := arena.New(protocol.MaxPacketLength)
	if err != nil {
		return nil, err
	}
	return &sniffer{
		Writer:  w,
		Port:    port,
		Verbose: verbose,
		streams: make(map[string]*stream),
		scratch: scratch,
	}, nil
}

func (s *sniffer) readPcap(r io.Reader) error {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return fmt.Errorf("error reading capture: %w", err)
	}

	packetSource := gopacket.NewPacketSource(reader, reader.LinkType())
	for packet := range packetSource.Packets() {
		s.handlePacket(packet)
	}
	return nil
}

func (s *sniffer) handlePacket(packet gopacket.Packet) {
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil || packet.NetworkLayer() == nil {
		return
	}
	tcp := tcpLayer.(*layers.TCP)
	if len(tcp.Payload) == 0 {
		return
	}

	var serverbound bool
	switch uint16(tcp.DstPort) {
	case s.Port:
		serverbound = true
	default:
		if uint16(tcp.SrcPort) != s.Port {
			return
		}
	}

	// Identify the connection by the client's end of it.
	netFlow := packet.NetworkLayer().NetworkFlow()
	key := fmt.Sprintf("%v:%d", netFlow.Src(), tcp.SrcPort)
	if !serverbound {
		key = fmt.Sprintf("%v:%d", netFlow.Dst(), tcp.DstPort)
	}
	st, ok := s.streams[key]
	if !ok {
		st = &stream{state: protocol.Handshake, pending: make(map[bool][]byte)}
		s.streams[key] = st
	}

	buf := append(st.pending[serverbound], tcp.Payload...)
	for len(buf) > 0 {
		payload, n, err := protocol.SplitFrame(buf, protocol.MaxPacketLength)
		if errors.Is(err, protocol.ErrShortBuffer) {
			break
		} else if err != nil {
			fmt.Fprintf(s.Writer, "%s: unable to decode stream, dropping %d bytes: %v\n", key, len(buf), err)
			buf = nil
			break
		}
		s.emit(key, st, serverbound, payload)
		buf = buf[n:]
	}
	st.pending[serverbound] = append([]byte(nil), buf...)
}

// emit prints one packet and follows any state change it causes.
func (s *sniffer) emit(key string, st *stream, serverbound bool, payload []byte) {
	defer s.scratch.Reset()

	p, err := protocol.NewPacket(payload)
	if err != nil {
		fmt.Fprintf(s.Writer, "%s: %v\n", key, err)
		return
	}

	direction := debug.ServerToClient
	if serverbound {
		direction = debug.ClientToServer
	}
	name := packets.Name(st.state, serverbound, p.ID)
	fmt.Fprintf(s.Writer, "%s %s [%s] %s (0x%02X) %d bytes\n", key, direction, st.state, name, p.ID, p.Len())

	decoded := s.follow(st, serverbound, p)
	if s.Verbose {
		if decoded != nil {
			fmt.Fprint(s.Writer, debug.Sdump(decoded))
		}
		fmt.Fprint(s.Writer, debug.Sdump(payload))
	}
}

// follow decodes the packets that move a connection between states.
func (s *sniffer) follow(st *stream, serverbound bool, p *protocol.Packet) interface{} {
	if !serverbound {
		return nil
	}

	switch {
	case st.state == protocol.Handshake && p.ID == packets.HandshakeType:
		var pkt packets.Handshake
		if err := pkt.Decode(p, s.scratch); err != nil {
			return err
		}
		if next, err := protocol.IntentState(pkt.NextState); err == nil {
			st.state = next
		}
		return &pkt
	case (st.state == protocol.Login || st.state == protocol.Transfer) && p.ID == packets.LoginStartType:
		var pkt packets.LoginStart
		if err := pkt.Decode(p, s.scratch); err != nil {
			return err
		}
		return &pkt
	case (st.state == protocol.Login || st.state == protocol.Transfer) && p.ID == packets.LoginAcknowledgedType:
		st.state = protocol.Config
	case st.state == protocol.Config && p.ID == packets.ClientInformationType:
		var pkt packets.ClientInformation
		if err := pkt.Decode(p, s.scratch); err != nil {
			return err
		}
		return &pkt
	case st.state == protocol.Config && p.ID == packets.AcknowledgeFinishConfigurationType:
		st.state = protocol.Play
	}
	return nil
}
