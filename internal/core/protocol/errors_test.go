package protocol

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/dcrodman/anvil/internal/core/arena"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "peer closed", err: ErrPeerClosed, want: KindTransport},
		{name: "eof", err: io.EOF, want: KindTransport},
		{name: "wrapped overrun", err: fmt.Errorf("decoding: %w", ErrPacketOverrun), want: KindFraming},
		{name: "malformed varint", err: ErrVarIntTooLong, want: KindFraming},
		{name: "invalid bool", err: ErrInvalidBool, want: KindFraming},
		{
			name: "unknown packet",
			err:  &ProtocolError{State: Config, ID: 0x09, Err: ErrUnknownPacket},
			want: KindProtocol,
		},
		{name: "invalid state", err: ErrInvalidState, want: KindProtocol},
		{name: "arena exhausted", err: fmt.Errorf("%w: 10 bytes", arena.ErrExhausted), want: KindResource},
		{name: "anything else", err: errors.New("database is down"), want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestProtocolError(t *testing.T) {
	err := error(&ProtocolError{State: Login, ID: 0x07, Err: ErrUnknownPacket})

	if !errors.Is(err, ErrUnknownPacket) {
		t.Errorf("expected ProtocolError to unwrap to ErrUnknownPacket")
	}
	if want := "LOGIN packet 0x07: packet id is not valid in this state"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIntentState(t *testing.T) {
	tests := []struct {
		intent  int32
		want    State
		wantErr bool
	}{
		{intent: 0, wantErr: true},
		{intent: 1, want: Status},
		{intent: 2, want: Login},
		{intent: 3, want: Transfer},
		{intent: 4, wantErr: true},
		{intent: -1, wantErr: true},
	}
	for _, tt := range tests {
		got, err := IntentState(tt.intent)
		if (err != nil) != tt.wantErr {
			t.Fatalf("IntentState(%d) wantErr = %v, error = %v", tt.intent, tt.wantErr, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidState) {
			t.Errorf("IntentState(%d) returned %v, want ErrInvalidState", tt.intent, err)
		}
		if err == nil && got != tt.want {
			t.Errorf("IntentState(%d) = %v, want %v", tt.intent, got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	names := map[State]string{
		Handshake: "HANDSHAKE",
		Status:    "STATUS",
		Login:     "LOGIN",
		Transfer:  "TRANSFER",
		Config:    "CONFIG",
		Play:      "PLAY",
		State(42): "State(42)",
	}
	for state, want := range names {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
