package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/anvil/internal/core/arena"
)

func TestBuilder_Fields(t *testing.T) {
	out := newTestArena(t, 64)

	b := Begin(out, 0x02)
	b.WriteBytes([]byte{0xDE, 0xAD})
	b.WriteString("Steve")
	b.WriteVarInt(300)
	b.WriteUint16(25565)
	b.WriteBool(true)
	b.WriteUint8(0x7F)
	b.WritePrefixedBytes([]byte{})
	size, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish() returned an unexpected error: %v", err)
	}

	want := []byte{
		0x10,       // length
		0x02,       // id
		0xDE, 0xAD, // raw bytes
		0x05, 'S', 't', 'e', 'v', 'e',
		0xAC, 0x02, // 300
		0x63, 0xDD, // 25565
		0x01,
		0x7F,
		0x00,
	}
	if diff := cmp.Diff(want, out.Bytes()); diff != "" {
		t.Errorf("encoded frame did not match expected; diff:\n%s", diff)
	}
	if size != len(want) {
		t.Errorf("Finish() = %d, want %d", size, len(want))
	}
}

func TestBuilder_CompactsPrefix(t *testing.T) {
	out := newTestArena(t, 512)

	// Two frames back to back must be contiguous with no padding between them.
	first := Begin(out, 0x03)
	if _, err := first.Finish(); err != nil {
		t.Fatalf("Finish() returned an unexpected error: %v", err)
	}
	second := Begin(out, 0x01)
	second.WriteBytes(make([]byte, 200))
	if _, err := second.Finish(); err != nil {
		t.Fatalf("Finish() returned an unexpected error: %v", err)
	}

	if diff := cmp.Diff([]byte{0x01, 0x03}, first.Frame()); diff != "" {
		t.Errorf("first frame did not match expected; diff:\n%s", diff)
	}
	if out.Pos() != 2+2+201 {
		t.Errorf("expected %d bytes in the arena, got %d", 2+2+201, out.Pos())
	}

	buf := out.Bytes()
	for _, wantID := range []int32{0x03, 0x01} {
		payload, n, err := SplitFrame(buf, MaxPacketLength)
		if err != nil {
			t.Fatalf("SplitFrame() returned an unexpected error: %v", err)
		}
		p, _ := NewPacket(payload)
		if p.ID != wantID {
			t.Errorf("expected packet id 0x%02X, got 0x%02X", wantID, p.ID)
		}
		buf = buf[n:]
	}
	if len(buf) != 0 {
		t.Errorf("%d stray bytes after the last frame", len(buf))
	}
}

func TestBuilder_ArenaExhausted(t *testing.T) {
	out := newTestArena(t, 16)
	_, _ = out.Alloc(4)

	b := Begin(out, 0x00)
	b.WriteBytes(make([]byte, 32))
	b.WriteVarInt(1)

	if _, err := b.Finish(); !errors.Is(err, arena.ErrExhausted) {
		t.Fatalf("expected arena.ErrExhausted, got %v", err)
	}
	if out.Pos() != 4 {
		t.Errorf("a failed packet must be rolled back, arena position = %d", out.Pos())
	}
}

func TestBuilder_Interleaved(t *testing.T) {
	out := newTestArena(t, 64)
	first := Begin(out, 0x00)
	second := Begin(out, 0x01)
	first.WriteVarInt(1)

	if _, err := first.Finish(); err == nil {
		t.Errorf("expected an error when two builders share an arena")
	}
	if _, err := second.Finish(); err != nil {
		t.Errorf("second builder returned an unexpected error: %v", err)
	}
}
