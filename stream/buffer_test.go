package stream

import (
	"bytes"
	"testing"
)

func TestBufferHeadRoomRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		rawSize uint32
		adjust  int32
		wantErr bool
	}{
		{name: "grow within capacity", rawSize: 64, adjust: 12},
		{name: "grow past capacity", rawSize: 8, adjust: 16, wantErr: true},
		{name: "shrink below zero", rawSize: 64, adjust: -4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer(tt.rawSize)
			err := b.AdjustHeader(tt.adjust)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("AdjustHeader(%d) = nil, want boundary error", tt.adjust)
				}
				return
			}
			if err != nil {
				t.Fatalf("AdjustHeader(%d) = %v, want nil", tt.adjust, err)
			}
			if b.HeadRoom() != uint32(tt.adjust) {
				t.Fatalf("HeadRoom() = %d, want %d", b.HeadRoom(), tt.adjust)
			}
		})
	}
}

func TestBufferPayloadCursor(t *testing.T) {
	b := NewBuffer(32)
	if err := b.AdjustHeader(8); err != nil {
		t.Fatalf("AdjustHeader: %v", err)
	}

	copy(b.Bytes()[8:], []byte("hello"))
	if err := b.SetPayload(5, false); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}

	if got := b.Payload(); got != 5 {
		t.Fatalf("Payload() = %d, want 5", got)
	}
	if !bytes.Equal(b.PayloadBytes(), []byte("hello")) {
		t.Fatalf("PayloadBytes() = %q, want %q", b.PayloadBytes(), "hello")
	}

	// Shrink disabled: smaller size is ignored.
	if err := b.SetPayload(2, false); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	if got := b.Payload(); got != 5 {
		t.Fatalf("Payload() after no-shrink SetPayload = %d, want 5", got)
	}

	b.SetPayloadEmpty()
	if got := b.Payload(); got != 0 {
		t.Fatalf("Payload() after SetPayloadEmpty = %d, want 0", got)
	}

	b.SetPayloadFull()
	if got := b.Payload(); got != 32-8 {
		t.Fatalf("Payload() after SetPayloadFull = %d, want %d", got, 32-8)
	}
}

func TestFrameTrimsToSingleBuffer(t *testing.T) {
	f := NewFrame(NewBuffer(16))
	f.AppendBuffer(NewBuffer(16))

	if f.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", f.Count())
	}

	trimmed := NewFrame(f.Buffer(0))
	if trimmed.Count() != 1 {
		t.Fatalf("trimmed Count() = %d, want 1", trimmed.Count())
	}
}
