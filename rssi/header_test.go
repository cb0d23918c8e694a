package rssi

import (
	"testing"

	"github.com/go-rssi/rssi/stream"
)

func newPlainFrame(t *testing.T, rawSize uint32) *stream.Frame {
	t.Helper()
	return stream.NewFrame(stream.NewBuffer(rawSize))
}

func TestHeaderTxInitSetsLengthAndFlags(t *testing.T) {
	cases := []struct {
		name       string
		syn, ack   bool
		wantHdrLen int
	}{
		{"plain", false, false, HeaderSize},
		{"ack only", false, true, HeaderSize},
		{"syn", true, false, SynHeaderSize},
		{"syn ack", true, true, SynHeaderSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := newPlainFrame(t, SynHeaderSize)
			if err := frame.Buffer(0).AdjustHeader(int32(tc.wantHdrLen)); err != nil {
				t.Fatalf("AdjustHeader: %v", err)
			}

			h := NewHeader(frame)
			h.TxInit(tc.syn, tc.ack)

			if got := h.HeaderLength(); got != tc.wantHdrLen {
				t.Errorf("HeaderLength() = %d, want %d", got, tc.wantHdrLen)
			}
			if got := h.GetSyn(); got != tc.syn {
				t.Errorf("GetSyn() = %v, want %v", got, tc.syn)
			}
			if got := h.GetAck(); got != tc.ack {
				t.Errorf("GetAck() = %v, want %v", got, tc.ack)
			}
		})
	}
}

func TestHeaderUpdateVerifyRoundTrip(t *testing.T) {
	frame := newPlainFrame(t, HeaderSize+16)
	buf := frame.Buffer(0)
	if err := buf.AdjustHeader(int32(HeaderSize)); err != nil {
		t.Fatalf("AdjustHeader: %v", err)
	}

	copy(buf.Bytes()[HeaderSize:], []byte("hello, rssi!"))
	if err := buf.AdjustPayload(12); err != nil {
		t.Fatalf("AdjustPayload: %v", err)
	}

	h := NewHeader(frame)
	h.TxInit(false, true)
	h.SetSequence(7)
	h.SetAcknowledge(3)
	h.Update()

	if !h.Verify() {
		t.Fatal("Verify() = false for a freshly updated header")
	}
	if got := h.GetSequence(); got != 7 {
		t.Errorf("GetSequence() = %d, want 7", got)
	}
	if got := h.GetAcknowledge(); got != 3 {
		t.Errorf("GetAcknowledge() = %d, want 3", got)
	}
}

func TestHeaderVerifyRejectsCorruption(t *testing.T) {
	frame := newPlainFrame(t, HeaderSize)
	if err := frame.Buffer(0).AdjustHeader(int32(HeaderSize)); err != nil {
		t.Fatalf("AdjustHeader: %v", err)
	}

	h := NewHeader(frame)
	h.TxInit(false, false)
	h.Update()

	if !h.Verify() {
		t.Fatal("Verify() = false before corruption")
	}

	raw := frame.Buffer(0).HeaderBytes()
	raw[offSeq] ^= 0xFF

	if h.Verify() {
		t.Fatal("Verify() = true after flipping a header byte, want false")
	}
}

func TestHeaderSynExtensionFields(t *testing.T) {
	frame := newPlainFrame(t, SynHeaderSize)
	if err := frame.Buffer(0).AdjustHeader(int32(SynHeaderSize)); err != nil {
		t.Fatalf("AdjustHeader: %v", err)
	}

	h := NewHeader(frame)
	h.TxInit(true, false)
	h.SetVersion(Version)
	h.SetMaxOutstandingSegments(LocMaxBuffers)
	h.SetMaxSegmentSize(1400)
	h.SetRetransmissionTimeout(ReqRetranTout)
	h.SetCumulativeAckTimeout(ReqCumAckTout)
	h.SetNullTimeout(ReqNullTout)
	h.SetMaxRetransmissions(ReqMaxRetran)
	h.SetMaxCumulativeAck(ReqMaxCumAck)
	h.SetTimeoutUnit(TimeoutUnit)
	h.SetConnectionId(0xdeadbeef)
	h.Update()

	if !h.Verify() {
		t.Fatal("Verify() = false for a valid SYN")
	}
	if got := h.GetMaxSegmentSize(); got != 1400 {
		t.Errorf("GetMaxSegmentSize() = %d, want 1400", got)
	}
	if got := h.GetConnectionId(); got != 0xdeadbeef {
		t.Errorf("GetConnectionId() = %#x, want 0xdeadbeef", got)
	}
}
