package rssi

import (
	"encoding/binary"
	"time"

	"github.com/go-rssi/rssi/stream"
)

// Wire layout. Fixed 12-byte base header; SYN frames carry an extended
// header with the negotiation fields appended at fixed offsets.
//
//	0  flags (1)
//	1  header length (1)
//	2  sequence (1)
//	3  acknowledge (1)
//	4  payload length (2)
//	6  reserved / syn sub-fields (2)
//	8  checksum (4)
//  -- SYN extension, starting at offset 12 --
//	12 version (1)
//	13 max outstanding segments (1)
//	14 max segment size (2)
//	16 retransmission timeout (2)
//	18 cumulative-ack timeout (2)
//	20 null timeout (2)
//	22 max retransmissions (1)
//	23 max cumulative ack (1)
//	24 timeout unit (1)
//	25 reserved (1)
//	26 reserved (2)
//	28 connection id (4)
const (
	HeaderSize    = 12
	SynHeaderSize = 32

	offFlags   = 0
	offHdrLen  = 1
	offSeq     = 2
	offAck     = 3
	offPayLen  = 4
	offChecksum = 8

	offVersion      = 12
	offMaxOutstand  = 13
	offMaxSegSize   = 14
	offRetranTout   = 16
	offCumAckTout   = 18
	offNullTout     = 20
	offMaxRetran    = 22
	offMaxCumAck    = 23
	offTimeoutUnit  = 24
	offConnID       = 28
)

// Flag bits, bit 0 (0x01) through bit 6 (0x40); bit 7 is reserved.
const (
	FlagSYN  byte = 0x01
	FlagACK  byte = 0x02
	FlagEACK byte = 0x04
	FlagRST  byte = 0x08
	FlagNUL  byte = 0x10
	FlagBSY  byte = 0x20
	FlagCHK  byte = 0x40
)

// Header wraps the first buffer of a stream.Frame and provides typed
// accessors over the fixed-offset RSSI header fields. It also carries
// transient, non-wire bookkeeping used by the retransmit list: the time
// the header was last sent, and how many times it has been retransmitted.
type Header struct {
	frame *stream.Frame

	sendTime time.Time
	retries  int
}

// NewHeader wraps frame's first buffer as an RSSI header view. The caller
// is responsible for having reserved HeaderSize (or SynHeaderSize) bytes
// of head-room via Buffer.AdjustHeader before calling TxInit.
func NewHeader(frame *stream.Frame) *Header {
	return &Header{frame: frame}
}

// Frame returns the frame this header is a view over.
func (h *Header) Frame() *stream.Frame { return h.frame }

func (h *Header) raw() []byte { return h.frame.Buffer(0).HeaderBytes() }

// TxInit clears the header region and seeds the SYN/ACK flags and the
// correct header length for the frame type being built.
func (h *Header) TxInit(syn, ack bool) {
	b := h.raw()
	for i := range b {
		b[i] = 0
	}

	hdrLen := HeaderSize
	if syn {
		hdrLen = SynHeaderSize
	}
	b[offHdrLen] = byte(hdrLen)

	if syn {
		b[offFlags] |= FlagSYN
	}
	if ack {
		b[offFlags] |= FlagACK
	}
}

func (h *Header) flag(mask byte) bool   { return h.raw()[offFlags]&mask != 0 }
func (h *Header) setFlag(mask byte, v bool) {
	b := h.raw()
	if v {
		b[offFlags] |= mask
	} else {
		b[offFlags] &^= mask
	}
}

func (h *Header) GetSyn() bool  { return h.flag(FlagSYN) }
func (h *Header) SetSyn(v bool) { h.setFlag(FlagSYN, v) }

func (h *Header) GetAck() bool  { return h.flag(FlagACK) }
func (h *Header) SetAck(v bool) { h.setFlag(FlagACK, v) }

func (h *Header) GetEack() bool  { return h.flag(FlagEACK) }
func (h *Header) SetEack(v bool) { h.setFlag(FlagEACK, v) }

func (h *Header) GetRst() bool  { return h.flag(FlagRST) }
func (h *Header) SetRst(v bool) { h.setFlag(FlagRST, v) }

func (h *Header) GetNul() bool  { return h.flag(FlagNUL) }
func (h *Header) SetNul(v bool) { h.setFlag(FlagNUL, v) }

func (h *Header) GetBusy() bool  { return h.flag(FlagBSY) }
func (h *Header) SetBusy(v bool) { h.setFlag(FlagBSY, v) }

func (h *Header) GetChk() bool  { return h.flag(FlagCHK) }
func (h *Header) SetChk(v bool) { h.setFlag(FlagCHK, v) }

func (h *Header) HeaderLength() int { return int(h.raw()[offHdrLen]) }

func (h *Header) GetSequence() uint8    { return h.raw()[offSeq] }
func (h *Header) SetSequence(v uint8)   { h.raw()[offSeq] = v }

func (h *Header) GetAcknowledge() uint8  { return h.raw()[offAck] }
func (h *Header) SetAcknowledge(v uint8) { h.raw()[offAck] = v }

func (h *Header) payloadLenField() uint16 {
	return binary.BigEndian.Uint16(h.raw()[offPayLen:])
}

func (h *Header) setPayloadLenField(v uint16) {
	binary.BigEndian.PutUint16(h.raw()[offPayLen:], v)
}

func (h *Header) GetVersion() uint8  { return h.raw()[offVersion] }
func (h *Header) SetVersion(v uint8) { h.raw()[offVersion] = v }

func (h *Header) GetMaxOutstandingSegments() uint8  { return h.raw()[offMaxOutstand] }
func (h *Header) SetMaxOutstandingSegments(v uint8) { h.raw()[offMaxOutstand] = v }

func (h *Header) GetMaxSegmentSize() uint16 { return binary.BigEndian.Uint16(h.raw()[offMaxSegSize:]) }
func (h *Header) SetMaxSegmentSize(v uint16) {
	binary.BigEndian.PutUint16(h.raw()[offMaxSegSize:], v)
}

func (h *Header) GetRetransmissionTimeout() uint16 {
	return binary.BigEndian.Uint16(h.raw()[offRetranTout:])
}
func (h *Header) SetRetransmissionTimeout(v uint16) {
	binary.BigEndian.PutUint16(h.raw()[offRetranTout:], v)
}

func (h *Header) GetCumulativeAckTimeout() uint16 {
	return binary.BigEndian.Uint16(h.raw()[offCumAckTout:])
}
func (h *Header) SetCumulativeAckTimeout(v uint16) {
	binary.BigEndian.PutUint16(h.raw()[offCumAckTout:], v)
}

func (h *Header) GetNullTimeout() uint16 { return binary.BigEndian.Uint16(h.raw()[offNullTout:]) }
func (h *Header) SetNullTimeout(v uint16) {
	binary.BigEndian.PutUint16(h.raw()[offNullTout:], v)
}

func (h *Header) GetMaxRetransmissions() uint8  { return h.raw()[offMaxRetran] }
func (h *Header) SetMaxRetransmissions(v uint8) { h.raw()[offMaxRetran] = v }

func (h *Header) GetMaxCumulativeAck() uint8  { return h.raw()[offMaxCumAck] }
func (h *Header) SetMaxCumulativeAck(v uint8) { h.raw()[offMaxCumAck] = v }

func (h *Header) GetTimeoutUnit() uint8  { return h.raw()[offTimeoutUnit] }
func (h *Header) SetTimeoutUnit(v uint8) { h.raw()[offTimeoutUnit] = v }

func (h *Header) GetConnectionId() uint32 { return binary.BigEndian.Uint32(h.raw()[offConnID:]) }
func (h *Header) SetConnectionId(v uint32) {
	binary.BigEndian.PutUint32(h.raw()[offConnID:], v)
}

// PeekHeaderLength reads the header-length byte out of a raw, on-the-wire
// header without otherwise interpreting it. It exists for transports that
// need to deframe a byte stream (a serial line, a TCP stream) themselves
// before handing a reconstructed Frame to TransportRx.
func PeekHeaderLength(raw []byte) int {
	if len(raw) <= offHdrLen {
		return 0
	}
	return int(raw[offHdrLen])
}

// Time returns the last time this header was sent, for the retransmit
// list's timeout scan.
func (h *Header) Time() time.Time { return h.sendTime }

// RstTime resets the send-time to now, used to freeze the retransmit
// timer while the peer has asserted BSY.
func (h *Header) RstTime() { h.sendTime = time.Now() }

// markSent stamps the send time; called by the controller every time the
// header actually goes out on the wire. The retry counter is incremented
// separately, by bumpRetry.
func (h *Header) markSent() {
	h.sendTime = time.Now()
}

// Count returns how many times this header has been retransmitted.
func (h *Header) Count() int { return h.retries }

// bumpRetry increments the retry counter, called on every retransmission
// (not on the original transmission).
func (h *Header) bumpRetry() { h.retries++ }

// checksum computes the one's-complement running-sum checksum over the
// header bytes (excluding the checksum field itself), folding carries the
// way the original C header codec does.
func checksum(hdr []byte) uint32 {
	var sum uint32
	for i := 0; i+1 < len(hdr); i += 2 {
		if i == offChecksum {
			i += 2
			continue
		}
		sum += uint32(binary.BigEndian.Uint16(hdr[i:]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^sum & 0xFFFF
}

// Update writes the payload-length field and recomputes the checksum. It
// must be called on every outbound header immediately before handing the
// frame to the transport.
func (h *Header) Update() {
	b := h.frame.Buffer(0)
	h.setPayloadLenField(uint16(b.Payload()))
	binary.BigEndian.PutUint32(h.raw()[offChecksum:], checksum(h.raw()[:h.HeaderLength()]))
}

// Verify reports whether the header's declared length fits the buffer,
// the payload-length field matches the frame's actual payload, and the
// checksum validates. It is the ingress-side counterpart to Update.
func (h *Header) Verify() bool {
	b := h.frame.Buffer(0)
	hdrLen := h.HeaderLength()
	if hdrLen < HeaderSize || uint32(hdrLen) > b.HeadRoom() {
		return false
	}
	if h.payloadLenField() != uint16(b.Payload()) {
		return false
	}
	want := binary.BigEndian.Uint32(h.raw()[offChecksum:])
	got := checksum(h.raw()[:hdrLen])
	return want == got
}
