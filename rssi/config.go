package rssi

// Protocol defaults. Numeric values are chosen to stay consistent with
// the 8-bit sequence window and mirror the reference implementation's
// request defaults.
const (
	// Version is the RSSI protocol version this controller speaks.
	Version uint8 = 1

	// TimeoutUnit is the power-of-ten exponent applied to every
	// negotiated timeout field to yield microseconds: convTime(n) = n *
	// 10^TimeoutUnit microseconds. A value of 3 means timeouts are
	// expressed in milliseconds.
	TimeoutUnit uint8 = 3

	// LocMaxBuffers is the maximum number of outstanding, unacknowledged
	// segments this side advertises in its SYN. Must stay <= 128 to keep
	// the 8-bit sequence window's forward/backward halves unambiguous.
	LocMaxBuffers uint8 = 32

	// TryPeriod is how long a Closed controller waits before sending its
	// next SYN, expressed in TimeoutUnit units.
	TryPeriod uint32 = 1000

	// BusyThreshold is the appQueue depth above which outgoing headers
	// set the BSY flag.
	BusyThreshold = 64

	// ReqRetranTout, ReqCumAckTout and ReqNullTout are the timeouts this
	// side proposes in its SYN, in TimeoutUnit units.
	ReqRetranTout uint16 = 10
	ReqCumAckTout uint16 = 5
	ReqNullTout   uint16 = 3

	// ReqMaxRetran is how many times an unacknowledged segment is
	// retransmitted before the connection is torn down.
	ReqMaxRetran uint8 = 15

	// ReqMaxCumAck is how many outstanding, un-acked received segments
	// accumulate before a pure ack is forced out regardless of
	// cumAckTout.
	ReqMaxCumAck uint8 = 2

	// DefaultSegmentSize is a conventional maximum frame size (including
	// header) for callers to pass to Create. Create does not apply it on
	// its own: it uses whatever segSize it is given.
	DefaultSegmentSize uint32 = 1024

	// defaultRemMaxSegment is the placeholder remote segment size used
	// before a SYN-ACK negotiates the real one; ReqFrame's sizing also
	// clamps against segmentSize, so this value only matters for the
	// narrow window between Create and handshake completion.
	defaultRemMaxSegment uint32 = 100
)

// connParams holds the negotiated connection parameters: the set the
// controller currently uses for local timing/window decisions. Per the
// reference implementation (and spec.md's Open Question), the responder
// path accepts the peer's SYN-ACK parameters verbatim rather than taking
// the minimum of both sides' offers; that one-sided behavior is preserved
// here rather than "fixed".
type connParams struct {
	remMaxBuffers uint8
	remMaxSegment uint32
	retranTout    uint16
	cumAckTout    uint16
	nullTout      uint16
	maxRetran     uint8
	maxCumAck     uint8
}

func defaultConnParams() connParams {
	return connParams{
		remMaxSegment: defaultRemMaxSegment,
		retranTout:    ReqRetranTout,
		cumAckTout:    ReqCumAckTout,
		nullTout:      ReqNullTout,
		maxRetran:     ReqMaxRetran,
		maxCumAck:     ReqMaxCumAck,
	}
}
