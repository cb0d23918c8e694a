// Package rssi implements the Reliable SLAC Stream Interface controller:
// a connection-oriented, sequenced, retransmitting transport layered over
// an unreliable frame carrier supplied by a Transport implementation.
package rssi

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/armon/circbuf"
	"github.com/go-rssi/rssi/stream"
	"github.com/rs/zerolog"
)

// Controller is the heart of the package: it drives the syn handshake,
// cumulative-ack cadence, null keepalive, retransmission and teardown on
// a dedicated goroutine, and bridges an application endpoint to a
// Transport endpoint running on distinct goroutines.
type Controller struct {
	transport   Transport
	segmentSize uint32

	logger  zerolog.Logger
	logRing *circbuf.Buffer

	// State-machine side. stTime and state change together and are only
	// ever written while holding stMtx; the state-machine goroutine, their
	// only writer, also reads stTime directly.
	stMtx  sync.Mutex
	state  State
	stTime time.Time

	stQueue  *headerQueue
	appQueue *headerQueue
	wake     chan struct{}

	// Tx side. txMtx covers txList and every field that moves in lock
	// step with it, per the Design Notes: splitting these yields torn
	// views of the retransmit window.
	txMtx       sync.Mutex
	txList      retransmitList
	txTime      time.Time
	lastAckTx   uint8
	locSequence uint8
	prevAckRx   uint8

	// Rx side, updated by TransportRx (its own goroutine) and read with
	// relaxed ordering elsewhere, matching the reference implementation's
	// treatment of these as benign, word-sized races (see spec.md §9 and
	// DESIGN.md).
	lastAckRx atomic.Uint32
	tranBusy  atomic.Bool
	nextSeqRx atomic.Uint32
	lastSeqRx atomic.Uint32

	// Negotiated parameters. remMaxBuffers and remMaxSegment are read
	// from the application goroutine (ApplicationRx's backpressure loop,
	// ReqFrame's sizing) as well as the state-machine goroutine, so they
	// are atomics; the remaining timeout/retry parameters are read and
	// written exclusively by the state-machine goroutine and need no
	// synchronization of their own.
	remMaxBuffers atomic.Uint32
	remMaxSegment atomic.Uint32
	retranTout    uint16
	cumAckTout    uint16
	nullTout      uint16
	maxRetran     uint8
	maxCumAck     uint8

	locConnID uint32
	remConnID uint32

	dropCount   atomic.Uint32
	downCount   atomic.Uint32
	retranCount atomic.Uint32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Create allocates a Controller for the given Transport and starts its
// state-machine goroutine. segSize bounds the largest frame (including
// header) this side will ever request via ReqFrame.
func Create(segSize uint32, transport Transport) *Controller {
	logger, ring := newLogger()
	params := defaultConnParams()

	c := &Controller{
		transport:   transport,
		segmentSize: segSize,
		logger:      logger,
		logRing:     ring,
		stQueue:     newHeaderQueue(),
		appQueue:    newHeaderQueue(),
		wake:        make(chan struct{}, 1),
		locConnID:   LocalConnID,
		retranTout:  params.retranTout,
		cumAckTout:  params.cumAckTout,
		nullTout:    params.nullTout,
		maxRetran:   params.maxRetran,
		maxCumAck:   params.maxCumAck,
		stTime:      time.Now(),
		txTime:      time.Now(),
	}
	c.remMaxSegment.Store(params.remMaxSegment)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.logger.Info().Uint32("connId", c.locConnID).Msg("rssi controller created")

	c.wg.Add(1)
	go c.run()

	return c
}

// Close interrupts the state-machine goroutine and waits for it to
// perform orderly shutdown (emit a best-effort RST, clear the
// retransmit list, unblock any caller stuck in ApplicationTx).
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// State returns the controller's current connection state.
func (c *Controller) State() State {
	c.stMtx.Lock()
	defer c.stMtx.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.stMtx.Lock()
	old := c.state
	c.state = s
	c.stTime = time.Now()
	c.stMtx.Unlock()
	c.logger.Info().Str("from", old.String()).Str("to", s.String()).Msg("state transition")
}

// Open reports whether the connection is currently established.
func (c *Controller) Open() bool { return c.State() == StOpen }

// DownCount is the number of times the connection has dropped into Error
// and been torn down.
func (c *Controller) DownCount() uint32 { return c.downCount.Load() }

// DropCount is the number of inbound frames discarded for a bad checksum
// or malformed header.
func (c *Controller) DropCount() uint32 { return c.dropCount.Load() }

// RetranCount is the number of retransmissions performed; a header that
// is resent several times counts once per resend.
func (c *Controller) RetranCount() uint32 { return c.retranCount.Load() }

// Busy reports whether the application-bound queue is deep enough that
// outgoing headers are asserting the BSY flag.
func (c *Controller) Busy() bool { return c.appQueue.Size() > BusyThreshold }

// Stats is a point-in-time snapshot of the counters and queue depths
// exposed individually by Open/DownCount/DropCount/RetranCount/Busy,
// bundled for callers that want one consistent-ish read.
type Stats struct {
	State         State
	DownCount     uint32
	DropCount     uint32
	RetranCount   uint32
	AppQueueDepth int
	StQueueDepth  int
	TxListCount   int
}

// Stats returns a snapshot of the controller's counters and queue
// depths.
func (c *Controller) Stats() Stats {
	c.txMtx.Lock()
	txCount := c.txList.count
	c.txMtx.Unlock()

	return Stats{
		State:         c.State(),
		DownCount:     c.DownCount(),
		DropCount:     c.DropCount(),
		RetranCount:   c.RetranCount(),
		AppQueueDepth: c.appQueue.Size(),
		StQueueDepth:  c.stQueue.Size(),
		TxListCount:   txCount,
	}
}

func (c *Controller) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ReqFrame requests a frame sized to fit size bytes of payload plus the
// RSSI header, capped by the peer's advertised maximum segment size and
// this side's own segmentSize. maxBuf is forwarded to the transport as a
// hint; any multi-buffer frame the transport hands back is trimmed to a
// single buffer, since the controller never fragments.
func (c *Controller) ReqFrame(size uint32, maxBuf bool) (*stream.Frame, error) {
	nSize := size + HeaderSize
	if remMax := c.remMaxSegment.Load(); remMax > 0 && nSize > remMax {
		nSize = remMax
	}
	if nSize > c.segmentSize {
		nSize = c.segmentSize
	}

	frame, err := c.transport.ReqFrame(nSize, maxBuf)
	if err != nil {
		return nil, err
	}

	buf := frame.Buffer(0)
	if buf.Available() < HeaderSize {
		return nil, newBoundaryError("ReqFrame", HeaderSize, buf.Available())
	}
	if err := buf.AdjustHeader(int32(HeaderSize)); err != nil {
		return nil, err
	}

	if frame.Count() > 1 {
		frame = stream.NewFrame(buf)
	}
	return frame, nil
}

// reqControlFrame is the internal counterpart used by the state machine
// to build SYN/ACK/NUL/RST frames: it always asks for a single buffer and
// lets the caller reserve the right amount of head-room afterward (a SYN
// needs SynHeaderSize, everything else needs HeaderSize).
func (c *Controller) reqControlFrame(size uint32) (*stream.Frame, error) {
	frame, err := c.transport.ReqFrame(size, false)
	if err != nil {
		return nil, err
	}
	if frame.Count() > 1 {
		frame = stream.NewFrame(frame.Buffer(0))
	}
	return frame, nil
}

// transportTxLocked sends h, recomputing its checksum and ack/busy
// fields first. Callers must hold txMtx. seqUpdate selects whether this
// transmission consumes a new sequence number and is stored in the
// retransmit list (data, SYN, NUL) or not (pure acks, and
// retransmissions which reuse their already-stored sequence number).
func (c *Controller) transportTxLocked(h *Header, seqUpdate bool) error {
	if seqUpdate {
		h.SetSequence(c.locSequence)
		c.txList.store(c.locSequence, h)
		c.locSequence++
	}

	h.SetAcknowledge(uint8(c.lastSeqRx.Load()))
	h.SetBusy(c.appQueue.Size() > BusyThreshold)
	h.Update()

	c.lastAckTx = h.GetAcknowledge()
	c.txTime = time.Now()
	h.markSent()

	return c.transport.SendFrame(h.Frame())
}

// TransportRx is called by the transport's receive goroutine for every
// frame it pulls off the wire. It classifies the frame, routes it to
// stQueue or appQueue as appropriate, and wakes the state machine.
func (c *Controller) TransportRx(frame *stream.Frame) {
	if frame.Count() == 0 {
		c.dropCount.Add(1)
		return
	}

	h := NewHeader(frame)
	if !h.Verify() {
		c.dropCount.Add(1)
		c.logger.Debug().Msg("dropped frame: checksum/length mismatch")
		return
	}

	if h.GetAck() {
		c.lastAckRx.Store(uint32(h.GetAcknowledge()))
	}
	c.tranBusy.Store(h.GetBusy())

	state := c.State()

	if (state == StOpen || state == StWaitSyn) && (h.GetSyn() || h.GetRst()) {
		c.stQueue.Push(h)
	}

	deliverable := h.GetSyn() ||
		(state == StOpen &&
			(h.GetNul() || frame.PayloadSize() > 0) &&
			h.GetSequence() == uint8(c.nextSeqRx.Load()))

	if deliverable {
		if h.GetSyn() {
			c.nextSeqRx.Store(uint32(h.GetSequence()) + 1)
		} else {
			c.nextSeqRx.Add(1)
		}
		c.appQueue.Push(h)
	}

	c.poke()
}

// ApplicationRx is called by the application to transmit frame. It
// fails with a *BoundaryError for malformed input (empty frame, or no
// room reserved for the header), blocks under flow control while the
// send window is full, and returns ErrNotOpen without sending anything
// if the connection drops out of Open while it was waiting.
func (c *Controller) ApplicationRx(frame *stream.Frame) error {
	if frame.Count() == 0 {
		return &BoundaryError{cause: errNotEmpty}
	}

	buf := frame.Buffer(0)
	if buf.HeadRoom() < HeaderSize {
		return newBoundaryError("ApplicationRx", HeaderSize, buf.HeadRoom())
	}

	h := NewHeader(frame)
	h.TxInit(false, false)
	h.SetAck(true)

	for c.txListCount() >= int(c.remMaxBuffers.Load()) && c.State() == StOpen {
		time.Sleep(10 * time.Microsecond)
	}

	if c.State() != StOpen {
		return ErrNotOpen
	}

	c.txMtx.Lock()
	err := c.transportTxLocked(h, true)
	c.txMtx.Unlock()

	c.poke()
	return err
}

func (c *Controller) txListCount() int {
	c.txMtx.Lock()
	defer c.txMtx.Unlock()
	return c.txList.count
}

// ApplicationTx blocks until a frame destined for the application is
// available, skipping NUL and SYN headers (whose only purpose to the
// application is to update lastSeqRx for acknowledgment bookkeeping). The
// returned frame's first buffer's PayloadBytes hold the delivered data;
// the header region is left intact ahead of it. ApplicationTx returns
// (nil, false) once the connection is torn down and the queue is reset.
func (c *Controller) ApplicationTx() (*stream.Frame, bool) {
	for {
		h, ok := c.appQueue.Pop()
		if !ok {
			return nil, false
		}

		c.lastSeqRx.Store(uint32(h.GetSequence()))
		c.poke()

		if !h.GetNul() && !h.GetSyn() {
			return h.Frame(), true
		}
	}
}

var errNotEmpty = newPlainError("rssi.ApplicationRx: frame must not be empty")
