package rssi

import "time"

// run is the controller's state-machine goroutine: it owns state, stTime
// and the connection parameters outright, and is the only goroutine that
// ever calls setState. TransportRx, ApplicationRx and ApplicationTx run on
// the caller's own goroutines: TransportRx pushes onto stQueue/appQueue,
// ApplicationTx pops appQueue and records lastSeqRx, and ApplicationRx
// transmits under txMtx (advancing locSequence); each then pokes it awake.
func (c *Controller) run() {
	defer c.wg.Done()
	c.setState(StClosed)

	for {
		var shuttingDown bool
		switch c.State() {
		case StClosed, StWaitSyn:
			shuttingDown = c.stateClosedWait()
		case StSendSeqAck:
			shuttingDown = c.stateSendSeqAck()
		case StOpen:
			shuttingDown = c.stateOpen()
		case StError:
			shuttingDown = c.stateError()
		}
		if shuttingDown {
			c.teardown()
			return
		}
	}
}

// stateClosedWait handles both Closed and WaitSyn: it polls stQueue for a
// SYN-ACK or RST from the peer, and otherwise resends this side's own SYN
// once TryPeriod has elapsed since the last one went out. Closed and
// WaitSyn behave identically here; the distinct state values exist only
// so observers can tell "never tried" apart from "SYN outstanding".
func (c *Controller) stateClosedWait() bool {
	select {
	case <-c.ctx.Done():
		return true
	case <-c.wake:
	case <-time.After(convTime(TimeoutUnit, TryPeriod) / 4):
	}

	if h, ok := c.stQueue.TryPop(); ok {
		switch {
		case h.GetRst():
			c.setState(StClosed)
		case h.GetSyn() && h.GetAck():
			c.remConnID = h.GetConnectionId()
			c.applyRemoteParams(h)
			c.txMtx.Lock()
			c.prevAckRx = h.GetAcknowledge()
			c.txMtx.Unlock()
			c.nextSeqRx.Store(uint32(h.GetSequence()) + 1)
			c.lastSeqRx.Store(uint32(h.GetSequence()))
			c.setState(StSendSeqAck)
		}
		return false
	}

	if timePassed(c.stTime, TimeoutUnit, TryPeriod) {
		if err := c.sendSyn(); err != nil {
			c.logger.Error().Err(err).Msg("failed to send syn")
		}
		c.setState(StWaitSyn)
	}
	return false
}

// stateSendSeqAck answers the peer's SYN-ACK with a plain ack (the peer
// already has our parameters from the SYN it just received) and opens
// the connection; liveness from here on is the retransmission timer's and
// the null keepalive's job, not a further handshake round-trip.
func (c *Controller) stateSendSeqAck() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
	}

	if err := c.sendAck(); err != nil {
		c.logger.Error().Err(err).Msg("failed to send seq ack")
		c.setState(StError)
		return false
	}
	c.setState(StOpen)
	return false
}

// stateOpen is the connection's steady state: one tick services
// retransmissions, cumulative acks and the null keepalive, and errors out
// on any control frame the peer has sent (an RST, or anything else —
// nothing in Open expects stQueue traffic at all).
func (c *Controller) stateOpen() bool {
	c.txMtx.Lock()
	tick := convTime(TimeoutUnit, uint32(c.cumAckTout)/2)
	c.txMtx.Unlock()

	select {
	case <-c.ctx.Done():
		return true
	case <-c.wake:
	case <-time.After(tick):
	}

	if _, ok := c.stQueue.TryPop(); ok {
		c.logger.Warn().Msg("unexpected control frame while open")
		c.setState(StError)
		return false
	}

	if c.scanRetransmissions() {
		return false
	}

	c.maybeSendAck()
	c.maybeSendNul()
	return false
}

// stateError tears down connection-local state, unblocks any caller
// waiting in ApplicationRx/ApplicationTx, and after a cool-off period
// restarts the handshake from Closed.
func (c *Controller) stateError() bool {
	if err := c.sendRst(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to send rst on error")
	}
	c.downCount.Add(1)

	c.txMtx.Lock()
	c.txList.clear()
	c.locSequence = 0
	c.lastAckTx = 0
	c.prevAckRx = 0
	c.txMtx.Unlock()

	c.nextSeqRx.Store(0)
	c.lastSeqRx.Store(0)
	c.lastAckRx.Store(0)
	c.tranBusy.Store(false)

	c.stQueue.Reset()
	c.appQueue.Reset()

	select {
	case <-c.ctx.Done():
		return true
	case <-time.After(convTime(TimeoutUnit, TryPeriod)):
	}

	c.setState(StClosed)
	return false
}

// teardown runs once, after run's loop exits because the controller was
// Closed. It makes a best-effort attempt to tell the peer, clears the
// retransmit list, and unblocks any caller still waiting on the queues.
func (c *Controller) teardown() {
	if s := c.State(); s == StOpen || s == StSendSeqAck {
		if err := c.sendRst(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to send rst on close")
		}
	}
	c.txMtx.Lock()
	c.txList.clear()
	c.txMtx.Unlock()
	c.stQueue.Reset()
	c.appQueue.Reset()
	c.logger.Info().Msg("rssi controller closed")
}

// applyRemoteParams adopts the peer's SYN parameters verbatim. See
// config.go's connParams doc comment for why this side never negotiates
// down to a minimum of both offers.
func (c *Controller) applyRemoteParams(h *Header) {
	c.remMaxBuffers.Store(uint32(h.GetMaxOutstandingSegments()))
	c.remMaxSegment.Store(uint32(h.GetMaxSegmentSize()))
	c.retranTout = h.GetRetransmissionTimeout()
	c.cumAckTout = h.GetCumulativeAckTimeout()
	c.nullTout = h.GetNullTimeout()
	c.maxRetran = h.GetMaxRetransmissions()
	c.maxCumAck = h.GetMaxCumulativeAck()
}

// scanRetransmissions releases every txList entry the peer has
// cumulatively acknowledged over (prevAckRx, lastAckRx], then walks the
// remaining outstanding window in sequence order, resending anything past
// its retransmission timeout. It reports true if the connection was moved
// to Error because some entry exhausted maxRetran.
func (c *Controller) scanRetransmissions() bool {
	c.txMtx.Lock()
	defer c.txMtx.Unlock()

	ackRx := uint8(c.lastAckRx.Load())
	for c.prevAckRx != ackRx {
		c.prevAckRx++
		c.txList.release(c.prevAckRx)
	}

	seqTx := c.locSequence - 1
	if ackRx == seqTx {
		return false
	}

	for seq := ackRx + 1; ; seq++ {
		if h := c.txList.get(seq); h != nil {
			switch {
			case c.tranBusy.Load():
				h.RstTime()
			case timePassed(h.Time(), TimeoutUnit, uint32(c.retranTout)):
				if h.Count() >= int(c.maxRetran) {
					c.logger.Error().Uint8("seq", seq).Msg("giving up after max retransmissions")
					c.setState(StError)
					return true
				}
				h.bumpRetry()
				c.retranCount.Add(1)
				if err := c.transportTxLocked(h, false); err != nil {
					c.logger.Error().Err(err).Msg("retransmit failed")
				}
			}
		}
		if seq == seqTx {
			break
		}
	}
	return false
}

// maybeSendAck forces out a pure ack once enough received segments have
// accumulated unacknowledged, or the app queue is signaling busy, and
// cumAckTout has elapsed since anything was last sent (which would
// otherwise have carried the ack piggybacked).
func (c *Controller) maybeSendAck() {
	c.txMtx.Lock()
	unacked := uint8(c.lastSeqRx.Load()) - c.lastAckTx
	busy := c.appQueue.Size() > BusyThreshold
	due := unacked >= c.maxCumAck || ((unacked > 0 || busy) && timePassed(c.txTime, TimeoutUnit, uint32(c.cumAckTout)))
	c.txMtx.Unlock()

	if !due {
		return
	}
	if err := c.sendAck(); err != nil {
		c.logger.Error().Err(err).Msg("failed to send cumulative ack")
	}
}

// maybeSendNul sends a keepalive once nothing has gone out for
// nullTout/3, the only way the peer has of telling a silent connection
// from a dead one with enough margin before the peer's own null
// deadline.
func (c *Controller) maybeSendNul() {
	c.txMtx.Lock()
	idle := timePassed(c.txTime, TimeoutUnit, uint32(c.nullTout)/3)
	c.txMtx.Unlock()

	if !idle {
		return
	}
	if err := c.sendNul(); err != nil {
		c.logger.Error().Err(err).Msg("failed to send null keepalive")
	}
}

// sendSyn builds and transmits this side's connection-opening SYN,
// carrying its proposed parameters.
func (c *Controller) sendSyn() error {
	frame, err := c.reqControlFrame(SynHeaderSize)
	if err != nil {
		return err
	}
	if err := frame.Buffer(0).AdjustHeader(int32(SynHeaderSize)); err != nil {
		return err
	}

	h := NewHeader(frame)
	h.TxInit(true, true)
	c.fillSynParams(h)

	c.txMtx.Lock()
	defer c.txMtx.Unlock()
	return c.transportTxLocked(h, true)
}

func (c *Controller) fillSynParams(h *Header) {
	h.SetVersion(Version)
	h.SetMaxOutstandingSegments(LocMaxBuffers)
	h.SetMaxSegmentSize(uint16(c.segmentSize))
	h.SetRetransmissionTimeout(ReqRetranTout)
	h.SetCumulativeAckTimeout(ReqCumAckTout)
	h.SetNullTimeout(ReqNullTout)
	h.SetMaxRetransmissions(ReqMaxRetran)
	h.SetMaxCumulativeAck(ReqMaxCumAck)
	h.SetTimeoutUnit(TimeoutUnit)
	h.SetConnectionId(c.locConnID)
	h.SetChk(true)
}

// sendAck sends a pure acknowledgment, carrying no payload and consuming
// no sequence number of its own.
func (c *Controller) sendAck() error {
	frame, err := c.reqControlFrame(HeaderSize)
	if err != nil {
		return err
	}
	if err := frame.Buffer(0).AdjustHeader(int32(HeaderSize)); err != nil {
		return err
	}
	h := NewHeader(frame)
	h.TxInit(false, true)

	c.txMtx.Lock()
	defer c.txMtx.Unlock()
	return c.transportTxLocked(h, false)
}

// sendNul sends a null keepalive, which does consume a sequence number
// (and so is itself retransmitted and acknowledged like any data header).
func (c *Controller) sendNul() error {
	frame, err := c.reqControlFrame(HeaderSize)
	if err != nil {
		return err
	}
	if err := frame.Buffer(0).AdjustHeader(int32(HeaderSize)); err != nil {
		return err
	}
	h := NewHeader(frame)
	h.TxInit(false, true)
	h.SetNul(true)

	c.txMtx.Lock()
	defer c.txMtx.Unlock()
	return c.transportTxLocked(h, true)
}

// sendRst sends a reset, used both when Close tears down an established
// connection and by stateError on its way back to Closed. It carries the
// ack flag and consumes a sequence number like the reference
// implementation's reset, rather than a bare, sequence-less RST.
func (c *Controller) sendRst() error {
	frame, err := c.reqControlFrame(HeaderSize)
	if err != nil {
		return err
	}
	if err := frame.Buffer(0).AdjustHeader(int32(HeaderSize)); err != nil {
		return err
	}
	h := NewHeader(frame)
	h.TxInit(false, true)
	h.SetRst(true)

	c.txMtx.Lock()
	defer c.txMtx.Unlock()
	return c.transportTxLocked(h, true)
}
