// Package stub provides an in-memory Transport for tests and demo
// programs: no real I/O, just enough of a lossy, reorderable link to
// exercise the controller's retransmission and ordering logic. It is
// grounded on the same "copy the frame, replay it through a bounded
// ring buffer" idea the stub radio driver uses for host-side testing,
// adapted here to stream.Frame and to a push rather than poll model,
// since rssi.Transport delivers inbound frames by calling
// Controller.TransportRx directly rather than being polled.
package stub

import (
	"sync"
	"time"

	"github.com/go-rssi/rssi/stream"
)

const txLogCapacity = 256

// Transport is one end of an in-memory link. Each Transport's SendFrame
// calls end up, after an optional simulated delay or drop, at the callback
// registered on that same Transport with Attach (ordinarily the peer
// Controller's TransportRx).
type Transport struct {
	mu sync.Mutex

	pool    *stream.Pool
	deliver func(*stream.Frame)

	drop    func(seq int) bool
	latency func(seq int) time.Duration

	seq   int
	txLog [][]byte
}

// New returns a Transport with no peer attached yet.
func New() *Transport {
	return &Transport{pool: stream.NewPool()}
}

// Attach registers the function that receives frames sent through this
// Transport. Attaching each of two Transports to the TransportRx of the
// Controller that uses the other one forms a loopback.
func (t *Transport) Attach(deliver func(*stream.Frame)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliver = deliver
}

// SetDrop installs a hook that decides, per outbound frame (numbered
// from 1 in send order), whether to silently discard it instead of
// delivering it. A nil hook (the default) never drops.
func (t *Transport) SetDrop(f func(seq int) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drop = f
}

// SetLatency installs a hook controlling how long delivery of the nth
// outbound frame is delayed; varying it per sequence number is how
// tests construct reordering. A nil hook (the default) delivers
// synchronously, inline with the SendFrame call.
func (t *Transport) SetLatency(f func(seq int) time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latency = f
}

// ReqFrame satisfies rssi.Transport by handing out a freshly allocated,
// single-buffer frame; the in-memory link has no segmentation concerns
// of its own, so maxBuf is ignored.
func (t *Transport) ReqFrame(size uint32, _ bool) (*stream.Frame, error) {
	return t.pool.ReqFrame(size), nil
}

// SendFrame logs and, unless dropped, hands a copy of frame to the
// attached peer, either inline or after the configured latency.
func (t *Transport) SendFrame(frame *stream.Frame) error {
	t.mu.Lock()
	t.seq++
	seq := t.seq

	clone := cloneFrame(frame)

	t.txLog = append(t.txLog, clone.Buffer(0).Bytes())
	if len(t.txLog) > txLogCapacity {
		t.txLog = t.txLog[len(t.txLog)-txLogCapacity:]
	}

	drop := t.drop
	deliver := t.deliver
	latency := t.latency
	t.mu.Unlock()

	if deliver == nil || (drop != nil && drop(seq)) {
		return nil
	}

	if latency == nil {
		deliver(clone)
		return nil
	}

	wait := latency(seq)
	go func() {
		time.Sleep(wait)
		deliver(clone)
	}()
	return nil
}

// TxLog returns a copy of the raw bytes (header and payload together) of
// every frame sent so far, oldest first, capped at the most recent
// txLogCapacity entries.
func (t *Transport) TxLog() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.txLog))
	copy(out, t.txLog)
	return out
}

// cloneFrame copies a single-buffer frame's bytes and cursor state into a
// fresh Buffer, so the sender and receiver never share memory: a real
// transport would marshal onto a wire and back, and tests that mutate a
// delivered frame must not corrupt the sender's view of what it sent.
func cloneFrame(f *stream.Frame) *stream.Frame {
	src := f.Buffer(0)
	raw := src.Bytes()

	clone := stream.NewBuffer(uint32(len(raw)))
	copy(clone.Bytes(), raw)
	_ = clone.AdjustHeader(int32(src.HeadRoom()))
	_ = clone.SetPayload(src.Payload(), true)

	return stream.NewFrame(clone)
}
