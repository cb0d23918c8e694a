package rssi

import (
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rssi/rssi/rssi/stub"
)

// newConnectedPair wires two controllers together over in-memory stub
// transports and waits for the handshake to complete on both ends.
func newConnectedPair(t *testing.T) (a, b *Controller, ta, tb *stub.Transport) {
	t.Helper()

	ta, tb = stub.New(), stub.New()
	a = Create(1024, ta)
	b = Create(1024, tb)
	ta.Attach(b.TransportRx)
	tb.Attach(a.TransportRx)

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	waitUntil(t, func() bool { return a.Open() }, "a never reached Open")
	waitUntil(t, func() bool { return b.Open() }, "b never reached Open")
	return a, b, ta, tb
}

// drain continuously pops c's application queue and discards the result,
// standing in for an application that has nothing of its own to send but
// must keep consuming deliveries to let cumulative acks advance.
func drain(c *Controller) {
	go func() {
		for {
			if _, ok := c.ApplicationTx(); !ok {
				return
			}
		}
	}()
}

// deadline comfortably covers two TryPeriod cycles: the handshake's first
// SYN only goes out once a full TryPeriod has elapsed since Create, and an
// unlucky race (both sides still Closed when the other's SYN arrives) costs
// a second cycle before the retry gets through.
func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(6 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func sendUint64(t *testing.T, c *Controller, v uint64) {
	t.Helper()
	frame, err := c.ReqFrame(8, false)
	if err != nil {
		t.Fatalf("ReqFrame: %v", err)
	}
	buf := frame.Buffer(0)
	binary.BigEndian.PutUint64(buf.Bytes()[buf.HeadRoom():], v)
	if err := buf.AdjustPayload(8); err != nil {
		t.Fatalf("AdjustPayload: %v", err)
	}
	if err := c.ApplicationRx(frame); err != nil {
		t.Fatalf("ApplicationRx: %v", err)
	}
}

func recvUint64(t *testing.T, c *Controller) uint64 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame, ok := c.ApplicationTx()
		if !ok {
			t.Fatal("ApplicationTx: connection torn down")
		}
		payload := frame.Buffer(0).PayloadBytes()
		if len(payload) != 8 {
			continue
		}
		return binary.BigEndian.Uint64(payload)
	}
	t.Fatal("recvUint64: timed out")
	return 0
}

func TestHandshakeOpensBothEnds(t *testing.T) {
	a, b, _, _ := newConnectedPair(t)
	drain(a)
	drain(b)

	if !a.Open() || !b.Open() {
		t.Fatalf("expected both ends open, got a=%s b=%s", a.State(), b.State())
	}
}

func TestDataTransferDeliversInOrder(t *testing.T) {
	a, b, _, _ := newConnectedPair(t)
	drain(b)

	const n = 5
	for i := uint64(0); i < n; i++ {
		sendUint64(t, b, i)
	}

	for i := uint64(0); i < n; i++ {
		if got := recvUint64(t, a); got != i {
			t.Fatalf("frame #%d = %d, want %d", i, got, i)
		}
	}
}

func TestDroppedFrameIsRetransmitted(t *testing.T) {
	a, b, _, tb := newConnectedPair(t)
	drain(b)

	var dropped atomic.Bool
	tb.SetDrop(func(seq int) bool {
		return !dropped.Swap(true)
	})

	sendUint64(t, b, 42)

	if got := recvUint64(t, a); got != 42 {
		t.Fatalf("payload after drop+retransmit = %d, want 42", got)
	}
	waitUntil(t, func() bool { return b.RetranCount() > 0 }, "expected at least one retransmission")
}

func TestBusyThresholdReportedOnOversizedAppQueue(t *testing.T) {
	c := Create(1024, stub.New())
	defer c.Close()

	for i := 0; i <= BusyThreshold; i++ {
		frame := newPlainFrame(t, HeaderSize)
		_ = frame.Buffer(0).AdjustHeader(int32(HeaderSize))
		h := NewHeader(frame)
		h.TxInit(false, true)
		h.Update()
		c.appQueue.Push(h)
	}

	if !c.Busy() {
		t.Fatalf("Busy() = false with %d queued headers, want true", BusyThreshold+1)
	}
}
