package rssi

import "github.com/go-rssi/rssi/stream"

// Transport is the collaborator that carries frames across the
// unreliable link: a UDP socket, a PCIe DMA engine, a serial port, or (in
// tests) an in-memory stub. The controller only ever asks it for a frame
// of a given size and hands it finished frames to send; everything else
// (addressing, retries at a lower layer, and so on) is the transport's
// own business and out of scope here.
type Transport interface {
	// ReqFrame returns a frame with at least size bytes of raw capacity.
	// maxBuf, when true, tells the transport it may return a
	// multi-buffer frame if that's cheaper for it to allocate; the
	// controller trims any such frame down to a single buffer itself.
	ReqFrame(size uint32, maxBuf bool) (*stream.Frame, error)

	// SendFrame transmits frame. It does not block on acknowledgment;
	// reliability is entirely the controller's job.
	SendFrame(frame *stream.Frame) error
}
