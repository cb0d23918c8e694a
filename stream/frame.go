package stream

import "github.com/pkg/errors"

// ErrBoundary is the sentinel wrapped by every boundary violation raised
// by the stream package (head-room exhausted, payload too large, and so
// on). Callers can match on it with errors.Is.
var ErrBoundary = errors.New("stream: boundary error")

// Frame is an ordered list of Buffers. The RSSI controller only ever
// produces and consumes single-buffer frames; multi-buffer frames
// received from a transport are trimmed down to their first buffer
// before the controller will touch them (see Controller.ReqFrame).
type Frame struct {
	buffers []*Buffer
}

// NewFrame wraps the given buffers into a Frame, in order.
func NewFrame(buffers ...*Buffer) *Frame {
	return &Frame{buffers: buffers}
}

// Count returns the number of buffers in the frame.
func (f *Frame) Count() int { return len(f.buffers) }

// Buffer returns the i'th buffer in the frame, or nil if out of range.
func (f *Frame) Buffer(i int) *Buffer {
	if i < 0 || i >= len(f.buffers) {
		return nil
	}
	return f.buffers[i]
}

// AppendBuffer appends a buffer to the frame.
func (f *Frame) AppendBuffer(b *Buffer) { f.buffers = append(f.buffers, b) }

// PayloadSize returns the combined payload size across all buffers.
func (f *Frame) PayloadSize() uint32 {
	var total uint32
	for _, b := range f.buffers {
		total += b.Payload()
	}
	return total
}
