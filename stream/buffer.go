// Package stream provides the minimal frame/buffer abstraction the RSSI
// controller consumes from its transport-layer collaborator: frames
// composed of buffers with head-room, tail-room and a payload cursor.
// Frames carry no reference count. Allocation, reuse and real wire I/O live outside this
// package; stream only knows how to carve usable space out of a byte
// slice the way the controller expects.
package stream

import "github.com/pkg/errors"

// Buffer wraps a fixed byte slice and tracks how much of it is reserved
// for headers (headRoom), trailers (tailRoom), and how much currently
// holds payload.
type Buffer struct {
	data     []byte
	headRoom uint32
	tailRoom uint32
	payload  uint32
}

// NewBuffer allocates a Buffer backed by a fresh byte slice of the given
// raw size. Head-room, tail-room and payload all start at zero.
func NewBuffer(rawSize uint32) *Buffer {
	return &Buffer{data: make([]byte, rawSize)}
}

// RawSize returns the total capacity of the underlying byte slice.
func (b *Buffer) RawSize() uint32 { return uint32(len(b.data)) }

// HeadRoom returns the number of bytes currently reserved at the front of
// the buffer for headers.
func (b *Buffer) HeadRoom() uint32 { return b.headRoom }

// TailRoom returns the number of bytes currently reserved at the back of
// the buffer for trailers.
func (b *Buffer) TailRoom() uint32 { return b.tailRoom }

// AdjustHeader grows or shrinks the head-room reservation by value, which
// may be negative. It mirrors the original Buffer::adjustHeader: shrinking
// below zero head-room, or growing past the space left after tail-room, is
// a boundary error.
func (b *Buffer) AdjustHeader(value int32) error {
	if value < 0 && uint32(-value) > b.headRoom {
		return errors.Wrapf(ErrBoundary, "stream.Buffer.AdjustHeader: want %d, have %d", -value, b.headRoom)
	}
	if value > 0 && uint32(value) > b.RawSize()-(b.headRoom+b.tailRoom) {
		return errors.Wrapf(ErrBoundary, "stream.Buffer.AdjustHeader: want %d, have %d", value, b.RawSize()-(b.headRoom+b.tailRoom))
	}
	b.headRoom = uint32(int32(b.headRoom) + value)
	if b.payload < b.headRoom {
		b.payload = b.headRoom
	}
	return nil
}

// ZeroHeader clears the head-room reservation entirely.
func (b *Buffer) ZeroHeader() { b.headRoom = 0 }

// AdjustTail grows or shrinks the tail-room reservation by value.
func (b *Buffer) AdjustTail(value int32) error {
	if value < 0 && uint32(-value) > b.tailRoom {
		return errors.Wrapf(ErrBoundary, "stream.Buffer.AdjustTail: want %d, have %d", -value, b.tailRoom)
	}
	if value > 0 && uint32(value) > b.RawSize()-(b.headRoom+b.tailRoom) {
		return errors.Wrapf(ErrBoundary, "stream.Buffer.AdjustTail: want %d, have %d", value, b.RawSize()-(b.headRoom+b.tailRoom))
	}
	b.tailRoom = uint32(int32(b.tailRoom) + value)
	return nil
}

// ZeroTail clears the tail-room reservation entirely.
func (b *Buffer) ZeroTail() { b.tailRoom = 0 }

// Size returns the usable size of the buffer: raw size minus head and
// tail reservations.
func (b *Buffer) Size() uint32 { return b.RawSize() - (b.headRoom + b.tailRoom) }

// Available returns how much payload space remains before hitting the
// tail reservation.
func (b *Buffer) Available() uint32 {
	ret := b.RawSize() - b.payload
	if ret < b.tailRoom {
		return 0
	}
	return ret - b.tailRoom
}

// Payload returns the amount of real payload data currently held, not
// counting the head-room reservation.
func (b *Buffer) Payload() uint32 { return b.payload - b.headRoom }

// SetPayload sets the payload size (excluding head-room). If shrink is
// false and size is less than the current payload, the call is a no-op.
func (b *Buffer) SetPayload(size uint32, shrink bool) error {
	if !shrink && size < b.Payload() {
		return nil
	}
	if size > b.RawSize()-(b.headRoom+b.tailRoom) {
		return errors.Wrapf(ErrBoundary, "stream.Buffer.SetPayload: want %d, have %d", size, b.RawSize()-(b.headRoom+b.tailRoom))
	}
	b.payload = size + b.headRoom
	return nil
}

// AdjustPayload grows or shrinks the payload length by value.
func (b *Buffer) AdjustPayload(value int32) error {
	if value < 0 && uint32(-value) > b.Payload() {
		return errors.Wrapf(ErrBoundary, "stream.Buffer.AdjustPayload: want %d, have %d", -value, b.Payload())
	}
	return b.SetPayload(uint32(int32(b.Payload())+value), true)
}

// SetPayloadFull marks the entire usable buffer (minus tail-room) as
// holding payload.
func (b *Buffer) SetPayloadFull() { b.payload = b.RawSize() - b.tailRoom }

// SetPayloadEmpty resets payload to zero, leaving only head-room claimed.
func (b *Buffer) SetPayloadEmpty() { b.payload = b.headRoom }

// Bytes returns the full underlying slice, including head- and
// tail-room. Callers that need only the header region or only the
// payload should use HeaderBytes/PayloadBytes instead.
func (b *Buffer) Bytes() []byte { return b.data }

// HeaderBytes returns the slice from the start of the buffer through the
// current head-room, the region the header codec writes into.
func (b *Buffer) HeaderBytes() []byte { return b.data[:b.headRoom] }

// PayloadBytes returns the slice holding real payload data, after
// head-room and up to the current payload cursor.
func (b *Buffer) PayloadBytes() []byte { return b.data[b.headRoom:b.payload] }
