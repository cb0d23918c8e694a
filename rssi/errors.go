package rssi

import "github.com/pkg/errors"

// ErrNotOpen is returned by ApplicationRx when the connection is not in
// the Open state; the caller's frame is silently dropped per spec, but
// callers that want to know why can check for this sentinel.
var ErrNotOpen = errors.New("rssi: connection not open")

// BoundaryError marks an API-level programmer error, as opposed to a
// protocol-level failure: an empty frame handed to ApplicationRx, or a
// first buffer that doesn't have room for the header ReqFrame reserved.
// It is distinct from ordinary protocol drops, which are never surfaced
// to the caller as errors.
type BoundaryError struct {
	cause error
}

func (e *BoundaryError) Error() string { return e.cause.Error() }
func (e *BoundaryError) Unwrap() error { return e.cause }

func newBoundaryError(op string, want, have uint32) error {
	return &BoundaryError{cause: errors.Errorf("rssi.%s: boundary error, want %d have %d", op, want, have)}
}

func newPlainError(msg string) error {
	return errors.New(msg)
}
