package rssi

import (
	"io"
	"os"

	"github.com/armon/circbuf"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// diagRingSize bounds the diagnostic log mirror: enough to reconstruct
// the handful of seconds leading up to an Error transition without
// growing without bound on a connection that never drops.
const diagRingSize = 64 * 1024

// newLogger builds a zerolog.Logger tagged with a session id distinct
// from the wire-level 32-bit connection id: the connection id is
// negotiated and can be reused across reconnects, while the session id
// uniquely identifies this particular Controller instance in logs. The
// logger writes to stderr and, in parallel, into a bounded ring buffer so
// Controller.DiagnosticLog can return the last few seconds of history
// after a connection drops into Error.
func newLogger() (zerolog.Logger, *circbuf.Buffer) {
	ring, err := circbuf.NewBuffer(diagRingSize)
	if err != nil {
		// Only fails on a non-positive size, which diagRingSize never is.
		ring = nil
	}

	var w io.Writer = os.Stderr
	if ring != nil {
		w = zerolog.MultiLevelWriter(os.Stderr, ring)
	}

	logger := zerolog.New(w).With().
		Timestamp().
		Str("session", uuid.NewString()).
		Logger()

	return logger, ring
}

// DiagnosticLog returns the most recent log lines mirrored into the
// controller's ring buffer, most useful right after an Error transition.
func (c *Controller) DiagnosticLog() []byte {
	if c.logRing == nil {
		return nil
	}
	return c.logRing.Bytes()
}
