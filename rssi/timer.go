package rssi

import (
	"math"
	"time"
)

// convTime converts an RSSI-negotiated timeout value, expressed in the
// negotiated timeout unit, into a time.Duration. The unit is a
// power-of-ten exponent yielding microseconds: n * 10^unit microseconds.
func convTime(unit uint8, n uint32) time.Duration {
	usec := float64(n) * math.Pow(10, float64(unit))
	return time.Duration(usec) * time.Microsecond
}

// timePassed reports whether convTime(unit, n) has elapsed since last.
func timePassed(last time.Time, unit uint8, n uint32) bool {
	return time.Since(last) > convTime(unit, n)
}
