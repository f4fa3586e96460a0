// Package vtime implements wrap-safe virtual-time arithmetic for the
// B-WF2Q+ scheduling engine: timestamp comparison and the mapping from
// service consumed to virtual-time delta.
package vtime

import "math/bits"

// Shift controls the service-to-vtime conversion. It bounds the maximum
// service deliverable in one slot before the shift overflows, the maximum
// system weight sum the denominator can hold, and the wraparound period of
// Timestamp. Grounded on WFQ_SERVICE_SHIFT in the original scheduler.
const Shift = 22

// Timestamp is a 64-bit virtual-time value that wraps. Never compare two
// Timestamps with the raw < or > operators; use Compare, Before, or After.
type Timestamp uint64

// Compare returns a value >0 if a is after b, <0 if a is before b, and 0 if
// equal, using signed-difference wraparound semantics: the two timestamps
// are never more than half the Timestamp range apart in practice, so
// interpreting their difference as signed recovers the intended order
// across a wrap.
func Compare(a, b Timestamp) int {
	d := int64(a - b)
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// After reports whether a is strictly after b (wrap-safe a > b).
func After(a, b Timestamp) bool {
	return Compare(a, b) > 0
}

// Before reports whether a is strictly before b (wrap-safe a < b).
func Before(a, b Timestamp) bool {
	return Compare(a, b) < 0
}

// AtMost reports whether a is before or equal to b (wrap-safe a <= b). This
// is the eligibility test of the engine: an entity is eligible exactly when
// its start AtMost the service tree's vtime.
func AtMost(a, b Timestamp) bool {
	return !After(a, b)
}

// Delta maps a quantity of service into the virtual-time domain:
// delta = (service << Shift) / weight, computed with a 128-bit intermediate
// so that services and weights near the top of their ranges never overflow
// the shift. weight must be non-zero; a zero weight is a caller bug and
// panics rather than silently dividing by zero.
func Delta(service uint64, weight uint64) Timestamp {
	if weight == 0 {
		panic("vtime: Delta called with zero weight")
	}
	hi, lo := bits.Mul64(service, 1<<Shift)
	if hi >= weight {
		// The quotient would not fit in 64 bits; this can only happen
		// with a pathological (near-zero) weight, which the caller is
		// responsible for clamping to MinWeight before reaching here.
		panic("vtime: Delta overflow, weight too small for service")
	}
	q, _ := bits.Div64(hi, lo, weight)
	return Timestamp(q)
}
