// Package buf contains overflow-safe arithmetic and bounds helpers for
// address and length calculations.
package buf

// MaxAddr is the largest representable address.
const MaxAddr = ^uintptr(0)

// AddOverflowSafe adds a and b, returning ok = false when the result would
// overflow uintptr.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a > MaxAddr-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result
// would overflow uintptr.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > MaxAddr/b {
		return 0, false
	}
	return a * b, true
}

// RangeEnd returns start+n, or ok = false if the sum overflows.
func RangeEnd(start, n uintptr) (uintptr, bool) {
	return AddOverflowSafe(start, n)
}

// Within reports whether [addr, addr+n) lies entirely inside [lo, hi).
func Within(addr, n, lo, hi uintptr) bool {
	if addr < lo {
		return false
	}
	end, ok := AddOverflowSafe(addr, n)
	return ok && end <= hi
}

// Overlaps reports whether the half-open ranges [a, a+an) and [b, b+bn) intersect.
// Empty ranges never overlap.
func Overlaps(a, an, b, bn uintptr) bool {
	if an == 0 || bn == 0 {
		return false
	}
	return a < b+bn && b < a+an
}
