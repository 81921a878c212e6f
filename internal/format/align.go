package format

// Alignment utilities for block and page arithmetic.
// All helpers assume align is a non-zero power of two; callers validate
// user-supplied alignments with IsPow2 first.

// IsPow2 reports whether n is a non-zero power of two.
func IsPow2(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp returns n rounded up to the next multiple of align.
//
// Example:
//
//	AlignUp(1, 8)  = 8
//	AlignUp(8, 8)  = 8
//	AlignUp(9, 16) = 16
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown returns n rounded down to a multiple of align.
//
// Example:
//
//	AlignDown(4097, 4096) = 4096
//	AlignDown(4095, 4096) = 0
func AlignDown(n, align uintptr) uintptr {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align uintptr) bool {
	return n&(align-1) == 0
}

// AlignWord returns n aligned up to the next word boundary.
// Every carved block extent is word aligned so that headers which follow it
// stay word aligned too.
//
// Example:
//
//	AlignWord(1)   = 8
//	AlignWord(100) = 104
//	AlignWord(104) = 104
func AlignWord(n uintptr) uintptr {
	return (n + WordAlignmentMask) &^ WordAlignmentMask
}

// AlignPage returns n aligned up to the next DefaultPageSize boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n uintptr) uintptr {
	return (n + DefaultPageAlignmentMask) &^ DefaultPageAlignmentMask
}
