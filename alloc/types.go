package alloc

import (
	"github.com/joshuapare/kalloc/internal/buf"
	"github.com/joshuapare/kalloc/internal/format"
)

// HeaderSize is the per-block overhead in bytes.
const HeaderSize = format.HeaderSize

// Stats holds allocator statistics for testing and instrumentation.
type Stats struct {
	AllocCalls     int    // Total Alloc() calls
	FreeCalls      int    // Total Dealloc() calls
	FailedAllocs   int    // Alloc() calls that returned an error
	SplitCount     int    // Number of block splits
	CoalesceCount  int    // Number of block merges
	BumpAllocs     int    // Early allocator: allocations carved at the byte cursor
	Rewinds        int    // Early allocator: byte cursor rewinds
	PageAllocs     int    // Early allocator: successful AllocPages() calls
	PageFrees      int    // Early allocator: DeallocPages() calls that took effect
	IgnoredFrees   int    // Early allocator: DeallocPages() calls that were ignored
	BytesAllocated uint64 // Total bytes allocated (including headers)
	BytesFreed     uint64 // Total bytes freed (including headers)
}

// FreeBlock describes one free-list entry.
type FreeBlock struct {
	Addr uintptr // header address
	Size uintptr // usable bytes after the header
}

// End returns the first address past the block.
func (b FreeBlock) End() uintptr { return b.Addr + HeaderSize + b.Size }

// span is a half-open address range [start, end).
type span struct {
	start uintptr
	end   uintptr
}

func (s span) contains(addr, n uintptr) bool {
	return buf.Within(addr, n, s.start, s.end)
}

func (s span) overlaps(o span) bool {
	return buf.Overlaps(s.start, s.end-s.start, o.start, o.end-o.start)
}

// requiredSize collapses a size/alignment request into one word-aligned
// block extent: max(size, align) rounded up to a word.
func requiredSize(size, align uintptr) (uintptr, error) {
	if size == 0 || !format.IsPow2(align) {
		return 0, ErrInvalidParameter
	}
	r := max(size, align)
	if r > buf.MaxAddr-format.WordSize {
		return 0, ErrInvalidParameter
	}
	return format.AlignWord(r), nil
}

// checkRange validates an Init/AddMemory range and returns it as a span.
func checkRange(start, size uintptr) (span, error) {
	if size <= HeaderSize {
		return span{}, ErrBadRange
	}
	end, ok := buf.RangeEnd(start, size)
	if !ok {
		return span{}, ErrBadRange
	}
	return span{start: start, end: end}, nil
}

// contiguous returns the largest union of address-adjacent spans in owned
// that contains [addr, addr+n). Coalescing can merge blocks across such
// spans, so ownership checks use the union rather than a single span.
func contiguous(owned []span, addr, n uintptr) (span, bool) {
	var u span
	found := false
	for _, o := range owned {
		if o.contains(addr, 1) {
			u, found = o, true
			break
		}
	}
	if !found {
		return span{}, false
	}
	for grew := true; grew; {
		grew = false
		for _, o := range owned {
			if o.start == u.end {
				u.end, grew = o.end, true
			}
			if o.end == u.start {
				u.start, grew = o.start, true
			}
		}
	}
	return u, u.contains(addr, n)
}
