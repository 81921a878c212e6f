package sim

import (
	"cmp"
	"slices"

	"github.com/joshuapare/kalloc/internal/format"
)

// defaultRangeCapacity is the initial capacity of a footprint's range list.
const defaultRangeCapacity = 64

// Range is a byte range [Addr, Addr+Len).
type Range struct {
	Addr uintptr `json:"addr"`
	Len  uintptr `json:"len"`
}

// footprint accumulates every range a replay handed out and reports the
// pages they touched.
//
// NOT thread-safe.
type footprint struct {
	ranges   []Range
	pageSize uintptr
}

func newFootprint(pageSize uintptr) *footprint {
	if pageSize == 0 {
		pageSize = format.DefaultPageSize
	}
	return &footprint{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: pageSize,
	}
}

// add records a range. Ranges are only page-aligned and merged by coalesce.
func (f *footprint) add(addr, length uintptr) {
	if length == 0 {
		return
	}
	f.ranges = append(f.ranges, Range{Addr: addr, Len: length})
}

// coalesce page-aligns all ranges, sorts them and merges overlapping or
// adjacent ones. The result is sorted and non-overlapping.
func (f *footprint) coalesce() []Range {
	if len(f.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(f.ranges))
	for i, r := range f.ranges {
		start := r.Addr / f.pageSize * f.pageSize
		end := r.Addr + r.Len
		if end%f.pageSize != 0 {
			end = (end/f.pageSize + 1) * f.pageSize
		}
		aligned[i] = Range{Addr: start, Len: end - start}
	}

	slices.SortFunc(aligned, func(a, b Range) int { return cmp.Compare(a.Addr, b.Addr) })

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Addr <= current.Addr+current.Len {
			current.Len = max(current.Addr+current.Len, next.Addr+next.Len) - current.Addr
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// pages returns the number of distinct pages touched.
func (f *footprint) pages() uintptr {
	var n uintptr
	for _, r := range f.coalesce() {
		n += r.Len / f.pageSize
	}
	return n
}
