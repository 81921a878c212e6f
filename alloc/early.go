package alloc

import (
	"fmt"

	"github.com/joshuapare/kalloc/internal/buf"
	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/mem"
)

// pageRun records one AllocPages call so DeallocPages can restore the page
// cursor exactly, alignment gap included.
type pageRun struct {
	base      uintptr
	prevRight uintptr
}

// EarlyAllocator is the boot-time allocator. It serves bytes from the low
// end of one region and pages from the high end:
//
//	start                left            right                  end
//	|  byte blocks  ---> |   wilderness   | <---  page runs      |
//
// Byte blocks are carved at the left cursor; freed blocks are recycled
// through a free list and the cursor rewinds when the most recently carved
// blocks are freed. Page runs follow stack discipline: only the run at the
// right cursor can be returned.
//
// Invariant: left <= right. Byte and page memory never overlap.
type EarlyAllocator struct {
	sp       *mem.Space
	pageSize uintptr

	start uintptr
	end   uintptr
	left  uintptr
	right uintptr

	// extra holds AddMemory regions. They only serve byte allocations.
	extra []span

	totalSize uintptr
	byteUsed  uintptr
	pageUsed  uintptr

	free freeList
	runs []pageRun

	stats Stats
}

// NewEarly creates an EarlyAllocator over memory in sp.
// A zero pageSize selects format.DefaultPageSize. Call Init before use.
func NewEarly(sp *mem.Space, pageSize uintptr) (*EarlyAllocator, error) {
	if pageSize == 0 {
		pageSize = format.DefaultPageSize
	}
	if !format.IsPow2(pageSize) {
		return nil, fmt.Errorf("%w: page size %d", ErrInvalidParameter, pageSize)
	}
	ea := &EarlyAllocator{sp: sp, pageSize: pageSize}
	ea.free = freeList{sp: sp, stats: &ea.stats}
	return ea, nil
}

// Init adopts [start, start+size) and resets both cursors to its ends.
func (ea *EarlyAllocator) Init(start, size uintptr) error {
	s, err := checkRange(start, size)
	if err != nil {
		return fmt.Errorf("%w: [%#x, +%d)", err, start, size)
	}
	if !ea.sp.Contains(start, size) {
		return fmt.Errorf("%w: [%#x, %#x) not mapped", ErrBadRange, s.start, s.end)
	}

	ea.start, ea.end = s.start, s.end
	ea.left, ea.right = s.start, s.end
	ea.extra = ea.extra[:0]
	ea.totalSize = size
	ea.byteUsed = 0
	ea.pageUsed = 0
	ea.free.reset()
	ea.runs = ea.runs[:0]
	return nil
}

// AddMemory adds [start, start+size) to the byte side as one free block.
// The range must not overlap the Init region or earlier additions.
func (ea *EarlyAllocator) AddMemory(start, size uintptr) error {
	s, err := checkRange(start, size)
	if err != nil {
		return fmt.Errorf("%w: [%#x, +%d)", err, start, size)
	}
	if !ea.sp.Contains(start, size) {
		return fmt.Errorf("%w: [%#x, %#x) not mapped", ErrBadRange, s.start, s.end)
	}
	if s.overlaps(span{start: ea.start, end: ea.end}) {
		return fmt.Errorf("%w: [%#x, %#x) overlaps the boot region", ErrBadRange, s.start, s.end)
	}
	for _, o := range ea.extra {
		if o.overlaps(s) {
			return fmt.Errorf("%w: [%#x, %#x) overlaps owned [%#x, %#x)", ErrBadRange, s.start, s.end, o.start, o.end)
		}
	}

	if err := ea.free.push(start, size-HeaderSize); err != nil {
		return err
	}
	ea.extra = append(ea.extra, s)
	ea.totalSize += size
	debugLog("early: add memory", "start", start, "size", size, "total", ea.totalSize)
	return ea.free.coalesce()
}

// Alloc returns max(size, align) bytes rounded up to a word, taken from a
// recycled block when one fits and carved at the byte cursor otherwise.
func (ea *EarlyAllocator) Alloc(size, align uintptr) (uintptr, error) {
	ea.stats.AllocCalls++

	required, err := requiredSize(size, align)
	if err != nil {
		ea.stats.FailedAllocs++
		return 0, err
	}

	b, ok, err := ea.free.take(required)
	if err != nil {
		ea.stats.FailedAllocs++
		return 0, err
	}
	if ok {
		ea.byteUsed += HeaderSize + b.size
		ea.stats.BytesAllocated += uint64(HeaderSize + b.size)
		return b.payload(), nil
	}

	// The cursors may never meet.
	need := HeaderSize + required
	if ea.right-ea.left <= need {
		ea.stats.FailedAllocs++
		debugLog("early: out of memory", "need", need, "left", ea.left, "right", ea.right)
		return 0, ErrOutOfMemory
	}
	b = block{addr: ea.left, size: required, next: format.NilBlock}
	if err := ea.free.store(b); err != nil {
		ea.stats.FailedAllocs++
		return 0, err
	}
	ea.left += need
	ea.byteUsed += need
	ea.stats.BumpAllocs++
	ea.stats.BytesAllocated += uint64(need)
	return b.payload(), nil
}

// Dealloc returns a byte block. Freeing the block that ends at the byte
// cursor rewinds the cursor, together with any free blocks that then end at
// it. Other blocks are pushed to the free list and coalesced.
func (ea *EarlyAllocator) Dealloc(addr, size, align uintptr) error {
	ea.stats.FreeCalls++

	required, err := requiredSize(size, align)
	if err != nil {
		return err
	}
	if addr < HeaderSize {
		return fmt.Errorf("%w: %#x", ErrBadAddress, addr)
	}
	hdr := addr - HeaderSize
	owner, ok := contiguous(ea.byteSpans(), hdr, HeaderSize)
	if !ok {
		return fmt.Errorf("%w: %#x", ErrBadAddress, addr)
	}

	extent, err := recordedExtent(&ea.free, hdr, required, owner)
	if err != nil {
		return err
	}
	if dup, err := ea.free.overlapping(hdr, HeaderSize+extent); err != nil {
		return err
	} else if dup {
		debugLog("early: double free", "addr", addr, "extent", extent)
		return fmt.Errorf("%w: %#x", ErrDoubleFree, addr)
	}

	ea.byteUsed -= min(ea.byteUsed, HeaderSize+extent)
	ea.stats.BytesFreed += uint64(HeaderSize + extent)

	if hdr >= ea.start && hdr+HeaderSize+extent == ea.left {
		ea.left = hdr
		ea.stats.Rewinds++
		return ea.rewind()
	}
	if err := ea.free.push(hdr, extent); err != nil {
		return err
	}
	return ea.free.coalesce()
}

// rewind pulls free blocks that end at the byte cursor back into the
// wilderness.
func (ea *EarlyAllocator) rewind() error {
	for {
		b, ok, err := ea.free.endingAt(ea.left, ea.start)
		if err != nil || !ok {
			return err
		}
		if _, err := ea.free.remove(b.addr); err != nil {
			return err
		}
		ea.left = b.addr
		ea.stats.Rewinds++
	}
}

// AllocPages returns the base of count pages carved below the page cursor,
// aligned down to align.
func (ea *EarlyAllocator) AllocPages(count, align uintptr) (uintptr, error) {
	if count == 0 || align == 0 || align%ea.pageSize != 0 || !format.IsPow2(align/ea.pageSize) {
		return 0, fmt.Errorf("%w: %d pages aligned to %d", ErrInvalidParameter, count, align)
	}
	size, ok := buf.MulOverflowSafe(count, ea.pageSize)
	if !ok || size >= ea.right-ea.left {
		debugLog("early: out of pages", "count", count, "left", ea.left, "right", ea.right)
		return 0, ErrOutOfMemory
	}
	base := format.AlignDown(ea.right-size, align)
	if base <= ea.left {
		debugLog("early: out of pages", "count", count, "align", align, "left", ea.left, "right", ea.right)
		return 0, ErrOutOfMemory
	}

	ea.runs = append(ea.runs, pageRun{base: base, prevRight: ea.right})
	ea.pageUsed += ea.right - base
	ea.right = base
	ea.stats.PageAllocs++
	return base, nil
}

// DeallocPages returns the most recent page run. Any other address is
// ignored: pages below the top of the stack cannot be reclaimed.
func (ea *EarlyAllocator) DeallocPages(addr, count uintptr) {
	if len(ea.runs) == 0 || addr != ea.right {
		ea.stats.IgnoredFrees++
		debugLog("early: ignored page free", "addr", addr, "count", count, "right", ea.right)
		return
	}
	top := ea.runs[len(ea.runs)-1]
	ea.runs = ea.runs[:len(ea.runs)-1]
	ea.pageUsed -= top.prevRight - top.base
	ea.right = top.prevRight
	ea.stats.PageFrees++
}

// TotalBytes returns the boot region plus every AddMemory region.
func (ea *EarlyAllocator) TotalBytes() uintptr { return ea.totalSize }

// UsedBytes returns checked-out byte blocks plus page runs.
func (ea *EarlyAllocator) UsedBytes() uintptr { return ea.byteUsed + ea.pageUsed }

// AvailableBytes returns TotalBytes() - UsedBytes().
func (ea *EarlyAllocator) AvailableBytes() uintptr { return ea.totalSize - ea.UsedBytes() }

// PageSize returns the page size in bytes.
func (ea *EarlyAllocator) PageSize() uintptr { return ea.pageSize }

// TotalPages returns the pages in the boot region.
func (ea *EarlyAllocator) TotalPages() uintptr { return (ea.end - ea.start) / ea.pageSize }

// UsedPages returns the pages held by page runs, alignment gaps included.
func (ea *EarlyAllocator) UsedPages() uintptr { return ea.pageUsed / ea.pageSize }

// AvailablePages returns the whole pages between the cursors.
func (ea *EarlyAllocator) AvailablePages() uintptr { return (ea.right - ea.left) / ea.pageSize }

// Cursors returns the byte and page cursors.
func (ea *EarlyAllocator) Cursors() (left, right uintptr) { return ea.left, ea.right }

// Stats returns a copy of the allocator statistics.
func (ea *EarlyAllocator) Stats() Stats { return ea.stats }

// FreeBlocks returns the recycled byte blocks in list order.
func (ea *EarlyAllocator) FreeBlocks() ([]FreeBlock, error) { return ea.free.blocks() }

// Validate checks the cursor invariant and the byte-side free list.
func (ea *EarlyAllocator) Validate() error {
	if ea.left < ea.start || ea.left > ea.right || ea.right > ea.end {
		return fmt.Errorf("%w: cursors %#x/%#x outside [%#x, %#x]", ErrCorrupt, ea.left, ea.right, ea.start, ea.end)
	}
	if ea.right != ea.end && len(ea.runs) == 0 {
		return fmt.Errorf("%w: page cursor %#x with no runs", ErrCorrupt, ea.right)
	}
	var extra uintptr
	for _, s := range ea.extra {
		extra += s.end - s.start
	}
	return validateFree(&ea.free, ea.byteSpans(), ea.left-ea.start+extra-ea.byteUsed)
}

// byteSpans returns the memory byte blocks can occupy: the carved part of
// the boot region and every AddMemory region.
func (ea *EarlyAllocator) byteSpans() []span {
	spans := make([]span, 0, len(ea.extra)+1)
	if ea.left > ea.start {
		spans = append(spans, span{start: ea.start, end: ea.left})
	}
	return append(spans, ea.extra...)
}

// Compile-time interface checks
var (
	_ ByteAllocator = (*EarlyAllocator)(nil)
	_ PageAllocator = (*EarlyAllocator)(nil)
)
