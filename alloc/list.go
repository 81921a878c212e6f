package alloc

import (
	"fmt"

	"github.com/joshuapare/kalloc/internal/buf"
	"github.com/joshuapare/kalloc/mem"
)

// ListAllocator is the general-purpose byte allocator: a first-fit scan over
// an intrusive free list, splitting blocks on allocation and merging list
// neighbours on deallocation.
//
// Every block, free or allocated, starts with a HeaderSize header. The
// address returned by Alloc is the first byte after it.
type ListAllocator struct {
	sp *mem.Space

	// owned holds the Init region followed by every AddMemory region.
	owned []span

	totalSize uintptr
	usedSize  uintptr

	free  freeList
	stats Stats
}

// NewList creates a ListAllocator over memory in sp. Call Init before use.
func NewList(sp *mem.Space) *ListAllocator {
	la := &ListAllocator{sp: sp}
	la.free = freeList{sp: sp, stats: &la.stats}
	return la
}

// Init adopts [start, start+size) as the sole region and installs a single
// free block spanning it. Any prior state is discarded.
func (la *ListAllocator) Init(start, size uintptr) error {
	s, err := la.checkMapped(start, size)
	if err != nil {
		return err
	}

	la.free.reset()
	la.owned = la.owned[:0]
	la.totalSize = 0
	la.usedSize = 0

	if err := la.free.push(start, size-HeaderSize); err != nil {
		return err
	}
	la.owned = append(la.owned, s)
	la.totalSize = size
	return nil
}

// AddMemory pushes [start, start+size) onto the free list as one block and
// runs a coalescing pass. Only address-adjacent list neighbours merge.
func (la *ListAllocator) AddMemory(start, size uintptr) error {
	s, err := la.checkMapped(start, size)
	if err != nil {
		return err
	}
	for _, o := range la.owned {
		if o.overlaps(s) {
			return fmt.Errorf("%w: [%#x, %#x) overlaps owned [%#x, %#x)", ErrBadRange, s.start, s.end, o.start, o.end)
		}
	}

	if err := la.free.push(start, size-HeaderSize); err != nil {
		return err
	}
	la.owned = append(la.owned, s)
	la.totalSize += size
	debugLog("alloc: add memory", "start", start, "size", size, "total", la.totalSize)
	return la.free.coalesce()
}

// Alloc returns the payload address of the first free block that can hold
// max(size, align) bytes rounded up to a word.
func (la *ListAllocator) Alloc(size, align uintptr) (uintptr, error) {
	la.stats.AllocCalls++

	required, err := requiredSize(size, align)
	if err != nil {
		la.stats.FailedAllocs++
		return 0, err
	}

	b, ok, err := la.free.take(required)
	if err != nil {
		la.stats.FailedAllocs++
		return 0, err
	}
	if !ok {
		la.stats.FailedAllocs++
		debugLog("alloc: out of memory", "need", required, "available", la.AvailableBytes(), "freeBlocks", la.free.count)
		return 0, ErrOutOfMemory
	}

	la.usedSize += HeaderSize + b.size
	la.stats.BytesAllocated += uint64(HeaderSize + b.size)
	return b.payload(), nil
}

// Dealloc rebuilds the header in front of addr, pushes the block to the head
// of the free list and runs a coalescing pass.
//
// The extent recorded in the header at Alloc time is used when it covers
// max(size, align); otherwise the caller's size is trusted.
func (la *ListAllocator) Dealloc(addr, size, align uintptr) error {
	la.stats.FreeCalls++

	required, err := requiredSize(size, align)
	if err != nil {
		return err
	}
	hdr, owner, err := la.headerOf(addr)
	if err != nil {
		return err
	}

	extent, err := recordedExtent(&la.free, hdr, required, owner)
	if err != nil {
		return err
	}
	if dup, err := la.free.overlapping(hdr, HeaderSize+extent); err != nil {
		return err
	} else if dup {
		debugLog("alloc: double free", "addr", addr, "extent", extent)
		return fmt.Errorf("%w: %#x", ErrDoubleFree, addr)
	}

	if err := la.free.push(hdr, extent); err != nil {
		return err
	}
	la.usedSize -= min(la.usedSize, HeaderSize+extent)
	la.stats.BytesFreed += uint64(HeaderSize + extent)
	return la.free.coalesce()
}

// TotalBytes returns the size of every region adopted by Init and AddMemory.
func (la *ListAllocator) TotalBytes() uintptr { return la.totalSize }

// UsedBytes returns header plus extent of every allocated block.
func (la *ListAllocator) UsedBytes() uintptr { return la.usedSize }

// AvailableBytes returns TotalBytes() - UsedBytes().
func (la *ListAllocator) AvailableBytes() uintptr { return la.totalSize - la.usedSize }

// Stats returns a copy of the allocator statistics.
func (la *ListAllocator) Stats() Stats { return la.stats }

// FreeBlocks returns the free list in list order.
func (la *ListAllocator) FreeBlocks() ([]FreeBlock, error) { return la.free.blocks() }

// Validate walks the free list and checks its structural invariants.
func (la *ListAllocator) Validate() error {
	return validateFree(&la.free, la.owned, la.totalSize-la.usedSize)
}

func (la *ListAllocator) checkMapped(start, size uintptr) (span, error) {
	s, err := checkRange(start, size)
	if err != nil {
		return span{}, fmt.Errorf("%w: [%#x, +%d)", err, start, size)
	}
	if !la.sp.Contains(start, size) {
		return span{}, fmt.Errorf("%w: [%#x, %#x) not mapped", ErrBadRange, s.start, s.end)
	}
	return s, nil
}

// headerOf returns the header address for payload addr and the contiguous
// owned memory containing it.
func (la *ListAllocator) headerOf(addr uintptr) (uintptr, span, error) {
	if addr < HeaderSize {
		return 0, span{}, fmt.Errorf("%w: %#x", ErrBadAddress, addr)
	}
	hdr := addr - HeaderSize
	owner, ok := contiguous(la.owned, hdr, HeaderSize)
	if !ok {
		return 0, span{}, fmt.Errorf("%w: %#x", ErrBadAddress, addr)
	}
	return hdr, owner, nil
}

// recordedExtent returns the extent to free for the block whose header is
// at hdr: the size recorded at Alloc time when it is plausible, otherwise
// required. The result always fits inside owner.
func recordedExtent(l *freeList, hdr, required uintptr, owner span) (uintptr, error) {
	b, err := l.load(hdr)
	if err != nil {
		return 0, err
	}
	extent := required
	if b.size >= required && owner.contains(hdr, HeaderSize+b.size) {
		extent = b.size
	}
	if !owner.contains(hdr, HeaderSize+extent) {
		return 0, fmt.Errorf("%w: %#x extends past [%#x, %#x)", ErrBadAddress, hdr+HeaderSize, owner.start, owner.end)
	}
	return extent, nil
}

// validateFree checks that every free block lies inside an owned span, that
// no two free blocks overlap, and that header-inclusive free bytes equal
// wantFree.
func validateFree(l *freeList, owned []span, wantFree uintptr) error {
	blocks, err := l.blocks()
	if err != nil {
		return err
	}
	if len(blocks) != l.count {
		return fmt.Errorf("%w: walked %d blocks, count is %d", ErrCorrupt, len(blocks), l.count)
	}

	var total uintptr
	for i, b := range blocks {
		inside := false
		for _, o := range owned {
			// Coalescing may merge blocks across address-adjacent spans.
			if b.Addr >= o.start && b.Addr < o.end {
				inside = true
				break
			}
		}
		if !inside {
			return fmt.Errorf("%w: block %#x outside owned memory", ErrCorrupt, b.Addr)
		}
		for _, other := range blocks[i+1:] {
			if buf.Overlaps(b.Addr, HeaderSize+b.Size, other.Addr, HeaderSize+other.Size) {
				return fmt.Errorf("%w: blocks %#x and %#x overlap", ErrCorrupt, b.Addr, other.Addr)
			}
		}
		total += HeaderSize + b.Size
	}
	if total != wantFree {
		return fmt.Errorf("%w: free bytes %d, accounting expects %d", ErrCorrupt, total, wantFree)
	}
	return nil
}

// Compile-time interface check
var _ ByteAllocator = (*ListAllocator)(nil)
