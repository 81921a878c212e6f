package alloc

// BaseAllocator is the capability shared by every allocator: adopting memory.
type BaseAllocator interface {
	// Init adopts [start, start+size) as the sole region, discarding any
	// prior state.
	Init(start, size uintptr) error

	// AddMemory adds [start, start+size) to the memory the allocator may
	// hand out. The range need not be adjacent to existing memory.
	AddMemory(start, size uintptr) error
}

// ByteAllocator hands out variable-size byte ranges.
//
// Implementations:
//   - ListAllocator: first-fit free list with splitting and coalescing
//   - PooledAllocator: hot-size fast path in front of another ByteAllocator
//   - EarlyAllocator: byte side of the boot-time double-ended allocator
//   - Locked: mutex wrapper for the integration boundary
type ByteAllocator interface {
	BaseAllocator

	// Alloc returns the address of at least max(size, align) usable bytes.
	Alloc(size, align uintptr) (uintptr, error)

	// Dealloc returns memory obtained from Alloc. size and align must be
	// the values passed to Alloc; a mismatch is not detected.
	Dealloc(addr, size, align uintptr) error

	// TotalBytes returns the bytes of all memory adopted by the allocator.
	TotalBytes() uintptr

	// UsedBytes returns the bytes checked out, block headers included.
	UsedBytes() uintptr

	// AvailableBytes returns TotalBytes() - UsedBytes().
	AvailableBytes() uintptr
}

// PageAllocator hands out runs of fixed-size pages.
type PageAllocator interface {
	BaseAllocator

	// PageSize returns the fixed page size in bytes.
	PageSize() uintptr

	// AllocPages returns the base address of count contiguous pages aligned
	// to align bytes. align must be a power-of-two multiple of PageSize.
	AllocPages(count, align uintptr) (uintptr, error)

	// DeallocPages returns a page run. Implementations may ignore runs they
	// cannot take back.
	DeallocPages(addr, count uintptr)

	// TotalPages returns the number of pages the allocator manages.
	TotalPages() uintptr

	// UsedPages returns the number of pages checked out.
	UsedPages() uintptr

	// AvailablePages returns the number of pages that can still be allocated.
	AvailablePages() uintptr
}
