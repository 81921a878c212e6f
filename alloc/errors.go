package alloc

import "errors"

var (
	// ErrOutOfMemory indicates that no free block is large enough, or that the
	// early allocator's byte and page cursors would cross.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvalidParameter indicates a zero size, an alignment that is not a
	// power of two, or a page alignment that is not a power-of-two multiple
	// of the page size.
	ErrInvalidParameter = errors.New("alloc: invalid parameter")

	// ErrBadRange indicates an Init or AddMemory range that is too small,
	// not mapped, or overlaps memory the allocator already owns.
	ErrBadRange = errors.New("alloc: bad memory range")

	// ErrBadAddress indicates a Dealloc address outside the memory the
	// allocator hands out.
	ErrBadAddress = errors.New("alloc: bad address")

	// ErrDoubleFree indicates a Dealloc of memory that is already free.
	ErrDoubleFree = errors.New("alloc: block already free")

	// ErrCorrupt indicates the free list references unmapped memory or loops.
	ErrCorrupt = errors.New("alloc: free list corrupt")
)
