// Package alloc provides the byte and page allocators of a small kernel's
// memory core.
//
// # Overview
//
// Every allocator manages memory in a mem.Space. Allocator metadata (block
// headers and free-list links) is stored in the managed bytes themselves and
// every access is bounds-checked against the region that owns it, so a bad
// address surfaces as an error instead of silent corruption.
//
// # Allocator Interfaces
//
//   - BaseAllocator: Init(start, size) and AddMemory(start, size)
//   - ByteAllocator: Alloc(size, align), Dealloc(addr, size, align) and byte accounting
//   - PageAllocator: AllocPages(count, align), DeallocPages(addr, count) and page accounting
//
// # Implementations
//
// ListAllocator: general-purpose byte allocator
//
//   - First-fit scan over one intrusive free list
//   - Splits blocks when the remainder can hold a header plus data
//   - One forward coalescing pass over list neighbours on every free
//
// PooledAllocator: hot-size fast path
//
//   - Fixed catalog of sizes (PoolConfig), O(1) dispatch by map lookup
//   - One region and one private free list per size, so live allocations
//     never share a slot
//   - Falls back to the general allocator when a class is full
//
// EarlyAllocator: boot-time double-ended allocator
//
//   - Bytes grow forward from the start of the region
//   - Pages grow backward from the end, stack discipline on free
//   - Fails with ErrOutOfMemory before the two cursors cross
//
// # Block Layout
//
// Every block starts with a 16-byte header of two little-endian words:
//
//	+0  size  usable bytes after the header
//	+8  next  address of the next free block (0 terminates)
//
// Alloc returns the address right after the header. The extent handed out is
// max(size, align) rounded up to 8 bytes, so alignments above 8 are not
// guaranteed for the returned address.
//
// # Usage Example
//
//	sp := mem.NewSpace(0)
//	r, err := sp.Reserve(1<<20, mem.BackingHeap)
//	if err != nil {
//	    return err
//	}
//
//	la := alloc.NewList(sp)
//	if err := la.Init(r.Base(), r.Size()); err != nil {
//	    return err
//	}
//
//	addr, err := la.Alloc(256, 8)
//	if err != nil {
//	    return err
//	}
//	defer la.Dealloc(addr, 256, 8)
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Wrap them with Locked or
// LockedPages (NewLockedPair for both sides of an EarlyAllocator) where
// memory is shared between goroutines.
//
// # Debug Logging
//
// Set KALLOC_LOG_ALLOC to any value to print out-of-memory, fallback and
// ignored-free records to stderr.
//
// # Related Packages
//
//   - github.com/joshuapare/kalloc/mem: Address space and regions
//   - github.com/joshuapare/kalloc/internal/format: Header layout and alignment helpers
//   - github.com/joshuapare/kalloc/internal/sim: Trace replay over these allocators
package alloc
