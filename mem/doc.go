// Package mem models physical memory for the allocators.
//
// # Overview
//
// A Space is an address space made of Regions. Each Region is a byte window
// mapped at a fixed, non-zero base address and backed either by Go heap
// memory or by an anonymous mmap mapping (see internal/mmfile). Allocator
// metadata lives inside these bytes, exactly as it would inside raw kernel
// memory, but every access goes through the Space and is bounds-checked
// against the owning Region, so a bad address yields ErrUnmapped instead of
// silently corrupting unrelated memory.
//
// # Usage Example
//
//	sp := mem.NewSpace(0)
//	defer sp.Close()
//
//	r, err := sp.Reserve(1<<20, mem.BackingAnon)
//	if err != nil {
//	    return err
//	}
//
//	la := alloc.NewList(sp)
//	if err := la.Init(r.Base(), r.Size()); err != nil {
//	    return err
//	}
//
// # Address Layout
//
// Reserve hands out page-aligned bases in increasing order starting at the
// Space base (DefaultBase unless overridden) and leaves one unmapped guard
// page after every reservation, so reserved regions are never
// address-adjacent. Map places a region at an explicit base, which is how
// callers build adjacent regions on purpose.
//
// # Thread Safety
//
// Space is not thread-safe. It is owned by whoever owns the allocators that
// use it; see alloc.Locked for the integration-boundary wrapper.
package mem
