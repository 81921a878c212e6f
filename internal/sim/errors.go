package sim

import "errors"

var (
	// ErrUnknownID indicates a free of an id that was never allocated or
	// was already freed.
	ErrUnknownID = errors.New("sim: unknown id")

	// ErrDuplicateID indicates an alloc reusing an id that is still live.
	ErrDuplicateID = errors.New("sim: id already live")

	// ErrNoPages indicates a page operation on a machine without a page
	// allocator.
	ErrNoPages = errors.New("sim: machine has no page allocator")

	// ErrOverlap indicates an allocator returned memory overlapping a live
	// allocation.
	ErrOverlap = errors.New("sim: allocation overlaps live memory")

	// ErrClobbered indicates a live allocation's contents changed before it
	// was freed.
	ErrClobbered = errors.New("sim: allocation contents clobbered")

	// ErrInvariant indicates the allocator failed validation or accounting.
	ErrInvariant = errors.New("sim: allocator invariant violated")
)
