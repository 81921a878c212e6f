package mem

import "errors"

var (
	// ErrUnmapped indicates an access to an address range not covered by any region.
	ErrUnmapped = errors.New("mem: address range not mapped")

	// ErrOverlap indicates an attempt to map a region overlapping an existing one.
	ErrOverlap = errors.New("mem: region overlaps an existing mapping")

	// ErrBadSize indicates a zero, oversized, or overflowing region size.
	ErrBadSize = errors.New("mem: bad region size")

	// ErrReserved indicates an attempt to map the reserved zero page.
	ErrReserved = errors.New("mem: address range overlaps the reserved zero page")

	// ErrBadBacking indicates an unknown backing kind.
	ErrBadBacking = errors.New("mem: unknown backing")
)
