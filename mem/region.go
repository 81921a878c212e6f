package mem

import (
	"fmt"
	"strings"

	"github.com/joshuapare/kalloc/internal/buf"
)

// Backing selects where a region's bytes come from.
type Backing uint8

const (
	// BackingHeap backs the region with a Go byte slice.
	BackingHeap Backing = iota
	// BackingAnon backs the region with an anonymous mmap mapping where the
	// platform supports it, falling back to the Go heap elsewhere.
	BackingAnon
)

// String returns the configuration name of the backing.
func (b Backing) String() string {
	switch b {
	case BackingHeap:
		return "heap"
	case BackingAnon:
		return "anon"
	default:
		return fmt.Sprintf("Backing(%d)", uint8(b))
	}
}

// ParseBacking parses a backing name as used in machine profiles.
func ParseBacking(s string) (Backing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "heap":
		return BackingHeap, nil
	case "anon", "mmap":
		return BackingAnon, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadBacking, s)
	}
}

// Region is a contiguous byte window mapped at [Base, End).
type Region struct {
	base    uintptr
	data    []byte
	backing Backing
	release func() error
}

// Base returns the first address of the region.
func (r *Region) Base() uintptr { return r.base }

// Size returns the region length in bytes.
func (r *Region) Size() uintptr { return uintptr(len(r.data)) }

// End returns the first address past the region.
func (r *Region) End() uintptr { return r.base + uintptr(len(r.data)) }

// Backing reports how the region's bytes are provided.
func (r *Region) Backing() Backing { return r.backing }

// Bytes returns the region's backing bytes. Index 0 corresponds to Base.
func (r *Region) Bytes() []byte { return r.data }

// Contains reports whether [addr, addr+n) lies entirely inside the region.
func (r *Region) Contains(addr, n uintptr) bool {
	return buf.Within(addr, n, r.base, r.End())
}

// slice returns the bytes backing [addr, addr+n). The range must be inside r.
func (r *Region) slice(addr, n uintptr) []byte {
	off := addr - r.base
	return r.data[off : off+n]
}

func (r *Region) String() string {
	return fmt.Sprintf("[%#x, %#x) %s", r.base, r.End(), r.backing)
}
