package mem

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/joshuapare/kalloc/internal/buf"
	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/internal/mmfile"
)

// DefaultBase is the first address handed out by Reserve when NewSpace is
// given a zero base.
const DefaultBase uintptr = 0x1000_0000

// Space is an address space of non-overlapping regions.
type Space struct {
	// regions sorted by base for O(log R) lookup
	regions []*Region

	// next is where the following Reserve call starts searching.
	next uintptr
}

// NewSpace creates an empty address space. Reservations start at base,
// rounded up to a page; a zero base selects DefaultBase.
func NewSpace(base uintptr) *Space {
	if base == 0 {
		base = DefaultBase
	}
	return &Space{next: format.AlignPage(base)}
}

// Map maps a new region of size bytes at base.
func (s *Space) Map(base, size uintptr, backing Backing) (*Region, error) {
	if size == 0 || size > math.MaxInt {
		return nil, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	end, ok := buf.RangeEnd(base, size)
	if !ok {
		return nil, fmt.Errorf("%w: [%#x, +%d) overflows", ErrBadSize, base, size)
	}
	if base < format.DefaultPageSize {
		return nil, fmt.Errorf("%w: base %#x", ErrReserved, base)
	}

	i := s.search(base)
	if i > 0 && s.regions[i-1].End() > base {
		return nil, fmt.Errorf("%w: [%#x, %#x) and %s", ErrOverlap, base, end, s.regions[i-1])
	}
	if i < len(s.regions) && s.regions[i].base < end {
		return nil, fmt.Errorf("%w: [%#x, %#x) and %s", ErrOverlap, base, end, s.regions[i])
	}

	r := &Region{base: base, backing: backing}
	switch backing {
	case BackingHeap:
		r.data = make([]byte, size)
		r.release = func() error { return nil }
	case BackingAnon:
		data, release, err := mmfile.Anon(int(size))
		if err != nil {
			return nil, err
		}
		r.data = data
		r.release = release
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadBacking, backing)
	}

	s.regions = append(s.regions, nil)
	copy(s.regions[i+1:], s.regions[i:])
	s.regions[i] = r

	if next := format.AlignPage(end) + format.DefaultPageSize; next > s.next {
		s.next = next
	}
	return r, nil
}

// Reserve maps a region of size bytes at the next free page-aligned base.
// A one-page gap is left after it.
func (s *Space) Reserve(size uintptr, backing Backing) (*Region, error) {
	// next always lies past every mapped region, see Map.
	return s.Map(s.next, size, backing)
}

// Unmap removes r from the space and releases its backing memory.
func (s *Space) Unmap(r *Region) error {
	i := s.search(r.base)
	if i >= len(s.regions) || s.regions[i] != r {
		return fmt.Errorf("%w: %s", ErrUnmapped, r)
	}
	s.regions = append(s.regions[:i], s.regions[i+1:]...)
	err := r.release()
	r.data = nil
	return err
}

// Close unmaps every region.
func (s *Space) Close() error {
	var errs []error
	for _, r := range s.regions {
		if err := r.release(); err != nil {
			errs = append(errs, err)
		}
		r.data = nil
	}
	s.regions = nil
	return errors.Join(errs...)
}

// Regions returns the mapped regions in address order.
func (s *Space) Regions() []*Region {
	out := make([]*Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// Find returns the region containing addr.
func (s *Space) Find(addr uintptr) (*Region, bool) {
	// Binary search for the last region whose base is <= addr.
	i := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].base > addr
	})
	if i == 0 {
		return nil, false
	}
	r := s.regions[i-1]
	if addr >= r.End() {
		return nil, false
	}
	return r, true
}

// Contains reports whether every byte of [addr, addr+n) is mapped.
// The range may span address-adjacent regions.
func (s *Space) Contains(addr, n uintptr) bool {
	return s.Range(addr, n, func([]byte) error { return nil }) == nil
}

// Slice returns the bytes backing [addr, addr+n), which must lie inside a
// single region.
func (s *Space) Slice(addr, n uintptr) ([]byte, error) {
	r, ok := s.Find(addr)
	if !ok || !r.Contains(addr, n) {
		return nil, fmt.Errorf("%w: [%#x, +%d)", ErrUnmapped, addr, n)
	}
	return r.slice(addr, n), nil
}

// Range calls fn for each region-sized chunk of [addr, addr+n) in address
// order. It fails with ErrUnmapped before calling fn when any byte in the
// range is not mapped.
func (s *Space) Range(addr, n uintptr, fn func(chunk []byte) error) error {
	end, ok := buf.RangeEnd(addr, n)
	if !ok {
		return fmt.Errorf("%w: [%#x, +%d) overflows", ErrUnmapped, addr, n)
	}

	var chunks [][]byte
	for cur := addr; cur < end; {
		r, found := s.Find(cur)
		if !found {
			return fmt.Errorf("%w: %#x in [%#x, %#x)", ErrUnmapped, cur, addr, end)
		}
		stop := min(r.End(), end)
		chunks = append(chunks, r.slice(cur, stop-cur))
		cur = stop
	}
	for _, c := range chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Fill sets every byte of [addr, addr+n) to v.
func (s *Space) Fill(addr, n uintptr, v byte) error {
	return s.Range(addr, n, func(chunk []byte) error {
		for i := range chunk {
			chunk[i] = v
		}
		return nil
	})
}

// ReadHeader decodes the block header stored at addr.
func (s *Space) ReadHeader(addr uintptr) (format.Header, error) {
	b, err := s.Slice(addr, format.HeaderSize)
	if err != nil {
		return format.Header{}, err
	}
	return format.DecodeHeader(b)
}

// WriteHeader encodes h at addr.
func (s *Space) WriteHeader(addr uintptr, h format.Header) error {
	b, err := s.Slice(addr, format.HeaderSize)
	if err != nil {
		return err
	}
	return format.EncodeHeader(b, h)
}

// search returns the index of the first region whose base is >= addr.
func (s *Space) search(addr uintptr) int {
	return sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].base >= addr
	})
}
