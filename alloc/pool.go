package alloc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/mem"
)

// PoolStats reports per-class counters of a PooledAllocator.
type PoolStats struct {
	Size      uintptr // class size
	Slots     int     // slots reserved for the class
	Requests  int     // Alloc() calls whose size matched the class
	Hits      int     // requests served from the class
	Fallbacks int     // requests passed to the general allocator because the class was full
	Frees     int     // slots returned to the class
	Live      int     // slots currently checked out
}

// sizePool is one segregated size class: a region of its own managed by a
// private ListAllocator whose every block is exactly one slot.
type sizePool struct {
	class  PoolClass
	region *mem.Region
	list   *ListAllocator
	stats  PoolStats
}

// PooledAllocator puts an O(1) fast path for a fixed catalog of hot sizes in
// front of a general ByteAllocator.
//
// A request whose max(size, align), rounded up to a word, equals a catalog
// size is served from that class's region. Each class is a real free list,
// so concurrent live allocations of one size get distinct slots. When a class
// is exhausted the request falls back to the general allocator.
type PooledAllocator struct {
	sp      *mem.Space
	general ByteAllocator
	config  PoolConfig

	pools  []*sizePool
	bySize map[uintptr]*sizePool // class size -> pool
	byBase map[uintptr]*sizePool // region base -> pool
}

// NewPooled creates a PooledAllocator in front of general.
//
// Parameters:
//   - sp: the address space class regions are reserved in
//   - general: the allocator for every other request (typically a ListAllocator)
//   - config: hot-size catalog (use nil for DefaultPoolConfig)
//
// Class regions are reserved immediately and owned by the returned
// allocator; Close releases them.
func NewPooled(sp *mem.Space, general ByteAllocator, config *PoolConfig) (*PooledAllocator, error) {
	if config == nil {
		config = &DefaultPoolConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pa := &PooledAllocator{
		sp:      sp,
		general: general,
		config:  *config,
		bySize:  make(map[uintptr]*sizePool, len(config.Classes)),
		byBase:  make(map[uintptr]*sizePool, len(config.Classes)),
	}
	for _, pc := range config.Classes {
		r, err := sp.Reserve(pc.regionSize(), config.Backing)
		if err != nil {
			_ = pa.Close()
			return nil, fmt.Errorf("reserve pool %d: %w", pc.Size, err)
		}
		p := &sizePool{
			class:  pc,
			region: r,
			list:   NewList(sp),
			stats:  PoolStats{Size: pc.Size, Slots: pc.Slots},
		}
		if err := p.list.Init(r.Base(), r.Size()); err != nil {
			_ = pa.Close()
			return nil, fmt.Errorf("init pool %d: %w", pc.Size, err)
		}
		pa.pools = append(pa.pools, p)
		pa.bySize[pc.Size] = p
		pa.byBase[r.Base()] = p
	}
	return pa, nil
}

// Init initializes the general allocator over [start, start+size) and
// empties every class.
func (pa *PooledAllocator) Init(start, size uintptr) error {
	for _, p := range pa.pools {
		if err := p.list.Init(p.region.Base(), p.region.Size()); err != nil {
			return err
		}
		p.stats.Live = 0
	}
	return pa.general.Init(start, size)
}

// AddMemory extends the general allocator.
func (pa *PooledAllocator) AddMemory(start, size uintptr) error {
	return pa.general.AddMemory(start, size)
}

// Alloc dispatches catalog sizes to their class and everything else to the
// general allocator.
func (pa *PooledAllocator) Alloc(size, align uintptr) (uintptr, error) {
	required, err := requiredSize(size, align)
	if err != nil {
		return 0, err
	}

	if p, ok := pa.bySize[required]; ok {
		p.stats.Requests++
		addr, err := p.list.Alloc(p.class.Size, format.WordSize)
		if err == nil {
			p.stats.Hits++
			p.stats.Live++
			return addr, nil
		}
		if !errors.Is(err, ErrOutOfMemory) {
			return 0, err
		}
		p.stats.Fallbacks++
		debugLog("alloc: pool exhausted, falling back", "size", p.class.Size, "slots", p.class.Slots)
	}
	return pa.general.Alloc(size, align)
}

// Dealloc returns slots to their class and everything else to the general
// allocator.
func (pa *PooledAllocator) Dealloc(addr, size, align uintptr) error {
	if p := pa.poolFor(addr); p != nil {
		if err := p.list.Dealloc(addr, p.class.Size, format.WordSize); err != nil {
			return err
		}
		p.stats.Frees++
		p.stats.Live--
		return nil
	}
	return pa.general.Dealloc(addr, size, align)
}

// TotalBytes returns general plus class memory.
func (pa *PooledAllocator) TotalBytes() uintptr {
	total := pa.general.TotalBytes()
	for _, p := range pa.pools {
		total += p.list.TotalBytes()
	}
	return total
}

// UsedBytes returns general plus class usage.
func (pa *PooledAllocator) UsedBytes() uintptr {
	used := pa.general.UsedBytes()
	for _, p := range pa.pools {
		used += p.list.UsedBytes()
	}
	return used
}

// AvailableBytes returns TotalBytes() - UsedBytes().
func (pa *PooledAllocator) AvailableBytes() uintptr {
	return pa.TotalBytes() - pa.UsedBytes()
}

// General returns the allocator behind the fast path.
func (pa *PooledAllocator) General() ByteAllocator { return pa.general }

// Config returns the catalog the allocator was built with.
func (pa *PooledAllocator) Config() PoolConfig { return pa.config }

// PoolStats returns per-class counters in catalog order.
func (pa *PooledAllocator) PoolStats() []PoolStats {
	out := make([]PoolStats, 0, len(pa.pools))
	for _, p := range pa.pools {
		out = append(out, p.stats)
	}
	return out
}

// Validate checks every class free list.
func (pa *PooledAllocator) Validate() error {
	for _, p := range pa.pools {
		if err := p.list.Validate(); err != nil {
			return fmt.Errorf("pool %d: %w", p.class.Size, err)
		}
	}
	if v, ok := pa.general.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// Close unmaps the class regions. The allocator must not be used afterwards.
func (pa *PooledAllocator) Close() error {
	var errs []error
	for _, p := range pa.pools {
		if err := pa.sp.Unmap(p.region); err != nil {
			errs = append(errs, err)
		}
	}
	pa.pools = nil
	clear(pa.bySize)
	clear(pa.byBase)
	return errors.Join(errs...)
}

// poolFor returns the class whose region contains addr.
func (pa *PooledAllocator) poolFor(addr uintptr) *sizePool {
	r, ok := pa.sp.Find(addr)
	if !ok {
		return nil
	}
	return pa.byBase[r.Base()]
}

// Compile-time interface check
var _ ByteAllocator = (*PooledAllocator)(nil)
