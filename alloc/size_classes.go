package alloc

import (
	"fmt"
	"slices"

	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/mem"
)

// PoolClass is one entry of the hot-size catalog.
type PoolClass struct {
	Size  uintptr `yaml:"size" json:"size"`   // exact request size served by the class
	Slots int     `yaml:"slots" json:"slots"` // concurrent live allocations the class can hold
}

// regionSize returns the bytes reserved for the class: one header per slot.
func (c PoolClass) regionSize() uintptr {
	return uintptr(c.Slots) * (c.Size + HeaderSize)
}

// PoolConfig defines the hot-size catalog of a PooledAllocator.
// Different configurations can be tested to find the best hit rate per byte
// of reserved memory.
type PoolConfig struct {
	// Name for this configuration (for reports and benchmarks)
	Name string `yaml:"name" json:"name"`

	// Classes is the catalog. Sizes must be distinct word multiples.
	Classes []PoolClass `yaml:"classes" json:"classes"`

	// Backing selects the memory used for class regions.
	Backing mem.Backing `yaml:"-" json:"-"`
}

// Predefined configurations.
var (
	// ConfigKernelHot covers the sizes a small kernel requests most often:
	// small descriptors up to page-sized buffers and a few large tables.
	// Reserves roughly 1.4MB.
	ConfigKernelHot = PoolConfig{
		Name: "KernelHot",
		Classes: []PoolClass{
			{Size: 32, Slots: 64},
			{Size: 128, Slots: 32},
			{Size: 512, Slots: 16},
			{Size: 2048, Slots: 8},
			{Size: 8 << 10, Slots: 4},
			{Size: 32 << 10, Slots: 2},
			{Size: 128 << 10, Slots: 2},
			{Size: 512 << 10, Slots: 2},
		},
	}

	// ConfigCompact keeps the same catalog with one slot for the large sizes.
	// Reserves roughly 700KB.
	ConfigCompact = PoolConfig{
		Name: "Compact",
		Classes: []PoolClass{
			{Size: 32, Slots: 32},
			{Size: 128, Slots: 16},
			{Size: 512, Slots: 8},
			{Size: 2048, Slots: 4},
			{Size: 8 << 10, Slots: 2},
			{Size: 32 << 10, Slots: 1},
			{Size: 128 << 10, Slots: 1},
			{Size: 512 << 10, Slots: 1},
		},
	}

	// DefaultPoolConfig is used if none is specified.
	DefaultPoolConfig = ConfigKernelHot
)

// Validate checks the catalog: at least one class, positive slot counts,
// distinct non-zero word-multiple sizes.
func (c PoolConfig) Validate() error {
	if len(c.Classes) == 0 {
		return fmt.Errorf("%w: pool config %q has no classes", ErrInvalidParameter, c.Name)
	}
	seen := make(map[uintptr]bool, len(c.Classes))
	for _, pc := range c.Classes {
		switch {
		case pc.Size == 0 || pc.Size != format.AlignWord(pc.Size):
			return fmt.Errorf("%w: pool size %d is not a non-zero multiple of %d", ErrInvalidParameter, pc.Size, format.WordSize)
		case pc.Slots <= 0:
			return fmt.Errorf("%w: pool size %d has %d slots", ErrInvalidParameter, pc.Size, pc.Slots)
		case seen[pc.Size]:
			return fmt.Errorf("%w: pool size %d listed twice", ErrInvalidParameter, pc.Size)
		}
		seen[pc.Size] = true
	}
	return nil
}

// Sizes returns the catalog sizes in ascending order.
func (c PoolConfig) Sizes() []uintptr {
	out := make([]uintptr, 0, len(c.Classes))
	for _, pc := range c.Classes {
		out = append(out, pc.Size)
	}
	slices.Sort(out)
	return out
}

// ReservedBytes returns the total memory the catalog reserves.
func (c PoolConfig) ReservedBytes() uintptr {
	var total uintptr
	for _, pc := range c.Classes {
		total += pc.regionSize()
	}
	return total
}

// String returns the configuration name.
func (c PoolConfig) String() string {
	return c.Name
}
