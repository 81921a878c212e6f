// Package config loads machine profiles: the address space, allocator and
// pool catalog a trace replay runs against.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/mem"
)

// ErrInvalidProfile indicates a profile that cannot describe a machine.
var ErrInvalidProfile = errors.New("config: invalid profile")

// Kind selects the allocator a profile builds.
type Kind string

const (
	// KindList builds a ListAllocator.
	KindList Kind = "list"
	// KindPooled builds a PooledAllocator in front of a ListAllocator.
	KindPooled Kind = "pooled"
	// KindEarly builds an EarlyAllocator, the only kind with a page side.
	KindEarly Kind = "early"
)

// Size is a byte count that unmarshals from an integer or a string such as
// "64K" or "0x1000".
type Size uintptr

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: size must be a scalar", ErrInvalidProfile, value.Line)
	}
	n, err := format.ParseSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = Size(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (any, error) {
	return format.FormatSize(uintptr(s)), nil
}

// Profile describes one simulated machine.
type Profile struct {
	// Name for reports
	Name string `yaml:"name" json:"name"`

	// Allocator kind: list, pooled or early
	Allocator Kind `yaml:"allocator" json:"allocator"`

	// Backing for every region: heap or anon
	Backing string `yaml:"backing" json:"backing"`

	// Base is the first address the address space hands out.
	Base Size `yaml:"base" json:"base"`

	// RegionSize is the size of the region passed to Init.
	RegionSize Size `yaml:"region_size" json:"region_size"`

	// Extra regions are reserved and added with AddMemory before the first
	// operation.
	Extra []Size `yaml:"extra,omitempty" json:"extra,omitempty"`

	// PageSize of the early allocator.
	PageSize Size `yaml:"page_size" json:"page_size"`

	// Pools is the hot-size catalog of the pooled allocator. Nil selects
	// alloc.DefaultPoolConfig.
	Pools *alloc.PoolConfig `yaml:"pools,omitempty" json:"pools,omitempty"`

	// Check validates allocator invariants after every replayed operation.
	Check bool `yaml:"check" json:"check"`
}

// Default returns a 1MB list-allocator profile on heap memory.
func Default() Profile {
	return Profile{
		Name:       "default",
		Allocator:  KindList,
		Backing:    mem.BackingHeap.String(),
		Base:       Size(mem.DefaultBase),
		RegionSize: 1 * format.MiB,
		PageSize:   format.DefaultPageSize,
	}
}

// Load reads a YAML profile from path. Fields left out keep their Default
// values.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile. Unknown fields are rejected.
func Parse(data []byte) (Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Marshal encodes p as YAML.
func (p Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// BackingKind returns the parsed Backing field.
func (p Profile) BackingKind() (mem.Backing, error) {
	return mem.ParseBacking(p.Backing)
}

// Validate checks that the profile describes a machine that can be built.
func (p Profile) Validate() error {
	switch p.Allocator {
	case KindList, KindPooled, KindEarly:
	default:
		return fmt.Errorf("%w: unknown allocator %q", ErrInvalidProfile, p.Allocator)
	}
	if _, err := p.BackingKind(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if !format.IsAligned(uintptr(p.Base), format.DefaultPageSize) || uintptr(p.Base) < format.DefaultPageSize {
		return fmt.Errorf("%w: base %#x must be a non-zero multiple of %d", ErrInvalidProfile, uintptr(p.Base), format.DefaultPageSize)
	}
	if uintptr(p.RegionSize) <= alloc.HeaderSize {
		return fmt.Errorf("%w: region_size %d too small", ErrInvalidProfile, p.RegionSize)
	}
	for i, e := range p.Extra {
		if uintptr(e) <= alloc.HeaderSize {
			return fmt.Errorf("%w: extra[%d] size %d too small", ErrInvalidProfile, i, e)
		}
	}
	if !format.IsPow2(uintptr(p.PageSize)) {
		return fmt.Errorf("%w: page_size %d is not a power of two", ErrInvalidProfile, p.PageSize)
	}
	if p.Pools != nil {
		if p.Allocator != KindPooled {
			return fmt.Errorf("%w: pools given for %s allocator", ErrInvalidProfile, p.Allocator)
		}
		if err := p.Pools.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
		}
	}
	return nil
}
