// Package sim builds simulated machines from profiles and replays
// allocation traces against them.
package sim

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/config"
	"github.com/joshuapare/kalloc/internal/logger"
	"github.com/joshuapare/kalloc/mem"
)

// Machine is an address space plus the allocator a profile asks for.
// Allocators are reached through the Locked wrappers, so a Machine may be
// shared between goroutines.
type Machine struct {
	profile config.Profile
	backing mem.Backing
	sp      *mem.Space
	region  *mem.Region

	bytes *alloc.Locked
	pages *alloc.LockedPages // nil unless the profile is early

	list   *alloc.ListAllocator
	pooled *alloc.PooledAllocator
	early  *alloc.EarlyAllocator
}

// NewMachine builds the machine described by p: it reserves the Init region,
// initializes the allocator over it and adds every extra region.
func NewMachine(p config.Profile) (*Machine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	backing, err := p.BackingKind()
	if err != nil {
		return nil, err
	}

	m := &Machine{
		profile: p,
		backing: backing,
		sp:      mem.NewSpace(uintptr(p.Base)),
	}
	if err := m.build(); err != nil {
		_ = m.Close()
		return nil, err
	}
	logger.Debug("machine ready", "profile", p.Name, "allocator", p.Allocator,
		"base", fmt.Sprintf("%#x", m.region.Base()), "total", m.bytes.TotalBytes())
	return m, nil
}

func (m *Machine) build() error {
	p := m.profile
	switch p.Allocator {
	case config.KindList:
		m.list = alloc.NewList(m.sp)
		m.bytes = alloc.NewLocked(m.list)
	case config.KindPooled:
		cfg := alloc.DefaultPoolConfig
		if p.Pools != nil {
			cfg = *p.Pools
		}
		cfg.Backing = m.backing
		m.list = alloc.NewList(m.sp)
		pooled, err := alloc.NewPooled(m.sp, m.list, &cfg)
		if err != nil {
			return err
		}
		m.pooled = pooled
		m.bytes = alloc.NewLocked(pooled)
	case config.KindEarly:
		early, err := alloc.NewEarly(m.sp, uintptr(p.PageSize))
		if err != nil {
			return err
		}
		m.early = early
		m.bytes, m.pages = alloc.NewLockedPair(early)
	default:
		return fmt.Errorf("%w: allocator %q", config.ErrInvalidProfile, p.Allocator)
	}

	r, err := m.sp.Reserve(uintptr(p.RegionSize), m.backing)
	if err != nil {
		return fmt.Errorf("reserve region: %w", err)
	}
	m.region = r
	if err := m.bytes.Init(r.Base(), r.Size()); err != nil {
		return fmt.Errorf("init allocator: %w", err)
	}
	for _, size := range p.Extra {
		if err := m.Grow(uintptr(size)); err != nil {
			return err
		}
	}
	return nil
}

// Grow maps a new region of size bytes and adds it to the byte allocator.
func (m *Machine) Grow(size uintptr) error {
	r, err := m.sp.Reserve(size, m.backing)
	if err != nil {
		return fmt.Errorf("reserve extra region: %w", err)
	}
	if err := m.bytes.AddMemory(r.Base(), r.Size()); err != nil {
		return errors.Join(fmt.Errorf("add memory: %w", err), m.sp.Unmap(r))
	}
	return nil
}

// Profile returns the profile the machine was built from.
func (m *Machine) Profile() config.Profile { return m.profile }

// Space returns the machine's address space.
func (m *Machine) Space() *mem.Space { return m.sp }

// Region returns the region the allocator was initialized over.
func (m *Machine) Region() *mem.Region { return m.region }

// Bytes returns the byte allocator.
func (m *Machine) Bytes() alloc.ByteAllocator { return m.bytes }

// Pages returns the page allocator, or nil when the profile has none.
func (m *Machine) Pages() alloc.PageAllocator {
	if m.pages == nil {
		return nil
	}
	return m.pages
}

// Validate checks the allocator's structural invariants.
func (m *Machine) Validate() error {
	var err error
	m.bytes.Do(func(alloc.ByteAllocator) {
		switch {
		case m.pooled != nil:
			err = m.pooled.Validate()
		case m.early != nil:
			err = m.early.Validate()
		case m.list != nil:
			err = m.list.Validate()
		}
	})
	return err
}

// Stats returns the counters of the underlying general or early allocator.
func (m *Machine) Stats() alloc.Stats {
	var st alloc.Stats
	m.bytes.Do(func(alloc.ByteAllocator) {
		switch {
		case m.early != nil:
			st = m.early.Stats()
		case m.list != nil:
			st = m.list.Stats()
		}
	})
	return st
}

// PoolStats returns per-class counters, or nil when the machine is not
// pooled.
func (m *Machine) PoolStats() []alloc.PoolStats {
	if m.pooled == nil {
		return nil
	}
	var st []alloc.PoolStats
	m.bytes.Do(func(alloc.ByteAllocator) { st = m.pooled.PoolStats() })
	return st
}

// Close releases every region of the machine.
func (m *Machine) Close() error {
	var errs []error
	if m.pooled != nil {
		errs = append(errs, m.pooled.Close())
	}
	errs = append(errs, m.sp.Close())
	return errors.Join(errs...)
}
