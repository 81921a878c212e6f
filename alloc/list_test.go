package alloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/mem"
)

// TestListAllocator_ReuseFreedBlock is the basic reuse scenario: two
// distinct allocations, free the first, the next same-size request gets it
// back.
func TestListAllocator_ReuseFreedBlock(t *testing.T) {
	la, _, r := newTestList(t, 4096)

	a, err := la.Alloc(100, 8)
	require.NoError(t, err)
	b, err := la.Alloc(100, 8)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "live allocations must be distinct")
	assert.Equal(t, r.Base()+HeaderSize, a, "first block starts at the region base")

	require.NoError(t, la.Dealloc(a, 100, 8))

	c, err := la.Alloc(100, 8)
	require.NoError(t, err)
	assert.Equal(t, a, c, "freed block at the list head is reused")
	require.NoError(t, la.Validate())
}

func TestListAllocator_InitState(t *testing.T) {
	la, _, r := newTestList(t, 4096)

	assert.Equal(t, uintptr(4096), la.TotalBytes())
	assert.Zero(t, la.UsedBytes())
	assert.Equal(t, uintptr(4096), la.AvailableBytes())

	blocks, err := la.FreeBlocks()
	require.NoError(t, err)
	require.Equal(t, []FreeBlock{{Addr: r.Base(), Size: 4096 - HeaderSize}}, blocks)
}

func TestListAllocator_InitErrors(t *testing.T) {
	sp, r := newTestSpace(t, 4096)
	la := NewList(sp)

	err := la.Init(r.Base(), HeaderSize)
	require.ErrorIs(t, err, ErrBadRange, "a region must hold more than one header")

	err = la.Init(r.End()+0x1000, 4096)
	require.ErrorIs(t, err, ErrBadRange, "unmapped memory cannot be adopted")

	err = la.Init(r.Base(), r.Size()+1)
	require.ErrorIs(t, err, ErrBadRange, "range past the region end")
}

func TestListAllocator_ReinitDiscardsState(t *testing.T) {
	la, _, r := newTestList(t, 4096)

	_, err := la.Alloc(512, 8)
	require.NoError(t, err)
	require.NoError(t, la.Init(r.Base(), r.Size()))

	assert.Zero(t, la.UsedBytes())
	blocks, err := la.FreeBlocks()
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestListAllocator_InvalidParameters(t *testing.T) {
	la, _, _ := newTestList(t, 4096)

	tests := []struct {
		name  string
		size  uintptr
		align uintptr
	}{
		{"zero size", 0, 8},
		{"zero align", 8, 0},
		{"non power of two align", 8, 12},
		{"overflowing size", ^uintptr(0), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := la.Alloc(tt.size, tt.align)
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
	assert.Zero(t, la.UsedBytes(), "failed calls must not change accounting")
	assert.Equal(t, len(tests), la.Stats().FailedAllocs)
}

func TestListAllocator_RequiredSize(t *testing.T) {
	tests := []struct {
		size, align, want uintptr
	}{
		{1, 1, 8},
		{8, 8, 8},
		{9, 8, 16},
		{20, 32, 32},
		{100, 4, 104},
		{30, 8, 32},
	}
	for _, tt := range tests {
		got, err := requiredSize(tt.size, tt.align)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "requiredSize(%d, %d)", tt.size, tt.align)
	}
}

func TestListAllocator_Split(t *testing.T) {
	la, _, r := newTestList(t, 4096)

	addr, err := la.Alloc(64, 8)
	require.NoError(t, err)
	assert.Equal(t, r.Base()+HeaderSize, addr)

	blocks, err := la.FreeBlocks()
	require.NoError(t, err)
	require.Equal(t, []FreeBlock{{Addr: r.Base() + HeaderSize + 64, Size: 4096 - 2*HeaderSize - 64}}, blocks,
		"the tail of the split block stays on the list")
	assert.Equal(t, uintptr(HeaderSize+64), la.UsedBytes())
	assert.Equal(t, 1, la.Stats().SplitCount)
}

// TestListAllocator_NoSplitSmallRemainder checks that a remainder of one
// header or less is absorbed into the allocation.
func TestListAllocator_NoSplitSmallRemainder(t *testing.T) {
	sp, r := newTestSpace(t, 4096)
	la := NewList(sp)
	require.NoError(t, la.Init(r.Base(), HeaderSize+80))

	addr, err := la.Alloc(64, 8)
	require.NoError(t, err)
	assert.Equal(t, uintptr(HeaderSize+80), la.UsedBytes(), "whole block consumed")
	assert.Zero(t, la.AvailableBytes())
	assert.Zero(t, la.Stats().SplitCount)

	_, err = la.Alloc(8, 8)
	require.ErrorIs(t, err, ErrOutOfMemory)

	// The header records the absorbed extent, so all of it comes back.
	require.NoError(t, la.Dealloc(addr, 64, 8))
	blocks, err := la.FreeBlocks()
	require.NoError(t, err)
	require.Equal(t, []FreeBlock{{Addr: r.Base(), Size: 80}}, blocks)
	assert.Zero(t, la.UsedBytes())
}

func TestListAllocator_MergeListNeighbours(t *testing.T) {
	la, _, r := newTestList(t, 4096)

	a, err := la.Alloc(64, 8)
	require.NoError(t, err)
	b, err := la.Alloc(64, 8)
	require.NoError(t, err)

	// b is pushed in front of the tail it touches and merges with it, then a
	// merges with the result.
	require.NoError(t, la.Dealloc(b, 64, 8))
	require.NoError(t, la.Dealloc(a, 64, 8))

	blocks, err := la.FreeBlocks()
	require.NoError(t, err)
	require.Equal(t, []FreeBlock{{Addr: r.Base(), Size: 4096 - HeaderSize}}, blocks,
		"freeing in reverse order restores the single initial block")
	assert.Equal(t, 2, la.Stats().CoalesceCount)
	assert.Zero(t, la.UsedBytes())
}

// TestListAllocator_MergeIsListOrderOnly pins down that coalescing only
// looks at list successors: address-adjacent blocks in the wrong list order
// stay separate.
func TestListAllocator_MergeIsListOrderOnly(t *testing.T) {
	la, _, r := newTestList(t, 4096)

	a, err := la.Alloc(64, 8)
	require.NoError(t, err)
	b, err := la.Alloc(64, 8)
	require.NoError(t, err)

	require.NoError(t, la.Dealloc(a, 64, 8))
	require.NoError(t, la.Dealloc(b, 64, 8))

	blocks, err := la.FreeBlocks()
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, r.Base()+HeaderSize+64, blocks[0].Addr, "b at the head")
	assert.Equal(t, r.Base(), blocks[1].Addr, "a behind it")
	require.NoError(t, la.Validate(), "separate blocks still account for every byte")
}

func TestListAllocator_DoubleFree(t *testing.T) {
	la, _, _ := newTestList(t, 4096)

	a, err := la.Alloc(64, 8)
	require.NoError(t, err)
	_, err = la.Alloc(64, 8)
	require.NoError(t, err)

	require.NoError(t, la.Dealloc(a, 64, 8))
	used := la.UsedBytes()

	err = la.Dealloc(a, 64, 8)
	require.ErrorIs(t, err, ErrDoubleFree)
	assert.Equal(t, used, la.UsedBytes(), "a rejected free must not change accounting")
	require.NoError(t, la.Validate())
}

func TestListAllocator_BadAddress(t *testing.T) {
	la, _, r := newTestList(t, 4096)

	tests := []struct {
		name string
		addr uintptr
	}{
		{"null", 0},
		{"below header", 8},
		{"before region", r.Base()},
		{"past region", r.End() + HeaderSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := la.Dealloc(tt.addr, 64, 8)
			require.ErrorIs(t, err, ErrBadAddress)
		})
	}
}

func TestListAllocator_OutOfMemory(t *testing.T) {
	la, _, _ := newTestList(t, 4096)

	_, err := la.Alloc(4096, 8)
	require.ErrorIs(t, err, ErrOutOfMemory)

	addr, err := la.Alloc(4096-HeaderSize, 8)
	require.NoError(t, err, "the whole region fits in one block")
	assert.Equal(t, la.TotalBytes(), la.UsedBytes())

	_, err = la.Alloc(8, 8)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.NoError(t, la.Dealloc(addr, 4096-HeaderSize, 8))
	assert.Equal(t, la.TotalBytes(), la.AvailableBytes())
}

func TestListAllocator_AddMemory(t *testing.T) {
	la, sp, r1 := newTestList(t, 4096)
	r2, err := sp.Reserve(4096, mem.BackingHeap)
	require.NoError(t, err)

	require.NoError(t, la.AddMemory(r2.Base(), r2.Size()))
	assert.Equal(t, uintptr(8192), la.TotalBytes())

	_, err = la.Alloc(5000, 8)
	require.ErrorIs(t, err, ErrOutOfMemory, "non-adjacent regions never merge")

	addr, err := la.Alloc(4000, 8)
	require.NoError(t, err)
	assert.True(t, r2.Contains(addr, 4000), "new memory sits at the list head")

	err = la.AddMemory(r1.Base()+1024, 1024)
	require.ErrorIs(t, err, ErrBadRange, "owned memory cannot be added twice")

	require.NoError(t, la.Dealloc(addr, 4000, 8))
	require.NoError(t, la.Validate())
}

// TestListAllocator_AddMemoryMergesAcrossRegions maps two address-adjacent
// regions; the added lower one merges with the initial block and a single
// allocation may then span both.
func TestListAllocator_AddMemoryMergesAcrossRegions(t *testing.T) {
	sp := mem.NewSpace(0)
	t.Cleanup(func() { _ = sp.Close() })

	low, err := sp.Map(mem.DefaultBase, 4096, mem.BackingHeap)
	require.NoError(t, err)
	high, err := sp.Map(low.End(), 4096, mem.BackingHeap)
	require.NoError(t, err)

	la := NewList(sp)
	require.NoError(t, la.Init(high.Base(), high.Size()))
	require.NoError(t, la.AddMemory(low.Base(), low.Size()))

	blocks, err := la.FreeBlocks()
	require.NoError(t, err)
	require.Equal(t, []FreeBlock{{Addr: low.Base(), Size: 8192 - HeaderSize}}, blocks)

	addr, err := la.Alloc(6000, 8)
	require.NoError(t, err)
	require.NoError(t, sp.Fill(addr, 6000, 0xAB), "payload spans both regions")
	require.NoError(t, la.Dealloc(addr, 6000, 8))
	require.NoError(t, la.Validate())
}

func TestListAllocator_AccountingIsIdempotent(t *testing.T) {
	la, _, _ := newTestList(t, 1<<16)
	before := la.AvailableBytes()

	for round := range 3 {
		var addrs []uintptr
		for i := range 20 {
			addr, err := la.Alloc(uintptr(16+i*24), 8)
			require.NoError(t, err, "round %d alloc %d", round, i)
			addrs = append(addrs, addr)
		}
		for i, addr := range addrs {
			require.NoError(t, la.Dealloc(addr, uintptr(16+i*24), 8))
		}
		assert.Zero(t, la.UsedBytes(), "round %d", round)
		assert.Equal(t, before, la.AvailableBytes(), "round %d", round)
		require.NoError(t, la.Validate())
	}
}

// TestListAllocator_RandomNoOverlap runs a fixed-seed random workload. After
// every step live allocations must be disjoint and the free list must account
// for every byte not checked out. Each allocation is filled with its own byte
// pattern, which must survive until it is freed.
func TestListAllocator_RandomNoOverlap(t *testing.T) {
	la, sp, _ := newTestList(t, 1<<16)

	rng := rand.New(rand.NewSource(42)) // Fixed seed for reproducibility
	aligns := []uintptr{1, 2, 4, 8, 16, 32}

	type live struct {
		liveRange
		align uintptr
		fill  byte
	}
	var allocs []live
	fills := 0

	for step := range 2000 {
		if len(allocs) > 0 && rng.Intn(5) < 2 {
			i := rng.Intn(len(allocs))
			a := allocs[i]
			requirePattern(t, sp, a.addr, a.size, a.fill)
			require.NoError(t, la.Dealloc(a.addr, a.size, a.align), "step %d: free %#x", step, a.addr)
			allocs = append(allocs[:i], allocs[i+1:]...)
		} else {
			size := uintptr(1 + rng.Intn(768))
			align := aligns[rng.Intn(len(aligns))]
			addr, err := la.Alloc(size, align)
			if err != nil {
				require.ErrorIs(t, err, ErrOutOfMemory, "step %d", step)
				continue
			}
			fills++
			a := live{liveRange: liveRange{addr: addr, size: size}, align: align, fill: byte(fills)}
			require.NoError(t, sp.Fill(addr, size, a.fill))
			allocs = append(allocs, a)
		}

		ranges := make([]liveRange, len(allocs))
		for i, a := range allocs {
			ranges[i] = a.liveRange
		}
		requireDisjoint(t, ranges)
		require.NoError(t, la.Validate(), "step %d", step)
		require.LessOrEqual(t, la.UsedBytes(), la.TotalBytes())
	}
	t.Logf("%d live allocations, %d free blocks, stats %+v", len(allocs), la.free.count, la.Stats())
}
