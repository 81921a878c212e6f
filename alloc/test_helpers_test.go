package alloc

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/mem"
)

// newTestSpace creates an address space with one heap-backed region of size
// bytes at mem.DefaultBase. The space is closed when the test ends.
func newTestSpace(tb testing.TB, size uintptr) (*mem.Space, *mem.Region) {
	tb.Helper()
	sp := mem.NewSpace(0)
	tb.Cleanup(func() { _ = sp.Close() })

	r, err := sp.Reserve(size, mem.BackingHeap)
	require.NoError(tb, err, "reserve test region")
	return sp, r
}

// newTestList creates a ListAllocator initialized over a fresh region.
func newTestList(tb testing.TB, size uintptr) (*ListAllocator, *mem.Space, *mem.Region) {
	tb.Helper()
	sp, r := newTestSpace(tb, size)
	la := NewList(sp)
	require.NoError(tb, la.Init(r.Base(), r.Size()))
	return la, sp, r
}

// liveRange is one checked-out allocation as seen by the caller.
type liveRange struct {
	addr uintptr
	size uintptr
}

// requireDisjoint fails if any two live ranges overlap.
func requireDisjoint(tb testing.TB, live []liveRange) {
	tb.Helper()
	sorted := slices.Clone(live)
	slices.SortFunc(sorted, func(a, b liveRange) int {
		switch {
		case a.addr < b.addr:
			return -1
		case a.addr > b.addr:
			return 1
		}
		return 0
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		require.LessOrEqual(tb, prev.addr+prev.size, cur.addr,
			"allocations [%#x,+%d) and [%#x,+%d) overlap", prev.addr, prev.size, cur.addr, cur.size)
	}
}

// requirePattern checks that [addr, addr+n) still holds fill byte v.
func requirePattern(tb testing.TB, sp *mem.Space, addr, n uintptr, v byte) {
	tb.Helper()
	err := sp.Range(addr, n, func(chunk []byte) error {
		for i, b := range chunk {
			if b != v {
				tb.Fatalf("byte %d of [%#x,+%d) is %#x, want %#x", i, addr, n, b, v)
			}
		}
		return nil
	})
	require.NoError(tb, err)
}
