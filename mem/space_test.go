package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/internal/format"
)

func TestSpace_ReserveIsPageAlignedAndGapped(t *testing.T) {
	sp := NewSpace(0)
	defer sp.Close()

	r1, err := sp.Reserve(100, BackingHeap)
	require.NoError(t, err)
	r2, err := sp.Reserve(4096, BackingHeap)
	require.NoError(t, err)

	assert.Equal(t, DefaultBase, r1.Base(), "first reservation starts at the space base")
	assert.True(t, format.IsAligned(r2.Base(), format.DefaultPageSize), "bases are page aligned")
	assert.Greater(t, r2.Base(), r1.End(), "reservations are never address-adjacent")
	assert.Equal(t, uintptr(100), r1.Size())
}

func TestSpace_MapRejectsOverlapAndZeroPage(t *testing.T) {
	sp := NewSpace(0)
	defer sp.Close()

	_, err := sp.Map(0x10000, 0x2000, BackingHeap)
	require.NoError(t, err)

	_, err = sp.Map(0x11000, 0x2000, BackingHeap)
	require.ErrorIs(t, err, ErrOverlap, "overlapping the tail must fail")

	_, err = sp.Map(0xF000, 0x2000, BackingHeap)
	require.ErrorIs(t, err, ErrOverlap, "overlapping the head must fail")

	_, err = sp.Map(0x12000, 0x1000, BackingHeap)
	require.NoError(t, err, "an adjacent region is allowed")

	_, err = sp.Map(0, 0x1000, BackingHeap)
	require.ErrorIs(t, err, ErrReserved)

	_, err = sp.Map(0x20000, 0, BackingHeap)
	require.ErrorIs(t, err, ErrBadSize)

	_, err = sp.Map(0x30000, 0x1000, Backing(9))
	require.ErrorIs(t, err, ErrBadBacking)
}

func TestSpace_FindAndSlice(t *testing.T) {
	sp := NewSpace(0)
	defer sp.Close()

	r, err := sp.Map(0x10000, 0x1000, BackingHeap)
	require.NoError(t, err)

	got, ok := sp.Find(0x10800)
	require.True(t, ok)
	assert.Same(t, r, got)

	_, ok = sp.Find(0x11000)
	assert.False(t, ok, "End is exclusive")
	_, ok = sp.Find(0xFFFF)
	assert.False(t, ok)

	b, err := sp.Slice(0x10ff0, 0x10)
	require.NoError(t, err)
	b[0] = 0xAB
	assert.Equal(t, byte(0xAB), r.Bytes()[0xff0], "slices alias region memory")

	_, err = sp.Slice(0x10ff8, 0x10)
	require.ErrorIs(t, err, ErrUnmapped, "slices may not cross the region end")
}

func TestSpace_RangeSpansAdjacentRegions(t *testing.T) {
	sp := NewSpace(0)
	defer sp.Close()

	_, err := sp.Map(0x10000, 0x1000, BackingHeap)
	require.NoError(t, err)
	_, err = sp.Map(0x11000, 0x1000, BackingHeap)
	require.NoError(t, err)

	require.NoError(t, sp.Fill(0x10f00, 0x200, 0x5A))
	assert.True(t, sp.Contains(0x10f00, 0x200))

	var total int
	require.NoError(t, sp.Range(0x10f00, 0x200, func(chunk []byte) error {
		for _, v := range chunk {
			assert.Equal(t, byte(0x5A), v)
		}
		total += len(chunk)
		return nil
	}))
	assert.Equal(t, 0x200, total)

	assert.False(t, sp.Contains(0x11f00, 0x200), "range running off the last region")
	require.ErrorIs(t, sp.Fill(0x11f00, 0x200, 1), ErrUnmapped)
}

func TestSpace_HeaderRoundTrip(t *testing.T) {
	sp := NewSpace(0)
	defer sp.Close()

	r, err := sp.Reserve(0x1000, BackingHeap)
	require.NoError(t, err)

	want := format.Header{Size: 0x1000 - format.HeaderSize, Next: format.NilBlock}
	require.NoError(t, sp.WriteHeader(r.Base(), want))
	got, err := sp.ReadHeader(r.Base())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = sp.ReadHeader(r.End() - 8)
	require.ErrorIs(t, err, ErrUnmapped)
}

func TestSpace_Unmap(t *testing.T) {
	sp := NewSpace(0)
	defer sp.Close()

	r, err := sp.Reserve(0x1000, BackingHeap)
	require.NoError(t, err)
	require.NoError(t, sp.Unmap(r))

	_, ok := sp.Find(r.Base())
	assert.False(t, ok)
	require.ErrorIs(t, sp.Unmap(r), ErrUnmapped, "double unmap")
	assert.Empty(t, sp.Regions())
}

func TestSpace_AnonBacking(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	sp := NewSpace(0)
	defer sp.Close()

	r, err := sp.Reserve(1<<20, BackingAnon)
	require.NoError(t, err)
	assert.Equal(t, BackingAnon, r.Backing())
	require.NoError(t, sp.Fill(r.Base(), r.Size(), 0xFF))
	assert.Equal(t, byte(0xFF), r.Bytes()[r.Size()-1])
	require.NoError(t, sp.Close())
	assert.Empty(t, sp.Regions())
}

func TestParseBacking(t *testing.T) {
	tests := []struct {
		in   string
		want Backing
		err  bool
	}{
		{"", BackingHeap, false},
		{"heap", BackingHeap, false},
		{"ANON", BackingAnon, false},
		{"mmap", BackingAnon, false},
		{"disk", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBacking(tt.in)
		if tt.err {
			require.ErrorIs(t, err, ErrBadBacking, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got.String(), mustRoundTrip(t, got).String())
	}
}

func mustRoundTrip(t *testing.T, b Backing) Backing {
	t.Helper()
	got, err := ParseBacking(b.String())
	require.NoError(t, err)
	return got
}
