package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFootprint_Empty(t *testing.T) {
	f := newFootprint(4096)
	f.add(0x1000, 0)
	assert.Nil(t, f.coalesce())
	assert.Zero(t, f.pages())
}

func TestFootprint_Coalesce(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Range
		want   []Range
	}{
		{
			name:   "single unaligned range",
			ranges: []Range{{Addr: 0x1010, Len: 16}},
			want:   []Range{{Addr: 0x1000, Len: 0x1000}},
		},
		{
			name:   "range crossing a page boundary",
			ranges: []Range{{Addr: 0x1ff0, Len: 32}},
			want:   []Range{{Addr: 0x1000, Len: 0x2000}},
		},
		{
			name:   "same page twice",
			ranges: []Range{{Addr: 0x1100, Len: 8}, {Addr: 0x1000, Len: 8}},
			want:   []Range{{Addr: 0x1000, Len: 0x1000}},
		},
		{
			name:   "adjacent pages merge",
			ranges: []Range{{Addr: 0x2000, Len: 0x1000}, {Addr: 0x1000, Len: 0x1000}},
			want:   []Range{{Addr: 0x1000, Len: 0x2000}},
		},
		{
			name:   "gap keeps ranges apart",
			ranges: []Range{{Addr: 0x5000, Len: 16}, {Addr: 0x1000, Len: 16}},
			want:   []Range{{Addr: 0x1000, Len: 0x1000}, {Addr: 0x5000, Len: 0x1000}},
		},
		{
			name:   "contained range",
			ranges: []Range{{Addr: 0x1000, Len: 0x4000}, {Addr: 0x2000, Len: 16}},
			want:   []Range{{Addr: 0x1000, Len: 0x4000}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFootprint(4096)
			for _, r := range tt.ranges {
				f.add(r.Addr, r.Len)
			}
			require.Equal(t, tt.want, f.coalesce())
		})
	}
}

func TestFootprint_Pages(t *testing.T) {
	f := newFootprint(0)
	require.Equal(t, uintptr(4096), f.pageSize, "zero page size falls back to the default")

	f.add(0x10000, 24)
	f.add(0x10020, 24)
	f.add(0x13000, 0x2000)
	assert.Equal(t, uintptr(3), f.pages())
}
