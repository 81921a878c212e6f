package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/mem"
)

func TestDefault_IsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, KindList, p.Allocator)
	assert.Equal(t, Size(1<<20), p.RegionSize)
	assert.Equal(t, Size(mem.DefaultBase), p.Base)
}

func TestParse_FullProfile(t *testing.T) {
	data := []byte(`
name: boot
allocator: pooled
backing: anon
base: 0x2000_0000
region_size: 256K
extra: [64K, 0x8000]
page_size: 8K
check: true
pools:
  name: tiny
  classes:
    - {size: 32, slots: 4}
    - {size: 128, slots: 2}
`)
	p, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "boot", p.Name)
	assert.Equal(t, KindPooled, p.Allocator)
	assert.Equal(t, Size(0x2000_0000), p.Base)
	assert.Equal(t, Size(256<<10), p.RegionSize)
	assert.Equal(t, []Size{64 << 10, 0x8000}, p.Extra)
	assert.Equal(t, Size(8<<10), p.PageSize)
	assert.True(t, p.Check)

	require.NotNil(t, p.Pools)
	assert.Equal(t, "tiny", p.Pools.Name)
	assert.Equal(t, []alloc.PoolClass{{Size: 32, Slots: 4}, {Size: 128, Slots: 2}}, p.Pools.Classes)

	backing, err := p.BackingKind()
	require.NoError(t, err)
	assert.Equal(t, mem.BackingAnon, backing)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	p, err := Parse([]byte("allocator: early\n"))
	require.NoError(t, err)
	assert.Equal(t, KindEarly, p.Allocator)
	assert.Equal(t, Default().RegionSize, p.RegionSize)
	assert.Equal(t, Default().PageSize, p.PageSize)

	p, err = Parse(nil)
	require.NoError(t, err, "an empty document is the default profile")
	assert.Equal(t, Default(), p)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "allocatr: list\n"},
		{"unknown allocator", "allocator: buddy\n"},
		{"unknown backing", "backing: tape\n"},
		{"bad size", "region_size: lots\n"},
		{"tiny region", "region_size: 16\n"},
		{"unaligned base", "base: 0x1234\n"},
		{"zero base page", "base: 0\n"},
		{"page size", "page_size: 3000\n"},
		{"tiny extra", "extra: [8]\n"},
		{"pools on list", "pools: {classes: [{size: 32, slots: 1}]}\n"},
		{"bad pool", "allocator: pooled\npools: {classes: [{size: 30, slots: 1}]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	p := Default()
	p.Name = "roundtrip"
	p.Allocator = KindPooled
	p.Extra = []Size{4096, 1 << 20}
	p.Pools = &alloc.PoolConfig{Name: "rt", Classes: []alloc.PoolClass{{Size: 64, Slots: 8}}}

	data, err := p.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "region_size: 1M")

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
