package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocked_ConcurrentAllocFree(t *testing.T) {
	sp, r := newTestSpace(t, 1<<20)
	la := NewList(sp)
	locked := NewLocked(la)
	require.NoError(t, locked.Init(r.Base(), r.Size()))

	const workers, rounds = 8, 200
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			size := uintptr(16 + w*8)
			for range rounds {
				addr, err := locked.Alloc(size, 8)
				if err != nil {
					errs <- err
					return
				}
				if err := locked.Dealloc(addr, size, 8); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Zero(t, locked.UsedBytes())
	assert.Equal(t, locked.TotalBytes(), locked.AvailableBytes())
	locked.Do(func(a ByteAllocator) {
		require.NoError(t, a.(*ListAllocator).Validate())
		assert.Equal(t, workers*rounds, a.(*ListAllocator).Stats().AllocCalls)
	})
}

func TestLocked_PairSharesOneMutex(t *testing.T) {
	sp, r := newTestSpace(t, 64*testPage)
	ea, err := NewEarly(sp, testPage)
	require.NoError(t, err)

	bytes, pages := NewLockedPair(ea)
	require.NoError(t, pages.Init(r.Base(), r.Size()))
	require.Same(t, bytes.mu, pages.mu)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 16 {
			_, err := pages.AllocPages(1, testPage)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			_, err := bytes.Alloc(64, 8)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	assert.Equal(t, uintptr(16), pages.UsedPages())
	assert.Equal(t, uintptr(64), pages.TotalPages())
	assert.Equal(t, uintptr(100*(64+HeaderSize)+16*testPage), bytes.UsedBytes())
	assert.Equal(t, uintptr(testPage), pages.PageSize())
	require.NoError(t, ea.Validate())
}
