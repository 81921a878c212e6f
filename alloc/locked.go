package alloc

import "sync"

// Locked serializes every call into a ByteAllocator. The allocators
// themselves never lock; Locked is the integration boundary where memory is
// shared between goroutines.
type Locked struct {
	mu    *sync.Mutex
	inner ByteAllocator
}

// NewLocked wraps a with its own mutex.
func NewLocked(a ByteAllocator) *Locked {
	return &Locked{mu: new(sync.Mutex), inner: a}
}

// Init implements BaseAllocator.
func (l *Locked) Init(start, size uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Init(start, size)
}

// AddMemory implements BaseAllocator.
func (l *Locked) AddMemory(start, size uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.AddMemory(start, size)
}

// Alloc implements ByteAllocator.
func (l *Locked) Alloc(size, align uintptr) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Alloc(size, align)
}

// Dealloc implements ByteAllocator.
func (l *Locked) Dealloc(addr, size, align uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Dealloc(addr, size, align)
}

// TotalBytes implements ByteAllocator.
func (l *Locked) TotalBytes() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.TotalBytes()
}

// UsedBytes implements ByteAllocator.
func (l *Locked) UsedBytes() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.UsedBytes()
}

// AvailableBytes implements ByteAllocator.
func (l *Locked) AvailableBytes() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.AvailableBytes()
}

// Do runs fn with the lock held, for callers that need several operations
// to appear atomic (for example reading Stats or Validate on the inner
// allocator).
func (l *Locked) Do(fn func(a ByteAllocator)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.inner)
}

// LockedPages serializes every call into a PageAllocator.
type LockedPages struct {
	mu    *sync.Mutex
	inner PageAllocator
}

// NewLockedPages wraps a with its own mutex.
func NewLockedPages(a PageAllocator) *LockedPages {
	return &LockedPages{mu: new(sync.Mutex), inner: a}
}

// NewLockedPair wraps both sides of an EarlyAllocator behind one mutex, so
// byte and page calls from different goroutines never interleave.
func NewLockedPair(ea *EarlyAllocator) (*Locked, *LockedPages) {
	mu := new(sync.Mutex)
	return &Locked{mu: mu, inner: ea}, &LockedPages{mu: mu, inner: ea}
}

// Init implements BaseAllocator.
func (l *LockedPages) Init(start, size uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Init(start, size)
}

// AddMemory implements BaseAllocator.
func (l *LockedPages) AddMemory(start, size uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.AddMemory(start, size)
}

// PageSize implements PageAllocator. The page size is fixed at
// construction, so no lock is taken.
func (l *LockedPages) PageSize() uintptr { return l.inner.PageSize() }

// AllocPages implements PageAllocator.
func (l *LockedPages) AllocPages(count, align uintptr) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.AllocPages(count, align)
}

// DeallocPages implements PageAllocator.
func (l *LockedPages) DeallocPages(addr, count uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.DeallocPages(addr, count)
}

// TotalPages implements PageAllocator.
func (l *LockedPages) TotalPages() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.TotalPages()
}

// UsedPages implements PageAllocator.
func (l *LockedPages) UsedPages() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.UsedPages()
}

// AvailablePages implements PageAllocator.
func (l *LockedPages) AvailablePages() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.AvailablePages()
}

// Compile-time interface checks
var (
	_ ByteAllocator = (*Locked)(nil)
	_ PageAllocator = (*LockedPages)(nil)
)
