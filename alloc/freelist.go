package alloc

import (
	"fmt"

	"github.com/joshuapare/kalloc/internal/buf"
	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/mem"
)

// block is the decoded form of an intrusive free-list node. The node itself
// lives in the header at addr.
type block struct {
	addr uintptr // header address
	size uintptr // usable bytes after the header
	next uintptr // next free block, format.NilBlock terminates
}

func (b block) payload() uintptr { return b.addr + HeaderSize }

func (b block) end() uintptr { return b.addr + HeaderSize + b.size }

// freeList is a singly linked list of free blocks threaded through the
// memory it describes. Each node's header is stored at the node's address in
// the Space, so the list itself owns nothing.
//
// NOT thread-safe.
type freeList struct {
	sp    *mem.Space
	head  uintptr
	count int

	stats *Stats
}

func (l *freeList) reset() {
	l.head = format.NilBlock
	l.count = 0
}

func (l *freeList) load(addr uintptr) (block, error) {
	h, err := l.sp.ReadHeader(addr)
	if err != nil {
		return block{}, fmt.Errorf("%w: block %#x: %w", ErrCorrupt, addr, err)
	}
	return block{addr: addr, size: h.Size, next: h.Next}, nil
}

func (l *freeList) store(b block) error {
	if err := l.sp.WriteHeader(b.addr, format.Header{Size: b.size, Next: b.next}); err != nil {
		return fmt.Errorf("%w: block %#x: %w", ErrCorrupt, b.addr, err)
	}
	return nil
}

// push writes a header of size usable bytes at addr and links it at the head.
func (l *freeList) push(addr, size uintptr) error {
	if err := l.store(block{addr: addr, size: size, next: l.head}); err != nil {
		return err
	}
	l.head = addr
	l.count++
	return nil
}

// walk calls fn for every block in list order until fn returns false.
// A list longer than count is reported as a cycle.
func (l *freeList) walk(fn func(b block) bool) error {
	steps := 0
	for cur := l.head; cur != format.NilBlock; {
		if steps > l.count {
			return fmt.Errorf("%w: cycle after %d blocks", ErrCorrupt, steps)
		}
		b, err := l.load(cur)
		if err != nil {
			return err
		}
		if !fn(b) {
			return nil
		}
		cur = b.next
		steps++
	}
	return nil
}

// relink points the predecessor of a block (or the head when prev is
// NilBlock) at next.
func (l *freeList) relink(prev, next uintptr) error {
	if prev == format.NilBlock {
		l.head = next
		return nil
	}
	p, err := l.load(prev)
	if err != nil {
		return err
	}
	p.next = next
	return l.store(p)
}

// take unlinks the first block with at least required usable bytes.
//
// When the remainder after carving required bytes exceeds one header, the
// block is split: the front keeps exactly required bytes and the tail becomes
// a new free block in the same list position. Otherwise the whole block is
// consumed so no unusably small fragment is left behind.
//
// The returned block's size is the carved extent; its header is rewritten
// with that size and a nil link.
func (l *freeList) take(required uintptr) (block, bool, error) {
	var (
		found block
		ok    bool
		prev  = uintptr(format.NilBlock)
	)
	err := l.walk(func(b block) bool {
		if b.size < required {
			prev = b.addr
			return true
		}
		found, ok = b, true
		return false
	})
	if err != nil || !ok {
		return block{}, false, err
	}

	next := found.next
	if found.size-required > HeaderSize {
		tail := block{
			addr: found.addr + HeaderSize + required,
			size: found.size - required - HeaderSize,
			next: found.next,
		}
		if err := l.store(tail); err != nil {
			return block{}, false, err
		}
		next = tail.addr
		found.size = required
		l.stats.SplitCount++
	} else {
		l.count--
	}

	if err := l.relink(prev, next); err != nil {
		return block{}, false, err
	}
	found.next = format.NilBlock
	if err := l.store(found); err != nil {
		return block{}, false, err
	}
	return found, true, nil
}

// coalesce makes one forward pass merging each block with its list successor
// when the block ends exactly where the successor starts. Address-adjacent
// blocks that are not list neighbours stay separate.
func (l *freeList) coalesce() error {
	steps := 0
	cur := l.head
	for cur != format.NilBlock {
		if steps > l.count {
			return fmt.Errorf("%w: cycle after %d blocks", ErrCorrupt, steps)
		}
		b, err := l.load(cur)
		if err != nil {
			return err
		}
		if b.next == format.NilBlock {
			return nil
		}
		n, err := l.load(b.next)
		if err != nil {
			return err
		}
		if b.end() != n.addr {
			cur = b.next
			steps++
			continue
		}
		b.size += HeaderSize + n.size
		b.next = n.next
		if err := l.store(b); err != nil {
			return err
		}
		l.count--
		l.stats.CoalesceCount++
	}
	return nil
}

// overlapping reports whether [addr, addr+n) intersects any free block.
func (l *freeList) overlapping(addr, n uintptr) (bool, error) {
	hit := false
	err := l.walk(func(b block) bool {
		if buf.Overlaps(addr, n, b.addr, HeaderSize+b.size) {
			hit = true
			return false
		}
		return true
	})
	return hit, err
}

// remove unlinks the block at addr. It reports false when addr is not a
// list node.
func (l *freeList) remove(addr uintptr) (bool, error) {
	var (
		prev  = uintptr(format.NilBlock)
		found block
		ok    bool
	)
	err := l.walk(func(b block) bool {
		if b.addr == addr {
			found, ok = b, true
			return false
		}
		prev = b.addr
		return true
	})
	if err != nil || !ok {
		return false, err
	}
	if err := l.relink(prev, found.next); err != nil {
		return false, err
	}
	l.count--
	return true, nil
}

// endingAt returns the first block whose end address is end and whose
// header lies at or above floor.
func (l *freeList) endingAt(end, floor uintptr) (block, bool, error) {
	var (
		found block
		ok    bool
	)
	err := l.walk(func(b block) bool {
		if b.end() == end && b.addr >= floor {
			found, ok = b, true
			return false
		}
		return true
	})
	return found, ok, err
}

// blocks returns a snapshot of the list in list order.
func (l *freeList) blocks() ([]FreeBlock, error) {
	out := make([]FreeBlock, 0, l.count)
	err := l.walk(func(b block) bool {
		out = append(out, FreeBlock{Addr: b.addr, Size: b.size})
		return true
	})
	return out, err
}

// freeBytes returns the header-inclusive size of every free block.
func (l *freeList) freeBytes() (uintptr, error) {
	var total uintptr
	err := l.walk(func(b block) bool {
		total += HeaderSize + b.size
		return true
	})
	return total, err
}
