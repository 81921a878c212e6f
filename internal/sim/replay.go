package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/logger"
	"github.com/joshuapare/kalloc/internal/trace"
)

// maxFailures bounds the failures kept in a Report.
const maxFailures = 32

// Options configures Replay.
type Options struct {
	// Check validates the allocator after every operation, not only at
	// check lines. The profile's Check field turns this on as well.
	Check bool

	// Verify fills every allocation with a pattern and checks it is intact
	// when the allocation is freed.
	Verify bool

	// Progress is called after every operation with the number done.
	Progress func(done int)
}

// allocation is a live byte allocation or page run.
type allocation struct {
	addr  uintptr
	size  uintptr // bytes requested, or pages
	align uintptr
	fill  byte
}

// replayer holds the state of one Replay call.
type replayer struct {
	m    *Machine
	opts Options

	bytes  map[string]allocation
	pages  map[string]allocation
	failed map[string]bool // ids whose alloc failed, their frees are skipped
	live   liveSet
	seq    int
	touch  *footprint

	report *Report
}

// Replay runs ops against m and returns what happened.
//
// Allocation failures (out of memory, invalid parameters) are recorded in
// the report and do not stop the replay. Trace errors (unknown or duplicate
// ids), overlapping or clobbered allocations and invariant violations stop
// it with an error naming the trace line; the report up to that point is
// returned alongside.
func Replay(ctx context.Context, m *Machine, ops []trace.Op, opts Options) (*Report, error) {
	r := &replayer{
		m:      m,
		opts:   opts,
		bytes:  make(map[string]allocation),
		pages:  make(map[string]allocation),
		failed: make(map[string]bool),
		touch:  newFootprint(uintptr(m.Profile().PageSize)),
		report: newReport(m),
	}
	r.opts.Check = r.opts.Check || m.Profile().Check

	for i, op := range ops {
		select {
		case <-ctx.Done():
			return r.finish(), ctx.Err()
		default:
		}

		if err := r.step(op); err != nil {
			return r.finish(), fmt.Errorf("line %d: %s: %w", op.Line, op, err)
		}
		r.report.Ops++
		if r.opts.Check && op.Kind != trace.OpCheck {
			if err := r.check(); err != nil {
				return r.finish(), fmt.Errorf("line %d: %s: %w", op.Line, op, err)
			}
		}
		if used := m.Bytes().UsedBytes(); used > r.report.PeakUsed {
			r.report.PeakUsed = used
		}
		if r.opts.Progress != nil {
			r.opts.Progress(i + 1)
		}
	}
	return r.finish(), nil
}

func (r *replayer) step(op trace.Op) error {
	switch op.Kind {
	case trace.OpAlloc:
		return r.alloc(op)
	case trace.OpFree:
		return r.free(op)
	case trace.OpPages:
		return r.allocPages(op)
	case trace.OpFreePages:
		return r.freePages(op)
	case trace.OpGrow:
		if err := r.m.Grow(op.Size); err != nil {
			return err
		}
		r.report.Grows++
		return nil
	case trace.OpCheck:
		r.report.Checks++
		return r.check()
	default:
		return fmt.Errorf("unsupported operation %s", op.Kind)
	}
}

func (r *replayer) alloc(op trace.Op) error {
	if _, ok := r.bytes[op.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, op.ID)
	}
	align := op.Align
	if align == 0 {
		align = trace.DefaultAlign
	}

	addr, err := r.m.Bytes().Alloc(op.Size, align)
	if err != nil {
		if errors.Is(err, alloc.ErrOutOfMemory) || errors.Is(err, alloc.ErrInvalidParameter) {
			r.report.FailedAllocs++
			r.fail(op, err)
			return nil
		}
		return err
	}
	delete(r.failed, op.ID)

	if other, ok := r.live.insert(interval{start: addr, end: addr + op.Size, id: op.ID}); !ok {
		return fmt.Errorf("%w: [%#x, +%d) and %s", ErrOverlap, addr, op.Size, other)
	}
	a := allocation{addr: addr, size: op.Size, align: align}
	if r.opts.Verify {
		r.seq++
		a.fill = byte(r.seq%255 + 1)
		if err := r.m.Space().Fill(addr, op.Size, a.fill); err != nil {
			return err
		}
	}
	r.bytes[op.ID] = a
	r.touch.add(addr, op.Size)
	r.report.Allocs++
	return nil
}

func (r *replayer) free(op trace.Op) error {
	a, ok := r.bytes[op.ID]
	if !ok {
		if r.failed[op.ID] {
			delete(r.failed, op.ID)
			r.report.SkippedFrees++
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownID, op.ID)
	}
	if r.opts.Verify {
		if err := r.verify(a); err != nil {
			return err
		}
	}
	if err := r.m.Bytes().Dealloc(a.addr, a.size, a.align); err != nil {
		return err
	}
	r.live.remove(a.addr)
	delete(r.bytes, op.ID)
	r.report.Frees++
	return nil
}

func (r *replayer) allocPages(op trace.Op) error {
	pa := r.m.Pages()
	if pa == nil {
		return ErrNoPages
	}
	if _, ok := r.pages[op.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, op.ID)
	}
	align := op.Align
	if align == 0 {
		align = pa.PageSize()
	}

	addr, err := pa.AllocPages(op.Count, align)
	if err != nil {
		if errors.Is(err, alloc.ErrOutOfMemory) || errors.Is(err, alloc.ErrInvalidParameter) {
			r.report.FailedPageAllocs++
			r.fail(op, err)
			return nil
		}
		return err
	}
	delete(r.failed, op.ID)

	end := addr + op.Count*pa.PageSize()
	if other, ok := r.live.insert(interval{start: addr, end: end, id: op.ID}); !ok {
		return fmt.Errorf("%w: pages [%#x, %#x) and %s", ErrOverlap, addr, end, other)
	}
	r.pages[op.ID] = allocation{addr: addr, size: op.Count, align: align}
	r.touch.add(addr, end-addr)
	r.report.PageAllocs++
	return nil
}

func (r *replayer) freePages(op trace.Op) error {
	pa := r.m.Pages()
	if pa == nil {
		return ErrNoPages
	}
	a, ok := r.pages[op.ID]
	if !ok {
		if r.failed[op.ID] {
			delete(r.failed, op.ID)
			r.report.SkippedFrees++
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownID, op.ID)
	}

	// Only the top of the page stack is reclaimed; other runs stay in use.
	before := pa.UsedPages()
	pa.DeallocPages(a.addr, a.size)
	if pa.UsedPages() == before {
		r.report.IgnoredPageFrees++
		logger.Debug("page free ignored", "line", op.Line, "id", op.ID)
	} else {
		r.live.remove(a.addr)
	}
	delete(r.pages, op.ID)
	r.report.PageFrees++
	return nil
}

// verify checks that a still holds its fill pattern.
func (r *replayer) verify(a allocation) error {
	var off uintptr
	return r.m.Space().Range(a.addr, a.size, func(chunk []byte) error {
		for i, b := range chunk {
			if b != a.fill {
				return fmt.Errorf("%w: byte %#x is %#x, want %#x", ErrClobbered, a.addr+off+uintptr(i), b, a.fill)
			}
		}
		off += uintptr(len(chunk))
		return nil
	})
}

// check validates the allocator and its accounting.
func (r *replayer) check() error {
	if err := r.m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	b := r.m.Bytes()
	total, used, avail := b.TotalBytes(), b.UsedBytes(), b.AvailableBytes()
	if used > total || total-used != avail {
		return fmt.Errorf("%w: total %d, used %d, available %d", ErrInvariant, total, used, avail)
	}
	return nil
}

func (r *replayer) fail(op trace.Op, err error) {
	r.failed[op.ID] = true
	logger.Debug("replay allocation failed", "line", op.Line, "op", op.String(), "err", err)
	if len(r.report.Failures) < maxFailures {
		r.report.Failures = append(r.report.Failures, Failure{Line: op.Line, Op: op.String(), Err: err.Error()})
	}
}

func (r *replayer) finish() *Report {
	r.report.LiveAllocs = len(r.bytes)
	r.report.LivePages = 0
	for _, a := range r.pages {
		r.report.LivePages += int(a.size)
	}
	r.report.TouchedPages = r.touch.pages()
	r.report.Footprint = r.touch.coalesce()
	r.report.fill(r.m)
	return r.report
}
