package trace

import (
	"math/rand"
	"strconv"
)

// GenOptions configures Generate.
type GenOptions struct {
	Seed int64 // rand seed, equal seeds give equal traces
	Ops  int   // number of operations to emit

	// MaxSize bounds random alloc sizes. Default: 4096
	MaxSize uintptr

	// HotSizes are picked for half of the allocations when non-empty.
	HotSizes []uintptr

	// FreeRatio is the share of steps that free a live allocation. Default: 0.4
	FreeRatio float64

	// Pages mixes page runs into the trace. Page frees are emitted in
	// reverse allocation order.
	Pages bool

	// CheckEvery inserts a check after every n operations. 0 disables.
	CheckEvery int
}

// Generate produces a random but reproducible trace. Every free refers to a
// live allocation, and everything still live at the end is freed.
func Generate(opts GenOptions) []Op {
	if opts.MaxSize == 0 {
		opts.MaxSize = 4096
	}
	if opts.FreeRatio <= 0 || opts.FreeRatio >= 1 {
		opts.FreeRatio = 0.4
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var (
		ops     []Op
		live    []string
		runs    []string
		nextID  int
		emitted int
	)
	newID := func(prefix string) string {
		nextID++
		return prefix + strconv.Itoa(nextID)
	}
	emit := func(op Op) {
		ops = append(ops, op)
		emitted++
		if opts.CheckEvery > 0 && emitted%opts.CheckEvery == 0 {
			ops = append(ops, Op{Kind: OpCheck})
		}
	}

	for range opts.Ops {
		r := rng.Float64()
		switch {
		case r < opts.FreeRatio && len(live) > 0:
			i := rng.Intn(len(live))
			emit(Op{Kind: OpFree, ID: live[i]})
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		case opts.Pages && r > 0.9 && len(runs) > 0 && rng.Intn(2) == 0:
			emit(Op{Kind: OpFreePages, ID: runs[len(runs)-1]})
			runs = runs[:len(runs)-1]
		case opts.Pages && r > 0.9:
			id := newID("p")
			emit(Op{Kind: OpPages, ID: id, Count: uintptr(1 + rng.Intn(4))})
			runs = append(runs, id)
		default:
			size := uintptr(1 + rng.Int63n(int64(opts.MaxSize)))
			if len(opts.HotSizes) > 0 && rng.Intn(2) == 0 {
				size = opts.HotSizes[rng.Intn(len(opts.HotSizes))]
			}
			id := newID("a")
			emit(Op{Kind: OpAlloc, ID: id, Size: size})
			live = append(live, id)
		}
	}

	for _, id := range live {
		emit(Op{Kind: OpFree, ID: id})
	}
	for i := len(runs) - 1; i >= 0; i-- {
		emit(Op{Kind: OpFreePages, ID: runs[i]})
	}
	if opts.CheckEvery > 0 {
		ops = append(ops, Op{Kind: OpCheck})
	}
	return ops
}
