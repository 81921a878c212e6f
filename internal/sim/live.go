package sim

import (
	"slices"
)

// interval is one live range handed out by an allocator.
type interval struct {
	start uintptr
	end   uintptr
	id    string
}

// liveSet keeps live intervals sorted by start for O(log n) overlap checks.
type liveSet struct {
	items []interval
}

func (s *liveSet) search(start uintptr) (int, bool) {
	return slices.BinarySearchFunc(s.items, start, func(iv interval, t uintptr) int {
		switch {
		case iv.start < t:
			return -1
		case iv.start > t:
			return 1
		}
		return 0
	})
}

// insert adds iv. It returns the id of a live interval it overlaps and
// leaves the set unchanged in that case.
func (s *liveSet) insert(iv interval) (string, bool) {
	i, found := s.search(iv.start)
	if found {
		return s.items[i].id, false
	}
	if i > 0 && s.items[i-1].end > iv.start {
		return s.items[i-1].id, false
	}
	if i < len(s.items) && s.items[i].start < iv.end {
		return s.items[i].id, false
	}
	s.items = slices.Insert(s.items, i, iv)
	return "", true
}

// remove deletes the interval starting at start.
func (s *liveSet) remove(start uintptr) {
	if i, found := s.search(start); found {
		s.items = slices.Delete(s.items, i, i+1)
	}
}
