package sim

import (
	"github.com/joshuapare/kalloc/alloc"
)

// Failure is one allocation request the allocator refused.
type Failure struct {
	Line int    `json:"line"`
	Op   string `json:"op"`
	Err  string `json:"error"`
}

// Report summarizes a replay.
type Report struct {
	Profile   string `json:"profile"`
	Allocator string `json:"allocator"`

	Ops              int `json:"ops"`
	Allocs           int `json:"allocs"`
	Frees            int `json:"frees"`
	FailedAllocs     int `json:"failed_allocs"`
	SkippedFrees     int `json:"skipped_frees"`
	PageAllocs       int `json:"page_allocs"`
	PageFrees        int `json:"page_frees"`
	FailedPageAllocs int `json:"failed_page_allocs"`
	IgnoredPageFrees int `json:"ignored_page_frees"`
	Grows            int `json:"grows"`
	Checks           int `json:"checks"`

	TotalBytes     uintptr `json:"total_bytes"`
	UsedBytes      uintptr `json:"used_bytes"`
	AvailableBytes uintptr `json:"available_bytes"`
	PeakUsed       uintptr `json:"peak_used_bytes"`

	PageSize       uintptr `json:"page_size,omitempty"`
	TotalPages     uintptr `json:"total_pages,omitempty"`
	UsedPages      uintptr `json:"used_pages,omitempty"`
	AvailablePages uintptr `json:"available_pages,omitempty"`

	LiveAllocs int `json:"live_allocs"`
	LivePages  int `json:"live_pages"`

	// TouchedPages counts the distinct pages any allocation ever covered.
	TouchedPages uintptr `json:"touched_pages"`
	Footprint    []Range `json:"footprint,omitempty"`

	Stats    alloc.Stats       `json:"stats"`
	Pools    []alloc.PoolStats `json:"pools,omitempty"`
	Failures []Failure         `json:"failures,omitempty"`
}

func newReport(m *Machine) *Report {
	p := m.Profile()
	return &Report{
		Profile:   p.Name,
		Allocator: string(p.Allocator),
	}
}

// fill copies the machine's current accounting into the report.
func (r *Report) fill(m *Machine) {
	b := m.Bytes()
	r.TotalBytes = b.TotalBytes()
	r.UsedBytes = b.UsedBytes()
	r.AvailableBytes = b.AvailableBytes()
	if r.UsedBytes > r.PeakUsed {
		r.PeakUsed = r.UsedBytes
	}
	if pa := m.Pages(); pa != nil {
		r.PageSize = pa.PageSize()
		r.TotalPages = pa.TotalPages()
		r.UsedPages = pa.UsedPages()
		r.AvailablePages = pa.AvailablePages()
	}
	r.Stats = m.Stats()
	r.Pools = m.PoolStats()
}

// PoolHitRate returns the share of catalog-size requests served from a
// class, or 0 when there were none.
func (r *Report) PoolHitRate() float64 {
	var req, hits int
	for _, p := range r.Pools {
		req += p.Requests
		hits += p.Hits
	}
	if req == 0 {
		return 0
	}
	return float64(hits) / float64(req)
}
