// Package planner implements the per-resource temporal availability oracle
// (spec.md §4.1, the "Planner P") and its multi-type sibling, the
// multi-planner (§4.2, "P*"). A Planner tracks, over a half-open window
// [base_time, base_time+duration), how much of a single integer quantity is
// booked at every instant, as a set of (start, len, req) spans.
package planner

import (
	"sort"
	"sync"

	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// Span is a single booked interval. ID is opaque and unique across the
// owning Planner's lifetime (spec.md §4.1).
type Span struct {
	ID    int64
	Start int64
	Len   int64
	Req   uint64
}

func (s Span) end() int64 { return s.Start + s.Len }

// Planner is a single-type availability timeline. It is not safe for
// concurrent use without external synchronization beyond the internal
// mutex, which only protects against a metrics scraper reading Spans()
// while a traversal mutates the planner (spec.md §5).
type Planner struct {
	mu sync.Mutex

	baseTime     int64
	duration     uint64
	total        uint64
	resourceType string

	spans      map[int64]*Span
	nextSpanID int64

	// avail_next cursor: the (on_or_after, duration, req) of the last
	// avail_first/avail_next call, and the last time point returned, so a
	// subsequent avail_next continues the same search.
	cursorSet      bool
	cursorDuration uint64
	cursorReq      uint64
	cursorLastT    int64
}

// New constructs a planner over [baseTime, baseTime+duration) tracking
// resourceType up to total units. Mirrors planner_new in the original
// implementation (resource/planner/c/planner.h).
func New(baseTime int64, duration uint64, total uint64, resourceType string) (*Planner, error) {
	if duration == 0 {
		return nil, rgerrors.New("planner.New", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "duration must be > 0")
	}
	return &Planner{
		baseTime:     baseTime,
		duration:     duration,
		total:        total,
		resourceType: resourceType,
		spans:        make(map[int64]*Span),
	}, nil
}

func (p *Planner) BaseTime() int64        { return p.baseTime }
func (p *Planner) Duration() uint64       { return p.duration }
func (p *Planner) Total() uint64          { return p.total }
func (p *Planner) ResourceType() string   { return p.resourceType }
func (p *Planner) end() int64             { return p.baseTime + int64(p.duration) }

func (p *Planner) validateWindow(t int64, d uint64) error {
	if d == 0 {
		return rgerrors.New("planner", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "duration must be > 0")
	}
	if t < p.baseTime {
		return rgerrors.New("planner", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "t precedes base_time")
	}
	if t+int64(d) > p.end() {
		return rgerrors.New("planner", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "window exceeds planner horizon")
	}
	return nil
}

// usedDuring returns the maximum simultaneously-booked quantity anywhere in
// [t, t+d), via a sweep over the breakpoints spans introduce in that
// window.
func (p *Planner) usedDuring(t int64, d int64) uint64 {
	end := t + d
	breakpoints := map[int64]struct{}{t: {}, end: {}}
	var overlapping []*Span
	for _, s := range p.spans {
		if s.Start < end && s.end() > t {
			overlapping = append(overlapping, s)
			if s.Start > t {
				breakpoints[s.Start] = struct{}{}
			}
			if s.end() < end {
				breakpoints[s.end()] = struct{}{}
			}
		}
	}
	if len(overlapping) == 0 {
		return 0
	}
	pts := make([]int64, 0, len(breakpoints))
	for pt := range breakpoints {
		pts = append(pts, pt)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })

	var maxUsed uint64
	for i := 0; i+1 <= len(pts)-1; i++ {
		mid := pts[i]
		var used uint64
		for _, s := range overlapping {
			if s.Start <= mid && s.end() > mid {
				used += s.Req
			}
		}
		if used > maxUsed {
			maxUsed = used
		}
	}
	return maxUsed
}

// AvailAt returns the free quantity at instant t.
func (p *Planner) AvailAt(t int64) (int64, error) {
	return p.AvailDuring(t, 1)
}

// AvailDuring returns the minimum free quantity across [t, t+d).
func (p *Planner) AvailDuring(t int64, d uint64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.validateWindow(t, d); err != nil {
		return -1, err
	}
	used := p.usedDuring(t, int64(d))
	return int64(p.total) - int64(used), nil
}

// eventPoints returns the sorted, de-duplicated set of span start/end
// points, the planner boundary, and onOrAfter — the only instants
// avail_first/avail_next may return, per spec.md §4.1: "t is taken from the
// set of event points ... no intermediate t is returned".
func (p *Planner) eventPoints(onOrAfter int64) []int64 {
	set := map[int64]struct{}{onOrAfter: {}, p.baseTime: {}, p.end(): {}}
	for _, s := range p.spans {
		set[s.Start] = struct{}{}
		set[s.end()] = struct{}{}
	}
	pts := make([]int64, 0, len(set))
	for pt := range set {
		if pt >= onOrAfter {
			pts = append(pts, pt)
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })
	return pts
}

// AvailFirst finds the earliest schedulable point on or after onOrAfter for
// a window of length d requesting req units, per spec.md §4.1.
func (p *Planner) AvailFirst(onOrAfter int64, d uint64, req uint64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d == 0 {
		return -1, rgerrors.New("planner.AvailFirst", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "duration must be > 0")
	}
	if req > p.total {
		return -1, rgerrors.New("planner.AvailFirst", rgerrors.OutOfRange, rgerrors.CodeERANGE, "req exceeds total")
	}
	for _, t := range p.eventPoints(onOrAfter) {
		if t+int64(d) > p.end() {
			continue
		}
		used := p.usedDuring(t, int64(d))
		if int64(p.total)-int64(used) >= int64(req) {
			p.cursorSet = true
			p.cursorDuration = d
			p.cursorReq = req
			p.cursorLastT = t
			return t, nil
		}
	}
	return -1, rgerrors.New("planner.AvailFirst", rgerrors.NotFound, rgerrors.CodeENOENT, "no schedulable point")
}

// AvailNext continues the previous AvailFirst search past the point it
// returned, per spec.md §4.1.
func (p *Planner) AvailNext() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cursorSet {
		return -1, rgerrors.New("planner.AvailNext", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "no prior AvailFirst search")
	}
	d, req := p.cursorDuration, p.cursorReq
	for _, t := range p.eventPoints(p.cursorLastT + 1) {
		if t+int64(d) > p.end() {
			continue
		}
		used := p.usedDuring(t, int64(d))
		if int64(p.total)-int64(used) >= int64(req) {
			p.cursorLastT = t
			return t, nil
		}
	}
	return -1, rgerrors.New("planner.AvailNext", rgerrors.NotFound, rgerrors.CodeENOENT, "no further schedulable point")
}

// AddSpan books req units over [t, t+d), returning the new span's id.
func (p *Planner) AddSpan(t int64, d uint64, req uint64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.validateWindow(t, d); err != nil {
		return -1, err
	}
	used := p.usedDuring(t, int64(d))
	if int64(p.total)-int64(used) < int64(req) {
		return -1, rgerrors.New("planner.AddSpan", rgerrors.OutOfRange, rgerrors.CodeERANGE, "insufficient availability")
	}
	p.nextSpanID++
	id := p.nextSpanID
	p.spans[id] = &Span{ID: id, Start: t, Len: int64(d), Req: req}
	p.cursorSet = false
	return id, nil
}

// addSpanWithID is used by MultiPlanner to keep a single span id space
// shared across its k underlying planners.
func (p *Planner) addSpanWithID(id, t int64, d uint64, req uint64) error {
	if err := p.validateWindow(t, d); err != nil {
		return err
	}
	used := p.usedDuring(t, int64(d))
	if int64(p.total)-int64(used) < int64(req) {
		return rgerrors.New("planner.AddSpan", rgerrors.OutOfRange, rgerrors.CodeERANGE, "insufficient availability")
	}
	p.spans[id] = &Span{ID: id, Start: t, Len: int64(d), Req: req}
	p.cursorSet = false
	return nil
}

// RemSpan removes the span with the given id.
func (p *Planner) RemSpan(id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.spans[id]; !ok {
		return rgerrors.New("planner.RemSpan", rgerrors.NotFound, rgerrors.CodeENOENT, "no such span")
	}
	delete(p.spans, id)
	p.cursorSet = false
	return nil
}

// ReduceSpan shrinks the span's req by delta, removing it if the result
// reaches zero. removed reports whether the span was removed.
func (p *Planner) ReduceSpan(id int64, delta uint64) (removed bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.spans[id]
	if !ok {
		return false, rgerrors.New("planner.ReduceSpan", rgerrors.NotFound, rgerrors.CodeENOENT, "no such span")
	}
	if delta >= s.Req {
		delete(p.spans, id)
		p.cursorSet = false
		return true, nil
	}
	s.Req -= delta
	return false, nil
}

// UpdateTotal changes the planner's total capacity, failing if any instant
// is already booked above new_total.
func (p *Planner) UpdateTotal(newTotal uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.spans {
		used := p.usedDuring(s.Start, s.Len)
		if used > newTotal {
			return rgerrors.New("planner.UpdateTotal", rgerrors.OutOfRange, rgerrors.CodeERANGE, "existing usage exceeds new total")
		}
	}
	p.total = newTotal
	return nil
}

// Spans returns the planner's spans ordered by id, for equality checks and
// the RLITE/JGF emitters' utilization reporting.
func (p *Planner) Spans() []Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Span, 0, len(p.spans))
	for _, s := range p.spans {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Span looks up a single span by id.
func (p *Planner) Span(id int64) (Span, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.spans[id]
	if !ok {
		return Span{}, false
	}
	return *s, true
}

// Copy returns a deep copy of the planner.
func (p *Planner) Copy() *Planner {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := &Planner{
		baseTime:     p.baseTime,
		duration:     p.duration,
		total:        p.total,
		resourceType: p.resourceType,
		spans:        make(map[int64]*Span, len(p.spans)),
		nextSpanID:   p.nextSpanID,
	}
	for id, s := range p.spans {
		clone := *s
		cp.spans[id] = &clone
	}
	return cp
}

// Assign clobbers lhs's spans with a deep copy of rhs's, keeping rhs's
// base_time/duration/total/resource_type too, per spec.md §4.1.
func (p *Planner) Assign(rhs *Planner) {
	rhs.mu.Lock()
	defer rhs.mu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseTime = rhs.baseTime
	p.duration = rhs.duration
	p.total = rhs.total
	p.resourceType = rhs.resourceType
	p.spans = make(map[int64]*Span, len(rhs.spans))
	for id, s := range rhs.spans {
		clone := *s
		p.spans[id] = &clone
	}
	p.nextSpanID = rhs.nextSpanID
	p.cursorSet = false
}

// Equal reports whether two planners have the same base_time, duration,
// total, resource_type, and ordered multiset of spans (by id).
func (p *Planner) Equal(other *Planner) bool {
	if p.baseTime != other.baseTime || p.duration != other.duration ||
		p.total != other.total || p.resourceType != other.resourceType {
		return false
	}
	a, b := p.Spans(), other.Spans()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
