package planner

import (
	"sync"

	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// MultiPlanner bundles k planners over the same [base_time, base_time+duration)
// window, one per tracked resource type, driven by a single span id space so
// a job occupies one coherent reservation across every tracked type
// (spec.md §4.2).
type MultiPlanner struct {
	mu sync.Mutex

	baseTime int64
	duration uint64
	types    []string
	planners []*Planner

	nextSpanID int64
}

// NewMulti constructs a multi-planner tracking the given types, each with
// its own total, over [baseTime, baseTime+duration).
func NewMulti(baseTime int64, duration uint64, types []string, totals []uint64) (*MultiPlanner, error) {
	if len(types) != len(totals) {
		return nil, rgerrors.New("planner.NewMulti", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "types/totals length mismatch")
	}
	mp := &MultiPlanner{baseTime: baseTime, duration: duration, types: append([]string(nil), types...)}
	for i, t := range types {
		p, err := New(baseTime, duration, totals[i], t)
		if err != nil {
			return nil, err
		}
		mp.planners = append(mp.planners, p)
	}
	return mp, nil
}

// Types returns the tracked types in the order declared at construction —
// the order AvailDuring/Aggregate's req slices must follow.
func (mp *MultiPlanner) Types() []string { return append([]string(nil), mp.types...) }

func (mp *MultiPlanner) indexOf(t string) int {
	for i, typ := range mp.types {
		if typ == t {
			return i
		}
	}
	return -1
}

// Planner returns the underlying single-type planner for resourceType, or
// nil if it isn't tracked.
func (mp *MultiPlanner) Planner(resourceType string) *Planner {
	i := mp.indexOf(resourceType)
	if i < 0 {
		return nil
	}
	return mp.planners[i]
}

// AvailDuring returns the largest integer multiplier n >= 0 such that every
// underlying planner has avail_during(t,d) >= n*req[i], or -1 if any
// req[i] exceeds that planner's total, per spec.md §4.2.
func (mp *MultiPlanner) AvailDuring(t int64, d uint64, req []uint64) (int64, error) {
	if len(req) != len(mp.planners) {
		return -1, rgerrors.New("planner.AvailDuring", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "req length mismatch")
	}
	best := int64(-1)
	for i, p := range mp.planners {
		if req[i] == 0 {
			continue
		}
		if req[i] > p.total {
			return -1, nil
		}
		avail, err := p.AvailDuring(t, d)
		if err != nil {
			return -1, err
		}
		n := avail / int64(req[i])
		if n < 0 {
			n = 0
		}
		if best == -1 || n < best {
			best = n
		}
	}
	if best == -1 {
		// every req[i] was 0: unconstrained, arbitrarily satisfiable.
		return 0, nil
	}
	return best, nil
}

// AddSpan atomically reserves req[i] on every underlying planner under one
// shared span id.
func (mp *MultiPlanner) AddSpan(t int64, d uint64, req []uint64) (int64, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if len(req) != len(mp.planners) {
		return -1, rgerrors.New("planner.AddSpan", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "req length mismatch")
	}
	mp.nextSpanID++
	id := mp.nextSpanID
	applied := make([]int, 0, len(mp.planners))
	for i, p := range mp.planners {
		if err := p.addSpanWithID(id, t, d, req[i]); err != nil {
			for _, j := range applied {
				mp.planners[j].RemSpan(id)
			}
			return -1, err
		}
		applied = append(applied, i)
	}
	return id, nil
}

// RemSpan removes the span with the given id from every underlying
// planner.
func (mp *MultiPlanner) RemSpan(id int64) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	var firstErr error
	removedAny := false
	for _, p := range mp.planners {
		if err := p.RemSpan(id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removedAny = true
	}
	if !removedAny {
		return firstErr
	}
	return nil
}

// ReduceSpan reduces each underlying span by delta[i]; when every
// underlying req reaches zero the span is removed and removed=true.
func (mp *MultiPlanner) ReduceSpan(id int64, delta []uint64) (removed bool, err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if len(delta) != len(mp.planners) {
		return false, rgerrors.New("planner.ReduceSpan", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "delta length mismatch")
	}
	allRemoved := true
	touched := false
	for i, p := range mp.planners {
		if delta[i] == 0 {
			if _, ok := p.Span(id); ok {
				allRemoved = false
			}
			continue
		}
		r, rerr := p.ReduceSpan(id, delta[i])
		if rerr != nil {
			return false, rerr
		}
		touched = true
		if !r {
			allRemoved = false
		}
	}
	if !touched {
		return false, nil
	}
	return allRemoved, nil
}

// Aggregate projects a user_data map (type -> requested count) down to the
// req slice this multi-planner's AvailDuring expects, in this planner's
// declared type order, per spec.md §4.6.2's prune rule: "aggregate selects
// from user_data those entries whose type is tracked by v.subplans[s] in
// the order declared by that P*".
func (mp *MultiPlanner) Aggregate(userData map[string]uint64) []uint64 {
	out := make([]uint64, len(mp.types))
	for i, t := range mp.types {
		out[i] = userData[t]
	}
	return out
}

// Totals returns the per-type totals in declared order.
func (mp *MultiPlanner) Totals() []uint64 {
	out := make([]uint64, len(mp.planners))
	for i, p := range mp.planners {
		out[i] = p.Total()
	}
	return out
}

// BaseTime and Duration report the shared timeline.
func (mp *MultiPlanner) BaseTime() int64  { return mp.baseTime }
func (mp *MultiPlanner) Duration() uint64 { return mp.duration }
