package traverser

import (
	"github.com/khryptorgraphics/gridmatch/pkg/graph"
)

// View is the effective per-vertex state Find's predicates evaluate
// against: the vertex's own fields, overridden by whatever its ancestors
// forced downward (spec.md §4.6.6: "a down parent forces children down,
// an allocated parent forces children allocated").
type View struct {
	Vertex    *graph.Vertex
	Status    graph.Status
	Allocated map[string]struct{} // jobids holding an allocation here, own or inherited
}

// Predicate is one leaf or combinator in a find() criteria expression.
type Predicate func(v View) bool

// StatusIs matches a vertex (after override propagation) in the given
// administrative status.
func StatusIs(want graph.Status) Predicate {
	return func(v View) bool { return v.Status == want }
}

// JobAllocated matches a vertex holding (directly or via an ancestor's
// override) an allocation for jobid.
func JobAllocated(jobid string) Predicate {
	return func(v View) bool {
		_, ok := v.Allocated[jobid]
		return ok
	}
}

// SchedNow matches a vertex currently booked at instant at.
func SchedNow(at int64) Predicate {
	return func(v View) bool {
		if v.Vertex.Schedule.Plans == nil {
			return false
		}
		avail, err := v.Vertex.Schedule.Plans.AvailAt(at)
		return err == nil && uint64(avail) < v.Vertex.Schedule.Plans.Total()
	}
}

// SchedFuture matches a vertex with any booking anywhere in its plan's
// remaining horizon past at.
func SchedFuture(at int64) Predicate {
	return func(v View) bool {
		p := v.Vertex.Schedule.Plans
		if p == nil {
			return false
		}
		horizon := p.BaseTime() + int64(p.Duration())
		for t := at; t < horizon; t++ {
			avail, err := p.AvailAt(t)
			if err == nil && uint64(avail) < p.Total() {
				return true
			}
		}
		return false
	}
}

// And matches when every predicate matches.
func And(ps ...Predicate) Predicate {
	return func(v View) bool {
		for _, p := range ps {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches.
func Or(ps ...Predicate) Predicate {
	return func(v View) bool {
		for _, p := range ps {
			if p(v) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(v View) bool { return !p(v) }
}

// Find performs a DFV over root, emitting into w every vertex whose
// effective view matches pred, or that has a matching descendant (spec.md
// §4.6.6). Parental overrides — a down ancestor, or an allocated-for-jobid
// ancestor — propagate into every descendant's View before pred runs.
func (t *Traverser) Find(root *graph.Vertex, pred Predicate, w Writer) error {
	t.tick()
	_, err := t.findVertex(root, View{Status: graph.Up, Allocated: map[string]struct{}{}}, pred, w)
	return err
}

func (t *Traverser) findVertex(v *graph.Vertex, parent View, pred Predicate, w Writer) (bool, error) {
	status := v.Status
	if parent.Status != graph.Up {
		status = parent.Status
	}
	view := View{Vertex: v, Status: status, Allocated: mergeAllocated(parent.Allocated, v.IData.Tags)}

	childMatched := false
	for _, e := range v.Out {
		if e.Subsystem != DominantSubsystem {
			continue
		}
		m, err := t.findVertex(e.Target, view, pred, w)
		if err != nil {
			return false, err
		}
		if m {
			childMatched = true
		}
	}

	if pred(view) || childMatched {
		if w != nil {
			w.Vertex(v, "", 0, false)
		}
		return true, nil
	}
	return false, nil
}

func mergeAllocated(parent, own map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(parent)+len(own))
	for k := range parent {
		out[k] = struct{}{}
	}
	for k := range own {
		out[k] = struct{}{}
	}
	return out
}
