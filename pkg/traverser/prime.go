// Package traverser implements the DFU traverser (spec.md §4.6, "T"):
// priming, selection (read-only matching), update (mutating commit),
// cancellation, and status/subgraph mutation, orchestrating the planner,
// scoring arena, pruning-filter registry, match policy, and constraint
// evaluator packages.
//
// Grounded on original_source/resource/traversers/dfu_impl.cpp (the DFV
// walk structure, prime/select/update phase split) and
// dfu_impl_update.cpp (the mutating second pass and undo-on-failure
// behavior), translated from its recursive-descent C++ shape into Go
// methods on *Traverser holding the traversal's transient state, and on
// the teacher's `Engine`/visitor style for wiring subsystems together.
package traverser

import (
	"github.com/khryptorgraphics/gridmatch/pkg/filter"
	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/jobspec"
	"github.com/khryptorgraphics/gridmatch/pkg/planner"
	"github.com/khryptorgraphics/gridmatch/pkg/policy"
	"github.com/khryptorgraphics/gridmatch/pkg/rglog"
)

// XCheckerNJobs is the exclusivity-counter planner's total, large enough
// that avail_during never legitimately exhausts it except via exclusive
// holds (spec.md §3, X_CHECKER_NJOBS).
const XCheckerNJobs = 1 << 30

// DominantSubsystem is the subsystem name the traverser walks for DFV —
// all the other subsystems it knows about are auxiliary (aux_discover_vtx
// etc.).
const DominantSubsystem = "containment"

// Traverser orchestrates one policy against one resource graph. It is not
// safe for concurrent Select/Update/Remove calls against the same
// instance, matching spec.md §5's single-threaded-per-instance model.
type Traverser struct {
	Root     *graph.Vertex
	Policy   policy.Policy
	Filters  *filter.Registry
	Excl     *policy.ExclusivityRegistry
	log      *rglog.Logger
	colorGen uint64 // bumped by each PrimeGraph call, backing invariant I7
	bestKCnt uint64 // m_best_k_cnt
}

// New constructs a traverser over root driven by p, using filters to
// decide where P* instances anchor.
func New(root *graph.Vertex, p policy.Policy, filters *filter.Registry) *Traverser {
	return &Traverser{
		Root:    root,
		Policy:  p,
		Filters: filters,
		Excl:    policy.NewExclusivityRegistry(),
		log:     rglog.Nop().Component("traverser"),
	}
}

// tick bumps the best-k generation counter; Select, Find, Update, Remove
// and PartialCancel each call it once (spec.md §4.6.2, "m_best_k_cnt
// increments at each tick()"). No per-vertex state is keyed on it.
func (t *Traverser) tick() uint64 {
	t.bestKCnt++
	return t.bestKCnt
}

// PrimeGraph computes, for every vertex under root whose subsystem has a
// configured filter, the descendant-size aggregate per tracked type and
// installs or refreshes v.idata.subplans[s] as a P* over those totals
// (spec.md §4.6.1 "graph priming"). Must run once before the first
// Select call and again whenever the graph's capacity changes.
func (t *Traverser) PrimeGraph(baseTime int64, duration uint64) error {
	t.colorGen++
	_, err := t.primeVertex(t.Root, t.colorGen, baseTime, duration)
	return err
}

// primeVertex returns the per-type size aggregate of v's subtree
// (including v itself), recursing over out-edges in the dominant
// subsystem and installing subplans where the filter registry says v is
// a tracked anchor.
func (t *Traverser) primeVertex(v *graph.Vertex, gen uint64, baseTime int64, duration uint64) (map[string]uint64, error) {
	color := v.IData.ColorFor(DominantSubsystem)
	if color.Black(gen) {
		// already primed this generation; still need its aggregate for the
		// parent, but don't re-walk its subtree.
		return map[string]uint64{v.Type: v.Size}, nil
	}
	color.SetGray(gen)

	agg := map[string]uint64{v.Type: v.Size}
	for _, e := range v.Out {
		if e.Subsystem != DominantSubsystem {
			continue
		}
		childAgg, err := t.primeVertex(e.Target, gen, baseTime, duration)
		if err != nil {
			return nil, err
		}
		for typ, n := range childAgg {
			agg[typ] += n
		}
	}

	if t.Filters != nil {
		if err := t.installSubplan(v, agg, baseTime, duration); err != nil {
			return nil, err
		}
	}

	color.SetBlack(gen)
	return agg, nil
}

func (t *Traverser) installSubplan(v *graph.Vertex, agg map[string]uint64, baseTime int64, duration uint64) error {
	tracked, ok := t.Filters.GetMyPruningTypes(DominantSubsystem, v.Type)
	if !ok || len(tracked) == 0 {
		return nil
	}
	var types []string
	var totals []uint64
	for _, typ := range tracked {
		n, ok := agg[typ]
		if !ok {
			continue
		}
		types = append(types, typ)
		totals = append(totals, n)
	}
	if len(types) == 0 {
		return nil
	}
	mp, err := planner.NewMulti(baseTime, duration, types, totals)
	if err != nil {
		return err
	}
	if v.IData.Subplans == nil {
		v.IData.Subplans = make(map[string]*planner.MultiPlanner)
	}
	v.IData.Subplans[DominantSubsystem] = mp
	return nil
}

// UserData is the jobspec-priming aggregate: per requested type, the
// accumulated min-count across a resource subtree, used by prune's
// aggregate(r.user_data) step (spec.md §4.6.1, §4.6.2).
type UserData map[string]int64

// PrimeJobspec aggregates min-counts over res's subtree into UserData and
// registers any exclusive=true types against excl (spec.md §4.6.1
// "jobspec priming").
func PrimeJobspec(res jobspec.Resource, excl *policy.ExclusivityRegistry) UserData {
	out := UserData{res.Type: res.Count.Min}
	if res.Exclusive && excl != nil {
		excl.AddExclusiveResourceType(res.Type)
	}
	for _, child := range res.With {
		childData := PrimeJobspec(child, excl)
		for typ, n := range childData {
			out[typ] += n
		}
	}
	return out
}
