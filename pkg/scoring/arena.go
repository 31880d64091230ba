// Package scoring implements the scoring arena (spec.md §4.3, "S"): the
// mutable per-traversal structure that accumulates candidate edge-groups,
// keyed by (subsystem, resource-type), and supports choose_best_k /
// accum_best_k / iteration.
//
// EdgeGroup is generic over the edge-reference type so this package doesn't
// need to import the graph package (an EdgeGroup just needs to carry
// whatever a caller uses to identify an out-edge — graph.EdgeIndex in this
// module).
package scoring

import (
	"sort"
	"sync"

	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// Key identifies one scoring bucket: a (subsystem, resource type) pair.
type Key struct {
	Subsystem string
	Type      string
}

// EdgeGroup is a scorable unit: a contiguous matching subtree under Root,
// reached via Edges, worth Score, able to supply Count matching units.
// Needs/Exclusive are filled in by ChooseBestK for the groups it selects.
type EdgeGroup[E any] struct {
	Score     float64
	Count     int
	Needs     int
	Exclusive bool
	Root      int64
	Edges     []E
}

// EvalGroups is the per-key bucket: every candidate group seen so far, plus
// the running counters and the last choose_best_k/accum_best_k result.
type EvalGroups[E any] struct {
	Groups            []EdgeGroup[E]
	Cutline           float64
	QualifiedCount    int
	TotalCount        int
	QualifiedGranules int
	BestK             int
	BestI             int
}

// Comparator orders two groups for choose_best_k: Comparator(a, b) reports
// whether a should be preferred over (sorted ahead of) b.
type Comparator[E any] func(a, b EdgeGroup[E]) bool

// GreaterScore prefers the higher-scoring group.
func GreaterScore[E any]() Comparator[E] {
	return func(a, b EdgeGroup[E]) bool { return a.Score > b.Score }
}

// LessScore prefers the lower-scoring group.
func LessScore[E any]() Comparator[E] {
	return func(a, b EdgeGroup[E]) bool { return a.Score < b.Score }
}

// ByInterval buckets scores into half-open intervals of the given width
// before comparing, so near-equal scores are treated as equivalent — used
// to avoid over-discriminating between candidates whose scores differ only
// by noise. asc selects ascending vs. descending interval order.
func ByInterval[E any](width float64, asc bool) Comparator[E] {
	bucket := func(s float64) int64 {
		if width <= 0 {
			return int64(s)
		}
		return int64(s / width)
	}
	return func(a, b EdgeGroup[E]) bool {
		ba, bb := bucket(a.Score), bucket(b.Score)
		if asc {
			return ba < bb
		}
		return ba > bb
	}
}

// Plus is the default accum_best_k aggregator: arithmetic sum of scores.
func Plus(acc, score float64) float64 { return acc + score }

// Arena is the scoring structure for one traversal, keyed by
// (subsystem, type).
type Arena[E any] struct {
	mu     sync.Mutex
	groups map[Key]*EvalGroups[E]
}

// New returns an empty arena.
func New[E any]() *Arena[E] {
	return &Arena[E]{groups: make(map[Key]*EvalGroups[E])}
}

func (a *Arena[E]) bucket(key Key) *EvalGroups[E] {
	eg, ok := a.groups[key]
	if !ok {
		eg = &EvalGroups[E]{}
		a.groups[key] = eg
	}
	return eg
}

// Add appends eg to key's bucket and updates its running counters. If
// eg.Score is above the bucket's cutline, eg.Count is folded into
// qualified_count.
func (a *Arena[E]) Add(key Key, eg EdgeGroup[E]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.bucket(key)
	b.Groups = append(b.Groups, eg)
	b.TotalCount += eg.Count
	if eg.Score > b.Cutline {
		b.QualifiedCount += eg.Count
	}
}

// SetCutline sets the score threshold above which a group's count folds
// into qualified_count on subsequent Add calls.
func (a *Arena[E]) SetCutline(key Key, cutline float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bucket(key).Cutline = cutline
}

// Get returns the bucket for key (nil if absent) for read-only inspection.
func (a *Arena[E]) Get(key Key) *EvalGroups[E] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.groups[key]
}

// Keys returns every key with a non-empty bucket.
func (a *Arena[E]) Keys() []Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]Key, 0, len(a.groups))
	for k := range a.groups {
		keys = append(keys, k)
	}
	return keys
}

// ChooseBestK sorts key's groups by cmp, then walks the sorted prefix
// pulling k units by summing Count; each pulled group's Needs is set to
// exactly the number taken from it (the last, partially-pulled group gets
// the remainder). Records (BestK, BestI) — BestI is the number of groups
// touched (fully or partially).
func (a *Arena[E]) ChooseBestK(key Key, k int, cmp Comparator[E]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.bucket(key)
	sort.SliceStable(b.Groups, func(i, j int) bool { return cmp(b.Groups[i], b.Groups[j]) })

	remaining := k
	touched := 0
	for i := range b.Groups {
		if remaining <= 0 {
			b.Groups[i].Needs = 0
			continue
		}
		take := b.Groups[i].Count
		if take > remaining {
			take = remaining
		}
		b.Groups[i].Needs = take
		remaining -= take
		if take > 0 {
			touched = i + 1
		}
	}
	b.BestK = k - remaining
	b.BestI = touched
}

// AccumBestK reduces op over the first BestI selected groups (the result of
// the most recent ChooseBestK), starting from init.
func (a *Arena[E]) AccumBestK(key Key, op func(acc, score float64) float64, init float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.bucket(key)
	acc := init
	for i := 0; i < b.BestI && i < len(b.Groups); i++ {
		acc = op(acc, b.Groups[i].Score)
	}
	return acc
}

// Merge concatenates other's groups into this arena's bucket for key and
// sums their counters. Both arenas must share the key's subsystem+type,
// matching spec.md §4.3's "same subsystem+type required".
func (a *Arena[E]) Merge(key Key, other *EvalGroups[E]) error {
	if other == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.bucket(key)
	b.Groups = append(b.Groups, other.Groups...)
	b.QualifiedCount += other.QualifiedCount
	b.TotalCount += other.TotalCount
	b.QualifiedGranules += other.QualifiedGranules
	return nil
}

// MergeArena folds every bucket of other into this arena — used when a
// slot-local arena (§4.6.2 dom_slot) is folded back into a parent arena.
func (a *Arena[E]) MergeArena(other *Arena[E]) error {
	if other == nil {
		return nil
	}
	other.mu.Lock()
	snapshot := make(map[Key]*EvalGroups[E], len(other.groups))
	for k, v := range other.groups {
		snapshot[k] = v
	}
	other.mu.Unlock()

	for k, v := range snapshot {
		if err := a.Merge(k, v); err != nil {
			return rgerrors.Wrap("scoring.MergeArena", rgerrors.Internal, rgerrors.CodeEINTERNAL, err)
		}
	}
	return nil
}

// TotalCount returns key's bucket total_count (0 if the key is unseen), the
// quantity dynamic exploration's is_enough check (spec.md §4.6.2) compares
// against calc_effective_max.
func (a *Arena[E]) TotalCount(key Key) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.groups[key]
	if !ok {
		return 0
	}
	return b.TotalCount
}

// QualifiedCount returns key's bucket qualified_count.
func (a *Arena[E]) QualifiedCount(key Key) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.groups[key]
	if !ok {
		return 0
	}
	return b.QualifiedCount
}

// QualifiedGranules returns key's bucket qualified_granules.
func (a *Arena[E]) QualifiedGranules(key Key) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.groups[key]
	if !ok {
		return 0
	}
	return b.QualifiedGranules
}

// SetQualifiedGranules overrides key's bucket qualified_granules — used by
// dom_slot to record the qualified slot count alongside qualified_count.
func (a *Arena[E]) SetQualifiedGranules(key Key, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bucket(key).QualifiedGranules = n
}

// SelectedGroups returns the groups ChooseBestK selected for key (those
// with Needs > 0), in selection order.
func (a *Arena[E]) SelectedGroups(key Key) []EdgeGroup[E] {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.groups[key]
	if !ok {
		return nil
	}
	out := make([]EdgeGroup[E], 0, b.BestI)
	for i := 0; i < b.BestI && i < len(b.Groups); i++ {
		if b.Groups[i].Needs > 0 {
			out = append(out, b.Groups[i])
		}
	}
	return out
}
