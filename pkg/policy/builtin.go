package policy

import "github.com/khryptorgraphics/gridmatch/pkg/scoring"

// FirstFit is the simplest concrete policy: static out-edge exploration
// order, all candidates equally preferred (spec.md §9's "first-fit").
// stop_on_k_matches defaults to 0, so the traverser does not switch to
// dynamic exploration unless SetStopOnKMatches raises it.
type FirstFit struct{ Base }

// NewFirstFit returns a ready-to-use first-fit policy.
func NewFirstFit() *FirstFit { return &FirstFit{} }

// Comparator is stable-equal for every pair: ChooseBestK preserves the
// graph-storage order it was handed.
func (FirstFit) Comparator() scoring.Comparator[int64] {
	return func(scoring.EdgeGroup[int64], scoring.EdgeGroup[int64]) bool { return false }
}

// HighIDFirst prefers the candidate anchored at the highest uniq_id —
// spec.md §9's "high-ID first" example, useful for packing allocations
// toward one end of the inventory.
type HighIDFirst struct{ Base }

func NewHighIDFirst() *HighIDFirst { return &HighIDFirst{} }

func (HighIDFirst) Comparator() scoring.Comparator[int64] {
	return func(a, b scoring.EdgeGroup[int64]) bool { return a.Root > b.Root }
}

// LowScore prefers the lowest-scoring qualifying candidate — spec.md §9's
// "low-score" example, useful for draining lightly-loaded resources
// first rather than concentrating load.
type LowScore struct{ Base }

func NewLowScore() *LowScore { return &LowScore{} }

func (LowScore) Comparator() scoring.Comparator[int64] {
	return scoring.LessScore[int64]()
}
