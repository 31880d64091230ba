// Package policy implements the match policy (spec.md §4.5, "M"): the
// pluggable visitor callbacks the traverser invokes at preorder, slot
// boundaries, and postorder, plus the count arithmetic and exclusivity
// registry shared by every policy implementation.
//
// Grounded on spec.md §4.5's calc_count definition (no original_source
// file for matcher.cpp's policy arithmetic was included in the retrieval
// pack) and on the teacher's pluggable-strategy interfaces
// (pkg/scheduler's load-balancer strategy pattern) for the callback-table
// shape.
package policy

import (
	"github.com/khryptorgraphics/gridmatch/pkg/jobspec"
)

// VisitResult is the outcome a discover/finish callback reports back to
// the traverser.
type VisitResult int32

const (
	Continue VisitResult = 0
	Abort    VisitResult = -1
)

// Policy is the full callback table a traverser drives during select.
// Implementations customize scoring and early-exit behavior without
// touching the traversal mechanics themselves.
type Policy interface {
	DomDiscoverVtx(uniqID int64, subsystem string, resources []jobspec.Resource) VisitResult
	DomFinishVtx(uniqID int64, subsystem string, resources []jobspec.Resource, score float64) VisitResult
	DomFinishSlot(subsystem string, score float64) VisitResult
	DomFinishGraph(subsystem string, resources []jobspec.Resource, score float64) VisitResult

	AuxDiscoverVtx(uniqID int64, subsystem string, resources []jobspec.Resource) VisitResult
	AuxFinishVtx(uniqID int64, subsystem string, resources []jobspec.Resource, score float64) VisitResult

	StopOnKMatches() int64
	SetStopOnKMatches(k int64)
}

// Base implements the stop_on_k_matches knob and default no-op callbacks;
// concrete policies embed Base and override what they need, matching the
// teacher's embed-and-override strategy convention.
type Base struct {
	stopOnK int64
}

func (b *Base) StopOnKMatches() int64     { return b.stopOnK }
func (b *Base) SetStopOnKMatches(k int64) { b.stopOnK = k }

func (b *Base) DomDiscoverVtx(int64, string, []jobspec.Resource) VisitResult   { return Continue }
func (b *Base) DomFinishVtx(int64, string, []jobspec.Resource, float64) VisitResult {
	return Continue
}
func (b *Base) DomFinishSlot(string, float64) VisitResult                        { return Continue }
func (b *Base) DomFinishGraph(string, []jobspec.Resource, float64) VisitResult    { return Continue }
func (b *Base) AuxDiscoverVtx(int64, string, []jobspec.Resource) VisitResult      { return Continue }
func (b *Base) AuxFinishVtx(int64, string, []jobspec.Resource, float64) VisitResult {
	return Continue
}

// CalcCount implements calc_count (spec.md §4.5): given a resource's
// normalized count (min, max, operator, operand) and the qualified count
// qc actually available, returns how many units to take — 0 when the
// request can't be satisfied at all.
func CalcCount(c jobspec.Count, qc int64) int64 {
	if c.Min > c.Max {
		return 0
	}
	bound := c.Max
	if qc < bound {
		bound = qc
	}
	if c.Min > bound {
		return 0
	}

	switch c.Operator {
	case jobspec.OpAdd:
		if c.Operand <= 0 {
			return bound
		}
		rem := (bound - c.Min) % c.Operand
		return bound - rem
	case jobspec.OpMul:
		if c.Operand < 2 {
			return c.Min
		}
		n := c.Min
		for n*c.Operand <= bound {
			n *= c.Operand
		}
		return n
	case jobspec.OpPow:
		if c.Operand < 2 || c.Min == 1 {
			return c.Min
		}
		n := c.Min
		for {
			next := pow(n, c.Operand)
			if next > bound {
				break
			}
			n = next
		}
		return n
	default:
		return c.Min
	}
}

func pow(base, exp int64) int64 {
	if exp <= 0 {
		return 1
	}
	result := int64(1)
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

// CalcEffectiveMax returns the effective maximum a type request can be
// stretched to — calc_count against an unbounded qc, used by dynamic
// exploration's is_enough check and dom_slot's granule accounting.
func CalcEffectiveMax(c jobspec.Count) int64 {
	return CalcCount(c, c.Max)
}

// ExclusivityRegistry tracks which resource types are unconditionally
// exclusive (spec.md §4.5's add_exclusive_resource_type family).
type ExclusivityRegistry struct {
	types map[string]struct{}
}

// NewExclusivityRegistry returns an empty registry.
func NewExclusivityRegistry() *ExclusivityRegistry {
	return &ExclusivityRegistry{types: make(map[string]struct{})}
}

func (r *ExclusivityRegistry) AddExclusiveResourceType(t string) { r.types[t] = struct{}{} }

func (r *ExclusivityRegistry) IsResourceTypeExclusive(t string) bool {
	_, ok := r.types[t]
	return ok
}

func (r *ExclusivityRegistry) ResetExclusiveResourceTypes() {
	r.types = make(map[string]struct{})
}
