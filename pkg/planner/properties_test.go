package planner

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPlannerInvariants checks the quantified invariants from spec.md §8:
// avail_during(t,d) never exceeds total, and a successful add_span reduces
// avail_during by exactly req.
func TestPlannerInvariants(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("AvailDuringNeverExceedsTotal", prop.ForAll(
		func(total uint64, req uint64, start int64) bool {
			p, err := New(0, 10000, total, "core")
			if err != nil {
				return false
			}
			if req > total {
				return true // add_span is expected to fail; nothing to check
			}
			if _, err := p.AddSpan(start, 10, req); err != nil {
				return true
			}
			avail, err := p.AvailDuring(start, 10)
			if err != nil {
				return false
			}
			return avail >= 0 && avail <= int64(total)
		},
		gen.UInt64Range(1, 100),
		gen.UInt64Range(0, 100),
		gen.Int64Range(0, 5000),
	))

	properties.Property("AddSpanReducesAvailByReq", prop.ForAll(
		func(total uint64, req uint64) bool {
			if req == 0 || req > total {
				return true
			}
			p, err := New(0, 1000, total, "core")
			if err != nil {
				return false
			}
			before, err := p.AvailDuring(0, 10)
			if err != nil {
				return false
			}
			if _, err := p.AddSpan(0, 10, req); err != nil {
				return false
			}
			after, err := p.AvailDuring(0, 10)
			if err != nil {
				return false
			}
			return before-after == int64(req)
		},
		gen.UInt64Range(1, 50),
		gen.UInt64Range(1, 50),
	))

	properties.TestingRun(t)
}
