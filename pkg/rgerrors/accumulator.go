package rgerrors

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// VertexAccumulator collects per-vertex failures during a best-effort walk
// instead of aborting on the first one (traverser.Remove does the same
// with a multierror of its own),
// per spec.md §7: "remove is best-effort: it accumulates per-vertex errors
// and returns non-zero if any occurred".
type VertexAccumulator struct {
	errs *multierror.Error
}

// NewVertexAccumulator returns an empty accumulator.
func NewVertexAccumulator() *VertexAccumulator {
	return &VertexAccumulator{}
}

// Add records a failure for uniqID, wrapping it with the vertex identity so
// the eventual combined error names every vertex that failed.
func (a *VertexAccumulator) Add(uniqID int64, err error) {
	if err == nil {
		return
	}
	a.errs = multierror.Append(a.errs, fmt.Errorf("vertex %d: %w", uniqID, err))
}

// Err returns nil if nothing was recorded, else the combined multierror.
func (a *VertexAccumulator) Err() error {
	if a.errs == nil || len(a.errs.Errors) == 0 {
		return nil
	}
	return a.errs.ErrorOrNil()
}

// Len reports how many vertex failures were recorded.
func (a *VertexAccumulator) Len() int {
	if a.errs == nil {
		return 0
	}
	return len(a.errs.Errors)
}
