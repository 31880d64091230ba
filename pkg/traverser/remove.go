package traverser

import (
	"github.com/hashicorp/go-multierror"

	"github.com/khryptorgraphics/gridmatch/pkg/graph"
)

// Remove cancels jobid's allocation across t's graph (spec.md §4.6.4). If
// root carries jobid in its tags it walks only the tagged subtree; root
// vertices this traverser's own Update never tagged for jobid (e.g. a
// different policy instance allocated it) fall back to an exhaustive
// sweep of every vertex reachable from root. Best-effort: a per-vertex
// failure is accumulated rather than aborting the whole cancellation, so
// one corrupted vertex doesn't strand every other vertex's reservation.
func (t *Traverser) Remove(root *graph.Vertex, jobid string) error {
	t.tick()
	if _, tagged := root.IData.Tags[jobid]; tagged {
		return removeTagged(root, jobid)
	}
	return removeExhaustive(root, jobid, make(map[int64]struct{}))
}

// removeTagged performs the cheap path: descend only where the tag is
// present, since Update always tags every vertex it touched.
func removeTagged(v *graph.Vertex, jobid string) error {
	var errs *multierror.Error
	if err := cancelVertex(v, jobid); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, e := range v.Out {
		if e.Subsystem != DominantSubsystem {
			continue
		}
		if _, tagged := e.Target.IData.Tags[jobid]; !tagged {
			continue
		}
		if err := removeTagged(e.Target, jobid); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// removeExhaustive visits every vertex reachable from v regardless of
// tag state, for the case where jobid's allocation was recorded by a
// different traverser instance (a different dominant subsystem, or a
// prior process run) and this instance's tags can't be trusted to find
// it. visited guards against revisiting a vertex reachable via more than
// one subsystem's edges.
func removeExhaustive(v *graph.Vertex, jobid string, visited map[int64]struct{}) error {
	if _, seen := visited[v.UniqID]; seen {
		return nil
	}
	visited[v.UniqID] = struct{}{}

	var errs *multierror.Error
	if err := cancelVertex(v, jobid); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, e := range v.Out {
		if err := removeExhaustive(e.Target, jobid, visited); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// cancelVertex undoes every span jobid holds on v: its x_checker span,
// its subtree filter span, its tag, and whichever of
// schedule.allocations/reservations it occupies.
func cancelVertex(v *graph.Vertex, jobid string) error {
	var errs *multierror.Error

	if spanID, ok := v.IData.XSpans[jobid]; ok {
		if v.IData.XChecker != nil {
			if err := v.IData.XChecker.RemSpan(spanID); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		delete(v.IData.XSpans, jobid)
	}

	if spanID, ok := v.IData.Job2Span[jobid]; ok {
		if mp, ok := v.IData.Subplans[DominantSubsystem]; ok {
			if err := mp.RemSpan(spanID); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		delete(v.IData.Job2Span, jobid)
	}

	if span, ok := v.Schedule.Allocations[jobid]; ok {
		if v.Schedule.Plans != nil {
			if err := v.Schedule.Plans.RemSpan(span.SpanID); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		delete(v.Schedule.Allocations, jobid)
	}
	if span, ok := v.Schedule.Reservations[jobid]; ok {
		if v.Schedule.Plans != nil {
			if err := v.Schedule.Plans.RemSpan(span.SpanID); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		delete(v.Schedule.Reservations, jobid)
	}

	delete(v.IData.Tags, jobid)
	return errs.ErrorOrNil()
}
