// Package ids generates the stable identities the resource graph and
// planner need: vertex/edge uniq_id, planner span_id, and default jobid
// values. Modeled on the teacher's pkg/types/utils.go generateID helper,
// but backed by google/uuid instead of hand-rolled crypto/rand+hex, since
// the corpus already imports a dedicated UUID library for this job.
package ids

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// uniqCounter and spanCounter back Int63/monotonic ids where spec.md
// requires a small dense integer (vertex uniq_id, planner span_id) rather
// than a UUID string: the graph and planner index vertices/spans by int64
// so a dense, cheaply-comparable id is required, not a 128-bit UUID.
var (
	uniqCounter int64
	spanCounter int64
)

// NextUniqID returns a process-unique, monotonically increasing vertex/edge
// identity. Stable for the lifetime of the process per spec.md §3's
// "vertex descriptors are stable" lifecycle rule.
func NextUniqID() int64 {
	return atomic.AddInt64(&uniqCounter, 1)
}

// NextSpanID returns a planner-span identity unique across that planner's
// lifetime, per spec.md §4.1 ("an opaque span_id that is unique across the
// planner's lifetime"). Each Planner keeps its own counter (see
// pkg/planner) — this helper is for callers (multi-planner, tests) that
// need a standalone id generator with the same guarantee.
func NextSpanID() int64 {
	return atomic.AddInt64(&spanCounter, 1)
}

// NewJobID returns a random job identity for callers that don't have an
// external job id source (e.g. tests, the query facade's match_allocate
// when the caller doesn't supply one).
func NewJobID() string {
	return uuid.NewString()
}
