// Package graph implements the resource graph's vertex/edge model
// (spec.md §3): the read-only schema the DFU traverser walks, plus the
// per-traversal scratch state (idata) invariants I1-I7 require.
//
// Grounded on the teacher's worker/node descriptor shape
// (pkg/scheduler/types.go-style struct-of-maps) generalized to the
// resource graph's richer per-subsystem metadata, and on
// original_source/resource/schema/data_std.hpp for the field list.
package graph

import (
	"sort"
	"sync"

	"github.com/khryptorgraphics/gridmatch/pkg/planner"
)

// Status is a vertex's administrative state (spec.md §6.5).
type Status int

const (
	Up Status = iota
	Down
	Lost
)

func (s Status) String() string {
	switch s {
	case Up:
		return "up"
	case Down:
		return "down"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// colorState is gray or black, recorded against the generation it was
// set in.
type colorState uint8

const (
	stateUnset colorState = iota
	stateGray
	stateBlack
)

// Color is a generational DFS color (white/gray/black), implementing
// invariant I7: every query and mutation takes the traversal's current
// generation counter. A vertex reads as white whenever its last-recorded
// generation doesn't match the caller's current one — so bumping the
// traverser's generation counter reverts every vertex to white in O(1),
// with no per-vertex reset pass required.
type Color struct {
	gen   uint64
	state colorState
}

func (c Color) White(currentGen uint64) bool { return c.gen != currentGen || c.state == stateUnset }
func (c Color) Gray(currentGen uint64) bool  { return c.gen == currentGen && c.state == stateGray }
func (c Color) Black(currentGen uint64) bool { return c.gen == currentGen && c.state == stateBlack }

func (c *Color) SetGray(currentGen uint64) { c.gen = currentGen; c.state = stateGray }
func (c *Color) SetBlack(currentGen uint64) {
	c.gen = currentGen
	c.state = stateBlack
}

// EdgeIndex identifies an out-edge by its position in Vertex.Out — the
// unit of reference EdgeGroup[E] is instantiated with elsewhere in this
// module (see pkg/scoring).
type EdgeIndex struct {
	From int64 // source vertex uniq_id
	Slot int   // index into the source's Out slice
}

// IData is the per-vertex scratch state a traversal mutates; it is
// cleared (or generationally reset) between traversals rather than
// reallocated, per spec.md §5's "reuses arenas keyed by generation".
type IData struct {
	XChecker  *planner.Planner             // exclusivity counter, total = X_CHECKER_NJOBS
	Subplans  map[string]*planner.MultiPlanner // subsystem -> P* at anchor vertices
	Tags      map[string]struct{}          // jobids currently holding this vertex
	Job2Span  map[string]int64             // jobid -> span id in Subplans
	XSpans    map[string]int64             // jobid -> span id in XChecker
	Colors    map[string]*Color            // subsystem -> DFS color
	MemberOf  map[string]string            // subsystem -> membership/relation marker
	Ephemeral map[string]interface{}       // scratch, cleared between traversals
}

func newIData() *IData {
	return &IData{
		Subplans:  make(map[string]*planner.MultiPlanner),
		Tags:      make(map[string]struct{}),
		Job2Span:  make(map[string]int64),
		XSpans:    make(map[string]int64),
		Colors:    make(map[string]*Color),
		MemberOf:  make(map[string]string),
		Ephemeral: make(map[string]interface{}),
	}
}

// ColorFor returns (creating if absent) the DFS color tracked for
// subsystem on this vertex's idata.
func (d *IData) ColorFor(subsystem string) *Color {
	c, ok := d.Colors[subsystem]
	if !ok {
		c = &Color{}
		d.Colors[subsystem] = c
	}
	return c
}

// Span is one occupied interval recorded against a vertex's plans, keyed
// by the jobid that holds it.
type Span struct {
	JobID     string
	SpanID    int64
	Reserved  bool // true => schedule.reservations, false => schedule.allocations
}

// Schedule is a vertex's own availability timeline plus the per-jobid
// allocation/reservation bookkeeping invariant I2 requires.
type Schedule struct {
	Plans        *planner.Planner
	Allocations  map[string]Span // jobid -> span, when not reserved
	Reservations map[string]Span // jobid -> span, when reserved
}

// Vertex is one resource-graph node (spec.md §3).
type Vertex struct {
	UniqID     int64
	Type       string
	Basename   string
	Name       string
	ID         int64 // local numeric id within basename, may be -1
	Rank       int64 // execution-target id, -1 for synthetic
	Size       uint64
	Unit       string
	Properties map[string]string
	Paths      map[string]string // subsystem -> canonical path
	Status     Status
	Exclusive  bool

	Schedule Schedule
	IData    *IData

	Out []*Edge
	mu  sync.Mutex
}

// Edge is one directed resource-graph edge (spec.md §3).
type Edge struct {
	Subsystem string
	Name      string
	Target    *Vertex
	MemberOf  map[string]string

	Weight     int64  // avail-count hint ordering out-edges, invariant I6
	TravToken  uint64 // best-k generation this edge was selected on
	Needs      int64
	Exclusive  bool
}

// NewVertex constructs a vertex with its idata and schedule initialized.
func NewVertex(uniqID int64, typ, basename, name string, rank int64, size uint64) *Vertex {
	return &Vertex{
		UniqID:     uniqID,
		Type:       typ,
		Basename:   basename,
		Name:       name,
		ID:         -1,
		Rank:       rank,
		Size:       size,
		Properties: make(map[string]string),
		Paths:      make(map[string]string),
		Status:     Up,
		Schedule: Schedule{
			Allocations:  make(map[string]Span),
			Reservations: make(map[string]Span),
		},
		IData: newIData(),
	}
}

// HasProperty matches the constraint.Resource contract this vertex is
// adapted into during select() (see pkg/traverser).
func (v *Vertex) HasProperty(p string) bool {
	_, ok := v.Properties[p]
	return ok
}

// AddOutEdge appends e to v's out-edge list and re-sorts by
// (weight, tgt.uniq_id) descending, maintaining invariant I6. Callers
// that only change an edge's Weight in place must call Resort instead of
// re-adding.
func (v *Vertex) AddOutEdge(e *Edge) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Out = append(v.Out, e)
	v.sortOutEdgesLocked()
}

// Resort re-establishes the (weight, tgt.uniq_id)-descending invariant
// after an out-edge's Weight has changed — the rebucketing step in
// spec.md §4.6.3's dynamic-mode update.
func (v *Vertex) Resort() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sortOutEdgesLocked()
}

func (v *Vertex) sortOutEdgesLocked() {
	sort.SliceStable(v.Out, func(i, j int) bool {
		a, b := v.Out[i], v.Out[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.Target.UniqID > b.Target.UniqID
	})
}
