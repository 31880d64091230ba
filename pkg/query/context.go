// Package query wraps a traverser.Traverser with the bookkeeping and
// observability a long-lived scheduler process needs around the DFU core
// (spec.md §6.4): per-job info (allocated vs reserved, reservation time,
// last-call overhead), aggregate stat() counters, and tracing/metrics
// hooks a caller's own process wires into its monitoring stack.
//
// Grounded on the teacher's pkg/observability/opentelemetry_adapter.go
// (otel.Tracer + tracer.Start around each traced call) and
// pkg/monitoring/metrics.go (bare prometheus.New*/registry.Register,
// no promauto) — this package is the one place in the module those two
// teacher-direct deps actually get exercised, since the core packages
// stay dependency-light per DESIGN.md.
package query

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/jobspec"
	"github.com/khryptorgraphics/gridmatch/pkg/traverser"
)

// tracerName identifies this module's spans in a caller's tracing
// backend, matching the teacher's service-name-per-component convention.
const tracerName = "github.com/khryptorgraphics/gridmatch/pkg/query"

// Mode is a job's allocation mode, per spec.md §6.4 info().
type Mode int

const (
	Allocated Mode = iota
	Reserved
)

func (m Mode) String() string {
	if m == Reserved {
		return "reserved"
	}
	return "allocated"
}

// JobInfo is info(jobid)'s result: the allocation mode, the reservation
// time, and how long the Select+Update call pair that produced it took.
type JobInfo struct {
	Mode     Mode
	At       int64
	Overhead time.Duration
}

// Stat is stat()'s result: graph size and per-call load, both as a plain
// struct (per spec.md §6.4) and, via Metrics, as Prometheus gauges a
// caller can scrape independently.
type Stat struct {
	Vertices int
	Edges    int
	Jobs     int
	MinLoad  time.Duration
	MaxLoad  time.Duration
	AvgLoad  time.Duration
}

// Context is the query-facing handle a caller holds for one traverser
// instance: it serializes Stat() against in-flight Select/Update calls
// (mirroring the teacher's sync.RWMutex-guarded Engine/collector
// structs), tracks per-job info, and optionally emits spans/metrics.
type Context struct {
	mu      sync.Mutex
	tv      *traverser.Traverser
	jobs    map[string]JobInfo
	loads   []time.Duration
	tracer  oteltrace.Tracer
	metrics *Metrics
}

// New wraps tv. metrics may be nil to skip Prometheus instrumentation.
func New(tv *traverser.Traverser, metrics *Metrics) *Context {
	return &Context{
		tv:      tv,
		jobs:    make(map[string]JobInfo),
		tracer:  otel.Tracer(tracerName),
		metrics: metrics,
	}
}

func (c *Context) record(d time.Duration) {
	if c.metrics != nil {
		c.metrics.MatchDuration.Observe(d.Seconds())
	}
	c.loads = append(c.loads, d)
}

// Select runs t.Select inside a "gridmatch.select" span (spec.md §4.6.2).
func (c *Context) Select(ctx context.Context, js *jobspec.Jobspec, meta traverser.Meta) (*traverser.Match, error) {
	_, span := c.tracer.Start(ctx, "gridmatch.select")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	match, err := c.tv.Select(js, meta)
	d := time.Since(start)
	c.record(d)
	if err != nil {
		span.RecordError(err)
	}
	return match, err
}

// Allocate commits match as jobid's firm allocation inside a
// "gridmatch.update" span, then records jobid's JobInfo (spec.md §4.6.3,
// §6.4 info()).
func (c *Context) Allocate(ctx context.Context, match *traverser.Match, jobid string, meta traverser.Meta, w traverser.Writer) error {
	return c.update(ctx, match, jobid, meta, traverser.Allocate, Allocated, w)
}

// Reserve commits match as jobid's reservation, same as Allocate but
// tagging the job Reserved in Info (spec.md §4.6.3).
func (c *Context) Reserve(ctx context.Context, match *traverser.Match, jobid string, meta traverser.Meta, w traverser.Writer) error {
	return c.update(ctx, match, jobid, meta, traverser.Reserve, Reserved, w)
}

func (c *Context) update(ctx context.Context, match *traverser.Match, jobid string, meta traverser.Meta, alloc traverser.AllocType, mode Mode, w traverser.Writer) error {
	_, span := c.tracer.Start(ctx, "gridmatch.update", oteltrace.WithAttributes(attribute.String("gridmatch.jobid", jobid)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	err := c.tv.Update(match, jobid, meta, alloc, w)
	d := time.Since(start)
	c.record(d)
	if err != nil {
		span.RecordError(err)
		return err
	}
	c.jobs[jobid] = JobInfo{Mode: mode, At: meta.At, Overhead: d}
	return nil
}

// Cancel runs t.Remove inside a "gridmatch.remove" span and drops jobid's
// JobInfo (spec.md §4.6.4).
func (c *Context) Cancel(ctx context.Context, root *graph.Vertex, jobid string) error {
	_, span := c.tracer.Start(ctx, "gridmatch.remove", oteltrace.WithAttributes(attribute.String("gridmatch.jobid", jobid)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	err := c.tv.Remove(root, jobid)
	c.record(time.Since(start))
	if err != nil {
		span.RecordError(err)
		return err
	}
	delete(c.jobs, jobid)
	return nil
}

// PartialCancel runs t.PartialCancel inside a "gridmatch.partial_cancel"
// span, parsing R (JGF or RV1) and releasing only the vertices it names
// (spec.md §4.6.4). It drops jobid's JobInfo when the partial removal
// turns out to be a full cancel (root no longer tagged).
func (c *Context) PartialCancel(ctx context.Context, root *graph.Vertex, R []byte, jobid string) (fullCancel bool, err error) {
	_, span := c.tracer.Start(ctx, "gridmatch.partial_cancel", oteltrace.WithAttributes(attribute.String("gridmatch.jobid", jobid)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	full, err := c.tv.PartialCancel(root, R, jobid)
	c.record(time.Since(start))
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if full {
		delete(c.jobs, jobid)
	}
	return full, nil
}

// Info returns jobid's JobInfo, per spec.md §6.4 info().
func (c *Context) Info(jobid string) (JobInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.jobs[jobid]
	return info, ok
}

// Stat walks t.Root's dominant-subsystem containment tree counting
// vertices and edges, reports the tracked job count, and summarizes
// every Select/Update/Remove call's duration seen so far (spec.md §6.4).
// It also refreshes the Prometheus gauges in c's Metrics, if configured.
func (c *Context) Stat() Stat {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, e := countGraph(c.tv.Root)
	s := Stat{Vertices: v, Edges: e, Jobs: len(c.jobs)}
	if n := len(c.loads); n > 0 {
		var sum time.Duration
		s.MinLoad, s.MaxLoad = c.loads[0], c.loads[0]
		for _, d := range c.loads {
			sum += d
			if d < s.MinLoad {
				s.MinLoad = d
			}
			if d > s.MaxLoad {
				s.MaxLoad = d
			}
		}
		s.AvgLoad = sum / time.Duration(n)
	}

	if c.metrics != nil {
		c.metrics.Vertices.Set(float64(s.Vertices))
		c.metrics.Edges.Set(float64(s.Edges))
		c.metrics.Jobs.Set(float64(s.Jobs))
	}
	return s
}

func countGraph(root *graph.Vertex) (vertices, edges int) {
	if root == nil {
		return 0, 0
	}
	visited := make(map[int64]struct{})
	var walk func(v *graph.Vertex)
	walk = func(v *graph.Vertex) {
		if _, ok := visited[v.UniqID]; ok {
			return
		}
		visited[v.UniqID] = struct{}{}
		vertices++
		for _, e := range v.Out {
			if e.Subsystem != traverser.DominantSubsystem {
				continue
			}
			edges++
			walk(e.Target)
		}
	}
	walk(root)
	return vertices, edges
}
