package emit

import (
	"sort"

	"github.com/khryptorgraphics/gridmatch/pkg/idset"
)

// RV1Options parameterizes Recorder.RV1: which vertex type gathers R_lite
// records, which descendant types it reduces into compressed id ranges,
// the allocation window (for starttime/expiration), the dominant
// subsystem (for the embedded JGF's edge metadata), and an optional
// scheduler attributes blob (spec.md §6.3).
type RV1Options struct {
	GathererType string
	ReducerTypes []string
	Subsystem    string
	At           int64
	Duration     uint64
	Scheduler    map[string]interface{}
	NoSched      bool
}

// RV1Execution is RV1's "execution" object.
type RV1Execution struct {
	RLite      []RliteEntry      `json:"R_lite"`
	Nodelist   []string          `json:"nodelist"`
	Properties map[string]string `json:"properties,omitempty"`
	Starttime  int64             `json:"starttime"`
	Expiration int64             `json:"expiration"`
}

// RV1System is RV1's "attributes.system" object.
type RV1System struct {
	Scheduler map[string]interface{} `json:"scheduler,omitempty"`
}

// RV1Attributes is RV1's "attributes" object.
type RV1Attributes struct {
	System RV1System `json:"system"`
}

// RV1 is the full RV1/RV1_NOSCHED document (spec.md §6.3). Scheduling is
// omitted entirely (nil) for RV1_NOSCHED.
type RV1 struct {
	Version    int            `json:"version"`
	Execution  RV1Execution   `json:"execution"`
	Scheduling *JGFDoc        `json:"scheduling,omitempty"`
	Attributes *RV1Attributes `json:"attributes,omitempty"`
}

// RV1 builds an RV1 (or, with opts.NoSched, RV1_NOSCHED) document from
// the recorded walk: R_lite from RLite, a hostlist-compressed nodelist
// and property->ranks map from the gatherer vertices, and the full JGF
// embedded as "scheduling" unless suppressed.
func (r *Recorder) RV1(opts RV1Options) *RV1 {
	doc := &RV1{Version: 1}
	doc.Execution.RLite = r.RLite(opts.GathererType, opts.ReducerTypes)
	doc.Execution.Starttime = opts.At
	doc.Execution.Expiration = opts.At + int64(opts.Duration)

	var names []string
	propRanks := make(map[string][]int64)
	r.walk(func(n, _ *recorded) {
		v := n.vertex
		if v.Type != opts.GathererType {
			return
		}
		if v.Name != "" {
			names = append(names, v.Name)
		}
		for prop := range v.Properties {
			propRanks[prop] = append(propRanks[prop], v.Rank)
		}
	})
	doc.Execution.Nodelist = []string{idset.CompressHostnames(names)}
	if len(propRanks) > 0 {
		props := make(map[string]string, len(propRanks))
		for prop, ranks := range propRanks {
			props[prop] = idset.Encode(ranks)
		}
		doc.Execution.Properties = props
	}

	if !opts.NoSched {
		doc.Scheduling = r.JGF(opts.Subsystem)
	}
	if opts.Scheduler != nil {
		doc.Attributes = &RV1Attributes{System: RV1System{Scheduler: opts.Scheduler}}
	}
	return doc
}

// SortedRanks is a small helper callers building RliteEntry-adjacent
// output by hand (e.g. tests) can use to get a stable rank ordering.
func SortedRanks(ranks []int64) []int64 {
	out := append([]int64(nil), ranks...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
