package emit

import (
	"strconv"

	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/planner"
)

// JGFNode is one entry of JGF's "nodes" array (spec.md §6.3).
type JGFNode struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// JGFEdge is one entry of JGF's "edges" array.
type JGFEdge struct {
	Source   string                 `json:"source"`
	Target   string                 `json:"target"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// JGFGraph is JGF's "graph" object.
type JGFGraph struct {
	Nodes []JGFNode `json:"nodes"`
	Edges []JGFEdge `json:"edges"`
}

// JGFDoc is the full JGF document: {"graph": {...}} (spec.md §6.3, §4.7).
type JGFDoc struct {
	Graph JGFGraph `json:"graph"`
}

// JGF builds a full JGF document from the recorded walk: every vertex
// becomes a node carrying its paths/properties/exclusive metadata, every
// recorded containment edge becomes an edge tagged with subsystem
// (spec.md §6.3).
func (r *Recorder) JGF(subsystem string) *JGFDoc {
	doc := &JGFDoc{}
	r.walk(func(n, parent *recorded) {
		doc.Graph.Nodes = append(doc.Graph.Nodes, jgfNode(n))
		for _, c := range n.children {
			doc.Graph.Edges = append(doc.Graph.Edges, JGFEdge{
				Source:   strconv.FormatInt(n.vertex.UniqID, 10),
				Target:   strconv.FormatInt(c.vertex.UniqID, 10),
				Metadata: map[string]interface{}{"subsystem": subsystem},
			})
		}
	})
	return doc
}

func jgfNode(n *recorded) JGFNode {
	v := n.vertex
	md := map[string]interface{}{
		"type":  v.Type,
		"id":    v.ID,
		"rank":  v.Rank,
		"paths": v.Paths,
	}
	if v.Basename != "" {
		md["basename"] = v.Basename
	}
	if v.Name != "" {
		md["name"] = v.Name
	}
	if v.Unit != "" {
		md["unit"] = v.Unit
	}
	if v.Size > 0 {
		md["size"] = v.Size
	}
	if n.exclusive {
		md["exclusive"] = true
	}
	if len(v.Properties) > 0 {
		md["properties"] = v.Properties
	}
	return JGFNode{ID: strconv.FormatInt(v.UniqID, 10), Metadata: md}
}

// FindJGF builds a JGF document from a Find result, adding the ephemeral
// scratch map and, when agfilter reporting was requested, the anchor's
// subplan utilization (spec.md §4.6.6, "agfilter"). It reuses Recorder's
// node/edge shape via an ad-hoc single-pass walk rather than requiring a
// full Update-style recording, since Find's Writer calls carry no edge
// information of their own.
//
// agfilter is false to omit utilization entirely. When true, jobid names
// the job whose own reservation is reported (v.IData.Job2Span[jobid]'s
// span, by type); an empty jobid is the "jobid=0" case spec.md §9 flags —
// report current totals/usage instead of one job's share, same as if no
// job were given at all.
func FindJGF(vertices []*graph.Vertex, agfilter bool, jobid string) *JGFDoc {
	doc := &JGFDoc{}
	for _, v := range vertices {
		md := map[string]interface{}{
			"type":  v.Type,
			"id":    v.ID,
			"rank":  v.Rank,
			"paths": v.Paths,
		}
		if v.Name != "" {
			md["name"] = v.Name
		}
		if len(v.Properties) > 0 {
			md["properties"] = v.Properties
		}
		if len(v.IData.Ephemeral) > 0 {
			md["ephemeral"] = v.IData.Ephemeral
		}
		if agfilter {
			if mp, ok := v.IData.Subplans["containment"]; ok {
				md["agfilter"] = agfilterUtilization(v, mp, jobid)
			}
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, JGFNode{ID: strconv.FormatInt(v.UniqID, 10), Metadata: md})
	}
	return doc
}

// agfilterUtilization reports per-type utilization for v's subplan: with a
// jobid, the span jobid itself holds there; with jobid="" ("jobid=0"),
// current total usage across every holder (spec.md §4.6.6, §9).
func agfilterUtilization(v *graph.Vertex, mp *planner.MultiPlanner, jobid string) map[string]int64 {
	util := map[string]int64{}
	if jobid != "" {
		spanID, ok := v.IData.Job2Span[jobid]
		if !ok {
			return util
		}
		for _, t := range mp.Types() {
			p := mp.Planner(t)
			if p == nil {
				continue
			}
			for _, s := range p.Spans() {
				if s.ID == spanID {
					util[t] = int64(s.Req)
					break
				}
			}
		}
		return util
	}
	for _, t := range mp.Types() {
		p := mp.Planner(t)
		if p == nil {
			continue
		}
		avail, err := p.AvailAt(p.BaseTime())
		if err == nil {
			util[t] = int64(p.Total()) - avail
		}
	}
	return util
}
