package traverser

import (
	"strings"

	"github.com/khryptorgraphics/gridmatch/pkg/graph"
)

// NodesUp is the running count of Up-status vertices an index covers,
// maintained incrementally by Mark so callers don't need a full scan to
// answer "how much capacity is administratively available" (spec.md
// §4.6.5 "updates nodes_up by the delta").
type NodesUp struct {
	count int64
}

func (n *NodesUp) Count() int64 { return n.count }

func (n *NodesUp) apply(before, after graph.Status) {
	if before == graph.Up && after != graph.Up {
		n.count--
	} else if before != graph.Up && after == graph.Up {
		n.count++
	}
}

// Mark sets status on the vertex indexed at path in idx, updating
// nodesUp by the resulting delta. A missing path is a no-op — marking a
// vertex that was already removed from the index is not an error.
func Mark(idx *graph.PathIndex, nodesUp *NodesUp, path string, status graph.Status) {
	v, ok := idx.Get(path)
	if !ok {
		return
	}
	before := v.Status
	v.Status = status
	if nodesUp != nil {
		nodesUp.apply(before, status)
	}
}

// MarkRanks sets status on the shortest-path root vertex of each rank's
// vertex set — one mark per rank, per spec.md §4.6.5. rankPaths maps a
// rank to every canonical path recorded for it; "shortest-path root" is
// the path with the fewest '/' separators, i.e. the highest vertex in
// the containment tree holding that rank. Two paths of equal depth are
// broken deterministically by the indexed vertex's uniq_id (spec.md §9:
// ties among equally-short paths for a rank are undefined in the original
// design; this implementation resolves them instead of leaving them
// undefined).
func MarkRanks(idx *graph.PathIndex, nodesUp *NodesUp, rankPaths map[int64][]string, status graph.Status) {
	for _, paths := range rankPaths {
		if len(paths) == 0 {
			continue
		}
		shortest := paths[0]
		shortestV, _ := idx.Get(shortest)
		for _, p := range paths[1:] {
			v, ok := idx.Get(p)
			if !ok {
				continue
			}
			d, sd := depth(p), depth(shortest)
			switch {
			case d < sd:
				shortest, shortestV = p, v
			case d == sd && shortestV != nil && v.UniqID < shortestV.UniqID:
				shortest, shortestV = p, v
			}
		}
		Mark(idx, nodesUp, shortest, status)
	}
}

func depth(path string) int {
	return strings.Count(strings.Trim(path, "/"), "/")
}

// RemoveSubgraphRanks disconnects, for each rank in rankPaths, the
// shortest-path root vertex holding that rank — the ranks-addressed form
// of `remove_subgraph(ranks)` (spec.md §4.6.5), using the same
// shortest-path/uniq_id tie-break as MarkRanks so the two addressing
// modes pick the same root for a given rank.
func RemoveSubgraphRanks(idx *graph.PathIndex, rankPaths map[int64][]string) error {
	for _, paths := range rankPaths {
		if len(paths) == 0 {
			continue
		}
		shortest := paths[0]
		shortestV, _ := idx.Get(shortest)
		for _, p := range paths[1:] {
			v, ok := idx.Get(p)
			if !ok {
				continue
			}
			d, sd := depth(p), depth(shortest)
			switch {
			case d < sd:
				shortest, shortestV = p, v
			case d == sd && shortestV != nil && v.UniqID < shortestV.UniqID:
				shortest, shortestV = p, v
			}
		}
		parent, _ := idx.Get(parentPath(shortest))
		if err := RemoveSubgraph(idx, parent, shortest); err != nil {
			return err
		}
	}
	return nil
}

// parentPath strips the last '/'-separated segment off path.
func parentPath(path string) string {
	trimmed := strings.TrimRight(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if i <= 0 {
		return ""
	}
	return trimmed[:i]
}

// RemoveSubgraph disconnects the subtree rooted at path from parent (its
// containment-subsystem out-edge is dropped) and removes path and every
// descendant path from idx, per spec.md §4.6.5: "these do not delete
// vertex storage ... only edges and indexes". Vertex descriptors remain
// reachable by anyone still holding a direct pointer; they are simply no
// longer walkable from parent or addressable by path.
func RemoveSubgraph(idx *graph.PathIndex, parent *graph.Vertex, path string) error {
	target, ok := idx.Get(path)
	if !ok {
		return nil
	}

	if parent != nil {
		kept := parent.Out[:0]
		for _, e := range parent.Out {
			if e.Target != target {
				kept = append(kept, e)
			}
		}
		parent.Out = kept
	}

	var toDelete []string
	idx.WalkPrefix(path, func(p string, _ *graph.Vertex) bool {
		toDelete = append(toDelete, p)
		return false
	})
	for _, p := range toDelete {
		idx.Delete(p)
	}
	return nil
}
