package emit

import (
	"sort"

	"github.com/khryptorgraphics/gridmatch/pkg/idset"
)

// RliteEntry is one compacted record of RV1's "R_lite" array: a rank
// range and the compressed id range it holds for each reducer type
// (spec.md §4.7 RLITE, §6.3). Consecutive ranks with identical children
// are merged into a single record with a compressed rank range, matching
// the range-compression rule spec.md §4.7 states for sorted ints.
type RliteEntry struct {
	Rank     string            `json:"rank"`
	Children map[string]string `json:"children"`
}

type rliteRow struct {
	rank     int64
	children map[string]string
}

// RLite walks the recorded tree accumulating, at each vertex of
// gathererType (typically "node"), the ids of every descendant whose
// type is in reducerTypes (typically "core", "gpu") until the gatherer's
// own subtree closes, then emits one row per gatherer. Rows are then
// compacted: consecutive ranks holding byte-identical children maps merge
// into one RliteEntry with a compressed rank idset (spec.md §4.7).
func (r *Recorder) RLite(gathererType string, reducerTypes []string) []RliteEntry {
	reduced := make(map[string]bool, len(reducerTypes))
	for _, t := range reducerTypes {
		reduced[t] = true
	}

	var rows []rliteRow
	// acc[gatherer uniq_id] -> reducer type -> collected local ids
	acc := make(map[int64]map[string][]int64)
	var gathererOf map[int64]int64 // vertex uniq_id -> enclosing gatherer's uniq_id

	gathererOf = make(map[int64]int64)
	r.walk(func(n, parent *recorded) {
		v := n.vertex
		gatherer := int64(-1)
		if parent != nil {
			if g, ok := gathererOf[parent.vertex.UniqID]; ok {
				gatherer = g
			}
		}
		if v.Type == gathererType {
			gatherer = v.UniqID
			acc[gatherer] = make(map[string][]int64)
		}
		gathererOf[v.UniqID] = gatherer

		if gatherer >= 0 && reduced[v.Type] {
			acc[gatherer][v.Type] = append(acc[gatherer][v.Type], v.ID)
		}
	})

	r.walk(func(n, parent *recorded) {
		v := n.vertex
		if v.Type != gathererType {
			return
		}
		children := make(map[string]string, len(reducerTypes))
		for _, t := range reducerTypes {
			ids := acc[v.UniqID][t]
			if len(ids) > 0 {
				children[t] = idset.Encode(ids)
			}
		}
		rows = append(rows, rliteRow{rank: v.Rank, children: children})
	})

	sort.Slice(rows, func(i, j int) bool { return rows[i].rank < rows[j].rank })
	return compactRliteRows(rows)
}

func compactRliteRows(rows []rliteRow) []RliteEntry {
	var out []RliteEntry
	i := 0
	for i < len(rows) {
		j := i + 1
		ranks := []int64{rows[i].rank}
		for j < len(rows) && sameChildren(rows[j].children, rows[i].children) {
			ranks = append(ranks, rows[j].rank)
			j++
		}
		out = append(out, RliteEntry{Rank: idset.Encode(ranks), Children: rows[i].children})
		i = j
	}
	return out
}

func sameChildren(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
