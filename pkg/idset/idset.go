// Package idset decodes and encodes the compact range syntax RFC 22/RFC 20
// use throughout the resource model: idsets ("0-3,7") for ranks and R_lite
// children, and hostlists ("foo[2-4,7]") for node names. Grounded on the
// hostlist/idset encode-decode contract implied by
// original_source/resource/libjobspec/hostlist_constraint.cpp (which calls
// out to libhostlist's hostlist_create/append/find/encode) — no Go package
// in the retrieval pack implements this grammar, so it's hand-rolled
// against stdlib strconv/strings rather than wired to a third-party lib.
package idset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// Decode parses an idset string ("0-3,7,9-10") into the set of integers
// it denotes. An empty string decodes to an empty set.
func Decode(s string) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		lo, hi, err := parseRange(tok)
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			out[i] = struct{}{}
		}
	}
	return out, nil
}

func parseRange(tok string) (int64, int64, error) {
	if idx := strings.IndexByte(tok, '-'); idx > 0 {
		lo, err1 := strconv.ParseInt(tok[:idx], 10, 64)
		hi, err2 := strconv.ParseInt(tok[idx+1:], 10, 64)
		if err1 != nil || err2 != nil || hi < lo {
			return 0, 0, rgerrors.New("idset.Decode", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "bad range: "+tok)
		}
		return lo, hi, nil
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, 0, rgerrors.New("idset.Decode", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "bad id: "+tok)
	}
	return n, n, nil
}

// Encode renders ids as a minimal-length idset string, run-length
// compressing consecutive runs into "lo-hi" ranges.
func Encode(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var b strings.Builder
	runStart := sorted[0]
	prev := sorted[0]
	first := true
	flush := func(end int64) {
		if !first {
			b.WriteByte(',')
		}
		first = false
		if runStart == end {
			fmt.Fprintf(&b, "%d", runStart)
		} else {
			fmt.Fprintf(&b, "%d-%d", runStart, end)
		}
	}
	for _, id := range sorted[1:] {
		if id == prev {
			continue // dedupe
		}
		if id == prev+1 {
			prev = id
			continue
		}
		flush(prev)
		runStart, prev = id, id
	}
	flush(prev)
	return b.String()
}

// ExpandHostlist expands a hostlist string such as "foo[2-4,7],bar0" into
// the list of literal hostnames it denotes, preserving order.
func ExpandHostlist(s string) ([]string, error) {
	var out []string
	for _, entry := range splitTopLevel(s) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		open := strings.IndexByte(entry, '[')
		if open < 0 {
			out = append(out, entry)
			continue
		}
		close := strings.LastIndexByte(entry, ']')
		if close < open {
			return nil, rgerrors.New("idset.ExpandHostlist", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "unbalanced '[' in: "+entry)
		}
		prefix := entry[:open]
		suffix := entry[close+1:]
		ids, err := Decode(entry[open+1 : close])
		if err != nil {
			return nil, err
		}
		sorted := make([]int64, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for _, id := range sorted {
			out = append(out, fmt.Sprintf("%s%d%s", prefix, id, suffix))
		}
	}
	return out, nil
}

// splitTopLevel splits s on commas that aren't nested inside brackets, so
// "foo[2-4,7],bar0" splits into ["foo[2-4,7]", "bar0"] rather than
// fragmenting the bracketed range.
func splitTopLevel(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// CompressHostnames encodes a set of literal hostnames back into
// "prefix[ids]" bracket form, one bracket group per distinct prefix in
// first-seen order; names that don't end in a numeric suffix are appended
// verbatim and unmerged.
func CompressHostnames(names []string) string {
	byPrefix := make(map[string][]int64)
	var order []string
	var literal []string
	for _, n := range names {
		prefix, num, ok := splitTrailingDigits(n)
		if !ok {
			literal = append(literal, n)
			continue
		}
		if _, seen := byPrefix[prefix]; !seen {
			order = append(order, prefix)
		}
		byPrefix[prefix] = append(byPrefix[prefix], num)
	}
	var parts []string
	for _, prefix := range order {
		parts = append(parts, fmt.Sprintf("%s[%s]", prefix, Encode(byPrefix[prefix])))
	}
	parts = append(parts, literal...)
	return strings.Join(parts, ",")
}

func splitTrailingDigits(s string) (prefix string, num int64, ok bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return "", 0, false
	}
	n, err := strconv.ParseInt(s[i:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return s[:i], n, true
}
