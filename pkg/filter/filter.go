// Package filter implements the pruning-filter registry (spec.md §4.4,
// "F"): a per-subsystem table of which resource types are worth tracking
// for pruning purposes during traversal, parsed from a compact textual
// grammar of anchor-type:tracked-type pairs ("rack:node,node:core" or
// "ALL:core,cluster:node").
//
// Grounded on the matcher_util_api_t pruning-type table in
// original_source/resource/policies/base/matcher.cpp, translated from its
// nested std::map<subsystem_t, std::map<resource_type_t, std::set<...>>>
// into Go maps of maps of sets.
package filter

import (
	"strings"

	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// AnyType is the "ALL" anchor: a pruning type registered against AnyType
// applies regardless of which resource type the traversal is currently
// anchored on.
const AnyType = ""

// Registry holds the pruning-type table for every subsystem a traversal
// cares about. The zero value is ready to use.
type Registry struct {
	// pruning[subsystem][anchor] -> set of tracked types
	pruning map[string]map[string]map[string]struct{}
	// total[subsystem] -> every tracked type in that subsystem, regardless
	// of anchor; backs IsPruningType.
	total map[string]map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		pruning: make(map[string]map[string]map[string]struct{}),
		total:   make(map[string]map[string]struct{}),
	}
}

// SetPruningTypesWithSpec parses spec — a comma-separated list of
// "anchor:tracked" pairs — and registers each pair under subsystem. "ALL"
// is accepted as an anchor and normalized to AnyType. Whitespace around
// either side of ":" is stripped, matching the original grammar.
func (r *Registry) SetPruningTypesWithSpec(subsystem, spec string) error {
	for _, pair := range strings.Split(spec, ",") {
		if err := r.registerPair(subsystem, pair); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerPair(subsystem, pair string) error {
	idx := strings.Index(pair, ":")
	if idx < 0 {
		return rgerrors.New("filter.SetPruningTypesWithSpec", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "pruning spec pair missing ':': "+pair)
	}
	anchor := strings.TrimSpace(pair[:idx])
	tracked := strings.TrimSpace(pair[idx+1:])
	if anchor == "" || tracked == "" {
		return rgerrors.New("filter.SetPruningTypesWithSpec", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "pruning spec pair has an empty side: "+pair)
	}
	if anchor == "ALL" {
		anchor = AnyType
	}
	r.SetPruningType(subsystem, anchor, tracked)
	return nil
}

// SetPruningType registers prune as a tracked type for anchor within
// subsystem. Registering against AnyType removes prune from every other
// anchor already registered in subsystem (ALL supersedes specific
// anchors); registering against a specific anchor is a no-op if prune is
// already tracked for AnyType (ALL already covers it).
func (r *Registry) SetPruningType(subsystem, anchor, prune string) {
	s, ok := r.pruning[subsystem]
	if !ok {
		s = make(map[string]map[string]struct{})
		r.pruning[subsystem] = s
	}

	if anchor == AnyType {
		for a, set := range s {
			delete(set, prune)
			if len(set) == 0 {
				delete(s, a)
			}
		}
		r.track(s, AnyType, prune)
	} else if any, ok := s[AnyType]; ok {
		if _, already := any[prune]; !already {
			r.track(s, anchor, prune)
		}
	} else {
		r.track(s, anchor, prune)
	}

	total, ok := r.total[subsystem]
	if !ok {
		total = make(map[string]struct{})
		r.total[subsystem] = total
	}
	total[prune] = struct{}{}
}

func (r *Registry) track(s map[string]map[string]struct{}, anchor, prune string) {
	set, ok := s[anchor]
	if !ok {
		set = make(map[string]struct{})
		s[anchor] = set
	}
	set[prune] = struct{}{}
}

// IsMyPruningType reports whether prune is tracked for anchor within
// subsystem — checking anchor's own set first, falling back to AnyType.
func (r *Registry) IsMyPruningType(subsystem, anchor, prune string) bool {
	s, ok := r.pruning[subsystem]
	if !ok {
		return false
	}
	if set, ok := s[anchor]; ok {
		if _, found := set[prune]; found {
			return true
		}
	}
	if set, ok := s[AnyType]; ok {
		_, found := set[prune]
		return found
	}
	return false
}

// IsPruningType reports whether prune is tracked anywhere in subsystem,
// regardless of anchor. An unconfigured subsystem reports false.
func (r *Registry) IsPruningType(subsystem, prune string) bool {
	set, ok := r.total[subsystem]
	if !ok {
		return false
	}
	_, found := set[prune]
	return found
}

// GetMyPruningTypes returns every type tracked for anchor within
// subsystem: anchor's own set plus AnyType's set, leaving out of the
// latter the anchor's own type name so a vertex never tracks its own type.
func (r *Registry) GetMyPruningTypes(subsystem, anchor string) ([]string, bool) {
	s, ok := r.pruning[subsystem]
	if !ok {
		return nil, false
	}
	var out []string
	if set, ok := s[anchor]; ok {
		for t := range set {
			out = append(out, t)
		}
	}
	if anchor != AnyType {
		if set, ok := s[AnyType]; ok {
			for t := range set {
				if t != anchor {
					out = append(out, t)
				}
			}
		}
	}
	return out, true
}
