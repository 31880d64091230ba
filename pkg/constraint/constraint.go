// Package constraint implements the constraint evaluator (spec.md §6.2,
// "C"): an RFC-31 subset boolean expression tree over leaf predicates
// properties, hostlist, and ranks, combined with and/or/not.
//
// Grounded on original_source/resource/libjobspec/hostlist_constraint.cpp
// for hostlist matching semantics, and on spec.md §6.2's explicit
// restatement of the properties/ranks/and/or/not rules (the rest of the
// RFC-31 constraint tree in original_source lives across several sibling
// *_constraint.cpp files not included in the retrieval pack).
package constraint

import (
	"strings"

	"github.com/khryptorgraphics/gridmatch/pkg/idset"
	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// Resource is the minimal view a constraint needs of a candidate resource
// vertex: its hostname, rank, and property set.
type Resource struct {
	Name       string
	Rank       int64
	Properties map[string]struct{}
}

// HasProperty reports whether p is set on the resource.
func (r Resource) HasProperty(p string) bool {
	_, ok := r.Properties[p]
	return ok
}

// forbiddenChars are disallowed anywhere in a property string except a
// single leading '^' negation marker, per spec.md §6.2.
const forbiddenChars = "!&'\"^`|()"

// Constraint is a node in the parsed boolean tree.
type Constraint interface {
	Match(r Resource) bool
}

// Always is the "{}" constraint: matches every resource.
type Always struct{}

func (Always) Match(Resource) bool { return true }

// Properties is the "{properties:[...]}" leaf: true when every listed
// property (AND across entries) is satisfied — present for a plain
// entry, absent for a "^"-negated one.
type Properties struct {
	Want []string // entries, as given (may carry a leading '^')
}

func (p Properties) Match(r Resource) bool {
	for _, want := range p.Want {
		if strings.HasPrefix(want, "^") {
			if r.HasProperty(want[1:]) {
				return false
			}
			continue
		}
		if !r.HasProperty(want) {
			return false
		}
	}
	return true
}

// Hostlist is the "{hostlist:[...]}" leaf: true when the resource's name
// is a member of the expanded hostlist.
type Hostlist struct {
	Hosts map[string]struct{}
}

func (h Hostlist) Match(r Resource) bool {
	_, ok := h.Hosts[r.Name]
	return ok
}

// Ranks is the "{ranks:[...]}" leaf: true when the resource's rank is a
// member of the decoded idset union.
type Ranks struct {
	Set map[int64]struct{}
}

func (ra Ranks) Match(r Resource) bool {
	_, ok := ra.Set[r.Rank]
	return ok
}

// And is the "{and:[...]}" combinator: true when every child matches.
type And struct{ Children []Constraint }

func (a And) Match(r Resource) bool {
	for _, c := range a.Children {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

// Or is the "{or:[...]}" combinator: true when any child matches.
type Or struct{ Children []Constraint }

func (o Or) Match(r Resource) bool {
	for _, c := range o.Children {
		if c.Match(r) {
			return true
		}
	}
	return false
}

// Not is the "{not:[...]}" combinator, implemented per spec.md §6.2 as
// the negation of an implicit AND across its children — not !match_or.
type Not struct{ Children []Constraint }

func (n Not) Match(r Resource) bool {
	return !And{Children: n.Children}.Match(r)
}

// Parse builds a Constraint tree from its decoded YAML/JSON map
// representation (as produced by a yaml.v3 unmarshal into
// map[string]interface{}, or directly from a rawNode-shaped value).
func Parse(node map[string]interface{}) (Constraint, error) {
	if len(node) == 0 {
		return Always{}, nil
	}
	if len(node) > 1 {
		return nil, rgerrors.New("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "constraint node must have exactly one key")
	}
	for key, val := range node {
		switch key {
		case "properties":
			strs, err := toStringSlice(val)
			if err != nil {
				return nil, err
			}
			for _, s := range strs {
				if err := validateProperty(s); err != nil {
					return nil, err
				}
			}
			return Properties{Want: strs}, nil
		case "hostlist":
			strs, err := toStringSlice(val)
			if err != nil {
				return nil, err
			}
			set := make(map[string]struct{})
			for _, s := range strs {
				hosts, err := idset.ExpandHostlist(s)
				if err != nil {
					return nil, rgerrors.Wrap("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, err)
				}
				for _, h := range hosts {
					set[h] = struct{}{}
				}
			}
			return Hostlist{Hosts: set}, nil
		case "ranks":
			strs, err := toStringSlice(val)
			if err != nil {
				return nil, err
			}
			set := make(map[int64]struct{})
			for _, s := range strs {
				decoded, err := idset.Decode(s)
				if err != nil {
					return nil, rgerrors.Wrap("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, err)
				}
				for id := range decoded {
					set[id] = struct{}{}
				}
			}
			return Ranks{Set: set}, nil
		case "and", "or", "not":
			children, err := toChildren(val)
			if err != nil {
				return nil, err
			}
			parsed := make([]Constraint, 0, len(children))
			for _, c := range children {
				p, err := Parse(c)
				if err != nil {
					return nil, err
				}
				parsed = append(parsed, p)
			}
			switch key {
			case "and":
				return And{Children: parsed}, nil
			case "or":
				return Or{Children: parsed}, nil
			default:
				return Not{Children: parsed}, nil
			}
		default:
			return nil, rgerrors.New("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "unknown constraint key: "+key)
		}
	}
	panic("unreachable")
}

func validateProperty(s string) error {
	body := s
	if strings.HasPrefix(s, "^") {
		body = s[1:]
	}
	if strings.ContainsAny(body, forbiddenChars) || strings.Contains(body, "^") {
		return rgerrors.New("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "invalid characters in property: "+s)
	}
	return nil
}

func toStringSlice(val interface{}) ([]string, error) {
	items, ok := val.([]interface{})
	if !ok {
		if strs, ok := val.([]string); ok {
			return strs, nil
		}
		return nil, rgerrors.New("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "expected a list")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, rgerrors.New("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "expected a string entry")
		}
		out = append(out, s)
	}
	return out, nil
}

func toChildren(val interface{}) ([]map[string]interface{}, error) {
	items, ok := val.([]interface{})
	if !ok {
		return nil, rgerrors.New("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "expected a list of constraints")
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, rgerrors.New("constraint.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "expected a constraint object")
		}
		out = append(out, m)
	}
	return out, nil
}
