package graph

import (
	iradix "github.com/hashicorp/go-immutable-radix"
)

// PathIndex maps a subsystem's canonical vertex paths to vertices,
// backing mark(path, status) and remove_subgraph(path) (spec.md §4.6.5).
// Built on an immutable radix tree for ordered, prefix-addressable
// lookup — a canonical path like "/cluster0/rack1/node3" is exactly the
// kind of key a radix tree indexes well, and subtree removal is a
// prefix walk rather than a full scan.
type PathIndex struct {
	tree *iradix.Tree
}

// NewPathIndex returns an empty index.
func NewPathIndex() *PathIndex {
	return &PathIndex{tree: iradix.New()}
}

// Insert indexes v under path, replacing whatever vertex was there.
func (p *PathIndex) Insert(path string, v *Vertex) {
	tree, _, _ := p.tree.Insert([]byte(path), v)
	p.tree = tree
}

// Delete removes path from the index.
func (p *PathIndex) Delete(path string) {
	tree, _, _ := p.tree.Delete([]byte(path))
	p.tree = tree
}

// Get returns the vertex indexed at path, if any.
func (p *PathIndex) Get(path string) (*Vertex, bool) {
	v, ok := p.tree.Get([]byte(path))
	if !ok {
		return nil, false
	}
	return v.(*Vertex), true
}

// WalkPrefix visits every (path, vertex) pair whose path has the given
// prefix — the primitive remove_subgraph(path) and PRETTY emitters build
// on to collect a whole subtree rooted at path.
func (p *PathIndex) WalkPrefix(prefix string, fn func(path string, v *Vertex) bool) {
	p.tree.Root().WalkPrefix([]byte(prefix), func(k []byte, v interface{}) bool {
		return fn(string(k), v.(*Vertex))
	})
}

// Len returns the number of indexed paths.
func (p *PathIndex) Len() int { return p.tree.Len() }
