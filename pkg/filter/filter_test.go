package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPruningTypesWithSpecParsesPairs(t *testing.T) {
	r := New()
	require.NoError(t, r.SetPruningTypesWithSpec("containment", "rack:node, node:core"))

	assert.True(t, r.IsMyPruningType("containment", "rack", "node"))
	assert.True(t, r.IsMyPruningType("containment", "node", "core"))
	assert.False(t, r.IsMyPruningType("containment", "rack", "core"))
}

func TestSetPruningTypesWithSpecRejectsMalformedPair(t *testing.T) {
	r := New()
	err := r.SetPruningTypesWithSpec("containment", "rack-node")
	require.Error(t, err)
}

func TestAllAnchorSupersedesSpecificAnchors(t *testing.T) {
	r := New()
	r.SetPruningType("containment", "rack", "node")
	r.SetPruningType("containment", AnyType, "node")

	// ALL:node must have displaced the rack-specific registration, so node
	// is listed once, via the ALL set.
	types, ok := r.GetMyPruningTypes("containment", "rack")
	require.True(t, ok)
	assert.Equal(t, []string{"node"}, types)
	assert.True(t, r.IsMyPruningType("containment", "rack", "node"), "falls back to ALL")
}

func TestSpecificAnchorNoopsWhenAllAlreadyCovers(t *testing.T) {
	r := New()
	r.SetPruningType("containment", AnyType, "node")
	r.SetPruningType("containment", "rack", "node")

	types, _ := r.GetMyPruningTypes("containment", "rack")
	// rack's own set must stay empty; node is still reachable via ALL, so
	// it is listed exactly once.
	assert.Equal(t, []string{"node"}, types)
	assert.True(t, r.IsMyPruningType("containment", "rack", "node"))
}

func TestIsPruningTypeChecksWholeSubsystem(t *testing.T) {
	r := New()
	r.SetPruningType("containment", "rack", "node")

	assert.True(t, r.IsPruningType("containment", "node"))
	assert.False(t, r.IsPruningType("containment", "core"))
	assert.False(t, r.IsPruningType("sched", "node"), "unconfigured subsystem")
}

func TestGetMyPruningTypesMergesAnchorAndAll(t *testing.T) {
	r := New()
	r.SetPruningType("containment", "rack", "node")
	r.SetPruningType("containment", AnyType, "core")

	types, ok := r.GetMyPruningTypes("containment", "rack")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"node", "core"}, types)
}

func TestALLSpecKeywordNormalizes(t *testing.T) {
	r := New()
	require.NoError(t, r.SetPruningTypesWithSpec("cluster", "ALL:core"))
	assert.True(t, r.IsMyPruningType("cluster", "anything", "core"))
}
