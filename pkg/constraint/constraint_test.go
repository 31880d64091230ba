package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func propRes(name string, rank int64, props ...string) Resource {
	set := make(map[string]struct{}, len(props))
	for _, p := range props {
		set[p] = struct{}{}
	}
	return Resource{Name: name, Rank: rank, Properties: set}
}

func TestEmptyConstraintMatchesEverything(t *testing.T) {
	c, err := Parse(map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, c.Match(propRes("foo0", 0)))
}

func TestPropertiesAndNegation(t *testing.T) {
	c, err := Parse(map[string]interface{}{
		"properties": []interface{}{"gpu", "^drained"},
	})
	require.NoError(t, err)

	assert.True(t, c.Match(propRes("foo0", 0, "gpu")))
	assert.False(t, c.Match(propRes("foo1", 0, "gpu", "drained")))
	assert.False(t, c.Match(propRes("foo2", 0)))
}

func TestPropertiesRejectsForbiddenChars(t *testing.T) {
	_, err := Parse(map[string]interface{}{
		"properties": []interface{}{"bad|prop"},
	})
	require.Error(t, err)
}

func TestHostlistMatchesExpandedRange(t *testing.T) {
	c, err := Parse(map[string]interface{}{
		"hostlist": []interface{}{"foo[2-4]"},
	})
	require.NoError(t, err)

	assert.True(t, c.Match(propRes("foo3", 0)))
	assert.False(t, c.Match(propRes("foo5", 0)))
}

func TestRanksMatchesDecodedIdset(t *testing.T) {
	c, err := Parse(map[string]interface{}{
		"ranks": []interface{}{"0-2,5"},
	})
	require.NoError(t, err)

	assert.True(t, c.Match(propRes("foo0", 2)))
	assert.True(t, c.Match(propRes("foo0", 5)))
	assert.False(t, c.Match(propRes("foo0", 3)))
}

func TestAndOrNotCombinators(t *testing.T) {
	tree := map[string]interface{}{
		"and": []interface{}{
			map[string]interface{}{"properties": []interface{}{"gpu"}},
			map[string]interface{}{
				"or": []interface{}{
					map[string]interface{}{"ranks": []interface{}{"0-1"}},
					map[string]interface{}{"ranks": []interface{}{"9"}},
				},
			},
		},
	}
	c, err := Parse(tree)
	require.NoError(t, err)

	assert.True(t, c.Match(propRes("foo0", 1, "gpu")))
	assert.True(t, c.Match(propRes("foo9", 9, "gpu")))
	assert.False(t, c.Match(propRes("foo5", 5, "gpu")))
	assert.False(t, c.Match(propRes("foo0", 1)))
}

func TestNotIsNegatedAnd(t *testing.T) {
	tree := map[string]interface{}{
		"not": []interface{}{
			map[string]interface{}{"properties": []interface{}{"gpu"}},
			map[string]interface{}{"properties": []interface{}{"ssd"}},
		},
	}
	c, err := Parse(tree)
	require.NoError(t, err)

	// and(gpu, ssd) is false for a node with only gpu, so not() is true.
	assert.True(t, c.Match(propRes("foo0", 0, "gpu")))
	assert.False(t, c.Match(propRes("foo1", 0, "gpu", "ssd")))
}

func TestParseRejectsMultiKeyNode(t *testing.T) {
	_, err := Parse(map[string]interface{}{
		"properties": []interface{}{"gpu"},
		"hostlist":   []interface{}{"foo0"},
	})
	require.Error(t, err)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse(map[string]interface{}{"bogus": []interface{}{}})
	require.Error(t, err)
}
