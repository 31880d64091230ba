package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseBestKAssignsNeedsAndRemainder(t *testing.T) {
	a := New[int]()
	key := Key{Subsystem: "containment", Type: "node"}

	a.Add(key, EdgeGroup[int]{Score: 3, Count: 2, Edges: []int{1, 2}})
	a.Add(key, EdgeGroup[int]{Score: 5, Count: 3, Edges: []int{3, 4, 5}})
	a.Add(key, EdgeGroup[int]{Score: 1, Count: 4, Edges: []int{6, 7, 8, 9}})

	a.ChooseBestK(key, 4, GreaterScore[int]())

	selected := a.SelectedGroups(key)
	require.Len(t, selected, 2)
	// highest score (5) pulled fully: 3 units.
	assert.Equal(t, 3, selected[0].Needs)
	// next highest (3) pulled partially for the remainder: 1 unit.
	assert.Equal(t, 1, selected[1].Needs)

	bucket := a.Get(key)
	assert.Equal(t, 4, bucket.BestK)
	assert.Equal(t, 2, bucket.BestI)
}

func TestChooseBestKShortfall(t *testing.T) {
	a := New[int]()
	key := Key{Subsystem: "containment", Type: "node"}
	a.Add(key, EdgeGroup[int]{Score: 1, Count: 2})

	a.ChooseBestK(key, 10, GreaterScore[int]())
	bucket := a.Get(key)
	assert.Equal(t, 2, bucket.BestK, "only 2 units existed, best_k reflects what was actually pulled")
}

func TestAccumBestKSumsSelectedScores(t *testing.T) {
	a := New[int]()
	key := Key{Subsystem: "containment", Type: "node"}
	a.Add(key, EdgeGroup[int]{Score: 5, Count: 1})
	a.Add(key, EdgeGroup[int]{Score: 3, Count: 1})
	a.Add(key, EdgeGroup[int]{Score: 1, Count: 1})

	a.ChooseBestK(key, 2, GreaterScore[int]())
	sum := a.AccumBestK(key, Plus, 0)
	assert.Equal(t, 8.0, sum)
}

func TestMergeArenaCombinesBuckets(t *testing.T) {
	parent := New[int]()
	slotLocal := New[int]()
	key := Key{Subsystem: "containment", Type: "slot"}
	slotLocal.Add(key, EdgeGroup[int]{Score: 2, Count: 1})
	slotLocal.Add(key, EdgeGroup[int]{Score: 4, Count: 1})

	require.NoError(t, parent.MergeArena(slotLocal))
	assert.Equal(t, 2, parent.TotalCount(key))
}

func TestQualifiedCountRespectsCutline(t *testing.T) {
	a := New[int]()
	key := Key{Subsystem: "containment", Type: "node"}
	a.SetCutline(key, 2)
	a.Add(key, EdgeGroup[int]{Score: 5, Count: 3})
	a.Add(key, EdgeGroup[int]{Score: 1, Count: 7})

	assert.Equal(t, 3, a.QualifiedCount(key))
	assert.Equal(t, 10, a.TotalCount(key))
}
