package policy

import (
	"testing"

	"github.com/khryptorgraphics/gridmatch/pkg/jobspec"
	"github.com/stretchr/testify/assert"
)

func TestCalcCountAddOperator(t *testing.T) {
	// min=2, max=10, operand=3: bound=10, (10-2)%3=2, so count=8.
	c := jobspec.Count{Min: 2, Max: 10, Operator: jobspec.OpAdd, Operand: 3}
	assert.Equal(t, int64(8), CalcCount(c, 100))
}

func TestCalcCountAddBoundedByQC(t *testing.T) {
	c := jobspec.Count{Min: 1, Max: 100, Operator: jobspec.OpAdd, Operand: 1}
	assert.Equal(t, int64(5), CalcCount(c, 5))
}

func TestCalcCountMulOperator(t *testing.T) {
	// min=2, operand=2: 2,4,8,16 -- largest <= 15 is 8.
	c := jobspec.Count{Min: 2, Max: 1000, Operator: jobspec.OpMul, Operand: 2}
	assert.Equal(t, int64(8), CalcCount(c, 15))
}

func TestCalcCountPowOperator(t *testing.T) {
	// min=2, operand=2: 2, 4, 16, 256 -- largest <= 20 is 16.
	c := jobspec.Count{Min: 2, Max: 1000, Operator: jobspec.OpPow, Operand: 2}
	assert.Equal(t, int64(16), CalcCount(c, 20))
}

func TestCalcCountZeroWhenMinExceedsQC(t *testing.T) {
	c := jobspec.Count{Min: 5, Max: 10, Operator: jobspec.OpAdd, Operand: 1}
	assert.Equal(t, int64(0), CalcCount(c, 2))
}

func TestCalcCountZeroWhenMinExceedsMax(t *testing.T) {
	c := jobspec.Count{Min: 10, Max: 5, Operator: jobspec.OpAdd, Operand: 1}
	assert.Equal(t, int64(0), CalcCount(c, 100))
}

func TestCalcEffectiveMaxUsesMax(t *testing.T) {
	c := jobspec.Count{Min: 1, Max: 9, Operator: jobspec.OpAdd, Operand: 2}
	assert.Equal(t, int64(9), CalcEffectiveMax(c))
}

func TestExclusivityRegistry(t *testing.T) {
	r := NewExclusivityRegistry()
	assert.False(t, r.IsResourceTypeExclusive("gpu"))
	r.AddExclusiveResourceType("gpu")
	assert.True(t, r.IsResourceTypeExclusive("gpu"))
	r.ResetExclusiveResourceTypes()
	assert.False(t, r.IsResourceTypeExclusive("gpu"))
}

func TestStopOnKMatches(t *testing.T) {
	p := NewFirstFit()
	assert.Equal(t, int64(0), p.StopOnKMatches())
	p.SetStopOnKMatches(3)
	assert.Equal(t, int64(3), p.StopOnKMatches())
}
