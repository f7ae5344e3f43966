package tune

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaccard_IdenticalSetsScoreOne(t *testing.T) {
	a := []string{"row-1", "row-2", "row-3"}
	b := []string{"row-3", "row-1", "row-2"} // order must not matter
	assert.Equal(t, 1.0, Jaccard(a, b))
}

func TestJaccard_DisjointSetsScoreZero(t *testing.T) {
	a := []string{"row-1", "row-2"}
	b := []string{"row-3", "row-4"}
	assert.Equal(t, 0.0, Jaccard(a, b))
}

func TestJaccard_IsSymmetric(t *testing.T) {
	a := []string{"row-1", "row-2", "row-3", "row-4"}
	b := []string{"row-3", "row-4", "row-5"}
	assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
}

func TestJaccard_PartialOverlap(t *testing.T) {
	a := []string{"row-1", "row-2", "row-3"}
	b := []string{"row-2", "row-3", "row-4"}
	// intersection 2, union 4
	assert.InDelta(t, 0.5, Jaccard(a, b), 1e-12)
}

func TestJaccard_FirstRoundConvention(t *testing.T) {
	// An empty previous set against l current candidates: union is l,
	// intersection 0, similarity 0. This is the anomaly loop's fixed
	// first-round behavior.
	current := []string{"row-1", "row-2", "row-3", "row-4", "row-5"}
	assert.Equal(t, 0.0, Jaccard(nil, current))
}

func TestJaccard_BothEmptyScoreOne(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(nil, nil))
}

func TestJaccard_CollapsesDuplicates(t *testing.T) {
	a := []string{"row-1", "row-1", "row-2"}
	b := []string{"row-1", "row-2", "row-2"}
	assert.Equal(t, 1.0, Jaccard(a, b))
}

func TestJaccard_StaysWithinUnitInterval(t *testing.T) {
	cases := [][2][]string{
		{{"row-1"}, {"row-1"}},
		{{"row-1"}, {"row-2"}},
		{{"row-1", "row-2"}, {"row-2", "row-3", "row-4"}},
		{nil, {"row-1"}},
	}
	for _, c := range cases {
		s := Jaccard(c[0], c[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
