package tune

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlphaPDN_BaseCaseIsExact(t *testing.T) {
	for _, n := range []int{1, 2, 4, 10, 100} {
		want := 1 - 3/(4*float64(n))
		assert.Equal(t, want, alphaPDN(2, n), "n=%d", n)
	}
}

func TestAlphaPDN_NonDecreasingAndConvergesToOne(t *testing.T) {
	for _, n := range []int{2, 5, 20} {
		prev := alphaPDN(2, n)
		for k := 3; k <= 60; k++ {
			a := alphaPDN(k, n)
			assert.GreaterOrEqual(t, a, prev, "alpha must not decrease at k=%d n=%d", k, n)
			assert.Less(t, a, 1.0)
			prev = a
		}
		// (5/6)^(k-2) is negligible by k=60, so alpha is within a hair of 1.
		assert.InDelta(t, 1.0, alphaPDN(60, n), 1e-4)
	}
}

func TestScorePDN_DegradesToOne(t *testing.T) {
	// k <= 1: undefined ratio, fixed at 1 regardless of the sums.
	assert.Equal(t, 1.0, scorePDN(1, 4, 123.0, 456.0))
	assert.Equal(t, 1.0, scorePDN(0, 4, 123.0, 456.0))
	// Previous within_ss unavailable or zero.
	assert.Equal(t, 1.0, scorePDN(3, 4, 123.0, 0))
	assert.Equal(t, 1.0, scorePDN(3, 4, 123.0, -1))
	// No covariates: alpha would divide by zero.
	assert.Equal(t, 1.0, scorePDN(3, 0, 123.0, 456.0))
}

func TestScorePDN_WeightedRatio(t *testing.T) {
	// GIVEN k=2, n=4: alpha = 1 - 3/16 = 0.8125
	got := scorePDN(2, 4, 65.0, 100.0)
	assert.InDelta(t, 65.0/(0.8125*100.0), got, 1e-12)

	// GIVEN k=3, n=4: alpha = (5/6)*0.8125 + 1/6
	alpha := (5.0/6.0)*0.8125 + 1.0/6.0
	got = scorePDN(3, 4, 40.0, 65.0)
	assert.InDelta(t, 40.0/(alpha*65.0), got, 1e-12)
}

func TestEvaluate_PreservesKAscendingOrder(t *testing.T) {
	candidates := []ClusterInfo{
		{ID: "cluster/1", K: 2, InputFields: []string{"a", "b"}, WithinSS: 80, TotalSS: 200},
		{ID: "cluster/2", K: 3, InputFields: []string{"a", "b"}, WithinSS: 30, TotalSS: 200},
		{ID: "cluster/3", K: 4, InputFields: []string{"a", "b"}, WithinSS: 25, TotalSS: 200},
	}
	records := Evaluate(candidates)
	assert.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, candidates[i].K, r.K)
		assert.Equal(t, candidates[i].ID, r.ClusterID)
		assert.Equal(t, 2, r.N)
	}
}

func TestEvaluate_KTwoMeasuresAgainstTotalSS(t *testing.T) {
	candidates := []ClusterInfo{
		{ID: "cluster/1", K: 2, InputFields: []string{"a", "b", "c", "d"}, WithinSS: 65, TotalSS: 100},
	}
	records := Evaluate(candidates)
	assert.InDelta(t, 65.0/(0.8125*100.0), records[0].Score, 1e-12)
}

func TestEvaluate_KTwoWithoutTotalSSDegradesToOne(t *testing.T) {
	candidates := []ClusterInfo{
		{ID: "cluster/1", K: 2, InputFields: []string{"a", "b"}, WithinSS: 65},
	}
	records := Evaluate(candidates)
	assert.Equal(t, 1.0, records[0].Score)
}

func TestEvaluate_UsesPreviousCandidateWithinSS(t *testing.T) {
	// GIVEN candidates at k=3,4 (range not starting at 2): the first has no
	// predecessor and scores 1; the second measures against the first.
	candidates := []ClusterInfo{
		{ID: "cluster/1", K: 3, InputFields: []string{"a", "b"}, WithinSS: 50, TotalSS: 200},
		{ID: "cluster/2", K: 4, InputFields: []string{"a", "b"}, WithinSS: 20, TotalSS: 200},
	}
	records := Evaluate(candidates)
	assert.Equal(t, 1.0, records[0].Score)
	alpha := alphaPDN(4, 2)
	assert.InDelta(t, 20.0/(alpha*50.0), records[1].Score, 1e-12)
}

func TestEvaluate_ZeroPreviousWithinSS(t *testing.T) {
	// A perfect clustering at k leaves nothing for k+1 to improve on; the
	// recurrence fixes the next score at 1 instead of dividing by zero.
	candidates := []ClusterInfo{
		{ID: "cluster/1", K: 2, InputFields: []string{"a"}, WithinSS: 0, TotalSS: 100},
		{ID: "cluster/2", K: 3, InputFields: []string{"a"}, WithinSS: 0, TotalSS: 100},
	}
	records := Evaluate(candidates)
	assert.Equal(t, 1.0, records[1].Score)
}

func TestCandidateName_EmbedsK(t *testing.T) {
	assert.Equal(t, "iris (k=7)", candidateName("iris", 7))
	assert.Equal(t, "candidate cluster (k=2)", candidateName("", 2))
}

func TestAlphaPDN_LargeKIsFinite(t *testing.T) {
	assert.False(t, math.IsNaN(alphaPDN(500, 3)))
	assert.InDelta(t, 1.0, alphaPDN(500, 3), 1e-12)
}
