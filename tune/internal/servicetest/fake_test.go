package servicetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustertune/clustertune/tune"
)

func twoGroupVecs() [][]float64 {
	var vecs [][]float64
	for i := 0; i < 10; i++ {
		vecs = append(vecs, []float64{float64(i) * 0.1, 0})
	}
	for i := 0; i < 10; i++ {
		vecs = append(vecs, []float64{100 + float64(i)*0.1, 0})
	}
	return vecs
}

func TestDelete_IsIdempotent(t *testing.T) {
	f := New()
	id := f.AddDataset("d", []string{"x", "y"}, twoGroupVecs())

	ok, err := f.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second delete is a no-op, never an error.
	ok, err = f.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown resources behave the same.
	ok, err = f.Delete(context.Background(), "cluster/does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateCluster_IsDeterministic(t *testing.T) {
	f := New()
	id := f.AddDataset("d", []string{"x", "y"}, twoGroupVecs())

	c1, err := f.CreateCluster(context.Background(), id, 2, tune.ClusterArgs{})
	require.NoError(t, err)
	c2, err := f.CreateCluster(context.Background(), id, 2, tune.ClusterArgs{})
	require.NoError(t, err)

	i1, err := f.FetchCluster(context.Background(), c1)
	require.NoError(t, err)
	i2, err := f.FetchCluster(context.Background(), c2)
	require.NoError(t, err)
	assert.Equal(t, i1.WithinSS, i2.WithinSS)
	assert.Equal(t, i1.TotalSS, i2.TotalSS)

	// Two clean groups: splitting them removes nearly all variance.
	assert.Less(t, i1.WithinSS, i1.TotalSS)
}

func TestScoreAndSample_OrdersByDistanceDescending(t *testing.T) {
	f := New()
	id := f.AddDataset("d", []string{"x", "y"}, twoGroupVecs())
	clusterID, err := f.CreateCluster(context.Background(), id, 2, tune.ClusterArgs{})
	require.NoError(t, err)

	score, err := f.ScoreDataset(context.Background(), clusterID, id, tune.ScoreOptions{
		AllFields: true, OutputDistance: true, OutputDataset: true,
	})
	require.NoError(t, err)

	sample, err := f.SampleRows(context.Background(), score.OutputDatasetID, tune.SampleOptions{
		OrderBy: tune.DefaultDistanceField, Descending: true, Mode: "linear", Rows: 5, IncludeRowID: true,
	})
	require.NoError(t, err)

	require.Len(t, sample.Rows, 5)
	for i := 1; i < len(sample.Rows); i++ {
		assert.GreaterOrEqual(t, sample.Rows[i-1].Distance, sample.Rows[i].Distance)
	}
}

func TestFilterDataset_KeepsRowsBelowThreshold(t *testing.T) {
	f := New()
	id := f.AddDataset("d", []string{"x", "y"}, twoGroupVecs())
	clusterID, err := f.CreateCluster(context.Background(), id, 2, tune.ClusterArgs{})
	require.NoError(t, err)
	score, err := f.ScoreDataset(context.Background(), clusterID, id, tune.ScoreOptions{OutputDataset: true})
	require.NoError(t, err)

	// A huge threshold keeps everything; a zero threshold keeps nothing.
	allID, err := f.FilterDataset(context.Background(), score.OutputDatasetID,
		tune.RowFilter{Field: tune.DefaultDistanceField, Below: 1e9}, []string{"x", "y"})
	require.NoError(t, err)
	all, err := f.FetchDataset(context.Background(), allID)
	require.NoError(t, err)
	assert.Equal(t, 20, all.Rows)

	noneID, err := f.FilterDataset(context.Background(), score.OutputDatasetID,
		tune.RowFilter{Field: tune.DefaultDistanceField, Below: 0}, []string{"x", "y"})
	require.NoError(t, err)
	none, err := f.FetchDataset(context.Background(), noneID)
	require.NoError(t, err)
	assert.Equal(t, 0, none.Rows)
}

func TestWaitAll_FailsOnUnknownOrDeleted(t *testing.T) {
	f := New()
	id := f.AddDataset("d", []string{"x"}, [][]float64{{1}, {2}, {3}})

	require.NoError(t, f.WaitAll(context.Background(), []string{id}))

	assert.Error(t, f.WaitAll(context.Background(), []string{"cluster/ghost"}))

	_, err := f.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.Error(t, f.WaitAll(context.Background(), []string{id}))
}
