// Package servicetest provides a deterministic in-memory ModelingService for
// testing the control loops in package tune without a hosted service. The
// clustering it performs is a toy (evenly spaced seeds, one assignment
// pass): good enough to produce stable distances and sums of squares, not a
// real k-means.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/clustertune/clustertune/tune"
)

type row struct {
	id  string
	vec []float64
}

type dataset struct {
	info      tune.DatasetInfo
	rows      []row
	distances map[string]float64 // per-row centroid distance; non-nil only on scored datasets
}

type cluster struct {
	info      tune.ClusterInfo
	centroids [][]float64
}

// Fake is an in-memory ModelingService. All operations are synchronous;
// WaitAll only verifies that every listed resource exists.
type Fake struct {
	mu       sync.Mutex
	seq      int
	datasets map[string]*dataset
	clusters map[string]*cluster
	handles  map[string]bool // sample and batch-job handles
	deleted  map[string]bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		datasets: make(map[string]*dataset),
		clusters: make(map[string]*cluster),
		handles:  make(map[string]bool),
		deleted:  make(map[string]bool),
	}
}

func (f *Fake) nextID(kind string) string {
	f.seq++
	return fmt.Sprintf("%s/%06d", kind, f.seq)
}

// AddDataset registers a dataset and returns its id. Row i gets the
// identifier "row-i".
func (f *Fake) AddDataset(name string, fields []string, vecs [][]float64) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := make([]row, len(vecs))
	for i, v := range vecs {
		rows[i] = row{id: fmt.Sprintf("row-%d", i), vec: v}
	}
	id := f.nextID("dataset")
	f.datasets[id] = &dataset{
		info: tune.DatasetInfo{ID: id, Name: name, Rows: len(rows), InputFields: fields},
		rows: rows,
	}
	return id
}

func (f *Fake) dataset(id string) (*dataset, error) {
	if f.deleted[id] {
		return nil, fmt.Errorf("dataset %s is deleted", id)
	}
	ds, ok := f.datasets[id]
	if !ok {
		return nil, fmt.Errorf("no such dataset %s", id)
	}
	return ds, nil
}

func (f *Fake) cluster(id string) (*cluster, error) {
	if f.deleted[id] {
		return nil, fmt.Errorf("cluster %s is deleted", id)
	}
	c, ok := f.clusters[id]
	if !ok {
		return nil, fmt.Errorf("no such cluster %s", id)
	}
	return c, nil
}

func nearest(vec []float64, centroids [][]float64) float64 {
	best := -1.0
	for _, c := range centroids {
		d := floats.Distance(vec, c, 2)
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// CreateCluster builds a toy clustering: k evenly spaced rows seed the
// centroids, every row is assigned to its nearest seed, and each centroid
// becomes the mean of its members.
func (f *Fake) CreateCluster(_ context.Context, datasetID string, k int, args tune.ClusterArgs) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ds, err := f.dataset(datasetID)
	if err != nil {
		return "", tune.NewServiceError("create cluster", datasetID, err)
	}
	if k < 1 || k > len(ds.rows) {
		return "", tune.NewServiceError("create cluster", datasetID,
			fmt.Errorf("k=%d out of range for %d rows", k, len(ds.rows)))
	}

	dim := len(ds.rows[0].vec)
	seeds := make([][]float64, k)
	for i := range seeds {
		seeds[i] = ds.rows[i*len(ds.rows)/k].vec
	}

	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for _, r := range ds.rows {
		best, bestD := 0, -1.0
		for i, s := range seeds {
			if d := floats.Distance(r.vec, s, 2); bestD < 0 || d < bestD {
				best, bestD = i, d
			}
		}
		floats.Add(sums[best], r.vec)
		counts[best]++
	}
	centroids := make([][]float64, k)
	for i := range centroids {
		if counts[i] == 0 {
			centroids[i] = seeds[i]
			continue
		}
		centroids[i] = sums[i]
		floats.Scale(1/float64(counts[i]), centroids[i])
	}

	mean := make([]float64, dim)
	for _, r := range ds.rows {
		floats.Add(mean, r.vec)
	}
	floats.Scale(1/float64(len(ds.rows)), mean)

	withinSS, totalSS := 0.0, 0.0
	for _, r := range ds.rows {
		d := nearest(r.vec, centroids)
		withinSS += d * d
		t := floats.Distance(r.vec, mean, 2)
		totalSS += t * t
	}

	id := f.nextID("cluster")
	f.clusters[id] = &cluster{
		info: tune.ClusterInfo{
			ID:          id,
			Name:        args.Name,
			K:           k,
			InputFields: ds.info.InputFields,
			WithinSS:    withinSS,
			TotalSS:     totalSS,
		},
		centroids: centroids,
	}
	return id, nil
}

// ScoreDataset materializes an output dataset carrying every row of
// datasetID plus its distance to the nearest centroid of clusterID.
func (f *Fake) ScoreDataset(_ context.Context, clusterID, datasetID string, opts tune.ScoreOptions) (tune.ScoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.cluster(clusterID)
	if err != nil {
		return tune.ScoreResult{}, tune.NewServiceError("score dataset", clusterID, err)
	}
	ds, err := f.dataset(datasetID)
	if err != nil {
		return tune.ScoreResult{}, tune.NewServiceError("score dataset", datasetID, err)
	}

	distances := make(map[string]float64, len(ds.rows))
	for _, r := range ds.rows {
		distances[r.id] = nearest(r.vec, c.centroids)
	}

	outID := f.nextID("dataset")
	f.datasets[outID] = &dataset{
		info: tune.DatasetInfo{
			ID:          outID,
			Name:        ds.info.Name + " scored",
			Rows:        len(ds.rows),
			InputFields: ds.info.InputFields,
		},
		rows:      ds.rows,
		distances: distances,
	}
	jobID := f.nextID("batchcentroid")
	f.handles[jobID] = true

	return tune.ScoreResult{JobID: jobID, OutputDatasetID: outID}, nil
}

// SampleRows returns an ordered extract of a scored dataset. Ordering ties
// keep the dataset's own row order, mimicking a stable service ordering.
func (f *Fake) SampleRows(_ context.Context, datasetID string, opts tune.SampleOptions) (tune.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ds, err := f.dataset(datasetID)
	if err != nil {
		return tune.Sample{}, tune.NewServiceError("sample rows", datasetID, err)
	}
	if ds.distances == nil {
		return tune.Sample{}, tune.NewServiceError("sample rows", datasetID,
			errors.New("dataset has no distance field"))
	}
	if opts.Rows > len(ds.rows) {
		return tune.Sample{}, tune.NewServiceError("sample rows", datasetID,
			fmt.Errorf("requested %d rows, dataset has %d", opts.Rows, len(ds.rows)))
	}

	scored := make([]tune.ScoredRow, len(ds.rows))
	for i, r := range ds.rows {
		scored[i] = tune.ScoredRow{RowID: r.id, Distance: ds.distances[r.id]}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if opts.Descending {
			return scored[i].Distance > scored[j].Distance
		}
		return scored[i].Distance < scored[j].Distance
	})

	id := f.nextID("sample")
	f.handles[id] = true
	return tune.Sample{ID: id, Rows: scored[:opts.Rows]}, nil
}

// FilterDataset derives a dataset containing the rows whose distance lies
// strictly below the predicate threshold, with the given input fields and
// no distance column.
func (f *Fake) FilterDataset(_ context.Context, datasetID string, pred tune.RowFilter, inputFields []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ds, err := f.dataset(datasetID)
	if err != nil {
		return "", tune.NewServiceError("filter dataset", datasetID, err)
	}
	if ds.distances == nil {
		return "", tune.NewServiceError("filter dataset", datasetID,
			errors.New("dataset has no distance field"))
	}

	var kept []row
	for _, r := range ds.rows {
		if ds.distances[r.id] < pred.Below {
			kept = append(kept, r)
		}
	}

	id := f.nextID("dataset")
	f.datasets[id] = &dataset{
		info: tune.DatasetInfo{
			ID:          id,
			Name:        ds.info.Name + " filtered",
			Rows:        len(kept),
			InputFields: inputFields,
		},
		rows: kept,
	}
	return id, nil
}

func (f *Fake) FetchDataset(_ context.Context, datasetID string) (tune.DatasetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ds, err := f.dataset(datasetID)
	if err != nil {
		return tune.DatasetInfo{}, tune.NewServiceError("fetch dataset", datasetID, err)
	}
	return ds.info, nil
}

func (f *Fake) FetchCluster(_ context.Context, clusterID string) (tune.ClusterInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.cluster(clusterID)
	if err != nil {
		return tune.ClusterInfo{}, tune.NewServiceError("fetch cluster", clusterID, err)
	}
	return c.info, nil
}

// Delete marks a resource deleted. Unknown or already-deleted resources are
// a no-op reported as (false, nil).
func (f *Fake) Delete(_ context.Context, resourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleted[resourceID] {
		return false, nil
	}
	_, isDS := f.datasets[resourceID]
	_, isCl := f.clusters[resourceID]
	if !isDS && !isCl && !f.handles[resourceID] {
		return false, nil
	}
	f.deleted[resourceID] = true
	return true, nil
}

// WaitAll verifies every listed resource exists and is not deleted. The
// fake has no asynchronous builds, so there is nothing to block on.
func (f *Fake) WaitAll(_ context.Context, resourceIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range resourceIDs {
		if f.deleted[id] {
			return tune.NewServiceError("wait", id, errors.New("resource is deleted"))
		}
		_, isDS := f.datasets[id]
		_, isCl := f.clusters[id]
		if !isDS && !isCl && !f.handles[id] {
			return tune.NewServiceError("wait", id, errors.New("no such resource"))
		}
	}
	return nil
}

// IsDeleted reports whether the resource was deleted.
func (f *Fake) IsDeleted(resourceID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[resourceID]
}

// Live returns the ids of every resource created and not deleted, for
// leak assertions in tests.
func (f *Fake) Live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var live []string
	for id := range f.datasets {
		if !f.deleted[id] {
			live = append(live, id)
		}
	}
	for id := range f.clusters {
		if !f.deleted[id] {
			live = append(live, id)
		}
	}
	for id := range f.handles {
		if !f.deleted[id] {
			live = append(live, id)
		}
	}
	sort.Strings(live)
	return live
}

var _ tune.ModelingService = (*Fake)(nil)
