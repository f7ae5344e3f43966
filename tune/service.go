package tune

import (
	"context"
	"reflect"

	"github.com/sirupsen/logrus"
)

// DefaultDistanceField is the column name under which scored datasets expose
// each row's distance to its assigned centroid.
const DefaultDistanceField = "distance"

// ScoredRow is one row of a centroid-scored dataset: the row's identifier in
// the original dataset plus its distance to the assigned centroid.
type ScoredRow struct {
	RowID    string  `json:"row_id"`
	Distance float64 `json:"distance"`
}

// Sample is an ordered extract of rows plus the handle of the sample resource
// that produced it, so the caller can delete the handle when done.
type Sample struct {
	ID   string
	Rows []ScoredRow
}

// ScoreResult identifies the two resources a scoring request produces: the
// batch job itself and the materialized output dataset (one row per input
// row, annotated with assigned cluster and centroid distance).
type ScoreResult struct {
	JobID           string
	OutputDatasetID string
}

// ClusterArgs carries the service-side build arguments shared by every
// cluster created in one loop. Extra holds service-specific settings that
// the loops forward without interpreting.
type ClusterArgs struct {
	Name                string         `yaml:"name"`
	Seed                string         `yaml:"seed"`
	Balanced            bool           `yaml:"balanced"`
	DefaultNumericValue string         `yaml:"default_numeric_value"`
	Extra               map[string]any `yaml:"extra"`
}

// Equal reports whether two argument sets would build identical clusters.
// SelectK uses this to decide between reusing the winning candidate and
// rebuilding a final cluster.
func (a ClusterArgs) Equal(b ClusterArgs) bool {
	return reflect.DeepEqual(a, b)
}

// ScoreOptions selects what a scoring request materializes.
type ScoreOptions struct {
	AllFields      bool   // carry every input field into the output dataset
	OutputDistance bool   // include the per-row centroid distance
	OutputDataset  bool   // materialize the scored rows as a dataset
	DistanceField  string // column name for the distance (DefaultDistanceField if empty)
}

// SampleOptions controls an ordered row extraction.
type SampleOptions struct {
	OrderBy      string // field to order by
	Descending   bool
	Mode         string // service sampling mode, e.g. "linear"
	Rows         int    // number of rows to return
	IncludeRowID bool   // attach each row's identifier
}

// RowFilter is the scalar predicate understood by FilterDataset:
// keep rows whose Field value is strictly below Below.
type RowFilter struct {
	Field string
	Below float64
}

// DatasetInfo is the dataset metadata the loops read.
type DatasetInfo struct {
	ID          string
	Name        string
	Rows        int
	InputFields []string
}

// ClusterInfo is the cluster metadata the loops read. WithinSS and TotalSS
// feed the Pham-Dimov-Nguyen evaluation.
type ClusterInfo struct {
	ID          string
	Name        string
	K           int
	InputFields []string
	WithinSS    float64
	TotalSS     float64
}

// ModelingService is the narrow capability interface onto the external
// clustering service. Creations are asynchronous jobs: CreateCluster returns
// as soon as the build is submitted, and WaitAll blocks until every listed
// resource reaches a terminal state. ScoreDataset, SampleRows, and
// FilterDataset block until their result is usable.
//
// Delete must treat an already-deleted or unknown resource as a no-op
// (false, nil), not an error; every cleanup path relies on that.
type ModelingService interface {
	CreateCluster(ctx context.Context, datasetID string, k int, args ClusterArgs) (string, error)
	ScoreDataset(ctx context.Context, clusterID, datasetID string, opts ScoreOptions) (ScoreResult, error)
	SampleRows(ctx context.Context, datasetID string, opts SampleOptions) (Sample, error)
	FilterDataset(ctx context.Context, datasetID string, pred RowFilter, inputFields []string) (string, error)
	FetchDataset(ctx context.Context, datasetID string) (DatasetInfo, error)
	FetchCluster(ctx context.Context, clusterID string) (ClusterInfo, error)
	Delete(ctx context.Context, resourceID string) (bool, error)
	WaitAll(ctx context.Context, resourceIDs []string) error
}

// deleteQuietly attempts a best-effort delete. Failures are logged and
// swallowed so cleanup never masks a primary result.
func deleteQuietly(ctx context.Context, svc ModelingService, resourceID string) {
	if resourceID == "" {
		return
	}
	if _, err := svc.Delete(ctx, resourceID); err != nil {
		logrus.Warnf("cleanup: deleting %s failed: %v", resourceID, err)
	}
}
