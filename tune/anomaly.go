package tune

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// AnomalyOptions configures DetectAnomalies.
type AnomalyOptions struct {
	K                int         // centroids per round
	L                int         // anomaly candidates extracted per round
	JaccardThreshold float64     // stop once consecutive anomaly sets are this similar, in [0,1]
	MaxIterations    int         // hard iteration budget
	ClusterArgs      ClusterArgs // forwarded to every per-round cluster build
}

func (o AnomalyOptions) validate() error {
	if o.K < 1 {
		return invalidArgf("k must be at least 1, got %d", o.K)
	}
	if o.L < 1 {
		return invalidArgf("l must be at least 1, got %d", o.L)
	}
	if o.JaccardThreshold < 0 || o.JaccardThreshold > 1 {
		return invalidArgf("jaccard threshold must be in [0,1], got %g", o.JaccardThreshold)
	}
	if o.MaxIterations < 1 {
		return invalidArgf("max iterations must be at least 1, got %d", o.MaxIterations)
	}
	return nil
}

// RoundResult is the output of one clustering + scoring pass.
type RoundResult struct {
	ClusterID       string
	ScoredDatasetID string
	Anomalies       []ScoredRow // descending by distance, length l
}

// AnomalyResult is the terminal output of DetectAnomalies: the last round's
// cluster, its scored dataset, its anomaly candidates, and the Jaccard
// similarity of each round's candidates against the round before.
type AnomalyResult struct {
	ClusterID         string      `json:"cluster"`
	ScoredDatasetID   string      `json:"dataset"`
	Anomalies         []ScoredRow `json:"anomalies"`
	SimilarityHistory []float64   `json:"similarity_history"`
}

// RunAnomalyRound executes one pass: build a k-cluster over the working
// dataset, score the original dataset against it into a materialized output
// dataset, and extract the l most centroid-distant rows. The score job and
// sample handles are deleted before returning; the cluster and output
// dataset belong to the caller.
func RunAnomalyRound(ctx context.Context, svc ModelingService, workingID, originalID string, k, l int, args ClusterArgs) (RoundResult, error) {
	clusterID, err := svc.CreateCluster(ctx, workingID, k, args)
	if err != nil {
		return RoundResult{}, err
	}
	if err := svc.WaitAll(ctx, []string{clusterID}); err != nil {
		deleteQuietly(ctx, svc, clusterID)
		return RoundResult{}, err
	}

	score, err := svc.ScoreDataset(ctx, clusterID, originalID, ScoreOptions{
		AllFields:      true,
		OutputDistance: true,
		OutputDataset:  true,
		DistanceField:  DefaultDistanceField,
	})
	if err != nil {
		deleteQuietly(ctx, svc, clusterID)
		return RoundResult{}, err
	}

	sample, err := svc.SampleRows(ctx, score.OutputDatasetID, SampleOptions{
		OrderBy:      DefaultDistanceField,
		Descending:   true,
		Mode:         "linear",
		Rows:         l,
		IncludeRowID: true,
	})
	if err != nil {
		deleteQuietly(ctx, svc, score.JobID)
		deleteQuietly(ctx, svc, score.OutputDatasetID)
		deleteQuietly(ctx, svc, clusterID)
		return RoundResult{}, err
	}

	deleteQuietly(ctx, svc, score.JobID)
	deleteQuietly(ctx, svc, sample.ID)

	return RoundResult{
		ClusterID:       clusterID,
		ScoredDatasetID: score.OutputDatasetID,
		Anomalies:       sample.Rows,
	}, nil
}

// anomalyState is the loop state of DetectAnomalies, advanced once per round.
type anomalyState struct {
	current   string   // working dataset for the next clustering
	iteration int      // 1-based round counter
	prev      []string // previous round's anomaly row ids
	history   []float64
}

// DetectAnomalies runs the k-means minus-minus loop: cluster the working
// dataset, pull the l most distant rows as anomaly candidates, filter those
// rows out, and recluster, until consecutive candidate sets are similar
// enough (Jaccard above the threshold) or the iteration budget is spent.
//
// Every intermediate cluster and dataset is deleted; only the final round's
// cluster and scored dataset survive and are returned.
func DetectAnomalies(ctx context.Context, svc ModelingService, datasetID string, opts AnomalyOptions) (*AnomalyResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	ds, err := svc.FetchDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	st := anomalyState{current: datasetID, iteration: 1}
	for {
		round, err := RunAnomalyRound(ctx, svc, st.current, datasetID, opts.K, opts.L, opts.ClusterArgs)
		if err != nil {
			if st.current != datasetID {
				deleteQuietly(ctx, svc, st.current)
			}
			return nil, err
		}
		if len(round.Anomalies) == 0 {
			deleteQuietly(ctx, svc, round.ClusterID)
			deleteQuietly(ctx, svc, round.ScoredDatasetID)
			if st.current != datasetID {
				deleteQuietly(ctx, svc, st.current)
			}
			return nil, fmt.Errorf("anomaly round %d returned no candidates", st.iteration)
		}

		similarity := Jaccard(st.prev, rowIDs(round.Anomalies))
		st.history = append(st.history, similarity)
		logrus.Infof("anomaly round %d/%d: cluster=%s similarity=%.4f",
			st.iteration, opts.MaxIterations, round.ClusterID, similarity)

		// Retain only rows closer to their centroid than the least-distant
		// anomaly of this round, keeping the original input fields.
		cutoff := round.Anomalies[len(round.Anomalies)-1].Distance
		filteredID, err := svc.FilterDataset(ctx, round.ScoredDatasetID,
			RowFilter{Field: DefaultDistanceField, Below: cutoff}, ds.InputFields)
		if err != nil {
			deleteQuietly(ctx, svc, round.ClusterID)
			deleteQuietly(ctx, svc, round.ScoredDatasetID)
			if st.current != datasetID {
				deleteQuietly(ctx, svc, st.current)
			}
			return nil, err
		}

		exhausted := st.iteration == opts.MaxIterations
		converged := similarity > opts.JaccardThreshold
		if exhausted || converged {
			deleteQuietly(ctx, svc, filteredID)
			if st.current != datasetID {
				deleteQuietly(ctx, svc, st.current)
			}
			if converged {
				logrus.Infof("anomaly loop converged after %d rounds (similarity %.4f > %.4f)",
					st.iteration, similarity, opts.JaccardThreshold)
			} else {
				logrus.Infof("anomaly loop exhausted its %d-round budget", opts.MaxIterations)
			}
			return &AnomalyResult{
				ClusterID:         round.ClusterID,
				ScoredDatasetID:   round.ScoredDatasetID,
				Anomalies:         round.Anomalies,
				SimilarityHistory: st.history,
			}, nil
		}

		deleteQuietly(ctx, svc, round.ClusterID)
		deleteQuietly(ctx, svc, round.ScoredDatasetID)
		if st.current != datasetID {
			deleteQuietly(ctx, svc, st.current)
		}
		st.current = filteredID
		st.prev = rowIDs(round.Anomalies)
		st.iteration++
	}
}
