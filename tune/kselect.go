package tune

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EvaluationRecord is the Pham-Dimov-Nguyen evaluation of one candidate k.
type EvaluationRecord struct {
	ClusterID string  `json:"cluster"`
	K         int     `json:"k"`
	N         int     `json:"n"` // covariate (input field) count
	WithinSS  float64 `json:"within_ss"`
	TotalSS   float64 `json:"total_ss"`
	Score     float64 `json:"score"` // f(k); lower is better
}

// SelectKOptions configures SelectK.
type SelectKOptions struct {
	KMin           int         // inclusive lower bound of the candidate range
	KMax           int         // inclusive upper bound of the candidate range
	SearchArgs     ClusterArgs // build arguments for the candidate clusters
	FinalArgs      ClusterArgs // build arguments for the returned cluster
	Clean          bool        // delete every candidate except the returned cluster
	LogEvaluations bool        // log the evaluation list and winner
}

func (o SelectKOptions) validate() error {
	if o.KMin < 1 {
		return invalidArgf("k-min must be at least 1, got %d", o.KMin)
	}
	if o.KMax < o.KMin {
		return invalidArgf("k-max (%d) must not be below k-min (%d)", o.KMax, o.KMin)
	}
	return nil
}

// SelectKResult is the outcome of a k search.
type SelectKResult struct {
	ClusterID   string             `json:"cluster"`
	K           int                `json:"k"`
	Evaluations []EvaluationRecord `json:"evaluations"`
}

// candidateName embeds k in a cluster name for traceability.
func candidateName(base string, k int) string {
	if base == "" {
		base = "candidate cluster"
	}
	return fmt.Sprintf("%s (k=%d)", base, k)
}

// GenerateCandidates builds one cluster per k in [kMin, kMax]: all creation
// requests are submitted up front, then a single barrier waits for every
// build to finish. Metadata is returned in k-ascending order. Any failure
// fails the whole batch; clusters that already completed are left for the
// caller to clean up.
func GenerateCandidates(ctx context.Context, svc ModelingService, datasetID string, args ClusterArgs, kMin, kMax int) ([]ClusterInfo, error) {
	ids := make([]string, kMax-kMin+1)

	g, gctx := errgroup.WithContext(ctx)
	for i := range ids {
		i := i
		k := kMin + i
		g.Go(func() error {
			a := args
			a.Name = candidateName(args.Name, k)
			id, err := svc.CreateCluster(gctx, datasetID, k, a)
			ids[i] = id
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := svc.WaitAll(ctx, ids); err != nil {
		return nil, err
	}

	infos := make([]ClusterInfo, len(ids))
	g, gctx = errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			info, err := svc.FetchCluster(gctx, id)
			infos[i] = info
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// alphaPDN is the Pham-Dimov-Nguyen weight: alpha(2) = 1 - 3/(4n), and for
// k > 2 a geometric blend that approaches 1 as k grows.
func alphaPDN(k, n int) float64 {
	a2 := 1 - 3/(4*float64(n))
	if k <= 2 {
		return a2
	}
	w := math.Pow(5.0/6.0, float64(k-2))
	return w*a2 + (1 - w)
}

// scorePDN is the evaluation function f(k) = S_k / (alpha(k,n) * S_{k-1}).
// It degrades to 1 when k <= 1 or the previous sum of squares is
// unavailable or zero (no drop in variance to measure against).
func scorePDN(k, n int, withinSS, prevSS float64) float64 {
	if k <= 1 || prevSS <= 0 || n < 1 {
		return 1
	}
	return withinSS / (alphaPDN(k, n) * prevSS)
}

// Evaluate scores a k-ascending candidate list. The recurrence is strictly
// sequential: each record's f(k) needs the previous candidate's within_ss,
// except k = 2, which measures against the dataset's total sum of squares
// (the k = 1 equivalent).
func Evaluate(candidates []ClusterInfo) []EvaluationRecord {
	records := make([]EvaluationRecord, 0, len(candidates))

	prevSS := 0.0
	for i, c := range candidates {
		baseline := prevSS
		if c.K == 2 {
			baseline = c.TotalSS
		} else if i == 0 {
			baseline = 0 // no previous candidate: f degrades to 1
		}
		records = append(records, EvaluationRecord{
			ClusterID: c.ID,
			K:         c.K,
			N:         len(c.InputFields),
			WithinSS:  c.WithinSS,
			TotalSS:   c.TotalSS,
			Score:     scorePDN(c.K, len(c.InputFields), c.WithinSS, baseline),
		})
		prevSS = c.WithinSS
	}
	return records
}

// SelectK searches [KMin, KMax] for the k minimizing f(k). When search and
// final arguments are identical the winning candidate itself is returned;
// otherwise a fresh cluster is rebuilt at the winning k with FinalArgs.
// With Clean set, every candidate other than the returned cluster is
// deleted (best-effort).
func SelectK(ctx context.Context, svc ModelingService, datasetID string, opts SelectKOptions) (*SelectKResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	candidates, err := GenerateCandidates(ctx, svc, datasetID, opts.SearchArgs, opts.KMin, opts.KMax)
	if err != nil {
		return nil, err
	}

	evals := Evaluate(candidates)
	if len(evals) == 0 {
		return nil, ErrEmptyEvaluation
	}

	// First strict minimum wins, so ties resolve to the lowest k.
	best := evals[0]
	for _, e := range evals[1:] {
		if e.Score < best.Score {
			best = e
		}
	}

	if opts.LogEvaluations {
		for _, e := range evals {
			logrus.Infof("k=%d f(k)=%.6f within_ss=%.4f (cluster=%s)", e.K, e.Score, e.WithinSS, e.ClusterID)
		}
		logrus.Infof("selected k=%d (cluster=%s)", best.K, best.ClusterID)
	}

	resultID := best.ClusterID
	if !opts.SearchArgs.Equal(opts.FinalArgs) {
		args := opts.FinalArgs
		if args.Name == "" {
			args.Name = candidateName(opts.SearchArgs.Name, best.K)
		}
		id, err := svc.CreateCluster(ctx, datasetID, best.K, args)
		if err != nil {
			return nil, err
		}
		if err := svc.WaitAll(ctx, []string{id}); err != nil {
			deleteQuietly(ctx, svc, id)
			return nil, err
		}
		resultID = id
	}

	if opts.Clean {
		for _, c := range candidates {
			if c.ID != resultID {
				deleteQuietly(ctx, svc, c.ID)
			}
		}
	}

	return &SelectKResult{ClusterID: resultID, K: best.K, Evaluations: evals}, nil
}
