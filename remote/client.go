// Package remote implements tune.ModelingService against a hosted modeling
// API speaking JSON over HTTP. Resource creations return immediately with a
// status code; the client polls until the resource reaches a terminal state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/clustertune/clustertune/tune"
)

// Status codes reported by the API for asynchronous resources. Anything
// below statusFinished (except statusFaulty) means the build is still
// running.
const (
	statusWaiting    = 0
	statusQueued     = 1
	statusStarted    = 2
	statusInProgress = 3
	statusFinished   = 5
	statusFaulty     = -1
)

var errNotFound = errors.New("resource not found")

type statusDoc struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type sampleRowDoc struct {
	RowID    string  `json:"row_id"`
	Distance float64 `json:"distance"`
}

// resourceDoc is the union of the fields the client reads off any resource
// document; the API simply omits the ones a resource type lacks.
type resourceDoc struct {
	Resource      string         `json:"resource"`
	Name          string         `json:"name,omitempty"`
	Status        statusDoc      `json:"status"`
	Rows          int            `json:"rows,omitempty"`
	InputFields   []string       `json:"input_fields,omitempty"`
	K             int            `json:"k,omitempty"`
	WithinSS      float64        `json:"within_ss,omitempty"`
	TotalSS       float64        `json:"total_ss,omitempty"`
	OutputDataset string         `json:"output_dataset_resource,omitempty"`
	SampleRows    []sampleRowDoc `json:"sample_rows,omitempty"`
}

// Client talks to the modeling API. All requests pass through a shared rate
// limiter so polling loops cannot hammer the service.
type Client struct {
	base      string
	apiKey    string
	http      *http.Client
	limiter   *rate.Limiter
	pollEvery time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRequestsPerSecond bounds the outgoing request rate.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1) }
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollEvery = d }
}

// New builds a Client for the given endpoint. The API key is sent as a
// bearer token on every request.
func New(endpoint, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}
	c := &Client{
		base:      strings.TrimRight(endpoint, "/"),
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 60 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(10), 11),
		pollEvery: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do performs one rate-limited request. A nil out discards the response
// body; 404 and 410 surface as errNotFound.
func (c *Client) do(ctx context.Context, method, path string, body any, out *resourceDoc) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/"+strings.TrimLeft(path, "/"), payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errNotFound
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// waitOne polls a resource until it reaches a terminal status.
func (c *Client) waitOne(ctx context.Context, resourceID string) (resourceDoc, error) {
	for {
		var doc resourceDoc
		if err := c.do(ctx, http.MethodGet, resourceID, nil, &doc); err != nil {
			return resourceDoc{}, err
		}
		switch doc.Status.Code {
		case statusFinished:
			return doc, nil
		case statusFaulty:
			return resourceDoc{}, fmt.Errorf("build ended faulty: %s", doc.Status.Message)
		}

		select {
		case <-ctx.Done():
			return resourceDoc{}, ctx.Err()
		case <-time.After(c.pollEvery):
		}
	}
}

func (c *Client) CreateCluster(ctx context.Context, datasetID string, k int, args tune.ClusterArgs) (string, error) {
	body := map[string]any{
		"dataset": datasetID,
		"k":       k,
	}
	if args.Name != "" {
		body["name"] = args.Name
	}
	if args.Seed != "" {
		body["seed"] = args.Seed
	}
	if args.Balanced {
		body["balance_fields"] = true
	}
	if args.DefaultNumericValue != "" {
		body["default_numeric_value"] = args.DefaultNumericValue
	}
	for key, val := range args.Extra {
		body[key] = val
	}

	var doc resourceDoc
	if err := c.do(ctx, http.MethodPost, "cluster", body, &doc); err != nil {
		return "", tune.NewServiceError("create cluster", datasetID, err)
	}
	return doc.Resource, nil
}

func (c *Client) ScoreDataset(ctx context.Context, clusterID, datasetID string, opts tune.ScoreOptions) (tune.ScoreResult, error) {
	field := opts.DistanceField
	if field == "" {
		field = tune.DefaultDistanceField
	}
	body := map[string]any{
		"cluster":        clusterID,
		"dataset":        datasetID,
		"all_fields":     opts.AllFields,
		"distance":       opts.OutputDistance,
		"output_dataset": opts.OutputDataset,
		"distance_name":  field,
	}

	var doc resourceDoc
	if err := c.do(ctx, http.MethodPost, "batchcentroid", body, &doc); err != nil {
		return tune.ScoreResult{}, tune.NewServiceError("score dataset", datasetID, err)
	}
	done, err := c.waitOne(ctx, doc.Resource)
	if err != nil {
		return tune.ScoreResult{}, tune.NewServiceError("score dataset", doc.Resource, err)
	}
	if done.OutputDataset == "" {
		return tune.ScoreResult{}, tune.NewServiceError("score dataset", doc.Resource,
			errors.New("no output dataset on finished batch job"))
	}
	if _, err := c.waitOne(ctx, done.OutputDataset); err != nil {
		return tune.ScoreResult{}, tune.NewServiceError("score dataset", done.OutputDataset, err)
	}
	return tune.ScoreResult{JobID: doc.Resource, OutputDatasetID: done.OutputDataset}, nil
}

func (c *Client) SampleRows(ctx context.Context, datasetID string, opts tune.SampleOptions) (tune.Sample, error) {
	var doc resourceDoc
	if err := c.do(ctx, http.MethodPost, "sample", map[string]any{"dataset": datasetID}, &doc); err != nil {
		return tune.Sample{}, tune.NewServiceError("sample rows", datasetID, err)
	}
	if _, err := c.waitOne(ctx, doc.Resource); err != nil {
		return tune.Sample{}, tune.NewServiceError("sample rows", doc.Resource, err)
	}

	order := "asc"
	if opts.Descending {
		order = "desc"
	}
	query := fmt.Sprintf("%s?order_by=%s&order=%s&mode=%s&rows=%d&index=%t",
		doc.Resource, url.QueryEscape(opts.OrderBy), order, url.QueryEscape(opts.Mode), opts.Rows, opts.IncludeRowID)

	var full resourceDoc
	if err := c.do(ctx, http.MethodGet, query, nil, &full); err != nil {
		return tune.Sample{}, tune.NewServiceError("sample rows", doc.Resource, err)
	}
	if len(full.SampleRows) < opts.Rows {
		return tune.Sample{}, tune.NewServiceError("sample rows", doc.Resource,
			fmt.Errorf("requested %d rows, sample holds %d", opts.Rows, len(full.SampleRows)))
	}

	rows := make([]tune.ScoredRow, opts.Rows)
	for i := range rows {
		rows[i] = tune.ScoredRow{RowID: full.SampleRows[i].RowID, Distance: full.SampleRows[i].Distance}
	}
	return tune.Sample{ID: doc.Resource, Rows: rows}, nil
}

func (c *Client) FilterDataset(ctx context.Context, datasetID string, pred tune.RowFilter, inputFields []string) (string, error) {
	body := map[string]any{
		"origin_dataset": datasetID,
		"json_filter":    []any{"<", []any{"field", pred.Field}, pred.Below},
		"input_fields":   inputFields,
	}

	var doc resourceDoc
	if err := c.do(ctx, http.MethodPost, "dataset", body, &doc); err != nil {
		return "", tune.NewServiceError("filter dataset", datasetID, err)
	}
	if _, err := c.waitOne(ctx, doc.Resource); err != nil {
		return "", tune.NewServiceError("filter dataset", doc.Resource, err)
	}
	return doc.Resource, nil
}

func (c *Client) FetchDataset(ctx context.Context, datasetID string) (tune.DatasetInfo, error) {
	var doc resourceDoc
	if err := c.do(ctx, http.MethodGet, datasetID, nil, &doc); err != nil {
		return tune.DatasetInfo{}, tune.NewServiceError("fetch dataset", datasetID, err)
	}
	return tune.DatasetInfo{
		ID:          doc.Resource,
		Name:        doc.Name,
		Rows:        doc.Rows,
		InputFields: doc.InputFields,
	}, nil
}

func (c *Client) FetchCluster(ctx context.Context, clusterID string) (tune.ClusterInfo, error) {
	var doc resourceDoc
	if err := c.do(ctx, http.MethodGet, clusterID, nil, &doc); err != nil {
		return tune.ClusterInfo{}, tune.NewServiceError("fetch cluster", clusterID, err)
	}
	return tune.ClusterInfo{
		ID:          doc.Resource,
		Name:        doc.Name,
		K:           doc.K,
		InputFields: doc.InputFields,
		WithinSS:    doc.WithinSS,
		TotalSS:     doc.TotalSS,
	}, nil
}

// Delete removes a resource. An already-deleted or unknown resource is a
// no-op (false, nil) so cleanup paths can retry freely.
func (c *Client) Delete(ctx context.Context, resourceID string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, resourceID, nil, nil)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, tune.NewServiceError("delete", resourceID, err)
	}
	return true, nil
}

// WaitAll blocks until every listed resource reaches a terminal state,
// failing on the first faulty build.
func (c *Client) WaitAll(ctx context.Context, resourceIDs []string) error {
	for _, id := range resourceIDs {
		if id == "" {
			continue
		}
		if _, err := c.waitOne(ctx, id); err != nil {
			return tune.NewServiceError("wait", id, err)
		}
	}
	return nil
}

var _ tune.ModelingService = (*Client)(nil)
