// Package tune decides how many centroids a k-means clustering should use and
// which rows of a dataset are anomalous, delegating all actual clustering,
// scoring, and sampling to a remote modeling service.
//
// # Reading Guide
//
// Start with these three files to understand the control loops:
//   - service.go: the ModelingService capability interface and resource metadata types
//   - anomaly.go: the k-means minus-minus loop (cluster, drop the most distant rows, repeat)
//   - kselect.go: candidate generation, Pham-Dimov-Nguyen scoring, and winner selection
//
// # Architecture
//
// The package never computes a distance or a centroid itself. Every cluster,
// scored dataset, sample, and filtered dataset is a resource created on the
// service; the loops here only sequence those creations, read the returned
// metadata, and delete what they no longer need. Implementations of
// ModelingService live elsewhere:
//   - remote/: HTTP client for a hosted modeling API
//   - tune/internal/servicetest/: deterministic in-memory fake for tests
//
// Both loops own every resource they create: whatever is not part of the
// returned result is deleted before returning, and deletions are best-effort
// (a failed delete is logged, never escalated).
package tune
