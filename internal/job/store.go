package job

import (
	"context"
	"time"
)

// Store persists one job's search_job row, domain_results, and
// search_artifacts. One Store instance owns exactly one job (§3 "Each job
// owns a private embedded SQL store").
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context) (*Job, error)
	UpdateStatus(ctx context.Context, status Status, errMsg string) error
	// AdvanceBatch atomically increments batch_num and returns the new value
	// (§4.2 step 1).
	AdvanceBatch(ctx context.Context) (int, error)
	// RecordWakeAt persists the next wake-up time, or clears it when at is nil
	// (§4.1 "at most one pending wake-up").
	RecordWakeAt(ctx context.Context, at *time.Time) error
	// AddTokens increments the monotonic token counters (§3 invariant 5).
	AddTokens(ctx context.Context, input, output int64) error
	SetFollowup(ctx context.Context, responses FollowupResponses) error

	// InsertDomainResult is insert-or-replace keyed by lowercase domain
	// (§3 invariant 1).
	InsertDomainResult(ctx context.Context, r *DomainResult) error
	ListDomainResults(ctx context.Context) ([]*DomainResult, error)
	// ListAvailableDomains returns available rows ordered by score DESC,
	// price_cents ASC NULLS LAST (§4.1 results()), capped at limit.
	ListAvailableDomains(ctx context.Context, limit int) ([]*DomainResult, error)
	// CheckedDomains returns the set of all domains ever written, lowercased.
	CheckedDomains(ctx context.Context) (map[string]bool, error)

	InsertArtifact(ctx context.Context, a *SearchArtifact) error
	LatestArtifact(ctx context.Context, t ArtifactType) (*SearchArtifact, error)

	Close() error
}
