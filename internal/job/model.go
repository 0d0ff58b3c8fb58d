// Package job owns the per-job persisted state: the search_job row, its
// domain_results, and its search_artifacts, all in a single SQLite file
// private to one job.
package job

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusRunning       Status = "running"
	StatusComplete      Status = "complete"
	StatusNeedsFollowup Status = "needs_followup"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
)

// IsTerminal returns true for statuses that represent a final state.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCancelled
}

// QuizResponses is the immutable-after-creation questionnaire (spec.md §3).
type QuizResponses struct {
	BusinessName   string   `json:"business_name"`
	TLDPreferences []string `json:"tld_preferences"`
	Vibe           string   `json:"vibe"`
	DomainIdea     string   `json:"domain_idea,omitempty"`
	Keywords       string   `json:"keywords,omitempty"`
	ClientEmail    string   `json:"client_email,omitempty"`
}

// Validate enforces the minimal shape required for a job to start.
func (q *QuizResponses) Validate() error {
	if q.BusinessName == "" {
		return errors.New("business_name must not be empty")
	}
	if len(q.TLDPreferences) == 0 {
		return errors.New("tld_preferences must not be empty")
	}
	if q.Vibe == "" {
		return errors.New("vibe must not be empty")
	}
	return nil
}

// FollowupResponses is set once, when resuming from needs_followup (§3, §8 scenario 3).
type FollowupResponses map[string]string

// Job is the singleton row for one search (§3 "Job").
type Job struct {
	ID                string
	ClientID          string
	Status            Status
	BatchNum          int
	Quiz              QuizResponses
	Followup          FollowupResponses
	DriverProvider    string
	SwarmProvider     string
	TotalInputTokens  int64
	TotalOutputTokens int64
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	WakeAt            *time.Time
}

// CreateRequest is the payload for /start (§6).
type CreateRequest struct {
	JobID          string        `json:"job_id"`
	ClientID       string        `json:"client_id"`
	Quiz           QuizResponses `json:"quiz_responses"`
	DriverProvider string        `json:"driver_provider,omitempty"`
	SwarmProvider  string        `json:"swarm_provider,omitempty"`
}

func (r *CreateRequest) Validate() error {
	if r.JobID == "" {
		return errors.New("job_id must not be empty")
	}
	return r.Quiz.Validate()
}

// DomainStatus is the outcome of a registry lookup for a candidate (§3 "DomainResult").
type DomainStatus string

const (
	DomainAvailable  DomainStatus = "available"
	DomainRegistered DomainStatus = "registered"
	DomainUnknown    DomainStatus = "unknown"
)

// DomainResult is one row per domain string checked in a job (§3).
type DomainResult struct {
	Domain         string
	TLD            string
	BatchNum       int
	Status         DomainStatus
	PriceCents     *int
	Score          float64
	Flags          []string
	EvaluationData json.RawMessage
}

// IsGood reports whether this result counts toward the termination target
// (§4.2: score >= 0.8 for termination, distinct from the 0.4 admission
// threshold applied earlier in the pipeline).
func (d DomainResult) IsGood() bool {
	return d.Status == DomainAvailable && d.Score >= 0.8
}

// ArtifactType enumerates the kinds of SearchArtifact rows (§3).
type ArtifactType string

const (
	ArtifactBatchReport   ArtifactType = "batch_report"
	ArtifactStrategyNotes ArtifactType = "strategy_notes"
	ArtifactFollowupQuiz  ArtifactType = "followup_quiz"
)

// SearchArtifact is an append-only opaque-content row (§3).
type SearchArtifact struct {
	BatchNum     int
	ArtifactType ArtifactType
	Content      string
	CreatedAt    time.Time
}
