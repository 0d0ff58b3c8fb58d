// Package controller is the Job Controller (C1, spec.md §4.1): it owns the
// state machine from pending through running to a terminal status, routes
// every RPC operation against exactly one job's store, and arms/disarms the
// scheduler's per-job wake-up timer.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groveplace/domainsearch/internal/apierr"
	"github.com/groveplace/domainsearch/internal/availability"
	"github.com/groveplace/domainsearch/internal/config"
	"github.com/groveplace/domainsearch/internal/evaluator"
	"github.com/groveplace/domainsearch/internal/generator"
	"github.com/groveplace/domainsearch/internal/job"
	"github.com/groveplace/domainsearch/internal/jobindex"
	"github.com/groveplace/domainsearch/internal/notify"
	"github.com/groveplace/domainsearch/internal/pipeline"
	"github.com/groveplace/domainsearch/internal/pricing"
	"github.com/groveplace/domainsearch/internal/provider"
)

// Scheduler is the subset of *scheduler.Scheduler the controller drives.
type Scheduler interface {
	Arm(jobID string, delay time.Duration)
	Disarm(jobID string)
}

// StatusSnapshot is the /status RPC response (§4.1 "status()").
type StatusSnapshot struct {
	JobID             string  `json:"job_id"`
	Status            string  `json:"status"`
	BatchNum          int     `json:"batch_num"`
	DomainsChecked    int     `json:"domains_checked"`
	AvailableCount    int     `json:"available_count"`
	GoodResultCount   int     `json:"good_result_count"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
	Error             string  `json:"error,omitempty"`
}

// RankedDomain is one entry in a /results response.
type RankedDomain struct {
	Domain     string `json:"domain"`
	Score      float64 `json:"score"`
	PriceCents *int    `json:"price_cents,omitempty"`
	Category   string  `json:"category"`
}

// ResultsSnapshot is the /results RPC response (§4.1 "results()").
type ResultsSnapshot struct {
	Domains           []RankedDomain `json:"domains"`
	CategoryHistogram map[string]int `json:"category_histogram"`
	TotalInputTokens  int64          `json:"total_input_tokens"`
	TotalOutputTokens int64          `json:"total_output_tokens"`
}

// StreamSnapshot is the /stream SSE payload (§4.1 "stream()").
type StreamSnapshot struct {
	JobID            string   `json:"job_id"`
	Status           string   `json:"status"`
	RecentAvailable  []string `json:"recent_available"`
	DomainIdeaStatus string   `json:"domain_idea_status,omitempty"`
}

// Controller is the Job Controller. One instance serves every job in the
// process; per-job state lives entirely in each job's own store (§9
// "Singleton-per-job SQL store as state").
type Controller struct {
	cfg       *config.Config
	index     *jobindex.Index
	scheduler Scheduler
	avail     pipeline.AvailabilityChecker
	prices    pipeline.PricingClient

	mu     sync.Mutex
	stores map[string]job.Store
	locks  map[string]*sync.Mutex
}

// New constructs a Controller. avail/prices are shared, stateless adapters
// (§4.5); generator/evaluator adapters are built per job since driver and
// swarm providers can be overridden per job (§3 "driver_provider,
// swarm_provider").
func New(cfg *config.Config, index *jobindex.Index, sched Scheduler, avail *availability.Checker, prices *pricing.Client) *Controller {
	return &Controller{
		cfg:       cfg,
		index:     index,
		scheduler: sched,
		avail:     avail,
		prices:    prices,
		stores:    make(map[string]job.Store),
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetScheduler wires the scheduler after construction, breaking the
// Controller/Scheduler initialization cycle (the scheduler's Runner is the
// controller itself, so one of the two references must be set late).
func (c *Controller) SetScheduler(sched Scheduler) {
	c.scheduler = sched
}

func (c *Controller) jobLock(jobID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[jobID] = l
	}
	return l
}

// openStore returns the cached Store for jobID, opening its SQLite file on
// first use (§9 "the store is the authoritative resumable state").
func (c *Controller) openStore(jobID string) (job.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[jobID]; ok {
		return s, nil
	}
	s, err := job.NewSQLiteStore(job.DBPath(c.cfg.DataDir, jobID))
	if err != nil {
		return nil, fmt.Errorf("open store for job %s: %w", jobID, err)
	}
	c.stores[jobID] = s
	return s, nil
}

// Start implements /start (§4.1). Fails with Conflict if the job already exists.
func (c *Controller) Start(ctx context.Context, req job.CreateRequest) (*job.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, apierr.Input("%s", err.Error())
	}
	if req.DriverProvider != "" && !config.ValidProvider(req.DriverProvider) {
		return nil, apierr.Input("unknown driver_provider %q", req.DriverProvider)
	}
	if req.SwarmProvider != "" && !config.ValidProvider(req.SwarmProvider) {
		return nil, apierr.Input("unknown swarm_provider %q", req.SwarmProvider)
	}

	lock := c.jobLock(req.JobID)
	lock.Lock()
	defer lock.Unlock()

	store, err := c.openStore(req.JobID)
	if err != nil {
		return nil, err
	}
	if existing, err := store.Get(ctx); err != nil {
		return nil, fmt.Errorf("check existing job: %w", err)
	} else if existing != nil {
		return nil, apierr.Conflict("job %s already exists", req.JobID)
	}

	now := time.Now().UTC()
	j := &job.Job{
		ID:             req.JobID,
		ClientID:       req.ClientID,
		Status:         job.StatusRunning,
		Quiz:           req.Quiz,
		DriverProvider: req.DriverProvider,
		SwarmProvider:  req.SwarmProvider,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	c.scheduler.Arm(req.JobID, 0)
	if err := c.syncIndex(ctx, store, j); err != nil {
		slog.Warn("controller: index sync failed after start", "job_id", req.JobID, "error", err)
	}
	slog.Info("controller: job started", "job_id", req.JobID, "client_id", req.ClientID)
	return j, nil
}

// Status implements /status (§4.1). Pure read.
func (c *Controller) Status(ctx context.Context, jobID string) (*StatusSnapshot, error) {
	store, j, err := c.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	results, err := store.ListDomainResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list domain results: %w", err)
	}
	available, good := countByStatus(results)

	cost := estimateCostUSD(c.cfg, j)

	return &StatusSnapshot{
		JobID:             j.ID,
		Status:            string(j.Status),
		BatchNum:          j.BatchNum,
		DomainsChecked:    len(results),
		AvailableCount:    available,
		GoodResultCount:   good,
		TotalInputTokens:  j.TotalInputTokens,
		TotalOutputTokens: j.TotalOutputTokens,
		EstimatedCostUSD:  cost,
		Error:             j.Error,
	}, nil
}

// Results implements /results (§4.1 "results()"): up to 50 available
// domains ranked by score DESC, price ASC NULLS LAST, annotated with a
// pricing category, plus a category histogram and token totals.
func (c *Controller) Results(ctx context.Context, jobID string) (*ResultsSnapshot, error) {
	store, j, err := c.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	rows, err := store.ListAvailableDomains(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("list available domains: %w", err)
	}

	histogram := map[string]int{"bundled": 0, "recommended": 0, "premium": 0, "unknown": 0}
	domains := make([]RankedDomain, len(rows))
	for i, r := range rows {
		category := c.cfg.Pricing.Category(r.PriceCents)
		histogram[category]++
		domains[i] = RankedDomain{Domain: r.Domain, Score: r.Score, PriceCents: r.PriceCents, Category: category}
	}

	return &ResultsSnapshot{
		Domains:           domains,
		CategoryHistogram: histogram,
		TotalInputTokens:  j.TotalInputTokens,
		TotalOutputTokens: j.TotalOutputTokens,
	}, nil
}

// Followup implements /followup (§4.1). NotFound if no quiz artifact exists.
func (c *Controller) Followup(ctx context.Context, jobID string) (*job.SearchArtifact, error) {
	store, _, err := c.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	artifact, err := store.LatestArtifact(ctx, job.ArtifactFollowupQuiz)
	if err != nil {
		return nil, fmt.Errorf("load followup artifact: %w", err)
	}
	if artifact == nil {
		return nil, apierr.NotFound("job %s has no followup quiz", jobID)
	}
	return artifact, nil
}

// Resume implements /resume (§4.1): only valid from needs_followup.
func (c *Controller) Resume(ctx context.Context, jobID string, responses job.FollowupResponses) error {
	lock := c.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	store, j, err := c.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusNeedsFollowup {
		return apierr.Input("job %s is not awaiting followup (status=%s)", jobID, j.Status)
	}

	if err := store.SetFollowup(ctx, responses); err != nil {
		return fmt.Errorf("record followup responses: %w", err)
	}
	if err := store.UpdateStatus(ctx, job.StatusRunning, ""); err != nil {
		return fmt.Errorf("resume job: %w", err)
	}
	c.scheduler.Arm(jobID, 0)

	j.Status = job.StatusRunning
	if err := c.syncIndex(ctx, store, j); err != nil {
		slog.Warn("controller: index sync failed after resume", "job_id", jobID, "error", err)
	}
	slog.Info("controller: job resumed", "job_id", jobID)
	return nil
}

// Cancel implements /cancel (§4.1): valid from pending or running only.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	lock := c.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	store, j, err := c.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusPending && j.Status != job.StatusRunning {
		return apierr.Input("job %s cannot be cancelled from status %s", jobID, j.Status)
	}

	if err := store.UpdateStatus(ctx, job.StatusCancelled, ""); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	c.scheduler.Disarm(jobID)

	j.Status = job.StatusCancelled
	if err := c.syncIndex(ctx, store, j); err != nil {
		slog.Warn("controller: index sync failed after cancel", "job_id", jobID, "error", err)
	}
	slog.Info("controller: job cancelled", "job_id", jobID)
	return nil
}

// Stream implements /stream (§4.1 "stream()").
func (c *Controller) Stream(ctx context.Context, jobID string) (*StreamSnapshot, error) {
	store, j, err := c.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	rows, err := store.ListAvailableDomains(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("list available domains: %w", err)
	}
	recent := make([]string, len(rows))
	for i, r := range rows {
		recent[i] = r.Domain
	}

	snap := &StreamSnapshot{JobID: j.ID, Status: string(j.Status), RecentAvailable: recent}
	if j.Quiz.DomainIdea != "" {
		all, err := store.ListDomainResults(ctx)
		if err != nil {
			return nil, fmt.Errorf("list domain results: %w", err)
		}
		snap.DomainIdeaStatus = domainIdeaStatus(all, j.Quiz.DomainIdea)
	}
	return snap, nil
}

// RunDueBatch implements scheduler.Runner: it is invoked once per fired
// wake-up and performs the pipeline run plus the §4.2 step 11 re-arm
// decision. Errors are logged, never propagated — a failed batch
// transitions the job to failed rather than bubbling up to the scheduler's
// ticker loop.
func (c *Controller) RunDueBatch(ctx context.Context, jobID string) {
	lock := c.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	store, err := c.openStore(jobID)
	if err != nil {
		slog.Error("controller: cannot open store for due batch", "job_id", jobID, "error", err)
		return
	}
	j, err := store.Get(ctx)
	if err != nil {
		slog.Error("controller: cannot load job for due batch", "job_id", jobID, "error", err)
		return
	}
	if j == nil {
		slog.Warn("controller: due batch for unknown job, ignoring", "job_id", jobID)
		return
	}
	if j.Status != job.StatusRunning {
		// A timer firing with the job in a terminal state is a silent no-op
		// (§4.1); a job awaiting followup runs no batch until it is resumed.
		return
	}

	pl, err := c.buildPipeline(j)
	if err != nil {
		c.fail(ctx, store, j, fmt.Errorf("build pipeline: %w", err))
		return
	}

	rep, err := pl.Run(ctx, store, j)
	if err != nil {
		c.fail(ctx, store, j, err)
		return
	}
	slog.Info("controller: batch complete", "job_id", jobID, "batch_num", rep.BatchNum, "generated", rep.Generated, "good", rep.Good)

	results, err := store.ListDomainResults(ctx)
	if err != nil {
		c.fail(ctx, store, j, fmt.Errorf("list results after batch: %w", err))
		return
	}
	_, good := countByStatus(results)

	j.BatchNum = rep.BatchNum
	switch {
	case good >= c.cfg.Search.TargetGoodResults:
		c.complete(ctx, store, j)
	case rep.BatchNum >= c.cfg.Search.MaxBatches:
		c.requestFollowup(ctx, store, j)
	default:
		delay := time.Duration(c.cfg.Search.BatchTimerDelaySeconds) * time.Second
		if err := store.RecordWakeAt(ctx, wakeAtPtr(delay)); err != nil {
			slog.Warn("controller: record wake_at failed", "job_id", jobID, "error", err)
		}
		c.scheduler.Arm(jobID, delay)
		if err := c.syncIndex(ctx, store, j); err != nil {
			slog.Warn("controller: index sync failed after batch", "job_id", jobID, "error", err)
		}
	}
}

func (c *Controller) fail(ctx context.Context, store job.Store, j *job.Job, cause error) {
	slog.Error("controller: pipeline failed", "job_id", j.ID, "error", cause)
	if err := store.UpdateStatus(ctx, job.StatusFailed, cause.Error()); err != nil {
		slog.Error("controller: failed to record failure status", "job_id", j.ID, "error", err)
	}
	c.scheduler.Disarm(j.ID)
	j.Status = job.StatusFailed
	j.Error = cause.Error()
	if err := c.syncIndex(ctx, store, j); err != nil {
		slog.Warn("controller: index sync failed after failure", "job_id", j.ID, "error", err)
	}
}

func (c *Controller) complete(ctx context.Context, store job.Store, j *job.Job) {
	if err := store.UpdateStatus(ctx, job.StatusComplete, ""); err != nil {
		slog.Error("controller: failed to record completion", "job_id", j.ID, "error", err)
		return
	}
	c.scheduler.Disarm(j.ID)
	j.Status = job.StatusComplete
	if err := c.syncIndex(ctx, store, j); err != nil {
		slog.Warn("controller: index sync failed after completion", "job_id", j.ID, "error", err)
	}

	topDomains := c.topDomainNames(ctx, store, 5)
	notify.Results(withoutCancel(ctx), c.cfg.Notify.WebhookURL, notify.Event{
		JobID:       j.ID,
		ClientID:    j.ClientID,
		ClientEmail: j.Quiz.ClientEmail,
		TopDomains:  topDomains,
	})
	slog.Info("controller: job complete", "job_id", j.ID)
}

func (c *Controller) requestFollowup(ctx context.Context, store job.Store, j *job.Job) {
	quiz := buildFollowupQuiz()
	content, err := json.Marshal(quiz)
	if err != nil {
		c.fail(ctx, store, j, fmt.Errorf("marshal followup quiz: %w", err))
		return
	}
	if err := store.InsertArtifact(ctx, &job.SearchArtifact{
		BatchNum:     j.BatchNum,
		ArtifactType: job.ArtifactFollowupQuiz,
		Content:      string(content),
	}); err != nil {
		c.fail(ctx, store, j, fmt.Errorf("persist followup quiz: %w", err))
		return
	}
	if err := store.UpdateStatus(ctx, job.StatusNeedsFollowup, ""); err != nil {
		slog.Error("controller: failed to record needs_followup", "job_id", j.ID, "error", err)
		return
	}
	c.scheduler.Disarm(j.ID)
	j.Status = job.StatusNeedsFollowup
	if err := c.syncIndex(ctx, store, j); err != nil {
		slog.Warn("controller: index sync failed after needs_followup", "job_id", j.ID, "error", err)
	}

	notify.Followup(withoutCancel(ctx), c.cfg.Notify.WebhookURL, notify.Event{
		JobID:       j.ID,
		ClientID:    j.ClientID,
		ClientEmail: j.Quiz.ClientEmail,
	})
	slog.Info("controller: job needs followup", "job_id", j.ID, "batch_num", j.BatchNum)
}

// followupQuiz is the three-question artifact scenario 2 of §8 describes.
type followupQuiz struct {
	Questions []followupQuestion `json:"questions"`
}

type followupQuestion struct {
	Key     string   `json:"key"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

func buildFollowupQuiz() followupQuiz {
	return followupQuiz{Questions: []followupQuestion{
		{
			Key:     "followup_direction",
			Prompt:  "Should we try a different naming direction or different TLDs?",
			Options: []string{"different_tld", "same_direction", "different_direction"},
		},
		{
			Key:     "followup_length",
			Prompt:  "Are longer domain names acceptable if it opens up more options?",
			Options: []string{"longer_ok", "keep_short"},
		},
		{
			Key:    "followup_keywords",
			Prompt: "Any additional keywords or themes we should incorporate?",
		},
	}}
}

func (c *Controller) topDomainNames(ctx context.Context, store job.Store, limit int) []string {
	rows, err := store.ListAvailableDomains(ctx, limit)
	if err != nil {
		return nil
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Domain
	}
	return names
}

func (c *Controller) buildPipeline(j *job.Job) (*pipeline.Pipeline, error) {
	driverName := j.DriverProvider
	if driverName == "" {
		driverName = c.cfg.Models.DriverProvider
	}
	swarmName := j.SwarmProvider
	if swarmName == "" {
		swarmName = c.cfg.Models.SwarmProvider
	}

	driverProv, err := provider.New(driverName, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("driver provider: %w", err)
	}
	swarmProv, err := provider.New(swarmName, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("swarm provider: %w", err)
	}

	gen := generator.New(driverProv, "")
	ev := evaluator.New(swarmProv, "", c.cfg.RateLimit.EvalChunkSize, c.cfg.RateLimit.MaxConcurrentEval)

	return pipeline.New(gen, ev, c.avail, c.prices, c.cfg.Search.CandidatesPerBatch, c.cfg.Search.MaxBatches, c.cfg.Search.TargetGoodResults), nil
}

func (c *Controller) getJob(ctx context.Context, jobID string) (job.Store, *job.Job, error) {
	store, err := c.openStore(jobID)
	if err != nil {
		return nil, nil, err
	}
	j, err := store.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if j == nil {
		return nil, nil, apierr.NotFound("job %s not found", jobID)
	}
	return store, j, nil
}

func (c *Controller) syncIndex(ctx context.Context, store job.Store, j *job.Job) error {
	if c.index == nil {
		return nil
	}
	results, err := store.ListDomainResults(ctx)
	if err != nil {
		return fmt.Errorf("list domain results for index sync: %w", err)
	}
	_, good := countByStatus(results)
	return c.index.Upsert(ctx, &jobindex.Entry{
		JobID:          j.ID,
		ClientID:       j.ClientID,
		Status:         string(j.Status),
		BusinessName:   j.Quiz.BusinessName,
		BatchNum:       j.BatchNum,
		DomainsChecked: len(results),
		GoodResults:    good,
		CreatedAt:      j.CreatedAt,
	})
}

// Recover re-arms the scheduler for every non-terminal job found in the
// index after a process restart (§3 invariant 6: "a job persists and can be
// reconstituted from the store alone; no other memory is required to
// resume after a crash between batches" — the scheduler's wake-up table is
// in-memory only, so it must be rebuilt from persisted state on startup).
func (c *Controller) Recover(ctx context.Context) error {
	if c.index == nil {
		return nil
	}
	entries, _, err := c.index.List(ctx, 10000, 0, "")
	if err != nil {
		return fmt.Errorf("list job_index for recovery: %w", err)
	}

	for _, e := range entries {
		if job.Status(e.Status).IsTerminal() {
			continue
		}
		store, err := c.openStore(e.JobID)
		if err != nil {
			slog.Warn("controller: recovery failed to open store", "job_id", e.JobID, "error", err)
			continue
		}
		j, err := store.Get(ctx)
		if err != nil || j == nil {
			slog.Warn("controller: recovery failed to load job", "job_id", e.JobID, "error", err)
			continue
		}
		delay := time.Duration(0)
		if j.WakeAt != nil {
			if d := time.Until(*j.WakeAt); d > 0 {
				delay = d
			}
		}
		c.scheduler.Arm(j.ID, delay)
		slog.Info("controller: recovered job", "job_id", j.ID, "status", j.Status, "delay", delay)
	}
	return nil
}

// Reindex rebuilds jobID's job_index row from its own store. It backs the
// `/api/backfill` RPC (§6 "rebuild index rows by polling each job's
// /status").
func (c *Controller) Reindex(ctx context.Context, jobID string) error {
	store, j, err := c.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	return c.syncIndex(ctx, store, j)
}

// Close closes every cached per-job store. Call once at process shutdown.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, s := range c.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close store %s: %w", id, err)
		}
	}
	return firstErr
}

func countByStatus(results []*job.DomainResult) (available, good int) {
	for _, r := range results {
		if r.Status == job.DomainAvailable {
			available++
		}
		if r.IsGood() {
			good++
		}
	}
	return available, good
}

func domainIdeaStatus(results []*job.DomainResult, idea string) string {
	for _, r := range results {
		if r.Domain == idea {
			return string(r.Status)
		}
	}
	return "unchecked"
}

func wakeAtPtr(delay time.Duration) *time.Time {
	t := time.Now().Add(delay)
	return &t
}

// driverShare is the fraction of total token traffic attributed to the
// driver (generator) provider versus the swarm (evaluator) provider for
// cost estimation purposes, since the store tracks only a combined total
// (§19 "Cost estimation", grounded on orchestrator.py's UsageStats:
// "Rough estimate: 20% Sonnet, 80% Haiku").
const driverShare = 0.2

func estimateCostUSD(cfg *config.Config, j *job.Job) float64 {
	driverCost := config.ProviderCostFor(orDefault(j.DriverProvider, cfg.Models.DriverProvider))
	swarmCost := config.ProviderCostFor(orDefault(j.SwarmProvider, cfg.Models.SwarmProvider))

	driverIn := float64(j.TotalInputTokens) * driverShare
	driverOut := float64(j.TotalOutputTokens) * driverShare
	swarmIn := float64(j.TotalInputTokens) * (1 - driverShare)
	swarmOut := float64(j.TotalOutputTokens) * (1 - driverShare)

	cost := driverIn/1_000_000*driverCost.InputPerMillion + driverOut/1_000_000*driverCost.OutputPerMillion
	cost += swarmIn/1_000_000*swarmCost.InputPerMillion + swarmOut/1_000_000*swarmCost.OutputPerMillion
	return roundCents(cost)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func roundCents(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

func withoutCancel(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
