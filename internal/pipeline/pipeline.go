// Package pipeline is the Batch Pipeline (C2, spec.md §4.2): one call to
// Run executes exactly one batch — generate, deduplicate, evaluate, filter,
// check availability, price, persist, report — for a single running job.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/groveplace/domainsearch/internal/availability"
	"github.com/groveplace/domainsearch/internal/evaluator"
	"github.com/groveplace/domainsearch/internal/generator"
	"github.com/groveplace/domainsearch/internal/job"
	"github.com/groveplace/domainsearch/internal/pricing"
	"github.com/groveplace/domainsearch/internal/provider"
)

// Generator is the subset of *generator.Generator the pipeline calls (§4.3).
type Generator interface {
	Generate(ctx context.Context, req generator.Request) ([]generator.Candidate, provider.Usage)
}

// Evaluator is the subset of *evaluator.Evaluator the pipeline calls (§4.4).
type Evaluator interface {
	Evaluate(ctx context.Context, domains []string, vibe, businessName string) ([]evaluator.Evaluation, provider.Usage)
}

// AvailabilityChecker is the subset of *availability.Checker the pipeline
// calls (§4.5).
type AvailabilityChecker interface {
	CheckBulk(ctx context.Context, domains []string) []availability.Result
}

// PricingClient is the subset of *pricing.Client the pipeline calls (§4.5).
type PricingClient interface {
	Bulk(ctx context.Context, domains []string) map[string]pricing.Price
}

// Bounds on the "learning between batches" context handed to the generator
// (§9 "Learning between batches"): the prompt must stay within budget as a
// job's history grows.
const (
	maxCheckedContext   = 50
	maxAvailableContext = 20
	admissionThreshold  = 0.4
	goodThreshold       = 0.8
)

// Report is the JSON body of a batch_report SearchArtifact (§4.2 step 10)
// and the summary the controller uses to log/observe a batch.
type Report struct {
	BatchNum          int    `json:"batch_num"`
	Generated         int    `json:"generated"`
	Deduplicated      int    `json:"deduplicated"`
	Evaluated         int    `json:"evaluated"`
	WorthChecking     int    `json:"worth_checking"`
	Checked           int    `json:"checked"`
	Available         int    `json:"available"`
	Good              int    `json:"good"`
	DurationMS        int64  `json:"duration_ms"`
	GeneratorDegraded bool   `json:"generator_degraded,omitempty"`
	ZeroWork          bool   `json:"zero_work,omitempty"`
	InputTokens       int64  `json:"input_tokens"`
	OutputTokens      int64  `json:"output_tokens"`
}

// Pipeline wires the C3/C4/C5 adapters together for one job's batch runs.
// A single Pipeline instance may be shared across jobs — the adapters are
// stateless/idempotent (§4.5) — only the job.Store argument to Run carries
// per-job state.
type Pipeline struct {
	gen    Generator
	eval   Evaluator
	avail  AvailabilityChecker
	prices PricingClient

	candidatesPerBatch int
	maxBatches         int
	targetGoodResults  int
}

// New constructs a Pipeline. candidatesPerBatch, maxBatches, and
// targetGoodResults mirror config.Search's CandidatesPerBatch/MaxBatches/
// TargetGoodResults; targetGoodResults is passed through to the generator
// only as informational prompt context, never used for termination here —
// the controller alone decides completion (§4.2 step 11). prices may be nil
// to disable pricing entirely.
func New(gen Generator, eval Evaluator, avail AvailabilityChecker, prices PricingClient, candidatesPerBatch, maxBatches, targetGoodResults int) *Pipeline {
	if candidatesPerBatch <= 0 {
		candidatesPerBatch = 50
	}
	return &Pipeline{
		gen:                gen,
		eval:               eval,
		avail:              avail,
		prices:             prices,
		candidatesPerBatch: candidatesPerBatch,
		maxBatches:         maxBatches,
		targetGoodResults:  targetGoodResults,
	}
}

// Run executes steps 1–10 of §4.2 against j's store. Re-arm/termination
// decisions (step 11) belong to the controller, which reads the store's
// cumulative good-result count after Run returns (§7 "Re-arm decision
// (controller, on return)").
func (p *Pipeline) Run(ctx context.Context, store job.Store, j *job.Job) (Report, error) {
	start := time.Now()

	batchNum, err := store.AdvanceBatch(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("advance batch: %w", err)
	}
	rep := Report{BatchNum: batchNum}

	checkedSet, err := store.CheckedDomains(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load checked domains: %w", err)
	}

	prior, err := store.ListDomainResults(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load prior results: %w", err)
	}

	var previous *generator.PreviousResults
	if batchNum >= 2 {
		previous = buildPreviousResults(prior, p.targetGoodResults)
	}

	candidates, genUsage := p.gen.Generate(ctx, generator.Request{
		BusinessName:   j.Quiz.BusinessName,
		TLDPreferences: j.Quiz.TLDPreferences,
		Vibe:           j.Quiz.Vibe,
		BatchNum:       batchNum,
		MaxBatches:     p.maxBatches,
		Count:          p.candidatesPerBatch,
		DomainIdea:     j.Quiz.DomainIdea,
		Keywords:       j.Quiz.Keywords,
		Previous:       previous,
	})
	rep.Generated = len(candidates)
	rep.InputTokens += int64(genUsage.InputTokens)
	rep.OutputTokens += int64(genUsage.OutputTokens)

	domains := dedupeAgainstChecked(candidates, checkedSet)
	rep.Deduplicated = len(domains)

	if len(domains) == 0 {
		rep.ZeroWork = true
		rep.GeneratorDegraded = len(candidates) == 0
		rep.DurationMS = time.Since(start).Milliseconds()
		if err := p.writeReport(ctx, store, rep); err != nil {
			return rep, err
		}
		if err := store.AddTokens(ctx, rep.InputTokens, rep.OutputTokens); err != nil {
			return rep, fmt.Errorf("record tokens: %w", err)
		}
		return rep, nil
	}

	evals, evalUsage := p.eval.Evaluate(ctx, domains, j.Quiz.Vibe, j.Quiz.BusinessName)
	rep.Evaluated = len(evals)
	rep.InputTokens += int64(evalUsage.InputTokens)
	rep.OutputTokens += int64(evalUsage.OutputTokens)

	worthChecking, discarded := partitionByWorthChecking(evals, admissionThreshold)
	rep.WorthChecking = len(worthChecking)

	for _, ev := range discarded {
		_, tld := splitDomain(ev.Domain)
		r := &job.DomainResult{
			Domain:   ev.Domain,
			TLD:      tld,
			BatchNum: batchNum,
			Status:   job.DomainUnknown,
			Score:    ev.Score,
			Flags:    append(append([]string{}, ev.Flags...), "discarded: below admission threshold"),
		}
		r.EvaluationData = marshalEvalData(ev, "", "", "", nil)
		if err := store.InsertDomainResult(ctx, r); err != nil {
			return rep, fmt.Errorf("persist discarded %s: %w", ev.Domain, err)
		}
	}

	checkDomains := make([]string, len(worthChecking))
	for i, ev := range worthChecking {
		checkDomains[i] = ev.Domain
	}
	availResults := p.avail.CheckBulk(ctx, checkDomains)
	rep.Checked = len(availResults)

	availByDomain := make(map[string]availability.Result, len(availResults))
	var availableDomains []string
	for _, r := range availResults {
		availByDomain[strings.ToLower(r.Domain)] = r
		if r.Status == availability.StatusAvailable {
			availableDomains = append(availableDomains, r.Domain)
			rep.Available++
		}
	}

	var priceByDomain map[string]pricing.Price
	if p.prices != nil {
		priceByDomain = p.prices.Bulk(ctx, availableDomains)
	}

	for _, ev := range worthChecking {
		ar, ok := availByDomain[strings.ToLower(ev.Domain)]
		if !ok {
			continue
		}
		_, tld := splitDomain(ev.Domain)

		status := job.DomainUnknown
		switch ar.Status {
		case availability.StatusAvailable:
			status = job.DomainAvailable
		case availability.StatusRegistered:
			status = job.DomainRegistered
		}

		var priceCents *int
		category := ""
		var renewal *int
		if price, ok := priceByDomain[strings.ToLower(ev.Domain)]; ok {
			pc := price.PriceCents
			priceCents = &pc
			category = price.Category
			rc := price.RenewalCents
			renewal = &rc
		}

		r := &job.DomainResult{
			Domain:     ev.Domain,
			TLD:        tld,
			BatchNum:   batchNum,
			Status:     status,
			PriceCents: priceCents,
			Score:      ev.Score,
			Flags:      ev.Flags,
		}
		r.EvaluationData = marshalEvalData(ev, ar.Registrar, ar.Expiration, category, renewal)

		if status == job.DomainAvailable && ev.Score >= goodThreshold {
			rep.Good++
		}

		if err := store.InsertDomainResult(ctx, r); err != nil {
			return rep, fmt.Errorf("persist %s: %w", ev.Domain, err)
		}
	}

	rep.DurationMS = time.Since(start).Milliseconds()

	if err := p.writeReport(ctx, store, rep); err != nil {
		return rep, err
	}
	if err := store.AddTokens(ctx, rep.InputTokens, rep.OutputTokens); err != nil {
		return rep, fmt.Errorf("record tokens: %w", err)
	}
	return rep, nil
}

func (p *Pipeline) writeReport(ctx context.Context, store job.Store, rep Report) error {
	content, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal batch report: %w", err)
	}
	return store.InsertArtifact(ctx, &job.SearchArtifact{
		BatchNum:     rep.BatchNum,
		ArtifactType: job.ArtifactBatchReport,
		Content:      string(content),
	})
}

// buildPreviousResults derives the bounded learning context from every
// DomainResult persisted so far (§9 "last 50 checked, last 20 available").
func buildPreviousResults(prior []*job.DomainResult, targetCount int) *generator.PreviousResults {
	checked := make([]string, 0, len(prior))
	var available []string
	for _, r := range prior {
		checked = append(checked, r.Domain)
		if r.Status == job.DomainAvailable {
			available = append(available, r.Domain)
		}
	}
	return &generator.PreviousResults{
		CheckedDomains:   tail(checked, maxCheckedContext),
		AvailableDomains: tail(available, maxAvailableContext),
		TargetCount:      targetCount,
	}
}

func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func dedupeAgainstChecked(candidates []generator.Candidate, checked map[string]bool) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range candidates {
		d := strings.ToLower(c.Domain)
		if checked[d] || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func partitionByWorthChecking(evals []evaluator.Evaluation, minScore float64) (worth, discarded []evaluator.Evaluation) {
	for _, e := range evals {
		if e.WorthChecking && e.Score >= minScore {
			worth = append(worth, e)
		} else {
			discarded = append(discarded, e)
		}
	}
	return worth, discarded
}

func splitDomain(domain string) (name, tld string) {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 {
		return domain, ""
	}
	return domain[:idx], domain[idx+1:]
}

type evalDataPayload struct {
	Pronounceable bool   `json:"pronounceable"`
	Memorable     bool   `json:"memorable"`
	BrandFit      bool   `json:"brand_fit"`
	EmailFriendly bool   `json:"email_friendly"`
	WorthChecking bool   `json:"worth_checking"`
	Notes         string `json:"notes,omitempty"`
	Registrar     string `json:"registrar,omitempty"`
	Expiration    string `json:"expiration,omitempty"`
	Category      string `json:"pricing_category,omitempty"`
	RenewalCents  *int   `json:"renewal_cents,omitempty"`
}

func marshalEvalData(ev evaluator.Evaluation, registrar, expiration, category string, renewalCents *int) json.RawMessage {
	payload := evalDataPayload{
		Pronounceable: ev.Pronounceable,
		Memorable:     ev.Memorable,
		BrandFit:      ev.BrandFit,
		EmailFriendly: ev.EmailFriendly,
		WorthChecking: ev.WorthChecking,
		Notes:         ev.Notes,
		Registrar:     registrar,
		Expiration:    expiration,
		Category:      category,
		RenewalCents:  renewalCents,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
