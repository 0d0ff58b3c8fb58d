package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/groveplace/domainsearch/internal/availability"
	"github.com/groveplace/domainsearch/internal/evaluator"
	"github.com/groveplace/domainsearch/internal/generator"
	"github.com/groveplace/domainsearch/internal/job"
	"github.com/groveplace/domainsearch/internal/pricing"
	"github.com/groveplace/domainsearch/internal/provider"
)

type fakeGenerator struct {
	domains []string
}

func (f *fakeGenerator) Generate(ctx context.Context, req generator.Request) ([]generator.Candidate, provider.Usage) {
	out := make([]generator.Candidate, len(f.domains))
	for i, d := range f.domains {
		out[i] = generator.Candidate{Domain: d, BatchNum: req.BatchNum}
	}
	return out, provider.Usage{InputTokens: 10, OutputTokens: 20}
}

type fakeEvaluator struct {
	scores map[string]float64
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, domains []string, vibe, businessName string) ([]evaluator.Evaluation, provider.Usage) {
	out := make([]evaluator.Evaluation, len(domains))
	for i, d := range domains {
		score := f.scores[d]
		out[i] = evaluator.Evaluation{
			Domain:        d,
			Score:         score,
			WorthChecking: score > 0.4,
			Pronounceable: true,
			Memorable:     true,
			BrandFit:      true,
			EmailFriendly: true,
		}
	}
	return out, provider.Usage{InputTokens: 5, OutputTokens: 5}
}

type fakeAvailability struct {
	available map[string]bool
}

func (f *fakeAvailability) CheckBulk(ctx context.Context, domains []string) []availability.Result {
	out := make([]availability.Result, len(domains))
	for i, d := range domains {
		if f.available[d] {
			out[i] = availability.Result{Domain: d, Status: availability.StatusAvailable}
		} else {
			out[i] = availability.Result{Domain: d, Status: availability.StatusRegistered}
		}
	}
	return out
}

type fakePricing struct{}

func (fakePricing) Bulk(ctx context.Context, domains []string) map[string]pricing.Price {
	out := make(map[string]pricing.Price, len(domains))
	for _, d := range domains {
		out[d] = pricing.Price{PriceCents: 1200, RenewalCents: 1500, Category: "bundled"}
	}
	return out
}

func newTestStore(t *testing.T) job.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "job.db")
	store, err := job.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:     "job-1",
		Status: job.StatusRunning,
		Quiz: job.QuizResponses{
			BusinessName:   "Sunrise Bakery",
			TLDPreferences: []string{"com", "co", "io"},
			Vibe:           "creative",
		},
	}
}

func TestRun_HappyPathPersistsGoodResults(t *testing.T) {
	store := newTestStore(t)
	j := newTestJob()
	if err := store.Create(context.Background(), j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	domains := []string{"sunrisebakery.com", "bakerysunrise.io"}
	p := New(
		&fakeGenerator{domains: domains},
		&fakeEvaluator{scores: map[string]float64{"sunrisebakery.com": 0.9, "bakerysunrise.io": 0.85}},
		&fakeAvailability{available: map[string]bool{"sunrisebakery.com": true, "bakerysunrise.io": true}},
		fakePricing{},
		50, 6, 25,
	)

	rep, err := p.Run(context.Background(), store, j)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.BatchNum != 1 {
		t.Errorf("BatchNum = %d, want 1", rep.BatchNum)
	}
	if rep.Good != 2 {
		t.Errorf("Good = %d, want 2", rep.Good)
	}
	if rep.InputTokens != 15 || rep.OutputTokens != 25 {
		t.Errorf("tokens = %d/%d, want 15/25", rep.InputTokens, rep.OutputTokens)
	}

	results, err := store.ListDomainResults(context.Background())
	if err != nil {
		t.Fatalf("ListDomainResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Status != job.DomainAvailable {
			t.Errorf("domain %s status = %s, want available", r.Domain, r.Status)
		}
		if r.PriceCents == nil || *r.PriceCents != 1200 {
			t.Errorf("domain %s price = %v, want 1200", r.Domain, r.PriceCents)
		}
		if !r.IsGood() {
			t.Errorf("domain %s should be a good result", r.Domain)
		}
	}
}

func TestRun_LowScoreCandidatesDiscardedAsUnknown(t *testing.T) {
	store := newTestStore(t)
	j := newTestJob()
	if err := store.Create(context.Background(), j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	p := New(
		&fakeGenerator{domains: []string{"weakname.com"}},
		&fakeEvaluator{scores: map[string]float64{"weakname.com": 0.1}},
		&fakeAvailability{},
		fakePricing{},
		50, 6, 25,
	)

	if _, err := p.Run(context.Background(), store, j); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, err := store.ListDomainResults(context.Background())
	if err != nil {
		t.Fatalf("ListDomainResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Status != job.DomainUnknown {
		t.Errorf("status = %s, want unknown", results[0].Status)
	}
}

func TestRun_ZeroCandidatesRecordsZeroWorkBatch(t *testing.T) {
	store := newTestStore(t)
	j := newTestJob()
	if err := store.Create(context.Background(), j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	p := New(&fakeGenerator{domains: nil}, &fakeEvaluator{}, &fakeAvailability{}, fakePricing{}, 50, 6, 25)

	rep, err := p.Run(context.Background(), store, j)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.ZeroWork || !rep.GeneratorDegraded {
		t.Errorf("rep = %+v, want ZeroWork && GeneratorDegraded", rep)
	}

	artifact, err := store.LatestArtifact(context.Background(), job.ArtifactBatchReport)
	if err != nil {
		t.Fatalf("LatestArtifact: %v", err)
	}
	if artifact == nil {
		t.Fatal("expected a batch_report artifact even for a zero-work batch")
	}
}

func TestRun_AlreadyCheckedDomainsAreDeduplicated(t *testing.T) {
	store := newTestStore(t)
	j := newTestJob()
	if err := store.Create(context.Background(), j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.InsertDomainResult(context.Background(), &job.DomainResult{
		Domain: "sunrisebakery.com", TLD: "com", BatchNum: 0, Status: job.DomainRegistered, Score: 0.5,
	}); err != nil {
		t.Fatalf("seed InsertDomainResult: %v", err)
	}

	p := New(
		&fakeGenerator{domains: []string{"sunrisebakery.com"}},
		&fakeEvaluator{},
		&fakeAvailability{},
		fakePricing{},
		50, 6, 25,
	)

	rep, err := p.Run(context.Background(), store, j)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.ZeroWork {
		t.Errorf("rep = %+v, want ZeroWork (the only candidate was already checked)", rep)
	}
}
