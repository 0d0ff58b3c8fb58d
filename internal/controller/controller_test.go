package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/groveplace/domainsearch/internal/apierr"
	"github.com/groveplace/domainsearch/internal/availability"
	"github.com/groveplace/domainsearch/internal/config"
	"github.com/groveplace/domainsearch/internal/job"
	"github.com/groveplace/domainsearch/internal/jobindex"
	"github.com/groveplace/domainsearch/internal/pricing"
)

// fakeScheduler records Arm/Disarm calls instead of driving a real ticker,
// matching the teacher's scheduler_test.go fakeRunner style.
type fakeScheduler struct {
	mu      sync.Mutex
	armed   map[string]time.Duration
	disarms int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[string]time.Duration)}
}

func (f *fakeScheduler) Arm(jobID string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[jobID] = delay
}

func (f *fakeScheduler) Disarm(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, jobID)
	f.disarms++
}

func (f *fakeScheduler) isArmed(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[jobID]
	return ok
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Cheap()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newTestController(t *testing.T) (*Controller, *fakeScheduler, *jobindex.Index) {
	t.Helper()
	cfg := testConfig(t)
	idx, err := jobindex.Open(cfg.DataDir + "/index.db")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	sched := newFakeScheduler()
	var avail *availability.Checker
	var prices *pricing.Client
	c := New(cfg, idx, sched, avail, prices)
	t.Cleanup(func() { c.Close() })
	return c, sched, idx
}

func validQuiz() job.QuizResponses {
	return job.QuizResponses{
		BusinessName:   "Sunrise Bakery",
		TLDPreferences: []string{"com", "co", "io"},
		Vibe:           "creative",
	}
}

func TestStart_CreatesRunningJobAndArmsImmediately(t *testing.T) {
	t.Parallel()
	c, sched, _ := newTestController(t)
	ctx := context.Background()

	j, err := c.Start(ctx, job.CreateRequest{JobID: "job-1", ClientID: "client-1", Quiz: validQuiz()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if j.Status != job.StatusRunning {
		t.Errorf("status = %q, want running", j.Status)
	}
	if j.BatchNum != 0 {
		t.Errorf("batch_num = %d, want 0", j.BatchNum)
	}
	if delay, ok := sched.armed["job-1"]; !ok || delay != 0 {
		t.Errorf("scheduler armed = (%v, %v), want (0, true)", delay, ok)
	}
}

func TestStart_Conflict(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	ctx := context.Background()
	req := job.CreateRequest{JobID: "job-1", ClientID: "client-1", Quiz: validQuiz()}

	if _, err := c.Start(ctx, req); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	_, err := c.Start(ctx, req)
	if err == nil {
		t.Fatal("second Start: want Conflict error, got nil")
	}
	var apiErr *apierr.Error
	if !asAPIErr(err, &apiErr) || apiErr.Kind != apierr.KindConflict {
		t.Errorf("err = %v, want KindConflict", err)
	}
}

func TestStart_RejectsInvalidQuiz(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.Start(ctx, job.CreateRequest{JobID: "job-2", Quiz: job.QuizResponses{}})
	if err == nil {
		t.Fatal("want Input error for empty quiz, got nil")
	}
	var apiErr *apierr.Error
	if !asAPIErr(err, &apiErr) || apiErr.Kind != apierr.KindInput {
		t.Errorf("err = %v, want KindInput", err)
	}
}

func TestStart_RejectsUnknownProvider(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.Start(ctx, job.CreateRequest{JobID: "job-3", Quiz: validQuiz(), DriverProvider: "not-a-provider"})
	if err == nil {
		t.Fatal("want Input error for unknown provider, got nil")
	}
	var apiErr *apierr.Error
	if !asAPIErr(err, &apiErr) || apiErr.Kind != apierr.KindInput {
		t.Errorf("err = %v, want KindInput", err)
	}
}

func TestStatus_NotFoundForUnknownJob(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	_, err := c.Status(context.Background(), "no-such-job")
	var apiErr *apierr.Error
	if !asAPIErr(err, &apiErr) || apiErr.Kind != apierr.KindNotFound {
		t.Errorf("err = %v, want KindNotFound", err)
	}
}

func TestResults_RankedByScoreDescPriceAsc(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "job-4", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	store, err := c.openStore("job-4")
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	cheap, pricey := 2000, 6000
	rows := []*job.DomainResult{
		{Domain: "sunrisebakery.com", TLD: "com", Status: job.DomainAvailable, Score: 0.9, PriceCents: &pricey},
		{Domain: "sunrise.io", TLD: "io", Status: job.DomainAvailable, Score: 0.9, PriceCents: &cheap},
		{Domain: "sunrise.co", TLD: "co", Status: job.DomainAvailable, Score: 0.5, PriceCents: nil},
		{Domain: "taken.com", TLD: "com", Status: job.DomainRegistered, Score: 0.95},
	}
	for _, r := range rows {
		if err := store.InsertDomainResult(ctx, r); err != nil {
			t.Fatalf("InsertDomainResult(%s): %v", r.Domain, err)
		}
	}

	res, err := c.Results(ctx, "job-4")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res.Domains) != 3 {
		t.Fatalf("len(domains) = %d, want 3 (registered row excluded)", len(res.Domains))
	}
	if res.Domains[0].Domain != "sunrise.io" || res.Domains[1].Domain != "sunrisebakery.com" {
		t.Errorf("order = %v, want sunrise.io then sunrisebakery.com (score tie, price asc)", res.Domains[:2])
	}
	if res.Domains[0].Category != "bundled" {
		t.Errorf("sunrise.io category = %q, want bundled", res.Domains[0].Category)
	}
	if res.Domains[1].Category != "premium" {
		t.Errorf("sunrisebakery.com category = %q, want premium", res.Domains[1].Category)
	}
	if res.Domains[2].Category != "unknown" {
		t.Errorf("sunrise.co category = %q, want unknown", res.Domains[2].Category)
	}
	if res.CategoryHistogram["bundled"] != 1 || res.CategoryHistogram["premium"] != 1 || res.CategoryHistogram["unknown"] != 1 {
		t.Errorf("histogram = %+v", res.CategoryHistogram)
	}
}

func TestFollowup_NotFoundWithoutArtifact(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "job-5", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := c.Followup(ctx, "job-5")
	var apiErr *apierr.Error
	if !asAPIErr(err, &apiErr) || apiErr.Kind != apierr.KindNotFound {
		t.Errorf("err = %v, want KindNotFound", err)
	}
}

func TestResume_OnlyValidFromNeedsFollowup(t *testing.T) {
	t.Parallel()
	c, sched, _ := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "job-6", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Still running: Resume must reject.
	if err := c.Resume(ctx, "job-6", job.FollowupResponses{"followup_direction": "same_direction"}); err == nil {
		t.Fatal("Resume from running: want Input error, got nil")
	}

	store, err := c.openStore("job-6")
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if err := store.UpdateStatus(ctx, job.StatusNeedsFollowup, ""); err != nil {
		t.Fatalf("force needs_followup: %v", err)
	}
	sched.Disarm("job-6")

	if err := c.Resume(ctx, "job-6", job.FollowupResponses{"followup_direction": "same_direction"}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	snap, err := c.Status(ctx, "job-6")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Status != string(job.StatusRunning) {
		t.Errorf("status after resume = %q, want running", snap.Status)
	}
	if !sched.isArmed("job-6") {
		t.Error("scheduler not armed after resume")
	}
}

func TestCancel_ValidOnlyFromPendingOrRunning(t *testing.T) {
	t.Parallel()
	c, sched, _ := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "job-7", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Cancel(ctx, "job-7"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	snap, err := c.Status(ctx, "job-7")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Status != string(job.StatusCancelled) {
		t.Errorf("status = %q, want cancelled", snap.Status)
	}
	if sched.isArmed("job-7") {
		t.Error("scheduler still armed after cancel")
	}

	// Cancelling again from a terminal state must reject.
	if err := c.Cancel(ctx, "job-7"); err == nil {
		t.Fatal("second Cancel: want Input error, got nil")
	}
}

func TestRunDueBatch_TerminalStateIsNoOp(t *testing.T) {
	t.Parallel()
	c, sched, idx := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "job-8", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Cancel(ctx, "job-8"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	before, _, err := idx.List(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	// A timer firing against a cancelled job must not run the pipeline or
	// mutate state (§4.1 "A timer firing with the job in a terminal state
	// is a silent no-op").
	c.RunDueBatch(ctx, "job-8")

	snap, err := c.Status(ctx, "job-8")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Status != string(job.StatusCancelled) || snap.BatchNum != 0 {
		t.Errorf("snap = %+v, want unchanged cancelled/batch 0", snap)
	}
	if sched.isArmed("job-8") {
		t.Error("RunDueBatch armed a terminal job")
	}
	after, _, err := idx.List(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(before) != len(after) {
		t.Errorf("index rows changed: %d -> %d", len(before), len(after))
	}
}

func TestRunDueBatch_UnknownJobIsNoOp(t *testing.T) {
	t.Parallel()
	c, sched, _ := newTestController(t)
	c.RunDueBatch(context.Background(), "never-started")
	if sched.isArmed("never-started") {
		t.Error("RunDueBatch armed a job that was never started")
	}
}

func TestRecover_ArmsOnlyNonTerminalJobs(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	ctx := context.Background()

	if _, err := c.Start(ctx, job.CreateRequest{JobID: "running-job", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start running-job: %v", err)
	}
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "done-job", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start done-job: %v", err)
	}
	doneStore, err := c.openStore("done-job")
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if err := doneStore.UpdateStatus(ctx, job.StatusComplete, ""); err != nil {
		t.Fatalf("force complete: %v", err)
	}
	doneJob, err := doneStore.Get(ctx)
	if err != nil {
		t.Fatalf("Get done-job: %v", err)
	}
	if err := c.syncIndex(ctx, doneStore, doneJob); err != nil {
		t.Fatalf("syncIndex: %v", err)
	}

	// Simulate process restart: a fresh controller sharing the same index
	// and data dir, with an empty in-memory scheduler.
	fresh := newFakeScheduler()
	c.scheduler = fresh
	if err := c.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !fresh.isArmed("running-job") {
		t.Error("Recover did not arm the non-terminal job")
	}
	if fresh.isArmed("done-job") {
		t.Error("Recover armed a terminal job")
	}
}

func TestReindex_RebuildsRowFromStore(t *testing.T) {
	t.Parallel()
	c, _, idx := newTestController(t)
	ctx := context.Background()
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "job-9", ClientID: "client-9", Quiz: validQuiz()}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Overwrite the index row with a stale bogus entry, then reindex.
	if err := idx.Upsert(ctx, &jobindex.Entry{JobID: "job-9", Status: "bogus"}); err != nil {
		t.Fatalf("seed bogus entry: %v", err)
	}
	if err := c.Reindex(ctx, "job-9"); err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	entries, _, err := idx.List(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var found *jobindex.Entry
	for _, e := range entries {
		if e.JobID == "job-9" {
			found = e
		}
	}
	if found == nil {
		t.Fatal("job-9 not found in index after Reindex")
	}
	if found.Status != string(job.StatusRunning) || found.ClientID != "client-9" {
		t.Errorf("entry = %+v, want status=running client_id=client-9", found)
	}
}

func TestStream_ReportsDomainIdeaStatus(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t)
	ctx := context.Background()
	quiz := validQuiz()
	quiz.DomainIdea = "sunrise.io"
	if _, err := c.Start(ctx, job.CreateRequest{JobID: "job-10", Quiz: quiz}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap, err := c.Stream(ctx, "job-10")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if snap.DomainIdeaStatus != "unchecked" {
		t.Errorf("domain_idea_status = %q, want unchecked before any check", snap.DomainIdeaStatus)
	}

	store, err := c.openStore("job-10")
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if err := store.InsertDomainResult(ctx, &job.DomainResult{
		Domain: "sunrise.io", TLD: "io", Status: job.DomainAvailable, Score: 0.9,
	}); err != nil {
		t.Fatalf("InsertDomainResult: %v", err)
	}

	snap, err = c.Stream(ctx, "job-10")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if snap.DomainIdeaStatus != string(job.DomainAvailable) {
		t.Errorf("domain_idea_status = %q, want available", snap.DomainIdeaStatus)
	}
}

func asAPIErr(err error, target **apierr.Error) bool {
	e, ok := err.(*apierr.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
