package job

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.db.Close() })
	return store
}

func makeJob(id string) *Job {
	return &Job{
		ID:     id,
		Status: StatusPending,
		Quiz: QuizResponses{
			BusinessName:   "Sunrise Bakery",
			TLDPreferences: []string{"com", "co", "io"},
			Vibe:           "creative",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	j := makeJob("job-1")
	if err := store.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil, want job")
	}
	if got.ID != j.ID {
		t.Errorf("ID = %q, want %q", got.ID, j.ID)
	}
	if got.Quiz.BusinessName != j.Quiz.BusinessName {
		t.Errorf("Quiz.BusinessName = %q, want %q", got.Quiz.BusinessName, j.Quiz.BusinessName)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if got.BatchNum != 0 {
		t.Errorf("BatchNum = %d, want 0", got.BatchNum)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Get returned %+v, want nil", got)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Create(ctx, makeJob("job-2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.UpdateStatus(ctx, StatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, StatusFailed)
	}
	if got.Error != "boom" {
		t.Errorf("Error = %q, want %q", got.Error, "boom")
	}
}

func TestAdvanceBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Create(ctx, makeJob("job-3")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.AdvanceBatch(ctx)
	if err != nil {
		t.Fatalf("AdvanceBatch: %v", err)
	}
	if n != 1 {
		t.Errorf("AdvanceBatch = %d, want 1", n)
	}

	n, err = store.AdvanceBatch(ctx)
	if err != nil {
		t.Fatalf("AdvanceBatch: %v", err)
	}
	if n != 2 {
		t.Errorf("AdvanceBatch = %d, want 2", n)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BatchNum != 2 {
		t.Errorf("BatchNum = %d, want 2", got.BatchNum)
	}
}

func TestRecordWakeAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Create(ctx, makeJob("job-4")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	wake := time.Now().Add(10 * time.Second).UTC()
	if err := store.RecordWakeAt(ctx, &wake); err != nil {
		t.Fatalf("RecordWakeAt: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.WakeAt == nil {
		t.Fatal("WakeAt is nil, want non-nil")
	}
	if !got.WakeAt.Equal(wake) {
		t.Errorf("WakeAt = %v, want %v", got.WakeAt, wake)
	}

	// Recording nil clears the prior value (§4.1 "at most one pending wake-up").
	if err := store.RecordWakeAt(ctx, nil); err != nil {
		t.Fatalf("RecordWakeAt(nil): %v", err)
	}
	got, err = store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.WakeAt != nil {
		t.Errorf("WakeAt = %v, want nil", got.WakeAt)
	}
}

func TestAddTokensMonotonic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Create(ctx, makeJob("job-5")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.AddTokens(ctx, 100, 50); err != nil {
		t.Fatalf("AddTokens: %v", err)
	}
	if err := store.AddTokens(ctx, 30, 10); err != nil {
		t.Fatalf("AddTokens: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TotalInputTokens != 130 {
		t.Errorf("TotalInputTokens = %d, want 130", got.TotalInputTokens)
	}
	if got.TotalOutputTokens != 60 {
		t.Errorf("TotalOutputTokens = %d, want 60", got.TotalOutputTokens)
	}
}

func TestInsertDomainResult_Replace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.Create(ctx, makeJob("job-6")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := &DomainResult{Domain: "Sunrise.com", TLD: "com", BatchNum: 1, Status: DomainUnknown, Score: 0.2}
	if err := store.InsertDomainResult(ctx, r); err != nil {
		t.Fatalf("InsertDomainResult: %v", err)
	}

	price := 2500
	r2 := &DomainResult{Domain: "sunrise.com", TLD: "com", BatchNum: 2, Status: DomainAvailable, Score: 0.9, PriceCents: &price}
	if err := store.InsertDomainResult(ctx, r2); err != nil {
		t.Fatalf("InsertDomainResult replace: %v", err)
	}

	results, err := store.ListDomainResults(ctx)
	if err != nil {
		t.Fatalf("ListDomainResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("ListDomainResults returned %d rows, want 1 (insert-or-replace, §3 invariant 1)", len(results))
	}
	if results[0].Status != DomainAvailable {
		t.Errorf("Status = %q, want %q", results[0].Status, DomainAvailable)
	}
	if results[0].PriceCents == nil || *results[0].PriceCents != 2500 {
		t.Errorf("PriceCents = %v, want 2500", results[0].PriceCents)
	}
}

func TestListAvailableDomains_Ordering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.Create(ctx, makeJob("job-7")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cheap, expensive := 1000, 4000
	rows := []*DomainResult{
		{Domain: "b.com", Status: DomainAvailable, Score: 0.9, PriceCents: &expensive},
		{Domain: "a.com", Status: DomainAvailable, Score: 0.9, PriceCents: &cheap},
		{Domain: "c.com", Status: DomainAvailable, Score: 0.95, PriceCents: nil},
		{Domain: "d.com", Status: DomainRegistered, Score: 0.99},
	}
	for _, r := range rows {
		if err := store.InsertDomainResult(ctx, r); err != nil {
			t.Fatalf("InsertDomainResult: %v", err)
		}
	}

	got, err := store.ListAvailableDomains(ctx, 50)
	if err != nil {
		t.Fatalf("ListAvailableDomains: %v", err)
	}
	want := []string{"c.com", "a.com", "b.com"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, d := range want {
		if got[i].Domain != d {
			t.Errorf("result[%d] = %q, want %q", i, got[i].Domain, d)
		}
	}
}

func TestCheckedDomains(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.Create(ctx, makeJob("job-8")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.InsertDomainResult(ctx, &DomainResult{Domain: "taken.io", Status: DomainRegistered, Score: 0.5}); err != nil {
		t.Fatalf("InsertDomainResult: %v", err)
	}

	checked, err := store.CheckedDomains(ctx)
	if err != nil {
		t.Fatalf("CheckedDomains: %v", err)
	}
	if !checked["taken.io"] {
		t.Error("CheckedDomains missing taken.io")
	}
}

func TestArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.Create(ctx, makeJob("job-9")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.LatestArtifact(ctx, ArtifactBatchReport); err != nil {
		t.Fatalf("LatestArtifact on empty table: %v", err)
	}

	a1 := &SearchArtifact{BatchNum: 1, ArtifactType: ArtifactBatchReport, Content: `{"checked":10}`}
	a2 := &SearchArtifact{BatchNum: 2, ArtifactType: ArtifactBatchReport, Content: `{"checked":20}`}
	if err := store.InsertArtifact(ctx, a1); err != nil {
		t.Fatalf("InsertArtifact a1: %v", err)
	}
	if err := store.InsertArtifact(ctx, a2); err != nil {
		t.Fatalf("InsertArtifact a2: %v", err)
	}

	got, err := store.LatestArtifact(ctx, ArtifactBatchReport)
	if err != nil {
		t.Fatalf("LatestArtifact: %v", err)
	}
	if got == nil || got.Content != a2.Content {
		t.Errorf("LatestArtifact = %+v, want content %q", got, a2.Content)
	}
}
