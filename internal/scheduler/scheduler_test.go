package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeRunner struct {
	mu        sync.Mutex
	runs      []string
	active    int           // RunDueBatch calls currently in flight
	maxActive int           // highest value active has reached
	hold      chan struct{} // if non-nil, RunDueBatch blocks until closed
}

func (f *fakeRunner) RunDueBatch(ctx context.Context, jobID string) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	f.runs = append(f.runs, jobID)
	f.active--
	f.mu.Unlock()
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func TestArm_FiresOnceAfterDelay(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	s := New(runner, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	s.Arm("job-1", 0)

	deadline := time.Now().Add(500 * time.Millisecond)
	for runner.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runner.count() != 1 {
		t.Fatalf("count = %d, want 1", runner.count())
	}

	// Without re-arming, the job must not fire again.
	time.Sleep(50 * time.Millisecond)
	if runner.count() != 1 {
		t.Errorf("count after idle period = %d, want still 1 (no re-arm)", runner.count())
	}
}

func TestDisarm_PreventsFiring(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	s := New(runner, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	s.Arm("job-1", 0)
	s.Disarm("job-1")

	time.Sleep(50 * time.Millisecond)
	if runner.count() != 0 {
		t.Errorf("count = %d, want 0 after disarm", runner.count())
	}
}

func TestTick_DoesNotOverlapSameJob(t *testing.T) {
	t.Parallel()
	hold := make(chan struct{})
	runner := &fakeRunner{hold: hold}
	s := New(runner, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	s.Arm("job-1", 0)
	time.Sleep(20 * time.Millisecond) // let it become "running"
	s.Arm("job-1", 0)                 // re-arm while the first run is still in flight
	time.Sleep(20 * time.Millisecond)

	close(hold)
	time.Sleep(30 * time.Millisecond)

	if c := runner.count(); c < 1 {
		t.Errorf("count = %d, want at least 1", c)
	}
	runner.mu.Lock()
	maxActive := runner.maxActive
	runner.mu.Unlock()
	if maxActive != 1 {
		t.Errorf("max concurrent runs = %d, want 1", maxActive)
	}
}
