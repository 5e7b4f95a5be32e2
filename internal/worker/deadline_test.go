package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeExpirer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExpirer) ExpireDueRounds(_ context.Context, limit int) (int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func TestDeadlineWorkerSweepsOnTick(t *testing.T) {
	expirer := &fakeExpirer{}
	w := NewDeadlineWorker(expirer, 10*time.Millisecond, 10, zerolog.Nop())

	w.Start(context.Background())
	w.Start(context.Background())
	if !w.IsRunning() {
		t.Fatalf("expected worker running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for expirer.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	w.Stop()

	if expirer.calls.Load() < 2 {
		t.Fatalf("expected at least two sweeps, got %d", expirer.calls.Load())
	}
	if w.IsRunning() {
		t.Fatalf("expected worker stopped")
	}

	after := expirer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if expirer.calls.Load() != after {
		t.Fatalf("expected no sweeps after stop")
	}
}

func TestDeadlineWorkerRunOnceSwallowsErrors(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("store down")}
	w := NewDeadlineWorker(expirer, time.Second, 0, zerolog.Nop())
	if got := w.RunOnce(context.Background()); got != 0 {
		t.Fatalf("expected 0 advanced on error, got %d", got)
	}
}

func TestDeadlineWorkerCanRestart(t *testing.T) {
	expirer := &fakeExpirer{}
	w := NewDeadlineWorker(expirer, 5*time.Millisecond, 10, zerolog.Nop())
	w.Start(context.Background())
	w.Stop()
	w.Start(context.Background())
	defer w.Stop()
	if !w.IsRunning() {
		t.Fatalf("expected restart to run")
	}
}
