package scheduler

import (
	"context"
	"testing"
	"time"

	"abaquest/internal/logger"
)

type fakeEvictor struct {
	calls   int
	maxIdle time.Duration
}

func (f *fakeEvictor) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	f.calls++
	f.maxIdle = maxIdle
	return 2
}

type fakePruner struct{ calls int }

func (f *fakePruner) Prune() int {
	f.calls++
	return 0
}

func TestJobs(t *testing.T) {
	evictor := &fakeEvictor{}
	limiter, gates := &fakePruner{}, &fakePruner{}
	s := New(evictor, 30*time.Minute, logger.NewNop(), limiter, gates)

	s.evictIdleLearners()
	s.pruneStale()

	if evictor.calls != 1 || evictor.maxIdle != 30*time.Minute {
		t.Errorf("EvictIdle calls = %d with %v, want 1 with 30m", evictor.calls, evictor.maxIdle)
	}
	if limiter.calls != 1 || gates.calls != 1 {
		t.Errorf("Prune calls = %d and %d, want 1 each", limiter.calls, gates.calls)
	}
}

func TestStartStop(t *testing.T) {
	s := New(&fakeEvictor{}, time.Minute, logger.NewNop(), &fakePruner{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
}
