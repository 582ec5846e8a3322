package scheduler

import (
	"context"
	"time"

	"abaquest/internal/logger"

	"github.com/go-co-op/gocron"
)

// Evictor closes learners idle for longer than maxIdle
type Evictor interface {
	EvictIdle(ctx context.Context, maxIdle time.Duration) int
}

// Pruner drops stale in-memory entries such as rate limiter visitors or idle sign-in gates
type Pruner interface {
	Prune() int
}

// Scheduler runs the server's housekeeping jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	evictor   Evictor
	pruners   []Pruner
	maxIdle   time.Duration
	log       *logger.Logger
}

// New creates a new scheduler instance
func New(evictor Evictor, maxIdle time.Duration, log *logger.Logger, pruners ...Pruner) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		evictor:   evictor,
		pruners:   pruners,
		maxIdle:   maxIdle,
		log:       log,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Minute().Do(s.evictIdleLearners); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(10).Minutes().Do(s.pruneStale); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) evictIdleLearners() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if n := s.evictor.EvictIdle(ctx, s.maxIdle); n > 0 {
		s.log.Info("idle learners closed", "count", n)
	}
}

func (s *Scheduler) pruneStale() {
	removed := 0
	for _, p := range s.pruners {
		removed += p.Prune()
	}
	if removed > 0 {
		s.log.Debug("stale entries pruned", "count", removed)
	}
}
