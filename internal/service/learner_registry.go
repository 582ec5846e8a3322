package service

import (
	"context"
	"sync"
	"time"

	"abaquest/internal/models"
)

// ProgressMirror receives a learner's progress when a session closes so the
// roster's embedded copy stays current
type ProgressMirror interface {
	SyncProgress(ctx context.Context, studentID string, progress models.StudentProgress) error
}

// LearnerRegistry holds the learner sessions open on this device
type LearnerRegistry struct {
	mu       sync.Mutex
	deps     LearnerDeps
	mirror   ProgressMirror
	learners map[string]*Learner
}

// NewLearnerRegistry creates an empty registry. mirror may be nil.
func NewLearnerRegistry(deps LearnerDeps, mirror ProgressMirror) *LearnerRegistry {
	return &LearnerRegistry{
		deps:     deps,
		mirror:   mirror,
		learners: map[string]*Learner{},
	}
}

// Open returns the learner for profile, loading it on first use
func (r *LearnerRegistry) Open(ctx context.Context, profile models.StudentProfile) (*Learner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.learners[profile.ID]; ok {
		l.touch()
		return l, nil
	}
	l, err := OpenLearner(ctx, r.deps, profile)
	if err != nil {
		return nil, err
	}
	r.learners[profile.ID] = l
	r.deps.Logger.Info("learner opened", "student_id", profile.ID)
	return l, nil
}

// Get returns an open learner
func (r *LearnerRegistry) Get(studentID string) (*Learner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.learners[studentID]
	if !ok {
		return nil, ErrLearnerNotOpen
	}
	return l, nil
}

// Close drops a learner from memory after mirroring its progress
func (r *LearnerRegistry) Close(ctx context.Context, studentID string) error {
	r.mu.Lock()
	l, ok := r.learners[studentID]
	delete(r.learners, studentID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return r.sync(ctx, l)
}

// Sync mirrors an open learner's progress without closing it
func (r *LearnerRegistry) Sync(ctx context.Context, studentID string) error {
	l, err := r.Get(studentID)
	if err != nil {
		return err
	}
	return r.sync(ctx, l)
}

func (r *LearnerRegistry) sync(ctx context.Context, l *Learner) error {
	if r.mirror == nil {
		return nil
	}
	if err := r.mirror.SyncProgress(ctx, l.StudentID(), l.progress.Snapshot()); err != nil {
		r.deps.Logger.Warn("failed to mirror progress into roster", "student_id", l.StudentID(), "error", err)
		return err
	}
	return nil
}

// EvictIdle closes learners idle for longer than maxIdle and returns how
// many were closed. Their state is already durable.
func (r *LearnerRegistry) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := r.deps.clock()().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Learner
	for id, l := range r.learners {
		if l.LastSeen().Before(cutoff) {
			idle = append(idle, l)
			delete(r.learners, id)
		}
	}
	r.mu.Unlock()

	for _, l := range idle {
		_ = r.sync(ctx, l)
		r.deps.Logger.Info("idle learner evicted", "student_id", l.StudentID())
	}
	return len(idle)
}

// Len returns the number of open learners
func (r *LearnerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.learners)
}

// DiscardAll drops every open learner without mirroring. Used after a
// restore, when the in-memory state is older than the stored documents.
func (r *LearnerRegistry) DiscardAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.learners)
	r.learners = map[string]*Learner{}
	return n
}
