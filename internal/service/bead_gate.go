package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"abaquest/internal/models"
)

// GateState is a step of the bead-pattern sign-in
type GateState string

const (
	GateSelecting GateState = "selecting-identity"
	GateEntering  GateState = "entering-pattern"
	GateSuccess   GateState = "success"
	GateRetry     GateState = "retry"
)

// Feedback pacing for the sign-in screen
const (
	GateSuccessDelay = 1000 * time.Millisecond
	GateRetryDelay   = 2000 * time.Millisecond
)

// ErrGateState is returned when a gate call does not fit the current step
var ErrGateState = errors.New("bead gate: call not valid in current state")

// GateResult is what the sign-in screen renders after a submit
type GateResult struct {
	State           GateState              `json:"state"`
	Profile         *models.StudentProfile `json:"-"`
	FeedbackDelayMs int64                  `json:"feedbackDelayMs"`
}

// BeadGate walks one device through picking a profile and entering its
// pattern. There is no lockout; a wrong pattern can be retried at once.
type BeadGate struct {
	mu        sync.Mutex
	identity  *IdentityService
	state     GateState
	profileID string
}

// NewBeadGate starts at profile selection
func NewBeadGate(identity *IdentityService) *BeadGate {
	return &BeadGate{identity: identity, state: GateSelecting}
}

// State returns the current step
func (g *BeadGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Select picks the profile whose pattern will be entered
func (g *BeadGate) Select(profileID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == GateSuccess {
		return ErrGateState
	}
	g.profileID = profileID
	g.state = GateEntering
	return nil
}

// Submit checks pattern against the selected profile
func (g *BeadGate) Submit(ctx context.Context, pattern []int) (GateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GateEntering {
		return GateResult{State: g.state}, ErrGateState
	}

	profile, err := g.identity.Authenticate(ctx, g.profileID, pattern)
	if errors.Is(err, ErrIdentityMismatch) {
		g.state = GateRetry
		return GateResult{State: g.state, FeedbackDelayMs: GateRetryDelay.Milliseconds()}, err
	}
	if err != nil {
		return GateResult{State: g.state}, err
	}
	g.state = GateSuccess
	return GateResult{State: g.state, Profile: &profile, FeedbackDelayMs: GateSuccessDelay.Milliseconds()}, nil
}

// Acknowledge returns from the retry feedback to pattern entry
func (g *BeadGate) Acknowledge() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GateRetry {
		return ErrGateState
	}
	g.state = GateEntering
	return nil
}

// Back returns to profile selection
func (g *BeadGate) Back() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GateSelecting
	g.profileID = ""
}

// GateRegistry keeps one gate per device so retry feedback and the selected
// profile carry over between requests
type GateRegistry struct {
	mu       sync.Mutex
	identity *IdentityService
	gates    map[string]*BeadGate
}

// NewGateRegistry creates an empty registry
func NewGateRegistry(identity *IdentityService) *GateRegistry {
	return &GateRegistry{identity: identity, gates: map[string]*BeadGate{}}
}

// For returns the gate for device, creating it at profile selection
func (r *GateRegistry) For(device string) *BeadGate {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[device]
	if !ok {
		g = NewBeadGate(r.identity)
		r.gates[device] = g
	}
	return g
}

// Prune drops gates sitting at profile selection, which hold no state
func (r *GateRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for device, g := range r.gates {
		if g.State() == GateSelecting {
			delete(r.gates, device)
			removed++
		}
	}
	return removed
}
