package handlers

import (
	"errors"
	"net/http"
	"time"

	"abaquest/internal/models"
	"abaquest/internal/security"
	"abaquest/internal/service"
	"abaquest/internal/validation"
)

// IdentityHandler serves the profile picker and bead-pattern sign-in
type IdentityHandler struct {
	identity *service.IdentityService
	registry *service.LearnerRegistry
	tokens   *security.TokenIssuer
	gates    *service.GateRegistry
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identity *service.IdentityService, registry *service.LearnerRegistry, tokens *security.TokenIssuer, gates *service.GateRegistry) *IdentityHandler {
	return &IdentityHandler{identity: identity, registry: registry, tokens: tokens, gates: gates}
}

type selectRequest struct {
	StudentID string `json:"studentId"`
}

type gateResponse struct {
	State service.GateState `json:"state"`
}

type unlockRequest struct {
	StudentID string `json:"studentId"`
	Pattern   []int  `json:"pattern"`
}

type unlockResponse struct {
	State           service.GateState     `json:"state"`
	FeedbackDelayMs int64                 `json:"feedbackDelayMs"`
	Token           string                `json:"token,omitempty"`
	ExpiresAt       *time.Time            `json:"expiresAt,omitempty"`
	Profile         *models.PublicProfile `json:"profile,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// Roster lists the profiles to pick from
func (h *IdentityHandler) Roster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.identity.Roster(r.Context())
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "failed to load roster", err)
		return
	}
	respondJSON(w, http.StatusOK, roster)
}

func (h *IdentityHandler) gate(r *http.Request) *service.BeadGate {
	return h.gates.For(security.GetClientIP(r))
}

// GateState reports where this device is in the sign-in flow
func (h *IdentityHandler) GateState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, gateResponse{State: h.gate(r).State()})
}

// Select picks the profile whose pattern will be entered next
func (h *IdentityHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	gate := h.gate(r)
	if err := gate.Select(req.StudentID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, gateResponse{State: gate.State()})
}

// Acknowledge ends the retry feedback and returns to pattern entry
func (h *IdentityHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	gate := h.gate(r)
	if err := gate.Acknowledge(); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, gateResponse{State: gate.State()})
}

// Back returns the device to the profile picker
func (h *IdentityHandler) Back(w http.ResponseWriter, r *http.Request) {
	gate := h.gate(r)
	gate.Back()
	respondJSON(w, http.StatusOK, gateResponse{State: gate.State()})
}

// Unlock checks a bead pattern and opens the learner's session. A studentId
// in the body selects the profile first; without one the pattern is checked
// against the profile already selected on this device.
func (h *IdentityHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidatePattern(req.Pattern); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	gate := h.gate(r)
	if req.StudentID != "" {
		if err := gate.Select(req.StudentID); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
	}
	result, err := gate.Submit(r.Context(), req.Pattern)
	if errors.Is(err, service.ErrIdentityMismatch) {
		respondJSON(w, http.StatusUnauthorized, unlockResponse{
			State:           result.State,
			FeedbackDelayMs: result.FeedbackDelayMs,
			Error:           ErrPatternMismatch,
		})
		return
	}
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	// The picker is ready for the next learner whatever happens below.
	gate.Back()
	profile := *result.Profile
	if _, err := h.registry.Open(r.Context(), profile); err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "failed to open learner", err)
		return
	}
	token, session, err := h.tokens.Issue(profile.ID, profile.Role)
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "failed to issue session", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, token, session.ExpiresAt))
	public := profile.Public()
	loggerFrom(r.Context()).Info("learner unlocked", "student_id", profile.ID)
	respondJSON(w, http.StatusOK, unlockResponse{
		State:           result.State,
		FeedbackDelayMs: result.FeedbackDelayMs,
		Token:           token,
		ExpiresAt:       &session.ExpiresAt,
		Profile:         &public,
	})
}

// Logout closes the learner's session and mirrors progress into the roster
func (h *IdentityHandler) Logout(w http.ResponseWriter, r *http.Request) {
	learner := GetLearnerFromContext(r.Context())
	if learner != nil {
		if err := h.registry.Close(r.Context(), learner.StudentID()); err != nil {
			loggerFrom(r.Context()).Warn("progress not mirrored on logout", "error", err)
		}
	}
	http.SetCookie(w, security.CreateDeleteCookie(r))
	w.WriteHeader(http.StatusNoContent)
}
