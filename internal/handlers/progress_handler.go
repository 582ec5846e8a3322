package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"abaquest/internal/models"
	"abaquest/internal/service"
	"abaquest/internal/validation"
)

// ProgressHandler exposes the learner's progress and analytics export
type ProgressHandler struct {
	registry *service.LearnerRegistry
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(registry *service.LearnerRegistry) *ProgressHandler {
	return &ProgressHandler{registry: registry}
}

// progressView reports whether the last change reached durable storage. A
// false value means the change is held in memory only.
type progressView struct {
	models.StudentProgress
	Persisted bool `json:"persisted"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type emotionRequest struct {
	EmotionalState string `json:"emotionalState"`
}

type coinsRequest struct {
	Amount int `json:"amount"`
}

// respondProgress writes the current snapshot, downgrading storage failures
// to persisted=false
func respondProgress(w http.ResponseWriter, r *http.Request, learner *service.Learner, err error) {
	if err != nil && !errors.Is(err, service.ErrStorage) {
		respondWithServiceError(w, r, err)
		return
	}
	if err != nil {
		loggerFrom(r.Context()).Warn("progress change kept in memory only", "error", err)
	}
	respondJSON(w, http.StatusOK, progressView{StudentProgress: learner.Snapshot(), Persisted: err == nil})
}

// GetProgress returns the learner's progress
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	respondProgress(w, r, GetLearnerFromContext(r.Context()), nil)
}

// SetName stores the learner's display name
func (h *ProgressHandler) SetName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateName(req.Name); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	learner := GetLearnerFromContext(r.Context())
	err := learner.Progress().SetStudentName(r.Context(), req.Name)
	respondProgress(w, r, learner, err)
}

// SetEmotion stores the learner's emotional check-in
func (h *ProgressHandler) SetEmotion(w http.ResponseWriter, r *http.Request) {
	var req emotionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateEmotionalState(req.EmotionalState); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	learner := GetLearnerFromContext(r.Context())
	err := learner.Progress().SetEmotionalState(r.Context(), req.EmotionalState)
	respondProgress(w, r, learner, err)
}

// AddCoins grants bonus coins
func (h *ProgressHandler) AddCoins(w http.ResponseWriter, r *http.Request) {
	var req coinsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateCoins(req.Amount); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	learner := GetLearnerFromContext(r.Context())
	err := learner.Progress().AddCoins(r.Context(), req.Amount)
	respondProgress(w, r, learner, err)
}

// Reset erases the learner's progress and interaction log
func (h *ProgressHandler) Reset(w http.ResponseWriter, r *http.Request) {
	learner := GetLearnerFromContext(r.Context())
	err := learner.ResetAll(r.Context())
	if syncErr := h.registry.Sync(r.Context(), learner.StudentID()); syncErr != nil {
		loggerFrom(r.Context()).Warn("progress not mirrored after reset", "error", syncErr)
	}
	respondProgress(w, r, learner, err)
}

// Export downloads the learner's interaction log as JSON or XLSX
func (h *ProgressHandler) Export(w http.ResponseWriter, r *http.Request) {
	learner := GetLearnerFromContext(r.Context())

	questID := models.QuestID(1)
	if q := r.URL.Query().Get("quest"); q != "" {
		id, err := strconv.Atoi(q)
		if err != nil || id <= 0 {
			respondWithError(w, r, http.StatusBadRequest, "Invalid quest ID", "", err)
			return
		}
		questID = models.QuestID(id)
	} else if active := learner.Snapshot().CurrentQuestID; active != nil {
		questID = *active
	}

	doc := learner.Export(questID)
	var (
		buf         bytes.Buffer
		err         error
		ext         string
		contentType string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		ext, contentType = "json", "application/json"
		err = service.WriteJSON(&buf, doc)
	case "xlsx":
		ext, contentType = "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = service.WriteWorkbook(&buf, doc)
	default:
		respondWithError(w, r, http.StatusBadRequest, "Unsupported export format", "", nil)
		return
	}
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "failed to build export", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ExportFilename(doc, ext)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
