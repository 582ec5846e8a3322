package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"abaquest/internal/models"
	"abaquest/internal/security"
	"abaquest/internal/service"
)

// OperatorHandler serves the teacher dashboard. Every route sits behind the
// operator PIN.
type OperatorHandler struct {
	identity *service.IdentityService
	registry *service.LearnerRegistry
	backup   *service.BackupService
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(identity *service.IdentityService, registry *service.LearnerRegistry, backup *service.BackupService) *OperatorHandler {
	return &OperatorHandler{identity: identity, registry: registry, backup: backup}
}

type createProfileRequest struct {
	Name       string            `json:"name"`
	Avatar     string            `json:"avatar"`
	GradeLevel models.GradeLevel `json:"gradeLevel"`
	Role       models.Role       `json:"role"`
	Pattern    []int             `json:"pattern"`
}

type createProfileResponse struct {
	Profile models.PublicProfile `json:"profile"`
	Pattern []int                `json:"pattern"`
	Display string               `json:"display"`
}

type dashboardRow struct {
	models.PublicProfile
	Open bool `json:"open"`
}

// Dashboard lists every profile with its mirrored progress
func (h *OperatorHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	roster, err := h.identity.Roster(r.Context())
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "failed to load roster", err)
		return
	}
	rows := make([]dashboardRow, 0, len(roster))
	for _, p := range roster {
		_, openErr := h.registry.Get(p.ID)
		rows = append(rows, dashboardRow{PublicProfile: p, Open: openErr == nil})
	}
	respondJSON(w, http.StatusOK, rows)
}

// CreateProfile adds a learner and returns the bead pattern that opens it
func (h *OperatorHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, pattern, err := h.identity.CreateProfile(r.Context(), service.NewProfileInput{
		Name:       req.Name,
		Avatar:     req.Avatar,
		GradeLevel: req.GradeLevel,
		Role:       req.Role,
		Pattern:    req.Pattern,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createProfileResponse{
		Profile: profile.Public(),
		Pattern: pattern,
		Display: security.FormatPattern(pattern),
	})
}

// ResetBeadPass restores a learner's pattern to the default
func (h *OperatorHandler) ResetBeadPass(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.identity.ResetBeadPass(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"id":      id,
		"pattern": security.FormatPattern(security.DefaultResetPattern),
	})
}

// ExportBackup downloads every stored document and interaction log
func (h *OperatorHandler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.backup.ExportToWriter(r.Context(), &buf); err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "backup export failed", err)
		return
	}
	filename := fmt.Sprintf("abaquest_backup_%s.json", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ImportBackup restores a backup uploaded as the request body
func (h *OperatorHandler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBackupBody)
	if err := h.backup.ImportFromReader(r.Context(), r.Body); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Backup could not be restored", "backup import failed", err)
		return
	}
	dropped := h.registry.DiscardAll()
	loggerFrom(r.Context()).Info("backup restored", "sessions_closed", dropped)
	w.WriteHeader(http.StatusNoContent)
}
