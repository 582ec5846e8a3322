package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"abaquest/internal/catalog"
	"abaquest/internal/logger"
	"abaquest/internal/service"
	"abaquest/internal/validation"
)

type loggerKey struct{}

func withLogger(ctx context.Context, l *logger.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context) *logger.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*logger.Logger); ok {
		return l
	}
	return logger.NewNop()
}

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, r *http.Request, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		l := loggerFrom(r.Context())
		if status >= http.StatusInternalServerError {
			l.Error(logMsg, "error", err)
		} else {
			l.Debug(logMsg, "error", err)
		}
	}
	respondJSON(w, status, errorBody{Error: userMsg})
}

// respondWithServiceError maps a core error to a status and learner-facing message
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr validation.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondWithError(w, r, http.StatusBadRequest, vErr.Error(), "", err)
	case errors.Is(err, service.ErrQuestLocked):
		respondWithError(w, r, http.StatusForbidden, "Finish the quest before this one first!", "", err)
	case errors.Is(err, catalog.ErrQuestNotFound):
		respondWithError(w, r, http.StatusNotFound, "Quest not found", "", err)
	case errors.Is(err, service.ErrProfileNotFound):
		respondWithError(w, r, http.StatusNotFound, "Profile not found", "", err)
	case errors.Is(err, service.ErrIdentityMismatch):
		respondWithError(w, r, http.StatusUnauthorized, ErrPatternMismatch, "", err)
	case errors.Is(err, service.ErrNoActiveQuest),
		errors.Is(err, service.ErrNoQuestion),
		errors.Is(err, service.ErrNotAtClose),
		errors.Is(err, service.ErrAlreadyFinalized),
		errors.Is(err, service.ErrGateState):
		respondWithError(w, r, http.StatusConflict, err.Error(), "", err)
	default:
		respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "request failed", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidRequestBody, "", err)
		return false
	}
	return true
}
