package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"abaquest/internal/logger"
	"abaquest/internal/models"
	"abaquest/internal/security"
	"abaquest/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	LearnerContextKey ContextKey = "learner"
	SessionContextKey ContextKey = "session"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens          *security.TokenIssuer
	identity        *service.IdentityService
	registry        *service.LearnerRegistry
	limiter         *security.RateLimiter
	operatorPinHash string
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(tokens *security.TokenIssuer, identity *service.IdentityService, registry *service.LearnerRegistry, limiter *security.RateLimiter, operatorPinHash string) *Middleware {
	return &Middleware{
		tokens:          tokens,
		identity:        identity,
		registry:        registry,
		limiter:         limiter,
		operatorPinHash: operatorPinHash,
	}
}

// RequireLearner is middleware that requires a valid learner session token.
// A learner evicted from memory is reopened from durable state.
func (m *Middleware) RequireLearner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := security.TokenFromRequest(r)
		if token == "" {
			respondWithError(w, r, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		session, err := m.tokens.Parse(token)
		if err != nil {
			http.SetCookie(w, security.CreateDeleteCookie(r))
			respondWithError(w, r, http.StatusUnauthorized, ErrUnauthorized, "rejected learner token", err)
			return
		}

		learner, err := m.registry.Get(session.StudentID)
		if errors.Is(err, service.ErrLearnerNotOpen) {
			learner, err = m.reopen(r.Context(), session.StudentID)
		}
		if errors.Is(err, service.ErrProfileNotFound) {
			http.SetCookie(w, security.CreateDeleteCookie(r))
			respondWithError(w, r, http.StatusUnauthorized, ErrUnauthorized, "token for removed profile", err)
			return
		}
		if err != nil {
			respondWithError(w, r, http.StatusInternalServerError, ErrSomethingWentWrong, "failed to open learner", err)
			return
		}

		ctx := context.WithValue(r.Context(), LearnerContextKey, learner)
		ctx = context.WithValue(ctx, SessionContextKey, session)
		ctx = withLogger(ctx, loggerFrom(ctx).With("student_id", session.StudentID))
		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) reopen(ctx context.Context, studentID string) (*service.Learner, error) {
	profile, err := m.identity.Profile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return m.registry.Open(ctx, profile)
}

// RequireOperator is middleware that requires the teacher PIN header
func (m *Middleware) RequireOperator(next http.HandlerFunc) http.HandlerFunc {
	return m.RateLimit(func(w http.ResponseWriter, r *http.Request) {
		if m.operatorPinHash == "" {
			respondWithError(w, r, http.StatusForbidden, "Teacher access is not set up on this device", "", nil)
			return
		}
		pin := r.Header.Get(OperatorPinHeader)
		if pin == "" || !security.CheckPassword(pin, m.operatorPinHash) {
			respondWithError(w, r, http.StatusUnauthorized, ErrOperatorOnly, "", nil)
			return
		}
		next(w, r)
	})
}

// RateLimit limits requests per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(security.GetClientIP(r)) {
			respondWithError(w, r, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware logs HTTP requests and gives handlers a request logger
func Logging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(withLogger(r.Context(), log)))

		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// Recover turns a panic into a generic reload message
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				loggerFrom(r.Context()).Error("panic serving request",
					"path", r.URL.Path,
					"panic", p,
					"stack", string(debug.Stack()),
				)
				respondJSON(w, http.StatusInternalServerError, errorBody{Error: ErrSomethingWentWrong})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// GetLearnerFromContext retrieves the learner from the request context
func GetLearnerFromContext(ctx context.Context) *service.Learner {
	learner, ok := ctx.Value(LearnerContextKey).(*service.Learner)
	if !ok {
		return nil
	}
	return learner
}

// GetSessionFromContext retrieves the learner session from the request context
func GetSessionFromContext(ctx context.Context) (models.LearnerSession, bool) {
	session, ok := ctx.Value(SessionContextKey).(models.LearnerSession)
	return session, ok
}
