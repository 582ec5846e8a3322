package security

import (
	"errors"
	"fmt"
	"time"

	"abaquest/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

// LearnerClaims identify the profile a device session operates on
type LearnerClaims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 learner session tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. An empty secret gets a random per-process one,
// which logs every learner out on restart.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a token for studentID
func (ti *TokenIssuer) Issue(studentID string, role models.Role) (string, models.LearnerSession, error) {
	now := ti.now()
	session := models.LearnerSession{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(ti.ttl),
	}
	claims := LearnerClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   studentID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", models.LearnerSession{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, session, nil
}

// Parse verifies a token and returns its session
func (ti *TokenIssuer) Parse(token string) (models.LearnerSession, error) {
	claims := &LearnerClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(ti.now))
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	})
	if err != nil {
		return models.LearnerSession{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return models.LearnerSession{}, ErrInvalidToken
	}
	session := models.LearnerSession{
		ID:        claims.ID,
		StudentID: claims.Subject,
		Role:      claims.Role,
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
