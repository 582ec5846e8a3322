package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"abaquest/internal/credentials"
	"abaquest/internal/kv"
	"abaquest/internal/logger"
	"abaquest/internal/models"
	"abaquest/internal/security"
	"abaquest/internal/validation"

	"github.com/google/uuid"
)

// RosterKey is the storage key of the profile roster
const RosterKey = "abaquest_students"

// DemoRoster is seeded when no roster exists
func DemoRoster() []models.StudentProfile {
	ameer := models.NewStudentProgress()
	ameer.StudentName = "Ameer"
	ameerah := models.NewStudentProgress()
	ameerah.StudentName = "Ameerah"
	return []models.StudentProfile{
		{ID: "s1", Name: "Ameer", Avatar: "boy", BeadPassHash: security.HashBeadPattern([]int{5}), GradeLevel: models.GradeK, Role: models.RoleStudent, Progress: ameer},
		{ID: "s2", Name: "Ameerah", Avatar: "girl", BeadPassHash: security.HashBeadPattern([]int{3}), GradeLevel: models.GradeK, Role: models.RoleStudent, Progress: ameerah},
	}
}

// NewProfileInput describes a profile created by an operator
type NewProfileInput struct {
	Name       string
	Avatar     string
	GradeLevel models.GradeLevel
	Role       models.Role
	Pattern    []int
}

// IdentityService owns the roster and the bead-pass check
type IdentityService struct {
	mu    sync.Mutex
	store kv.Store
	log   *logger.Logger
}

// NewIdentityService creates an identity service over store
func NewIdentityService(store kv.Store, log *logger.Logger) *IdentityService {
	return &IdentityService{store: store, log: log}
}

func (s *IdentityService) loadLocked(ctx context.Context) ([]models.StudentProfile, error) {
	raw, err := s.store.Get(ctx, RosterKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	var roster []models.StudentProfile
	if err := decodeDocument(raw, &roster); err != nil {
		s.log.Warn("stored roster unreadable, treating as empty", "error", err)
		return nil, nil
	}
	for i := range roster {
		roster[i].Progress.Normalize()
		if roster[i].Role == "" {
			roster[i].Role = models.RoleStudent
		}
	}
	return roster, nil
}

func (s *IdentityService) saveLocked(ctx context.Context, roster []models.StudentProfile) error {
	data, err := encodeDocument(roster)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}
	if err := s.store.Put(ctx, RosterKey, data); err != nil {
		s.log.Error("failed to persist roster", "error", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// EnsureRoster writes seed when no readable roster exists. It reports whether it seeded.
func (s *IdentityService) EnsureRoster(ctx context.Context, seed []models.StudentProfile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if len(roster) > 0 || len(seed) == 0 {
		return false, nil
	}
	if err := s.saveLocked(ctx, seed); err != nil {
		return false, err
	}
	s.log.Info("roster seeded", "profiles", len(seed))
	return true, nil
}

// Roster returns every profile without its bead pass hash
func (s *IdentityService) Roster(ctx context.Context) ([]models.PublicProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PublicProfile, 0, len(roster))
	for _, p := range roster {
		out = append(out, p.Public())
	}
	return out, nil
}

// Profile returns the full profile for id
func (s *IdentityService) Profile(ctx context.Context, id string) (models.StudentProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, err := s.loadLocked(ctx)
	if err != nil {
		return models.StudentProfile{}, err
	}
	for _, p := range roster {
		if p.ID == id {
			return p, nil
		}
	}
	return models.StudentProfile{}, ErrProfileNotFound
}

// Authenticate checks pattern against profile id. An unknown profile and a
// wrong pattern both return ErrIdentityMismatch.
func (s *IdentityService) Authenticate(ctx context.Context, id string, pattern []int) (models.StudentProfile, error) {
	profile, err := s.Profile(ctx, id)
	if errors.Is(err, ErrProfileNotFound) {
		return models.StudentProfile{}, ErrIdentityMismatch
	}
	if err != nil {
		return models.StudentProfile{}, err
	}
	if !security.ValidateBeadPass(pattern, profile.BeadPassHash) {
		s.log.Debug("bead pass rejected", "student_id", id)
		return models.StudentProfile{}, ErrIdentityMismatch
	}
	return profile, nil
}

func (s *IdentityService) update(ctx context.Context, id string, fn func(p *models.StudentProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	for i := range roster {
		if roster[i].ID == id {
			fn(&roster[i])
			return s.saveLocked(ctx, roster)
		}
	}
	return ErrProfileNotFound
}

// ResetBeadPass sets a profile's pattern back to the default 1-2-3
func (s *IdentityService) ResetBeadPass(ctx context.Context, id string) error {
	err := s.update(ctx, id, func(p *models.StudentProfile) {
		p.BeadPassHash = security.HashBeadPattern(security.DefaultResetPattern)
	})
	if err == nil {
		s.log.Info("bead pass reset", "student_id", id)
	}
	return err
}

// SyncProgress refreshes the progress embedded in a roster profile
func (s *IdentityService) SyncProgress(ctx context.Context, id string, progress models.StudentProgress) error {
	return s.update(ctx, id, func(p *models.StudentProfile) {
		p.Progress = progress.Clone()
	})
}

// CreateProfile adds a profile and returns it with the pattern that opens it.
// A pattern is generated when none is given; it is only ever returned here.
func (s *IdentityService) CreateProfile(ctx context.Context, in NewProfileInput) (models.StudentProfile, []int, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.ValidateName(in.Name); err != nil {
		return models.StudentProfile{}, nil, err
	}
	if in.GradeLevel == "" {
		in.GradeLevel = models.GradeK
	}
	if err := validation.ValidateGradeLevel(in.GradeLevel); err != nil {
		return models.StudentProfile{}, nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleStudent
	}
	if err := validation.ValidateRole(in.Role); err != nil {
		return models.StudentProfile{}, nil, err
	}

	pattern := in.Pattern
	if len(pattern) == 0 {
		generated, err := credentials.GenerateBeadPattern()
		if err != nil {
			return models.StudentProfile{}, nil, err
		}
		pattern = generated
	}
	if err := validation.ValidatePattern(pattern); err != nil {
		return models.StudentProfile{}, nil, err
	}

	avatar := in.Avatar
	if avatar == "" {
		picked, err := credentials.RandomAvatar()
		if err != nil {
			return models.StudentProfile{}, nil, fmt.Errorf("failed to pick avatar: %w", err)
		}
		avatar = picked
	}

	progress := models.NewStudentProgress()
	progress.StudentName = in.Name
	profile := models.StudentProfile{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Avatar:       avatar,
		BeadPassHash: security.HashBeadPattern(pattern),
		GradeLevel:   in.GradeLevel,
		Role:         in.Role,
		Progress:     progress,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	roster, err := s.loadLocked(ctx)
	if err != nil {
		return models.StudentProfile{}, nil, err
	}
	roster = append(roster, profile)
	if err := s.saveLocked(ctx, roster); err != nil {
		return models.StudentProfile{}, nil, err
	}
	s.log.Info("profile created", "student_id", profile.ID)
	return profile, pattern, nil
}
