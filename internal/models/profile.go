package models

import "time"

// Role of a roster entry
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// GradeLevel groups learners by school year
type GradeLevel string

const (
	GradeK         GradeLevel = "K"
	GradeOneAndTwo GradeLevel = "1-2"
)

// StudentProfile is a roster entry
type StudentProfile struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Avatar       string          `json:"avatar"`
	BeadPassHash string          `json:"beadPassHash"`
	GradeLevel   GradeLevel      `json:"gradeLevel"`
	Role         Role            `json:"role"`
	Progress     StudentProgress `json:"progress"`
}

// PublicProfile is what the identity picker and teacher dashboard see
type PublicProfile struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Avatar          string     `json:"avatar"`
	GradeLevel      GradeLevel `json:"gradeLevel"`
	Role            Role       `json:"role"`
	Level           int        `json:"level"`
	TotalCoins      int        `json:"totalCoins"`
	CompletedQuests []QuestID  `json:"completedQuests"`
}

// Public strips the bead pass hash
func (p StudentProfile) Public() PublicProfile {
	completed := append([]QuestID{}, p.Progress.CompletedQuests...)
	return PublicProfile{
		ID:              p.ID,
		Name:            p.Name,
		Avatar:          p.Avatar,
		GradeLevel:      p.GradeLevel,
		Role:            p.Role,
		Level:           LevelForXP(p.Progress.XP),
		TotalCoins:      p.Progress.TotalCoins,
		CompletedQuests: completed,
	}
}

// LearnerSession represents an authenticated learner on the device
type LearnerSession struct {
	ID        string
	StudentID string
	Role      Role
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *LearnerSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
