package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"abaquest/internal/models"
)

const (
	maxNameLength    = 40
	maxPatternLength = 8
	maxBeadValue     = 9
	maxEmotionLength = 32

	// MaxResponseLength matches the interactions.student_response column
	MaxResponseLength = 255
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateName checks a learner or counter name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ValidationError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", maxNameLength)}
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' && r != '-' && r != '\'' {
			return ValidationError{Field: "name", Message: "name may only contain letters, digits, spaces, hyphens and apostrophes"}
		}
	}
	return nil
}

// ValidatePattern checks a bead pattern before it is hashed
func ValidatePattern(pattern []int) error {
	if len(pattern) == 0 {
		return ValidationError{Field: "pattern", Message: "pattern is required"}
	}
	if len(pattern) > maxPatternLength {
		return ValidationError{Field: "pattern", Message: fmt.Sprintf("pattern must be at most %d beads", maxPatternLength)}
	}
	for _, v := range pattern {
		if v < 0 || v > maxBeadValue {
			return ValidationError{Field: "pattern", Message: fmt.Sprintf("bead values must be between 0 and %d", maxBeadValue)}
		}
	}
	return nil
}

// ValidateGradeLevel accepts "K" and "1-2"
func ValidateGradeLevel(grade models.GradeLevel) error {
	switch grade {
	case models.GradeK, models.GradeOneAndTwo:
		return nil
	}
	return ValidationError{Field: "gradeLevel", Message: "grade level must be K or 1-2"}
}

// ValidateRole accepts student and teacher
func ValidateRole(role models.Role) error {
	switch role {
	case models.RoleStudent, models.RoleTeacher:
		return nil
	}
	return ValidationError{Field: "role", Message: "role must be student or teacher"}
}

// ValidateEmotionalState checks the free-form check-in value
func ValidateEmotionalState(state string) error {
	if utf8.RuneCountInString(state) > maxEmotionLength {
		return ValidationError{Field: "emotionalState", Message: fmt.Sprintf("emotional state must be at most %d characters", maxEmotionLength)}
	}
	return nil
}

// ValidateResponse caps a typed answer
func ValidateResponse(response string) error {
	if utf8.RuneCountInString(response) > MaxResponseLength {
		return ValidationError{Field: "response", Message: fmt.Sprintf("answer must be at most %d characters", MaxResponseLength)}
	}
	return nil
}

// ValidateCoins rejects negative ad hoc grants
func ValidateCoins(amount int) error {
	if amount < 0 {
		return ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	return nil
}
