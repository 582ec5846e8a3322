package models

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// InteractionType categorizes a logged learner action
type InteractionType string

const (
	InteractionPreTest  InteractionType = "pre_test"
	InteractionPractice InteractionType = "practice"
	InteractionPostTest InteractionType = "post_test"
	InteractionStory    InteractionType = "story"
)

// Valid reports whether t is one of the known interaction types
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionPreTest, InteractionPractice, InteractionPostTest, InteractionStory:
		return true
	}
	return false
}

// SkipResponse is recorded as the student response when a learner skips
const SkipResponse = "I_dont_know_yet"

// Correctness is the outcome of one answer. The zero value is invalid so a
// forgotten assignment never reads as a skip.
type Correctness int

const (
	Correct Correctness = iota + 1
	Incorrect
	Skipped
)

// CorrectnessOf converts a boolean check into Correct or Incorrect
func CorrectnessOf(ok bool) Correctness {
	if ok {
		return Correct
	}
	return Incorrect
}

// Valid reports whether c is Correct, Incorrect or Skipped
func (c Correctness) Valid() bool {
	return c == Correct || c == Incorrect || c == Skipped
}

func (c Correctness) String() string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	case Skipped:
		return "skipped"
	}
	return "invalid"
}

// MarshalJSON writes true, false or null
func (c Correctness) MarshalJSON() ([]byte, error) {
	switch c {
	case Correct:
		return []byte("true"), nil
	case Incorrect:
		return []byte("false"), nil
	case Skipped:
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("cannot marshal correctness %d", int(c))
}

// UnmarshalJSON reads true, false or null
func (c *Correctness) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*c = Correct
	case "false":
		*c = Incorrect
	case "null":
		*c = Skipped
	default:
		return fmt.Errorf("invalid correct_flag %s", data)
	}
	return nil
}

// InteractionInput is what callers hand to the event log; the log stamps the time
type InteractionInput struct {
	QuestID         QuestID
	SceneID         string
	Number          *int
	CorrectFlag     Correctness
	ElapsedMs       int64
	InteractionType InteractionType
	StudentResponse string
}

var (
	ErrInvalidInteractionType = errors.New("invalid interaction type")
	ErrInvalidCorrectness     = errors.New("invalid correctness")
	ErrNegativeElapsed        = errors.New("elapsed time must not be negative")
)

// Validate checks the input before it is appended
func (in InteractionInput) Validate() error {
	if !in.InteractionType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidInteractionType, string(in.InteractionType))
	}
	if !in.CorrectFlag.Valid() {
		return ErrInvalidCorrectness
	}
	if in.ElapsedMs < 0 {
		return ErrNegativeElapsed
	}
	return nil
}

// Stamp turns the input into an immutable log entry. Number is copied so the
// entry never aliases catalog data.
func (in InteractionInput) Stamp(at time.Time) Interaction {
	var number *int
	if in.Number != nil {
		number = IntPtr(*in.Number)
	}
	return Interaction{
		QuestID:         in.QuestID,
		SceneID:         in.SceneID,
		Number:          number,
		CorrectFlag:     in.CorrectFlag,
		ElapsedMs:       in.ElapsedMs,
		Timestamp:       at,
		InteractionType: in.InteractionType,
		StudentResponse: in.StudentResponse,
	}
}

// Interaction is one logged learner action
type Interaction struct {
	QuestID         QuestID         `json:"quest_id"`
	SceneID         string          `json:"scene_id"`
	Number          *int            `json:"number"`
	CorrectFlag     Correctness     `json:"correct_flag"`
	ElapsedMs       int64           `json:"time_ms"`
	Timestamp       time.Time       `json:"timestamp"`
	InteractionType InteractionType `json:"interaction_type"`
	StudentResponse string          `json:"student_response,omitempty"`
}

// IntPtr is a convenience for building optional numbers
func IntPtr(n int) *int {
	return &n
}
