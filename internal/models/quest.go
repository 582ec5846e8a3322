package models

import (
	"fmt"
	"strings"
)

// QuestID identifies a quest in the catalog (1-based)
type QuestID int

// Phase is one step of a quest's pedagogical sequence
type Phase string

const (
	PhaseWelcome  Phase = "welcome"
	PhasePretest  Phase = "pretest"
	PhaseLearn    Phase = "learn"
	PhaseStory    Phase = "story"
	PhasePosttest Phase = "posttest"
	PhaseClose    Phase = "close"
)

// DefaultPhases is the sequence used when a quest does not declare its own
var DefaultPhases = []Phase{PhaseWelcome, PhasePretest, PhaseLearn, PhaseStory, PhasePosttest, PhaseClose}

// PhaseVisitor handles every phase kind. Adding a phase means adding a
// method here, which breaks every implementation until it handles it.
type PhaseVisitor[T any] interface {
	Welcome() T
	Pretest() T
	Learn() T
	Story() T
	Posttest() T
	Close() T
}

// VisitPhase dispatches p to the matching visitor method
func VisitPhase[T any](p Phase, v PhaseVisitor[T]) (T, error) {
	switch p {
	case PhaseWelcome:
		return v.Welcome(), nil
	case PhasePretest:
		return v.Pretest(), nil
	case PhaseLearn:
		return v.Learn(), nil
	case PhaseStory:
		return v.Story(), nil
	case PhasePosttest:
		return v.Posttest(), nil
	case PhaseClose:
		return v.Close(), nil
	}
	var zero T
	return zero, fmt.Errorf("unknown phase %q", string(p))
}

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	for _, known := range DefaultPhases {
		if p == known {
			return true
		}
	}
	return false
}

// interactionTypeVisitor maps a phase to the interaction type its answers are logged under
type interactionTypeVisitor struct{}

func (interactionTypeVisitor) Welcome() InteractionType  { return "" }
func (interactionTypeVisitor) Pretest() InteractionType  { return InteractionPreTest }
func (interactionTypeVisitor) Learn() InteractionType    { return InteractionPractice }
func (interactionTypeVisitor) Story() InteractionType    { return InteractionStory }
func (interactionTypeVisitor) Posttest() InteractionType { return InteractionPostTest }
func (interactionTypeVisitor) Close() InteractionType    { return "" }

// InteractionType returns the log category for answers given in this phase,
// or an empty string when the phase poses no questions.
func (p Phase) InteractionType() InteractionType {
	t, _ := VisitPhase[InteractionType](p, interactionTypeVisitor{})
	return t
}

// QuestItem is a single question or activity posed during a phase
type QuestItem struct {
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Number  *int     `yaml:"number,omitempty" json:"number,omitempty"`
	Answer  string   `yaml:"answer" json:"-"`
	Choices []string `yaml:"choices,omitempty" json:"choices,omitempty"`
}

// Accepts reports whether response matches the item's answer key,
// ignoring case and surrounding whitespace.
func (i QuestItem) Accepts(response string) bool {
	return strings.EqualFold(strings.TrimSpace(response), strings.TrimSpace(i.Answer))
}

// QuestDefinition is a read-only catalog entry
type QuestDefinition struct {
	ID               QuestID     `yaml:"id" json:"id"`
	Title            string      `yaml:"title" json:"title"`
	Description      string      `yaml:"description" json:"description"`
	Icon             string      `yaml:"icon" json:"icon"`
	Color            string      `yaml:"color" json:"color"`
	EstimatedMinutes int         `yaml:"estimated_minutes" json:"estimatedMinutes"`
	CoinReward       int         `yaml:"coin_reward" json:"coinReward"`
	Phases           []Phase     `yaml:"phases" json:"phases"`
	Assessment       []QuestItem `yaml:"assessment" json:"-"`
	Practice         []QuestItem `yaml:"practice" json:"-"`
	Story            []QuestItem `yaml:"story" json:"-"`
}

// PhaseIndex returns the position of p in the quest's phase list, or -1
func (q *QuestDefinition) PhaseIndex(p Phase) int {
	for i, phase := range q.Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// PhaseAt returns the phase at index i
func (q *QuestDefinition) PhaseAt(i int) (Phase, bool) {
	if i < 0 || i >= len(q.Phases) {
		return "", false
	}
	return q.Phases[i], true
}

type itemsVisitor struct{ q *QuestDefinition }

func (v itemsVisitor) Welcome() []QuestItem { return nil }

// Pretest and Posttest share one list so both phases pose identical content.
func (v itemsVisitor) Pretest() []QuestItem  { return v.q.Assessment }
func (v itemsVisitor) Learn() []QuestItem    { return v.q.Practice }
func (v itemsVisitor) Story() []QuestItem    { return v.q.Story }
func (v itemsVisitor) Posttest() []QuestItem { return v.q.Assessment }
func (v itemsVisitor) Close() []QuestItem    { return nil }

// ItemsFor returns the questions posed during phase p
func (q *QuestDefinition) ItemsFor(p Phase) []QuestItem {
	items, _ := VisitPhase[[]QuestItem](p, itemsVisitor{q: q})
	return items
}
