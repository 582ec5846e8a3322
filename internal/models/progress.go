package models

import (
	"encoding/json"
	"math"
	"time"
)

// XPPerLevel is the amount of experience needed per level
const XPPerLevel = 500

// XPPerCoin converts awarded coins into experience
const XPPerCoin = 5

// LevelForXP returns floor(xp/500)+1
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// Percent returns round(100*correct/counted), or 0 when nothing was counted
func Percent(correct, counted int) int {
	if counted <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(counted)))
}

// Tally accumulates answers for a score. Skipped answers are not counted.
type Tally struct {
	Correct int
	Counted int
}

// Add records one answer
func (t *Tally) Add(c Correctness) {
	switch c {
	case Correct:
		t.Correct++
		t.Counted++
	case Incorrect:
		t.Counted++
	}
}

// Score returns the tally as a 0-100 percentage
func (t Tally) Score() int {
	return Percent(t.Correct, t.Counted)
}

// QuestProgress is one learner's attempt at one quest
type QuestProgress struct {
	QuestID       QuestID    `json:"questId"`
	CurrentPhase  Phase      `json:"currentPhase"`
	PhaseIndex    int        `json:"phaseIndex"`
	Completed     bool       `json:"completed"`
	PreTestScore  int        `json:"preTestScore"`
	PostTestScore int        `json:"postTestScore"`
	CoinsEarned   int        `json:"coinsEarned"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// UnmarshalJSON also reads the older currentStep/stepIndex field names
func (q *QuestProgress) UnmarshalJSON(data []byte) error {
	type plain QuestProgress
	var aux struct {
		plain
		LegacyStep  Phase `json:"currentStep"`
		LegacyIndex *int  `json:"stepIndex"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = QuestProgress(aux.plain)
	if q.CurrentPhase == "" && aux.LegacyStep != "" {
		q.CurrentPhase = aux.LegacyStep
		if aux.LegacyIndex != nil {
			q.PhaseIndex = *aux.LegacyIndex
		}
	}
	return nil
}

// StudentProgress is the per-learner aggregate
type StudentProgress struct {
	StudentName     string                    `json:"studentName"`
	EmotionalState  string                    `json:"emotionalState"`
	TotalCoins      int                       `json:"totalCoins"`
	Level           int                       `json:"level"`
	XP              int                       `json:"xp"`
	CompletedQuests []QuestID                 `json:"completedQuests"`
	CurrentQuestID  *QuestID                  `json:"currentQuestId"`
	QuestProgress   map[QuestID]QuestProgress `json:"questProgress"`
}

// NewStudentProgress returns the zeroed starting state
func NewStudentProgress() StudentProgress {
	return StudentProgress{
		Level:           1,
		CompletedQuests: []QuestID{},
		QuestProgress:   map[QuestID]QuestProgress{},
	}
}

// HasCompleted reports whether id is in CompletedQuests
func (p *StudentProgress) HasCompleted(id QuestID) bool {
	for _, done := range p.CompletedQuests {
		if done == id {
			return true
		}
	}
	return false
}

// IsUnlocked applies the unlock rule: quest 1 is always open, quest n needs n-1
func (p *StudentProgress) IsUnlocked(id QuestID) bool {
	if id <= 1 {
		return id == 1
	}
	return p.HasCompleted(id - 1)
}

// GrantXP adds experience and recomputes the level
func (p *StudentProgress) GrantXP(xp int) {
	p.XP += xp
	p.Level = LevelForXP(p.XP)
}

// ActiveQuest returns the in-progress quest record, if any
func (p *StudentProgress) ActiveQuest() (QuestProgress, bool) {
	if p.CurrentQuestID == nil {
		return QuestProgress{}, false
	}
	qp, ok := p.QuestProgress[*p.CurrentQuestID]
	return qp, ok
}

// Normalize repairs derived fields after decoding stored state
func (p *StudentProgress) Normalize() {
	if p.CompletedQuests == nil {
		p.CompletedQuests = []QuestID{}
	}
	if p.QuestProgress == nil {
		p.QuestProgress = map[QuestID]QuestProgress{}
	}
	if p.XP < 0 {
		p.XP = 0
	}
	p.Level = LevelForXP(p.XP)
	if p.CurrentQuestID != nil {
		if _, ok := p.QuestProgress[*p.CurrentQuestID]; !ok {
			p.CurrentQuestID = nil
		}
	}
	seen := make(map[QuestID]bool, len(p.CompletedQuests))
	deduped := p.CompletedQuests[:0]
	for _, id := range p.CompletedQuests {
		if !seen[id] {
			seen[id] = true
			deduped = append(deduped, id)
		}
	}
	p.CompletedQuests = deduped
}

// Clone returns a deep copy safe to hand to callers
func (p StudentProgress) Clone() StudentProgress {
	out := p
	out.CompletedQuests = append([]QuestID{}, p.CompletedQuests...)
	if p.CurrentQuestID != nil {
		id := *p.CurrentQuestID
		out.CurrentQuestID = &id
	}
	out.QuestProgress = make(map[QuestID]QuestProgress, len(p.QuestProgress))
	for k, v := range p.QuestProgress {
		if v.CompletedAt != nil {
			at := *v.CompletedAt
			v.CompletedAt = &at
		}
		out.QuestProgress[k] = v
	}
	return out
}
