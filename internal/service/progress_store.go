package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"abaquest/internal/kv"
	"abaquest/internal/logger"
	"abaquest/internal/models"
)

// ProgressKeyPrefix namespaces per-learner progress documents
const ProgressKeyPrefix = "abaquest_progress:"

// ProgressKey returns the storage key for a learner's progress document
func ProgressKey(studentID string) string {
	return ProgressKeyPrefix + studentID
}

// QuestLookup is the part of the catalog the progress store needs
type QuestLookup interface {
	Phases(id models.QuestID) []models.Phase
	CoinReward(id models.QuestID) int
}

// CompletionResult describes what CompleteQuest granted
type CompletionResult struct {
	QuestID         models.QuestID `json:"questId"`
	CoinsAwarded    int            `json:"coinsAwarded"`
	FirstCompletion bool           `json:"firstCompletion"`
	Applied         bool           `json:"applied"`
}

// ProgressStore owns one learner's StudentProgress and its durable copy.
// Every mutation is persisted before it returns. Calls that need an active
// quest are no-ops when there is none.
type ProgressStore struct {
	mu        sync.Mutex
	studentID string
	store     kv.Store
	quests    QuestLookup
	progress  models.StudentProgress
	now       func() time.Time
	log       *logger.Logger
}

// NewProgressStore creates a store holding default progress. Call Load to
// read the durable copy.
func NewProgressStore(studentID string, store kv.Store, quests QuestLookup, log *logger.Logger) *ProgressStore {
	return &ProgressStore{
		studentID: studentID,
		store:     store,
		quests:    quests,
		progress:  models.NewStudentProgress(),
		now:       time.Now,
		log:       log.With("student_id", studentID),
	}
}

// SetClock replaces the time source
func (s *ProgressStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Load reads the stored document. A missing document yields fallback; an
// unreadable or unsupported one also yields fallback and is logged as a
// fresh start. Only read failures from the store itself are returned.
func (s *ProgressStore) Load(ctx context.Context, fallback models.StudentProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fallback = fallback.Clone()
	fallback.Normalize()

	raw, err := s.store.Get(ctx, ProgressKey(s.studentID))
	if errors.Is(err, kv.ErrNotFound) {
		s.progress = fallback
		return nil
	}
	if err != nil {
		s.progress = fallback
		return fmt.Errorf("failed to load progress: %w", err)
	}

	var loaded models.StudentProgress
	if err := decodeDocument(raw, &loaded); err != nil {
		s.log.Warn("stored progress unreadable, starting fresh", "error", err)
		s.progress = fallback
		return nil
	}
	loaded.Normalize()
	s.progress = loaded
	return nil
}

func (s *ProgressStore) persistLocked(ctx context.Context) error {
	data, err := encodeDocument(s.progress)
	if err != nil {
		s.log.Error("failed to encode progress", "error", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.store.Put(ctx, ProgressKey(s.studentID), data); err != nil {
		s.log.Error("failed to persist progress", "error", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Snapshot returns a deep copy of the current progress
func (s *ProgressStore) Snapshot() models.StudentProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

// Active returns the in-progress quest record, if any
func (s *ProgressStore) Active() (models.QuestProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.ActiveQuest()
}

// IsUnlocked reports whether id may be started. The store does not enforce
// this in StartQuest; callers check first.
func (s *ProgressStore) IsUnlocked(id models.QuestID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.IsUnlocked(id)
}

// StartQuest makes id the active quest at its first phase, discarding any
// partial attempt recorded for it.
func (s *ProgressStore) StartQuest(ctx context.Context, id models.QuestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	phases := s.quests.Phases(id)
	if len(phases) == 0 {
		s.log.Warn("start ignored: unknown quest", "quest_id", id)
		return nil
	}

	qid := id
	s.progress.CurrentQuestID = &qid
	s.progress.QuestProgress[id] = models.QuestProgress{
		QuestID:      id,
		CurrentPhase: phases[0],
		PhaseIndex:   0,
		StartedAt:    s.now().UTC(),
	}
	return s.persistLocked(ctx)
}

// AdvancePhase moves the active quest to its next phase. At the last phase
// it does nothing.
func (s *ProgressStore) AdvancePhase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	qp, ok := s.progress.ActiveQuest()
	if !ok {
		s.log.Warn("advance ignored: no active quest")
		return nil
	}
	phases := s.quests.Phases(qp.QuestID)
	next := qp.PhaseIndex + 1
	if next >= len(phases) {
		s.log.Debug("advance ignored: already at last phase", "quest_id", qp.QuestID)
		return nil
	}
	qp.PhaseIndex = next
	qp.CurrentPhase = phases[next]
	s.progress.QuestProgress[qp.QuestID] = qp
	return s.persistLocked(ctx)
}

// JumpToPhase sets the active quest's phase directly. Phases outside the
// quest's list are ignored.
func (s *ProgressStore) JumpToPhase(ctx context.Context, phase models.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	qp, ok := s.progress.ActiveQuest()
	if !ok {
		s.log.Warn("jump ignored: no active quest", "phase", phase)
		return nil
	}
	idx := -1
	for i, p := range s.quests.Phases(qp.QuestID) {
		if p == phase {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.log.Warn("jump ignored: phase not in quest", "quest_id", qp.QuestID, "phase", phase)
		return nil
	}
	qp.PhaseIndex = idx
	qp.CurrentPhase = phase
	s.progress.QuestProgress[qp.QuestID] = qp
	return s.persistLocked(ctx)
}

// CompleteQuest closes the active quest with the given scores. The catalog
// reward is granted only the first time a quest is completed.
func (s *ProgressStore) CompleteQuest(ctx context.Context, preScore, postScore int) (CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qp, ok := s.progress.ActiveQuest()
	if !ok {
		s.log.Warn("complete ignored: no active quest")
		return CompletionResult{}, nil
	}

	first := !s.progress.HasCompleted(qp.QuestID)
	reward := 0
	if first {
		reward = s.quests.CoinReward(qp.QuestID)
		s.progress.CompletedQuests = append(s.progress.CompletedQuests, qp.QuestID)
	}
	s.progress.TotalCoins += reward
	s.progress.GrantXP(models.XPPerCoin * reward)

	completedAt := s.now().UTC()
	qp.PreTestScore = clampScore(preScore)
	qp.PostTestScore = clampScore(postScore)
	qp.CoinsEarned = reward
	qp.Completed = true
	qp.CompletedAt = &completedAt
	s.progress.QuestProgress[qp.QuestID] = qp
	s.progress.CurrentQuestID = nil

	s.log.Info("quest completed",
		"quest_id", qp.QuestID,
		"first_completion", first,
		"coins", reward,
		"pre_score", qp.PreTestScore,
		"post_score", qp.PostTestScore,
	)

	result := CompletionResult{QuestID: qp.QuestID, CoinsAwarded: reward, FirstCompletion: first, Applied: true}
	return result, s.persistLocked(ctx)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SetStudentName stores the learner's display name
func (s *ProgressStore) SetStudentName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.StudentName = name
	return s.persistLocked(ctx)
}

// SetEmotionalState stores the learner's latest check-in
func (s *ProgressStore) SetEmotionalState(ctx context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.EmotionalState = state
	return s.persistLocked(ctx)
}

// AddCoins grants coins outside quest completion, with the matching XP
func (s *ProgressStore) AddCoins(ctx context.Context, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount < 0 {
		s.log.Warn("add coins ignored: negative amount", "amount", amount)
		return nil
	}
	s.progress.TotalCoins += amount
	s.progress.GrantXP(models.XPPerCoin * amount)
	return s.persistLocked(ctx)
}

// Reset restores the initial state and erases the durable copy
func (s *ProgressStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = models.NewStudentProgress()
	if err := s.store.Delete(ctx, ProgressKey(s.studentID)); err != nil {
		s.log.Error("failed to erase progress", "error", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.log.Info("progress reset")
	return nil
}
