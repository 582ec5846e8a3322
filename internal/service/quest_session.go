package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"abaquest/internal/logger"
	"abaquest/internal/models"
	"abaquest/internal/validation"
)

// AnswerFeedbackDelay is how long the presentation shows feedback after an answer
const AnswerFeedbackDelay = 1500 * time.Millisecond

// Question is the item currently posed to the learner
type Question struct {
	QuestID models.QuestID `json:"questId"`
	Phase   models.Phase   `json:"phase"`
	SceneID string         `json:"sceneId"`
	Index   int            `json:"index"`
	Total   int            `json:"total"`
	Prompt  string         `json:"prompt"`
	Number  *int           `json:"number,omitempty"`
	Choices []string       `json:"choices,omitempty"`
}

// AnswerOutcome is returned after an answer or skip is logged
type AnswerOutcome struct {
	Correct         models.Correctness `json:"correct"`
	Phase           models.Phase       `json:"phase"`
	PhaseComplete   bool               `json:"phaseComplete"`
	FeedbackDelayMs int64              `json:"feedbackDelayMs"`
}

// QuestResult summarizes a finalized quest
type QuestResult struct {
	QuestID         models.QuestID `json:"questId"`
	PreTestScore    int            `json:"preTestScore"`
	PostTestScore   int            `json:"postTestScore"`
	LearningGain    int            `json:"learningGain"`
	CoinsAwarded    int            `json:"coinsAwarded"`
	FirstCompletion bool           `json:"firstCompletion"`
	TotalCoins      int            `json:"totalCoins"`
	Level           int            `json:"level"`
}

// QuestSession walks a learner through one quest attempt. The phase pointer
// lives in the progress store; the session tracks the question within the
// phase and the pre/post tallies for this attempt.
type QuestSession struct {
	mu       sync.Mutex
	quest    *models.QuestDefinition
	progress *ProgressStore
	events   *EventLog
	now      func() time.Time
	log      *logger.Logger

	phase       models.Phase
	index       int
	presentedAt time.Time
	pre         models.Tally
	post        models.Tally
	finalized   bool
}

// NewQuestSession binds a session to the quest currently active in progress
func NewQuestSession(quest *models.QuestDefinition, progress *ProgressStore, events *EventLog, log *logger.Logger, now func() time.Time) *QuestSession {
	if now == nil {
		now = time.Now
	}
	return &QuestSession{
		quest:    quest,
		progress: progress,
		events:   events,
		now:      now,
		log:      log.With("quest_id", quest.ID),
	}
}

// QuestID returns the quest this session runs
func (s *QuestSession) QuestID() models.QuestID {
	return s.quest.ID
}

// currentPhaseLocked reads the phase from the progress store and resets the
// question pointer whenever the phase has changed since the last call.
func (s *QuestSession) currentPhaseLocked() (models.Phase, error) {
	qp, ok := s.progress.Active()
	if !ok || qp.QuestID != s.quest.ID {
		return "", ErrNoActiveQuest
	}
	if qp.CurrentPhase != s.phase {
		s.phase = qp.CurrentPhase
		s.index = 0
		s.presentedAt = time.Time{}
		switch s.phase {
		case models.PhasePretest:
			s.pre = models.Tally{}
		case models.PhasePosttest:
			s.post = models.Tally{}
		}
	}
	return s.phase, nil
}

// Phase returns the current phase
func (s *QuestSession) Phase() (models.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return s.phase, nil
	}
	return s.currentPhaseLocked()
}

func sceneID(phase models.Phase, index int) string {
	return fmt.Sprintf("%s_q%d", phase, index+1)
}

// CurrentQuestion returns the item posed now and starts its answer timer
func (s *QuestSession) CurrentQuestion() (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return Question{}, ErrAlreadyFinalized
	}
	phase, err := s.currentPhaseLocked()
	if err != nil {
		return Question{}, err
	}
	items := s.quest.ItemsFor(phase)
	if s.index >= len(items) {
		return Question{}, ErrNoQuestion
	}
	if s.presentedAt.IsZero() {
		s.presentedAt = s.now()
	}
	item := items[s.index]
	return Question{
		QuestID: s.quest.ID,
		Phase:   phase,
		SceneID: sceneID(phase, s.index),
		Index:   s.index,
		Total:   len(items),
		Prompt:  item.Prompt,
		Number:  item.Number,
		Choices: item.Choices,
	}, nil
}

// SubmitAnswer checks response against the current item, logs it and moves on
func (s *QuestSession) SubmitAnswer(ctx context.Context, response string) (AnswerOutcome, error) {
	if err := validation.ValidateResponse(response); err != nil {
		return AnswerOutcome{}, err
	}
	return s.respond(ctx, response, false)
}

// Skip logs an "I don't know yet" for the current item. Skips do not count
// toward the phase score.
func (s *QuestSession) Skip(ctx context.Context) (AnswerOutcome, error) {
	return s.respond(ctx, models.SkipResponse, true)
}

func (s *QuestSession) respond(ctx context.Context, response string, skipped bool) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return AnswerOutcome{}, ErrAlreadyFinalized
	}
	phase, err := s.currentPhaseLocked()
	if err != nil {
		return AnswerOutcome{}, err
	}
	items := s.quest.ItemsFor(phase)
	if s.index >= len(items) {
		return AnswerOutcome{}, ErrNoQuestion
	}
	item := items[s.index]

	var elapsed int64
	if !s.presentedAt.IsZero() {
		elapsed = s.now().Sub(s.presentedAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
	}

	correctness := models.Skipped
	if !skipped {
		correctness = models.CorrectnessOf(item.Accepts(response))
	}

	_, err = s.events.Record(ctx, models.InteractionInput{
		QuestID:         s.quest.ID,
		SceneID:         sceneID(phase, s.index),
		Number:          item.Number,
		CorrectFlag:     correctness,
		ElapsedMs:       elapsed,
		InteractionType: phase.InteractionType(),
		StudentResponse: response,
	})
	if err != nil && !errors.Is(err, ErrStorage) {
		return AnswerOutcome{}, err
	}

	switch phase {
	case models.PhasePretest:
		s.pre.Add(correctness)
	case models.PhasePosttest:
		s.post.Add(correctness)
	}

	s.index++
	s.presentedAt = time.Time{}
	out := AnswerOutcome{Correct: correctness, Phase: phase, FeedbackDelayMs: AnswerFeedbackDelay.Milliseconds()}
	if s.index >= len(items) {
		out.PhaseComplete = true
		if err := s.progress.AdvancePhase(ctx); err != nil {
			s.log.Warn("phase advance not persisted", "error", err)
		}
		if next, err := s.currentPhaseLocked(); err == nil {
			out.Phase = next
		}
	}
	return out, nil
}

// Advance moves to the next phase. At the last phase it does nothing.
func (s *QuestSession) Advance(ctx context.Context) (models.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return s.phase, ErrAlreadyFinalized
	}
	if _, err := s.currentPhaseLocked(); err != nil {
		return "", err
	}
	if err := s.progress.AdvancePhase(ctx); err != nil {
		s.log.Warn("phase advance not persisted", "error", err)
	}
	return s.currentPhaseLocked()
}

// JumpTo moves directly to phase if it belongs to this quest
func (s *QuestSession) JumpTo(ctx context.Context, phase models.Phase) (models.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return s.phase, ErrAlreadyFinalized
	}
	if _, err := s.currentPhaseLocked(); err != nil {
		return "", err
	}
	if err := s.progress.JumpToPhase(ctx, phase); err != nil {
		s.log.Warn("phase jump not persisted", "error", err)
	}
	return s.currentPhaseLocked()
}

// Scores returns the pre-test and post-test scores of this attempt
func (s *QuestSession) Scores() (pre, post int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pre.Score(), s.post.Score()
}

// Finalize completes the quest once the last phase is reached. It may be
// called once per session.
func (s *QuestSession) Finalize(ctx context.Context) (QuestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return QuestResult{}, ErrAlreadyFinalized
	}
	phase, err := s.currentPhaseLocked()
	if err != nil {
		return QuestResult{}, err
	}
	if s.quest.PhaseIndex(phase) != len(s.quest.Phases)-1 {
		return QuestResult{}, ErrNotAtClose
	}

	pre, post := s.pre.Score(), s.post.Score()
	res, err := s.progress.CompleteQuest(ctx, pre, post)
	if err != nil {
		s.log.Warn("quest completion not persisted", "error", err)
	}
	if !res.Applied {
		return QuestResult{}, ErrNoActiveQuest
	}
	s.finalized = true

	snap := s.progress.Snapshot()
	return QuestResult{
		QuestID:         s.quest.ID,
		PreTestScore:    pre,
		PostTestScore:   post,
		LearningGain:    post - pre,
		CoinsAwarded:    res.CoinsAwarded,
		FirstCompletion: res.FirstCompletion,
		TotalCoins:      snap.TotalCoins,
		Level:           snap.Level,
	}, nil
}

// Finalized reports whether Finalize has succeeded
func (s *QuestSession) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}
