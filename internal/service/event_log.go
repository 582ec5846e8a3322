package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"abaquest/internal/logger"
	"abaquest/internal/models"
)

// InteractionSink durably stores a learner's event log
type InteractionSink interface {
	Append(ctx context.Context, studentID string, entry models.Interaction) error
	List(ctx context.Context, studentID string) ([]models.Interaction, error)
	Clear(ctx context.Context, studentID string) error
}

// EventLog is one learner's append-only interaction log
type EventLog struct {
	mu        sync.RWMutex
	studentID string
	entries   []models.Interaction
	sink      InteractionSink
	now       func() time.Time
	log       *logger.Logger
}

// NewEventLog creates an empty log. sink may be nil for a memory-only log.
func NewEventLog(studentID string, sink InteractionSink, log *logger.Logger, now func() time.Time) *EventLog {
	if now == nil {
		now = time.Now
	}
	return &EventLog{
		studentID: studentID,
		sink:      sink,
		now:       now,
		log:       log.With("student_id", studentID),
	}
}

// Load replaces the in-memory entries with what the sink holds
func (l *EventLog) Load(ctx context.Context) error {
	if l.sink == nil {
		return nil
	}
	entries, err := l.sink.List(ctx, l.studentID)
	if err != nil {
		return fmt.Errorf("failed to load interactions: %w", err)
	}
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	return nil
}

// Record stamps and appends an interaction. The entry is kept in memory even
// when the durable append fails; that failure is returned wrapped in ErrStorage.
func (l *EventLog) Record(ctx context.Context, in models.InteractionInput) (models.Interaction, error) {
	if err := in.Validate(); err != nil {
		return models.Interaction{}, err
	}

	l.mu.Lock()
	entry := in.Stamp(l.now().UTC())
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.log.Debug("interaction recorded",
		"quest_id", entry.QuestID,
		"scene_id", entry.SceneID,
		"type", entry.InteractionType,
		"correct", entry.CorrectFlag.String(),
		"time_ms", entry.ElapsedMs,
	)

	if l.sink != nil {
		if err := l.sink.Append(ctx, l.studentID, entry); err != nil {
			l.log.Error("failed to persist interaction", "error", err)
			return entry, fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return entry, nil
}

// Clear empties the log. Only called as part of a full reset.
func (l *EventLog) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Clear(ctx, l.studentID); err != nil {
			l.log.Error("failed to clear interactions", "error", err)
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return nil
}

// Snapshot returns a copy of the log in insertion order
func (l *EventLog) Snapshot() []models.Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Interaction, len(l.entries))
	for i, entry := range l.entries {
		if entry.Number != nil {
			entry.Number = models.IntPtr(*entry.Number)
		}
		out[i] = entry
	}
	return out
}

// Len returns the number of recorded interactions
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *EventLog) scoreFor(t models.InteractionType) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var tally models.Tally
	for _, e := range l.entries {
		if e.InteractionType == t {
			tally.Add(e.CorrectFlag)
		}
	}
	return tally.Score()
}

// PreTestScore is the percentage correct over non-skipped pre-test entries
func (l *EventLog) PreTestScore() int {
	return l.scoreFor(models.InteractionPreTest)
}

// PostTestScore is the percentage correct over non-skipped post-test entries
func (l *EventLog) PostTestScore() int {
	return l.scoreFor(models.InteractionPostTest)
}

// HighestNumberAchieved is the largest number on a correct entry, or 0
func (l *EventLog) HighestNumberAchieved() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	highest := 0
	for _, e := range l.entries {
		if e.CorrectFlag == models.Correct && e.Number != nil && *e.Number > highest {
			highest = *e.Number
		}
	}
	return highest
}

// TotalCoinsFromActivity is the activity-based coin estimate used in exports:
// the post-test score plus 5 per correct practice answer. It is independent of
// the catalog reward granted on quest completion.
func (l *EventLog) TotalCoinsFromActivity() int {
	l.mu.RLock()
	practiceCorrect := 0
	for _, e := range l.entries {
		if e.InteractionType == models.InteractionPractice && e.CorrectFlag == models.Correct {
			practiceCorrect++
		}
	}
	l.mu.RUnlock()
	return l.PostTestScore() + 5*practiceCorrect
}
