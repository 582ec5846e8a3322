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

// QuestCatalog is the read side of the quest catalog
type QuestCatalog interface {
	QuestLookup
	Quest(id models.QuestID) (*models.QuestDefinition, error)
}

// Learner is the explicit session handle for one signed-in profile. It
// bundles that learner's progress store, event log and current quest.
type Learner struct {
	mu        sync.Mutex
	studentID string
	name      string
	catalog   QuestCatalog
	progress  *ProgressStore
	events    *EventLog
	quest     *QuestSession
	lastSeen  time.Time
	now       func() time.Time
	log       *logger.Logger
}

// LearnerDeps are the collaborators shared by every learner session
type LearnerDeps struct {
	Catalog      QuestCatalog
	Documents    kv.Store
	Interactions InteractionSink
	Logger       *logger.Logger
	Now          func() time.Time
}

func (d LearnerDeps) clock() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

// OpenLearner loads a learner's progress and event log. The progress embedded
// in profile is used when no progress document exists.
func OpenLearner(ctx context.Context, deps LearnerDeps, profile models.StudentProfile) (*Learner, error) {
	now := deps.clock()
	log := deps.Logger.With("student_id", profile.ID)

	progress := NewProgressStore(profile.ID, deps.Documents, deps.Catalog, deps.Logger)
	progress.SetClock(now)
	if err := progress.Load(ctx, profile.Progress); err != nil {
		return nil, err
	}

	events := NewEventLog(profile.ID, deps.Interactions, deps.Logger, now)
	if err := events.Load(ctx); err != nil {
		return nil, err
	}

	l := &Learner{
		studentID: profile.ID,
		name:      profile.Name,
		catalog:   deps.Catalog,
		progress:  progress,
		events:    events,
		lastSeen:  now(),
		now:       now,
		log:       log,
	}

	if snap := progress.Snapshot(); snap.StudentName == "" && profile.Name != "" {
		if err := progress.SetStudentName(ctx, profile.Name); err != nil {
			log.Warn("student name not persisted", "error", err)
		}
	}

	// Resume an attempt left in progress. Tallies from the earlier session are gone.
	if qp, ok := progress.Active(); ok {
		if quest, err := deps.Catalog.Quest(qp.QuestID); err == nil {
			l.quest = NewQuestSession(quest, progress, events, deps.Logger, now)
		}
	}
	return l, nil
}

// StudentID returns the profile id
func (l *Learner) StudentID() string {
	return l.studentID
}

// Progress exposes the learner's progress store
func (l *Learner) Progress() *ProgressStore {
	return l.progress
}

// Events exposes the learner's event log
func (l *Learner) Events() *EventLog {
	return l.events
}

func (l *Learner) touch() {
	l.mu.Lock()
	l.lastSeen = l.now()
	l.mu.Unlock()
}

// LastSeen returns when the learner last made a call
func (l *Learner) LastSeen() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeen
}

// IsUnlocked reports whether quest id may be started
func (l *Learner) IsUnlocked(id models.QuestID) bool {
	return l.progress.IsUnlocked(id)
}

// Snapshot returns the current progress
func (l *Learner) Snapshot() models.StudentProgress {
	l.touch()
	return l.progress.Snapshot()
}

// StartQuest begins an attempt at id. Locked quests are refused here; the
// progress store itself does not check.
func (l *Learner) StartQuest(ctx context.Context, id models.QuestID) (*QuestSession, error) {
	l.touch()
	quest, err := l.catalog.Quest(id)
	if err != nil {
		return nil, err
	}
	if !l.progress.IsUnlocked(id) {
		return nil, fmt.Errorf("%w: %d", ErrQuestLocked, id)
	}
	if err := l.progress.StartQuest(ctx, id); err != nil {
		l.log.Warn("quest start not persisted", "quest_id", id, "error", err)
	}

	session := NewQuestSession(quest, l.progress, l.events, l.log, l.now)
	l.mu.Lock()
	l.quest = session
	l.mu.Unlock()
	return session, nil
}

// Quest returns the running quest session
func (l *Learner) Quest() (*QuestSession, error) {
	l.touch()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quest == nil || l.quest.Finalized() {
		return nil, ErrNoActiveQuest
	}
	return l.quest, nil
}

// Finalize completes the running quest and drops the session
func (l *Learner) Finalize(ctx context.Context) (QuestResult, error) {
	session, err := l.Quest()
	if err != nil {
		return QuestResult{}, err
	}
	result, err := session.Finalize(ctx)
	if err != nil {
		return QuestResult{}, err
	}
	l.mu.Lock()
	if l.quest == session {
		l.quest = nil
	}
	l.mu.Unlock()
	return result, nil
}

// Export builds the analytics document for questID from the full event log
func (l *Learner) Export(questID models.QuestID) models.ExportDocument {
	l.touch()
	name := l.progress.Snapshot().StudentName
	if name == "" {
		name = l.name
	}
	return BuildExport(name, questID, l.events, l.now())
}

// ResetAll clears the event log and the progress together
func (l *Learner) ResetAll(ctx context.Context) error {
	l.touch()
	l.mu.Lock()
	l.quest = nil
	l.mu.Unlock()

	logErr := l.events.Clear(ctx)
	progressErr := l.progress.Reset(ctx)
	return errors.Join(logErr, progressErr)
}
