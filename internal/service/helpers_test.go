package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"abaquest/internal/catalog"
	"abaquest/internal/kv"
	"abaquest/internal/logger"
	"abaquest/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Quest 3 here has three assessment items so scores come out as whole halves.
const testCatalogYAML = `
quests:
  - id: 1
    title: The Naming
    coin_reward: 20
    assessment:
      - prompt: Is this an abacus?
        answer: "yes"
      - prompt: Does it have beads?
        answer: "yes"
    practice:
      - prompt: Touch the counter
        answer: done
    story:
      - prompt: Say hello to Ameer
        answer: hello
  - id: 2
    title: Parts of the Counter
    coin_reward: 25
    assessment:
      - prompt: Which part holds the beads?
        answer: rod
  - id: 3
    title: Position Numbers 0-9
    coin_reward: 30
    assessment:
      - prompt: Where does Zero live?
        number: 0
        answer: top
      - prompt: Where does One live?
        number: 1
        answer: middle-lower
      - prompt: Where does Nine live?
        number: 9
        answer: bottom
    practice:
      - prompt: Build the number 5
        number: 5
        answer: "5"
    story:
      - prompt: Which beads show 5?
        number: 5
        answer: middle-upper
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("catalog.Parse() error = %v", err)
	}
	return c
}

func newTestProgressStore(t *testing.T, store kv.Store, clock *fakeClock) *ProgressStore {
	t.Helper()
	ps := NewProgressStore("s1", store, testCatalog(t), logger.NewNop())
	ps.SetClock(clock.Now)
	if err := ps.Load(context.Background(), models.NewStudentProgress()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return ps
}

func testDeps(t *testing.T, clock *fakeClock) LearnerDeps {
	t.Helper()
	return LearnerDeps{
		Catalog:      testCatalog(t),
		Documents:    kv.NewMemory(),
		Interactions: kv.NewMemoryInteractionLog(),
		Logger:       logger.NewNop(),
		Now:          clock.Now,
	}
}

// testProfile returns a learner who has already completed the given quests
func testProfile(completed ...models.QuestID) models.StudentProfile {
	progress := models.NewStudentProgress()
	progress.CompletedQuests = append(progress.CompletedQuests, completed...)
	return models.StudentProfile{ID: "s1", Name: "Ameer", Role: models.RoleStudent, GradeLevel: models.GradeK, Progress: progress}
}

var errDiskFull = errors.New("disk full")

// brokenSink fails every durable operation
type brokenSink struct{}

func (brokenSink) Append(ctx context.Context, studentID string, entry models.Interaction) error {
	return errDiskFull
}

func (brokenSink) List(ctx context.Context, studentID string) ([]models.Interaction, error) {
	return nil, nil
}

func (brokenSink) Clear(ctx context.Context, studentID string) error {
	return errDiskFull
}

// unreadableStore fails every Get
type unreadableStore struct {
	*kv.Memory
}

func (unreadableStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errDiskFull
}
