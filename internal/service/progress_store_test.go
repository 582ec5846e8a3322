package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"abaquest/internal/kv"
	"abaquest/internal/logger"
	"abaquest/internal/models"
)

func TestProgressStoreStartQuest(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := kv.NewMemory()
	ps := newTestProgressStore(t, store, clock)

	if err := ps.StartQuest(ctx, 1); err != nil {
		t.Fatalf("StartQuest() error = %v", err)
	}

	snap := ps.Snapshot()
	if snap.CurrentQuestID == nil || *snap.CurrentQuestID != 1 {
		t.Fatalf("CurrentQuestID = %v, want 1", snap.CurrentQuestID)
	}
	qp := snap.QuestProgress[1]
	if qp.PhaseIndex != 0 || qp.CurrentPhase != models.PhaseWelcome {
		t.Errorf("QuestProgress = %+v, want welcome at index 0", qp)
	}
	if !qp.StartedAt.Equal(clock.Now()) {
		t.Errorf("StartedAt = %v, want %v", qp.StartedAt, clock.Now())
	}

	raw, err := store.Get(ctx, ProgressKey("s1"))
	if err != nil {
		t.Fatalf("progress not persisted: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("stored document is not an envelope: %v", err)
	}
	if env.Version != documentVersion {
		t.Errorf("stored version = %v, want %v", env.Version, documentVersion)
	}
}

func TestProgressStoreStartQuestDiscardsPartialAttempt(t *testing.T) {
	ctx := context.Background()
	ps := newTestProgressStore(t, kv.NewMemory(), newFakeClock())

	ps.StartQuest(ctx, 1)
	ps.AdvancePhase(ctx)
	ps.AdvancePhase(ctx)
	ps.StartQuest(ctx, 1)

	qp, ok := ps.Active()
	if !ok {
		t.Fatal("Active() = false, want true")
	}
	if qp.PhaseIndex != 0 {
		t.Errorf("PhaseIndex = %v after restart, want 0", qp.PhaseIndex)
	}
}

func TestProgressStoreAdvancePhase(t *testing.T) {
	ctx := context.Background()
	ps := newTestProgressStore(t, kv.NewMemory(), newFakeClock())
	ps.StartQuest(ctx, 1)

	for i, want := range models.DefaultPhases[1:] {
		if err := ps.AdvancePhase(ctx); err != nil {
			t.Fatalf("AdvancePhase() error = %v", err)
		}
		qp, _ := ps.Active()
		if qp.CurrentPhase != want || qp.PhaseIndex != i+1 {
			t.Errorf("after %d advances phase = %s/%d, want %s/%d", i+1, qp.CurrentPhase, qp.PhaseIndex, want, i+1)
		}
	}

	// Past the last phase nothing changes.
	ps.AdvancePhase(ctx)
	qp, _ := ps.Active()
	if qp.CurrentPhase != models.PhaseClose || qp.PhaseIndex != 5 {
		t.Errorf("advance past close moved to %s/%d", qp.CurrentPhase, qp.PhaseIndex)
	}
}

func TestProgressStoreNoActiveQuestIsNoop(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	ps := newTestProgressStore(t, store, newFakeClock())

	if err := ps.AdvancePhase(ctx); err != nil {
		t.Errorf("AdvancePhase() error = %v", err)
	}
	if err := ps.JumpToPhase(ctx, models.PhaseStory); err != nil {
		t.Errorf("JumpToPhase() error = %v", err)
	}
	res, err := ps.CompleteQuest(ctx, 80, 90)
	if err != nil {
		t.Errorf("CompleteQuest() error = %v", err)
	}
	if res.Applied {
		t.Error("CompleteQuest() with no active quest should not apply")
	}
	snap := ps.Snapshot()
	if snap.TotalCoins != 0 || len(snap.CompletedQuests) != 0 || len(snap.QuestProgress) != 0 {
		t.Errorf("no-op calls changed progress: %+v", snap)
	}
	if _, err := store.Get(ctx, ProgressKey("s1")); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("no-op calls wrote a document: %v", err)
	}
}

func TestProgressStoreJumpToPhase(t *testing.T) {
	ctx := context.Background()
	ps := newTestProgressStore(t, kv.NewMemory(), newFakeClock())
	ps.StartQuest(ctx, 1)

	tests := []struct {
		name      string
		phase     models.Phase
		wantPhase models.Phase
		wantIndex int
	}{
		{"forward to story", models.PhaseStory, models.PhaseStory, 3},
		{"back to pretest", models.PhasePretest, models.PhasePretest, 1},
		{"unknown phase ignored", models.Phase("bonus"), models.PhasePretest, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ps.JumpToPhase(ctx, tt.phase); err != nil {
				t.Fatalf("JumpToPhase() error = %v", err)
			}
			qp, _ := ps.Active()
			if qp.CurrentPhase != tt.wantPhase || qp.PhaseIndex != tt.wantIndex {
				t.Errorf("phase = %s/%d, want %s/%d", qp.CurrentPhase, qp.PhaseIndex, tt.wantPhase, tt.wantIndex)
			}
		})
	}
}

func TestProgressStoreJumpOutsideShortQuest(t *testing.T) {
	ctx := context.Background()
	short := &staticLookup{phases: []models.Phase{models.PhaseWelcome, models.PhaseLearn, models.PhaseClose}}
	ps := NewProgressStore("s1", kv.NewMemory(), short, logger.NewNop())
	ps.StartQuest(ctx, 1)

	ps.JumpToPhase(ctx, models.PhaseStory)
	qp, _ := ps.Active()
	if qp.CurrentPhase != models.PhaseWelcome {
		t.Errorf("jump to a phase the quest lacks moved to %s", qp.CurrentPhase)
	}
	ps.JumpToPhase(ctx, models.PhaseClose)
	qp, _ = ps.Active()
	if qp.PhaseIndex != 2 {
		t.Errorf("PhaseIndex = %v, want 2", qp.PhaseIndex)
	}
}

type staticLookup struct {
	phases []models.Phase
	reward int
}

func (s *staticLookup) Phases(id models.QuestID) []models.Phase { return s.phases }
func (s *staticLookup) CoinReward(id models.QuestID) int        { return s.reward }

func TestProgressStoreCompleteQuestRewardsOnce(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	ps := newTestProgressStore(t, kv.NewMemory(), clock)

	ps.StartQuest(ctx, 1)
	first, err := ps.CompleteQuest(ctx, 50, 100)
	if err != nil {
		t.Fatalf("CompleteQuest() error = %v", err)
	}
	if !first.FirstCompletion || first.CoinsAwarded != 20 {
		t.Errorf("first completion = %+v, want 20 coins", first)
	}
	afterFirst := ps.Snapshot()
	if afterFirst.TotalCoins != 20 || afterFirst.XP != 100 || afterFirst.Level != 1 {
		t.Errorf("after first completion coins=%d xp=%d level=%d", afterFirst.TotalCoins, afterFirst.XP, afterFirst.Level)
	}
	if afterFirst.CurrentQuestID != nil {
		t.Error("CurrentQuestID should be cleared on completion")
	}
	qp := afterFirst.QuestProgress[1]
	if !qp.Completed || qp.PreTestScore != 50 || qp.PostTestScore != 100 || qp.CoinsEarned != 20 || qp.CompletedAt == nil {
		t.Errorf("QuestProgress after completion = %+v", qp)
	}

	// Replay
	ps.StartQuest(ctx, 1)
	second, err := ps.CompleteQuest(ctx, 100, 100)
	if err != nil {
		t.Fatalf("CompleteQuest() error = %v", err)
	}
	if second.FirstCompletion || second.CoinsAwarded != 0 {
		t.Errorf("replay completion = %+v, want no reward", second)
	}
	afterSecond := ps.Snapshot()
	if afterSecond.TotalCoins != afterFirst.TotalCoins || afterSecond.XP != afterFirst.XP {
		t.Errorf("replay changed coins/xp: %d/%d, want %d/%d", afterSecond.TotalCoins, afterSecond.XP, afterFirst.TotalCoins, afterFirst.XP)
	}
	if len(afterSecond.CompletedQuests) != 1 {
		t.Errorf("CompletedQuests = %v, want [1]", afterSecond.CompletedQuests)
	}
	if afterSecond.QuestProgress[1].CoinsEarned != 0 {
		t.Errorf("replay CoinsEarned = %v, want 0", afterSecond.QuestProgress[1].CoinsEarned)
	}
}

func TestProgressStoreUnlockRule(t *testing.T) {
	tests := []struct {
		name      string
		completed []models.QuestID
		quest     models.QuestID
		want      bool
	}{
		{"quest 1 fresh", nil, 1, true},
		{"quest 1 after others", []models.QuestID{1, 2, 3}, 1, true},
		{"quest 2 locked", nil, 2, false},
		{"quest 2 unlocked", []models.QuestID{1}, 2, true},
		{"quest 3 needs 2 not 1", []models.QuestID{1}, 3, false},
		{"quest 4 only needs 3", []models.QuestID{3}, 4, true},
		{"quest 0", []models.QuestID{1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := models.NewStudentProgress()
			fallback.CompletedQuests = tt.completed
			ps := NewProgressStore("s1", kv.NewMemory(), testCatalog(t), logger.NewNop())
			if err := ps.Load(context.Background(), fallback); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := ps.IsUnlocked(tt.quest); got != tt.want {
				t.Errorf("IsUnlocked(%d) = %v, want %v", tt.quest, got, tt.want)
			}
		})
	}
}

func TestProgressStoreDoesNotEnforceUnlock(t *testing.T) {
	ctx := context.Background()
	ps := newTestProgressStore(t, kv.NewMemory(), newFakeClock())

	if ps.IsUnlocked(2) {
		t.Fatal("IsUnlocked(2) = true before quest 1 is completed")
	}
	// The caller is expected to check IsUnlocked; the store starts what it is told to.
	if err := ps.StartQuest(ctx, 2); err != nil {
		t.Fatalf("StartQuest() error = %v", err)
	}
	if qp, ok := ps.Active(); !ok || qp.QuestID != 2 {
		t.Errorf("Active() = %+v, %v", qp, ok)
	}
}

func TestProgressStoreAddCoins(t *testing.T) {
	ctx := context.Background()
	ps := newTestProgressStore(t, kv.NewMemory(), newFakeClock())

	if err := ps.AddCoins(ctx, 100); err != nil {
		t.Fatalf("AddCoins() error = %v", err)
	}
	snap := ps.Snapshot()
	if snap.TotalCoins != 100 || snap.XP != 500 || snap.Level != 2 {
		t.Errorf("after AddCoins(100) coins=%d xp=%d level=%d, want 100/500/2", snap.TotalCoins, snap.XP, snap.Level)
	}

	ps.AddCoins(ctx, -5)
	if ps.Snapshot().TotalCoins != 100 {
		t.Error("negative AddCoins should be ignored")
	}
}

func TestProgressStoreSetters(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	ps := newTestProgressStore(t, store, newFakeClock())

	ps.SetStudentName(ctx, "Ameerah")
	ps.SetEmotionalState(ctx, "happy")

	reloaded := NewProgressStore("s1", store, testCatalog(t), logger.NewNop())
	if err := reloaded.Load(ctx, models.NewStudentProgress()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snap := reloaded.Snapshot()
	if snap.StudentName != "Ameerah" || snap.EmotionalState != "happy" {
		t.Errorf("reloaded name/state = %q/%q", snap.StudentName, snap.EmotionalState)
	}
}

func TestProgressStoreResetMidQuest(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	ps := newTestProgressStore(t, store, newFakeClock())

	ps.StartQuest(ctx, 1)
	ps.CompleteQuest(ctx, 100, 100)
	ps.StartQuest(ctx, 2)
	ps.AdvancePhase(ctx)

	if err := ps.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	snap := ps.Snapshot()
	if snap.CurrentQuestID != nil {
		t.Error("CurrentQuestID should be nil after reset")
	}
	if len(snap.CompletedQuests) != 0 {
		t.Errorf("CompletedQuests = %v, want empty", snap.CompletedQuests)
	}
	if snap.TotalCoins != 0 || snap.XP != 0 || snap.Level != 1 {
		t.Errorf("after reset coins=%d xp=%d level=%d", snap.TotalCoins, snap.XP, snap.Level)
	}
	if _, err := store.Get(ctx, ProgressKey("s1")); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("durable progress still present after reset: %v", err)
	}
}

func TestProgressStoreLoad(t *testing.T) {
	ctx := context.Background()

	fallback := models.NewStudentProgress()
	fallback.StudentName = "Ameer"

	tests := []struct {
		name      string
		stored    string
		wantName  string
		wantCoins int
	}{
		{
			name:     "missing document uses fallback",
			wantName: "Ameer",
		},
		{
			name:      "versioned document",
			stored:    `{"version":1,"data":{"studentName":"Zed","totalCoins":45,"xp":225,"completedQuests":[1,2],"currentQuestId":null,"questProgress":{}}}`,
			wantName:  "Zed",
			wantCoins: 45,
		},
		{
			name:      "legacy document without envelope",
			stored:    `{"studentName":"Legacy","totalCoins":20,"level":1,"xp":100,"completedQuests":[1],"currentQuestId":null,"questProgress":{"1":{"questId":1,"currentPhase":"close","phaseIndex":5,"completed":true}}}`,
			wantName:  "Legacy",
			wantCoins: 20,
		},
		{
			name:     "corrupted json falls back",
			stored:   `{"studentName": "broken`,
			wantName: "Ameer",
		},
		{
			name:     "future version falls back",
			stored:   `{"version":7,"data":{"studentName":"Future"}}`,
			wantName: "Ameer",
		},
		{
			name:     "wrong shape falls back",
			stored:   `{"version":1,"data":{"totalCoins":"lots"}}`,
			wantName: "Ameer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kv.NewMemory()
			if tt.stored != "" {
				store.Put(ctx, ProgressKey("s1"), []byte(tt.stored))
			}
			ps := NewProgressStore("s1", store, testCatalog(t), logger.NewNop())
			if err := ps.Load(ctx, fallback); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			snap := ps.Snapshot()
			if snap.StudentName != tt.wantName || snap.TotalCoins != tt.wantCoins {
				t.Errorf("loaded name=%q coins=%d, want %q/%d", snap.StudentName, snap.TotalCoins, tt.wantName, tt.wantCoins)
			}
			if snap.Level != models.LevelForXP(snap.XP) {
				t.Errorf("Level = %v, want %v", snap.Level, models.LevelForXP(snap.XP))
			}
		})
	}
}

func TestProgressStoreLoadReadError(t *testing.T) {
	ps := NewProgressStore("s1", unreadableStore{kv.NewMemory()}, testCatalog(t), logger.NewNop())
	if err := ps.Load(context.Background(), models.NewStudentProgress()); !errors.Is(err, errDiskFull) {
		t.Errorf("Load() error = %v, want the read error", err)
	}
}

func TestProgressStoreKeepsStateWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	ps := newTestProgressStore(t, store, newFakeClock())
	store.FailWrites(errDiskFull)

	err := ps.StartQuest(ctx, 1)
	if !errors.Is(err, ErrStorage) {
		t.Errorf("StartQuest() error = %v, want ErrStorage", err)
	}
	if _, ok := ps.Active(); !ok {
		t.Error("in-memory state should keep the started quest")
	}
}
