package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"abaquest/internal/kv"
	"abaquest/internal/logger"
	"abaquest/internal/models"
)

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	deps := testDeps(t, clock)

	identity := NewIdentityService(deps.Documents, logger.NewNop())
	if _, err := identity.EnsureRoster(ctx, DemoRoster()); err != nil {
		t.Fatalf("EnsureRoster() error = %v", err)
	}
	l, err := OpenLearner(ctx, deps, testProfile())
	if err != nil {
		t.Fatalf("OpenLearner() error = %v", err)
	}
	s, _ := l.StartQuest(ctx, 1)
	s.Advance(ctx)
	answer(t, s, "yes")
	s.Skip(ctx)

	var buf bytes.Buffer
	source := NewBackupService(deps.Documents, deps.Interactions, logger.NewNop())
	if err := source.ExportToWriter(ctx, &buf); err != nil {
		t.Fatalf("ExportToWriter() error = %v", err)
	}

	restoredDocs := kv.NewMemory()
	restoredLog := kv.NewMemoryInteractionLog()
	target := NewBackupService(restoredDocs, restoredLog, logger.NewNop())
	if err := target.ImportFromReader(ctx, &buf); err != nil {
		t.Fatalf("ImportFromReader() error = %v", err)
	}

	for _, key := range []string{RosterKey, ProgressKey("s1")} {
		want, _ := deps.Documents.Get(ctx, key)
		got, err := restoredDocs.Get(ctx, key)
		if err != nil {
			t.Errorf("restored store missing %s: %v", key, err)
			continue
		}
		var gotCompact, wantCompact bytes.Buffer
		json.Compact(&gotCompact, got)
		json.Compact(&wantCompact, want)
		if gotCompact.String() != wantCompact.String() {
			t.Errorf("%s differs after restore", key)
		}
	}

	got, _ := restoredLog.List(ctx, "s1")
	assertSameInteractions(t, got, l.Events().Snapshot())

	restored := NewIdentityService(restoredDocs, logger.NewNop())
	if _, err := restored.Authenticate(ctx, "s2", []int{3}); err != nil {
		t.Errorf("restored roster rejects Ameerah: %v", err)
	}
}

func TestBackupImportReplacesInteractions(t *testing.T) {
	ctx := context.Background()
	sink := kv.NewMemoryInteractionLog()
	sink.Append(ctx, "s1", models.Interaction{QuestID: 1, CorrectFlag: models.Correct, InteractionType: models.InteractionPractice})
	sink.Append(ctx, "s1", models.Interaction{QuestID: 1, CorrectFlag: models.Correct, InteractionType: models.InteractionPractice})

	backup := `{"version":"1.0","exported_at":"2026-03-02T09:30:00Z","documents":{},"interactions":{"s1":[{"quest_id":2,"scene_id":"pretest_q1","number":null,"correct_flag":false,"time_ms":10,"timestamp":"2026-03-02T09:31:00Z","interaction_type":"pre_test"}]}}`
	svc := NewBackupService(kv.NewMemory(), sink, logger.NewNop())
	if err := svc.ImportFromReader(ctx, strings.NewReader(backup)); err != nil {
		t.Fatalf("ImportFromReader() error = %v", err)
	}
	got, _ := sink.List(ctx, "s1")
	if len(got) != 1 || got[0].QuestID != 2 || got[0].CorrectFlag != models.Incorrect {
		t.Errorf("interactions after import = %+v", got)
	}
}

func TestBackupImportRejects(t *testing.T) {
	tests := []struct {
		name    string
		backup  string
		wantErr error
	}{
		{"not json", `{"version":`, nil},
		{"unknown version", `{"version":"9.0","documents":{}}`, ErrUnsupportedVersion},
		{"foreign key", `{"version":"1.0","documents":{"other_app":{}}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewBackupService(kv.NewMemory(), kv.NewMemoryInteractionLog(), logger.NewNop())
			err := svc.ImportFromReader(context.Background(), strings.NewReader(tt.backup))
			if err == nil {
				t.Fatal("ImportFromReader() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ImportFromReader() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

type indexedLog struct {
	*kv.MemoryInteractionLog
	ids []string
}

func (l indexedLog) StudentIDs(ctx context.Context) ([]string, error) {
	return l.ids, nil
}

func TestBackupIncludesLogsWithoutProfile(t *testing.T) {
	ctx := context.Background()
	log := indexedLog{MemoryInteractionLog: kv.NewMemoryInteractionLog(), ids: []string{"gone"}}
	entry := models.Interaction{QuestID: 1, SceneID: "pretest_q1", CorrectFlag: models.Correct, InteractionType: models.InteractionPreTest}
	if err := log.Append(ctx, "gone", entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	backup, err := NewBackupService(kv.NewMemory(), log, logger.NewNop()).Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(backup.Interactions["gone"]) != 1 {
		t.Errorf("Interactions[gone] = %v, want one entry", backup.Interactions["gone"])
	}
}

// listKeyStore fails reads of interaction list keys the way Redis does for GET on a list
type listKeyStore struct {
	*kv.Memory
}

func (s listKeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.HasPrefix(key, kv.InteractionKeyPrefix) {
		return nil, errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	}
	return s.Memory.Get(ctx, key)
}

func TestBackupSkipsInteractionListKeys(t *testing.T) {
	ctx := context.Background()
	store := listKeyStore{Memory: kv.NewMemory()}
	if err := store.Put(ctx, ProgressKey("s1"), []byte(`{"version":1,"data":{}}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, kv.InteractionKeyPrefix+"s1", []byte(`[]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sink := kv.NewMemoryInteractionLog()
	entry := models.Interaction{QuestID: 1, SceneID: "pretest_q1", CorrectFlag: models.Correct, InteractionType: models.InteractionPreTest}
	if err := sink.Append(ctx, "s1", entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	backup, err := NewBackupService(store, sink, logger.NewNop()).Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if _, ok := backup.Documents[kv.InteractionKeyPrefix+"s1"]; ok {
		t.Error("Snapshot() treated an interaction list as a document")
	}
	if _, ok := backup.Documents[ProgressKey("s1")]; !ok {
		t.Error("Snapshot() missing progress document")
	}
	if len(backup.Interactions["s1"]) != 1 {
		t.Errorf("Interactions[s1] = %v, want one entry", backup.Interactions["s1"])
	}
}

func TestBackupImportRejectsInteractionKey(t *testing.T) {
	backup := `{"version":"1.0","documents":{"abaquest_interactions:s1":[]}}`
	svc := NewBackupService(kv.NewMemory(), kv.NewMemoryInteractionLog(), logger.NewNop())
	if err := svc.ImportFromReader(context.Background(), strings.NewReader(backup)); err == nil {
		t.Error("ImportFromReader() should refuse a non-document key")
	}
}

func TestBackupRedis(t *testing.T) {
	addr := os.Getenv("ABAQUEST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ABAQUEST_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	store, err := kv.NewRedisStore(ctx, kv.RedisOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer store.Close()
	log := kv.NewRedisInteractionLog(store)

	const withDoc, logOnly = "backup-test-doc", "backup-test-log"
	defer func() {
		_ = store.Delete(ctx, ProgressKey(withDoc))
		_ = log.Clear(ctx, withDoc)
		_ = log.Clear(ctx, logOnly)
	}()

	if err := store.Put(ctx, ProgressKey(withDoc), []byte(`{"version":1,"data":{}}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	entry := models.Interaction{QuestID: 1, SceneID: "pretest_q1", CorrectFlag: models.Correct, InteractionType: models.InteractionPreTest}
	for _, id := range []string{withDoc, logOnly} {
		if err := log.Append(ctx, id, entry); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}

	backup, err := NewBackupService(store, log, logger.NewNop()).Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if _, ok := backup.Documents[ProgressKey(withDoc)]; !ok {
		t.Error("Snapshot() missing progress document")
	}
	for _, id := range []string{withDoc, logOnly} {
		if len(backup.Interactions[id]) != 1 {
			t.Errorf("Interactions[%s] = %v, want one entry", id, backup.Interactions[id])
		}
	}
}
