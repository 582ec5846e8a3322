package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"abaquest/internal/database"
	"abaquest/internal/kv"
	"abaquest/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var _ kv.Store = (*DocumentRepository)(nil)

func TestDocumentRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "abaquest_students"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get() on empty table error = %v, want kv.ErrNotFound", err)
	}

	if err := repo.Put(ctx, "abaquest_progress:s1", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := repo.Put(ctx, "abaquest_progress:s1", []byte(`{"version":1,"data":{}}`)); err != nil {
		t.Fatalf("Put() upsert error = %v", err)
	}
	if err := repo.Put(ctx, "abaquest_progress:s2", []byte(`{}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := repo.Put(ctx, "abaquest_students", []byte(`[]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := repo.Get(ctx, "abaquest_progress:s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"version":1,"data":{}}` {
		t.Errorf("Get() = %s, want last write", got)
	}

	keys, err := repo.Keys(ctx, "abaquest_progress:")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "abaquest_progress:s1" || keys[1] != "abaquest_progress:s2" {
		t.Errorf("Keys() = %v", keys)
	}

	if err := repo.Delete(ctx, "abaquest_progress:s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "abaquest_progress:s1"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want kv.ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestDocumentRepositoryKeysEscapesWildcards(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	_ = repo.Put(ctx, "a_b", []byte("1"))
	_ = repo.Put(ctx, "axb", []byte("2"))

	keys, err := repo.Keys(ctx, "a_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "a_b" {
		t.Errorf("Keys(a_) = %v, want [a_b]", keys)
	}
}

func TestInteractionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInteractionRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 10, 30, 0, 123000000, time.UTC)

	entries := []models.Interaction{
		{QuestID: 3, SceneID: "pretest_q1", Number: models.IntPtr(0), CorrectFlag: models.Correct, ElapsedMs: 1200, Timestamp: at, InteractionType: models.InteractionPreTest, StudentResponse: "top"},
		{QuestID: 3, SceneID: "pretest_q2", Number: models.IntPtr(1), CorrectFlag: models.Skipped, ElapsedMs: 800, Timestamp: at.Add(time.Second), InteractionType: models.InteractionPreTest, StudentResponse: models.SkipResponse},
		{QuestID: 3, SceneID: "learn_q1", CorrectFlag: models.Incorrect, ElapsedMs: 0, Timestamp: at.Add(2 * time.Second), InteractionType: models.InteractionPractice},
	}
	for _, e := range entries {
		if err := repo.Append(ctx, "s1", e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := repo.Append(ctx, "s2", entries[0]); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := repo.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("List() returned %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		want := entries[i]
		if got[i].SceneID != want.SceneID || got[i].CorrectFlag != want.CorrectFlag ||
			got[i].ElapsedMs != want.ElapsedMs || got[i].InteractionType != want.InteractionType ||
			got[i].StudentResponse != want.StudentResponse || !got[i].Timestamp.Equal(want.Timestamp) {
			t.Errorf("List()[%d] = %+v, want %+v", i, got[i], want)
		}
		if (got[i].Number == nil) != (want.Number == nil) || (want.Number != nil && *got[i].Number != *want.Number) {
			t.Errorf("List()[%d].Number = %v, want %v", i, got[i].Number, want.Number)
		}
	}

	ids, err := repo.StudentIDs(ctx)
	if err != nil {
		t.Fatalf("StudentIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("StudentIDs() = %v, want [s1 s2]", ids)
	}

	if err := repo.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got, _ := repo.List(ctx, "s1"); len(got) != 0 {
		t.Errorf("List() after Clear = %+v", got)
	}
	if got, _ := repo.List(ctx, "s2"); len(got) != 1 {
		t.Errorf("Clear() touched another learner: %+v", got)
	}
}
