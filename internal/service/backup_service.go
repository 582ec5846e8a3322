package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"abaquest/internal/kv"
	"abaquest/internal/logger"
	"abaquest/internal/models"
)

// BackupVersion tags backup files written by this build
const BackupVersion = "1.0"

// BackupData is the complete device backup: roster and progress documents
// plus each learner's interaction log
type BackupData struct {
	Version      string                          `json:"version"`
	ExportedAt   time.Time                       `json:"exported_at"`
	Documents    map[string]json.RawMessage      `json:"documents"`
	Interactions map[string][]models.Interaction `json:"interactions"`
}

// BackupService handles backup and restore of learner data
type BackupService struct {
	store kv.Store
	sink  InteractionSink
	log   *logger.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(store kv.Store, sink InteractionSink, log *logger.Logger) *BackupService {
	return &BackupService{store: store, sink: sink, log: log}
}

// Snapshot collects everything a backup holds
func (s *BackupService) Snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   time.Now().UTC(),
		Documents:    map[string]json.RawMessage{},
		Interactions: map[string][]models.Interaction{},
	}

	keys, err := s.documentKeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !json.Valid(raw) {
			s.log.Warn("skipping unreadable document", "key", key)
			continue
		}
		backup.Documents[key] = json.RawMessage(raw)
	}

	ids, err := s.studentIDs(ctx, keys)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		entries, err := s.sink.List(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read interactions for %s: %w", id, err)
		}
		if len(entries) > 0 {
			backup.Interactions[id] = entries
		}
	}
	return backup, nil
}

// documentKeys lists the roster and progress documents. Other keys under the
// abaquest_ prefix, such as Redis interaction lists, are not documents.
func (s *BackupService) documentKeys(ctx context.Context) ([]string, error) {
	keys, err := s.store.Keys(ctx, ProgressKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return append([]string{RosterKey}, keys...), nil
}

func isDocumentKey(key string) bool {
	return key == RosterKey || strings.HasPrefix(key, ProgressKeyPrefix)
}

// interactionIndex is implemented by sinks that can list every learner
// with logged interactions
type interactionIndex interface {
	StudentIDs(ctx context.Context) ([]string, error)
}

// studentIDs merges roster ids with ids that only have a progress document
// or an interaction log
func (s *BackupService) studentIDs(ctx context.Context, keys []string) ([]string, error) {
	seen := map[string]bool{}
	raw, err := s.store.Get(ctx, RosterKey)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	if err == nil {
		var roster []models.StudentProfile
		if decodeErr := decodeDocument(raw, &roster); decodeErr != nil {
			s.log.Warn("roster unreadable, backing up progress documents only", "error", decodeErr)
		}
		for _, p := range roster {
			seen[p.ID] = true
		}
	}
	for _, key := range keys {
		if id, ok := strings.CutPrefix(key, ProgressKeyPrefix); ok && id != "" {
			seen[id] = true
		}
	}
	if index, ok := s.sink.(interactionIndex); ok {
		logged, err := index.StudentIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list interaction logs: %w", err)
		}
		for _, id := range logged {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Export writes a backup to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	s.log.Info("starting export", "path", outputPath)

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.exportTo(ctx, file)
	if err != nil {
		return err
	}
	s.log.Info("export complete",
		"path", outputPath,
		"documents", len(backup.Documents),
		"learners_with_interactions", len(backup.Interactions),
	)
	return nil
}

// ExportToWriter writes a backup to w (useful for HTTP responses)
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	_, err := s.exportTo(ctx, w)
	return err
}

func (s *BackupService) exportTo(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return backup, nil
}

// Import restores a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup. Documents in the backup overwrite
// stored ones and each learner's interaction log is replaced wholesale.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("%w: backup %q", ErrUnsupportedVersion, backup.Version)
	}
	s.log.Info("importing backup", "version", backup.Version, "exported_at", backup.ExportedAt)

	for key, raw := range backup.Documents {
		if !isDocumentKey(key) {
			return fmt.Errorf("failed to import document: unexpected key %q", key)
		}
		if err := s.store.Put(ctx, key, raw); err != nil {
			return fmt.Errorf("failed to import %s: %w", key, err)
		}
	}

	for id, entries := range backup.Interactions {
		if err := s.sink.Clear(ctx, id); err != nil {
			return fmt.Errorf("failed to clear interactions for %s: %w", id, err)
		}
		for _, entry := range entries {
			if err := s.sink.Append(ctx, id, entry); err != nil {
				return fmt.Errorf("failed to import interactions for %s: %w", id, err)
			}
		}
	}

	s.log.Info("import complete", "documents", len(backup.Documents), "learners_with_interactions", len(backup.Interactions))
	return nil
}
