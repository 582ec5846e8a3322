package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"abaquest/internal/database"
	"abaquest/internal/kv"
)

// DocumentRepository stores roster and progress documents in the documents table.
// It satisfies kv.Store.
type DocumentRepository struct {
	db database.DBTX
}

func NewDocumentRepository(db database.DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get retrieves a document body by key
func (r *DocumentRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := r.db.GetContext(ctx, &body, `SELECT body FROM documents WHERE doc_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return []byte(body), nil
}

// Put updates or inserts a document
func (r *DocumentRepository) Put(ctx context.Context, key string, value []byte) error {
	query := r.db.GetDialect().UpsertDocumentQuery()
	_, err := r.db.ExecContext(ctx, query, key, string(value), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to put document %s: %w", key, err)
	}
	return nil
}

// Delete removes a document; deleting a missing key is not an error
func (r *DocumentRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

// Keys lists document keys starting with prefix, in key order
func (r *DocumentRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := r.db.SelectContext(ctx, &keys,
		`SELECT doc_key FROM documents WHERE doc_key LIKE ? ESCAPE '!' ORDER BY doc_key`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return keys, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
