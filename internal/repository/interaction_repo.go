package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"abaquest/internal/database"
	"abaquest/internal/models"
)

// InteractionRepository persists the learner event log
type InteractionRepository struct {
	db database.DBTX
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db database.DBTX) *InteractionRepository {
	return &InteractionRepository{db: db}
}

type interactionRow struct {
	ID              int64         `db:"id"`
	StudentID       string        `db:"student_id"`
	QuestID         int           `db:"quest_id"`
	SceneID         string        `db:"scene_id"`
	Number          sql.NullInt64 `db:"number_value"`
	CorrectFlag     int           `db:"correct_flag"`
	ElapsedMs       int64         `db:"time_ms"`
	RecordedAt      string        `db:"recorded_at"`
	InteractionType string        `db:"interaction_type"`
	StudentResponse string        `db:"student_response"`
}

func (row interactionRow) toModel() (models.Interaction, error) {
	at, err := time.Parse(time.RFC3339Nano, row.RecordedAt)
	if err != nil {
		return models.Interaction{}, fmt.Errorf("interaction %d: bad timestamp: %w", row.ID, err)
	}
	entry := models.Interaction{
		QuestID:         models.QuestID(row.QuestID),
		SceneID:         row.SceneID,
		CorrectFlag:     models.Correctness(row.CorrectFlag),
		ElapsedMs:       row.ElapsedMs,
		Timestamp:       at,
		InteractionType: models.InteractionType(row.InteractionType),
		StudentResponse: row.StudentResponse,
	}
	if row.Number.Valid {
		entry.Number = models.IntPtr(int(row.Number.Int64))
	}
	return entry, nil
}

// Append records one interaction for a learner
func (r *InteractionRepository) Append(ctx context.Context, studentID string, entry models.Interaction) error {
	query := `
		INSERT INTO interactions
			(student_id, quest_id, scene_id, number_value, correct_flag, time_ms, recorded_at, interaction_type, student_response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var number sql.NullInt64
	if entry.Number != nil {
		number = sql.NullInt64{Int64: int64(*entry.Number), Valid: true}
	}

	_, err := r.db.ExecReturningID(ctx, query,
		studentID,
		int(entry.QuestID),
		entry.SceneID,
		number,
		int(entry.CorrectFlag),
		entry.ElapsedMs,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.InteractionType),
		entry.StudentResponse,
	)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

// List returns a learner's interactions in insertion order
func (r *InteractionRepository) List(ctx context.Context, studentID string) ([]models.Interaction, error) {
	query := `
		SELECT id, student_id, quest_id, scene_id, number_value, correct_flag,
		       time_ms, recorded_at, interaction_type, student_response
		FROM interactions
		WHERE student_id = ?
		ORDER BY id ASC
	`

	var rows []interactionRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	out := make([]models.Interaction, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Clear removes every interaction for a learner
func (r *InteractionRepository) Clear(ctx context.Context, studentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM interactions WHERE student_id = ?`, studentID); err != nil {
		return fmt.Errorf("failed to clear interactions: %w", err)
	}
	return nil
}

// StudentIDs lists learners with at least one logged interaction
func (r *InteractionRepository) StudentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT student_id FROM interactions ORDER BY student_id`); err != nil {
		return nil, fmt.Errorf("failed to list learners: %w", err)
	}
	return ids, nil
}
