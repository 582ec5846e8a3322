package service

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"abaquest/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet      = "Summary"
	interactionsSheet = "Interactions"
)

var interactionColumns = []interface{}{
	"quest_id", "scene_id", "number", "correct_flag", "time_ms", "timestamp", "interaction_type", "student_response",
}

// BuildExport assembles the research export from the full event log. The
// summary uses the activity coin formula, not the catalog reward.
func BuildExport(studentName string, questID models.QuestID, events *EventLog, at time.Time) models.ExportDocument {
	pre := events.PreTestScore()
	post := events.PostTestScore()
	entries := events.Snapshot()
	return models.ExportDocument{
		StudentName: studentName,
		QuestID:     questID,
		Summary: models.ExportSummary{
			PreTestScore:       pre,
			PostTestScore:      post,
			LearningGain:       post - pre,
			HighestNumberBuilt: events.HighestNumberAchieved(),
			TotalCoins:         events.TotalCoinsFromActivity(),
			TotalInteractions:  len(entries),
		},
		Interactions: entries,
		ExportDate:   at.UTC(),
	}
}

// ExportFilename is the suggested download name for an export
func ExportFilename(doc models.ExportDocument, ext string) string {
	name := doc.StudentName
	if name == "" {
		name = "student"
	}
	return fmt.Sprintf("abaquest_%s_%d.%s", name, doc.ExportDate.UnixMilli(), ext)
}

// WriteJSON writes doc as indented JSON
func WriteJSON(w io.Writer, doc models.ExportDocument) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// ParseJSON reads an export written by WriteJSON
func ParseJSON(r io.Reader) (models.ExportDocument, error) {
	var doc models.ExportDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return models.ExportDocument{}, fmt.Errorf("failed to decode export: %w", err)
	}
	return doc, nil
}

// WriteWorkbook writes doc as an XLSX workbook with a summary sheet and one
// row per interaction
func WriteWorkbook(w io.Writer, doc models.ExportDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	summary := [][]interface{}{
		{"student_name", doc.StudentName},
		{"quest_id", int(doc.QuestID)},
		{"pre_test_score", doc.Summary.PreTestScore},
		{"post_test_score", doc.Summary.PostTestScore},
		{"learning_gain", doc.Summary.LearningGain},
		{"highest_number_built", doc.Summary.HighestNumberBuilt},
		{"total_coins", doc.Summary.TotalCoins},
		{"total_interactions", doc.Summary.TotalInteractions},
		{"export_date", doc.ExportDate.Format(time.RFC3339Nano)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	f.NewSheet(interactionsSheet)
	header := interactionColumns
	if err := f.SetSheetRow(interactionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, entry := range doc.Interactions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		number := ""
		if entry.Number != nil {
			number = strconv.Itoa(*entry.Number)
		}
		flag, err := entry.CorrectFlag.MarshalJSON()
		if err != nil {
			return fmt.Errorf("interaction %d: %w", i+1, err)
		}
		row := []interface{}{
			int(entry.QuestID),
			entry.SceneID,
			number,
			string(flag),
			entry.ElapsedMs,
			entry.Timestamp.Format(time.RFC3339Nano),
			string(entry.InteractionType),
			entry.StudentResponse,
		}
		if err := f.SetSheetRow(interactionsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write interaction %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadWorkbookInteractions reads the interaction rows back from a workbook
// written by WriteWorkbook
func ReadWorkbookInteractions(r io.Reader) ([]models.Interaction, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(interactionsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	var out []models.Interaction
	for i, row := range rows {
		if i == 0 {
			continue
		}
		entry, err := parseInteractionRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseInteractionRow(row []string) (models.Interaction, error) {
	// GetRows trims trailing empty cells
	for len(row) < len(interactionColumns) {
		row = append(row, "")
	}

	var entry models.Interaction
	questID, err := strconv.Atoi(row[0])
	if err != nil {
		return entry, fmt.Errorf("quest_id: %w", err)
	}
	entry.QuestID = models.QuestID(questID)
	entry.SceneID = row[1]
	if row[2] != "" {
		n, err := strconv.Atoi(row[2])
		if err != nil {
			return entry, fmt.Errorf("number: %w", err)
		}
		entry.Number = &n
	}
	if err := entry.CorrectFlag.UnmarshalJSON([]byte(row[3])); err != nil {
		return entry, err
	}
	if entry.ElapsedMs, err = strconv.ParseInt(row[4], 10, 64); err != nil {
		return entry, fmt.Errorf("time_ms: %w", err)
	}
	if entry.Timestamp, err = time.Parse(time.RFC3339Nano, row[5]); err != nil {
		return entry, fmt.Errorf("timestamp: %w", err)
	}
	entry.InteractionType = models.InteractionType(row[6])
	entry.StudentResponse = row[7]
	return entry, nil
}
