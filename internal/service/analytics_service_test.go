package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"abaquest/internal/logger"
	"abaquest/internal/models"
)

func sampleExport(t *testing.T) models.ExportDocument {
	t.Helper()
	clock := newFakeClock()
	l := NewEventLog("s1", nil, logger.NewNop(), clock.Now)
	inputs := []models.InteractionInput{
		{QuestID: 3, SceneID: "pretest_q1", Number: models.IntPtr(0), CorrectFlag: models.Correct, ElapsedMs: 1200, InteractionType: models.InteractionPreTest, StudentResponse: "top"},
		{QuestID: 3, SceneID: "pretest_q2", Number: models.IntPtr(1), CorrectFlag: models.Skipped, ElapsedMs: 300, InteractionType: models.InteractionPreTest, StudentResponse: models.SkipResponse},
		{QuestID: 3, SceneID: "learn_q1", CorrectFlag: models.Incorrect, ElapsedMs: 4000, InteractionType: models.InteractionPractice},
		{QuestID: 3, SceneID: "posttest_q1", Number: models.IntPtr(9), CorrectFlag: models.Correct, ElapsedMs: 900, InteractionType: models.InteractionPostTest, StudentResponse: "bottom"},
	}
	for _, in := range inputs {
		clock.Advance(1500 * time.Millisecond)
		if _, err := l.Record(context.Background(), in); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	return BuildExport("Ameer", 3, l, clock.Now())
}

func assertSameInteractions(t *testing.T, got, want []models.Interaction) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d interactions, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.QuestID != w.QuestID || g.SceneID != w.SceneID || g.CorrectFlag != w.CorrectFlag ||
			g.ElapsedMs != w.ElapsedMs || g.InteractionType != w.InteractionType || g.StudentResponse != w.StudentResponse {
			t.Errorf("interaction %d = %+v, want %+v", i, g, w)
		}
		if !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("interaction %d timestamp = %v, want %v", i, g.Timestamp, w.Timestamp)
		}
		if (g.Number == nil) != (w.Number == nil) || (g.Number != nil && *g.Number != *w.Number) {
			t.Errorf("interaction %d number = %v, want %v", i, g.Number, w.Number)
		}
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	doc := sampleExport(t)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	for _, field := range []string{`"pre_test_score"`, `"highest_number_built"`, `"total_interactions"`, `"correct_flag": null`, `"export_date"`} {
		if !strings.Contains(buf.String(), field) {
			t.Errorf("export JSON missing %s", field)
		}
	}

	parsed, err := ParseJSON(&buf)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if parsed.StudentName != doc.StudentName || parsed.QuestID != doc.QuestID || parsed.Summary != doc.Summary {
		t.Errorf("parsed header = %+v, want %+v", parsed, doc)
	}
	if !parsed.ExportDate.Equal(doc.ExportDate) {
		t.Errorf("ExportDate = %v, want %v", parsed.ExportDate, doc.ExportDate)
	}
	assertSameInteractions(t, parsed.Interactions, doc.Interactions)
}

func TestExportWorkbookRoundTrip(t *testing.T) {
	doc := sampleExport(t)

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, doc); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}
	got, err := ReadWorkbookInteractions(&buf)
	if err != nil {
		t.Fatalf("ReadWorkbookInteractions() error = %v", err)
	}
	assertSameInteractions(t, got, doc.Interactions)
}

func TestBuildExportSummary(t *testing.T) {
	doc := sampleExport(t)
	want := models.ExportSummary{
		PreTestScore:       100,
		PostTestScore:      100,
		LearningGain:       0,
		HighestNumberBuilt: 9,
		TotalCoins:         100,
		TotalInteractions:  4,
	}
	if doc.Summary != want {
		t.Errorf("Summary = %+v, want %+v", doc.Summary, want)
	}
}

func TestExportFilename(t *testing.T) {
	doc := models.ExportDocument{ExportDate: time.UnixMilli(1700000000000)}
	if got := ExportFilename(doc, "json"); got != "abaquest_student_1700000000000.json" {
		t.Errorf("ExportFilename() = %q", got)
	}
	doc.StudentName = "Ameer"
	if got := ExportFilename(doc, "xlsx"); got != "abaquest_Ameer_1700000000000.xlsx" {
		t.Errorf("ExportFilename() = %q", got)
	}
}
