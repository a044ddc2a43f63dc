// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/exam-audit/pkg/types"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	questions := []*types.Question{
		{
			ID:           "q1",
			ExamYear:     "2021",
			QuestionText: "Welche Aussage trifft zu?",
			Answers: []types.Answer{
				{Text: "A", Position: 1},
				{Text: "B", Position: 2, IsCorrect: true},
			},
			CorrectIndices: []int{2},
		},
		{ID: "q2", QuestionText: "Zweite Frage?"},
	}

	if err := Save(path, questions); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got))
	}
	if got[0].ID != "q1" || got[0].CorrectIndices[0] != 2 {
		t.Errorf("round trip lost data: %+v", got[0])
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	data := `[{"id": "q1", "questionText": "a", "answers": []}, {"id": "q1", "questionText": "b", "answers": []}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate question id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestLoadRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, []byte(`[{"questionText": "a", "answers": []}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for question without id")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing dataset")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.json")
	if err := Save(path, []*types.Question{{ID: "q1"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "questions.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestWriteTopLevel(t *testing.T) {
	q := &types.Question{ID: "q1"}
	WriteTopLevel(q)
	if q.AINeedsMaintenance != nil {
		t.Error("no audit must mean no top-level fields")
	}

	q.Audit = &types.Audit{
		TopicFinal:  types.TopicAssessment{TopicKey: "kardiologie_herzinsuffizienz"},
		Maintenance: types.Maintenance{NeedsMaintenance: true, Severity: 2, Reasons: []string{"x"}},
	}
	WriteTopLevel(q)
	if q.AITopicKey != "kardiologie_herzinsuffizienz" {
		t.Errorf("unexpected topic key: %s", q.AITopicKey)
	}
	if q.AINeedsMaintenance == nil || !*q.AINeedsMaintenance {
		t.Error("maintenance flag not copied")
	}
	if q.AIMaintenanceSeverity != 2 || len(q.AIMaintenanceReasons) != 1 {
		t.Errorf("maintenance detail not copied: %d %v", q.AIMaintenanceSeverity, q.AIMaintenanceReasons)
	}
}
