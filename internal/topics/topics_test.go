// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package topics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/exam-audit/pkg/types"
)

func testCatalog() *Catalog {
	return NewCatalog([]types.TopicEntry{
		{TopicKey: "kardiologie_herzinsuffizienz", SuperTopic: "Kardiologie", Subtopic: "Herzinsuffizienz"},
		{TopicKey: "pneumologie_asthma", SuperTopic: "Pneumologie", Subtopic: "Asthma bronchiale"},
		{TopicKey: "nephrologie_niereninsuffizienz", SuperTopic: "Nephrologie", Subtopic: "Niereninsuffizienz"},
	})
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.yaml")
	data := `- topic_key: kardiologie_herzinsuffizienz
  super_topic_name: Kardiologie
  subtopic_name: Herzinsuffizienz
- topic_key: pneumologie_asthma
  super_topic_name: Pneumologie
  subtopic_name: Asthma bronchiale
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if !c.Contains("pneumologie_asthma") {
		t.Error("expected catalog to contain pneumologie_asthma")
	}
	if c.Contains("unbekannt") {
		t.Error("unknown key must not be contained")
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing catalog")
	}
}

func TestNewCatalogDeduplicates(t *testing.T) {
	c := NewCatalog([]types.TopicEntry{
		{TopicKey: "a", SuperTopic: "first"},
		{TopicKey: "a", SuperTopic: "second"},
	})
	if c.Len() != 1 {
		t.Fatalf("expected deduplication, got %d entries", c.Len())
	}
	if c.Entries()[0].SuperTopic != "first" {
		t.Error("first occurrence must win")
	}
}

func TestRankMatchesRelevantTopic(t *testing.T) {
	ix := NewCandidateIndex(testCatalog())
	got := ix.Rank("Welche Therapie ist bei chronischer Herzinsuffizienz indiziert?", 3)
	if len(got) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if got[0].TopicKey != "kardiologie_herzinsuffizienz" {
		t.Errorf("expected cardiology first, got %s", got[0].TopicKey)
	}
	if got[0].Score <= 0 {
		t.Errorf("expected positive score, got %v", got[0].Score)
	}
}

func TestRankHonorsTopK(t *testing.T) {
	ix := NewCandidateIndex(testCatalog())
	got := ix.Rank("Insuffizienz Asthma Herzinsuffizienz Niereninsuffizienz", 1)
	if len(got) > 1 {
		t.Errorf("expected at most 1 candidate, got %d", len(got))
	}
}

func TestRankNoOverlap(t *testing.T) {
	ix := NewCandidateIndex(testCatalog())
	if got := ix.Rank("völlig anderes fachgebiet ohne bezug", 3); len(got) != 0 {
		t.Errorf("expected no candidates, got %v", got)
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	c := NewCatalog([]types.TopicEntry{
		{TopicKey: "b_thema", SuperTopic: "Gemeinsam", Subtopic: "X"},
		{TopicKey: "a_thema", SuperTopic: "Gemeinsam", Subtopic: "Y"},
	})
	ix := NewCandidateIndex(c)
	got := ix.Rank("gemeinsam thema", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].TopicKey != "a_thema" {
		t.Errorf("ties must break by key, got %s first", got[0].TopicKey)
	}
}
