// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset reads and writes the question dataset export: a JSON
// array of questions, annotated in place with audit records.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// Load reads a dataset file. Question IDs must be unique; duplicates
// are an error because clustering and checkpointing key on them.
func Load(path string) ([]*types.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	var questions []*types.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}

	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("dataset %s: question %d has no id", path, i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("dataset %s: duplicate question id %s", path, q.ID)
		}
		seen[q.ID] = true
	}
	return questions, nil
}

// Save writes the dataset atomically: a temp file in the target
// directory, then a rename. A crash mid-write never leaves a truncated
// dataset behind.
func Save(path string, questions []*types.Question) error {
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing dataset %s: %w", path, err)
	}
	return nil
}

// WriteTopLevel copies the audit verdict into the question's
// convenience fields for consumers that do not read audit records.
func WriteTopLevel(q *types.Question) {
	if q.Audit == nil {
		return
	}
	q.AITopicKey = q.Audit.TopicFinal.TopicKey
	needs := q.Audit.Maintenance.NeedsMaintenance
	q.AINeedsMaintenance = &needs
	q.AIMaintenanceSeverity = q.Audit.Maintenance.Severity
	q.AIMaintenanceReasons = q.Audit.Maintenance.Reasons
}
