// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for the exam-audit pipeline.
package types

// Answer is one answer option of an exam question.
type Answer struct {
	// Text is the answer option text as stored in the dataset.
	Text string `json:"text" yaml:"text"`

	// IsCorrect marks the option as correct in the dataset.
	IsCorrect bool `json:"isCorrect,omitempty" yaml:"is_correct,omitempty"`

	// Position is the external 1-based answer index where the dataset
	// records one. Zero means "derive from slice position".
	Position int `json:"position,omitempty" yaml:"position,omitempty"`
}

// Question is one exam question as read from the dataset export.
// Immutable during analysis; annotations are written to Audit.
type Question struct {
	ID              string   `json:"id" yaml:"id"`
	ExamYear        string   `json:"examYear,omitempty" yaml:"exam_year,omitempty"`
	QuestionText    string   `json:"questionText" yaml:"question_text"`
	ExplanationText string   `json:"explanationText,omitempty" yaml:"explanation_text,omitempty"`
	Answers         []Answer `json:"answers" yaml:"answers"`

	// CorrectIndices are the dataset's recorded correct answers,
	// expressed as external answer indices.
	CorrectIndices []int `json:"correctIndices,omitempty" yaml:"correct_indices,omitempty"`

	// ImageFiles names image assets expected in the images archive.
	ImageFiles []string `json:"imageFiles,omitempty" yaml:"image_files,omitempty"`

	// ImageURLs are remote image references from the original export.
	ImageURLs []string `json:"imageUrls,omitempty" yaml:"image_urls,omitempty"`

	// Audit holds this run's analysis output. Nil before processing.
	Audit *Audit `json:"aiAudit,omitempty" yaml:"ai_audit,omitempty"`

	// Convenience duplicates of the audit verdict, written when
	// the dataset config asks for top-level fields.
	AITopicKey            string   `json:"aiTopicKey,omitempty" yaml:"ai_topic_key,omitempty"`
	AINeedsMaintenance    *bool    `json:"aiNeedsMaintenance,omitempty" yaml:"ai_needs_maintenance,omitempty"`
	AIMaintenanceSeverity int      `json:"aiMaintenanceSeverity,omitempty" yaml:"ai_maintenance_severity,omitempty"`
	AIMaintenanceReasons  []string `json:"aiMaintenanceReasons,omitempty" yaml:"ai_maintenance_reasons,omitempty"`
}

// ExternalIndices returns the external answer index for every answer
// option. Options without a recorded position fall back to their
// 1-based slice position.
func (q Question) ExternalIndices() []int {
	out := make([]int, len(q.Answers))
	for i, a := range q.Answers {
		if a.Position > 0 {
			out[i] = a.Position
		} else {
			out[i] = i + 1
		}
	}
	return out
}

// CombinedText joins question, explanation, and answer texts. This is
// the text clustered and used as the retrieval query.
func (q Question) CombinedText() string {
	parts := make([]string, 0, len(q.Answers)+2)
	if q.QuestionText != "" {
		parts = append(parts, q.QuestionText)
	}
	if q.ExplanationText != "" {
		parts = append(parts, q.ExplanationText)
	}
	for _, a := range q.Answers {
		if a.Text != "" {
			parts = append(parts, a.Text)
		}
	}
	return joinLines(parts)
}

func joinLines(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	buf := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p...)
	}
	return string(buf)
}
