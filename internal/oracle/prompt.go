// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// primaryPromptTmpl drives the first assessment pass: topic
// classification against the candidate list, answer plausibility, and
// maintenance suspicion, grounded in the retrieved evidence.
var primaryPromptTmpl = template.Must(template.New("primary").Parse(`You are an exam dataset auditor. Assess the following exam question.

Tasks:
1. Classify the question into exactly one topic. Prefer a topic from the candidate list; only use another key if none fits, and say so in the reason.
2. Judge whether the recorded correct answer(s) are plausible given the question and the reference evidence. If you are confident the recorded answer is wrong, set recommendChange and propose the correct answer numbers.
3. Flag maintenance problems (garbled text, contradictory options, missing context) in maintenanceSuspicion.
4. Write a one-sentence abstraction of what the question tests, without exam-specific numbers or phrasing.

Confidences are floats in [0.0, 1.0]. Answer numbers refer to the numbered options below.

Respond with a single JSON object:
{"topicInitial": {"topicKey": "...", "confidence": 0.0, "reason": "..."}, "answerReview": {"isPlausible": true, "confidence": 0.0, "recommendChange": false, "proposedCorrectIndices": [], "reason": "...", "maintenanceSuspicion": [], "evidenceChunkIds": []}, "maintenance": {"needsMaintenance": false, "severity": 0, "reasons": []}, "topicFinal": {"topicKey": "...", "confidence": 0.0, "reason": "..."}, "abstraction": "..."}
Do not include any text outside the JSON object.

{{.Question}}

Topic candidates:
{{.Candidates}}

Reference evidence (retrieval quality {{printf "%.2f" .RetrievalQuality}}):
{{.Evidence}}{{if .Images}}

Matched reference figures:
{{.Images}}{{end}}
`))

// verifyPromptTmpl drives the verification pass. The verifier sees the
// primary verdict and must independently confirm or reject it.
var verifyPromptTmpl = template.Must(template.New("verify").Parse(`You are a second, independent exam auditor. A first auditor assessed this question; verify their answer judgment.

First auditor's verdict:
- plausible: {{.Prior.AnswerReview.IsPlausible}} (confidence {{printf "%.2f" .Prior.AnswerReview.Confidence}})
- recommends change: {{.Prior.AnswerReview.RecommendChange}}{{if .Prior.AnswerReview.ProposedCorrectIndices}} to options {{.Prior.AnswerReview.ProposedCorrectIndices}}{{end}}
- reason: {{.Prior.AnswerReview.Reason}}
- topic: {{.Prior.TopicFinal.TopicKey}} (confidence {{printf "%.2f" .Prior.TopicFinal.Confidence}})

Decide independently which answer numbers are correct. If the evidence is insufficient to judge, set cannotJudge. Set agreeWithChange only when you conclude the recorded answer should change, and list the full verified correct set.

Respond with a single JSON object:
{"cannotJudge": false, "agreeWithChange": false, "verifiedCorrectIndices": [], "confidence": 0.0, "topicFinal": {"topicKey": "...", "confidence": 0.0}, "maintenance": {"needsMaintenance": false, "severity": 0, "reasons": []}, "reason": "..."}
Do not include any text outside the JSON object.

{{.Question}}

Reference evidence (retrieval quality {{printf "%.2f" .RetrievalQuality}}):
{{.Evidence}}
`))

// reviewPromptTmpl drives the tertiary review of conflicting or
// low-confidence verdicts.
var reviewPromptTmpl = template.Must(template.New("review").Parse(`You are the senior reviewer resolving a disputed exam question audit.

First auditor: plausible={{.Prior.AnswerReview.IsPlausible}}, recommendChange={{.Prior.AnswerReview.RecommendChange}}{{if .Prior.AnswerReview.ProposedCorrectIndices}}, proposed {{.Prior.AnswerReview.ProposedCorrectIndices}}{{end}}, topic {{.Prior.TopicFinal.TopicKey}}.
{{if .Verify}}Verifier: cannotJudge={{.Verify.CannotJudge}}, agreeWithChange={{.Verify.AgreeWithChange}}{{if .Verify.VerifiedCorrectIndices}}, verified {{.Verify.VerifiedCorrectIndices}}{{end}}, confidence {{printf "%.2f" .Verify.Confidence}}.
{{end}}
Settle the final correct answer set and topic. If the case cannot be settled from the material, set recommendManualReview.

Respond with a single JSON object:
{"finalCorrectIndices": [], "finalTopicKey": "...", "comment": "...", "recommendManualReview": false, "confidence": 0.0}
Do not include any text outside the JSON object.

{{.Question}}

Reference evidence:
{{.Evidence}}
`))

func renderPrimaryPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	err := primaryPromptTmpl.Execute(&buf, map[string]any{
		"Question":         formatQuestion(req.Question),
		"Candidates":       formatCandidates(req.Candidates),
		"Evidence":         formatEvidence(req.Evidence),
		"RetrievalQuality": req.RetrievalQuality,
		"Images":           formatImageMatches(req.ImageMatches),
	})
	return buf.String(), err
}

func renderVerifyPrompt(req Request, prior *PrimaryResult) (string, error) {
	var buf bytes.Buffer
	err := verifyPromptTmpl.Execute(&buf, map[string]any{
		"Question":         formatQuestion(req.Question),
		"Evidence":         formatEvidence(req.Evidence),
		"RetrievalQuality": req.RetrievalQuality,
		"Prior":            prior,
	})
	return buf.String(), err
}

func renderReviewPrompt(req Request, prior *PrimaryResult, verify *VerifyResult) (string, error) {
	var buf bytes.Buffer
	err := reviewPromptTmpl.Execute(&buf, map[string]any{
		"Question": formatQuestion(req.Question),
		"Evidence": formatEvidence(req.Evidence),
		"Prior":    prior,
		"Verify":   verify,
	})
	return buf.String(), err
}

// formatQuestion renders the question with numbered options, marking
// the currently recorded correct set.
func formatQuestion(q *types.Question) string {
	var b strings.Builder
	if q.ExamYear != "" {
		fmt.Fprintf(&b, "Question (exam year %s):\n%s\n", q.ExamYear, q.QuestionText)
	} else {
		fmt.Fprintf(&b, "Question:\n%s\n", q.QuestionText)
	}
	if q.ExplanationText != "" {
		fmt.Fprintf(&b, "\nExplanation on record:\n%s\n", q.ExplanationText)
	}
	b.WriteString("\nOptions:\n")
	indices := q.ExternalIndices()
	for i, a := range q.Answers {
		fmt.Fprintf(&b, "%d. %s\n", indices[i], a.Text)
	}
	fmt.Fprintf(&b, "\nRecorded correct options: %v\n", q.CorrectIndices)
	return strings.TrimRight(b.String(), "\n")
}

func formatCandidates(candidates []types.TopicCandidate) string {
	if len(candidates) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s (%s / %s)\n", c.TopicKey, c.SuperTopic, c.Subtopic)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEvidence(evidence []types.EvidenceItem) string {
	if len(evidence) == 0 {
		return "(no evidence retrieved)"
	}
	var b strings.Builder
	for _, e := range evidence {
		fmt.Fprintf(&b, "[%s] (%s", e.ChunkID, e.Source)
		if e.Page > 0 {
			fmt.Fprintf(&b, ", p.%d", e.Page)
		}
		fmt.Fprintf(&b, ")\n%s\n\n", e.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatImageMatches(matches []types.ImageMatch) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "- question image %s resembles %s (%s", m.QuestionImageRef, m.KnowledgeImageID, m.KnowledgeSource)
		if m.KnowledgePage > 0 {
			fmt.Fprintf(&b, ", p.%d", m.KnowledgePage)
		}
		fmt.Fprintf(&b, "), hamming distance %d\n", m.HammingDistance)
	}
	return strings.TrimRight(b.String(), "\n")
}
