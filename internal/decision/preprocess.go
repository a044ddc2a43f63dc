// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decision holds the deterministic policy layer: question
// preprocessing gates, confidence fusion, escalation triggers, and the
// answer-change gate. No I/O and no randomness; every function maps the
// same inputs to the same outputs.
package decision

import (
	"math"
	"regexp"
	"strings"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// Preprocessing reason codes. Hard reasons disqualify a question from
// oracle analysis outright; context reasons block automatic answer
// changes; soft reasons only lower the quality score.
const (
	ReasonMissingCorrectIndices = "missing_correct_indices"
	ReasonInvalidAnswerOption   = "invalid_answer_option"
	ReasonMissingImageAsset     = "missing_required_image_asset"
	ReasonInsufficientContext   = "insufficient_question_context"
	ReasonUncertainSource       = "non_exam_question_or_uncertain_source"
)

var (
	imageReferenceRe   = regexp.MustCompile(`(?i)\b(bild|abbildung|grafik|schema|figure)\b`)
	uncertainSourceRe  = regexp.MustCompile(`(?i)(irgendwas|vielleicht|kann\s+sich\s+jemand\s+erinnern|unsicher|notiz)`)
	hardReasons        = map[string]bool{ReasonMissingCorrectIndices: true, ReasonInvalidAnswerOption: true}
	contextReasons     = map[string]bool{ReasonMissingImageAsset: true, ReasonInsufficientContext: true}
	minQuestionContext = 3
)

// Quality score deductions per reason class.
const (
	hardPenalty    = 0.38
	contextPenalty = 0.24
	softPenalty    = 0.10
)

// Preprocessing is the gate verdict for one question.
type Preprocessing struct {
	Reasons      []string
	QualityScore float64

	// RunOracle is false when the question is too broken to judge.
	RunOracle bool
	// AllowAutoChange is false when answers must not be rewritten
	// automatically even if the oracle recommends it.
	AllowAutoChange bool
	// ForceManualReview marks the question for a human regardless of
	// what the oracle concludes.
	ForceManualReview bool
}

// Preprocess inspects a question's structural integrity and returns the
// gate verdict. hasImages reports whether any referenced image asset
// actually resolved in the image store.
func Preprocess(q *types.Question, hasImages bool) Preprocessing {
	var reasons []string

	if len(q.CorrectIndices) == 0 {
		reasons = append(reasons, ReasonMissingCorrectIndices)
	}
	for _, a := range q.Answers {
		text := strings.TrimSpace(a.Text)
		if text == "" || text == "?" {
			reasons = append(reasons, ReasonInvalidAnswerOption)
			break
		}
	}
	refsImage := imageReferenceRe.MatchString(q.QuestionText) || imageReferenceRe.MatchString(q.ExplanationText)
	hasRefs := len(q.ImageFiles) > 0 || len(q.ImageURLs) > 0
	if (refsImage || hasRefs) && !hasImages {
		reasons = append(reasons, ReasonMissingImageAsset)
	}
	if len(strings.Fields(q.QuestionText)) <= minQuestionContext {
		reasons = append(reasons, ReasonInsufficientContext)
	}
	if uncertainSourceRe.MatchString(q.QuestionText) || uncertainSourceRe.MatchString(q.ExplanationText) {
		reasons = append(reasons, ReasonUncertainSource)
	}

	var hard, context, soft int
	for _, r := range reasons {
		switch {
		case hardReasons[r]:
			hard++
		case contextReasons[r]:
			context++
		default:
			soft++
		}
	}

	penalty := hardPenalty*float64(hard) + contextPenalty*float64(context) + softPenalty*float64(soft)
	if penalty > 1 {
		penalty = 1
	}

	return Preprocessing{
		Reasons:           reasons,
		QualityScore:      round4(1 - penalty),
		RunOracle:         hard == 0,
		AllowAutoChange:   hard == 0 && context == 0,
		ForceManualReview: hard > 0 || context > 0,
	}
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
