// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import "github.com/pdiddy/exam-audit/pkg/types"

// Agreement classifies the verifier's stance on the primary answer
// assessment.
type Agreement int

const (
	// VerifierAbsent means no verifier verdict exists: the secondary
	// pass did not run, could not judge, or failed.
	VerifierAbsent Agreement = iota
	VerifierAgrees
	VerifierDisagrees
)

// agreementSignal maps the verifier stance to its fusion signal.
func agreementSignal(a Agreement) float64 {
	switch a {
	case VerifierAgrees:
		return 1.0
	case VerifierDisagrees:
		return 0.2
	default:
		return 0.45
	}
}

// EvidencePrior maps the number of retrieved evidence chunks to a prior
// on how well-supported any conclusion can be.
func EvidencePrior(evidenceCount int) float64 {
	switch {
	case evidenceCount >= 3:
		return 1.0
	case evidenceCount == 2:
		return 0.8
	case evidenceCount == 1:
		return 0.55
	default:
		return 0.35
	}
}

// Signals carries the five fusion inputs for one question.
type Signals struct {
	AnswerConfidence float64
	TopicConfidence  float64
	RetrievalQuality float64
	Agreement        Agreement
	EvidenceCount    int
}

// Compose fuses the signals into a single combined confidence using the
// configured weights, clamped to [0,1] and rounded to four decimals.
func Compose(s Signals, w types.FusionWeights) float64 {
	v := w.AnswerConf*clamp01(s.AnswerConfidence) +
		w.TopicConf*clamp01(s.TopicConfidence) +
		w.RetrievalQuality*clamp01(s.RetrievalQuality) +
		w.Agreement*agreementSignal(s.Agreement) +
		w.EvidencePrior*EvidencePrior(s.EvidenceCount)
	return round4(clamp01(v))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
