// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import (
	"math"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// Stage is the escalation state of a question. Transitions are
// monotone: a question never moves back to a cheaper stage.
type Stage int

const (
	StageUnverified Stage = iota
	StageNeedsSecondary
	StageNeedsTertiary
)

// Escalate raises the current stage to at least next.
func Escalate(current, next Stage) Stage {
	if next > current {
		return next
	}
	return current
}

// PrimaryOutcome summarizes the primary pass for trigger evaluation.
type PrimaryOutcome struct {
	RecommendChange  bool
	AnswerConfidence float64
	NeedsMaintenance bool
	TopicInitialConf float64
	TopicFinalConf   float64

	// TopicOutsideCandidates is true when the assessed topic is not
	// among the lexical candidate topics offered to the oracle.
	TopicOutsideCandidates bool
	TopicConfidence        float64
}

// NeedsSecondary reports whether the primary outcome warrants the
// verification pass.
func NeedsSecondary(o PrimaryOutcome, cfg types.PolicyConfig) bool {
	if o.RecommendChange ||
		o.AnswerConfidence < cfg.TriggerAnswerConf ||
		o.NeedsMaintenance ||
		o.TopicInitialConf < cfg.TriggerTopicConf ||
		o.TopicFinalConf < cfg.TriggerTopicConf {
		return true
	}
	// A topic outside the candidate set is suspicious unless asserted
	// with very high confidence.
	return o.TopicOutsideCandidates && o.TopicConfidence < cfg.CandidateConflictConf
}

// TertiaryOutcome summarizes the state after the secondary pass.
type TertiaryOutcome struct {
	NeedsMaintenance    bool
	MaintenanceSeverity int
	VerifierDisagrees   bool
	CombinedConfidence  float64
	TopicChanged        bool
}

// NeedsTertiary reports whether the question needs the review pass.
func NeedsTertiary(o TertiaryOutcome, cfg types.PolicyConfig) bool {
	if o.NeedsMaintenance && o.MaintenanceSeverity >= cfg.ReviewMinSeverity {
		return true
	}
	if o.VerifierDisagrees && o.CombinedConfidence < cfg.DisagreeConfCeiling {
		return true
	}
	if o.TopicChanged {
		return true
	}
	return o.CombinedConfidence < math.Max(0.45, cfg.LowConfFloor-0.1)
}
