// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import "github.com/pdiddy/exam-audit/pkg/types"

const lowConfidenceReason = "low_confidence_answer_or_topic_or_combined"

// MergeMaintenance folds an incoming maintenance verdict into the
// accumulated one. Flags and reasons only ever accumulate; severity is
// the maximum seen.
func MergeMaintenance(acc types.Maintenance, incoming types.Maintenance) types.Maintenance {
	if incoming.NeedsMaintenance {
		acc.NeedsMaintenance = true
	}
	if incoming.Severity > acc.Severity {
		acc.Severity = incoming.Severity
	}
	for _, r := range incoming.Reasons {
		acc.Reasons = appendReason(acc.Reasons, r)
	}
	return acc
}

// ApplyLowConfidenceFloor flags the question for maintenance when any
// of the answer, topic, or combined confidences falls below floor.
func ApplyLowConfidenceFloor(acc types.Maintenance, answerConf, topicConf, combined, floor float64) types.Maintenance {
	if answerConf >= floor && topicConf >= floor && combined >= floor {
		return acc
	}
	acc.NeedsMaintenance = true
	if acc.Severity < 2 {
		acc.Severity = 2
	}
	acc.Reasons = appendReason(acc.Reasons, lowConfidenceReason)
	return acc
}

// ApplyForcedReview raises a preprocessing-forced review to at least
// severity 3 and records the gate reasons.
func ApplyForcedReview(acc types.Maintenance, reasons []string) types.Maintenance {
	acc.NeedsMaintenance = true
	if acc.Severity < 3 {
		acc.Severity = 3
	}
	for _, r := range reasons {
		acc.Reasons = appendReason(acc.Reasons, r)
	}
	return acc
}

func appendReason(reasons []string, r string) []string {
	for _, have := range reasons {
		if have == r {
			return reasons
		}
	}
	return append(reasons, r)
}
