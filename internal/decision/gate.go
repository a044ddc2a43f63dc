// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import (
	"github.com/pdiddy/exam-audit/pkg/types"
)

// ChangeRequest carries everything the answer-change gate inspects.
type ChangeRequest struct {
	CannotJudge      bool
	AgreeWithChange  bool
	VerifiedIndices  []int
	CurrentIndices   []int
	VerifyConfidence float64
	EvidenceCount    int
	RetrievalQuality float64
	AllowAutoChange  bool
}

// ShouldApplyChange decides whether a verified correction may rewrite
// the dataset's correct indices. Every condition must hold; any single
// failure blocks the change and leaves the question flagged instead.
func ShouldApplyChange(r ChangeRequest, cfg types.PolicyConfig) bool {
	if r.CannotJudge || !r.AgreeWithChange {
		return false
	}
	if len(r.VerifiedIndices) == 0 {
		return false
	}
	if sameIndexSet(r.VerifiedIndices, r.CurrentIndices) {
		return false
	}
	if r.VerifyConfidence < cfg.ApplyChangeMinConf {
		return false
	}
	// A change with no supporting evidence and near-zero retrieval
	// quality is an unsupported opinion, not a correction.
	if r.EvidenceCount <= 0 && r.RetrievalQuality < cfg.MinRetrievalQuality {
		return false
	}
	return r.AllowAutoChange
}

func sameIndexSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]int, len(a))
	for _, v := range a {
		set[v]++
	}
	for _, v := range b {
		set[v]--
		if set[v] < 0 {
			return false
		}
	}
	return true
}
