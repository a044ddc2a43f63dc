// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sort"
	"strings"

	"github.com/pdiddy/exam-audit/internal/textindex"
	"github.com/pdiddy/exam-audit/pkg/types"
)

// Repeat reconstruction: exams reuse questions across years, and a
// verified answer on one edition can settle an unanswered or broken
// copy from another. Plain Jaccard here, not the IDF-weighted measure:
// repeats are near-verbatim copies and the cheap measure suffices.
const (
	repeatThreshold   = 0.8
	anchorMinConf     = 0.9
	repeatMinTokenLen = 3
)

// RepeatSuggestion proposes donating an anchor's verified answer to a
// repeated question that lacks a trustworthy one. Suggestions are
// advisory; nothing rewrites the target automatically.
type RepeatSuggestion struct {
	TargetID string `json:"targetId" yaml:"target_id"`
	AnchorID string `json:"anchorId" yaml:"anchor_id"`

	// AnchorCorrectTexts are the anchor's correct answer texts.
	AnchorCorrectTexts []string `json:"anchorCorrectTexts" yaml:"anchor_correct_texts"`

	// SuggestedIndices are the target's answer indices whose text
	// matches an anchor correct answer. Empty when the options could
	// not be aligned.
	SuggestedIndices []int `json:"suggestedIndices,omitempty" yaml:"suggested_indices,omitempty"`
}

// ComputeRepeatSuggestions finds cross-year repeat groups and pairs
// each eligible target with the most confident anchor in its group.
func ComputeRepeatSuggestions(questions []*types.Question) []RepeatSuggestion {
	groups := groupRepeats(questions)

	var out []RepeatSuggestion
	for _, group := range groups {
		anchor := bestAnchor(group)
		if anchor == nil {
			continue
		}
		correctTexts := correctAnswerTexts(anchor)
		if len(correctTexts) == 0 {
			continue
		}
		for _, q := range group {
			if q == anchor || !needsDonation(q) {
				continue
			}
			out = append(out, RepeatSuggestion{
				TargetID:           q.ID,
				AnchorID:           anchor.ID,
				AnchorCorrectTexts: correctTexts,
				SuggestedIndices:   matchAnswerIndices(q, correctTexts),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

// groupRepeats partitions questions into repeat groups by pairwise
// token Jaccard over the combined text.
func groupRepeats(questions []*types.Question) [][]*types.Question {
	sets := make([]map[string]struct{}, len(questions))
	for i, q := range questions {
		sets[i] = textindex.TokenSet(q.CombinedText(), repeatMinTokenLen)
	}

	parent := make([]int, len(questions))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for i := 0; i < len(questions); i++ {
		if len(sets[i]) == 0 {
			continue
		}
		for j := i + 1; j < len(questions); j++ {
			if len(sets[j]) == 0 {
				continue
			}
			if jaccard(sets[i], sets[j]) >= repeatThreshold {
				parent[find(i)] = find(j)
			}
		}
	}

	byRoot := make(map[int][]*types.Question)
	var roots []int
	for i, q := range questions {
		r := find(i)
		if _, seen := byRoot[r]; !seen {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], q)
	}

	var groups [][]*types.Question
	for _, r := range roots {
		if len(byRoot[r]) > 1 {
			groups = append(groups, byRoot[r])
		}
	}
	return groups
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// bestAnchor picks the group's most trustworthy verified question: a
// completed audit, combined confidence at least anchorMinConf, and a
// recorded correct set.
func bestAnchor(group []*types.Question) *types.Question {
	var best *types.Question
	for _, q := range group {
		if q.Audit == nil || q.Audit.Status != types.AuditCompleted {
			continue
		}
		if q.Audit.FinalCombinedConfidence < anchorMinConf || len(q.CorrectIndices) == 0 {
			continue
		}
		if best == nil || q.Audit.FinalCombinedConfidence > best.Audit.FinalCombinedConfidence {
			best = q
		}
	}
	return best
}

// needsDonation marks targets worth a suggestion: missing answers or a
// skipped analysis.
func needsDonation(q *types.Question) bool {
	if len(q.CorrectIndices) == 0 {
		return true
	}
	return q.Audit != nil && q.Audit.Status == types.AuditSkipped
}

func correctAnswerTexts(q *types.Question) []string {
	correct := make(map[int]bool, len(q.CorrectIndices))
	for _, i := range q.CorrectIndices {
		correct[i] = true
	}
	external := q.ExternalIndices()
	var out []string
	for i, a := range q.Answers {
		if correct[external[i]] {
			out = append(out, a.Text)
		}
	}
	return out
}

// matchAnswerIndices maps anchor answer texts onto the target's option
// indices by normalized text equality.
func matchAnswerIndices(q *types.Question, texts []string) []int {
	want := make(map[string]bool, len(texts))
	for _, t := range texts {
		want[normalizeAnswer(t)] = true
	}
	external := q.ExternalIndices()
	var out []int
	for i, a := range q.Answers {
		if want[normalizeAnswer(a.Text)] {
			out = append(out, external[i])
		}
	}
	if len(out) != len(texts) {
		// Partial alignment is worse than none; the options differ too
		// much to trust a positional donation.
		return nil
	}
	return out
}

func normalizeAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
