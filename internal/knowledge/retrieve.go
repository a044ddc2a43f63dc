// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/exam-audit/pkg/types"
)

const (
	bm25K1 = 1.4
	bm25B  = 0.72

	// Per additional distinct source in the running selection.
	diversityBonus = 0.12

	// Snippet budget handling: once less than this many characters
	// remain, selection stops rather than emitting a stub.
	minSnippetRemainder = 220

	// The greedy diversity pass re-ranks only the top candidates.
	candidateFactor = 6

	qualityDecay = 0.35
)

// Query carries the question-side text for a retrieval call.
type Query struct {
	QuestionText    string
	ExplanationText string
	AnswerTexts     []string
}

// Text joins the query parts into one retrieval document.
func (q Query) Text() string {
	parts := []string{q.QuestionText, q.ExplanationText}
	parts = append(parts, q.AnswerTexts...)
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// Params bounds one retrieval call.
type Params struct {
	TopK     int
	MaxChars int
	MinScore float64
}

// Retrieve scores every chunk against the query with BM25, then greedily
// selects up to TopK chunks favoring source diversity, truncating to the
// character budget. Returns the evidence and a retrieval quality in
// [0,1]. An empty corpus or query returns no evidence and quality 0;
// retrieval never fails.
func (ix *Index) Retrieve(q Query, p Params) ([]types.EvidenceItem, float64) {
	if p.TopK <= 0 || len(ix.chunks) == 0 {
		return nil, 0
	}
	qFreq := make(map[string]int)
	for tok, c := range termFreqOf(q.Text()) {
		if _, known := ix.docFreq[tok]; known {
			qFreq[tok] = c
		}
	}
	if len(qFreq) == 0 {
		return nil, 0
	}

	type scored struct {
		chunk types.Chunk
		score float64
	}
	var hits []scored
	for _, chunk := range ix.chunks {
		s := ix.bm25(qFreq, chunk)
		if s >= p.MinScore && s > 0 {
			hits = append(hits, scored{chunk: chunk, score: s})
		}
	}
	if len(hits) == 0 {
		return nil, 0
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].chunk.ChunkID < hits[j].chunk.ChunkID
	})
	if window := p.TopK * candidateFactor; len(hits) > window {
		hits = hits[:window]
	}

	var (
		evidence []types.EvidenceItem
		scores   []float64
		seen     = map[string]bool{}
		used     = 0
	)
	for len(hits) > 0 && len(evidence) < p.TopK {
		best, bestEff := 0, math.Inf(-1)
		for i, h := range hits {
			eff := h.score
			if !seen[h.chunk.Source] {
				eff += diversityBonus
			}
			if eff > bestEff {
				best, bestEff = i, eff
			}
		}
		pick := hits[best]
		hits = append(hits[:best], hits[best+1:]...)

		text := pick.chunk.Text
		if p.MaxChars > 0 {
			remaining := p.MaxChars - used
			if remaining <= 0 {
				break
			}
			if len(text) > remaining {
				if remaining < minSnippetRemainder {
					break
				}
				cut := text[:remaining]
				if sp := strings.LastIndex(cut, " "); sp > 0 {
					cut = cut[:sp]
				}
				text = strings.TrimSpace(cut) + " …"
			}
		}

		used += len(text)
		seen[pick.chunk.Source] = true
		scores = append(scores, pick.score)
		evidence = append(evidence, types.EvidenceItem{
			ChunkID: pick.chunk.ChunkID,
			Source:  pick.chunk.Source,
			Page:    pick.chunk.Page,
			Score:   round4(pick.score),
			Text:    text,
		})
	}
	if len(evidence) == 0 {
		return nil, 0
	}

	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	quality := round4(1 - math.Exp(-qualityDecay*mean))
	return evidence, quality
}

func (ix *Index) bm25(qFreq map[string]int, chunk types.Chunk) float64 {
	score := 0.0
	for tok := range qFreq {
		tf := chunk.TermFreq[tok]
		if tf == 0 {
			continue
		}
		df := ix.docFreq[tok]
		idf := math.Log((float64(ix.docCount-df)+0.5)/(float64(df)+0.5) + 1)
		denom := float64(tf) + bm25K1*(1-bm25B+bm25B*float64(chunk.Length)/ix.avgLen)
		score += idf * float64(tf) * (bm25K1 + 1) / denom
	}
	return score
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
