// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textindex

import (
	"math"
	"sort"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// commonDFFloor keeps the common-token cutoff from collapsing on small
// corpora, where a ratio of the document count would exclude nearly
// every shared token.
const commonDFFloor = 8

// Options configures index construction.
type Options struct {
	// MinTokenLength is passed through to the tokenizer.
	MinTokenLength int

	// CommonTokenRatio excludes tokens with document frequency above
	// this share of the corpus from candidate-pair generation. Such
	// tokens still contribute to similarity scores.
	CommonTokenRatio float64
}

// Index is an immutable similarity index over a fixed document
// snapshot. Built once per run; safe for concurrent reads afterwards.
type Index struct {
	ids      []string
	tokens   []map[string]struct{}
	df       map[string]int
	postings map[string][]int
	n        int
	commonDF int
}

// Build tokenizes every document and constructs the inverted index and
// document-frequency table.
func Build(docs []types.Document, opts Options) *Index {
	minLen := opts.MinTokenLength
	if minLen <= 0 {
		minLen = 3
	}

	ix := &Index{
		ids:      make([]string, len(docs)),
		tokens:   make([]map[string]struct{}, len(docs)),
		df:       make(map[string]int),
		postings: make(map[string][]int),
		n:        len(docs),
	}

	for i, doc := range docs {
		ix.ids[i] = doc.ID
		set := TokenSet(doc.Text, minLen)
		ix.tokens[i] = set
		for tok := range set {
			ix.df[tok]++
			ix.postings[tok] = append(ix.postings[tok], i)
		}
	}

	cutoff := int(opts.CommonTokenRatio * float64(ix.n))
	if cutoff < commonDFFloor {
		cutoff = commonDFFloor
	}
	ix.commonDF = cutoff

	return ix
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return ix.n }

// ID returns the identifier of document i.
func (ix *Index) ID(i int) string { return ix.ids[i] }

// HasTokens reports whether document i has at least one usable token.
func (ix *Index) HasTokens(i int) bool { return len(ix.tokens[i]) > 0 }

// DF returns the document frequency of a token.
func (ix *Index) DF(token string) int { return ix.df[token] }

// IDF returns log((N+1)/(df+1)) + 1, a monotone decreasing function of
// document frequency, fixed for the corpus snapshot.
func (ix *Index) IDF(token string) float64 {
	df := ix.df[token]
	return math.Log(float64(ix.n+1)/float64(df+1)) + 1.0
}

// Similarity computes the weighted Jaccard similarity between documents
// i and j: the IDF mass of the token intersection over the IDF mass of
// the union. Symmetric, in [0,1], zero for disjoint token sets.
func (ix *Index) Similarity(i, j int) float64 {
	a, b := ix.tokens[i], ix.tokens[j]
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}

	var inter, union float64
	for tok := range a {
		w := ix.IDF(tok)
		union += w
		if _, ok := b[tok]; ok {
			inter += w
		}
	}
	for tok := range b {
		if _, ok := a[tok]; !ok {
			union += ix.IDF(tok)
		}
	}
	if union == 0 {
		return 0
	}
	return inter / union
}

// SharesTokenBelowDF reports whether documents i and j share at least
// one token with document frequency at or below maxDF.
func (ix *Index) SharesTokenBelowDF(i, j int, maxDF int) bool {
	a, b := ix.tokens[i], ix.tokens[j]
	if len(b) < len(a) {
		a, b = b, a
	}
	for tok := range a {
		if ix.df[tok] > maxDF {
			continue
		}
		if _, ok := b[tok]; ok {
			return true
		}
	}
	return false
}

// CandidatePairs returns every document pair sharing at least one
// token, skipping ultra-common tokens so the candidate set stays
// bounded. Pairs come back sorted with i < j; the clustering result
// must not depend on this order, only logging does.
func (ix *Index) CandidatePairs() [][2]int {
	seen := make(map[[2]int]struct{})
	for tok, docs := range ix.postings {
		if ix.df[tok] > ix.commonDF || len(docs) < 2 {
			continue
		}
		for x := 0; x < len(docs); x++ {
			for y := x + 1; y < len(docs); y++ {
				i, j := docs[x], docs[y]
				if i > j {
					i, j = j, i
				}
				seen[[2]int{i, j}] = struct{}{}
			}
		}
	}

	pairs := make([][2]int, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(x, y int) bool {
		if pairs[x][0] != pairs[y][0] {
			return pairs[x][0] < pairs[y][0]
		}
		return pairs[x][1] < pairs[y][1]
	})
	return pairs
}
