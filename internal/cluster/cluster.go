// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cluster partitions documents into near-duplicate groups using
// union-find over similarity-gated candidate pairs.
package cluster

import (
	"github.com/pdiddy/exam-audit/internal/textindex"
	"github.com/pdiddy/exam-audit/pkg/types"
)

// Params holds one clustering invocation's thresholds. Text and
// abstraction clustering run with independent Params over independent
// token sources.
type Params struct {
	// Threshold is the weighted-Jaccard merge threshold.
	Threshold float64

	// HighThreshold admits a merge without a shared rare token.
	HighThreshold float64

	// RareTokenDF is the maximum document frequency for a token to
	// count as rare in the merge gate.
	RareTokenDF int

	// CommonTokenRatio bounds candidate generation (see textindex).
	CommonTokenRatio float64

	// MinTokenLength is the tokenizer's minimum token length.
	MinTokenLength int
}

// Result is a complete partition of the input documents.
type Result struct {
	// Assignment maps every input document id to its cluster id.
	// Ids absent from the input never appear here.
	Assignment map[string]int

	// Members maps cluster id to the member document ids, in input
	// order.
	Members map[int][]string
}

// Assign partitions docs by weighted-Jaccard similarity. Candidate
// pairs come from the inverted index; a pair is unioned when its
// similarity meets Threshold and the merge gate passes. Documents with
// no usable tokens always end up in their own singleton cluster.
//
// The partition is independent of candidate order: union is commutative
// and associative for connectivity, and the gate looks only at the pair
// itself. Cluster ids are dense integers assigned by first appearance
// in input order, so labels are reproducible for a given snapshot.
func Assign(docs []types.Document, p Params) Result {
	ix := textindex.Build(docs, textindex.Options{
		MinTokenLength:   p.MinTokenLength,
		CommonTokenRatio: p.CommonTokenRatio,
	})

	uf := NewUnionFind(len(docs))
	for _, pair := range ix.CandidatePairs() {
		i, j := pair[0], pair[1]
		if !ix.HasTokens(i) || !ix.HasTokens(j) {
			continue
		}
		sim := ix.Similarity(i, j)
		if sim < p.Threshold {
			continue
		}
		if !mergeAllowed(ix, i, j, sim, p) {
			continue
		}
		uf.Union(i, j)
	}

	return label(docs, ix, uf)
}

// mergeAllowed is the anti-bridging gate: beyond the raw threshold the
// pair must share a rare token, or clear the higher threshold outright.
// Without it, template phrases common to many questions chain unrelated
// documents into one cluster.
func mergeAllowed(ix *textindex.Index, i, j int, sim float64, p Params) bool {
	if sim >= p.HighThreshold {
		return true
	}
	return ix.SharesTokenBelowDF(i, j, p.RareTokenDF)
}

// label collapses union-find roots into dense cluster ids by first
// appearance in input order. Documents without usable tokens are forced
// into singletons even if candidate generation somehow paired them.
func label(docs []types.Document, ix *textindex.Index, uf *UnionFind) Result {
	res := Result{
		Assignment: make(map[string]int, len(docs)),
		Members:    make(map[int][]string),
	}

	rootToCluster := make(map[int]int)
	next := 1
	for i := range docs {
		var cid int
		if !ix.HasTokens(i) {
			cid = next
			next++
		} else {
			root := uf.Find(i)
			var ok bool
			cid, ok = rootToCluster[root]
			if !ok {
				cid = next
				rootToCluster[root] = cid
				next++
			}
		}
		res.Assignment[docs[i].ID] = cid
		res.Members[cid] = append(res.Members[cid], docs[i].ID)
	}
	return res
}
