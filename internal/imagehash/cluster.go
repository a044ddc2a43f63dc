// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagehash

import (
	"fmt"
	"sort"

	"github.com/pdiddy/exam-audit/internal/cluster"
	"github.com/pdiddy/exam-audit/pkg/types"
)

// Item is one hashed image entering clustering: an item id, its hash,
// and the question it belongs to (empty when unknown).
type Item struct {
	ID       string
	ParentID string
	Hash     uint64
}

// Clusters is the image-clustering output: a total assignment of item
// ids to cluster ids plus the per-question view.
type Clusters struct {
	// Assignment maps every input item id to exactly one cluster id.
	Assignment map[string]string

	// Members maps cluster id to member item ids, in input order.
	Members map[string][]string

	// ParentClusters maps a parent question id to the cluster ids of
	// its images, deduplicated, in first-seen order.
	ParentClusters map[string][]string
}

// ClusterItems partitions images whose pairwise Hamming distance is at
// most maxHamming. Same union-find mechanics as text clustering, but
// over hash bits instead of token sets; the two paths never feed each
// other. Cluster ids are "img-cluster-N" by first appearance.
func ClusterItems(items []Item, maxHamming int) Clusters {
	uf := cluster.NewUnionFind(len(items))
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if Distance(items[i].Hash, items[j].Hash) <= maxHamming {
				uf.Union(i, j)
			}
		}
	}

	out := Clusters{
		Assignment:     make(map[string]string, len(items)),
		Members:        make(map[string][]string),
		ParentClusters: make(map[string][]string),
	}

	rootToID := make(map[int]string)
	next := 1
	seenParent := make(map[string]map[string]struct{})

	for i, it := range items {
		root := uf.Find(i)
		cid, ok := rootToID[root]
		if !ok {
			cid = fmt.Sprintf("img-cluster-%d", next)
			rootToID[root] = cid
			next++
		}
		out.Assignment[it.ID] = cid
		out.Members[cid] = append(out.Members[cid], it.ID)

		if it.ParentID == "" {
			continue
		}
		if seenParent[it.ParentID] == nil {
			seenParent[it.ParentID] = make(map[string]struct{})
		}
		if _, dup := seenParent[it.ParentID][cid]; !dup {
			seenParent[it.ParentID][cid] = struct{}{}
			out.ParentClusters[it.ParentID] = append(out.ParentClusters[it.ParentID], cid)
		}
	}
	return out
}

// maxMatchesPerImage caps knowledge matches reported per question image.
const maxMatchesPerImage = 8

// MatchKnowledge compares question images against the knowledge-corpus
// image set. This is matching across two populations, not merging: the
// bound is configured separately from intra-dataset clustering because
// false positives cost differently in each direction. Matches come back
// per parent question, nearest first.
func MatchKnowledge(items []Item, corpus []types.KnowledgeImage, maxHamming int) map[string][]types.ImageMatch {
	out := make(map[string][]types.ImageMatch)
	for _, it := range items {
		if it.ParentID == "" {
			continue
		}
		var hits []types.ImageMatch
		for _, ki := range corpus {
			d := Distance(it.Hash, ki.Hash)
			if d > maxHamming {
				continue
			}
			hits = append(hits, types.ImageMatch{
				QuestionImageRef: it.ID,
				KnowledgeImageID: ki.ImageID,
				KnowledgeSource:  ki.Source,
				KnowledgePage:    ki.Page,
				HammingDistance:  d,
			})
		}
		sort.SliceStable(hits, func(a, b int) bool {
			return hits[a].HammingDistance < hits[b].HammingDistance
		})
		if len(hits) > maxMatchesPerImage {
			hits = hits[:maxMatchesPerImage]
		}
		out[it.ParentID] = append(out[it.ParentID], hits...)
	}
	return out
}
