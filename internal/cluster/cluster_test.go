// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/pdiddy/exam-audit/pkg/types"
)

func testParams() Params {
	return Params{
		Threshold:        0.3,
		HighThreshold:    0.8,
		RareTokenDF:      4,
		CommonTokenRatio: 0.35,
		MinTokenLength:   1,
	}
}

func TestAssignMergesOverlappingDocs(t *testing.T) {
	docs := []types.Document{
		{ID: "q1", Text: "a b c"},
		{ID: "q2", Text: "a b d"},
		{ID: "q3", Text: "x y z"},
	}
	res := Assign(docs, testParams())

	if res.Assignment["q1"] != res.Assignment["q2"] {
		t.Errorf("q1 and q2 must share a cluster: %v", res.Assignment)
	}
	if res.Assignment["q3"] == res.Assignment["q1"] {
		t.Errorf("q3 must be a singleton: %v", res.Assignment)
	}
	if len(res.Members[res.Assignment["q3"]]) != 1 {
		t.Errorf("q3 cluster must have one member: %v", res.Members)
	}
}

func TestAssignCoversEveryDocument(t *testing.T) {
	docs := []types.Document{
		{ID: "a", Text: "eins zwei"},
		{ID: "b", Text: "drei vier"},
		{ID: "c", Text: ""},
	}
	res := Assign(docs, testParams())
	if len(res.Assignment) != 3 {
		t.Fatalf("every doc needs a cluster: %v", res.Assignment)
	}
	total := 0
	for _, members := range res.Members {
		total += len(members)
	}
	if total != 3 {
		t.Errorf("clusters must partition the input, got %d memberships", total)
	}
}

func TestAssignEmptyDocsAreSingletons(t *testing.T) {
	docs := []types.Document{
		{ID: "a", Text: ""},
		{ID: "b", Text: ""},
	}
	res := Assign(docs, testParams())
	if res.Assignment["a"] == res.Assignment["b"] {
		t.Error("token-free docs must not merge")
	}
}

func TestAssignClusterIDsDense(t *testing.T) {
	docs := []types.Document{
		{ID: "a", Text: "eins zwei drei"},
		{ID: "b", Text: "vier fünf sechs"},
		{ID: "c", Text: "eins zwei sieben"},
	}
	res := Assign(docs, testParams())
	if res.Assignment["a"] != 1 {
		t.Errorf("first doc must open cluster 1, got %d", res.Assignment["a"])
	}
	if res.Assignment["b"] != 2 {
		t.Errorf("first unmatched doc must open cluster 2, got %d", res.Assignment["b"])
	}
	if res.Assignment["c"] != 1 {
		t.Errorf("c overlaps a and must join cluster 1, got %d", res.Assignment["c"])
	}
}

func TestAssignThresholdMonotone(t *testing.T) {
	docs := []types.Document{
		{ID: "a", Text: "eins zwei drei vier"},
		{ID: "b", Text: "eins zwei drei fünf"},
	}
	loose := testParams()
	loose.Threshold = 0.2
	strict := testParams()
	strict.Threshold = 0.99

	if Assign(docs, loose).Assignment["a"] != Assign(docs, loose).Assignment["b"] {
		t.Error("expected merge at the loose threshold")
	}
	res := Assign(docs, strict)
	if res.Assignment["a"] == res.Assignment["b"] {
		t.Error("expected no merge at the strict threshold")
	}
}

func TestMergeGateBlocksCommonOnlyOverlap(t *testing.T) {
	// Seven docs share the tokens "frage" and "typisch" so their
	// document frequency exceeds RareTokenDF but stays within the
	// candidate cutoff. Docs a and b overlap only on those common
	// tokens: similarity passes the threshold but the gate must hold.
	var docs []types.Document
	for i := 0; i < 5; i++ {
		docs = append(docs, types.Document{ID: fmt.Sprintf("filler%d", i), Text: fmt.Sprintf("frage typisch u%d", i)})
	}
	docs = append(docs,
		types.Document{ID: "a", Text: "frage typisch"},
		types.Document{ID: "b", Text: "frage typisch"},
	)

	p := testParams()
	p.RareTokenDF = 4
	p.HighThreshold = 1.1 // unreachable, isolate the rare-token arm
	res := Assign(docs, p)
	if res.Assignment["a"] == res.Assignment["b"] {
		t.Error("common-token-only overlap must not merge")
	}

	p.HighThreshold = 0.8
	res = Assign(docs, p)
	if res.Assignment["a"] != res.Assignment["b"] {
		t.Error("identical docs clear the high threshold and must merge")
	}
}

func TestAssignOrderIndependent(t *testing.T) {
	base := []types.Document{
		{ID: "a", Text: "herz insuffizienz pumpe schwäche"},
		{ID: "b", Text: "herz insuffizienz pumpe leistung"},
		{ID: "c", Text: "niere filtration glomerulus"},
		{ID: "d", Text: "niere filtration tubulus"},
		{ID: "e", Text: "unabhängig thema einzeln"},
	}
	want := partition(Assign(base, testParams()))

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		shuffled := append([]types.Document(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got := partition(Assign(shuffled, testParams()))
		for id, members := range want {
			if got[id] != members {
				t.Fatalf("trial %d: partition differs for %s: %s != %s", trial, id, got[id], members)
			}
		}
	}
}

// partition maps each doc id to a canonical string of its cluster
// co-members, which is comparable across label permutations.
func partition(res Result) map[string]string {
	byCluster := make(map[int]string)
	for cid, members := range res.Members {
		sorted := append([]string(nil), members...)
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			}
		}
		key := ""
		for _, m := range sorted {
			key += m + ","
		}
		byCluster[cid] = key
	}
	out := make(map[string]string)
	for id, cid := range res.Assignment {
		out[id] = byCluster[cid]
	}
	return out
}

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)
	uf.Union(0, 1)
	uf.Union(3, 4)
	if uf.Find(0) != uf.Find(1) {
		t.Error("0 and 1 must share a root")
	}
	if uf.Find(0) == uf.Find(2) {
		t.Error("2 must stay separate")
	}
	uf.Union(1, 3)
	if uf.Find(0) != uf.Find(4) {
		t.Error("union must be transitive")
	}
}
