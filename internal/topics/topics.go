// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package topics loads the topic catalog and ranks lexically similar
// catalog entries for a question.
package topics

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/exam-audit/internal/textindex"
	"github.com/pdiddy/exam-audit/pkg/types"
)

const tokenMinLen = 2

// Catalog is the controlled topic vocabulary.
type Catalog struct {
	entries []types.TopicEntry
	byKey   map[string]types.TopicEntry
}

// LoadCatalog reads a topic catalog YAML file: a list of entries with
// topicKey, superTopic, and subtopic fields.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topic catalog %s: %w", path, err)
	}
	var entries []types.TopicEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing topic catalog %s: %w", path, err)
	}
	return NewCatalog(entries), nil
}

// NewCatalog builds a catalog from entries. Duplicate keys keep the
// first occurrence.
func NewCatalog(entries []types.TopicEntry) *Catalog {
	c := &Catalog{byKey: make(map[string]types.TopicEntry)}
	for _, e := range entries {
		if _, dup := c.byKey[e.TopicKey]; dup {
			continue
		}
		c.byKey[e.TopicKey] = e
		c.entries = append(c.entries, e)
	}
	return c
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Contains reports whether key is a known topic.
func (c *Catalog) Contains(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

// Entries returns the catalog entries in load order.
func (c *Catalog) Entries() []types.TopicEntry { return c.entries }

// CandidateIndex ranks catalog entries against question text by
// IDF-weighted token overlap.
type CandidateIndex struct {
	catalog *Catalog
	freqs   []map[string]int
	docFreq map[string]int
	n       int
}

// NewCandidateIndex indexes the catalog's entry texts. Each entry is
// one document made of its key, super topic, and subtopic.
func NewCandidateIndex(c *Catalog) *CandidateIndex {
	ix := &CandidateIndex{
		catalog: c,
		docFreq: make(map[string]int),
		n:       c.Len(),
	}
	for _, e := range c.entries {
		text := strings.Join([]string{entryText(e.TopicKey), e.SuperTopic, e.Subtopic}, " ")
		freq := textindex.TermFreq(text, tokenMinLen)
		ix.freqs = append(ix.freqs, freq)
		for tok := range freq {
			ix.docFreq[tok]++
		}
	}
	return ix
}

// entryText makes a topic key searchable by splitting its separators.
func entryText(key string) string {
	return strings.NewReplacer("_", " ", "-", " ", "/", " ", ".", " ").Replace(key)
}

// Rank returns the topK catalog entries most lexically similar to the
// question text, best first. Entries with no token overlap are omitted;
// the result may be shorter than topK or empty.
func (ix *CandidateIndex) Rank(questionText string, topK int) []types.TopicCandidate {
	if topK <= 0 || ix.n == 0 {
		return nil
	}
	qFreq := textindex.TermFreq(questionText, tokenMinLen)

	var out []types.TopicCandidate
	for i, e := range ix.catalog.entries {
		score := 0.0
		for tok, qc := range qFreq {
			dc := ix.freqs[i][tok]
			if dc == 0 {
				continue
			}
			shared := qc
			if dc < shared {
				shared = dc
			}
			idf := math.Log(float64(1+ix.n)/float64(1+ix.docFreq[tok])) + 1
			score += float64(shared) * idf
		}
		if score > 0 {
			out = append(out, types.TopicCandidate{
				TopicKey:   e.TopicKey,
				SuperTopic: e.SuperTopic,
				Subtopic:   e.Subtopic,
				Score:      score,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TopicKey < out[j].TopicKey
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
