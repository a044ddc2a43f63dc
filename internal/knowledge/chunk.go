// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge turns corpus documents into a searchable chunk
// index and answers per-question evidence queries.
package knowledge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/exam-audit/internal/textindex"
	"github.com/pdiddy/exam-audit/pkg/types"
)

// chunkTokenMinLen is the tokenizer minimum for corpus chunks. Shorter
// than the clustering minimum: two-letter units and abbreviations carry
// signal in reference material.
const chunkTokenMinLen = 2

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// SplitText slices text into spans of at most maxChars characters,
// keeping paragraphs together where they fit and hard-splitting
// paragraphs that exceed the budget on their own.
func SplitText(text string, maxChars int) []string {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				paragraphs = append(paragraphs, line)
			}
		}
	}

	var chunks []string
	var buf string
	for _, part := range paragraphs {
		if len(part) > maxChars {
			if buf != "" {
				chunks = append(chunks, buf)
				buf = ""
			}
			for i := 0; i < len(part); i += maxChars {
				end := i + maxChars
				if end > len(part) {
					end = len(part)
				}
				if seg := strings.TrimSpace(part[i:end]); seg != "" {
					chunks = append(chunks, seg)
				}
			}
			continue
		}

		candidate := part
		if buf != "" {
			candidate = buf + "\n\n" + part
		}
		if len(candidate) <= maxChars {
			buf = candidate
		} else {
			if buf != "" {
				chunks = append(chunks, buf)
			}
			buf = part
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// termFreqOf tokenizes arbitrary text with the chunk tokenizer.
func termFreqOf(text string) map[string]int {
	return textindex.TermFreq(text, chunkTokenMinLen)
}

// buildChunks chunks one source document and computes per-chunk token
// statistics. Chunks below the minimum usable length, or with no
// usable tokens, are dropped.
func buildChunks(doc types.SourceDoc, chunkChars, minChunkChars int) []types.Chunk {
	var out []types.Chunk
	n := 0
	for _, text := range SplitText(doc.Text, chunkChars) {
		if len(text) < minChunkChars {
			continue
		}
		freq := textindex.TermFreq(text, chunkTokenMinLen)
		if len(freq) == 0 {
			continue
		}
		n++
		length := 0
		for _, c := range freq {
			length += c
		}

		var id string
		if doc.Page > 0 {
			id = fmt.Sprintf("%s#p%dc%d", doc.Source, doc.Page, n)
		} else {
			id = fmt.Sprintf("%s#t%d", doc.Source, n)
		}
		out = append(out, types.Chunk{
			ChunkID:  id,
			Source:   doc.Source,
			Page:     doc.Page,
			Text:     text,
			TermFreq: freq,
			Length:   length,
		})
	}
	return out
}
