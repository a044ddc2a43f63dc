// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"github.com/pdiddy/exam-audit/pkg/types"
)

// Index is the immutable retrieval index over a chunked corpus. Safe
// for concurrent readers once built.
type Index struct {
	chunks   []types.Chunk
	images   []types.KnowledgeImage
	docFreq  map[string]int
	docCount int
	avgLen   float64
}

// NewIndex assembles an index from pre-built chunks, recomputing the
// derived statistics. Used when loading a cached index from disk.
func NewIndex(chunks []types.Chunk, images []types.KnowledgeImage) *Index {
	ix := &Index{
		chunks:  chunks,
		images:  images,
		docFreq: make(map[string]int),
	}
	total := 0
	for _, c := range chunks {
		total += c.Length
		for tok := range c.TermFreq {
			ix.docFreq[tok]++
		}
	}
	ix.docCount = len(chunks)
	if ix.docCount == 0 {
		ix.docCount = 1
	}
	ix.avgLen = float64(total) / float64(ix.docCount)
	if ix.avgLen <= 0 {
		ix.avgLen = 1
	}
	return ix
}

// Ingest chunks every source document and builds the index. Documents
// that produce no usable chunks contribute nothing; an empty corpus
// yields a valid index that retrieves nothing.
func Ingest(docs []types.SourceDoc, images []types.KnowledgeImage, cfg types.KnowledgeConfig) *Index {
	var chunks []types.Chunk
	for _, doc := range docs {
		chunks = append(chunks, buildChunks(doc, cfg.ChunkChars, cfg.MinChunkChars)...)
	}
	return NewIndex(chunks, images)
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunks exposes the indexed chunks in corpus order.
func (ix *Index) Chunks() []types.Chunk { return ix.chunks }

// Images exposes the perceptual hashes of corpus figures.
func (ix *Index) Images() []types.KnowledgeImage { return ix.images }
