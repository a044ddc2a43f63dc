// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Document is an opaque identifier plus raw text. It is the unit of
// clustering input and of knowledge ingestion. Immutable once created.
type Document struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// SourceDoc is one corpus source handed to knowledge ingestion:
// a source identifier, an optional page number, and raw text.
type SourceDoc struct {
	Source string `json:"source" yaml:"source"`
	Page   int    `json:"page,omitempty" yaml:"page,omitempty"`
	Text   string `json:"text" yaml:"text"`
}

// Chunk is a bounded-length slice of a source document, the unit of
// retrieval. Created at ingestion time and immutable afterwards.
type Chunk struct {
	ChunkID string `json:"chunkId" yaml:"chunk_id"`
	Source  string `json:"source" yaml:"source"`
	Page    int    `json:"page" yaml:"page"`
	Text    string `json:"text" yaml:"text"`

	// TermFreq maps token to occurrence count within the chunk.
	TermFreq map[string]int `json:"termFreq" yaml:"term_freq"`

	// Length is the token count used for BM25 length normalization.
	Length int `json:"length" yaml:"length"`
}

// EvidenceItem is a retrieved chunk reference with relevance score and
// enough provenance to audit the selection downstream.
type EvidenceItem struct {
	ChunkID string  `json:"chunkId" yaml:"chunk_id"`
	Source  string  `json:"source" yaml:"source"`
	Page    int     `json:"page" yaml:"page"`
	Score   float64 `json:"score" yaml:"score"`
	Text    string  `json:"text" yaml:"text"`
}

// KnowledgeImage is an image extracted from the knowledge corpus,
// reduced to its perceptual hash.
type KnowledgeImage struct {
	ImageID string `json:"imageId" yaml:"image_id"`
	Source  string `json:"source" yaml:"source"`
	Page    int    `json:"page" yaml:"page"`
	Hash    uint64 `json:"hash" yaml:"hash"`
}

// ImageMatch links a question image to a similar knowledge-corpus image.
type ImageMatch struct {
	QuestionImageRef string `json:"questionImageRef" yaml:"question_image_ref"`
	KnowledgeImageID string `json:"knowledgeImageId" yaml:"knowledge_image_id"`
	KnowledgeSource  string `json:"knowledgeSource" yaml:"knowledge_source"`
	KnowledgePage    int    `json:"knowledgePage" yaml:"knowledge_page"`
	HammingDistance  int    `json:"hammingDistance" yaml:"hamming_distance"`
}

// TopicEntry is one row of the topic catalog.
type TopicEntry struct {
	TopicKey   string `json:"topicKey" yaml:"topic_key"`
	SuperTopic string `json:"superTopicName" yaml:"super_topic_name"`
	Subtopic   string `json:"subtopicName" yaml:"subtopic_name"`
}

// TopicCandidate is a ranked catalog entry for one question.
type TopicCandidate struct {
	TopicKey   string  `json:"topicKey" yaml:"topic_key"`
	SuperTopic string  `json:"superTopic" yaml:"super_topic"`
	Subtopic   string  `json:"subtopic" yaml:"subtopic"`
	Score      float64 `json:"score" yaml:"score"`
}
