// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// ClusterConfig holds settings for text and abstraction clustering.
type ClusterConfig struct {
	// TextThreshold is the weighted-Jaccard merge threshold for
	// question-text clustering.
	TextThreshold float64 `json:"text_threshold" yaml:"text_threshold"`

	// AbstractionThreshold is the merge threshold when clustering
	// question abstractions.
	AbstractionThreshold float64 `json:"abstraction_threshold" yaml:"abstraction_threshold"`

	// HighThreshold lets a pair merge without a shared rare token.
	HighThreshold float64 `json:"high_threshold" yaml:"high_threshold"`

	// RareTokenDF is the maximum document frequency for a token to
	// count as rare in the merge gate.
	RareTokenDF int `json:"rare_token_df" yaml:"rare_token_df"`

	// CommonTokenRatio is the document-frequency share above which a
	// token is excluded from candidate-pair generation.
	CommonTokenRatio float64 `json:"common_token_ratio" yaml:"common_token_ratio"`

	// MinTokenLength is the shortest token kept by normalization.
	MinTokenLength int `json:"min_token_length" yaml:"min_token_length"`
}

// Validate checks threshold ranges eagerly, before any clustering runs.
func (c ClusterConfig) Validate() error {
	for name, v := range map[string]float64{
		"text_threshold":        c.TextThreshold,
		"abstraction_threshold": c.AbstractionThreshold,
		"high_threshold":        c.HighThreshold,
		"common_token_ratio":    c.CommonTokenRatio,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("cluster config: %s %.4f outside [0,1]", name, v)
		}
	}
	if c.RareTokenDF < 0 {
		return fmt.Errorf("cluster config: rare_token_df %d is negative", c.RareTokenDF)
	}
	if c.MinTokenLength < 1 {
		return fmt.Errorf("cluster config: min_token_length %d below 1", c.MinTokenLength)
	}
	return nil
}

// ImageConfig holds settings for perceptual-hash image clustering.
type ImageConfig struct {
	// ZipPath points at the question-image archive. Optional.
	ZipPath string `json:"zip_path" yaml:"zip_path"`

	// MaxHamming is the acceptance bound for merging question images
	// into one cluster.
	MaxHamming int `json:"max_hamming" yaml:"max_hamming"`

	// KnowledgeMaxHamming is the looser bound for matching question
	// images against knowledge-corpus images.
	KnowledgeMaxHamming int `json:"knowledge_max_hamming" yaml:"knowledge_max_hamming"`
}

// Validate rejects impossible Hamming bounds (the hash is 64 bits).
func (c ImageConfig) Validate() error {
	if c.MaxHamming < 0 || c.MaxHamming > 64 {
		return fmt.Errorf("image config: max_hamming %d outside [0,64]", c.MaxHamming)
	}
	if c.KnowledgeMaxHamming < 0 || c.KnowledgeMaxHamming > 64 {
		return fmt.Errorf("image config: knowledge_max_hamming %d outside [0,64]", c.KnowledgeMaxHamming)
	}
	return nil
}

// KnowledgeConfig holds settings for corpus ingestion and retrieval.
type KnowledgeConfig struct {
	// CorpusDir holds .txt/.md corpus files. Optional; retrieval
	// degrades to empty evidence when absent.
	CorpusDir string `json:"corpus_dir" yaml:"corpus_dir"`

	// IndexPath is the SQLite chunk-index cache. Empty disables caching.
	IndexPath string `json:"index_path" yaml:"index_path"`

	// ChunkChars is the target chunk size in characters.
	ChunkChars int `json:"chunk_chars" yaml:"chunk_chars"`

	// MinChunkChars drops chunks below a usable length.
	MinChunkChars int `json:"min_chunk_chars" yaml:"min_chunk_chars"`

	TopK     int     `json:"top_k" yaml:"top_k"`
	MaxChars int     `json:"max_chars" yaml:"max_chars"`
	MinScore float64 `json:"min_score" yaml:"min_score"`
}

// Validate rejects negative budgets before ingestion starts.
func (c KnowledgeConfig) Validate() error {
	if c.ChunkChars <= 0 {
		return fmt.Errorf("knowledge config: chunk_chars %d must be positive", c.ChunkChars)
	}
	if c.MinChunkChars < 0 {
		return fmt.Errorf("knowledge config: min_chunk_chars %d is negative", c.MinChunkChars)
	}
	if c.TopK < 0 {
		return fmt.Errorf("knowledge config: top_k %d is negative", c.TopK)
	}
	if c.MaxChars < 0 {
		return fmt.Errorf("knowledge config: max_chars %d is negative", c.MaxChars)
	}
	if c.MinScore < 0 {
		return fmt.Errorf("knowledge config: min_score %.4f is negative", c.MinScore)
	}
	return nil
}

// FusionWeights are the five confidence-fusion weights. Heuristic
// constants in the original pipeline, exposed as configuration here.
type FusionWeights struct {
	AnswerConf       float64 `json:"answer_conf" yaml:"answer_conf"`
	TopicConf        float64 `json:"topic_conf" yaml:"topic_conf"`
	RetrievalQuality float64 `json:"retrieval_quality" yaml:"retrieval_quality"`
	Agreement        float64 `json:"agreement" yaml:"agreement"`
	EvidencePrior    float64 `json:"evidence_prior" yaml:"evidence_prior"`
}

// PolicyConfig holds every escalation threshold and fusion weight of the
// decision engine. All values are externally overridable.
type PolicyConfig struct {
	Weights FusionWeights `json:"weights" yaml:"weights"`

	// TriggerAnswerConf escalates to secondary verification below it.
	TriggerAnswerConf float64 `json:"trigger_answer_conf" yaml:"trigger_answer_conf"`

	// TriggerTopicConf escalates when initial or final topic
	// confidence falls below it.
	TriggerTopicConf float64 `json:"trigger_topic_conf" yaml:"trigger_topic_conf"`

	// ApplyChangeMinConf is the verifier-confidence floor of the
	// dataset-change gate.
	ApplyChangeMinConf float64 `json:"apply_change_min_conf" yaml:"apply_change_min_conf"`

	// MinRetrievalQuality blocks a change when evidence is absent and
	// retrieval quality sits below this floor.
	MinRetrievalQuality float64 `json:"min_retrieval_quality" yaml:"min_retrieval_quality"`

	// LowConfFloor flags maintenance when answer, topic, or combined
	// confidence falls below it.
	LowConfFloor float64 `json:"low_conf_floor" yaml:"low_conf_floor"`

	// ReviewMinSeverity is the minimum maintenance severity for the
	// tertiary review pass.
	ReviewMinSeverity int `json:"review_min_severity" yaml:"review_min_severity"`

	// DisagreeConfCeiling triggers review when the dataset answer
	// disagrees with the verified answer and combined confidence stays
	// below it.
	DisagreeConfCeiling float64 `json:"disagree_conf_ceiling" yaml:"disagree_conf_ceiling"`

	// CandidateConflictConf forces secondary verification when the
	// assigned topic falls outside the deterministic candidate set and
	// topic confidence is below it.
	CandidateConflictConf float64 `json:"candidate_conflict_conf" yaml:"candidate_conflict_conf"`
}

// Validate checks every threshold and weight range.
func (c PolicyConfig) Validate() error {
	for name, v := range map[string]float64{
		"weights.answer_conf":       c.Weights.AnswerConf,
		"weights.topic_conf":        c.Weights.TopicConf,
		"weights.retrieval_quality": c.Weights.RetrievalQuality,
		"weights.agreement":         c.Weights.Agreement,
		"weights.evidence_prior":    c.Weights.EvidencePrior,
		"trigger_answer_conf":       c.TriggerAnswerConf,
		"trigger_topic_conf":        c.TriggerTopicConf,
		"apply_change_min_conf":     c.ApplyChangeMinConf,
		"min_retrieval_quality":     c.MinRetrievalQuality,
		"low_conf_floor":            c.LowConfFloor,
		"disagree_conf_ceiling":     c.DisagreeConfCeiling,
		"candidate_conflict_conf":   c.CandidateConflictConf,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("policy config: %s %.4f outside [0,1]", name, v)
		}
	}
	if c.ReviewMinSeverity < 1 || c.ReviewMinSeverity > 3 {
		return fmt.Errorf("policy config: review_min_severity %d outside [1,3]", c.ReviewMinSeverity)
	}
	return nil
}

// OracleConfig holds settings for the judgment-oracle collaborator.
type OracleConfig struct {
	// Model is the primary (classification) model identifier.
	Model string `json:"model" yaml:"model"`

	// VerifierModel is the independent verification model.
	VerifierModel string `json:"verifier_model" yaml:"verifier_model"`

	// APIKey authenticates against the oracle API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// PipelineConfig holds batch-processing settings.
type PipelineConfig struct {
	// Workers bounds concurrent question processing.
	Workers int `json:"workers" yaml:"workers"`

	// Limit processes only the first N questions when positive.
	Limit int `json:"limit" yaml:"limit"`

	// CheckpointEvery saves the annotated output after every N
	// processed questions. Zero disables checkpointing.
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`

	// Resume skips questions already completed with this pipeline
	// version.
	Resume bool `json:"resume" yaml:"resume"`

	// EnableReviewPass turns the tertiary review pass on.
	EnableReviewPass bool `json:"enable_review_pass" yaml:"enable_review_pass"`

	// WriteTopLevel mirrors the audit verdict into top-level ai*
	// convenience fields.
	WriteTopLevel bool `json:"write_top_level" yaml:"write_top_level"`
}

// Validate rejects nonsensical batch settings.
func (c PipelineConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("pipeline config: workers %d below 1", c.Workers)
	}
	if c.Limit < 0 {
		return fmt.Errorf("pipeline config: limit %d is negative", c.Limit)
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("pipeline config: checkpoint_every %d is negative", c.CheckpointEvery)
	}
	return nil
}

// AnalyzerConfig groups all stage configurations.
type AnalyzerConfig struct {
	Cluster   ClusterConfig   `json:"cluster" yaml:"cluster"`
	Images    ImageConfig     `json:"images" yaml:"images"`
	Knowledge KnowledgeConfig `json:"knowledge" yaml:"knowledge"`
	Policy    PolicyConfig    `json:"policy" yaml:"policy"`
	Oracle    OracleConfig    `json:"oracle" yaml:"oracle"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline"`
}

// Validate runs every stage validation and names the first offender.
func (c AnalyzerConfig) Validate() error {
	if err := c.Cluster.Validate(); err != nil {
		return err
	}
	if err := c.Images.Validate(); err != nil {
		return err
	}
	if err := c.Knowledge.Validate(); err != nil {
		return err
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}

// DefaultConfig returns the numeric defaults of the original pipeline.
// Tests characterize these values; none of them is load-bearing beyond
// being the shipped default.
func DefaultConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Cluster: ClusterConfig{
			TextThreshold:        0.55,
			AbstractionThreshold: 0.60,
			HighThreshold:        0.80,
			RareTokenDF:          4,
			CommonTokenRatio:     0.35,
			MinTokenLength:       3,
		},
		Images: ImageConfig{
			ZipPath:             "images.zip",
			MaxHamming:          8,
			KnowledgeMaxHamming: 10,
		},
		Knowledge: KnowledgeConfig{
			ChunkChars:    1200,
			MinChunkChars: 80,
			TopK:          6,
			MaxChars:      4000,
			MinScore:      0.06,
		},
		Policy: PolicyConfig{
			Weights: FusionWeights{
				AnswerConf:       0.34,
				TopicConf:        0.24,
				RetrievalQuality: 0.20,
				Agreement:        0.14,
				EvidencePrior:    0.08,
			},
			TriggerAnswerConf:     0.80,
			TriggerTopicConf:      0.85,
			ApplyChangeMinConf:    0.80,
			MinRetrievalQuality:   0.08,
			LowConfFloor:          0.65,
			ReviewMinSeverity:     2,
			DisagreeConfCeiling:   0.85,
			CandidateConflictConf: 0.92,
		},
		Oracle: OracleConfig{
			Model:         "gpt-4o-mini",
			VerifierModel: "o4-mini",
			MaxRetries:    3,
			Timeout:       90 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:         4,
			CheckpointEvery: 10,
			WriteTopLevel:   true,
		},
	}
}
