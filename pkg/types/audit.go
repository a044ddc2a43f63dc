// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AuditStatus records how far a question's analysis got.
type AuditStatus string

const (
	AuditCompleted AuditStatus = "completed"
	AuditSkipped   AuditStatus = "skipped"
	AuditFailed    AuditStatus = "failed"
)

// TopicAssessment is one topic classification with confidence.
type TopicAssessment struct {
	TopicKey   string  `json:"topicKey" yaml:"topic_key"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reason     string  `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// AnswerReview is the plausibility verdict for the recorded answer.
type AnswerReview struct {
	IsPlausible            bool     `json:"isPlausible" yaml:"is_plausible"`
	Confidence             float64  `json:"confidence" yaml:"confidence"`
	RecommendChange        bool     `json:"recommendChange" yaml:"recommend_change"`
	ProposedCorrectIndices []int    `json:"proposedCorrectIndices,omitempty" yaml:"proposed_correct_indices,omitempty"`
	Reason                 string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	MaintenanceSuspicion   []string `json:"maintenanceSuspicion,omitempty" yaml:"maintenance_suspicion,omitempty"`
	EvidenceChunkIDs       []string `json:"evidenceChunkIds,omitempty" yaml:"evidence_chunk_ids,omitempty"`
}

// Maintenance is the per-question maintenance flag with severity and an
// accumulating, deduplicated reason set. Reasons are never removed once
// added.
type Maintenance struct {
	NeedsMaintenance bool     `json:"needsMaintenance" yaml:"needs_maintenance"`
	Severity         int      `json:"severity" yaml:"severity"`
	Reasons          []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// Verification records the secondary-verification pass.
type Verification struct {
	Ran                    bool    `json:"ran" yaml:"ran"`
	CannotJudge            bool    `json:"cannotJudge,omitempty" yaml:"cannot_judge,omitempty"`
	AgreeWithChange        bool    `json:"agreeWithChange,omitempty" yaml:"agree_with_change,omitempty"`
	Confidence             float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	VerifiedCorrectIndices []int   `json:"verifiedCorrectIndices,omitempty" yaml:"verified_correct_indices,omitempty"`
	AppliedChange          bool    `json:"appliedChange,omitempty" yaml:"applied_change,omitempty"`
	Error                  string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Review records the optional tertiary review pass.
type Review struct {
	Ran                   bool    `json:"ran" yaml:"ran"`
	FinalCorrectIndices   []int   `json:"finalCorrectIndices,omitempty" yaml:"final_correct_indices,omitempty"`
	FinalTopicKey         string  `json:"finalTopicKey,omitempty" yaml:"final_topic_key,omitempty"`
	Comment               string  `json:"comment,omitempty" yaml:"comment,omitempty"`
	RecommendManualReview bool    `json:"recommendManualReview,omitempty" yaml:"recommend_manual_review,omitempty"`
	Confidence            float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// ClusterRefs links a question to the clusters it landed in.
type ClusterRefs struct {
	TextClusterID        int      `json:"textClusterId,omitempty" yaml:"text_cluster_id,omitempty"`
	AbstractionClusterID int      `json:"abstractionClusterId,omitempty" yaml:"abstraction_cluster_id,omitempty"`
	ImageClusterIDs      []string `json:"imageClusterIds,omitempty" yaml:"image_cluster_ids,omitempty"`
}

// Audit is the complete analysis record for one question.
type Audit struct {
	Status          AuditStatus     `json:"status" yaml:"status"`
	PipelineVersion string          `json:"pipelineVersion" yaml:"pipeline_version"`
	TopicInitial    TopicAssessment `json:"topicInitial" yaml:"topic_initial"`
	TopicFinal      TopicAssessment `json:"topicFinal" yaml:"topic_final"`
	AnswerReview    AnswerReview    `json:"answerReview" yaml:"answer_review"`
	Abstraction     string          `json:"abstraction,omitempty" yaml:"abstraction,omitempty"`
	Maintenance     Maintenance     `json:"maintenance" yaml:"maintenance"`
	Verification    Verification    `json:"verification" yaml:"verification"`
	Review          Review          `json:"review" yaml:"review"`
	Clusters        ClusterRefs     `json:"clusters" yaml:"clusters"`
	Evidence        []EvidenceItem  `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// RetrievalQuality summarizes how well the evidence matched.
	RetrievalQuality float64 `json:"retrievalQuality" yaml:"retrieval_quality"`

	// FinalCombinedConfidence is the fused confidence score in [0,1].
	FinalCombinedConfidence float64 `json:"finalCombinedConfidence" yaml:"final_combined_confidence"`

	// FinalCorrectIndices reflects the dataset after the change gate:
	// the original indices unless an approved change was applied.
	FinalCorrectIndices []int `json:"finalCorrectIndices,omitempty" yaml:"final_correct_indices,omitempty"`

	// QualityScore is the deterministic preprocessing quality score.
	QualityScore float64 `json:"qualityScore" yaml:"quality_score"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
