// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates the batch analysis: clustering,
// retrieval, oracle passes, and the decision policy, per question and
// across the dataset.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdiddy/exam-audit/internal/decision"
	"github.com/pdiddy/exam-audit/internal/knowledge"
	"github.com/pdiddy/exam-audit/internal/oracle"
	"github.com/pdiddy/exam-audit/internal/topics"
	"github.com/pdiddy/exam-audit/pkg/types"
)

// Version tags every audit record. Resume only trusts records written
// by the same version.
const Version = "2.0"

const topicCandidateCount = 3

// Analyzer holds the per-run collaborators shared by all workers.
// Immutable during Run; safe for concurrent use.
type Analyzer struct {
	cfg        types.AnalyzerConfig
	oracle     *oracle.Oracle
	catalog    *topics.Catalog
	candidates *topics.CandidateIndex
	index      *knowledge.Index

	// imageMatches maps question ID to its matched reference figures.
	imageMatches map[string][]types.ImageMatch
	// hasImages maps question ID to whether its image assets resolved.
	hasImages map[string]bool
}

// outcome carries a finished analysis back to the worker loop. The
// question itself is not touched during analysis; the worker loop
// attaches the audit and applies any approved index change under the
// run lock, so a concurrent checkpoint never serializes a question
// mid-write.
type outcome struct {
	audit *types.Audit

	// appliedIndices is the verified correct set when the change gate
	// approved a dataset change, nil otherwise.
	appliedIndices []int
}

// analyzeQuestion runs the full per-question flow and returns the audit
// record. It returns an error only for context cancellation; oracle
// trouble is captured in the record instead.
func (a *Analyzer) analyzeQuestion(ctx context.Context, q *types.Question) (*outcome, error) {
	pre := decision.Preprocess(q, a.hasImages[q.ID])

	audit := &types.Audit{
		Status:              types.AuditCompleted,
		PipelineVersion:     Version,
		QualityScore:        pre.QualityScore,
		FinalCorrectIndices: append([]int(nil), q.CorrectIndices...),
	}

	if pre.ForceManualReview {
		audit.Maintenance = decision.ApplyForcedReview(audit.Maintenance, pre.Reasons)
	}
	if !pre.RunOracle {
		audit.Status = types.AuditSkipped
		audit.Error = fmt.Sprintf("preprocessing: %v", pre.Reasons)
		return &outcome{audit: audit}, nil
	}

	evidence, quality := a.index.Retrieve(knowledge.Query{
		QuestionText:    q.QuestionText,
		ExplanationText: q.ExplanationText,
		AnswerTexts:     answerTexts(q),
	}, knowledge.Params{
		TopK:     a.cfg.Knowledge.TopK,
		MaxChars: a.cfg.Knowledge.MaxChars,
		MinScore: a.cfg.Knowledge.MinScore,
	})
	audit.Evidence = evidence
	audit.RetrievalQuality = quality

	candidates := a.candidates.Rank(q.CombinedText(), topicCandidateCount)
	req := oracle.Request{
		Question:         q,
		Candidates:       candidates,
		Evidence:         evidence,
		RetrievalQuality: quality,
		ImageMatches:     a.imageMatches[q.ID],
	}

	primary, err := a.oracle.Primary(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		audit.Status = types.AuditFailed
		audit.Error = fmt.Sprintf("primary assessment: %v", err)
		return &outcome{audit: audit}, nil
	}

	audit.TopicInitial = primary.TopicInitial
	audit.TopicFinal = primary.TopicFinal
	audit.AnswerReview = primary.AnswerReview
	audit.Abstraction = primary.Abstraction
	audit.Maintenance = decision.MergeMaintenance(audit.Maintenance, primary.Maintenance)

	stage := decision.StageUnverified
	po := decision.PrimaryOutcome{
		RecommendChange:        primary.AnswerReview.RecommendChange,
		AnswerConfidence:       primary.AnswerReview.Confidence,
		NeedsMaintenance:       audit.Maintenance.NeedsMaintenance,
		TopicInitialConf:       primary.TopicInitial.Confidence,
		TopicFinalConf:         primary.TopicFinal.Confidence,
		TopicOutsideCandidates: !candidateContains(candidates, primary.TopicFinal.TopicKey),
		TopicConfidence:        primary.TopicFinal.Confidence,
	}
	if decision.NeedsSecondary(po, a.cfg.Policy) {
		stage = decision.Escalate(stage, decision.StageNeedsSecondary)
	}

	agreement := decision.VerifierAbsent
	var appliedIndices []int
	if stage >= decision.StageNeedsSecondary {
		agreement, appliedIndices = a.runVerification(ctx, q, audit, req, primary, pre)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	combined := decision.Compose(decision.Signals{
		AnswerConfidence: primary.AnswerReview.Confidence,
		TopicConfidence:  audit.TopicFinal.Confidence,
		RetrievalQuality: quality,
		Agreement:        agreement,
		EvidenceCount:    len(evidence),
	}, a.cfg.Policy.Weights)
	audit.FinalCombinedConfidence = combined

	audit.Maintenance = decision.ApplyLowConfidenceFloor(audit.Maintenance,
		primary.AnswerReview.Confidence, audit.TopicFinal.Confidence, combined,
		a.cfg.Policy.LowConfFloor)

	tertiary := decision.TertiaryOutcome{
		NeedsMaintenance:    audit.Maintenance.NeedsMaintenance,
		MaintenanceSeverity: audit.Maintenance.Severity,
		VerifierDisagrees:   agreement == decision.VerifierDisagrees,
		CombinedConfidence:  combined,
		TopicChanged:        audit.TopicFinal.TopicKey != primary.TopicInitial.TopicKey,
	}
	if decision.NeedsTertiary(tertiary, a.cfg.Policy) {
		stage = decision.Escalate(stage, decision.StageNeedsTertiary)
	}

	if stage >= decision.StageNeedsTertiary && a.cfg.Pipeline.EnableReviewPass {
		a.runReview(ctx, q, audit, req, primary)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return &outcome{audit: audit, appliedIndices: appliedIndices}, nil
}

// runVerification executes the secondary pass. When every gate
// condition holds it records the verified correction in the audit and
// returns the approved indices; the caller applies them to the dataset.
func (a *Analyzer) runVerification(ctx context.Context, q *types.Question, audit *types.Audit, req oracle.Request, primary *oracle.PrimaryResult, pre decision.Preprocessing) (decision.Agreement, []int) {
	verify, err := a.oracle.Verify(ctx, req, primary)
	if err != nil {
		// A verifier that cannot be reached or answers garbage leaves
		// no verdict; fusion treats that as an absent verifier.
		audit.Verification = types.Verification{Ran: true, CannotJudge: true, Error: err.Error()}
		return decision.VerifierAbsent, nil
	}

	audit.Verification = types.Verification{
		Ran:                    true,
		CannotJudge:            verify.CannotJudge,
		AgreeWithChange:        verify.AgreeWithChange,
		Confidence:             verify.Confidence,
		VerifiedCorrectIndices: validIndices(verify.VerifiedCorrectIndices, q),
	}
	if verify.Maintenance != nil {
		audit.Maintenance = decision.MergeMaintenance(audit.Maintenance, *verify.Maintenance)
	}
	if verify.TopicFinal != nil && verify.TopicFinal.TopicKey != "" {
		audit.TopicFinal = *verify.TopicFinal
	}

	if verify.CannotJudge {
		return decision.VerifierAbsent, nil
	}

	var appliedIndices []int
	applied := decision.ShouldApplyChange(decision.ChangeRequest{
		CannotJudge:      verify.CannotJudge,
		AgreeWithChange:  verify.AgreeWithChange,
		VerifiedIndices:  audit.Verification.VerifiedCorrectIndices,
		CurrentIndices:   q.CorrectIndices,
		VerifyConfidence: verify.Confidence,
		EvidenceCount:    len(audit.Evidence),
		RetrievalQuality: audit.RetrievalQuality,
		AllowAutoChange:  pre.AllowAutoChange,
	}, a.cfg.Policy)
	if applied {
		appliedIndices = audit.Verification.VerifiedCorrectIndices
		audit.Verification.AppliedChange = true
		audit.FinalCorrectIndices = append([]int(nil), appliedIndices...)
	}

	// Agreement is judged against the dataset as it will stand after
	// the change lands.
	current := q.CorrectIndices
	if appliedIndices != nil {
		current = appliedIndices
	}
	if len(audit.Verification.VerifiedCorrectIndices) > 0 &&
		!sameIndexSet(audit.Verification.VerifiedCorrectIndices, current) {
		return decision.VerifierDisagrees, appliedIndices
	}
	return decision.VerifierAgrees, appliedIndices
}

// runReview executes the tertiary pass. Review conclusions override
// topic and final indices in the audit record but never rewrite the
// dataset answer.
func (a *Analyzer) runReview(ctx context.Context, q *types.Question, audit *types.Audit, req oracle.Request, primary *oracle.PrimaryResult) {
	var verify *oracle.VerifyResult
	if audit.Verification.Ran && audit.Verification.Error == "" {
		verify = &oracle.VerifyResult{
			CannotJudge:            audit.Verification.CannotJudge,
			AgreeWithChange:        audit.Verification.AgreeWithChange,
			VerifiedCorrectIndices: audit.Verification.VerifiedCorrectIndices,
			Confidence:             audit.Verification.Confidence,
		}
	}

	review, err := a.oracle.Review(ctx, req, primary, verify)
	if err != nil {
		audit.Review = types.Review{Ran: true, Comment: fmt.Sprintf("review failed: %v", err), RecommendManualReview: true}
		audit.Maintenance = decision.ApplyForcedReview(audit.Maintenance, nil)
		return
	}

	audit.Review = types.Review{
		Ran:                   true,
		FinalCorrectIndices:   validIndices(review.FinalCorrectIndices, q),
		FinalTopicKey:         review.FinalTopicKey,
		Comment:               review.Comment,
		RecommendManualReview: review.RecommendManualReview,
		Confidence:            review.Confidence,
	}
	if review.FinalTopicKey != "" {
		audit.TopicFinal.TopicKey = review.FinalTopicKey
		if review.Confidence > 0 {
			audit.TopicFinal.Confidence = review.Confidence
		}
	}
	if len(audit.Review.FinalCorrectIndices) > 0 {
		audit.FinalCorrectIndices = audit.Review.FinalCorrectIndices
	}
	if review.RecommendManualReview {
		audit.Maintenance = decision.ApplyForcedReview(audit.Maintenance, nil)
	}
}

// validIndices drops indices that do not name an existing answer
// option.
func validIndices(indices []int, q *types.Question) []int {
	valid := make(map[int]bool)
	for _, i := range q.ExternalIndices() {
		valid[i] = true
	}
	var out []int
	for _, i := range indices {
		if valid[i] {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// applyCorrectIndices rewrites the question's correct set, keeping the
// per-option flags consistent.
func applyCorrectIndices(q *types.Question, indices []int) {
	q.CorrectIndices = append([]int(nil), indices...)
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	external := q.ExternalIndices()
	for i := range q.Answers {
		q.Answers[i].IsCorrect = set[external[i]]
	}
}

func answerTexts(q *types.Question) []string {
	out := make([]string, 0, len(q.Answers))
	for _, a := range q.Answers {
		out = append(out, a.Text)
	}
	return out
}

func candidateContains(candidates []types.TopicCandidate, key string) bool {
	for _, c := range candidates {
		if c.TopicKey == key {
			return true
		}
	}
	return false
}

func sameIndexSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]int, len(a))
	for _, v := range a {
		set[v]++
	}
	for _, v := range b {
		set[v]--
		if set[v] < 0 {
			return false
		}
	}
	return true
}
