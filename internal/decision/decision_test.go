// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import (
	"testing"

	"github.com/pdiddy/exam-audit/pkg/types"
)

func testPolicy() types.PolicyConfig {
	return types.DefaultConfig().Policy
}

func question(text string, correct []int, answers ...string) *types.Question {
	q := &types.Question{QuestionText: text, CorrectIndices: correct}
	for i, a := range answers {
		q.Answers = append(q.Answers, types.Answer{Text: a, Position: i + 1})
	}
	return q
}

func TestPreprocessCleanQuestion(t *testing.T) {
	q := question("Welche Aussage zur Niereninsuffizienz trifft zu?", []int{1}, "Aussage A", "Aussage B")
	got := Preprocess(q, false)
	if len(got.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", got.Reasons)
	}
	if got.QualityScore != 1.0 {
		t.Errorf("expected quality 1.0, got %v", got.QualityScore)
	}
	if !got.RunOracle || !got.AllowAutoChange || got.ForceManualReview {
		t.Errorf("unexpected gates: %+v", got)
	}
}

func TestPreprocessHardReasonBlocksOracle(t *testing.T) {
	q := question("Welche Aussage zur Niereninsuffizienz trifft zu?", nil, "Aussage A", "Aussage B")
	got := Preprocess(q, false)
	if got.RunOracle {
		t.Error("missing correct indices must block the oracle")
	}
	if got.AllowAutoChange {
		t.Error("hard reason must block automatic changes")
	}
	if !got.ForceManualReview {
		t.Error("hard reason must force manual review")
	}
	if got.QualityScore != 0.62 {
		t.Errorf("expected quality 0.62, got %v", got.QualityScore)
	}
}

func TestPreprocessPlaceholderAnswer(t *testing.T) {
	q := question("Welche Aussage zur Herzinsuffizienz trifft hier zu?", []int{1}, "Aussage A", "?")
	got := Preprocess(q, false)
	if !containsReason(got.Reasons, ReasonInvalidAnswerOption) {
		t.Errorf("expected %s, got %v", ReasonInvalidAnswerOption, got.Reasons)
	}
	if got.RunOracle {
		t.Error("placeholder answer must block the oracle")
	}
}

func TestPreprocessMissingImage(t *testing.T) {
	q := question("Was zeigt die Abbildung der Lunge im Detail?", []int{1}, "A", "B")
	got := Preprocess(q, false)
	if !containsReason(got.Reasons, ReasonMissingImageAsset) {
		t.Errorf("expected %s, got %v", ReasonMissingImageAsset, got.Reasons)
	}
	if got.AllowAutoChange {
		t.Error("context reason must block automatic changes")
	}
	if !got.RunOracle {
		t.Error("context reason alone must not block the oracle")
	}

	withImage := Preprocess(q, true)
	if containsReason(withImage.Reasons, ReasonMissingImageAsset) {
		t.Error("resolved image asset must clear the reason")
	}
}

func TestPreprocessShortContext(t *testing.T) {
	q := question("Was ist richtig?", []int{1}, "A", "B")
	got := Preprocess(q, false)
	if !containsReason(got.Reasons, ReasonInsufficientContext) {
		t.Errorf("expected %s, got %v", ReasonInsufficientContext, got.Reasons)
	}
}

func TestPreprocessUncertainSource(t *testing.T) {
	q := question("Kann sich jemand erinnern was hier gefragt wurde genau?", []int{1}, "A", "B")
	got := Preprocess(q, false)
	if !containsReason(got.Reasons, ReasonUncertainSource) {
		t.Errorf("expected %s, got %v", ReasonUncertainSource, got.Reasons)
	}
	// Soft reason: oracle still runs, auto-change still allowed.
	if !got.RunOracle || !got.AllowAutoChange {
		t.Errorf("soft reason must not flip gates: %+v", got)
	}
}

func TestPreprocessQualityFloor(t *testing.T) {
	q := question("?", nil, "?", "?")
	got := Preprocess(q, false)
	if got.QualityScore < 0 {
		t.Errorf("quality must not go negative: %v", got.QualityScore)
	}
}

func TestComposeWeights(t *testing.T) {
	w := testPolicy().Weights
	got := Compose(Signals{
		AnswerConfidence: 1,
		TopicConfidence:  1,
		RetrievalQuality: 1,
		Agreement:        VerifierAgrees,
		EvidenceCount:    3,
	}, w)
	if got != 1.0 {
		t.Errorf("all-perfect signals should compose to 1.0, got %v", got)
	}

	got = Compose(Signals{}, w)
	// Zero signals still carry the absent-verifier and no-evidence priors.
	want := round4(w.Agreement*0.45 + w.EvidencePrior*0.35)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestComposeClampsInputs(t *testing.T) {
	w := testPolicy().Weights
	high := Compose(Signals{AnswerConfidence: 3.0, Agreement: VerifierAgrees, EvidenceCount: 5}, w)
	norm := Compose(Signals{AnswerConfidence: 1.0, Agreement: VerifierAgrees, EvidenceCount: 5}, w)
	if high != norm {
		t.Errorf("out-of-range input not clamped: %v != %v", high, norm)
	}
}

func TestAgreementSignal(t *testing.T) {
	cases := []struct {
		a    Agreement
		want float64
	}{
		{VerifierAgrees, 1.0},
		{VerifierAbsent, 0.45},
		{VerifierDisagrees, 0.2},
	}
	for _, tc := range cases {
		if got := agreementSignal(tc.a); got != tc.want {
			t.Errorf("agreementSignal(%v) = %v, want %v", tc.a, got, tc.want)
		}
	}
}

func TestEvidencePrior(t *testing.T) {
	cases := []struct {
		count int
		want  float64
	}{
		{0, 0.35}, {1, 0.55}, {2, 0.8}, {3, 1.0}, {7, 1.0},
	}
	for _, tc := range cases {
		if got := EvidencePrior(tc.count); got != tc.want {
			t.Errorf("EvidencePrior(%d) = %v, want %v", tc.count, got, tc.want)
		}
	}
}

func TestEscalateMonotone(t *testing.T) {
	s := StageUnverified
	s = Escalate(s, StageNeedsSecondary)
	if s != StageNeedsSecondary {
		t.Fatalf("expected secondary, got %v", s)
	}
	s = Escalate(s, StageNeedsTertiary)
	if s != StageNeedsTertiary {
		t.Fatalf("expected tertiary, got %v", s)
	}
	if Escalate(s, StageUnverified) != StageNeedsTertiary {
		t.Error("stage must never move backwards")
	}
}

func TestNeedsSecondaryTriggers(t *testing.T) {
	cfg := testPolicy()
	clean := PrimaryOutcome{
		AnswerConfidence: 0.95,
		TopicInitialConf: 0.95,
		TopicFinalConf:   0.95,
		TopicConfidence:  0.95,
	}
	if NeedsSecondary(clean, cfg) {
		t.Error("confident consistent outcome must not escalate")
	}

	cases := map[string]PrimaryOutcome{
		"recommend change":  {RecommendChange: true, AnswerConfidence: 0.95, TopicInitialConf: 0.95, TopicFinalConf: 0.95, TopicConfidence: 0.95},
		"low answer conf":   {AnswerConfidence: 0.79, TopicInitialConf: 0.95, TopicFinalConf: 0.95, TopicConfidence: 0.95},
		"needs maintenance": {NeedsMaintenance: true, AnswerConfidence: 0.95, TopicInitialConf: 0.95, TopicFinalConf: 0.95, TopicConfidence: 0.95},
		"low initial topic": {AnswerConfidence: 0.95, TopicInitialConf: 0.80, TopicFinalConf: 0.95, TopicConfidence: 0.95},
		"low final topic":   {AnswerConfidence: 0.95, TopicInitialConf: 0.95, TopicFinalConf: 0.80, TopicConfidence: 0.95},
		"topic off-candidate": {
			AnswerConfidence: 0.95, TopicInitialConf: 0.95, TopicFinalConf: 0.95,
			TopicOutsideCandidates: true, TopicConfidence: 0.90,
		},
	}
	for name, o := range cases {
		if !NeedsSecondary(o, cfg) {
			t.Errorf("%s: expected escalation", name)
		}
	}

	offCandidateConfident := PrimaryOutcome{
		AnswerConfidence: 0.95, TopicInitialConf: 0.95, TopicFinalConf: 0.95,
		TopicOutsideCandidates: true, TopicConfidence: 0.95,
	}
	if NeedsSecondary(offCandidateConfident, cfg) {
		t.Error("very confident off-candidate topic must not escalate")
	}
}

func TestNeedsTertiaryTriggers(t *testing.T) {
	cfg := testPolicy()
	clean := TertiaryOutcome{CombinedConfidence: 0.95}
	if NeedsTertiary(clean, cfg) {
		t.Error("clean outcome must not need review")
	}

	cases := map[string]TertiaryOutcome{
		"severe maintenance": {NeedsMaintenance: true, MaintenanceSeverity: 2, CombinedConfidence: 0.95},
		"disagree low conf":  {VerifierDisagrees: true, CombinedConfidence: 0.80},
		"topic changed":      {TopicChanged: true, CombinedConfidence: 0.95},
		"very low combined":  {CombinedConfidence: 0.40},
	}
	for name, o := range cases {
		if !NeedsTertiary(o, cfg) {
			t.Errorf("%s: expected review", name)
		}
	}

	mild := TertiaryOutcome{NeedsMaintenance: true, MaintenanceSeverity: 1, CombinedConfidence: 0.95}
	if NeedsTertiary(mild, cfg) {
		t.Error("severity below threshold must not need review")
	}
	disagreeConfident := TertiaryOutcome{VerifierDisagrees: true, CombinedConfidence: 0.90}
	if NeedsTertiary(disagreeConfident, cfg) {
		t.Error("confident disagreement must not need review")
	}
}

func TestShouldApplyChangeAllConditionsMet(t *testing.T) {
	cfg := testPolicy()
	r := ChangeRequest{
		AgreeWithChange:  true,
		VerifiedIndices:  []int{2},
		CurrentIndices:   []int{1},
		VerifyConfidence: 0.85,
		EvidenceCount:    3,
		RetrievalQuality: 0.9,
		AllowAutoChange:  true,
	}
	if !ShouldApplyChange(r, cfg) {
		t.Error("expected change to be applied")
	}
}

func TestShouldApplyChangeBlockers(t *testing.T) {
	cfg := testPolicy()
	base := ChangeRequest{
		AgreeWithChange:  true,
		VerifiedIndices:  []int{2},
		CurrentIndices:   []int{1},
		VerifyConfidence: 0.85,
		EvidenceCount:    3,
		RetrievalQuality: 0.9,
		AllowAutoChange:  true,
	}

	blockers := map[string]func(r ChangeRequest) ChangeRequest{
		"cannot judge":       func(r ChangeRequest) ChangeRequest { r.CannotJudge = true; return r },
		"disagrees":          func(r ChangeRequest) ChangeRequest { r.AgreeWithChange = false; return r },
		"no verified set":    func(r ChangeRequest) ChangeRequest { r.VerifiedIndices = nil; return r },
		"same set":           func(r ChangeRequest) ChangeRequest { r.VerifiedIndices = []int{1}; return r },
		"low confidence":     func(r ChangeRequest) ChangeRequest { r.VerifyConfidence = 0.5; return r },
		"auto change denied": func(r ChangeRequest) ChangeRequest { r.AllowAutoChange = false; return r },
		"no support": func(r ChangeRequest) ChangeRequest {
			r.EvidenceCount = 0
			r.RetrievalQuality = 0.01
			return r
		},
	}
	for name, mutate := range blockers {
		if ShouldApplyChange(mutate(base), cfg) {
			t.Errorf("%s: expected change to be blocked", name)
		}
	}

	// No evidence but decent retrieval quality is still acceptable.
	r := base
	r.EvidenceCount = 0
	r.RetrievalQuality = 0.5
	if !ShouldApplyChange(r, cfg) {
		t.Error("retrieval quality alone should satisfy the support check")
	}
}

func TestSameIndexSetIgnoresOrder(t *testing.T) {
	if !sameIndexSet([]int{2, 1}, []int{1, 2}) {
		t.Error("order must not matter")
	}
	if sameIndexSet([]int{1, 1}, []int{1, 2}) {
		t.Error("multiset mismatch must be detected")
	}
}

func TestMergeMaintenanceAccumulates(t *testing.T) {
	acc := types.Maintenance{}
	acc = MergeMaintenance(acc, types.Maintenance{NeedsMaintenance: true, Severity: 1, Reasons: []string{"a"}})
	acc = MergeMaintenance(acc, types.Maintenance{Severity: 3, Reasons: []string{"b", "a"}})
	acc = MergeMaintenance(acc, types.Maintenance{})

	if !acc.NeedsMaintenance {
		t.Error("flag must stick once set")
	}
	if acc.Severity != 3 {
		t.Errorf("expected severity 3, got %d", acc.Severity)
	}
	if len(acc.Reasons) != 2 {
		t.Errorf("expected deduplicated reasons, got %v", acc.Reasons)
	}
}

func TestApplyLowConfidenceFloor(t *testing.T) {
	acc := ApplyLowConfidenceFloor(types.Maintenance{}, 0.9, 0.9, 0.5, 0.65)
	if !acc.NeedsMaintenance || acc.Severity != 2 {
		t.Errorf("low combined confidence must flag severity 2: %+v", acc)
	}
	if !containsReason(acc.Reasons, lowConfidenceReason) {
		t.Errorf("missing reason: %v", acc.Reasons)
	}

	clean := ApplyLowConfidenceFloor(types.Maintenance{}, 0.9, 0.9, 0.9, 0.65)
	if clean.NeedsMaintenance {
		t.Error("confident question must not be flagged")
	}

	// Floor must not lower an already higher severity.
	high := ApplyLowConfidenceFloor(types.Maintenance{NeedsMaintenance: true, Severity: 3}, 0.5, 0.9, 0.9, 0.65)
	if high.Severity != 3 {
		t.Errorf("severity must not decrease: %d", high.Severity)
	}
}

func TestApplyForcedReview(t *testing.T) {
	acc := ApplyForcedReview(types.Maintenance{}, []string{ReasonMissingCorrectIndices})
	if !acc.NeedsMaintenance || acc.Severity != 3 {
		t.Errorf("forced review must flag severity 3: %+v", acc)
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
