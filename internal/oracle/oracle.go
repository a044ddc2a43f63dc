// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle mediates between the deterministic pipeline and the
// model that judges questions. It owns prompt construction, response
// decoding and validation, and retry handling; the pipeline only sees
// typed results or classified failures.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// Backend abstracts the model API so tests can supply a mock. A call
// takes one rendered prompt and returns the model's raw text, which
// must be a single JSON object.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TransientError marks a backend failure worth retrying: rate limits,
// server errors, network trouble.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrMalformed wraps responses that decoded but failed validation.
// Retrying a malformed response is pointless; the caller treats the
// verdict as absent.
var ErrMalformed = errors.New("malformed oracle response")

// Request is the judging context for one question, shared by all
// passes.
type Request struct {
	Question         *types.Question
	Candidates       []types.TopicCandidate
	Evidence         []types.EvidenceItem
	RetrievalQuality float64
	ImageMatches     []types.ImageMatch
}

// PrimaryResult is the decoded first-pass verdict.
type PrimaryResult struct {
	TopicInitial types.TopicAssessment `json:"topicInitial"`
	AnswerReview types.AnswerReview    `json:"answerReview"`
	Maintenance  types.Maintenance     `json:"maintenance"`
	TopicFinal   types.TopicAssessment `json:"topicFinal"`
	Abstraction  string                `json:"abstraction"`
}

// VerifyResult is the decoded verification-pass verdict.
type VerifyResult struct {
	CannotJudge            bool                   `json:"cannotJudge"`
	AgreeWithChange        bool                   `json:"agreeWithChange"`
	VerifiedCorrectIndices []int                  `json:"verifiedCorrectIndices"`
	Confidence             float64                `json:"confidence"`
	TopicFinal             *types.TopicAssessment `json:"topicFinal,omitempty"`
	Maintenance            *types.Maintenance     `json:"maintenance,omitempty"`
	Reason                 string                 `json:"reason"`
}

// ReviewResult is the decoded review-pass verdict.
type ReviewResult struct {
	FinalCorrectIndices   []int   `json:"finalCorrectIndices"`
	FinalTopicKey         string  `json:"finalTopicKey"`
	Comment               string  `json:"comment"`
	RecommendManualReview bool    `json:"recommendManualReview"`
	Confidence            float64 `json:"confidence"`
}

// Oracle runs judging passes against configured backends. The verifier
// backend may use a different model than the primary one.
type Oracle struct {
	primary    Backend
	verifier   Backend
	maxRetries int
}

// New builds an Oracle. verifier may equal primary.
func New(primary, verifier Backend, maxRetries int) *Oracle {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Oracle{primary: primary, verifier: verifier, maxRetries: maxRetries}
}

// Primary runs the first assessment pass.
func (o *Oracle) Primary(ctx context.Context, req Request) (*PrimaryResult, error) {
	prompt, err := renderPrimaryPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("rendering primary prompt: %w", err)
	}
	raw, err := callWithRetry(ctx, o.primary, prompt, o.maxRetries)
	if err != nil {
		return nil, err
	}
	var result PrimaryResult
	if err := decodeStrict(raw, &result); err != nil {
		return nil, err
	}
	if err := result.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &result, nil
}

// Verify runs the verification pass over the primary verdict.
func (o *Oracle) Verify(ctx context.Context, req Request, prior *PrimaryResult) (*VerifyResult, error) {
	prompt, err := renderVerifyPrompt(req, prior)
	if err != nil {
		return nil, fmt.Errorf("rendering verify prompt: %w", err)
	}
	raw, err := callWithRetry(ctx, o.verifier, prompt, o.maxRetries)
	if err != nil {
		return nil, err
	}
	var result VerifyResult
	if err := decodeStrict(raw, &result); err != nil {
		return nil, err
	}
	if err := result.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &result, nil
}

// Review runs the tertiary review pass.
func (o *Oracle) Review(ctx context.Context, req Request, prior *PrimaryResult, verify *VerifyResult) (*ReviewResult, error) {
	prompt, err := renderReviewPrompt(req, prior, verify)
	if err != nil {
		return nil, fmt.Errorf("rendering review prompt: %w", err)
	}
	raw, err := callWithRetry(ctx, o.verifier, prompt, o.maxRetries)
	if err != nil {
		return nil, err
	}
	var result ReviewResult
	if err := decodeStrict(raw, &result); err != nil {
		return nil, err
	}
	if err := result.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &result, nil
}

// decodeStrict parses the model output as one JSON object, tolerating
// surrounding prose by extracting the outermost braces.
func decodeStrict(raw string, v any) error {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (r *PrimaryResult) validate() error {
	for name, c := range map[string]float64{
		"topicInitial": r.TopicInitial.Confidence,
		"topicFinal":   r.TopicFinal.Confidence,
		"answerReview": r.AnswerReview.Confidence,
	} {
		if c < 0 || c > 1 {
			return fmt.Errorf("%s confidence %v out of range [0,1]", name, c)
		}
	}
	if r.TopicInitial.TopicKey == "" || r.TopicFinal.TopicKey == "" {
		return fmt.Errorf("missing topic key")
	}
	if r.AnswerReview.RecommendChange && len(r.AnswerReview.ProposedCorrectIndices) == 0 {
		return fmt.Errorf("recommended change without proposed indices")
	}
	return nil
}

func (r *VerifyResult) validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	if !r.CannotJudge && r.AgreeWithChange && len(r.VerifiedCorrectIndices) == 0 {
		return fmt.Errorf("agreement without verified indices")
	}
	return nil
}

func (r *ReviewResult) validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	return nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff. Only
// transient failures are retried; malformed or permanent errors return
// immediately.
func callWithRetry(ctx context.Context, backend Backend, prompt string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, err := backend.Complete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		if !IsTransient(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
