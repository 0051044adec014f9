package evaluator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/runtime"
)

const (
	// expectedAnswerKey is the prompt metadata key holding the
	// reference answer.
	expectedAnswerKey = "expected_answer"

	// validSimilarityThreshold is the semantic similarity a completion
	// must exceed to be considered valid.
	validSimilarityThreshold = 0.7
)

// Factual-QA metric keys, in emission order.
const (
	MetricSemanticSimilarity = "semantic_similarity"
	MetricAnswerPresence     = "answer_presence"
	MetricContradictionScore = "contradiction_score"
)

// FactualQA evaluates factual question answering against a reference
// answer stored in prompt metadata.
type FactualQA struct {
	client Client
}

// NewFactualQA creates a factual-QA evaluator.
func NewFactualQA(client Client) *FactualQA {
	return &FactualQA{client: client}
}

func (e *FactualQA) Type() catalog.PromptType {
	return catalog.PromptTypeFactualQA
}

func (e *FactualQA) SupportedMetrics() []string {
	return []string{
		MetricSemanticSimilarity,
		MetricAnswerPresence,
		MetricContradictionScore,
	}
}

// GetCompletion asks the model the prompt and returns the completion
// text and token count.
func (e *FactualQA) GetCompletion(ctx context.Context, model *catalog.Model, prompt *catalog.Prompt) (string, int, error) {
	ref := runtime.ModelRef{
		Provider: string(model.Provider),
		Model:    model.Name,
	}

	result, err := e.client.Complete(ctx, ref, runtime.CompletionParams{
		Messages: []runtime.Message{
			{Role: "user", Content: prompt.Content},
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("completion failed: %w", err)
	}

	return result.Content, result.Usage.TotalTokens, nil
}

// CalculateMetrics computes the full factual-QA score set. It returns
// either every supported metric or an error, never a partial map.
func (e *FactualQA) CalculateMetrics(ctx context.Context, completion, expected string) (map[string]float64, error) {
	similarity, err := e.semanticSimilarity(ctx, completion, expected)
	if err != nil {
		return nil, err
	}

	presence, err := answerPresence(completion, expected)
	if err != nil {
		return nil, err
	}

	return map[string]float64{
		MetricSemanticSimilarity: similarity,
		MetricAnswerPresence:     presence,
		// The contradiction signal is derived from similarity, not an
		// independent measurement.
		MetricContradictionScore: 1 - similarity,
	}, nil
}

// ValidateResponse reports whether the completion is semantically close
// enough to the expected answer.
func (e *FactualQA) ValidateResponse(ctx context.Context, completion, expected string) (bool, error) {
	similarity, err := e.semanticSimilarity(ctx, completion, expected)
	if err != nil {
		return false, err
	}
	return similarity > validSimilarityThreshold, nil
}

// RunEvaluation runs the full factual-QA flow against one model and
// prompt.
func (e *FactualQA) RunEvaluation(ctx context.Context, model *catalog.Model, prompt *catalog.Prompt) (*Result, error) {
	// Fail before any provider call when the prompt has no reference.
	expected := strings.TrimSpace(prompt.Metadata[expectedAnswerKey])
	if expected == "" {
		return nil, &EvaluationError{
			Reason: fmt.Sprintf("prompt %s has no %s metadata", prompt.ID, expectedAnswerKey),
		}
	}

	completion, tokenCount, err := e.GetCompletion(ctx, model, prompt)
	if err != nil {
		return nil, err
	}

	scores, err := e.CalculateMetrics(ctx, completion, expected)
	if err != nil {
		return nil, err
	}

	return &Result{
		Completion: completion,
		Scores:     scores,
		TokenCount: tokenCount,
	}, nil
}

// semanticSimilarity embeds both texts and returns their cosine
// similarity.
func (e *FactualQA) semanticSimilarity(ctx context.Context, completion, expected string) (float64, error) {
	result, err := e.client.Embed(ctx, runtime.EmbedParams{
		Texts: []string{completion, expected},
	})
	if err != nil {
		return 0, &EvaluationError{Reason: "embedding failed", Err: err}
	}
	if len(result.Embeddings) != 2 {
		return 0, &EvaluationError{
			Reason: fmt.Sprintf("expected 2 embeddings, got %d", len(result.Embeddings)),
		}
	}

	return cosineSimilarity(result.Embeddings[0].Values, result.Embeddings[1].Values)
}

// answerPresence returns the fraction of expected-answer tokens found
// in the completion. Tokenization is case-insensitive whitespace
// splitting with set semantics.
func answerPresence(completion, expected string) (float64, error) {
	expectedTokens := tokenSet(expected)
	if len(expectedTokens) == 0 {
		return 0, &EvaluationError{Reason: "expected answer has no tokens"}
	}

	completionTokens := tokenSet(completion)
	found := 0
	for token := range expectedTokens {
		if completionTokens[token] {
			found++
		}
	}

	return float64(found) / float64(len(expectedTokens)), nil
}

func tokenSet(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(s)) {
		tokens[t] = true
	}
	return tokens
}

// cosineSimilarity computes the cosine of the angle between two
// vectors.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &EvaluationError{
			Reason: fmt.Sprintf("embedding dimensions differ: %d vs %d", len(a), len(b)),
		}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, &EvaluationError{Reason: "zero-magnitude embedding"}
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
