package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/runtime"
)

// fakeClient serves scripted completions and per-text embeddings.
type fakeClient struct {
	completion    string
	tokenCount    int
	completeErr   error
	completeCalls int
	embeddings    map[string][]float32
	embedErr      error
}

func (c *fakeClient) Complete(ctx context.Context, primary runtime.ModelRef, params runtime.CompletionParams) (*runtime.CompletionResult, error) {
	c.completeCalls++
	if c.completeErr != nil {
		return nil, c.completeErr
	}
	return &runtime.CompletionResult{
		Content: c.completion,
		Usage:   runtime.Usage{TotalTokens: c.tokenCount},
	}, nil
}

func (c *fakeClient) Embed(ctx context.Context, params runtime.EmbedParams) (*runtime.EmbedResult, error) {
	if c.embedErr != nil {
		return nil, c.embedErr
	}
	embeddings := make([]runtime.Embedding, len(params.Texts))
	for i, text := range params.Texts {
		values, ok := c.embeddings[text]
		if !ok {
			return nil, fmt.Errorf("no embedding scripted for %q", text)
		}
		embeddings[i] = runtime.Embedding{Values: values, Dimensions: len(values)}
	}
	return &runtime.EmbedResult{Embeddings: embeddings}, nil
}

func testModel() *catalog.Model {
	return &catalog.Model{ID: "model-1", Name: "gpt-4o", Provider: catalog.ProviderOpenAI}
}

func testPrompt(expected string) *catalog.Prompt {
	p := &catalog.Prompt{
		ID:      "prompt-1",
		Content: "What is the capital of France?",
		Type:    catalog.PromptTypeFactualQA,
	}
	if expected != "" {
		p.Metadata = map[string]string{"expected_answer": expected}
	}
	return p
}

func TestFactualQA_SupportedMetrics(t *testing.T) {
	e := NewFactualQA(&fakeClient{})

	want := []string{"semantic_similarity", "answer_presence", "contradiction_score"}
	got := e.SupportedMetrics()
	if len(got) != len(want) {
		t.Fatalf("expected %d metrics, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("metric %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFactualQA_MissingExpectedAnswerFailsBeforeProviderCall(t *testing.T) {
	client := &fakeClient{}
	e := NewFactualQA(client)

	_, err := e.RunEvaluation(context.Background(), testModel(), testPrompt(""))
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if client.completeCalls != 0 {
		t.Errorf("no provider call should happen without expected_answer, got %d", client.completeCalls)
	}
}

func TestFactualQA_RunEvaluation(t *testing.T) {
	client := &fakeClient{
		completion: "The capital of France is Paris.",
		tokenCount: 18,
		embeddings: map[string][]float32{
			"The capital of France is Paris.": {1, 0},
			"Paris":                           {1, 0},
		},
	}
	e := NewFactualQA(client)

	result, err := e.RunEvaluation(context.Background(), testModel(), testPrompt("Paris"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Completion != "The capital of France is Paris." {
		t.Errorf("unexpected completion: %q", result.Completion)
	}
	if result.TokenCount != 18 {
		t.Errorf("expected 18 tokens, got %d", result.TokenCount)
	}

	// Scores carry exactly the supported metrics
	supported := make(map[string]bool)
	for _, m := range e.SupportedMetrics() {
		supported[m] = true
	}
	if len(result.Scores) != len(supported) {
		t.Errorf("expected %d scores, got %d", len(supported), len(result.Scores))
	}
	for key := range result.Scores {
		if !supported[key] {
			t.Errorf("unexpected score key %q", key)
		}
	}

	if sim := result.Scores["semantic_similarity"]; math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("identical embeddings should give similarity 1, got %f", sim)
	}
	if presence := result.Scores["answer_presence"]; presence != 1.0 {
		t.Errorf("expected answer_presence 1, got %f", presence)
	}
}

func TestFactualQA_ContradictionComplementsSimilarity(t *testing.T) {
	// 45 degrees apart: similarity cos(45°) ≈ 0.7071
	client := &fakeClient{
		completion: "maybe",
		embeddings: map[string][]float32{
			"maybe": {1, 0},
			"yes":   {1, 1},
		},
	}
	e := NewFactualQA(client)

	scores, err := e.CalculateMetrics(context.Background(), "maybe", "yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := scores["semantic_similarity"] + scores["contradiction_score"]
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("similarity + contradiction should equal 1, got %f", sum)
	}
}

func TestFactualQA_AnswerPresence(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		expected   string
		want       float64
	}{
		{
			name:       "exact match",
			completion: "Paris",
			expected:   "Paris",
			want:       1.0,
		},
		{
			name:       "case insensitive",
			completion: "the capital is PARIS",
			expected:   "paris",
			want:       1.0,
		},
		{
			name:       "order insensitive",
			completion: "tower Eiffel the",
			expected:   "the Eiffel tower",
			want:       1.0,
		},
		{
			name:       "partial overlap",
			completion: "Paris is in France",
			expected:   "Paris Germany",
			want:       0.5,
		},
		{
			name:       "no overlap",
			completion: "London",
			expected:   "Paris",
			want:       0.0,
		},
		{
			name:       "repeated tokens count once",
			completion: "Paris Paris Paris",
			expected:   "Paris France",
			want:       0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := answerPresence(tt.completion, tt.expected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("answerPresence(%q, %q) = %f, want %f", tt.completion, tt.expected, got, tt.want)
			}
		})
	}
}

func TestFactualQA_AnswerPresenceEmptyExpected(t *testing.T) {
	_, err := answerPresence("anything", "   ")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError for empty expected tokens, got %v", err)
	}
}

func TestFactualQA_EmbeddingFailureWrapsIntoEvaluationError(t *testing.T) {
	client := &fakeClient{
		completion: "Paris",
		embedErr:   &runtime.ProviderError{Provider: "openai", Kind: runtime.ErrorKindTransient, Message: "down"},
	}
	e := NewFactualQA(client)

	_, err := e.CalculateMetrics(context.Background(), "Paris", "Paris")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}

	// The provider classification is preserved through the wrap
	var perr *runtime.ProviderError
	if !errors.As(err, &perr) {
		t.Error("expected wrapped ProviderError to remain inspectable")
	}
}

func TestFactualQA_ValidateResponse(t *testing.T) {
	client := &fakeClient{
		embeddings: map[string][]float32{
			"close":  {1, 0.1},
			"target": {1, 0},
			"far":    {0, 1},
		},
	}
	e := NewFactualQA(client)
	ctx := context.Background()

	valid, err := e.ValidateResponse(ctx, "close", "target")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("high-similarity completion should validate")
	}

	valid, err = e.ValidateResponse(ctx, "far", "target")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Error("orthogonal completion should not validate")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "dimension mismatch", a: []float32{1, 0}, b: []float32{1}, wantErr: true},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}
