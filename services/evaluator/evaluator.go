// Package evaluator provides per-prompt-type evaluation strategies.
package evaluator

import (
	"context"
	"fmt"

	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/runtime"
)

// Client is the completion and embedding surface evaluators need.
// *runtime.Client satisfies it.
type Client interface {
	Complete(ctx context.Context, primary runtime.ModelRef, params runtime.CompletionParams) (*runtime.CompletionResult, error)
	Embed(ctx context.Context, params runtime.EmbedParams) (*runtime.EmbedResult, error)
}

// Result is the complete outcome of one evaluation run.
type Result struct {
	Completion string
	Scores     map[string]float64
	TokenCount int
}

// Evaluator scores model completions for one prompt type.
type Evaluator interface {
	// Type returns the prompt type this evaluator handles.
	Type() catalog.PromptType

	// SupportedMetrics returns the metric keys this evaluator emits,
	// in a fixed order. Scores maps never carry other keys.
	SupportedMetrics() []string

	// GetCompletion obtains a completion and its token count.
	GetCompletion(ctx context.Context, model *catalog.Model, prompt *catalog.Prompt) (string, int, error)

	// CalculateMetrics scores a completion against the expected answer.
	CalculateMetrics(ctx context.Context, completion, expected string) (map[string]float64, error)

	// ValidateResponse reports whether a completion passes the
	// evaluator's acceptance bar.
	ValidateResponse(ctx context.Context, completion, expected string) (bool, error)

	// RunEvaluation composes the above into one run. It returns a
	// fully populated Result or an error, never a partial result.
	RunEvaluation(ctx context.Context, model *catalog.Model, prompt *catalog.Prompt) (*Result, error)
}

// EvaluationError reports a failed evaluation precondition or a failed
// metric computation.
type EvaluationError struct {
	Reason string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("evaluation failed: %s", e.Reason)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// UnsupportedTypeError reports a prompt type with no registered
// evaluator.
type UnsupportedTypeError struct {
	Type catalog.PromptType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no evaluator registered for prompt type %q", e.Type)
}

// Constructor builds an evaluator bound to a client.
type Constructor func(client Client) Evaluator

// Registry maps prompt types to evaluator constructors. The set is
// closed at startup; registrations are checked, lookups of missing
// types return UnsupportedTypeError.
type Registry struct {
	client       Client
	constructors map[catalog.PromptType]Constructor
}

// NewRegistry creates an empty evaluator registry.
func NewRegistry(client Client) *Registry {
	return &Registry{
		client:       client,
		constructors: make(map[catalog.PromptType]Constructor),
	}
}

// Register binds a constructor to a prompt type. Unknown types, nil
// constructors, and duplicate registrations are rejected.
func (r *Registry) Register(t catalog.PromptType, c Constructor) error {
	if !t.Valid() {
		return fmt.Errorf("unknown prompt type: %q", t)
	}
	if c == nil {
		return fmt.Errorf("nil constructor for prompt type %q", t)
	}
	if _, exists := r.constructors[t]; exists {
		return fmt.Errorf("evaluator already registered for prompt type %q", t)
	}
	r.constructors[t] = c
	return nil
}

// Supports reports whether an evaluator is registered for t.
func (r *Registry) Supports(t catalog.PromptType) bool {
	_, ok := r.constructors[t]
	return ok
}

// Types returns the registered prompt types.
func (r *Registry) Types() []catalog.PromptType {
	types := make([]catalog.PromptType, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	return types
}

// ForType constructs the evaluator for a prompt type.
func (r *Registry) ForType(t catalog.PromptType) (Evaluator, error) {
	c, ok := r.constructors[t]
	if !ok {
		return nil, &UnsupportedTypeError{Type: t}
	}
	return c(r.client), nil
}

// DefaultRegistry returns a registry with the built-in evaluators.
func DefaultRegistry(client Client) (*Registry, error) {
	r := NewRegistry(client)
	if err := r.Register(catalog.PromptTypeFactualQA, func(c Client) Evaluator {
		return NewFactualQA(c)
	}); err != nil {
		return nil, err
	}
	return r, nil
}
