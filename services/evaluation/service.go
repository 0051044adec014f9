package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/evaluator"
)

// Queue is the enqueue side of the evaluation task queue.
type Queue interface {
	Enqueue(ctx context.Context, evaluationID string) (TaskHandle, error)
}

// EvaluatorRegistry reports which prompt types can be evaluated.
type EvaluatorRegistry interface {
	Supports(t catalog.PromptType) bool
}

// CreateInput contains input for creating an evaluation.
type CreateInput struct {
	ModelID  string
	PromptID string
	Metadata map[string]string
}

// BatchResult holds the outcome of one submission within a batch.
type BatchResult struct {
	Input      CreateInput
	Evaluation *Evaluation
	Task       TaskHandle
	Err        error
}

// Service handles evaluation business logic.
type Service struct {
	store      Store
	catalog    catalog.Store
	queue      Queue
	evaluators EvaluatorRegistry
	logger     *slog.Logger
}

// NewService creates a new evaluation service.
func NewService(store Store, catalogStore catalog.Store, queue Queue, evaluators EvaluatorRegistry, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		catalog:    catalogStore,
		queue:      queue,
		evaluators: evaluators,
		logger:     logger.With("component", "evaluation"),
	}
}

// Create validates the request, persists a pending evaluation, and
// enqueues it for asynchronous execution.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Evaluation, TaskHandle, error) {
	model, err := s.catalog.GetModel(ctx, input.ModelID)
	if err != nil {
		return nil, TaskHandle{}, fmt.Errorf("failed to get model: %w", err)
	}
	if model == nil {
		return nil, TaskHandle{}, fmt.Errorf("model %s: %w", input.ModelID, catalog.ErrNotFound)
	}

	prompt, err := s.catalog.GetPrompt(ctx, input.PromptID)
	if err != nil {
		return nil, TaskHandle{}, fmt.Errorf("failed to get prompt: %w", err)
	}
	if prompt == nil {
		return nil, TaskHandle{}, fmt.Errorf("prompt %s: %w", input.PromptID, catalog.ErrNotFound)
	}

	if !s.evaluators.Supports(prompt.Type) {
		return nil, TaskHandle{}, &evaluator.UnsupportedTypeError{Type: prompt.Type}
	}

	eval := &Evaluation{
		ID:        uuid.New().String(),
		ModelID:   input.ModelID,
		PromptID:  input.PromptID,
		Metadata:  input.Metadata,
		CreatedAt: time.Now(),
	}

	if err := s.store.Create(ctx, eval); err != nil {
		return nil, TaskHandle{}, fmt.Errorf("failed to create evaluation: %w", err)
	}

	task, err := s.queue.Enqueue(ctx, eval.ID)
	if err != nil {
		return nil, TaskHandle{}, fmt.Errorf("failed to enqueue evaluation: %w", err)
	}

	s.logger.Info("evaluation enqueued",
		"evaluation_id", eval.ID,
		"model_id", input.ModelID,
		"prompt_id", input.PromptID,
		"task_id", task.TaskID)

	return eval, task, nil
}

// CreateBatch submits each input independently. A failed submission is
// reported in its slot and never aborts the rest; the result order
// matches the input order.
func (s *Service) CreateBatch(ctx context.Context, inputs []CreateInput) []BatchResult {
	results := make([]BatchResult, len(inputs))
	for i, input := range inputs {
		eval, task, err := s.Create(ctx, input)
		results[i] = BatchResult{
			Input:      input,
			Evaluation: eval,
			Task:       task,
			Err:        err,
		}
		if err != nil {
			s.logger.Warn("batch submission failed",
				"model_id", input.ModelID,
				"prompt_id", input.PromptID,
				"error", err)
		}
	}
	return results
}

// Get retrieves an evaluation by ID.
func (s *Service) Get(ctx context.Context, id string) (*Evaluation, error) {
	eval, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if eval == nil {
		return nil, fmt.Errorf("evaluation %s: %w", id, ErrNotFound)
	}
	return eval, nil
}

// List returns evaluations matching the query.
func (s *Service) List(ctx context.Context, query ListQuery) ([]*Evaluation, int, error) {
	evals, total, err := s.store.List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return evals, total, nil
}

// Delete removes an evaluation and its failure cases.
func (s *Service) Delete(ctx context.Context, id string) error {
	eval, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get evaluation: %w", err)
	}
	if eval == nil {
		return fmt.Errorf("evaluation %s: %w", id, ErrNotFound)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}
	return nil
}

// RecordFailureCase annotates an evaluation with a failure case.
func (s *Service) RecordFailureCase(ctx context.Context, evaluationID, failureType string, severity int, description string, metadata map[string]string) (*FailureCase, error) {
	if severity < 1 || severity > 5 {
		return nil, fmt.Errorf("severity must be between 1 and 5, got %d", severity)
	}

	eval, err := s.store.Get(ctx, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if eval == nil {
		return nil, fmt.Errorf("evaluation %s: %w", evaluationID, ErrNotFound)
	}

	fc := &FailureCase{
		ID:           uuid.New().String(),
		EvaluationID: evaluationID,
		FailureType:  failureType,
		Severity:     severity,
		Description:  description,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateFailureCase(ctx, fc); err != nil {
		return nil, fmt.Errorf("failed to record failure case: %w", err)
	}
	return fc, nil
}

// ListFailureCases returns failure cases for an evaluation.
func (s *Service) ListFailureCases(ctx context.Context, evaluationID string) ([]*FailureCase, error) {
	cases, err := s.store.ListFailureCases(ctx, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure cases: %w", err)
	}
	return cases, nil
}
