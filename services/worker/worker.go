// Package worker runs enqueued evaluations against their models.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/evaluation"
	"github.com/instantcocoa/rehoboam/services/evaluator"
)

// Task is the wire payload for one evaluation task.
type Task struct {
	TaskID       string    `json:"task_id"`
	EvaluationID string    `json:"evaluation_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Queue is both ends of the evaluation task queue. Delivery is
// at-least-once; settlement CAS in the store makes redelivery safe.
type Queue interface {
	evaluation.Queue

	// EnqueueBatch enqueues each id and returns a handle per id.
	EnqueueBatch(ctx context.Context, evaluationIDs []string) ([]evaluation.TaskHandle, error)

	// Dequeue pops the next task, waiting up to the queue's poll
	// window. Returns (nil, nil) when no task arrived in time.
	Dequeue(ctx context.Context) (*Task, error)
}

// TaskResultStatus is the terminal status of one task execution.
type TaskResultStatus string

const (
	TaskStatusSuccess TaskResultStatus = "success"
	TaskStatusError   TaskResultStatus = "error"
)

// TaskResult summarizes one task execution.
type TaskResult struct {
	EvaluationID string
	Status       TaskResultStatus
	Scores       map[string]float64
	Error        string
}

// Config contains worker pool settings.
type Config struct {
	// Concurrency is the number of task-running goroutines.
	Concurrency int

	// TaskTimeout bounds a single evaluation run.
	TaskTimeout time.Duration
}

// Worker consumes evaluation tasks and settles their records.
type Worker struct {
	queue      Queue
	evals      evaluation.Store
	catalog    catalog.Store
	evaluators *evaluator.Registry
	config     Config
	logger     *slog.Logger
}

// New creates a worker.
func New(queue Queue, evals evaluation.Store, catalogStore catalog.Store, evaluators *evaluator.Registry, config Config, logger *slog.Logger) *Worker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = time.Hour
	}
	return &Worker{
		queue:      queue,
		evals:      evals,
		catalog:    catalogStore,
		evaluators: evaluators,
		config:     config,
		logger:     logger.With("component", "worker"),
	}
}

// Run consumes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker starting", "concurrency", w.config.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}
	wg.Wait()

	w.logger.Info("worker stopped")
	return ctx.Err()
}

func (w *Worker) consume(ctx context.Context, id int) {
	logger := w.logger.With("consumer", id)
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("dequeue failed", "error", err)
			continue
		}
		if task == nil {
			// Poll window elapsed with no task
			if ctx.Err() != nil {
				return
			}
			continue
		}

		result := w.RunTask(ctx, task.EvaluationID)
		logger.Info("task finished",
			"task_id", task.TaskID,
			"evaluation_id", result.EvaluationID,
			"status", result.Status)
	}
}

// RunTask executes one evaluation task end to end and settles the
// record. It never panics: panics inside the run become failed
// settlements.
func (w *Worker) RunTask(ctx context.Context, evaluationID string) (result TaskResult) {
	result = TaskResult{EvaluationID: evaluationID}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			errText := fmt.Sprintf("evaluation panicked: %v", r)
			w.logger.Error("task panicked", "evaluation_id", evaluationID, "panic", r)
			w.settleFailure(ctx, evaluationID, errText, time.Since(started).Milliseconds())
			result.Status = TaskStatusError
			result.Error = errText
		}
	}()

	eval, err := w.evals.Get(ctx, evaluationID)
	if err != nil {
		result.Status = TaskStatusError
		result.Error = fmt.Sprintf("failed to load evaluation: %v", err)
		return result
	}
	if eval == nil {
		// Nothing to settle
		result.Status = TaskStatusError
		result.Error = fmt.Sprintf("evaluation not found: %s", evaluationID)
		return result
	}

	// Redelivered task for a settled record: report the existing
	// terminal state and leave the row alone.
	if eval.Settled() {
		w.logger.Info("evaluation already settled, skipping",
			"evaluation_id", evaluationID,
			"status", eval.Status())
		return resultFromSettled(eval)
	}

	model, err := w.catalog.GetModel(ctx, eval.ModelID)
	if err != nil {
		return w.fail(ctx, evaluationID, fmt.Sprintf("failed to load model: %v", err), time.Since(started).Milliseconds())
	}
	if model == nil {
		return w.fail(ctx, evaluationID, fmt.Sprintf("model not found: %s", eval.ModelID), time.Since(started).Milliseconds())
	}

	prompt, err := w.catalog.GetPrompt(ctx, eval.PromptID)
	if err != nil {
		return w.fail(ctx, evaluationID, fmt.Sprintf("failed to load prompt: %v", err), time.Since(started).Milliseconds())
	}
	if prompt == nil {
		return w.fail(ctx, evaluationID, fmt.Sprintf("prompt not found: %s", eval.PromptID), time.Since(started).Milliseconds())
	}

	ev, err := w.evaluators.ForType(prompt.Type)
	if err != nil {
		return w.fail(ctx, evaluationID, err.Error(), time.Since(started).Milliseconds())
	}

	runCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	runResult, err := ev.RunEvaluation(runCtx, model, prompt)
	durationMs := time.Since(started).Milliseconds()

	if err != nil {
		return w.fail(ctx, evaluationID, err.Error(), durationMs)
	}

	if err := w.evals.SettleSuccess(ctx, evaluationID, runResult.Completion, runResult.Scores, durationMs, runResult.TokenCount); err != nil {
		if errors.Is(err, evaluation.ErrAlreadySettled) {
			// Lost the race with a duplicate delivery
			w.logger.Info("duplicate delivery settled first", "evaluation_id", evaluationID)
			return TaskResult{EvaluationID: evaluationID, Status: TaskStatusSuccess, Scores: runResult.Scores}
		}
		result.Status = TaskStatusError
		result.Error = fmt.Sprintf("failed to settle evaluation: %v", err)
		return result
	}

	return TaskResult{
		EvaluationID: evaluationID,
		Status:       TaskStatusSuccess,
		Scores:       runResult.Scores,
	}
}

// RunBatch executes each id independently. Failures are isolated per
// slot and the result order matches the input order.
func (w *Worker) RunBatch(ctx context.Context, evaluationIDs []string) []TaskResult {
	results := make([]TaskResult, len(evaluationIDs))
	for i, id := range evaluationIDs {
		results[i] = w.RunTask(ctx, id)
	}
	return results
}

func (w *Worker) fail(ctx context.Context, evaluationID, errText string, durationMs int64) TaskResult {
	w.settleFailure(ctx, evaluationID, errText, durationMs)
	return TaskResult{
		EvaluationID: evaluationID,
		Status:       TaskStatusError,
		Error:        errText,
	}
}

func (w *Worker) settleFailure(ctx context.Context, evaluationID, errText string, durationMs int64) {
	err := w.evals.SettleFailure(ctx, evaluationID, errText, durationMs)
	if err == nil || errors.Is(err, evaluation.ErrAlreadySettled) {
		return
	}
	w.logger.Error("failed to settle evaluation",
		"evaluation_id", evaluationID,
		"error", err)
}

func resultFromSettled(eval *evaluation.Evaluation) TaskResult {
	result := TaskResult{EvaluationID: eval.ID}
	if eval.Status() == evaluation.StatusSuccess {
		result.Status = TaskStatusSuccess
		result.Scores = eval.Scores
	} else {
		result.Status = TaskStatusError
		if eval.Error != nil {
			result.Error = *eval.Error
		}
	}
	return result
}
