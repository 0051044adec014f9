// Package evaluation provides evaluation records and their lifecycle.
package evaluation

import (
	"errors"
	"time"

	"github.com/instantcocoa/rehoboam/services/catalog"
)

var (
	// ErrNotFound is returned when a requested evaluation does not exist.
	ErrNotFound = errors.New("evaluation not found")

	// ErrAlreadySettled is returned when a settlement is attempted on an
	// evaluation that already reached a terminal state. Duplicate task
	// deliveries hit this; the first settlement wins.
	ErrAlreadySettled = errors.New("evaluation already settled")
)

// Status represents the lifecycle state of an evaluation. It is derived
// from the record's fields, never stored.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Evaluation represents a single model-against-prompt evaluation.
type Evaluation struct {
	ID         string
	ModelID    string
	PromptID   string
	Completion *string
	Scores     map[string]float64
	Error      *string
	DurationMs *int64
	TokenCount *int
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Status derives the lifecycle state from the record's fields.
func (e *Evaluation) Status() Status {
	if e.Error != nil {
		return StatusFailed
	}
	if e.Completion != nil && e.Scores != nil {
		return StatusSuccess
	}
	return StatusPending
}

// Settled reports whether the evaluation reached a terminal state.
func (e *Evaluation) Settled() bool {
	return e.Status() != StatusPending
}

// FailureCase is an annotation recorded against a failed evaluation.
type FailureCase struct {
	ID           string
	EvaluationID string
	FailureType  string
	Severity     int // 1 (minor) to 5 (critical)
	Description  string
	Metadata     map[string]string
	CreatedAt    time.Time
}

// TaskHandle identifies an enqueued evaluation task.
type TaskHandle struct {
	TaskID       string
	EvaluationID string
	EnqueuedAt   time.Time
}

// ListQuery contains filters for listing evaluations.
type ListQuery struct {
	ModelID    string
	PromptID   string
	PromptType catalog.PromptType
	Limit      int
	Offset     int
}

// CopyEvaluation creates a deep copy of an evaluation.
func CopyEvaluation(e *Evaluation) *Evaluation {
	if e == nil {
		return nil
	}

	cp := *e
	if e.Completion != nil {
		v := *e.Completion
		cp.Completion = &v
	}
	if e.Error != nil {
		v := *e.Error
		cp.Error = &v
	}
	if e.DurationMs != nil {
		v := *e.DurationMs
		cp.DurationMs = &v
	}
	if e.TokenCount != nil {
		v := *e.TokenCount
		cp.TokenCount = &v
	}
	if e.Scores != nil {
		cp.Scores = make(map[string]float64, len(e.Scores))
		for k, v := range e.Scores {
			cp.Scores[k] = v
		}
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
