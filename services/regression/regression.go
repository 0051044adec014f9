// Package regression detects score regressions across evaluation history.
package regression

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/instantcocoa/rehoboam/pkg/config"
	"github.com/instantcocoa/rehoboam/services/catalog"
)

// Severity grades a detected regression.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RegressionLog is an append-only record of one detected regression.
// Logs are never mutated after the fact.
type RegressionLog struct {
	ID             string
	ModelID        string
	EvaluationType catalog.PromptType
	Metric         string
	PreviousScore  float64
	CurrentScore   float64
	Difference     float64
	Severity       Severity
	Metadata       map[string]string
	CreatedAt      time.Time
}

// Store defines the interface for regression log storage.
type Store interface {
	// Append records regression log entries. Either every entry is
	// stored or none are.
	Append(ctx context.Context, logs ...*RegressionLog) error

	// List returns log entries for a model, newest first.
	List(ctx context.Context, modelID string, promptType catalog.PromptType, limit int) ([]*RegressionLog, error)
}

// StoreOptions contains configuration for creating a store.
type StoreOptions struct {
	Backend config.StorageBackend
	DB      *sql.DB
}

// NewStore creates a new Store based on the provided options.
func NewStore(opts StoreOptions) (Store, error) {
	switch opts.Backend {
	case config.StoragePostgres:
		if opts.DB == nil {
			return nil, fmt.Errorf("database connection required for postgres backend")
		}
		return NewPostgresStore(opts.DB), nil
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return NewMemoryStore(), nil
	}
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu   sync.RWMutex
	logs []*RegressionLog
}

// NewMemoryStore creates a new in-memory regression log store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, logs ...*RegressionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, log := range logs {
		cp := *log
		s.logs = append(s.logs, &cp)
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, modelID string, promptType catalog.PromptType, limit int) ([]*RegressionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*RegressionLog
	// Stored oldest first; walk backwards for newest first
	for i := len(s.logs) - 1; i >= 0; i-- {
		log := s.logs[i]
		if modelID != "" && log.ModelID != modelID {
			continue
		}
		if promptType != "" && log.EvaluationType != promptType {
			continue
		}
		cp := *log
		results = append(results, &cp)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, logs ...*RegressionLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, log := range logs {
		metadata, err := json.Marshal(log.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO regression_logs (id, model_id, evaluation_type, metric, previous_score, current_score, difference, severity, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, log.ID, log.ModelID, string(log.EvaluationType), log.Metric,
			log.PreviousScore, log.CurrentScore, log.Difference, string(log.Severity),
			metadata, log.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert regression log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit regression logs: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, modelID string, promptType catalog.PromptType, limit int) ([]*RegressionLog, error) {
	query := `
		SELECT id, model_id, evaluation_type, metric, previous_score, current_score, difference, severity, metadata, created_at
		FROM regression_logs WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if modelID != "" {
		query += fmt.Sprintf(" AND model_id = $%d", argNum)
		args = append(args, modelID)
		argNum++
	}
	if promptType != "" {
		query += fmt.Sprintf(" AND evaluation_type = $%d", argNum)
		args = append(args, string(promptType))
		argNum++
	}

	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query regression logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*RegressionLog, 0)
	for rows.Next() {
		var log RegressionLog
		var evalType, severity string
		var metadata []byte
		err := rows.Scan(&log.ID, &log.ModelID, &evalType, &log.Metric,
			&log.PreviousScore, &log.CurrentScore, &log.Difference, &severity,
			&metadata, &log.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan regression log: %w", err)
		}
		log.EvaluationType = catalog.PromptType(evalType)
		log.Severity = Severity(severity)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &log.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// Ensure implementations satisfy the interface
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
