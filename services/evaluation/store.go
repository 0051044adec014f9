package evaluation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/instantcocoa/rehoboam/pkg/config"
	"github.com/instantcocoa/rehoboam/services/catalog"
)

// Store defines the interface for evaluation storage operations.
type Store interface {
	// Create persists a new pending evaluation.
	Create(ctx context.Context, eval *Evaluation) error

	// Get retrieves an evaluation by ID. Returns (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Evaluation, error)

	// List returns evaluations matching the query, newest first.
	List(ctx context.Context, query ListQuery) ([]*Evaluation, int, error)

	// Delete removes an evaluation by ID.
	Delete(ctx context.Context, id string) error

	// SettleSuccess transitions a pending evaluation to success. Returns
	// ErrAlreadySettled if the evaluation is no longer pending; the row
	// is left untouched in that case.
	SettleSuccess(ctx context.Context, id, completion string, scores map[string]float64, durationMs int64, tokenCount int) error

	// SettleFailure transitions a pending evaluation to failed. Same
	// ErrAlreadySettled contract as SettleSuccess.
	SettleFailure(ctx context.Context, id, errText string, durationMs int64) error

	// ListRecent returns the newest evaluations for a model and prompt
	// type, up to limit, newest first. Includes unsettled records.
	ListRecent(ctx context.Context, modelID string, promptType catalog.PromptType, limit int) ([]*Evaluation, error)

	// CreateFailureCase records a failure annotation.
	CreateFailureCase(ctx context.Context, fc *FailureCase) error

	// ListFailureCases returns failure cases for an evaluation.
	ListFailureCases(ctx context.Context, evaluationID string) ([]*FailureCase, error)
}

// StoreOptions contains configuration for creating a store.
type StoreOptions struct {
	Backend config.StorageBackend
	DB      *sql.DB

	// Catalog resolves prompt types for the memory backend. The
	// postgres backend joins through the prompts table instead.
	Catalog catalog.Store
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
		if opts.Catalog == nil {
			return nil, fmt.Errorf("catalog store required for memory backend")
		}
		return NewMemoryStore(opts.Catalog), nil
	default:
		if opts.Catalog == nil {
			return nil, fmt.Errorf("catalog store required for memory backend")
		}
		return NewMemoryStore(opts.Catalog), nil
	}
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	evals    map[string]*Evaluation
	failures map[string][]*FailureCase // evaluationID -> cases
	catalog  catalog.Store
}

// NewMemoryStore creates a new in-memory evaluation store.
func NewMemoryStore(catalogStore catalog.Store) *MemoryStore {
	return &MemoryStore{
		evals:    make(map[string]*Evaluation),
		failures: make(map[string][]*FailureCase),
		catalog:  catalogStore,
	}
}

func (s *MemoryStore) Create(ctx context.Context, eval *Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.evals[eval.ID]; exists {
		return fmt.Errorf("evaluation already exists: %s", eval.ID)
	}

	s.evals[eval.ID] = CopyEvaluation(eval)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eval, ok := s.evals[id]
	if !ok {
		return nil, nil
	}

	return CopyEvaluation(eval), nil
}

func (s *MemoryStore) List(ctx context.Context, query ListQuery) ([]*Evaluation, int, error) {
	s.mu.RLock()
	evals := make([]*Evaluation, 0, len(s.evals))
	for _, eval := range s.evals {
		evals = append(evals, CopyEvaluation(eval))
	}
	s.mu.RUnlock()

	var results []*Evaluation
	for _, eval := range evals {
		if query.ModelID != "" && eval.ModelID != query.ModelID {
			continue
		}
		if query.PromptID != "" && eval.PromptID != query.PromptID {
			continue
		}
		if query.PromptType != "" {
			pt, err := s.promptType(ctx, eval.PromptID)
			if err != nil {
				return nil, 0, err
			}
			if pt != query.PromptType {
				continue
			}
		}
		results = append(results, eval)
	}

	// Newest first
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	totalCount := len(results)

	if query.Offset > 0 {
		if query.Offset >= len(results) {
			results = nil
		} else {
			results = results[query.Offset:]
		}
	}
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}

	return results, totalCount, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.evals[id]; !exists {
		return fmt.Errorf("evaluation not found: %s", id)
	}

	delete(s.evals, id)
	delete(s.failures, id)
	return nil
}

func (s *MemoryStore) SettleSuccess(ctx context.Context, id, completion string, scores map[string]float64, durationMs int64, tokenCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eval, ok := s.evals[id]
	if !ok {
		return ErrNotFound
	}
	if eval.Settled() {
		return ErrAlreadySettled
	}

	eval.Completion = &completion
	eval.Scores = make(map[string]float64, len(scores))
	for k, v := range scores {
		eval.Scores[k] = v
	}
	eval.DurationMs = &durationMs
	eval.TokenCount = &tokenCount
	return nil
}

func (s *MemoryStore) SettleFailure(ctx context.Context, id, errText string, durationMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eval, ok := s.evals[id]
	if !ok {
		return ErrNotFound
	}
	if eval.Settled() {
		return ErrAlreadySettled
	}

	eval.Error = &errText
	eval.DurationMs = &durationMs
	return nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, modelID string, promptType catalog.PromptType, limit int) ([]*Evaluation, error) {
	results, _, err := s.List(ctx, ListQuery{
		ModelID:    modelID,
		PromptType: promptType,
		Limit:      limit,
	})
	return results, err
}

func (s *MemoryStore) CreateFailureCase(ctx context.Context, fc *FailureCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.evals[fc.EvaluationID]; !exists {
		return fmt.Errorf("evaluation not found: %s", fc.EvaluationID)
	}

	cp := *fc
	s.failures[fc.EvaluationID] = append(s.failures[fc.EvaluationID], &cp)
	return nil
}

func (s *MemoryStore) ListFailureCases(ctx context.Context, evaluationID string) ([]*FailureCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cases := s.failures[evaluationID]
	copied := make([]*FailureCase, len(cases))
	for i, fc := range cases {
		cp := *fc
		copied[i] = &cp
	}
	return copied, nil
}

func (s *MemoryStore) promptType(ctx context.Context, promptID string) (catalog.PromptType, error) {
	prompt, err := s.catalog.GetPrompt(ctx, promptID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve prompt type: %w", err)
	}
	if prompt == nil {
		return "", nil
	}
	return prompt.Type, nil
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const evalColumns = `id, model_id, prompt_id, completion, scores, metadata, error, duration_ms, token_count, created_at`

func (s *PostgresStore) Create(ctx context.Context, eval *Evaluation) error {
	metadata, err := json.Marshal(eval.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var scores []byte
	if eval.Scores != nil {
		scores, err = json.Marshal(eval.Scores)
		if err != nil {
			return fmt.Errorf("failed to marshal scores: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations (`+evalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, eval.ID, eval.ModelID, eval.PromptID, eval.Completion, scores,
		metadata, eval.Error, eval.DurationMs, eval.TokenCount, eval.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Evaluation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+evalColumns+` FROM evaluations WHERE id = $1
	`, id)

	eval, err := scanEvaluation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return eval, nil
}

func (s *PostgresStore) List(ctx context.Context, query ListQuery) ([]*Evaluation, int, error) {
	baseQuery := `FROM evaluations e`
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if query.PromptType != "" {
		baseQuery += ` JOIN prompts p ON e.prompt_id = p.id`
		where += fmt.Sprintf(" AND p.type = $%d", argNum)
		args = append(args, string(query.PromptType))
		argNum++
	}
	if query.ModelID != "" {
		where += fmt.Sprintf(" AND e.model_id = $%d", argNum)
		args = append(args, query.ModelID)
		argNum++
	}
	if query.PromptID != "" {
		where += fmt.Sprintf(" AND e.prompt_id = $%d", argNum)
		args = append(args, query.PromptID)
		argNum++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count evaluations: %w", err)
	}

	limit := 100
	if query.Limit > 0 && query.Limit < 100 {
		limit = query.Limit
	}

	selectQuery := fmt.Sprintf(`
		SELECT e.id, e.model_id, e.prompt_id, e.completion, e.scores, e.metadata, e.error, e.duration_ms, e.token_count, e.created_at
		%s%s ORDER BY e.created_at DESC LIMIT %d OFFSET %d
	`, baseQuery, where, limit, query.Offset)

	rows, err := s.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	evals := make([]*Evaluation, 0)
	for rows.Next() {
		eval, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, eval)
	}

	return evals, total, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM failure_cases WHERE evaluation_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete failure cases: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM evaluations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("evaluation not found: %s", id)
	}

	return tx.Commit()
}

func (s *PostgresStore) SettleSuccess(ctx context.Context, id, completion string, scores map[string]float64, durationMs int64, tokenCount int) error {
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	// The WHERE clause is the compare-and-set: only a pending row
	// (no completion, no scores, no error) can be settled.
	result, err := s.db.ExecContext(ctx, `
		UPDATE evaluations
		SET completion = $2, scores = $3, duration_ms = $4, token_count = $5
		WHERE id = $1 AND completion IS NULL AND scores IS NULL AND error IS NULL
	`, id, completion, scoresJSON, durationMs, tokenCount)
	if err != nil {
		return fmt.Errorf("failed to settle evaluation: %w", err)
	}

	return s.checkSettled(ctx, id, result)
}

func (s *PostgresStore) SettleFailure(ctx context.Context, id, errText string, durationMs int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE evaluations
		SET error = $2, duration_ms = $3
		WHERE id = $1 AND completion IS NULL AND scores IS NULL AND error IS NULL
	`, id, errText, durationMs)
	if err != nil {
		return fmt.Errorf("failed to settle evaluation: %w", err)
	}

	return s.checkSettled(ctx, id, result)
}

func (s *PostgresStore) checkSettled(ctx context.Context, id string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check settle result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM evaluations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check evaluation: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadySettled
}

func (s *PostgresStore) ListRecent(ctx context.Context, modelID string, promptType catalog.PromptType, limit int) ([]*Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.model_id, e.prompt_id, e.completion, e.scores, e.metadata, e.error, e.duration_ms, e.token_count, e.created_at
		FROM evaluations e
		JOIN prompts p ON e.prompt_id = p.id
		WHERE e.model_id = $1 AND p.type = $2
		ORDER BY e.created_at DESC
		LIMIT $3
	`, modelID, string(promptType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent evaluations: %w", err)
	}
	defer rows.Close()

	evals := make([]*Evaluation, 0)
	for rows.Next() {
		eval, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, eval)
	}

	return evals, rows.Err()
}

func (s *PostgresStore) CreateFailureCase(ctx context.Context, fc *FailureCase) error {
	metadata, err := json.Marshal(fc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO failure_cases (id, evaluation_id, failure_type, severity, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, fc.ID, fc.EvaluationID, fc.FailureType, fc.Severity, fc.Description, metadata, fc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert failure case: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFailureCases(ctx context.Context, evaluationID string) ([]*FailureCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evaluation_id, failure_type, severity, description, metadata, created_at
		FROM failure_cases
		WHERE evaluation_id = $1
		ORDER BY created_at
	`, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failure cases: %w", err)
	}
	defer rows.Close()

	cases := make([]*FailureCase, 0)
	for rows.Next() {
		var fc FailureCase
		var description sql.NullString
		var metadata []byte
		err := rows.Scan(&fc.ID, &fc.EvaluationID, &fc.FailureType, &fc.Severity,
			&description, &metadata, &fc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failure case: %w", err)
		}
		fc.Description = description.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &fc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		cases = append(cases, &fc)
	}

	return cases, rows.Err()
}

// scanEvaluation scans one evaluation row via the provided Scan func,
// so QueryRow and Rows share the column handling.
func scanEvaluation(scan func(...interface{}) error) (*Evaluation, error) {
	var e Evaluation
	var completion, errText sql.NullString
	var durationMs sql.NullInt64
	var tokenCount sql.NullInt32
	var scores, metadata []byte

	err := scan(&e.ID, &e.ModelID, &e.PromptID, &completion, &scores,
		&metadata, &errText, &durationMs, &tokenCount, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if completion.Valid {
		e.Completion = &completion.String
	}
	if errText.Valid {
		e.Error = &errText.String
	}
	if durationMs.Valid {
		e.DurationMs = &durationMs.Int64
	}
	if tokenCount.Valid {
		v := int(tokenCount.Int32)
		e.TokenCount = &v
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &e.Scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &e, nil
}

// Ensure implementations satisfy the interface
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
