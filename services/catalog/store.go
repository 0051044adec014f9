package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/instantcocoa/rehoboam/pkg/config"
)

// Store defines the interface for catalog storage operations.
type Store interface {
	// CreateModel persists a new model.
	CreateModel(ctx context.Context, model *Model) error

	// GetModel retrieves a model by ID. Returns (nil, nil) when absent.
	GetModel(ctx context.Context, id string) (*Model, error)

	// ListModels returns models matching the query, newest first.
	ListModels(ctx context.Context, query ListModelsQuery) ([]*Model, int, error)

	// DeleteModel removes a model by ID.
	DeleteModel(ctx context.Context, id string) error

	// CreatePrompt persists a new prompt.
	CreatePrompt(ctx context.Context, prompt *Prompt) error

	// GetPrompt retrieves a prompt by ID. Returns (nil, nil) when absent.
	GetPrompt(ctx context.Context, id string) (*Prompt, error)

	// ListPrompts returns prompts matching the query, newest first.
	ListPrompts(ctx context.Context, query ListPromptsQuery) ([]*Prompt, int, error)

	// DeletePrompt removes a prompt by ID.
	DeletePrompt(ctx context.Context, id string) error
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
	mu      sync.RWMutex
	models  map[string]*Model
	prompts map[string]*Prompt
}

// NewMemoryStore creates a new in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models:  make(map[string]*Model),
		prompts: make(map[string]*Prompt),
	}
}

func (s *MemoryStore) CreateModel(ctx context.Context, model *Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.models[model.ID]; exists {
		return fmt.Errorf("model already exists: %s", model.ID)
	}

	s.models[model.ID] = CopyModel(model)
	return nil
}

func (s *MemoryStore) GetModel(ctx context.Context, id string) (*Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, ok := s.models[id]
	if !ok {
		return nil, nil
	}

	return CopyModel(model), nil
}

func (s *MemoryStore) ListModels(ctx context.Context, query ListModelsQuery) ([]*Model, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Model
	for _, model := range s.models {
		if !s.matchesModelQuery(model, query) {
			continue
		}
		results = append(results, CopyModel(model))
	}

	// Newest first
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	totalCount := len(results)
	results = paginate(results, query.Offset, query.Limit)
	return results, totalCount, nil
}

func (s *MemoryStore) DeleteModel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.models[id]; !exists {
		return fmt.Errorf("model not found: %s", id)
	}

	delete(s.models, id)
	return nil
}

func (s *MemoryStore) CreatePrompt(ctx context.Context, prompt *Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.prompts[prompt.ID]; exists {
		return fmt.Errorf("prompt already exists: %s", prompt.ID)
	}

	s.prompts[prompt.ID] = CopyPrompt(prompt)
	return nil
}

func (s *MemoryStore) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompt, ok := s.prompts[id]
	if !ok {
		return nil, nil
	}

	return CopyPrompt(prompt), nil
}

func (s *MemoryStore) ListPrompts(ctx context.Context, query ListPromptsQuery) ([]*Prompt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Prompt
	for _, prompt := range s.prompts {
		if !s.matchesPromptQuery(prompt, query) {
			continue
		}
		results = append(results, CopyPrompt(prompt))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	totalCount := len(results)
	results = paginate(results, query.Offset, query.Limit)
	return results, totalCount, nil
}

func (s *MemoryStore) DeletePrompt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.prompts[id]; !exists {
		return fmt.Errorf("prompt not found: %s", id)
	}

	delete(s.prompts, id)
	return nil
}

func (s *MemoryStore) matchesModelQuery(model *Model, query ListModelsQuery) bool {
	if query.Provider != "" && model.Provider != query.Provider {
		return false
	}
	if query.Search != "" {
		search := strings.ToLower(query.Search)
		if !strings.Contains(strings.ToLower(model.Name), search) &&
			!strings.Contains(strings.ToLower(model.Description), search) {
			return false
		}
	}
	return true
}

func (s *MemoryStore) matchesPromptQuery(prompt *Prompt, query ListPromptsQuery) bool {
	if query.Type != "" && prompt.Type != query.Type {
		return false
	}
	if len(query.Tags) > 0 {
		tagSet := make(map[string]bool)
		for _, t := range prompt.Tags {
			tagSet[t] = true
		}
		for _, t := range query.Tags {
			if !tagSet[t] {
				return false
			}
		}
	}
	return true
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			items = nil
		} else {
			items = items[offset:]
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateModel(ctx context.Context, model *Model) error {
	params, err := json.Marshal(model.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO models (id, name, provider, version, description, parameters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, model.ID, model.Name, string(model.Provider), model.Version,
		model.Description, params, model.CreatedAt, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetModel(ctx context.Context, id string) (*Model, error) {
	var m Model
	var providerStr string
	var version, description sql.NullString
	var params []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, version, description, parameters, created_at, updated_at
		FROM models WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &providerStr, &version, &description, &params, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	m.Provider = Provider(providerStr)
	m.Version = version.String
	m.Description = description.String
	if len(params) > 0 {
		if err := json.Unmarshal(params, &m.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	return &m, nil
}

func (s *PostgresStore) ListModels(ctx context.Context, query ListModelsQuery) ([]*Model, int, error) {
	baseQuery := `FROM models WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if query.Provider != "" {
		baseQuery += fmt.Sprintf(" AND provider = $%d", argNum)
		args = append(args, string(query.Provider))
		argNum++
	}

	if query.Search != "" {
		baseQuery += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+query.Search+"%")
		argNum++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count models: %w", err)
	}

	limit := 100
	if query.Limit > 0 && query.Limit < 100 {
		limit = query.Limit
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, provider, version, description, parameters, created_at, updated_at
		%s ORDER BY created_at DESC LIMIT %d OFFSET %d
	`, baseQuery, limit, query.Offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	models := make([]*Model, 0)
	for rows.Next() {
		var m Model
		var providerStr string
		var version, description sql.NullString
		var params []byte
		err := rows.Scan(&m.ID, &m.Name, &providerStr, &version, &description, &params, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan model: %w", err)
		}
		m.Provider = Provider(providerStr)
		m.Version = version.String
		m.Description = description.String
		if len(params) > 0 {
			if err := json.Unmarshal(params, &m.Parameters); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal parameters: %w", err)
			}
		}
		models = append(models, &m)
	}

	return models, total, rows.Err()
}

func (s *PostgresStore) DeleteModel(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("model not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreatePrompt(ctx context.Context, prompt *Prompt) error {
	tags, err := json.Marshal(prompt.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadata, err := json.Marshal(prompt.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prompts (id, content, type, tags, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, prompt.ID, prompt.Content, string(prompt.Type), tags, metadata,
		prompt.CreatedAt, prompt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	var p Prompt
	var typeStr string
	var tags, metadata []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, type, tags, metadata, created_at, updated_at
		FROM prompts WHERE id = $1
	`, id).Scan(&p.ID, &p.Content, &typeStr, &tags, &metadata, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}

	p.Type = PromptType(typeStr)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &p, nil
}

func (s *PostgresStore) ListPrompts(ctx context.Context, query ListPromptsQuery) ([]*Prompt, int, error) {
	baseQuery := `FROM prompts WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if query.Type != "" {
		baseQuery += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(query.Type))
		argNum++
	}

	if len(query.Tags) > 0 {
		tags, err := json.Marshal(query.Tags)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal tags: %w", err)
		}
		baseQuery += fmt.Sprintf(" AND tags @> $%d", argNum)
		args = append(args, tags)
		argNum++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count prompts: %w", err)
	}

	limit := 100
	if query.Limit > 0 && query.Limit < 100 {
		limit = query.Limit
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, type, tags, metadata, created_at, updated_at
		%s ORDER BY created_at DESC LIMIT %d OFFSET %d
	`, baseQuery, limit, query.Offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]*Prompt, 0)
	for rows.Next() {
		var p Prompt
		var typeStr string
		var tags, metadata []byte
		err := rows.Scan(&p.ID, &p.Content, &typeStr, &tags, &metadata, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan prompt: %w", err)
		}
		p.Type = PromptType(typeStr)
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &p.Tags); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal tags: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		prompts = append(prompts, &p)
	}

	return prompts, total, rows.Err()
}

func (s *PostgresStore) DeletePrompt(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("prompt not found: %s", id)
	}
	return nil
}

// Ensure implementations satisfy the interface
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
