package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested model or prompt does not exist.
var ErrNotFound = errors.New("not found")

// Service handles catalog business logic.
type Service struct {
	store Store
}

// NewService creates a new catalog service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateModel validates and registers a new model.
func (s *Service) CreateModel(ctx context.Context, input CreateModelInput) (*Model, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if !input.Provider.Valid() {
		return nil, fmt.Errorf("invalid provider: %q", input.Provider)
	}

	now := time.Now()
	model := &Model{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Provider:    input.Provider,
		Version:     input.Version,
		Description: input.Description,
		Parameters:  input.Parameters,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateModel(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	return model, nil
}

// GetModel retrieves a model by ID.
func (s *Service) GetModel(ctx context.Context, id string) (*Model, error) {
	model, err := s.store.GetModel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	if model == nil {
		return nil, fmt.Errorf("model %s: %w", id, ErrNotFound)
	}
	return model, nil
}

// ListModels returns models matching the query.
func (s *Service) ListModels(ctx context.Context, query ListModelsQuery) ([]*Model, int, error) {
	models, total, err := s.store.ListModels(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list models: %w", err)
	}
	return models, total, nil
}

// DeleteModel removes a model by ID.
func (s *Service) DeleteModel(ctx context.Context, id string) error {
	model, err := s.store.GetModel(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get model: %w", err)
	}
	if model == nil {
		return fmt.Errorf("model %s: %w", id, ErrNotFound)
	}
	if err := s.store.DeleteModel(ctx, id); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}

// CreatePrompt validates and registers a new prompt.
func (s *Service) CreatePrompt(ctx context.Context, input CreatePromptInput) (*Prompt, error) {
	if input.Content == "" {
		return nil, fmt.Errorf("prompt content is required")
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("invalid prompt type: %q", input.Type)
	}

	now := time.Now()
	prompt := &Prompt{
		ID:        uuid.New().String(),
		Content:   input.Content,
		Type:      input.Type,
		Tags:      input.Tags,
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreatePrompt(ctx, prompt); err != nil {
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}
	return prompt, nil
}

// GetPrompt retrieves a prompt by ID.
func (s *Service) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	prompt, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	if prompt == nil {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	return prompt, nil
}

// ListPrompts returns prompts matching the query.
func (s *Service) ListPrompts(ctx context.Context, query ListPromptsQuery) ([]*Prompt, int, error) {
	prompts, total, err := s.store.ListPrompts(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, total, nil
}

// DeletePrompt removes a prompt by ID.
func (s *Service) DeletePrompt(ctx context.Context, id string) error {
	prompt, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get prompt: %w", err)
	}
	if prompt == nil {
		return fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	if err := s.store.DeletePrompt(ctx, id); err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	return nil
}
