package runtime

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// Runner loads models from local storage.
type Runner interface {
	Load(ctx context.Context, model string) (LoadedModel, error)
}

// LoadedModel is a model held in a local slot.
type LoadedModel interface {
	Complete(ctx context.Context, params CompletionParams) (*CompletionResult, error)
	Close() error
}

// LocalProvider runs models loaded into a bounded set of local slots.
// When all slots are taken the least recently used model is unloaded.
type LocalProvider struct {
	runner Runner
	slots  int

	// The mutex is held across loads and completions: local slots are
	// few and serializing keeps eviction safe while a model is in use.
	mu     sync.Mutex
	order  *list.List // front = most recently used
	loaded map[string]*list.Element
}

type localEntry struct {
	name  string
	model LoadedModel
}

// NewLocalProvider creates a local provider with the given slot count.
func NewLocalProvider(runner Runner, slots int) *LocalProvider {
	if slots < 1 {
		slots = 1
	}
	return &LocalProvider{
		runner: runner,
		slots:  slots,
		order:  list.New(),
		loaded: make(map[string]*list.Element),
	}
}

func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) Available(ctx context.Context) bool {
	return p.runner != nil
}

func (p *LocalProvider) Complete(ctx context.Context, params CompletionParams) (*CompletionResult, error) {
	if params.Model == "" {
		return nil, fmt.Errorf("local provider requires a model name")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	model, err := p.acquire(ctx, params.Model)
	if err != nil {
		return nil, err
	}

	result, err := model.Complete(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("local completion failed: %w", err)
	}
	result.Provider = p.Name()
	return result, nil
}

// Embed is not supported for locally loaded models.
func (p *LocalProvider) Embed(ctx context.Context, params EmbedParams) (*EmbedResult, error) {
	return nil, fmt.Errorf("local provider does not support embeddings")
}

// LoadedModels returns the currently loaded model names, most recently
// used first.
func (p *LocalProvider) LoadedModels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, p.order.Len())
	for e := p.order.Front(); e != nil; e = e.Next() {
		names = append(names, e.Value.(*localEntry).name)
	}
	return names
}

// acquire returns the loaded model for name, loading it (and evicting
// the least recently used model if needed) on a miss. Caller holds mu.
func (p *LocalProvider) acquire(ctx context.Context, name string) (LoadedModel, error) {
	if elem, ok := p.loaded[name]; ok {
		p.order.MoveToFront(elem)
		return elem.Value.(*localEntry).model, nil
	}

	if p.order.Len() >= p.slots {
		oldest := p.order.Back()
		entry := oldest.Value.(*localEntry)
		if err := entry.model.Close(); err != nil {
			return nil, fmt.Errorf("failed to unload model %s: %w", entry.name, err)
		}
		p.order.Remove(oldest)
		delete(p.loaded, entry.name)
	}

	model, err := p.runner.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", name, err)
	}

	p.loaded[name] = p.order.PushFront(&localEntry{name: name, model: model})
	return model, nil
}
