package runtime

import (
	"context"
	"fmt"
	"testing"
)

// fakeRunner tracks model loads and unloads.
type fakeRunner struct {
	loads    []string
	unloaded []string
	failOn   map[string]bool
}

type fakeLoadedModel struct {
	name   string
	runner *fakeRunner
}

func (r *fakeRunner) Load(ctx context.Context, model string) (LoadedModel, error) {
	if r.failOn[model] {
		return nil, fmt.Errorf("weights missing for %s", model)
	}
	r.loads = append(r.loads, model)
	return &fakeLoadedModel{name: model, runner: r}, nil
}

func (m *fakeLoadedModel) Complete(ctx context.Context, params CompletionParams) (*CompletionResult, error) {
	return &CompletionResult{Content: "from " + m.name, Model: m.name}, nil
}

func (m *fakeLoadedModel) Close() error {
	m.runner.unloaded = append(m.runner.unloaded, m.name)
	return nil
}

func TestLocalProvider_LoadsOnDemand(t *testing.T) {
	runner := &fakeRunner{}
	provider := NewLocalProvider(runner, 2)
	ctx := context.Background()

	result, err := provider.Complete(ctx, CompletionParams{Model: "llama-3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "from llama-3" {
		t.Errorf("unexpected completion: %q", result.Content)
	}
	if result.Provider != "local" {
		t.Errorf("expected provider 'local', got %q", result.Provider)
	}

	// Second completion reuses the loaded model
	if _, err := provider.Complete(ctx, CompletionParams{Model: "llama-3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.loads) != 1 {
		t.Errorf("expected 1 load, got %d", len(runner.loads))
	}
}

func TestLocalProvider_EvictsLeastRecentlyUsed(t *testing.T) {
	runner := &fakeRunner{}
	provider := NewLocalProvider(runner, 2)
	ctx := context.Background()

	for _, model := range []string{"a", "b"} {
		if _, err := provider.Complete(ctx, CompletionParams{Model: model}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Touch "a" so "b" becomes least recently used
	if _, err := provider.Complete(ctx, CompletionParams{Model: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Loading "c" must evict "b", not "a"
	if _, err := provider.Complete(ctx, CompletionParams{Model: "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.unloaded) != 1 || runner.unloaded[0] != "b" {
		t.Errorf("expected 'b' evicted, got %v", runner.unloaded)
	}

	loaded := provider.LoadedModels()
	if len(loaded) != 2 || loaded[0] != "c" || loaded[1] != "a" {
		t.Errorf("expected loaded order [c, a], got %v", loaded)
	}
}

func TestLocalProvider_LoadFailureLeavesSlots(t *testing.T) {
	runner := &fakeRunner{failOn: map[string]bool{"broken": true}}
	provider := NewLocalProvider(runner, 2)
	ctx := context.Background()

	if _, err := provider.Complete(ctx, CompletionParams{Model: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := provider.Complete(ctx, CompletionParams{Model: "broken"}); err == nil {
		t.Fatal("expected load failure")
	}

	// The existing model is still usable
	if _, err := provider.Complete(ctx, CompletionParams{Model: "a"}); err != nil {
		t.Fatalf("unexpected error after failed load: %v", err)
	}
}

func TestLocalProvider_RequiresModelName(t *testing.T) {
	provider := NewLocalProvider(&fakeRunner{}, 1)

	if _, err := provider.Complete(context.Background(), CompletionParams{}); err == nil {
		t.Fatal("expected error for empty model name")
	}
}
