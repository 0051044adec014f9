package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/instantcocoa/rehoboam/pkg/testutil"
)

// fakeProvider scripts a sequence of completion outcomes.
type fakeProvider struct {
	name      string
	calls     int
	responses []fakeResponse
	embedFn   func(EmbedParams) (*EmbedResult, error)
}

type fakeResponse struct {
	result *CompletionResult
	err    error
}

func (p *fakeProvider) Name() string                       { return p.name }
func (p *fakeProvider) Available(ctx context.Context) bool { return true }

func (p *fakeProvider) Complete(ctx context.Context, params CompletionParams) (*CompletionResult, error) {
	if p.calls >= len(p.responses) {
		return nil, fmt.Errorf("unscripted call %d to %s", p.calls, p.name)
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp.result, resp.err
}

func (p *fakeProvider) Embed(ctx context.Context, params EmbedParams) (*EmbedResult, error) {
	if p.embedFn != nil {
		return p.embedFn(params)
	}
	return nil, fmt.Errorf("embeddings not scripted")
}

func newTestClient(t *testing.T, providers ...Provider) *Client {
	t.Helper()
	registry := NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	config := DefaultClientConfig()
	client := NewClient(registry, config, testutil.Logger(t))
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return client
}

func ok(content string) fakeResponse {
	return fakeResponse{result: &CompletionResult{Content: content}}
}

func fail(provider string, kind ErrorKind) fakeResponse {
	return fakeResponse{err: &ProviderError{Provider: provider, Kind: kind, Message: "scripted"}}
}

func TestClient_CompleteFirstTry(t *testing.T) {
	primary := &fakeProvider{name: "openai", responses: []fakeResponse{ok("hello")}}
	client := newTestClient(t, primary)

	result, err := client.Complete(context.Background(), ModelRef{"openai", "gpt-4o"}, CompletionParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "hello" {
		t.Errorf("expected 'hello', got %q", result.Content)
	}
	if primary.calls != 1 {
		t.Errorf("expected 1 call, got %d", primary.calls)
	}
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	primary := &fakeProvider{name: "openai", responses: []fakeResponse{
		fail("openai", ErrorKindTransient),
		fail("openai", ErrorKindRateLimited),
		ok("recovered"),
	}}
	client := newTestClient(t, primary)

	result, err := client.Complete(context.Background(), ModelRef{"openai", "gpt-4o"}, CompletionParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "recovered" {
		t.Errorf("expected 'recovered', got %q", result.Content)
	}
	if primary.calls != 3 {
		t.Errorf("expected 3 calls, got %d", primary.calls)
	}
}

func TestClient_AuthErrorSkipsRetries(t *testing.T) {
	primary := &fakeProvider{name: "openai", responses: []fakeResponse{
		fail("openai", ErrorKindAuth),
	}}
	fallback := &fakeProvider{name: "anthropic", responses: []fakeResponse{ok("fallback")}}

	registry := NewRegistry()
	registry.Register(primary)
	registry.Register(fallback)
	config := DefaultClientConfig()
	config.Fallbacks = []ModelRef{{"anthropic", "claude-3-5-sonnet-20241022"}}
	client := NewClient(registry, config, testutil.Logger(t))
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	result, err := client.Complete(context.Background(), ModelRef{"openai", "gpt-4o"}, CompletionParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "fallback" {
		t.Errorf("expected fallback completion, got %q", result.Content)
	}
	if primary.calls != 1 {
		t.Errorf("auth failure must not be retried, got %d calls", primary.calls)
	}
}

func TestClient_FallbackOrder(t *testing.T) {
	primary := &fakeProvider{name: "openai", responses: []fakeResponse{
		fail("openai", ErrorKindTransient),
		fail("openai", ErrorKindTransient),
		fail("openai", ErrorKindTransient),
	}}
	second := &fakeProvider{name: "anthropic", responses: []fakeResponse{
		fail("anthropic", ErrorKindAuth),
	}}
	third := &fakeProvider{name: "local", responses: []fakeResponse{ok("last resort")}}

	registry := NewRegistry()
	registry.Register(primary)
	registry.Register(second)
	registry.Register(third)
	config := DefaultClientConfig()
	config.Fallbacks = []ModelRef{
		{"anthropic", "claude-3-5-haiku-20241022"},
		{"local", "llama-3"},
	}
	client := NewClient(registry, config, testutil.Logger(t))
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	result, err := client.Complete(context.Background(), ModelRef{"openai", "gpt-4o"}, CompletionParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "last resort" {
		t.Errorf("expected third target to serve, got %q", result.Content)
	}
	if primary.calls != 3 {
		t.Errorf("expected primary exhausted after 3 attempts, got %d", primary.calls)
	}
	if second.calls != 1 {
		t.Errorf("expected one call to second target, got %d", second.calls)
	}
}

func TestClient_AllTargetsFail(t *testing.T) {
	primary := &fakeProvider{name: "openai", responses: []fakeResponse{
		fail("openai", ErrorKindUnknown),
	}}
	client := newTestClient(t, primary)

	_, err := client.Complete(context.Background(), ModelRef{"openai", "gpt-4o"}, CompletionParams{})
	if err == nil {
		t.Fatal("expected error when all targets fail")
	}
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected wrapped ProviderError, got %v", err)
	}
}

func TestClient_EmbedUsesConfiguredProvider(t *testing.T) {
	var gotModel string
	provider := &fakeProvider{
		name: "openai",
		embedFn: func(params EmbedParams) (*EmbedResult, error) {
			gotModel = params.Model
			return &EmbedResult{Embeddings: []Embedding{{Values: []float32{1, 0}, Dimensions: 2}}}, nil
		},
	}
	client := newTestClient(t, provider)

	result, err := client.Embed(context.Background(), EmbedParams{Texts: []string{"hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embeddings) != 1 {
		t.Fatalf("expected 1 embedding, got %d", len(result.Embeddings))
	}
	if gotModel != "text-embedding-3-small" {
		t.Errorf("expected default embedding model, got %q", gotModel)
	}
}

func TestParseModelRef(t *testing.T) {
	tests := []struct {
		in      string
		want    ModelRef
		wantErr bool
	}{
		{"openai/gpt-4o", ModelRef{"openai", "gpt-4o"}, false},
		{"anthropic/claude-3-5-sonnet-20241022", ModelRef{"anthropic", "claude-3-5-sonnet-20241022"}, false},
		{"gpt-4o", ModelRef{}, true},
		{"/gpt-4o", ModelRef{}, true},
		{"openai/", ModelRef{}, true},
		{"", ModelRef{}, true},
	}

	for _, tt := range tests {
		got, err := ParseModelRef(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseModelRef(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseModelRef(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseModelRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{401, ErrorKindAuth},
		{403, ErrorKindAuth},
		{429, ErrorKindRateLimited},
		{500, ErrorKindTransient},
		{503, ErrorKindTransient},
		{400, ErrorKindUnknown},
		{404, ErrorKindUnknown},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
