package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/instantcocoa/rehoboam/services/catalog"
)

func newTestStores(t *testing.T) (*MemoryStore, catalog.Store) {
	t.Helper()
	catalogStore := catalog.NewMemoryStore()
	return NewMemoryStore(catalogStore), catalogStore
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store, _ := newTestStores(t)
	ctx := context.Background()

	eval := &Evaluation{
		ID:        "eval-1",
		ModelID:   "model-1",
		PromptID:  "prompt-1",
		CreatedAt: time.Now(),
	}

	if err := store.Create(ctx, eval); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	retrieved, err := store.Get(ctx, "eval-1")
	if err != nil {
		t.Fatalf("failed to get evaluation: %v", err)
	}
	if retrieved == nil {
		t.Fatal("expected evaluation, got nil")
	}
	if retrieved.Status() != StatusPending {
		t.Errorf("expected pending status, got %s", retrieved.Status())
	}
}

func TestMemoryStore_SettleSuccess(t *testing.T) {
	store, _ := newTestStores(t)
	ctx := context.Background()

	eval := &Evaluation{ID: "eval-1", ModelID: "m", PromptID: "p", CreatedAt: time.Now()}
	if err := store.Create(ctx, eval); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	scores := map[string]float64{"semantic_similarity": 0.9}
	if err := store.SettleSuccess(ctx, "eval-1", "Paris", scores, 1200, 42); err != nil {
		t.Fatalf("failed to settle evaluation: %v", err)
	}

	retrieved, _ := store.Get(ctx, "eval-1")
	if retrieved.Status() != StatusSuccess {
		t.Errorf("expected success status, got %s", retrieved.Status())
	}
	if retrieved.Completion == nil || *retrieved.Completion != "Paris" {
		t.Error("expected completion to be set")
	}
	if retrieved.Error != nil {
		t.Error("expected no error on successful evaluation")
	}
	if retrieved.DurationMs == nil || *retrieved.DurationMs != 1200 {
		t.Error("expected duration to be recorded")
	}
	if retrieved.TokenCount == nil || *retrieved.TokenCount != 42 {
		t.Error("expected token count to be recorded")
	}
}

func TestMemoryStore_SettleFailure(t *testing.T) {
	store, _ := newTestStores(t)
	ctx := context.Background()

	eval := &Evaluation{ID: "eval-1", ModelID: "m", PromptID: "p", CreatedAt: time.Now()}
	if err := store.Create(ctx, eval); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	if err := store.SettleFailure(ctx, "eval-1", "provider unavailable", 300); err != nil {
		t.Fatalf("failed to settle evaluation: %v", err)
	}

	retrieved, _ := store.Get(ctx, "eval-1")
	if retrieved.Status() != StatusFailed {
		t.Errorf("expected failed status, got %s", retrieved.Status())
	}
	if retrieved.Completion != nil || retrieved.Scores != nil {
		t.Error("failed evaluation must not carry completion or scores")
	}
	if retrieved.DurationMs == nil || *retrieved.DurationMs != 300 {
		t.Error("expected duration to be recorded on failure")
	}
}

func TestMemoryStore_DoubleSettlement(t *testing.T) {
	store, _ := newTestStores(t)
	ctx := context.Background()

	eval := &Evaluation{ID: "eval-1", ModelID: "m", PromptID: "p", CreatedAt: time.Now()}
	if err := store.Create(ctx, eval); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	scores := map[string]float64{"semantic_similarity": 0.9}
	if err := store.SettleSuccess(ctx, "eval-1", "Paris", scores, 1200, 42); err != nil {
		t.Fatalf("first settlement failed: %v", err)
	}

	// A later failure settlement must not clobber the success.
	err := store.SettleFailure(ctx, "eval-1", "late duplicate", 5000)
	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}

	retrieved, _ := store.Get(ctx, "eval-1")
	if retrieved.Status() != StatusSuccess {
		t.Errorf("second settlement mutated the record: status %s", retrieved.Status())
	}
	if *retrieved.DurationMs != 1200 {
		t.Errorf("second settlement mutated duration: %d", *retrieved.DurationMs)
	}
}

func TestMemoryStore_SettleNonexistent(t *testing.T) {
	store, _ := newTestStores(t)
	ctx := context.Background()

	err := store.SettleSuccess(ctx, "nonexistent", "x", nil, 0, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	err = store.SettleFailure(ctx, "nonexistent", "x", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListRecentFiltersByType(t *testing.T) {
	store, catalogStore := newTestStores(t)
	ctx := context.Background()

	prompts := []*catalog.Prompt{
		{ID: "p-qa", Content: "q", Type: catalog.PromptTypeFactualQA},
		{ID: "p-math", Content: "m", Type: catalog.PromptTypeMath},
	}
	for _, p := range prompts {
		if err := catalogStore.CreatePrompt(ctx, p); err != nil {
			t.Fatalf("failed to create prompt: %v", err)
		}
	}

	evals := []*Evaluation{
		{ID: "1", ModelID: "m1", PromptID: "p-qa", CreatedAt: time.Now()},
		{ID: "2", ModelID: "m1", PromptID: "p-math", CreatedAt: time.Now().Add(time.Minute)},
		{ID: "3", ModelID: "m1", PromptID: "p-qa", CreatedAt: time.Now().Add(2 * time.Minute)},
		{ID: "4", ModelID: "m2", PromptID: "p-qa", CreatedAt: time.Now().Add(3 * time.Minute)},
	}
	for _, e := range evals {
		if err := store.Create(ctx, e); err != nil {
			t.Fatalf("failed to create evaluation: %v", err)
		}
	}

	recent, err := store.ListRecent(ctx, "m1", catalog.PromptTypeFactualQA, 100)
	if err != nil {
		t.Fatalf("failed to list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(recent))
	}

	// Newest first
	if recent[0].ID != "3" || recent[1].ID != "1" {
		t.Errorf("expected newest-first order [3, 1], got [%s, %s]", recent[0].ID, recent[1].ID)
	}

	// Limit applies
	recent, _ = store.ListRecent(ctx, "m1", catalog.PromptTypeFactualQA, 1)
	if len(recent) != 1 || recent[0].ID != "3" {
		t.Errorf("expected only newest evaluation with limit 1")
	}
}

func TestMemoryStore_FailureCases(t *testing.T) {
	store, _ := newTestStores(t)
	ctx := context.Background()

	eval := &Evaluation{ID: "eval-1", ModelID: "m", PromptID: "p", CreatedAt: time.Now()}
	if err := store.Create(ctx, eval); err != nil {
		t.Fatalf("failed to create evaluation: %v", err)
	}

	fc := &FailureCase{
		ID:           "fc-1",
		EvaluationID: "eval-1",
		FailureType:  "hallucination",
		Severity:     4,
		CreatedAt:    time.Now(),
	}
	if err := store.CreateFailureCase(ctx, fc); err != nil {
		t.Fatalf("failed to create failure case: %v", err)
	}

	cases, err := store.ListFailureCases(ctx, "eval-1")
	if err != nil {
		t.Fatalf("failed to list failure cases: %v", err)
	}
	if len(cases) != 1 || cases[0].FailureType != "hallucination" {
		t.Errorf("unexpected failure cases: %+v", cases)
	}

	// Failure case against a missing evaluation is rejected
	bad := &FailureCase{ID: "fc-2", EvaluationID: "nonexistent"}
	if err := store.CreateFailureCase(ctx, bad); err == nil {
		t.Fatal("expected error for nonexistent evaluation")
	}
}

func TestEvaluationStatus(t *testing.T) {
	completion := "Paris"
	errText := "timeout"

	tests := []struct {
		name string
		eval Evaluation
		want Status
	}{
		{
			name: "pending",
			eval: Evaluation{},
			want: StatusPending,
		},
		{
			name: "success",
			eval: Evaluation{Completion: &completion, Scores: map[string]float64{"answer_presence": 1}},
			want: StatusSuccess,
		},
		{
			name: "failed",
			eval: Evaluation{Error: &errText},
			want: StatusFailed,
		},
		{
			name: "completion without scores is still pending",
			eval: Evaluation{Completion: &completion},
			want: StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eval.Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}
