package evaluator

import (
	"errors"
	"testing"

	"github.com/instantcocoa/rehoboam/services/catalog"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(&fakeClient{})

	constructor := func(c Client) Evaluator { return NewFactualQA(c) }

	if err := r.Register(catalog.PromptTypeFactualQA, constructor); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	if err := r.Register(catalog.PromptTypeFactualQA, constructor); err == nil {
		t.Fatal("expected error for duplicate registration")
	}

	if err := r.Register(catalog.PromptTypeMath, nil); err == nil {
		t.Fatal("expected error for nil constructor")
	}

	if err := r.Register(catalog.PromptType("trivia"), constructor); err == nil {
		t.Fatal("expected error for unknown prompt type")
	}
}

func TestRegistry_Supports(t *testing.T) {
	r := NewRegistry(&fakeClient{})
	if err := r.Register(catalog.PromptTypeFactualQA, func(c Client) Evaluator { return NewFactualQA(c) }); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	if !r.Supports(catalog.PromptTypeFactualQA) {
		t.Error("expected factual_qa to be supported")
	}
	if r.Supports(catalog.PromptTypeMath) {
		t.Error("math should not be supported")
	}
}

func TestRegistry_ForTypeMiss(t *testing.T) {
	r := NewRegistry(&fakeClient{})

	_, err := r.ForType(catalog.PromptTypeReasoning)
	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
	if unsupported.Type != catalog.PromptTypeReasoning {
		t.Errorf("error names %q, want reasoning", unsupported.Type)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry(&fakeClient{})
	if err != nil {
		t.Fatalf("failed to build default registry: %v", err)
	}

	if !r.Supports(catalog.PromptTypeFactualQA) {
		t.Error("default registry should support factual_qa")
	}

	e, err := r.ForType(catalog.PromptTypeFactualQA)
	if err != nil {
		t.Fatalf("failed to construct evaluator: %v", err)
	}
	if e.Type() != catalog.PromptTypeFactualQA {
		t.Errorf("constructed evaluator has type %s", e.Type())
	}
}
