// Package catalog provides the model and prompt registry.
package catalog

import (
	"strings"
	"time"
)

// Provider identifies where a model is hosted.
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderGoogle      Provider = "google"
	ProviderHuggingFace Provider = "huggingface"
	ProviderLocal       Provider = "local"
)

// Providers lists every known provider.
func Providers() []Provider {
	return []Provider{
		ProviderOpenAI,
		ProviderAnthropic,
		ProviderGoogle,
		ProviderHuggingFace,
		ProviderLocal,
	}
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderHuggingFace, ProviderLocal:
		return true
	}
	return false
}

// ParseProvider converts a string to a Provider. Unknown strings
// return the empty provider, which is never valid.
func ParseProvider(s string) Provider {
	p := Provider(strings.ToLower(s))
	if !p.Valid() {
		return Provider("")
	}
	return p
}

// PromptType categorizes a prompt by the capability it exercises.
type PromptType string

const (
	PromptTypeFactualQA PromptType = "factual_qa"
	PromptTypeReasoning PromptType = "reasoning"
	PromptTypeCoding    PromptType = "coding"
	PromptTypeMath      PromptType = "math"
	PromptTypeSafety    PromptType = "safety"
	PromptTypeJailbreak PromptType = "jailbreak"
	PromptTypeAgent     PromptType = "agent"
)

// PromptTypes lists every known prompt type.
func PromptTypes() []PromptType {
	return []PromptType{
		PromptTypeFactualQA,
		PromptTypeReasoning,
		PromptTypeCoding,
		PromptTypeMath,
		PromptTypeSafety,
		PromptTypeJailbreak,
		PromptTypeAgent,
	}
}

// Valid reports whether t is a known prompt type.
func (t PromptType) Valid() bool {
	switch t {
	case PromptTypeFactualQA, PromptTypeReasoning, PromptTypeCoding,
		PromptTypeMath, PromptTypeSafety, PromptTypeJailbreak, PromptTypeAgent:
		return true
	}
	return false
}

// ParsePromptType converts a string to a PromptType. Unknown strings
// return the empty type, which is never valid.
func ParsePromptType(s string) PromptType {
	t := PromptType(strings.ToLower(s))
	if !t.Valid() {
		return PromptType("")
	}
	return t
}

// Model represents a registered model under evaluation. Fields other
// than UpdatedAt are immutable after creation.
type Model struct {
	ID          string
	Name        string
	Provider    Provider
	Version     string
	Description string
	Parameters  map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Prompt represents a registered evaluation prompt. Content is
// immutable after creation.
type Prompt struct {
	ID        string
	Content   string
	Type      PromptType
	Tags      []string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateModelInput contains input for registering a model.
type CreateModelInput struct {
	Name        string
	Provider    Provider
	Version     string
	Description string
	Parameters  map[string]string
}

// CreatePromptInput contains input for registering a prompt.
type CreatePromptInput struct {
	Content  string
	Type     PromptType
	Tags     []string
	Metadata map[string]string
}

// ListModelsQuery contains filters for listing models.
type ListModelsQuery struct {
	Provider Provider
	Search   string
	Limit    int
	Offset   int
}

// ListPromptsQuery contains filters for listing prompts.
type ListPromptsQuery struct {
	Type   PromptType
	Tags   []string
	Limit  int
	Offset int
}

// CopyModel creates a deep copy of a model.
func CopyModel(m *Model) *Model {
	if m == nil {
		return nil
	}

	cp := *m
	if m.Parameters != nil {
		cp.Parameters = make(map[string]string, len(m.Parameters))
		for k, v := range m.Parameters {
			cp.Parameters[k] = v
		}
	}
	return &cp
}

// CopyPrompt creates a deep copy of a prompt.
func CopyPrompt(p *Prompt) *Prompt {
	if p == nil {
		return nil
	}

	cp := *p
	cp.Tags = make([]string, len(p.Tags))
	copy(cp.Tags, p.Tags)
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
