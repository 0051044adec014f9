// Package runtime provides the provider gateway for completion and embedding requests.
package runtime

import (
	"fmt"
	"net/http"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// CompletionParams contains parameters for a completion request.
type CompletionParams struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stop        []string
	Metadata    map[string]string
}

// CompletionResult contains the result of a completion request.
type CompletionResult struct {
	ID       string
	Content  string
	Message  Message
	Provider string
	Model    string
	Usage    Usage
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// EmbedParams contains parameters for an embedding request.
type EmbedParams struct {
	Texts []string
	Model string
}

// EmbedResult contains the result of an embedding request.
type EmbedResult struct {
	Embeddings []Embedding
	Model      string
	Provider   string
	Usage      Usage
}

// Embedding represents a single embedding vector.
type Embedding struct {
	Values     []float32
	Dimensions int
}

// ErrorKind classifies a provider failure for retry decisions.
type ErrorKind string

const (
	ErrorKindAuth        ErrorKind = "auth"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindTransient   ErrorKind = "transient"
	ErrorKindUnknown     ErrorKind = "unknown"
)

// ProviderError is a classified failure from a provider call.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// Retryable reports whether the failure can be retried against the
// same provider. Auth failures and unclassified errors are not.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ErrorKindRateLimited || e.Kind == ErrorKindTransient
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorKindAuth
	case status == http.StatusTooManyRequests:
		return ErrorKindRateLimited
	case status >= 500:
		return ErrorKindTransient
	default:
		return ErrorKindUnknown
	}
}

// apiError builds a classified ProviderError from an HTTP response.
func apiError(provider string, status int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       classifyStatus(status),
		StatusCode: status,
		Message:    message,
	}
}

// transportError wraps a transport-level failure (connection refused,
// timeout) as transient.
func transportError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     ErrorKindTransient,
		Message:  err.Error(),
	}
}
