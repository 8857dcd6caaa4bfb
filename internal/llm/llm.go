package llm

import (
	"context"
	"fmt"
)

// Provider is the completion and embedding boundary. Implementations must be
// safe for concurrent use; every retrieval worker shares one provider.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionError reports a non-2xx response from the model API. Callers
// treat it as retryable transport failure.
type CompletionError struct {
	StatusCode int
	Body       string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("llm status %d: %s", e.StatusCode, e.Body)
}
