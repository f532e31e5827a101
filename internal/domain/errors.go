package domain

import (
	"errors"
	"fmt"
)

// ErrCancelled marks an operation observed as cancelled at a suspension
// point. Terminal; never retried.
var ErrCancelled = errors.New("operation cancelled")

// ExternalError wraps a failure from the embedding, rerank, or LLM service.
// The message always carries the endpoint URL and model name.
type ExternalError struct {
	Endpoint string
	Model    string
	Err      error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("external service failure (endpoint=%s model=%s): %v", e.Endpoint, e.Model, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }
