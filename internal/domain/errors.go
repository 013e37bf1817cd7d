package domain

import (
	"errors"
	"fmt"
)

// ErrIndexUnavailable marks infrastructure failures of the retrieval path
// (index unreachable, uninitialized, embedding service down). Callers must
// keep it distinct from an empty retrieval, which is a normal outcome.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// GenerationError wraps a failed LLM call after the gateway's own retries
// are exhausted. The core does not retry again.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("llm generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
