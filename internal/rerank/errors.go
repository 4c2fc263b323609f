package rerank

import (
	"errors"
	"fmt"
)

// ErrInvalidTopN indicates a negative top_n. The request aborts instead of
// silently producing a truncated or malformed result list.
var ErrInvalidTopN = errors.New("top_n must not be negative")

// ScoringError wraps a failure raised by the scoring model or a malformed
// ranking it returned. The whole request aborts; nothing is retried.
type ScoringError struct {
	Err error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed: %v", e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}
