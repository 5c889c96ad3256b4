package llm

import "fmt"

// CompletionError is the single typed failure surfaced to callers. The
// client performs no retries; retry policy belongs to the caller.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
