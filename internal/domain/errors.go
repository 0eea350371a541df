package domain

import "fmt"

// RepositoryStateError reports a repository that cannot serve the requested
// diff: not a git repository, no commits, or an unresolvable base reference.
// Not retryable.
type RepositoryStateError struct {
	Reason string
	Err    error
}

func (e *RepositoryStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repository state: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("repository state: %s", e.Reason)
}

func (e *RepositoryStateError) Unwrap() error { return e.Err }

// ValidationError reports malformed caller input (bad line range, empty
// required field). Surfaced verbatim, never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports an unknown comment or reply id.
type NotFoundError struct {
	Kind string // "comment" or "reply"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// StoreUnavailableError reports lock contention beyond the bounded wait or a
// storage medium failure. Callers may retry inherently idempotent operations.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
