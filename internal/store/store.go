// Package store defines the persistence port for review state: comments,
// replies, and viewed-file tracking, partitioned by scope.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/bkyoung/branch-review/internal/domain"
)

// StatusFilter narrows thread listings by resolution state.
type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterOpen     StatusFilter = "open"
	FilterResolved StatusFilter = "resolved"
)

// ParseStatusFilter validates a user-supplied filter string.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterAll, "":
		return FilterAll, nil
	case FilterOpen:
		return FilterOpen, nil
	case FilterResolved:
		return FilterResolved, nil
	default:
		return "", &domain.ValidationError{Message: fmt.Sprintf("invalid status filter %q (want all, open, or resolved)", s)}
	}
}

// NewComment carries the caller-supplied fields of a comment to be created.
type NewComment struct {
	FilePath  string
	StartLine int
	EndLine   int
	Body      string
	Author    string
}

// Validate enforces the comment invariants before anything touches disk.
func (c NewComment) Validate() error {
	if strings.TrimSpace(c.FilePath) == "" {
		return &domain.ValidationError{Message: "file path is required"}
	}
	if strings.HasPrefix(c.FilePath, "/") {
		return &domain.ValidationError{Message: "file path must be repository-relative"}
	}
	if c.StartLine < 1 || c.EndLine < 1 {
		return &domain.ValidationError{Message: fmt.Sprintf("line numbers must be >= 1 (got %d-%d)", c.StartLine, c.EndLine)}
	}
	if c.StartLine > c.EndLine {
		return &domain.ValidationError{Message: fmt.Sprintf("start line %d is after end line %d", c.StartLine, c.EndLine)}
	}
	if strings.TrimSpace(c.Body) == "" {
		return &domain.ValidationError{Message: "comment body is required"}
	}
	if strings.TrimSpace(c.Author) == "" {
		return &domain.ValidationError{Message: "author is required"}
	}
	return nil
}

// NewReply carries the caller-supplied fields of a reply.
type NewReply struct {
	Body   string
	Author string
}

// Validate enforces the reply invariants.
func (r NewReply) Validate() error {
	if strings.TrimSpace(r.Body) == "" {
		return &domain.ValidationError{Message: "reply body is required"}
	}
	if strings.TrimSpace(r.Author) == "" {
		return &domain.ValidationError{Message: "author is required"}
	}
	return nil
}

// Store is the durable review-state port. Implementations serialize
// concurrent writers and expose only fully committed state to readers.
type Store interface {
	// CreateComment persists a new open comment and returns it with its
	// allocated id and creation timestamp.
	CreateComment(ctx context.Context, scope domain.Scope, input NewComment) (domain.Comment, error)

	// AddReply appends a reply under an existing comment. Replies are looked
	// up by comment id across all scopes.
	AddReply(ctx context.Context, commentID int64, input NewReply) (domain.Reply, error)

	// Resolve and Unresolve flip the resolved flag. Both are idempotent:
	// repeating either is a no-op success.
	Resolve(ctx context.Context, commentID int64) error
	Unresolve(ctx context.Context, commentID int64) error

	// DeleteComment removes a comment and all its replies in one transaction.
	DeleteComment(ctx context.Context, commentID int64) error

	// ListThreads returns threads for the scope matching the filter, ordered
	// by comment id ascending.
	ListThreads(ctx context.Context, scope domain.Scope, filter StatusFilter) ([]domain.Thread, error)

	// GetThread returns a single thread by comment id.
	GetThread(ctx context.Context, commentID int64) (domain.Thread, error)

	// Viewed-file tracking for the interactive viewer.
	MarkViewed(ctx context.Context, scope domain.Scope, filePath string) error
	UnmarkViewed(ctx context.Context, scope domain.Scope, filePath string) error
	ViewedFiles(ctx context.Context, scope domain.Scope) ([]domain.ViewedFile, error)
	ClearViewed(ctx context.Context, scope domain.Scope) error

	Close() error
}
