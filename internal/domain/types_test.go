package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bkyoung/branch-review/internal/domain"
)

func TestScope_Key(t *testing.T) {
	a := domain.Scope{RepoPath: "/home/dev/proj", Branch: "feature", BaseRef: "main"}
	b := domain.Scope{RepoPath: "/home/dev/proj", Branch: "feature", BaseRef: "develop"}
	c := domain.Scope{RepoPath: "/home/dev/proj", Branch: "other", BaseRef: "main"}

	// Base ref does not partition comments; branch does.
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestHunk_Header(t *testing.T) {
	h := domain.Hunk{OldStart: 10, OldLines: 7, NewStart: 10, NewLines: 8}
	assert.Equal(t, "@@ -10,7 +10,8 @@", h.Header())
}

func TestDiff_TotalStats(t *testing.T) {
	d := domain.Diff{
		Files: []domain.FileDiff{
			{Path: "a.go", Stats: domain.DiffStats{Additions: 3, Deletions: 1}},
			{Path: "b.go", Stats: domain.DiffStats{Additions: 2, Deletions: 5}},
		},
	}
	assert.Equal(t, domain.DiffStats{Additions: 5, Deletions: 6}, d.TotalStats())
	assert.Equal(t, "+5 -6", d.TotalStats().String())
}

func TestCommit_Summary(t *testing.T) {
	c := domain.Commit{Message: "Add parser\n\nLonger body here."}
	assert.Equal(t, "Add parser", c.Summary())

	single := domain.Commit{Message: "One liner"}
	assert.Equal(t, "One liner", single.Summary())
}

func TestComment_LineRangeDisplay(t *testing.T) {
	single := domain.Comment{StartLine: 4, EndLine: 4}
	assert.Equal(t, "line 4", single.LineRangeDisplay())

	multi := domain.Comment{StartLine: 4, EndLine: 9}
	assert.Equal(t, "lines 4-9", multi.LineRangeDisplay())
}

func TestComment_RelativeTime(t *testing.T) {
	fresh := domain.Comment{CreatedAt: domain.NowMillis()}
	assert.Equal(t, "just now", fresh.RelativeTime())

	old := domain.Comment{CreatedAt: domain.NowMillis() - 2*3600*1000}
	assert.Equal(t, "2 hours ago", old.RelativeTime())
}

func TestErrorTaxonomy(t *testing.T) {
	var repoErr *domain.RepositoryStateError
	wrapped := fmt.Errorf("compute diff: %w", &domain.RepositoryStateError{Reason: "no commits"})
	assert.True(t, errors.As(wrapped, &repoErr))
	assert.Contains(t, repoErr.Error(), "no commits")

	var notFound *domain.NotFoundError
	err := fmt.Errorf("resolve: %w", &domain.NotFoundError{Kind: "comment", ID: 42})
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "comment 42 not found", notFound.Error())

	var unavailable *domain.StoreUnavailableError
	inner := errors.New("database is locked")
	err = &domain.StoreUnavailableError{Err: inner}
	assert.True(t, errors.As(err, &unavailable))
	assert.ErrorIs(t, err, inner)
}
