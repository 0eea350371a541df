package review_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/branch-review/internal/adapter/store/sqlite"
	"github.com/bkyoung/branch-review/internal/anchor"
	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/store"
	"github.com/bkyoung/branch-review/internal/usecase/review"
)

// fakeGit is a deterministic GitEngine for core tests.
type fakeGit struct {
	root     string
	branch   string
	base     string
	userName string
	userErr  error
	diff     domain.Diff
	commits  []domain.Commit
}

func (f *fakeGit) RepoRoot() (string, error)      { return f.root, nil }
func (f *fakeGit) CurrentBranch() (string, error) { return f.branch, nil }
func (f *fakeGit) DetectBaseRef() (string, error) { return f.base, nil }
func (f *fakeGit) MergeBase(string) (string, error) {
	return "abc123def4567890abc123def4567890abc123de", nil
}
func (f *fakeGit) ComputeDiff(context.Context, domain.DiffMode, string) (domain.Diff, error) {
	return f.diff, nil
}
func (f *fakeGit) CommitsSince(string) ([]domain.Commit, error) { return f.commits, nil }
func (f *fakeGit) UserName(context.Context) (string, error)     { return f.userName, f.userErr }

func intPtr(v int) *int { return &v }

func testDiff() domain.Diff {
	return domain.Diff{
		FromRef: "abc123d",
		ToRef:   "worktree",
		Files: []domain.FileDiff{
			{
				Path:   "src/app.go",
				Status: domain.FileStatusModified,
				Hunks: []domain.Hunk{
					{
						NewStart: 10, NewLines: 3, OldStart: 10, OldLines: 2,
						Lines: []domain.DiffLine{
							{Kind: domain.LineContext, Content: "a", OldLine: intPtr(10), NewLine: intPtr(10)},
							{Kind: domain.LineAdded, Content: "b", NewLine: intPtr(11)},
							{Kind: domain.LineAdded, Content: "c", NewLine: intPtr(12)},
						},
					},
				},
			},
		},
	}
}

func newTestService(t *testing.T, git *fakeGit, opts review.Options) (*review.Service, store.Store) {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return review.NewService(git, st, nil, opts), st
}

func defaultFakeGit() *fakeGit {
	return &fakeGit{
		root:     "/home/dev/proj",
		branch:   "feature",
		base:     "main",
		userName: "Dev One",
		diff:     testDiff(),
		commits:  []domain.Commit{{Hash: "abc", ShortHash: "abc", Message: "feature change\n"}},
	}
}

func TestService_ResolveScope(t *testing.T) {
	svc, _ := newTestService(t, defaultFakeGit(), review.Options{})

	scope, err := svc.ResolveScope(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/proj", scope.RepoPath)
	assert.Equal(t, "feature", scope.Branch)
	assert.Equal(t, "main", scope.BaseRef, "detected base when none configured")
}

func TestService_ResolveScope_ConfiguredBaseWins(t *testing.T) {
	svc, _ := newTestService(t, defaultFakeGit(), review.Options{BaseRef: "develop"})

	scope, err := svc.ResolveScope(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "develop", scope.BaseRef)
}

func TestService_CreateComment_DefaultsAuthor(t *testing.T) {
	svc, _ := newTestService(t, defaultFakeGit(), review.Options{})
	ctx := context.Background()

	created, err := svc.CreateComment(ctx, store.NewComment{
		FilePath: "src/app.go", StartLine: 11, EndLine: 12, Body: "check this",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dev One", created.Author, "git user.name is the default author")

	// Explicit author wins over everything.
	created, err = svc.CreateComment(ctx, store.NewComment{
		FilePath: "src/app.go", StartLine: 11, EndLine: 11, Body: "x", Author: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Author)
}

func TestService_CreateComment_ConfiguredAuthor(t *testing.T) {
	git := defaultFakeGit()
	git.userErr = errors.New("not configured")
	svc, _ := newTestService(t, git, review.Options{Author: "bot"})

	created, err := svc.CreateComment(context.Background(), store.NewComment{
		FilePath: "src/app.go", StartLine: 1, EndLine: 1, Body: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "bot", created.Author)
}

func TestService_CreateComment_FallbackAuthor(t *testing.T) {
	git := defaultFakeGit()
	git.userErr = errors.New("not configured")
	svc, _ := newTestService(t, git, review.Options{})

	created, err := svc.CreateComment(context.Background(), store.NewComment{
		FilePath: "src/app.go", StartLine: 1, EndLine: 1, Body: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "Agent", created.Author)

	svc, _ = newTestService(t, git, review.Options{FallbackAuthor: "You"})
	created, err = svc.CreateComment(context.Background(), store.NewComment{
		FilePath: "src/app.go", StartLine: 1, EndLine: 1, Body: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "You", created.Author)
}

func TestService_ReplyAndLifecycle(t *testing.T) {
	svc, _ := newTestService(t, defaultFakeGit(), review.Options{})
	ctx := context.Background()

	created, err := svc.CreateComment(ctx, store.NewComment{
		FilePath: "src/app.go", StartLine: 11, EndLine: 12, Body: "check this",
	})
	require.NoError(t, err)

	reply, err := svc.Reply(ctx, created.ID, store.NewReply{Body: "done"})
	require.NoError(t, err)
	assert.Equal(t, "Dev One", reply.Author)

	require.NoError(t, svc.Resolve(ctx, created.ID))
	thread, err := svc.GetThread(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, thread.Resolved, "replying did not reopen; resolve sticks")
	require.Len(t, thread.Replies, 1)

	require.NoError(t, svc.Unresolve(ctx, created.ID))
	require.NoError(t, svc.DeleteComment(ctx, created.ID))

	var nfErr *domain.NotFoundError
	_, err = svc.GetThread(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, errors.As(err, &nfErr))
}

func TestService_TakeSnapshot(t *testing.T) {
	svc, _ := newTestService(t, defaultFakeGit(), review.Options{})
	ctx := context.Background()

	anchored, err := svc.CreateComment(ctx, store.NewComment{
		FilePath: "src/app.go", StartLine: 11, EndLine: 12, Body: "on the change",
	})
	require.NoError(t, err)
	orphan, err := svc.CreateComment(ctx, store.NewComment{
		FilePath: "src/app.go", StartLine: 200, EndLine: 200, Body: "line is gone",
	})
	require.NoError(t, err)

	snap, err := svc.TakeSnapshot(ctx, domain.DiffAgainstBase)
	require.NoError(t, err)

	assert.Equal(t, "feature", snap.Scope.Branch)
	require.Len(t, snap.Diff.Files, 1)
	require.Len(t, snap.Threads, 2)
	require.Len(t, snap.Commits, 1)
	assert.Equal(t, 2, snap.OpenCount())
	assert.Len(t, snap.ThreadsFor("src/app.go"), 2)
	assert.Empty(t, snap.ThreadsFor("other.go"))

	require.Contains(t, snap.Placements, anchored.ID)
	require.Contains(t, snap.Placements, orphan.ID)
	assert.Equal(t, anchor.StateAnchored, snap.Placements[anchored.ID].State)
	assert.Equal(t, anchor.StateOrphaned, snap.Placements[orphan.ID].State)
}

func TestService_TakeSnapshot_SeesOtherWriters(t *testing.T) {
	git := defaultFakeGit()
	svc, st := newTestService(t, git, review.Options{})
	ctx := context.Background()

	snap, err := svc.TakeSnapshot(ctx, domain.DiffAgainstBase)
	require.NoError(t, err)
	assert.Empty(t, snap.Threads)

	// A second writer (a CLI invocation) adds a comment behind our back.
	scope := domain.Scope{RepoPath: git.root, Branch: git.branch, BaseRef: git.base}
	_, err = st.CreateComment(ctx, scope, store.NewComment{
		FilePath: "src/app.go", StartLine: 11, EndLine: 11, Body: "from cli", Author: "a",
	})
	require.NoError(t, err)

	snap, err = svc.TakeSnapshot(ctx, domain.DiffAgainstBase)
	require.NoError(t, err)
	require.Len(t, snap.Threads, 1, "next poll replaces state wholesale")
}

func TestService_ToggleViewed(t *testing.T) {
	svc, _ := newTestService(t, defaultFakeGit(), review.Options{})
	ctx := context.Background()

	on, err := svc.ToggleViewed(ctx, "src/app.go")
	require.NoError(t, err)
	assert.True(t, on)

	snap, err := svc.TakeSnapshot(ctx, domain.DiffAgainstBase)
	require.NoError(t, err)
	assert.True(t, snap.Viewed["src/app.go"])

	off, err := svc.ToggleViewed(ctx, "src/app.go")
	require.NoError(t, err)
	assert.False(t, off)
}

func TestService_PollInterval(t *testing.T) {
	svc, _ := newTestService(t, defaultFakeGit(), review.Options{})
	assert.Equal(t, review.DefaultPollInterval, svc.PollInterval())

	svc, _ = newTestService(t, defaultFakeGit(), review.Options{PollInterval: 5 * time.Second})
	assert.Equal(t, 5*time.Second, svc.PollInterval())
}
