package git_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/branch-review/internal/adapter/git"
	"github.com/bkyoung/branch-review/internal/domain"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func defaultSignature() *object.Signature {
	return &object.Signature{
		Name:  "Test Author",
		Email: "test@example.com",
		When:  time.Now(),
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func commitAll(t *testing.T, worktree *goGit.Worktree, message string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		_, err := worktree.Add(p)
		require.NoError(t, err)
	}
	_, err := worktree.Commit(message, &goGit.CommitOptions{Author: defaultSignature()})
	require.NoError(t, err)
}

func checkoutNewBranch(t *testing.T, worktree *goGit.Worktree, name string) {
	t.Helper()
	err := worktree.Checkout(&goGit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	require.NoError(t, err)
}

// setupBranchRepo builds: master with one commit, feature branched off with
// one commit changing main.go, then master is left behind.
func setupBranchRepo(t *testing.T) (string, *goGit.Worktree) {
	t.Helper()
	tmp := t.TempDir()

	repo, err := goGit.PlainInit(tmp, false)
	require.NoError(t, err)
	worktree, err := repo.Worktree()
	require.NoError(t, err)

	writeFile(t, tmp, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n")
	commitAll(t, worktree, "initial", "main.go")

	checkoutNewBranch(t, worktree, "feature")
	writeFile(t, tmp, "main.go", "package main\n\nfunc main() {\n\tprintln(\"feature\")\n}\n")
	commitAll(t, worktree, "feature change", "main.go")

	return tmp, worktree
}

func TestEngine_CurrentBranch(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)

	engine := git.NewEngine(tmp)
	branch, err := engine.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature", branch)
}

func TestEngine_RepoRoot(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)

	sub := filepath.Join(tmp, "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	engine := git.NewEngine(sub)
	root, err := engine.RepoRoot()
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(tmp)
	require.NoError(t, err)
	assert.Equal(t, resolved, root)
}

func TestEngine_ComputeDiff_AgainstBase(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)
	ctx := context.Background()

	engine := git.NewEngine(tmp)
	d, err := engine.ComputeDiff(ctx, domain.DiffAgainstBase, "master")
	require.NoError(t, err)

	require.Len(t, d.Files, 1)
	f := d.Files[0]
	assert.Equal(t, "main.go", f.Path)
	assert.Equal(t, domain.FileStatusModified, f.Status)
	require.NotEmpty(t, f.Hunks)

	var sawFeature bool
	for _, h := range f.Hunks {
		for _, line := range h.Lines {
			if line.Kind == domain.LineAdded && line.Content == "\tprintln(\"feature\")" {
				sawFeature = true
			}
		}
	}
	assert.True(t, sawFeature, "expected the feature change as an added line")
}

func TestEngine_ComputeDiff_IncludesWorkingTree(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)
	ctx := context.Background()

	// Edit without committing: the against-base view must match the disk.
	writeFile(t, tmp, "main.go", "package main\n\nfunc main() {\n\tprintln(\"dirty\")\n}\n")

	engine := git.NewEngine(tmp)
	d, err := engine.ComputeDiff(ctx, domain.DiffAgainstBase, "master")
	require.NoError(t, err)
	require.Len(t, d.Files, 1)

	var sawDirty bool
	for _, h := range d.Files[0].Hunks {
		for _, line := range h.Lines {
			if line.Kind == domain.LineAdded && line.Content == "\tprintln(\"dirty\")" {
				sawDirty = true
			}
		}
	}
	assert.True(t, sawDirty)
}

func TestEngine_ComputeDiff_IncludesUntrackedFiles(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)
	ctx := context.Background()

	writeFile(t, tmp, "notes.txt", "hello\nworld\n")

	engine := git.NewEngine(tmp)
	d, err := engine.ComputeDiff(ctx, domain.DiffAgainstBase, "master")
	require.NoError(t, err)
	require.Len(t, d.Files, 2)

	var added *domain.FileDiff
	for i := range d.Files {
		if d.Files[i].Path == "notes.txt" {
			added = &d.Files[i]
		}
	}
	require.NotNil(t, added, "untracked file should appear in the diff")
	assert.Equal(t, domain.FileStatusAdded, added.Status)
	assert.Equal(t, 2, added.Stats.Additions)
}

func TestEngine_ComputeDiff_UntrackedPathWithSpaces(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)
	ctx := context.Background()

	writeFile(t, tmp, "my notes.txt", "hello\n")

	engine := git.NewEngine(tmp)
	d, err := engine.ComputeDiff(ctx, domain.DiffAgainstBase, "master")
	require.NoError(t, err)

	var found *domain.FileDiff
	for i := range d.Files {
		if d.Files[i].Path == "my notes.txt" {
			found = &d.Files[i]
		}
	}
	require.NotNil(t, found, "untracked file with a space must appear in the diff")
	assert.Equal(t, domain.FileStatusAdded, found.Status)
	assert.Equal(t, 1, found.Stats.Additions)
}

func TestEngine_ComputeDiff_ExcludesBaseOnlyChanges(t *testing.T) {
	requireGit(t)
	tmp, worktree := setupBranchRepo(t)
	ctx := context.Background()

	// Land an unrelated change on master after the branch diverged.
	err := worktree.Checkout(&goGit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("master")})
	require.NoError(t, err)
	writeFile(t, tmp, "unrelated.go", "package main\n")
	commitAll(t, worktree, "unrelated on master", "unrelated.go")
	err = worktree.Checkout(&goGit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("feature")})
	require.NoError(t, err)

	engine := git.NewEngine(tmp)
	d, err := engine.ComputeDiff(ctx, domain.DiffAgainstBase, "master")
	require.NoError(t, err)

	for _, f := range d.Files {
		assert.NotEqual(t, "unrelated.go", f.Path, "merge-base diff must not show base-only changes")
	}
}

func TestEngine_ComputeDiff_UncommittedOnlyExcludesStaged(t *testing.T) {
	requireGit(t)
	tmp, worktree := setupBranchRepo(t)
	ctx := context.Background()

	// One staged and one unstaged modification: only the unstaged one shows.
	writeFile(t, tmp, "staged.go", "package staged\n")
	commitAll(t, worktree, "add staged.go", "staged.go")

	writeFile(t, tmp, "staged.go", "package staged // staged edit\n")
	_, err := worktree.Add("staged.go")
	require.NoError(t, err)

	writeFile(t, tmp, "main.go", "package main\n\nfunc main() {\n\tprintln(\"unstaged\")\n}\n")

	engine := git.NewEngine(tmp)
	d, err := engine.ComputeDiff(ctx, domain.DiffUncommitted, "master")
	require.NoError(t, err)

	require.Len(t, d.Files, 1)
	assert.Equal(t, "main.go", d.Files[0].Path)
}

func TestEngine_MergeBase(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)

	engine := git.NewEngine(tmp)
	mergeBase, err := engine.MergeBase("master")
	require.NoError(t, err)
	assert.Len(t, mergeBase, 40)

	commits, err := engine.CommitsSince(mergeBase)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "feature change", commits[0].Summary())
	assert.Equal(t, "Test Author", commits[0].Author)
}

func TestEngine_DetectBaseRef(t *testing.T) {
	requireGit(t)
	tmp, _ := setupBranchRepo(t)

	engine := git.NewEngine(tmp)
	base, err := engine.DetectBaseRef()
	require.NoError(t, err)
	assert.Equal(t, "master", base)
}

func TestEngine_Errors(t *testing.T) {
	requireGit(t)

	var repoErr *domain.RepositoryStateError

	// Not a repository.
	engine := git.NewEngine(t.TempDir())
	_, err := engine.CurrentBranch()
	require.Error(t, err)
	assert.True(t, errors.As(err, &repoErr))

	// Unresolvable base ref.
	tmp, _ := setupBranchRepo(t)
	engine = git.NewEngine(tmp)
	_, err = engine.ComputeDiff(context.Background(), domain.DiffAgainstBase, "no-such-branch")
	require.Error(t, err)
	require.True(t, errors.As(err, &repoErr))
	assert.Contains(t, repoErr.Error(), "no-such-branch")
}
