// Package git implements the diff computer against a local repository. It is
// read-only with respect to version control state.
//
// Reference resolution, merge-base, and commit walking go through go-git;
// diff text is produced by the git binary (the only faithful source for
// working-tree diffs) and parsed by the diff package.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/bkyoung/branch-review/internal/diff"
	"github.com/bkyoung/branch-review/internal/domain"
)

// baseCandidates are tried in order when no base ref is configured.
var baseCandidates = []string{"main", "master", "develop", "dev"}

// Engine computes diffs and resolves repository metadata for one repo.
type Engine struct {
	repoDir string
}

// NewEngine constructs an engine rooted at repoDir (any directory inside the
// repository works; discovery walks upward).
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// RepoRoot returns the absolute path of the working tree root, the identity
// half of the review scope.
func (e *Engine) RepoRoot() (string, error) {
	out, err := e.runGit(context.Background(), "rev-parse", "--show-toplevel")
	if err != nil {
		return "", &domain.RepositoryStateError{Reason: "not inside a git repository", Err: err}
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name, or the short commit hash
// on a detached HEAD.
func (e *Engine) CurrentBranch() (string, error) {
	repo, err := e.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", &domain.RepositoryStateError{Reason: "repository has no commits", Err: err}
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

// DetectBaseRef picks the most likely base branch when none is configured.
func (e *Engine) DetectBaseRef() (string, error) {
	repo, err := e.open()
	if err != nil {
		return "", err
	}
	for _, candidate := range baseCandidates {
		if _, err := resolveCommit(repo, candidate); err == nil {
			return candidate, nil
		}
	}
	return "", &domain.RepositoryStateError{
		Reason: fmt.Sprintf("could not detect a base branch (tried %s)", strings.Join(baseCandidates, ", ")),
	}
}

// MergeBase returns the merge-base of HEAD and baseRef: the point a
// GitHub-style branch diff is computed from, so unrelated changes landed on
// the base after divergence never appear.
func (e *Engine) MergeBase(baseRef string) (string, error) {
	repo, err := e.open()
	if err != nil {
		return "", err
	}

	headRef, err := repo.Head()
	if err != nil {
		return "", &domain.RepositoryStateError{Reason: "repository has no commits", Err: err}
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return "", &domain.RepositoryStateError{Reason: "resolve HEAD commit", Err: err}
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return "", &domain.RepositoryStateError{
			Reason: fmt.Sprintf("base reference %q is not resolvable", baseRef),
			Err:    err,
		}
	}

	bases, err := headCommit.MergeBase(baseCommit)
	if err != nil || len(bases) == 0 {
		return "", &domain.RepositoryStateError{
			Reason: fmt.Sprintf("no merge-base between HEAD and %q", baseRef),
			Err:    err,
		}
	}
	return bases[0].Hash.String(), nil
}

// ComputeDiff produces the line-classified diff for the requested mode.
// DiffAgainstBase diffs merge-base(baseRef, HEAD) against the working tree,
// including untracked files; DiffUncommitted diffs only unstaged changes.
func (e *Engine) ComputeDiff(ctx context.Context, mode domain.DiffMode, baseRef string) (domain.Diff, error) {
	switch mode {
	case domain.DiffAgainstBase:
		mergeBase, err := e.MergeBase(baseRef)
		if err != nil {
			return domain.Diff{}, err
		}
		raw, err := e.runGit(ctx, "diff", mergeBase)
		if err != nil {
			return domain.Diff{}, &domain.RepositoryStateError{Reason: "diff against merge-base", Err: err}
		}
		files, err := diff.Parse([]byte(raw))
		if err != nil {
			return domain.Diff{}, err
		}
		untracked, err := e.untrackedFileDiffs(ctx)
		if err != nil {
			return domain.Diff{}, err
		}
		return domain.Diff{FromRef: mergeBase, ToRef: "worktree", Files: append(files, untracked...)}, nil

	case domain.DiffUncommitted:
		// Plain `git diff` is index-to-worktree: exactly the unstaged set.
		raw, err := e.runGit(ctx, "diff")
		if err != nil {
			return domain.Diff{}, &domain.RepositoryStateError{Reason: "diff working tree", Err: err}
		}
		files, err := diff.Parse([]byte(raw))
		if err != nil {
			return domain.Diff{}, err
		}
		return domain.Diff{FromRef: "HEAD", ToRef: "worktree", Files: files}, nil

	default:
		return domain.Diff{}, fmt.Errorf("unknown diff mode %d", mode)
	}
}

// CommitsSince walks HEAD's history down to (excluding) the merge-base.
func (e *Engine) CommitsSince(mergeBase string) ([]domain.Commit, error) {
	repo, err := e.open()
	if err != nil {
		return nil, err
	}
	headRef, err := repo.Head()
	if err != nil {
		return nil, &domain.RepositoryStateError{Reason: "repository has no commits", Err: err}
	}

	iter, err := repo.Log(&goGit.LogOptions{From: headRef.Hash()})
	if err != nil {
		return nil, &domain.RepositoryStateError{Reason: "walk history", Err: err}
	}
	defer iter.Close()

	stop := errors.New("reached merge-base")
	var commits []domain.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Hash.String() == mergeBase {
			return stop
		}
		commits = append(commits, domain.Commit{
			Hash:      c.Hash.String(),
			ShortHash: c.Hash.String()[:7],
			Message:   c.Message,
			Author:    c.Author.Name,
			Email:     c.Author.Email,
			Timestamp: c.Author.When.Unix(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, stop) {
		return nil, &domain.RepositoryStateError{Reason: "walk history", Err: err}
	}
	return commits, nil
}

// UserName returns the configured git author name, used as the default
// comment author.
func (e *Engine) UserName(ctx context.Context) (string, error) {
	out, err := e.runGit(ctx, "config", "user.name")
	if err != nil {
		return "", fmt.Errorf("git user.name not configured: %w", err)
	}
	name := strings.TrimSpace(out)
	if name == "" {
		return "", errors.New("git user.name not configured")
	}
	return name, nil
}

func (e *Engine) open() (*goGit.Repository, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, &domain.RepositoryStateError{Reason: "not inside a git repository", Err: err}
	}
	return repo, nil
}

// untrackedFileDiffs synthesizes added-file diffs for untracked files so the
// against-base view matches what is on disk. git diff --no-index exits 1 when
// a difference exists, which is the expected case.
func (e *Engine) untrackedFileDiffs(ctx context.Context) ([]domain.FileDiff, error) {
	// -z gives NUL-separated, unquoted paths; names with spaces stay intact.
	out, err := e.runGit(ctx, "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, &domain.RepositoryStateError{Reason: "list untracked files", Err: err}
	}

	var files []domain.FileDiff
	for _, path := range strings.Split(out, "\x00") {
		if path == "" {
			continue
		}
		raw, err := e.runGitAllowExit1(ctx, "diff", "--no-index", "--", "/dev/null", path)
		if err != nil {
			return nil, &domain.RepositoryStateError{Reason: fmt.Sprintf("diff untracked file %s", path), Err: err}
		}
		parsed, err := diff.Parse([]byte(raw))
		if err != nil {
			return nil, err
		}
		files = append(files, parsed...)
	}
	return files, nil
}

func (e *Engine) runGit(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", e.repoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %v: %w", args, ctx.Err())
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("git %v: %w", args, err)
	}
	return stdout.String(), nil
}

// runGitAllowExit1 is runGit for commands where exit code 1 means "there is a
// difference" rather than failure (git diff --no-index).
func (e *Engine) runGitAllowExit1(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", e.repoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return stdout.String(), nil
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("git %v: %w", args, err)
	}
	return stdout.String(), nil
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}
