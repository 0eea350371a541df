// Package review implements the application core: scope resolution, diff
// snapshots, and comment lifecycle operations shared by the CLI and the
// viewer. It depends only on outbound ports.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/bkyoung/branch-review/internal/anchor"
	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/store"
)

// DefaultPollInterval is how often the viewer re-reads the store and the
// working tree when no interval is configured.
const DefaultPollInterval = 2 * time.Second

// GitEngine abstracts repository access for the review core.
type GitEngine interface {
	// RepoRoot returns the absolute working tree root.
	RepoRoot() (string, error)

	// CurrentBranch returns the checked-out branch, or a short hash on a
	// detached HEAD.
	CurrentBranch() (string, error)

	// DetectBaseRef picks a base branch when none is configured.
	DetectBaseRef() (string, error)

	// MergeBase returns the merge-base commit of HEAD and baseRef.
	MergeBase(baseRef string) (string, error)

	// ComputeDiff produces the diff for the requested mode.
	ComputeDiff(ctx context.Context, mode domain.DiffMode, baseRef string) (domain.Diff, error)

	// CommitsSince lists branch commits newer than the merge-base.
	CommitsSince(mergeBase string) ([]domain.Commit, error)

	// UserName returns the configured git author name.
	UserName(ctx context.Context) (string, error)
}

// Logger provides structured logging for the review use case.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// Options carries configured overrides; zero values mean "derive it".
type Options struct {
	// BaseRef overrides base branch detection when non-empty.
	BaseRef string

	// Author overrides the git user.name default for new comments and
	// replies when non-empty.
	Author string

	// FallbackAuthor is used when neither an explicit author, a
	// configured one, nor git user.name is available. The CLI uses
	// "Agent", the viewer "You".
	FallbackAuthor string

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
}

// Service is the shared application core. All methods derive the review
// scope from the repository state at call time, so a long-lived viewer and
// short-lived CLI invocations operate on the same keys.
type Service struct {
	git    GitEngine
	store  store.Store
	logger Logger
	opts   Options
}

// NewService wires the review core to its ports. logger may be nil.
func NewService(git GitEngine, st store.Store, logger Logger, opts Options) *Service {
	return &Service{git: git, store: st, logger: logger, opts: opts}
}

// PollInterval returns the effective refresh cadence for the viewer.
func (s *Service) PollInterval() time.Duration {
	if s.opts.PollInterval > 0 {
		return s.opts.PollInterval
	}
	return DefaultPollInterval
}

// ResolveScope derives the identity every comment and viewed-file record is
// keyed by: repository root plus current branch, with the effective base ref
// carried alongside.
func (s *Service) ResolveScope(ctx context.Context) (domain.Scope, error) {
	root, err := s.git.RepoRoot()
	if err != nil {
		return domain.Scope{}, err
	}
	branch, err := s.git.CurrentBranch()
	if err != nil {
		return domain.Scope{}, err
	}
	base, err := s.baseRef()
	if err != nil {
		return domain.Scope{}, err
	}
	return domain.Scope{RepoPath: root, Branch: branch, BaseRef: base}, nil
}

func (s *Service) baseRef() (string, error) {
	if s.opts.BaseRef != "" {
		return s.opts.BaseRef, nil
	}
	return s.git.DetectBaseRef()
}

// Snapshot is one coherent view of the review: the current diff, every
// thread in scope placed against it, branch commits, and viewed-file state.
// The viewer replaces its whole model with each new snapshot.
type Snapshot struct {
	Scope      domain.Scope
	Mode       domain.DiffMode
	Diff       domain.Diff
	Threads    []domain.Thread
	Placements map[int64]anchor.Placement
	Commits    []domain.Commit
	Viewed     map[string]bool
	TakenAt    time.Time
}

// ThreadsFor returns the threads anchored to one file, in id order.
func (snap *Snapshot) ThreadsFor(path string) []domain.Thread {
	var out []domain.Thread
	for _, th := range snap.Threads {
		if th.FilePath == path {
			out = append(out, th)
		}
	}
	return out
}

// OpenCount returns how many threads in the snapshot are unresolved.
func (snap *Snapshot) OpenCount() int {
	n := 0
	for _, th := range snap.Threads {
		if !th.Resolved {
			n++
		}
	}
	return n
}

// TakeSnapshot recomputes the diff, reloads every thread in scope, and
// re-anchors them. This is the poll body: state is replaced, never merged,
// so the viewer converges to the store within one interval.
func (s *Service) TakeSnapshot(ctx context.Context, mode domain.DiffMode) (*Snapshot, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}

	d, err := s.git.ComputeDiff(ctx, mode, scope.BaseRef)
	if err != nil {
		return nil, err
	}

	threads, err := s.store.ListThreads(ctx, scope, store.FilterAll)
	if err != nil {
		return nil, err
	}

	var commits []domain.Commit
	if mode == domain.DiffAgainstBase {
		mergeBase, err := s.git.MergeBase(scope.BaseRef)
		if err != nil {
			return nil, err
		}
		commits, err = s.git.CommitsSince(mergeBase)
		if err != nil {
			return nil, err
		}
	}

	viewedRecords, err := s.store.ViewedFiles(ctx, scope)
	if err != nil {
		return nil, err
	}
	viewed := make(map[string]bool, len(viewedRecords))
	for _, v := range viewedRecords {
		viewed[v.FilePath] = true
	}

	return &Snapshot{
		Scope:      scope,
		Mode:       mode,
		Diff:       d,
		Threads:    threads,
		Placements: anchor.PlaceAll(d.Files, threads),
		Commits:    commits,
		Viewed:     viewed,
		TakenAt:    time.Now(),
	}, nil
}

// ListThreads returns the scoped threads matching the status filter.
func (s *Service) ListThreads(ctx context.Context, filter store.StatusFilter) ([]domain.Thread, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListThreads(ctx, scope, filter)
}

// GetThread returns one thread by id, unscoped: ids are global, so a thread
// created on another branch is still addressable.
func (s *Service) GetThread(ctx context.Context, id int64) (domain.Thread, error) {
	return s.store.GetThread(ctx, id)
}

// CreateComment opens a new thread in the current scope. An empty author
// falls back to the configured author, then to git user.name.
func (s *Service) CreateComment(ctx context.Context, input store.NewComment) (domain.Comment, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.Comment{}, err
	}
	input.Author, err = s.resolveAuthor(ctx, input.Author)
	if err != nil {
		return domain.Comment{}, err
	}
	return s.store.CreateComment(ctx, scope, input)
}

// Reply appends to an existing thread. Replying keeps the thread's resolved
// state; reopening is explicit via Unresolve.
func (s *Service) Reply(ctx context.Context, commentID int64, input store.NewReply) (domain.Reply, error) {
	var err error
	input.Author, err = s.resolveAuthor(ctx, input.Author)
	if err != nil {
		return domain.Reply{}, err
	}
	return s.store.AddReply(ctx, commentID, input)
}

// Resolve marks a thread resolved. Idempotent.
func (s *Service) Resolve(ctx context.Context, id int64) error {
	return s.store.Resolve(ctx, id)
}

// Unresolve reopens a thread. Idempotent.
func (s *Service) Unresolve(ctx context.Context, id int64) error {
	return s.store.Unresolve(ctx, id)
}

// DeleteComment removes a thread and its replies.
func (s *Service) DeleteComment(ctx context.Context, id int64) error {
	return s.store.DeleteComment(ctx, id)
}

// ToggleViewed flips the viewed checkbox for one file in the current scope
// and returns the new state.
func (s *Service) ToggleViewed(ctx context.Context, path string) (bool, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return false, err
	}
	viewed, err := s.store.ViewedFiles(ctx, scope)
	if err != nil {
		return false, err
	}
	for _, v := range viewed {
		if v.FilePath == path {
			return false, s.store.UnmarkViewed(ctx, scope, path)
		}
	}
	return true, s.store.MarkViewed(ctx, scope, path)
}

func (s *Service) resolveAuthor(ctx context.Context, explicit string) (string, error) {
	if a := strings.TrimSpace(explicit); a != "" {
		return a, nil
	}
	if s.opts.Author != "" {
		return s.opts.Author, nil
	}
	name, err := s.git.UserName(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.LogWarning(ctx, "git user.name unavailable, using fallback author", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if s.opts.FallbackAuthor != "" {
			return s.opts.FallbackAuthor, nil
		}
		return "Agent", nil
	}
	return name, nil
}
