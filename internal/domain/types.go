package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	FileStatusAdded    = "added"
	FileStatusModified = "modified"
	FileStatusDeleted  = "deleted"
	FileStatusRenamed  = "renamed"
	FileStatusBinary   = "binary"
)

// Scope identifies the (repository, branch) partition that all review state
// belongs to. Switching branches changes the visible comment set entirely.
type Scope struct {
	RepoPath string
	Branch   string
	BaseRef  string
}

// Key returns the scope's stable identity, without the base ref. Comments
// created against different base refs on the same branch share a partition.
func (s Scope) Key() string {
	return s.RepoPath + "@" + s.Branch
}

// DiffMode selects what a diff is computed against.
type DiffMode int

const (
	// DiffAgainstBase diffs merge-base(base, HEAD) against the working tree,
	// producing a GitHub-style "what does this branch add" view.
	DiffAgainstBase DiffMode = iota
	// DiffUncommitted diffs HEAD against the working tree, unstaged changes only.
	DiffUncommitted
)

// LineKind classifies a single diff row.
type LineKind int

const (
	LineContext LineKind = iota
	LineAdded
	LineRemoved
)

// DiffLine is one rendered row of a hunk. Context and added lines carry a
// new-file number; context and removed lines carry an old-file number.
type DiffLine struct {
	Kind    LineKind
	Content string
	OldLine *int
	NewLine *int
}

// Hunk is a contiguous change region with old/new coordinate offsets.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []DiffLine
}

// Header renders the hunk in unified diff form.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// DiffStats counts added and removed lines for a file.
type DiffStats struct {
	Additions int
	Deletions int
}

func (s DiffStats) String() string {
	return fmt.Sprintf("+%d -%d", s.Additions, s.Deletions)
}

// FileDiff captures the change for a single file. Binary files and
// permission-only changes have no hunks.
type FileDiff struct {
	Path    string
	OldPath string // set for renames
	Status  string
	Hunks   []Hunk
	Stats   DiffStats
}

// Diff is the complete diff between two points: an ordered set of FileDiffs.
type Diff struct {
	FromRef string
	ToRef   string
	Files   []FileDiff
}

// TotalStats sums the per-file stats.
func (d Diff) TotalStats() DiffStats {
	var total DiffStats
	for _, f := range d.Files {
		total.Additions += f.Stats.Additions
		total.Deletions += f.Stats.Deletions
	}
	return total
}

// Commit is one commit on the branch under review.
type Commit struct {
	Hash      string
	ShortHash string
	Message   string
	Author    string
	Email     string
	Timestamp int64
}

// Summary returns the first line of the commit message.
func (c Commit) Summary() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return c.Message[:i]
	}
	return c.Message
}

// Comment is a line-anchored review note. Line numbers are 1-based, inclusive,
// and expressed in new-file coordinates of the diff the comment was created
// against. Stored positions are immutable; recomputing the diff never rewrites
// them (rendering degrades instead, see the anchor package).
type Comment struct {
	ID         int64   `json:"id"`
	FilePath   string  `json:"file_path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	CreatedAt  int64   `json:"created_at"` // epoch milliseconds
	Resolved   bool    `json:"resolved"`
	ResolvedAt *int64  `json:"resolved_at,omitempty"`
	Replies    []Reply `json:"replies"`
}

// LineRangeDisplay formats the anchored range for human output.
func (c Comment) LineRangeDisplay() string {
	if c.StartLine == c.EndLine {
		return fmt.Sprintf("line %d", c.StartLine)
	}
	return fmt.Sprintf("lines %d-%d", c.StartLine, c.EndLine)
}

// RelativeTime renders the comment age against the current clock.
func (c Comment) RelativeTime() string {
	return relativeTime(c.CreatedAt)
}

// Reply is a follow-up on a comment. Replies cannot outlive their parent.
type Reply struct {
	ID        int64  `json:"id"`
	CommentID int64  `json:"-"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"` // epoch milliseconds
}

// RelativeTime renders the reply age against the current clock.
func (r Reply) RelativeTime() string {
	return relativeTime(r.CreatedAt)
}

// Thread is the derived view the store hands out: a comment plus its replies
// ordered by creation time ascending.
type Thread struct {
	Comment
}

// ViewedFile records that a file's diff was reviewed in the TUI.
type ViewedFile struct {
	FilePath string
	ViewedAt int64 // epoch milliseconds
}

// NowMillis returns the current time as epoch milliseconds, the unit used for
// every persisted timestamp.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

func relativeTime(epochMillis int64) string {
	diff := time.Now().UnixMilli() - epochMillis
	seconds := diff / 1000
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 604800:
		return plural(seconds/86400, "day")
	case seconds < 2592000:
		return plural(seconds/604800, "week")
	default:
		return plural(seconds/2592000, "month")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
