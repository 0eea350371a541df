// Package anchor places stored comments onto a freshly computed diff.
//
// A comment's line range is an immutable fact recorded at creation time in
// new-file coordinates. The diff it was created against may since have changed
// shape, so placement degrades instead of mutating the comment: fully present
// ranges anchor normally, partially present ranges clip to the surviving
// lines, and ranges with no surviving line render orphaned at the nearest
// hunk boundary.
package anchor

import (
	"github.com/bkyoung/branch-review/internal/domain"
)

// State describes how well a comment's stored range maps onto the current diff.
type State int

const (
	// StateAnchored means every line in [StartLine, EndLine] is present on
	// the new-file side of the diff.
	StateAnchored State = iota
	// StateClipped means only part of the range survives; rendering uses the
	// original bounds clipped to the visible lines.
	StateClipped
	// StateOrphaned means no line of the range is present. The comment is
	// still retrievable and renders at the nearest surviving hunk boundary.
	StateOrphaned
)

func (s State) String() string {
	switch s {
	case StateAnchored:
		return "anchored"
	case StateClipped:
		return "clipped"
	default:
		return "orphaned"
	}
}

// Placement is the rendering decision for one comment against one FileDiff.
type Placement struct {
	State State
	// Visible holds the new-file line numbers of the stored range that exist
	// in the current diff, ascending. Empty when orphaned.
	Visible []int
	// HunkIndex is the hunk the comment renders in: the hunk containing the
	// first visible line, or the nearest hunk by new-side distance when
	// orphaned. -1 when the file has no hunks at all.
	HunkIndex int
}

// Place maps a comment onto the current diff for its file. The comment's file
// path must already match file.Path; callers filter by path first.
func Place(file domain.FileDiff, c domain.Comment) Placement {
	visible := make([]int, 0, c.EndLine-c.StartLine+1)
	hunkIndex := -1

	for i, h := range file.Hunks {
		for _, line := range h.Lines {
			if line.NewLine == nil {
				continue
			}
			n := *line.NewLine
			if n >= c.StartLine && n <= c.EndLine {
				if hunkIndex == -1 {
					hunkIndex = i
				}
				visible = append(visible, n)
			}
		}
	}

	switch {
	case len(visible) == 0:
		return Placement{State: StateOrphaned, HunkIndex: nearestHunk(file, c.StartLine)}
	case len(visible) == c.EndLine-c.StartLine+1:
		return Placement{State: StateAnchored, Visible: visible, HunkIndex: hunkIndex}
	default:
		return Placement{State: StateClipped, Visible: visible, HunkIndex: hunkIndex}
	}
}

// PlaceAll resolves placements for every thread against the diff, keyed by
// comment id. Comments on files absent from the diff are orphaned with no
// hunk to attach to.
func PlaceAll(files []domain.FileDiff, threads []domain.Thread) map[int64]Placement {
	byPath := make(map[string]*domain.FileDiff, len(files))
	for i := range files {
		byPath[files[i].Path] = &files[i]
	}

	placements := make(map[int64]Placement, len(threads))
	for _, t := range threads {
		file, ok := byPath[t.FilePath]
		if !ok {
			placements[t.ID] = Placement{State: StateOrphaned, HunkIndex: -1}
			continue
		}
		placements[t.ID] = Place(*file, t.Comment)
	}
	return placements
}

// nearestHunk picks the hunk whose new-side range lies closest to the wanted
// line. Ties go to the earlier hunk.
func nearestHunk(file domain.FileDiff, line int) int {
	best := -1
	bestDist := 0
	for i, h := range file.Hunks {
		start := h.NewStart
		end := h.NewStart + h.NewLines - 1
		var dist int
		switch {
		case line < start:
			dist = start - line
		case line > end:
			dist = line - end
		default:
			dist = 0
		}
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}
