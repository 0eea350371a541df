package tui

import (
	"fmt"

	"github.com/bkyoung/branch-review/internal/anchor"
	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/usecase/review"
)

type rowKind int

const (
	rowFileHeader rowKind = iota
	rowHunkHeader
	rowCommit
	rowLine
	rowThread
)

// row is one renderable line of the diff pane. Thread rows sit directly
// below the line they anchor to; orphaned threads sit below their nearest
// hunk's header.
type row struct {
	kind      rowKind
	path      string
	line      domain.DiffLine
	header    string
	commit    *domain.Commit
	thread    *domain.Thread
	placement anchor.Placement
}

// fileStart maps a file path to its header row index.
type rowIndex struct {
	rows       []row
	fileStarts map[string]int
}

// buildRows flattens a snapshot into the diff pane's row list. Branch commits
// come first, then files with their threads interleaved deterministically: by
// anchor position, then by id. Threads that have no file or hunk to attach to
// close the list in an unanchored section so every comment stays visible.
func buildRows(snap *review.Snapshot) rowIndex {
	idx := rowIndex{fileStarts: make(map[string]int, len(snap.Diff.Files))}

	if snap.Mode == domain.DiffAgainstBase && len(snap.Commits) > 0 {
		idx.rows = append(idx.rows, row{kind: rowFileHeader, header: fmt.Sprintf("Commits (%d)", len(snap.Commits))})
		for ci := range snap.Commits {
			idx.rows = append(idx.rows, row{kind: rowCommit, commit: &snap.Commits[ci]})
		}
	}

	placed := make(map[int64]bool, len(snap.Threads))
	for fi := range snap.Diff.Files {
		file := &snap.Diff.Files[fi]
		idx.fileStarts[file.Path] = len(idx.rows)
		idx.rows = append(idx.rows, row{kind: rowFileHeader, path: file.Path, header: fileHeaderText(file)})

		lineThreads, hunkThreads := placeThreads(snap, file, placed)

		for hi := range file.Hunks {
			hunk := &file.Hunks[hi]
			idx.rows = append(idx.rows, row{kind: rowHunkHeader, path: file.Path, header: hunk.Header()})
			idx.rows = append(idx.rows, hunkThreads[hi]...)

			for _, line := range hunk.Lines {
				idx.rows = append(idx.rows, row{kind: rowLine, path: file.Path, line: line})
				if line.NewLine != nil {
					idx.rows = append(idx.rows, lineThreads[*line.NewLine]...)
				}
			}
		}
	}

	var unanchored []row
	for ti := range snap.Threads {
		thread := &snap.Threads[ti]
		if placed[thread.ID] {
			continue
		}
		unanchored = append(unanchored, row{
			kind:      rowThread,
			path:      thread.FilePath,
			thread:    thread,
			placement: snap.Placements[thread.ID],
		})
	}
	if len(unanchored) > 0 {
		idx.rows = append(idx.rows, row{kind: rowFileHeader, header: fmt.Sprintf("Unanchored comments (%d)", len(unanchored))})
		idx.rows = append(idx.rows, unanchored...)
	}
	return idx
}

// placeThreads splits a file's threads into line-attached rows (anchored and
// clipped, keyed by the last visible new-side line) and hunk-attached rows
// (orphaned, keyed by nearest hunk index). Threads it cannot attach are left
// unmarked in placed and render in the trailing unanchored section.
func placeThreads(snap *review.Snapshot, file *domain.FileDiff, placed map[int64]bool) (map[int][]row, map[int][]row) {
	lineThreads := make(map[int][]row)
	hunkThreads := make(map[int][]row)

	for ti := range snap.Threads {
		thread := &snap.Threads[ti]
		if thread.FilePath != file.Path {
			continue
		}
		placement, ok := snap.Placements[thread.ID]
		if !ok {
			continue
		}
		threadRow := row{kind: rowThread, path: file.Path, thread: thread, placement: placement}

		switch placement.State {
		case anchor.StateAnchored, anchor.StateClipped:
			last := placement.Visible[len(placement.Visible)-1]
			lineThreads[last] = append(lineThreads[last], threadRow)
			placed[thread.ID] = true
		case anchor.StateOrphaned:
			hi := placement.HunkIndex
			if hi < 0 || hi >= len(file.Hunks) {
				hi = 0
			}
			if len(file.Hunks) > 0 {
				hunkThreads[hi] = append(hunkThreads[hi], threadRow)
				placed[thread.ID] = true
			}
		}
	}
	return lineThreads, hunkThreads
}

func fileHeaderText(file *domain.FileDiff) string {
	label := file.Path
	if file.Status == domain.FileStatusRenamed && file.OldPath != "" {
		label = file.OldPath + " -> " + file.Path
	}
	return fmt.Sprintf("%s (%s, +%d -%d)", label, file.Status, file.Stats.Additions, file.Stats.Deletions)
}

// rowForLine finds the first row index showing newLine of path, for jumping
// the cursor to a thread's anchor.
func (idx rowIndex) rowForLine(path string, newLine int) int {
	for i, r := range idx.rows {
		if r.kind == rowLine && r.path == path && r.line.NewLine != nil && *r.line.NewLine == newLine {
			return i
		}
	}
	return -1
}

// firstSelectableRow returns the first row the cursor can rest on.
func firstSelectableRow(rows []row) int {
	for i, r := range rows {
		if r.kind == rowLine || r.kind == rowThread {
			return i
		}
	}
	return 0
}
