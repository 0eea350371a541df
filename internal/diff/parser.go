package diff

import (
	"fmt"
	"strings"

	sgdiff "github.com/sourcegraph/go-diff/diff"

	"github.com/bkyoung/branch-review/internal/domain"
)

// Parse converts raw multi-file unified diff output into domain FileDiffs,
// preserving file order. An empty input yields an empty slice.
func Parse(raw []byte) ([]domain.FileDiff, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []domain.FileDiff{}, nil
	}

	fileDiffs, err := sgdiff.ParseMultiFileDiff(raw)
	if err != nil {
		return nil, fmt.Errorf("parse unified diff: %w", err)
	}

	files := make([]domain.FileDiff, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		files = append(files, convertFile(fd))
	}
	return files, nil
}

func convertFile(fd *sgdiff.FileDiff) domain.FileDiff {
	path, oldPath, status := pathAndStatus(fd)

	file := domain.FileDiff{
		Path:    path,
		OldPath: oldPath,
		Status:  status,
	}

	if isBinary(fd) {
		file.Status = domain.FileStatusBinary
		return file
	}

	for _, h := range fd.Hunks {
		hunk := convertHunk(h)
		for _, line := range hunk.Lines {
			switch line.Kind {
			case domain.LineAdded:
				file.Stats.Additions++
			case domain.LineRemoved:
				file.Stats.Deletions++
			}
		}
		file.Hunks = append(file.Hunks, hunk)
	}
	return file
}

func convertHunk(h *sgdiff.Hunk) domain.Hunk {
	hunk := domain.Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
	}

	oldLn := hunk.OldStart
	newLn := hunk.NewStart
	for _, line := range splitHunkBody(h.Body) {
		if line == "" {
			// A bare empty line inside a hunk body is an empty context row.
			hunk.Lines = append(hunk.Lines, domain.DiffLine{
				Kind:    domain.LineContext,
				OldLine: intPtr(oldLn),
				NewLine: intPtr(newLn),
			})
			oldLn++
			newLn++
			continue
		}
		switch line[0] {
		case '+':
			hunk.Lines = append(hunk.Lines, domain.DiffLine{
				Kind:    domain.LineAdded,
				Content: line[1:],
				NewLine: intPtr(newLn),
			})
			newLn++
		case '-':
			hunk.Lines = append(hunk.Lines, domain.DiffLine{
				Kind:    domain.LineRemoved,
				Content: line[1:],
				OldLine: intPtr(oldLn),
			})
			oldLn++
		case '\\':
			// "\ No newline at end of file"
		default:
			content := line
			if content[0] == ' ' {
				content = content[1:]
			}
			hunk.Lines = append(hunk.Lines, domain.DiffLine{
				Kind:    domain.LineContext,
				Content: content,
				OldLine: intPtr(oldLn),
				NewLine: intPtr(newLn),
			})
			oldLn++
			newLn++
		}
	}
	return hunk
}

func pathAndStatus(fd *sgdiff.FileDiff) (path, oldPath, status string) {
	orig := normalizePath(fd.OrigName)
	updated := normalizePath(fd.NewName)

	switch {
	case orig == "" && updated != "":
		return updated, "", domain.FileStatusAdded
	case orig != "" && updated == "":
		return orig, "", domain.FileStatusDeleted
	case orig != updated:
		return updated, orig, domain.FileStatusRenamed
	default:
		return updated, "", domain.FileStatusModified
	}
}

// normalizePath strips git's a/ b/ prefixes and maps /dev/null to "".
func normalizePath(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

func isBinary(fd *sgdiff.FileDiff) bool {
	if len(fd.Hunks) > 0 {
		return false
	}
	for _, line := range fd.Extended {
		if strings.HasPrefix(line, "Binary files ") || strings.HasPrefix(line, "GIT binary patch") {
			return true
		}
	}
	return false
}

func splitHunkBody(body []byte) []string {
	lines := strings.Split(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func intPtr(n int) *int {
	v := n
	return &v
}
