package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bkyoung/branch-review/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)

	focusedBorderStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6"))
	unfocusedBorderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))

	fileHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	hunkHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	addedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	lineNumStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	cursorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)

	threadStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	threadResolvedSty = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	alertStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	viewedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	selectionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

func (m *Model) resizePanes() {
	m.diffView.Width = max(1, m.width-filePaneWidth-4)
	m.diffView.Height = max(1, m.bodyHeight()-2)
}

func (m Model) bodyHeight() int {
	// header, footer, alert/input line
	return max(3, m.height-3)
}

func (m Model) filePaneHeight() int {
	return max(1, m.bodyHeight()-2)
}

// refreshDiffContent rebuilds the viewport content and the row offset table
// used for cursor tracking.
func (m *Model) refreshDiffContent() {
	if m.snap == nil {
		return
	}
	width := max(1, m.diffView.Width)

	var lines []string
	m.rowStarts = make([]int, len(m.idx.rows))
	for i, r := range m.idx.rows {
		m.rowStarts[i] = len(lines)
		lines = append(lines, m.renderRow(r, i == m.diffCursor, width)...)
	}
	if len(lines) == 0 {
		m.diffView.SetContent("No changes to review.")
		return
	}
	m.diffView.SetContent(strings.Join(lines, "\n"))
}

func (m *Model) renderRow(r row, isCursor bool, width int) []string {
	mark := " "
	if isCursor {
		mark = cursorStyle.Render(">")
	}

	switch r.kind {
	case rowFileHeader:
		return []string{"", mark + " " + fileHeaderStyle.Render(ansi.Truncate(r.header, width-2, ""))}

	case rowHunkHeader:
		return []string{mark + " " + hunkHeaderStyle.Render(ansi.Truncate(r.header, width-2, ""))}

	case rowCommit:
		return []string{mark + " " + m.renderCommit(r.commit, width-2)}

	case rowLine:
		return []string{mark + " " + m.renderDiffLine(r, width-2)}

	case rowThread:
		return m.renderThread(r, mark, width)
	}
	return nil
}

func (m *Model) renderCommit(c *domain.Commit, width int) string {
	out := fmt.Sprintf("%s %s · %s", lineNumStyle.Render(c.ShortHash), c.Summary(), c.Author)
	return ansi.Truncate(out, width, "")
}

func (m *Model) renderDiffLine(r row, width int) string {
	line := r.line
	oldNum, newNum := "    ", "    "
	if line.OldLine != nil {
		oldNum = fmt.Sprintf("%4d", *line.OldLine)
	}
	if line.NewLine != nil {
		newNum = fmt.Sprintf("%4d", *line.NewLine)
	}

	var marker string
	var content string
	switch line.Kind {
	case domain.LineAdded:
		marker = addedStyle.Render("+")
		content = addedStyle.Render(line.Content)
	case domain.LineRemoved:
		marker = removedStyle.Render("-")
		content = removedStyle.Render(line.Content)
	default:
		marker = " "
		content = highlightLine(line.Content, r.path)
	}

	selected := ""
	if m.selectStart > 0 && m.selectPath == r.path && line.NewLine != nil {
		lo, hi := m.selectStart, m.selectStart
		if cur, _, ok := m.currentNewLine(); ok {
			if cur < lo {
				lo = cur
			} else {
				hi = cur
			}
		}
		if *line.NewLine >= lo && *line.NewLine <= hi {
			selected = selectionStyle.Render("│")
		}
	}
	if selected == "" {
		selected = " "
	}

	out := fmt.Sprintf("%s %s %s%s %s", lineNumStyle.Render(oldNum), lineNumStyle.Render(newNum), selected, marker, content)
	return ansi.Truncate(out, width, "")
}

func (m *Model) renderThread(r row, mark string, width int) []string {
	th := r.thread
	style := threadStyle
	status := "Open"
	if th.Resolved {
		style = threadResolvedSty
		status = "Resolved"
	}

	bar := style.Render("┃")
	head := fmt.Sprintf("#%d [%s] %s · %s%s", th.ID, status, th.Author, th.RelativeTime(), placementNote(r.placement))

	lines := []string{mark + "      " + bar + " " + style.Render(ansi.Truncate(head, width-10, ""))}
	for _, bodyLine := range strings.Split(strings.TrimRight(th.Body, "\n"), "\n") {
		lines = append(lines, "       "+bar+" "+ansi.Truncate(bodyLine, width-10, ""))
	}
	for _, reply := range th.Replies {
		replyHead := fmt.Sprintf("↳ %s · %s", reply.Author, reply.RelativeTime())
		lines = append(lines, "       "+bar+" "+helpStyle.Render(ansi.Truncate(replyHead, width-10, "")))
		for _, bodyLine := range strings.Split(strings.TrimRight(reply.Body, "\n"), "\n") {
			lines = append(lines, "       "+bar+"   "+ansi.Truncate(bodyLine, width-12, ""))
		}
	}
	return lines
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderFilePane(), m.renderDiffPane())
	footer := m.renderFooter()
	status := m.renderStatusLine()

	return header + "\n" + body + "\n" + status + "\n" + footer
}

func (m Model) renderHeader() string {
	title := "br"
	if m.snap != nil {
		modeLabel := "vs " + m.snap.Scope.BaseRef
		if m.mode == domain.DiffUncommitted {
			modeLabel = "uncommitted only"
		}
		title = fmt.Sprintf("br · %s · %s · %d open", m.snap.Scope.Branch, modeLabel, m.snap.OpenCount())
		if m.loading {
			title += " · refreshing"
		}
	}
	if m.err != nil {
		title += errorStyle.Render(" · " + m.err.Error())
	}
	return headerStyle.Width(m.width).Render(ansi.Truncate(title, max(1, m.width-2), ""))
}

func (m Model) renderFilePane() string {
	style := unfocusedBorderStyle
	if m.focus == focusFiles {
		style = focusedBorderStyle
	}

	innerW := filePaneWidth - 2
	height := m.filePaneHeight()
	var lines []string

	if m.snap == nil || len(m.snap.Diff.Files) == 0 {
		lines = append(lines, "No changed files.")
	} else {
		visible := m.snap.Diff.Files
		start := clamp(m.fileScroll, 0, max(0, len(visible)-1))
		for i := start; i < len(visible) && len(lines) < height; i++ {
			lines = append(lines, m.renderFileItem(i, innerW))
		}
	}
	for len(lines) < height {
		lines = append(lines, "")
	}

	return style.Width(innerW).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderFileItem(i, width int) string {
	file := m.snap.Diff.Files[i]

	mark := " "
	if i == m.fileCursor && m.focus == focusFiles {
		mark = cursorStyle.Render(">")
	}
	check := " "
	if m.snap.Viewed[file.Path] {
		check = viewedStyle.Render("✓")
	}

	count := ""
	if n := len(m.snap.ThreadsFor(file.Path)); n > 0 {
		count = threadStyle.Render(fmt.Sprintf(" %d●", n))
	}
	stats := fmt.Sprintf(" +%d -%d", file.Stats.Additions, file.Stats.Deletions)

	suffix := stats + count
	pathW := max(1, width-2-lipgloss.Width(suffix))
	return mark + check + ansi.Truncate(file.Path, pathW, "…") + suffix
}

func (m Model) renderDiffPane() string {
	style := unfocusedBorderStyle
	if m.focus == focusDiff {
		style = focusedBorderStyle
	}
	return style.Render(m.diffView.View())
}

func (m Model) renderStatusLine() string {
	if m.inputMode != inputNone {
		return m.input.Placeholder + ": " + m.input.View()
	}
	if m.alertMsg != "" {
		return alertStyle.Render(ansi.Truncate(m.alertMsg, max(1, m.width), ""))
	}
	return ""
}

func (m Model) renderFooter() string {
	if m.helpOpen {
		return helpStyle.Render(
			"j/k move · tab focus · enter open · c comment · V range · a reply · x resolve · d delete\n" +
				"v viewed · u diff source · r refresh · g/G top/bottom · ? close help · q quit")
	}
	return helpStyle.Render("? help · c comment · x resolve · v viewed · u diff source · q quit")
}
