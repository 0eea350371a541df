// Package tui implements the interactive branch review viewer: a file tree,
// a diff pane with inline comment threads, and comment actions. It never
// holds authoritative state; every poll tick replaces the whole snapshot
// from the store and the working tree.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bkyoung/branch-review/internal/anchor"
	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/store"
	"github.com/bkyoung/branch-review/internal/usecase/review"
)

const filePaneWidth = 36

// ReviewService is the application core the viewer drives.
type ReviewService interface {
	PollInterval() time.Duration
	TakeSnapshot(ctx context.Context, mode domain.DiffMode) (*review.Snapshot, error)
	CreateComment(ctx context.Context, input store.NewComment) (domain.Comment, error)
	Reply(ctx context.Context, commentID int64, input store.NewReply) (domain.Reply, error)
	Resolve(ctx context.Context, id int64) error
	Unresolve(ctx context.Context, id int64) error
	DeleteComment(ctx context.Context, id int64) error
	ToggleViewed(ctx context.Context, path string) (bool, error)
}

type focusPane int

const (
	focusFiles focusPane = iota
	focusDiff
)

type inputMode int

const (
	inputNone inputMode = iota
	inputComment
	inputReply
)

type snapshotMsg struct {
	snap *review.Snapshot
	err  error
}

type pollTickMsg struct{}

type actionDoneMsg struct {
	info string
	err  error
}

type alertTickMsg struct{}

// Model is the Bubble Tea state container for the viewer.
type Model struct {
	keys KeyMap
	svc  ReviewService
	mode domain.DiffMode
	ctx  context.Context

	width  int
	height int
	ready  bool
	focus  focusPane

	snap *review.Snapshot
	idx  rowIndex

	fileCursor int
	fileScroll int

	diffCursor int
	rowStarts  []int
	diffView   viewport.Model

	// range selection for multi-line comments, new-side coordinates
	selectPath  string
	selectStart int

	input        textinput.Model
	inputMode    inputMode
	replyTarget  int64
	commentFile  string
	commentStart int
	commentEnd   int

	alertMsg   string
	alertUntil time.Time
	helpOpen   bool
	loading    bool
	err        error
}

// NewModel builds the viewer around the shared review core. ctx bounds every
// git and store call issued by the viewer's commands.
func NewModel(ctx context.Context, svc ReviewService, mode domain.DiffMode) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "Type comment"
	input.CharLimit = 4096
	input.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	input.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	m := Model{
		keys:    defaultKeyMap(),
		svc:     svc,
		mode:    mode,
		ctx:     ctx,
		focus:   focusFiles,
		input:   input,
		loading: true,
	}
	m.diffView = viewport.New(1, 1)
	m.diffView.SetContent("Loading diff...")
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.pollTickCmd(), alertTickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizePanes()
		m.refreshDiffContent()
		return m, nil

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			// Keep the previous snapshot; converge on the next tick.
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.applySnapshot(msg.snap)
		return m, nil

	case pollTickMsg:
		return m, tea.Batch(m.refreshCmd(), m.pollTickCmd())

	case actionDoneMsg:
		if msg.err != nil {
			m.setAlert(fmt.Sprintf("error: %v", msg.err))
			return m, nil
		}
		if msg.info != "" {
			m.setAlert(msg.info)
		}
		return m, m.refreshCmd()

	case alertTickMsg:
		if m.alertMsg != "" && !m.alertUntil.IsZero() && time.Now().After(m.alertUntil) {
			m.alertMsg = ""
			m.alertUntil = time.Time{}
		}
		return m, alertTickCmd()

	case tea.KeyMsg:
		if m.inputMode != inputNone {
			return m.handleInput(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) applySnapshot(snap *review.Snapshot) {
	m.snap = snap
	m.idx = buildRows(snap)
	if m.fileCursor >= len(snap.Diff.Files) {
		m.fileCursor = max(0, len(snap.Diff.Files)-1)
	}
	if m.diffCursor >= len(m.idx.rows) {
		m.diffCursor = firstSelectableRow(m.idx.rows)
	}
	m.refreshDiffContent()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.helpOpen = !m.helpOpen
		return m, nil

	case key.Matches(msg, m.keys.ToggleFocus):
		if m.focus == focusFiles {
			m.focus = focusDiff
		} else {
			m.focus = focusFiles
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.ToggleMode):
		if m.mode == domain.DiffAgainstBase {
			m.mode = domain.DiffUncommitted
		} else {
			m.mode = domain.DiffAgainstBase
		}
		m.clearSelection()
		m.loading = true
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, m.keys.Top):
		if m.focus == focusDiff {
			m.diffCursor = firstSelectableRow(m.idx.rows)
			m.ensureDiffCursorVisible()
		} else {
			m.fileCursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		if m.focus == focusDiff && len(m.idx.rows) > 0 {
			m.diffCursor = len(m.idx.rows) - 1
			m.ensureDiffCursorVisible()
		} else if m.snap != nil && len(m.snap.Diff.Files) > 0 {
			m.fileCursor = len(m.snap.Diff.Files) - 1
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.focus == focusFiles && m.snap != nil && m.fileCursor < len(m.snap.Diff.Files) {
			path := m.snap.Diff.Files[m.fileCursor].Path
			if start, ok := m.idx.fileStarts[path]; ok {
				m.diffCursor = start
				m.ensureDiffCursorVisible()
				m.focus = focusDiff
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleViewed):
		path := m.currentFilePath()
		if path == "" {
			return m, nil
		}
		return m, m.toggleViewedCmd(path)

	case key.Matches(msg, m.keys.SelectRange):
		m.toggleSelection()
		return m, nil

	case key.Matches(msg, m.keys.Comment):
		m.beginComment()
		return m, nil

	case key.Matches(msg, m.keys.Reply):
		if th := m.currentThread(); th != nil {
			m.inputMode = inputReply
			m.replyTarget = th.ID
			m.input.Placeholder = fmt.Sprintf("Reply to #%d", th.ID)
			m.input.SetValue("")
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Resolve):
		if th := m.currentThread(); th != nil {
			return m, m.resolveCmd(th.ID, th.Resolved)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if th := m.currentThread(); th != nil {
			return m, m.deleteCmd(th.ID)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputMode = inputNone
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		body := m.input.Value()
		if body == "" {
			return m, nil
		}
		mode := m.inputMode
		m.inputMode = inputNone
		m.input.Blur()
		if mode == inputReply {
			return m, m.replyCmd(m.replyTarget, body)
		}
		cmd := m.createCommentCmd(m.commentFile, m.commentStart, m.commentEnd, body)
		m.clearSelection()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// beginComment opens the input for the current line, or the selected range
// when one is active.
func (m *Model) beginComment() {
	line, path, ok := m.currentNewLine()
	if !ok {
		m.setAlert("Comments attach to new-side lines; move the cursor onto one.")
		return
	}

	start, end := line, line
	if m.selectStart > 0 && m.selectPath == path {
		start, end = m.selectStart, line
		if start > end {
			start, end = end, start
		}
	}

	m.commentFile = path
	m.commentStart = start
	m.commentEnd = end
	m.inputMode = inputComment
	if start == end {
		m.input.Placeholder = fmt.Sprintf("Comment on %s:%d", path, start)
	} else {
		m.input.Placeholder = fmt.Sprintf("Comment on %s:%d-%d", path, start, end)
	}
	m.input.SetValue("")
	m.input.Focus()
}

func (m *Model) toggleSelection() {
	if m.selectStart > 0 {
		m.clearSelection()
		return
	}
	line, path, ok := m.currentNewLine()
	if !ok {
		m.setAlert("Range selection starts on a new-side line.")
		return
	}
	m.selectPath = path
	m.selectStart = line
}

func (m *Model) clearSelection() {
	m.selectPath = ""
	m.selectStart = 0
}

// currentNewLine returns the new-side line number under the diff cursor.
func (m *Model) currentNewLine() (int, string, bool) {
	if m.focus != focusDiff || m.diffCursor >= len(m.idx.rows) {
		return 0, "", false
	}
	r := m.idx.rows[m.diffCursor]
	if r.kind != rowLine || r.line.NewLine == nil {
		return 0, "", false
	}
	return *r.line.NewLine, r.path, true
}

func (m *Model) currentThread() *domain.Thread {
	if m.focus != focusDiff || m.diffCursor >= len(m.idx.rows) {
		return nil
	}
	r := m.idx.rows[m.diffCursor]
	if r.kind != rowThread {
		return nil
	}
	return r.thread
}

func (m *Model) currentFilePath() string {
	if m.snap == nil {
		return ""
	}
	if m.focus == focusDiff && m.diffCursor < len(m.idx.rows) {
		return m.idx.rows[m.diffCursor].path
	}
	if m.fileCursor < len(m.snap.Diff.Files) {
		return m.snap.Diff.Files[m.fileCursor].Path
	}
	return ""
}

func (m *Model) moveCursor(delta int) {
	if m.focus == focusFiles {
		if m.snap == nil || len(m.snap.Diff.Files) == 0 {
			return
		}
		m.fileCursor = clamp(m.fileCursor+delta, 0, len(m.snap.Diff.Files)-1)
		m.ensureFileCursorVisible()
		return
	}

	// Diff pane: skip header rows so the cursor always rests on content.
	next := m.diffCursor
	for {
		next += delta
		if next < 0 || next >= len(m.idx.rows) {
			return
		}
		kind := m.idx.rows[next].kind
		if kind == rowLine || kind == rowThread {
			break
		}
	}
	m.diffCursor = next
	m.refreshDiffContent()
	m.ensureDiffCursorVisible()
}

func (m *Model) ensureFileCursorVisible() {
	visible := m.filePaneHeight()
	if visible <= 0 {
		return
	}
	if m.fileCursor < m.fileScroll {
		m.fileScroll = m.fileCursor
	}
	if m.fileCursor >= m.fileScroll+visible {
		m.fileScroll = m.fileCursor - visible + 1
	}
}

func (m *Model) ensureDiffCursorVisible() {
	m.refreshDiffContent()
	if m.diffCursor >= len(m.rowStarts) {
		return
	}
	start := m.rowStarts[m.diffCursor]
	if start < m.diffView.YOffset {
		m.diffView.SetYOffset(start)
	}
	if start >= m.diffView.YOffset+m.diffView.Height {
		m.diffView.SetYOffset(start - m.diffView.Height + 1)
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, svc, mode := m.ctx, m.svc, m.mode
	return func() tea.Msg {
		snap, err := svc.TakeSnapshot(ctx, mode)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) pollTickCmd() tea.Cmd {
	return tea.Tick(m.svc.PollInterval(), func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func alertTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return alertTickMsg{}
	})
}

func (m Model) createCommentCmd(path string, start, end int, body string) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		created, err := svc.CreateComment(ctx, store.NewComment{
			FilePath:  path,
			StartLine: start,
			EndLine:   end,
			Body:      body,
		})
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: fmt.Sprintf("Created comment #%d", created.ID)}
	}
}

func (m Model) replyCmd(id int64, body string) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		if _, err := svc.Reply(ctx, id, store.NewReply{Body: body}); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: fmt.Sprintf("Replied to #%d", id)}
	}
}

func (m Model) resolveCmd(id int64, resolved bool) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		if resolved {
			if err := svc.Unresolve(ctx, id); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{info: fmt.Sprintf("Reopened #%d", id)}
		}
		if err := svc.Resolve(ctx, id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: fmt.Sprintf("Resolved #%d", id)}
	}
}

func (m Model) deleteCmd(id int64) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		if err := svc.DeleteComment(ctx, id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: fmt.Sprintf("Deleted #%d", id)}
	}
}

func (m Model) toggleViewedCmd(path string) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		viewed, err := svc.ToggleViewed(ctx, path)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if viewed {
			return actionDoneMsg{info: fmt.Sprintf("Marked %s viewed", path)}
		}
		return actionDoneMsg{info: fmt.Sprintf("Unmarked %s", path)}
	}
}

func (m *Model) setAlert(msg string) {
	m.alertMsg = msg
	m.alertUntil = time.Now().Add(3 * time.Second)
}

// Placement note shown alongside threads whose anchor drifted.
func placementNote(p anchor.Placement) string {
	switch p.State {
	case anchor.StateClipped:
		return " (partially outside the current diff)"
	case anchor.StateOrphaned:
		return " (anchored lines no longer in the diff)"
	default:
		return ""
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
