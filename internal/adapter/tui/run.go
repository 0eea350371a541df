package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bkyoung/branch-review/internal/domain"
)

// Run starts the viewer and blocks until it exits.
func Run(ctx context.Context, svc ReviewService, mode domain.DiffMode) error {
	program := tea.NewProgram(NewModel(ctx, svc, mode), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
