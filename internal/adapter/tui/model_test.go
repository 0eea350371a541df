package tui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/store"
	"github.com/bkyoung/branch-review/internal/usecase/review"
)

// ctxService fails every call once its context is canceled, the way the
// real core's git and store calls do.
type ctxService struct{}

func (ctxService) PollInterval() time.Duration { return time.Second }

func (ctxService) TakeSnapshot(ctx context.Context, _ domain.DiffMode) (*review.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &review.Snapshot{Viewed: map[string]bool{}}, nil
}

func (ctxService) CreateComment(ctx context.Context, _ store.NewComment) (domain.Comment, error) {
	return domain.Comment{ID: 1}, ctx.Err()
}

func (ctxService) Reply(ctx context.Context, _ int64, _ store.NewReply) (domain.Reply, error) {
	return domain.Reply{ID: 1}, ctx.Err()
}

func (ctxService) Resolve(ctx context.Context, _ int64) error       { return ctx.Err() }
func (ctxService) Unresolve(ctx context.Context, _ int64) error     { return ctx.Err() }
func (ctxService) DeleteComment(ctx context.Context, _ int64) error { return ctx.Err() }

func (ctxService) ToggleViewed(ctx context.Context, _ string) (bool, error) {
	return false, ctx.Err()
}

func TestModel_CommandsCarryRunContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewModel(ctx, ctxService{}, domain.DiffAgainstBase)

	msg := m.refreshCmd()()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	require.NoError(t, snap.err)

	// Once the run context is canceled, in-flight commands fail instead of
	// outliving the program.
	cancel()

	msg = m.refreshCmd()()
	snap, ok = msg.(snapshotMsg)
	require.True(t, ok)
	assert.ErrorIs(t, snap.err, context.Canceled)

	msg = m.deleteCmd(1)()
	done, ok := msg.(actionDoneMsg)
	require.True(t, ok)
	assert.ErrorIs(t, done.err, context.Canceled)

	msg = m.createCommentCmd("a.go", 1, 1, "x")()
	done, ok = msg.(actionDoneMsg)
	require.True(t, ok)
	assert.ErrorIs(t, done.err, context.Canceled)
}

func TestNewModel_NilContextDefaults(t *testing.T) {
	m := NewModel(nil, ctxService{}, domain.DiffUncommitted)
	msg := m.refreshCmd()()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	assert.NoError(t, snap.err)
}
