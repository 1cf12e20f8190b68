package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/domain"
)

type blockingRunner struct {
	started chan RunRequest
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, req RunRequest) (*Report, error) {
	b.started <- req
	select {
	case <-b.release:
		return &Report{Start: req.Start, Total: req.Total, Persisted: 3}, nil
	case <-ctx.Done():
		return &Report{Cancelled: true}, ctx.Err()
	}
}

func TestCoordinator_OneRunAtATime(t *testing.T) {
	r := &blockingRunner{started: make(chan RunRequest, 1), release: make(chan struct{})}
	c := NewCoordinator(context.Background(), r, nil, zap.NewNop())
	defer c.Stop()

	require.NoError(t, c.Submit(RunRequest{Start: 0, Total: 50}))
	<-r.started

	st := c.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.Current)
	assert.Equal(t, 50, st.Current.Total)

	assert.ErrorIs(t, c.Submit(RunRequest{Start: 0, Total: 50}), domain.ErrRunInProgress)

	close(r.release)
	c.Wait()

	st = c.Status()
	assert.False(t, st.Running)
	require.NotNil(t, st.Last)
	assert.Equal(t, 3, st.Last.Persisted)
	assert.Empty(t, st.LastError)
}

func TestCoordinator_RejectsInvalidRange(t *testing.T) {
	c := NewCoordinator(context.Background(), &blockingRunner{}, nil, zap.NewNop())
	defer c.Stop()

	assert.ErrorIs(t, c.Submit(RunRequest{Start: 0, Total: 10}), domain.ErrInvalidArgument)
	assert.False(t, c.Status().Running)
}

func TestCoordinator_StopCancelsRun(t *testing.T) {
	r := &blockingRunner{started: make(chan RunRequest, 1), release: make(chan struct{})}
	c := NewCoordinator(context.Background(), r, nil, zap.NewNop())

	require.NoError(t, c.Submit(RunRequest{Start: 0, Total: 50}))
	<-r.started
	c.Stop()

	st := c.Status()
	assert.False(t, st.Running)
	assert.Contains(t, st.LastError, "context canceled")
	require.NotNil(t, st.Last)
	assert.True(t, st.Last.Cancelled)
}
