package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_OneStreamPerConversation(t *testing.T) {
	ctx := context.Background()
	m, _, _ := setup(t)

	first, err := m.Begin("conv-1")
	require.NoError(t, err)

	_, err = m.Begin("conv-1")
	assert.ErrorIs(t, err, ErrStreamActive)

	other, err := m.Begin("conv-2")
	require.NoError(t, err)
	require.NoError(t, other.Cancel(ctx))

	require.NoError(t, first.Ingest(Chunk{Delta: "ok"}))
	_, err = first.Finalize(ctx)
	require.NoError(t, err)

	again, err := m.Begin("conv-1")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}

func TestManager_CancelAll(t *testing.T) {
	m, _, _ := setup(t)

	a, err := m.Begin("conv-1")
	require.NoError(t, err)
	b, err := m.Begin("conv-2")
	require.NoError(t, err)

	m.CancelAll(context.Background())
	assert.Equal(t, Cancelled, a.State())
	assert.Equal(t, Cancelled, b.State())

	_, active := m.Active("conv-1")
	assert.False(t, active)
}
