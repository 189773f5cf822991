package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubesage/kubesage-backend/internal/pkg/logger"
	"github.com/kubesage/kubesage-backend/internal/repository"
)

func TestBackendUpsert_DefaultHandoff(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackendService(store, logger.New("error"))
	ctx := context.Background()

	b, err := svc.Upsert(ctx, "u1", "b", map[string]any{"model": "gpt-4"}, true)
	require.NoError(t, err)
	assert.True(t, b.IsDefault)

	c, err := svc.Upsert(ctx, "u1", "c", map[string]any{"model": "llama3"}, true)
	require.NoError(t, err)
	assert.True(t, c.IsDefault)

	// The default moved: exactly "c" is flagged now.
	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, backend := range list {
		assert.Equal(t, backend.Name == "c", backend.IsDefault)
	}
}

func TestBackendUpsert_OverwriteKeepsSingleRow(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackendService(store, logger.New("error"))
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "u1", "openai", map[string]any{"model": "gpt-4"}, false)
	require.NoError(t, err)
	b, err := svc.Upsert(ctx, "u1", "openai", map[string]any{"model": "gpt-4o"}, false)
	require.NoError(t, err)
	assert.Contains(t, b.ConfigJSON, "gpt-4o")

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBackendDelete_OwnerScoped(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackendService(store, logger.New("error"))
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "u1", "openai", map[string]any{}, false)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "u2", "openai"), repository.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "u1", "openai"))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", "openai"), repository.ErrNotFound)
}
