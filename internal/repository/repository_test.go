package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubesage/kubesage-backend/internal/models"
	"github.com/kubesage/kubesage-backend/internal/repository"
	"github.com/kubesage/kubesage-backend/migrations"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	schema, err := migrations.FS.ReadFile("001_initial_schema.sql")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations(string(schema)))
	return store
}

func seedKubeconfig(t *testing.T, store *repository.Store, userID, filename string) *models.Kubeconfig {
	t.Helper()
	kc := &models.Kubeconfig{
		UserID:           userID,
		Filename:         filename,
		OriginalFilename: "config.yaml",
		Path:             "/tmp/uploads/" + filename,
	}
	require.NoError(t, store.CreateKubeconfig(context.Background(), kc))
	return kc
}

func countActive(t *testing.T, store *repository.Store, userID string) (int, string) {
	t.Helper()
	list, err := store.ListKubeconfigs(context.Background(), userID)
	require.NoError(t, err)
	n := 0
	active := ""
	for _, kc := range list {
		if kc.Active {
			n++
			active = kc.Filename
		}
	}
	return n, active
}

func TestSetActiveKubeconfig_SingleActiveInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedKubeconfig(t, store, "u1", "a.yaml")
	seedKubeconfig(t, store, "u1", "b.yaml")
	seedKubeconfig(t, store, "u1", "c.yaml")

	require.NoError(t, store.SetActiveKubeconfig(ctx, "u1", "a.yaml"))
	n, active := countActive(t, store, "u1")
	assert.Equal(t, 1, n)
	assert.Equal(t, "a.yaml", active)

	require.NoError(t, store.SetActiveKubeconfig(ctx, "u1", "b.yaml"))
	n, active = countActive(t, store, "u1")
	assert.Equal(t, 1, n)
	assert.Equal(t, "b.yaml", active)
}

func TestSetActiveKubeconfig_ConcurrentActivations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 10
	for i := 0; i < workers; i++ {
		seedKubeconfig(t, store, "u1", fmt.Sprintf("kc-%d.yaml", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.SetActiveKubeconfig(ctx, "u1", fmt.Sprintf("kc-%d.yaml", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, _ := countActive(t, store, "u1")
	assert.Equal(t, 1, n, "exactly one kubeconfig must end up active")
}

func TestSetActiveKubeconfig_NotFoundAndCrossUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedKubeconfig(t, store, "u1", "mine.yaml")

	err := store.SetActiveKubeconfig(ctx, "u1", "ghost.yaml")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Another user's filename looks exactly like a missing one.
	err = store.SetActiveKubeconfig(ctx, "u2", "mine.yaml")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// The failed attempts must not have disturbed u1's state.
	n, _ := countActive(t, store, "u1")
	assert.Equal(t, 0, n)
}

func TestGetActiveKubeconfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetActiveKubeconfig(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	seedKubeconfig(t, store, "u1", "a.yaml")
	require.NoError(t, store.SetActiveKubeconfig(ctx, "u1", "a.yaml"))

	kc, err := store.GetActiveKubeconfig(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a.yaml", kc.Filename)

	// Activation is per-user.
	_, err = store.GetActiveKubeconfig(ctx, "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteKubeconfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedKubeconfig(t, store, "u1", "a.yaml")

	assert.ErrorIs(t, store.DeleteKubeconfig(ctx, "u2", "a.yaml"), repository.ErrNotFound)
	require.NoError(t, store.DeleteKubeconfig(ctx, "u1", "a.yaml"))
	assert.ErrorIs(t, store.DeleteKubeconfig(ctx, "u1", "a.yaml"), repository.ErrNotFound)
}

func TestAnalysisResults_OwnerScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ar := &models.AnalysisResult{
		UserID:      "u1",
		ClusterName: "prod",
		ResultID:    "r-1",
		ResultJSON:  `[{"name":"pod-x","kind":"Pod"}]`,
		Parameters:  `{}`,
	}
	require.NoError(t, store.CreateAnalysisResult(ctx, ar))

	got, err := store.GetAnalysisResult(ctx, "u1", "r-1")
	require.NoError(t, err)
	assert.Equal(t, ar.ResultJSON, got.ResultJSON)

	_, err = store.GetAnalysisResult(ctx, "u2", "r-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListAnalysisResults_OrderAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateAnalysisResult(ctx, &models.AnalysisResult{
			UserID:      "u1",
			ClusterName: "prod",
			ResultID:    fmt.Sprintf("r-%d", i),
			ResultJSON:  "[]",
			Parameters:  "{}",
		}))
	}

	page, err := store.ListAnalysisResults(ctx, "u1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := store.ListAnalysisResults(ctx, "u1", 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestUpsertAIBackend_OverwritesInPlace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := &models.AIBackend{UserID: "u1", Name: "openai", ConfigJSON: `{"model":"gpt-4"}`}
	require.NoError(t, store.UpsertAIBackend(ctx, b))

	b2 := &models.AIBackend{UserID: "u1", Name: "openai", ConfigJSON: `{"model":"gpt-4o"}`}
	require.NoError(t, store.UpsertAIBackend(ctx, b2))

	list, err := store.ListAIBackends(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1, "upsert must not create a duplicate row")
	assert.Equal(t, `{"model":"gpt-4o"}`, list[0].ConfigJSON)
}

func TestSetDefaultAIBackend_SingleDefaultInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAIBackend(ctx, &models.AIBackend{UserID: "u1", Name: "b", ConfigJSON: "{}"}))
	require.NoError(t, store.UpsertAIBackend(ctx, &models.AIBackend{UserID: "u1", Name: "c", ConfigJSON: "{}"}))

	require.NoError(t, store.SetDefaultAIBackend(ctx, "u1", "b"))
	require.NoError(t, store.SetDefaultAIBackend(ctx, "u1", "c"))

	list, err := store.ListAIBackends(ctx, "u1")
	require.NoError(t, err)
	defaults := 0
	for _, b := range list {
		if b.IsDefault {
			defaults++
			assert.Equal(t, "c", b.Name)
		}
	}
	assert.Equal(t, 1, defaults)
}
