package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubesage/kubesage-backend/internal/pkg/logger"
	"github.com/kubesage/kubesage-backend/internal/queue"
	"github.com/kubesage/kubesage-backend/internal/repository"
)

func newTestReconciler(t *testing.T, store *repository.Store, uploadDir string) *Reconciler {
	t.Helper()
	log := logger.New("error")
	q := queue.New("", "", 0, "test:tasks", log)
	return NewReconciler(store, q, uploadDir, time.Hour, time.Minute, log)
}

func TestOrphanSweep(t *testing.T) {
	store := newTestStore(t)
	cfg := newTestConfig(t)
	svc := newKubeconfigService(t, store, cfg)
	ctx := context.Background()

	valid, err := svc.Upload(ctx, "u1", []byte("x"), "valid.yaml")
	require.NoError(t, err)

	orphan := filepath.Join(cfg.UploadDir, "orphan.yaml")
	require.NoError(t, os.WriteFile(orphan, []byte("y"), 0o600))

	r := newTestReconciler(t, store, cfg.UploadDir)
	require.NoError(t, r.RunCycle(ctx))

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "unreferenced file must be deleted")

	_, err = os.Stat(valid.Path)
	assert.NoError(t, err, "referenced file must be kept")

	// The sweep never touches records.
	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLivenessSweep_DeactivatesMissingFile(t *testing.T) {
	store := newTestStore(t)
	cfg := newTestConfig(t)
	svc := newKubeconfigService(t, store, cfg)
	ctx := context.Background()

	kc, err := svc.Upload(ctx, "u1", []byte("x"), "c.yaml")
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, "u1", kc.Filename))
	require.NoError(t, os.Remove(kc.Path))

	r := newTestReconciler(t, store, cfg.UploadDir)
	require.NoError(t, r.RunCycle(ctx))

	// The record survives but is no longer active.
	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)
}

func TestLivenessSweep_LeavesHealthyRecordsAlone(t *testing.T) {
	store := newTestStore(t)
	cfg := newTestConfig(t)
	svc := newKubeconfigService(t, store, cfg)
	ctx := context.Background()

	kc, err := svc.Upload(ctx, "u1", []byte("x"), "c.yaml")
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, "u1", kc.Filename))

	r := newTestReconciler(t, store, cfg.UploadDir)
	require.NoError(t, r.RunCycle(ctx))

	active, err := svc.GetActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, kc.Filename, active.Filename)
}

func TestRunCycle_MissingUploadDir(t *testing.T) {
	store := newTestStore(t)
	r := newTestReconciler(t, store, filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, r.RunCycle(context.Background()), "a not-yet-created upload dir is not an error")
}

func TestReconciler_StartStop(t *testing.T) {
	store := newTestStore(t)
	cfg := newTestConfig(t)
	r := newTestReconciler(t, store, cfg.UploadDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	r.Stop()
}
