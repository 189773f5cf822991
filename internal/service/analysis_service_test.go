package service

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubesage/kubesage-backend/internal/cache"
	"github.com/kubesage/kubesage-backend/internal/cmdexec"
	"github.com/kubesage/kubesage-backend/internal/config"
	"github.com/kubesage/kubesage-backend/internal/models"
	"github.com/kubesage/kubesage-backend/internal/pkg/logger"
	"github.com/kubesage/kubesage-backend/internal/repository"
)

func newAnalysisService(t *testing.T, store *repository.Store, cfg *config.Config) *AnalysisService {
	t.Helper()
	log := logger.New("error")
	exec := cmdexec.NewExecutor(time.Duration(cfg.CommandTimeoutSec)*time.Second, log)
	kcSvc := NewKubeconfigService(store, exec, cfg, log)
	results := cache.NewResultCache(store, cache.NewClient("", "", 0, log), time.Hour, log)
	return NewAnalysisService(kcSvc, results, exec, cfg, log)
}

func TestBuildAnalyzeCommand_DefaultRequest(t *testing.T) {
	svc := &AnalysisService{cfg: &config.Config{K8sgptBin: "k8sgpt"}}
	cmd := svc.buildAnalyzeCommand(AnalysisRequest{}, "/tmp/kc.yaml")

	assert.Equal(t, "k8sgpt", cmd.Program)
	assert.Equal(t, []string{"analyze", "--output", "json", "--kubeconfig", "/tmp/kc.yaml"}, cmd.Args())
}

func TestBuildAnalyzeCommand_AllOptions(t *testing.T) {
	svc := &AnalysisService{cfg: &config.Config{K8sgptBin: "k8sgpt"}}
	cmd := svc.buildAnalyzeCommand(AnalysisRequest{
		Backend:        "openai",
		CustomAnalysis: true,
		CustomHeaders:  []string{"X-A: 1", "X-B: 2"},
		Explain:        true,
		Filter:         []string{"Pod", "Service"},
		Interactive:    true,
		Language:       "spanish",
		MaxConcurrency: 5,
		Namespace:      "demo",
		NoCache:        true,
		Selector:       "app=web",
		WithDoc:        true,
	}, "/tmp/kc.yaml")

	assert.Equal(t, []string{
		"analyze",
		"--backend", "openai",
		"--custom-analysis",
		"--custom-headers", "X-A: 1",
		"--custom-headers", "X-B: 2",
		"--explain",
		"--filter", "Pod",
		"--filter", "Service",
		"--interactive",
		"--language", "spanish",
		"--max-concurrency", "5",
		"--namespace", "demo",
		"--no-cache",
		"--selector", "app=web",
		"--with-doc",
		"--output", "json",
		"--kubeconfig", "/tmp/kc.yaml",
	}, cmd.Args())
}

func TestBuildAnalyzeCommand_DefaultsSuppressed(t *testing.T) {
	svc := &AnalysisService{cfg: &config.Config{K8sgptBin: "k8sgpt"}}
	cmd := svc.buildAnalyzeCommand(AnalysisRequest{
		Language:       "english",
		MaxConcurrency: 10,
	}, "/tmp/kc.yaml")

	args := cmd.Args()
	assert.NotContains(t, args, "--language")
	assert.NotContains(t, args, "--max-concurrency")
}

func TestRunAnalysis_StoresAndReturnsResult(t *testing.T) {
	store := newTestStore(t)
	cfg := newTestConfig(t)
	cfg.K8sgptBin = writeFakeBin(t, "k8sgpt", `
printf '[{"name":"pod-x","kind":"Pod","namespace":"default","status":"Error","severity":"High","message":"image pull failed"}]'`)
	svc := newAnalysisService(t, store, cfg)
	ctx := context.Background()

	kc, err := svc.kubeconfigs.Upload(ctx, "u1", []byte("x"), "c.yaml")
	require.NoError(t, err)
	require.NoError(t, svc.kubeconfigs.Activate(ctx, "u1", kc.Filename))

	ns := "default"
	ar, err := svc.Run(ctx, "u1", AnalysisRequest{Namespace: ns})
	require.NoError(t, err)
	assert.NotEmpty(t, ar.ResultID)
	assert.Equal(t, "test-cluster", ar.ClusterName)
	require.NotNil(t, ar.Namespace)
	assert.Equal(t, ns, *ar.Namespace)

	var params AnalysisRequest
	require.NoError(t, json.Unmarshal([]byte(ar.Parameters), &params))
	assert.Equal(t, ns, params.Namespace)

	items := svc.Items(ar)
	require.Len(t, items, 1)
	assert.Equal(t, "pod-x", items[0].Name)
	assert.Equal(t, "Pod", items[0].Kind)
	assert.Equal(t, "image pull failed", items[0].Message)

	// The stored result round-trips through Get.
	got, err := svc.Get(ctx, "u1", ar.ResultID)
	require.NoError(t, err)
	assert.Equal(t, ar.ResultJSON, got.ResultJSON)
}

func TestRunAnalysis_NoActiveKubeconfig(t *testing.T) {
	svc := newAnalysisService(t, newTestStore(t), newTestConfig(t))
	_, err := svc.Run(context.Background(), "u1", AnalysisRequest{})
	assert.ErrorIs(t, err, ErrNoActiveKubeconfig)
}

func TestRunAnalysis_FileMissing(t *testing.T) {
	store := newTestStore(t)
	svc := newAnalysisService(t, store, newTestConfig(t))
	ctx := context.Background()

	kc, err := svc.kubeconfigs.Upload(ctx, "u1", []byte("x"), "c.yaml")
	require.NoError(t, err)
	require.NoError(t, svc.kubeconfigs.Activate(ctx, "u1", kc.Filename))
	require.NoError(t, os.Remove(kc.Path))

	_, err = svc.Run(ctx, "u1", AnalysisRequest{})
	assert.ErrorIs(t, err, ErrKubeconfigFileMissing)
}

func TestRunAnalysis_CommandFailurePropagates(t *testing.T) {
	store := newTestStore(t)
	cfg := newTestConfig(t)
	cfg.K8sgptBin = writeFakeBin(t, "k8sgpt", `echo "no AI backend configured" >&2; exit 1`)
	svc := newAnalysisService(t, store, cfg)
	ctx := context.Background()

	kc, err := svc.kubeconfigs.Upload(ctx, "u1", []byte("x"), "c.yaml")
	require.NoError(t, err)
	require.NoError(t, svc.kubeconfigs.Activate(ctx, "u1", kc.Filename))

	_, err = svc.Run(ctx, "u1", AnalysisRequest{})
	var cmdErr *cmdexec.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Stderr, "no AI backend configured")

	// A failed run stores nothing.
	list, err := svc.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAnalyzers_ParsesLines(t *testing.T) {
	store := newTestStore(t)
	cfg := newTestConfig(t)
	cfg.K8sgptBin = writeFakeBin(t, "k8sgpt", `printf 'Active:\n> Pod\n> Service\n\n> Ingress\n'`)
	svc := newAnalysisService(t, store, cfg)
	ctx := context.Background()

	kc, err := svc.kubeconfigs.Upload(ctx, "u1", []byte("x"), "c.yaml")
	require.NoError(t, err)
	require.NoError(t, svc.kubeconfigs.Activate(ctx, "u1", kc.Filename))

	analyzers, err := svc.Analyzers(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pod", "Service", "Ingress"}, analyzers)
}

func TestItems_NonArrayPayload(t *testing.T) {
	svc := &AnalysisService{}
	items := svc.Items(&models.AnalysisResult{ResultJSON: `{"stdout":"no problems detected"}`})
	assert.Nil(t, items)
}
