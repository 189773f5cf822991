package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kubesage/kubesage-backend/internal/cmdexec"
	"github.com/kubesage/kubesage-backend/internal/config"
	"github.com/kubesage/kubesage-backend/internal/models"
	"github.com/kubesage/kubesage-backend/internal/repository"
)

// probeConcurrency bounds parallel kubectl probes during ClusterNames.
const probeConcurrency = 4

// KubeconfigService owns the lifecycle of uploaded kubeconfig files: disk
// storage, metadata records, and the per-user single-active invariant.
type KubeconfigService struct {
	repo *repository.Store
	exec *cmdexec.Executor
	cfg  *config.Config
	log  *slog.Logger
}

func NewKubeconfigService(repo *repository.Store, exec *cmdexec.Executor, cfg *config.Config, log *slog.Logger) *KubeconfigService {
	return &KubeconfigService{repo: repo, exec: exec, cfg: cfg, log: log}
}

// Upload persists the file to disk first under a generated collision-resistant
// name, probes it for cluster/context names (best-effort), then commits the
// record with active=false. A crash between the write and the commit leaves an
// orphan file for the reconciler to sweep.
func (s *KubeconfigService) Upload(ctx context.Context, userID string, content []byte, originalName string) (*models.Kubeconfig, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	// Only the extension of the client-supplied name is kept; the storage
	// name itself is generated, so path traversal and overwrites are off the
	// table.
	ext := filepath.Ext(filepath.Base(originalName))
	filename := uuid.New().String() + ext
	path := filepath.Join(s.cfg.UploadDir, filename)

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write kubeconfig file: %w", err)
	}

	clusterName, contextName := s.probeNames(ctx, path)

	kc := &models.Kubeconfig{
		UserID:           userID,
		Filename:         filename,
		OriginalFilename: originalName,
		Path:             path,
		ClusterName:      clusterName,
		ContextName:      contextName,
		Active:           false,
	}
	if err := s.repo.CreateKubeconfig(ctx, kc); err != nil {
		return nil, fmt.Errorf("failed to store kubeconfig record: %w", err)
	}

	s.log.Info("kubeconfig uploaded", "user_id", userID, "filename", filename)
	return kc, nil
}

// Activate flags the named kubeconfig active and all siblings inactive in one
// transaction. repository.ErrNotFound covers both unknown names and names
// owned by someone else.
func (s *KubeconfigService) Activate(ctx context.Context, userID, filename string) error {
	if err := s.repo.SetActiveKubeconfig(ctx, userID, filename); err != nil {
		return err
	}
	s.log.Info("kubeconfig activated", "user_id", userID, "filename", filename)
	return nil
}

// GetActive returns the caller's active kubeconfig.
func (s *KubeconfigService) GetActive(ctx context.Context, userID string) (*models.Kubeconfig, error) {
	kc, err := s.repo.GetActiveKubeconfig(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrNoActiveKubeconfig
		}
		return nil, err
	}
	return kc, nil
}

// activePath resolves the active kubeconfig and verifies its file still
// exists on disk.
func (s *KubeconfigService) activePath(ctx context.Context, userID string) (*models.Kubeconfig, error) {
	kc, err := s.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(kc.Path); err != nil {
		return nil, ErrKubeconfigFileMissing
	}
	return kc, nil
}

func (s *KubeconfigService) List(ctx context.Context, userID string) ([]*models.Kubeconfig, error) {
	return s.repo.ListKubeconfigs(ctx, userID)
}

// Remove deletes the on-disk file, then the record. A file that is already
// absent counts as a successful disk removal; any other disk error aborts
// before the record is touched, so a row never outlives intent while its
// file remains.
func (s *KubeconfigService) Remove(ctx context.Context, userID, filename string) (fileWasMissing bool, err error) {
	kc, err := s.repo.GetKubeconfig(ctx, userID, filename)
	if err != nil {
		return false, err
	}

	if err := os.Remove(kc.Path); err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to remove kubeconfig file: %w", err)
		}
		fileWasMissing = true
	}

	if err := s.repo.DeleteKubeconfig(ctx, userID, filename); err != nil {
		// The file is already gone; the surviving row is an inconsistency the
		// liveness sweep will deactivate.
		s.log.Error("record deletion failed after disk removal", "user_id", userID, "filename", filename, "error", err)
		return fileWasMissing, err
	}

	s.log.Info("kubeconfig removed", "user_id", userID, "filename", filename, "file_was_missing", fileWasMissing)
	return fileWasMissing, nil
}

// ClusterNames returns one entry per kubeconfig of the owner, probing and
// persisting cluster names that are not cached yet. Per-item failures land in
// the errors slice; they never abort the listing.
func (s *KubeconfigService) ClusterNames(ctx context.Context, userID string) ([]models.ClusterNameEntry, []models.ClusterNameError, error) {
	kcs, err := s.repo.ListKubeconfigs(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]*models.ClusterNameEntry, len(kcs))
	probeErrs := make([]*models.ClusterNameError, len(kcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, kc := range kcs {
		g.Go(func() error {
			if kc.ClusterName != nil && *kc.ClusterName != "" {
				entries[i] = &models.ClusterNameEntry{
					Filename:          kc.Filename,
					ClusterName:       *kc.ClusterName,
					Active:            kc.Active,
					OperatorInstalled: kc.OperatorInstalled,
				}
				return nil
			}
			if _, err := os.Stat(kc.Path); err != nil {
				probeErrs[i] = &models.ClusterNameError{Filename: kc.Filename, Error: "kubeconfig file not found on disk"}
				return nil
			}
			name, err := s.probeClusterName(gctx, kc.Path)
			if err != nil || name == "" {
				probeErrs[i] = &models.ClusterNameError{Filename: kc.Filename, Error: "unable to retrieve cluster name"}
				return nil
			}
			if err := s.repo.UpdateKubeconfigClusterInfo(gctx, kc.ID, &name, kc.ContextName); err != nil {
				s.log.Error("failed to persist probed cluster name", "filename", kc.Filename, "error", err)
			}
			entries[i] = &models.ClusterNameEntry{
				Filename:          kc.Filename,
				ClusterName:       name,
				Active:            kc.Active,
				OperatorInstalled: kc.OperatorInstalled,
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines report through the slices, never an error

	var names []models.ClusterNameEntry
	var errs []models.ClusterNameError
	for i := range kcs {
		if entries[i] != nil {
			names = append(names, *entries[i])
		}
		if probeErrs[i] != nil {
			errs = append(errs, *probeErrs[i])
		}
	}
	return names, errs, nil
}

// OperatorStep is the outcome of one helm invocation during operator install.
type OperatorStep struct {
	Command string          `json:"command"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// InstallOperator runs the k8sgpt-operator helm install against the active
// cluster: repo add, repo update, install. Execution stops at the first
// failing step; the operator_installed flag flips only when all steps pass.
func (s *KubeconfigService) InstallOperator(ctx context.Context, userID string) ([]OperatorStep, bool, error) {
	kc, err := s.activePath(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	cmds := []*cmdexec.Command{
		cmdexec.New(s.cfg.HelmBin).
			Arg("repo").Arg("add").Arg("k8sgpt").Arg("https://charts.k8sgpt.ai/").
			Flag("--kubeconfig", kc.Path),
		cmdexec.New(s.cfg.HelmBin).
			Arg("repo").Arg("update").
			Flag("--kubeconfig", kc.Path),
		cmdexec.New(s.cfg.HelmBin).
			Arg("install").Arg("release").Arg("k8sgpt/k8sgpt-operator").
			Flag("-n", "k8sgpt-operator-system").
			BoolFlag("--create-namespace").
			Flag("--kubeconfig", kc.Path),
	}

	steps := make([]OperatorStep, 0, len(cmds))
	success := true
	for _, cmd := range cmds {
		display := cmd.Program + " " + strings.Join(cmd.Args(), " ")
		out, err := s.exec.Run(ctx, cmd)
		if err != nil {
			steps = append(steps, OperatorStep{Command: display, Error: err.Error()})
			success = false
			break
		}
		steps = append(steps, OperatorStep{Command: display, Result: out.Payload()})
	}

	if success {
		if err := s.repo.SetKubeconfigOperatorInstalled(ctx, kc.ID, true); err != nil {
			s.log.Error("failed to persist operator_installed flag", "filename", kc.Filename, "error", err)
		}
		s.log.Info("operator installed", "user_id", userID, "filename", kc.Filename)
	}
	return steps, success, nil
}

// Namespaces lists the namespaces of the active cluster.
func (s *KubeconfigService) Namespaces(ctx context.Context, userID string) ([]string, error) {
	kc, err := s.activePath(ctx, userID)
	if err != nil {
		return nil, err
	}

	cmd := cmdexec.New(s.cfg.KubectlBin).
		Arg("get").Arg("namespaces").
		Flag("-o", "jsonpath={.items[*].metadata.name}").
		Flag("--kubeconfig", kc.Path)
	out, err := s.exec.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out.Stdout), nil
}

// probeNames extracts cluster and context names from a kubeconfig file.
// Failures are normal (unreachable file, malformed config) and leave the
// fields nil; they never fail the caller.
func (s *KubeconfigService) probeNames(ctx context.Context, path string) (clusterName, contextName *string) {
	if name, err := s.probeClusterName(ctx, path); err == nil && name != "" {
		clusterName = &name
	}
	cmd := cmdexec.New(s.cfg.KubectlBin).
		Arg("config").Arg("view").
		Flag("--kubeconfig", path).
		BoolFlag("--minify").
		Flag("-o", "jsonpath={.contexts[0].name}")
	if out, err := s.exec.Run(ctx, cmd); err == nil {
		if name := strings.TrimSpace(out.Stdout); name != "" {
			contextName = &name
		}
	}
	return clusterName, contextName
}

func (s *KubeconfigService) probeClusterName(ctx context.Context, path string) (string, error) {
	cmd := cmdexec.New(s.cfg.KubectlBin).
		Arg("config").Arg("view").
		Flag("--kubeconfig", path).
		BoolFlag("--minify").
		Flag("-o", "jsonpath={.clusters[0].name}")
	out, err := s.exec.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}
