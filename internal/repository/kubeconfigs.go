package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kubesage/kubesage-backend/internal/models"
)

func (s *Store) CreateKubeconfig(ctx context.Context, kc *models.Kubeconfig) error {
	if kc.ID == "" {
		kc.ID = uuid.New().String()
	}
	now := time.Now()
	kc.CreatedAt = now
	kc.UpdatedAt = now

	q := s.db.Rebind(`
		INSERT INTO kubeconfigs (id, user_id, filename, original_filename, path,
			cluster_name, context_name, active, operator_installed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, q,
		kc.ID, kc.UserID, kc.Filename, kc.OriginalFilename, kc.Path,
		kc.ClusterName, kc.ContextName, kc.Active, kc.OperatorInstalled,
		kc.CreatedAt, kc.UpdatedAt,
	)
	return err
}

// GetKubeconfig looks up one of the owner's kubeconfigs by storage filename.
func (s *Store) GetKubeconfig(ctx context.Context, userID, filename string) (*models.Kubeconfig, error) {
	var kc models.Kubeconfig
	q := s.db.Rebind(`SELECT * FROM kubeconfigs WHERE user_id = ? AND filename = ?`)
	err := s.db.GetContext(ctx, &kc, q, userID, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kc, nil
}

// GetActiveKubeconfig returns the owner's single active kubeconfig, or
// ErrNotFound when none is flagged.
func (s *Store) GetActiveKubeconfig(ctx context.Context, userID string) (*models.Kubeconfig, error) {
	var kc models.Kubeconfig
	q := s.db.Rebind(`SELECT * FROM kubeconfigs WHERE user_id = ? AND active = ?`)
	err := s.db.GetContext(ctx, &kc, q, userID, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kc, nil
}

func (s *Store) ListKubeconfigs(ctx context.Context, userID string) ([]*models.Kubeconfig, error) {
	var list []*models.Kubeconfig
	q := s.db.Rebind(`SELECT * FROM kubeconfigs WHERE user_id = ? ORDER BY created_at DESC`)
	err := s.db.SelectContext(ctx, &list, q, userID)
	return list, err
}

// ListAllKubeconfigs returns every kubeconfig row; used by the liveness sweep.
func (s *Store) ListAllKubeconfigs(ctx context.Context) ([]*models.Kubeconfig, error) {
	var list []*models.Kubeconfig
	err := s.db.SelectContext(ctx, &list, `SELECT * FROM kubeconfigs`)
	return list, err
}

// ListKubeconfigFilenames returns every referenced storage filename; used by
// the orphan sweep.
func (s *Store) ListKubeconfigFilenames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, `SELECT filename FROM kubeconfigs`)
	return names, err
}

// SetActiveKubeconfig atomically flags the named kubeconfig active and all the
// owner's siblings inactive.
func (s *Store) SetActiveKubeconfig(ctx context.Context, userID, filename string) error {
	return s.exclusiveFlag(ctx, "kubeconfigs", "filename", "active", userID, filename)
}

// DeleteKubeconfig removes the owner's row; ErrNotFound when absent.
func (s *Store) DeleteKubeconfig(ctx context.Context, userID, filename string) error {
	q := s.db.Rebind(`DELETE FROM kubeconfigs WHERE user_id = ? AND filename = ?`)
	res, err := s.db.ExecContext(ctx, q, userID, filename)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateKubeconfigClusterInfo persists lazily probed cluster/context names.
func (s *Store) UpdateKubeconfigClusterInfo(ctx context.Context, id string, clusterName, contextName *string) error {
	q := s.db.Rebind(`UPDATE kubeconfigs SET cluster_name = ?, context_name = ?, updated_at = ? WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, q, clusterName, contextName, time.Now(), id)
	return err
}

func (s *Store) SetKubeconfigOperatorInstalled(ctx context.Context, id string, installed bool) error {
	q := s.db.Rebind(`UPDATE kubeconfigs SET operator_installed = ?, updated_at = ? WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, q, installed, time.Now(), id)
	return err
}

// DeactivateKubeconfig clears the active flag on one row; used by the
// liveness sweep when the backing file vanished. The row itself is kept.
func (s *Store) DeactivateKubeconfig(ctx context.Context, id string) error {
	q := s.db.Rebind(`UPDATE kubeconfigs SET active = ?, updated_at = ? WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, q, false, time.Now(), id)
	return err
}
