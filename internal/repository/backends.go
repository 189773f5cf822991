package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kubesage/kubesage-backend/internal/models"
)

// UpsertAIBackend overwrites the config of an existing (owner, name) row or
// inserts a new one. The default flag is managed separately through
// SetDefaultAIBackend so the single-default invariant always goes through the
// exclusive-flag transaction.
func (s *Store) UpsertAIBackend(ctx context.Context, b *models.AIBackend) error {
	now := time.Now()
	q := s.db.Rebind(`UPDATE ai_backends SET config_json = ?, updated_at = ? WHERE user_id = ? AND name = ?`)
	res, err := s.db.ExecContext(ctx, q, b.ConfigJSON, now, b.UserID, b.Name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	q = s.db.Rebind(`
		INSERT INTO ai_backends (id, user_id, name, is_default, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.ExecContext(ctx, q, b.ID, b.UserID, b.Name, false, b.ConfigJSON, b.CreatedAt, b.UpdatedAt)
	return err
}

func (s *Store) GetAIBackend(ctx context.Context, userID, name string) (*models.AIBackend, error) {
	var b models.AIBackend
	q := s.db.Rebind(`SELECT * FROM ai_backends WHERE user_id = ? AND name = ?`)
	err := s.db.GetContext(ctx, &b, q, userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListAIBackends(ctx context.Context, userID string) ([]*models.AIBackend, error) {
	var list []*models.AIBackend
	q := s.db.Rebind(`SELECT * FROM ai_backends WHERE user_id = ? ORDER BY name ASC`)
	err := s.db.SelectContext(ctx, &list, q, userID)
	return list, err
}

func (s *Store) DeleteAIBackend(ctx context.Context, userID, name string) error {
	q := s.db.Rebind(`DELETE FROM ai_backends WHERE user_id = ? AND name = ?`)
	res, err := s.db.ExecContext(ctx, q, userID, name)
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

// SetDefaultAIBackend atomically flags the named backend default and all the
// owner's siblings non-default. Same primitive as kubeconfig activation.
func (s *Store) SetDefaultAIBackend(ctx context.Context, userID, name string) error {
	return s.exclusiveFlag(ctx, "ai_backends", "name", "is_default", userID, name)
}
