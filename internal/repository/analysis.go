package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kubesage/kubesage-backend/internal/models"
)

func (s *Store) CreateAnalysisResult(ctx context.Context, ar *models.AnalysisResult) error {
	if ar.ID == "" {
		ar.ID = uuid.New().String()
	}
	if ar.CreatedAt.IsZero() {
		ar.CreatedAt = time.Now()
	}

	q := s.db.Rebind(`
		INSERT INTO analysis_results (id, user_id, cluster_name, namespace, result_id,
			result_json, parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, q,
		ar.ID, ar.UserID, ar.ClusterName, ar.Namespace, ar.ResultID,
		ar.ResultJSON, ar.Parameters, ar.CreatedAt,
	)
	return err
}

// GetAnalysisResult is strictly owner-scoped: another owner's result_id yields
// ErrNotFound, same as a missing one.
func (s *Store) GetAnalysisResult(ctx context.Context, userID, resultID string) (*models.AnalysisResult, error) {
	var ar models.AnalysisResult
	q := s.db.Rebind(`SELECT * FROM analysis_results WHERE user_id = ? AND result_id = ?`)
	err := s.db.GetContext(ctx, &ar, q, userID, resultID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ar, nil
}

func (s *Store) ListAnalysisResults(ctx context.Context, userID string, limit, offset int) ([]*models.AnalysisResult, error) {
	var list []*models.AnalysisResult
	q := s.db.Rebind(`
		SELECT * FROM analysis_results
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`)
	err := s.db.SelectContext(ctx, &list, q, userID, limit, offset)
	return list, err
}
