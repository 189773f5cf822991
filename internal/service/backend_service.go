package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kubesage/kubesage-backend/internal/models"
	"github.com/kubesage/kubesage-backend/internal/repository"
)

// BackendService manages per-user AI backend configurations for k8sgpt.
type BackendService struct {
	repo *repository.Store
	log  *slog.Logger
}

func NewBackendService(repo *repository.Store, log *slog.Logger) *BackendService {
	return &BackendService{repo: repo, log: log}
}

// Upsert stores or overwrites the named backend's configuration. When
// makeDefault is set the backend also becomes the caller's single default.
func (s *BackendService) Upsert(ctx context.Context, userID, name string, config map[string]any, makeDefault bool) (*models.AIBackend, error) {
	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize backend config: %w", err)
	}

	b := &models.AIBackend{UserID: userID, Name: name, ConfigJSON: string(cfgJSON)}
	if err := s.repo.UpsertAIBackend(ctx, b); err != nil {
		return nil, err
	}
	if makeDefault {
		if err := s.repo.SetDefaultAIBackend(ctx, userID, name); err != nil {
			return nil, err
		}
	}

	s.log.Info("ai backend saved", "user_id", userID, "backend", name, "default", makeDefault)
	return s.repo.GetAIBackend(ctx, userID, name)
}

func (s *BackendService) Get(ctx context.Context, userID, name string) (*models.AIBackend, error) {
	return s.repo.GetAIBackend(ctx, userID, name)
}

func (s *BackendService) List(ctx context.Context, userID string) ([]*models.AIBackend, error) {
	return s.repo.ListAIBackends(ctx, userID)
}

func (s *BackendService) Delete(ctx context.Context, userID, name string) error {
	if err := s.repo.DeleteAIBackend(ctx, userID, name); err != nil {
		return err
	}
	s.log.Info("ai backend deleted", "user_id", userID, "backend", name)
	return nil
}

// SetDefault flags the named backend default and clears the flag from the
// caller's other backends in the same transaction.
func (s *BackendService) SetDefault(ctx context.Context, userID, name string) error {
	if err := s.repo.SetDefaultAIBackend(ctx, userID, name); err != nil {
		return err
	}
	s.log.Info("ai backend set default", "user_id", userID, "backend", name)
	return nil
}
