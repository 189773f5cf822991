package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kubesage/kubesage-backend/internal/models"
	"github.com/kubesage/kubesage-backend/internal/pkg/metrics"
)

// ResultStore is the durable tier, implemented by the repository.
type ResultStore interface {
	CreateAnalysisResult(ctx context.Context, ar *models.AnalysisResult) error
	GetAnalysisResult(ctx context.Context, userID, resultID string) (*models.AnalysisResult, error)
	ListAnalysisResults(ctx context.Context, userID string, limit, offset int) ([]*models.AnalysisResult, error)
}

// FastTier is the expiring cache tier. *Client implements it; an unavailable
// client misses every read and drops every write.
type FastTier interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// ResultCache layers the expiring fast tier over the durable store. The
// durable record is written first and is authoritative; the fast tier only
// ever saves a read.
type ResultCache struct {
	store ResultStore
	fast  FastTier
	ttl   time.Duration
	log   *slog.Logger
}

// NewResultCache returns a result cache. A zero ttl falls back to one hour.
func NewResultCache(store ResultStore, fast FastTier, ttl time.Duration, log *slog.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{store: store, fast: fast, ttl: ttl, log: log}
}

func resultKey(userID, resultID string) string {
	return Key(userID, "analysis_result:"+resultID)
}

// Store persists the result durably, then best-effort populates the fast
// tier. Fast-tier failure never fails the operation.
func (rc *ResultCache) Store(ctx context.Context, ar *models.AnalysisResult) error {
	if err := rc.store.CreateAnalysisResult(ctx, ar); err != nil {
		return err
	}
	rc.populate(ctx, ar)
	return nil
}

// Fetch checks the fast tier first, falling through to the durable store and
// repopulating the fast tier on a hit there. Owner scoping is enforced by
// both tiers: the cache key embeds the user ID and the durable query filters
// on it.
func (rc *ResultCache) Fetch(ctx context.Context, userID, resultID string) (*models.AnalysisResult, error) {
	if data, ok := rc.fast.Get(ctx, resultKey(userID, resultID)); ok {
		var ar models.AnalysisResult
		if err := json.Unmarshal(data, &ar); err == nil {
			metrics.ResultCacheHitsTotal.Inc()
			return &ar, nil
		}
		rc.log.Warn("discarding undecodable cache entry", "result_id", resultID)
	}
	metrics.ResultCacheMissesTotal.Inc()

	ar, err := rc.store.GetAnalysisResult(ctx, userID, resultID)
	if err != nil {
		return nil, err
	}
	rc.populate(ctx, ar)
	return ar, nil
}

// List reads the durable store only; the result set changes on every write,
// so caching it would buy nothing.
func (rc *ResultCache) List(ctx context.Context, userID string, limit, offset int) ([]*models.AnalysisResult, error) {
	return rc.store.ListAnalysisResults(ctx, userID, limit, offset)
}

func (rc *ResultCache) populate(ctx context.Context, ar *models.AnalysisResult) {
	data, err := json.Marshal(ar)
	if err != nil {
		rc.log.Error("failed to marshal result for cache", "result_id", ar.ResultID, "error", err)
		return
	}
	rc.fast.Set(ctx, resultKey(ar.UserID, ar.ResultID), data, rc.ttl)
}
