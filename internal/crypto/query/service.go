// Package query serves read access to committed state for the visualization layer.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptoetl/pkg/storage/sqlstore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix     = "cryptoetl:assets:"
	generationKey = keyPrefix + "generation"
)

// Store is the read side of sqlstore.Store.
type Store interface {
	ListCurrent(ctx context.Context, q sqlstore.ListQuery) ([]sqlstore.AssetView, error)
	GetCurrent(ctx context.Context, id int64) (*sqlstore.CryptocurrencyRecord, error)
	PriceHistory(ctx context.Context, assetID int64, limit int) ([]sqlstore.PriceHistoryRecord, error)
	Stats(ctx context.Context) (sqlstore.Stats, error)
}

// Service reads the current-state projection through an optional Redis cache.
// Cache keys carry a generation number; Invalidate bumps it so stale entries are never read
// again and expire on their TTL.
type Service struct {
	store  Store
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(store Store, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, redis: rdb, ttl: ttl, logger: logger}
}

// Assets returns the projection ordered as requested.
// Redis failures degrade to direct store reads.
func (s *Service) Assets(ctx context.Context, q sqlstore.ListQuery) ([]sqlstore.AssetView, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if s.redis == nil {
		return s.store.ListCurrent(ctx, q)
	}

	key, err := s.assetsKey(ctx, q)
	if err != nil {
		s.logger.Warn("cache generation unavailable", zap.Error(err))
		return s.store.ListCurrent(ctx, q)
	}

	data, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var views []sqlstore.AssetView
		if err := json.Unmarshal(data, &views); err == nil {
			return views, nil
		}
		s.logger.Warn("discarding corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	views, err := s.store.ListCurrent(ctx, q)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(views); err == nil {
		if err := s.redis.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return views, nil
}

// Asset returns the current state of one asset.
func (s *Service) Asset(ctx context.Context, id int64) (*sqlstore.CryptocurrencyRecord, error) {
	return s.store.GetCurrent(ctx, id)
}

// History returns the observations of one asset, newest first.
func (s *Service) History(ctx context.Context, assetID int64, limit int) ([]sqlstore.PriceHistoryRecord, error) {
	return s.store.PriceHistory(ctx, assetID, limit)
}

func (s *Service) Stats(ctx context.Context) (sqlstore.Stats, error) {
	return s.store.Stats(ctx)
}

// Invalidate makes every cached projection stale. A nil cache is a no-op.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

func (s *Service) assetsKey(ctx context.Context, q sqlstore.ListQuery) (string, error) {
	gen, err := s.redis.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		gen, err = 0, nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sg%d:%s:%s:%d:%s", keyPrefix, gen, q.OrderBy, q.Direction, q.Limit, q.Tier), nil
}
