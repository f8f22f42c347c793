package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
)

// CachedPriceSource wraps a PriceSource with a short-lived Redis cache so
// concurrent ticks for the same symbol hit the upstream feed once.
type CachedPriceSource struct {
	primary domain.PriceSource
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCachedPriceSource creates a cached wrapper around a price source
func NewCachedPriceSource(primary domain.PriceSource, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedPriceSource {
	return &CachedPriceSource{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
	}
}

// Quote checks Redis first and falls back to the primary source
func (s *CachedPriceSource) Quote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	key := quoteKey(domain.NormalizeSymbol(symbol))

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var q domain.PriceQuote
		if json.Unmarshal(data, &q) == nil {
			return q, nil
		}
	} else if err != redis.Nil {
		s.logger.Debug("quote cache read failed", zap.String("key", key), zap.Error(err))
	}

	q, err := s.primary.Quote(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	if data, err := json.Marshal(q); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Debug("quote cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return q, nil
}

func quoteKey(symbol string) string { return fmt.Sprintf("quote:%s", symbol) }
