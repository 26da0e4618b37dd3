package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aporte/returns-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary and refresh the cache entry; reads check Redis
// first and fall back to the primary. Cache failures degrade to primary
// reads — Redis being down never fails a request.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

type cachedPrices struct {
	Series    *model.PriceSeries `json:"series"`
	FetchedAt time.Time          `json:"fetched_at"`
}

type cachedRates struct {
	Index     *model.RateIndex `json:"index"`
	FetchedAt time.Time        `json:"fetched_at"`
}

func priceCacheKey(ticker string) string {
	return "prices:" + ticker
}

func rateCacheKey(code string, start, end time.Time) string {
	return fmt.Sprintf("rates:%s:%s:%s", code,
		start.Format(model.DateFormat), end.Format(model.DateFormat))
}

func (s *CachedStore) PutPriceSeries(ctx context.Context, series *model.PriceSeries, fetchedAt time.Time) error {
	if err := s.primary.PutPriceSeries(ctx, series, fetchedAt); err != nil {
		return err
	}
	if data, err := json.Marshal(cachedPrices{Series: series, FetchedAt: fetchedAt}); err == nil {
		s.rdb.Set(ctx, priceCacheKey(series.Ticker), data, s.ttl)
	}
	return nil
}

func (s *CachedStore) GetPriceSeries(ctx context.Context, ticker string) (*model.PriceSeries, time.Time, error) {
	if data, err := s.rdb.Get(ctx, priceCacheKey(ticker)).Bytes(); err == nil {
		var cached cachedPrices
		if json.Unmarshal(data, &cached) == nil && cached.Series != nil {
			return cached.Series, cached.FetchedAt, nil
		}
	}

	series, fetchedAt, err := s.primary.GetPriceSeries(ctx, ticker)
	if err != nil {
		return nil, time.Time{}, err
	}
	if data, err := json.Marshal(cachedPrices{Series: series, FetchedAt: fetchedAt}); err == nil {
		s.rdb.Set(ctx, priceCacheKey(ticker), data, s.ttl)
	}
	return series, fetchedAt, nil
}

func (s *CachedStore) PutRateIndex(ctx context.Context, idx *model.RateIndex, start, end time.Time, fetchedAt time.Time) error {
	if err := s.primary.PutRateIndex(ctx, idx, start, end, fetchedAt); err != nil {
		return err
	}
	if data, err := json.Marshal(cachedRates{Index: idx, FetchedAt: fetchedAt}); err == nil {
		s.rdb.Set(ctx, rateCacheKey(idx.Code, start, end), data, s.ttl)
	}
	return nil
}

func (s *CachedStore) GetRateIndex(ctx context.Context, code string, start, end time.Time) (*model.RateIndex, time.Time, error) {
	if data, err := s.rdb.Get(ctx, rateCacheKey(code, start, end)).Bytes(); err == nil {
		var cached cachedRates
		if json.Unmarshal(data, &cached) == nil && cached.Index != nil {
			return cached.Index, cached.FetchedAt, nil
		}
	}

	idx, fetchedAt, err := s.primary.GetRateIndex(ctx, code, start, end)
	if err != nil {
		return nil, time.Time{}, err
	}
	if data, err := json.Marshal(cachedRates{Index: idx, FetchedAt: fetchedAt}); err == nil {
		s.rdb.Set(ctx, rateCacheKey(code, start, end), data, s.ttl)
	}
	return idx, fetchedAt, nil
}
