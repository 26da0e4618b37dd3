package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aporte/returns-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// for running without DATABASE_URL (data lives for the process lifetime).
type MemoryStore struct {
	mu     sync.RWMutex
	prices map[string]storedPrices
	rates  map[string]storedRates
}

type storedPrices struct {
	series    *model.PriceSeries
	fetchedAt time.Time
}

type storedRates struct {
	index     *model.RateIndex
	fetchedAt time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices: make(map[string]storedPrices),
		rates:  make(map[string]storedRates),
	}
}

func rateKey(code string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s", code, start.Format(model.DateFormat), end.Format(model.DateFormat))
}

func (s *MemoryStore) PutPriceSeries(_ context.Context, series *model.PriceSeries, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy so callers cannot mutate what we hold.
	bars := make([]model.PriceBar, len(series.Bars))
	copy(bars, series.Bars)
	s.prices[series.Ticker] = storedPrices{
		series:    &model.PriceSeries{Ticker: series.Ticker, Bars: bars},
		fetchedAt: fetchedAt,
	}
	return nil
}

func (s *MemoryStore) GetPriceSeries(_ context.Context, ticker string) (*model.PriceSeries, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.prices[ticker]
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}
	bars := make([]model.PriceBar, len(stored.series.Bars))
	copy(bars, stored.series.Bars)
	return &model.PriceSeries{Ticker: ticker, Bars: bars}, stored.fetchedAt, nil
}

func (s *MemoryStore) PutRateIndex(_ context.Context, idx *model.RateIndex, start, end time.Time, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := make([]model.RatePoint, len(idx.Points))
	copy(points, idx.Points)
	s.rates[rateKey(idx.Code, start, end)] = storedRates{
		index:     &model.RateIndex{Code: idx.Code, Points: points},
		fetchedAt: fetchedAt,
	}
	return nil
}

func (s *MemoryStore) GetRateIndex(_ context.Context, code string, start, end time.Time) (*model.RateIndex, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.rates[rateKey(code, start, end)]
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}
	points := make([]model.RatePoint, len(stored.index.Points))
	copy(points, stored.index.Points)
	return &model.RateIndex{Code: code, Points: points}, stored.fetchedAt, nil
}
