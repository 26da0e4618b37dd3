// Package store persists fetched market data so repeated simulations and
// process restarts do not re-hit the upstream providers. Implementations:
// PostgreSQL (durable tier), Redis (read-through cache), and in-memory
// (tests and cacheless runs).
//
// The core computation never sees this package; it receives materialized
// series. Staleness policy (TTL, force refresh) is decided by the caller
// via the FetchedAt timestamp stored next to each series.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aporte/returns-engine/internal/model"
)

// ErrNotFound is returned when no series is stored under the requested key.
var ErrNotFound = errors.New("store: not found")

// Store is the series persistence interface. Price series are keyed by
// ticker; rate indices by (code, range start, range end) — the same keys
// the providers are queried with, so one upstream fetch maps to one entry.
type Store interface {
	// PutPriceSeries stores the full history of one instrument, replacing
	// any previous entry wholesale (series are immutable value objects,
	// rebuilt on refresh, never patched).
	PutPriceSeries(ctx context.Context, s *model.PriceSeries, fetchedAt time.Time) error

	// GetPriceSeries returns the stored series and when it was fetched.
	GetPriceSeries(ctx context.Context, ticker string) (*model.PriceSeries, time.Time, error)

	// PutRateIndex stores a compounded rate index for one request range.
	PutRateIndex(ctx context.Context, idx *model.RateIndex, start, end time.Time, fetchedAt time.Time) error

	// GetRateIndex returns the stored index for exactly that request range.
	GetRateIndex(ctx context.Context, code string, start, end time.Time) (*model.RateIndex, time.Time, error)
}
