// Package provider adapts the external market-data and macro-rate feeds to
// the engine's domain types. Transport detail stays here: retries, status
// codes, and response schemas never leak past this boundary — a provider
// that is down and a provider that has nothing both surface as ErrNoData.
package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aporte/returns-engine/internal/model"
	"github.com/aporte/returns-engine/internal/rates"
)

// ErrNoData means the upstream has zero usable observations for the
// requested scope, or could not be reached after bounded retries. Non-fatal
// to siblings: a missing benchmark never aborts the equity computation.
var ErrNoData = errors.New("provider: no data available")

// MarketDataProvider returns the full daily history of one instrument from
// the start date to the most recent available trading day.
type MarketDataProvider interface {
	GetHistory(ctx context.Context, ticker string, start time.Time) (*model.PriceSeries, error)
}

// RateDataProvider is re-exported here so wiring code only imports one
// package; the contract lives next to the builder that consumes it.
type RateDataProvider = rates.Provider

// RetryPolicy bounds upstream retries. Injected into adapters so no sleep
// loop ever sits inside computation code.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy matches the upstreams' observed tolerance: three
// attempts, linear backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}

// Do runs fn up to MaxAttempts times, sleeping attempt*Backoff between
// tries and honoring context cancellation.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * p.Backoff):
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return pe.err
		}
	}
	return lastErr
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; Do returns it immediately.
// Used for statuses like 404 where repeating the request cannot help.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
