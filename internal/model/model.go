// Package model defines the core domain types shared across the returns
// engine. All monetary values use shopspring/decimal — never float64 for
// money. Cumulative index factors are dimensionless ratios and use float64.
package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one trading day of one instrument: close price, cash
// distribution (dividend or JCP) declared on that date, and the reported
// split/grouping ratio (1 = no corporate action).
type PriceBar struct {
	Date       time.Time       `json:"date"`
	Close      decimal.Decimal `json:"close"`
	Dividend   decimal.Decimal `json:"dividend"`
	SplitRatio decimal.Decimal `json:"split_ratio"`
}

// PriceSeries is the full daily history of one instrument, sorted ascending
// by date with at most one bar per trading day. It is rebuilt wholesale on
// refresh and never mutated incrementally.
type PriceSeries struct {
	Ticker string     `json:"ticker"`
	Bars   []PriceBar `json:"bars"`
}

// NewPriceSeries builds a PriceSeries from raw bars: sorts ascending and
// collapses duplicate dates keeping the last occurrence (later-fetched data
// supersedes earlier, matching the rate-series precedence policy).
func NewPriceSeries(ticker string, bars []PriceBar) *PriceSeries {
	sorted := make([]PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return &PriceSeries{Ticker: ticker, Bars: out}
}

// Len returns the number of trading days in the series.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Dates returns the ordered trading dates of the series.
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		dates[i] = b.Date
	}
	return dates
}

// IndexPoint is one day of a derived cumulative index. PriceFactor compounds
// split-adjusted close ratios only; TotalFactor additionally reinvests cash
// distributions. Both are 1.0 on the first day of the underlying series.
type IndexPoint struct {
	Date        time.Time `json:"date"`
	PriceFactor float64   `json:"price_factor"`
	TotalFactor float64   `json:"total_factor"`
}

// TotalReturnIndex is the derived, date-aligned cumulative index of one
// PriceSeries. Built once per full-history load and treated as immutable;
// windowed views are rebased copies, never in-place mutations.
type TotalReturnIndex struct {
	Ticker string       `json:"ticker"`
	Points []IndexPoint `json:"points"`
}

// Len returns the number of points in the index.
func (x *TotalReturnIndex) Len() int { return len(x.Points) }

// Dates returns the ordered trading dates of the index.
func (x *TotalReturnIndex) Dates() []time.Time {
	dates := make([]time.Time, len(x.Points))
	for i, p := range x.Points {
		dates[i] = p.Date
	}
	return dates
}

// At returns the point at exactly date d. Exact lookup only: simulation
// dates are trading days by construction, so forward-fill is not wanted here.
func (x *TotalReturnIndex) At(d time.Time) (IndexPoint, bool) {
	i := sort.Search(len(x.Points), func(i int) bool {
		return !x.Points[i].Date.Before(d)
	})
	if i < len(x.Points) && x.Points[i].Date.Equal(d) {
		return x.Points[i], true
	}
	return IndexPoint{}, false
}

// RatePoint is one observation day of a compounded rate index.
type RatePoint struct {
	Date  time.Time `json:"date"`
	Level float64   `json:"level"`
}

// RateIndex is a cumulative compounding index built from periodic rate
// observations (daily CDI, monthly IPCA) or taken directly from a price
// benchmark's closes. Empty is a valid state meaning "no data available".
type RateIndex struct {
	Code   string      `json:"code"`
	Points []RatePoint `json:"points"`
}

// Len returns the number of observations in the index.
func (r *RateIndex) Len() int { return len(r.Points) }

// Empty reports whether the index carries no observations.
func (r *RateIndex) Empty() bool { return len(r.Points) == 0 }

// LevelAsOf resolves the index level at date d by forward-fill: the most
// recent observation at or before d. Returns false when the index starts
// after d — callers must treat that as "unavailable", never as zero.
func (r *RateIndex) LevelAsOf(d time.Time) (float64, bool) {
	i := sort.Search(len(r.Points), func(i int) bool {
		return r.Points[i].Date.After(d)
	})
	if i == 0 {
		return 0, false
	}
	return r.Points[i-1].Level, true
}

// ContributionPlan describes a recurring monthly contribution. AnchorDay is
// the day-of-month of the original user-chosen start date, reused for every
// subsequent month (clamped to short months, never rolled over).
type ContributionPlan struct {
	MonthlyAmount        decimal.Decimal `json:"monthly_amount"`
	AnchorDay            int             `json:"anchor_day"`
	ScheduleStart        time.Time       `json:"schedule_start"`
	ScheduleEndExclusive time.Time       `json:"schedule_end_exclusive"`
}

// SimulationRequest is the parameter object for one horizon simulation,
// constructed by the caller and passed by value into the engine.
type SimulationRequest struct {
	Ticker        string          `json:"ticker"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	StartDate     string          `json:"start_date"`    // YYYY-MM-DD
	EndDate       string          `json:"end_date"`      // YYYY-MM-DD, empty = latest
	HorizonYears  int             `json:"horizon_years"` // alternative to start_date
	Benchmarks    []string        `json:"benchmarks"`
}

// Simulation result statuses. InsufficientData and TickerNotFound are
// expected outcomes, not errors: the caller renders them, nothing crashes.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
	StatusTickerNotFound   = "ticker_not_found"
)

// BenchmarkValue is one benchmark's outcome under the same contribution
// schedule. Available=false means the benchmark series did not cover every
// contribution date; partial valuations are never produced.
type BenchmarkValue struct {
	Value     decimal.Decimal `json:"value"`
	Available bool            `json:"available"`
}

// HorizonResult is the outcome of one contribution simulation. Computed
// fresh per request, never persisted.
type HorizonResult struct {
	ID                 string                    `json:"id"`
	Status             string                    `json:"status"`
	Ticker             string                    `json:"ticker"`
	EvaluationDate     time.Time                 `json:"evaluation_date"`
	FinalValue         decimal.Decimal           `json:"final_value"`
	CapitalContributed decimal.Decimal           `json:"capital_contributed"`
	Profit             decimal.Decimal           `json:"profit"`
	ContributionCount  int                       `json:"contribution_count"`
	ContributionDates  []time.Time               `json:"contribution_dates"`
	Benchmarks         map[string]BenchmarkValue `json:"benchmarks"`
}
