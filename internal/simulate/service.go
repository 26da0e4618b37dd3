package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aporte/returns-engine/internal/index"
	"github.com/aporte/returns-engine/internal/metrics"
	"github.com/aporte/returns-engine/internal/model"
	"github.com/aporte/returns-engine/internal/provider"
	"github.com/aporte/returns-engine/internal/rates"
	"github.com/aporte/returns-engine/internal/store"
	"github.com/aporte/returns-engine/internal/ticker"
)

// Benchmark names accepted in requests, mapped to their sources.
const (
	BenchmarkCDI  = "cdi"
	BenchmarkIPCA = "ipca"
	BenchmarkIbov = "ibov"
)

// DefaultBenchmarks is used when a simulation request names none.
var DefaultBenchmarks = []string{BenchmarkCDI, BenchmarkIPCA, BenchmarkIbov}

// Service wires providers, the series store, and the pure computation
// packages into the HTTP surface. Each request's computation is stateless
// given its inputs; the only shared mutable state is the series store,
// guarded by per-key locks so concurrent requests for the same instrument
// trigger at most one upstream fetch.
type Service struct {
	store      store.Store
	market     provider.MarketDataProvider
	rates      *rates.Builder
	ttl        time.Duration
	ibovTicker string
	historyMin time.Time
	wsHub      *WSHub

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewService creates the simulation service. ttl bounds how long a stored
// series is served without re-asking the provider; pass nil for hub if
// refresh broadcasting is not needed.
func NewService(st store.Store, market provider.MarketDataProvider, ratesBuilder *rates.Builder, ttl time.Duration, hub *WSHub) *Service {
	return &Service{
		store:      st,
		market:     market,
		rates:      ratesBuilder,
		ttl:        ttl,
		ibovTicker: "^BVSP",
		historyMin: model.Day(2000, time.January, 1),
		wsHub:      hub,
		keyLocks:   make(map[string]*sync.Mutex),
	}
}

// lockKey serializes loads of one store key. Get-or-compute-once-per-key:
// the loser of the race finds the store already populated.
func (s *Service) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// loadSeries returns the full price history of ticker, store-first.
func (s *Service) loadSeries(ctx context.Context, ticker string, refresh bool) (*model.PriceSeries, error) {
	unlock := s.lockKey("prices:" + ticker)
	defer unlock()

	if !refresh {
		series, fetchedAt, err := s.store.GetPriceSeries(ctx, ticker)
		if err == nil && time.Since(fetchedAt) < s.ttl {
			metrics.SeriesCacheHits.WithLabelValues("prices").Inc()
			return series, nil
		}
	}
	metrics.SeriesCacheMisses.WithLabelValues("prices").Inc()

	series, err := s.market.GetHistory(ctx, ticker, s.historyMin)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutPriceSeries(ctx, series, time.Now().UTC()); err != nil {
		slog.Warn("storing price series failed", "ticker", ticker, "err", err)
	}

	if s.wsHub != nil && series.Len() > 0 {
		s.wsHub.Broadcast(WSMessage{
			Type:     "series_refreshed",
			Ticker:   ticker,
			LastDate: series.Bars[series.Len()-1].Date.Format(model.DateFormat),
			BarCount: series.Len(),
		})
	}
	return series, nil
}

// loadIndex builds the full-history total-return index for ticker.
func (s *Service) loadIndex(ctx context.Context, ticker string, refresh bool) (*model.TotalReturnIndex, error) {
	series, err := s.loadSeries(ctx, ticker, refresh)
	if err != nil {
		return nil, err
	}
	idx, res := index.BuildTotalReturn(series)
	if len(res.Ambiguous) > 0 {
		metrics.SplitAmbiguousTotal.Add(float64(len(res.Ambiguous)))
		slog.Warn("ambiguous split corrections",
			"ticker", ticker, "count", len(res.Ambiguous),
			"first", res.Ambiguous[0].Format(model.DateFormat))
	}
	return idx, nil
}

// loadRateIndex returns a compounded SGS rate index, store-first. Failures
// degrade to an explicitly-empty index, which is also what gets stored so
// a dead upstream is not hammered on every request within the TTL.
func (s *Service) loadRateIndex(ctx context.Context, code string, start, end time.Time, refresh bool) *model.RateIndex {
	unlock := s.lockKey("rates:" + code + ":" + start.Format(model.DateFormat) + ":" + end.Format(model.DateFormat))
	defer unlock()

	if !refresh {
		idx, fetchedAt, err := s.store.GetRateIndex(ctx, code, start, end)
		if err == nil && time.Since(fetchedAt) < s.ttl {
			metrics.SeriesCacheHits.WithLabelValues("rates").Inc()
			return idx
		}
	}
	metrics.SeriesCacheMisses.WithLabelValues("rates").Inc()

	idx := s.rates.BuildIndex(ctx, code, start, end)
	if err := s.store.PutRateIndex(ctx, idx, start, end, time.Now().UTC()); err != nil {
		slog.Warn("storing rate index failed", "code", code, "err", err)
	}
	return idx
}

// benchmarkIndex resolves one named benchmark over [start, end]. CDI and
// IPCA are compounded SGS rate series; ibov uses the market index's closes
// directly as levels. Anything else is treated as a raw SGS code. Missing
// data yields an empty index, never an error: one dead benchmark must not
// take the equity leg down with it.
func (s *Service) benchmarkIndex(ctx context.Context, name string, start, end time.Time, refresh bool) *model.RateIndex {
	switch strings.ToLower(name) {
	case BenchmarkCDI:
		return s.loadRateIndex(ctx, provider.SGSCodeCDI, start, end, refresh)
	case BenchmarkIPCA:
		return s.loadRateIndex(ctx, provider.SGSCodeIPCA, start, end, refresh)
	case BenchmarkIbov:
		series, err := s.loadSeries(ctx, s.ibovTicker, refresh)
		if err != nil {
			if !errors.Is(err, provider.ErrNoData) {
				slog.Warn("market benchmark unavailable", "ticker", s.ibovTicker, "err", err)
			}
			return &model.RateIndex{Code: name}
		}
		points := make([]model.RatePoint, 0, series.Len())
		for _, b := range series.Bars {
			if b.Date.Before(start) || b.Date.After(end) {
				continue
			}
			points = append(points, model.RatePoint{Date: b.Date, Level: b.Close.InexactFloat64()})
		}
		return rates.FromLevels(name, points)
	default:
		return s.loadRateIndex(ctx, name, start, end, refresh)
	}
}

// --- HTTP handlers ---

// indexResponse is the chart-ready payload: both factors rebased to 1.0 at
// the window's first trading day.
type indexResponse struct {
	Ticker string         `json:"ticker"`
	Start  string         `json:"start"`
	End    string         `json:"end"`
	Points []indexPointTO `json:"points"`
}

type indexPointTO struct {
	Date        string  `json:"date"`
	PriceFactor float64 `json:"price_factor"`
	TotalFactor float64 `json:"total_factor"`
}

// GetIndex handles GET /api/v1/index/{ticker}?start=&end=&refresh=
func (s *Service) GetIndex(w http.ResponseWriter, r *http.Request) {
	symbol, err := ticker.Normalize(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	idx, err := s.loadIndex(r.Context(), symbol, refresh)
	if err != nil {
		writeError(w, "ticker not found: "+symbol, http.StatusNotFound)
		return
	}
	if idx.Len() == 0 {
		writeError(w, "no data for ticker: "+symbol, http.StatusNotFound)
		return
	}

	start := idx.Points[0].Date
	end := idx.Points[idx.Len()-1].Date
	var parseErr error
	if q := r.URL.Query().Get("start"); q != "" {
		if start, parseErr = model.ParseDay(q); parseErr != nil {
			writeError(w, "invalid start date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if q := r.URL.Query().Get("end"); q != "" {
		if end, parseErr = model.ParseDay(q); parseErr != nil {
			writeError(w, "invalid end date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	window := index.Rebase(idx, start, end)
	resp := indexResponse{
		Ticker: symbol,
		Start:  start.Format(model.DateFormat),
		End:    end.Format(model.DateFormat),
		Points: make([]indexPointTO, window.Len()),
	}
	for i, p := range window.Points {
		resp.Points[i] = indexPointTO{
			Date:        p.Date.Format(model.DateFormat),
			PriceFactor: p.PriceFactor,
			TotalFactor: p.TotalFactor,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type rateResponse struct {
	Code   string        `json:"code"`
	Start  string        `json:"start"`
	End    string        `json:"end"`
	Points []ratePointTO `json:"points"`
}

type ratePointTO struct {
	Date  string  `json:"date"`
	Level float64 `json:"level"`
}

// GetRates handles GET /api/v1/rates/{code}?start=&end=&refresh=
// code is "cdi", "ipca", "ibov", or a raw SGS series number.
func (s *Service) GetRates(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	refresh := r.URL.Query().Get("refresh") == "true"

	end := model.DayOf(time.Now().UTC())
	start := end.AddDate(-1, 0, 0)
	var err error
	if q := r.URL.Query().Get("start"); q != "" {
		if start, err = model.ParseDay(q); err != nil {
			writeError(w, "invalid start date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if q := r.URL.Query().Get("end"); q != "" {
		if end, err = model.ParseDay(q); err != nil {
			writeError(w, "invalid end date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if end.Before(start) {
		writeError(w, "end date precedes start date", http.StatusBadRequest)
		return
	}

	idx := s.benchmarkIndex(r.Context(), code, start, end, refresh)
	resp := rateResponse{
		Code:   code,
		Start:  start.Format(model.DateFormat),
		End:    end.Format(model.DateFormat),
		Points: make([]ratePointTO, idx.Len()),
	}
	for i, p := range idx.Points {
		resp.Points[i] = ratePointTO{Date: p.Date.Format(model.DateFormat), Level: p.Level}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Simulate handles POST /api/v1/simulate
//
// Degenerate inputs that the engine can classify (unknown ticker, window
// too short) come back 200 with the corresponding result status — the
// caller renders "period too short" or "ticker not found"; only malformed
// requests are 4xx.
func (s *Service) Simulate(w http.ResponseWriter, r *http.Request) {
	began := time.Now()

	var req model.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" {
		writeError(w, "ticker is required", http.StatusBadRequest)
		return
	}
	if req.MonthlyAmount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "monthly_amount must be positive", http.StatusBadRequest)
		return
	}
	if req.StartDate == "" && req.HorizonYears <= 0 {
		writeError(w, "start_date or horizon_years is required", http.StatusBadRequest)
		return
	}

	symbol, err := ticker.Normalize(req.Ticker)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	idx, err := s.loadIndex(ctx, symbol, false)
	if err != nil || idx.Len() == 0 {
		result := &model.HorizonResult{
			ID:         uuid.New().String(),
			Status:     model.StatusTickerNotFound,
			Ticker:     req.Ticker,
			Benchmarks: map[string]model.BenchmarkValue{},
		}
		metrics.SimulationsTotal.WithLabelValues(result.Status).Inc()
		writeJSON(w, http.StatusOK, result)
		return
	}

	evaluationTarget := idx.Points[idx.Len()-1].Date
	if req.EndDate != "" {
		if evaluationTarget, err = model.ParseDay(req.EndDate); err != nil {
			writeError(w, "invalid end_date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	var userStart time.Time
	if req.StartDate != "" {
		if userStart, err = model.ParseDay(req.StartDate); err != nil {
			writeError(w, "invalid start_date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	} else {
		userStart = evaluationTarget.AddDate(-req.HorizonYears, 0, 0)
	}

	names := req.Benchmarks
	if len(names) == 0 {
		names = DefaultBenchmarks
	}
	benchmarks := make(map[string]*model.RateIndex, len(names))
	for _, name := range names {
		benchmarks[name] = s.benchmarkIndex(ctx, name, userStart, evaluationTarget, false)
	}

	result := Horizon(idx, req.MonthlyAmount, userStart, evaluationTarget, benchmarks)
	result.ID = uuid.New().String()

	metrics.SimulationsTotal.WithLabelValues(result.Status).Inc()
	metrics.SimulationLatency.Observe(time.Since(began).Seconds())

	slog.Info("simulation completed",
		"id", result.ID,
		"ticker", req.Ticker,
		"status", result.Status,
		"contributions", result.ContributionCount,
		"final_value", result.FinalValue.String(),
	)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
