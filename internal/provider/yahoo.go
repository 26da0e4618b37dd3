package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aporte/returns-engine/internal/metrics"
	"github.com/aporte/returns-engine/internal/model"
)

// YahooBaseURL is the chart API endpoint. Overridable for tests.
const YahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// YahooClient fetches daily close, dividend, and split history from the
// Yahoo Finance chart API (events=div|splits).
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
}

// NewYahooClient creates a client with the given timeout and retry policy.
func NewYahooClient(timeout time.Duration, retry RetryPolicy) *YahooClient {
	return &YahooClient{
		baseURL:    YahooBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

// NewYahooClientWithBaseURL is used by tests to point at an httptest server.
func NewYahooClientWithBaseURL(baseURL string, timeout time.Duration, retry RetryPolicy) *YahooClient {
	c := NewYahooClient(timeout, retry)
	c.baseURL = baseURL
	return c
}

// chartResponse mirrors the slice of the chart payload this adapter reads.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
				Splits map[string]struct {
					Numerator   float64 `json:"numerator"`
					Denominator float64 `json:"denominator"`
					Date        int64   `json:"date"`
				} `json:"splits"`
			} `json:"events"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// GetHistory returns the instrument's daily history from start to the most
// recent available trading day. Unknown tickers come back as ErrNoData, not
// as a hard error: the caller renders "ticker not found" and carries on.
func (c *YahooClient) GetHistory(ctx context.Context, ticker string, start time.Time) (*model.PriceSeries, error) {
	url := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d&events=div%%7Csplit",
		c.baseURL, ticker, start.Unix(), time.Now().Unix())

	body, err := c.get(ctx, url)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("yahoo", "error").Inc()
		slog.Warn("market data fetch failed", "ticker", ticker, "err", err)
		return nil, ErrNoData
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.ProviderRequests.WithLabelValues("yahoo", "malformed").Inc()
		return nil, ErrNoData
	}
	if len(resp.Chart.Result) == 0 {
		metrics.ProviderRequests.WithLabelValues("yahoo", "empty").Inc()
		return nil, ErrNoData
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		metrics.ProviderRequests.WithLabelValues("yahoo", "empty").Inc()
		return nil, ErrNoData
	}
	closes := result.Indicators.Quote[0].Close

	dividends := make(map[time.Time]float64, len(result.Events.Dividends))
	for _, d := range result.Events.Dividends {
		dividends[model.DayOf(time.Unix(d.Date, 0).UTC())] = d.Amount
	}
	splits := make(map[time.Time]float64, len(result.Events.Splits))
	for _, s := range result.Events.Splits {
		if s.Denominator > 0 {
			splits[model.DayOf(time.Unix(s.Date, 0).UTC())] = s.Numerator / s.Denominator
		}
	}

	bars := make([]model.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Null or non-positive closes are single malformed observations:
		// dropped, never defaulted, never fatal to the series.
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		day := model.DayOf(time.Unix(ts, 0).UTC())

		bar := model.PriceBar{
			Date:       day,
			Close:      decimal.NewFromFloat(*closes[i]),
			Dividend:   decimal.Zero,
			SplitRatio: decimal.NewFromInt(1),
		}
		if amount, ok := dividends[day]; ok && amount > 0 {
			bar.Dividend = decimal.NewFromFloat(amount)
		}
		if ratio, ok := splits[day]; ok && ratio > 0 {
			bar.SplitRatio = decimal.NewFromFloat(ratio)
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		metrics.ProviderRequests.WithLabelValues("yahoo", "empty").Inc()
		return nil, ErrNoData
	}

	metrics.ProviderRequests.WithLabelValues("yahoo", "ok").Inc()
	return model.NewPriceSeries(ticker, bars), nil
}

func (c *YahooClient) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if retryableStatus(resp.StatusCode) {
			return fmt.Errorf("retryable status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, err
}
