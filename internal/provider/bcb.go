package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aporte/returns-engine/internal/metrics"
	"github.com/aporte/returns-engine/internal/rates"
)

// BCBBaseURL is the Banco Central SGS open-data endpoint.
const BCBBaseURL = "https://api.bcb.gov.br/dados/serie"

// Well-known SGS series codes.
const (
	SGSCodeCDI  = "12"  // daily CDI rate
	SGSCodeIPCA = "433" // monthly IPCA variation
)

// bcbDateFormat is the dd/MM/yyyy format the SGS API speaks.
const bcbDateFormat = "02/01/2006"

// BCBClient fetches periodic rate observations from the SGS API. It
// implements rates.Provider; range chunking is the builder's job, this
// adapter only answers single bounded requests.
type BCBClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
}

// NewBCBClient creates a client with the given timeout and retry policy.
func NewBCBClient(timeout time.Duration, retry RetryPolicy) *BCBClient {
	return &BCBClient{
		baseURL:    BCBBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

// NewBCBClientWithBaseURL is used by tests to point at an httptest server.
func NewBCBClientWithBaseURL(baseURL string, timeout time.Duration, retry RetryPolicy) *BCBClient {
	c := NewBCBClient(timeout, retry)
	c.baseURL = baseURL
	return c
}

// sgsRow is one observation as the SGS API delivers it: dd/MM/yyyy date
// and a percentage with comma decimal separator.
type sgsRow struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}

// Fetch returns the series' observations inside [start, end]. A single row
// that fails to parse is dropped and the rest of the series survives; a
// request that fails after bounded retries is an error the builder turns
// into an explicitly-empty index.
func (c *BCBClient) Fetch(ctx context.Context, code string, start, end time.Time) ([]rates.Observation, error) {
	url := fmt.Sprintf("%s/bcdata.sgs.%s/dados?formato=json&dataInicial=%s&dataFinal=%s",
		c.baseURL, code, start.Format(bcbDateFormat), end.Format(bcbDateFormat))

	var body []byte
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

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
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("bcb", "error").Inc()
		return nil, fmt.Errorf("sgs series %s: %w", code, err)
	}

	var rows []sgsRow
	if err := json.Unmarshal(body, &rows); err != nil {
		// The SGS API answers range-too-long rejections with a JSON error
		// object instead of an array; that is "no data for this request",
		// not a fault. A body that is not valid JSON at all is a corrupt
		// response and must fail the chunk — concatenating past it would
		// build a silently partial index.
		if json.Valid(body) {
			metrics.ProviderRequests.WithLabelValues("bcb", "empty").Inc()
			return nil, nil
		}
		metrics.ProviderRequests.WithLabelValues("bcb", "error").Inc()
		return nil, fmt.Errorf("sgs series %s: malformed response body", code)
	}

	obs := make([]rates.Observation, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(bcbDateFormat, row.Data)
		if err != nil {
			slog.Debug("dropping rate row with bad date", "code", code, "data", row.Data)
			continue
		}
		rate, err := rates.ParseRate(row.Valor)
		if err != nil {
			slog.Debug("dropping rate row with bad value", "code", code, "valor", row.Valor)
			continue
		}
		obs = append(obs, rates.Observation{Date: date.UTC(), Rate: rate})
	}

	metrics.ProviderRequests.WithLabelValues("bcb", "ok").Inc()
	return obs, nil
}
