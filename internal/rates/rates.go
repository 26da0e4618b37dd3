// Package rates turns periodic rate observations (daily CDI, monthly IPCA)
// into cumulative compounding indices:
//
//	level(t) = Π_{s<=t} (1 + rate(s))
//
// The builder also owns two upstream quirks so callers never see them:
// long date ranges are decomposed into sequential sub-range fetches
// (the SGS API rejects spans much past ten years), and observation values
// arrive with either "." or "," as the decimal separator.
package rates

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aporte/returns-engine/internal/model"
)

// maxChunkYears caps the span of a single upstream fetch.
const maxChunkYears = 10

// Observation is one periodic rate reading. Rate is a fraction: 0.004 means
// 0.4% for the period.
type Observation struct {
	Date time.Time
	Rate float64
}

// Provider fetches ordered rate observations for a named series over one
// bounded date range. Implementations handle transport, retries, and must
// return an empty slice (not an error) when the series has no data.
type Provider interface {
	Fetch(ctx context.Context, code string, start, end time.Time) ([]Observation, error)
}

// Builder constructs RateIndex values from a Provider.
type Builder struct {
	provider Provider
}

// NewBuilder creates a Builder on top of the given provider.
func NewBuilder(p Provider) *Builder {
	return &Builder{provider: p}
}

// BuildIndex fetches [start, end] in chunks of at most ten years each,
// concatenates the observations, and compounds them into a RateIndex.
//
// If any chunk fails after the provider's bounded retries, the whole index
// comes back explicitly empty: silently partial data is worse than none.
// Empty is a valid, non-fatal result and is how upstream failures degrade.
func (b *Builder) BuildIndex(ctx context.Context, code string, start, end time.Time) *model.RateIndex {
	var all []Observation
	for _, r := range chunkRanges(start, end) {
		obs, err := b.provider.Fetch(ctx, code, r[0], r[1])
		if err != nil {
			slog.Warn("rate series fetch failed, returning empty index",
				"code", code, "chunk_start", r[0].Format(model.DateFormat),
				"chunk_end", r[1].Format(model.DateFormat), "err", err)
			return &model.RateIndex{Code: code}
		}
		all = append(all, obs...)
	}
	return Compound(code, all)
}

// Compound builds the cumulative index from raw observations: sorts by
// date, collapses duplicate dates keeping the last occurrence (overlapping
// chunk fetches re-deliver edge days; later data supersedes), then
// multiplies (1 + rate) forward. Pure function of its input.
func Compound(code string, obs []Observation) *model.RateIndex {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	deduped := sorted[:0]
	for _, o := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(o.Date) {
			deduped[n-1] = o
			continue
		}
		deduped = append(deduped, o)
	}

	idx := &model.RateIndex{Code: code, Points: make([]model.RatePoint, len(deduped))}
	level := 1.0
	for i, o := range deduped {
		level *= 1 + o.Rate
		idx.Points[i] = model.RatePoint{Date: o.Date, Level: level}
	}
	return idx
}

// FromLevels builds a RateIndex directly from already-leveled points, e.g.
// a market index's closes used as benchmark levels. Sorted, duplicate dates
// keep the last occurrence.
func FromLevels(code string, points []model.RatePoint) *model.RateIndex {
	sorted := make([]model.RatePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	deduped := sorted[:0]
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return &model.RateIndex{Code: code, Points: deduped}
}

// ParseRate parses a rate value tolerating both "." and "," as the decimal
// separator (the SGS API answers with comma). The input is a percentage;
// the result is a fraction: "0,40" → 0.004.
func ParseRate(s string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, err
	}
	return v / 100, nil
}

// chunkRanges splits [start, end] into consecutive inclusive sub-ranges of
// at most maxChunkYears each.
func chunkRanges(start, end time.Time) [][2]time.Time {
	var out [][2]time.Time
	cursor := start
	for !cursor.After(end) {
		chunkEnd := cursor.AddDate(maxChunkYears, 0, 0).AddDate(0, 0, -1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		out = append(out, [2]time.Time{cursor, chunkEnd})
		cursor = chunkEnd.AddDate(0, 0, 1)
	}
	return out
}
