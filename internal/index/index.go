// Package index builds split-safe, dividend-reinvested cumulative return
// indices from raw daily price bars.
//
// Two parallel factors are compounded day over day, both seeded at 1.0 on
// the first trading day:
//
//	priceFactor[t] = priceFactor[t-1] * (close[t] * splitEff[t] / close[t-1])
//	totalFactor[t] = totalFactor[t-1] * ((close[t] + dividend[t]) * splitEff[t] / close[t-1])
//
// splitEff is the effective split factor decided by ResolveSplits: upstream
// feeds disagree on whether historical closes were already adjusted for a
// reported split, and applying the reported ratio blindly double-adjusts
// the already-adjusted feeds, printing a false step into the chart.
//
// This package is pure math: no I/O, no clocks, no shared state. Monetary
// inputs arrive as shopspring/decimal and are converted to float64 for the
// multiplicative ratio work, mirroring how transcendental math is handled
// elsewhere in this codebase.
package index

import (
	"math"
	"time"

	"github.com/aporte/returns-engine/internal/model"
)

// ambiguityGap is the relative log-distance gap below which the two split
// hypotheses are considered near-equidistant. The log-ratio comparison
// still decides; the case is only surfaced to the caller.
const ambiguityGap = 0.05

// SplitResolution carries the per-bar effective split factors plus the
// dates where the adjusted/unadjusted hypotheses were too close to call.
type SplitResolution struct {
	Factors   []float64
	Ambiguous []time.Time
}

// ResolveSplits decides, per trading day, whether a reported split ratio
// should actually be applied.
//
// For a day t reporting ratio r != 1, the observed close ratio
// close[t]/close[t-1] is compared against two hypotheses in log space
// (price ratios are multiplicative, so log distance is the right metric):
//
//	unadjusted feed:      expected ratio 1/r  → apply r
//	already-adjusted feed: expected ratio 1   → apply 1 (suppress)
//
// Days with no reported split, the first day, and days following a
// non-positive close get factor 1 unconditionally — no correction is
// attempted across data gaps.
func ResolveSplits(s *model.PriceSeries) SplitResolution {
	res := SplitResolution{Factors: make([]float64, s.Len())}
	for i := range res.Factors {
		res.Factors[i] = 1
	}

	one := 1.0
	for t := 1; t < s.Len(); t++ {
		r := s.Bars[t].SplitRatio.InexactFloat64()
		if r <= 0 || r == one {
			continue
		}
		prev := s.Bars[t-1].Close.InexactFloat64()
		cur := s.Bars[t].Close.InexactFloat64()
		if prev <= 0 || cur <= 0 {
			continue
		}

		actual := math.Log(cur / prev)
		distUnadjusted := math.Abs(actual - math.Log(1/r))
		distAdjusted := math.Abs(actual) // log(1) == 0

		if nearEquidistant(distUnadjusted, distAdjusted) {
			res.Ambiguous = append(res.Ambiguous, s.Bars[t].Date)
		}
		if distUnadjusted < distAdjusted {
			res.Factors[t] = r
		}
	}
	return res
}

func nearEquidistant(a, b float64) bool {
	max := math.Max(a, b)
	if max == 0 {
		return true
	}
	return math.Abs(a-b) < ambiguityGap*max
}

// Build compounds the price-only and total-return factors for a series,
// given the effective split factors from ResolveSplits. splitEff must be
// aligned with s.Bars.
//
// Any day-over-day ratio that evaluates to NaN, ±Inf, or a non-positive
// value (a zero or garbage close in the feed) contributes a neutral 1.0
// instead, so one bad data point cannot zero or explode the rest of the
// cumulative series.
func Build(s *model.PriceSeries, splitEff []float64) *model.TotalReturnIndex {
	points := make([]model.IndexPoint, s.Len())
	priceFactor, totalFactor := 1.0, 1.0

	for t, bar := range s.Bars {
		if t > 0 {
			prev := s.Bars[t-1].Close.InexactFloat64()
			cur := bar.Close.InexactFloat64()
			div := bar.Dividend.InexactFloat64()
			eff := splitEff[t]

			priceFactor *= safeRatio(cur * eff / prev)
			totalFactor *= safeRatio((cur + div) * eff / prev)
		}
		points[t] = model.IndexPoint{
			Date:        bar.Date,
			PriceFactor: priceFactor,
			TotalFactor: totalFactor,
		}
	}
	return &model.TotalReturnIndex{Ticker: s.Ticker, Points: points}
}

// BuildTotalReturn resolves splits and compounds the index in one step.
func BuildTotalReturn(s *model.PriceSeries) (*model.TotalReturnIndex, SplitResolution) {
	res := ResolveSplits(s)
	return Build(s, res.Factors), res
}

// safeRatio neutralizes non-finite and non-positive ratios to 1.0. A price
// ratio can only be <= 0 through a corrupt close, and 0 would zero every
// factor after it.
func safeRatio(r float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return 1
	}
	return r
}

// Rebase returns a windowed view of x over [a, b] with both factors
// re-normalized to 1.0 at the window's first date. The input index is not
// touched; the result is an independent copy.
func Rebase(x *model.TotalReturnIndex, a, b time.Time) *model.TotalReturnIndex {
	out := &model.TotalReturnIndex{Ticker: x.Ticker}
	basePrice, baseTotal := 0.0, 0.0

	for _, p := range x.Points {
		if p.Date.Before(a) || p.Date.After(b) {
			continue
		}
		if basePrice == 0 {
			basePrice, baseTotal = p.PriceFactor, p.TotalFactor
		}
		out.Points = append(out.Points, model.IndexPoint{
			Date:        p.Date,
			PriceFactor: safeRatio(p.PriceFactor / basePrice),
			TotalFactor: safeRatio(p.TotalFactor / baseTotal),
		})
	}
	return out
}
