// Package simulate runs recurring-contribution simulations against a
// total-return index and values the identical contribution stream against
// benchmark indices.
//
// All monetary values use shopspring/decimal — never float64 for money.
// The factor arithmetic itself runs in float64 and is converted to decimal
// once, at the money boundary.
package simulate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aporte/returns-engine/internal/calendar"
	"github.com/aporte/returns-engine/internal/model"
	"github.com/aporte/returns-engine/internal/schedule"
)

// MoneyScale is the number of decimal places for monetary results.
var MoneyScale int32 = 2

// Valuate answers: what would `amount` invested on each contribution date,
// compounding at the index's rate, be worth by evaluationDate?
//
//	value = Σ_d amount * (levelAt(evaluationDate) / levelAt(d))
//
// Levels resolve by forward-fill from the most recent observation at or
// before the date — never interpolated, never from the future. If the index
// has no observation at or before any contribution date (series starts too
// late), the whole valuation is unavailable: partial sums are disallowed.
func Valuate(amount decimal.Decimal, contributions []time.Time, idx *model.RateIndex, evaluationDate time.Time) (decimal.Decimal, bool) {
	if idx == nil || idx.Empty() || len(contributions) == 0 {
		return decimal.Zero, false
	}
	evalLevel, ok := idx.LevelAsOf(evaluationDate)
	if !ok || evalLevel <= 0 {
		return decimal.Zero, false
	}

	var growth float64
	for _, d := range contributions {
		level, ok := idx.LevelAsOf(d)
		if !ok || level <= 0 {
			return decimal.Zero, false
		}
		growth += evalLevel / level
	}
	return amount.Mul(decimal.NewFromFloat(growth)).Round(MoneyScale), true
}

// Horizon simulates a monthly contribution plan against a full-history
// total-return index and, with the same contribution dates, against each
// supplied benchmark index.
//
// userStart and evaluationTarget are calendar dates; both are resolved
// against the index's own trading calendar. Any step that cannot produce a
// valid schedule yields Status == StatusInsufficientData — a structured
// result, not an error, so sibling horizons keep working. A benchmark
// without coverage degrades to Available == false on its own entry only.
func Horizon(idx *model.TotalReturnIndex, monthlyAmount decimal.Decimal, userStart, evaluationTarget time.Time, benchmarks map[string]*model.RateIndex) *model.HorizonResult {
	result := &model.HorizonResult{
		Ticker:     idx.Ticker,
		Status:     model.StatusInsufficientData,
		Benchmarks: map[string]model.BenchmarkValue{},
	}

	cal := calendar.NewResolver(idx.Dates())

	evaluationDate, ok := cal.LastAtOrBefore(evaluationTarget)
	if !ok {
		return result
	}
	scheduleStart, ok := cal.NextAtOrAfter(userStart)
	if !ok || !scheduleStart.Before(evaluationDate) {
		return result
	}

	contributions := schedule.Generate(scheduleStart, evaluationDate, userStart.Day(), cal)
	if len(contributions) == 0 {
		return result
	}

	evalPoint, ok := idx.At(evaluationDate)
	if !ok {
		return result
	}

	// Contribution dates and the evaluation date are trading days by
	// construction, so the equity leg uses exact lookups, no forward-fill.
	var growth float64
	for _, d := range contributions {
		p, ok := idx.At(d)
		if !ok || p.TotalFactor <= 0 {
			return result
		}
		growth += evalPoint.TotalFactor / p.TotalFactor
	}

	count := len(contributions)
	finalValue := monthlyAmount.Mul(decimal.NewFromFloat(growth)).Round(MoneyScale)
	capital := monthlyAmount.Mul(decimal.NewFromInt(int64(count))).Round(MoneyScale)

	result.Status = model.StatusOK
	result.EvaluationDate = evaluationDate
	result.FinalValue = finalValue
	result.CapitalContributed = capital
	result.Profit = finalValue.Sub(capital)
	result.ContributionCount = count
	result.ContributionDates = contributions

	for name, bench := range benchmarks {
		value, available := Valuate(monthlyAmount, contributions, bench, evaluationDate)
		result.Benchmarks[name] = model.BenchmarkValue{Value: value, Available: available}
	}
	return result
}
