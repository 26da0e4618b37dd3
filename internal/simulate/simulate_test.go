package simulate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aporte/returns-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func day(y int, m time.Month, dd int) time.Time {
	return model.Day(y, m, dd)
}

func rateIndex(code string, points ...model.RatePoint) *model.RateIndex {
	return &model.RateIndex{Code: code, Points: points}
}

// --- Valuate ---

func TestValuate_SingleContribution(t *testing.T) {
	idx := rateIndex("12",
		model.RatePoint{Date: day(2024, 1, 2), Level: 1.0},
		model.RatePoint{Date: day(2024, 6, 3), Level: 1.05},
	)
	got, ok := Valuate(d(1000), []time.Time{day(2024, 1, 2)}, idx, day(2024, 6, 3))
	if !ok {
		t.Fatal("valuation unavailable")
	}
	if !got.Equal(d(1050)) {
		t.Errorf("value = %s, want 1050", got)
	}
}

func TestValuate_ForwardFillNeverLooksAhead(t *testing.T) {
	idx := rateIndex("12",
		model.RatePoint{Date: day(2024, 1, 2), Level: 1.0},
		model.RatePoint{Date: day(2024, 1, 10), Level: 2.0},
	)
	// Jan 5 has no observation: the level is Jan 2's 1.0, not Jan 10's 2.0.
	got, ok := Valuate(d(100), []time.Time{day(2024, 1, 5)}, idx, day(2024, 1, 10))
	if !ok {
		t.Fatal("valuation unavailable")
	}
	if !got.Equal(d(200)) {
		t.Errorf("value = %s, want 200 (contribution at level 1.0)", got)
	}
}

func TestValuate_ContributionBeforeCoverage(t *testing.T) {
	idx := rateIndex("433",
		model.RatePoint{Date: day(2024, 3, 1), Level: 1.0},
	)
	_, ok := Valuate(d(100), []time.Time{day(2024, 1, 15), day(2024, 3, 15)}, idx, day(2024, 3, 15))
	if ok {
		t.Error("valuation with a pre-coverage contribution must be unavailable, not partial")
	}
}

func TestValuate_EmptyIndex(t *testing.T) {
	if _, ok := Valuate(d(100), []time.Time{day(2024, 1, 2)}, rateIndex("12"), day(2024, 6, 3)); ok {
		t.Error("empty index valued")
	}
	if _, ok := Valuate(d(100), []time.Time{day(2024, 1, 2)}, nil, day(2024, 6, 3)); ok {
		t.Error("nil index valued")
	}
}

func TestValuate_RoundsToMoneyScale(t *testing.T) {
	idx := rateIndex("12",
		model.RatePoint{Date: day(2024, 1, 2), Level: 3.0},
		model.RatePoint{Date: day(2024, 6, 3), Level: 4.0},
	)
	got, ok := Valuate(d(100), []time.Time{day(2024, 1, 2)}, idx, day(2024, 6, 3))
	if !ok {
		t.Fatal("valuation unavailable")
	}
	// 100 * 4/3 = 133.333... rounds to 133.33.
	if !got.Equal(d(133.33)) {
		t.Errorf("value = %s, want 133.33", got)
	}
}

// --- Horizon ---

// fourDayIndex is a hand-checkable scenario: closes 10, 10, 11, 11 with a
// 0.50 dividend on the third day.
//
//	price factors: 1, 1, 1.1, 1.1
//	total factors: 1, 1, 1.15, 1.15
func fourDayIndex() *model.TotalReturnIndex {
	return &model.TotalReturnIndex{
		Ticker: "XPTO3.SA",
		Points: []model.IndexPoint{
			{Date: day(2024, 1, 2), PriceFactor: 1, TotalFactor: 1},
			{Date: day(2024, 1, 3), PriceFactor: 1, TotalFactor: 1},
			{Date: day(2024, 1, 4), PriceFactor: 1.1, TotalFactor: 1.15},
			{Date: day(2024, 1, 5), PriceFactor: 1.1, TotalFactor: 1.15},
		},
	}
}

func TestHorizon_SingleContribution(t *testing.T) {
	res := Horizon(fourDayIndex(), d(100), day(2024, 1, 2), day(2024, 1, 5), nil)

	if res.Status != model.StatusOK {
		t.Fatalf("status = %q, want ok", res.Status)
	}
	if !res.EvaluationDate.Equal(day(2024, 1, 5)) {
		t.Errorf("evaluation date = %v", res.EvaluationDate)
	}
	if res.ContributionCount != 1 {
		t.Fatalf("contributions = %d, want 1", res.ContributionCount)
	}
	if !res.ContributionDates[0].Equal(day(2024, 1, 2)) {
		t.Errorf("contribution on %v, want 2024-01-02", res.ContributionDates[0])
	}
	if !res.FinalValue.Equal(d(115)) {
		t.Errorf("final value = %s, want 115", res.FinalValue)
	}
	if !res.CapitalContributed.Equal(d(100)) {
		t.Errorf("capital = %s, want 100", res.CapitalContributed)
	}
	if !res.Profit.Equal(d(15)) {
		t.Errorf("profit = %s, want 15", res.Profit)
	}
}

func TestHorizon_EvaluationTargetResolvesBackward(t *testing.T) {
	// Target past the last trading day resolves to the last available one.
	res := Horizon(fourDayIndex(), d(100), day(2024, 1, 2), day(2024, 1, 7), nil)
	if res.Status != model.StatusOK {
		t.Fatalf("status = %q", res.Status)
	}
	if !res.EvaluationDate.Equal(day(2024, 1, 5)) {
		t.Errorf("evaluation date = %v, want 2024-01-05", res.EvaluationDate)
	}
}

func TestHorizon_StartAfterHistory(t *testing.T) {
	res := Horizon(fourDayIndex(), d(100), day(2024, 2, 1), day(2024, 2, 28), nil)
	if res.Status != model.StatusInsufficientData {
		t.Errorf("status = %q, want insufficient_data", res.Status)
	}
}

func TestHorizon_EvaluationBeforeHistory(t *testing.T) {
	res := Horizon(fourDayIndex(), d(100), day(2023, 1, 1), day(2023, 6, 1), nil)
	if res.Status != model.StatusInsufficientData {
		t.Errorf("status = %q, want insufficient_data", res.Status)
	}
}

func TestHorizon_StartEqualsEvaluation(t *testing.T) {
	// A window with no room for a contribution strictly before evaluation.
	res := Horizon(fourDayIndex(), d(100), day(2024, 1, 5), day(2024, 1, 5), nil)
	if res.Status != model.StatusInsufficientData {
		t.Errorf("status = %q, want insufficient_data", res.Status)
	}
}

func TestHorizon_BenchmarksValuedOnSameDates(t *testing.T) {
	cdi := rateIndex("12",
		model.RatePoint{Date: day(2024, 1, 2), Level: 1.0},
		model.RatePoint{Date: day(2024, 1, 5), Level: 1.02},
	)
	// IPCA coverage starts after the contribution date: unavailable.
	ipca := rateIndex("433",
		model.RatePoint{Date: day(2024, 1, 4), Level: 1.0},
	)
	res := Horizon(fourDayIndex(), d(100), day(2024, 1, 2), day(2024, 1, 5),
		map[string]*model.RateIndex{"cdi": cdi, "ipca": ipca})

	if res.Status != model.StatusOK {
		t.Fatalf("status = %q", res.Status)
	}
	got, present := res.Benchmarks["cdi"]
	if !present || !got.Available {
		t.Fatalf("cdi benchmark missing or unavailable: %+v", got)
	}
	if !got.Value.Equal(d(102)) {
		t.Errorf("cdi value = %s, want 102", got.Value)
	}
	got, present = res.Benchmarks["ipca"]
	if !present {
		t.Fatal("ipca entry missing")
	}
	if got.Available {
		t.Error("ipca without contribution-date coverage reported as available")
	}
	// The equity leg is untouched by a degraded benchmark.
	if !res.FinalValue.Equal(d(115)) {
		t.Errorf("final value = %s, want 115", res.FinalValue)
	}
}

func TestHorizon_MonthlyCadence(t *testing.T) {
	// Six months of synthetic trading days, first of each month, flat index.
	var points []model.IndexPoint
	for m := time.January; m <= time.June; m++ {
		points = append(points, model.IndexPoint{
			Date: day(2024, m, 1), PriceFactor: 1, TotalFactor: 1,
		})
	}
	idx := &model.TotalReturnIndex{Ticker: "FLAT3.SA", Points: points}

	res := Horizon(idx, d(250), day(2024, 1, 1), day(2024, 6, 1), nil)
	if res.Status != model.StatusOK {
		t.Fatalf("status = %q", res.Status)
	}
	if res.ContributionCount != 5 {
		t.Fatalf("contributions = %d, want 5 (Jan-May; June is evaluation day)", res.ContributionCount)
	}
	if !res.CapitalContributed.Equal(d(1250)) {
		t.Errorf("capital = %s, want 1250", res.CapitalContributed)
	}
	if !res.Profit.Equal(decimal.Zero) {
		t.Errorf("flat index profit = %s, want 0", res.Profit)
	}
}
