package rates

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aporte/returns-engine/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return model.Day(y, m, d)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

// --- Compound ---

func TestCompound_Levels(t *testing.T) {
	idx := Compound("12", []Observation{
		{Date: day(2024, 1, 2), Rate: 0.01},
		{Date: day(2024, 1, 3), Rate: 0.02},
	})
	if idx.Len() != 2 {
		t.Fatalf("expected 2 points, got %d", idx.Len())
	}
	if !approx(idx.Points[0].Level, 1.01) {
		t.Errorf("level[0] = %v, want 1.01", idx.Points[0].Level)
	}
	if !approx(idx.Points[1].Level, 1.01*1.02) {
		t.Errorf("level[1] = %v, want %v", idx.Points[1].Level, 1.01*1.02)
	}
}

func TestCompound_Idempotent(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, 1, 2), Rate: 0.004},
		{Date: day(2024, 1, 3), Rate: 0.0041},
		{Date: day(2024, 1, 4), Rate: 0.0039},
	}
	a := Compound("12", obs)
	b := Compound("12", obs)
	for i := range a.Points {
		if a.Points[i].Level != b.Points[i].Level {
			t.Errorf("point %d: %v != %v", i, a.Points[i].Level, b.Points[i].Level)
		}
	}
}

func TestCompound_DuplicateDatesKeepLast(t *testing.T) {
	// Overlapping chunk fetches re-deliver edge days; the later
	// observation supersedes, it is never summed or averaged.
	idx := Compound("12", []Observation{
		{Date: day(2024, 1, 2), Rate: 0.01},
		{Date: day(2024, 1, 2), Rate: 0.05},
	})
	if idx.Len() != 1 {
		t.Fatalf("expected 1 point after dedup, got %d", idx.Len())
	}
	if !approx(idx.Points[0].Level, 1.05) {
		t.Errorf("level = %v, want 1.05 (last occurrence wins)", idx.Points[0].Level)
	}
}

func TestCompound_EmptyInputIsValid(t *testing.T) {
	idx := Compound("433", nil)
	if !idx.Empty() {
		t.Errorf("expected empty index, got %d points", idx.Len())
	}
}

// --- ParseRate ---

func TestParseRate_CommaSeparator(t *testing.T) {
	v, err := ParseRate("0,40")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(v, 0.004) {
		t.Errorf("got %v, want 0.004", v)
	}
}

func TestParseRate_PointSeparator(t *testing.T) {
	v, err := ParseRate("0.40")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(v, 0.004) {
		t.Errorf("got %v, want 0.004", v)
	}
}

func TestParseRate_Malformed(t *testing.T) {
	if _, err := ParseRate("n/d"); err == nil {
		t.Error("expected error for non-numeric rate")
	}
}

// --- Chunking ---

func TestChunkRanges_ShortRangeSingleChunk(t *testing.T) {
	chunks := chunkRanges(day(2020, 1, 1), day(2024, 6, 30))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !chunks[0][0].Equal(day(2020, 1, 1)) || !chunks[0][1].Equal(day(2024, 6, 30)) {
		t.Errorf("chunk = %v", chunks[0])
	}
}

func TestChunkRanges_LongRangeCoversWithoutGaps(t *testing.T) {
	start, end := day(1999, 3, 15), day(2024, 6, 30)
	chunks := chunkRanges(start, end)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for ~25 years, got %d", len(chunks))
	}
	if !chunks[0][0].Equal(start) {
		t.Errorf("first chunk starts at %v", chunks[0][0])
	}
	if !chunks[len(chunks)-1][1].Equal(end) {
		t.Errorf("last chunk ends at %v", chunks[len(chunks)-1][1])
	}
	for i := 1; i < len(chunks); i++ {
		if !chunks[i][0].Equal(chunks[i-1][1].AddDate(0, 0, 1)) {
			t.Errorf("gap between chunk %d and %d: %v -> %v",
				i-1, i, chunks[i-1][1], chunks[i][0])
		}
	}
	for _, c := range chunks {
		if c[1].After(c[0].AddDate(10, 0, 0)) {
			t.Errorf("chunk longer than 10 years: %v", c)
		}
	}
}

// --- Builder ---

type fakeProvider struct {
	calls [][2]time.Time
	obs   map[int][]Observation // call ordinal -> observations
	fail  int                   // call ordinal that errors, -1 for none
}

func (f *fakeProvider) Fetch(_ context.Context, _ string, start, end time.Time) ([]Observation, error) {
	ordinal := len(f.calls)
	f.calls = append(f.calls, [2]time.Time{start, end})
	if ordinal == f.fail {
		return nil, errors.New("boom")
	}
	return f.obs[ordinal], nil
}

func TestBuildIndex_ChunksLongRange(t *testing.T) {
	p := &fakeProvider{fail: -1, obs: map[int][]Observation{
		0: {{Date: day(2000, 1, 3), Rate: 0.01}},
		1: {{Date: day(2012, 1, 3), Rate: 0.02}},
	}}
	b := NewBuilder(p)

	idx := b.BuildIndex(context.Background(), "12", day(2000, 1, 1), day(2015, 1, 1))
	if len(p.calls) != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", len(p.calls))
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 points, got %d", idx.Len())
	}
	if !approx(idx.Points[1].Level, 1.01*1.02) {
		t.Errorf("levels not compounded across chunks: %v", idx.Points[1].Level)
	}
}

func TestBuildIndex_ChunkFailureYieldsEmptyIndex(t *testing.T) {
	p := &fakeProvider{fail: 1, obs: map[int][]Observation{
		0: {{Date: day(2000, 1, 3), Rate: 0.01}},
	}}
	b := NewBuilder(p)

	idx := b.BuildIndex(context.Background(), "12", day(2000, 1, 1), day(2015, 1, 1))
	if !idx.Empty() {
		t.Errorf("partial data returned after chunk failure: %d points", idx.Len())
	}
}
