package normalize

import (
	"testing"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func sample() []models.FinancialMetric {
	return []models.FinancialMetric{
		{Concept: "Revenue", Value: 100, PeriodEnd: day(2022, 9, 24), FiscalYear: 2022, FiscalPeriod: "FY", Form: "10-K"},
		{Concept: "Revenue", Value: 120, PeriodEnd: day(2023, 9, 30), FiscalYear: 2023, FiscalPeriod: "FY", Form: "10-K"},
		{Concept: "NetIncome", Value: 30, PeriodEnd: day(2023, 9, 30), FiscalYear: 2023, FiscalPeriod: "FY", Form: "10-K"},
		{Concept: "Revenue", Value: 25, PeriodEnd: day(2023, 12, 30), FiscalYear: 2024, FiscalPeriod: "Q1", Form: "10-Q"},
	}
}

func TestApplyFetchOptionsConcepts(t *testing.T) {
	got := ApplyFetchOptions(sample(), repository.FetchOptions{Concepts: []string{"revenue"}})
	if len(got) != 3 {
		t.Fatalf("got %d metrics, want 3", len(got))
	}
	for _, m := range got {
		if m.Concept != "Revenue" {
			t.Fatalf("unexpected concept %q", m.Concept)
		}
	}
}

func TestApplyFetchOptionsDateRange(t *testing.T) {
	got := ApplyFetchOptions(sample(), repository.FetchOptions{
		From: day(2023, 1, 1),
		To:   day(2023, 12, 31),
	})
	if len(got) != 3 {
		t.Fatalf("got %d metrics, want 3", len(got))
	}
	for _, m := range got {
		if m.PeriodEnd.Before(day(2023, 1, 1)) || m.PeriodEnd.After(day(2023, 12, 31)) {
			t.Fatalf("period end %v out of range", m.PeriodEnd)
		}
	}
}

func TestApplyFetchOptionsForm(t *testing.T) {
	got := ApplyFetchOptions(sample(), repository.FetchOptions{Form: "10-q"})
	if len(got) != 1 || got[0].FiscalPeriod != "Q1" {
		t.Fatalf("form filter failed: %+v", got)
	}
}

func TestApplyFetchOptionsLimit(t *testing.T) {
	got := ApplyFetchOptions(sample(), repository.FetchOptions{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("got %d metrics, want 2", len(got))
	}
}

func TestApplyFetchOptionsZeroValuePassesAll(t *testing.T) {
	got := ApplyFetchOptions(sample(), repository.FetchOptions{})
	if len(got) != len(sample()) {
		t.Fatalf("zero options dropped metrics: %d", len(got))
	}
}

func TestLatestPerConcept(t *testing.T) {
	got := LatestPerConcept(sample(), []string{"Revenue", "NetIncome", "Assets"})
	if len(got) != 2 {
		t.Fatalf("got %d metrics, want 2", len(got))
	}
	if got[0].Concept != "Revenue" || !got[0].PeriodEnd.Equal(day(2023, 12, 30)) {
		t.Fatalf("latest revenue wrong: %+v", got[0])
	}
	if got[1].Concept != "NetIncome" {
		t.Fatalf("requested order not preserved: %+v", got[1])
	}
}

func TestLatestPerConceptEmptyRequest(t *testing.T) {
	got := LatestPerConcept(sample(), nil)
	if len(got) != 2 {
		t.Fatalf("got %d metrics, want one per concept", len(got))
	}
	seen := map[string]bool{}
	for _, m := range got {
		if seen[m.Concept] {
			t.Fatalf("duplicate concept %q", m.Concept)
		}
		seen[m.Concept] = true
	}
}

func TestSortByPeriodEnd(t *testing.T) {
	ms := sample()
	SortByPeriodEnd(ms)
	for i := 1; i < len(ms); i++ {
		if ms[i].PeriodEnd.After(ms[i-1].PeriodEnd) {
			t.Fatalf("not sorted newest first at %d", i)
		}
	}
}

func TestInferUnit(t *testing.T) {
	cases := map[string]string{
		"CurrentRatio":      "pure",
		"GrossMargin":       "pure",
		"ReturnOnEquity":    "pure",
		"PriceToEarnings":   "pure",
		"EPS":               "USD/shares",
		"RevenuePerShare":   "USD/shares",
		"SharesOutstanding": "shares",
		"Revenue":           "USD",
	}
	for concept, want := range cases {
		if got := InferUnit(concept); got != want {
			t.Errorf("InferUnit(%q) = %q, want %q", concept, got, want)
		}
	}
}
