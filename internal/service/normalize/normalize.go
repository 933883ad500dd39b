package normalize

import (
	"sort"
	"strings"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
)

// ApplyFetchOptions filters normalized metrics by the caller's
// options. Adapters fetch first and filter here unless the upstream
// supports a filter natively.
func ApplyFetchOptions(metrics []models.FinancialMetric, opts repository.FetchOptions) []models.FinancialMetric {
	out := make([]models.FinancialMetric, 0, len(metrics))

	var wanted map[string]bool
	if len(opts.Concepts) > 0 {
		wanted = make(map[string]bool, len(opts.Concepts))
		for _, c := range opts.Concepts {
			wanted[strings.ToLower(c)] = true
		}
	}

	for _, m := range metrics {
		if wanted != nil && !wanted[strings.ToLower(m.Concept)] {
			continue
		}
		if !opts.From.IsZero() && m.PeriodEnd.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && m.PeriodEnd.After(opts.To) {
			continue
		}
		if opts.Form != "" && !strings.EqualFold(m.Form, opts.Form) {
			continue
		}
		out = append(out, m)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out
}

// LatestPerConcept selects, for each requested concept, the single
// metric with the maximum period end. Concepts with no data are
// omitted. Output order follows the requested concept order; an empty
// request keeps every concept, sorted by name.
func LatestPerConcept(metrics []models.FinancialMetric, concepts []string) []models.FinancialMetric {
	latest := make(map[string]models.FinancialMetric)
	for _, m := range metrics {
		key := strings.ToLower(m.Concept)
		cur, ok := latest[key]
		if !ok || m.PeriodEnd.After(cur.PeriodEnd) {
			latest[key] = m
		}
	}

	if len(concepts) == 0 {
		keys := make([]string, 0, len(latest))
		for k := range latest {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]models.FinancialMetric, 0, len(keys))
		for _, k := range keys {
			out = append(out, latest[k])
		}
		return out
	}

	out := make([]models.FinancialMetric, 0, len(concepts))
	for _, c := range concepts {
		if m, ok := latest[strings.ToLower(c)]; ok {
			out = append(out, m)
		}
	}
	return out
}

// SortByPeriodEnd orders metrics newest first, with concept name as a
// stable tiebreak so repeated calls are reproducible.
func SortByPeriodEnd(metrics []models.FinancialMetric) {
	sort.SliceStable(metrics, func(i, j int) bool {
		if !metrics[i].PeriodEnd.Equal(metrics[j].PeriodEnd) {
			return metrics[i].PeriodEnd.After(metrics[j].PeriodEnd)
		}
		return metrics[i].Concept < metrics[j].Concept
	})
}

// InferUnit guesses a unit from a canonical concept name when the
// upstream does not report one. Ratios and percentages are unitless,
// per-share concepts are USD/share, everything else defaults to USD.
func InferUnit(concept string) string {
	lc := strings.ToLower(concept)
	switch {
	case strings.Contains(lc, "ratio"),
		strings.Contains(lc, "margin"),
		strings.Contains(lc, "turnover"),
		strings.Contains(lc, "yield"),
		strings.Contains(lc, "return"),
		strings.HasPrefix(lc, "priceto"),
		strings.Contains(lc, "beta"):
		return "pure"
	case strings.Contains(lc, "pershare"), strings.HasSuffix(lc, "eps"):
		return "USD/shares"
	case strings.Contains(lc, "shares") || strings.Contains(lc, "count"):
		return "shares"
	default:
		return "USD"
	}
}
