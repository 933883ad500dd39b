package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/service/normalize"
	"github.com/finbridge/finbridge/pkg/util"
)

// flattenFacts turns the nested taxonomy->tag->unit->period structure
// into the flat metric list. Facts with a missing value are omitted
// rather than carried as placeholders. When several facts collapse to
// the same (concept, fiscal year, fiscal period) address, the larger
// period end wins; on an exact period-end tie the later filing wins.
func flattenFacts(facts companyFacts, wantedTags map[string]bool) []models.FinancialMetric {
	byKey := make(map[string]models.FinancialMetric)

	for _, tags := range facts.Facts {
		for tag, detail := range tags {
			if wantedTags != nil && !wantedTags[tag] {
				continue
			}
			concept := canonicalConcept(tag)
			for unit, entries := range detail.Units {
				for _, e := range entries {
					m, ok := factToMetric(concept, unit, e)
					if !ok {
						continue
					}
					key := m.Key()
					cur, exists := byKey[key]
					if !exists || better(m, cur) {
						byKey[key] = m
					}
				}
			}
		}
	}

	out := make([]models.FinancialMetric, 0, len(byKey))
	for _, m := range byKey {
		out = append(out, m)
	}
	return out
}

func factToMetric(concept, unit string, e factEntry) (models.FinancialMetric, bool) {
	if e.Val == nil {
		return models.FinancialMetric{}, false
	}
	end, ok := util.ParseDate(e.End)
	if !ok {
		return models.FinancialMetric{}, false
	}
	if unit == "" {
		unit = normalize.InferUnit(concept)
	}

	m := models.FinancialMetric{
		Concept:      concept,
		Value:        *e.Val,
		Unit:         unit,
		PeriodEnd:    end,
		Instant:      e.Start == "",
		FiscalYear:   e.FY,
		FiscalPeriod: e.FP,
		AccessionNo:  e.Accn,
		Form:         e.Form,
	}
	if e.Start != "" {
		if start, ok := util.ParseDate(e.Start); ok {
			m.PeriodStart = &start
		}
	}
	if filed, ok := util.ParseDate(e.Filed); ok {
		m.FiledAt = &filed
	}
	if m.FiscalPeriod == "" {
		m.FiscalPeriod = "FY"
	}
	if m.FiscalYear == 0 {
		m.FiscalYear = end.Year()
	}
	return m, true
}

// better reports whether a should replace b at the same metric key.
func better(a, b models.FinancialMetric) bool {
	if !a.PeriodEnd.Equal(b.PeriodEnd) {
		return a.PeriodEnd.After(b.PeriodEnd)
	}
	if a.FiledAt != nil && b.FiledAt != nil && !a.FiledAt.Equal(*b.FiledAt) {
		return a.FiledAt.After(*b.FiledAt)
	}
	return false
}

// --- failure translation at the adapter boundary ---

// translateStatus rewraps non-2xx upstream statuses into the domain
// error taxonomy. The body is drained so the connection can be reused.
func translateStatus(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.NewNotFoundError(providerName, url)
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.NewRateLimitError(providerName, retryAfterHint(resp))
	case resp.StatusCode >= 500:
		return models.NewProviderError(providerName, models.CodeUpstream,
			fmt.Sprintf("upstream status %d", resp.StatusCode), resp.StatusCode, true)
	default:
		return models.NewProviderError(providerName, models.CodeUpstream,
			fmt.Sprintf("upstream status %d", resp.StatusCode), resp.StatusCode, false)
	}
}

// translateTransportError rewraps dial/timeout failures.
func translateTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return models.NewProviderError(providerName, models.CodeTimeout,
			"upstream timeout", 0, true).WithCause(err)
	}
	return models.NewProviderError(providerName, models.CodeUpstream,
		"upstream request failed", 0, true).WithCause(err)
}

func retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 30 * time.Second
}

func decodeJSON(r io.Reader, dest interface{}) error {
	return json.NewDecoder(r).Decode(dest)
}
