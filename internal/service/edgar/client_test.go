package edgar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/internal/service/providertest"
)

const tickerIndexBody = `{
  "0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
  "1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"}
}`

const submissionsBody = `{
  "cik": "320193",
  "name": "Apple Inc.",
  "sic": "3571",
  "sicDescription": "Electronic Computers",
  "fiscalYearEnd": "0927",
  "tickers": ["AAPL"],
  "exchanges": ["Nasdaq"]
}`

const companyFactsBody = `{
  "cik": 320193,
  "entityName": "Apple Inc.",
  "facts": {
    "us-gaap": {
      "Revenues": {
        "units": {
          "USD": [
            {"end": "2022-09-24", "start": "2021-09-26", "val": 394328000000, "fy": 2022, "fp": "FY", "form": "10-K", "accn": "0000320193-22-000108", "filed": "2022-10-28"},
            {"end": "2023-09-30", "start": "2022-09-25", "val": 383285000000, "fy": 2023, "fp": "FY", "form": "10-K", "accn": "0000320193-23-000106", "filed": "2023-11-03"}
          ]
        }
      },
      "NetIncomeLoss": {
        "units": {
          "USD": [
            {"end": "2023-09-30", "start": "2022-09-25", "val": 96995000000, "fy": 2023, "fp": "FY", "form": "10-K", "accn": "0000320193-23-000106", "filed": "2023-11-03"},
            {"end": "2023-09-30", "start": "2022-09-25", "val": null, "fy": 2023, "fp": "Q4", "form": "10-K", "accn": "0000320193-23-000106", "filed": "2023-11-03"}
          ]
        }
      },
      "Assets": {
        "units": {
          "USD": [
            {"end": "2023-09-30", "val": 352583000000, "fy": 2023, "fp": "FY", "form": "10-K", "accn": "0000320193-23-000106", "filed": "2023-11-03"}
          ]
        }
      }
    }
  }
}`

func newFakeEDGAR(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tickerIndexBody))
	})
	mux.HandleFunc("/submissions/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "CIK0000320193.json") {
			w.Write([]byte(submissionsBody))
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/api/xbrl/companyfacts/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "CIK0000320193.json") {
			w.Write([]byte(companyFactsBody))
			return
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Options{
		UserAgent: "finbridge-test test@example.com",
		BaseURL:   srv.URL,
		IndexURL:  srv.URL + "/files/company_tickers.json",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestProviderContract(t *testing.T) {
	srv := newFakeEDGAR(t)
	providertest.Run(t, providertest.Fixture{
		Provider:      newTestClient(t, srv),
		KnownID:       "AAPL",
		UnknownID:     "ZZZZ",
		NarrowConcept: "Revenue",
	})
}

func TestNewRequiresUserAgent(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Fatal("missing user agent accepted")
	}
}

func TestNormalizeCIK(t *testing.T) {
	cases := map[string]string{
		"320193":        "0000320193",
		"0000320193":    "0000320193",
		"CIK320193":     "0000320193",
		"cik0000320193": "0000320193",
	}
	for in, want := range cases {
		if got := NormalizeCIK(in); got != want {
			t.Errorf("NormalizeCIK(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeCIKIdempotent(t *testing.T) {
	once := NormalizeCIK("320193")
	if twice := NormalizeCIK(once); twice != once {
		t.Fatalf("not idempotent: %q -> %q", once, twice)
	}
}

func TestMetadataByCIK(t *testing.T) {
	srv := newFakeEDGAR(t)
	c := newTestClient(t, srv)

	md, err := c.GetCompanyMetadata(context.Background(), "0000320193")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md.Name, "Apple") {
		t.Fatalf("name = %q, want Apple", md.Name)
	}
	if md.Ticker != "AAPL" || md.Exchange != "Nasdaq" || md.SIC != "3571" {
		t.Fatalf("metadata wrong: %+v", md)
	}
}

func TestMetadataByTicker(t *testing.T) {
	srv := newFakeEDGAR(t)
	c := newTestClient(t, srv)

	md, err := c.GetCompanyMetadata(context.Background(), "aapl")
	if err != nil {
		t.Fatal(err)
	}
	if md.CIK != "0000320193" {
		t.Fatalf("cik = %q", md.CIK)
	}
}

func TestFinancialDataFlattening(t *testing.T) {
	srv := newFakeEDGAR(t)
	c := newTestClient(t, srv)

	data, err := c.GetFinancialData(context.Background(), "AAPL", repository.FetchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if data.Source != "edgar" {
		t.Fatalf("source = %q", data.Source)
	}

	// One null-valued fact in the fixture must be omitted.
	byConcept := map[string]int{}
	for _, m := range data.Metrics {
		byConcept[m.Concept]++
		if m.Concept == "NetIncomeLoss" || m.Concept == "Revenues" {
			t.Fatalf("upstream tag leaked uncanonicalized: %q", m.Concept)
		}
	}
	if byConcept["Revenue"] != 2 || byConcept["NetIncome"] != 1 || byConcept["TotalAssets"] != 1 {
		t.Fatalf("flattening wrong: %v", byConcept)
	}

	for _, m := range data.Metrics {
		if m.Concept == "TotalAssets" && !m.Instant {
			t.Fatal("instant fact not flagged")
		}
		if m.Concept == "Revenue" && m.Instant {
			t.Fatal("duration fact flagged instant")
		}
	}
}

func TestSearchCompanies(t *testing.T) {
	srv := newFakeEDGAR(t)
	c := newTestClient(t, srv)

	got, err := c.SearchCompanies(context.Background(), "apple")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CIK != "0000320193" {
		t.Fatalf("search results: %v", got)
	}

	none, err := c.SearchCompanies(context.Background(), "frobnicate")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("want empty slice, got %v", none)
	}
}

func TestUpstream429BecomesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "company_tickers.json") {
			w.Write([]byte(tickerIndexBody))
			return
		}
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.GetCompanyMetadata(context.Background(), "AAPL")
	if !models.IsRateLimited(err) {
		t.Fatalf("want rate-limited kind, got %v", err)
	}
	var rl *models.RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter.Seconds() != 7 {
		t.Fatalf("retry hint not carried: %v", err)
	}
}

func TestUpstream500IsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "company_tickers.json") {
			w.Write([]byte(tickerIndexBody))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.GetCompanyMetadata(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("want error")
	}
	if models.IsNotFound(err) || models.IsRateLimited(err) {
		t.Fatalf("wrong kind: %v", err)
	}
	if !models.IsRetryable(err) {
		t.Fatal("5xx must be retryable")
	}
}

func TestHealthCheckDownstreamDown(t *testing.T) {
	srv := newFakeEDGAR(t)
	c := newTestClient(t, srv)
	if !c.HealthCheck(context.Background()) {
		t.Fatal("reachable upstream reported unhealthy")
	}

	srv.Close()
	if c.HealthCheck(context.Background()) {
		t.Fatal("closed upstream reported healthy")
	}
}
