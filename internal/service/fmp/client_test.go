package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/internal/service/providertest"
)

const profileBody = `[{
  "symbol": "AAPL",
  "companyName": "Apple Inc.",
  "cik": "0000320193",
  "sector": "Technology",
  "industry": "Consumer Electronics",
  "exchangeShortName": "NASDAQ",
  "mktCap": 3000000000000
}]`

const keyMetricsBody = `[
  {"date": "2023-09-30", "period": "FY", "peRatio": 29.8, "roe": 1.56, "marketCap": 2950000000000, "dividendYield": null},
  {"date": "2022-09-24", "period": "FY", "peRatio": 24.4, "roe": 1.75, "marketCap": 2400000000000}
]`

const searchBody = `[
  {"symbol": "AAPL", "name": "Apple Inc.", "exchangeShortName": "NASDAQ"},
  {"symbol": "APLE", "name": "Apple Hospitality REIT", "exchangeShortName": "NYSE"}
]`

const peersBody = `[{"symbol": "AAPL", "peersList": ["MSFT", "GOOGL", "DELL"]}]`

func newFakeFMP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/profile/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/AAPL") {
			w.Write([]byte(profileBody))
			return
		}
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/key-metrics/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/AAPL") {
			w.Write([]byte(keyMetricsBody))
			return
		}
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchBody))
	})
	mux.HandleFunc("/stock_peers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(peersBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Options{APIKey: "test-key", BaseURL: srv.URL, RequestsPerSec: 100}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestProviderContract(t *testing.T) {
	srv := newFakeFMP(t)
	providertest.Run(t, providertest.Fixture{
		Provider:      newTestClient(t, srv),
		KnownID:       "AAPL",
		UnknownID:     "ZZZZ",
		NarrowConcept: "PriceToEarnings",
	})
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Fatal("missing api key accepted")
	}
}

func TestAPIKeyOnEveryRequest(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query().Get("apikey")
		w.Write([]byte(profileBody))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	if _, err := c.GetCompanyMetadata(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if seen != "test-key" {
		t.Fatalf("apikey param = %q", seen)
	}
}

func TestRegulatoryIDReportsNotFound(t *testing.T) {
	srv := newFakeFMP(t)
	c := newTestClient(t, srv)

	for _, id := range []string{"0000320193", "CIK0000320193"} {
		if _, err := c.GetCompanyMetadata(context.Background(), id); !models.IsNotFound(err) {
			t.Errorf("GetCompanyMetadata(%q): want not-found, got %v", id, err)
		}
	}
}

func TestMetadataProfile(t *testing.T) {
	srv := newFakeFMP(t)
	c := newTestClient(t, srv)

	md, err := c.GetCompanyMetadata(context.Background(), "aapl")
	if err != nil {
		t.Fatal(err)
	}
	if md.CIK != "0000320193" || md.Ticker != "AAPL" || md.Sector != "Technology" {
		t.Fatalf("metadata wrong: %+v", md)
	}
}

func TestFinancialDataNullFieldsOmitted(t *testing.T) {
	srv := newFakeFMP(t)
	c := newTestClient(t, srv)

	data, err := c.GetFinancialData(context.Background(), "AAPL", repository.FetchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if data.Source != "fmp" {
		t.Fatalf("source = %q", data.Source)
	}
	for _, m := range data.Metrics {
		if m.Concept == "DividendYield" {
			t.Fatal("null field surfaced as metric")
		}
	}

	byConcept := map[string]int{}
	for _, m := range data.Metrics {
		byConcept[m.Concept]++
	}
	if byConcept["PriceToEarnings"] != 2 || byConcept["ReturnOnEquity"] != 2 || byConcept["MarketCap"] != 2 {
		t.Fatalf("flattening wrong: %v", byConcept)
	}
}

func TestLatestMetricsPicksNewestPeriod(t *testing.T) {
	srv := newFakeFMP(t)
	c := newTestClient(t, srv)

	data, err := c.GetLatestMetrics(context.Background(), "AAPL", []string{"PriceToEarnings"})
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Metrics) != 1 {
		t.Fatalf("want 1 metric, got %d", len(data.Metrics))
	}
	m := data.Metrics[0]
	if m.Value != 29.8 || m.FiscalYear != 2023 {
		t.Fatalf("stale period won: %+v", m)
	}
}

func TestGetPeersLimit(t *testing.T) {
	srv := newFakeFMP(t)
	c := newTestClient(t, srv)

	peers, err := c.GetPeers(context.Background(), "AAPL", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 2 || peers[0].Ticker != "MSFT" || peers[1].Ticker != "GOOGL" {
		t.Fatalf("peers: %v", peers)
	}
}

func TestUpstream429BecomesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.GetCompanyMetadata(context.Background(), "AAPL")
	if !models.IsRateLimited(err) {
		t.Fatalf("want rate-limited kind, got %v", err)
	}
}

func TestCapabilitiesExcludeFilings(t *testing.T) {
	srv := newFakeFMP(t)
	caps := newTestClient(t, srv).Capabilities()
	if caps.CompanyFacts {
		t.Fatal("fmp must not claim filing coverage")
	}
	if !caps.RatioData || !caps.PeerData {
		t.Fatalf("capabilities wrong: %+v", caps)
	}
}
