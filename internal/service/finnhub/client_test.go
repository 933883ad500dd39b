package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/service/providertest"
)

const profile2Body = `{
  "name": "Apple Inc",
  "ticker": "AAPL",
  "exchange": "NASDAQ NMS - GLOBAL MARKET",
  "finnhubIndustry": "Technology",
  "marketCapitalization": 2950000
}`

const metricBody = `{
  "metric": {
    "peBasicExclExtraTTM": 29.8,
    "pbQuarterly": 45.2,
    "roeTTM": 156.1,
    "grossMarginTTM": 44.1,
    "dividendYieldIndicatedAnnual": null,
    "52WeekHigh": 199.62
  }
}`

const quoteBody = `{"c": 189.95, "d": 1.25, "dp": 0.66, "h": 190.5, "l": 188.1, "o": 188.9, "pc": 188.7, "t": 1700000000}`

const symbolSearchBody = `{
  "count": 3,
  "result": [
    {"description": "APPLE INC", "displaySymbol": "AAPL", "symbol": "AAPL", "type": "Common Stock"},
    {"description": "APPLE INC CALL", "displaySymbol": "AAPL231215C", "symbol": "AAPL231215C", "type": "Option"},
    {"description": "APPLE HOSPITALITY REIT", "displaySymbol": "APLE", "symbol": "APLE", "type": "Common Stock"}
  ]
}`

const peersListBody = `["AAPL", "MSFT", "DELL", "HPQ"]`

func newFakeFinnhub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/stock/profile2", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "AAPL" {
			w.Write([]byte(profile2Body))
			return
		}
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/stock/metric", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "AAPL" {
			w.Write([]byte(metricBody))
			return
		}
		w.Write([]byte(`{"metric": {}}`))
	})
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "AAPL" {
			w.Write([]byte(quoteBody))
			return
		}
		w.Write([]byte(`{"c": 0, "t": 0}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(symbolSearchBody))
	})
	mux.HandleFunc("/stock/peers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(peersListBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Options{APIKey: "test-key", BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestProviderContract(t *testing.T) {
	srv := newFakeFinnhub(t)
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

func TestTokenOnEveryRequest(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query().Get("token")
		w.Write([]byte(profile2Body))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	if _, err := c.GetCompanyMetadata(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if seen != "test-key" {
		t.Fatalf("token param = %q", seen)
	}
}

func TestMetricsSyntheticTTMPeriod(t *testing.T) {
	srv := newFakeFinnhub(t)
	c := newTestClient(t, srv)

	data, err := c.GetLatestMetrics(context.Background(), "AAPL", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Metrics) != 4 {
		t.Fatalf("want 4 metrics, got %d: %v", len(data.Metrics), data.Metrics)
	}
	for _, m := range data.Metrics {
		if m.FiscalPeriod != "TTM" {
			t.Fatalf("period = %q", m.FiscalPeriod)
		}
		if m.Concept == "DividendYield" {
			t.Fatal("null field surfaced as metric")
		}
	}
}

func TestSearchSkipsNonEquity(t *testing.T) {
	srv := newFakeFinnhub(t)
	c := newTestClient(t, srv)

	got, err := c.SearchCompanies(context.Background(), "apple")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 equities, got %v", got)
	}
	for _, r := range got {
		if r.Ticker == "AAPL231215C" {
			t.Fatal("option instrument surfaced")
		}
	}
}

func TestGetPeersExcludesSubject(t *testing.T) {
	srv := newFakeFinnhub(t)
	c := newTestClient(t, srv)

	peers, err := c.GetPeers(context.Background(), "AAPL", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 3 {
		t.Fatalf("peers: %v", peers)
	}
	for _, p := range peers {
		if p.Ticker == "AAPL" {
			t.Fatal("subject company listed as its own peer")
		}
	}
}

func TestGetQuote(t *testing.T) {
	srv := newFakeFinnhub(t)
	c := newTestClient(t, srv)

	q, err := c.GetQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatal(err)
	}
	if q.Ticker != "AAPL" || q.Price != 189.95 || q.Source != "finnhub" {
		t.Fatalf("quote: %+v", q)
	}
	if q.Timestamp.Unix() != 1700000000 {
		t.Fatalf("timestamp: %v", q.Timestamp)
	}
}

func TestGetQuoteUnknownTicker(t *testing.T) {
	srv := newFakeFinnhub(t)
	c := newTestClient(t, srv)

	if _, err := c.GetQuote(context.Background(), "ZZZZ"); !models.IsNotFound(err) {
		t.Fatalf("want not-found, got %v", err)
	}
}

func TestRegulatoryIDReportsNotFound(t *testing.T) {
	srv := newFakeFinnhub(t)
	c := newTestClient(t, srv)

	if _, err := c.GetCompanyMetadata(context.Background(), "0000320193"); !models.IsNotFound(err) {
		t.Fatalf("want not-found, got %v", err)
	}
}

func TestCapabilitiesIncludeRealTime(t *testing.T) {
	srv := newFakeFinnhub(t)
	caps := newTestClient(t, srv).Capabilities()
	if !caps.RealTimePrice || !caps.PeerData {
		t.Fatalf("capabilities wrong: %+v", caps)
	}
	if caps.CompanyFacts {
		t.Fatal("finnhub must not claim filing coverage")
	}
}
