package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
	drepo "github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/internal/service/normalize"
	"github.com/finbridge/finbridge/internal/service/ratelimit"
	xhttp "github.com/finbridge/finbridge/pkg/http"
	xlogger "github.com/finbridge/finbridge/pkg/logger"
	"github.com/finbridge/finbridge/pkg/util"
)

const (
	providerName   = "finnhub"
	defaultBaseURL = "https://finnhub.io/api/v1"
	searchMax      = 10
	defaultTimeout = 10 * time.Second
	// free-tier budget: 30 calls/s burst, 60/min sustained
	requestsPerSec = 1
	burstCapacity  = 30
)

// metricFields translates Finnhub stock/metric field names into
// canonical concepts.
var metricFields = map[string]string{
	"peBasicExclExtraTTM":       "PriceToEarnings",
	"pbQuarterly":               "PriceToBook",
	"psTTM":                     "PriceToSales",
	"currentRatioQuarterly":     "CurrentRatio",
	"totalDebt/totalEquityQuarterly": "DebtToEquity",
	"roeTTM":                    "ReturnOnEquity",
	"roaTTM":                    "ReturnOnAssets",
	"grossMarginTTM":            "GrossMargin",
	"operatingMarginTTM":        "OperatingMargin",
	"netProfitMarginTTM":        "NetMargin",
	"revenuePerShareTTM":        "RevenuePerShare",
	"epsBasicExclExtraItemsTTM": "EPSBasic",
	"dividendYieldIndicatedAnnual": "DividendYield",
	"marketCapitalization":      "MarketCap",
	"beta":                      "Beta",
}

// Client implements the FinancialProvider contract against Finnhub.
// Finnhub serves flat TTM metrics, peers, and real-time quotes
// (polled and streamed), but no filing data.
type Client struct {
	mu      sync.RWMutex
	apiKey  string
	baseURL string
	wsURL   string
	httpc   *xhttp.Client
	limiter *ratelimit.Limiter
	logger  *xlogger.Logger
	caps    models.Capabilities
}

// Options configures the Finnhub client at construction.
type Options struct {
	APIKey       string
	BaseURL      string
	WebSocketURL string
	Timeout      time.Duration
}

// New creates a Finnhub provider. A missing API key is a
// configuration error raised here.
func New(opts Options, logger *xlogger.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("finnhub: api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.WebSocketURL == "" {
		opts.WebSocketURL = "wss://ws.finnhub.io"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = xlogger.Nop()
	}

	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		wsURL:   opts.WebSocketURL,
		httpc:   xhttp.NewClient(xhttp.WithTimeout(opts.Timeout)),
		limiter: ratelimit.New(burstCapacity, requestsPerSec),
		logger:  logger.With("provider", providerName),
		caps: models.Capabilities{
			RealTimePrice: true,
			PeerData:      true,
			RatioData:     true,
			HistoryYears:  1,
		},
	}, nil
}

// Name identifies this provider.
func (c *Client) Name() string { return providerName }

// Capabilities reports the fixed capability set.
func (c *Client) Capabilities() models.Capabilities { return c.caps }

// Configure applies new settings. Empty fields keep current values.
func (c *Client) Configure(opts drepo.ProviderOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opts.APIKey != "" {
		c.apiKey = opts.APIKey
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		c.httpc.SetTimeout(opts.Timeout)
	}
	return nil
}

type searchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

// SearchCompanies queries the symbol-search endpoint.
func (c *Client) SearchCompanies(ctx context.Context, query string) ([]models.CompanyMetadata, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []models.CompanyMetadata{}, nil
	}

	var raw searchResponse
	if err := c.getJSON(ctx, "search", "/search", map[string][]string{"q": {q}}, &raw); err != nil {
		return nil, err
	}

	out := make([]models.CompanyMetadata, 0, searchMax)
	for _, r := range raw.Result {
		// Skip non-equity instruments the search also returns.
		if r.Type != "" && r.Type != "Common Stock" {
			continue
		}
		out = append(out, models.CompanyMetadata{
			Ticker: r.Symbol,
			Name:   r.Description,
		})
		if len(out) >= searchMax {
			break
		}
	}
	return out, nil
}

type profile2 struct {
	Name     string  `json:"name"`
	Ticker   string  `json:"ticker"`
	Exchange string  `json:"exchange"`
	Industry string  `json:"finnhubIndustry"`
	MktCap   float64 `json:"marketCapitalization"`
}

// GetCompanyMetadata resolves a ticker to company metadata. Finnhub
// answers an unknown symbol with an empty object, which surfaces as
// NotFound here.
func (c *Client) GetCompanyMetadata(ctx context.Context, identifier string) (*models.CompanyMetadata, error) {
	ticker, err := tickerOf(identifier)
	if err != nil {
		return nil, err
	}

	var raw profile2
	if err := c.getJSON(ctx, "metadata", "/stock/profile2", map[string][]string{"symbol": {ticker}}, &raw); err != nil {
		return nil, err
	}
	if raw.Name == "" && raw.Ticker == "" {
		return nil, models.NewNotFoundError(providerName, identifier)
	}

	return &models.CompanyMetadata{
		Ticker:   raw.Ticker,
		Name:     raw.Name,
		Industry: raw.Industry,
		Exchange: raw.Exchange,
	}, nil
}

type metricResponse struct {
	Metric map[string]json.RawMessage `json:"metric"`
}

// GetFinancialData fetches the flat TTM metric map. Finnhub provides
// no per-period history here, so everything lands on one synthetic
// TTM period stamped with the fetch date.
func (c *Client) GetFinancialData(ctx context.Context, identifier string, opts drepo.FetchOptions) (*models.FinancialData, error) {
	ticker, err := tickerOf(identifier)
	if err != nil {
		return nil, err
	}

	var raw metricResponse
	if err := c.getJSON(ctx, "financials", "/stock/metric", map[string][]string{
		"symbol": {ticker},
		"metric": {"all"},
	}, &raw); err != nil {
		return nil, err
	}
	if len(raw.Metric) == 0 {
		return nil, models.NewNotFoundError(providerName, identifier)
	}

	now := time.Now().UTC()
	metrics := flattenMetricMap(raw.Metric, now)
	normalize.SortByPeriodEnd(metrics)
	metrics = normalize.ApplyFetchOptions(metrics, opts)

	return &models.FinancialData{
		Company:     models.CompanyMetadata{Ticker: ticker},
		Metrics:     metrics,
		LastUpdated: now,
		Source:      providerName,
	}, nil
}

// GetLatestMetrics returns at most one metric per requested concept.
func (c *Client) GetLatestMetrics(ctx context.Context, identifier string, concepts []string) (*models.FinancialData, error) {
	data, err := c.GetFinancialData(ctx, identifier, drepo.FetchOptions{Concepts: concepts})
	if err != nil {
		return nil, err
	}
	data.Metrics = normalize.LatestPerConcept(data.Metrics, concepts)
	return data, nil
}

// GetPeers returns up to limit peers for a ticker.
func (c *Client) GetPeers(ctx context.Context, identifier string, limit int) ([]models.PeerCompany, error) {
	ticker, err := tickerOf(identifier)
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := c.getJSON(ctx, "peers", "/stock/peers", map[string][]string{"symbol": {ticker}}, &raw); err != nil {
		return nil, err
	}

	peers := make([]models.PeerCompany, 0, len(raw))
	for _, sym := range raw {
		if util.NormalizeTicker(sym) == ticker {
			continue // finnhub includes the subject company itself
		}
		peers = append(peers, models.PeerCompany{Ticker: util.NormalizeTicker(sym), Name: sym})
		if limit > 0 && len(peers) >= limit {
			break
		}
	}
	return peers, nil
}

type quoteResponse struct {
	Current   float64 `json:"c"`
	Change    float64 `json:"d"`
	ChangePct float64 `json:"dp"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
	T         int64   `json:"t"`
}

// GetQuote returns the latest polled quote for a ticker.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	t, err := tickerOf(ticker)
	if err != nil {
		return nil, err
	}

	var raw quoteResponse
	if err := c.getJSON(ctx, "quote", "/quote", map[string][]string{"symbol": {t}}, &raw); err != nil {
		return nil, err
	}
	if raw.Current == 0 && raw.T == 0 {
		return nil, models.NewNotFoundError(providerName, ticker)
	}

	return &models.Quote{
		Ticker:    t,
		Price:     raw.Current,
		Change:    raw.Change,
		ChangePct: raw.ChangePct,
		High:      raw.High,
		Low:       raw.Low,
		Open:      raw.Open,
		PrevClose: raw.PrevClose,
		Timestamp: time.Unix(raw.T, 0).UTC(),
		Source:    providerName,
	}, nil
}

// HealthCheck probes the quote endpoint with a well-known ticker.
func (c *Client) HealthCheck(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var raw quoteResponse
	return c.getJSON(ctx, "health", "/quote", map[string][]string{"symbol": {"AAPL"}}, &raw) == nil
}

// --- internals ---

func tickerOf(identifier string) (string, error) {
	t := util.NormalizeTicker(identifier)
	if t == "" || strings.HasPrefix(t, "CIK") {
		return "", models.NewNotFoundError(providerName, identifier)
	}
	for _, r := range t {
		if r >= '0' && r <= '9' {
			continue
		}
		return t, nil
	}
	// all digits: a regulatory id finnhub cannot resolve
	return "", models.NewNotFoundError(providerName, identifier)
}

// flattenMetricMap converts the flat metric map into canonical
// metrics on a synthetic TTM period. Null and non-numeric fields are
// omitted.
func flattenMetricMap(raw map[string]json.RawMessage, asOf time.Time) []models.FinancialMetric {
	var out []models.FinancialMetric
	for field, concept := range metricFields {
		rawVal, ok := raw[field]
		if !ok || string(rawVal) == "null" {
			continue
		}
		var v float64
		if err := json.Unmarshal(rawVal, &v); err != nil {
			continue
		}
		out = append(out, models.FinancialMetric{
			Concept:      concept,
			Value:        v,
			Unit:         normalize.InferUnit(concept),
			PeriodEnd:    asOf.Truncate(24 * time.Hour),
			Instant:      true,
			FiscalYear:   asOf.Year(),
			FiscalPeriod: "TTM",
		})
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, op, path string, params map[string][]string, dest interface{}) error {
	if !c.limiter.Allow() {
		return models.NewRateLimitError(providerName, c.limiter.RetryAfter())
	}

	c.mu.RLock()
	url := c.baseURL + path
	key := c.apiKey
	c.mu.RUnlock()

	if params == nil {
		params = map[string][]string{}
	}
	params["token"] = []string{key}

	resp, err := c.httpc.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: params,
	})
	if err != nil {
		return translateTransportError(err)
	}
	defer resp.Body.Close()

	if err := translateStatus(resp, op); err != nil {
		c.logger.Warn("upstream error", xlogger.String("op", op), xlogger.Error(err))
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return models.NewProviderError(providerName, models.CodeBadResponse,
			fmt.Sprintf("decode %s response", op), resp.StatusCode, false).WithCause(err)
	}
	return nil
}

func translateStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.NewNotFoundError(providerName, op)
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
		if secs := util.ParseIntDefault(v, 0); secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 60 * time.Second
}
