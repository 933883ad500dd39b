package fmp

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
	providerName   = "fmp"
	defaultBaseURL = "https://financialmodelingprep.com/api/v3"
	searchMax      = 10
	defaultTimeout = 10 * time.Second
	// free-tier budget, ~5 req/s sustained
	requestsPerSec = 5
)

// Client implements the FinancialProvider contract against Financial
// Modeling Prep. FMP serves flat precomputed metrics, ratios, and
// peer sets, but no hierarchical filing data.
type Client struct {
	mu      sync.RWMutex
	apiKey  string
	baseURL string
	httpc   *xhttp.Client
	limiter *ratelimit.Limiter
	logger  *xlogger.Logger
	caps    models.Capabilities
}

// Options configures the FMP client at construction.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSec overrides the default upstream request budget.
	RequestsPerSec float64
}

// New creates an FMP provider. A missing API key is a configuration
// error raised here.
func New(opts Options, logger *xlogger.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("fmp: api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = requestsPerSec
	}
	if logger == nil {
		logger = xlogger.Nop()
	}

	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpc:   xhttp.NewClient(xhttp.WithTimeout(opts.Timeout)),
		limiter: ratelimit.New(opts.RequestsPerSec, opts.RequestsPerSec),
		logger:  logger.With("provider", providerName),
		caps: models.Capabilities{
			RatioData:    true,
			PeerData:     true,
			HistoryYears: 5,
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

type searchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchangeShortName"`
}

// SearchCompanies queries the FMP search endpoint, which supports the
// limit natively.
func (c *Client) SearchCompanies(ctx context.Context, query string) ([]models.CompanyMetadata, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []models.CompanyMetadata{}, nil
	}

	var raw []searchResult
	if err := c.getJSON(ctx, "search", "/search", map[string][]string{
		"query": {q},
		"limit": {fmt.Sprintf("%d", searchMax)},
	}, &raw); err != nil {
		return nil, err
	}

	out := make([]models.CompanyMetadata, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.CompanyMetadata{
			Ticker:   r.Symbol,
			Name:     r.Name,
			Exchange: r.Exchange,
		})
		if len(out) >= searchMax {
			break
		}
	}
	return out, nil
}

type profile struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	CIK         string  `json:"cik"`
	Sector      string  `json:"sector"`
	Industry    string  `json:"industry"`
	Exchange    string  `json:"exchangeShortName"`
	MktCap      float64 `json:"mktCap"`
}

// GetCompanyMetadata resolves a ticker to company metadata. FMP keys
// everything by ticker; a CIK identifier is accepted but unusable for
// lookup, so it reports NotFound.
func (c *Client) GetCompanyMetadata(ctx context.Context, identifier string) (*models.CompanyMetadata, error) {
	ticker, err := tickerOf(identifier)
	if err != nil {
		return nil, err
	}

	var raw []profile
	if err := c.getJSON(ctx, "metadata", "/profile/"+ticker, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, models.NewNotFoundError(providerName, identifier)
	}

	p := raw[0]
	return &models.CompanyMetadata{
		CIK:      normalizeProfileCIK(p.CIK),
		Ticker:   p.Symbol,
		Name:     p.CompanyName,
		Sector:   p.Sector,
		Industry: p.Industry,
		Exchange: p.Exchange,
	}, nil
}

// GetFinancialData fetches key-metrics rows and flattens them into
// canonical metrics. Date-range and concept filters are applied after
// normalization; FMP cannot push them upstream.
func (c *Client) GetFinancialData(ctx context.Context, identifier string, opts drepo.FetchOptions) (*models.FinancialData, error) {
	ticker, err := tickerOf(identifier)
	if err != nil {
		return nil, err
	}

	var rows []map[string]json.RawMessage
	if err := c.getJSON(ctx, "financials", "/key-metrics/"+ticker, map[string][]string{
		"limit": {"40"},
	}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.NewNotFoundError(providerName, identifier)
	}

	metrics := flattenRows(rows)
	normalize.SortByPeriodEnd(metrics)
	metrics = normalize.ApplyFetchOptions(metrics, opts)

	return &models.FinancialData{
		Company:     models.CompanyMetadata{Ticker: ticker},
		Metrics:     metrics,
		LastUpdated: time.Now().UTC(),
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

type stockPeers struct {
	Symbol    string   `json:"symbol"`
	PeersList []string `json:"peersList"`
}

// GetPeers returns up to limit peer companies for a ticker.
func (c *Client) GetPeers(ctx context.Context, identifier string, limit int) ([]models.PeerCompany, error) {
	ticker, err := tickerOf(identifier)
	if err != nil {
		return nil, err
	}

	var raw []stockPeers
	if err := c.getJSON(ctx, "peers", "/stock_peers", map[string][]string{
		"symbol": {ticker},
	}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || len(raw[0].PeersList) == 0 {
		return []models.PeerCompany{}, nil
	}

	peers := make([]models.PeerCompany, 0, len(raw[0].PeersList))
	for _, sym := range raw[0].PeersList {
		peers = append(peers, models.PeerCompany{Ticker: util.NormalizeTicker(sym), Name: sym})
		if limit > 0 && len(peers) >= limit {
			break
		}
	}
	return peers, nil
}

// HealthCheck probes the profile endpoint with a well-known ticker.
func (c *Client) HealthCheck(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var raw []profile
	return c.getJSON(ctx, "health", "/profile/AAPL", nil, &raw) == nil
}

// --- internals ---

func tickerOf(identifier string) (string, error) {
	t := util.NormalizeTicker(identifier)
	if t == "" {
		return "", models.NewNotFoundError(providerName, identifier)
	}
	// Pure-numeric or CIK-prefixed identifiers are regulatory ids this
	// provider cannot resolve.
	if strings.HasPrefix(t, "CIK") {
		return "", models.NewNotFoundError(providerName, identifier)
	}
	numeric := true
	for _, r := range t {
		if r < '0' || r > '9' {
			numeric = false
			break
		}
	}
	if numeric {
		return "", models.NewNotFoundError(providerName, identifier)
	}
	return t, nil
}

// normalizeProfileCIK zero-pads FMP's loosely formatted CIK field.
func normalizeProfileCIK(cik string) string {
	s := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if s == "" {
		return ""
	}
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}

// flattenRows converts key-metrics rows (one per fiscal period) into
// canonical metrics. Null fields are omitted from the result set.
func flattenRows(rows []map[string]json.RawMessage) []models.FinancialMetric {
	var out []models.FinancialMetric
	for _, row := range rows {
		end, ok := util.ParseDate(stringField(row, "date"))
		if !ok {
			continue
		}
		period := strings.ToUpper(stringField(row, "period"))
		if period == "" {
			period = "FY"
		}

		for field, concept := range metricFields {
			raw, ok := row[field]
			if !ok || string(raw) == "null" {
				continue
			}
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				continue
			}
			out = append(out, models.FinancialMetric{
				Concept:      concept,
				Value:        v,
				Unit:         normalize.InferUnit(concept),
				PeriodEnd:    end,
				Instant:      true,
				FiscalYear:   end.Year(),
				FiscalPeriod: period,
			})
		}
	}
	return out
}

func stringField(row map[string]json.RawMessage, key string) string {
	raw, ok := row[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// getJSON issues one rate-limited upstream GET, translating every
// failure into the domain error taxonomy.
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
	params["apikey"] = []string{key}

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
		return models.NewRateLimitError(providerName, 60*time.Second)
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
