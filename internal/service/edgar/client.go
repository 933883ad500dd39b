package edgar

import (
	"context"
	"fmt"
	"io"
	"sort"
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
	providerName     = "edgar"
	defaultBaseURL   = "https://data.sec.gov"
	tickerIndexURL   = "https://www.sec.gov/files/company_tickers.json"
	searchMax        = 10
	tickerIndexTTL   = 24 * time.Hour
	defaultTimeout   = 15 * time.Second
	// SEC fair-access guideline: 10 req/s.
	requestsPerSec = 10
)

// Client implements the FinancialProvider contract against SEC EDGAR.
// EDGAR carries the full hierarchical companyfacts dataset but no
// real-time prices, ratios, or peer sets.
type Client struct {
	mu        sync.RWMutex
	userAgent string
	baseURL   string
	indexURL  string
	httpc     *xhttp.Client
	limiter   *ratelimit.Limiter
	logger    *xlogger.Logger
	caps      models.Capabilities

	idxMu      sync.Mutex
	tickerIdx  map[string]tickerEntry // normalized ticker -> entry
	idxLoadedAt    time.Time
}

type tickerEntry struct {
	CIK    string
	Ticker string
	Name   string
}

// Options configures the EDGAR client at construction.
type Options struct {
	UserAgent string
	BaseURL   string
	// IndexURL overrides the SEC ticker index location, mainly for
	// tests against a fake upstream.
	IndexURL string
	Timeout  time.Duration
}

// New creates an EDGAR provider. A missing User-Agent is a
// configuration error raised here, never on the first request.
func New(opts Options, logger *xlogger.Logger) (*Client, error) {
	if opts.UserAgent == "" {
		return nil, fmt.Errorf("edgar: user agent is required by SEC fair-access policy")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.IndexURL == "" {
		opts.IndexURL = tickerIndexURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = xlogger.Nop()
	}

	return &Client{
		userAgent: opts.UserAgent,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		indexURL:  opts.IndexURL,
		httpc: xhttp.NewClient(
			xhttp.WithTimeout(opts.Timeout),
			xhttp.WithDefaultHeaders(map[string]string{"User-Agent": opts.UserAgent}),
		),
		limiter: ratelimit.New(requestsPerSec, requestsPerSec),
		logger:  logger.With("provider", providerName),
		caps: models.Capabilities{
			CompanyFacts: true,
			HistoryYears: 30,
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
	if opts.UserAgent != "" {
		c.userAgent = opts.UserAgent
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		c.httpc.SetTimeout(opts.Timeout)
	}
	return nil
}

// NormalizeCIK canonicalizes a regulatory identifier: any "CIK"
// prefix is stripped and the digits are zero-padded to 10. The
// operation is idempotent.
func NormalizeCIK(id string) string {
	s := strings.TrimSpace(strings.ToUpper(id))
	s = strings.TrimPrefix(s, "CIK")
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return ""
	}
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}

func isCIK(id string) bool {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(id)), "CIK")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SearchCompanies matches the query against the SEC ticker index.
// Returns at most 10 entries; zero matches is an empty slice.
func (c *Client) SearchCompanies(ctx context.Context, query string) ([]models.CompanyMetadata, error) {
	idx, err := c.tickerIndex(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	results := make([]models.CompanyMetadata, 0, searchMax)
	if q == "" {
		return results, nil
	}

	// Exact ticker hit first, then substring matches on name/ticker.
	if e, ok := idx[util.NormalizeTicker(query)]; ok {
		results = append(results, models.CompanyMetadata{CIK: e.CIK, Ticker: e.Ticker, Name: e.Name})
	}
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(results) >= searchMax {
			break
		}
		e := idx[k]
		if len(results) > 0 && e.CIK == results[0].CIK {
			continue
		}
		if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.Ticker), q) {
			results = append(results, models.CompanyMetadata{CIK: e.CIK, Ticker: e.Ticker, Name: e.Name})
		}
	}
	return results, nil
}

// submissions is the shape of data.sec.gov/submissions/CIK##########.json
// restricted to the fields the gateway needs.
type submissions struct {
	CIK           string   `json:"cik"`
	Name          string   `json:"name"`
	SIC           string   `json:"sic"`
	SICDesc       string   `json:"sicDescription"`
	FiscalYearEnd string   `json:"fiscalYearEnd"`
	Tickers       []string `json:"tickers"`
	Exchanges     []string `json:"exchanges"`
}

// GetCompanyMetadata resolves a ticker or CIK to company metadata.
func (c *Client) GetCompanyMetadata(ctx context.Context, identifier string) (*models.CompanyMetadata, error) {
	cik, err := c.resolveCIK(ctx, identifier)
	if err != nil {
		return nil, err
	}

	var sub submissions
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.base(), cik)
	if err := c.getJSON(ctx, "metadata", url, &sub); err != nil {
		return nil, err
	}

	meta := &models.CompanyMetadata{
		CIK:           cik,
		Name:          sub.Name,
		SIC:           sub.SIC,
		Industry:      sub.SICDesc,
		FiscalYearEnd: sub.FiscalYearEnd,
	}
	if len(sub.Tickers) > 0 {
		meta.Ticker = sub.Tickers[0]
	}
	if len(sub.Exchanges) > 0 {
		meta.Exchange = sub.Exchanges[0]
	}
	return meta, nil
}

// companyFacts mirrors the nested companyfacts response:
// taxonomy -> tag -> units -> unit -> facts.
type companyFacts struct {
	CIK        int    `json:"cik"`
	EntityName string `json:"entityName"`
	Facts      map[string]map[string]struct {
		Units map[string][]factEntry `json:"units"`
	} `json:"facts"`
}

type factEntry struct {
	End   string   `json:"end"`
	Start string   `json:"start"`
	Val   *float64 `json:"val"`
	FY    int      `json:"fy"`
	FP    string   `json:"fp"`
	Form  string   `json:"form"`
	Accn  string   `json:"accn"`
	Filed string   `json:"filed"`
	Frame string   `json:"frame"`
}

// GetFinancialData fetches and flattens companyfacts, then applies
// the caller's filters.
func (c *Client) GetFinancialData(ctx context.Context, identifier string, opts drepo.FetchOptions) (*models.FinancialData, error) {
	cik, err := c.resolveCIK(ctx, identifier)
	if err != nil {
		return nil, err
	}

	var facts companyFacts
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.base(), cik)
	if err := c.getJSON(ctx, "financials", url, &facts); err != nil {
		return nil, err
	}

	wantedTags := reverseConcepts(opts.Concepts)
	metrics := flattenFacts(facts, wantedTags)
	normalize.SortByPeriodEnd(metrics)
	metrics = normalize.ApplyFetchOptions(metrics, opts)

	meta := models.CompanyMetadata{CIK: cik, Name: facts.EntityName}
	if !isCIK(identifier) {
		meta.Ticker = util.NormalizeTicker(identifier)
	}

	return &models.FinancialData{
		Company:     meta,
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

// HealthCheck probes the ticker index endpoint. Never panics; any
// failure collapses to false.
func (c *Client) HealthCheck(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.httpc.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.indexURL,
	})
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 500
}

// --- internals ---

func (c *Client) base() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// resolveCIK turns any accepted identifier into a canonical CIK.
func (c *Client) resolveCIK(ctx context.Context, identifier string) (string, error) {
	if isCIK(identifier) {
		return NormalizeCIK(identifier), nil
	}
	idx, err := c.tickerIndex(ctx)
	if err != nil {
		return "", err
	}
	if e, ok := idx[util.NormalizeTicker(identifier)]; ok {
		return e.CIK, nil
	}
	return "", models.NewNotFoundError(providerName, identifier)
}

// tickerIndex returns the cached SEC ticker table, refreshing it once
// a day. This is identifier-resolution state, not response caching.
func (c *Client) tickerIndex(ctx context.Context) (map[string]tickerEntry, error) {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()

	if c.tickerIdx != nil && time.Since(c.idxLoadedAt) < tickerIndexTTL {
		return c.tickerIdx, nil
	}

	var raw map[string]struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := c.getJSON(ctx, "ticker_index", c.indexURL, &raw); err != nil {
		if c.tickerIdx != nil {
			// Serve the stale table rather than failing resolution.
			return c.tickerIdx, nil
		}
		return nil, err
	}

	idx := make(map[string]tickerEntry, len(raw))
	for _, e := range raw {
		idx[util.NormalizeTicker(e.Ticker)] = tickerEntry{
			CIK:    NormalizeCIK(fmt.Sprintf("%d", e.CIK)),
			Ticker: e.Ticker,
			Name:   e.Title,
		}
	}
	c.tickerIdx = idx
	c.idxLoadedAt = time.Now()
	return idx, nil
}

// getJSON issues one rate-limited upstream GET and decodes the body,
// translating every failure into the domain error taxonomy.
func (c *Client) getJSON(ctx context.Context, op, url string, dest interface{}) error {
	if !c.limiter.Allow() {
		return models.NewRateLimitError(providerName, c.limiter.RetryAfter())
	}

	resp, err := c.httpc.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    url,
	})
	if err != nil {
		return translateTransportError(err)
	}
	defer resp.Body.Close()

	if err := translateStatus(resp, url); err != nil {
		c.logger.Warn("upstream error", xlogger.String("op", op), xlogger.Error(err))
		return err
	}

	if err := decodeJSON(resp.Body, dest); err != nil {
		return models.NewProviderError(providerName, models.CodeBadResponse,
			fmt.Sprintf("decode %s response", op), resp.StatusCode, false).WithCause(err)
	}
	return nil
}
