package repository

import (
	"context"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
)

// FetchOptions narrows a GetFinancialData call. Zero value means no
// filtering. Filters are applied after normalization unless the
// upstream API supports them natively.
type FetchOptions struct {
	Concepts []string  // canonical concept names
	From     time.Time // inclusive period-end lower bound
	To       time.Time // inclusive period-end upper bound
	Form     string    // filing form filter, e.g. "10-K"
	Limit    int       // max metrics returned, 0 = unlimited
}

// ProviderOptions carries runtime settings applied via Configure.
// Empty fields leave the current setting untouched, so configuring
// with the zero value is a no-op.
type ProviderOptions struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// FinancialProvider is the uniform contract implemented once per
// upstream data source. Every failure crossing this boundary is one
// of the three models error kinds.
type FinancialProvider interface {
	// Name identifies the provider, e.g. "edgar" or "fmp".
	Name() string

	// Capabilities reports what this provider can serve. Fixed at
	// construction.
	Capabilities() models.Capabilities

	// SearchCompanies returns up to 10 matches for a free-text query.
	// Zero matches is an empty slice, not an error.
	SearchCompanies(ctx context.Context, query string) ([]models.CompanyMetadata, error)

	// GetCompanyMetadata resolves a ticker or CIK to company metadata.
	GetCompanyMetadata(ctx context.Context, identifier string) (*models.CompanyMetadata, error)

	// GetFinancialData fetches normalized metrics for a company,
	// narrowed by opts.
	GetFinancialData(ctx context.Context, identifier string, opts FetchOptions) (*models.FinancialData, error)

	// GetLatestMetrics returns at most one metric per requested
	// concept, selecting the maximum period-end. Concepts with no
	// data are silently omitted.
	GetLatestMetrics(ctx context.Context, identifier string, concepts []string) (*models.FinancialData, error)

	// HealthCheck reports reachability. It never returns an error and
	// never panics; any internal failure collapses to false.
	HealthCheck(ctx context.Context) bool

	// Configure applies new settings. Idempotent; the zero value is a
	// no-op.
	Configure(opts ProviderOptions) error
}

// PeerProvider is the optional peer-data capability. Callers discover
// it with a type assertion, never a name probe.
type PeerProvider interface {
	// GetPeers returns up to limit peer companies; limit <= 0 means
	// provider default.
	GetPeers(ctx context.Context, identifier string, limit int) ([]models.PeerCompany, error)
}

// QuoteProvider is the optional real-time price capability.
type QuoteProvider interface {
	// GetQuote returns the latest price observation for a ticker.
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)
}

// FinancialStore persists normalized financial data. Implemented by
// the ingestion collaborator's storage layer; the gateway core never
// writes through it.
type FinancialStore interface {
	Init(ctx context.Context) error
	StoreFinancialData(ctx context.Context, data *models.FinancialData) error
	QueryMetrics(ctx context.Context, cik string, concepts []string, from, to time.Time, limit int) ([]models.FinancialMetric, error)
	Health(ctx context.Context) error
	Close() error
}

// QuoteStream is a live price feed. Read returns channels that close
// when the connection drops or ctx is cancelled.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Close() error
}

// Publisher fans fetched financial data out to downstream consumers.
type Publisher interface {
	PublishFinancialData(ctx context.Context, data *models.FinancialData) error
	Close() error
}

// Metrics records gateway observability signals.
type Metrics interface {
	RecordProviderRequest(provider, op, outcome string)
	RecordFallback(op string)
	RecordError(kind string)
	RecordUpstreamLatency(provider, op string, seconds float64)
	RecordLastPrice(ticker string, price float64)
}
