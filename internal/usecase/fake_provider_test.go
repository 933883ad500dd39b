package usecase

import (
	"context"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/pkg/logger"
)

// fakeProvider is a scriptable provider for router tests.
type fakeProvider struct {
	name    string
	caps    models.Capabilities
	healthy bool

	searchResults []models.CompanyMetadata
	metadata      *models.CompanyMetadata
	data          *models.FinancialData
	peers         []models.PeerCompany
	quote         *models.Quote
	err           error

	calls        []string
	configureErr error
	panicHealth  bool
}

var (
	_ repository.FinancialProvider = (*fakeProvider)(nil)
	_ repository.PeerProvider      = (*fakeProvider)(nil)
	_ repository.QuoteProvider     = (*fakeProvider)(nil)
)

func (f *fakeProvider) Name() string                    { return f.name }
func (f *fakeProvider) Capabilities() models.Capabilities { return f.caps }

func (f *fakeProvider) SearchCompanies(ctx context.Context, query string) ([]models.CompanyMetadata, error) {
	f.calls = append(f.calls, "search")
	if f.err != nil {
		return nil, f.err
	}
	return f.searchResults, nil
}

func (f *fakeProvider) GetCompanyMetadata(ctx context.Context, identifier string) (*models.CompanyMetadata, error) {
	f.calls = append(f.calls, "metadata")
	if f.err != nil {
		return nil, f.err
	}
	return f.metadata, nil
}

func (f *fakeProvider) GetFinancialData(ctx context.Context, identifier string, opts repository.FetchOptions) (*models.FinancialData, error) {
	f.calls = append(f.calls, "financials")
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeProvider) GetLatestMetrics(ctx context.Context, identifier string, concepts []string) (*models.FinancialData, error) {
	f.calls = append(f.calls, "latest")
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeProvider) GetPeers(ctx context.Context, identifier string, limit int) ([]models.PeerCompany, error) {
	f.calls = append(f.calls, "peers")
	if f.err != nil {
		return nil, f.err
	}
	return f.peers, nil
}

func (f *fakeProvider) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	f.calls = append(f.calls, "quote")
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) bool {
	if f.panicHealth {
		panic("health check blew up")
	}
	return f.healthy
}

func (f *fakeProvider) Configure(opts repository.ProviderOptions) error {
	f.calls = append(f.calls, "configure")
	return f.configureErr
}

func (f *fakeProvider) called(op string) int {
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// nopMetrics satisfies repository.Metrics for tests.
type nopMetrics struct{}

func (nopMetrics) RecordProviderRequest(provider, op, outcome string)    {}
func (nopMetrics) RecordFallback(op string)                              {}
func (nopMetrics) RecordError(kind string)                               {}
func (nopMetrics) RecordUpstreamLatency(provider, op string, s float64)  {}
func (nopMetrics) RecordLastPrice(ticker string, price float64)          {}

func company(cik, ticker, name string) models.CompanyMetadata {
	now := time.Now().UTC()
	return models.CompanyMetadata{CIK: cik, Ticker: ticker, Name: name, LastUpdated: &now}
}

func newTestComposite(providers map[*fakeProvider]int) *CompositeProvider {
	comp := NewCompositeProvider(logger.Nop(), nopMetrics{})
	for p, prio := range providers {
		comp.AddProvider(p, prio)
	}
	return comp
}
