package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/pkg/logger"
)

const (
	compositeName   = "composite"
	searchMergeStop = 10
)

type candidate struct {
	provider repository.FinancialProvider
	priority int
	seq      int // insertion order, earliest wins on priority tie
}

// CompositeProvider routes requests across member providers with
// priority fallback, capability restriction and merged union queries.
// It implements repository.FinancialProvider itself, so callers need
// not care whether they hold one upstream or a fan-out.
type CompositeProvider struct {
	mu         sync.RWMutex
	candidates []candidate // sorted by priority desc, seq asc
	nextSeq    int

	log     *logger.Logger
	metrics repository.Metrics
}

var _ repository.FinancialProvider = (*CompositeProvider)(nil)

// NewCompositeProvider creates an empty composite. A nil metrics
// recorder disables instrumentation.
func NewCompositeProvider(log *logger.Logger, metrics repository.Metrics) *CompositeProvider {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &CompositeProvider{
		log:     log,
		metrics: metrics,
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordProviderRequest(provider, op, outcome string)   {}
func (noopMetrics) RecordFallback(op string)                             {}
func (noopMetrics) RecordError(kind string)                              {}
func (noopMetrics) RecordUpstreamLatency(provider, op string, s float64) {}
func (noopMetrics) RecordLastPrice(ticker string, price float64)         {}

// AddProvider inserts p at the given priority, replacing any existing
// member with the same name. The candidate list is replaced wholesale
// so in-flight routing never observes a half-updated list.
func (c *CompositeProvider) AddProvider(p repository.FinancialProvider, priority int) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]candidate, 0, len(c.candidates)+1)
	for _, cand := range c.candidates {
		if cand.provider.Name() != p.Name() {
			next = append(next, cand)
		}
	}
	next = append(next, candidate{provider: p, priority: priority, seq: c.nextSeq})
	c.nextSeq++

	sort.SliceStable(next, func(i, j int) bool {
		if next[i].priority != next[j].priority {
			return next[i].priority > next[j].priority
		}
		return next[i].seq < next[j].seq
	})
	c.candidates = next
}

// RemoveProvider removes the member registered under name. Removing an
// absent name is a no-op.
func (c *CompositeProvider) RemoveProvider(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]candidate, 0, len(c.candidates))
	for _, cand := range c.candidates {
		if cand.provider.Name() != name {
			next = append(next, cand)
		}
	}
	c.candidates = next
}

// Name identifies the composite itself; it is the provider field on
// aggregate errors.
func (c *CompositeProvider) Name() string { return compositeName }

// Capabilities is the OR of every member's boolean flags and the max
// of the numeric ones.
func (c *CompositeProvider) Capabilities() models.Capabilities {
	var caps models.Capabilities
	for _, cand := range c.snapshot() {
		caps = caps.Merge(cand.provider.Capabilities())
	}
	return caps
}

// snapshot returns the current candidate list. The slice is replaced,
// never mutated, so reading it without copying is safe.
func (c *CompositeProvider) snapshot() []candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.candidates
}

// eligible returns members whose capability flag is set. An empty
// flag means unrestricted. If none qualify and fallback is true, the
// unrestricted list is returned.
func (c *CompositeProvider) eligible(flag models.Capability, fallback bool) []candidate {
	all := c.snapshot()
	if flag == "" {
		return all
	}
	var out []candidate
	for _, cand := range all {
		if cand.provider.Capabilities().Has(flag) {
			out = append(out, cand)
		}
	}
	if len(out) == 0 && fallback {
		return all
	}
	return out
}

// fallbackCall tries each candidate in priority order until one
// succeeds. NotFound continues the chain like any other failure. When
// every candidate fails, the errors are folded into one aggregate.
func (c *CompositeProvider) fallbackCall(
	op string,
	flag models.Capability,
	call func(p repository.FinancialProvider) error,
) error {
	cands := c.eligible(flag, true)
	if len(cands) == 0 {
		c.metrics.RecordError(models.CodeProviderNotFound)
		return models.NewProviderError(compositeName, models.CodeProviderNotFound, "no providers registered", 0, false)
	}

	var attempts []string
	for i, cand := range cands {
		name := cand.provider.Name()
		start := time.Now()
		err := call(cand.provider)
		c.metrics.RecordUpstreamLatency(name, op, time.Since(start).Seconds())
		if err == nil {
			c.metrics.RecordProviderRequest(name, op, "ok")
			if i > 0 {
				c.metrics.RecordFallback(op)
			}
			return nil
		}
		c.metrics.RecordProviderRequest(name, op, "error")
		attempts = append(attempts, name+": "+err.Error())
		c.log.Debug("provider attempt failed",
			logger.String("provider", name),
			logger.String("op", op),
			logger.Error(err))
	}

	c.metrics.RecordError(models.CodeAllFailed)
	return models.NewProviderError(
		compositeName,
		models.CodeAllFailed,
		"all providers failed: "+strings.Join(attempts, "; "),
		0,
		false,
	)
}

// SearchCompanies queries every member concurrently, merges in
// priority order and dedups by identity key. Merging stops once the
// result reaches the standard search cap.
func (c *CompositeProvider) SearchCompanies(ctx context.Context, query string) ([]models.CompanyMetadata, error) {
	cands := c.snapshot()
	if len(cands) == 0 {
		return nil, models.NewProviderError(compositeName, models.CodeProviderNotFound, "no providers registered", 0, false)
	}

	results := make([][]models.CompanyMetadata, len(cands))
	var wg sync.WaitGroup
	for i, cand := range cands {
		wg.Add(1)
		go func(i int, p repository.FinancialProvider) {
			defer wg.Done()
			start := time.Now()
			rs, err := p.SearchCompanies(ctx, query)
			c.metrics.RecordUpstreamLatency(p.Name(), "search", time.Since(start).Seconds())
			if err != nil {
				c.metrics.RecordProviderRequest(p.Name(), "search", "error")
				c.log.Debug("search failed",
					logger.String("provider", p.Name()),
					logger.Error(err))
				return
			}
			c.metrics.RecordProviderRequest(p.Name(), "search", "ok")
			results[i] = rs
		}(i, cand.provider)
	}
	wg.Wait()

	merged := make([]models.CompanyMetadata, 0, searchMergeStop)
	seen := make(map[string]bool)
	for _, rs := range results {
		for _, r := range rs {
			key := r.IdentityKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
			if len(merged) >= searchMergeStop {
				return merged, nil
			}
		}
	}
	return merged, nil
}

// GetCompanyMetadata resolves an identifier via the fallback chain.
// Any member can serve metadata, so the candidate set is unrestricted.
func (c *CompositeProvider) GetCompanyMetadata(ctx context.Context, identifier string) (*models.CompanyMetadata, error) {
	var out *models.CompanyMetadata
	err := c.fallbackCall("metadata", "", func(p repository.FinancialProvider) error {
		md, err := p.GetCompanyMetadata(ctx, identifier)
		if err != nil {
			return err
		}
		out = md
		return nil
	})
	return out, err
}

// GetFinancialData prefers filings-capable members; only when none is
// registered does it fall back to the full list.
func (c *CompositeProvider) GetFinancialData(ctx context.Context, identifier string, opts repository.FetchOptions) (*models.FinancialData, error) {
	var out *models.FinancialData
	err := c.fallbackCall("financials", models.CapCompanyFacts, func(p repository.FinancialProvider) error {
		fd, err := p.GetFinancialData(ctx, identifier, opts)
		if err != nil {
			return err
		}
		out = fd
		return nil
	})
	return out, err
}

// GetLatestMetrics prefers filings-capable members with the same
// fallback rule as GetFinancialData.
func (c *CompositeProvider) GetLatestMetrics(ctx context.Context, identifier string, concepts []string) (*models.FinancialData, error) {
	var out *models.FinancialData
	err := c.fallbackCall("latest", models.CapCompanyFacts, func(p repository.FinancialProvider) error {
		fd, err := p.GetLatestMetrics(ctx, identifier, concepts)
		if err != nil {
			return err
		}
		out = fd
		return nil
	})
	return out, err
}

// GetPeers queries every peer-capable member concurrently, merges in
// priority order, dedups by identity key and applies limit after the
// merge. With zero peer-capable members it fails immediately.
func (c *CompositeProvider) GetPeers(ctx context.Context, identifier string, limit int) ([]models.PeerCompany, error) {
	var cands []candidate
	for _, cand := range c.snapshot() {
		if _, ok := cand.provider.(repository.PeerProvider); !ok {
			continue
		}
		if !cand.provider.Capabilities().Has(models.CapPeerData) {
			continue
		}
		cands = append(cands, cand)
	}
	if len(cands) == 0 {
		c.metrics.RecordError(models.CodeCapabilityMissing)
		return nil, models.NewProviderError(compositeName, models.CodeCapabilityMissing, "no provider supports peer data", 0, false)
	}

	results := make([][]models.PeerCompany, len(cands))
	var wg sync.WaitGroup
	for i, cand := range cands {
		wg.Add(1)
		go func(i int, p repository.FinancialProvider) {
			defer wg.Done()
			start := time.Now()
			peers, err := p.(repository.PeerProvider).GetPeers(ctx, identifier, 0)
			c.metrics.RecordUpstreamLatency(p.Name(), "peers", time.Since(start).Seconds())
			if err != nil {
				c.metrics.RecordProviderRequest(p.Name(), "peers", "error")
				c.log.Debug("peers failed",
					logger.String("provider", p.Name()),
					logger.Error(err))
				return
			}
			c.metrics.RecordProviderRequest(p.Name(), "peers", "ok")
			results[i] = peers
		}(i, cand.provider)
	}
	wg.Wait()

	var merged []models.PeerCompany
	seen := make(map[string]bool)
	for _, rs := range results {
		for _, r := range rs {
			key := r.IdentityKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// GetQuote routes to the highest-priority realtime-capable member.
func (c *CompositeProvider) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	var cands []candidate
	for _, cand := range c.snapshot() {
		if _, ok := cand.provider.(repository.QuoteProvider); !ok {
			continue
		}
		if !cand.provider.Capabilities().Has(models.CapRealTimePrice) {
			continue
		}
		cands = append(cands, cand)
	}
	if len(cands) == 0 {
		c.metrics.RecordError(models.CodeCapabilityMissing)
		return nil, models.NewProviderError(compositeName, models.CodeCapabilityMissing, "no provider supports real-time quotes", 0, false)
	}

	var attempts []string
	for i, cand := range cands {
		name := cand.provider.Name()
		start := time.Now()
		q, err := cand.provider.(repository.QuoteProvider).GetQuote(ctx, ticker)
		c.metrics.RecordUpstreamLatency(name, "quote", time.Since(start).Seconds())
		if err == nil {
			c.metrics.RecordProviderRequest(name, "quote", "ok")
			if i > 0 {
				c.metrics.RecordFallback("quote")
			}
			return q, nil
		}
		c.metrics.RecordProviderRequest(name, "quote", "error")
		attempts = append(attempts, name+": "+err.Error())
	}

	c.metrics.RecordError(models.CodeAllFailed)
	return nil, models.NewProviderError(
		compositeName,
		models.CodeAllFailed,
		"all providers failed: "+strings.Join(attempts, "; "),
		0,
		false,
	)
}

// HealthCheck reports healthy if at least one member is healthy. One
// failing upstream never makes the whole gateway appear down.
func (c *CompositeProvider) HealthCheck(ctx context.Context) bool {
	cands := c.snapshot()
	if len(cands) == 0 {
		return false
	}

	results := make([]bool, len(cands))
	var wg sync.WaitGroup
	for i, cand := range cands {
		wg.Add(1)
		go func(i int, p repository.FinancialProvider) {
			defer wg.Done()
			results[i] = checkHealth(ctx, p)
		}(i, cand.provider)
	}
	wg.Wait()

	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}

// Configure fans the same options out to every member. Failures are
// collected, not short-circuited.
func (c *CompositeProvider) Configure(opts repository.ProviderOptions) error {
	var failures []string
	for _, cand := range c.snapshot() {
		if err := cand.provider.Configure(opts); err != nil {
			failures = append(failures, cand.provider.Name()+": "+err.Error())
		}
	}
	if len(failures) > 0 {
		return models.NewProviderError(compositeName, models.CodeConfig, "configure: "+strings.Join(failures, "; "), 0, false)
	}
	return nil
}

// Providers returns the member names in priority order. Used by the
// health endpoint.
func (c *CompositeProvider) Providers() []string {
	cands := c.snapshot()
	names := make([]string, 0, len(cands))
	for _, cand := range cands {
		names = append(names, cand.provider.Name())
	}
	return names
}
