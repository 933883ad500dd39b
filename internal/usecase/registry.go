package usecase

import (
	"context"
	"sync"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/pkg/logger"
)

// ProviderRegistry keeps the set of configured providers by name. It
// changes at startup or during administrative reconfiguration, not per
// request, so a plain RWMutex is enough.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]repository.FinancialProvider
	primary   string
	log       *logger.Logger
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry(log *logger.Logger) *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]repository.FinancialProvider),
		log:       log,
	}
}

// Register stores a provider by name. Re-registering the same name
// replaces the prior entry. At most one provider is primary; the last
// Register call with isPrimary=true wins.
func (r *ProviderRegistry) Register(p repository.FinancialProvider, isPrimary bool) error {
	if p == nil {
		return models.NewProviderError("registry", models.CodeConfig, "provider is nil", 0, false)
	}
	name := p.Name()
	if name == "" {
		return models.NewProviderError("registry", models.CodeConfig, "provider name is empty", 0, false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		r.log.Debug("replacing provider", logger.String("provider", name))
	}
	r.providers[name] = p
	if isPrimary {
		r.primary = name
	}
	return nil
}

// Unregister removes a provider by name. Removing an absent name is a
// no-op.
func (r *ProviderRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, name)
	if r.primary == name {
		r.primary = ""
	}
}

// Get returns the provider registered under name.
func (r *ProviderRegistry) Get(name string) (repository.FinancialProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, models.NewProviderError("registry", models.CodeProviderNotFound, "provider not registered: "+name, 0, false)
	}
	return p, nil
}

// GetPrimary returns the provider most recently registered as primary.
func (r *ProviderRegistry) GetPrimary() (repository.FinancialProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.primary == "" {
		return nil, models.NewProviderError("registry", models.CodeProviderNotFound, "no primary provider registered", 0, false)
	}
	p, ok := r.providers[r.primary]
	if !ok {
		return nil, models.NewProviderError("registry", models.CodeProviderNotFound, "primary provider missing: "+r.primary, 0, false)
	}
	return p, nil
}

// GetAll returns all registered providers in unspecified order.
func (r *ProviderRegistry) GetAll() []repository.FinancialProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.FinancialProvider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// GetByCapability returns providers whose capability flag is set.
func (r *ProviderRegistry) GetByCapability(flag models.Capability) []repository.FinancialProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []repository.FinancialProvider
	for _, p := range r.providers {
		if p.Capabilities().Has(flag) {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of registered providers.
func (r *ProviderRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// HealthCheckAll checks every provider concurrently and returns one
// entry per registered name. A provider whose check panics is recorded
// as false; one provider's failure never blocks the others.
func (r *ProviderRegistry) HealthCheckAll(ctx context.Context) map[string]bool {
	r.mu.RLock()
	snapshot := make(map[string]repository.FinancialProvider, len(r.providers))
	for name, p := range r.providers {
		snapshot[name] = p
	}
	r.mu.RUnlock()

	results := make(map[string]bool, len(snapshot))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, p := range snapshot {
		wg.Add(1)
		go func(name string, p repository.FinancialProvider) {
			defer wg.Done()
			ok := checkHealth(ctx, p)
			mu.Lock()
			results[name] = ok
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	return results
}

func checkHealth(ctx context.Context, p repository.FinancialProvider) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return p.HealthCheck(ctx)
}
