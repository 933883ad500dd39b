// Package providertest is a contract harness run against every
// provider implementation. Adapter packages invoke Run from their own
// tests with a fixture pointing at a fake upstream.
package providertest

import (
	"context"
	"testing"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
)

// Fixture describes one provider under contract test.
type Fixture struct {
	// Provider is the adapter under test, wired to a fake upstream.
	Provider repository.FinancialProvider

	// KnownID is an identifier the fake upstream has data for.
	KnownID string

	// UnknownID is an identifier that resolves to nothing.
	UnknownID string

	// NarrowConcept is a concept present in KnownID's data alongside
	// at least one other concept, so option filtering is observable.
	NarrowConcept string

	// SkipFinancials skips the data-narrowing checks for providers
	// that only serve metadata in the fixture.
	SkipFinancials bool
}

// Run asserts the provider contract against the fixture.
func Run(t *testing.T, f Fixture) {
	t.Helper()
	ctx := context.Background()

	t.Run("metadata known identifier", func(t *testing.T) {
		md, err := f.Provider.GetCompanyMetadata(ctx, f.KnownID)
		if err != nil {
			t.Fatalf("GetCompanyMetadata(%q): %v", f.KnownID, err)
		}
		if md.Name == "" {
			t.Fatal("metadata name is empty")
		}
		if md.CIK == "" && md.Ticker == "" {
			t.Fatal("metadata has neither CIK nor ticker")
		}
		if md.IdentityKey() == "" {
			t.Fatal("metadata identity key is empty")
		}
	})

	t.Run("metadata unknown identifier", func(t *testing.T) {
		_, err := f.Provider.GetCompanyMetadata(ctx, f.UnknownID)
		if err == nil {
			t.Fatalf("GetCompanyMetadata(%q): want error, got nil", f.UnknownID)
		}
		if !models.IsNotFound(err) {
			t.Fatalf("GetCompanyMetadata(%q): want not-found kind, got %v", f.UnknownID, err)
		}
	})

	if !f.SkipFinancials {
		t.Run("options narrow results", func(t *testing.T) {
			all, err := f.Provider.GetFinancialData(ctx, f.KnownID, repository.FetchOptions{})
			if err != nil {
				t.Fatalf("GetFinancialData unfiltered: %v", err)
			}
			if len(all.Metrics) == 0 {
				t.Fatal("unfiltered fetch returned no metrics")
			}

			narrowed, err := f.Provider.GetFinancialData(ctx, f.KnownID, repository.FetchOptions{
				Concepts: []string{f.NarrowConcept},
			})
			if err != nil {
				t.Fatalf("GetFinancialData narrowed: %v", err)
			}
			if len(narrowed.Metrics) == 0 {
				t.Fatalf("narrowing to %q returned no metrics", f.NarrowConcept)
			}
			if len(narrowed.Metrics) >= len(all.Metrics) {
				t.Fatalf("narrowing did not reduce results: %d -> %d", len(all.Metrics), len(narrowed.Metrics))
			}
			for _, m := range narrowed.Metrics {
				if m.Concept != f.NarrowConcept {
					t.Fatalf("narrowed result contains concept %q", m.Concept)
				}
			}

			limited, err := f.Provider.GetFinancialData(ctx, f.KnownID, repository.FetchOptions{Limit: 1})
			if err != nil {
				t.Fatalf("GetFinancialData limited: %v", err)
			}
			if len(limited.Metrics) != 1 {
				t.Fatalf("limit 1 returned %d metrics", len(limited.Metrics))
			}
		})

		t.Run("latest metrics concept uniqueness", func(t *testing.T) {
			data, err := f.Provider.GetLatestMetrics(ctx, f.KnownID, nil)
			if err != nil {
				t.Fatalf("GetLatestMetrics: %v", err)
			}
			seen := make(map[string]bool)
			for _, m := range data.Metrics {
				if seen[m.Concept] {
					t.Fatalf("duplicate concept %q in latest metrics", m.Concept)
				}
				seen[m.Concept] = true
			}
		})
	}

	t.Run("health check never panics", func(t *testing.T) {
		done := make(chan bool, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("HealthCheck panicked: %v", r)
				}
				close(done)
			}()
			_ = f.Provider.HealthCheck(ctx)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("HealthCheck did not return")
		}
	})

	t.Run("configure zero value is a no-op", func(t *testing.T) {
		if err := f.Provider.Configure(repository.ProviderOptions{}); err != nil {
			t.Fatalf("Configure({}): %v", err)
		}
	})
}
