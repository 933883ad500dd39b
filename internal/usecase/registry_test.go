package usecase

import (
	"context"
	"testing"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/pkg/logger"
)

func newTestRegistry(t *testing.T, providers ...*fakeProvider) *ProviderRegistry {
	t.Helper()
	reg := NewProviderRegistry(logger.Nop())
	for _, p := range providers {
		if err := reg.Register(p, false); err != nil {
			t.Fatalf("register %s: %v", p.name, err)
		}
	}
	return reg
}

func TestRegisterReplacesByName(t *testing.T) {
	first := &fakeProvider{name: "edgar"}
	second := &fakeProvider{name: "edgar", healthy: true}
	reg := newTestRegistry(t, first, second)

	if reg.Count() != 1 {
		t.Fatalf("count = %d, want 1", reg.Count())
	}
	got, err := reg.Get("edgar")
	if err != nil {
		t.Fatal(err)
	}
	if got != second {
		t.Fatal("re-registering did not replace prior entry")
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	reg := NewProviderRegistry(logger.Nop())
	if err := reg.Register(nil, false); err == nil {
		t.Fatal("nil provider accepted")
	}
	if err := reg.Register(&fakeProvider{name: ""}, false); err == nil {
		t.Fatal("empty name accepted")
	}
}

func TestPrimaryLastWins(t *testing.T) {
	reg := NewProviderRegistry(logger.Nop())
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	if err := reg.Register(a, true); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(b, true); err != nil {
		t.Fatal(err)
	}

	got, err := reg.GetPrimary()
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Fatal("last primary registration did not win")
	}
}

func TestGetPrimaryWithoutPrimary(t *testing.T) {
	reg := newTestRegistry(t, &fakeProvider{name: "a"})
	if _, err := reg.GetPrimary(); err == nil {
		t.Fatal("expected error with no primary")
	}
}

func TestGetUnknownProvider(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Get("nope"); err == nil {
		t.Fatal("expected error for unknown name")
	}
}

func TestUnregister(t *testing.T) {
	reg := NewProviderRegistry(logger.Nop())
	if err := reg.Register(&fakeProvider{name: "a"}, true); err != nil {
		t.Fatal(err)
	}
	reg.Unregister("a")
	reg.Unregister("absent") // no-op

	if reg.Count() != 0 {
		t.Fatalf("count = %d, want 0", reg.Count())
	}
	if _, err := reg.GetPrimary(); err == nil {
		t.Fatal("primary survived unregistration")
	}
}

func TestGetByCapability(t *testing.T) {
	filings := &fakeProvider{name: "filings", caps: models.Capabilities{CompanyFacts: true}}
	realtime := &fakeProvider{name: "realtime", caps: models.Capabilities{RealTimePrice: true}}
	reg := newTestRegistry(t, filings, realtime)

	got := reg.GetByCapability(models.CapCompanyFacts)
	if len(got) != 1 || got[0].Name() != "filings" {
		t.Fatalf("capability filter wrong: %v", got)
	}
	if len(reg.GetByCapability(models.CapPeerData)) != 0 {
		t.Fatal("phantom capability match")
	}
}

func TestHealthCheckAll(t *testing.T) {
	healthy := &fakeProvider{name: "up", healthy: true}
	unhealthy := &fakeProvider{name: "down"}
	panicking := &fakeProvider{name: "boom", panicHealth: true}
	reg := newTestRegistry(t, healthy, unhealthy, panicking)

	results := reg.HealthCheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("got %d entries, want one per provider", len(results))
	}
	if !results["up"] {
		t.Fatal("healthy provider reported down")
	}
	if results["down"] {
		t.Fatal("unhealthy provider reported up")
	}
	if results["boom"] {
		t.Fatal("panicking provider must be recorded as false")
	}
}
