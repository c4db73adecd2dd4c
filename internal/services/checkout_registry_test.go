package services

import (
	"errors"
	"testing"
	"time"

	"github.com/hp-funnel/api/internal/domain"
)

func newTestRegistry(t *testing.T, clock func() time.Time, ttl time.Duration) CheckoutRegistry {
	t.Helper()
	registry, err := NewCheckoutRegistry(CheckoutRegistryDeps{
		Engine: CheckoutEngineDeps{
			Bridge:    &stubBridge{},
			Validator: NewAddressValidator(),
			FunnelID:  "fastingkit",
		},
		TTL:   ttl,
		Clock: clock,
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func TestRegistryCreateAndGet(t *testing.T) {
	registry := newTestRegistry(t, nil, 0)

	engine, err := registry.Create(domain.KitSelection{Extras: []string{"iodine"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.ID() == "" {
		t.Fatal("expected a session id")
	}

	got, err := registry.Get(engine.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != engine {
		t.Fatal("expected the same engine instance")
	}

	if _, err := registry.Get("unknown"); !errors.Is(err, ErrCheckoutSessionNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	registry := newTestRegistry(t, clock, time.Hour)

	engine, err := registry.Create(domain.KitSelection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(30 * time.Minute)
	if _, err := registry.Get(engine.ID()); err != nil {
		t.Fatalf("expected session alive at half TTL, got %v", err)
	}

	// The Get above refreshed the idle timer.
	now = now.Add(45 * time.Minute)
	if _, err := registry.Get(engine.ID()); err != nil {
		t.Fatalf("expected touched session alive, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := registry.Get(engine.ID()); !errors.Is(err, ErrCheckoutSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestRegistrySelectionShapesItems(t *testing.T) {
	registry := newTestRegistry(t, nil, 0)

	engine, err := registry.Create(domain.KitSelection{Extras: []string{"ncd"}, TwoPerson: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := engine.Snapshot()
	if len(snap.Items) != 4 {
		t.Fatalf("expected base kit plus one extra, got %d items", len(snap.Items))
	}
	for _, item := range snap.Items {
		if item.Qty != 2 {
			t.Fatalf("expected two-person quantities, got %d", item.Qty)
		}
	}
}
