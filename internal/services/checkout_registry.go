package services

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hp-funnel/api/internal/domain"
)

const defaultCheckoutSessionTTL = 2 * time.Hour

// ErrCheckoutSessionNotFound indicates the session id is unknown or expired.
var ErrCheckoutSessionNotFound = errors.New("checkout: session not found")

// CheckoutRegistryDeps wires the dependencies for the session registry.
type CheckoutRegistryDeps struct {
	// Engine is the dependency template applied to every session; Selection
	// is filled per session at creation time.
	Engine      CheckoutEngineDeps
	TTL         time.Duration
	Clock       func() time.Time
	IDGenerator func() string
}

type checkoutRegistry struct {
	deps  CheckoutEngineDeps
	ttl   time.Duration
	clock func() time.Time
	newID func() string

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	engine   *CheckoutEngine
	lastSeen time.Time
}

// NewCheckoutRegistry constructs the in-memory session registry. Sessions are
// transient; an idle session is dropped after the TTL on the next access.
func NewCheckoutRegistry(deps CheckoutRegistryDeps) (CheckoutRegistry, error) {
	if deps.Engine.Bridge == nil {
		return nil, errors.New("checkout registry: bridge client is required")
	}
	if deps.Engine.Validator == nil {
		return nil, errors.New("checkout registry: address validator is required")
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultCheckoutSessionTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string {
			return ulid.Make().String()
		}
	}

	return &checkoutRegistry{
		deps:     deps.Engine,
		ttl:      ttl,
		clock:    func() time.Time { return clock().UTC() },
		newID:    newID,
		sessions: make(map[string]*sessionEntry),
	}, nil
}

// Create starts a checkout session for the supplied kit selection.
func (r *checkoutRegistry) Create(selection domain.KitSelection) (*CheckoutEngine, error) {
	engineDeps := r.deps
	engineDeps.Selection = selection

	id := r.newID()
	engine, err := NewCheckoutEngine(id, engineDeps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.sessions[id] = &sessionEntry{engine: engine, lastSeen: r.clock()}
	return engine, nil
}

// Get looks up a live session and refreshes its idle timer.
func (r *checkoutRegistry) Get(sessionID string) (*CheckoutEngine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrCheckoutSessionNotFound
	}
	entry.lastSeen = r.clock()
	return entry.engine, nil
}

func (r *checkoutRegistry) sweepLocked() {
	cutoff := r.clock().Add(-r.ttl)
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}
