package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/domain"
)

const (
	// pointsStep keeps redemptions in whole 10-point increments; 10 points
	// redeem one dollar, so one point is worth ten cents.
	pointsStep         = 10
	centsPerPoint      = 10
	lookupEmailMessage = "Fill in your email address you used for your HolisticPeople account"
	noShippingMessage  = "We couldn't find shipping options for this address. Please verify your country and postcode and try again."
)

var (
	// ErrCheckoutInvalidAddress indicates required address fields are missing or malformed.
	ErrCheckoutInvalidAddress = errors.New("checkout: address is incomplete")
	// ErrCheckoutEmailRequired indicates a customer lookup was attempted without an email.
	ErrCheckoutEmailRequired = errors.New("checkout: email is required")
	// ErrCheckoutBusy indicates a conflicting operation is still in flight.
	ErrCheckoutBusy = errors.New("checkout: operation in flight")
	// ErrCheckoutNoShippingOptions indicates the Bridge quoted no rates for the address.
	ErrCheckoutNoShippingOptions = errors.New("checkout: no shipping options for this address")
	// ErrCheckoutUnknownRate indicates a rate selection that was never quoted.
	ErrCheckoutUnknownRate = errors.New("checkout: selected rate was not quoted")
	// ErrCheckoutCompleted indicates the session already produced a payment redirect.
	ErrCheckoutCompleted = errors.New("checkout: payment already submitted")
)

// CheckoutEngineDeps wires the dependencies required by a checkout engine.
type CheckoutEngineDeps struct {
	Bridge     BridgeAPI
	Validator  *AddressValidator
	FunnelID   string
	FunnelName string
	SiteBase   string
	SuccessURL string
	Selection  domain.KitSelection
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// CheckoutEngine owns one checkout session's state machine: address capture,
// shipping-rate retrieval, totals reconciliation, points redemption, and
// payment-intent creation. The displayed total is always either authoritative
// (server-confirmed) or explicitly pending.
//
// Price-affecting mutations apply an optimistic local recompute and issue an
// asynchronous totals request tagged with a freshly incremented sequence
// token; a response is committed only when its token still equals the current
// counter, so a slow earlier response can never clobber fresher state.
type CheckoutEngine struct {
	id         string
	bridge     BridgeAPI
	validator  *AddressValidator
	funnelID   string
	funnelName string
	siteBase   string
	successURL string
	clock      func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)

	seq      atomic.Int64
	inflight sync.WaitGroup

	mu              sync.Mutex
	email           string
	address         bridge.Address
	fieldErrors     map[string]string
	items           []bridge.Item
	rates           []bridge.Rate
	selectedRate    *bridge.Rate
	ratesSignature  string
	ratesMessage    string
	totals          *bridge.Totals
	recalcPending   bool
	pointsAvailable int
	pointsToRedeem  int
	lookupInFlight  bool
	ratesInFlight   bool
	payInFlight     bool
	redirectURL     string
	createdAt       time.Time
}

// NewCheckoutEngine constructs an engine for one checkout session, building
// the order lines from the kit selection once up front.
func NewCheckoutEngine(id string, deps CheckoutEngineDeps) (*CheckoutEngine, error) {
	if deps.Bridge == nil {
		return nil, errors.New("checkout engine: bridge client is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("checkout engine: address validator is required")
	}
	if strings.TrimSpace(deps.FunnelID) == "" {
		return nil, errors.New("checkout engine: funnel id is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &CheckoutEngine{
		id:          id,
		bridge:      deps.Bridge,
		validator:   deps.Validator,
		funnelID:    deps.FunnelID,
		funnelName:  deps.FunnelName,
		siteBase:    deps.SiteBase,
		successURL:  deps.SuccessURL,
		clock:       func() time.Time { return clock().UTC() },
		logger:      logger,
		fieldErrors: make(map[string]string),
		items:       domain.BuildLineItems(deps.Selection),
		address:     bridge.Address{Country: "US"},
		createdAt:   clock().UTC(),
	}, nil
}

// ID returns the session identifier.
func (e *CheckoutEngine) ID() string { return e.id }

// AddressPatch carries partial address/email updates; nil fields are left
// untouched. Editing a field clears that field's validation error.
type AddressPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Company   *string
	Address1  *string
	Address2  *string
	City      *string
	State     *string
	Postcode  *string
	Country   *string
	Phone     *string
}

// UpdateAddress applies a partial update. Changing country or postcode shifts
// the address signature, which marks previously fetched rates stale; nothing
// else invalidates them.
func (e *CheckoutEngine) UpdateAddress(patch AddressPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.redirectURL != "" {
		return ErrCheckoutCompleted
	}

	apply := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		*dst = strings.TrimSpace(*src)
		if field != "" {
			delete(e.fieldErrors, field)
		}
	}

	if patch.Email != nil {
		e.email = strings.TrimSpace(*patch.Email)
		e.address.Email = e.email
		delete(e.fieldErrors, fieldEmail)
	}
	apply("", &e.address.FirstName, patch.FirstName)
	apply("", &e.address.LastName, patch.LastName)
	apply("", &e.address.Company, patch.Company)
	apply(fieldAddress1, &e.address.Address1, patch.Address1)
	apply("", &e.address.Address2, patch.Address2)
	apply(fieldCity, &e.address.City, patch.City)
	apply("", &e.address.State, patch.State)
	apply(fieldPostcode, &e.address.Postcode, patch.Postcode)
	apply(fieldPhone, &e.address.Phone, patch.Phone)
	if patch.Country != nil {
		e.address.Country = strings.ToUpper(strings.TrimSpace(*patch.Country))
		delete(e.fieldErrors, fieldCountry)
	}
	return nil
}

// Lookup resolves the entered email to a saved customer, prefills the
// shipping address (falling back to billing when shipping has no country),
// records the points balance, and auto-fetches shipping rates. A failed
// lookup leaves the address untouched.
func (e *CheckoutEngine) Lookup(ctx context.Context) error {
	e.mu.Lock()
	if e.redirectURL != "" {
		e.mu.Unlock()
		return ErrCheckoutCompleted
	}
	if e.lookupInFlight || e.payInFlight {
		e.mu.Unlock()
		return ErrCheckoutBusy
	}
	email := strings.TrimSpace(e.email)
	if email == "" {
		e.fieldErrors[fieldEmail] = lookupEmailMessage
		e.mu.Unlock()
		return ErrCheckoutEmailRequired
	}
	delete(e.fieldErrors, fieldEmail)
	e.lookupInFlight = true
	e.mu.Unlock()

	customer, err := e.bridge.LookupCustomer(ctx, email)

	e.mu.Lock()
	e.lookupInFlight = false
	if err != nil {
		e.mu.Unlock()
		e.logger(ctx, "checkout.lookup_failed", map[string]any{
			"session": e.id,
			"error":   err.Error(),
		})
		return err
	}

	prefill := customer.DefaultShipping
	if strings.TrimSpace(prefill.Country) == "" {
		prefill = customer.DefaultBilling
	}
	prefill.Email = email
	if strings.TrimSpace(prefill.Phone) == "" {
		if phone := strings.TrimSpace(customer.DefaultBilling.Phone); phone != "" {
			prefill.Phone = phone
		} else {
			prefill.Phone = e.address.Phone
		}
	}
	e.address = prefill
	e.fieldErrors = make(map[string]string)
	e.pointsAvailable = customer.PointsBalance
	e.mu.Unlock()

	// Rates for the prefilled address load immediately; the caller does not
	// have to ask again. A saved address that is still incomplete is not a
	// lookup failure; the snapshot's field errors carry that state.
	if _, err := e.FetchRates(ctx); err != nil && !errors.Is(err, ErrCheckoutInvalidAddress) {
		return err
	}
	return nil
}

// FetchRates validates the address, fetches shipping quotes, auto-selects the
// cheapest by raw amount, and kicks off a sequenced totals recalculation. An
// empty quote list clears the selection and records guidance instead of
// failing; a transport or Bridge failure clears rates and returns the error.
func (e *CheckoutEngine) FetchRates(ctx context.Context) (*bridge.Rate, error) {
	e.mu.Lock()
	if e.redirectURL != "" {
		e.mu.Unlock()
		return nil, ErrCheckoutCompleted
	}
	if e.ratesInFlight {
		e.mu.Unlock()
		return nil, ErrCheckoutBusy
	}
	if errs := e.validator.Validate(e.email, e.address); len(errs) > 0 {
		for field, message := range errs {
			e.fieldErrors[field] = message
		}
		e.mu.Unlock()
		return nil, ErrCheckoutInvalidAddress
	}
	for _, field := range []string{fieldEmail, fieldCountry, fieldPostcode, fieldCity, fieldAddress1, fieldPhone} {
		delete(e.fieldErrors, field)
	}
	address := e.address
	items := cloneItems(e.items)
	e.ratesInFlight = true
	e.mu.Unlock()

	res, err := e.bridge.GetRates(ctx, bridge.RatesRequest{
		FunnelID: e.funnelID,
		Address:  address,
		Items:    items,
	})

	e.mu.Lock()
	e.ratesInFlight = false
	if err != nil {
		e.rates = nil
		e.selectedRate = nil
		e.ratesSignature = ""
		e.ratesMessage = noShippingMessage
		e.mu.Unlock()
		return nil, err
	}

	e.rates = res.Rates
	e.ratesSignature = address.Signature()
	if len(res.Rates) == 0 {
		e.selectedRate = nil
		e.ratesMessage = noShippingMessage
		e.mu.Unlock()
		return nil, nil
	}

	e.ratesMessage = ""
	cheapest := cheapestRate(res.Rates)
	e.selectedRate = &cheapest
	e.recalculateLocked(ctx)
	e.mu.Unlock()
	return &cheapest, nil
}

// SelectRate overrides the auto-selected shipping rate with one of the quoted
// options, applies the optimistic total, and revalidates with the server.
func (e *CheckoutEngine) SelectRate(ctx context.Context, serviceName string, amountCents int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.redirectURL != "" {
		return ErrCheckoutCompleted
	}

	var match *bridge.Rate
	for i := range e.rates {
		if e.rates[i].ServiceName == serviceName && int64(e.rates[i].Amount) == amountCents {
			match = &e.rates[i]
			break
		}
	}
	if match == nil {
		return ErrCheckoutUnknownRate
	}

	selected := *match
	e.selectedRate = &selected

	if e.totals != nil {
		updated := *e.totals
		updated.ShippingTotal = selected.Amount
		updated.GrandTotal = deriveGrand(updated)
		e.totals = &updated
	}
	e.recalculateLocked(ctx)
	return nil
}

// SetPoints commits a points redemption, clamped to [0, allowedMax] in whole
// 10-point steps, applies the optimistic total, and revalidates with the
// server. It returns the applied value.
func (e *CheckoutEngine) SetPoints(ctx context.Context, points int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.redirectURL != "" {
		return 0, ErrCheckoutCompleted
	}

	if points < 0 {
		points = 0
	}
	if max := e.allowedMaxPointsLocked(); points > max {
		points = max
	}
	points -= points % pointsStep
	e.pointsToRedeem = points

	if e.totals != nil {
		updated := *e.totals
		updated.PointsDiscount = bridge.Cents(int64(points) * centsPerPoint)
		updated.GrandTotal = deriveGrand(updated)
		e.totals = &updated
	}
	e.recalculateLocked(ctx)
	return points, nil
}

// Pay re-validates the address, refetches rates synchronously when they are
// absent or no longer match the address signature, creates the payment
// intent, and returns the hosted confirmation redirect URL. A session that
// already redirected returns the same URL again.
func (e *CheckoutEngine) Pay(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.redirectURL != "" {
		url := e.redirectURL
		e.mu.Unlock()
		return url, nil
	}
	if e.payInFlight || e.lookupInFlight || e.ratesInFlight || e.recalcPending {
		e.mu.Unlock()
		return "", ErrCheckoutBusy
	}
	if errs := e.validator.Validate(e.email, e.address); len(errs) > 0 {
		for field, message := range errs {
			e.fieldErrors[field] = message
		}
		e.mu.Unlock()
		return "", ErrCheckoutInvalidAddress
	}
	needRates := e.selectedRate == nil || e.ratesStaleLocked()
	e.payInFlight = true
	e.mu.Unlock()

	finish := func() {
		e.mu.Lock()
		e.payInFlight = false
		e.mu.Unlock()
	}

	var useRate bridge.Rate
	if needRates {
		// Never submit a payment against a shipping amount quoted for a
		// different address.
		selected, err := e.FetchRates(ctx)
		if err != nil {
			finish()
			return "", err
		}
		if selected == nil {
			finish()
			return "", ErrCheckoutNoShippingOptions
		}
		useRate = *selected
	} else {
		e.mu.Lock()
		useRate = *e.selectedRate
		e.mu.Unlock()
	}

	e.mu.Lock()
	req := bridge.IntentRequest{
		FunnelID:   e.funnelID,
		FunnelName: e.funnelName,
		Customer: bridge.IntentCustomer{
			Email:     e.email,
			FirstName: e.address.FirstName,
			LastName:  e.address.LastName,
		},
		ShippingAddress: e.address,
		Items:           cloneItems(e.items),
		CouponCodes:     []string{},
		SelectedRate:    &useRate,
		PointsToRedeem:  e.pointsToRedeem,
	}
	e.mu.Unlock()

	intent, err := e.bridge.CreateIntent(ctx, req)

	e.mu.Lock()
	e.payInFlight = false
	if err != nil {
		e.mu.Unlock()
		e.logger(ctx, "checkout.intent_failed", map[string]any{
			"session": e.id,
			"error":   err.Error(),
		})
		return "", err
	}
	url := bridge.HostedConfirmURL(e.siteBase, intent.ClientSecret, intent.Publishable, e.successURL)
	e.redirectURL = url
	e.mu.Unlock()

	e.logger(ctx, "checkout.redirected", map[string]any{
		"session":     e.id,
		"order_draft": intent.OrderDraftID,
		"amount":      intent.AmountCents,
	})
	return url, nil
}

// CheckoutSnapshot is a read-only view of the session for rendering.
type CheckoutSnapshot struct {
	SessionID        string
	Email            string
	Address          bridge.Address
	FieldErrors      map[string]string
	Items            []bridge.Item
	Rates            []bridge.Rate
	SelectedRate     *bridge.Rate
	RatesFetched     bool
	RatesStale       bool
	RatesMessage     string
	Totals           *bridge.Totals
	RecalcPending    bool
	PointsAvailable  int
	PointsToRedeem   int
	PointsAllowedMax int
	LookupInFlight   bool
	RatesInFlight    bool
	PayInFlight      bool
	CanPay           bool
	RedirectURL      string
}

// Snapshot captures the current state of every axis.
func (e *CheckoutEngine) Snapshot() CheckoutSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := CheckoutSnapshot{
		SessionID:        e.id,
		Email:            e.email,
		Address:          e.address,
		FieldErrors:      make(map[string]string, len(e.fieldErrors)),
		Items:            cloneItems(e.items),
		Rates:            append([]bridge.Rate(nil), e.rates...),
		RatesFetched:     e.ratesSignature != "",
		RatesStale:       e.ratesStaleLocked(),
		RatesMessage:     e.ratesMessage,
		RecalcPending:    e.recalcPending,
		PointsAvailable:  e.pointsAvailable,
		PointsToRedeem:   e.pointsToRedeem,
		PointsAllowedMax: e.allowedMaxPointsLocked(),
		LookupInFlight:   e.lookupInFlight,
		RatesInFlight:    e.ratesInFlight,
		PayInFlight:      e.payInFlight,
		RedirectURL:      e.redirectURL,
	}
	for field, message := range e.fieldErrors {
		snap.FieldErrors[field] = message
	}
	if e.selectedRate != nil {
		selected := *e.selectedRate
		snap.SelectedRate = &selected
	}
	if e.totals != nil {
		totals := *e.totals
		snap.Totals = &totals
	}
	snap.CanPay = !snap.PayInFlight && !snap.RatesInFlight && !snap.LookupInFlight &&
		!snap.RecalcPending && !snap.RatesStale && snap.SelectedRate != nil
	return snap
}

// recalculateLocked starts a sequenced asynchronous totals recalculation.
// The caller must hold e.mu.
func (e *CheckoutEngine) recalculateLocked(ctx context.Context) {
	token := e.seq.Add(1)
	e.recalcPending = true

	var selected *bridge.Rate
	if e.selectedRate != nil {
		rate := *e.selectedRate
		selected = &rate
	}
	req := bridge.TotalsRequest{
		FunnelID:       e.funnelID,
		Items:          cloneItems(e.items),
		Address:        e.address,
		CouponCodes:    []string{},
		SelectedRate:   selected,
		CustomerEmail:  e.email,
		PointsToRedeem: e.pointsToRedeem,
	}

	// The recalculation must outlive the request that triggered it.
	callCtx := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		totals, err := e.bridge.GetTotals(callCtx, req)

		e.mu.Lock()
		defer e.mu.Unlock()
		if token != e.seq.Load() {
			// Superseded by a newer trigger; discard silently.
			return
		}
		e.recalcPending = false
		if err != nil {
			e.logger(callCtx, "checkout.totals_failed", map[string]any{
				"session": e.id,
				"error":   err.Error(),
			})
			return
		}
		totals.GrandTotal = deriveGrand(totals)
		e.totals = &totals
		e.clampPointsLocked()
	}()
}

func (e *CheckoutEngine) ratesStaleLocked() bool {
	return e.ratesSignature != "" && e.ratesSignature != e.address.Signature()
}

func (e *CheckoutEngine) allowedMaxPointsLocked() int {
	if e.totals == nil {
		return 0
	}
	net := int64(e.totals.Subtotal) - int64(e.totals.DiscountTotal)
	if net < 0 {
		net = 0
	}
	bySubtotal := int(net / centsPerPoint)
	if e.pointsAvailable < bySubtotal {
		return e.pointsAvailable
	}
	return bySubtotal
}

func (e *CheckoutEngine) clampPointsLocked() {
	max := e.allowedMaxPointsLocked()
	if e.pointsToRedeem <= max {
		return
	}
	max -= max % pointsStep
	e.pointsToRedeem = max
}

// deriveGrand recomputes the grand total from locally known fields, clamped
// at zero: subtotal + shipping - points discount.
func deriveGrand(t bridge.Totals) bridge.Cents {
	grand := t.Subtotal + t.ShippingTotal - t.PointsDiscount
	if grand < 0 {
		return 0
	}
	return grand
}

func cheapestRate(rates []bridge.Rate) bridge.Rate {
	sorted := append([]bridge.Rate(nil), rates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount < sorted[j].Amount
	})
	return sorted[0]
}

func cloneItems(items []bridge.Item) []bridge.Item {
	return append([]bridge.Item(nil), items...)
}
