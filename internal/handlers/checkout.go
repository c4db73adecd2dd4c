package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/domain"
	"github.com/hp-funnel/api/internal/platform/httpx"
	"github.com/hp-funnel/api/internal/services"
)

const maxCheckoutBodySize = 16 * 1024

// CheckoutHandlers exposes the checkout session lifecycle: creation from the
// kit selection, address capture, customer lookup, shipping rates, points
// redemption, and payment submission.
type CheckoutHandlers struct {
	sessions services.CheckoutRegistry
}

// NewCheckoutHandlers constructs handlers backed by the session registry.
func NewCheckoutHandlers(sessions services.CheckoutRegistry) *CheckoutHandlers {
	return &CheckoutHandlers{sessions: sessions}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createSession)
	r.Route("/{sessionID}", func(session chi.Router) {
		session.Get("/", h.getSession)
		session.Put("/address", h.updateAddress)
		session.Post("/lookup", h.lookup)
		session.Post("/rates", h.fetchRates)
		session.Put("/rate", h.selectRate)
		session.Put("/points", h.setPoints)
		session.Post("/pay", h.pay)
	})
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	// The selection comes from the request body when present, otherwise from
	// the kit configuration cookie; either way a malformed selection falls
	// back to the bare kit.
	sel := selectionFromCookie(r)
	if body, err := readLimitedBody(r, maxCheckoutBodySize); err == nil {
		sel = domain.DecodeKitSelection(string(body))
	} else if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	engine, err := h.sessions.Create(sel)
	if err != nil {
		h.writeCheckoutError(ctx, w, nil, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCheckoutPayload(engine.Snapshot()))
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutPayload(engine.Snapshot()))
}

type addressPatchRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Company   *string `json:"company"`
	Address1  *string `json:"address_1"`
	Address2  *string `json:"address_2"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	Postcode  *string `json:"postcode"`
	Country   *string `json:"country"`
	Phone     *string `json:"phone"`
}

func (h *CheckoutHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addressPatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	patch := services.AddressPatch{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Address1:  req.Address1,
		Address2:  req.Address2,
		City:      req.City,
		State:     req.State,
		Postcode:  req.Postcode,
		Country:   req.Country,
		Phone:     req.Phone,
	}
	if err := engine.UpdateAddress(patch); err != nil {
		h.writeCheckoutError(ctx, w, engine, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutPayload(engine.Snapshot()))
}

func (h *CheckoutHandlers) lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}
	if err := engine.Lookup(ctx); err != nil {
		h.writeCheckoutError(ctx, w, engine, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutPayload(engine.Snapshot()))
}

func (h *CheckoutHandlers) fetchRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}
	// An empty quote list is not an error; the snapshot carries the guidance
	// message and the cleared selection.
	if _, err := engine.FetchRates(ctx); err != nil {
		h.writeCheckoutError(ctx, w, engine, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutPayload(engine.Snapshot()))
}

type selectRateRequest struct {
	ServiceName string `json:"service_name"`
	AmountCents int64  `json:"amount_cents"`
}

func (h *CheckoutHandlers) selectRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req selectRateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	if err := engine.SelectRate(ctx, strings.TrimSpace(req.ServiceName), req.AmountCents); err != nil {
		h.writeCheckoutError(ctx, w, engine, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutPayload(engine.Snapshot()))
}

type setPointsRequest struct {
	Points int `json:"points"`
}

func (h *CheckoutHandlers) setPoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req setPointsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	if _, err := engine.SetPoints(ctx, req.Points); err != nil {
		h.writeCheckoutError(ctx, w, engine, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutPayload(engine.Snapshot()))
}

func (h *CheckoutHandlers) pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine, ok := h.resolveSession(ctx, w, r)
	if !ok {
		return
	}
	url, err := engine.Pay(ctx)
	if err != nil {
		h.writeCheckoutError(ctx, w, engine, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"redirect_url": url})
}

func (h *CheckoutHandlers) resolveSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*services.CheckoutEngine, bool) {
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session id is required", http.StatusBadRequest))
		return nil, false
	}
	engine, err := h.sessions.Get(sessionID)
	if err != nil {
		h.writeCheckoutError(ctx, w, nil, err)
		return nil, false
	}
	return engine, true
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, engine *services.CheckoutEngine, err error) {
	if err == nil {
		return
	}

	var bridgeErr *bridge.Error
	switch {
	case errors.Is(err, services.ErrCheckoutSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_session_not_found", "checkout session not found or expired", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutInvalidAddress), errors.Is(err, services.ErrCheckoutEmailRequired):
		e := httpx.NewError("invalid_address", "address details are incomplete", http.StatusUnprocessableEntity)
		if engine != nil {
			e = e.WithDetails(map[string]any{"field_errors": engine.Snapshot().FieldErrors})
		}
		httpx.WriteError(ctx, w, e)
	case errors.Is(err, services.ErrCheckoutBusy):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_busy", "another checkout operation is still in progress", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutUnknownRate):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_rate", "selected shipping rate was not quoted", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutNoShippingOptions):
		httpx.WriteError(ctx, w, httpx.NewError("no_shipping_options", "no shipping options for this address", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_completed", "payment was already submitted for this session", http.StatusConflict))
	case errors.As(err, &bridgeErr):
		httpx.WriteError(ctx, w, httpx.NewError("bridge_unavailable", fmt.Sprintf("store backend failed during %s", bridgeErr.Op), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout operation failed", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

type checkoutRatePayload struct {
	ServiceName string `json:"service_name"`
	AmountCents int64  `json:"amount_cents"`
}

type checkoutTotalsPayload struct {
	SubtotalCents       int64 `json:"subtotal_cents"`
	DiscountTotalCents  int64 `json:"discount_total_cents"`
	ShippingTotalCents  int64 `json:"shipping_total_cents"`
	TaxTotalCents       int64 `json:"tax_total_cents"`
	FeesTotalCents      int64 `json:"fees_total_cents"`
	PointsDiscountCents int64 `json:"points_discount_cents"`
	GrandTotalCents     int64 `json:"grand_total_cents"`
}

type checkoutPointsPayload struct {
	Available  int `json:"available"`
	ToRedeem   int `json:"to_redeem"`
	AllowedMax int `json:"allowed_max"`
}

type checkoutItemPayload struct {
	ProductID int    `json:"product_id,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Qty       int    `json:"qty"`
}

type checkoutPayload struct {
	SessionID     string                 `json:"session_id"`
	Email         string                 `json:"email,omitempty"`
	Address       bridge.Address         `json:"address"`
	FieldErrors   map[string]string      `json:"field_errors"`
	Items         []checkoutItemPayload  `json:"items"`
	Rates         []checkoutRatePayload  `json:"rates"`
	SelectedRate  *checkoutRatePayload   `json:"selected_rate,omitempty"`
	RatesFetched  bool                   `json:"rates_fetched"`
	RatesStale    bool                   `json:"rates_stale"`
	RatesMessage  string                 `json:"rates_message,omitempty"`
	Totals        *checkoutTotalsPayload `json:"totals,omitempty"`
	RecalcPending bool                   `json:"recalc_pending"`
	Points        checkoutPointsPayload  `json:"points"`
	CanPay        bool                   `json:"can_pay"`
	RedirectURL   string                 `json:"redirect_url,omitempty"`
}

func buildCheckoutPayload(snap services.CheckoutSnapshot) checkoutPayload {
	payload := checkoutPayload{
		SessionID:     snap.SessionID,
		Email:         snap.Email,
		Address:       snap.Address,
		FieldErrors:   snap.FieldErrors,
		Items:         make([]checkoutItemPayload, 0, len(snap.Items)),
		Rates:         make([]checkoutRatePayload, 0, len(snap.Rates)),
		RatesFetched:  snap.RatesFetched,
		RatesStale:    snap.RatesStale,
		RatesMessage:  snap.RatesMessage,
		RecalcPending: snap.RecalcPending,
		Points: checkoutPointsPayload{
			Available:  snap.PointsAvailable,
			ToRedeem:   snap.PointsToRedeem,
			AllowedMax: snap.PointsAllowedMax,
		},
		CanPay:      snap.CanPay,
		RedirectURL: snap.RedirectURL,
	}
	if payload.FieldErrors == nil {
		payload.FieldErrors = map[string]string{}
	}
	for _, item := range snap.Items {
		payload.Items = append(payload.Items, checkoutItemPayload{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Qty:       item.Qty,
		})
	}
	for _, rate := range snap.Rates {
		payload.Rates = append(payload.Rates, checkoutRatePayload{
			ServiceName: rate.ServiceName,
			AmountCents: int64(rate.Amount),
		})
	}
	if snap.SelectedRate != nil {
		payload.SelectedRate = &checkoutRatePayload{
			ServiceName: snap.SelectedRate.ServiceName,
			AmountCents: int64(snap.SelectedRate.Amount),
		}
	}
	if snap.Totals != nil {
		payload.Totals = &checkoutTotalsPayload{
			SubtotalCents:       int64(snap.Totals.Subtotal),
			DiscountTotalCents:  int64(snap.Totals.DiscountTotal),
			ShippingTotalCents:  int64(snap.Totals.ShippingTotal),
			TaxTotalCents:       int64(snap.Totals.TaxTotal),
			FeesTotalCents:      int64(snap.Totals.FeesTotal),
			PointsDiscountCents: int64(snap.Totals.PointsDiscount),
			GrandTotalCents:     int64(snap.Totals.GrandTotal),
		}
	}
	return payload
}
