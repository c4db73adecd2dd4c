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

const maxUpsellBodySize = 4 * 1024

// UpsellHandlers exposes the post-purchase one-time offer.
type UpsellHandlers struct {
	upsell services.UpsellService
}

// NewUpsellHandlers constructs handlers backed by the upsell service.
func NewUpsellHandlers(upsell services.UpsellService) *UpsellHandlers {
	return &UpsellHandlers{upsell: upsell}
}

// Routes wires the /upsell endpoints onto the provided router.
func (h *UpsellHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/offer", h.getOffer)
	r.Post("/charge", h.charge)
}

type upsellOfferResponse struct {
	Products      []catalogProductPayload `json:"products"`
	OriginalCents int64                   `json:"original_cents"`
	TotalCents    int64                   `json:"total_cents"`
	SavingsCents  int64                   `json:"savings_cents"`
}

func (h *UpsellHandlers) getOffer(w http.ResponseWriter, r *http.Request) {
	products := domain.ProductsFor(domain.GroupPostPurchase)
	payload := upsellOfferResponse{Products: make([]catalogProductPayload, 0, len(products))}
	for _, p := range products {
		payload.Products = append(payload.Products, catalogProductPayload{
			Key:             p.Key,
			Name:            p.Name,
			Description:     p.Description,
			Dosage:          p.Dosage,
			PriceCents:      p.PriceCents,
			DiscountedCents: domain.DiscountedPriceCents(p.PriceCents, p.Group),
			SKU:             p.SKU,
			ProductID:       p.ProductID,
		})
	}
	pricing := domain.PostPurchaseKitPrice()
	payload.OriginalCents = pricing.OriginalCents
	payload.TotalCents = pricing.TotalCents
	payload.SavingsCents = pricing.SavingsCents
	writeJSONResponse(w, http.StatusOK, payload)
}

type upsellChargeRequest struct {
	OrderID         int64  `json:"order_id"`
	PaymentIntentID string `json:"pi_id"`
}

func (h *UpsellHandlers) charge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.upsell == nil {
		httpx.WriteError(ctx, w, httpx.NewError("upsell_unavailable", "upsell service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxUpsellBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req upsellChargeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	orderID, err := h.upsell.Charge(ctx, services.UpsellChargeCommand{
		OrderID:         req.OrderID,
		PaymentIntentID: strings.TrimSpace(req.PaymentIntentID),
	})
	if err != nil {
		h.writeUpsellError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"ok": true, "order_id": orderID})
}

func (h *UpsellHandlers) writeUpsellError(ctx context.Context, w http.ResponseWriter, err error) {
	var bridgeErr *bridge.Error
	switch {
	case errors.Is(err, services.ErrUpsellOrderRequired), errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id or payment intent reference is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderResolutionTimeout):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_resolved", "order could not be resolved yet; try again shortly", http.StatusGatewayTimeout))
	case errors.Is(err, services.ErrUpsellRejected):
		httpx.WriteError(ctx, w, httpx.NewError("upsell_rejected", "upsell charge was declined", http.StatusPaymentRequired))
	case errors.As(err, &bridgeErr):
		httpx.WriteError(ctx, w, httpx.NewError("bridge_unavailable", fmt.Sprintf("store backend failed during %s", bridgeErr.Op), http.StatusBadGateway))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request was cancelled before the order resolved", http.StatusRequestTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("upsell_error", "upsell charge failed", http.StatusInternalServerError))
	}
}
