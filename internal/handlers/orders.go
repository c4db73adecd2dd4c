package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/platform/httpx"
	"github.com/hp-funnel/api/internal/services"
)

// OrderHandlers exposes order resolution and the post-purchase order summary.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs handlers backed by the order service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/resolve", h.resolve)
	r.Get("/{orderID}/summary", h.summary)
}

// resolve maps a payment-intent reference to an order id, polling until the
// store has persisted the order. The poll is request-scoped: closing the
// connection cancels it.
func (h *OrderHandlers) resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	paymentIntentID := strings.TrimSpace(r.URL.Query().Get("pi_id"))
	if paymentIntentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pi_id query parameter is required", http.StatusBadRequest))
		return
	}

	orderID, err := h.orders.ResolveByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order_id": orderID})
}

type orderSummaryLinePayload struct {
	Name            string `json:"name"`
	SKU             string `json:"sku,omitempty"`
	ProductID       int    `json:"product_id,omitempty"`
	Qty             int    `json:"qty"`
	LineTotalCents  int64  `json:"line_total_cents"`
	OriginalCents   int64  `json:"original_cents,omitempty"`
	DiscountedCents int64  `json:"discounted_cents,omitempty"`
}

type orderSummaryPayload struct {
	OrderID        int64                     `json:"order_id"`
	OrderNumber    string                    `json:"order_number,omitempty"`
	Lines          []orderSummaryLinePayload `json:"lines"`
	SubtotalCents  int64                     `json:"subtotal_cents"`
	ItemsDiscount  int64                     `json:"items_discount_cents"`
	ShippingCents  int64                     `json:"shipping_cents"`
	FeesCents      int64                     `json:"fees_cents"`
	PointsRedeemed int                       `json:"points_redeemed,omitempty"`
}

func (h *OrderHandlers) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id must be a positive integer", http.StatusBadRequest))
		return
	}

	view, err := h.orders.GetSummary(ctx, orderID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	payload := orderSummaryPayload{
		OrderID:        view.OrderID,
		OrderNumber:    view.OrderNumber,
		Lines:          make([]orderSummaryLinePayload, 0, len(view.Lines)),
		SubtotalCents:  view.SubtotalCents,
		ItemsDiscount:  view.ItemsDiscount,
		ShippingCents:  view.ShippingCents,
		FeesCents:      view.FeesCents,
		PointsRedeemed: view.PointsRedeemed,
	}
	for _, line := range view.Lines {
		payload.Lines = append(payload.Lines, orderSummaryLinePayload{
			Name:            line.Name,
			SKU:             line.SKU,
			ProductID:       line.ProductID,
			Qty:             line.Qty,
			LineTotalCents:  line.LineTotalCents,
			OriginalCents:   line.OriginalCents,
			DiscountedCents: line.DiscountedCents,
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	var bridgeErr *bridge.Error
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderResolutionTimeout):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_resolved", "order could not be resolved yet; try again shortly", http.StatusGatewayTimeout))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request was cancelled before the order resolved", http.StatusRequestTimeout))
	case errors.As(err, &bridgeErr):
		httpx.WriteError(ctx, w, httpx.NewError("bridge_unavailable", fmt.Sprintf("store backend failed during %s", bridgeErr.Op), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}
