package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/services"
)

type stubOrderBridge struct {
	stubBridgeAPI
	resolveOrder func(ctx context.Context, paymentIntentID string) (bridge.ResolveOrderResponse, error)
	orderSummary func(ctx context.Context, orderID int64) (bridge.OrderSummary, error)
}

func (s *stubOrderBridge) ResolveOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (bridge.ResolveOrderResponse, error) {
	if s.resolveOrder == nil {
		return bridge.ResolveOrderResponse{}, nil
	}
	return s.resolveOrder(ctx, paymentIntentID)
}

func (s *stubOrderBridge) GetOrderSummary(ctx context.Context, orderID int64) (bridge.OrderSummary, error) {
	if s.orderSummary == nil {
		return bridge.OrderSummary{}, nil
	}
	return s.orderSummary(ctx, orderID)
}

func newOrderRouter(t *testing.T, stub *stubOrderBridge, attempts int) chi.Router {
	t.Helper()
	svc, err := services.NewOrderService(services.OrderServiceDeps{
		Bridge:          stub,
		ResolveInterval: time.Millisecond,
		ResolveAttempts: attempts,
	})
	if err != nil {
		t.Fatalf("failed to build order service: %v", err)
	}
	return NewRouter(WithOrderRoutes(NewOrderHandlers(svc).Routes))
}

func TestResolveEndpoint(t *testing.T) {
	stub := &stubOrderBridge{
		resolveOrder: func(_ context.Context, paymentIntentID string) (bridge.ResolveOrderResponse, error) {
			if paymentIntentID != "pi_123" {
				t.Fatalf("unexpected reference %q", paymentIntentID)
			}
			return bridge.ResolveOrderResponse{OrderID: 4242}, nil
		},
	}
	router := newOrderRouter(t, stub, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/resolve?pi_id=pi_123", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.OrderID != 4242 {
		t.Fatalf("expected order 4242, got %d", body.OrderID)
	}
}

func TestResolveEndpointRequiresReference(t *testing.T) {
	router := newOrderRouter(t, &stubOrderBridge{}, 2)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/resolve", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestResolveEndpointTimeout(t *testing.T) {
	router := newOrderRouter(t, &stubOrderBridge{}, 2)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/resolve?pi_id=pi_never", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rr.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	stub := &stubOrderBridge{
		orderSummary: func(_ context.Context, orderID int64) (bridge.OrderSummary, error) {
			return bridge.OrderSummary{
				OrderID:     orderID,
				OrderNumber: "HP-77",
				Items: []bridge.OrderSummaryItem{
					{SKU: "USE-264", Qty: 1, LineTotal: 5580},
				},
				Subtotal:      5580,
				ShippingTotal: 800,
			}, nil
		},
	}
	router := newOrderRouter(t, stub, 2)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/77/summary", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body orderSummaryPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.OrderNumber != "HP-77" || len(body.Lines) != 1 {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if body.Lines[0].Name != "Serraxym" || body.Lines[0].OriginalCents != 6200 {
		t.Fatalf("expected catalog-derived line pricing, got %+v", body.Lines[0])
	}
}

func TestSummaryEndpointRejectsBadID(t *testing.T) {
	router := newOrderRouter(t, &stubOrderBridge{}, 2)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc/summary", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
