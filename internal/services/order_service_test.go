package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hp-funnel/api/internal/bridge"
)

func newTestOrderService(t *testing.T, stub *stubBridge, attempts int) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Bridge:          stub,
		ResolveInterval: time.Millisecond,
		ResolveAttempts: attempts,
	})
	if err != nil {
		t.Fatalf("failed to build order service: %v", err)
	}
	return svc
}

func TestResolveSucceedsAfterRetries(t *testing.T) {
	var calls int
	stub := &stubBridge{
		resolveOrder: func(_ context.Context, paymentIntentID string) (bridge.ResolveOrderResponse, error) {
			calls++
			if paymentIntentID != "pi_123" {
				t.Fatalf("unexpected reference %q", paymentIntentID)
			}
			if calls < 3 {
				return bridge.ResolveOrderResponse{}, nil
			}
			return bridge.ResolveOrderResponse{OrderID: 4242}, nil
		},
	}
	svc := newTestOrderService(t, stub, 10)

	orderID, err := svc.ResolveByPaymentIntent(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != 4242 {
		t.Fatalf("expected order 4242, got %d", orderID)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestResolveKeepsPollingThroughErrors(t *testing.T) {
	var calls int
	stub := &stubBridge{
		resolveOrder: func(context.Context, string) (bridge.ResolveOrderResponse, error) {
			calls++
			if calls < 2 {
				return bridge.ResolveOrderResponse{}, errors.New("not persisted yet")
			}
			return bridge.ResolveOrderResponse{OrderID: 17}, nil
		},
	}
	svc := newTestOrderService(t, stub, 5)

	orderID, err := svc.ResolveByPaymentIntent(context.Background(), "pi_err")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != 17 {
		t.Fatalf("expected order 17, got %d", orderID)
	}
}

func TestResolveHitsAttemptCeiling(t *testing.T) {
	var calls int
	stub := &stubBridge{
		resolveOrder: func(context.Context, string) (bridge.ResolveOrderResponse, error) {
			calls++
			return bridge.ResolveOrderResponse{}, nil
		},
	}
	svc := newTestOrderService(t, stub, 4)

	_, err := svc.ResolveByPaymentIntent(context.Background(), "pi_never")
	if !errors.Is(err, ErrOrderResolutionTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", calls)
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	stub := &stubBridge{
		resolveOrder: func(context.Context, string) (bridge.ResolveOrderResponse, error) {
			calls++
			cancel()
			return bridge.ResolveOrderResponse{}, nil
		},
	}
	svc := newTestOrderService(t, stub, 30)

	_, err := svc.ResolveByPaymentIntent(ctx, "pi_cancel")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no further requests after cancellation, got %d", calls)
	}
}

func TestResolveRejectsEmptyReference(t *testing.T) {
	svc := newTestOrderService(t, &stubBridge{}, 3)

	_, err := svc.ResolveByPaymentIntent(context.Background(), "")
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestGetSummaryDerivesLinePricing(t *testing.T) {
	stub := &stubBridge{
		orderSummary: func(_ context.Context, orderID int64) (bridge.OrderSummary, error) {
			return bridge.OrderSummary{
				OrderID:     orderID,
				OrderNumber: "HP-4242",
				Items: []bridge.OrderSummaryItem{
					{SKU: "ME-Mgn-8", Qty: 1, LineTotal: 2520},
					{Name: "Mystery Sample", SKU: "XX-UNKNOWN", Qty: 1, LineTotal: 100},
				},
				Subtotal:       2620,
				ShippingTotal:  800,
				PointsRedeemed: 50,
			}, nil
		},
	}
	svc := newTestOrderService(t, stub, 3)

	view, err := svc.GetSummary(context.Background(), 4242)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.OrderNumber != "HP-4242" || len(view.Lines) != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}

	magnesium := view.Lines[0]
	if magnesium.Name != "Magnesium (Angstrom)" {
		t.Fatalf("expected catalog name fallback, got %q", magnesium.Name)
	}
	if magnesium.OriginalCents != 2800 || magnesium.DiscountedCents != 2520 {
		t.Fatalf("unexpected derived pricing: %+v", magnesium)
	}

	unknown := view.Lines[1]
	if unknown.OriginalCents != 0 || unknown.Name != "Mystery Sample" {
		t.Fatalf("expected unknown SKU left as-is, got %+v", unknown)
	}
	if view.PointsRedeemed != 50 || view.ShippingCents != 800 {
		t.Fatalf("unexpected totals: %+v", view)
	}
}

func TestGetSummaryRejectsBadOrderID(t *testing.T) {
	svc := newTestOrderService(t, &stubBridge{}, 3)
	if _, err := svc.GetSummary(context.Background(), 0); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
