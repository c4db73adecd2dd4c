package services

import (
	"context"
	"errors"
	"time"

	"github.com/hp-funnel/api/internal/domain"
)

const (
	defaultResolveInterval = time.Second
	defaultResolveAttempts = 30
)

var (
	// ErrOrderResolutionTimeout indicates the polling ceiling was reached
	// before the Bridge produced an order id.
	ErrOrderResolutionTimeout = errors.New("orders: order resolution timed out")
	// ErrOrderInvalidInput indicates the caller supplied no usable reference.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
)

// OrderServiceDeps wires the dependencies of the order service.
type OrderServiceDeps struct {
	Bridge BridgeAPI
	// ResolveInterval and ResolveAttempts bound the polling loop mapping a
	// payment intent to an order id.
	ResolveInterval time.Duration
	ResolveAttempts int
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	bridge   BridgeAPI
	interval time.Duration
	attempts int
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs the order read/resolve service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Bridge == nil {
		return nil, errors.New("order service: bridge client is required")
	}

	interval := deps.ResolveInterval
	if interval <= 0 {
		interval = defaultResolveInterval
	}
	attempts := deps.ResolveAttempts
	if attempts <= 0 {
		attempts = defaultResolveAttempts
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		bridge:   deps.Bridge,
		interval: interval,
		attempts: attempts,
		logger:   logger,
	}, nil
}

// ResolveByPaymentIntent polls the Bridge at a fixed interval until the
// payment intent maps to a persisted order, the attempt ceiling is reached,
// or the context is cancelled. A cancelled context stops the loop without
// issuing further requests.
func (s *orderService) ResolveByPaymentIntent(ctx context.Context, paymentIntentID string) (int64, error) {
	if paymentIntentID == "" {
		return 0, ErrOrderInvalidInput
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 0; attempt < s.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
		}

		res, err := s.bridge.ResolveOrderByPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			// The order may simply not be persisted yet; keep polling until
			// the ceiling.
			s.logger(ctx, "orders.resolve_attempt_failed", map[string]any{
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
		} else if res.OrderID > 0 {
			return res.OrderID, nil
		}

		timer.Reset(s.interval)
	}
	return 0, ErrOrderResolutionTimeout
}

// GetSummary fetches a finalized order and decorates each line with the
// catalog's fixed original/discounted price derivation. Server totals remain
// authoritative; the derivation is presentation only.
func (s *orderService) GetSummary(ctx context.Context, orderID int64) (OrderSummaryView, error) {
	if orderID <= 0 {
		return OrderSummaryView{}, ErrOrderInvalidInput
	}

	summary, err := s.bridge.GetOrderSummary(ctx, orderID)
	if err != nil {
		return OrderSummaryView{}, err
	}

	view := OrderSummaryView{
		OrderID:        summary.OrderID,
		OrderNumber:    summary.OrderNumber,
		Lines:          make([]OrderSummaryLine, 0, len(summary.Items)),
		SubtotalCents:  int64(summary.Subtotal),
		ItemsDiscount:  int64(summary.ItemsDiscount),
		ShippingCents:  int64(summary.ShippingTotal),
		FeesCents:      int64(summary.FeesTotal),
		PointsRedeemed: summary.PointsRedeemed,
	}
	for _, item := range summary.Items {
		line := OrderSummaryLine{
			Name:           item.Name,
			SKU:            item.SKU,
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			LineTotalCents: int64(item.LineTotal),
		}
		if product, ok := domain.ProductBySKU(item.SKU); ok {
			line.OriginalCents = product.PriceCents
			line.DiscountedCents = domain.DiscountedPriceCents(product.PriceCents, product.Group)
			if line.Name == "" {
				line.Name = product.Name
			}
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}
