package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/domain"
)

const upsellFeeLabel = "Off The Fast Kit"

var (
	// ErrUpsellOrderRequired indicates the parent order could not be identified.
	ErrUpsellOrderRequired = errors.New("upsell: parent order id is required")
	// ErrUpsellRejected indicates the Bridge declined the charge.
	ErrUpsellRejected = errors.New("upsell: charge rejected")
)

// UpsellServiceDeps wires the dependencies of the upsell service.
type UpsellServiceDeps struct {
	Bridge     BridgeAPI
	Orders     OrderResolver
	FunnelName string
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type upsellService struct {
	bridge     BridgeAPI
	orders     OrderResolver
	funnelName string
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewUpsellService constructs the post-purchase upsell service.
func NewUpsellService(deps UpsellServiceDeps) (UpsellService, error) {
	if deps.Bridge == nil {
		return nil, errors.New("upsell service: bridge client is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("upsell service: order resolver is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &upsellService{
		bridge:     deps.Bridge,
		orders:     deps.Orders,
		funnelName: strings.TrimSpace(deps.FunnelName),
		logger:     logger,
	}, nil
}

// Charge submits the off-the-fast kit as a one-time charge against the parent
// order. When the command carries only a payment-intent reference, the parent
// order is resolved first; accepting without either reference fails. Product
// line items are attached when every kit product carries a store identifier,
// otherwise the charge falls back to a single labelled fee with the
// discounted kit total.
func (s *upsellService) Charge(ctx context.Context, cmd UpsellChargeCommand) (int64, error) {
	orderID := cmd.OrderID
	if orderID <= 0 {
		reference := strings.TrimSpace(cmd.PaymentIntentID)
		if reference == "" {
			return 0, ErrUpsellOrderRequired
		}
		resolved, err := s.orders.ResolveByPaymentIntent(ctx, reference)
		if err != nil {
			return 0, err
		}
		orderID = resolved
	}

	pricing := domain.PostPurchaseKitPrice()
	amount := bridge.Cents(pricing.TotalCents)
	req := bridge.UpsellChargeRequest{
		ParentOrderID:  orderID,
		AmountOverride: &amount,
		FunnelName:     s.funnelName,
		FeeLabel:       upsellFeeLabel,
	}
	if items, ok := domain.PostPurchaseLineItems(); ok {
		req.Items = items
	}

	res, err := s.bridge.ChargeUpsell(ctx, req)
	if err != nil {
		s.logger(ctx, "upsell.charge_failed", map[string]any{
			"parent_order": orderID,
			"error":        err.Error(),
		})
		return 0, err
	}
	if !res.OK {
		return 0, ErrUpsellRejected
	}

	s.logger(ctx, "upsell.charged", map[string]any{
		"parent_order": orderID,
		"order":        res.OrderID,
		"amount":       pricing.TotalCents,
	})
	if res.OrderID > 0 {
		return res.OrderID, nil
	}
	return orderID, nil
}
