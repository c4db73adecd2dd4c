package services

import (
	"context"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/domain"
)

// BridgeAPI abstracts the Bridge client for easier testing. *bridge.Client
// satisfies it.
type BridgeAPI interface {
	LookupCustomer(ctx context.Context, email string) (bridge.Customer, error)
	GetRates(ctx context.Context, req bridge.RatesRequest) (bridge.RatesResponse, error)
	GetTotals(ctx context.Context, req bridge.TotalsRequest) (bridge.Totals, error)
	CreateIntent(ctx context.Context, req bridge.IntentRequest) (bridge.Intent, error)
	ChargeUpsell(ctx context.Context, req bridge.UpsellChargeRequest) (bridge.UpsellChargeResponse, error)
	ResolveOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (bridge.ResolveOrderResponse, error)
	GetOrderSummary(ctx context.Context, orderID int64) (bridge.OrderSummary, error)
}

// CheckoutRegistry owns the lifecycle of checkout sessions.
type CheckoutRegistry interface {
	Create(selection domain.KitSelection) (*CheckoutEngine, error)
	Get(sessionID string) (*CheckoutEngine, error)
}

// OrderResolver maps an opaque payment-intent reference to an order id,
// polling until the backend has persisted the order.
type OrderResolver interface {
	ResolveByPaymentIntent(ctx context.Context, paymentIntentID string) (int64, error)
}

// OrderService reads finalized orders.
type OrderService interface {
	OrderResolver
	GetSummary(ctx context.Context, orderID int64) (OrderSummaryView, error)
}

// UpsellService submits the post-purchase one-time offer.
type UpsellService interface {
	Charge(ctx context.Context, cmd UpsellChargeCommand) (int64, error)
}

// UpsellChargeCommand identifies the parent order either directly or through
// a payment-intent reference that still needs resolving.
type UpsellChargeCommand struct {
	OrderID         int64
	PaymentIntentID string
}

// OrderSummaryLine is one order line decorated with the catalog's fixed
// discount derivation. The server-provided line total stays authoritative;
// the original/discounted unit prices are a presentation derivation keyed by
// SKU group membership.
type OrderSummaryLine struct {
	Name            string
	SKU             string
	ProductID       int
	Qty             int
	LineTotalCents  int64
	OriginalCents   int64
	DiscountedCents int64
}

// OrderSummaryView is the read-only rendering model of a finalized order.
type OrderSummaryView struct {
	OrderID        int64
	OrderNumber    string
	Lines          []OrderSummaryLine
	SubtotalCents  int64
	ItemsDiscount  int64
	ShippingCents  int64
	FeesCents      int64
	PointsRedeemed int
}
