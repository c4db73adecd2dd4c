package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is a monetary amount in minor units. The Bridge speaks decimal
// dollars on the wire, so Cents converts on (un)marshalling and tolerates
// numeric strings.
type Cents int64

// UnmarshalJSON accepts JSON numbers and numeric strings, rounding to cents.
func (c *Cents) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*c = 0
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("bridge: invalid money value %q: %w", raw, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("bridge: invalid money value %q", raw)
	}
	*c = Cents(math.Round(value * 100))
	return nil
}

// MarshalJSON emits the amount as a decimal-dollar JSON number.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.Dollars()), nil
}

// Dollars renders the amount with two decimal places.
func (c Cents) Dollars() string {
	return strconv.FormatFloat(float64(c)/100, 'f', 2, 64)
}

// Address mirrors the Bridge address shape. No field is required by the data
// model itself; required-ness is checkout-stage policy.
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Signature derives the rate-cache key for the address. Shipping quotes are
// valid only while the signature of the current address matches the one they
// were fetched for.
func (a Address) Signature() string {
	country := strings.ToUpper(strings.TrimSpace(a.Country))
	postcode := strings.ToUpper(strings.TrimSpace(a.Postcode))
	return country + "|" + postcode
}

// Item is a Bridge order line. Exactly one of ProductID or SKU identifies the
// product.
type Item struct {
	ProductID int    `json:"product_id,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Qty       int    `json:"qty"`
}

// Rate is a shipping quote. The Bridge emits two field spellings depending on
// the carrier integration, so unmarshalling accepts both.
type Rate struct {
	ServiceName string
	Amount      Cents
}

type rateWire struct {
	ServiceName  string `json:"serviceName"`
	ServiceName2 string `json:"service_name"`
	Amount       *Cents `json:"amount"`
	AmountRaw    *Cents `json:"shipping_amount_raw"`
}

// UnmarshalJSON normalises the two rate spellings into one shape.
func (r *Rate) UnmarshalJSON(data []byte) error {
	var wire rateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	name := strings.TrimSpace(wire.ServiceName2)
	if name == "" {
		name = strings.TrimSpace(wire.ServiceName)
	}
	if name == "" {
		name = "Shipping"
	}
	r.ServiceName = name
	switch {
	case wire.AmountRaw != nil:
		r.Amount = *wire.AmountRaw
	case wire.Amount != nil:
		r.Amount = *wire.Amount
	default:
		r.Amount = 0
	}
	return nil
}

// MarshalJSON emits the canonical serviceName/amount spelling used by totals
// and intent requests.
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ServiceName string `json:"serviceName"`
		Amount      Cents  `json:"amount"`
	}{ServiceName: r.ServiceName, Amount: r.Amount})
}

// Totals is the authoritative price breakdown computed by the Bridge.
type Totals struct {
	Subtotal       Cents `json:"subtotal"`
	DiscountTotal  Cents `json:"discount_total"`
	ShippingTotal  Cents `json:"shipping_total"`
	TaxTotal       Cents `json:"tax_total"`
	FeesTotal      Cents `json:"fees_total"`
	PointsDiscount Cents `json:"points_discount"`
	GrandTotal     Cents `json:"grand_total"`
}

// Customer is the result of an email lookup.
type Customer struct {
	UserID          int     `json:"user_id"`
	DefaultBilling  Address `json:"default_billing"`
	DefaultShipping Address `json:"default_shipping"`
	PointsBalance   int     `json:"points_balance"`
}

// RatesRequest asks for shipping quotes for an address and item set.
type RatesRequest struct {
	FunnelID string  `json:"funnel_id"`
	Address  Address `json:"address"`
	Items    []Item  `json:"items"`
}

// RatesResponse wraps the quoted rates.
type RatesResponse struct {
	Rates []Rate `json:"rates"`
}

// TotalsRequest carries the full pricing context for an authoritative recompute.
type TotalsRequest struct {
	FunnelID       string   `json:"funnel_id"`
	Items          []Item   `json:"items"`
	Address        Address  `json:"address"`
	CouponCodes    []string `json:"coupon_codes"`
	SelectedRate   *Rate    `json:"selected_rate,omitempty"`
	CustomerEmail  string   `json:"customer_email,omitempty"`
	PointsToRedeem int      `json:"points_to_redeem"`
}

// IntentCustomer identifies the buyer on an intent request.
type IntentCustomer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// IntentRequest carries the full checkout context for payment-intent creation.
type IntentRequest struct {
	FunnelID        string         `json:"funnel_id"`
	FunnelName      string         `json:"funnel_name"`
	Customer        IntentCustomer `json:"customer"`
	ShippingAddress Address        `json:"shipping_address"`
	Items           []Item         `json:"items"`
	CouponCodes     []string       `json:"coupon_codes"`
	SelectedRate    *Rate          `json:"selected_rate,omitempty"`
	PointsToRedeem  int            `json:"points_to_redeem"`
}

// Intent is the Bridge's handle on a created payment intent.
type Intent struct {
	ClientSecret string `json:"client_secret"`
	Publishable  string `json:"publishable"`
	OrderDraftID string `json:"order_draft_id"`
	AmountCents  int64  `json:"amount_cents"`
}

// Status reports whether the funnel is enabled for the current environment.
type Status struct {
	OK          bool   `json:"ok"`
	Environment string `json:"environment"`
	Mode        string `json:"mode"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// UpsellChargeRequest submits a one-time additional charge against a parent order.
type UpsellChargeRequest struct {
	ParentOrderID  int64  `json:"parent_order_id"`
	Items          []Item `json:"items,omitempty"`
	AmountOverride *Cents `json:"amount_override,omitempty"`
	FunnelName     string `json:"funnel_name,omitempty"`
	FeeLabel       string `json:"fee_label,omitempty"`
}

// UpsellChargeResponse acknowledges the upsell charge.
type UpsellChargeResponse struct {
	OK      bool  `json:"ok"`
	OrderID int64 `json:"order_id"`
}

// ResolveOrderResponse maps a payment-intent reference to an order id once
// the Bridge has finished persisting the order.
type ResolveOrderResponse struct {
	OrderID int64 `json:"order_id,omitempty"`
}

// OrderSummaryItem is one finalized order line.
type OrderSummaryItem struct {
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	ProductID int    `json:"product_id,omitempty"`
	Qty       int    `json:"qty"`
	LineTotal Cents  `json:"line_total"`
}

// OrderSummary is the read-only view of a finalized order.
type OrderSummary struct {
	OrderID        int64              `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	Items          []OrderSummaryItem `json:"items"`
	Subtotal       Cents              `json:"subtotal"`
	ItemsDiscount  Cents              `json:"items_discount"`
	ShippingTotal  Cents              `json:"shipping_total"`
	FeesTotal      Cents              `json:"fees_total"`
	PointsRedeemed int                `json:"points_redeemed,omitempty"`
}
