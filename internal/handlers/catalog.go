package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hp-funnel/api/internal/domain"
)

// CatalogHandlers exposes the product catalog and kit price calculation.
type CatalogHandlers struct{}

// NewCatalogHandlers constructs the catalog handlers.
func NewCatalogHandlers() *CatalogHandlers {
	return &CatalogHandlers{}
}

// Routes wires the catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/catalog", h.getCatalog)
	r.Get("/kit/price", h.getKitPrice)
}

type catalogProductPayload struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Dosage          string `json:"dosage,omitempty"`
	PriceCents      int64  `json:"price_cents"`
	DiscountedCents int64  `json:"discounted_price_cents"`
	SKU             string `json:"sku,omitempty"`
	ProductID       int    `json:"product_id,omitempty"`
}

type catalogResponse struct {
	Groups map[string][]catalogProductPayload `json:"groups"`
}

func (h *CatalogHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	groups := make(map[string][]catalogProductPayload)
	for _, group := range []domain.ProductGroup{domain.GroupBaseKit, domain.GroupEnhancement, domain.GroupPostPurchase} {
		products := domain.ProductsFor(group)
		payload := make([]catalogProductPayload, 0, len(products))
		for _, p := range products {
			payload = append(payload, catalogProductPayload{
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
		groups[string(group)] = payload
	}
	writeJSONResponse(w, http.StatusOK, catalogResponse{Groups: groups})
}

type kitPriceResponse struct {
	OriginalCents int64 `json:"original_cents"`
	TotalCents    int64 `json:"total_cents"`
	SavingsCents  int64 `json:"savings_cents"`
}

func (h *CatalogHandlers) getKitPrice(w http.ResponseWriter, r *http.Request) {
	sel := domain.KitSelection{Extras: []string{}}
	if raw := strings.TrimSpace(r.URL.Query().Get("extras")); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				sel.Extras = append(sel.Extras, key)
			}
		}
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("two_person"))) {
	case "1", "true", "yes":
		sel.TwoPerson = true
	}

	pricing := domain.KitPrice(sel)
	writeJSONResponse(w, http.StatusOK, kitPriceResponse{
		OriginalCents: pricing.OriginalCents,
		TotalCents:    pricing.TotalCents,
		SavingsCents:  pricing.SavingsCents,
	})
}
