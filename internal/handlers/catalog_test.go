package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCatalogEndpoint(t *testing.T) {
	router := NewRouter(WithCatalogRoutes(NewCatalogHandlers().Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body catalogResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(body.Groups["base_kit"]) != 3 {
		t.Fatalf("expected 3 base kit products, got %d", len(body.Groups["base_kit"]))
	}
	if len(body.Groups["enhancement"]) != 3 || len(body.Groups["post_purchase"]) != 2 {
		t.Fatalf("unexpected group sizes: %v", body.Groups)
	}

	serraxym := body.Groups["base_kit"][1]
	if serraxym.PriceCents != 6200 || serraxym.DiscountedCents != 5580 {
		t.Fatalf("unexpected serraxym pricing: %+v", serraxym)
	}
}

func TestKitPriceEndpoint(t *testing.T) {
	router := NewRouter(WithCatalogRoutes(NewCatalogHandlers().Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/kit/price?extras=iodine,ncd&two_person=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body kitPriceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.OriginalCents != 39400 {
		t.Fatalf("expected original 39400, got %d", body.OriginalCents)
	}
	if body.TotalCents != 35460 {
		t.Fatalf("expected total 35460, got %d", body.TotalCents)
	}
}

func TestKitPriceEndpointDefaults(t *testing.T) {
	router := NewRouter(WithCatalogRoutes(NewCatalogHandlers().Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/kit/price", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var body kitPriceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.OriginalCents != 12600 || body.TotalCents != 11340 {
		t.Fatalf("expected base kit pricing, got %+v", body)
	}
}
