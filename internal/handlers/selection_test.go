package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hp-funnel/api/internal/domain"
)

func TestSelectionRoundTripThroughCookie(t *testing.T) {
	router := NewRouter(WithSelectionRoutes(NewSelectionHandlers().Routes))

	put := httptest.NewRequest(http.MethodPut, "/api/v1/selection",
		strings.NewReader(`{"extras":["iodine","ncd"],"twoPerson":true}`))
	pr := httptest.NewRecorder()
	router.ServeHTTP(pr, put)

	if pr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", pr.Code, pr.Body.String())
	}

	cookies := pr.Result().Cookies()
	var selectionCookie *http.Cookie
	for _, cookie := range cookies {
		if cookie.Name == domain.SelectionCookieName {
			selectionCookie = cookie
		}
	}
	if selectionCookie == nil {
		t.Fatalf("expected %s cookie to be set", domain.SelectionCookieName)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil)
	get.AddCookie(selectionCookie)
	gr := httptest.NewRecorder()
	router.ServeHTTP(gr, get)

	var body struct {
		Selection struct {
			Extras    []string `json:"extras"`
			TwoPerson bool     `json:"twoPerson"`
		} `json:"selection"`
		Pricing struct {
			TotalCents int64 `json:"total_cents"`
		} `json:"pricing"`
	}
	if err := json.Unmarshal(gr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Selection.Extras) != 2 || !body.Selection.TwoPerson {
		t.Fatalf("selection did not survive the round trip: %+v", body.Selection)
	}
	if body.Pricing.TotalCents == 0 {
		t.Fatal("expected a non-zero kit price")
	}
}

func TestSelectionMissingCookieYieldsBaseKit(t *testing.T) {
	router := NewRouter(WithSelectionRoutes(NewSelectionHandlers().Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var body struct {
		Selection struct {
			Extras    []string `json:"extras"`
			TwoPerson bool     `json:"twoPerson"`
		} `json:"selection"`
		Pricing struct {
			OriginalCents int64 `json:"original_cents"`
		} `json:"pricing"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Selection.Extras == nil || len(body.Selection.Extras) != 0 || body.Selection.TwoPerson {
		t.Fatalf("expected the empty selection, got %+v", body.Selection)
	}
	if body.Pricing.OriginalCents != 12600 {
		t.Fatalf("expected base kit pricing, got %d", body.Pricing.OriginalCents)
	}
}

func TestSelectionMalformedBodyFallsBack(t *testing.T) {
	router := NewRouter(WithSelectionRoutes(NewSelectionHandlers().Routes))

	put := httptest.NewRequest(http.MethodPut, "/api/v1/selection", strings.NewReader("{broken"))
	pr := httptest.NewRecorder()
	router.ServeHTTP(pr, put)

	if pr.Code != http.StatusOK {
		t.Fatalf("expected malformed selection to fall back, got %d", pr.Code)
	}
	var body struct {
		Selection struct {
			Extras []string `json:"extras"`
		} `json:"selection"`
	}
	if err := json.Unmarshal(pr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Selection.Extras) != 0 {
		t.Fatalf("expected the empty selection, got %+v", body.Selection)
	}
}
