package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hp-funnel/api/internal/domain"
	"github.com/hp-funnel/api/internal/platform/httpx"
)

const (
	maxSelectionBodySize  = 4 * 1024
	selectionCookieMaxAge = 180 * 24 * time.Hour
)

// SelectionHandlers round-trips the kit selection through a durable browser
// cookie so the configuration survives page reloads between the kit builder
// and checkout.
type SelectionHandlers struct{}

// NewSelectionHandlers constructs the selection handlers.
func NewSelectionHandlers() *SelectionHandlers {
	return &SelectionHandlers{}
}

// Routes wires the selection endpoints onto the provided router.
func (h *SelectionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/selection", h.getSelection)
	r.Put("/selection", h.putSelection)
}

type selectionPayload struct {
	Extras    []string `json:"extras"`
	TwoPerson bool     `json:"twoPerson"`
}

type selectionResponse struct {
	Selection selectionPayload `json:"selection"`
	Pricing   kitPriceResponse `json:"pricing"`
}

func (h *SelectionHandlers) getSelection(w http.ResponseWriter, r *http.Request) {
	sel := selectionFromCookie(r)
	writeJSONResponse(w, http.StatusOK, buildSelectionResponse(sel))
}

func (h *SelectionHandlers) putSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxSelectionBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	// Malformed payloads decode to the empty selection rather than failing;
	// the kit always has at least its base contents.
	sel := domain.DecodeKitSelection(string(body))
	writeSelectionCookie(w, sel)
	writeJSONResponse(w, http.StatusOK, buildSelectionResponse(sel))
}

func buildSelectionResponse(sel domain.KitSelection) selectionResponse {
	extras := sel.Extras
	if extras == nil {
		extras = []string{}
	}
	pricing := domain.KitPrice(sel)
	return selectionResponse{
		Selection: selectionPayload{Extras: extras, TwoPerson: sel.TwoPerson},
		Pricing: kitPriceResponse{
			OriginalCents: pricing.OriginalCents,
			TotalCents:    pricing.TotalCents,
			SavingsCents:  pricing.SavingsCents,
		},
	}
}

// selectionFromCookie reads the kit configuration cookie. Missing or
// undecodable cookies yield the empty selection.
func selectionFromCookie(r *http.Request) domain.KitSelection {
	cookie, err := r.Cookie(domain.SelectionCookieName)
	if err != nil {
		return domain.KitSelection{Extras: []string{}}
	}
	raw, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return domain.KitSelection{Extras: []string{}}
	}
	return domain.DecodeKitSelection(string(raw))
}

func writeSelectionCookie(w http.ResponseWriter, sel domain.KitSelection) {
	encoded := base64.URLEncoding.EncodeToString([]byte(domain.EncodeKitSelection(sel)))
	http.SetCookie(w, &http.Cookie{
		Name:     domain.SelectionCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(selectionCookieMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
}
