package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DisabledFunnelRouter serves a funnel that the store has switched off:
// every request redirects to the configured destination while the probe
// endpoints keep answering so the deployment stays healthy.
func DisabledFunnelRouter(redirectURL string, health *HealthHandlers) chi.Router {
	if health == nil {
		health = NewHealthHandlers()
	}
	if redirectURL == "" {
		redirectURL = "/"
	}

	r := chi.NewRouter()
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, redirectURL, http.StatusTemporaryRedirect)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, redirectURL, http.StatusTemporaryRedirect)
	})
	return r
}
