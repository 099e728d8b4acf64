package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bulwark/internal/identity"
)

// NewRouter mounts the reference endpoints with the full middleware chain.
func NewRouter(h *Handler, tokens *identity.TokenService, serviceKeyHash string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestContext)
	r.Use(Authenticate(tokens, logger))

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", h.handleChat)
		r.Post("/purchases", h.handlePurchase)
		r.Get("/downloads", h.handleDownload)
		r.Post("/validate/url", h.handleURLCheck)
		r.Post("/validate/path", h.handlePathCheck)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireServiceKey(serviceKeyHash, logger))
		r.Post("/sweep", h.handleSweep)
	})

	return r
}
