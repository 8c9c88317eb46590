package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/invoicegen/platform/internal/auth"
	"github.com/invoicegen/platform/internal/domain"
	"github.com/invoicegen/platform/internal/ratelimit"
)

// Dependencies carries what the handlers need. The limiters are optional.
type Dependencies struct {
	Logger      *slog.Logger
	Domain      domain.Container
	Issuer      *auth.Issuer
	Auth        *auth.Middleware
	AuthLimiter *ratelimit.Limiter
	AILimiter   *ratelimit.Limiter
	Version     string
}

// Register attaches API routes to the provided router.
func Register(router *mux.Router, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"time":    time.Now().UTC().Format(time.RFC3339),
			"server":  "invoicegen-api",
			"version": deps.Version,
		})
	}).Methods(http.MethodGet)

	protect := func(h http.Handler) http.Handler { return deps.Auth.Require(h) }

	registerAuthRoutes(api, logger, deps, protect)
	registerInvoiceRoutes(api, logger, deps.Domain.Invoices, protect)
	registerAIRoutes(api, logger, deps.Domain.Assistant, func(h http.Handler) http.Handler {
		return protect(limit(deps.AILimiter, h))
	})
}

func limit(l *ratelimit.Limiter, h http.Handler) http.Handler {
	if l == nil {
		return h
	}
	return l.Middleware(h)
}
