// Package httptransport assembles the chi router: shared middleware, the
// public verification surface, issuer routes behind bearer auth and operator
// routes behind the admin token.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	credhandler "certledger/internal/credential/handler"
	ledgerhandler "certledger/internal/ledger/handler"
	"certledger/internal/platform/health"
	verifyhandler "certledger/internal/verification/handler"
	"certledger/pkg/platform/middleware/admin"
	"certledger/pkg/platform/middleware/auth"
	"certledger/pkg/platform/middleware/metadata"
	"certledger/pkg/platform/middleware/request"
	"certledger/pkg/platform/middleware/requesttime"
)

// Handlers groups the route owners mounted by NewRouter.
type Handlers struct {
	Credentials  *credhandler.Handler
	Verification *verifyhandler.Handler
	Ledger       *ledgerhandler.Handler
	Health       *health.Handler
	// Metrics serves the Prometheus exposition format. Optional.
	Metrics http.Handler
}

// Config carries the cross-cutting router dependencies.
type Config struct {
	Logger         *slog.Logger
	TokenValidator auth.JWTValidator
	AdminToken     string
	AdminTokenHash string
	TrustedProxies []netip.Prefix
	RequestMetrics *request.Metrics
}

// NewRouter wires every endpoint with its middleware.
func NewRouter(h Handlers, cfg Config) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.New(cfg.TrustedProxies).Handler)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(cfg.RequestMetrics))
	r.Use(request.ContentTypeJSON)

	if h.Health != nil {
		h.Health.Register(r)
	}
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// Public: anyone holding a fingerprint may verify it. A valid token only
	// adds the caller to the recorded attempt.
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(cfg.TokenValidator, logger))
		h.Verification.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.TokenValidator, logger))
		h.Credentials.Register(r)
		h.Ledger.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.Require(adminMatcher(cfg), logger))
		h.Credentials.RegisterAdmin(r)
		h.Verification.RegisterHistory(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})

	return r
}

func adminMatcher(cfg Config) admin.Matcher {
	if cfg.AdminTokenHash != "" {
		return admin.HashedToken(cfg.AdminTokenHash)
	}
	return admin.StaticToken(cfg.AdminToken)
}
