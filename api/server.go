/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the front-desk UI
  5. Auth:       Bearer JWT on everything under /api (see auth.go)

ROUTE GROUPS:
  /healthz              Liveness, unauthenticated
  /api/shifts/*         Shift lifecycle
  /api/wallet           Channel balances
  /api/entries/*        Ledger entries
  /api/handovers/*      Pending handovers, manual confirm
  /api/staff/*          Directory and daily summaries
  /api/scenarios/*      Demo data loaders (only when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/frontdesk/cashdesk"
)

// RouterConfig holds router-level settings.
type RouterConfig struct {
	Auth           AuthConfig
	AllowedOrigins []string
	// AccessLog enables chi's request logger.
	AccessLog bool
	// Scenarios mounts the demo scenario endpoints when non-nil.
	Scenarios *ScenarioHandler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	manager := RequireRole(cashdesk.RoleManager)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthRequired(cfg.Auth))

		// Shift routes
		r.Route("/shifts", func(r chi.Router) {
			r.Post("/", h.OpenShift)
			r.Get("/current", h.CurrentShift)
			r.Get("/{id}", h.GetShift)
			r.Get("/{id}/summary", h.GetShiftSummary)
			r.Get("/{id}/entries", h.GetShiftEntries)
			r.Post("/{id}/close", h.CloseShift)
		})

		r.Get("/wallet", h.GetWallet)

		// Ledger entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", h.RecordEntry)
			r.With(manager).Post("/{id}/confirm", h.ConfirmEntry)
			r.With(manager).Post("/{id}/reject", h.RejectEntry)
		})

		// Handover routes
		r.Route("/handovers", func(r chi.Router) {
			r.Get("/pending", h.ListPendingHandovers)
			r.With(manager).Post("/{id}/confirm", h.ConfirmHandover)
		})

		// Staff routes
		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.With(manager).Post("/", h.CreateStaff)
			r.Get("/{id}/daily", h.GetDailySummary)
		})

		if cfg.Scenarios != nil {
			r.Route("/scenarios", func(r chi.Router) {
				r.Use(manager)
				r.Get("/", cfg.Scenarios.ListScenarios)
				r.Post("/load", cfg.Scenarios.LoadScenario)
			})
		}
	})

	return r
}
