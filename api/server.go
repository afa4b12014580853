/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/stock/*       Movement primitives (receive, issue, adjust)
  /api/quants/*      Quantity records and their ledgers
  /api/holds/*       Reservation lifecycle
  /api/plans/*       Production planning
  /api/products/*    Catalog lookup and availability
  /api/positions/*   Position setup
  /api/batches/*     Lot metadata
  /api/alerts/*      Min-stock thresholds
  /api/admin/*       Operational actions (sweep)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Movement primitives
		r.Route("/stock", func(r chi.Router) {
			r.Post("/receive", h.Receive)
			r.Post("/issue", h.Issue)
			r.Post("/adjust", h.Adjust)
		})

		// Quantity records
		r.Route("/quants", func(r chi.Router) {
			r.Get("/", h.ListQuants)
			r.Get("/{id}", h.GetQuant)
			r.Get("/{id}/moves", h.QuantMoves)
			r.Post("/{id}/recalculate", h.Recalculate)
		})

		// Hold lifecycle
		r.Route("/holds", func(r chi.Router) {
			r.Get("/", h.ListHolds)
			r.Post("/", h.CreateHold)
			r.Get("/{id}", h.GetHold)
			r.Post("/{id}/confirm", h.ConfirmHold)
			r.Post("/{id}/release", h.ReleaseHold)
			r.Post("/{id}/fulfill", h.FulfillHold)
		})

		// Production planning
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.Plan)
			r.Post("/replan", h.Replan)
			r.Post("/realize", h.Realize)
		})

		// Catalog and availability
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.SearchProducts)
			r.Get("/{sku}", h.GetProduct)
			r.Get("/{sku}/availability", h.Availability)
		})

		// Position setup
		r.Route("/positions", func(r chi.Router) {
			r.Get("/", h.ListPositions)
			r.Post("/", h.CreatePosition)
			r.Get("/{code}", h.GetPosition)
		})

		// Lot metadata
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.CreateBatch)
			r.Get("/{code}", h.GetBatch)
		})

		// Min-stock alerts
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/", h.CreateAlert)
			r.Post("/check", h.CheckAlerts)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		// Admin operations
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.Sweep)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
