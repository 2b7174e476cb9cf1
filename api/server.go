/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the reporting frontend

ROUTE GROUPS:
  /api/imports/*     CSV/XLSX ingestion
  /api/capacity/*    Utilization queries
  /api/finance/*     Variance reconciliation
  /api/holidays/*    Calendar data
  /api/workstreams, /api/rates, /api/allocations  Reference/collaborator data
  /api/fixtures/*    Demo data seeding

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Import routes
		r.Route("/imports", func(r chi.Router) {
			r.Post("/timesheets", h.ImportTimesheets)
			r.Post("/actuals", h.ImportActuals)
			r.Post("/actuals/categorize", h.CategorizeActuals)
			r.Post("/resources", h.ImportResources)
		})

		// Resource routes
		r.Get("/resources", h.ListResources)

		// Capacity routes
		r.Post("/commitments", h.CreateCommitment)
		r.Route("/capacity", func(r chi.Router) {
			r.Get("/", h.GetAllCapacities)
			r.Get("/{resourceID}", h.GetCapacity)
		})
		r.Post("/allocations", h.CreateAllocation)

		// Finance routes
		r.Route("/finance", func(r chi.Router) {
			r.Get("/ledger", h.GetFinanceLedger)
			r.Get("/summary", h.GetFinanceSummary)
		})

		// Calendar routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})

		// Finance reference data
		r.Post("/workstreams", h.SaveWorkstream)
		r.Post("/rates", h.SaveLabourRate)

		// Demo fixtures
		r.Post("/fixtures/demo", h.LoadDemoFixtures)
	})

	return r
}
