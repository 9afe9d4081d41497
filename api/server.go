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
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*  Employee directory, buckets, summaries, submission
  /api/requests/*   Request lifecycle (approve/reject/cancel/revise)
  /api/reports/*    Company-wide reporting
  /api/admin/*      Grants and provisioning
  /healthz          Liveness probe

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
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Put("/", h.PutEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/buckets", h.GetBuckets)
			r.Get("/{id}/summary", h.GetMonthlySummary)
			r.Post("/{id}/requests", h.SubmitRequest)
		})

		// Request lifecycle routes
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Get("/{key}", h.GetRequest)
			r.Put("/{key}", h.UpdateRequest)
			r.Delete("/{key}", h.DeleteRequest)
			r.Get("/{key}/breakdown", h.GetBreakdown)
			r.Post("/{key}/approve", h.ApproveRequest)
			r.Post("/{key}/reject", h.RejectRequest)
			r.Post("/{key}/cancel", h.CancelRequest)
		})

		// Reporting routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", h.GetMonthlyReport)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/grants", h.CreateGrant)
			r.Post("/grants/overtime", h.GrantOvertime)
			r.Post("/provision", h.ProvisionAnnual)
		})
	})

	return r
}
