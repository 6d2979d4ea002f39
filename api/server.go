/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers. The same route
  set is mounted once per document kind; the handler closures carry the
  kind so the right engine serves each subtree.

ROUTER: chi

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. requestLogger: Structured request logging via zap
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/quotes/*           Quote documents, commits, invoices, revert
  /api/purchase-orders/*  Purchase orders, commits, receivings, revert
  /api/scenarios/*        Demo scenarios
  /healthz                Liveness probe

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/document-engine/purchase"
	"github.com/warp/document-engine/quote"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, logger *zap.Logger, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/quotes", documentRoutes(h, quote.Kind, "invoices"))
		r.Route("/purchase-orders", documentRoutes(h, purchase.Kind, "receivings"))

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// documentRoutes mounts the per-kind route set. label is the plural URL
// segment for derived records ("invoices" or "receivings").
func documentRoutes(h *Handler, kind, label string) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", h.CreateDocument(kind))
		r.Get("/{id}", h.GetDocument(kind))
		r.Post("/{id}/status", h.ChangeStatus(kind))
		r.Post("/{id}/commit", h.Commit(kind))

		r.Post("/{id}/"+label, h.CreateDerivedRecord(kind))
		r.Get("/{id}/"+label, h.ListDerivedRecords(kind))
		r.Put("/"+label+"/{recordID}/status", h.UpdateDerivedRecordStatus(kind))

		r.Get("/{id}/snapshots", h.ListSnapshots(kind))
		r.Get("/{id}/revert-preview", h.PreviewRevert(kind))
		r.Post("/{id}/revert", h.Revert(kind))
	}
}

// requestLogger logs one line per request with method, path, status and
// duration. Uses chi's WrapResponseWriter to capture the status code.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
