package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// newRouter constructs the HTTP route tree.
func newRouter(h *handler, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", h.health)

	r.Route("/v1/documents", func(dr chi.Router) {
		dr.Get("/", h.listDocuments)
		dr.Post("/", h.createDocument)

		dr.Route("/{documentID}", func(item chi.Router) {
			item.Get("/", h.getDocument)
			item.Delete("/", h.deleteDocument)
			item.Get("/scene", h.getScene)
			item.Get("/tree", h.getTree)
			item.Get("/constellations", h.getConstellations)
		})
	})

	return r
}

// requestLogger logs one debug line per request with method, path, and duration.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start).Round(time.Millisecond))
		})
	}
}
