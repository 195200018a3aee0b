package httpx

import (
	"encoding/json"
	"net/http"

	"oaiserve/internal/config"
	"oaiserve/internal/http/handlers"
	middlewarex "oaiserve/internal/http/middleware"
	"oaiserve/internal/services/harvest"
	"oaiserve/internal/services/ingest"
	"oaiserve/internal/store/repositories"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDependencies holds all dependencies for the HTTP router
type RouterDependencies struct {
	Config     config.Cfg
	Dispatcher *harvest.Dispatcher
	Sources    repositories.SourceRepository
	Refresher  *ingest.Refresher
}

// NewRouter creates the HTTP router
func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"endpoint": "/" + deps.Config.App.EndpointName,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Protocol endpoint (public, throttled per client)
	r.Group(func(r chi.Router) {
		r.Use(middlewarex.RateLimit(deps.Config.Sec.RateLimitPerMin))

		oai := gzhttp.GzipHandler(handlers.OAI(deps.Dispatcher))
		path := "/" + deps.Config.App.EndpointName
		r.Method(http.MethodGet, path, oai)
		r.Method(http.MethodPost, path, oai)
	})

	// Admin routes (protected by admin token)
	if deps.Sources != nil && deps.Refresher != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarex.AdminAuth(deps.Config))

			r.Get("/sources", handlers.ListSources(deps.Sources))
			r.Post("/sources", handlers.CreateSource(deps.Sources))
			r.Post("/sources/{id}/refresh", handlers.RefreshSource(deps.Refresher))
		})
	}

	return r
}
