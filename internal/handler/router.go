package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	composeHandler "github.com/leafpost/leafpost/internal/handler/compose"
	personaHandler "github.com/leafpost/leafpost/internal/handler/persona"
	"github.com/leafpost/leafpost/internal/middleware"
	composeService "github.com/leafpost/leafpost/internal/service/compose"
	"github.com/leafpost/leafpost/internal/service/directory"
	"github.com/leafpost/leafpost/internal/service/history"
	"github.com/leafpost/leafpost/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(dir *directory.Service, composeSvc *composeService.Service, log *history.Log, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		personaHandler.New(dir).RegisterRoutes(api)
		composeHandler.New(composeSvc, log, logger).RegisterRoutes(api)
	})

	return r
}
