package http

import (
	"net/http"
	"time"

	_ "github.com/DRSN-tech/visual-search/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	cfg    *cfg.HTTPConfig
	logger logger.Logger
}

func NewRouter(router *chi.Mux, cfg *cfg.HTTPConfig, logger logger.Logger) *Router {
	return &Router{router: router, cfg: cfg, logger: logger}
}

func (r *Router) Init(searchUC usecase.SearchUC, analyzeUC usecase.AnalyzeUC) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)
	r.router.Use(MetricsMiddleware)
	r.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.router.Handle("/metrics", promhttp.Handler())
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(r.cfg.SwaggerURL), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		searchHandler := NewSearchHandler(searchUC, r.cfg.MaxImageSize, r.logger)
		registerSearchRoutes(v1, searchHandler)

		analyzeHandler := NewAnalyzeHandler(analyzeUC, r.cfg.MaxImageSize, r.logger)
		registerAnalyzeRoutes(v1, analyzeHandler, r.cfg.AnalyzeRateLimit)
	})
}

func registerSearchRoutes(router chi.Router, h *SearchHandler) {
	router.Post("/search", h.search)
	router.Post("/recommendations", h.recommend)
	router.Get("/products/{id}/similar", h.similar)
}

// registerAnalyzeRoutes ограничивает частоту /analyze: каждый запрос стоит вызова платной модели.
func registerAnalyzeRoutes(router chi.Router, h *AnalyzeHandler, perMinute int) {
	router.Group(func(g chi.Router) {
		if perMinute > 0 {
			g.Use(httprate.LimitByIP(perMinute, time.Minute))
		}
		g.Post("/analyze", h.analyze)
	})
}
