// Package http provides the HTTP delivery layer of the link service: the
// public redirect endpoint and the authenticated link management API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/docs"
	"github.com/vadimbarashkov/shortlink/pkg/middleware/recoverer"

	httpSwagger "github.com/swaggo/http-swagger"
)

const defaultCountryHeader = "CF-IPCountry"

// RouterConfig carries the delivery settings taken from the service config.
type RouterConfig struct {
	JWTSecret     string
	CountryHeader string
	RateLimit     RateLimitConfig
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes.
func NewRouter(
	logger *httplog.Logger,
	cfg RouterConfig,
	links linkUseCase,
	resolver resolver,
	stats statsProvider,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		ExposedHeaders:   []string{"Location", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(docs.Swagger)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlePing)

		sh := &statsHandler{stats: stats}
		r.Get("/stats/clicks", sh.clicks)

		r.Route("/links", func(r chi.Router) {
			h := newLinkHandler(links, validator.New())

			r.Use(authenticate([]byte(cfg.JWTSecret)))

			r.With(createLimiter(cfg.RateLimit)...).Post("/", h.createLink)
			r.Get("/", h.listLinks)
			r.Get("/{id}", h.getLink)
			r.Delete("/{id}", h.deleteLink)
		})
	})

	countryHeader := cfg.CountryHeader
	if countryHeader == "" {
		countryHeader = defaultCountryHeader
	}

	rh := &redirectHandler{resolver: resolver, countryHeader: countryHeader}
	r.Get("/{shortCode}", rh.redirect)

	return r
}

func createLimiter(cfg RateLimitConfig) []func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return nil
	}
	return []func(http.Handler) http.Handler{rateLimitByOwner(newOwnerLimiter(cfg))}
}
