// Package httpapi serves the city report JSON API, region report pages and
// the chat endpoint.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joelkehle/roimap/internal/cityconfig"
	"github.com/joelkehle/roimap/internal/render"
	"github.com/joelkehle/roimap/internal/report"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// CityService is the read side of the viewer.
type CityService interface {
	Cities() []cityconfig.City
	Report(ctx context.Context, cityKey string) (*report.Result, error)
	Region(ctx context.Context, cityKey, regionID string) (*report.Report, *report.Region, error)
}

// Answerer answers a question about one region's data.
type Answerer interface {
	Answer(ctx context.Context, question string, region map[string]any) string
}

// HTTPObserver records request latency by route pattern.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

type Config struct {
	Addr        string
	Log         zerolog.Logger
	Cities      CityService
	Chat        Answerer           // nil disables POST /api/chat
	PDF         render.PDFRenderer // nil disables report.pdf
	Metrics     http.Handler       // served at /metrics when set
	Observer    HTTPObserver
	CORSOrigins []string
}

type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	cities   CityService
	chat     Answerer
	pdf      render.PDFRenderer
	observer HTTPObserver
}

func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		cities:   cfg.Cities,
		chat:     cfg.Chat,
		pdf:      cfg.PDF,
		observer: cfg.Observer,
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{warningsHeader},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.handleHealth)
	if cfg.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/cities", s.handleCities)
		r.Post("/chat", s.handleChat)
		r.Route("/city-data/{cityID}", func(r chi.Router) {
			r.Get("/", s.handleCityData)
			r.Get("/regions/{regionID}/report", s.handleRegionReport)
			r.Get("/regions/{regionID}/report.pdf", s.handleRegionPDF)
		})
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errNotFound("route not found"))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, &apiError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"})
	})

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until the server stops. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.observer != nil {
			s.observer.ObserveHTTP(route, r.Method, status, elapsed)
		}

		ev := s.log.Info()
		if status >= 500 {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
