// Package server exposes a fitted regional ensemble over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/mosaic/internal/store"
	"github.com/sells-group/mosaic/pkg/regional"
)

// Options configures the HTTP server.
type Options struct {
	// AllowedOrigins is passed to the CORS middleware; empty means "*".
	AllowedOrigins []string

	// Smooth is the default smoothing radius applied when a request does
	// not carry its own.
	Smooth regional.Param

	// Workers bounds prediction parallelism per request.
	Workers int
}

// Server routes prediction and run-inspection requests.
type Server struct {
	ensemble *regional.Ensemble
	store    store.Store
	opts     Options
	router   chi.Router
}

// New assembles the router. The store may be nil, in which case run
// endpoints respond 404.
func New(ens *regional.Ensemble, st store.Store, opts Options) *Server {
	s := &Server{
		ensemble: ens,
		store:    st,
		opts:     opts,
		router:   chi.NewRouter(),
	}
	s.mountRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) mountRoutes() {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
		r.Get("/regions", s.handleRegions)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
