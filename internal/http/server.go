package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/movielog/internal/auth"
	"github.com/Clark-Hu/movielog/internal/config"
	"github.com/Clark-Hu/movielog/internal/ledger"
	"github.com/Clark-Hu/movielog/internal/library"
	"github.com/Clark-Hu/movielog/internal/ratelimit"
	"github.com/Clark-Hu/movielog/internal/store"
)

// Services are the core components the handlers delegate to.
// A nil Limiter disables rate limiting.
type Services struct {
	Ledger  *ledger.Service
	Library *library.Service
	Auth    *auth.Service
	Limiter ratelimit.Limiter
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	store   *store.Store
	ledger  *ledger.Service
	library *library.Service
	auth    *auth.Service
	limiter ratelimit.Limiter
	logger  *slog.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, st *store.Store, svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(realIP(cfg.TrustedProxies))
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:     cfg,
		store:   st,
		ledger:  svc.Ledger,
		library: svc.Library,
		auth:    svc.Auth,
		limiter: svc.Limiter,
		logger:  logger,
		router:  r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown endpoint")
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, rateLimitKey, s.logger))
		}

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", s.handleListMovies)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMovie)
				r.Get("/rateUser", s.handleGetCallerRating)
				r.Post("/rates", s.handleCreateRating)
				r.Put("/rates/{rateId}", s.handleUpdateRating)
				r.Delete("/rates/{rateId}", s.handleDeleteRating)
				r.Get("/reviews", s.handleListReviews)
				r.Post("/reviews", s.handleCreateReview)
				r.Get("/reviews/{reviewId}", s.handleGetReview)
				r.Put("/reviews/{reviewId}", s.handleUpdateReview)
				r.Delete("/reviews/{reviewId}", s.handleDeleteReview)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Get("/status", s.handleStatus)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.handleSignup)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetUser)
				r.Put("/", s.handleUpdateUser)
				r.Delete("/", s.handleDeleteUser)
				r.Get("/rates", s.handleUserRatings)
				r.Get("/reviews", s.handleUserReviews)
				r.Get("/lists", s.handleUserLists)
				r.Post("/lists", s.handleCreateList)
				r.Get("/lists/{listId}", s.handleGetList)
				r.Put("/lists/{listId}", s.handleUpdateList)
				r.Delete("/lists/{listId}", s.handleDeleteList)
				r.Get("/watchlist", s.handleGetWatchlist)
				r.Put("/watchlist", s.handleReplaceWatchlist)
			})
		})
	})
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unavailable")
		return
	}
	resp := healthResponse{Status: "ok"}
	if stat := s.store.Stats(); stat != nil {
		resp.Pool = &poolStats{
			TotalConns:    stat.TotalConns(),
			IdleConns:     stat.IdleConns(),
			AcquiredConns: stat.AcquiredConns(),
			MaxConns:      stat.MaxConns(),
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string     `json:"status"`
	Pool   *poolStats `json:"pool,omitempty"`
}

type poolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}
