package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
	"matrimony-subscription/internal/infra/worker"
	"matrimony-subscription/internal/usecase"
)

// JobSubmitter runs best-effort background work, e.g. *worker.Pool.
type JobSubmitter interface {
	Submit(ctx context.Context, name string, task worker.Task) error
}

type Deps struct {
	Quota    usecase.QuotaUseCase
	Subs     usecase.SubscriptionUseCase
	Payments usecase.PaymentUseCase
	Catalog  usecase.CatalogUseCase
	Identity adapter.IdentityVerifier
	Jobs     JobSubmitter
	Limiter  ContactLimiter // optional
	// Ready reports store reachability for /ready. Optional.
	Ready func(ctx context.Context) error
}

type Options struct {
	Port            int
	RequestTimeout  time.Duration
	RateLimitWindow time.Duration
	Logger          *zerolog.Logger
}

// Server is the HTTP surface of the contact gate and subscription management.
type Server struct {
	deps   Deps
	opts   Options
	log    *zerolog.Logger
	router chi.Router
	srv    *http.Server
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	s := &Server{deps: deps, opts: opts, log: logging.Component(opts.Logger, "http")}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/ready", s.ready)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Auth(s.deps.Identity, s.log))

		r.Get("/packages", s.listPackages)
		r.Get("/contacts/{profileID}", s.checkContact)
		r.With(RateLimit(s.deps.Limiter, s.opts.RateLimitWindow, s.log)).
			Post("/contacts/{profileID}", s.recordContact)

		r.Get("/me/subscription", s.mySubscription)
		r.Get("/me/usage", s.myUsage)
		r.Get("/me/purchases", s.myPurchases)
		r.Post("/payments/confirm", s.confirmPayment)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin())
			r.Post("/users/{userID}/activate", s.adminActivate)
			r.Post("/users/{userID}/extend", s.adminExtend)
			r.Post("/users/{userID}/expire", s.adminExpire)
			r.Post("/users/{userID}/cancel", s.adminCancel)
			r.Get("/users/{userID}/subscription", s.adminSubscription)
			r.Post("/catalog/sync", s.adminCatalogSync)
			r.Get("/catalog/drift", s.adminCatalogDrift)
			r.Get("/purchases", s.adminPurchases)
		})
	})
	return r
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.opts.Port).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("readiness probe failed")
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
