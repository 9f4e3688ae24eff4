package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gym-membership/internal/config"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/infra/metrics"
	"gym-membership/internal/infra/sched"
	"gym-membership/internal/usecase"
)

// Sweeper runs one expiry pass; sched.ExpiryWorker implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (*usecase.ExpireResult, error)
}

// Reconciler runs one reconciliation pass; sched.PaymentReconciler implements it.
type Reconciler interface {
	RunOnce(ctx context.Context) (*sched.ReconcileResult, error)
}

// TransactionLister is the read side of the payment ledger.
type TransactionLister interface {
	ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error)
}

// Deps are the collaborators the HTTP layer needs. Ping and Reconciler are optional.
type Deps struct {
	Plans       usecase.PlanUseCase
	Memberships usecase.MembershipUseCase
	Payments    usecase.PaymentUseCase
	Ledger      TransactionLister
	Sweeper     Sweeper
	Reconciler  Reconciler
	Auth        *Authenticator
	Ping        func(ctx context.Context) error
}

type Server struct {
	deps           Deps
	pages          config.PagesConfig
	cronSecret     string
	requestTimeout time.Duration
	log            *zerolog.Logger
}

func NewServer(deps Deps, pages config.PagesConfig, cronSecret string, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		deps:           deps,
		pages:          pages,
		cronSecret:     cronSecret,
		requestTimeout: requestTimeout,
		log:            &l,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.requestTimeout))

	auth := s.deps.Auth

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/payment", func(r chi.Router) {
		r.With(auth.RequireMember).Post("/initialize", s.handleInitializePayment)
		r.Get("/verify", s.handleVerifyPayment)
	})
	r.Post("/webhooks/payment", s.handleWebhook)

	r.With(CronGuard(s.cronSecret)).Get("/cron/check-memberships", s.handleCheckExpired)

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireMember, auth.RequireAdmin)
		r.Post("/memberships/check-expired", s.handleCheckExpired)
		r.Post("/payments/reconcile", s.handleReconcile)
	})

	r.Route("/memberships", func(r chi.Router) {
		r.Use(auth.RequireMember)
		r.With(auth.RequireAdmin).Get("/", s.handleListMemberships)
		r.With(auth.RequireAdmin).Get("/expired", s.handleListExpired)
		r.Get("/me", s.handleMyMemberships)
		r.Get("/{id}", s.handleGetMembership)
		r.Post("/{id}/cancel", s.handleCancelMembership)
	})

	r.With(auth.RequireMember).Get("/transactions/me", s.handleMyTransactions)

	r.Route("/plans", func(r chi.Router) {
		r.With(auth.Optional).Get("/", s.handleListPlans)
		r.Get("/{id}", s.handleGetPlan)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireMember, auth.RequireAdmin)
			r.Post("/", s.handleCreatePlan)
			r.Put("/{id}", s.handleUpdatePlan)
			r.Delete("/{id}", s.handleDeletePlan)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
