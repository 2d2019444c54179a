package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/metrics"
	"edu-storefront/internal/usecase"
)

// WidgetDeliverer hands a browser-reported widget completion to the
// checkout that opened the widget.
type WidgetDeliverer interface {
	Deliver(ctx context.Context, orderID string, outcome adapter.WidgetOutcome) (adapter.WidgetResult, error)
}

type Config struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	VisitorCookie  string
	SecureCookies  bool
	LoginURL       string
}

// Server exposes the storefront checkout, lead forms and account helpers.
type Server struct {
	checkout usecase.CheckoutUseCase
	leads    usecase.LeadUseCase
	account  usecase.AccountUseCase
	widgets  WidgetDeliverer
	ready    func(ctx context.Context) error
	cfg      Config
	log      *zerolog.Logger
}

// NewServer builds the API. ready, when set, backs the /health probe.
func NewServer(
	checkout usecase.CheckoutUseCase,
	leads usecase.LeadUseCase,
	account usecase.AccountUseCase,
	widgets WidgetDeliverer,
	ready func(ctx context.Context) error,
	cfg Config,
	logger *zerolog.Logger,
) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Second
	}
	if cfg.VisitorCookie == "" {
		cfg.VisitorCookie = "storefront_visitor"
	}
	return &Server{
		checkout: checkout,
		leads:    leads,
		account:  account,
		widgets:  widgets,
		ready:    ready,
		cfg:      cfg,
		log:      logger,
	}
}

// Routes returns the root handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		CORS(s.cfg.AllowedOrigins),
	)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.cfg.RequestTimeout), s.Visitor(), s.Identity())

		r.Get("/plans", s.handlePlans)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", s.handleSummary)
			r.Post("/plan", s.handleSelectPlan)
			r.Post("/resume", s.handleResume)
			r.Post("/referral/verify", s.handleVerifyReferral)
			r.Post("/referral/apply", s.handleApplyReferral)
			r.Delete("/referral", s.handleRemoveReferral)
			r.Post("/pay", s.handlePay)

			r.Route("/orders/{orderID}", func(r chi.Router) {
				r.Get("/", s.handleOrder)
				r.Post("/success", s.handleOutcome(adapter.OutcomeSuccess))
				r.Post("/failure", s.handleOutcome(adapter.OutcomeError))
				r.Post("/dismiss", s.handleOutcome(adapter.OutcomeDismiss))
			})
		})

		r.Post("/leads/{kind}", s.handleLead)
		r.Post("/account/verify-email", s.handleVerifyEmail)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
