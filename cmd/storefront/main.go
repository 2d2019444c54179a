// File: cmd/storefront/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"edu-storefront/internal/config"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/domain/ports/repository"
	"edu-storefront/internal/infra/adapters/identity"
	payAdapters "edu-storefront/internal/infra/adapters/payment"
	"edu-storefront/internal/infra/adapters/referral"
	"edu-storefront/internal/infra/api"
	pg "edu-storefront/internal/infra/db/postgres"
	"edu-storefront/internal/infra/logging"
	"edu-storefront/internal/infra/memory"
	"edu-storefront/internal/infra/metrics"
	red "edu-storefront/internal/infra/redis"
	"edu-storefront/internal/infra/sched"
	"edu-storefront/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-memory stores, sandbox gateway)")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}
	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Document store ----
	var (
		docs   repository.DocumentStore
		checks []func(ctx context.Context) error
	)
	switch cfg.Database.Driver {
	case "memory":
		docs = memory.NewDocumentStore()
		logger.Warn().Msg("using in-memory document store; orders are lost on restart")
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		docs = pg.NewDocumentStore(pool)
		checks = append(checks, pool.Ping)
		go func() { _ = sched.NewPoolStatsWorker(cfg.Scheduler.PoolStatInterval, pool, logger).Run(ctx) }()
	}

	// ---- Redis (guard, intents, rate limits) ----
	var (
		guard   adapter.CheckoutGuard
		intents repository.IntentRepository
		limiter adapter.RateLimiter
		local   []sched.Sweeper
	)
	if cfg.Redis.Enabled {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		guard = red.NewLocker(redisClient)
		intents = red.NewIntentRepo(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		checks = append(checks, redisClient.Ping)
	} else {
		logger.Info().Msg("redis disabled; checkout guard and intents are process-local")
		g, in, rl := memory.NewGuard(), memory.NewIntentRepo(cfg.Redis.TTL), memory.NewRateLimiter()
		guard, intents, limiter = g, in, rl
		local = append(local, g, in, rl)
	}

	// ---- Payment gateway ----
	checkoutGateway, verifier, loader, err := gatewayFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	bridge := payAdapters.NewWidgetBridge(cfg.Payment.SessionTTL)

	// ---- Remote services ----
	refSvc, err := referral.NewHTTPVerifier(cfg.Referral.BaseURL, cfg.Referral.Timeout)
	if err != nil {
		return fmt.Errorf("referral: %w", err)
	}
	tokens, err := identity.NewJWTVerifier(cfg.Identity.JWTSecret, cfg.Identity.Issuer)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	var emails adapter.EmailVerifier
	if cfg.Identity.BaseURL != "" {
		ev, err := identity.NewEmailVerifier(cfg.Identity.BaseURL, cfg.Identity.APIKey)
		if err != nil {
			return fmt.Errorf("identity: %w", err)
		}
		emails = ev
	}

	// ---- Use cases ----
	orders := usecase.NewOrderRecorder(docs, logger)
	referralUC := usecase.NewReferralUseCase(refSvc, logger)
	checkoutUC := usecase.NewCheckoutUseCase(orders, referralUC, intents, guard, checkoutGateway, verifier, loader, bridge,
		usecase.CheckoutConfig{
			KeyID:           cfg.Payment.Razorpay.KeyID,
			DisplayName:     cfg.Payment.DisplayName,
			Description:     cfg.Payment.Description,
			SuccessRedirect: cfg.Payment.SuccessRedirect,
			GuardTTL:        cfg.Payment.GuardTTL,
			Dev:             cfg.Runtime.Dev,
		}, logger)
	leadUC := usecase.NewLeadUseCase(docs, limiter, cfg.Leads.RateLimit, cfg.Leads.RateWindow, logger)
	accountUC := usecase.NewAccountUseCase(tokens, emails, logger, cfg.Runtime.Dev)

	// ---- Background workers ----
	janitor := sched.NewSessionJanitor(cfg.Scheduler.SweepInterval, cfg.Scheduler.SessionIdle, checkoutUC, bridge, logger, local...)
	go func() { _ = janitor.Run(ctx) }()

	// ---- HTTP ----
	ready := func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	srv := api.NewServer(checkoutUC, leadUC, accountUC, bridge, ready, api.Config{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		VisitorCookie:  cfg.HTTP.VisitorCookie,
		SecureCookies:  cfg.HTTP.SecureCookies,
		LoginURL:       cfg.Identity.LoginURL,
	}, logger)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Routes(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

// gatewayFromConfig returns the order API, the signature verifier (nil when
// checks are disabled) and the widget script loader.
func gatewayFromConfig(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, adapter.SignatureVerifier, adapter.WidgetLoader, error) {
	rz := cfg.Payment.Razorpay
	if rz.Sandbox {
		logger.Warn().Msg("payment gateway: sandbox (no real charges)")
		sb := payAdapters.NewSandboxGateway()
		return sb, sb, sb, nil
	}
	gw, err := payAdapters.NewRazorpayGateway(rz.KeyID, rz.KeySecret, rz.BaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("razorpay gateway: %w", err)
	}
	logger.Info().Str("key_id", logging.Redact(rz.KeyID, cfg.Runtime.Dev)).Bool("verify_signatures", rz.SignatureCheck()).Msg("payment gateway: razorpay")
	var verifier adapter.SignatureVerifier
	if rz.SignatureCheck() {
		verifier = gw
	}
	return gw, verifier, payAdapters.NewScriptLoader(rz.ScriptURL), nil
}
