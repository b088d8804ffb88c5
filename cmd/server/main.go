package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	credhandler "certledger/internal/credential/handler"
	credservice "certledger/internal/credential/service"
	"certledger/internal/credential/workers/reconcile"
	jwttoken "certledger/internal/jwt_token"
	ledgerhandler "certledger/internal/ledger/handler"
	"certledger/internal/platform/config"
	"certledger/internal/platform/health"
	"certledger/internal/platform/logger"
	"certledger/internal/platform/metrics"
	"certledger/internal/platform/tracer"
	httptransport "certledger/internal/transport/http"
	verifyhandler "certledger/internal/verification/handler"
	verifyservice "certledger/internal/verification/service"
	"certledger/pkg/platform/circuit"
	"certledger/pkg/platform/middleware/metadata"
	"certledger/pkg/platform/middleware/request"
)

const (
	poolStatsInterval    = 15 * time.Second
	producerFlushTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "certledger: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("certledger stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("initializing certledger",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	infra, err := buildInfra(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	ledgerClient := buildLedger(ctx, cfg, reg, infra, log)

	creds := credservice.New(infra.credentials, ledgerClient, log,
		credservice.WithPublisher(infra.publisher),
		credservice.WithMetrics(appMetrics),
		credservice.WithPublicBaseURL(cfg.PublicBaseURL),
		credservice.WithLedgerTimeout(cfg.Ledger.CallTimeout),
		credservice.WithAbandonAfter(cfg.AbandonAfter),
	)

	breaker := circuit.New("ledger",
		circuit.WithFailureThreshold(cfg.BreakerFailures),
		circuit.WithCooldown(cfg.BreakerCooldown),
	)
	verifier := verifyservice.New(creds, ledgerClient, infra.history, log,
		verifyservice.WithBreaker(breaker),
		verifyservice.WithMetrics(appMetrics),
		verifyservice.WithLedgerTimeout(cfg.Ledger.ReadTimeout),
		verifyservice.WithTracer(tracer.NewOTel("certledger/verification")),
	)

	healthHandler := health.New(cfg.Environment)
	infra.registerChecks(healthHandler)
	healthHandler.RegisterOptionalCheck("ledger", func(context.Context) error {
		return ledgerClient.SignerReady()
	})

	trusted, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, 0)
	router := httptransport.NewRouter(httptransport.Handlers{
		Credentials:  credhandler.New(creds, log),
		Verification: verifyhandler.New(verifier, log),
		Ledger:       ledgerhandler.New(creds, log),
		Health:       healthHandler,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, httptransport.Config{
		Logger:         log,
		TokenValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken:     cfg.AdminToken,
		AdminTokenHash: cfg.AdminTokenHash,
		TrustedProxies: trusted,
		RequestMetrics: request.NewMetrics(reg),
	})
	if cfg.AdminToken == "" && cfg.AdminTokenHash == "" {
		log.Warn("admin token not configured, operator routes are disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Anchoring waits for the receipt inside the request.
		WriteTimeout: cfg.Ledger.CallTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if cfg.Reconcile.Enabled {
		worker, err := reconcile.New(creds,
			reconcile.WithInterval(cfg.Interval),
			reconcile.WithGracePeriod(cfg.GracePeriod),
			reconcile.WithBatchSize(cfg.BatchSize),
			reconcile.WithMetrics(appMetrics),
			reconcile.WithLogger(log),
		)
		if err != nil {
			return fmt.Errorf("build reconcile worker: %w", err)
		}
		g.Go(func() error {
			if err := worker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("reconcile worker: %w", err)
			}
			return nil
		})
	}

	if infra.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					infra.redis.RecordPoolStats()
				}
			}
		})
	}

	return g.Wait()
}
