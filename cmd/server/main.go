package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"dgtt/internal/audit"
	audithandler "dgtt/internal/audit/handler"
	auditmetrics "dgtt/internal/audit/metrics"
	candidatehandler "dgtt/internal/candidate/handler"
	candidatemetrics "dgtt/internal/candidate/metrics"
	candidateservice "dgtt/internal/candidate/service"
	examhandler "dgtt/internal/exam/handler"
	exammetrics "dgtt/internal/exam/metrics"
	examservice "dgtt/internal/exam/service"
	"dgtt/internal/gateway/documents"
	"dgtt/internal/gateway/notification"
	"dgtt/internal/gateway/payment"
	httpapi "dgtt/internal/http"
	"dgtt/internal/platform/config"
	"dgtt/internal/platform/httpserver"
	"dgtt/internal/platform/logger"
	"dgtt/internal/platform/metrics"
	schoolhandler "dgtt/internal/school/handler"
	schoolmetrics "dgtt/internal/school/metrics"
	schoolservice "dgtt/internal/school/service"
	"dgtt/pkg/platform/middleware/auth"
	"dgtt/pkg/platform/middleware/ratelimit"
)

const limiterSweepEvery = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	notifier := notification.NewDispatcher(infra.sink(cfg, log),
		notification.WithTimeout(cfg.Notification.Timeout),
		notification.WithLogger(log),
		notification.WithMetrics(infra.notifyMetrics),
	)
	signer, err := documents.NewSigner(cfg.Audit.SigningKey)
	if err != nil {
		return fmt.Errorf("document signer: %w", err)
	}
	payments := payment.NewSimulated(cfg.Payment, payment.WithLogger(log))

	auditService := audit.NewService(infra.stores.audit,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
	)
	schools := schoolservice.New(infra.stores.schools, auditService, payments,
		schoolservice.WithLogger(log),
		schoolservice.WithMetrics(schoolmetrics.New()),
		schoolservice.WithTx(infra.tx),
		schoolservice.WithNotifier(notifier),
		schoolservice.WithCandidates(infra.stores.candidates),
		schoolservice.WithFee(cfg.Payment.SchoolFee),
	)
	candidates := candidateservice.New(infra.stores.candidates, auditService, payments, schools,
		candidateservice.WithLogger(log),
		candidateservice.WithMetrics(candidatemetrics.New()),
		candidateservice.WithTx(infra.tx),
		candidateservice.WithNotifier(notifier),
		candidateservice.WithFee(cfg.Payment.CandidateFee),
	)
	exams := examservice.New(infra.stores.exams, auditService, candidates, schools, signer,
		examservice.WithLogger(log),
		examservice.WithMetrics(exammetrics.New()),
		examservice.WithTx(infra.tx),
		examservice.WithNotifier(notifier),
	)

	limiter := ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	router := httpapi.NewRouter(httpapi.Options{
		Logger:    log,
		Metrics:   metrics.New(),
		Limiter:   limiter,
		Validator: auth.NewValidator(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer),
		OpsToken:  cfg.Server.OpsToken,
		Checks:    infra.checks(),
		Handlers: []httpapi.Registrar{
			schoolhandler.New(schools, log),
			candidatehandler.New(candidates, log),
			examhandler.New(exams, log),
			audithandler.New(auditService, log),
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)
	purger := audit.NewPurgeWorker(auditService, cfg.Audit.Retention, cfg.Audit.PurgeInterval,
		audit.WithPurgeLogger(log),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting dgtt workflow server",
			"addr", cfg.Server.Addr,
			"environment", cfg.Environment,
			"store", infra.backend(),
		)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return ignoreCancel(purger.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCancel(limiter.Run(gctx, limiterSweepEvery))
	})
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
