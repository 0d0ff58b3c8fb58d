// Command domainsearchd is the main server binary: it wires config, the
// process-wide job index, the per-job stores, the scheduler ticker, the
// controller, and the RPC surface together, the way the teacher's main
// wires its own queue and HTTP handler.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/groveplace/domainsearch/internal/apiserver"
	"github.com/groveplace/domainsearch/internal/availability"
	"github.com/groveplace/domainsearch/internal/config"
	"github.com/groveplace/domainsearch/internal/controller"
	"github.com/groveplace/domainsearch/internal/jobindex"
	"github.com/groveplace/domainsearch/internal/pricing"
	"github.com/groveplace/domainsearch/internal/scheduler"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading config from process environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		slog.Error("data dir", "error", err)
		os.Exit(1)
	}

	index, err := jobindex.Open(filepath.Join(cfg.DataDir, "index.db"))
	if err != nil {
		slog.Error("jobindex", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	avail := availability.New(cfg.RateLimit.MaxConcurrentRDAP, time.Duration(cfg.RateLimit.RDAPSlotInterval*float64(time.Second)))
	prices := pricing.New(cfg.PricingAPI.URL, cfg.PricingAPI.APIKey, pricing.Cutoffs{
		BundledMaxCents:     cfg.Pricing.BundledMaxCents,
		RecommendedMaxCents: cfg.Pricing.RecommendedMaxCents,
	})

	ctrl := controller.New(cfg, index, nil, avail, prices)
	sched := scheduler.New(ctrl, 2*time.Second)
	ctrl.SetScheduler(sched)
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Recover(ctx); err != nil {
		slog.Error("recovery", "error", err)
		os.Exit(1)
	}
	go sched.Start(ctx)

	mux := http.NewServeMux()
	h := apiserver.NewHandler(ctrl, index)
	h.RegisterRoutes(mux)

	handler := apiserver.Chain(mux,
		apiserver.CORS(cfg.CORSOrigins),
		apiserver.RequestID,
		apiserver.Logging,
		apiserver.Auth(cfg.APIKeys),
		apiserver.RateLimit(cfg.RateLimit.APIRequestsPerSec),
	)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("domainsearchd listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
