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
	"github.com/rs/dnscache"
	"go.opentelemetry.io/otel/trace"

	"github.com/burgonet-eu/gateway/internal/adminapi"
	"github.com/burgonet-eu/gateway/internal/config"
	"github.com/burgonet-eu/gateway/internal/echoserver"
	"github.com/burgonet-eu/gateway/internal/httpapi"
	"github.com/burgonet-eu/gateway/internal/inspector"
	"github.com/burgonet-eu/gateway/internal/ratelimit"
	"github.com/burgonet-eu/gateway/internal/routing"
	"github.com/burgonet-eu/gateway/internal/storage/sqlite"
	"github.com/burgonet-eu/gateway/internal/telemetry"
	"github.com/burgonet-eu/gateway/internal/usagemirror"
	"github.com/burgonet-eu/gateway/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting gateway", "version", version, "addr", addr)

	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("database opened", "dsn", cfg.Database.DSN)

	ctx := context.Background()
	if os.Getenv(config.DevModeEnvVar) == "dev" {
		if err := config.Bootstrap(ctx, store); err != nil {
			return err
		}
	}

	models := cfg.DomainModels()
	for _, m := range models {
		slog.Info("model configured", "location", m.Location, "proxy_pass", m.ProxyPass, "parser", m.Parser)
	}

	routes, err := routing.New(models)
	if err != nil {
		return err
	}

	dnsResolver := &dnscache.Resolver{}
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for range t.C {
			dnsResolver.Refresh(true)
		}
	}()

	rateLimiter := ratelimit.NewRegistry()
	insp := inspector.New(dnsResolver)

	var mirror httpapi.UsageMirror
	if cfg.UsageMirror.Enabled {
		m, err := usagemirror.New(cfg.UsageMirror.Addrs, cfg.UsageMirror.DialTimeout)
		if err != nil {
			return fmt.Errorf("usage mirror: %w", err)
		}
		defer m.Close()
		mirror = m
		slog.Info("usage mirror enabled", "addrs", cfg.UsageMirror.Addrs)
	}

	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics = telemetry.NewMetrics(promRegistry)
	metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	if cfg.Telemetry.Tracing.Enabled {
		endpoint := cfg.Telemetry.Tracing.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		sampleRate := cfg.Telemetry.Tracing.SampleRate
		if sampleRate == 0 {
			sampleRate = 0.1
		}
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, sampleRate)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("burgonet-gateway/server")
			slog.Info("opentelemetry tracing enabled", "endpoint", endpoint, "sample_rate", sampleRate)
		}
	}

	deps := httpapi.Deps{
		Store:          store,
		Routes:         routes,
		RateLimiter:    rateLimiter,
		Inspector:      insp,
		Metrics:        metrics,
		Tracer:         tracer,
		Mirror:         mirror,
		Auth:           cfg.Auth,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		MetricsHandler: metricsHandler,
	}

	handler, tokenInvalidator, err := httpapi.New(deps, store.Ping)
	if err != nil {
		return err
	}

	gatewaySrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	adminHandler := adminapi.New(adminapi.Deps{Store: store, Invalidator: tokenInvalidator})
	adminSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port),
		Handler: adminHandler,
	}

	echoSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Echo.Host, cfg.Echo.Port),
		Handler: echoserver.New(),
	}

	promAddr := fmt.Sprintf("%s:%d", cfg.Prometheus.Host, cfg.Prometheus.Port)
	promSrv := &http.Server{Addr: promAddr, Handler: metricsHandler}

	evictor := worker.NewRateLimitEvictor(rateLimiter, 10*time.Minute, time.Hour)
	runner := worker.NewRunner(evictor)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- runner.Run(workerCtx) }()

	errCh := make(chan error, 4)
	startListener := func(name string, srv *http.Server) {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}
	startListener("gateway", gatewaySrv)
	startListener("admin", adminSrv)
	startListener("echo", echoSrv)
	startListener("prometheus", promSrv)

	slog.Info("gateway ready",
		"gateway_addr", addr,
		"admin_addr", adminSrv.Addr,
		"echo_addr", echoSrv.Addr,
		"prometheus_addr", promAddr,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		workerCancel()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	for _, srv := range []*http.Server{gatewaySrv, adminSrv, echoSrv, promSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}

	workerCancel()
	if err := <-workerDone; err != nil {
		slog.Error("worker shutdown error", "error", err)
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("gateway stopped")
	return nil
}
