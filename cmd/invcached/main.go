// Command invcached is a caching gateway in front of a JSON API. Reads are
// served through the invalidation cache; writes are forwarded and invalidate
// the responses they affect.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/vnykmshr/invcache-go/internal/config"
	"github.com/vnykmshr/invcache-go/internal/logging"
	"github.com/vnykmshr/invcache-go/internal/server"
	"github.com/vnykmshr/invcache-go/pkg/apicache"
	"github.com/vnykmshr/invcache-go/pkg/invcache"
	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("invcached stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engineConfig := cfg.EngineConfig(logging.WithComponent(logger, "cache"))
	if cfg.Metrics.Enabled {
		exporter, err := newExporter(cfg, registry)
		if err != nil {
			return err
		}
		engineConfig.WithMetrics(&invcache.MetricsConfig{
			Exporter:          exporter,
			Enabled:           true,
			CacheName:         cfg.Metrics.CacheName,
			ReportingInterval: cfg.Metrics.ReportingInterval,
		})
	}

	cache, err := invcache.New[json.RawMessage](engineConfig)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.WithError(err).Error("failed to close cache")
		}
	}()

	client, err := apicache.NewHTTPClient(cfg.HTTPConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	scheduler, err := newScheduler(cfg, cache, logging.WithComponent(logger, "scheduler"))
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	gin.SetMode(cfg.Server.Mode)
	srv := server.New(server.Options{
		Cache:    cache,
		API:      apicache.NewWrapper(client, cache, logger),
		Gatherer: registry,
		Breaker:  client,
		Logger:   logging.WithComponent(logger, "server"),
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     cfg.Server.Addr,
			"upstream": cfg.Upstream.BaseURL,
		}).Info("starting invcached")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func newExporter(cfg *config.Config, registry *prometheus.Registry) (metrics.Exporter, error) {
	metricsConfig := metrics.NewDefaultConfig().
		WithNamespace(cfg.Metrics.Namespace).
		WithReportingInterval(cfg.Metrics.ReportingInterval)

	prom, err := metrics.NewPrometheusExporter(metricsConfig, &metrics.PrometheusConfig{
		Registry:   registry,
		LabelNames: []string{"cache_name"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	if !cfg.Metrics.OTel {
		return prom, nil
	}

	otelExporter, err := metrics.NewOTelExporter(metricsConfig, otel.GetMeterProvider().Meter("invcached"))
	if err != nil {
		return nil, fmt.Errorf("failed to create opentelemetry exporter: %w", err)
	}
	return metrics.NewMultiExporter(prom, otelExporter), nil
}

func newScheduler(cfg *config.Config, cache *invcache.Cache[json.RawMessage], logger logrus.FieldLogger) (*cron.Cron, error) {
	c := cron.New()

	if cfg.Persistence.Enabled && cfg.Persistence.FlushSchedule != "" {
		_, err := c.AddFunc(cfg.Persistence.FlushSchedule, func() {
			if err := cache.Persist(context.Background()); err != nil {
				logger.WithError(err).Warn("scheduled snapshot failed")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid flush schedule %q: %w", cfg.Persistence.FlushSchedule, err)
		}
	}

	if cfg.Metrics.StatsSchedule != "" {
		_, err := c.AddFunc(cfg.Metrics.StatsSchedule, func() {
			stats := cache.GetStats()
			logger.WithFields(logrus.Fields{
				"size":          stats.Size,
				"hit_rate":      stats.HitRate,
				"hits":          stats.Hits,
				"misses":        stats.Misses,
				"evictions":     stats.Evictions,
				"expirations":   stats.Expirations,
				"invalidations": stats.Invalidations,
				"memory_usage":  stats.MemoryUsage,
			}).Info("cache stats")
		})
		if err != nil {
			return nil, fmt.Errorf("invalid stats schedule %q: %w", cfg.Metrics.StatsSchedule, err)
		}
	}

	return c, nil
}
