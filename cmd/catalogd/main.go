package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
	"github.com/mohammed-shakir/wms-catalog/internal/core/config"
	"github.com/mohammed-shakir/wms-catalog/internal/core/fetcher"
	"github.com/mohammed-shakir/wms-catalog/internal/core/health"
	"github.com/mohammed-shakir/wms-catalog/internal/core/httpclient"
	"github.com/mohammed-shakir/wms-catalog/internal/core/observability"
	"github.com/mohammed-shakir/wms-catalog/internal/core/router"
	"github.com/mohammed-shakir/wms-catalog/internal/core/server"
	"github.com/mohammed-shakir/wms-catalog/internal/corsproxy"
	"github.com/mohammed-shakir/wms-catalog/internal/index"
	"github.com/mohammed-shakir/wms-catalog/internal/logger"
	h3mapper "github.com/mohammed-shakir/wms-catalog/internal/mapper/h3"
	"github.com/mohammed-shakir/wms-catalog/internal/metrics"
	"github.com/mohammed-shakir/wms-catalog/internal/refresh"
	"github.com/mohammed-shakir/wms-catalog/internal/registry"
	"github.com/mohammed-shakir/wms-catalog/internal/resolveevents"
	"github.com/mohammed-shakir/wms-catalog/internal/store/redisstore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "wms-catalog",
		Component: "catalogd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting catalogd",
		"addr", cfg.Addr,
		"version", Version,
		"wms_version", cfg.WMSVersion,
		"store", cfg.StoreEnabled,
		"refresh", cfg.Kafka.RefreshEnabled,
		"events", cfg.Kafka.EventsEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		if cfg.Metrics.Addr == "" {
			metricsHandler = p.Handler()
		} else {
			serveMetrics(ctx, appLog, cfg.Metrics.Addr, cfg.Metrics.Path, p.Handler())
		}
	} else {
		observability.Init(nil, false)
	}

	itemOpts := []catalog.Option{
		catalog.WithFetcher(fetcher.NewHTTP(appLog, httpclient.NewOutbound(cfg.FetchTimeout), cfg.MaxDocumentBytes)),
		catalog.WithProxy(corsproxy.New(cfg.CORSProxyURL, cfg.CORSProxyBypass)),
		catalog.WithProfile(catalog.WMS(cfg.WMSVersion)),
		catalog.WithLogger(appLog),
		catalog.WithFetchTimeout(cfg.FetchTimeout),
	}
	regOpts := []registry.Option{
		registry.WithIndex(index.New()),
		registry.WithLogger(appLog),
		registry.WithItemOptions(itemOpts...),
	}

	var storePing health.Pinger
	if cfg.StoreEnabled {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := redisstore.New(sctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			appLog.Error("item store unavailable", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = client.Close() }()
		st := redisstore.NewItemStore(client, cfg.StorePrefix)
		storePing = st
		regOpts = append(regOpts, registry.WithStore(st))
	}

	if cfg.Kafka.EventsEnabled {
		pub, err := resolveevents.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.EventsQueue, appLog)
		if err != nil {
			appLog.Error("resolution events disabled", "err", err)
		} else {
			defer func() {
				if err := pub.Close(); err != nil {
					appLog.Warn("resolution publisher close", "err", err)
				}
			}()
			regOpts = append(regOpts, registry.WithLoadHook(pub.Hook))
		}
	}

	reg, err := registry.New(cfg.RegistrySize, regOpts...)
	if err != nil {
		appLog.Error("registry setup failed", "err", err)
		return 1
	}
	if n, err := reg.Restore(ctx); err != nil {
		appLog.Warn("restoring stored items failed", "err", err)
	} else if n > 0 {
		appLog.Info("stored items loaded", "count", n)
	}

	refresher := refresh.New(refresh.FromConfig(cfg.Kafka), reg, appLog)
	if err := refresher.Start(ctx); err != nil {
		appLog.Error("refresh consumer failed to start", "err", err)
		return 1
	}
	defer refresher.Stop()

	api := router.New(appLog, reg, h3mapper.New(0), router.Options{
		H3Res:    cfg.H3Res,
		H3ResMax: cfg.H3ResMax,
		MaxWait:  cfg.FetchTimeout + 5*time.Second,
	})

	if err := server.Run(ctx, cfg, appLog, server.Deps{
		API:         api,
		Ready:       health.Readiness(refresher, storePing),
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
	}); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// serveMetrics exposes the registry on its own listener until ctx ends.
func serveMetrics(ctx context.Context, log *slog.Logger, addr, path string, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("metrics listen", "addr", addr, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exited", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics shutdown", "err", err)
		}
	}()
}
