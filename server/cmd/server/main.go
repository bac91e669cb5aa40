package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/delaycast/delaycast/server/internal/alerts"
	"github.com/delaycast/delaycast/server/internal/api"
	"github.com/delaycast/delaycast/server/internal/config"
	"github.com/delaycast/delaycast/server/internal/dataset"
	"github.com/delaycast/delaycast/server/internal/metrics"
	"github.com/delaycast/delaycast/server/internal/model"
	"github.com/delaycast/delaycast/server/internal/predict"
	"github.com/delaycast/delaycast/server/internal/store"
	"github.com/delaycast/delaycast/server/internal/telemetry"
	"github.com/delaycast/delaycast/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("delaycast-server stopped", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	slog.SetDefault(slog.New(newHandler(cfg.Log.Format, level)))

	slog.Info("delaycast-server starting", "config", configPath)
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"dataset", cfg.Dataset.Path,
		"storage", cfg.Storage.Backend,
		"cache_ttl", cfg.Cache.TTL,
		"tracing", cfg.Tracing.Exporter,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    "delaycast",
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutCtx); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := predict.Options{
		Model: model.Options{
			MaxIter:     cfg.Model.MaxIter,
			L2:          cfg.Model.L2,
			Seed:        cfg.Model.Seed,
			ClassWeight: cfg.Model.ClassWeight,
		},
		HoldoutFraction: cfg.Model.HoldoutFraction,
		CacheTTL:        cfg.Cache.TTL,
		Metrics:         metrics.New(reg),
	}

	var (
		history *store.History
		pruner  *store.Pruner
	)
	if cfg.Storage.Backend == "sqlite" {
		history, err = store.OpenHistory(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer history.Close()
		pruner, err = store.NewPruner(history, cfg.Storage.PruneSchedule, cfg.Storage.Retention)
		if err != nil {
			return err
		}
		opts.History = history
		slog.Info("prediction history enabled", "path", cfg.Storage.Path, "retention", cfg.Storage.Retention)
	}

	svc := predict.New(opts)

	// Train before listening; a service that cannot train never accepts traffic.
	if err := train(svc, cfg.Dataset); err != nil {
		return err
	}

	alertEngine := alerts.New(cfg.Alerts).WithModel(svc.ModelInfo)
	hub := ws.New(svc, alertEngine, cfg.Server.StreamInterval)

	apiOpts := api.Options{
		Alerts:     alertEngine,
		Stream:     hub,
		AuthMode:   cfg.Server.Auth.Mode,
		AuthHeader: cfg.Server.Auth.EffectiveHeader(),
		AuthKey:    cfg.Server.Auth.Key(),
		RateLimit:  cfg.Server.RateLimit.RPS,
		Burst:      cfg.Server.RateLimit.Burst,
	}
	if history != nil {
		apiOpts.History = history
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           api.New(svc, apiOpts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if c := svc.Cache(); c != nil {
		g.Go(func() error { c.Run(gctx); return nil })
	}
	if pruner != nil {
		g.Go(func() error { pruner.Run(gctx); return nil })
	}
	g.Go(func() error {
		alertEngine.Run(gctx, cfg.Alerts.Interval, svc.Stats)
		return nil
	})
	g.Go(func() error { hub.Run(gctx); return nil })

	// Hot-reload adjusts the log level only; the model and listeners keep
	// their startup settings.
	g.Go(func() error {
		err := config.Watch(gctx, configPath, cfg, func(r config.Reload) {
			level.Set(r.Config.Log.SlogLevel())
			if len(r.Restart) > 0 {
				slog.Warn("config changes need a restart to apply", "sections", r.Restart)
			}
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("delaycast-server shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// train loads the dataset and fits svc. The error names the dataset so a
// failed startup points at the file.
func train(svc *predict.Service, cfg config.DatasetConfig) error {
	batch, err := dataset.Load(cfg.Path, dataset.Options{TargetColumn: cfg.TargetColumn})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if _, err := svc.Train(batch, cfg.TargetColumn); err != nil {
		return fmt.Errorf("train: dataset %q: %w", cfg.Path, err)
	}
	return nil
}

func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}
