package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/you/go-farescout/internal/adapters"
	"github.com/you/go-farescout/internal/alerts"
	"github.com/you/go-farescout/internal/booking"
	"github.com/you/go-farescout/internal/cache"
	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/history"
	"github.com/you/go-farescout/internal/httpx"
	"github.com/you/go-farescout/internal/obs"
	"github.com/you/go-farescout/internal/registry"
	"github.com/you/go-farescout/internal/search"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := obs.NewMetrics(prometheus.NewRegistry())

	var c cache.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("redis unavailable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		c = rc
		logger.Info("cache backend selected", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		c = cache.NewMemory(cfg.SweepInterval)
		logger.Info("cache backend selected", "backend", "memory")
	}
	defer c.Close()

	store := history.NewStore(cfg.HistoryRetention,
		history.NewStatistics(cfg.Prediction.TrendThresholdPct),
		history.NewPredictor(cfg.Prediction), logger)
	if cfg.PostgresDSN != "" {
		pg, err := history.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store.WithPersistence(pg)
		logger.Info("price history persistence enabled")
	}

	alertSvc := alerts.NewService(&alerts.LogSink{Logger: logger}, logger).WithMetrics(metrics)
	store.WithObserver(alertSvc)

	signer := booking.NewSigner(cfg.VoucherSecret)
	bookingSvc := booking.NewService(signer, booking.NoopGateway{}, logger)

	orch := search.NewOrchestrator(cfg, registry.New(), c, store, signer, metrics, logger)
	registerAdapters(cfg, orch, logger)

	h := httpx.NewHandler(cfg, orch, store, alertSvc, bookingSvc, c, metrics, logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           httpx.Routes(h),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0, // watch streams hold the response open
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr, "tls", cfg.TLSCertFile != "")
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := store.SweepLoop(gctx, cfg.SweepInterval); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// registerAdapters wires every provider with configured credentials and falls
// back to two offline fixture providers when none has any.
func registerAdapters(cfg *config.Config, orch *search.Orchestrator, logger *slog.Logger) {
	var live []adapters.Adapter
	if cfg.AmadeusClientID != "" && cfg.AmadeusClientSecret != "" {
		live = append(live, adapters.NewAmadeus(cfg))
	}
	if cfg.DuffelToken != "" {
		live = append(live, adapters.NewDuffel(cfg))
	}
	if cfg.RapidStaysAPIKey != "" {
		live = append(live, adapters.NewRapidStays(cfg))
	}
	if cfg.VelocarsAPIKey != "" {
		live = append(live, adapters.NewVelocars(cfg))
	}
	if len(live) == 0 {
		logger.Info("no provider credentials configured, running demo fixtures")
		live = append(live,
			adapters.NewFixture("atlas", "Atlas Travel", cfg),
			adapters.NewFixture("borealis", "Borealis Stays", cfg))
	}
	for _, a := range live {
		if err := orch.RegisterAdapter(a); err != nil {
			logger.Error("adapter registration failed", "provider", a.Descriptor().ID, "error", err)
			os.Exit(1)
		}
		logger.Info("provider registered", "provider", a.Descriptor().ID)
	}
}
