// marketd runs the marketplace settlement core: it migrates the database,
// wires the engines against their payment rails and serves the expiry sweep
// alongside health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nftmarket/config"
	"nftmarket/native/escrow"
	"nftmarket/native/fees"
	"nftmarket/native/market"
	"nftmarket/observability"
	"nftmarket/observability/logging"
	"nftmarket/payments"
	"nftmarket/storage"
)

func main() {
	configPath := flag.String("config", "./market.toml", "path to the marketd configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("marketd", os.Getenv("MARKET_ENV"), logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("marketd terminated", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := storage.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store := storage.New(db)

	rails := payments.NewRegistry()
	for _, chain := range cfg.Chains {
		if chain.Family != payments.FamilyAccount || chain.RPCURL == "" {
			continue
		}
		client, err := payments.DialEVM(chain.RPCURL, big.NewInt(chain.ChainID))
		if err != nil {
			return fmt.Errorf("dial %s rpc: %w", chain.Name, err)
		}
		rails.Register(payments.FamilyAccount, client)
		logger.Info("payment rail connected", "chain", chain.Name, "family", chain.Family)
		break
	}

	platform := cfg.Platform()
	emitter := observability.NewEmitter(logger)

	escrowEngine := escrow.NewEngine(store, rails, platform)
	escrowEngine.SetEmitter(emitter)
	escrowEngine.SetPauses(cfg)

	marketEngine := market.NewEngine(store, escrowEngine, platform, fees.Policy{
		TradeFeeBps:   cfg.TradeFeeBps,
		CommissionBps: cfg.CommissionBps,
	})
	marketEngine.SetEmitter(emitter)
	marketEngine.SetPauses(cfg)

	sweeper := market.NewSweeper(market.SweeperConfig{
		Engine:   marketEngine,
		Interval: cfg.SweepEvery(),
		Logger:   logger,
	})
	go sweeper.Start(ctx)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("marketd listening", "address", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
