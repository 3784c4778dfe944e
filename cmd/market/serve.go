package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dgnmMarket/internal/api"
	"dgnmMarket/internal/config"
	"dgnmMarket/internal/market"
	"dgnmMarket/internal/storage"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	reg, err := loadRegistry(cfg.TokensFile)
	if err != nil {
		return err
	}
	collectorAddrs, err := parseAddresses("collectors", cfg.Collectors)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.close()
	if store.badger != nil && cfg.BadgerGCInterval > 0 {
		go store.badger.RunGC(ctx, cfg.BadgerGCInterval)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := market.NewMetrics(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sink := storage.MultiSink{storage.NewLogSink(logger.Named("events"))}
	if cfg.Events != "" {
		sink = append(sink, storage.NewJsonlSink(cfg.Events))
	}

	engine, err := market.Open(ctx, reg, store, market.Options{
		Network:    cfg.Network,
		Collectors: collectorAddrs,
		Sink:       sink,
		Metrics:    metrics,
		Logger:     logger.Named("engine"),
	})
	if err != nil {
		return err
	}

	if _, err := engine.Collection(); errors.Is(err, market.ErrNotInitialized) {
		if cfg.Owner == "" {
			logger.Warn("collection not initialized, run deploy or pass --owner")
		} else {
			owner, err := parseAddress("owner", cfg.Owner)
			if err != nil {
				return err
			}
			mintCost, err := parseBaseUnits("mint-cost", cfg.MintCost)
			if err != nil {
				return err
			}
			if err := engine.Initialize(ctx, owner, mintCost); err != nil {
				return fmt.Errorf("initialize collection: %w", err)
			}
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(engine, promReg, logger.Named("api")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("market start",
		zap.String("listen", cfg.Listen),
		zap.String("network", cfg.Network),
		zap.Uint64("registry_version", reg.Version()),
		zap.String("store", cfg.Store.Backend),
		zap.String("events", cfg.Events),
		zap.Int("collectors", len(collectorAddrs)),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	logger.Info("market shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
