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

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"pharmadist/m/internal/api"
	"pharmadist/m/internal/config"
	"pharmadist/m/internal/database"
	"pharmadist/m/internal/logging"
	"pharmadist/m/internal/metrics"
	"pharmadist/m/internal/migrations"
	"pharmadist/m/internal/order"
	"pharmadist/m/internal/reporting"
	"pharmadist/m/internal/seed"
	"pharmadist/m/internal/settlement"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pharmadist: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return err
	}
	log.Info("database ready", zap.String("dialect", string(db.Dialect)))

	if cfg.InventorySeed != "" {
		seed.LoadFile(ctx, db, log, cfg.InventorySeed, seed.LoadInventory)
	}
	if cfg.StoreSeed != "" {
		seed.LoadFile(ctx, db, log, cfg.StoreSeed, seed.LoadStores)
	}
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		created, err := seed.EnsureUser(ctx, db, cfg.AdminUsername, cfg.AdminPassword, "admin")
		if err != nil {
			return err
		}
		if created {
			log.Info("admin user created", zap.String("username", cfg.AdminUsername))
		}
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	recorder := settlement.NewRecorder(db, log.Named("settlement"), m)
	orders := order.NewService(db, node, recorder, log.Named("order"), m)
	reports := reporting.NewService(db)

	handler := api.New(db, orders, recorder, reports, log.Named("http"), api.Options{
		Secret:      cfg.Secret,
		TokenTTL:    cfg.TokenTTL,
		CORSOrigins: cfg.CORSOrigins,
		Gatherer:    reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("pharmadist server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
