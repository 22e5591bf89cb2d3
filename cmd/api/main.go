package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fleetflow/access"
	"fleetflow/db"
	"fleetflow/dispute"
	"fleetflow/identity"
	"fleetflow/ride"
	"fleetflow/tenancy"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	identitySvc := identity.NewService(identity.NewRepository(pool), jwtSecret)
	resolver := access.NewResolver(tenancy.NewGraph(pool))
	rideRepo := ride.NewRepository(pool)
	rideSvc := ride.NewService(rideRepo)
	disputeSvc := dispute.NewService(dispute.NewRepository(pool), rideRepo)
	tenancySvc := tenancy.NewService(tenancy.NewRepository(pool))

	server := &Server{
		logger:   logger,
		identity: identitySvc,
		resolver: resolver,
		rides:    rideSvc,
		disputes: disputeSvc,
		tenants:  tenancySvc,
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("api stopped")
}
