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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/paystash/paystash-wallet/internal/config"
	"github.com/paystash/paystash-wallet/internal/connectivity"
	"github.com/paystash/paystash-wallet/internal/httpapi"
	"github.com/paystash/paystash-wallet/internal/keystore"
	"github.com/paystash/paystash-wallet/internal/ledger"
	"github.com/paystash/paystash-wallet/internal/reconciler"
	"github.com/paystash/paystash-wallet/internal/remote"
	"github.com/paystash/paystash-wallet/internal/wallet"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis (device-local persistence) ──────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Device keypair ────────────────────────────────────────────────────────
	// A storage failure here is fatal: nothing can be issued or verified
	// without a durable signing identity.
	keys, err := keystore.NewStore(rdb).GetOrCreateKeyPair(ctx)
	if err != nil {
		log.Fatal("keystore init failed", zap.Error(err))
	}

	// ── Remote ledger client + connectivity monitor ───────────────────────────
	ledgerClient := remote.NewClient(cfg.Ledger.APIURL, cfg.Ledger.APIKey)
	monitor := connectivity.NewMonitor(ledgerClient, cfg.Wallet.ProbeInterval(), log)

	// ── Wallet aggregate ──────────────────────────────────────────────────────
	store := ledger.NewStore(rdb)
	w := wallet.New(rdb, store, keys, ledgerClient, monitor,
		cfg.Wallet.UserID, cfg.Wallet.CredentialTTL(), log)

	// ── Goroutines ────────────────────────────────────────────────────────────
	engine := reconciler.New(w, ledgerClient, monitor, cfg.Wallet.SyncInterval(), log)
	go monitor.Run(ctx)
	go engine.Run(ctx)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "online": monitor.Online()})
	})

	api := r.Group("/api")
	httpapi.NewHandler(w, log).Register(api)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
