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

	"voicepay/internal/api"
	"voicepay/internal/catalog"
	"voicepay/internal/config"
	"voicepay/internal/db"
	"voicepay/internal/device"
	"voicepay/internal/dialogue"
	"voicepay/internal/domain"
	"voicepay/internal/mqtt"
	"voicepay/internal/vault"
)

func main() {
	config.LoadDotEnv()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}
	if cfg.LogFormat == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appCatalog, err := catalog.Load(cfg.AppCatalogPath)
	if err != nil {
		logger.Error("load app catalog failed", "error", err)
		os.Exit(1)
	}

	var ledger db.Ledger
	if cfg.LedgerDriver != "none" {
		ledger, err = db.Open(ctx, cfg.LedgerDriver, cfg.LedgerDSN)
		if err != nil {
			logger.Error("open payment ledger failed", "driver", cfg.LedgerDriver, "error", err)
			os.Exit(1)
		}
		defer ledger.Close()
	}

	store := vault.New(vault.Config{
		Retention:     cfg.VaultRetention,
		SweepInterval: cfg.VaultSweep,
	}, logger)
	go store.Run(ctx)

	registry := device.NewRegistry(cfg.DeviceTTL)
	mqttHub := mqtt.NewHub(mqtt.HubConfig{
		BrokerURL:     cfg.MQTTBrokerURL,
		ClientID:      cfg.MQTTClientID,
		Username:      cfg.MQTTUsername,
		Password:      cfg.MQTTPassword,
		TopicPrefix:   cfg.MQTTTopicPrefix,
		InvokeTimeout: cfg.InvokeTimeout,
	}, registry, logger)
	if err := mqttHub.Start(ctx); err != nil {
		logger.Error("start mqtt hub failed", "error", err)
		os.Exit(1)
	}

	discovery := device.NewDiscovery(registry, appCatalog)
	deps := dialogue.Deps{
		Vault:     store,
		Catalog:   appCatalog,
		Discovery: discovery,
		Payments:  mqttHub,
	}
	if ledger != nil {
		deps.Recorder = ledger
	}
	engine := dialogue.New(dialogue.Config{
		MaxAmount:      domain.Amount(int64(cfg.MaxAmountRupees) * 100),
		SessionTimeout: cfg.SessionTimeout,
		DefaultHandle:  cfg.DefaultVPA,
	}, deps, logger)
	go engine.RunJanitor(ctx, cfg.SessionTimeout)

	server := api.NewServer(api.Deps{
		Engine:       engine,
		Vault:        store,
		Catalog:      appCatalog,
		Discovery:    discovery,
		Registry:     registry,
		Ledger:       ledger,
		Speaker:      mqttHub,
		SpeakReplies: cfg.SpeakReplies,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("voicepay server started",
			"addr", cfg.HTTPAddr,
			"ledger", cfg.LedgerDriver,
			"vault_retention", cfg.VaultRetention,
			"session_timeout", cfg.SessionTimeout,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	cancel()
}
