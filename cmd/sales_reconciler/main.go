package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/connectors/marketplace"
	"github.com/ventasync-reconciler/internal/data/postgres"
	"github.com/ventasync-reconciler/internal/logger"
	"github.com/ventasync-reconciler/internal/platform/crypto"
	"github.com/ventasync-reconciler/internal/platform/persistence"
	"github.com/ventasync-reconciler/internal/reconciler"
	"github.com/ventasync-reconciler/internal/vault"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("sales_reconciler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Sales Reconciler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize database with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize credential encryption
	secretBox, err := crypto.NewSecretBox(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Error("Failed to initialize credential encryption", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	saleRepo := postgres.NewSaleRepository(log, postgresDB)
	credentialRepo := postgres.NewCredentialRepository(log, postgresDB)
	watermarkRepo := postgres.NewWatermarkRepository(log, postgresDB)

	credentialVault := vault.NewVault(log, credentialRepo, secretBox)

	// Initialize marketplace connectors
	falabellaConnector := marketplace.NewFalabellaConnector(log, &cfg.Falabella, credentialVault)
	mercadoLibreConnector := marketplace.NewMercadoLibreConnector(log, &cfg.MercadoLibre, credentialVault)
	manualConnector := marketplace.NewManualConnector()

	// Worker pool shared by all sources within one pull cycle
	workerPool, err := ants.NewPool(cfg.WorkerPool.Size)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	engine := reconciler.NewEngine(
		log,
		&cfg.Reconciler,
		[]marketplace.Connector{falabellaConnector, mercadoLibreConnector, manualConnector},
		saleRepo,
		watermarkRepo,
		workerPool,
	)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start the pull loop in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting reconciliation loop",
			"interval", cfg.Reconciler.Interval.String(),
			"page_size", cfg.Reconciler.PageSize,
		)
		engine.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for the in-flight pull cycle to finish
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Reconciliation loop stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	workerPool.Release()

	// Shutdown postgres connection pool
	postgresDB.Close()

	log.Info("Sales Reconciler shutdown completed successfully")
}
