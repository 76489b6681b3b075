package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panjf2000/ants/v2"
	"github.com/ventasync-reconciler/internal/api_gateway"
	"github.com/ventasync-reconciler/internal/api_gateway/service"
	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/connectors/billing"
	"github.com/ventasync-reconciler/internal/connectors/marketplace"
	"github.com/ventasync-reconciler/internal/data/mongo"
	"github.com/ventasync-reconciler/internal/data/postgres"
	"github.com/ventasync-reconciler/internal/issuance"
	"github.com/ventasync-reconciler/internal/logger"
	"github.com/ventasync-reconciler/internal/oauth"
	"github.com/ventasync-reconciler/internal/platform/crypto"
	"github.com/ventasync-reconciler/internal/platform/messaging/producers"
	"github.com/ventasync-reconciler/internal/platform/persistence"
	"github.com/ventasync-reconciler/internal/reconciler"
	"github.com/ventasync-reconciler/internal/vault"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisDB, err := persistence.NewRedisDB(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize credential encryption
	secretBox, err := crypto.NewSecretBox(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Error("Failed to initialize credential encryption", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for the issuance event stream
	eventProducer, err := producers.NewIssuanceEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize issuance event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	saleRepo := postgres.NewSaleRepository(log, postgresDB)
	credentialRepo := postgres.NewCredentialRepository(log, postgresDB)
	watermarkRepo := postgres.NewWatermarkRepository(log, postgresDB)
	userDirectory := postgres.NewUserRepository(log, postgresDB)
	attemptRepo := mongo.NewAttemptRepository(log, mongoDB.Database())

	// The vault is the only component that sees decrypted credentials; the
	// connectors pull from it at call time
	credentialVault := vault.NewVault(log, credentialRepo, secretBox)

	// Initialize provider connectors
	billingConnector := billing.NewOpenFacturaConnector(log, &cfg.Billing, credentialVault)
	falabellaConnector := marketplace.NewFalabellaConnector(log, &cfg.Falabella, credentialVault)
	mercadoLibreConnector := marketplace.NewMercadoLibreConnector(log, &cfg.MercadoLibre, credentialVault)
	manualConnector := marketplace.NewManualConnector()

	// Initialize batch issuance orchestrator
	orchestrator := issuance.NewOrchestrator(
		log,
		saleRepo,
		billingConnector,
		credentialVault,
		attemptRepo,
		eventProducer,
		cfg.Billing.Timeout,
	)

	// Worker pool shared by on-demand reconciliation runs
	workerPool, err := ants.NewPool(cfg.WorkerPool.Size)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// The reconciliation engine here only serves the on-demand trigger; the
	// sales_reconciler binary owns the periodic loop
	reconcileEngine := reconciler.NewEngine(
		log,
		&cfg.Reconciler,
		[]marketplace.Connector{falabellaConnector, mercadoLibreConnector, manualConnector},
		saleRepo,
		watermarkRepo,
		workerPool,
	)

	// Initialize OAuth session management
	stateCodec := oauth.NewStateCodec(cfg.MercadoLibre.StateSecret, cfg.MercadoLibre.StateTTL)
	stateStore := oauth.NewRedisStateStore(redisDB.Client(), cfg.MercadoLibre.StateTTL)
	oauthSessions := oauth.NewSessionManager(log, &cfg.MercadoLibre, stateCodec, stateStore, userDirectory, credentialVault)

	// Initialize services
	salesService := service.NewSalesService(saleRepo, attemptRepo)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, salesService, orchestrator, credentialVault, oauthSessions, reconcileEngine)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	workerPool.Release()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing issuance event producer", "error", err)
	}

	if err = redisDB.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
