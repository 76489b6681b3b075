// Package api_gateway hosts the HTTP surface: sales listing, batch issuance,
// credential configuration and the OAuth flow.
package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ventasync-reconciler/internal/api_gateway/handler"
	"github.com/ventasync-reconciler/internal/api_gateway/service"
	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/issuance"
	"github.com/ventasync-reconciler/internal/oauth"
	"github.com/ventasync-reconciler/internal/vault"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	salesService service.SalesService,
	orchestrator issuance.Orchestrator,
	credentialVault *vault.Vault,
	sessions *oauth.SessionManager,
	reconcileRunner handler.ReconcileRunner,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	salesHandler := handler.NewSalesHandler(log, salesService, orchestrator)
	batchHandler := handler.NewBatchHandler(log, orchestrator)
	configHandler := handler.NewConfigHandler(log, credentialVault)
	oauthHandler := handler.NewOAuthHandler(log, sessions, cfg.MercadoLibre.FrontendURL)
	reconcileHandler := handler.NewReconcileHandler(log, reconcileRunner)

	setupRouter(log, httpRouter, salesHandler, batchHandler, configHandler, oauthHandler, reconcileHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
