// internal/api/api.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/api/handlers"
	"github.com/stackvity/loan-verify/internal/api/middleware"
	"github.com/stackvity/loan-verify/internal/api/routes"
	"github.com/stackvity/loan-verify/internal/config"
)

// API encapsulates the Gin engine and its dependencies for the service's
// lifetime.
type API struct {
	Engine  *gin.Engine
	Handler *handlers.Handler
	Config  *config.Config
	Logger  *zap.Logger
}

// NewAPI builds a Gin engine, registers middleware and routes, and returns a
// ready-to-start API instance.
func NewAPI(handler *handlers.Handler, cfg *config.Config, logger *zap.Logger) (*API, error) {
	const operation = "api.NewAPI"

	logger.Info("initializing API", zap.String("operation", operation))

	if cfg.Environment == config.DevelopmentEnvironment {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))

	routes.SetupRouter(engine, handler.VerifyHandler, handler.HealthHandler)

	api := &API{
		Engine:  engine,
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
	}

	logger.Info("API initialized successfully", zap.String("operation", operation))
	return api, nil
}

// StartServer runs the HTTP server until SIGINT/SIGTERM, then drains
// in-flight requests for Config.ShutdownDrainWait before returning.
func (api *API) StartServer() error {
	const operation = "api.StartServer"

	api.Logger.Info("starting HTTP server",
		zap.String("operation", operation),
		zap.String("address", api.Config.HTTPServerAddress),
		zap.String("environment", api.Config.Environment),
	)

	server := &http.Server{
		Addr:    api.Config.HTTPServerAddress,
		Handler: api.Engine,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("%s: server failed to start: %w", operation, err)
		}
	case <-quit:
		api.Logger.Info("shutting down server", zap.String("operation", operation))

		ctx, cancel := context.WithTimeout(context.Background(), api.Config.ShutdownDrainWait)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("%s: server forced to shutdown: %w", operation, err)
		}
		api.Logger.Info("server exited properly", zap.String("operation", operation))
	}

	return nil
}
