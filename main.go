// File: rwandabill/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rwandabill/config"
	"rwandabill/middleware"
	"rwandabill/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the Gin router.
	router := gin.New()
	router.Use(utils.ErrorHandler(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))

	var (
		app  *application
		err  error
		port string
	)
	switch config.AppConfig.AppMode {
	case "backend":
		app, err = setupBackend(ctx, router, logger)
		port = config.AppConfig.BackendPort
	default:
		app, err = setupPortal(ctx, router, logger)
		port = config.AppConfig.AppPort
	}
	if err != nil {
		logger.Fatal("main: failed to initialize", zap.String("mode", config.AppConfig.AppMode), zap.Error(err))
	}
	defer app.close()

	utils.StartHealthMonitor(ctx, 30*time.Second, app.checks)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting server", zap.String("addr", srv.Addr), zap.String("mode", config.AppConfig.AppMode))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("main: server failed to start", zap.Error(err))
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	<-ctx.Done()
	logger.Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	logger.Info("main: server stopped gracefully")
}

// application is what a mode hands back to main.
type application struct {
	checks  map[string]utils.HealthCheck
	closers []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			zap.L().Warn("main: cleanup failed", zap.Error(err))
		}
	}
}
