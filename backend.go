package main

import (
	"context"
	"fmt"

	"rwandabill/config"
	"rwandabill/database"
	accountRepo "rwandabill/database/repository/account"
	"rwandabill/handlers"
	"rwandabill/routes"
	"rwandabill/services/backend"
	"rwandabill/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func setupBackend(ctx context.Context, router *gin.Engine, logger *zap.Logger) (*application, error) {
	cfg := config.AppConfig
	app := &application{checks: map[string]utils.HealthCheck{}}

	// repositories.
	var repo accountRepo.AccountRepository = accountRepo.NewMemoryAccountRepo()
	if cfg.DatabaseURL != "" {
		client, err := database.InitDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return app, err
		}
		app.closers = append(app.closers, func() error { return client.Disconnect(context.Background()) })
		app.checks["mongo"] = database.Ping
		if repo, err = accountRepo.NewMongoAccountRepo(client, cfg.DatabaseName); err != nil {
			return app, err
		}
	} else {
		logger.Warn("DATABASE_URL not set; accounts are kept in memory")
	}

	var refresh backend.RefreshStore = backend.NewMemoryRefreshStore()
	switch cfg.RefreshStore {
	case "redis":
		client, err := utils.GetAuthCacheClient()
		if err != nil {
			return app, err
		}
		store := backend.NewRedisRefreshStore(client)
		app.checks["redis"] = store.Ping
		app.closers = append(app.closers, client.Close)
		refresh = store
	case "memory", "":
	default:
		return app, fmt.Errorf("unknown REFRESH_STORE %q", cfg.RefreshStore)
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; access tokens will not survive a restart")
	}
	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)

	// services.
	accounts := &backend.AccountService{
		Repo:       repo,
		Refresh:    refresh,
		Issuer:     issuer,
		RefreshTTL: cfg.RefreshTokenTTL,
		Logger:     logger.Named("accounts"),
	}
	if cfg.SeedDemo {
		if err := accounts.Seed(ctx, backend.DemoAccounts); err != nil {
			return app, fmt.Errorf("seed demo accounts: %w", err)
		}
	}

	backendHandler := handlers.NewBackendHandler(accounts, cfg.RefreshTokenTTL, config.IsProduction())
	routes.RegisterBackendRoutes(router, backendHandler, issuer, config.AllowedOrigins())
	return app, nil
}
