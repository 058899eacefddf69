package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"rwandabill/config"
	"rwandabill/gateway"
	"rwandabill/handlers"
	"rwandabill/routes"
	"rwandabill/services/auth"
	"rwandabill/services/billing"
	"rwandabill/session"
	"rwandabill/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// openTokenStore builds the configured token store.
func openTokenStore(app *application) (session.TokenStore, error) {
	cfg := config.AppConfig
	switch cfg.SessionStore {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		client, err := utils.GetSessionCacheClient()
		if err != nil {
			return nil, err
		}
		kv := session.NewRedisKV(client)
		app.checks["redis"] = kv.Ping
		app.closers = append(app.closers, client.Close)
		return session.NewStore(kv, cfg.SessionNamespace), nil
	case "sqlite", "":
		kv, err := session.OpenSQLite(cfg.SessionDBPath)
		if err != nil {
			return nil, err
		}
		app.checks["sqlite"] = kv.Ping
		app.closers = append(app.closers, kv.Close)
		return session.NewStore(kv, cfg.SessionNamespace), nil
	}
	return nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
}

func setupPortal(ctx context.Context, router *gin.Engine, logger *zap.Logger) (*application, error) {
	cfg := config.AppConfig
	app := &application{checks: map[string]utils.HealthCheck{}}

	store, err := openTokenStore(app)
	if err != nil {
		return app, fmt.Errorf("token store: %w", err)
	}
	sess, err := session.New(ctx, store, logger.Named("session"))
	if err != nil {
		return app, fmt.Errorf("restore session: %w", err)
	}
	sess.OnExpire(func() {
		logger.Warn("Session expired; the next protected view redirects to login")
	})

	var (
		backend   auth.Backend
		approvals billing.ApprovalService
	)
	if cfg.MockAuth {
		mock, err := auth.NewMockBackend(cfg.MockAuthDelay)
		if err != nil {
			return app, err
		}
		backend, approvals = mock, billing.NewMockApprovals()
		logger.Info("Using mock authentication")
	} else {
		jar, _ := cookiejar.New(nil)
		client := &http.Client{Jar: jar, Timeout: cfg.RequestTimeout}
		httpBackend := auth.NewHTTPBackend(cfg.BackendURL, client)
		gw := gateway.New(client, sess, httpBackend,
			gateway.WithLogger(logger.Named("gateway")),
			gateway.WithLimiter(rate.NewLimiter(rate.Limit(20), 40)),
			gateway.WithRefreshTimeout(cfg.RequestTimeout),
		)
		httpBackend.UseGateway(gw)
		backend, approvals = httpBackend, billing.NewHTTPApprovals(cfg.BackendURL, gw)
		app.checks["backend"] = backendCheck(client, cfg.BackendURL)
		logger.Info("Using backend", zap.String("url", cfg.BackendURL))
	}

	authService := auth.NewAuthService(backend, sess, logger.Named("auth"))
	authService.LoadTimeout = cfg.RequestTimeout

	portalHandler := handlers.NewPortalHandler(authService, sess, approvals)
	routes.RegisterPortalRoutes(router, portalHandler, sess, authService)
	return app, nil
}

// backendCheck probes the backend health endpoint.
func backendCheck(client *http.Client, baseURL string) utils.HealthCheck {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/auth/health", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("backend health: %s", resp.Status)
		}
		return nil
	}
}
