package routes

import (
	"net/http"
	"time"

	"rwandabill/handlers"
	"rwandabill/middleware"
	"rwandabill/models"
	"rwandabill/session"
	"rwandabill/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, name string) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		for _, ok := range status.Checks {
			if !ok {
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": http.StatusText(code), "service": name, "checks": status.Checks, "checkedAt": status.CheckedAt})
	})
}

// RegisterMetricsRoute exposes the prometheus registry.
func RegisterMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterPortalRoutes registers the portal views behind the access gate.
func RegisterPortalRoutes(r *gin.Engine, ph *handlers.PortalHandler, sess *session.Session, loader middleware.IdentityLoader) {
	gate := func(req middleware.Requirement) gin.HandlerFunc {
		return middleware.AccessGate(sess, loader, req)
	}

	// Public views.
	r.GET("/", gate(middleware.Public), ph.HomeHandler)
	r.GET(middleware.LoginPath, gate(middleware.Public), ph.LoginPageHandler)
	r.POST(middleware.LoginPath, ph.LoginHandler)
	r.POST("/signup", ph.SignupHandler)
	r.POST("/signup/google", ph.GoogleSignupHandler)
	r.POST("/logout", ph.LogoutHandler)
	r.GET(middleware.UnauthorizedPath, gate(middleware.Public), ph.UnauthorizedHandler)

	member := r.Group("/dashboard", gate(middleware.RequireRole(models.RoleMember)))
	{
		member.GET("", ph.DashboardHandler)
	}

	admin := r.Group("/admin", gate(middleware.RequireRole(models.RoleAdmin)))
	{
		admin.GET("", ph.AdminHandler)
		admin.POST("/approvals/:id", ph.ReviewApprovalHandler)
	}

	superAdmin := r.Group("/super-admin", gate(middleware.RequireRole(models.RoleSuperAdmin)))
	{
		superAdmin.GET("", ph.SuperAdminHandler)
		superAdmin.POST("/approvals/:id", ph.ReviewApprovalHandler)
		superAdmin.POST("/admins", ph.CreateAdminHandler)
	}

	RegisterHealthRoute(r, "portal")
	RegisterMetricsRoute(r)
}

// RegisterBackendRoutes registers the REST backend under /api.
func RegisterBackendRoutes(r *gin.Engine, bh *handlers.BackendHandler, issuer *utils.TokenIssuer, origins []string) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", bh.LoginHandler)
		authGroup.POST("/signin", bh.LoginHandler)
		authGroup.POST("/signup", bh.SignupHandler)
		authGroup.POST("/signup/super-admin", bh.SignupSuperAdminHandler)
		authGroup.POST("/oauth/signup", bh.OAuthSignupHandler)
		authGroup.POST("/refreshtoken", bh.RefreshTokenHandler)
		authGroup.POST("/signout", bh.SignoutHandler)
		authGroup.GET("/health", bh.HealthHandler)

		// Protected routes (Require Authentication)
		protected := authGroup.Group("")
		protected.Use(middleware.JWTAuthMiddleware(issuer))
		protected.GET("/me", bh.MeHandler)
		protected.POST("/signup/admin", middleware.RoleBasedAuthMiddleware("SUPER_ADMIN"), bh.SignupAdminHandler)
	}

	approvals := r.Group("/api/user-approvals")
	{
		approvals.Use(middleware.JWTAuthMiddleware(issuer))
		approvals.Use(middleware.RoleBasedAuthMiddleware("ADMIN", "SUPER_ADMIN"))
		approvals.GET("/pending", bh.PendingApprovalsHandler)
		approvals.PUT("/:id/status", bh.UpdateApprovalStatusHandler)
	}

	RegisterHealthRoute(r, "backend")
	RegisterMetricsRoute(r)
}
