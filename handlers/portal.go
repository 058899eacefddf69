package handlers

import (
	"errors"
	"net/http"
	"strings"

	"rwandabill/middleware"
	"rwandabill/models"
	"rwandabill/services/auth"
	"rwandabill/services/billing"
	"rwandabill/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionExpiredMessage = "Your session has expired. Please log in again."

// PortalHandler serves the portal views. Views answer JSON.
type PortalHandler struct {
	Auth      auth.AuthService
	Session   *session.Session
	Approvals billing.ApprovalService
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(as auth.AuthService, sess *session.Session, approvals billing.ApprovalService) *PortalHandler {
	return &PortalHandler{Auth: as, Session: sess, Approvals: approvals}
}

type loginForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type signupForm struct {
	FullName        string `form:"fullName" json:"fullName"`
	Email           string `form:"email" json:"email"`
	Telephone       string `form:"telephone" json:"telephone"`
	District        string `form:"district" json:"district"`
	Sector          string `form:"sector" json:"sector"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
	Service         string `form:"service" json:"service"`
}

func (f signupForm) request() models.SignupRequest {
	return models.SignupRequest{
		FullName:        f.FullName,
		Email:           f.Email,
		Telephone:       f.Telephone,
		District:        f.District,
		Sector:          f.Sector,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
	}
}

// authStatus maps an exchange failure onto the status the portal answers.
func authStatus(err error) int {
	switch auth.KindOf(err) {
	case auth.InvalidCredentials:
		return http.StatusUnauthorized
	case auth.SignupFailed:
		return http.StatusBadRequest
	case auth.RefreshFailed:
		return http.StatusUnauthorized
	case auth.NetworkUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// userMessage returns the message of an AuthError, or a generic one.
func userMessage(err error) string {
	var ae *auth.AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "Something went wrong. Please try again."
}

// backendFailure answers a failed gateway call. A failed silent refresh has
// already ended the session, so the user is sent to the login view.
func backendFailure(c *gin.Context, err error, msg string) {
	if auth.KindOf(err) == auth.RefreshFailed {
		middleware.LoggerFrom(c).Info("session expired during request", zap.Error(err))
		c.Redirect(http.StatusSeeOther, middleware.LoginPath)
		return
	}
	middleware.LoggerFrom(c).Error(msg, zap.Error(err))
	status := http.StatusBadGateway
	var se interface{ HTTPStatus() int }
	if errors.As(err, &se) && se.HTTPStatus() >= 400 && se.HTTPStatus() < 500 {
		status = se.HTTPStatus()
	}
	c.JSON(status, gin.H{"error": msg})
}

// HomeHandler is the public landing view.
func (h *PortalHandler) HomeHandler(c *gin.Context) {
	p := h.Session.Projection()
	resp := gin.H{"view": "home", "authenticated": p.IsAuthenticated}
	if p.IsAuthenticated {
		resp["role"] = p.Role
		resp["landing"] = middleware.LandingPath(p.Role)
	}
	c.JSON(http.StatusOK, resp)
}

// LoginPageHandler shows the login view, with the expiry notice once after
// a failed refresh. Authenticated users go to their landing view.
func (h *PortalHandler) LoginPageHandler(c *gin.Context) {
	if p := h.Session.Projection(); p.IsAuthenticated {
		c.Redirect(http.StatusSeeOther, middleware.LandingPath(p.Role))
		return
	}
	resp := gin.H{"view": "login"}
	if h.Session.TakeExpiredNotice() {
		resp["notice"] = sessionExpiredMessage
	}
	c.JSON(http.StatusOK, resp)
}

// LoginHandler exchanges credentials and redirects to the role's landing view.
func (h *PortalHandler) LoginHandler(c *gin.Context) {
	logger := middleware.LoggerFrom(c)

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		logger.Warn("Invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	identity, err := h.Auth.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		logger.Warn("Login failed", zap.String("kind", auth.KindOf(err).String()), zap.Error(err))
		c.JSON(authStatus(err), gin.H{"error": userMessage(err)})
		return
	}
	c.Redirect(http.StatusSeeOther, middleware.LandingPath(identity.Role()))
}

// SignupHandler creates a member account. The user logs in afterwards.
func (h *PortalHandler) SignupHandler(c *gin.Context) {
	logger := middleware.LoggerFrom(c)

	var form signupForm
	if err := c.ShouldBind(&form); err != nil {
		logger.Warn("Invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := h.Auth.Signup(c.Request.Context(), form.request()); err != nil {
		logger.Warn("Signup failed", zap.Error(err))
		c.JSON(authStatus(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Account created successfully. Please log in.",
		"redirect": middleware.LoginPath,
	})
}

// GoogleSignupHandler creates an account from a Google profile.
func (h *PortalHandler) GoogleSignupHandler(c *gin.Context) {
	logger := middleware.LoggerFrom(c)

	var req models.OAuthSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid Google signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := h.Auth.GoogleSignup(c.Request.Context(), req); err != nil {
		logger.Warn("Google signup failed", zap.Error(err))
		c.JSON(authStatus(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Account created successfully. Please log in.",
		"redirect": middleware.LoginPath,
	})
}

// LogoutHandler ends the session and returns to the login view.
func (h *PortalHandler) LogoutHandler(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context()); err != nil {
		middleware.LoggerFrom(c).Error("Failed to clear session", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// DashboardHandler is the member view.
func (h *PortalHandler) DashboardHandler(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	c.JSON(http.StatusOK, gin.H{"view": "dashboard", "user": identity})
}

// AdminHandler is the service admin view with the approvals of the admin's
// service.
func (h *PortalHandler) AdminHandler(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	users, err := h.Approvals.PendingApprovals(c.Request.Context(), identity.Role())
	if err != nil {
		backendFailure(c, err, "Failed to fetch pending approvals")
		return
	}
	svc, ok := identity.Service()
	if ok {
		users = billing.ScopeToService(users, svc)
	} else {
		middleware.LoggerFrom(c).Warn("admin has no service; showing member signups only", zap.String("userID", identity.ID))
		users = billing.ScopeToService(users, "")
	}
	c.JSON(http.StatusOK, gin.H{"view": "admin", "user": identity, "service": svc, "pending": users})
}

// ReviewApprovalHandler approves or rejects a pending account.
func (h *PortalHandler) ReviewApprovalHandler(c *gin.Context) {
	logger := middleware.LoggerFrom(c)

	var req models.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid approval request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	identity, _ := middleware.CurrentIdentity(c)
	id := strings.TrimSpace(c.Param("id"))
	user, err := h.Approvals.UpdateApproval(c.Request.Context(), identity.Role(), id, req)
	if errors.Is(err, billing.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Approval not found"})
		return
	}
	if errors.Is(err, billing.ErrForbidden) {
		logger.Warn("Approval review refused", zap.String("id", id), zap.String("role", string(identity.Role())))
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to review this account"})
		return
	}
	if err != nil {
		backendFailure(c, err, "Failed to update approval")
		return
	}
	logger.Info("Approval updated", zap.String("id", id), zap.String("status", string(req.Status)))
	c.JSON(http.StatusOK, user)
}

// SuperAdminHandler is the super admin view with every pending approval.
func (h *PortalHandler) SuperAdminHandler(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	users, err := h.Approvals.PendingApprovals(c.Request.Context(), identity.Role())
	if err != nil {
		backendFailure(c, err, "Failed to fetch pending approvals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": "super-admin", "user": identity, "pending": users})
}

// CreateAdminHandler creates a service admin as the current super admin.
func (h *PortalHandler) CreateAdminHandler(c *gin.Context) {
	logger := middleware.LoggerFrom(c)

	var form signupForm
	if err := c.ShouldBind(&form); err != nil {
		logger.Warn("Invalid admin signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	svc, ok := models.ParseBackendService(form.Service)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please select a valid service"})
		return
	}
	if err := h.Auth.SignupAdmin(c.Request.Context(), form.request(), svc); err != nil {
		if auth.KindOf(err) == auth.RefreshFailed {
			backendFailure(c, err, "Admin signup failed")
			return
		}
		logger.Warn("Admin signup failed", zap.Error(err))
		c.JSON(authStatus(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Admin account created", "service": svc})
}

// UnauthorizedHandler is shown to users whose role lacks access.
func (h *PortalHandler) UnauthorizedHandler(c *gin.Context) {
	resp := gin.H{"view": "unauthorized", "error": "You do not have access to this page"}
	if p := h.Session.Projection(); p.IsAuthenticated {
		resp["landing"] = middleware.LandingPath(p.Role)
	}
	c.JSON(http.StatusForbidden, resp)
}
