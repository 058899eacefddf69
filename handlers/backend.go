package handlers

import (
	"errors"
	"net/http"
	"time"

	"rwandabill/middleware"
	"rwandabill/models"
	"rwandabill/services/backend"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefreshCookie is the HttpOnly cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

// BackendHandler serves the mock REST backend under /api.
type BackendHandler struct {
	Accounts     *backend.AccountService
	RefreshTTL   time.Duration
	SecureCookie bool
}

// NewBackendHandler creates a new BackendHandler.
func NewBackendHandler(accounts *backend.AccountService, refreshTTL time.Duration, secure bool) *BackendHandler {
	return &BackendHandler{Accounts: accounts, RefreshTTL: refreshTTL, SecureCookie: secure}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// accountFailure maps account service errors onto backend answers.
func accountFailure(c *gin.Context, err error) {
	var ve *backend.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ve.Message)
	case errors.Is(err, backend.ErrEmailTaken):
		fail(c, http.StatusConflict, "Email is already registered")
	case errors.Is(err, backend.ErrServiceRequired):
		fail(c, http.StatusBadRequest, "Service type is required for admin accounts")
	case errors.Is(err, backend.ErrInvalidService):
		fail(c, http.StatusBadRequest, "Invalid service type")
	case errors.Is(err, backend.ErrSuperAdminExists):
		fail(c, http.StatusConflict, "Super admin already exists")
	case errors.Is(err, backend.ErrForbidden):
		fail(c, http.StatusForbidden, "Access denied")
	case errors.Is(err, backend.ErrAccountNotFound):
		fail(c, http.StatusNotFound, "User not found")
	default:
		middleware.LoggerFrom(c).Error("Account operation failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *BackendHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookie, token, int(h.RefreshTTL.Seconds()), "/api/auth", "", h.SecureCookie, true)
}

func (h *BackendHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookie, "", -1, "/api/auth", "", h.SecureCookie, true)
}

// LoginHandler authenticates and issues an access token plus a refresh
// cookie.
func (h *BackendHandler) LoginHandler(c *gin.Context) {
	logger := middleware.LoggerFrom(c)

	var req loginForm
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid login request", zap.Error(err))
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, tokens, err := h.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	case errors.Is(err, backend.ErrPendingApproval):
		fail(c, http.StatusOK, "Your account is pending approval from Super Admin")
		return
	case err != nil:
		accountFailure(c, err)
		return
	}
	h.setRefreshCookie(c, tokens.Refresh)
	c.JSON(http.StatusOK, account.AuthResponse(tokens.Access, "Login successful"))
}

func (h *BackendHandler) bindSignup(c *gin.Context) (models.SignupRequest, bool) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.LoggerFrom(c).Warn("Invalid signup request", zap.Error(err))
		fail(c, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	return req, true
}

// SignupHandler registers a USER or ADMIN account awaiting approval.
func (h *BackendHandler) SignupHandler(c *gin.Context) {
	req, ok := h.bindSignup(c)
	if !ok {
		return
	}
	account, err := h.Accounts.Register(c.Request.Context(), req)
	if err != nil {
		accountFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, account.AuthResponse("", "Registration successful. Your account is pending approval."))
}

// SignupAdminHandler creates an approved admin. Super admin only.
func (h *BackendHandler) SignupAdminHandler(c *gin.Context) {
	req, ok := h.bindSignup(c)
	if !ok {
		return
	}
	claims, _ := middleware.CurrentClaims(c)
	account, err := h.Accounts.RegisterAdmin(c.Request.Context(), req, claims)
	if err != nil {
		accountFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, account.AuthResponse("", "Admin created successfully"))
}

// SignupSuperAdminHandler creates the single super admin.
func (h *BackendHandler) SignupSuperAdminHandler(c *gin.Context) {
	req, ok := h.bindSignup(c)
	if !ok {
		return
	}
	account, err := h.Accounts.RegisterSuperAdmin(c.Request.Context(), req)
	if err != nil {
		accountFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, account.AuthResponse("", "Super admin created successfully"))
}

// OAuthSignupHandler registers an account from an OAuth profile.
func (h *BackendHandler) OAuthSignupHandler(c *gin.Context) {
	var req models.OAuthSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, err := h.Accounts.RegisterOAuth(c.Request.Context(), req)
	if err != nil {
		accountFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, account.AuthResponse("", "Registration successful. Your account is pending approval."))
}

// RefreshTokenHandler rotates the refresh cookie and issues a new access
// token.
func (h *BackendHandler) RefreshTokenHandler(c *gin.Context) {
	refresh, err := c.Cookie(RefreshCookie)
	if err != nil || refresh == "" {
		fail(c, http.StatusUnauthorized, "Refresh token is missing")
		return
	}
	_, tokens, err := h.Accounts.RefreshTokens(c.Request.Context(), refresh)
	if errors.Is(err, backend.ErrRefreshTokenInvalid) {
		h.clearRefreshCookie(c)
		fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	if err != nil {
		accountFailure(c, err)
		return
	}
	h.setRefreshCookie(c, tokens.Refresh)
	c.JSON(http.StatusOK, models.RefreshResponse{AccessToken: tokens.Access})
}

// SignoutHandler revokes the refresh token and clears the cookie.
func (h *BackendHandler) SignoutHandler(c *gin.Context) {
	if refresh, err := c.Cookie(RefreshCookie); err == nil {
		if err := h.Accounts.Signout(c.Request.Context(), refresh); err != nil {
			middleware.LoggerFrom(c).Warn("Failed to revoke refresh token", zap.Error(err))
		}
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Signed out successfully"})
}

// MeHandler returns the account behind the bearer token.
func (h *BackendHandler) MeHandler(c *gin.Context) {
	claims, _ := middleware.CurrentClaims(c)
	account, err := h.Accounts.Me(c.Request.Context(), claims)
	if errors.Is(err, backend.ErrAccountNotFound) {
		fail(c, http.StatusUnauthorized, "User not found")
		return
	}
	if err != nil {
		accountFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, account.AuthResponse("", ""))
}

// HealthHandler reports the backend as up.
func (h *BackendHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP", "service": "auth"})
}

// PendingApprovalsHandler lists the accounts the caller may review as a
// page.
func (h *BackendHandler) PendingApprovalsHandler(c *gin.Context) {
	claims, _ := middleware.CurrentClaims(c)
	accounts, err := h.Accounts.PendingApprovals(c.Request.Context(), claims)
	if err != nil {
		accountFailure(c, err)
		return
	}
	content := make([]models.PendingUser, 0, len(accounts))
	for i := range accounts {
		content = append(content, accounts[i].PendingUser())
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "totalElements": len(content)})
}

// UpdateApprovalStatusHandler approves or rejects an account.
func (h *BackendHandler) UpdateApprovalStatusHandler(c *gin.Context) {
	var req models.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Status must be APPROVED or REJECTED")
		return
	}
	claims, _ := middleware.CurrentClaims(c)
	account, err := h.Accounts.UpdateApproval(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		accountFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, account.PendingUser())
}
