// Package backend implements the REST backend the portal authenticates
// against: accounts, access and refresh tokens, and the approval queue.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountRepo "rwandabill/database/repository/account"
	"rwandabill/models"
	"rwandabill/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrEmailTaken         = accountRepo.ErrDuplicateEmail
	ErrServiceRequired    = errors.New("service is required for admin accounts")
	ErrInvalidService     = errors.New("invalid service type")
	ErrSuperAdminExists   = errors.New("super admin already exists")
	ErrForbidden          = errors.New("operation not allowed for this role")
	ErrAccountNotFound    = accountRepo.ErrAccountNotFound
)

// ValidationError is a rejected signup field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

const (
	roleUser       = "USER"
	roleAdmin      = "ADMIN"
	roleSuperAdmin = "SUPER_ADMIN"
)

// Tokens is an issued access/refresh pair.
type Tokens struct {
	Access  string
	Refresh string
}

// AccountService holds the backend's account logic.
type AccountService struct {
	Repo       accountRepo.AccountRepository
	Refresh    RefreshStore
	Issuer     *utils.TokenIssuer
	RefreshTTL time.Duration
	Logger     *zap.Logger
}

func (s *AccountService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *AccountService) issue(ctx context.Context, a *models.Account) (Tokens, error) {
	access, err := s.Issuer.GenerateToken(utils.AccessClaims{Subject: a.ID, Email: a.Email, Role: a.Role})
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	plain, hash, err := utils.NewOpaqueToken(32)
	if err != nil {
		return Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.Refresh.Save(ctx, hash, a.ID, s.RefreshTTL); err != nil {
		return Tokens{}, fmt.Errorf("store refresh token: %w", err)
	}
	return Tokens{Access: access, Refresh: plain}, nil
}

// Login checks credentials. Admins must be approved to log in.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.Account, Tokens, error) {
	account, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, accountRepo.ErrAccountNotFound) {
		return nil, Tokens{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, Tokens{}, err
	}
	if account.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, Tokens{}, ErrInvalidCredentials
	}
	if account.Role == roleAdmin && !account.Approved() {
		return nil, Tokens{}, ErrPendingApproval
	}
	tokens, err := s.issue(ctx, account)
	if err != nil {
		return nil, Tokens{}, err
	}
	s.logger().Info("Account logged in", zap.String("accountID", account.ID), zap.String("role", account.Role))
	return account, tokens, nil
}

func validateSignup(req models.SignupRequest) error {
	switch {
	case strings.TrimSpace(req.Email) == "":
		return &ValidationError{Message: "Email is required"}
	case len(req.Password) < 6:
		return &ValidationError{Message: "Password must be at least 6 characters long"}
	case strings.TrimSpace(req.FullName) == "":
		return &ValidationError{Message: "Full name is required"}
	}
	return nil
}

func newAccount(req models.SignupRequest, role string) (*models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &models.Account{
		ID:           uuid.NewString(),
		FullName:     strings.TrimSpace(req.FullName),
		Email:        models.NormalizeEmail(req.Email),
		Telephone:    strings.TrimSpace(req.Telephone),
		District:     strings.TrimSpace(req.District),
		Sector:       strings.TrimSpace(req.Sector),
		PasswordHash: string(hash),
		Role:         role,
		Provider:     "local",
		Status:       models.ApprovalPending,
	}, nil
}

// parseService normalizes a backend service type.
func parseService(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", ErrServiceRequired
	}
	svc, ok := models.ParseBackendService(s)
	if !ok {
		return "", ErrInvalidService
	}
	return strings.ToUpper(string(svc)), nil
}

// Register creates a USER or ADMIN account awaiting approval.
func (s *AccountService) Register(ctx context.Context, req models.SignupRequest) (*models.Account, error) {
	if err := validateSignup(req); err != nil {
		return nil, err
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = roleUser
	}
	if role != roleUser && role != roleAdmin {
		return nil, &ValidationError{Message: "Role must be USER or ADMIN"}
	}
	account, err := newAccount(req, role)
	if err != nil {
		return nil, err
	}
	if role == roleAdmin {
		if account.Service, err = parseService(req.Service); err != nil {
			return nil, err
		}
	}
	if err := s.Repo.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger().Info("New account registered (pending approval)", zap.String("accountID", account.ID), zap.String("role", role))
	return account, nil
}

// RegisterAdmin creates an approved admin on behalf of a super admin.
func (s *AccountService) RegisterAdmin(ctx context.Context, req models.SignupRequest, creator *utils.AccessClaims) (*models.Account, error) {
	if creator == nil || creator.Role != roleSuperAdmin {
		return nil, ErrForbidden
	}
	if err := validateSignup(req); err != nil {
		return nil, err
	}
	account, err := newAccount(req, roleAdmin)
	if err != nil {
		return nil, err
	}
	if account.Service, err = parseService(req.Service); err != nil {
		return nil, err
	}
	approve(account, creator.Email)
	if err := s.Repo.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger().Info("Admin created", zap.String("accountID", account.ID), zap.String("service", account.Service), zap.String("createdBy", creator.Subject))
	return account, nil
}

// RegisterSuperAdmin creates the super admin. Only one may exist.
func (s *AccountService) RegisterSuperAdmin(ctx context.Context, req models.SignupRequest) (*models.Account, error) {
	if err := validateSignup(req); err != nil {
		return nil, err
	}
	n, err := s.Repo.CountByRole(ctx, roleSuperAdmin)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrSuperAdminExists
	}
	account, err := newAccount(req, roleSuperAdmin)
	if err != nil {
		return nil, err
	}
	approve(account, "")
	if err := s.Repo.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger().Info("Super admin created", zap.String("accountID", account.ID))
	return account, nil
}

// RegisterOAuth creates a member account for a Google sign-up. It has no
// password and awaits approval like any other signup.
func (s *AccountService) RegisterOAuth(ctx context.Context, req models.OAuthSignupRequest) (*models.Account, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FullName) == "" {
		return nil, &ValidationError{Message: "Full name and email are required"}
	}
	account := &models.Account{
		ID:            uuid.NewString(),
		FullName:      strings.TrimSpace(req.FullName),
		Email:         models.NormalizeEmail(req.Email),
		Role:          roleUser,
		Provider:      "google",
		Status:        models.ApprovalPending,
		EmailVerified: true,
	}
	if err := s.Repo.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger().Info("OAuth account registered", zap.String("accountID", account.ID))
	return account, nil
}

// RefreshTokens exchanges a refresh token for a new pair. The old refresh
// token stops working.
func (s *AccountService) RefreshTokens(ctx context.Context, refreshToken string) (*models.Account, Tokens, error) {
	if refreshToken == "" {
		return nil, Tokens{}, ErrRefreshTokenInvalid
	}
	accountID, err := s.Refresh.Consume(ctx, utils.HashToken(refreshToken))
	if err != nil {
		return nil, Tokens{}, err
	}
	account, err := s.Repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accountRepo.ErrAccountNotFound) {
			return nil, Tokens{}, ErrRefreshTokenInvalid
		}
		return nil, Tokens{}, err
	}
	tokens, err := s.issue(ctx, account)
	if err != nil {
		return nil, Tokens{}, err
	}
	s.logger().Debug("Refresh token rotated", zap.String("accountID", account.ID))
	return account, tokens, nil
}

// Signout revokes the refresh token, if one is given.
func (s *AccountService) Signout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Refresh.Revoke(ctx, utils.HashToken(refreshToken))
}

// Me returns the account behind an access token.
func (s *AccountService) Me(ctx context.Context, claims *utils.AccessClaims) (*models.Account, error) {
	return s.Repo.GetByID(ctx, claims.Subject)
}

// PendingApprovals lists accounts awaiting review. Admins see member
// signups; the super admin sees every pending account.
func (s *AccountService) PendingApprovals(ctx context.Context, claims *utils.AccessClaims) ([]models.Account, error) {
	pending, err := s.Repo.ListByStatus(ctx, models.ApprovalPending)
	if err != nil {
		return nil, err
	}
	if claims.Role == roleSuperAdmin {
		return pending, nil
	}
	out := pending[:0]
	for _, a := range pending {
		if a.Role == roleUser {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpdateApproval approves or rejects an account. Admins may only review
// member accounts.
func (s *AccountService) UpdateApproval(ctx context.Context, claims *utils.AccessClaims, id string, req models.ApprovalRequest) (*models.Account, error) {
	account, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims.Role != roleSuperAdmin && account.Role != roleUser {
		return nil, ErrForbidden
	}
	switch req.Status {
	case models.ApprovalApproved:
		approve(account, claims.Email)
	case models.ApprovalRejected:
		account.Status = models.ApprovalRejected
		account.ApprovedAt = nil
		account.ApprovedBy = ""
		account.RejectionReason = req.RejectionReason
	default:
		return nil, &ValidationError{Message: "Status must be APPROVED or REJECTED"}
	}
	if err := s.Repo.Update(ctx, account); err != nil {
		return nil, err
	}
	s.logger().Info("Account review updated", zap.String("accountID", account.ID),
		zap.String("status", string(account.Status)), zap.String("reviewer", claims.Subject))
	return account, nil
}

func approve(a *models.Account, by string) {
	now := time.Now().UTC()
	a.Status = models.ApprovalApproved
	a.ApprovedAt = &now
	a.ApprovedBy = by
	a.RejectionReason = ""
}

// SeedAccount is a demo account created at startup.
type SeedAccount struct {
	FullName string
	Email    string
	Password string
	Role     string
	Service  string
}

// DemoAccounts mirror the portal's mock logins.
var DemoAccounts = []SeedAccount{
	{FullName: "Super Admin", Email: "superadmin@example.com", Password: "super123", Role: roleSuperAdmin},
	{FullName: "Water Admin", Email: "admin@example.com", Password: "admin123", Role: roleAdmin, Service: "WATER"},
	{FullName: "Jean Member", Email: "member@example.com", Password: "member123", Role: roleUser},
}

// Seed creates the accounts that do not exist yet, approved.
func (s *AccountService) Seed(ctx context.Context, seeds []SeedAccount) error {
	for _, seed := range seeds {
		_, err := s.Repo.GetByEmail(ctx, seed.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, accountRepo.ErrAccountNotFound) {
			return err
		}
		account, err := newAccount(models.SignupRequest{FullName: seed.FullName, Email: seed.Email, Password: seed.Password}, seed.Role)
		if err != nil {
			return err
		}
		account.Service = seed.Service
		approve(account, "")
		if err := s.Repo.Create(ctx, account); err != nil && !errors.Is(err, accountRepo.ErrDuplicateEmail) {
			return err
		}
	}
	s.logger().Info("Demo accounts seeded", zap.Int("count", len(seeds)))
	return nil
}
