package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rwandabill/models"

	"golang.org/x/crypto/bcrypt"
)

// MockAccount seeds the mock backend.
type MockAccount struct {
	FullName  string
	Email     string
	Telephone string
	District  string
	Sector    string
	Password  string
	Role      models.Role
	Service   models.Service
}

// DefaultMockAccounts are the demo logins.
var DefaultMockAccounts = []MockAccount{
	{FullName: "Super Admin", Email: "superadmin@example.com", Telephone: "0788000001", District: "Gasabo", Sector: "Kimironko", Password: "super123", Role: models.RoleSuperAdmin},
	{FullName: "Water Admin", Email: "admin@example.com", Telephone: "0788000002", District: "Gasabo", Sector: "Remera", Password: "admin123", Role: models.RoleAdmin, Service: models.ServiceWater},
	{FullName: "Jean Member", Email: "member@example.com", Telephone: "0788000003", District: "Kicukiro", Sector: "Niboye", Password: "member123", Role: models.RoleMember},
}

type mockAccount struct {
	id      string
	profile MockAccount
	hash    []byte
}

func (a *mockAccount) response(token string) *models.AuthResponse {
	ok := true
	resp := &models.AuthResponse{
		Success:   &ok,
		ID:        models.BackendID(a.id),
		Email:     a.profile.Email,
		FullName:  a.profile.FullName,
		Telephone: a.profile.Telephone,
		District:  a.profile.District,
		Sector:    a.profile.Sector,
		Role:      models.BackendRole(a.profile.Role),
		Token:     token,
		Approved:  &ok,
	}
	if a.profile.Service != "" {
		resp.Service = strings.ToUpper(string(a.profile.Service))
	}
	return resp
}

// MockBackend is an in-memory Backend with a simulated network delay. The
// refresh credential is the account of the last successful login.
type MockBackend struct {
	delay time.Duration

	mu       sync.Mutex
	accounts []*mockAccount
	current  *mockAccount
	seq      int
}

// NewMockBackend seeds the backend with accounts (DefaultMockAccounts when
// none are given).
func NewMockBackend(delay time.Duration, accounts ...MockAccount) (*MockBackend, error) {
	if len(accounts) == 0 {
		accounts = DefaultMockAccounts
	}
	m := &MockBackend{delay: delay}
	for _, a := range accounts {
		if _, err := m.add(a); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MockBackend) add(a MockAccount) (*mockAccount, error) {
	var hash []byte
	if a.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hash mock password: %w", err)
		}
		hash = h
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	acct := &mockAccount{id: fmt.Sprint(len(m.accounts) + 1), profile: a, hash: hash}
	m.accounts = append(m.accounts, acct)
	return acct, nil
}

func (m *MockBackend) find(login string) *mockAccount {
	login = strings.ToLower(strings.TrimSpace(login))
	for _, a := range m.accounts {
		if a.profile.Email == login || (a.profile.Telephone != "" && a.profile.Telephone == login) {
			return a
		}
	}
	return nil
}

func (m *MockBackend) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *MockBackend) issue(a *mockAccount) string {
	m.seq++
	return fmt.Sprintf("mock-%s-%d", a.id, m.seq)
}

func (m *MockBackend) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.find(req.Email)
	if acct == nil || acct.hash == nil || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		return nil, &BackendError{Status: 401, Body: `{"success":false,"message":"Invalid email or password"}`}
	}
	m.current = acct
	return acct.response(m.issue(acct)), nil
}

func (m *MockBackend) Signup(ctx context.Context, kind SignupKind, body any) (*models.AuthResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var a MockAccount
	switch req := body.(type) {
	case models.SignupRequest:
		a = MockAccount{FullName: req.FullName, Email: req.Email, Telephone: req.Telephone, District: req.District, Sector: req.Sector, Password: req.Password, Role: models.RoleMember}
	case models.OAuthSignupRequest:
		a = MockAccount{FullName: req.FullName, Email: req.Email, Role: models.RoleMember}
	default:
		return nil, &BackendError{Status: 400, Body: "unsupported signup body"}
	}

	switch kind {
	case AdminSignup:
		if m.current == nil || m.current.profile.Role != models.RoleSuperAdmin {
			return nil, &BackendError{Status: 403, Body: "Only a super admin can create admin accounts"}
		}
		req, _ := body.(models.SignupRequest)
		svc, ok := models.ParseBackendService(req.Service)
		if !ok {
			return nil, &BackendError{Status: 400, Body: "Service type is required for admin accounts"}
		}
		a.Role, a.Service = models.RoleAdmin, svc
	case SuperAdminSignup:
		for _, acct := range m.accounts {
			if acct.profile.Role == models.RoleSuperAdmin {
				return nil, &BackendError{Status: 409, Body: "Super admin already exists"}
			}
		}
		a.Role = models.RoleSuperAdmin
	}

	if m.find(a.Email) != nil {
		return nil, &BackendError{Status: 409, Body: "Email is already registered"}
	}
	// Every mock account is approved on creation.
	acct, err := m.add(a)
	if err != nil {
		return nil, err
	}
	resp := acct.response("")
	resp.Message = "User registered successfully"
	return resp, nil
}

func (m *MockBackend) Signout(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

func (m *MockBackend) CurrentUser(ctx context.Context) (*models.AuthResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, &BackendError{Status: 401, Body: "Unauthorized"}
	}
	return m.current.response(""), nil
}

func (m *MockBackend) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", &BackendError{Status: 401, Body: "Refresh token is missing"}
	}
	return m.issue(m.current), nil
}
