package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	accountRepo "rwandabill/database/repository/account"
	"rwandabill/handlers"
	"rwandabill/models"
	"rwandabill/services/backend"
	"rwandabill/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newBackendRouter returns the REST backend with the demo accounts seeded.
func newBackendRouter(t *testing.T) (*gin.Engine, *backend.AccountService) {
	t.Helper()
	issuer := utils.NewTokenIssuer("test-secret", time.Minute)
	accounts := &backend.AccountService{
		Repo:       accountRepo.NewMemoryAccountRepo(),
		Refresh:    backend.NewMemoryRefreshStore(),
		Issuer:     issuer,
		RefreshTTL: time.Hour,
	}
	if err := accounts.Seed(context.Background(), backend.DemoAccounts); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	r := gin.New()
	RegisterBackendRoutes(r, handlers.NewBackendHandler(accounts, time.Hour, false), issuer, []string{"http://localhost:3000"})
	return r, accounts
}

type apiCall struct {
	method string
	path   string
	body   any
	bearer string
	cookie *http.Cookie
}

func (a apiCall) do(t *testing.T, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if a.body != nil {
		if err := json.NewEncoder(&buf).Encode(a.body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(a.method, a.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+a.bearer)
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func refreshCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == handlers.RefreshCookie && c.Value != "" {
			if !c.HttpOnly {
				t.Fatal("refresh cookie must be HttpOnly")
			}
			return c
		}
	}
	t.Fatal("no refresh cookie set")
	return nil
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) models.AuthResponse {
	t.Helper()
	var resp models.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return resp
}

func TestBackendLoginMeRefresh(t *testing.T) {
	r, _ := newBackendRouter(t)

	w := apiCall{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": "admin@example.com", "password": "admin123"}}.do(t, r)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body)
	}
	login := decodeAuth(t, w)
	if login.Role != "ADMIN" || login.Service != "WATER" || login.BearerToken() == "" {
		t.Fatalf("login = %+v", login)
	}
	cookie := refreshCookieFrom(t, w)

	w = apiCall{method: http.MethodGet, path: "/api/auth/me", bearer: login.BearerToken()}.do(t, r)
	if w.Code != http.StatusOK || decodeAuth(t, w).Email != "admin@example.com" {
		t.Fatalf("me = %d %s", w.Code, w.Body)
	}
	if w := (apiCall{method: http.MethodGet, path: "/api/auth/me", bearer: "garbage"}).do(t, r); w.Code != http.StatusUnauthorized {
		t.Fatalf("me with bad token = %d", w.Code)
	}

	w = apiCall{method: http.MethodPost, path: "/api/auth/refreshtoken", cookie: cookie}.do(t, r)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d %s", w.Code, w.Body)
	}
	var refreshed models.RefreshResponse
	_ = json.Unmarshal(w.Body.Bytes(), &refreshed)
	if refreshed.AccessToken == "" {
		t.Fatal("no access token in refresh response")
	}
	rotated := refreshCookieFrom(t, w)

	if w := (apiCall{method: http.MethodPost, path: "/api/auth/refreshtoken", cookie: cookie}).do(t, r); w.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh cookie = %d", w.Code)
	}
	if w := (apiCall{method: http.MethodPost, path: "/api/auth/refreshtoken"}).do(t, r); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing refresh cookie = %d", w.Code)
	}

	if w := (apiCall{method: http.MethodPost, path: "/api/auth/signout", cookie: rotated}).do(t, r); w.Code != http.StatusOK {
		t.Fatalf("signout = %d", w.Code)
	}
	if w := (apiCall{method: http.MethodPost, path: "/api/auth/refreshtoken", cookie: rotated}).do(t, r); w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after signout = %d", w.Code)
	}
}

func TestBackendLoginFailures(t *testing.T) {
	r, _ := newBackendRouter(t)

	w := apiCall{method: http.MethodPost, path: "/api/auth/signin", body: gin.H{"email": "member@example.com", "password": "wrong"}}.do(t, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", w.Code)
	}
	if resp := decodeAuth(t, w); !resp.Failed() || resp.Message != "Invalid email or password" {
		t.Fatalf("wrong password body = %s", w.Body)
	}

	signup := gin.H{"fullName": "Pending Admin", "email": "pending@example.com", "telephone": "0781234567",
		"district": "Gasabo", "sector": "Remera", "password": "Secret1!", "role": "ADMIN", "service": "security"}
	if w := (apiCall{method: http.MethodPost, path: "/api/auth/signup", body: signup}).do(t, r); w.Code != http.StatusCreated {
		t.Fatalf("admin signup = %d %s", w.Code, w.Body)
	}
	w = apiCall{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": "pending@example.com", "password": "Secret1!"}}.do(t, r)
	if w.Code != http.StatusOK {
		t.Fatalf("pending admin status = %d", w.Code)
	}
	if resp := decodeAuth(t, w); !resp.Failed() || resp.Message != "Your account is pending approval from Super Admin" {
		t.Fatalf("pending admin body = %s", w.Body)
	}
}

func TestBackendSignupVariants(t *testing.T) {
	r, _ := newBackendRouter(t)
	member := gin.H{"fullName": "Alice Uwimana", "email": "alice@example.com", "telephone": "0781234567",
		"district": "Gasabo", "sector": "Remera", "password": "Secret1!"}

	if w := (apiCall{method: http.MethodPost, path: "/api/auth/signup", body: member}).do(t, r); w.Code != http.StatusCreated {
		t.Fatalf("signup = %d %s", w.Code, w.Body)
	}
	w := apiCall{method: http.MethodPost, path: "/api/auth/signup", body: member}.do(t, r)
	if w.Code != http.StatusConflict || decodeAuth(t, w).Message != "Email is already registered" {
		t.Fatalf("duplicate signup = %d %s", w.Code, w.Body)
	}
	if w := (apiCall{method: http.MethodPost, path: "/api/auth/signup/super-admin", body: member}).do(t, r); w.Code != http.StatusConflict {
		t.Fatalf("second super admin = %d", w.Code)
	}

	admin := gin.H{"fullName": "Sanitation Admin", "email": "sanitation@example.com", "telephone": "0781234568",
		"district": "Gasabo", "sector": "Remera", "password": "Secret1!", "service": "SANITATION"}
	if w := (apiCall{method: http.MethodPost, path: "/api/auth/signup/admin", body: admin}).do(t, r); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous admin signup = %d", w.Code)
	}
	memberLogin := decodeAuth(t, apiCall{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": "member@example.com", "password": "member123"}}.do(t, r))
	if w := (apiCall{method: http.MethodPost, path: "/api/auth/signup/admin", body: admin, bearer: memberLogin.BearerToken()}).do(t, r); w.Code != http.StatusForbidden {
		t.Fatalf("member admin signup = %d", w.Code)
	}
	superLogin := decodeAuth(t, apiCall{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": "superadmin@example.com", "password": "super123"}}.do(t, r))
	w = apiCall{method: http.MethodPost, path: "/api/auth/signup/admin", body: admin, bearer: superLogin.BearerToken()}.do(t, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("super admin admin signup = %d %s", w.Code, w.Body)
	}
	if created := decodeAuth(t, w); created.Approved == nil || !*created.Approved || created.ApprovedBy != "superadmin@example.com" {
		t.Fatalf("created admin = %s", w.Body)
	}
	if w := (apiCall{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": "sanitation@example.com", "password": "Secret1!"}}).do(t, r); decodeAuth(t, w).Failed() {
		t.Fatalf("created admin cannot log in: %s", w.Body)
	}

	w = apiCall{method: http.MethodPost, path: "/api/auth/oauth/signup", body: gin.H{"fullName": "Eric", "email": "eric@example.com"}}.do(t, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("oauth signup = %d %s", w.Code, w.Body)
	}
}

func TestBackendApprovals(t *testing.T) {
	r, accounts := newBackendRouter(t)
	ctx := context.Background()
	member, err := accounts.Register(ctx, models.SignupRequest{FullName: "Alice", Email: "alice@example.com", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	memberLogin := decodeAuth(t, apiCall{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": "member@example.com", "password": "member123"}}.do(t, r))
	if w := (apiCall{method: http.MethodGet, path: "/api/user-approvals/pending", bearer: memberLogin.BearerToken()}).do(t, r); w.Code != http.StatusForbidden {
		t.Fatalf("member listing approvals = %d", w.Code)
	}

	adminLogin := decodeAuth(t, apiCall{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": "admin@example.com", "password": "admin123"}}.do(t, r))
	w := apiCall{method: http.MethodGet, path: "/api/user-approvals/pending", bearer: adminLogin.BearerToken()}.do(t, r)
	var page struct {
		Content       []models.PendingUser `json:"content"`
		TotalElements int                  `json:"totalElements"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil || w.Code != http.StatusOK {
		t.Fatalf("pending = %d %s", w.Code, w.Body)
	}
	if page.TotalElements != 1 || string(page.Content[0].ID) != member.ID {
		t.Fatalf("page = %+v", page)
	}

	path := "/api/user-approvals/" + member.ID + "/status"
	if w := (apiCall{method: http.MethodPut, path: path, body: gin.H{"status": "MAYBE"}, bearer: adminLogin.BearerToken()}).do(t, r); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status = %d", w.Code)
	}
	w = apiCall{method: http.MethodPut, path: path, body: gin.H{"status": "APPROVED"}, bearer: adminLogin.BearerToken()}.do(t, r)
	var updated models.PendingUser
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if w.Code != http.StatusOK || updated.Status != models.ApprovalApproved {
		t.Fatalf("approve = %d %s", w.Code, w.Body)
	}
	if w := (apiCall{method: http.MethodPut, path: "/api/user-approvals/missing/status", body: gin.H{"status": "APPROVED"}, bearer: adminLogin.BearerToken()}).do(t, r); w.Code != http.StatusNotFound {
		t.Fatalf("missing account = %d", w.Code)
	}
}

func oauthRequest(email string) models.OAuthSignupRequest {
	return models.OAuthSignupRequest{FullName: "Eric Habimana", Email: email}
}
