package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"rwandabill/models"
)

// SignupKind selects the signup endpoint.
type SignupKind int

const (
	MemberSignup SignupKind = iota
	AdminSignup
	SuperAdminSignup
	OAuthSignup
)

var signupPaths = map[SignupKind]string{
	MemberSignup:     "/auth/signup",
	AdminSignup:      "/auth/signup/admin",
	SuperAdminSignup: "/auth/signup/super-admin",
	OAuthSignup:      "/auth/oauth/signup",
}

// Backend is the remote side of the credential exchange.
type Backend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Signup(ctx context.Context, kind SignupKind, body any) (*models.AuthResponse, error)
	Signout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.AuthResponse, error)
	// Refresh mints a new access token from the refresh credential.
	Refresh(ctx context.Context) (string, error)
}

// Doer sends an HTTP request. *http.Client and the request gateway both
// satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxBodyBytes = 1 << 16

var (
	errMissingToken = errors.New("response carried no access token")
	errNoGateway    = errors.New("authenticated transport not configured")
)

// HTTPBackend talks to the REST backend. Login, signup and refresh use the
// plain client so the refresh cookie lands in its jar; calls that need the
// bearer token go through the gateway.
type HTTPBackend struct {
	baseURL string
	client  *http.Client

	mu     sync.RWMutex
	authed Doer
}

// NewHTTPBackend returns a backend rooted at baseURL (for example
// http://localhost:8080/api). client should carry a cookie jar.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// UseGateway sets the transport for authenticated calls.
func (b *HTTPBackend) UseGateway(d Doer) {
	b.mu.Lock()
	b.authed = d
	b.mu.Unlock()
}

func (b *HTTPBackend) gateway() (Doer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.authed == nil {
		return nil, errNoGateway
	}
	return b.authed, nil
}

// BaseURL returns the backend root.
func (b *HTTPBackend) BaseURL() string { return b.baseURL }

func (b *HTTPBackend) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := b.send(ctx, b.client, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) Signup(ctx context.Context, kind SignupKind, body any) (*models.AuthResponse, error) {
	path, ok := signupPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown signup kind %d", kind)
	}
	var d Doer = b.client
	if kind == AdminSignup {
		gw, err := b.gateway()
		if err != nil {
			return nil, err
		}
		d = gw
	}
	var resp models.AuthResponse
	if err := b.send(ctx, d, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) Signout(ctx context.Context) error {
	gw, err := b.gateway()
	if err != nil {
		return err
	}
	return b.send(ctx, gw, http.MethodPost, "/auth/signout", nil, nil)
}

func (b *HTTPBackend) CurrentUser(ctx context.Context) (*models.AuthResponse, error) {
	gw, err := b.gateway()
	if err != nil {
		return nil, err
	}
	var resp models.AuthResponse
	if err := b.send(ctx, gw, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh posts to /auth/refreshtoken with the jar's refresh cookie.
func (b *HTTPBackend) Refresh(ctx context.Context) (string, error) {
	var resp models.RefreshResponse
	if err := b.send(ctx, b.client, http.MethodPost, "/auth/refreshtoken", nil, &resp); err != nil {
		return "", err
	}
	token := resp.BearerToken()
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

func (b *HTTPBackend) send(ctx context.Context, d Doer, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// backendMessage extracts a user-facing message from an error body: the
// "message" or "error" field of a JSON object, a JSON string, or the raw
// text.
func backendMessage(body string) string {
	body = strings.TrimSpace(body)
	switch {
	case body == "":
		return ""
	case strings.HasPrefix(body, "{"):
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return body
		}
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	case strings.HasPrefix(body, `"`):
		var s string
		if err := json.Unmarshal([]byte(body), &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return body
}
