package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"rwandabill/models"
)

func TestHTTPBackendLoginAndRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email != "member@example.com" {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"success":true,"id":3,"email":"member@example.com","role":"USER","token":"a1"}`))
	})
	mux.HandleFunc("/api/auth/refreshtoken", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("refreshToken")
		if err != nil || c.Value != "r1" {
			http.Error(w, "Refresh token is missing", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"accessToken":"a2"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	b := NewHTTPBackend(srv.URL+"/api/", &http.Client{Jar: jar})
	ctx := context.Background()

	if _, err := b.Refresh(ctx); err == nil {
		t.Fatal("refresh without cookie should fail")
	}

	resp, err := b.Login(ctx, models.LoginRequest{Email: "member@example.com", Password: "member123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.ID != "3" || resp.BearerToken() != "a1" {
		t.Fatalf("resp = %+v", resp)
	}

	token, err := b.Refresh(ctx)
	if err != nil || token != "a2" {
		t.Fatalf("Refresh = %q, %v", token, err)
	}

	_, err = b.Login(ctx, models.LoginRequest{Email: "other@example.com", Password: "x"})
	be, ok := err.(*BackendError)
	if !ok || be.Status != http.StatusUnauthorized || backendMessage(be.Body) != "Invalid email or password" {
		t.Fatalf("err = %#v", err)
	}
}

func TestHTTPBackendNeedsGatewayForAuthenticatedCalls(t *testing.T) {
	b := NewHTTPBackend("http://127.0.0.1:1/api", nil)
	if _, err := b.CurrentUser(context.Background()); err != errNoGateway {
		t.Fatalf("err = %v", err)
	}
	if _, err := b.Signup(context.Background(), AdminSignup, validSignup()); err != errNoGateway {
		t.Fatalf("err = %v", err)
	}
}

func TestBackendMessage(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"  Bad credentials \n", "Bad credentials"},
		{`{"message":"Nope"}`, "Nope"},
		{`{"error":"Unauthorized"}`, "Unauthorized"},
		{`{"success":false}`, ""},
		{`"Email already exists"`, "Email already exists"},
		{`{not json`, "{not json"},
	}
	for _, tt := range tests {
		if got := backendMessage(tt.in); got != tt.want {
			t.Errorf("backendMessage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
