package utils

import (
	"testing"
	"time"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	tok, err := issuer.GenerateToken(AccessClaims{Subject: "u1", Email: "a@example.com", Role: "ADMIN"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := issuer.ValidateToken(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "ADMIN" || claims.Email != "a@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestTokenIssuerRejectsExpiredAndForeign(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := issuer.GenerateToken(AccessClaims{Subject: "u1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.ValidateToken(old); err == nil {
		t.Fatal("expired token accepted")
	}

	other := NewTokenIssuer("other", time.Minute)
	foreign, _ := other.GenerateToken(AccessClaims{Subject: "u1"})
	if _, err := issuer.ValidateToken(foreign); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestNewOpaqueToken(t *testing.T) {
	a, ha, err := NewOpaqueToken(32)
	if err != nil {
		t.Fatal(err)
	}
	b, _, _ := NewOpaqueToken(32)
	if a == b {
		t.Fatal("tokens repeat")
	}
	if HashToken(a) != ha {
		t.Fatal("hash mismatch")
	}
}
