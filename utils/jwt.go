package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// AccessClaims is what the mock backend puts in an access token.
type AccessClaims struct {
	Subject string
	Email   string
	Role    string
}

// TokenIssuer signs and validates HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer. An empty secret gets a random one, which
// invalidates every token on restart.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenIssuer{secret: key, ttl: ttl, now: time.Now}
}

// GenerateToken creates a signed JWT token for the given subject.
func (i *TokenIssuer) GenerateToken(c AccessClaims) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub":   c.Subject,
		"email": c.Email,
		"role":  c.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken parses and validates a token string and returns its claims.
func (i *TokenIssuer) ValidateToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token does not contain a valid 'sub' claim")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &AccessClaims{Subject: sub, Email: email, Role: role}, nil
}

// HashToken computes a SHA-256 hash of the token string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewOpaqueToken returns a random URL-safe token of n bytes and its hash.
func NewOpaqueToken(n int) (plain, hash string, err error) {
	b := make([]byte, n)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, HashToken(plain), nil
}
