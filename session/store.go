// Package session owns the client-side authentication state: the persisted
// access token and identity, and the lifecycle that moves between them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rwandabill/models"
)

// ErrAbsent is returned by getters when nothing is stored under the key.
var ErrAbsent = errors.New("session: not stored")

// TokenStore persists the access token and the identity of the current user.
// Clear operations are idempotent.
type TokenStore interface {
	SetToken(ctx context.Context, token string) error
	GetToken(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error

	SetIdentity(ctx context.Context, identity models.Identity) error
	GetIdentity(ctx context.Context) (models.Identity, error)
	ClearIdentity(ctx context.Context) error
}

// KV is the byte layer under a Store.
type KV interface {
	// Get returns ErrAbsent for missing keys.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete succeeds for missing keys.
	Delete(ctx context.Context, key string) error
}

// Keys names the two persisted entries.
type Keys struct {
	Token    string
	Identity string
}

// DefaultNamespace is used when none is configured.
const DefaultNamespace = "water_payment"

// KeysFor derives the keys for namespace.
func KeysFor(namespace string) Keys {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Keys{
		Token:    namespace + "_auth_token",
		Identity: namespace + "_user",
	}
}

// Store implements TokenStore over a KV.
type Store struct {
	kv   KV
	keys Keys
}

var _ TokenStore = (*Store)(nil)

// NewStore wraps kv using the keys of namespace.
func NewStore(kv KV, namespace string) *Store {
	return &Store{kv: kv, keys: KeysFor(namespace)}
}

// Keys returns the keys the store writes.
func (s *Store) Keys() Keys { return s.keys }

func (s *Store) SetToken(ctx context.Context, token string) error {
	if err := s.kv.Set(ctx, s.keys.Token, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context) (string, error) {
	token, err := s.kv.Get(ctx, s.keys.Token)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrAbsent
	}
	return token, nil
}

func (s *Store) ClearToken(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.keys.Token); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (s *Store) SetIdentity(ctx context.Context, identity models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := s.kv.Set(ctx, s.keys.Identity, string(data)); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}
	return nil
}

func (s *Store) GetIdentity(ctx context.Context) (models.Identity, error) {
	raw, err := s.kv.Get(ctx, s.keys.Identity)
	if err != nil {
		return models.Identity{}, err
	}
	var identity models.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return models.Identity{}, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return identity, nil
}

func (s *Store) ClearIdentity(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.keys.Identity); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}
