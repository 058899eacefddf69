package session

import (
	"context"
	"errors"
	"sync"

	"rwandabill/models"

	"go.uber.org/zap"
)

// State is the lifecycle position of the session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	RefreshPending
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case RefreshPending:
		return "refresh_pending"
	default:
		return "unauthenticated"
	}
}

// Projection is the read-only view the access gate decides on.
type Projection struct {
	IsAuthenticated bool
	Role            models.Role
	Service         models.Service
	// Loading is true while a credential exchange or identity load is in
	// flight.
	Loading bool
	// IdentityPending is true when a token is held but the identity has not
	// been loaded yet.
	IdentityPending bool
}

// Generation identifies one established session. It changes whenever the
// session is established or cleared.
type Generation uint64

// Session is the single owner of the authentication state. Every mutation
// of the token store goes through it.
type Session struct {
	mu       sync.Mutex
	store    TokenStore
	state    State
	identity *models.Identity
	gen      Generation
	loading  int
	expired  bool
	hooks    []func()
	logger   *zap.Logger
}

// New restores the session persisted in store.
func New(ctx context.Context, store TokenStore, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{store: store, logger: logger}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) restore(ctx context.Context) error {
	if _, err := s.store.GetToken(ctx); err != nil {
		if !errors.Is(err, ErrAbsent) {
			return err
		}
		// An identity without a token is an orphan from an interrupted clear.
		s.state = Unauthenticated
		return s.store.ClearIdentity(ctx)
	}
	s.state = Authenticated

	identity, err := s.store.GetIdentity(ctx)
	switch {
	case errors.Is(err, ErrAbsent):
		s.logger.Info("session restored without identity; identity load required")
	case err != nil:
		s.logger.Warn("discarding unreadable stored identity", zap.Error(err))
		if err := s.store.ClearIdentity(ctx); err != nil {
			return err
		}
	default:
		s.identity = &identity
		s.logger.Info("session restored", zap.String("userID", identity.ID), zap.String("role", string(identity.Role())))
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the current access token, or "" when none is held.
func (s *Session) Token(ctx context.Context) (string, error) {
	token, err := s.store.GetToken(ctx)
	if errors.Is(err, ErrAbsent) {
		return "", nil
	}
	return token, err
}

// Identity returns the current identity.
func (s *Session) Identity() (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return models.Identity{}, false
	}
	return *s.identity, true
}

// Establish starts a new session after a successful credential exchange.
// It replaces whatever session was held before.
func (s *Session) Establish(ctx context.Context, token string, identity models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetToken(ctx, token); err != nil {
		return err
	}
	if err := s.store.SetIdentity(ctx, identity); err != nil {
		_ = s.store.ClearToken(ctx)
		return err
	}
	s.identity = &identity
	s.state = Authenticated
	s.gen++
	s.expired = false
	s.logger.Info("session established", zap.String("userID", identity.ID), zap.String("role", string(identity.Role())))
	return nil
}

// SetIdentity records an identity loaded for a restored token.
func (s *Session) SetIdentity(ctx context.Context, identity models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Unauthenticated {
		return ErrNotAuthenticated
	}
	if err := s.store.SetIdentity(ctx, identity); err != nil {
		return err
	}
	s.identity = &identity
	return nil
}

var (
	// ErrNotAuthenticated is returned for operations that need a live session.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrSuperseded is returned when a refresh result belongs to a session
	// that has since been replaced or cleared.
	ErrSuperseded = errors.New("session: superseded")
)

// Generation returns the generation of the current session.
func (s *Session) Generation() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// BeginRefresh moves an authenticated session into RefreshPending and
// returns the generation the refresh is for.
func (s *Session) BeginRefresh() (Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Unauthenticated:
		return s.gen, ErrNotAuthenticated
	case Authenticated:
		s.state = RefreshPending
		s.logger.Debug("session refresh started")
	}
	return s.gen, nil
}

// CompleteRefresh replaces the access token in place and returns to
// Authenticated. A token for an older generation is dropped with
// ErrSuperseded.
func (s *Session) CompleteRefresh(ctx context.Context, gen Generation, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Unauthenticated {
		return ErrNotAuthenticated
	}
	if gen != s.gen {
		s.logger.Warn("dropping refreshed token for a replaced session")
		return ErrSuperseded
	}
	if err := s.store.SetToken(ctx, token); err != nil {
		return err
	}
	s.state = Authenticated
	s.logger.Info("session access token refreshed")
	return nil
}

// Expire destroys the session after an irrecoverable authentication
// failure and notifies the expire hooks. A session that is already cleared
// is left alone.
func (s *Session) Expire(ctx context.Context) error {
	return s.expire(ctx, nil)
}

// ExpireGeneration is Expire for the session of generation gen only. It
// returns ErrSuperseded when that session has been replaced.
func (s *Session) ExpireGeneration(ctx context.Context, gen Generation) error {
	return s.expire(ctx, &gen)
}

func (s *Session) expire(ctx context.Context, gen *Generation) error {
	s.mu.Lock()
	if gen != nil && *gen != s.gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if s.state == Unauthenticated {
		s.mu.Unlock()
		s.logger.Debug("session already cleared; expiry ignored")
		return nil
	}
	err := s.clearLocked(ctx)
	s.expired = true
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	s.logger.Warn("session expired", zap.Error(err))
	for _, hook := range hooks {
		hook()
	}
	return err
}

// Logout destroys the session from any state.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.clearLocked(ctx)
	s.expired = false
	s.logger.Info("session logged out")
	return err
}

func (s *Session) clearLocked(ctx context.Context) error {
	s.state = Unauthenticated
	s.identity = nil
	s.gen++
	return errors.Join(s.store.ClearToken(ctx), s.store.ClearIdentity(ctx))
}

// OnExpire registers fn to run after Expire.
func (s *Session) OnExpire(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// TakeExpiredNotice reports whether the session expired since the last
// call, then resets the flag.
func (s *Session) TakeExpiredNotice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := s.expired
	s.expired = false
	return expired
}

// BeginLoading marks a credential exchange or identity load as in flight.
// Every call must be paired with EndLoading.
func (s *Session) BeginLoading() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

// EndLoading releases one BeginLoading.
func (s *Session) EndLoading() {
	s.mu.Lock()
	if s.loading > 0 {
		s.loading--
	}
	s.mu.Unlock()
}

// IsLoading reports whether any exchange is in flight.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Projection returns the state the access gate needs.
func (s *Session) Projection() Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Projection{Loading: s.loading > 0}
	if s.state == Unauthenticated {
		return p
	}
	if s.identity == nil {
		p.IdentityPending = true
		return p
	}
	p.IsAuthenticated = true
	p.Role = s.identity.Role()
	if svc, ok := s.identity.Service(); ok {
		p.Service = svc
	}
	return p
}
