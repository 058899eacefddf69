package auth

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"rwandabill/models"
	"rwandabill/session"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// AuthService performs the credential exchanges of the portal.
type AuthService interface {
	Login(ctx context.Context, email, password string) (models.Identity, error)
	Signup(ctx context.Context, req models.SignupRequest) error
	SignupAdmin(ctx context.Context, req models.SignupRequest, service models.Service) error
	SignupSuperAdmin(ctx context.Context, req models.SignupRequest) error
	GoogleSignup(ctx context.Context, req models.OAuthSignupRequest) error
	Logout(ctx context.Context) error
	LoadIdentity(ctx context.Context) (models.Identity, error)
	EnsureIdentity()
}

// DefaultAuthService implements AuthService against a Backend and owns the
// transitions of the session that follow an exchange.
type DefaultAuthService struct {
	Backend Backend
	Session *session.Session
	Logger  *zap.Logger
	// LoadTimeout bounds the background identity load.
	LoadTimeout time.Duration

	sem             *semaphore.Weighted
	identityLoading atomic.Bool
}

// NewAuthService wires the service. Exchanges are serialized: a second
// call waits for the first to finish.
func NewAuthService(backend Backend, sess *session.Session, logger *zap.Logger) *DefaultAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultAuthService{
		Backend:     backend,
		Session:     sess,
		Logger:      logger,
		LoadTimeout: 10 * time.Second,
		sem:         semaphore.NewWeighted(1),
	}
}

// exchange runs fn with the loading flag raised and the exchange slot held.
func (s *DefaultAuthService) exchange(ctx context.Context, fn func(context.Context) error) error {
	s.Session.BeginLoading()
	defer s.Session.EndLoading()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return &AuthError{Kind: NetworkUnavailable, Message: msgNetwork, Err: err}
	}
	defer s.sem.Release(1)
	return fn(ctx)
}

func (s *DefaultAuthService) Login(ctx context.Context, email, password string) (models.Identity, error) {
	req := models.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if msg, ok := validateForm(req); !ok {
		return models.Identity{}, &AuthError{Kind: InvalidCredentials, Message: msg}
	}

	var identity models.Identity
	err := s.exchange(ctx, func(ctx context.Context) error {
		resp, err := s.Backend.Login(ctx, req)
		if err != nil {
			return classify(err, InvalidCredentials, msgLoginFailed)
		}
		if resp.Failed() {
			return &AuthError{Kind: InvalidCredentials, Message: orDefault(resp.Message, msgLoginFailed)}
		}
		token := resp.BearerToken()
		if token == "" {
			return &AuthError{Kind: InvalidCredentials, Message: msgLoginFailed, Err: errMissingToken}
		}
		identity = s.normalize(resp)
		return s.Session.Establish(ctx, token, identity)
	})
	if err != nil {
		s.Logger.Info("login failed", zap.String("login", req.Email), zap.Error(err))
		return models.Identity{}, err
	}
	s.Logger.Info("login succeeded", zap.String("userID", identity.ID), zap.String("role", string(identity.Role())))
	return identity, nil
}

// normalize maps the backend user onto an Identity and logs what could not
// be mapped.
func (s *DefaultAuthService) normalize(resp *models.AuthResponse) models.Identity {
	identity, ok := resp.Identity()
	if !ok {
		s.Logger.Warn("unknown service for admin; admin gets no service",
			zap.String("userID", identity.ID), zap.String("service", resp.Service))
	}
	if models.BackendRole(identity.Role()) != resp.Role {
		s.Logger.Warn("unmapped backend role; defaulting to member",
			zap.String("userID", identity.ID), zap.String("backendRole", resp.Role))
	}
	return identity
}

func (s *DefaultAuthService) Signup(ctx context.Context, req models.SignupRequest) error {
	req.Role, req.Service = "", ""
	return s.signup(ctx, MemberSignup, req, req, msgSignupFailed)
}

// SignupAdmin creates an admin for service. The current session must belong
// to a super admin; the backend enforces it.
func (s *DefaultAuthService) SignupAdmin(ctx context.Context, req models.SignupRequest, service models.Service) error {
	if !service.Valid() {
		return &AuthError{Kind: SignupFailed, Message: "Please select a service"}
	}
	req.Role = models.BackendRole(models.RoleAdmin)
	req.Service = strings.ToUpper(string(service))
	return s.signup(ctx, AdminSignup, req, req, msgSignupFailed)
}

func (s *DefaultAuthService) SignupSuperAdmin(ctx context.Context, req models.SignupRequest) error {
	req.Role = models.BackendRole(models.RoleSuperAdmin)
	req.Service = ""
	return s.signup(ctx, SuperAdminSignup, req, req, msgSignupFailed)
}

func (s *DefaultAuthService) GoogleSignup(ctx context.Context, req models.OAuthSignupRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	return s.signup(ctx, OAuthSignup, req, req, msgGoogleSignupFailed)
}

func (s *DefaultAuthService) signup(ctx context.Context, kind SignupKind, form, body any, fallback string) error {
	if msg, ok := validateForm(form); !ok {
		return &AuthError{Kind: SignupFailed, Message: msg}
	}
	err := s.exchange(ctx, func(ctx context.Context) error {
		resp, err := s.Backend.Signup(ctx, kind, body)
		if err != nil {
			return classify(err, SignupFailed, fallback)
		}
		if resp != nil && resp.Failed() {
			return &AuthError{Kind: SignupFailed, Message: orDefault(resp.Message, fallback)}
		}
		return nil
	})
	if err != nil {
		s.Logger.Info("signup failed", zap.String("path", signupPaths[kind]), zap.Error(err))
		return err
	}
	s.Logger.Info("signup succeeded", zap.String("path", signupPaths[kind]))
	return nil
}

// Logout signs out on the backend when a session is held and always clears
// the local session. It does not queue behind a running exchange.
func (s *DefaultAuthService) Logout(ctx context.Context) error {
	s.Session.BeginLoading()
	defer s.Session.EndLoading()

	if s.Session.State() != session.Unauthenticated {
		if err := s.Backend.Signout(ctx); err != nil {
			s.Logger.Warn("signout request failed; clearing local session anyway", zap.Error(err))
		}
	}
	return s.Session.Logout(ctx)
}

// LoadIdentity fetches the identity for a restored token.
func (s *DefaultAuthService) LoadIdentity(ctx context.Context) (models.Identity, error) {
	var identity models.Identity
	err := s.exchange(ctx, func(ctx context.Context) error {
		resp, err := s.Backend.CurrentUser(ctx)
		if err != nil {
			return classify(err, NetworkUnavailable, msgNetwork)
		}
		if resp.Failed() {
			return &AuthError{Kind: NetworkUnavailable, Message: orDefault(resp.Message, msgNetwork)}
		}
		identity = s.normalize(resp)
		return s.Session.SetIdentity(ctx, identity)
	})
	if err != nil {
		return models.Identity{}, err
	}
	s.Logger.Info("identity loaded", zap.String("userID", identity.ID), zap.String("role", string(identity.Role())))
	return identity, nil
}

// EnsureIdentity starts a background identity load unless one is running.
// The session reports loading until it finishes. A definitive rejection by
// the backend ends the session; transport failures leave it pending so the
// next gated request tries again.
func (s *DefaultAuthService) EnsureIdentity() {
	if !s.identityLoading.CompareAndSwap(false, true) {
		return
	}
	s.Session.BeginLoading()
	gen := s.Session.Generation()
	go func() {
		defer s.identityLoading.Store(false)
		defer s.Session.EndLoading()

		ctx, cancel := context.WithTimeout(context.Background(), s.LoadTimeout)
		defer cancel()
		_, err := s.LoadIdentity(ctx)
		if err == nil {
			return
		}
		s.Logger.Warn("identity load failed", zap.Error(err))
		if rejectedByBackend(err) {
			if err := s.Session.ExpireGeneration(ctx, gen); err != nil && !errors.Is(err, session.ErrSuperseded) {
				s.Logger.Error("failed to clear session after identity rejection", zap.Error(err))
			}
		}
	}()
}

// classify turns a backend or transport failure into an AuthError of kind,
// keeping AuthErrors already in the chain.
func classify(err error, kind Kind, fallback string) error {
	var ae *AuthError
	if errors.As(err, &ae) {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return &AuthError{Kind: kind, Message: orDefault(backendMessage(be.Body), fallback), Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return &AuthError{Kind: NetworkUnavailable, Message: msgNetwork, Err: err}
	}
	return &AuthError{Kind: kind, Message: fallback, Err: err}
}

// rejectedByBackend reports a 4xx answer from the backend.
func rejectedByBackend(err error) bool {
	var se interface{ HTTPStatus() int }
	if !errors.As(err, &se) {
		return false
	}
	status := se.HTTPStatus()
	return status >= 400 && status < 500
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
