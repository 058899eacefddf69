// Package gateway dispatches authenticated backend calls. It attaches the
// session's bearer token and, on a 401, refreshes the token once and
// replays the request.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"rwandabill/services/auth"
	"rwandabill/session"
	"rwandabill/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	maxErrorBody          = 1 << 16
	defaultRefreshTimeout = 10 * time.Second
	msgSessionExpired     = "Your session has expired. Please log in again."
)

// Refresher mints a new access token from the refresh credential.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Gateway wraps an HTTP client with token attachment and one-shot
// refresh-and-retry. It satisfies auth.Doer.
type Gateway struct {
	client         auth.Doer
	session        *session.Session
	refresher      Refresher
	limiter        *rate.Limiter
	logger         *zap.Logger
	refreshTimeout time.Duration

	group singleflight.Group
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLimiter throttles outbound requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithRefreshTimeout bounds a single refresh call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.refreshTimeout = d }
}

// New returns a gateway sending through client.
func New(client auth.Doer, sess *session.Session, refresher Refresher, opts ...Option) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	g := &Gateway{
		client:         client,
		session:        sess,
		refresher:      refresher,
		logger:         zap.NewNop(),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends req with the current token. Responses other than 401 are
// returned as they are, whatever their status. A 401 triggers at most one
// refresh and one replay; a request is never sent more than twice. When
// the 401 cannot be recovered Do returns a *StatusError and no response.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	token, err := g.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := g.send(req, body, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	rejected := drain(resp)

	if token == "" || g.session.State() == session.Unauthenticated {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: rejected}
	}

	fresh, err := g.renew(ctx, token)
	if err != nil {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: rejected, Err: err}
	}

	resp, err = g.send(req, body, fresh)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	g.logger.Warn("request rejected again after refresh",
		zap.String("method", req.Method), zap.String("path", req.URL.Path))
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: drain(resp), Retried: true}
}

// renew returns a token newer than sent. Concurrent callers share one
// refresh; a caller whose token was already replaced reuses the new one.
func (g *Gateway) renew(ctx context.Context, sent string) (string, error) {
	if current, err := g.session.Token(ctx); err == nil && current != "" && current != sent {
		return current, nil
	}
	ch := g.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.refreshTimeout)
		defer cancel()
		return g.refresh(rctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (g *Gateway) refresh(ctx context.Context) (string, error) {
	gen, err := g.session.BeginRefresh()
	if err != nil {
		return "", &auth.AuthError{Kind: auth.RefreshFailed, Message: msgSessionExpired, Err: err}
	}
	g.logger.Info("access token rejected; refreshing")

	token, err := g.refresher.Refresh(ctx)
	if err == nil {
		err = g.session.CompleteRefresh(ctx, gen, token)
	}
	if errors.Is(err, session.ErrSuperseded) {
		utils.RefreshAttempts.WithLabelValues("superseded").Inc()
		g.logger.Info("session replaced during refresh; keeping the new session")
		return "", &auth.AuthError{Kind: auth.RefreshFailed, Message: msgSessionExpired, Err: err}
	}
	if err != nil {
		utils.RefreshAttempts.WithLabelValues("failure").Inc()
		g.logger.Warn("token refresh failed; ending session", zap.Error(err))
		clearErr := g.session.ExpireGeneration(ctx, gen)
		if clearErr != nil && !errors.Is(clearErr, session.ErrSuperseded) {
			g.logger.Error("failed to clear session after refresh failure", zap.Error(clearErr))
		}
		return "", &auth.AuthError{Kind: auth.RefreshFailed, Message: msgSessionExpired, Err: err}
	}
	utils.RefreshAttempts.WithLabelValues("success").Inc()
	return token, nil
}

func (g *Gateway) send(orig *http.Request, body []byte, token string) (*http.Response, error) {
	ctx := orig.Context()
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req := orig.Clone(ctx)
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.ContentLength = int64(len(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		utils.GatewayRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	utils.GatewayRequests.WithLabelValues(utils.StatusClass(resp.StatusCode)).Inc()
	return resp, nil
}

// bufferBody reads the request body so it can be replayed.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func drain(resp *http.Response) []byte {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return bytes.TrimSpace(data)
}
