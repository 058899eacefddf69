package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rwandabill/models"
	"rwandabill/services/auth"
	"rwandabill/session"
	"rwandabill/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRefresher struct {
	token  string
	err    error
	delay  time.Duration
	during func()
	calls  atomic.Int32
}

func (f *fakeRefresher) Refresh(ctx context.Context) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.during != nil {
		f.during()
	}
	return f.token, f.err
}

// recorder is a backend that answers 401 unless the bearer token is valid.
type recorder struct {
	valid  string
	status int

	mu       sync.Mutex
	attempts []string
	bodies   []string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.attempts = append(r.attempts, req.Header.Get("Authorization"))
	r.bodies = append(r.bodies, string(body))
	r.mu.Unlock()

	if r.status != 0 {
		w.WriteHeader(r.status)
		return
	}
	if r.valid == "" || req.Header.Get("Authorization") != "Bearer "+r.valid {
		http.Error(w, `{"message":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

func authenticated(t *testing.T, token string) *session.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := session.New(ctx, session.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if token != "" {
		identity := models.NewIdentity(models.Profile{ID: "1", Email: "member@example.com"}, models.MemberAccess{})
		if err := sess.Establish(ctx, token, identity); err != nil {
			t.Fatalf("Establish: %v", err)
		}
	}
	return sess
}

func newRequest(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, rdr)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestRefreshThenRetryWithNewToken(t *testing.T) {
	rec := &recorder{valid: "fresh"}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sess := authenticated(t, "stale")
	ref := &fakeRefresher{token: "fresh"}
	gw := New(srv.Client(), sess, ref)

	resp, err := gw.Do(newRequest(t, http.MethodPost, srv.URL+"/bills", `{"amount":1200}`))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if rec.count() != 2 {
		t.Fatalf("attempts = %d, want 2", rec.count())
	}
	if rec.attempts[0] != "Bearer stale" || rec.attempts[1] != "Bearer fresh" {
		t.Fatalf("authorization headers = %v", rec.attempts)
	}
	if rec.bodies[1] != `{"amount":1200}` {
		t.Fatalf("retried body = %q", rec.bodies[1])
	}
	if ref.calls.Load() != 1 {
		t.Fatalf("refresh calls = %d", ref.calls.Load())
	}
	if token, _ := sess.Token(context.Background()); token != "fresh" {
		t.Fatalf("stored token = %q", token)
	}
	if sess.State() != session.Authenticated {
		t.Fatalf("state = %s", sess.State())
	}
}

func TestFailedRefreshClearsSession(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sess := authenticated(t, "stale")
	var notified atomic.Bool
	sess.OnExpire(func() { notified.Store(true) })
	ref := &fakeRefresher{err: errors.New("refresh token expired")}
	gw := New(srv.Client(), sess, ref)

	before := testutil.ToFloat64(utils.RefreshAttempts.WithLabelValues("failure"))
	resp, err := gw.Do(newRequest(t, http.MethodGet, srv.URL+"/auth/me", ""))
	if resp != nil {
		t.Fatal("no response expected on an unrecovered 401")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want StatusError 401", err)
	}
	if !errors.Is(err, ErrUnauthorized) || auth.KindOf(err) != auth.RefreshFailed {
		t.Fatalf("err chain = %v", err)
	}
	if string(se.Body) != `{"message":"Unauthorized"}` {
		t.Fatalf("original body = %q", se.Body)
	}

	ctx := context.Background()
	if token, _ := sess.Token(ctx); token != "" {
		t.Fatalf("token survived: %q", token)
	}
	if _, ok := sess.Identity(); ok {
		t.Fatal("identity survived")
	}
	if sess.State() != session.Unauthenticated {
		t.Fatalf("state = %s", sess.State())
	}
	if !notified.Load() {
		t.Fatal("expire hook not called")
	}
	if rec.count() != 1 {
		t.Fatalf("attempts = %d, want 1", rec.count())
	}
	if got := testutil.ToFloat64(utils.RefreshAttempts.WithLabelValues("failure")); got != before+1 {
		t.Fatalf("failure counter = %v, want %v", got, before+1)
	}
}

func TestSecondUnauthorizedDoesNotRefreshAgain(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sess := authenticated(t, "stale")
	ref := &fakeRefresher{token: "also-rejected"}
	gw := New(srv.Client(), sess, ref)

	_, err := gw.Do(newRequest(t, http.MethodGet, srv.URL+"/user-approvals/pending", ""))
	var se *StatusError
	if !errors.As(err, &se) || !se.Retried {
		t.Fatalf("err = %v, want retried StatusError", err)
	}
	if ref.calls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", ref.calls.Load())
	}
	if rec.count() != 2 {
		t.Fatalf("attempts = %d, want 2", rec.count())
	}
	if auth.KindOf(err) != 0 {
		t.Fatalf("a rejected retry is not a refresh failure: %v", err)
	}
}

func TestOtherStatusesPassThrough(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		rec := &recorder{status: status}
		srv := httptest.NewServer(rec)

		ref := &fakeRefresher{token: "fresh"}
		gw := New(srv.Client(), authenticated(t, "stale"), ref)
		resp, err := gw.Do(newRequest(t, http.MethodGet, srv.URL+"/bills", ""))
		if err != nil {
			t.Fatalf("status %d: %v", status, err)
		}
		resp.Body.Close()
		if resp.StatusCode != status {
			t.Fatalf("status = %d, want %d", resp.StatusCode, status)
		}
		if ref.calls.Load() != 0 || rec.count() != 1 {
			t.Fatalf("status %d: refreshes=%d attempts=%d", status, ref.calls.Load(), rec.count())
		}
		srv.Close()
	}
}

func TestUnauthenticatedRequestIsNotRefreshed(t *testing.T) {
	rec := &recorder{valid: "fresh"}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	ref := &fakeRefresher{token: "fresh"}
	gw := New(srv.Client(), authenticated(t, ""), ref)

	_, err := gw.Do(newRequest(t, http.MethodGet, srv.URL+"/auth/me", ""))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if rec.attempts[0] != "" {
		t.Fatalf("authorization sent without a token: %q", rec.attempts[0])
	}
	if ref.calls.Load() != 0 {
		t.Fatal("refresh attempted without a session")
	}
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	rec := &recorder{valid: "fresh"}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sess := authenticated(t, "stale")
	ref := &fakeRefresher{token: "fresh", delay: 50 * time.Millisecond}
	gw := New(srv.Client(), sess, ref)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/bills", nil)
			resp, err := gw.Do(req)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Do: %v", err)
	}
	if ref.calls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", ref.calls.Load())
	}
	if rec.count() > 10 {
		t.Fatalf("attempts = %d, more than two per request", rec.count())
	}
}

func TestRefreshDroppedWhenSessionReplaced(t *testing.T) {
	for name, refreshErr := range map[string]error{
		"refresh succeeds": nil,
		"refresh fails":    errors.New("refresh cookie rejected"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{valid: "other-user"}
			srv := httptest.NewServer(rec)
			defer srv.Close()

			ctx := context.Background()
			sess := authenticated(t, "stale")
			expired := 0
			sess.OnExpire(func() { expired++ })
			admin := models.NewIdentity(models.Profile{ID: "2", Email: "admin@example.com"}, models.AdminAccess{Service: models.ServiceWater})
			ref := &fakeRefresher{token: "minted-for-old-session", err: refreshErr, during: func() {
				if err := sess.Establish(ctx, "other-user", admin); err != nil {
					t.Errorf("Establish: %v", err)
				}
			}}
			gw := New(srv.Client(), sess, ref)

			_, err := gw.Do(newRequest(t, http.MethodGet, srv.URL+"/bills", ""))
			var ae *auth.AuthError
			if !errors.As(err, &ae) || ae.Kind != auth.RefreshFailed {
				t.Fatalf("err = %v, want RefreshFailed", err)
			}
			if token, _ := sess.Token(ctx); token != "other-user" {
				t.Fatalf("token = %q, new session token was overwritten", token)
			}
			identity, ok := sess.Identity()
			if !ok || identity.ID != "2" || sess.State() != session.Authenticated {
				t.Fatalf("identity = %+v ok=%v state=%s", identity, ok, sess.State())
			}
			if expired != 0 || sess.TakeExpiredNotice() {
				t.Fatal("replacement session must not be expired")
			}
			if rec.count() != 1 {
				t.Fatalf("attempts = %d, want 1", rec.count())
			}
		})
	}
}
