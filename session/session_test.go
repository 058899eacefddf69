package session

import (
	"context"
	"errors"
	"testing"

	"rwandabill/models"
)

func member() models.Identity {
	return models.NewIdentity(models.Profile{ID: "3", Email: "member@example.com"}, models.MemberAccess{})
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, err := New(ctx, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != Unauthenticated || s.Projection().IsAuthenticated {
		t.Fatal("new session must be unauthenticated")
	}

	if err := s.Establish(ctx, "tok-1", member()); err != nil {
		t.Fatal(err)
	}
	p := s.Projection()
	if !p.IsAuthenticated || p.Role != models.RoleMember {
		t.Fatalf("projection = %+v", p)
	}

	gen, err := s.BeginRefresh()
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != RefreshPending {
		t.Fatalf("state = %s", s.State())
	}
	if err := s.CompleteRefresh(ctx, gen, "tok-2"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := s.Token(ctx); tok != "tok-2" || s.State() != Authenticated {
		t.Fatalf("token = %q state = %s", tok, s.State())
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetToken(ctx); !errors.Is(err, ErrAbsent) {
		t.Fatal("token survived logout")
	}
	if _, err := store.GetIdentity(ctx); !errors.Is(err, ErrAbsent) {
		t.Fatal("identity survived logout")
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestSessionExpireRunsHooks(t *testing.T) {
	ctx := context.Background()
	s, _ := New(ctx, NewMemoryStore(), nil)
	_ = s.Establish(ctx, "tok", member())

	fired := 0
	s.OnExpire(func() { fired++ })
	gen, _ := s.BeginRefresh()
	if err := s.Expire(ctx); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("hooks fired %d times", fired)
	}
	if s.State() != Unauthenticated {
		t.Fatalf("state = %s", s.State())
	}
	if !s.TakeExpiredNotice() || s.TakeExpiredNotice() {
		t.Fatal("expired notice must be reported exactly once")
	}
	if err := s.CompleteRefresh(ctx, gen, "late"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("late refresh: %v", err)
	}
}

func TestSessionRestore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.SetToken(ctx, "tok")
	s, err := New(ctx, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p := s.Projection(); !p.IdentityPending || p.IsAuthenticated {
		t.Fatalf("token without identity: %+v", p)
	}
	if err := s.SetIdentity(ctx, member()); err != nil {
		t.Fatal(err)
	}
	if !s.Projection().IsAuthenticated {
		t.Fatal("identity load should authenticate the projection")
	}

	orphan := NewMemoryStore()
	_ = orphan.SetIdentity(ctx, member())
	if _, err := New(ctx, orphan, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := orphan.GetIdentity(ctx); !errors.Is(err, ErrAbsent) {
		t.Fatal("orphan identity should be cleared on restore")
	}
}

func TestSessionLoadingCounter(t *testing.T) {
	s, _ := New(context.Background(), NewMemoryStore(), nil)
	s.BeginLoading()
	s.BeginLoading()
	s.EndLoading()
	if !s.Projection().Loading {
		t.Fatal("still one exchange in flight")
	}
	s.EndLoading()
	s.EndLoading()
	if s.IsLoading() {
		t.Fatal("loading must not go negative")
	}
}

func TestSessionRefreshForReplacedSession(t *testing.T) {
	ctx := context.Background()
	s, _ := New(ctx, NewMemoryStore(), nil)
	_ = s.Establish(ctx, "tok-a", member())

	gen, err := s.BeginRefresh()
	if err != nil {
		t.Fatal(err)
	}
	admin := models.NewIdentity(models.Profile{ID: "4", Email: "admin@example.com"}, models.AdminAccess{Service: models.ServiceWater})
	if err := s.Establish(ctx, "tok-b", admin); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteRefresh(ctx, gen, "tok-a2"); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("stale refresh: %v", err)
	}
	if err := s.ExpireGeneration(ctx, gen); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("stale expire: %v", err)
	}
	if tok, _ := s.Token(ctx); tok != "tok-b" || s.State() != Authenticated {
		t.Fatalf("token = %q state = %s", tok, s.State())
	}
	if id, _ := s.Identity(); id.ID != "4" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestSessionExpireAfterLogoutIsSilent(t *testing.T) {
	ctx := context.Background()
	s, _ := New(ctx, NewMemoryStore(), nil)
	_ = s.Establish(ctx, "tok", member())

	fired := 0
	s.OnExpire(func() { fired++ })
	if err := s.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Expire(ctx); err != nil {
		t.Fatal(err)
	}
	if fired != 0 || s.TakeExpiredNotice() {
		t.Fatal("expiring a logged-out session must not report expiry")
	}
}
